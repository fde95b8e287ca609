package store

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/linkstream/errors"
	"github.com/c360/linkstream/natsclient"
)

// Bucket names, one per collection
const (
	BucketLinks = "linkstream_links"
	BucketUsers = "linkstream_users"
	BucketVotes = "linkstream_votes"
)

// KV is a document store over NATS JetStream KV buckets: one bucket per
// collection, one JSON document per key.
type KV struct {
	links *natsclient.KVStore
	users *natsclient.KVStore
	votes *natsclient.KVStore
}

// NewKV creates the three collection buckets and returns the store
func NewKV(ctx context.Context, client *natsclient.Client) (*KV, error) {
	if client == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "store", "NewKV",
			"nats client is required")
	}

	buckets := make(map[string]jetstream.KeyValue, 3)
	for name, description := range map[string]string{
		BucketLinks: "Posted links",
		BucketUsers: "Registered users",
		BucketVotes: "Votes on links",
	} {
		bucket, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
			Bucket:      name,
			Description: description,
		})
		if err != nil {
			return nil, errors.WrapTransient(err, "store", "NewKV", "create bucket "+name)
		}
		buckets[name] = bucket
	}

	return &KV{
		links: client.NewKVStore(buckets[BucketLinks]),
		users: client.NewKVStore(buckets[BucketUsers]),
		votes: client.NewKVStore(buckets[BucketVotes]),
	}, nil
}

// insert marshals the document and creates it under a fresh key
func insert(ctx context.Context, kvs *natsclient.KVStore, key string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return errors.WrapFatal(err, "store", "insert", "marshal document")
	}
	if _, err := kvs.CreateWithRetry(ctx, key, data); err != nil {
		return errors.WrapTransient(err, "store", "insert", "create in KV")
	}
	return nil
}

// getDoc unmarshals one document; (false, nil) when the key is absent
func getDoc(ctx context.Context, kvs *natsclient.KVStore, key string, doc any) (bool, error) {
	entry, err := kvs.Get(ctx, key)
	if err != nil {
		if errors.IsNotFound(err) {
			return false, nil
		}
		return false, errors.WrapTransient(err, "store", "getDoc", "get from KV")
	}
	if err := json.Unmarshal(entry.Value, doc); err != nil {
		return false, errors.WrapFatal(err, "store", "getDoc", "unmarshal document")
	}
	return true, nil
}

// InsertLink persists a new link and returns its store key
func (kv *KV) InsertLink(ctx context.Context, link *Link) (string, error) {
	link.Key = NewKey()
	if err := insert(ctx, kv.links, link.Key, link); err != nil {
		return "", err
	}
	return link.Key, nil
}

// FindLinks returns links matching the flattened filter clauses,
// applying skip and first after filtering. Order follows the bucket's
// key listing and is not guaranteed.
func (kv *KV) FindLinks(ctx context.Context, clauses []Clause, skip, first int32) ([]*Link, error) {
	keys, err := kv.links.Keys(ctx)
	if err != nil {
		return nil, errors.WrapTransient(err, "store", "FindLinks", "list link keys")
	}

	var matched []*Link
	for _, key := range keys {
		var link Link
		ok, err := getDoc(ctx, kv.links, key, &link)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue // deleted between Keys and Get
		}
		if MatchLink(clauses, &link) {
			matched = append(matched, &link)
		}
	}
	return paginate(matched, skip, first), nil
}

// LinksByID bulk-fetches links keyed by normalized id
func (kv *KV) LinksByID(ctx context.Context, ids []string) (map[string]*Link, error) {
	out := make(map[string]*Link, len(ids))
	for _, id := range ids {
		id = NormalizeID(id)
		var link Link
		ok, err := getDoc(ctx, kv.links, id, &link)
		if err != nil {
			return nil, err
		}
		if ok {
			out[id] = &link
		}
	}
	return out, nil
}

// InsertUser persists a new user and returns its store key
func (kv *KV) InsertUser(ctx context.Context, user *User) (string, error) {
	user.Key = NewKey()
	if err := insert(ctx, kv.users, user.Key, user); err != nil {
		return "", err
	}
	return user.Key, nil
}

// UserByEmail scans the users bucket for an exact email match.
// Returns (nil, nil) when no user has that email.
func (kv *KV) UserByEmail(ctx context.Context, email string) (*User, error) {
	keys, err := kv.users.Keys(ctx)
	if err != nil {
		return nil, errors.WrapTransient(err, "store", "UserByEmail", "list user keys")
	}

	for _, key := range keys {
		var user User
		ok, err := getDoc(ctx, kv.users, key, &user)
		if err != nil {
			return nil, err
		}
		if ok && user.Email == email {
			return &user, nil
		}
	}
	return nil, nil
}

// UsersByID bulk-fetches users keyed by normalized id
func (kv *KV) UsersByID(ctx context.Context, ids []string) (map[string]*User, error) {
	out := make(map[string]*User, len(ids))
	for _, id := range ids {
		id = NormalizeID(id)
		var user User
		ok, err := getDoc(ctx, kv.users, id, &user)
		if err != nil {
			return nil, err
		}
		if ok {
			out[id] = &user
		}
	}
	return out, nil
}

// InsertVote persists a new vote and returns its store key
func (kv *KV) InsertVote(ctx context.Context, vote *Vote) (string, error) {
	vote.Key = NewKey()
	if err := insert(ctx, kv.votes, vote.Key, vote); err != nil {
		return "", err
	}
	return vote.Key, nil
}

// VotesByLink returns all votes referencing the given link
func (kv *KV) VotesByLink(ctx context.Context, linkID string) ([]*Vote, error) {
	return kv.votesWhere(ctx, func(v *Vote) bool {
		return v.LinkID == NormalizeID(linkID)
	})
}

// VotesByUser returns all votes cast by the given user
func (kv *KV) VotesByUser(ctx context.Context, userID string) ([]*Vote, error) {
	return kv.votesWhere(ctx, func(v *Vote) bool {
		return v.UserID == NormalizeID(userID)
	})
}

func (kv *KV) votesWhere(ctx context.Context, match func(*Vote) bool) ([]*Vote, error) {
	keys, err := kv.votes.Keys(ctx)
	if err != nil {
		return nil, errors.WrapTransient(err, "store", "votesWhere", "list vote keys")
	}

	var out []*Vote
	for _, key := range keys {
		var vote Vote
		ok, err := getDoc(ctx, kv.votes, key, &vote)
		if err != nil {
			return nil, err
		}
		if ok && match(&vote) {
			out = append(out, &vote)
		}
	}
	return out, nil
}

var _ Store = (*KV)(nil)
