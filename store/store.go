package store

import "context"

// Store is the document-store contract consumed by the resolver layer.
// Implementations own persistence; the resolvers hold no durable state.
//
// Lookup methods return (nil, nil) for absent entities so optional
// relations resolve to GraphQL null instead of an error. Bulk lookups
// simply omit missing keys from the result map.
type Store interface {
	// InsertLink persists a new link and returns its store key
	InsertLink(ctx context.Context, link *Link) (string, error)
	// FindLinks returns links matching the flattened filter clauses
	// (empty clauses match all), applying skip and first after
	// filtering. Result order is implementation defined.
	FindLinks(ctx context.Context, clauses []Clause, skip, first int32) ([]*Link, error)
	// LinksByID bulk-fetches links keyed by normalized id
	LinksByID(ctx context.Context, ids []string) (map[string]*Link, error)

	// InsertUser persists a new user and returns its store key
	InsertUser(ctx context.Context, user *User) (string, error)
	// UserByEmail finds one user by exact email match
	UserByEmail(ctx context.Context, email string) (*User, error)
	// UsersByID bulk-fetches users keyed by normalized id
	UsersByID(ctx context.Context, ids []string) (map[string]*User, error)

	// InsertVote persists a new vote and returns its store key
	InsertVote(ctx context.Context, vote *Vote) (string, error)
	// VotesByLink returns all votes referencing the given link
	VotesByLink(ctx context.Context, linkID string) ([]*Vote, error)
	// VotesByUser returns all votes cast by the given user
	VotesByUser(ctx context.Context, userID string) ([]*Vote, error)
}

// paginate applies skip/first semantics to an already-filtered slice
func paginate[T any](items []T, skip, first int32) []T {
	if skip > 0 {
		if int(skip) >= len(items) {
			return nil
		}
		items = items[skip:]
	}
	if first > 0 && int(first) < len(items) {
		items = items[:first]
	}
	return items
}
