package store

import (
	"context"
	"sync"
)

// Memory is an in-memory Store for tests and single-process development.
// Insertion order is preserved so list queries are deterministic.
type Memory struct {
	mu    sync.RWMutex
	links []*Link
	users []*User
	votes []*Vote

	linksByKey map[string]*Link
	usersByKey map[string]*User
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		linksByKey: make(map[string]*Link),
		usersByKey: make(map[string]*User),
	}
}

// InsertLink persists a new link and returns its store key
func (m *Memory) InsertLink(_ context.Context, link *Link) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *link
	stored.Key = NewKey()
	m.links = append(m.links, &stored)
	m.linksByKey[stored.Key] = &stored
	link.Key = stored.Key
	return stored.Key, nil
}

// FindLinks returns links matching the clauses, paginated
func (m *Memory) FindLinks(_ context.Context, clauses []Clause, skip, first int32) ([]*Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*Link
	for _, l := range m.links {
		if MatchLink(clauses, l) {
			matched = append(matched, l)
		}
	}
	return paginate(matched, skip, first), nil
}

// LinksByID bulk-fetches links keyed by normalized id
func (m *Memory) LinksByID(_ context.Context, ids []string) (map[string]*Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]*Link, len(ids))
	for _, id := range ids {
		if l, ok := m.linksByKey[NormalizeID(id)]; ok {
			out[NormalizeID(id)] = l
		}
	}
	return out, nil
}

// InsertUser persists a new user and returns its store key
func (m *Memory) InsertUser(_ context.Context, user *User) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *user
	stored.Key = NewKey()
	m.users = append(m.users, &stored)
	m.usersByKey[stored.Key] = &stored
	user.Key = stored.Key
	return stored.Key, nil
}

// UserByEmail finds one user by exact email match
func (m *Memory) UserByEmail(_ context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

// UsersByID bulk-fetches users keyed by normalized id
func (m *Memory) UsersByID(_ context.Context, ids []string) (map[string]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]*User, len(ids))
	for _, id := range ids {
		if u, ok := m.usersByKey[NormalizeID(id)]; ok {
			out[NormalizeID(id)] = u
		}
	}
	return out, nil
}

// InsertVote persists a new vote and returns its store key
func (m *Memory) InsertVote(_ context.Context, vote *Vote) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *vote
	stored.Key = NewKey()
	m.votes = append(m.votes, &stored)
	vote.Key = stored.Key
	return stored.Key, nil
}

// VotesByLink returns all votes referencing the given link
func (m *Memory) VotesByLink(_ context.Context, linkID string) ([]*Vote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id := NormalizeID(linkID)
	var out []*Vote
	for _, v := range m.votes {
		if v.LinkID == id {
			out = append(out, v)
		}
	}
	return out, nil
}

// VotesByUser returns all votes cast by the given user
func (m *Memory) VotesByUser(_ context.Context, userID string) ([]*Vote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id := NormalizeID(userID)
	var out []*Vote
	for _, v := range m.votes {
		if v.UserID == id {
			out = append(out, v)
		}
	}
	return out, nil
}

var _ Store = (*Memory)(nil)
