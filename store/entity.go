// Package store defines the LinkStream entities and the document-store
// contract used by the resolver layer. Two implementations exist: a
// JetStream KV backed store for production and an in-memory store for
// tests and single-process development.
package store

import (
	"strings"

	"github.com/google/uuid"
)

// Link is a posted URL with an optional author
type Link struct {
	// Key is the store-native id, assigned on insert
	Key string `json:"_key,omitempty"`
	// ID is the application-assigned fallback id
	ID          string `json:"id,omitempty"`
	URL         string `json:"url"`
	Description string `json:"description"`
	// PostedByID references the author, empty when the link was
	// posted anonymously
	PostedByID string `json:"postedById,omitempty"`
}

// CanonicalID returns the single client-facing id: the store-native key
// when present, the application-assigned id otherwise.
func (l *Link) CanonicalID() string {
	if l.Key != "" {
		return l.Key
	}
	return l.ID
}

// User is a registered account. The password is stored only as a bcrypt
// hash and never leaves the store layer.
type User struct {
	Key          string `json:"_key,omitempty"`
	ID           string `json:"id,omitempty"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash,omitempty"`
}

// CanonicalID returns the single client-facing id
func (u *User) CanonicalID() string {
	if u.Key != "" {
		return u.Key
	}
	return u.ID
}

// Vote records one user voting on one link. UserID is empty for
// anonymous votes.
type Vote struct {
	Key    string `json:"_key,omitempty"`
	ID     string `json:"id,omitempty"`
	UserID string `json:"userId,omitempty"`
	LinkID string `json:"linkId"`
}

// CanonicalID returns the single client-facing id
func (v *Vote) CanonicalID() string {
	if v.Key != "" {
		return v.Key
	}
	return v.ID
}

// NormalizeID canonicalizes an id for comparison and loader
// deduplication. Ids arrive in different shapes depending on call site
// (GraphQL ID arguments, stored foreign keys), so every lookup path must
// funnel through the same representation.
func NormalizeID(id string) string {
	return strings.TrimSpace(id)
}

// NewKey returns a fresh store key
func NewKey() string {
	return uuid.NewString()
}
