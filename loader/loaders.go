package loader

import (
	"context"

	"github.com/c360/linkstream/store"
)

type contextKey struct{}

// Loaders bundles the per-request loaders handed to resolvers
type Loaders struct {
	Users *Loader[*store.User]
	Links *Loader[*store.Link]
}

// NewLoaders builds a fresh set of loaders over the store. Call once
// per incoming request.
func NewLoaders(st store.Store) *Loaders {
	return &Loaders{
		Users: New(Config[*store.User]{
			Fetch: func(ctx context.Context, keys []string) ([]*store.User, []error) {
				byID, err := st.UsersByID(ctx, keys)
				if err != nil {
					return nil, []error{err}
				}
				users := make([]*store.User, len(keys))
				for i, key := range keys {
					users[i] = byID[store.NormalizeID(key)]
				}
				return users, nil
			},
		}),
		Links: New(Config[*store.Link]{
			Fetch: func(ctx context.Context, keys []string) ([]*store.Link, []error) {
				byID, err := st.LinksByID(ctx, keys)
				if err != nil {
					return nil, []error{err}
				}
				links := make([]*store.Link, len(keys))
				for i, key := range keys {
					links[i] = byID[store.NormalizeID(key)]
				}
				return links, nil
			},
		}),
	}
}

// LoadUser fetches one user by id through the batching loader. An
// unknown id yields (nil, nil).
func (l *Loaders) LoadUser(ctx context.Context, id string) (*store.User, error) {
	return l.Users.Load(ctx, store.NormalizeID(id))
}

// LoadLink fetches one link by id through the batching loader
func (l *Loaders) LoadLink(ctx context.Context, id string) (*store.Link, error) {
	return l.Links.Load(ctx, store.NormalizeID(id))
}

// WithContext attaches the loaders to a request context
func WithContext(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, contextKey{}, loaders)
}

// FromContext retrieves the request's loaders, nil when absent
func FromContext(ctx context.Context) *Loaders {
	loaders, _ := ctx.Value(contextKey{}).(*Loaders)
	return loaders
}
