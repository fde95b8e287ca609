package graphql

import (
	"context"

	graphqlgo "github.com/graph-gophers/graphql-go"

	"github.com/c360/linkstream/store"
)

// Entity resolvers. Ids are always the canonical id, store-native key
// preferred over the application-assigned one.

type linkResolver struct {
	r    *Resolver
	link *store.Link
}

func (l *linkResolver) ID() graphqlgo.ID {
	return graphqlgo.ID(l.link.CanonicalID())
}

func (l *linkResolver) URL() string {
	return l.link.URL
}

func (l *linkResolver) Description() string {
	return l.link.Description
}

// PostedBy resolves the link's author, null for anonymous links
func (l *linkResolver) PostedBy(ctx context.Context) (*userResolver, error) {
	user, err := l.r.loadUser(ctx, l.link.PostedByID)
	if err != nil {
		return nil, l.r.storeError("Link.postedBy", err)
	}
	if user == nil {
		return nil, nil
	}
	return &userResolver{r: l.r, user: user}, nil
}

func (l *linkResolver) Votes(ctx context.Context) ([]*voteResolver, error) {
	votes, err := l.r.store.VotesByLink(ctx, l.link.CanonicalID())
	if err != nil {
		return []*voteResolver{}, l.r.storeError("Link.votes", err)
	}
	return newVoteResolvers(l.r, votes), nil
}

type userResolver struct {
	r    *Resolver
	user *store.User
}

func (u *userResolver) ID() graphqlgo.ID {
	return graphqlgo.ID(u.user.CanonicalID())
}

func (u *userResolver) Name() string {
	return u.user.Name
}

func (u *userResolver) Email() *string {
	if u.user.Email == "" {
		return nil
	}
	return &u.user.Email
}

func (u *userResolver) Votes(ctx context.Context) ([]*voteResolver, error) {
	votes, err := u.r.store.VotesByUser(ctx, u.user.CanonicalID())
	if err != nil {
		return []*voteResolver{}, u.r.storeError("User.votes", err)
	}
	return newVoteResolvers(u.r, votes), nil
}

type voteResolver struct {
	r    *Resolver
	vote *store.Vote
}

func (v *voteResolver) ID() graphqlgo.ID {
	return graphqlgo.ID(v.vote.CanonicalID())
}

// User resolves the voter, null for anonymous votes
func (v *voteResolver) User(ctx context.Context) (*userResolver, error) {
	user, err := v.r.loadUser(ctx, v.vote.UserID)
	if err != nil {
		return nil, v.r.storeError("Vote.user", err)
	}
	if user == nil {
		return nil, nil
	}
	return &userResolver{r: v.r, user: user}, nil
}

func (v *voteResolver) Link(ctx context.Context) (*linkResolver, error) {
	link, err := v.r.loadLink(ctx, v.vote.LinkID)
	if err != nil {
		return nil, v.r.storeError("Vote.link", err)
	}
	if link == nil {
		// Votes always reference an existing link, a missing one
		// means the store lost it
		return nil, wrapError(errorMissingLink, "Vote.link")
	}
	return &linkResolver{r: v.r, link: link}, nil
}

func newVoteResolvers(r *Resolver, votes []*store.Vote) []*voteResolver {
	out := make([]*voteResolver, len(votes))
	for i, v := range votes {
		out[i] = &voteResolver{r: r, vote: v}
	}
	return out
}

type signinPayloadResolver struct {
	token *string
	user  *userResolver
}

func (s *signinPayloadResolver) Token() *string {
	return s.token
}

func (s *signinPayloadResolver) User() *userResolver {
	return s.user
}

type linkSubscriptionPayloadResolver struct {
	r        *Resolver
	mutation string
	node     *store.Link
}

func (p *linkSubscriptionPayloadResolver) Mutation() string {
	return p.mutation
}

func (p *linkSubscriptionPayloadResolver) Node() *linkResolver {
	if p.node == nil {
		return nil
	}
	return &linkResolver{r: p.r, link: p.node}
}
