package graphql

import (
	"context"
	"log/slog"
	"net/url"

	graphqlgo "github.com/graph-gophers/graphql-go"

	"github.com/c360/linkstream/auth"
	"github.com/c360/linkstream/errors"
	"github.com/c360/linkstream/eventbus"
	"github.com/c360/linkstream/loader"
	"github.com/c360/linkstream/store"
)

// TopicLink is the event bus topic carrying link mutations
const TopicLink = "Link"

// Resolver is the root resolver. One instance serves all requests;
// per-request state (loaders, authenticated user) travels in the
// context.
type Resolver struct {
	store   store.Store
	bus     eventbus.Bus
	logger  *slog.Logger
	metrics *Metrics

	// propagateStoreErrors surfaces store failures to the client as
	// classified errors instead of logging and returning null
	propagateStoreErrors bool
	subscriptionBuffer   int
}

// ResolverOption configures the root resolver
type ResolverOption func(*Resolver)

// WithResolverLogger sets the resolver logger
func WithResolverLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger.With("component", "resolver")
		}
	}
}

// WithMetrics attaches request metrics
func WithMetrics(m *Metrics) ResolverOption {
	return func(r *Resolver) { r.metrics = m }
}

// WithStoreErrorPropagation controls whether store failures reach the
// client. Disabled, they are logged and resolved as null.
func WithStoreErrorPropagation(enabled bool) ResolverOption {
	return func(r *Resolver) { r.propagateStoreErrors = enabled }
}

// WithSubscriptionBuffer sets the per-subscription channel buffer
func WithSubscriptionBuffer(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.subscriptionBuffer = n
		}
	}
}

// NewResolver creates the root resolver
func NewResolver(st store.Store, bus eventbus.Bus, opts ...ResolverOption) (*Resolver, error) {
	if st == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Resolver", "NewResolver",
			"store is required")
	}
	if bus == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Resolver", "NewResolver",
			"event bus is required")
	}
	r := &Resolver{
		store:                st,
		bus:                  bus,
		logger:               slog.Default().With("component", "resolver"),
		propagateStoreErrors: true,
		subscriptionBuffer:   eventbus.DefaultBuffer,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Input types. Field names follow the SDL, matched case-insensitively
// by the engine.

type linkFilterInput struct {
	Or                   *[]linkFilterInput
	Description_contains *string
	Url_contains         *string
}

type linkSubscriptionFilterInput struct {
	Mutation_in *[]string
}

type authProviderSignupData struct {
	Email *authProviderEmail
}

type authProviderEmail struct {
	Email    string
	Password string
}

// toStoreFilter converts the wire filter tree into the store's form
func toStoreFilter(in *linkFilterInput) *store.LinkFilter {
	if in == nil {
		return nil
	}
	f := &store.LinkFilter{
		DescriptionContains: in.Description_contains,
		URLContains:         in.Url_contains,
	}
	if in.Or != nil {
		for i := range *in.Or {
			f.OR = append(f.OR, toStoreFilter(&(*in.Or)[i]))
		}
	}
	return f
}

// AllLinks lists links matching the filter, with skip/first pagination
// applied after filtering
func (r *Resolver) AllLinks(ctx context.Context, args struct {
	Filter *linkFilterInput
	Skip   *int32
	First  *int32
}) ([]*linkResolver, error) {
	r.metrics.observeRequest("allLinks")

	clauses := store.Flatten(toStoreFilter(args.Filter))

	var skip, first int32
	if args.Skip != nil {
		skip = *args.Skip
	}
	if args.First != nil {
		first = *args.First
	}

	links, err := r.store.FindLinks(ctx, clauses, skip, first)
	if err != nil {
		return []*linkResolver{}, r.storeError("allLinks", err)
	}

	out := make([]*linkResolver, len(links))
	for i, l := range links {
		out[i] = &linkResolver{r: r, link: l}
	}
	return out, nil
}

// CreateLink validates the URL, persists the link with the
// authenticated user as author, and announces it on the Link topic
func (r *Resolver) CreateLink(ctx context.Context, args struct {
	URL         string
	Description string
}) (*linkResolver, error) {
	r.metrics.observeRequest("createLink")

	if !validURL(args.URL) {
		r.metrics.observeError("createLink")
		return nil, errors.NewValidation("url", "invalid url")
	}

	link := &store.Link{
		URL:         args.URL,
		Description: args.Description,
	}
	if user := auth.UserFromContext(ctx); user != nil {
		link.PostedByID = user.CanonicalID()
	}

	if _, err := r.store.InsertLink(ctx, link); err != nil {
		return nil, r.storeError("createLink", err)
	}

	if l := loader.FromContext(ctx); l != nil {
		l.Links.Prime(link.Key, link)
	}

	if err := r.bus.Publish(TopicLink, eventbus.Event{
		Mutation: eventbus.MutationCreated,
		Node:     link,
	}); err != nil {
		// Event delivery is fire-and-forget, the mutation itself
		// already succeeded
		r.logger.Warn("Failed to publish link event", "error", err)
	} else {
		r.metrics.observeEvent(TopicLink)
	}

	return &linkResolver{r: r, link: link}, nil
}

// CreateVote records a vote on an existing link. The voter is the
// authenticated user, null for anonymous requests.
func (r *Resolver) CreateVote(ctx context.Context, args struct {
	LinkID graphqlgo.ID
}) (*voteResolver, error) {
	r.metrics.observeRequest("createVote")

	linkID := store.NormalizeID(string(args.LinkID))
	link, err := r.loadLink(ctx, linkID)
	if err != nil {
		return nil, r.storeError("createVote", err)
	}
	if link == nil {
		r.metrics.observeError("createVote")
		return nil, errors.NewValidation("linkId", "link does not exist")
	}

	vote := &store.Vote{LinkID: link.CanonicalID()}
	if user := auth.UserFromContext(ctx); user != nil {
		vote.UserID = user.CanonicalID()
	}

	if _, err := r.store.InsertVote(ctx, vote); err != nil {
		return nil, r.storeError("createVote", err)
	}
	return &voteResolver{r: r, vote: vote}, nil
}

// CreateUser registers a new user with a hashed password
func (r *Resolver) CreateUser(ctx context.Context, args struct {
	Name         string
	AuthProvider authProviderSignupData
}) (*userResolver, error) {
	r.metrics.observeRequest("createUser")

	creds := args.AuthProvider.Email
	if creds == nil {
		r.metrics.observeError("createUser")
		return nil, errors.NewValidation("authProvider", "email credentials are required")
	}

	existing, err := r.store.UserByEmail(ctx, creds.Email)
	if err != nil {
		return nil, r.storeError("createUser", err)
	}
	if existing != nil {
		r.metrics.observeError("createUser")
		return nil, errors.NewValidation("email", "email already registered")
	}

	hash, err := auth.HashPassword(creds.Password)
	if err != nil {
		r.metrics.observeError("createUser")
		return nil, wrapError(err, "createUser")
	}

	user := &store.User{
		Name:         args.Name,
		Email:        creds.Email,
		PasswordHash: hash,
	}
	if _, err := r.store.InsertUser(ctx, user); err != nil {
		return nil, r.storeError("createUser", err)
	}

	if l := loader.FromContext(ctx); l != nil {
		l.Users.Prime(user.Key, user)
	}
	return &userResolver{r: r, user: user}, nil
}

// SigninUser checks the credentials and issues a bearer token. Any
// failure yields a null payload; the reason is only logged server-side
// so the response does not leak which part was wrong.
func (r *Resolver) SigninUser(ctx context.Context, args struct {
	Email *authProviderEmail
}) (*signinPayloadResolver, error) {
	r.metrics.observeRequest("signinUser")

	if args.Email == nil {
		r.logger.Warn("Signin attempted without credentials")
		return nil, nil
	}

	user, err := r.store.UserByEmail(ctx, args.Email.Email)
	if err != nil {
		return nil, r.storeError("signinUser", err)
	}
	if user == nil {
		r.logger.Warn("Signin failed", "reason", "unknown email")
		return nil, nil
	}
	if !auth.CheckPassword(user.PasswordHash, args.Email.Password) {
		r.logger.Warn("Signin failed", "reason", "password mismatch")
		return nil, nil
	}

	token := auth.Token(user.Email)
	return &signinPayloadResolver{
		token: &token,
		user:  &userResolver{r: r, user: user},
	}, nil
}

// Link streams link mutation events to a subscriber, optionally
// filtered by mutation kind. The stream ends when the client
// disconnects.
func (r *Resolver) Link(ctx context.Context, args struct {
	Filter *linkSubscriptionFilterInput
}) (<-chan *linkSubscriptionPayloadResolver, error) {
	sub, err := r.bus.Subscribe(TopicLink)
	if err != nil {
		return nil, wrapError(err, "subscription.Link")
	}
	r.metrics.subscriptionStarted()

	out := make(chan *linkSubscriptionPayloadResolver, r.subscriptionBuffer)
	go func() {
		defer r.metrics.subscriptionEnded()
		defer sub.Unsubscribe()
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub.C():
				if !ok {
					return
				}
				if !wantsMutation(args.Filter, ev.Mutation) {
					continue
				}
				link, ok := r.decodeLink(ev)
				if !ok {
					continue
				}
				payload := &linkSubscriptionPayloadResolver{
					r:        r,
					mutation: ev.Mutation,
					node:     link,
				}
				select {
				case out <- payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// wantsMutation applies the mutation_in filter, absent meaning all
func wantsMutation(f *linkSubscriptionFilterInput, mutation string) bool {
	if f == nil || f.Mutation_in == nil {
		return true
	}
	for _, m := range *f.Mutation_in {
		if m == mutation {
			return true
		}
	}
	return false
}

func (r *Resolver) decodeLink(ev eventbus.Event) (*store.Link, bool) {
	if link, ok := ev.Node.(*store.Link); ok {
		return link, true
	}
	var link store.Link
	if err := ev.DecodeNode(&link); err != nil {
		r.logger.Warn("Discarding undecodable link event", "error", err)
		return nil, false
	}
	return &link, true
}

// loadUser fetches a user by id, batching through the request's
// loaders when present
func (r *Resolver) loadUser(ctx context.Context, id string) (*store.User, error) {
	if id == "" {
		return nil, nil
	}
	if l := loader.FromContext(ctx); l != nil {
		return l.LoadUser(ctx, id)
	}
	users, err := r.store.UsersByID(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	return users[store.NormalizeID(id)], nil
}

// loadLink fetches a link by id, batching through the request's
// loaders when present
func (r *Resolver) loadLink(ctx context.Context, id string) (*store.Link, error) {
	if id == "" {
		return nil, nil
	}
	if l := loader.FromContext(ctx); l != nil {
		return l.LoadLink(ctx, id)
	}
	links, err := r.store.LinksByID(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	return links[store.NormalizeID(id)], nil
}

// storeError applies the configured store failure policy
func (r *Resolver) storeError(operation string, err error) error {
	r.metrics.observeError(operation)
	if r.propagateStoreErrors {
		return wrapError(err, operation)
	}
	r.logger.Error("Store operation failed", "operation", operation, "error", err)
	return nil
}

// validURL accepts only absolute URLs
func validURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.IsAbs()
}
