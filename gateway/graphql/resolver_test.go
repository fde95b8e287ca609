package graphql

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	graphqlgo "github.com/graph-gophers/graphql-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/linkstream/auth"
	"github.com/c360/linkstream/eventbus"
	"github.com/c360/linkstream/loader"
	"github.com/c360/linkstream/store"
)

type testGateway struct {
	store  *store.Memory
	bus    *eventbus.Memory
	res    *Resolver
	schema *graphqlgo.Schema
}

func newTestGateway(t *testing.T, opts ...ResolverOption) *testGateway {
	t.Helper()

	st := store.NewMemory()
	bus := eventbus.NewMemory()
	t.Cleanup(func() { bus.Close() })

	res, err := NewResolver(st, bus, opts...)
	require.NoError(t, err)

	schema, err := graphqlgo.ParseSchema(Schema, res,
		graphqlgo.MaxDepth(10),
		graphqlgo.UseStringDescriptions())
	require.NoError(t, err)

	return &testGateway{store: st, bus: bus, res: res, schema: schema}
}

// exec runs a query with fresh per-request loaders, the way the HTTP
// middleware would
func (g *testGateway) exec(ctx context.Context, query string, vars map[string]interface{}) *graphqlgo.Response {
	ctx = loader.WithContext(ctx, loader.NewLoaders(g.store))
	return g.schema.Exec(ctx, query, "", vars)
}

func (g *testGateway) seedUser(t *testing.T, name, email, password string) *store.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	u := &store.User{Name: name, Email: email, PasswordHash: hash}
	_, err = g.store.InsertUser(context.Background(), u)
	require.NoError(t, err)
	return u
}

func (g *testGateway) seedLink(t *testing.T, url, description, postedByID string) *store.Link {
	t.Helper()
	l := &store.Link{URL: url, Description: description, PostedByID: postedByID}
	_, err := g.store.InsertLink(context.Background(), l)
	require.NoError(t, err)
	return l
}

func TestAllLinks(t *testing.T) {
	g := newTestGateway(t)
	g.seedLink(t, "http://graphql.org/", "The Best Query Language", "")
	g.seedLink(t, "http://dev.apollodata.com", "Awesome GraphQL Client", "")

	resp := g.exec(context.Background(), `{
		allLinks { id url description }
	}`, nil)
	require.Empty(t, resp.Errors)

	var data struct {
		AllLinks []struct {
			ID          string `json:"id"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"allLinks"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	require.Len(t, data.AllLinks, 2)
	assert.Equal(t, "http://graphql.org/", data.AllLinks[0].URL)
	assert.NotEmpty(t, data.AllLinks[0].ID)
}

func TestAllLinksFilter(t *testing.T) {
	g := newTestGateway(t)
	g.seedLink(t, "http://graphql.org/", "The Best Query Language", "")
	g.seedLink(t, "http://dev.apollodata.com", "Awesome GraphQL Client", "")
	g.seedLink(t, "http://example.com", "unrelated", "")

	// description OR url, matching the top-level-plus-OR flattening
	resp := g.exec(context.Background(), `query($filter: LinkFilter) {
		allLinks(filter: $filter) { url }
	}`, map[string]interface{}{
		"filter": map[string]interface{}{
			"description_contains": "Query",
			"OR": []interface{}{
				map[string]interface{}{"url_contains": "apollo"},
			},
		},
	})
	require.Empty(t, resp.Errors)

	var data struct {
		AllLinks []struct {
			URL string `json:"url"`
		} `json:"allLinks"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	require.Len(t, data.AllLinks, 2)
	assert.Equal(t, "http://graphql.org/", data.AllLinks[0].URL)
	assert.Equal(t, "http://dev.apollodata.com", data.AllLinks[1].URL)
}

func TestAllLinksPagination(t *testing.T) {
	g := newTestGateway(t)
	g.seedLink(t, "http://a.example", "a", "")
	g.seedLink(t, "http://b.example", "b", "")
	g.seedLink(t, "http://c.example", "c", "")

	resp := g.exec(context.Background(), `{
		allLinks(skip: 1, first: 1) { url }
	}`, nil)
	require.Empty(t, resp.Errors)

	var data struct {
		AllLinks []struct {
			URL string `json:"url"`
		} `json:"allLinks"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	require.Len(t, data.AllLinks, 1)
	assert.Equal(t, "http://b.example", data.AllLinks[0].URL)
}

func TestCreateLinkValidation(t *testing.T) {
	g := newTestGateway(t)

	resp := g.exec(context.Background(), `mutation {
		createLink(url: "not a url", description: "bad") { id }
	}`, nil)

	require.Len(t, resp.Errors, 1)
	require.NotNil(t, resp.Errors[0].Extensions)
	assert.Equal(t, "INVALID_INPUT", resp.Errors[0].Extensions["code"])
	assert.Equal(t, "url", resp.Errors[0].Extensions["field"])
}

func TestCreateLink(t *testing.T) {
	g := newTestGateway(t)

	sub, err := g.bus.Subscribe(TopicLink)
	require.NoError(t, err)

	resp := g.exec(context.Background(), `mutation {
		createLink(url: "http://example.com", description: "a link") { id url }
	}`, nil)
	require.Empty(t, resp.Errors)

	var data struct {
		CreateLink struct {
			ID  string `json:"id"`
			URL string `json:"url"`
		} `json:"createLink"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.NotEmpty(t, data.CreateLink.ID)
	assert.Equal(t, "http://example.com", data.CreateLink.URL)

	// The mutation announces the new link on the Link topic
	select {
	case ev := <-sub.C():
		assert.Equal(t, eventbus.MutationCreated, ev.Mutation)
		link, ok := ev.Node.(*store.Link)
		require.True(t, ok)
		assert.Equal(t, data.CreateLink.ID, link.CanonicalID())
	case <-time.After(time.Second):
		t.Fatal("no event published for created link")
	}
}

func TestCreateLinkAttachesAuthor(t *testing.T) {
	g := newTestGateway(t)
	alice := g.seedUser(t, "Alice", "alice@example.com", "secret")

	ctx := auth.WithUser(context.Background(), alice)
	resp := g.exec(ctx, `mutation {
		createLink(url: "http://example.com", description: "by alice") {
			postedBy { id name }
		}
	}`, nil)
	require.Empty(t, resp.Errors)

	var data struct {
		CreateLink struct {
			PostedBy *struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"postedBy"`
		} `json:"createLink"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	require.NotNil(t, data.CreateLink.PostedBy)
	assert.Equal(t, alice.CanonicalID(), data.CreateLink.PostedBy.ID)
	assert.Equal(t, "Alice", data.CreateLink.PostedBy.Name)
}

func TestRoundTripCanonicalID(t *testing.T) {
	g := newTestGateway(t)

	resp := g.exec(context.Background(), `mutation {
		createLink(url: "http://example.com", description: "round trip") { id }
	}`, nil)
	require.Empty(t, resp.Errors)

	var created struct {
		CreateLink struct {
			ID string `json:"id"`
		} `json:"createLink"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &created))

	resp = g.exec(context.Background(), `{ allLinks { id } }`, nil)
	require.Empty(t, resp.Errors)

	var queried struct {
		AllLinks []struct {
			ID string `json:"id"`
		} `json:"allLinks"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &queried))
	require.Len(t, queried.AllLinks, 1)
	assert.Equal(t, created.CreateLink.ID, queried.AllLinks[0].ID)
}

func TestCreateVote(t *testing.T) {
	g := newTestGateway(t)
	alice := g.seedUser(t, "Alice", "alice@example.com", "secret")
	link := g.seedLink(t, "http://example.com", "a link", "")

	ctx := auth.WithUser(context.Background(), alice)
	resp := g.exec(ctx, `mutation($linkId: ID!) {
		createVote(linkId: $linkId) {
			id
			user { name }
			link { url }
		}
	}`, map[string]interface{}{"linkId": link.CanonicalID()})
	require.Empty(t, resp.Errors)

	var data struct {
		CreateVote struct {
			ID   string `json:"id"`
			User *struct {
				Name string `json:"name"`
			} `json:"user"`
			Link struct {
				URL string `json:"url"`
			} `json:"link"`
		} `json:"createVote"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.NotEmpty(t, data.CreateVote.ID)
	require.NotNil(t, data.CreateVote.User)
	assert.Equal(t, "Alice", data.CreateVote.User.Name)
	assert.Equal(t, "http://example.com", data.CreateVote.Link.URL)
}

func TestCreateVoteAnonymous(t *testing.T) {
	g := newTestGateway(t)
	link := g.seedLink(t, "http://example.com", "a link", "")

	resp := g.exec(context.Background(), `mutation($linkId: ID!) {
		createVote(linkId: $linkId) { id user { name } }
	}`, map[string]interface{}{"linkId": link.CanonicalID()})
	require.Empty(t, resp.Errors)

	var data struct {
		CreateVote struct {
			ID   string          `json:"id"`
			User json.RawMessage `json:"user"`
		} `json:"createVote"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.NotEmpty(t, data.CreateVote.ID)
	assert.Equal(t, "null", string(data.CreateVote.User))
}

func TestCreateVoteUnknownLink(t *testing.T) {
	g := newTestGateway(t)

	resp := g.exec(context.Background(), `mutation {
		createVote(linkId: "no-such-link") { id }
	}`, nil)

	require.Len(t, resp.Errors, 1)
	require.NotNil(t, resp.Errors[0].Extensions)
	assert.Equal(t, "linkId", resp.Errors[0].Extensions["field"])
}

func TestCreateUserAndSignin(t *testing.T) {
	g := newTestGateway(t)

	resp := g.exec(context.Background(), `mutation {
		createUser(name: "Alice", authProvider: {
			email: { email: "alice@example.com", password: "secret" }
		}) { id name email }
	}`, nil)
	require.Empty(t, resp.Errors)

	var created struct {
		CreateUser struct {
			ID    string  `json:"id"`
			Name  string  `json:"name"`
			Email *string `json:"email"`
		} `json:"createUser"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	assert.NotEmpty(t, created.CreateUser.ID)
	require.NotNil(t, created.CreateUser.Email)
	assert.Equal(t, "alice@example.com", *created.CreateUser.Email)

	// Passwords are stored hashed, never verbatim
	stored, err := g.store.UserByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotEqual(t, "secret", stored.PasswordHash)

	resp = g.exec(context.Background(), `mutation {
		signinUser(email: { email: "alice@example.com", password: "secret" }) {
			token
			user { id }
		}
	}`, nil)
	require.Empty(t, resp.Errors)

	var signin struct {
		SigninUser *struct {
			Token *string `json:"token"`
			User  *struct {
				ID string `json:"id"`
			} `json:"user"`
		} `json:"signinUser"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &signin))
	require.NotNil(t, signin.SigninUser)
	require.NotNil(t, signin.SigninUser.Token)
	assert.Equal(t, "token-alice@example.com", *signin.SigninUser.Token)
	assert.Equal(t, created.CreateUser.ID, signin.SigninUser.User.ID)
}

func TestSigninFailureYieldsNoPayload(t *testing.T) {
	g := newTestGateway(t)
	g.seedUser(t, "Alice", "alice@example.com", "secret")

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "wrong password", email: "alice@example.com", password: "nope"},
		{name: "unknown email", email: "bob@example.com", password: "secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := g.exec(context.Background(), `mutation($email: String!, $password: String!) {
				signinUser(email: { email: $email, password: $password }) { token }
			}`, map[string]interface{}{
				"email":    tt.email,
				"password": tt.password,
			})
			require.Empty(t, resp.Errors)

			var data struct {
				SigninUser json.RawMessage `json:"signinUser"`
			}
			require.NoError(t, json.Unmarshal(resp.Data, &data))
			assert.Equal(t, "null", string(data.SigninUser))
		})
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	g := newTestGateway(t)
	g.seedUser(t, "Alice", "alice@example.com", "secret")

	resp := g.exec(context.Background(), `mutation {
		createUser(name: "Imposter", authProvider: {
			email: { email: "alice@example.com", password: "other" }
		}) { id }
	}`, nil)

	require.Len(t, resp.Errors, 1)
	require.NotNil(t, resp.Errors[0].Extensions)
	assert.Equal(t, "email", resp.Errors[0].Extensions["field"])
}

func TestUserVotesRelation(t *testing.T) {
	g := newTestGateway(t)
	alice := g.seedUser(t, "Alice", "alice@example.com", "secret")
	link := g.seedLink(t, "http://example.com", "a link", alice.CanonicalID())

	vote := &store.Vote{UserID: alice.CanonicalID(), LinkID: link.CanonicalID()}
	_, err := g.store.InsertVote(context.Background(), vote)
	require.NoError(t, err)

	resp := g.exec(context.Background(), `{
		allLinks {
			votes {
				user { name votes { id } }
			}
		}
	}`, nil)
	require.Empty(t, resp.Errors)

	var data struct {
		AllLinks []struct {
			Votes []struct {
				User *struct {
					Name  string `json:"name"`
					Votes []struct {
						ID string `json:"id"`
					} `json:"votes"`
				} `json:"user"`
			} `json:"votes"`
		} `json:"allLinks"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	require.Len(t, data.AllLinks, 1)
	require.Len(t, data.AllLinks[0].Votes, 1)
	require.NotNil(t, data.AllLinks[0].Votes[0].User)
	assert.Equal(t, "Alice", data.AllLinks[0].Votes[0].User.Name)
	require.Len(t, data.AllLinks[0].Votes[0].User.Votes, 1)
	assert.Equal(t, vote.CanonicalID(), data.AllLinks[0].Votes[0].User.Votes[0].ID)
}

func TestSubscriptionReceivesCreatedLinks(t *testing.T) {
	g := newTestGateway(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := g.res.Link(ctx, struct{ Filter *linkSubscriptionFilterInput }{})
	require.NoError(t, err)

	resp := g.exec(context.Background(), `mutation {
		createLink(url: "http://example.com", description: "announced") { id }
	}`, nil)
	require.Empty(t, resp.Errors)

	select {
	case payload := <-ch:
		require.NotNil(t, payload)
		assert.Equal(t, eventbus.MutationCreated, payload.Mutation())
		require.NotNil(t, payload.Node())
		assert.Equal(t, "http://example.com", payload.Node().URL())
	case <-time.After(2 * time.Second):
		t.Fatal("subscription received no payload")
	}
}

func TestSubscriptionMutationFilter(t *testing.T) {
	g := newTestGateway(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deleted := []string{eventbus.MutationDeleted}
	ch, err := g.res.Link(ctx, struct{ Filter *linkSubscriptionFilterInput }{
		Filter: &linkSubscriptionFilterInput{Mutation_in: &deleted},
	})
	require.NoError(t, err)

	resp := g.exec(context.Background(), `mutation {
		createLink(url: "http://example.com", description: "filtered out") { id }
	}`, nil)
	require.Empty(t, resp.Errors)

	select {
	case payload := <-ch:
		t.Fatalf("filtered subscription received %v", payload.Mutation())
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscriptionEndsOnCancel(t *testing.T) {
	g := newTestGateway(t)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := g.res.Link(ctx, struct{ Filter *linkSubscriptionFilterInput }{})
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should close after cancellation")
	case <-time.After(2 * time.Second):
		t.Fatal("subscription channel did not close")
	}
}
