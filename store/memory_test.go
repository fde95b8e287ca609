package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryInsertLinkAssignsKey(t *testing.T) {
	m := NewMemory()
	link := &Link{URL: "http://graphql.org/", Description: "The Best Query Language"}

	key, err := m.InsertLink(context.Background(), link)

	require.NoError(t, err)
	assert.NotEmpty(t, key)
	assert.Equal(t, key, link.Key)
	assert.Equal(t, key, link.CanonicalID())
}

func TestMemoryFindLinksFilterAndPagination(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	seed := []*Link{
		{URL: "http://graphql.org/", Description: "The Best Query Language"},
		{URL: "http://dev.apollodata.com", Description: "Awesome GraphQL Client"},
		{URL: "http://example.com", Description: "Unrelated"},
	}
	for _, l := range seed {
		_, err := m.InsertLink(ctx, l)
		require.NoError(t, err)
	}

	t.Run("no filter returns all", func(t *testing.T) {
		links, err := m.FindLinks(ctx, nil, 0, 0)
		require.NoError(t, err)
		assert.Len(t, links, 3)
	})

	t.Run("disjunction of clauses", func(t *testing.T) {
		clauses := Flatten(&LinkFilter{
			DescriptionContains: strPtr("Query"),
			OR:                  []*LinkFilter{{URLContains: strPtr("apollo")}},
		})
		links, err := m.FindLinks(ctx, clauses, 0, 0)
		require.NoError(t, err)
		require.Len(t, links, 2)
		assert.Equal(t, "http://graphql.org/", links[0].URL)
		assert.Equal(t, "http://dev.apollodata.com", links[1].URL)
	})

	t.Run("skip and first apply after filtering", func(t *testing.T) {
		links, err := m.FindLinks(ctx, nil, 1, 1)
		require.NoError(t, err)
		require.Len(t, links, 1)
		assert.Equal(t, "http://dev.apollodata.com", links[0].URL)
	})

	t.Run("skip beyond result set", func(t *testing.T) {
		links, err := m.FindLinks(ctx, nil, 10, 0)
		require.NoError(t, err)
		assert.Empty(t, links)
	})
}

func TestMemoryLinksByID(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	l1 := &Link{URL: "http://a.example", Description: "a"}
	l2 := &Link{URL: "http://b.example", Description: "b"}
	_, err := m.InsertLink(ctx, l1)
	require.NoError(t, err)
	_, err = m.InsertLink(ctx, l2)
	require.NoError(t, err)

	got, err := m.LinksByID(ctx, []string{l1.Key, "  " + l2.Key + "  ", "missing"})

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, l1.URL, got[l1.Key].URL)
	// Whitespace-padded ids normalize to the same key
	assert.Equal(t, l2.URL, got[l2.Key].URL)
	_, present := got["missing"]
	assert.False(t, present)
}

func TestMemoryUserByEmail(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	u := &User{Name: "Ada", Email: "ada@example.com", PasswordHash: "x"}
	_, err := m.InsertUser(ctx, u)
	require.NoError(t, err)

	found, err := m.UserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, u.Key, found.Key)

	missing, err := m.UserByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryVotesByRelation(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	link := &Link{URL: "http://a.example", Description: "a"}
	_, err := m.InsertLink(ctx, link)
	require.NoError(t, err)

	user := &User{Name: "Ada", Email: "ada@example.com"}
	_, err = m.InsertUser(ctx, user)
	require.NoError(t, err)

	// One signed vote and one anonymous vote on the same link
	_, err = m.InsertVote(ctx, &Vote{UserID: user.Key, LinkID: link.Key})
	require.NoError(t, err)
	_, err = m.InsertVote(ctx, &Vote{LinkID: link.Key})
	require.NoError(t, err)

	byLink, err := m.VotesByLink(ctx, link.Key)
	require.NoError(t, err)
	assert.Len(t, byLink, 2)

	byUser, err := m.VotesByUser(ctx, user.Key)
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, user.Key, byUser[0].UserID)
}

func TestCanonicalIDPrefersStoreKey(t *testing.T) {
	l := &Link{ID: "app-id"}
	assert.Equal(t, "app-id", l.CanonicalID())

	l.Key = "store-key"
	assert.Equal(t, "store-key", l.CanonicalID())

	v := &Vote{ID: "app-id"}
	assert.Equal(t, "app-id", v.CanonicalID())

	u := &User{Key: "k", ID: "i"}
	assert.Equal(t, "k", u.CanonicalID())
}

func TestNormalizeID(t *testing.T) {
	assert.Equal(t, "abc", NormalizeID(" abc "))
	assert.Equal(t, "abc", NormalizeID("abc"))
	assert.Equal(t, "", NormalizeID("  "))
}
