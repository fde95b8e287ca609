//go:build integration

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVLinkRoundTrip(t *testing.T) {
	client := getSharedNATSClient(t)
	ctx := t.Context()

	kv, err := NewKV(ctx, client)
	require.NoError(t, err)

	link := &Link{URL: "https://kv-roundtrip.example.com", Description: "kv round trip"}
	key, err := kv.InsertLink(ctx, link)
	require.NoError(t, err)
	require.NotEmpty(t, key)
	assert.Equal(t, key, link.Key)

	byID, err := kv.LinksByID(ctx, []string{key})
	require.NoError(t, err)
	require.Contains(t, byID, key)
	assert.Equal(t, "kv round trip", byID[key].Description)
	assert.Equal(t, key, byID[key].CanonicalID())

	// absent id is simply missing from the result map
	byID, err = kv.LinksByID(ctx, []string{"no-such-link"})
	require.NoError(t, err)
	assert.Empty(t, byID)
}

func TestKVFindLinksFilter(t *testing.T) {
	client := getSharedNATSClient(t)
	ctx := t.Context()

	kv, err := NewKV(ctx, client)
	require.NoError(t, err)

	// unique marker keeps this test independent of documents written
	// by other tests sharing the container
	marker := "filter-" + NewKey()
	for _, desc := range []string{marker + " alpha", marker + " beta", "unrelated"} {
		_, err := kv.InsertLink(ctx, &Link{URL: "https://example.com", Description: desc})
		require.NoError(t, err)
	}

	contains := marker
	clauses := Flatten(&LinkFilter{DescriptionContains: &contains})

	links, err := kv.FindLinks(ctx, clauses, 0, 0)
	require.NoError(t, err)
	require.Len(t, links, 2)

	// skip/first apply after filtering
	links, err = kv.FindLinks(ctx, clauses, 1, 1)
	require.NoError(t, err)
	assert.Len(t, links, 1)
}

func TestKVUserByEmail(t *testing.T) {
	client := getSharedNATSClient(t)
	ctx := t.Context()

	kv, err := NewKV(ctx, client)
	require.NoError(t, err)

	email := NewKey() + "@example.com"
	user := &User{Name: "Alice", Email: email, PasswordHash: "hashed"}
	key, err := kv.InsertUser(ctx, user)
	require.NoError(t, err)

	found, err := kv.UserByEmail(ctx, email)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, key, found.Key)
	assert.Equal(t, "Alice", found.Name)

	missing, err := kv.UserByEmail(ctx, "nobody-"+email)
	require.NoError(t, err)
	assert.Nil(t, missing)

	byID, err := kv.UsersByID(ctx, []string{key})
	require.NoError(t, err)
	require.Contains(t, byID, key)
	assert.Equal(t, email, byID[key].Email)
}

func TestKVVoteRelations(t *testing.T) {
	client := getSharedNATSClient(t)
	ctx := t.Context()

	kv, err := NewKV(ctx, client)
	require.NoError(t, err)

	userKey, err := kv.InsertUser(ctx, &User{Name: "Bob", Email: NewKey() + "@example.com"})
	require.NoError(t, err)
	linkKey, err := kv.InsertLink(ctx, &Link{URL: "https://example.com", Description: "voted on"})
	require.NoError(t, err)

	_, err = kv.InsertVote(ctx, &Vote{UserID: userKey, LinkID: linkKey})
	require.NoError(t, err)
	// anonymous vote on the same link
	_, err = kv.InsertVote(ctx, &Vote{LinkID: linkKey})
	require.NoError(t, err)

	byLink, err := kv.VotesByLink(ctx, linkKey)
	require.NoError(t, err)
	assert.Len(t, byLink, 2)

	byUser, err := kv.VotesByUser(ctx, userKey)
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, linkKey, byUser[0].LinkID)
}
