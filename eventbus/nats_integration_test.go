//go:build integration

package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testNode struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

func waitEvent(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.C():
		require.True(t, ok, "subscription channel closed")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestNATSPublishSubscribe(t *testing.T) {
	client := getSharedNATSClient(t)

	bus, err := NewNATS(client, WithSubjectPrefix("linkstream.test.pubsub"))
	require.NoError(t, err)
	defer bus.Close()

	sub, err := bus.Subscribe("Link")
	require.NoError(t, err)
	defer sub.Unsubscribe()

	node := testNode{ID: "link-1", Description: "over the wire"}
	require.NoError(t, bus.Publish("Link", Event{Mutation: MutationCreated, Node: node}))

	ev := waitEvent(t, sub)
	assert.Equal(t, MutationCreated, ev.Mutation)

	// node arrives as raw JSON and decodes back into the typed form
	var got testNode
	require.NoError(t, ev.DecodeNode(&got))
	assert.Equal(t, node, got)
}

func TestNATSTopicIsolation(t *testing.T) {
	client := getSharedNATSClient(t)

	bus, err := NewNATS(client, WithSubjectPrefix("linkstream.test.isolation"))
	require.NoError(t, err)
	defer bus.Close()

	links, err := bus.Subscribe("Link")
	require.NoError(t, err)
	users, err := bus.Subscribe("User")
	require.NoError(t, err)

	require.NoError(t, bus.Publish("Link", Event{Mutation: MutationCreated}))

	ev := waitEvent(t, links)
	assert.Equal(t, MutationCreated, ev.Mutation)

	select {
	case ev := <-users.C():
		t.Fatalf("unexpected event on User topic: %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestNATSCrossBusDelivery(t *testing.T) {
	client := getSharedNATSClient(t)

	// two bus instances on the same prefix see each other's events,
	// which is what multiple server processes rely on
	pub, err := NewNATS(client, WithSubjectPrefix("linkstream.test.cross"))
	require.NoError(t, err)
	defer pub.Close()

	con, err := NewNATS(client, WithSubjectPrefix("linkstream.test.cross"))
	require.NoError(t, err)
	defer con.Close()

	sub, err := con.Subscribe("Link")
	require.NoError(t, err)

	require.NoError(t, pub.Publish("Link", Event{Mutation: MutationDeleted}))

	ev := waitEvent(t, sub)
	assert.Equal(t, MutationDeleted, ev.Mutation)
}

func TestNATSCloseEndsSubscribers(t *testing.T) {
	client := getSharedNATSClient(t)

	bus, err := NewNATS(client, WithSubjectPrefix("linkstream.test.close"))
	require.NoError(t, err)

	sub, err := bus.Subscribe("Link")
	require.NoError(t, err)

	require.NoError(t, bus.Close())

	select {
	case _, ok := <-sub.C():
		assert.False(t, ok, "channel should be closed after bus close")
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber channel not closed")
	}
}
