//go:build integration

package natsclient

import (
	"testing"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/linkstream/errors"
)

func testKVStore(t *testing.T) *KVStore {
	t.Helper()
	client := getSharedClient(t)

	// CreateKeyValueBucket reuses an existing bucket, so sharing one
	// across tests is fine
	bucket, err := client.CreateKeyValueBucket(t.Context(), jetstream.KeyValueConfig{
		Bucket: "linkstream_test",
	})
	require.NoError(t, err)
	return client.NewKVStore(bucket)
}

func TestKVStoreCRUD(t *testing.T) {
	kv := testKVStore(t)
	ctx := t.Context()

	key := "crud-" + t.Name()

	rev, err := kv.Put(ctx, key, []byte(`{"v":1}`))
	require.NoError(t, err)
	assert.NotZero(t, rev)

	entry, err := kv.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, key, entry.Key)
	assert.JSONEq(t, `{"v":1}`, string(entry.Value))
	assert.Equal(t, rev, entry.Revision)

	// Put is last-writer-wins and bumps the revision
	rev2, err := kv.Put(ctx, key, []byte(`{"v":2}`))
	require.NoError(t, err)
	assert.Greater(t, rev2, rev)

	require.NoError(t, kv.Delete(ctx, key))

	_, err = kv.Get(ctx, key)
	assert.ErrorIs(t, err, errors.ErrKeyNotFound)
}

func TestKVStoreCreateConflict(t *testing.T) {
	kv := testKVStore(t)
	ctx := t.Context()

	key := "create-" + t.Name()

	_, err := kv.Create(ctx, key, []byte("first"))
	require.NoError(t, err)

	_, err = kv.Create(ctx, key, []byte("second"))
	assert.ErrorIs(t, err, ErrKVKeyExists)

	// conflict is not retried either
	_, err = kv.CreateWithRetry(ctx, key, []byte("third"))
	assert.ErrorIs(t, err, ErrKVKeyExists)

	entry, err := kv.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "first", string(entry.Value))
}

func TestKVStoreKeys(t *testing.T) {
	kv := testKVStore(t)
	ctx := t.Context()

	prefix := "keys-" + t.Name() + "-"
	for _, suffix := range []string{"a", "b", "c"} {
		_, err := kv.Put(ctx, prefix+suffix, []byte("x"))
		require.NoError(t, err)
	}

	keys, err := kv.Keys(ctx)
	require.NoError(t, err)

	var mine []string
	for _, k := range keys {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			mine = append(mine, k)
		}
	}
	assert.ElementsMatch(t, []string{prefix + "a", prefix + "b", prefix + "c"}, mine)
}
