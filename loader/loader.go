// Package loader provides request-scoped batching loaders for entity
// lookups. Concurrent resolver fields that each need one entity by id
// are collected over a short window and served by a single bulk store
// query, with results cached for the rest of the request.
package loader

import (
	"context"
	"sync"
	"time"
)

// Batching defaults; each loader collects keys for the wait window or
// until the batch fills, whichever comes first.
const (
	DefaultWait     = 2 * time.Millisecond
	DefaultMaxBatch = 100
)

// Config drives a Loader
type Config[V any] struct {
	// Fetch resolves a batch of keys in one call. The values slice is
	// positional: values[i] answers keys[i], nil meaning not found.
	// Errors may be positional (len == len(keys)) or a single error
	// (len == 1) applied to the whole batch.
	Fetch func(ctx context.Context, keys []string) ([]V, []error)
	// Wait is how long to collect keys before firing a batch
	Wait time.Duration
	// MaxBatch caps keys per fetch, 0 meaning unbounded
	MaxBatch int
}

// New creates a Loader from a config, applying batching defaults
func New[V any](cfg Config[V]) *Loader[V] {
	if cfg.Wait == 0 {
		cfg.Wait = DefaultWait
	}
	if cfg.MaxBatch == 0 {
		cfg.MaxBatch = DefaultMaxBatch
	}
	return &Loader[V]{
		fetch:    cfg.Fetch,
		wait:     cfg.Wait,
		maxBatch: cfg.MaxBatch,
	}
}

// Loader batches and caches lookups keyed by string. One Loader serves
// one request; it is safe for the request's concurrent resolvers but
// must not be shared across requests, or the cache leaks data between
// users.
type Loader[V any] struct {
	fetch    func(ctx context.Context, keys []string) ([]V, []error)
	wait     time.Duration
	maxBatch int

	mu    sync.Mutex
	cache map[string]V
	batch *batch[V]
}

type batch[V any] struct {
	keys    []string
	values  []V
	errors  []error
	closing bool
	done    chan struct{}
}

// Load fetches the value for a key, blocking until the surrounding
// batch resolves
func (l *Loader[V]) Load(ctx context.Context, key string) (V, error) {
	return l.LoadThunk(ctx, key)()
}

// LoadThunk enqueues the key and returns a thunk that blocks for the
// result. Useful for kicking off several loads before waiting on any.
func (l *Loader[V]) LoadThunk(ctx context.Context, key string) func() (V, error) {
	l.mu.Lock()
	if v, ok := l.cache[key]; ok {
		l.mu.Unlock()
		return func() (V, error) { return v, nil }
	}
	if l.batch == nil {
		l.batch = &batch[V]{done: make(chan struct{})}
	}
	b := l.batch
	pos := b.keyIndex(l, ctx, key)
	l.mu.Unlock()

	return func() (V, error) {
		<-b.done

		var v V
		if pos < len(b.values) {
			v = b.values[pos]
		}

		var err error
		// Single error means the whole batch failed
		if len(b.errors) == 1 {
			err = b.errors[0]
		} else if b.errors != nil {
			err = b.errors[pos]
		}

		if err == nil {
			l.mu.Lock()
			l.unsafePrime(key, v)
			l.mu.Unlock()
		}
		return v, err
	}
}

// LoadAll fetches values for all keys, in key order
func (l *Loader[V]) LoadAll(ctx context.Context, keys []string) ([]V, []error) {
	thunks := make([]func() (V, error), len(keys))
	for i, key := range keys {
		thunks[i] = l.LoadThunk(ctx, key)
	}

	values := make([]V, len(keys))
	errs := make([]error, len(keys))
	for i, thunk := range thunks {
		values[i], errs[i] = thunk()
	}
	return values, errs
}

// Prime seeds the cache, leaving any existing entry in place. Lets a
// mutation register the entity it just wrote so later loads in the
// same request skip the store.
func (l *Loader[V]) Prime(key string, value V) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.cache[key]; ok {
		return false
	}
	l.unsafePrime(key, value)
	return true
}

// Clear evicts a key from the cache
func (l *Loader[V]) Clear(key string) {
	l.mu.Lock()
	delete(l.cache, key)
	l.mu.Unlock()
}

func (l *Loader[V]) unsafePrime(key string, value V) {
	if l.cache == nil {
		l.cache = make(map[string]V)
	}
	l.cache[key] = value
}

// keyIndex enqueues the key on the batch, starting the wait timer on
// the first key and firing early when the batch fills
func (b *batch[V]) keyIndex(l *Loader[V], ctx context.Context, key string) int {
	for i, k := range b.keys {
		if k == key {
			return i
		}
	}

	pos := len(b.keys)
	b.keys = append(b.keys, key)
	if pos == 0 {
		go b.startTimer(l, ctx)
	}

	if l.maxBatch != 0 && pos >= l.maxBatch-1 {
		if !b.closing {
			b.closing = true
			l.batch = nil
			go b.end(l, ctx)
		}
	}
	return pos
}

func (b *batch[V]) startTimer(l *Loader[V], ctx context.Context) {
	time.Sleep(l.wait)
	l.mu.Lock()

	// Batch already fired on size
	if b.closing {
		l.mu.Unlock()
		return
	}

	l.batch = nil
	l.mu.Unlock()
	b.end(l, ctx)
}

func (b *batch[V]) end(l *Loader[V], ctx context.Context) {
	b.values, b.errors = l.fetch(ctx, b.keys)
	close(b.done)
}
