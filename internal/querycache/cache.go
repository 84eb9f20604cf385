// Package querycache keeps recent query results keyed by identity and
// parameters, and coalesces concurrent fetches for the same key.
package querycache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultMaxEntries bounds the cache when no option is given.
const DefaultMaxEntries = 512

// DefaultFetchTimeout caps a shared fetch that no longer follows any caller's context.
const DefaultFetchTimeout = 30 * time.Second

// FetchFunc produces the value for a key on a miss.
type FetchFunc func(ctx context.Context) (any, error)

type entry struct {
	value     any
	fetchedAt time.Time
}

// Cache is safe for concurrent use. Failed fetches are never stored.
type Cache struct {
	entries      *lru.Cache[string, entry]
	flight       singleflight.Group
	now          func() time.Time
	maxEntries   int
	fetchTimeout time.Duration

	hits    atomic.Int64
	misses  atomic.Int64
	shared  atomic.Int64
	fetches atomic.Int64
	errors  atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithMaxEntries sets the LRU bound.
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithFetchTimeout sets the upper bound on a shared fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// WithClock overrides time.Now for staleness checks.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		now:          time.Now,
		maxEntries:   DefaultMaxEntries,
		fetchTimeout: DefaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	// lru.New only fails for a non-positive size, which the option rules out.
	c.entries, _ = lru.New[string, entry](c.maxEntries)
	return c
}

// Key derives a cache key from a query scope, the requesting identity and
// the query parameters. Equal inputs always give equal keys.
func Key(scope, identity string, params any) string {
	data, err := json.Marshal(params)
	if err != nil {
		data = []byte(fmt.Sprintf("%#v", params))
	}
	sum := sha256.Sum256(data)
	return scope + ":" + identity + ":" + hex.EncodeToString(sum[:8])
}

// Get returns the stored value for key when it is younger than staleAfter.
// Otherwise it runs fetch, sharing one in-flight call among concurrent
// callers of the same key, and stores the result if fetch succeeded.
// A staleAfter of zero or less always fetches.
//
// The shared fetch keeps the first caller's context values but not its
// cancellation, so one caller giving up never fails the others. Each
// caller stops waiting when its own ctx is done.
func (c *Cache) Get(ctx context.Context, key string, staleAfter time.Duration, fetch FetchFunc) (any, error) {
	if e, ok := c.entries.Get(key); ok && staleAfter > 0 && c.now().Sub(e.fetchedAt) < staleAfter {
		c.hits.Add(1)
		cacheRequests.WithLabelValues("hit").Inc()
		return e.value, nil
	}

	c.misses.Add(1)
	detached := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(detached, c.fetchTimeout)
		defer cancel()

		start := time.Now()
		value, err := fetch(fctx)
		cacheFetchDuration.Observe(time.Since(start).Seconds())
		c.fetches.Add(1)

		if err != nil {
			c.errors.Add(1)
			return nil, err
		}

		// Overlapping refreshes: the last one to finish wins.
		c.entries.Add(key, entry{value: value, fetchedAt: c.now()})
		return value, nil
	})

	select {
	case <-ctx.Done():
		cacheRequests.WithLabelValues("abandoned").Inc()
		return nil, ctx.Err()
	case res := <-ch:
		switch {
		case res.Err != nil:
			cacheRequests.WithLabelValues("error").Inc()
			return nil, res.Err
		case res.Shared:
			c.shared.Add(1)
			cacheRequests.WithLabelValues("shared").Inc()
		default:
			cacheRequests.WithLabelValues("miss").Inc()
		}
		return res.Val, nil
	}
}

// Typed is Get for a fetch returning T.
func Typed[T any](ctx context.Context, c *Cache, key string, staleAfter time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	var zero T

	v, err := c.Get(ctx, key, staleAfter, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		return zero, err
	}

	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cache key %s holds %T, want %T", key, v, zero)
	}
	return typed, nil
}

// Peek returns the stored value and its age without fetching.
func (c *Cache) Peek(key string) (any, time.Duration, bool) {
	e, ok := c.entries.Peek(key)
	if !ok {
		return nil, 0, false
	}
	return e.value, c.now().Sub(e.fetchedAt), true
}

// Invalidate drops key so the next Get fetches.
func (c *Cache) Invalidate(key string) {
	c.entries.Remove(key)
}

// Keys lists stored keys, oldest access first.
func (c *Cache) Keys() []string {
	return c.entries.Keys()
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.entries.Purge()
}

// Stats holds cache counters.
type Stats struct {
	Entries    int   `json:"entries"`
	MaxEntries int   `json:"max_entries"`
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Shared     int64 `json:"shared"`
	Fetches    int64 `json:"fetches"`
	Errors     int64 `json:"errors"`
}

// Stats returns current cache statistics.
func (c *Cache) Stats() Stats {
	return Stats{
		Entries:    c.entries.Len(),
		MaxEntries: c.maxEntries,
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Shared:     c.shared.Load(),
		Fetches:    c.fetches.Load(),
		Errors:     c.errors.Load(),
	}
}
