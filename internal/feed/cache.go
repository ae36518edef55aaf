package feed

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is how long a fetched snapshot stays valid.
const DefaultTTL = 3 * time.Second

// Cache lookup outcomes reported to CacheMetrics.
const (
	OutcomeHit    = "hit"    // served from a valid snapshot
	OutcomeMiss   = "miss"   // started a new upstream fetch
	OutcomeShared = "shared" // joined a fetch already in flight
)

// CacheMetrics receives cache and upstream observations. Implementations
// must be safe for concurrent use.
type CacheMetrics interface {
	CacheLookup(feed, outcome string)
	UpstreamFetch(feed string, d time.Duration, err error)
}

// Cache memoizes a Source per feed name for a fixed TTL and coalesces
// concurrent misses into a single upstream fetch.
type Cache struct {
	src     Source
	ttl     time.Duration
	now     func() time.Time
	metrics CacheMetrics

	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	value     Records
	fetchedAt time.Time
	valid     bool
	call      *fetchCall // non-nil while a fetch is in flight
}

type fetchCall struct {
	done  chan struct{}
	value Records
	err   error
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithClock replaces time.Now as the cache's clock.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// WithMetrics attaches a metrics sink. A nil sink is ignored.
func WithMetrics(m CacheMetrics) CacheOption {
	return func(c *Cache) { c.metrics = m }
}

// NewCache wraps src. A non-positive ttl falls back to DefaultTTL.
func NewCache(src Source, ttl time.Duration, opts ...CacheOption) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		src:     src,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*cacheEntry),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// TTL reports the validity window of a cached snapshot.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get returns the snapshot for name. A valid snapshot is returned without
// touching the source; otherwise the caller either joins the fetch in flight
// or starts one. Failures are returned as *UpstreamFetchError and leave no
// trace in the cache, so the next call retries.
//
// The upstream fetch is detached from ctx cancellation because other callers
// may be waiting on it; ctx only bounds how long this caller waits.
func (c *Cache) Get(ctx context.Context, name string) (Records, error) {
	c.mu.Lock()
	e, ok := c.entries[name]
	if !ok {
		e = &cacheEntry{}
		c.entries[name] = e
	}
	if e.call == nil && e.valid && c.now().Sub(e.fetchedAt) < c.ttl {
		v := e.value
		c.mu.Unlock()
		c.observeLookup(name, OutcomeHit)
		return v, nil
	}
	call := e.call
	outcome := OutcomeShared
	if call == nil {
		// Validity check and in-flight registration share one critical section.
		call = &fetchCall{done: make(chan struct{})}
		e.call = call
		outcome = OutcomeMiss
		go c.fetch(context.WithoutCancel(ctx), name, e, call)
	}
	c.mu.Unlock()
	c.observeLookup(name, outcome)

	select {
	case <-call.done:
		return call.value, call.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) fetch(ctx context.Context, name string, e *cacheEntry, call *fetchCall) {
	start := time.Now()
	v, err := c.src.Fetch(ctx, name)
	if c.metrics != nil {
		c.metrics.UpstreamFetch(name, time.Since(start), err)
	}

	c.mu.Lock()
	if err != nil {
		call.err = &UpstreamFetchError{Feed: name, Err: err}
	} else {
		call.value = v
		e.value = v
		e.fetchedAt = c.now()
		e.valid = true
	}
	e.call = nil
	c.mu.Unlock()
	close(call.done)
}

// Invalidate discards the cached snapshot for name. A fetch already in
// flight is not affected.
func (c *Cache) Invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[name]; ok {
		e.valid = false
		e.value = nil
	}
}

func (c *Cache) observeLookup(name, outcome string) {
	if c.metrics != nil {
		c.metrics.CacheLookup(name, outcome)
	}
}
