package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"lol-reviewer/internal/clock"

	"golang.org/x/sync/singleflight"
)

type entry[V any] struct {
	value      V
	insertedAt time.Time
	ttl        time.Duration
}

func (e entry[V]) valid(now time.Time) bool {
	return now.Sub(e.insertedAt) < e.ttl
}

// TTLCache is an in-memory key/value store with per-entry expiry. Expired
// entries are never served: they are evicted on access or by Sweep.
type TTLCache[V any] struct {
	name           string
	defaultTTL     time.Duration
	computeTimeout time.Duration
	clock          clock.Clock

	mu      sync.RWMutex
	entries map[string]entry[V]

	flights singleflight.Group

	hits     atomic.Int64
	misses   atomic.Int64
	computes atomic.Int64
	evicted  atomic.Int64
}

type Option func(*options)

type options struct {
	clock          clock.Clock
	computeTimeout time.Duration
}

// DefaultComputeTimeout bounds a producer run when WithComputeTimeout is not set.
const DefaultComputeTimeout = 30 * time.Second

func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithComputeTimeout bounds how long a shared producer run may take.
func WithComputeTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.computeTimeout = d
		}
	}
}

func New[V any](name string, defaultTTL time.Duration, opts ...Option) (*TTLCache[V], error) {
	if defaultTTL <= 0 {
		return nil, fmt.Errorf("cache %q: ttl must be positive, got %s", name, defaultTTL)
	}

	o := options{clock: clock.Real{}, computeTimeout: DefaultComputeTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	return &TTLCache[V]{
		name:           name,
		defaultTTL:     defaultTTL,
		computeTimeout: o.computeTimeout,
		clock:          o.clock,
		entries:        make(map[string]entry[V]),
	}, nil
}

func (c *TTLCache[V]) Name() string {
	return c.name
}

func (c *TTLCache[V]) TTL() time.Duration {
	return c.defaultTTL
}

func (c *TTLCache[V]) Get(key string) (V, bool) {
	v, ok := c.lookup(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

func (c *TTLCache[V]) lookup(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && e.valid(c.clock.Now()) {
		return e.value, true
	}

	if ok {
		c.mu.Lock()
		// re-check, the entry may have been overwritten meanwhile
		if cur, still := c.entries[key]; still && !cur.valid(c.clock.Now()) {
			delete(c.entries, key)
			c.evicted.Add(1)
		}
		c.mu.Unlock()
	}

	var zero V
	return zero, false
}

// Set stores value under key. A non-positive ttl falls back to the cache default.
func (c *TTLCache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, insertedAt: c.clock.Now(), ttl: ttl}
	c.mu.Unlock()
}

func (c *TTLCache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *TTLCache[V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry[V])
	c.mu.Unlock()
}

// Len counts stored entries, including expired ones not yet evicted.
func (c *TTLCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// GetOrCompute returns the cached value for key or runs producer to build it.
// At most one producer runs per key at a time; concurrent callers for the same
// key wait for that run and share its result. The value is stored only when
// producer succeeds.
//
// The producer runs on a context that keeps the values of the caller that
// started the flight but not its cancellation, bounded by the compute
// timeout. A caller whose ctx ends stops waiting and gets its own ctx error;
// the other waiters still receive the shared result.
func (c *TTLCache[V]) GetOrCompute(ctx context.Context, key string, ttl time.Duration, producer func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	ch := c.flights.DoChan(key, func() (any, error) {
		// a flight that finished just before this one started may have stored it
		if v, ok := c.lookup(key); ok {
			return v, nil
		}

		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.computeTimeout)
		defer cancel()

		c.computes.Add(1)
		v, err := producer(pctx)
		if err != nil {
			return nil, err
		}
		c.Set(key, v, ttl)
		return v, nil
	})

	var zero V
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	}
}

// Sweep evicts every expired entry and returns how many were removed.
func (c *TTLCache[V]) Sweep() int {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if !e.valid(now) {
			delete(c.entries, key)
			removed++
		}
	}
	c.evicted.Add(int64(removed))
	return removed
}

// StartJanitor sweeps every interval until ctx is done.
func (c *TTLCache[V]) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				c.Sweep()
			}
		}
	}()
}

type Stats struct {
	Name     string        `json:"name"`
	TTL      time.Duration `json:"ttl"`
	Size     int           `json:"size"`
	Hits     int64         `json:"hits"`
	Misses   int64         `json:"misses"`
	Computes int64         `json:"computes"`
	Evicted  int64         `json:"evicted"`
}

func (c *TTLCache[V]) Stats() Stats {
	return Stats{
		Name:     c.name,
		TTL:      c.defaultTTL,
		Size:     c.Len(),
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Computes: c.computes.Load(),
		Evicted:  c.evicted.Load(),
	}
}
