package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"lol-reviewer/internal/clock"
	"lol-reviewer/internal/domain"

	"github.com/rs/zerolog"
)

const (
	DefaultPerSecond       = 20
	DefaultPerTwoMinutes   = 100
	DefaultShortPeriod     = time.Second
	DefaultLongPeriod      = 2 * time.Minute
	minimumRecheckInterval = time.Millisecond
)

// window is a token bucket whose tokens come back one period after they were
// spent. Refill is computed from the spend log on every access, so the number
// of admissions inside any span shorter than period never exceeds capacity.
type window struct {
	capacity int
	period   time.Duration
	spent    []time.Time // ring buffer, oldest at head
	head     int
	used     int
}

func newWindow(capacity int, period time.Duration) *window {
	return &window{
		capacity: capacity,
		period:   period,
		spent:    make([]time.Time, capacity),
	}
}

func (w *window) refill(now time.Time) {
	for w.used > 0 && now.Sub(w.spent[w.head]) >= w.period {
		w.head = (w.head + 1) % w.capacity
		w.used--
	}
}

func (w *window) tokens() int {
	return w.capacity - w.used
}

func (w *window) consume(now time.Time) {
	w.spent[(w.head+w.used)%w.capacity] = now
	w.used++
}

// wait returns how long until one token is available again.
func (w *window) wait(now time.Time) time.Duration {
	if w.tokens() > 0 {
		return 0
	}
	return w.spent[w.head].Add(w.period).Sub(now)
}

// Limiter admits a call only when both the short and the long window have a
// token, and then spends one token from each.
type Limiter struct {
	mu    sync.Mutex
	short *window
	long  *window

	clock    clock.Clock
	blocking bool
	logger   zerolog.Logger

	admitted atomic.Int64
	waited   atomic.Int64
	rejected atomic.Int64
}

type Option func(*Limiter)

func WithClock(c clock.Clock) Option {
	return func(l *Limiter) { l.clock = c }
}

// WithNonBlocking makes Acquire fail with RateLimitExceeded instead of waiting.
func WithNonBlocking() Option {
	return func(l *Limiter) { l.blocking = false }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

func New(shortCapacity int, shortPeriod time.Duration, longCapacity int, longPeriod time.Duration, opts ...Option) (*Limiter, error) {
	if shortCapacity <= 0 || longCapacity <= 0 {
		return nil, fmt.Errorf("rate limit capacities must be positive, got %d and %d", shortCapacity, longCapacity)
	}
	if shortPeriod <= 0 || longPeriod <= 0 {
		return nil, fmt.Errorf("rate limit periods must be positive, got %s and %s", shortPeriod, longPeriod)
	}

	l := &Limiter{
		short:    newWindow(shortCapacity, shortPeriod),
		long:     newWindow(longCapacity, longPeriod),
		clock:    clock.Real{},
		blocking: true,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// NewDefault builds the 20/1s + 100/2min limiter.
func NewDefault(opts ...Option) *Limiter {
	l, _ := New(DefaultPerSecond, DefaultShortPeriod, DefaultPerTwoMinutes, DefaultLongPeriod, opts...)
	return l
}

// reserve spends one token from both windows if both have one. Otherwise it
// returns the longer of the two waits.
func (l *Limiter) reserve() (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.short.refill(now)
	l.long.refill(now)

	if l.short.tokens() > 0 && l.long.tokens() > 0 {
		l.short.consume(now)
		l.long.consume(now)
		return true, 0
	}

	wait := max(l.short.wait(now), l.long.wait(now))
	if wait < minimumRecheckInterval {
		wait = minimumRecheckInterval
	}
	return false, wait
}

func (l *Limiter) TryAcquire() bool {
	ok, _ := l.reserve()
	if ok {
		l.admitted.Add(1)
	} else {
		l.rejected.Add(1)
	}
	return ok
}

// Acquire blocks until a token is available in both windows, or until ctx is
// done. In non-blocking mode it returns a RateLimitExceeded error instead.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		ok, wait := l.reserve()
		if ok {
			l.admitted.Add(1)
			return nil
		}

		if !l.blocking {
			l.rejected.Add(1)
			return &domain.Error{
				Kind:    domain.KindRateLimitExceeded,
				Message: fmt.Sprintf("local quota exhausted, retry in %s", wait),
			}
		}

		l.waited.Add(1)
		l.logger.Debug().Dur("wait", wait).Msg("rate limit reached, waiting")

		if err := l.clock.Sleep(ctx, wait); err != nil {
			return fmt.Errorf("waiting for rate limit: %w", err)
		}
	}
}

type Snapshot struct {
	ShortCapacity  int           `json:"short_capacity"`
	ShortAvailable int           `json:"short_available"`
	ShortPeriod    time.Duration `json:"short_period"`
	LongCapacity   int           `json:"long_capacity"`
	LongAvailable  int           `json:"long_available"`
	LongPeriod     time.Duration `json:"long_period"`
	Blocking       bool          `json:"blocking"`
	Admitted       int64         `json:"admitted"`
	Waited         int64         `json:"waited"`
	Rejected       int64         `json:"rejected"`
}

func (l *Limiter) Snapshot() Snapshot {
	l.mu.Lock()
	now := l.clock.Now()
	l.short.refill(now)
	l.long.refill(now)
	s := Snapshot{
		ShortCapacity:  l.short.capacity,
		ShortAvailable: l.short.tokens(),
		ShortPeriod:    l.short.period,
		LongCapacity:   l.long.capacity,
		LongAvailable:  l.long.tokens(),
		LongPeriod:     l.long.period,
		Blocking:       l.blocking,
	}
	l.mu.Unlock()

	s.Admitted = l.admitted.Load()
	s.Waited = l.waited.Load()
	s.Rejected = l.rejected.Load()
	return s
}
