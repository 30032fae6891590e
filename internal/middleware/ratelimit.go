package middleware

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ClientLimiter throttles inbound requests per client address. It protects
// the shared upstream quota from a single noisy caller.
type ClientLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientEntry
	rps     rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time

	// clients are keyed on RemoteAddr unless set
	trustForwarded bool
}

type clientEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type ClientLimiterOption func(*ClientLimiter)

// WithTrustedProxy keys clients on the first X-Forwarded-For address. Use it
// only when a reverse proxy in front of the server overwrites that header.
func WithTrustedProxy() ClientLimiterOption {
	return func(l *ClientLimiter) { l.trustForwarded = true }
}

func NewClientLimiter(rps float64, burst int, idleTTL time.Duration, opts ...ClientLimiterOption) *ClientLimiter {
	l := &ClientLimiter{
		clients: make(map[string]*clientEntry),
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Reserve reports whether the client may proceed and, if not, how long it
// should wait before retrying.
func (l *ClientLimiter) Reserve(key string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	ent, ok := l.clients[key]
	if !ok {
		ent = &clientEntry{lim: rate.NewLimiter(l.rps, l.burst)}
		l.clients[key] = ent
	}
	ent.lastSeen = now
	l.mu.Unlock()

	res := ent.lim.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Second
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Cleanup forgets clients idle for longer than idleTTL.
func (l *ClientLimiter) Cleanup() int {
	cutoff := l.now().Add(-l.idleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for k, ent := range l.clients {
		if ent.lastSeen.Before(cutoff) {
			delete(l.clients, k)
			removed++
		}
	}
	return removed
}

func (l *ClientLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func (l *ClientLimiter) StartJanitor(ctx context.Context, every time.Duration) {
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
				l.Cleanup()
			}
		}
	}()
}

func RateLimit(limiter *ClientLimiter, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := limiter.clientKey(r)

			ok, wait := limiter.Reserve(key)
			if !ok {
				secs := int(math.Ceil(wait.Seconds()))
				logger.Warn().
					Str("client", key).
					Str("path", r.URL.Path).
					Int("retry_after", secs).
					Str("request_id", GetRequestID(r.Context())).
					Msg("client rate limited")

				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"status":  "error",
					"code":    "RATE_LIMITED",
					"message": "too many requests, slow down",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (l *ClientLimiter) clientKey(r *http.Request) string {
	if l.trustForwarded {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
