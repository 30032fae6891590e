package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lol-reviewer/internal/logger"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequestID_GeneratesAndPropagates(t *testing.T) {
	var seen string
	h := RequestID(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
}

func TestRequestID_KeepsIncomingHeader(t *testing.T) {
	h := RequestID(zerolog.Nop())(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	r.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestRequestID_ReplacesUnusableHeader(t *testing.T) {
	h := RequestID(zerolog.Nop())(okHandler())

	for _, incoming := range []string{"has space", strings.Repeat("x", 65)} {
		r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		r.Header.Set("X-Request-ID", incoming)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		got := w.Header().Get("X-Request-ID")
		assert.NotEmpty(t, got)
		assert.NotEqual(t, incoming, got)
	}
}

func TestRequestID_ContextLoggerCarriesID(t *testing.T) {
	var buf bytes.Buffer
	h := RequestID(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context(), zerolog.Nop()).Info().Msg("inside handler")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing"))
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/players/search", nil)
	r.Header.Set("X-Request-ID", "req-9")
	h.ServeHTTP(httptest.NewRecorder(), r)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var inside, access map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &inside))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &access))

	assert.Equal(t, "req-9", inside["request_id"])
	assert.Equal(t, "inside handler", inside["message"])

	assert.Equal(t, "req-9", access["request_id"])
	assert.Equal(t, "request handled", access["message"])
	assert.Equal(t, "warn", access["level"])
	assert.Equal(t, float64(http.StatusNotFound), access["status"])
	assert.Equal(t, float64(len("missing")), access["bytes"])
	assert.Equal(t, "/api/players/search", access["path"])
}

func TestRateLimit_RejectsAfterBurstPerClient(t *testing.T) {
	limiter := NewClientLimiter(0.01, 2, time.Minute)
	h := RateLimit(limiter, zerolog.Nop())(okHandler())

	do := func(addr string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/api/review", nil)
		r.RemoteAddr = addr
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusOK, do("10.0.0.1:1001").Code)

	w := do("10.0.0.1:1002")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")

	assert.Equal(t, http.StatusOK, do("10.0.0.2:1000").Code, "other clients are unaffected")
}

func TestRateLimit_IgnoresForwardedForByDefault(t *testing.T) {
	limiter := NewClientLimiter(0.01, 1, time.Minute)
	h := RateLimit(limiter, zerolog.Nop())(okHandler())

	tests := []struct {
		xff  string
		want int
	}{
		{xff: "203.0.113.7", want: http.StatusOK},
		{xff: "203.0.113.8", want: http.StatusTooManyRequests},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/api/status", nil)
		r.RemoteAddr = "10.0.0.8:1000"
		r.Header.Set("X-Forwarded-For", tt.xff)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, tt.want, w.Code, "rotating the header does not reset the budget")
	}
}

func TestRateLimit_TrustedProxyUsesForwardedFor(t *testing.T) {
	limiter := NewClientLimiter(0.01, 1, time.Minute, WithTrustedProxy())
	h := RateLimit(limiter, zerolog.Nop())(okHandler())

	tests := []struct {
		remote string
		want   int
	}{
		{remote: "10.0.0.8:1000", want: http.StatusOK},
		{remote: "10.0.0.9:1000", want: http.StatusTooManyRequests},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/api/status", nil)
		r.RemoteAddr = tt.remote
		r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.9")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, tt.want, w.Code, "same forwarded client behind different proxies")
	}
}

func TestClientLimiter_CleanupForgetsIdleClients(t *testing.T) {
	limiter := NewClientLimiter(1, 1, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	limiter.Reserve("a")
	now = now.Add(30 * time.Second)
	limiter.Reserve("b")
	now = now.Add(45 * time.Second)

	assert.Equal(t, 1, limiter.Cleanup())
	assert.Equal(t, 1, limiter.Len())
}
