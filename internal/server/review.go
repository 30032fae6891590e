package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"lol-reviewer/internal/api"
	"lol-reviewer/internal/cache"
	"lol-reviewer/internal/constants"
	"lol-reviewer/internal/domain"
	"lol-reviewer/internal/logger"
	"lol-reviewer/internal/ratelimit"
	"lol-reviewer/internal/service"

	"github.com/rs/zerolog"
)

const maxRequestBody = 1 << 16

// Reviewer runs one review.
type Reviewer interface {
	Review(ctx context.Context, req service.ReviewRequest) (*domain.Report, error)
}

// PlayerSearcher looks up previously reviewed players.
type PlayerSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]domain.ReviewedPlayer, error)
}

// StatusSource reports the state of the upstream gate and caches.
type StatusSource interface {
	LimiterSnapshot() ratelimit.Snapshot
	UpstreamRateLimit() api.RateLimitInfo
	CacheStats() []cache.Stats
}

type ReviewServer struct {
	reviewer Reviewer
	players  PlayerSearcher
	status   StatusSource
	logger   zerolog.Logger
}

func NewReviewServer(reviewer Reviewer, players PlayerSearcher, status StatusSource, logger zerolog.Logger) *ReviewServer {
	return &ReviewServer{reviewer: reviewer, players: players, status: status, logger: logger}
}

// Routes registers every endpoint on mux.
func (s *ReviewServer) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/review", s.handleReview)
	mux.HandleFunc("GET /api/players/search", s.handleSearch)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /healthz", s.handleHealth)
}

type successResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type statusResponse struct {
	Limiter  ratelimit.Snapshot `json:"limiter"`
	Upstream api.RateLimitInfo  `json:"upstream_rate_limit"`
	Caches   []cache.Stats      `json:"caches"`
}

func (s *ReviewServer) handleReview(w http.ResponseWriter, r *http.Request) {
	log := s.loggerFor(r)

	var req service.ReviewRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, domain.InvalidInput("request body must be a JSON object with riot_id, region and num_matches"))
		return
	}

	report, err := s.reviewer.Review(r.Context(), req)
	if err != nil {
		log.Error().Err(err).Str("riot_id", req.RiotID).Str("region", req.Region).Msg("review failed")
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Status: "success", Data: report})
}

func (s *ReviewServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	players, err := s.players.Search(r.Context(), q, constants.SearchSuggestionLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Status: "success", Data: players})
}

func (s *ReviewServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, successResponse{Status: "success", Data: statusResponse{
		Limiter:  s.status.LimiterSnapshot(),
		Upstream: s.status.UpstreamRateLimit(),
		Caches:   s.status.CacheStats(),
	}})
}

func (s *ReviewServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *ReviewServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.loggerFor(r).Error().Err(err).Msg("internal error")
		msg = "internal server error"
	}

	var de *domain.Error
	if errors.As(err, &de) && de.Message != "" && status != http.StatusInternalServerError {
		msg = de.Message
	}

	writeJSON(w, status, errorResponse{Status: "error", Code: code, Message: msg})
}

// loggerFor prefers the request-scoped logger set by the request id middleware.
func (s *ReviewServer) loggerFor(r *http.Request) *zerolog.Logger {
	return logger.FromContext(r.Context(), s.logger)
}

// classify maps an error to its HTTP status and API error code.
func classify(err error) (int, string) {
	switch domain.KindOf(err) {
	case domain.KindInvalidInput:
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case domain.KindNotFound:
		return http.StatusNotFound, "PLAYER_NOT_FOUND"
	case domain.KindRateLimitExceeded:
		return http.StatusTooManyRequests, "RATE_LIMITED"
	case domain.KindUpstream4xx:
		return http.StatusBadGateway, "UPSTREAM_ERROR"
	case domain.KindUpstreamUnavailable:
		return http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"
	case domain.KindTimeout:
		return http.StatusGatewayTimeout, "TIMEOUT"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
