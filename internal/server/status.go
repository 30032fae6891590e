package server

import (
	"lol-reviewer/internal/api"
	"lol-reviewer/internal/cache"
	"lol-reviewer/internal/ratelimit"
	"lol-reviewer/internal/service"
)

type Status struct {
	limiter *ratelimit.Limiter
	client  *api.RiotClient
	caches  *service.Caches
}

func NewStatus(limiter *ratelimit.Limiter, client *api.RiotClient, caches *service.Caches) *Status {
	return &Status{limiter: limiter, client: client, caches: caches}
}

func (s *Status) LimiterSnapshot() ratelimit.Snapshot {
	return s.limiter.Snapshot()
}

func (s *Status) UpstreamRateLimit() api.RateLimitInfo {
	return s.client.RateLimitInfo()
}

func (s *Status) CacheStats() []cache.Stats {
	return s.caches.Stats()
}
