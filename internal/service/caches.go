package service

import (
	"context"
	"fmt"
	"time"

	"lol-reviewer/internal/cache"
	"lol-reviewer/internal/clock"
	"lol-reviewer/internal/config"
	"lol-reviewer/internal/domain"
)

// Caches holds the three namespaces a review reads through. Each has its own
// TTL.
type Caches struct {
	Identities *cache.TTLCache[domain.Identity]
	MatchIDs   *cache.TTLCache[[]string]
	Matches    *cache.TTLCache[*domain.Match]
}

func NewCaches(cfg *config.Config) (*Caches, error) {
	return newCaches(cfg, clock.Real{})
}

func newCaches(cfg *config.Config, clk clock.Clock) (*Caches, error) {
	// a shared fetch may outlive the review that started it, never longer than one review
	opts := []cache.Option{cache.WithClock(clk), cache.WithComputeTimeout(cfg.ReviewTimeout)}

	identities, err := cache.New[domain.Identity](cache.NamespaceIdentity, cfg.PuuidCacheTTL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity cache: %w", err)
	}
	matchIDs, err := cache.New[[]string](cache.NamespaceMatchIDs, cfg.MatchIDsCacheTTL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create match id cache: %w", err)
	}
	matches, err := cache.New[*domain.Match](cache.NamespaceMatch, cfg.MatchDetailsCacheTTL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create match cache: %w", err)
	}

	return &Caches{Identities: identities, MatchIDs: matchIDs, Matches: matches}, nil
}

func (c *Caches) StartJanitors(ctx context.Context, every time.Duration) {
	c.Identities.StartJanitor(ctx, every)
	c.MatchIDs.StartJanitor(ctx, every)
	c.Matches.StartJanitor(ctx, every)
}

func (c *Caches) Stats() []cache.Stats {
	return []cache.Stats{c.Identities.Stats(), c.MatchIDs.Stats(), c.Matches.Stats()}
}

func (c *Caches) Clear() {
	c.Identities.Clear()
	c.MatchIDs.Clear()
	c.Matches.Clear()
}
