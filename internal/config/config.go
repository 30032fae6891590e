package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"lol-reviewer/internal/constants"
	"lol-reviewer/internal/ratelimit"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	RiotAPIKey       string
	RiotHostTemplate string
	ServerPort       string
	LogLevel         string

	RateLimitPerSecond     int
	RateLimitPerTwoMinutes int
	RateLimitBlocking      bool

	PuuidCacheTTL        time.Duration
	MatchIDsCacheTTL     time.Duration
	MatchDetailsCacheTTL time.Duration
	CacheSweepInterval   time.Duration

	MatchFetchConcurrency int
	UpstreamMaxAttempts   int
	UpstreamBaseDelay     time.Duration
	ReviewTimeout         time.Duration

	InboundRPS   float64
	InboundBurst int

	// key inbound throttling on X-Forwarded-For; only set behind a proxy that overwrites it
	TrustForwardedFor bool
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	p := parser{}
	cfg := &Config{
		RiotAPIKey:       getEnv("RIOT_API_KEY", ""),
		RiotHostTemplate: getEnv("RIOT_HOST_TEMPLATE", "https://%s.api.riotgames.com"),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),

		RateLimitPerSecond:     p.int("RATE_LIMIT_PER_SECOND", ratelimit.DefaultPerSecond),
		RateLimitPerTwoMinutes: p.int("RATE_LIMIT_PER_TWO_MINUTES", ratelimit.DefaultPerTwoMinutes),
		RateLimitBlocking:      p.bool("RATE_LIMIT_BLOCKING", true),

		PuuidCacheTTL:        p.duration("CACHE_TTL_PUUID", constants.PuuidCacheTTL),
		MatchIDsCacheTTL:     p.duration("CACHE_TTL_MATCH_IDS", constants.MatchIDsCacheTTL),
		MatchDetailsCacheTTL: p.duration("CACHE_TTL_MATCH_DETAILS", constants.MatchDetailsCacheTTL),
		CacheSweepInterval:   p.duration("CACHE_SWEEP_INTERVAL", constants.CacheSweepInterval),

		MatchFetchConcurrency: p.int("MATCH_FETCH_CONCURRENCY", constants.MatchFetchConcurrency),
		UpstreamMaxAttempts:   p.int("UPSTREAM_MAX_ATTEMPTS", constants.UpstreamMaxAttempts),
		UpstreamBaseDelay:     p.duration("UPSTREAM_BASE_DELAY", constants.UpstreamBaseDelay),
		ReviewTimeout:         p.duration("REVIEW_TIMEOUT", constants.RequestTimeout),

		InboundRPS:        p.float("INBOUND_RPS", constants.InboundRPS),
		InboundBurst:      p.int("INBOUND_BURST", constants.InboundBurst),
		TrustForwardedFor: p.bool("TRUST_FORWARDED_FOR", false),
	}

	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger.Info().
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Int("rate_limit_per_second", cfg.RateLimitPerSecond).
		Int("rate_limit_per_two_minutes", cfg.RateLimitPerTwoMinutes).
		Bool("rate_limit_blocking", cfg.RateLimitBlocking).
		Dur("cache_ttl_puuid", cfg.PuuidCacheTTL).
		Dur("cache_ttl_match_ids", cfg.MatchIDsCacheTTL).
		Dur("cache_ttl_match_details", cfg.MatchDetailsCacheTTL).
		Int("match_fetch_concurrency", cfg.MatchFetchConcurrency).
		Bool("trust_forwarded_for", cfg.TrustForwardedFor).
		Msg("configuration loaded")

	return cfg, nil
}

func (c *Config) validate() error {
	if c.RiotAPIKey == "" {
		return fmt.Errorf("RIOT_API_KEY is required")
	}
	if c.RateLimitPerSecond <= 0 || c.RateLimitPerTwoMinutes <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}
	if c.PuuidCacheTTL <= 0 || c.MatchIDsCacheTTL <= 0 || c.MatchDetailsCacheTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	if c.MatchFetchConcurrency < 1 {
		return fmt.Errorf("MATCH_FETCH_CONCURRENCY must be at least 1, got %d", c.MatchFetchConcurrency)
	}
	if c.UpstreamMaxAttempts < 1 {
		return fmt.Errorf("UPSTREAM_MAX_ATTEMPTS must be at least 1, got %d", c.UpstreamMaxAttempts)
	}
	if c.ReviewTimeout <= 0 {
		return fmt.Errorf("REVIEW_TIMEOUT must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parser keeps the first conversion error so Load can report it once.
type parser struct {
	err error
}

func (p *parser) int(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n
}

func (p *parser) float(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return f
}

func (p *parser) bool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d
}

var Module = fx.Provide(Load)
