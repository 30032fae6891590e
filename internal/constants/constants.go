package constants

import "time"

const (
	PuuidCacheTTL        = 1 * time.Hour
	MatchIDsCacheTTL     = 5 * time.Minute
	MatchDetailsCacheTTL = 30 * time.Minute
	CacheSweepInterval   = 1 * time.Minute
)

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
)

const (
	UpstreamMaxAttempts = 3
	UpstreamBaseDelay   = 1 * time.Second
	UpstreamMaxDelay    = 10 * time.Second

	// used when a 429 carries no Retry-After header
	DefaultRetryAfter = 1 * time.Second
)

const (
	MinMatchCount          = 1
	MaxMatchCount          = 20
	DefaultMatchCount      = 20
	MatchFetchConcurrency  = 4
	MostPlayedChampionsTop = 5
)

// shared-cache in-memory database, gone when the process exits
const PlayerIndexDSN = "file:reviewed_players?mode=memory&cache=shared"

// one connection that is never recycled keeps the in-memory database alive
const (
	DBMaxOpenConns    = 1
	DBMaxIdleConns    = 1
	DBConnMaxLifetime = 0
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	SearchSuggestionLimit = 10
	InboundRPS            = 5
	InboundBurst          = 10
	InboundClientIdleTTL  = 15 * time.Minute
)
