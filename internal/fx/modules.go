package fx

import (
	"context"

	"lol-reviewer/internal/api"
	"lol-reviewer/internal/config"
	"lol-reviewer/internal/constants"
	"lol-reviewer/internal/database"
	"lol-reviewer/internal/logger"
	"lol-reviewer/internal/middleware"
	"lol-reviewer/internal/ratelimit"
	"lol-reviewer/internal/repository"
	"lol-reviewer/internal/server"
	"lol-reviewer/internal/service"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideLimiter(cfg *config.Config, logger zerolog.Logger) (*ratelimit.Limiter, error) {
	opts := []ratelimit.Option{ratelimit.WithLogger(logger)}
	if !cfg.RateLimitBlocking {
		opts = append(opts, ratelimit.WithNonBlocking())
	}
	return ratelimit.New(
		cfg.RateLimitPerSecond, ratelimit.DefaultShortPeriod,
		cfg.RateLimitPerTwoMinutes, ratelimit.DefaultLongPeriod,
		opts...,
	)
}

func ProvideClientLimiter(cfg *config.Config) *middleware.ClientLimiter {
	var opts []middleware.ClientLimiterOption
	if cfg.TrustForwardedFor {
		opts = append(opts, middleware.WithTrustedProxy())
	}
	return middleware.NewClientLimiter(cfg.InboundRPS, cfg.InboundBurst, constants.InboundClientIdleTTL, opts...)
}

func ProvideUpstream(client *api.RiotClient) service.Upstream {
	return client
}

func ProvidePlayerIndex(repo *repository.PlayerRepository) service.PlayerIndex {
	return repo
}

func ProvideReviewer(svc *service.ReviewService) server.Reviewer {
	return svc
}

func ProvidePlayerSearcher(repo *repository.PlayerRepository) server.PlayerSearcher {
	return repo
}

func ProvideStatusSource(status *server.Status) server.StatusSource {
	return status
}

// StartJanitors sweeps expired cache entries and idle inbound clients for
// the lifetime of the app.
func StartJanitors(lc fx.Lifecycle, cfg *config.Config, caches *service.Caches, clients *middleware.ClientLimiter, logger zerolog.Logger) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			caches.StartJanitors(ctx, cfg.CacheSweepInterval)
			clients.StartJanitor(ctx, cfg.CacheSweepInterval)
			logger.Debug().Dur("every", cfg.CacheSweepInterval).Msg("janitors started")
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

var Module = fx.Options(
	logger.Module,
	config.Module,
	fx.Provide(database.New),
	// repos
	fx.Provide(repository.NewPlayerRepository),
	fx.Provide(ProvidePlayerIndex),
	fx.Provide(ProvidePlayerSearcher),
	// upstream
	fx.Provide(ProvideLimiter),
	fx.Provide(api.NewRiotClient),
	fx.Provide(ProvideUpstream),
	// svc
	fx.Provide(service.NewCaches),
	fx.Provide(service.NewReviewService),
	fx.Provide(ProvideReviewer),
	// server
	fx.Provide(ProvideClientLimiter),
	fx.Provide(server.NewStatus),
	fx.Provide(ProvideStatusSource),
	fx.Provide(server.NewReviewServer),
	fx.Invoke(StartJanitors),
)
