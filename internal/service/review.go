package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"lol-reviewer/internal/cache"
	"lol-reviewer/internal/clock"
	"lol-reviewer/internal/config"
	"lol-reviewer/internal/domain"
	"lol-reviewer/internal/logger"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Upstream is the remote game-statistics API.
type Upstream interface {
	ResolveIdentity(ctx context.Context, name, tag string, region domain.Region) (*domain.Identity, error)
	ListMatchIDs(ctx context.Context, puuid string, region domain.Region, count int) ([]string, error)
	FetchMatch(ctx context.Context, region domain.Region, matchID string) (*domain.Match, error)
}

// PlayerIndex remembers reviewed players for search suggestions.
type PlayerIndex interface {
	RecordReview(ctx context.Context, report *domain.Report) error
}

type ReviewService struct {
	upstream    Upstream
	index       PlayerIndex
	caches      *Caches
	concurrency int
	timeout     time.Duration
	clock       clock.Clock
	logger      zerolog.Logger
}

func NewReviewService(cfg *config.Config, upstream Upstream, index PlayerIndex, caches *Caches, logger zerolog.Logger) *ReviewService {
	return &ReviewService{
		upstream:    upstream,
		index:       index,
		caches:      caches,
		concurrency: cfg.MatchFetchConcurrency,
		timeout:     cfg.ReviewTimeout,
		clock:       clock.Real{},
		logger:      logger,
	}
}

// Review resolves the player, lists their latest matches and aggregates the
// ones that could be fetched. Identity and match list failures fail the whole
// review; a failed match is recorded in PartialFailures instead.
func (s *ReviewService) Review(ctx context.Context, req ReviewRequest) (*domain.Report, error) {
	in, err := validateRequest(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	log := logger.FromContext(ctx, s.logger)
	log.Info().
		Str("name", in.name).
		Str("tag", in.tag).
		Str("region", string(in.region)).
		Int("count", in.count).
		Msg("starting review")

	identity, err := s.resolveIdentity(ctx, in)
	if err != nil {
		log.Error().Err(err).Str("name", in.name).Str("tag", in.tag).Msg("failed to resolve identity")
		return nil, timeoutAware(ctx, err)
	}

	ids, err := s.listMatchIDs(ctx, identity, in.count)
	if err != nil {
		log.Error().Err(err).Str("puuid", identity.Puuid).Msg("failed to list match ids")
		return nil, timeoutAware(ctx, err)
	}

	details, failures := s.fetchDetails(ctx, identity, ids)
	if ctx.Err() != nil {
		return nil, timeoutAware(ctx, ctx.Err())
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate report id: %w", err)
	}

	report := &domain.Report{
		ID:              id,
		Player:          identity,
		Matches:         details,
		Aggregate:       Aggregate(details),
		PartialFailures: failures,
		Status:          reportStatus(len(details), len(failures)),
		GeneratedAt:     s.clock.Now().UTC(),
	}

	log.Info().
		Str("report_id", report.ID).
		Str("puuid", identity.Puuid).
		Str("status", string(report.Status)).
		Int("matches", len(details)).
		Int("failures", len(failures)).
		Msg("review complete")

	if len(details) > 0 && s.index != nil {
		if err := s.index.RecordReview(ctx, report); err != nil {
			log.Warn().Err(err).Str("puuid", identity.Puuid).Msg("failed to record review in player index")
		}
	}

	return report, nil
}

func (s *ReviewService) resolveIdentity(ctx context.Context, in reviewInput) (domain.Identity, error) {
	key := cache.Key(cache.NamespaceIdentity, strings.ToLower(in.name), strings.ToLower(in.tag), string(in.region))
	return s.caches.Identities.GetOrCompute(ctx, key, 0, func(ctx context.Context) (domain.Identity, error) {
		id, err := s.upstream.ResolveIdentity(ctx, in.name, in.tag, in.region)
		if err != nil {
			return domain.Identity{}, err
		}
		return *id, nil
	})
}

func (s *ReviewService) listMatchIDs(ctx context.Context, identity domain.Identity, count int) ([]string, error) {
	key := cache.Key(cache.NamespaceMatchIDs, identity.Puuid, string(identity.Region), strconv.Itoa(count))
	ids, err := s.caches.MatchIDs.GetOrCompute(ctx, key, 0, func(ctx context.Context) ([]string, error) {
		return s.upstream.ListMatchIDs(ctx, identity.Puuid, identity.Region, count)
	})
	if err != nil {
		return nil, err
	}
	if len(ids) > count {
		ids = ids[:count]
	}
	return ids, nil
}

// fetchDetails fetches every match with at most s.concurrency calls in
// flight. Order of ids is preserved in the result.
func (s *ReviewService) fetchDetails(ctx context.Context, identity domain.Identity, ids []string) ([]domain.MatchDetail, []domain.MatchFailure) {
	type result struct {
		detail domain.MatchDetail
		err    error
	}
	results := make([]result, len(ids))

	g := new(errgroup.Group)
	g.SetLimit(max(s.concurrency, 1))
	for i, matchID := range ids {
		g.Go(func() error {
			detail, err := s.fetchDetail(ctx, identity, matchID)
			results[i] = result{detail: detail, err: err}
			return nil
		})
	}
	_ = g.Wait()

	log := logger.FromContext(ctx, s.logger)
	details := make([]domain.MatchDetail, 0, len(ids))
	failures := []domain.MatchFailure{}
	for i, r := range results {
		if r.err != nil {
			err := timeoutAware(ctx, r.err)
			log.Warn().Err(err).Str("match_id", ids[i]).Msg("excluding match from review")
			failures = append(failures, domain.MatchFailure{
				MatchID: ids[i],
				Kind:    domain.KindOf(err),
				Message: err.Error(),
			})
			continue
		}
		details = append(details, r.detail)
	}
	return details, failures
}

func (s *ReviewService) fetchDetail(ctx context.Context, identity domain.Identity, matchID string) (domain.MatchDetail, error) {
	key := cache.Key(cache.NamespaceMatch, string(identity.Region), matchID)
	match, err := s.caches.Matches.GetOrCompute(ctx, key, 0, func(ctx context.Context) (*domain.Match, error) {
		return s.upstream.FetchMatch(ctx, identity.Region, matchID)
	})
	if err != nil {
		return domain.MatchDetail{}, err
	}
	return match.DetailFor(identity.Puuid)
}

func reportStatus(matches, failures int) domain.ReportStatus {
	switch {
	case matches == 0:
		return domain.StatusNoData
	case failures > 0:
		return domain.StatusPartialSuccess
	default:
		return domain.StatusSuccess
	}
}

// timeoutAware turns a bare context error into a Timeout domain error.
func timeoutAware(ctx context.Context, err error) error {
	if domain.KindOf(err) != domain.KindInternal {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return &domain.Error{Kind: domain.KindTimeout, Message: "review did not finish in time", Err: err}
	}
	return err
}
