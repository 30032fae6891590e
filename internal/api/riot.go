package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"lol-reviewer/internal/clock"
	"lol-reviewer/internal/config"
	"lol-reviewer/internal/constants"
	"lol-reviewer/internal/domain"
	"lol-reviewer/internal/logger"
	"lol-reviewer/internal/ratelimit"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

type RiotClient struct {
	apiKey       string
	hostTemplate string
	client       *fasthttp.Client
	limiter      *ratelimit.Limiter
	retry        RetryPolicy
	clock        clock.Clock
	logger       zerolog.Logger

	rateLimitMu sync.RWMutex
	rateLimit   RateLimitInfo
}

// RateLimitInfo mirrors the quota headers of the last upstream response.
type RateLimitInfo struct {
	AppLimit    string `json:"app_limit"`
	AppCount    string `json:"app_count"`
	MethodLimit string `json:"method_limit"`
	MethodCount string `json:"method_count"`

	// seconds, from the last 429
	RetryAfter int `json:"retry_after"`

	UpdatedAt time.Time `json:"updated_at"`
}

func NewRiotClient(cfg *config.Config, limiter *ratelimit.Limiter, logger zerolog.Logger) *RiotClient {
	return &RiotClient{
		apiKey:       cfg.RiotAPIKey,
		hostTemplate: cfg.RiotHostTemplate,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         constants.ExternalAPITimeout,
			WriteTimeout:        constants.ExternalAPITimeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		limiter: limiter,
		retry: RetryPolicy{
			MaxAttempts: cfg.UpstreamMaxAttempts,
			BaseDelay:   cfg.UpstreamBaseDelay,
			MaxDelay:    constants.UpstreamMaxDelay,
		},
		clock:  clock.Real{},
		logger: logger,
	}
}

func (c *RiotClient) RateLimitInfo() RateLimitInfo {
	c.rateLimitMu.RLock()
	defer c.rateLimitMu.RUnlock()
	return c.rateLimit
}

func (c *RiotClient) updateRateLimit(resp *fasthttp.Response) {
	c.rateLimitMu.Lock()
	defer c.rateLimitMu.Unlock()

	if v := string(resp.Header.Peek("X-App-Rate-Limit")); v != "" {
		c.rateLimit.AppLimit = v
	}
	if v := string(resp.Header.Peek("X-App-Rate-Limit-Count")); v != "" {
		c.rateLimit.AppCount = v
	}
	if v := string(resp.Header.Peek("X-Method-Rate-Limit")); v != "" {
		c.rateLimit.MethodLimit = v
	}
	if v := string(resp.Header.Peek("X-Method-Rate-Limit-Count")); v != "" {
		c.rateLimit.MethodCount = v
	}
	if resp.StatusCode() == fasthttp.StatusTooManyRequests {
		c.rateLimit.RetryAfter = int(retryAfter(resp) / time.Second)
	}
	c.rateLimit.UpdatedAt = c.clock.Now()
}

func (c *RiotClient) host(region domain.Region, account bool) (string, error) {
	routing, ok := region.Routing()
	if !ok {
		return "", domain.InvalidInput("unknown region %q", region)
	}
	// account-v1 is not served from the sea cluster
	if account && routing == "sea" {
		routing = "asia"
	}
	return fmt.Sprintf(c.hostTemplate, routing), nil
}

func (c *RiotClient) ResolveIdentity(ctx context.Context, name, tag string, region domain.Region) (*domain.Identity, error) {
	host, err := c.host(region, true)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/riot/account/v1/accounts/by-riot-id/%s/%s", host, url.PathEscape(name), url.PathEscape(tag))
	logger.FromContext(ctx, c.logger).Info().Str("name", name).Str("tag", tag).Str("region", string(region)).Msg("resolving riot id")

	acc, err := doRequest[AccountResponse](ctx, c, "resolve_identity", u)
	if err != nil {
		return nil, err
	}
	if acc.Puuid == "" {
		return nil, &domain.Error{Kind: domain.KindNotFound, Message: "account has no puuid"}
	}

	return &domain.Identity{
		Puuid:  acc.Puuid,
		Name:   acc.GameName,
		Tag:    acc.TagLine,
		Region: region,
	}, nil
}

func (c *RiotClient) ListMatchIDs(ctx context.Context, puuid string, region domain.Region, count int) ([]string, error) {
	host, err := c.host(region, false)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/lol/match/v5/matches/by-puuid/%s/ids?start=0&count=%d", host, url.PathEscape(puuid), count)
	logger.FromContext(ctx, c.logger).Info().Str("puuid", puuid).Int("count", count).Msg("listing match ids")

	ids, err := doRequest[[]string](ctx, c, "list_match_ids", u)
	if err != nil {
		return nil, err
	}
	return *ids, nil
}

func (c *RiotClient) FetchMatch(ctx context.Context, region domain.Region, matchID string) (*domain.Match, error) {
	host, err := c.host(region, false)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/lol/match/v5/matches/%s", host, url.PathEscape(matchID))
	logger.FromContext(ctx, c.logger).Debug().Str("match_id", matchID).Msg("fetching match")

	resp, err := doRequest[MatchResponse](ctx, c, "fetch_match", u)
	if err != nil {
		return nil, err
	}
	return resp.toDomain(), nil
}

func doRequest[T any](ctx context.Context, client *RiotClient, op, uri string) (*T, error) {
	m := newRetryMachine(client.retry)
	log := logger.FromContext(ctx, client.logger)

	for {
		result, o, hint, err := attempt[T](ctx, client, uri)

		state, delay := m.observe(o, hint)
		switch state {
		case stateSuccess:
			return result, nil
		case statePermanentFailure:
			return nil, err
		case stateExhausted:
			log.Error().Err(err).Str("op", op).Int("attempts", m.attempt).Msg("upstream retries exhausted")
			return nil, fmt.Errorf("%s failed after %d attempts: %w", op, m.attempt, err)
		}

		log.Warn().
			Err(err).
			Str("op", op).
			Int("attempt", m.attempt).
			Dur("backoff", delay).
			Msg("transient upstream failure, retrying")

		if err := client.clock.Sleep(ctx, delay); err != nil {
			return nil, &domain.Error{Kind: domain.KindTimeout, Message: op + " cancelled during backoff", Err: err}
		}
		m.advance()
	}
}

// attempt performs one gated HTTP call and classifies its outcome.
func attempt[T any](ctx context.Context, client *RiotClient, uri string) (*T, outcome, time.Duration, error) {
	if err := client.limiter.Acquire(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, outcomePermanent, 0, &domain.Error{Kind: domain.KindTimeout, Message: "waiting for rate limit", Err: ctxErr}
		}
		return nil, outcomePermanent, 0, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(uri)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("X-Riot-Token", client.apiKey)

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = client.client.DoDeadline(req, resp, deadline)
	} else {
		err = client.client.DoTimeout(req, resp, constants.ExternalAPITimeout)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, outcomePermanent, 0, &domain.Error{Kind: domain.KindTimeout, Message: "upstream call abandoned", Err: ctxErr}
		}
		return nil, outcomeTransient, 0, &domain.Error{Kind: domain.KindUpstreamUnavailable, Message: "upstream unreachable", Err: err}
	}

	client.updateRateLimit(resp)

	status := resp.StatusCode()
	switch {
	case status == fasthttp.StatusOK:
		var result T
		if err := json.Unmarshal(resp.Body(), &result); err != nil {
			return nil, outcomePermanent, 0, &domain.Error{Kind: domain.KindUpstreamUnavailable, Message: "malformed upstream response", Status: status, Err: err}
		}
		return &result, outcomeSuccess, 0, nil
	case status == fasthttp.StatusTooManyRequests:
		return nil, outcomeTransient, retryAfter(resp), &domain.Error{Kind: domain.KindUpstreamUnavailable, Message: "upstream rate limit exceeded", Status: status}
	case status >= 500:
		return nil, outcomeTransient, 0, &domain.Error{Kind: domain.KindUpstreamUnavailable, Message: "upstream server error", Status: status}
	case status == fasthttp.StatusNotFound:
		return nil, outcomePermanent, 0, &domain.Error{Kind: domain.KindNotFound, Message: "resource not found", Status: status}
	case status == fasthttp.StatusBadRequest:
		return nil, outcomePermanent, 0, &domain.Error{Kind: domain.KindInvalidInput, Message: "upstream rejected request", Status: status}
	case status == fasthttp.StatusUnauthorized || status == fasthttp.StatusForbidden:
		return nil, outcomePermanent, 0, &domain.Error{Kind: domain.KindUpstream4xx, Message: "upstream authentication failed, check RIOT_API_KEY", Status: status}
	default:
		return nil, outcomePermanent, 0, &domain.Error{Kind: domain.KindUpstream4xx, Message: "unexpected upstream status", Status: status}
	}
}

func retryAfter(resp *fasthttp.Response) time.Duration {
	v := string(resp.Header.Peek("Retry-After"))
	if v == "" {
		return constants.DefaultRetryAfter
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return constants.DefaultRetryAfter
	}
	if secs == 0 {
		return time.Millisecond
	}
	return time.Duration(secs) * time.Second
}

type AccountResponse struct {
	Puuid    string `json:"puuid"`
	GameName string `json:"gameName"`
	TagLine  string `json:"tagLine"`
}

type MatchResponse struct {
	Metadata struct {
		MatchID      string   `json:"matchId"`
		Participants []string `json:"participants"`
	} `json:"metadata"`
	Info struct {
		GameDuration     int64                 `json:"gameDuration"`
		GameEndTimestamp int64                 `json:"gameEndTimestamp"`
		GameMode         string                `json:"gameMode"`
		Participants     []ParticipantResponse `json:"participants"`
	} `json:"info"`
}

type ParticipantResponse struct {
	Puuid                       string `json:"puuid"`
	ChampionName                string `json:"championName"`
	Kills                       int    `json:"kills"`
	Deaths                      int    `json:"deaths"`
	Assists                     int    `json:"assists"`
	TotalMinionsKilled          int    `json:"totalMinionsKilled"`
	NeutralMinionsKilled        int    `json:"neutralMinionsKilled"`
	TotalDamageDealtToChampions int    `json:"totalDamageDealtToChampions"`
	Win                         bool   `json:"win"`
}

func (r *MatchResponse) toDomain() *domain.Match {
	m := &domain.Match{
		MatchID:      r.Metadata.MatchID,
		GameMode:     r.Info.GameMode,
		Duration:     time.Duration(r.Info.GameDuration) * time.Second,
		EndedAt:      time.UnixMilli(r.Info.GameEndTimestamp).UTC(),
		Participants: make([]domain.Participant, 0, len(r.Info.Participants)),
	}
	for _, p := range r.Info.Participants {
		m.Participants = append(m.Participants, domain.Participant{
			Puuid:       p.Puuid,
			Champion:    p.ChampionName,
			Kills:       p.Kills,
			Deaths:      p.Deaths,
			Assists:     p.Assists,
			CreepScore:  p.TotalMinionsKilled + p.NeutralMinionsKilled,
			DamageDealt: p.TotalDamageDealtToChampions,
			Win:         p.Win,
		})
	}
	return m
}
