package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"lol-reviewer/internal/database"
	"lol-reviewer/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *PlayerRepository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := database.Open(dsn, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPlayerRepository(db, zerolog.Nop())
}

func report(id, puuid, name, tag string, winRate float64, at time.Time) *domain.Report {
	return &domain.Report{
		ID:          id,
		Player:      domain.Identity{Puuid: puuid, Name: name, Tag: tag, Region: "euw1"},
		Aggregate:   domain.AggregateStats{WinRate: winRate},
		GeneratedAt: at,
	}
}

func TestRecordReview_InsertsThenUpdates(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.RecordReview(ctx, report("r1", "p-1", "Caps", "EUW", 0.5, t0)))
	require.NoError(t, repo.RecordReview(ctx, report("r2", "p-1", "Caps", "G2", 0.75, t0.Add(time.Hour))))

	p, err := repo.Get(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.ReviewCount)
	assert.Equal(t, "G2", p.Tag)
	assert.Equal(t, 0.75, p.LastWinRate)
	assert.Equal(t, "r2", p.LastReportID)
	assert.Equal(t, domain.Region("euw1"), p.Region)
	assert.True(t, t0.Add(time.Hour).Equal(p.LastReviewedAt))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGet_UnknownPlayer(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSearch(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.RecordReview(ctx, report("r1", "p-1", "Caps", "EUW", 0.5, t0)))
	require.NoError(t, repo.RecordReview(ctx, report("r2", "p-2", "Caplan", "NA1", 0.4, t0.Add(time.Minute))))
	require.NoError(t, repo.RecordReview(ctx, report("r3", "p-3", "Rekkles", "FNC", 0.6, t0.Add(2*time.Minute))))
	require.NoError(t, repo.RecordReview(ctx, report("r4", "p-4", "100%Win", "EUW", 1, t0.Add(3*time.Minute))))

	t.Run("substring is case-insensitive", func(t *testing.T) {
		got, err := repo.Search(ctx, "cap", 10)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"p-1", "p-2"}, puuids(got))
	})

	t.Run("name and tag prefix", func(t *testing.T) {
		got, err := repo.Search(ctx, "Cap#E", 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"p-1"}, puuids(got))
	})

	t.Run("tag matches", func(t *testing.T) {
		got, err := repo.Search(ctx, "fnc", 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"p-3"}, puuids(got))
	})

	t.Run("wildcards are literal", func(t *testing.T) {
		got, err := repo.Search(ctx, "%", 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"p-4"}, puuids(got))
	})

	t.Run("empty query lists most recent", func(t *testing.T) {
		got, err := repo.Search(ctx, "", 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"p-4", "p-3"}, puuids(got))
	})

	t.Run("no match", func(t *testing.T) {
		got, err := repo.Search(ctx, "zzz", 10)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func puuids(players []domain.ReviewedPlayer) []string {
	out := make([]string, 0, len(players))
	for _, p := range players {
		out = append(out, p.Puuid)
	}
	return out
}
