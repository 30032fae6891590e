package service

import (
	"testing"
	"time"

	"lol-reviewer/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func detail(id, champion string, k, d, a int, win bool, endedAgo time.Duration) domain.MatchDetail {
	return domain.MatchDetail{
		MatchID:     id,
		Champion:    champion,
		Kills:       k,
		Deaths:      d,
		Assists:     a,
		CreepScore:  150,
		DamageDealt: 15000,
		Win:         win,
		Duration:    25 * time.Minute,
		EndedAt:     baseTime.Add(-endedAgo),
	}
}

func TestAggregate_Empty(t *testing.T) {
	stats := Aggregate(nil)

	assert.Zero(t, stats.TotalMatches)
	assert.Zero(t, stats.WinRate)
	assert.NotNil(t, stats.MostPlayed)
	assert.Empty(t, stats.MostPlayed)
	assert.Nil(t, stats.BestMatch)
	assert.Nil(t, stats.WorstMatch)
}

func TestAggregate_Totals(t *testing.T) {
	matches := []domain.MatchDetail{
		detail("m1", "Ahri", 10, 2, 8, true, 1*time.Hour),
		detail("m2", "Ahri", 4, 6, 5, false, 2*time.Hour),
		detail("m3", "Lux", 7, 2, 12, true, 3*time.Hour),
		detail("m4", "Zed", 3, 5, 2, false, 4*time.Hour),
	}

	stats := Aggregate(matches)

	assert.Equal(t, 4, stats.TotalMatches)
	assert.Equal(t, 2, stats.Wins)
	assert.Equal(t, 2, stats.Losses)
	assert.Equal(t, 0.5, stats.WinRate)
	assert.Equal(t, 6.0, stats.AvgKills)
	assert.Equal(t, 3.75, stats.AvgDeaths)
	assert.Equal(t, 6.75, stats.AvgAssists)
	// (24 + 27) / 15
	assert.Equal(t, 3.4, stats.AvgKDA)
	assert.False(t, stats.PerfectKDA)
	assert.Equal(t, 150.0, stats.AvgCreepScore)
	assert.Equal(t, 6.0, stats.AvgCSPerMinute)
	assert.Equal(t, 15000.0, stats.AvgDamage)
	assert.Equal(t, "Ahri", stats.MostPlayedChampion)
	assert.Equal(t, []domain.ChampionCount{
		{Champion: "Ahri", Count: 2},
		{Champion: "Zed", Count: 1},
		{Champion: "Lux", Count: 1},
	}, stats.MostPlayed)
}

func TestAggregate_PerfectKDA(t *testing.T) {
	stats := Aggregate([]domain.MatchDetail{
		detail("m1", "Ahri", 5, 0, 3, true, time.Hour),
		detail("m2", "Ahri", 2, 0, 1, true, 2*time.Hour),
	})

	assert.True(t, stats.PerfectKDA)
	assert.Equal(t, 11.0, stats.AvgKDA)
}

func TestAggregate_MostPlayedTieGoesToEarliestPlayed(t *testing.T) {
	// newest first: Lux is the older champion of the two tied
	matches := []domain.MatchDetail{
		detail("m1", "Ahri", 1, 1, 1, true, 1*time.Hour),
		detail("m2", "Lux", 1, 1, 1, true, 2*time.Hour),
		detail("m3", "Ahri", 1, 1, 1, true, 3*time.Hour),
		detail("m4", "Lux", 1, 1, 1, true, 4*time.Hour),
	}

	stats := Aggregate(matches)
	assert.Equal(t, "Lux", stats.MostPlayedChampion)
}

func TestAggregate_MostPlayedIsCappedAtTopFive(t *testing.T) {
	var matches []domain.MatchDetail
	for i, c := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		matches = append(matches, detail("m"+c, c, 1, 1, 1, true, time.Duration(i)*time.Hour))
	}

	stats := Aggregate(matches)
	assert.Len(t, stats.MostPlayed, 5)
	assert.Equal(t, "G", stats.MostPlayed[0].Champion, "oldest champion wins the tie")
}

func TestAggregate_BestAndWorst(t *testing.T) {
	matches := []domain.MatchDetail{
		detail("m1", "Ahri", 5, 5, 5, true, 1*time.Hour),
		detail("m2", "Ahri", 15, 1, 10, true, 2*time.Hour),
		detail("m3", "Ahri", 0, 10, 1, false, 3*time.Hour),
	}

	stats := Aggregate(matches)
	require.NotNil(t, stats.BestMatch)
	require.NotNil(t, stats.WorstMatch)
	assert.Equal(t, "m2", stats.BestMatch.MatchID)
	assert.Equal(t, "m3", stats.WorstMatch.MatchID)
}

func TestAggregate_ScoreTiesGoToMostRecent(t *testing.T) {
	// same score everywhere; given oldest first to make sure order is not relied on
	matches := []domain.MatchDetail{
		detail("old", "Ahri", 2, 1, 2, true, 3*time.Hour),
		detail("new", "Ahri", 2, 1, 2, true, 1*time.Hour),
		detail("mid", "Ahri", 2, 1, 2, true, 2*time.Hour),
	}

	stats := Aggregate(matches)
	assert.Equal(t, "new", stats.BestMatch.MatchID)
	assert.Equal(t, "new", stats.WorstMatch.MatchID)
}

func TestAggregate_Idempotent(t *testing.T) {
	matches := []domain.MatchDetail{
		detail("m1", "Ahri", 10, 2, 8, true, 1*time.Hour),
		detail("m2", "Lux", 4, 6, 5, false, 2*time.Hour),
		detail("m3", "Zed", 7, 0, 12, true, 3*time.Hour),
	}

	first := Aggregate(matches)
	second := Aggregate(matches)
	assert.Equal(t, first, second)
}
