package service

import (
	"math"
	"sort"

	"lol-reviewer/internal/constants"
	"lol-reviewer/internal/domain"
)

// Aggregate summarizes matches, which are expected newest first. It depends on
// nothing but its input.
func Aggregate(matches []domain.MatchDetail) domain.AggregateStats {
	stats := domain.AggregateStats{
		TotalMatches: len(matches),
		MostPlayed:   []domain.ChampionCount{},
	}
	if len(matches) == 0 {
		return stats
	}

	var kills, deaths, assists, cs, damage int
	var minutes float64
	for _, m := range matches {
		if m.Win {
			stats.Wins++
		}
		kills += m.Kills
		deaths += m.Deaths
		assists += m.Assists
		cs += m.CreepScore
		damage += m.DamageDealt
		minutes += m.Duration.Minutes()
	}

	n := float64(len(matches))
	stats.Losses = stats.TotalMatches - stats.Wins
	stats.WinRate = round2(float64(stats.Wins) / n)
	stats.AvgKills = round2(float64(kills) / n)
	stats.AvgDeaths = round2(float64(deaths) / n)
	stats.AvgAssists = round2(float64(assists) / n)
	stats.AvgCreepScore = round2(float64(cs) / n)
	stats.AvgDamage = round2(float64(damage) / n)

	if deaths == 0 {
		stats.PerfectKDA = true
		stats.AvgKDA = float64(kills + assists)
	} else {
		stats.AvgKDA = round2(float64(kills+assists) / float64(deaths))
	}
	if minutes > 0 {
		stats.AvgCSPerMinute = round2(float64(cs) / minutes)
	}

	stats.MostPlayed = mostPlayed(matches, constants.MostPlayedChampionsTop)
	stats.MostPlayedChampion = stats.MostPlayed[0].Champion

	best, worst := extremes(matches)
	stats.BestMatch = &best
	stats.WorstMatch = &worst

	return stats
}

// mostPlayed counts champions and orders them by count, breaking ties by the
// champion that was played first.
func mostPlayed(matches []domain.MatchDetail, top int) []domain.ChampionCount {
	type tally struct {
		champion  string
		count     int
		firstAt   int64
		firstSeen int
	}

	byChampion := make(map[string]*tally)
	for i, m := range matches {
		t, ok := byChampion[m.Champion]
		if !ok {
			t = &tally{champion: m.Champion, firstAt: m.EndedAt.UnixNano(), firstSeen: i}
			byChampion[m.Champion] = t
		}
		t.count++
		// list is newest first, so a later index may still be an earlier game
		if at := m.EndedAt.UnixNano(); at < t.firstAt || (at == t.firstAt && i > t.firstSeen) {
			t.firstAt = at
			t.firstSeen = i
		}
	}

	tallies := make([]*tally, 0, len(byChampion))
	for _, t := range byChampion {
		tallies = append(tallies, t)
	}
	sort.Slice(tallies, func(i, j int) bool {
		a, b := tallies[i], tallies[j]
		if a.count != b.count {
			return a.count > b.count
		}
		if a.firstAt != b.firstAt {
			return a.firstAt < b.firstAt
		}
		return a.firstSeen > b.firstSeen
	})

	if len(tallies) > top {
		tallies = tallies[:top]
	}
	out := make([]domain.ChampionCount, 0, len(tallies))
	for _, t := range tallies {
		out = append(out, domain.ChampionCount{Champion: t.champion, Count: t.count})
	}
	return out
}

// extremes picks the best and worst match by Score. Ties go to the most
// recent match.
func extremes(matches []domain.MatchDetail) (domain.MatchDetail, domain.MatchDetail) {
	best, worst := 0, 0
	for i := 1; i < len(matches); i++ {
		s := matches[i].Score()
		if bs := matches[best].Score(); s > bs || (s == bs && moreRecent(matches[i], i, matches[best], best)) {
			best = i
		}
		if ws := matches[worst].Score(); s < ws || (s == ws && moreRecent(matches[i], i, matches[worst], worst)) {
			worst = i
		}
	}
	return matches[best], matches[worst]
}

func moreRecent(a domain.MatchDetail, ai int, b domain.MatchDetail, bi int) bool {
	if !a.EndedAt.Equal(b.EndedAt) {
		return a.EndedAt.After(b.EndedAt)
	}
	return ai < bi
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
