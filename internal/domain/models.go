package domain

import (
	"strings"
	"time"
)

type Region string

// platform -> regional routing value
var regionRouting = map[Region]string{
	"na1":  "americas",
	"br1":  "americas",
	"la1":  "americas",
	"la2":  "americas",
	"euw1": "europe",
	"eun1": "europe",
	"tr1":  "europe",
	"ru":   "europe",
	"kr":   "asia",
	"jp1":  "asia",
	"oc1":  "sea",
	"ph2":  "sea",
	"sg2":  "sea",
	"th2":  "sea",
	"tw2":  "sea",
	"vn2":  "sea",
}

func ParseRegion(s string) (Region, bool) {
	r := Region(strings.ToLower(strings.TrimSpace(s)))
	_, ok := regionRouting[r]
	return r, ok
}

func (r Region) Routing() (string, bool) {
	routing, ok := regionRouting[r]
	return routing, ok
}

func Regions() []Region {
	return []Region{"na1", "br1", "la1", "la2", "euw1", "eun1", "tr1", "ru", "kr", "jp1", "oc1", "ph2", "sg2", "th2", "tw2", "vn2"}
}

type Identity struct {
	Puuid  string `json:"puuid"`
	Name   string `json:"game_name"`
	Tag    string `json:"tag_line"`
	Region Region `json:"region"`
}

func (i Identity) RiotID() string {
	return i.Name + "#" + i.Tag
}

// Match is one upstream match reduced to what reviews need. Participants are
// kept for every player so one fetch serves any player in the match.
type Match struct {
	MatchID      string
	GameMode     string
	Duration     time.Duration
	EndedAt      time.Time
	Participants []Participant
}

type Participant struct {
	Puuid       string
	Champion    string
	Kills       int
	Deaths      int
	Assists     int
	CreepScore  int
	DamageDealt int
	Win         bool
}

// DetailFor extracts the stats of one player. Returns ErrNotFound if the
// player did not take part in the match.
func (m *Match) DetailFor(puuid string) (MatchDetail, error) {
	for _, p := range m.Participants {
		if p.Puuid != puuid {
			continue
		}
		return MatchDetail{
			MatchID:     m.MatchID,
			Champion:    p.Champion,
			Kills:       p.Kills,
			Deaths:      p.Deaths,
			Assists:     p.Assists,
			CreepScore:  p.CreepScore,
			DamageDealt: p.DamageDealt,
			Win:         p.Win,
			Duration:    m.Duration,
			GameMode:    m.GameMode,
			EndedAt:     m.EndedAt,
		}, nil
	}
	return MatchDetail{}, NewError(KindNotFound, "player not found in match "+m.MatchID, nil)
}

type MatchDetail struct {
	MatchID     string        `json:"match_id"`
	Champion    string        `json:"champion"`
	Kills       int           `json:"kills"`
	Deaths      int           `json:"deaths"`
	Assists     int           `json:"assists"`
	CreepScore  int           `json:"cs"`
	DamageDealt int           `json:"damage"`
	Win         bool          `json:"win"`
	Duration    time.Duration `json:"duration_ns"`
	GameMode    string        `json:"game_mode"`
	EndedAt     time.Time     `json:"ended_at"`
}

// KDA uses max(deaths, 1) so deathless games stay comparable.
func (d MatchDetail) KDA() float64 {
	deaths := d.Deaths
	if deaths < 1 {
		deaths = 1
	}
	return float64(d.Kills+d.Assists) / float64(deaths)
}

func (d MatchDetail) CSPerMinute() float64 {
	minutes := d.Duration.Minutes()
	if minutes <= 0 {
		return 0
	}
	return float64(d.CreepScore) / minutes
}

// Score is the composite performance rating used for best/worst picks.
func (d MatchDetail) Score() float64 {
	return 10*d.KDA() + float64(d.DamageDealt)/1000
}

type ChampionCount struct {
	Champion string `json:"champion"`
	Count    int    `json:"count"`
}

type AggregateStats struct {
	TotalMatches       int             `json:"total_matches"`
	Wins               int             `json:"wins"`
	Losses             int             `json:"losses"`
	WinRate            float64         `json:"win_rate"`
	AvgKills           float64         `json:"avg_kills"`
	AvgDeaths          float64         `json:"avg_deaths"`
	AvgAssists         float64         `json:"avg_assists"`
	AvgKDA             float64         `json:"avg_kda"`
	PerfectKDA         bool            `json:"perfect_kda"`
	AvgCreepScore      float64         `json:"avg_cs"`
	AvgCSPerMinute     float64         `json:"avg_cs_per_min"`
	AvgDamage          float64         `json:"avg_damage"`
	MostPlayedChampion string          `json:"most_played_champion,omitempty"`
	MostPlayed         []ChampionCount `json:"most_played_champions"`
	BestMatch          *MatchDetail    `json:"best_match,omitempty"`
	WorstMatch         *MatchDetail    `json:"worst_match,omitempty"`
}

type ReportStatus string

const (
	StatusSuccess        ReportStatus = "success"
	StatusPartialSuccess ReportStatus = "partial_success"
	StatusNoData         ReportStatus = "no_data"
)

type MatchFailure struct {
	MatchID string    `json:"match_id"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

type Report struct {
	ID              string         `json:"id"`
	Player          Identity       `json:"player"`
	Matches         []MatchDetail  `json:"matches"`
	Aggregate       AggregateStats `json:"aggregate"`
	PartialFailures []MatchFailure `json:"partial_failures"`
	Status          ReportStatus   `json:"status"`
	GeneratedAt     time.Time      `json:"generated_at"`
}

// ReviewedPlayer is a row of the process-lifetime player index.
type ReviewedPlayer struct {
	Puuid          string    `json:"puuid"`
	Name           string    `json:"game_name"`
	Tag            string    `json:"tag_line"`
	Region         Region    `json:"region"`
	ReviewCount    int       `json:"review_count"`
	LastWinRate    float64   `json:"last_win_rate"`
	LastReportID   string    `json:"last_report_id"`
	LastReviewedAt time.Time `json:"last_reviewed_at"`
}
