package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"lol-reviewer/internal/constants"
	"lol-reviewer/internal/domain"

	"github.com/rs/zerolog"
)

const playerColumns = `puuid, name, tag, region, review_count, last_win_rate, last_report_id, last_reviewed_at`

type PlayerRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewPlayerRepository(sqlDB *sql.DB, logger zerolog.Logger) *PlayerRepository {
	return &PlayerRepository{
		db:     sqlDB,
		logger: logger,
	}
}

// RecordReview upserts the reviewed player and bumps their review count.
func (r *PlayerRepository) RecordReview(ctx context.Context, report *domain.Report) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	p := report.Player
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reviewed_players (`+playerColumns+`)
		VALUES (?, ?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT (puuid) DO UPDATE SET
			name = excluded.name,
			tag = excluded.tag,
			region = excluded.region,
			review_count = reviewed_players.review_count + 1,
			last_win_rate = excluded.last_win_rate,
			last_report_id = excluded.last_report_id,
			last_reviewed_at = excluded.last_reviewed_at`,
		p.Puuid, p.Name, p.Tag, string(p.Region),
		report.Aggregate.WinRate, report.ID, report.GeneratedAt.UTC(),
	)
	if err != nil {
		r.logger.Error().Err(err).Str("puuid", p.Puuid).Msg("failed to record review")
		return fmt.Errorf("failed to record review: %w", err)
	}

	r.logger.Debug().Str("puuid", p.Puuid).Str("report_id", report.ID).Msg("review recorded")
	return nil
}

func (r *PlayerRepository) Get(ctx context.Context, puuid string) (*domain.ReviewedPlayer, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM reviewed_players WHERE puuid = ?`, puuid)
	player, err := scanPlayer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewError(domain.KindNotFound, "player has not been reviewed", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return player, nil
}

// Search matches query against names and tags. "Name#Tag" narrows both; an
// empty query lists the most recently reviewed players.
func (r *PlayerRepository) Search(ctx context.Context, query string, limit int) ([]domain.ReviewedPlayer, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	query = strings.TrimSpace(query)

	var (
		rows *sql.Rows
		err  error
	)
	switch name, tag, ok := strings.Cut(query, "#"); {
	case query == "":
		rows, err = r.db.QueryContext(ctx, `
			SELECT `+playerColumns+` FROM reviewed_players
			ORDER BY last_reviewed_at DESC
			LIMIT ?`, limit)
	case ok:
		rows, err = r.db.QueryContext(ctx, `
			SELECT `+playerColumns+` FROM reviewed_players
			WHERE name LIKE ? ESCAPE '\' AND tag LIKE ? ESCAPE '\'
			ORDER BY review_count DESC, last_reviewed_at DESC
			LIMIT ?`, escapeLike(name)+"%", escapeLike(tag)+"%", limit)
	default:
		pattern := "%" + escapeLike(query) + "%"
		rows, err = r.db.QueryContext(ctx, `
			SELECT `+playerColumns+` FROM reviewed_players
			WHERE name LIKE ? ESCAPE '\' OR tag LIKE ? ESCAPE '\'
			ORDER BY review_count DESC, last_reviewed_at DESC
			LIMIT ?`, pattern, pattern, limit)
	}
	if err != nil {
		r.logger.Error().Err(err).Str("query", query).Msg("failed to search players")
		return nil, fmt.Errorf("failed to search players: %w", err)
	}
	defer rows.Close()

	players := []domain.ReviewedPlayer{}
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate players: %w", err)
	}
	return players, nil
}

func (r *PlayerRepository) Count(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reviewed_players`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count players: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlayer(s scanner) (*domain.ReviewedPlayer, error) {
	var (
		p          domain.ReviewedPlayer
		region     string
		reviewedAt time.Time
	)
	if err := s.Scan(&p.Puuid, &p.Name, &p.Tag, &region, &p.ReviewCount, &p.LastWinRate, &p.LastReportID, &reviewedAt); err != nil {
		return nil, err
	}
	p.Region = domain.Region(region)
	p.LastReviewedAt = reviewedAt
	return &p, nil
}

// LIKE is case-insensitive for ASCII in SQLite; only the wildcards need escaping.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
