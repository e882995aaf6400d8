package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/freeeve/botclash/internal/model"
	"github.com/freeeve/botclash/internal/repository"
	"github.com/freeeve/botclash/pkg/games"
)

// SeriesRepo archives series documents and per-match rows.
type SeriesRepo struct {
	db *sql.DB
}

// NewSeriesRepo creates a SeriesRepo.
func NewSeriesRepo(db *sql.DB) *SeriesRepo {
	return &SeriesRepo{db: db}
}

// SaveSeries upserts the full series record as a JSON document plus the
// indexed columns the listing queries need.
func (r *SeriesRepo) SaveSeries(ctx context.Context, s *model.SeriesInfo) error {
	doc, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal series: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO series (series_id, started_at, ended_at, champion, doc)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (series_id)
		 DO UPDATE SET ended_at = EXCLUDED.ended_at, champion = EXCLUDED.champion, doc = EXCLUDED.doc`,
		s.SeriesID, s.StartedAt, s.EndedAt, s.SeriesChampion, doc,
	)
	if err != nil {
		return fmt.Errorf("save series: %w", err)
	}
	return nil
}

// GetSeries loads one archived series, or nil when unknown.
func (r *SeriesRepo) GetSeries(ctx context.Context, seriesID string) (*model.SeriesInfo, error) {
	var doc []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT doc FROM series WHERE series_id = $1`, seriesID,
	).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get series: %w", err)
	}
	var s model.SeriesInfo
	if err := json.Unmarshal(doc, &s); err != nil {
		return nil, fmt.Errorf("decode series: %w", err)
	}
	return &s, nil
}

// ListSeries returns the most recent series, newest first.
func (r *SeriesRepo) ListSeries(ctx context.Context, limit int) ([]repository.SeriesSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT series_id, started_at::text, ended_at::text, COALESCE(champion, '')
		 FROM series ORDER BY started_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	defer rows.Close()

	var out []repository.SeriesSummary
	for rows.Next() {
		var s repository.SeriesSummary
		var ended sql.NullString
		if err := rows.Scan(&s.SeriesID, &s.StartedAt, &ended, &s.Champion); err != nil {
			return nil, fmt.Errorf("scan series row: %w", err)
		}
		if ended.Valid {
			s.EndedAt = &ended.String
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SaveMatch records one finished match. Inserts are idempotent by match
// ID so a replayed event stream cannot double-archive.
func (r *SeriesRepo) SaveMatch(ctx context.Context, seriesID, eventID string, m *model.MatchResult) error {
	doc, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal match: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO matches
		   (match_id, series_id, event_id, game_type, bot1, bot2, outcome, winner,
		    bot1_score, bot2_score, started_at, ended_at, doc)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (match_id) DO NOTHING`,
		m.MatchID, nullable(seriesID), eventID, string(m.GameType),
		m.Bot1Name, m.Bot2Name, string(m.Outcome), m.Winner,
		m.Bot1Score, m.Bot2Score, m.StartedAt, m.EndedAt, doc,
	)
	if err != nil {
		return fmt.Errorf("save match: %w", err)
	}
	return nil
}

// MatchesByGameType lists a series' archived matches for one game, oldest
// first.
func (r *SeriesRepo) MatchesByGameType(ctx context.Context, seriesID string, gt games.GameType) ([]*model.MatchResult, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT doc FROM matches
		 WHERE series_id = $1 AND game_type = $2
		 ORDER BY ended_at ASC`,
		seriesID, string(gt),
	)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	var out []*model.MatchResult
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan match row: %w", err)
		}
		var m model.MatchResult
		if err := json.Unmarshal(doc, &m); err != nil {
			return nil, fmt.Errorf("decode match: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
