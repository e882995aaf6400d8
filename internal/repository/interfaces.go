// Package repository defines the persistence surfaces for tournament
// archives (Postgres) and live dashboard state (Redis).
package repository

import (
	"context"

	"github.com/freeeve/botclash/internal/model"
	"github.com/freeeve/botclash/pkg/games"
)

// SeriesRepository archives completed series and their matches.
type SeriesRepository interface {
	SaveSeries(ctx context.Context, s *model.SeriesInfo) error
	GetSeries(ctx context.Context, seriesID string) (*model.SeriesInfo, error)
	ListSeries(ctx context.Context, limit int) ([]SeriesSummary, error)
	SaveMatch(ctx context.Context, seriesID, eventID string, m *model.MatchResult) error
	MatchesByGameType(ctx context.Context, seriesID string, gt games.GameType) ([]*model.MatchResult, error)
}

// SeriesSummary is the listing row for archived series.
type SeriesSummary struct {
	SeriesID  string  `json:"series_id"`
	StartedAt string  `json:"started_at"`
	EndedAt   *string `json:"ended_at,omitempty"`
	Champion  string  `json:"champion,omitempty"`
}

// LiveCache stores the latest live-state snapshot so dashboards can be
// served across engine restarts.
type LiveCache interface {
	StoreSnapshot(ctx context.Context, st *model.LiveState) error
	GetSnapshot(ctx context.Context) (*model.LiveState, error)
}
