// Package events is the in-process pub/sub surface carrying tournament
// lifecycle events to dashboard subscribers. Lifecycle topics are lossless
// FIFO with backpressure on the publisher; standings and snapshot topics
// are coalesced to the latest value when a subscriber falls behind.
package events

import (
	"time"

	"github.com/freeeve/botclash/internal/model"
	"github.com/freeeve/botclash/pkg/games"
)

// Type identifies a topic. Names are stable for wire compatibility with
// dashboard clients.
type Type string

const (
	SeriesStarted         Type = "SeriesStarted"
	SeriesCompleted       Type = "SeriesCompleted"
	TournamentStarted     Type = "TournamentStarted"
	TournamentCompleted   Type = "TournamentCompleted"
	EventStarted          Type = "EventStarted"
	EventCompleted        Type = "EventCompleted"
	EventStageChanged     Type = "EventStageChanged"
	RoundStarted          Type = "RoundStarted"
	MatchCompleted        Type = "MatchCompleted"
	StandingsUpdated      Type = "StandingsUpdated"
	GroupStandingsUpdated Type = "GroupStandingsUpdated"
	StateSnapshot         Type = "StateSnapshot"
)

// Lossy reports whether the topic may be coalesced for slow subscribers.
// Lifecycle topics are never dropped.
func (t Type) Lossy() bool {
	switch t {
	case StandingsUpdated, GroupStandingsUpdated, StateSnapshot:
		return true
	}
	return false
}

// Event is the envelope published on the bus.
type Event struct {
	Type    Type      `json:"type"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload"`
}

// Coalescable payloads scope lossy coalescing: only events on the same
// topic with the same key collapse into each other. Payloads without it
// coalesce per topic.
type Coalescable interface {
	CoalesceKey() string
}

// Stage names published via EventStageChanged.
const (
	StageGroups  = "group_stage"
	StagePlayoff = "playoff_group"
)

// SeriesStartedPayload announces a new tournament series.
type SeriesStartedPayload struct {
	SeriesID    string   `json:"series_id"`
	Tournaments int      `json:"tournaments"`
	Bots        []string `json:"bots"`
}

// SeriesCompletedPayload carries the final series record.
type SeriesCompletedPayload struct {
	Series *model.SeriesInfo `json:"series"`
}

// TournamentStartedPayload announces one tournament within a series.
type TournamentStartedPayload struct {
	SeriesID     string   `json:"series_id,omitempty"`
	TournamentID string   `json:"tournament_id"`
	Index        int      `json:"index"`
	Total        int      `json:"total"`
	Bots         []string `json:"bots"`
}

// TournamentCompletedPayload carries the finished tournament record.
type TournamentCompletedPayload struct {
	Tournament *model.TournamentInfo `json:"tournament"`
}

// EventStartedPayload announces one game event within a tournament.
type EventStartedPayload struct {
	TournamentID string         `json:"tournament_id"`
	EventID      string         `json:"event_id"`
	GameType     games.GameType `json:"game_type"`
	Index        int            `json:"index"`
	Total        int            `json:"total"`
	Groups       []*model.Group `json:"groups,omitempty"`
}

// EventCompletedPayload announces an event winner.
type EventCompletedPayload struct {
	TournamentID string         `json:"tournament_id"`
	EventID      string         `json:"event_id"`
	GameType     games.GameType `json:"game_type"`
	Winner       string         `json:"winner,omitempty"`
}

// StageChangedPayload marks the transition from group stage to the final
// playoff group within an event.
type StageChangedPayload struct {
	EventID  string         `json:"event_id"`
	GameType games.GameType `json:"game_type"`
	Stage    string         `json:"stage"`
}

// RoundStartedPayload marks the start of a round within a match.
type RoundStartedPayload struct {
	MatchID  string         `json:"match_id"`
	GameType games.GameType `json:"game_type"`
	Round    int            `json:"round"`
	Total    int            `json:"total"`
}

// MatchCompletedPayload carries one finished match.
type MatchCompletedPayload struct {
	EventID string             `json:"event_id,omitempty"`
	Match   *model.MatchResult `json:"match"`
}

// GroupStandingsPayload carries a ranked snapshot of one group.
type GroupStandingsPayload struct {
	EventID   string                `json:"event_id"`
	GroupID   string                `json:"group_id"`
	Standings []model.GroupStanding `json:"standings"`
}

// CoalesceKey scopes coalescing to one group, so a slow subscriber still
// sees the latest standings of every group.
func (p GroupStandingsPayload) CoalesceKey() string {
	return p.EventID + "/" + p.GroupID
}

// StandingsUpdatedPayload carries cross-event or cross-tournament leaders.
type StandingsUpdatedPayload struct {
	Scope     string                 `json:"scope"` // "tournament" or "series"
	Standings []model.SeriesStanding `json:"standings"`
}

// StateSnapshotPayload carries a full live-state view.
type StateSnapshotPayload struct {
	State *model.LiveState `json:"state"`
}
