// Package model defines the data entities shared across the tournament
// engine. Structs here are data-only; ownership and mutation rules live
// with the components that produce them.
package model

import (
	"time"

	"github.com/freeeve/botclash/pkg/games"
)

// Outcome classifies how a match ended.
type Outcome string

const (
	Bot1Wins  Outcome = "bot1_wins"
	Bot2Wins  Outcome = "bot2_wins"
	Draw      Outcome = "draw"
	Bot1Error Outcome = "bot1_error"
	Bot2Error Outcome = "bot2_error"
	BothError Outcome = "both_error"
)

// IsError reports whether the outcome was caused by an agent fault.
func (o Outcome) IsError() bool {
	return o == Bot1Error || o == Bot2Error || o == BothError
}

// FaultKind names the ways an agent invocation can fail.
type FaultKind string

const (
	FaultTimeout        FaultKind = "TimedOut"
	FaultThrown         FaultKind = "Threw"
	FaultInvalid        FaultKind = "InvalidOutput"
	FaultMemoryExceeded FaultKind = "MemoryExceeded"
)

// RoundLogEntry records one round of a match from the neutral perspective.
type RoundLogEntry struct {
	Round     int               `json:"round"`
	Bot1Move  games.Move        `json:"bot1_move"`
	Bot2Move  games.Move        `json:"bot2_move"`
	Bot1Delta int               `json:"bot1_delta"`
	Bot2Delta int               `json:"bot2_delta"`
	Result    games.RoundResult `json:"result"` // bot1's perspective
}

// MatchResult is the immutable record of one completed match.
type MatchResult struct {
	MatchID   string          `json:"match_id"`
	GameType  games.GameType  `json:"game_type"`
	Bot1Name  string          `json:"bot1_name"`
	Bot2Name  string          `json:"bot2_name"`
	Outcome   Outcome         `json:"outcome"`
	Winner    string          `json:"winner,omitempty"`
	Bot1Score int             `json:"bot1_score"`
	Bot2Score int             `json:"bot2_score"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   time.Time       `json:"ended_at"`
	RoundLog  []RoundLogEntry `json:"round_log,omitempty"`
	Errors    []string        `json:"errors,omitempty"`
}

// Duration returns the wall-clock length of the match.
func (m *MatchResult) Duration() time.Duration {
	return m.EndedAt.Sub(m.StartedAt)
}

// GroupStanding is one bot's record within a group.
type GroupStanding struct {
	BotName  string `json:"bot_name"`
	Points   int    `json:"points"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
	Draws    int    `json:"draws"`
	GoalDiff int    `json:"goal_diff"`
}

// Group is a round-robin pool of bots within an event.
type Group struct {
	GroupID   string                    `json:"group_id"`
	Bots      []string                  `json:"bots"`
	Standings map[string]*GroupStanding `json:"standings"`
	Complete  bool                      `json:"complete"`
}

// StandingsList returns the group's standings as a slice of copies, in no
// particular order. Callers rank via the scoring package.
func (g *Group) StandingsList() []GroupStanding {
	out := make([]GroupStanding, 0, len(g.Standings))
	for _, s := range g.Standings {
		out = append(out, *s)
	}
	return out
}

// EventState tracks an event's lifecycle. Transitions are monotone:
// pending -> in_progress -> completed.
type EventState string

const (
	EventPending    EventState = "pending"
	EventInProgress EventState = "in_progress"
	EventCompleted  EventState = "completed"
)

// EventInfo is one game's bracket within a tournament.
type EventInfo struct {
	EventID  string         `json:"event_id"`
	GameType games.GameType `json:"game_type"`
	State    EventState     `json:"state"`
	Groups   []*Group       `json:"groups,omitempty"`
	Final    *Group         `json:"final,omitempty"`
	Matches  []*MatchResult `json:"matches,omitempty"`
	Winner   string         `json:"winner,omitempty"`
}

// TournamentState tracks a tournament's lifecycle.
type TournamentState string

const (
	TournamentPending    TournamentState = "pending"
	TournamentInProgress TournamentState = "in_progress"
	TournamentCompleted  TournamentState = "completed"
)

// TournamentInfo is the record of one tournament: the four events played in
// sequence by the same agent set.
type TournamentInfo struct {
	TournamentID   string                            `json:"tournament_id"`
	State          TournamentState                   `json:"state"`
	Events         map[games.GameType]*EventInfo     `json:"events,omitempty"`
	EventOrder     []games.GameType                  `json:"event_order,omitempty"`
	RegisteredBots []string                          `json:"registered_bots"`
	Scores         map[string]int                    `json:"scores,omitempty"` // cross-event match-win totals
	ScoresByGame   map[string]map[games.GameType]int `json:"scores_by_game,omitempty"`
	Champion       string                            `json:"champion,omitempty"`
	StartedAt      time.Time                         `json:"started_at"`
	EndedAt        *time.Time                        `json:"ended_at,omitempty"`
}

// SeriesStanding is one bot's aggregate across a series of tournaments.
type SeriesStanding struct {
	BotName        string                 `json:"bot_name"`
	TotalScore     int                    `json:"total_score"`
	TournamentsWon int                    `json:"tournaments_won"`
	Placements     []int                  `json:"placements,omitempty"`
	ScoresByGame   map[games.GameType]int `json:"scores_by_game,omitempty"`
}

// SeriesInfo is the durable record of a tournament series; its JSON form is
// the only artefact the engine persists.
type SeriesInfo struct {
	SeriesID       string            `json:"series_id"`
	StartedAt      time.Time         `json:"started_at"`
	EndedAt        *time.Time        `json:"ended_at,omitempty"`
	Tournaments    []*TournamentInfo `json:"tournaments"`
	Standings      []SeriesStanding  `json:"series_standings"`
	SeriesChampion string            `json:"series_champion,omitempty"`
}

// LoadFailure reports an agent that could not be loaded. Load failures are
// logged and excluded; they never fail a tournament.
type LoadFailure struct {
	TeamName string   `json:"team_name"`
	Errors   []string `json:"errors"`
}

// LiveState is the coherent current-state view the aggregator materialises
// from the event stream for dashboard consumers.
type LiveState struct {
	SeriesID          string                     `json:"series_id,omitempty"`
	TournamentIndex   int                        `json:"tournament_index"`
	TotalTournaments  int                        `json:"total_tournaments"`
	CurrentTournament string                     `json:"current_tournament,omitempty"`
	CurrentEvent      string                     `json:"current_event,omitempty"`
	CurrentGameType   games.GameType             `json:"current_game_type,omitempty"`
	EventIndex        int                        `json:"event_index"`
	TotalEvents       int                        `json:"total_events"`
	Stage             string                     `json:"stage,omitempty"`
	GroupStandings    map[string][]GroupStanding `json:"group_standings,omitempty"` // eventID/groupID -> ranked standings
	RecentMatches     map[string][]*MatchResult  `json:"recent_matches,omitempty"`  // eventID -> last N
	Leaders           []SeriesStanding           `json:"leaders,omitempty"`
	Champion          string                     `json:"champion,omitempty"`
	UpdatedAt         time.Time                  `json:"updated_at"`
}
