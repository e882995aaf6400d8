// Package games implements the rules for the four tournament games:
// RPSLS, Colonel Blotto, Penalty Kicks, and the Security Game. The package
// is pure: validation, scoring, and per-round setup have no side effects
// beyond the state they are handed.
package games

import (
	"fmt"
	"math/rand"
)

// GameType identifies one of the four tournament games.
type GameType string

const (
	RPSLS    GameType = "rpsls"
	Blotto   GameType = "blotto"
	Penalty  GameType = "penalty"
	Security GameType = "security"
)

// AllGameTypes returns the game types in their default tournament order.
func AllGameTypes() []GameType {
	return []GameType{RPSLS, Blotto, Penalty, Security}
}

// Valid reports whether gt is a known game type.
func (gt GameType) Valid() bool {
	switch gt {
	case RPSLS, Blotto, Penalty, Security:
		return true
	}
	return false
}

func (gt GameType) String() string { return string(gt) }

// ParseGameType converts a string into a GameType.
func ParseGameType(s string) (GameType, error) {
	gt := GameType(s)
	if !gt.Valid() {
		return "", fmt.Errorf("unknown game type %q", s)
	}
	return gt, nil
}

// RoundResult is the outcome of a single round from one side's perspective.
type RoundResult string

const (
	RoundWin  RoundResult = "win"
	RoundLoss RoundResult = "loss"
	RoundDraw RoundResult = "draw"
)

// Invert flips a result to the opposing side's perspective.
func (r RoundResult) Invert() RoundResult {
	switch r {
	case RoundWin:
		return RoundLoss
	case RoundLoss:
		return RoundWin
	}
	return RoundDraw
}

// Move is the payload an agent returns for one round. Which fields are
// meaningful depends on the game and, for Security, on the agent's role:
// Choice carries RPSLS throws and Penalty directions, Alloc carries Blotto
// and Security-defender distributions, Target carries the Security
// attacker's target index.
type Move struct {
	Choice string `json:"choice,omitempty"`
	Alloc  []int  `json:"alloc,omitempty"`
	Target int    `json:"target,omitempty"`
}

// HistoryEntry records one completed round as seen by one side.
type HistoryEntry struct {
	Round        int         `json:"round"`
	MyMove       Move        `json:"my_move"`
	OpponentMove Move        `json:"opponent_move"`
	Result       RoundResult `json:"result"`
}

// Extra keys published through State.Extra.
const (
	ExtraRole            = "role"
	ExtraBattlefields    = "battlefields"
	ExtraTroops          = "troops"
	ExtraTargetValues    = "targetValues"
	ExtraAvailableTroops = "availableTroops"
)

// Role values for Penalty and Security.
const (
	RoleShooter    = "shooter"
	RoleGoalkeeper = "goalkeeper"
	RoleAttacker   = "attacker"
	RoleDefender   = "defender"
)

// State is one side's view into a match. The match executor owns the
// canonical states; agents receive deep copies via Clone.
type State struct {
	GameType    GameType       `json:"game_type"`
	Round       int            `json:"round"`
	TotalRounds int            `json:"total_rounds"`
	MyScore     int            `json:"my_score"`
	OppScore    int            `json:"opp_score"`
	History     []HistoryEntry `json:"history"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// Clone returns a deep copy safe to hand to an untrusted agent.
func (s *State) Clone() *State {
	c := *s
	c.History = make([]HistoryEntry, len(s.History))
	for i, h := range s.History {
		c.History[i] = h
		if h.MyMove.Alloc != nil {
			c.History[i].MyMove.Alloc = append([]int(nil), h.MyMove.Alloc...)
		}
		if h.OpponentMove.Alloc != nil {
			c.History[i].OpponentMove.Alloc = append([]int(nil), h.OpponentMove.Alloc...)
		}
	}
	c.Extra = cloneExtra(s.Extra)
	return &c
}

func cloneExtra(extra map[string]any) map[string]any {
	if extra == nil {
		return nil
	}
	c := make(map[string]any, len(extra))
	for k, v := range extra {
		if ints, ok := v.([]int); ok {
			c[k] = append([]int(nil), ints...)
			continue
		}
		c[k] = v
	}
	return c
}

// Role returns the role string published in Extra, or "".
func (s *State) Role() string {
	role, _ := s.Extra[ExtraRole].(string)
	return role
}

// Config carries the per-game tuning knobs. Zero values are replaced by
// the defaults below at validation time; rules implementations read the
// config as-is.
type Config struct {
	RoundsRPSLS        int `json:"rounds_rpsls"`
	RoundsBlotto       int `json:"rounds_blotto"`
	RoundsPenalty      int `json:"rounds_penalty"`
	RoundsSecurity     int `json:"rounds_security"`
	BlottoTroops       int `json:"blotto_troops"`
	BlottoBattlefields int `json:"blotto_battlefields"`
	SecurityTargets    int `json:"security_targets"`
	SecurityTroops     int `json:"security_troops"`
}

// DefaultConfig returns the standard tournament settings.
func DefaultConfig() Config {
	return Config{
		RoundsRPSLS:        50,
		RoundsBlotto:       1,
		RoundsPenalty:      9,
		RoundsSecurity:     5,
		BlottoTroops:       100,
		BlottoBattlefields: 5,
		SecurityTargets:    4,
		SecurityTroops:     20,
	}
}

// Rules defines the game-specific pieces the match executor composes:
// round count, per-match and per-round state setup, move validation, and
// round scoring. Implementations are stateless; any randomness (role
// assignment, target values) draws from the rng the executor passes in.
type Rules interface {
	Type() GameType

	// Rounds returns the number of rounds a match of this game plays.
	Rounds(cfg Config) int

	// Init performs once-per-match setup on both sides' states, such as
	// fixed role assignment.
	Init(cfg Config, rng *rand.Rand, side1, side2 *State)

	// Prepare fills per-round Extra values on both sides before moves are
	// requested for the given round.
	Prepare(round int, cfg Config, rng *rand.Rand, side1, side2 *State)

	// Validate checks a move against the validity predicate for the game,
	// from the perspective of the side owning st.
	Validate(m Move, st *State) error

	// Score applies the round-scoring function to both moves and returns
	// the score deltas and side1's round result. side2's result is the
	// inverse.
	Score(m1, m2 Move, side1, side2 *State) (d1, d2 int, r RoundResult)
}

// RulesFor returns the rules implementation for a game type, or nil if
// the type is unknown.
func RulesFor(gt GameType) Rules {
	switch gt {
	case RPSLS:
		return rpslsRules{}
	case Blotto:
		return blottoRules{}
	case Penalty:
		return penaltyRules{}
	case Security:
		return securityRules{}
	}
	return nil
}
