package games

import (
	"fmt"
	"math/rand"
	"strings"
)

// RPSLS throws.
const (
	Rock     = "rock"
	Paper    = "paper"
	Scissors = "scissors"
	Lizard   = "lizard"
	Spock    = "spock"
)

// beats maps each throw to the set of throws it defeats.
var beats = map[string]map[string]bool{
	Rock:     {Scissors: true, Lizard: true},
	Paper:    {Rock: true, Spock: true},
	Scissors: {Paper: true, Lizard: true},
	Lizard:   {Spock: true, Paper: true},
	Spock:    {Scissors: true, Rock: true},
}

type rpslsRules struct{}

func (rpslsRules) Type() GameType { return RPSLS }

func (rpslsRules) Rounds(cfg Config) int { return cfg.RoundsRPSLS }

func (rpslsRules) Init(Config, *rand.Rand, *State, *State) {}

func (rpslsRules) Prepare(int, Config, *rand.Rand, *State, *State) {}

func (rpslsRules) Validate(m Move, _ *State) error {
	throw := normalizeThrow(m.Choice)
	if _, ok := beats[throw]; !ok {
		return fmt.Errorf("invalid throw %q: must be one of rock, paper, scissors, lizard, spock", m.Choice)
	}
	return nil
}

func (rpslsRules) Score(m1, m2 Move, _, _ *State) (int, int, RoundResult) {
	t1 := normalizeThrow(m1.Choice)
	t2 := normalizeThrow(m2.Choice)
	switch {
	case t1 == t2:
		return 0, 0, RoundDraw
	case beats[t1][t2]:
		return 1, 0, RoundWin
	default:
		return 0, 1, RoundLoss
	}
}

func normalizeThrow(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
