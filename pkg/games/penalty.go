package games

import (
	"fmt"
	"math/rand"
	"strings"
)

// Penalty kick directions.
const (
	Left   = "left"
	Center = "center"
	Right  = "right"
)

// Penalty scoring: a matching guess is a save worth 2 points to the
// goalkeeper, otherwise the shooter scores 1.
const (
	savePoints = 2
	goalPoints = 1
)

type penaltyRules struct{}

func (penaltyRules) Type() GameType { return Penalty }

func (penaltyRules) Rounds(cfg Config) int { return cfg.RoundsPenalty }

// Init picks which side shoots for the entire match; the other side keeps
// goal. Roles are published through Extra.
func (penaltyRules) Init(_ Config, rng *rand.Rand, side1, side2 *State) {
	shooter, keeper := side1, side2
	if rng.Intn(2) == 1 {
		shooter, keeper = side2, side1
	}
	shooter.Extra[ExtraRole] = RoleShooter
	keeper.Extra[ExtraRole] = RoleGoalkeeper
}

func (penaltyRules) Prepare(int, Config, *rand.Rand, *State, *State) {}

func (penaltyRules) Validate(m Move, _ *State) error {
	switch strings.ToLower(strings.TrimSpace(m.Choice)) {
	case Left, Center, Right:
		return nil
	}
	return fmt.Errorf("invalid direction %q: must be left, center, or right", m.Choice)
}

func (penaltyRules) Score(m1, m2 Move, side1, _ *State) (int, int, RoundResult) {
	d1 := strings.ToLower(strings.TrimSpace(m1.Choice))
	d2 := strings.ToLower(strings.TrimSpace(m2.Choice))
	side1Shoots := side1.Role() == RoleShooter

	saved := d1 == d2
	switch {
	case saved && side1Shoots:
		return 0, savePoints, RoundLoss
	case saved:
		return savePoints, 0, RoundWin
	case side1Shoots:
		return goalPoints, 0, RoundWin
	default:
		return 0, goalPoints, RoundLoss
	}
}
