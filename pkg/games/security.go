package games

import (
	"fmt"
	"math/rand"
)

// Security target value bounds; each target's value is drawn per round.
const (
	minTargetValue = 1
	maxTargetValue = 10
)

type securityRules struct{}

func (securityRules) Type() GameType { return Security }

func (securityRules) Rounds(cfg Config) int { return cfg.RoundsSecurity }

// Init assigns attacker/defender for the entire match.
func (securityRules) Init(_ Config, rng *rand.Rand, side1, side2 *State) {
	attacker, defender := side1, side2
	if rng.Intn(2) == 1 {
		attacker, defender = side2, side1
	}
	attacker.Extra[ExtraRole] = RoleAttacker
	defender.Extra[ExtraRole] = RoleDefender
}

// Prepare draws fresh target values for the round and publishes them,
// along with the defender's troop budget, to both sides.
func (securityRules) Prepare(_ int, cfg Config, rng *rand.Rand, side1, side2 *State) {
	values := make([]int, cfg.SecurityTargets)
	for i := range values {
		values[i] = minTargetValue + rng.Intn(maxTargetValue-minTargetValue+1)
	}
	for _, st := range []*State{side1, side2} {
		st.Extra[ExtraTargetValues] = append([]int(nil), values...)
		st.Extra[ExtraAvailableTroops] = cfg.SecurityTroops
	}
}

func (securityRules) Validate(m Move, st *State) error {
	values, _ := st.Extra[ExtraTargetValues].([]int)
	if st.Role() == RoleAttacker {
		if m.Target < 0 || m.Target >= len(values) {
			return fmt.Errorf("target index %d out of range [0,%d)", m.Target, len(values))
		}
		return nil
	}

	budget, _ := st.Extra[ExtraAvailableTroops].(int)
	if len(m.Alloc) != len(values) {
		return fmt.Errorf("defense covers %d targets, want %d", len(m.Alloc), len(values))
	}
	sum := 0
	for i, n := range m.Alloc {
		if n < 0 {
			return fmt.Errorf("target %d has negative defense %d", i, n)
		}
		sum += n
	}
	if sum > budget {
		return fmt.Errorf("defense sums to %d troops, budget is %d", sum, budget)
	}
	return nil
}

// Score pays the attacker the undefended remainder of the chosen target's
// value and the defender the covered portion.
func (securityRules) Score(m1, m2 Move, side1, _ *State) (int, int, RoundResult) {
	values, _ := side1.Extra[ExtraTargetValues].([]int)

	attack, defense := m1, m2
	if side1.Role() == RoleDefender {
		attack, defense = m2, m1
	}

	value := values[attack.Target]
	covered := 0
	if attack.Target < len(defense.Alloc) {
		covered = defense.Alloc[attack.Target]
	}

	attackerPayoff := value - covered
	if attackerPayoff < 0 {
		attackerPayoff = 0
	}
	defenderPayoff := covered
	if defenderPayoff > value {
		defenderPayoff = value
	}

	d1, d2 := attackerPayoff, defenderPayoff
	if side1.Role() == RoleDefender {
		d1, d2 = defenderPayoff, attackerPayoff
	}
	switch {
	case d1 > d2:
		return d1, d2, RoundWin
	case d2 > d1:
		return d1, d2, RoundLoss
	}
	return d1, d2, RoundDraw
}
