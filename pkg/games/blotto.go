package games

import (
	"fmt"
	"math/rand"
)

type blottoRules struct{}

func (blottoRules) Type() GameType { return Blotto }

func (blottoRules) Rounds(cfg Config) int { return cfg.RoundsBlotto }

func (blottoRules) Init(Config, *rand.Rand, *State, *State) {}

// Prepare publishes the troop budget and battlefield count so agents do
// not have to hardcode the tournament settings.
func (blottoRules) Prepare(_ int, cfg Config, _ *rand.Rand, side1, side2 *State) {
	for _, st := range []*State{side1, side2} {
		st.Extra[ExtraTroops] = cfg.BlottoTroops
		st.Extra[ExtraBattlefields] = cfg.BlottoBattlefields
	}
}

func (blottoRules) Validate(m Move, st *State) error {
	fields, _ := st.Extra[ExtraBattlefields].(int)
	troops, _ := st.Extra[ExtraTroops].(int)
	if len(m.Alloc) != fields {
		return fmt.Errorf("allocation has %d battlefields, want %d", len(m.Alloc), fields)
	}
	sum := 0
	for i, n := range m.Alloc {
		if n < 0 {
			return fmt.Errorf("battlefield %d has negative allocation %d", i+1, n)
		}
		sum += n
	}
	if sum != troops {
		return fmt.Errorf("allocation sums to %d troops, want %d", sum, troops)
	}
	return nil
}

// Score awards one point per battlefield to the larger allocation; equal
// allocations score no point for either side.
func (blottoRules) Score(m1, m2 Move, _, _ *State) (int, int, RoundResult) {
	var p1, p2 int
	for i := range m1.Alloc {
		switch {
		case m1.Alloc[i] > m2.Alloc[i]:
			p1++
		case m2.Alloc[i] > m1.Alloc[i]:
			p2++
		}
	}
	switch {
	case p1 > p2:
		return p1, p2, RoundWin
	case p2 > p1:
		return p1, p2, RoundLoss
	}
	return p1, p2, RoundDraw
}
