package agent

import (
	"context"
	"fmt"

	"github.com/freeeve/botclash/pkg/games"
)

// Built-in strategy kinds available to the CLI and tests. User-supplied
// agents arrive through the Loader instead.
const (
	KindRandom   = "random"
	KindStubborn = "stubborn"
	KindCounter  = "counter"
)

// NewBuiltin returns a built-in strategy agent for the given kind.
func NewBuiltin(teamName, kind string) (Agent, error) {
	switch kind {
	case KindRandom:
		return &RandomAgent{team: teamName}, nil
	case KindStubborn:
		return &StubbornAgent{team: teamName, Throw: games.Rock, Direction: games.Left}, nil
	case KindCounter:
		return &CounterAgent{team: teamName}, nil
	}
	return nil, fmt.Errorf("unknown builtin strategy %q", kind)
}

var rpslsThrows = []string{games.Rock, games.Paper, games.Scissors, games.Lizard, games.Spock}

var penaltyDirections = []string{games.Left, games.Center, games.Right}

// counter maps each RPSLS throw to one throw that defeats it.
var counter = map[string]string{
	games.Rock:     games.Paper,
	games.Paper:    games.Scissors,
	games.Scissors: games.Rock,
	games.Lizard:   games.Scissors,
	games.Spock:    games.Lizard,
}

// --- RandomAgent ---

// RandomAgent plays uniformly random valid moves in every game.
type RandomAgent struct {
	team string
}

func (a *RandomAgent) TeamName() string { return a.team }

func (a *RandomAgent) MakeMoveRPSLS(_ context.Context, _ *games.State) (games.Move, error) {
	return games.Move{Choice: rpslsThrows[rngIntn(len(rpslsThrows))]}, nil
}

func (a *RandomAgent) AllocateTroops(_ context.Context, st *games.State) (games.Move, error) {
	troops, _ := st.Extra[games.ExtraTroops].(int)
	fields, _ := st.Extra[games.ExtraBattlefields].(int)
	return games.Move{Alloc: randomAlloc(troops, fields)}, nil
}

func (a *RandomAgent) PenaltyDecision(_ context.Context, _ *games.State) (games.Move, error) {
	return games.Move{Choice: penaltyDirections[rngIntn(len(penaltyDirections))]}, nil
}

func (a *RandomAgent) SecurityMove(_ context.Context, st *games.State) (games.Move, error) {
	values, _ := st.Extra[games.ExtraTargetValues].([]int)
	if st.Role() == games.RoleAttacker {
		return games.Move{Target: rngIntn(len(values))}, nil
	}
	budget, _ := st.Extra[games.ExtraAvailableTroops].(int)
	return games.Move{Alloc: randomAlloc(budget, len(values))}, nil
}

// --- StubbornAgent ---

// StubbornAgent plays the same move every round: a fixed RPSLS throw, an
// even Blotto split, a fixed penalty direction, an even defense, and
// always attacks target 0. Deterministic; heavily used in tests.
type StubbornAgent struct {
	team      string
	Throw     string
	Direction string
}

// NewStubborn builds a StubbornAgent with explicit fixed moves.
func NewStubborn(teamName, throw, direction string) *StubbornAgent {
	return &StubbornAgent{team: teamName, Throw: throw, Direction: direction}
}

func (a *StubbornAgent) TeamName() string { return a.team }

func (a *StubbornAgent) MakeMoveRPSLS(_ context.Context, _ *games.State) (games.Move, error) {
	return games.Move{Choice: a.Throw}, nil
}

func (a *StubbornAgent) AllocateTroops(_ context.Context, st *games.State) (games.Move, error) {
	troops, _ := st.Extra[games.ExtraTroops].(int)
	fields, _ := st.Extra[games.ExtraBattlefields].(int)
	return games.Move{Alloc: evenSplit(troops, fields)}, nil
}

func (a *StubbornAgent) PenaltyDecision(_ context.Context, _ *games.State) (games.Move, error) {
	return games.Move{Choice: a.Direction}, nil
}

func (a *StubbornAgent) SecurityMove(_ context.Context, st *games.State) (games.Move, error) {
	if st.Role() == games.RoleAttacker {
		return games.Move{Target: 0}, nil
	}
	values, _ := st.Extra[games.ExtraTargetValues].([]int)
	budget, _ := st.Extra[games.ExtraAvailableTroops].(int)
	return games.Move{Alloc: evenSplit(budget, len(values))}, nil
}

// --- CounterAgent ---

// CounterAgent adapts to the opponent: it counters the last RPSLS throw,
// tilts Blotto allocations, shoots away from the keeper's favorite dive,
// and weights defenses by target value.
type CounterAgent struct {
	team string
}

func (a *CounterAgent) TeamName() string { return a.team }

func (a *CounterAgent) MakeMoveRPSLS(_ context.Context, st *games.State) (games.Move, error) {
	if len(st.History) == 0 {
		return games.Move{Choice: rpslsThrows[rngIntn(len(rpslsThrows))]}, nil
	}
	last := st.History[len(st.History)-1].OpponentMove.Choice
	if c, ok := counter[last]; ok {
		return games.Move{Choice: c}, nil
	}
	return games.Move{Choice: games.Spock}, nil
}

func (a *CounterAgent) AllocateTroops(_ context.Context, st *games.State) (games.Move, error) {
	troops, _ := st.Extra[games.ExtraTroops].(int)
	fields, _ := st.Extra[games.ExtraBattlefields].(int)
	// Concede one battlefield to overweight the rest.
	alloc := make([]int, fields)
	if fields == 1 {
		alloc[0] = troops
		return games.Move{Alloc: alloc}, nil
	}
	skip := rngIntn(fields)
	rest := fields - 1
	each := troops / rest
	remainder := troops - each*rest
	for i := range alloc {
		if i == skip {
			continue
		}
		alloc[i] = each
		if remainder > 0 {
			alloc[i]++
			remainder--
		}
	}
	return games.Move{Alloc: alloc}, nil
}

func (a *CounterAgent) PenaltyDecision(_ context.Context, st *games.State) (games.Move, error) {
	counts := make(map[string]int)
	for _, h := range st.History {
		counts[h.OpponentMove.Choice]++
	}
	if st.Role() == games.RoleShooter {
		// Shoot where the keeper dives least.
		best, bestCount := "", int(^uint(0)>>1)
		for _, d := range penaltyDirections {
			if counts[d] < bestCount {
				best, bestCount = d, counts[d]
			}
		}
		return games.Move{Choice: best}, nil
	}
	// Dive where the shooter aims most.
	best, bestCount := penaltyDirections[rngIntn(len(penaltyDirections))], -1
	for _, d := range penaltyDirections {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return games.Move{Choice: best}, nil
}

func (a *CounterAgent) SecurityMove(_ context.Context, st *games.State) (games.Move, error) {
	values, _ := st.Extra[games.ExtraTargetValues].([]int)
	if st.Role() == games.RoleAttacker {
		best := 0
		for i, v := range values {
			if v > values[best] {
				best = i
			}
		}
		return games.Move{Target: best}, nil
	}
	budget, _ := st.Extra[games.ExtraAvailableTroops].(int)
	return games.Move{Alloc: proportionalAlloc(budget, values)}, nil
}

// --- helpers ---

// evenSplit divides total across n slots, front-loading the remainder.
func evenSplit(total, n int) []int {
	if n <= 0 {
		return nil
	}
	alloc := make([]int, n)
	each := total / n
	remainder := total - each*n
	for i := range alloc {
		alloc[i] = each
		if remainder > 0 {
			alloc[i]++
			remainder--
		}
	}
	return alloc
}

// randomAlloc distributes total across n slots one troop at a time.
func randomAlloc(total, n int) []int {
	if n <= 0 {
		return nil
	}
	alloc := make([]int, n)
	for i := 0; i < total; i++ {
		alloc[rngIntn(n)]++
	}
	return alloc
}

// proportionalAlloc weights a budget by target values, spending the whole
// budget and dumping rounding leftovers on the most valuable target.
func proportionalAlloc(budget int, values []int) []int {
	alloc := make([]int, len(values))
	sum := 0
	for _, v := range values {
		sum += v
	}
	if sum == 0 {
		return evenSplit(budget, len(values))
	}
	spent, best := 0, 0
	for i, v := range values {
		alloc[i] = budget * v / sum
		spent += alloc[i]
		if v > values[best] {
			best = i
		}
	}
	alloc[best] += budget - spent
	return alloc
}
