package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/freeeve/botclash/pkg/games"
)

// Externally loaded strategies do not always share the engine's State
// layout. Each supported foreign shape registers an Adapter under an
// agentKind tag; the loader selects the adapter by tag instead of
// inspecting types at runtime. Registries are plain values scoped to the
// tournament that owns them, not process globals.

// Adapter bridges a foreign strategy object into the Agent contract.
type Adapter interface {
	Wrap(teamName string, raw any) (Agent, error)
}

// AdapterRegistry maps agent kind tags to adapters. The zero value is not
// usable; NewAdapterRegistry seeds the built-in kinds.
type AdapterRegistry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewAdapterRegistry returns a registry with the built-in adapters
// registered.
func NewAdapterRegistry() *AdapterRegistry {
	r := &AdapterRegistry{adapters: make(map[string]Adapter)}
	r.Register(KindFlat, flatAdapter{})
	return r
}

// Register makes an adapter available under the given kind tag. Later
// registrations replace earlier ones.
func (r *AdapterRegistry) Register(kind string, a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[kind] = a
}

// Wrap bridges a foreign strategy using the adapter registered for its
// kind.
func (r *AdapterRegistry) Wrap(kind, teamName string, raw any) (Agent, error) {
	r.mu.RLock()
	a, ok := r.adapters[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no adapter registered for agent kind %q", kind)
	}
	return a.Wrap(teamName, raw)
}

// FlatSnapshot is the flattened game view consumed by FlatStrategy
// implementations: move lists instead of a combined history, and the game
// carried as a plain string.
type FlatSnapshot struct {
	Game        string
	Round       int
	TotalRounds int
	MyScore     int
	OppScore    int
	MyMoves     []games.Move
	OppMoves    []games.Move
	Extra       map[string]any
}

// FlatStrategy is the foreign contract bridged by the "flat" adapter: a
// single Play callback for every game.
type FlatStrategy interface {
	Play(ctx context.Context, snap FlatSnapshot) (games.Move, error)
}

// KindFlat selects the FlatStrategy adapter.
const KindFlat = "flat"

type flatAdapter struct{}

func (flatAdapter) Wrap(teamName string, raw any) (Agent, error) {
	s, ok := raw.(FlatStrategy)
	if !ok {
		return nil, fmt.Errorf("agent kind %q requires a FlatStrategy, got %T", KindFlat, raw)
	}
	return &flatAgent{team: teamName, strategy: s}, nil
}

// flatAgent translates State into FlatSnapshot on every call.
type flatAgent struct {
	team     string
	strategy FlatStrategy
}

func (a *flatAgent) TeamName() string { return a.team }

func (a *flatAgent) play(ctx context.Context, st *games.State) (games.Move, error) {
	snap := FlatSnapshot{
		Game:        st.GameType.String(),
		Round:       st.Round,
		TotalRounds: st.TotalRounds,
		MyScore:     st.MyScore,
		OppScore:    st.OppScore,
		Extra:       st.Extra,
	}
	for _, h := range st.History {
		snap.MyMoves = append(snap.MyMoves, h.MyMove)
		snap.OppMoves = append(snap.OppMoves, h.OpponentMove)
	}
	return a.strategy.Play(ctx, snap)
}

func (a *flatAgent) MakeMoveRPSLS(ctx context.Context, st *games.State) (games.Move, error) {
	return a.play(ctx, st)
}

func (a *flatAgent) AllocateTroops(ctx context.Context, st *games.State) (games.Move, error) {
	return a.play(ctx, st)
}

func (a *flatAgent) PenaltyDecision(ctx context.Context, st *games.State) (games.Move, error) {
	return a.play(ctx, st)
}

func (a *flatAgent) SecurityMove(ctx context.Context, st *games.State) (games.Move, error) {
	return a.play(ctx, st)
}
