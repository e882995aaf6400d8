// Package agent defines the strategy contract the match executor drives,
// the handle wrapper that carries per-agent resource accounting, and the
// loader surface that produces agents from team submissions.
package agent

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/freeeve/botclash/pkg/games"
)

// Agent is a strategy participant. One agent plays all four games; each
// operation must honour ctx cancellation within a bounded grace window.
// Agents are untrusted: any of these calls may hang, panic, or return
// garbage, and the executor must absorb all of it.
type Agent interface {
	TeamName() string
	MakeMoveRPSLS(ctx context.Context, st *games.State) (games.Move, error)
	AllocateTroops(ctx context.Context, st *games.State) (games.Move, error)
	PenaltyDecision(ctx context.Context, st *games.State) (games.Move, error)
	SecurityMove(ctx context.Context, st *games.State) (games.Move, error)
}

// MoveFor dispatches to the agent operation for the given game type.
func MoveFor(ctx context.Context, a Agent, gt games.GameType, st *games.State) (games.Move, error) {
	switch gt {
	case games.RPSLS:
		return a.MakeMoveRPSLS(ctx, st)
	case games.Blotto:
		return a.AllocateTroops(ctx, st)
	case games.Penalty:
		return a.PenaltyDecision(ctx, st)
	case games.Security:
		return a.SecurityMove(ctx, st)
	}
	return games.Move{}, fmt.Errorf("no agent operation for game type %q", gt)
}

// Handle wraps an Agent with its memory budget, the cumulative memory
// accumulator, and the admission gate that keeps an agent out of two
// simultaneous matches. The wrapped agent is immutable after creation;
// only the accumulator mutates.
type Handle struct {
	agent       Agent
	memoryLimit uint64
	memoryUsed  atomic.Uint64
	busy        chan struct{}
}

// NewHandle wraps an agent with a memory ceiling in bytes.
func NewHandle(a Agent, memoryLimit uint64) *Handle {
	return &Handle{
		agent:       a,
		memoryLimit: memoryLimit,
		busy:        make(chan struct{}, 1),
	}
}

// TeamName returns the wrapped agent's team name.
func (h *Handle) TeamName() string { return h.agent.TeamName() }

// Agent returns the wrapped strategy.
func (h *Handle) Agent() Agent { return h.agent }

// MemoryLimit returns the ceiling in bytes.
func (h *Handle) MemoryLimit() uint64 { return h.memoryLimit }

// MemoryUsed returns the accumulated best-effort allocation estimate.
func (h *Handle) MemoryUsed() uint64 { return h.memoryUsed.Load() }

// AddMemory adds a sample to the accumulator and returns the new total.
func (h *Handle) AddMemory(delta uint64) uint64 {
	return h.memoryUsed.Add(delta)
}

// OverMemoryLimit reports whether the accumulator has passed the ceiling.
func (h *Handle) OverMemoryLimit() bool {
	return h.memoryUsed.Load() > h.memoryLimit
}

// ResetMemory zeroes the accumulator, e.g. after an agent reload.
func (h *Handle) ResetMemory() { h.memoryUsed.Store(0) }

// Acquire blocks until the agent is free to enter a match, or ctx is done.
func (h *Handle) Acquire(ctx context.Context) error {
	select {
	case h.busy <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees the agent for its next match.
func (h *Handle) Release() {
	select {
	case <-h.busy:
	default:
	}
}
