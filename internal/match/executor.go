// Package match runs single matches between two agents: the per-round
// invocation loop, timeout and fault handling, and result classification.
package match

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/freeeve/botclash/internal/agent"
	"github.com/freeeve/botclash/internal/config"
	"github.com/freeeve/botclash/internal/events"
	"github.com/freeeve/botclash/internal/logger"
	"github.com/freeeve/botclash/internal/model"
	"github.com/freeeve/botclash/pkg/games"
)

// Runner executes matches under a fixed tournament configuration. A Runner
// is safe for concurrent use; each match gets its own RNG stream derived
// from the configured seed.
type Runner struct {
	cfg     config.Tournament
	bus     *events.Bus
	matches atomic.Int64
}

// NewRunner validates the configuration and returns a match runner. bus may
// be nil, in which case no events are published.
func NewRunner(cfg config.Tournament, bus *events.Bus) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("match runner config: %w", err)
	}
	return &Runner{cfg: cfg, bus: bus}, nil
}

// fault is one agent's failure within a round.
type fault struct {
	kind   model.FaultKind
	detail string
}

func (f *fault) String() string {
	return fmt.Sprintf("%s: %s", f.kind, f.detail)
}

// Run plays a full match between two agents and returns its result. The
// only error returns are context cancellation and invariant violations
// (nil handles, unknown game type); agent misbehaviour is absorbed into
// the result's outcome instead.
func (r *Runner) Run(ctx context.Context, bot1, bot2 *agent.Handle, gt games.GameType) (*model.MatchResult, error) {
	return r.RunForEvent(ctx, "", bot1, bot2, gt)
}

// RunForEvent is Run with an event ID attached to the published
// MatchCompleted payload; the scheduler uses it so dashboard consumers can
// place the match.
func (r *Runner) RunForEvent(ctx context.Context, eventID string, bot1, bot2 *agent.Handle, gt games.GameType) (*model.MatchResult, error) {
	if bot1 == nil || bot2 == nil {
		return nil, fmt.Errorf("match needs two agents")
	}
	rules := games.RulesFor(gt)
	if rules == nil {
		return nil, fmt.Errorf("unknown game type %q", gt)
	}

	matchID := uuid.NewString()
	lg := logger.ForMatch(matchID, gt.String())
	rng := r.matchRand()

	total := rules.Rounds(r.cfg.Games)
	side1 := newState(gt, total)
	side2 := newState(gt, total)
	rules.Init(r.cfg.Games, rng, side1, side2)

	result := &model.MatchResult{
		MatchID:   matchID,
		GameType:  gt,
		Bot1Name:  bot1.TeamName(),
		Bot2Name:  bot2.TeamName(),
		StartedAt: time.Now().UTC(),
	}

	var fault1, fault2 *fault
	for round := 1; round <= total; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		side1.Round, side2.Round = round, round
		rules.Prepare(round, r.cfg.Games, rng, side1, side2)
		r.publish(events.Event{Type: events.RoundStarted, Payload: events.RoundStartedPayload{
			MatchID:  matchID,
			GameType: gt,
			Round:    round,
			Total:    total,
		}})

		// Memory faults surface at the start of the round after the one
		// that pushed the agent over its ceiling.
		fault1 = memoryFault(bot1)
		fault2 = memoryFault(bot2)

		var m1, m2 games.Move
		var wg sync.WaitGroup
		if fault1 == nil {
			wg.Add(1)
			go func() {
				defer wg.Done()
				m1, fault1 = r.invoke(ctx, bot1, gt, rules, side1)
			}()
		}
		if fault2 == nil {
			wg.Add(1)
			go func() {
				defer wg.Done()
				m2, fault2 = r.invoke(ctx, bot2, gt, rules, side2)
			}()
		}
		wg.Wait()

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if fault1 != nil || fault2 != nil {
			recordFault(result, bot1.TeamName(), matchID, round, fault1)
			recordFault(result, bot2.TeamName(), matchID, round, fault2)
			break
		}

		d1, d2, res := rules.Score(m1, m2, side1, side2)
		side1.MyScore += d1
		side1.OppScore += d2
		side2.MyScore += d2
		side2.OppScore += d1
		side1.History = append(side1.History, games.HistoryEntry{Round: round, MyMove: m1, OpponentMove: m2, Result: res})
		side2.History = append(side2.History, games.HistoryEntry{Round: round, MyMove: m2, OpponentMove: m1, Result: res.Invert()})
		result.RoundLog = append(result.RoundLog, model.RoundLogEntry{
			Round:     round,
			Bot1Move:  m1,
			Bot2Move:  m2,
			Bot1Delta: d1,
			Bot2Delta: d2,
			Result:    res,
		})
	}

	result.Bot1Score = side1.MyScore
	result.Bot2Score = side2.MyScore
	result.Outcome, result.Winner = classify(result, fault1, fault2)
	result.EndedAt = time.Now().UTC()

	lg.Info().
		Str("bot1", result.Bot1Name).
		Str("bot2", result.Bot2Name).
		Str("outcome", string(result.Outcome)).
		Int("bot1Score", result.Bot1Score).
		Int("bot2Score", result.Bot2Score).
		Int("rounds", len(result.RoundLog)).
		Dur("durationMs", result.Duration()).
		Msg("Match completed")

	r.publish(events.Event{Type: events.MatchCompleted, Payload: events.MatchCompletedPayload{
		EventID: eventID,
		Match:   result,
	}})
	return result, nil
}

// invoke requests one move from an agent under the move timeout. The agent
// runs on its own goroutine so a hung call is abandoned rather than waited
// on; panics are recovered and classified.
func (r *Runner) invoke(ctx context.Context, h *agent.Handle, gt games.GameType, rules games.Rules, st *games.State) (games.Move, *fault) {
	callCtx, cancel := context.WithTimeout(ctx, r.cfg.MoveTimeout)
	defer cancel()

	type reply struct {
		move games.Move
		err  error
	}
	before := memBaseline()
	ch := make(chan reply, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- reply{err: fmt.Errorf("panic: %v", p)}
			}
		}()
		m, err := agent.MoveFor(callCtx, h.Agent(), gt, st.Clone())
		ch <- reply{move: m, err: err}
	}()

	select {
	case rep := <-ch:
		h.AddMemory(memDelta(before, heapAlloc()))
		if rep.err != nil {
			// An error raced in after the deadline still counts as a
			// timeout; the agent did not produce a move in time.
			if callCtx.Err() == context.DeadlineExceeded {
				return games.Move{}, &fault{kind: model.FaultTimeout, detail: fmt.Sprintf("no move within %s", r.cfg.MoveTimeout)}
			}
			return games.Move{}, &fault{kind: model.FaultThrown, detail: rep.err.Error()}
		}
		if err := rules.Validate(rep.move, st); err != nil {
			return games.Move{}, &fault{kind: model.FaultInvalid, detail: err.Error()}
		}
		return rep.move, nil
	case <-callCtx.Done():
		h.AddMemory(memDelta(before, heapAlloc()))
		return games.Move{}, &fault{kind: model.FaultTimeout, detail: fmt.Sprintf("no move within %s", r.cfg.MoveTimeout)}
	}
}

func (r *Runner) matchRand() *rand.Rand {
	seed := r.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed + r.matches.Add(1)))
}

func (r *Runner) publish(e events.Event) {
	if r.bus != nil {
		r.bus.Publish(e)
	}
}

func newState(gt games.GameType, total int) *games.State {
	return &games.State{
		GameType:    gt,
		TotalRounds: total,
		Extra:       make(map[string]any),
	}
}

func memoryFault(h *agent.Handle) *fault {
	if !h.OverMemoryLimit() {
		return nil
	}
	return &fault{
		kind:   model.FaultMemoryExceeded,
		detail: fmt.Sprintf("used %d of %d bytes", h.MemoryUsed(), h.MemoryLimit()),
	}
}

func recordFault(result *model.MatchResult, team, matchID string, round int, f *fault) {
	if f == nil {
		return
	}
	result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", team, f))
	logger.AgentFault(team, matchID, round, string(f.kind), f.detail)
}

// classify maps the final scores and any faults onto a match outcome. A
// one-sided fault hands the win to the surviving agent regardless of score.
func classify(res *model.MatchResult, f1, f2 *fault) (model.Outcome, string) {
	switch {
	case f1 != nil && f2 != nil:
		return model.BothError, ""
	case f1 != nil:
		return model.Bot1Error, res.Bot2Name
	case f2 != nil:
		return model.Bot2Error, res.Bot1Name
	}
	switch {
	case res.Bot1Score > res.Bot2Score:
		return model.Bot1Wins, res.Bot1Name
	case res.Bot2Score > res.Bot1Score:
		return model.Bot2Wins, res.Bot2Name
	}
	return model.Draw, ""
}
