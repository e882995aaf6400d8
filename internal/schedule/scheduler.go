// Package schedule runs the group stage of one event: group construction,
// round-robin match execution under the parallelism cap, advancement, the
// final playoff group, and tiebreaker brackets.
package schedule

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/freeeve/botclash/internal/agent"
	"github.com/freeeve/botclash/internal/config"
	"github.com/freeeve/botclash/internal/events"
	"github.com/freeeve/botclash/internal/logger"
	"github.com/freeeve/botclash/internal/match"
	"github.com/freeeve/botclash/internal/model"
	"github.com/freeeve/botclash/internal/scoring"
	"github.com/freeeve/botclash/pkg/games"
)

// Scheduler drives one event at a time through its group stage and final.
// Agent faults never fail the scheduler; only cancellation, malformed
// configuration, and standings invariant violations surface as errors.
type Scheduler struct {
	cfg    config.Tournament
	runner *match.Runner
	bus    *events.Bus
}

// NewScheduler validates the configuration and returns a scheduler. bus may
// be nil for headless runs.
func NewScheduler(cfg config.Tournament, runner *match.Runner, bus *events.Bus) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scheduler config: %w", err)
	}
	if runner == nil {
		return nil, fmt.Errorf("scheduler needs a match runner")
	}
	return &Scheduler{cfg: cfg, runner: runner, bus: bus}, nil
}

// EventParams identifies one event within its tournament.
type EventParams struct {
	TournamentID string
	EventID      string
	GameType     games.GameType
	Index        int
	Total        int
}

// RunEvent plays a full event: group stage, advancement with tiebreakers,
// and the final playoff group. It returns the completed event record.
func (s *Scheduler) RunEvent(ctx context.Context, p EventParams, handles map[string]*agent.Handle, rng *rand.Rand) (*model.EventInfo, error) {
	if len(handles) < 2 {
		return nil, fmt.Errorf("event %s needs at least 2 agents, got %d", p.EventID, len(handles))
	}
	groups, err := BuildGroups(handleNames(handles), s.cfg.GroupCount, rng)
	if err != nil {
		return nil, err
	}

	ev := &model.EventInfo{
		EventID:  p.EventID,
		GameType: p.GameType,
		State:    model.EventInProgress,
		Groups:   groups,
	}
	s.publish(events.Event{Type: events.EventStarted, Payload: events.EventStartedPayload{
		TournamentID: p.TournamentID,
		EventID:      p.EventID,
		GameType:     p.GameType,
		Index:        p.Index,
		Total:        p.Total,
		Groups:       groups,
	}})
	s.publishStage(p, events.StageGroups)

	logger.Get().Info().
		Str("eventId", p.EventID).
		Str("gameType", p.GameType.String()).
		Int("groups", len(groups)).
		Int("bots", len(handles)).
		Msg("Event group stage starting")

	stageMatches, err := s.runGroups(ctx, p.EventID, p.GameType, groups, handles)
	if err != nil {
		return nil, err
	}
	ev.Matches = append(ev.Matches, stageMatches...)
	for _, g := range groups {
		g.Complete = true
	}

	finalists, tbMatches, err := s.advance(ctx, p.EventID, groups, handles)
	if err != nil {
		return nil, err
	}
	ev.Matches = append(ev.Matches, tbMatches...)

	s.publishStage(p, events.StagePlayoff)

	winner, final, finalMatches, err := s.runFinal(ctx, p.EventID, p.GameType, finalists, handles)
	if err != nil {
		return nil, err
	}
	ev.Matches = append(ev.Matches, finalMatches...)
	ev.Final = final
	ev.Winner = winner
	ev.State = model.EventCompleted

	s.publish(events.Event{Type: events.EventCompleted, Payload: events.EventCompletedPayload{
		TournamentID: p.TournamentID,
		EventID:      p.EventID,
		GameType:     p.GameType,
		Winner:       winner,
	}})
	logger.Get().Info().
		Str("eventId", p.EventID).
		Str("gameType", p.GameType.String()).
		Str("winner", winner).
		Int("matches", len(ev.Matches)).
		Msg("Event completed")
	return ev, nil
}

// groupState serialises standings mutation for one group. apply runs the
// scoring update and the then hook under the group's lock, and is a no-op
// for a match ID it has already applied.
type groupState struct {
	mu      sync.Mutex
	applied map[string]bool
}

func newGroupState() *groupState {
	return &groupState{applied: make(map[string]bool)}
}

func (gs *groupState) apply(g *model.Group, res *model.MatchResult, then func()) (bool, error) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	if gs.applied[res.MatchID] {
		return false, nil
	}
	gs.applied[res.MatchID] = true
	if err := scoring.Apply(g.Standings, res); err != nil {
		return false, err
	}
	if then != nil {
		then()
	}
	return true, nil
}

// runGroups plays every round-robin pairing across the given groups, at
// most MaxParallelMatches in flight at once. Standings mutate only under
// the owning group's lock, guarded against double-application by match ID.
func (s *Scheduler) runGroups(ctx context.Context, eventID string, gt games.GameType, groups []*model.Group, handles map[string]*agent.Handle) ([]*model.MatchResult, error) {
	runs := make(map[*model.Group]*groupState, len(groups))
	var pairings []pairing
	for _, g := range groups {
		runs[g] = newGroupState()
		pairings = append(pairings, allPairs(g)...)
	}

	var resMu sync.Mutex
	var results []*model.MatchResult

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(s.cfg.MaxParallelMatches)
	for _, p := range pairings {
		p := p
		eg.Go(func() error {
			h1, h2 := handles[p.bot1], handles[p.bot2]
			if h1 == nil || h2 == nil {
				return fmt.Errorf("group %s pairing %s vs %s has no loaded agent", p.group.GroupID, p.bot1, p.bot2)
			}
			res, err := s.playMatch(ctx, eventID, h1, h2, gt)
			if err != nil {
				return err
			}

			if _, aerr := runs[p.group].apply(p.group, res, func() {
				s.publishGroupStandings(eventID, p.group)
			}); aerr != nil {
				return fmt.Errorf("group %s: %w", p.group.GroupID, aerr)
			}

			resMu.Lock()
			results = append(results, res)
			resMu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// playMatch enters both agents through their admission gates before the
// match runs. Gates are taken in name order so two concurrent matches
// sharing agents cannot deadlock.
func (s *Scheduler) playMatch(ctx context.Context, eventID string, h1, h2 *agent.Handle, gt games.GameType) (*model.MatchResult, error) {
	if !s.cfg.AllowParallelAgentMatches {
		first, second := h1, h2
		if second.TeamName() < first.TeamName() {
			first, second = h2, h1
		}
		if err := first.Acquire(ctx); err != nil {
			return nil, err
		}
		defer first.Release()
		if err := second.Acquire(ctx); err != nil {
			return nil, err
		}
		defer second.Release()
	}
	return s.runner.RunForEvent(ctx, eventID, h1, h2, gt)
}

// advance selects the top finalists of every completed group, running a
// tiebreaker bracket when the cut line falls inside a set of bots tied on
// points, goal difference, and wins.
func (s *Scheduler) advance(ctx context.Context, eventID string, groups []*model.Group, handles map[string]*agent.Handle) ([]string, []*model.MatchResult, error) {
	var finalists []string
	var matches []*model.MatchResult
	for _, g := range groups {
		ranked := scoring.RankGroup(g.Standings)
		cut := s.cfg.FinalistsPerGroup
		if cut > len(ranked) {
			cut = len(ranked)
		}
		ordered, played, err := s.resolveBoundaryTie(ctx, eventID, ranked, cut, handles)
		if err != nil {
			return nil, nil, err
		}
		matches = append(matches, played...)
		for i := 0; i < cut; i++ {
			finalists = append(finalists, ordered[i].BotName)
		}
	}
	sort.Strings(finalists)
	return finalists, matches, nil
}

// resolveBoundaryTie reorders a ranked list when the advancement boundary
// splits bots tied on all rank keys but name: the tied set plays a bracket
// and its winner moves to the front of the set.
func (s *Scheduler) resolveBoundaryTie(ctx context.Context, eventID string, ranked []model.GroupStanding, cut int, handles map[string]*agent.Handle) ([]model.GroupStanding, []*model.MatchResult, error) {
	if cut <= 0 || cut >= len(ranked) || !scoring.TiedOnRankKeys(ranked[cut-1], ranked[cut]) {
		return ranked, nil, nil
	}

	start, end := cut-1, cut
	for start > 0 && scoring.TiedOnRankKeys(ranked[start-1], ranked[cut-1]) {
		start--
	}
	for end+1 < len(ranked) && scoring.TiedOnRankKeys(ranked[end+1], ranked[cut-1]) {
		end++
	}

	seeds := make([]string, 0, end-start+1)
	for _, st := range ranked[start : end+1] {
		seeds = append(seeds, st.BotName)
	}
	winner, played, err := s.RunTiebreaker(ctx, eventID, seeds, handles)
	if err != nil {
		return nil, nil, err
	}

	ordered := append([]model.GroupStanding(nil), ranked...)
	tied := ordered[start : end+1]
	for i, st := range tied {
		if st.BotName == winner && i > 0 {
			copy(tied[1:i+1], tied[:i])
			tied[0] = st
			break
		}
	}
	return ordered, played, nil
}

// runFinal plays the playoff group among the finalists and names the event
// winner. A single finalist wins outright without a final group.
func (s *Scheduler) runFinal(ctx context.Context, eventID string, gt games.GameType, finalists []string, handles map[string]*agent.Handle) (string, *model.Group, []*model.MatchResult, error) {
	if len(finalists) == 0 {
		return "", nil, nil, fmt.Errorf("event %s produced no finalists", eventID)
	}
	if len(finalists) == 1 {
		return finalists[0], nil, nil, nil
	}

	final := newGroup("final", finalists)
	matches, err := s.runGroups(ctx, eventID, gt, []*model.Group{final}, handles)
	if err != nil {
		return "", nil, nil, err
	}
	final.Complete = true

	ranked := scoring.RankGroup(final.Standings)
	ordered, played, err := s.resolveBoundaryTie(ctx, eventID, ranked, 1, handles)
	if err != nil {
		return "", nil, nil, err
	}
	matches = append(matches, played...)
	return ordered[0].BotName, final, matches, nil
}

// RunTiebreaker plays a single-elimination bracket over the seeded
// entrants using the configured tiebreaker game. Bracket size is the next
// power of two; byes go to the top seeds.
func (s *Scheduler) RunTiebreaker(ctx context.Context, eventID string, seeds []string, handles map[string]*agent.Handle) (string, []*model.MatchResult, error) {
	if len(seeds) == 0 {
		return "", nil, fmt.Errorf("tiebreaker needs at least one entrant")
	}
	size := 1
	for size < len(seeds) {
		size *= 2
	}
	entrants := make([]string, size)
	copy(entrants, seeds)

	var matches []*model.MatchResult
	for len(entrants) > 1 {
		next := make([]string, 0, len(entrants)/2)
		for i := 0; i < len(entrants)/2; i++ {
			a, b := entrants[i], entrants[len(entrants)-1-i]
			switch {
			case b == "":
				next = append(next, a)
			case a == "":
				next = append(next, b)
			default:
				winner, played, err := s.tiebreakMatch(ctx, eventID, a, b, handles)
				if err != nil {
					return "", nil, err
				}
				matches = append(matches, played...)
				next = append(next, winner)
			}
		}
		entrants = next
	}
	return entrants[0], matches, nil
}

// tiebreakMatch plays one bracket pairing, replaying drawn or double-fault
// matches up to the rematch cap and then falling back to name order.
func (s *Scheduler) tiebreakMatch(ctx context.Context, eventID, a, b string, handles map[string]*agent.Handle) (string, []*model.MatchResult, error) {
	ha, hb := handles[a], handles[b]
	if ha == nil || hb == nil {
		return "", nil, fmt.Errorf("tiebreaker pairing %s vs %s has no loaded agent", a, b)
	}
	var played []*model.MatchResult
	for attempt := 0; attempt <= s.cfg.MaxTiebreakerRematches; attempt++ {
		res, err := s.playMatch(ctx, eventID, ha, hb, s.cfg.TiebreakerGameType)
		if err != nil {
			return "", nil, err
		}
		played = append(played, res)
		if res.Winner != "" {
			return res.Winner, played, nil
		}
	}
	logger.Get().Info().
		Str("eventId", eventID).
		Str("bot1", a).
		Str("bot2", b).
		Msg("Tiebreaker unresolved after rematches, falling back to name order")
	if a < b {
		return a, played, nil
	}
	return b, played, nil
}

func (s *Scheduler) publish(e events.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}

func (s *Scheduler) publishStage(p EventParams, stage string) {
	s.publish(events.Event{Type: events.EventStageChanged, Payload: events.StageChangedPayload{
		EventID:  p.EventID,
		GameType: p.GameType,
		Stage:    stage,
	}})
}

func (s *Scheduler) publishGroupStandings(eventID string, g *model.Group) {
	s.publish(events.Event{Type: events.GroupStandingsUpdated, Payload: events.GroupStandingsPayload{
		EventID:   eventID,
		GroupID:   g.GroupID,
		Standings: scoring.RankGroup(g.Standings),
	}})
}

func handleNames(handles map[string]*agent.Handle) []string {
	names := make([]string, 0, len(handles))
	for name := range handles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
