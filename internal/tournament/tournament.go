// Package tournament orchestrates tournaments and series: it sequences the
// four game events over one agent set, keeps the cross-event scoreboard,
// and aggregates tournaments into series standings.
package tournament

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/freeeve/botclash/internal/agent"
	"github.com/freeeve/botclash/internal/config"
	"github.com/freeeve/botclash/internal/events"
	"github.com/freeeve/botclash/internal/logger"
	"github.com/freeeve/botclash/internal/model"
	"github.com/freeeve/botclash/internal/schedule"
	"github.com/freeeve/botclash/internal/scoring"
	"github.com/freeeve/botclash/pkg/games"
)

// Orchestrator runs one tournament at a time: the configured events in
// order with the same agents, cross-event scoring, and champion selection.
type Orchestrator struct {
	cfg    config.Tournament
	sched  *schedule.Scheduler
	bus    *events.Bus
	loader agent.Loader
}

// NewOrchestrator wires the orchestrator. loader may be nil when
// ReloadBetweenEvents is off; bus may be nil for headless runs.
func NewOrchestrator(cfg config.Tournament, sched *schedule.Scheduler, bus *events.Bus, loader agent.Loader) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("orchestrator config: %w", err)
	}
	if sched == nil {
		return nil, fmt.Errorf("orchestrator needs a scheduler")
	}
	if cfg.ReloadBetweenEvents && loader == nil {
		return nil, fmt.Errorf("reload between events requires a loader")
	}
	return &Orchestrator{cfg: cfg, sched: sched, bus: bus, loader: loader}, nil
}

// RunTournament plays every configured event in order and returns the
// completed tournament record. seriesID and index/total attribute the
// tournament to its series in published events; pass "" and 1/1 for a
// standalone run.
func (o *Orchestrator) RunTournament(ctx context.Context, seriesID string, index, total int, handles []*agent.Handle, rng *rand.Rand) (*model.TournamentInfo, error) {
	if len(handles) < 2 {
		return nil, fmt.Errorf("tournament needs at least 2 agents, got %d", len(handles))
	}

	byName, err := handleMap(handles)
	if err != nil {
		return nil, err
	}
	info := &model.TournamentInfo{
		TournamentID:   uuid.NewString(),
		State:          model.TournamentInProgress,
		Events:         make(map[games.GameType]*model.EventInfo, len(o.cfg.GameTypes)),
		EventOrder:     append([]games.GameType(nil), o.cfg.GameTypes...),
		RegisteredBots: sortedNames(byName),
		Scores:         make(map[string]int, len(byName)),
		ScoresByGame:   make(map[string]map[games.GameType]int, len(byName)),
		StartedAt:      time.Now().UTC(),
	}
	for name := range byName {
		info.Scores[name] = 0
	}

	o.publish(events.Event{Type: events.TournamentStarted, Payload: events.TournamentStartedPayload{
		SeriesID:     seriesID,
		TournamentID: info.TournamentID,
		Index:        index,
		Total:        total,
		Bots:         info.RegisteredBots,
	}})
	logger.Get().Info().
		Str("tournamentId", info.TournamentID).
		Int("bots", len(byName)).
		Int("events", len(o.cfg.GameTypes)).
		Msg("Tournament starting")

	for i, gt := range o.cfg.GameTypes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if o.cfg.ReloadBetweenEvents && i > 0 {
			byName, err = o.reload(ctx, byName)
			if err != nil {
				return nil, err
			}
		}

		ev, err := o.sched.RunEvent(ctx, schedule.EventParams{
			TournamentID: info.TournamentID,
			EventID:      fmt.Sprintf("%s-%s", info.TournamentID[:8], gt),
			GameType:     gt,
			Index:        i + 1,
			Total:        len(o.cfg.GameTypes),
		}, byName, rng)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", gt, err)
		}
		info.Events[gt] = ev
		o.applyEventScores(info, ev)
		o.publishStandings(info)
	}

	champion, err := o.pickChampion(ctx, info, byName)
	if err != nil {
		return nil, err
	}
	info.Champion = champion
	info.State = model.TournamentCompleted
	now := time.Now().UTC()
	info.EndedAt = &now

	o.publish(events.Event{Type: events.TournamentCompleted, Payload: events.TournamentCompletedPayload{
		Tournament: info,
	}})
	logger.Get().Info().
		Str("tournamentId", info.TournamentID).
		Str("champion", champion).
		Msg("Tournament completed")
	return info, nil
}

// applyEventScores folds one completed event into the cross-event
// scoreboard. Only match wins cross event boundaries: one point per win,
// nothing for draws or faulted matches.
func (o *Orchestrator) applyEventScores(info *model.TournamentInfo, ev *model.EventInfo) {
	for _, m := range ev.Matches {
		if m.Winner == "" {
			continue
		}
		if _, known := info.Scores[m.Winner]; !known {
			continue
		}
		info.Scores[m.Winner]++
		byGame := info.ScoresByGame[m.Winner]
		if byGame == nil {
			byGame = make(map[games.GameType]int)
			info.ScoresByGame[m.Winner] = byGame
		}
		byGame[ev.GameType]++
	}
}

// pickChampion ranks the cross-event totals and settles a tied top spot
// with a tiebreaker bracket.
func (o *Orchestrator) pickChampion(ctx context.Context, info *model.TournamentInfo, byName map[string]*agent.Handle) (string, error) {
	ranked := scoring.RankAggregate(info.Scores)
	if len(ranked) == 0 {
		return "", fmt.Errorf("tournament %s has no scores to rank", info.TournamentID)
	}
	top := ranked[0]
	var tied []string
	for _, e := range ranked {
		if e.Score == top.Score {
			tied = append(tied, e.BotName)
		}
	}
	if len(tied) == 1 {
		return top.BotName, nil
	}

	logger.Get().Info().
		Str("tournamentId", info.TournamentID).
		Strs("tied", tied).
		Msg("Champion tied, running tiebreaker bracket")
	winner, matches, err := o.sched.RunTiebreaker(ctx, info.TournamentID+"-champion", tied, byName)
	if err != nil {
		return "", err
	}
	// Tiebreaker matches are recorded with the last event so the archive
	// keeps every match played.
	if last := info.Events[o.cfg.GameTypes[len(o.cfg.GameTypes)-1]]; last != nil {
		last.Matches = append(last.Matches, matches...)
	}
	return winner, nil
}

func (o *Orchestrator) reload(ctx context.Context, byName map[string]*agent.Handle) (map[string]*agent.Handle, error) {
	existing := make([]*agent.Handle, 0, len(byName))
	for _, name := range sortedNames(byName) {
		existing = append(existing, byName[name])
	}
	reloaded, failures, err := o.loader.ReloadAll(ctx, existing)
	if err != nil {
		return nil, fmt.Errorf("agent reload: %w", err)
	}
	for _, f := range failures {
		logger.Get().Warn().
			Str("teamName", f.TeamName).
			Strs("errors", f.Errors).
			Msg("Agent excluded after reload failure")
	}
	if len(reloaded) < 2 {
		return nil, fmt.Errorf("agent set shrank to %d after reload", len(reloaded))
	}
	return handleMap(reloaded)
}

// publishStandings publishes the tournament-scope leaderboard after each
// event completes.
func (o *Orchestrator) publishStandings(info *model.TournamentInfo) {
	standings := make([]model.SeriesStanding, 0, len(info.Scores))
	for _, e := range scoring.RankAggregate(info.Scores) {
		standings = append(standings, model.SeriesStanding{
			BotName:    e.BotName,
			TotalScore: e.Score,
		})
	}
	o.publish(events.Event{Type: events.StandingsUpdated, Payload: events.StandingsUpdatedPayload{
		Scope:     "tournament",
		Standings: standings,
	}})
}

func (o *Orchestrator) publish(e events.Event) {
	if o.bus != nil {
		o.bus.Publish(e)
	}
}

func handleMap(handles []*agent.Handle) (map[string]*agent.Handle, error) {
	byName := make(map[string]*agent.Handle, len(handles))
	for _, h := range handles {
		name := h.TeamName()
		if _, dup := byName[name]; dup {
			return nil, fmt.Errorf("duplicate team name %q", name)
		}
		byName[name] = h
	}
	return byName, nil
}

func sortedNames(byName map[string]*agent.Handle) []string {
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
