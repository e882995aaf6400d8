package tournament

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/freeeve/botclash/internal/agent"
	"github.com/freeeve/botclash/internal/config"
	"github.com/freeeve/botclash/internal/events"
	"github.com/freeeve/botclash/internal/logger"
	"github.com/freeeve/botclash/internal/model"
	"github.com/freeeve/botclash/internal/scoring"
	"github.com/freeeve/botclash/pkg/games"
)

// SeriesRunner plays N tournaments back to back with one agent set and
// aggregates the results into series standings. Cancellation mid-series
// surfaces once; a partial series is never declared complete.
type SeriesRunner struct {
	cfg    config.Tournament
	orch   *Orchestrator
	bus    *events.Bus
	loader agent.Loader
}

// NewSeriesRunner wires a series runner over an orchestrator and a loader.
func NewSeriesRunner(cfg config.Tournament, orch *Orchestrator, bus *events.Bus, loader agent.Loader) (*SeriesRunner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("series config: %w", err)
	}
	if orch == nil {
		return nil, fmt.Errorf("series needs an orchestrator")
	}
	if loader == nil {
		return nil, fmt.Errorf("series needs an agent loader")
	}
	return &SeriesRunner{cfg: cfg, orch: orch, bus: bus, loader: loader}, nil
}

// Run loads the agents, plays every tournament, and returns the completed
// series record.
func (s *SeriesRunner) Run(ctx context.Context) (*model.SeriesInfo, error) {
	handles, failures, err := s.loader.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("agent load: %w", err)
	}
	for _, f := range failures {
		logger.Get().Warn().
			Str("teamName", f.TeamName).
			Strs("errors", f.Errors).
			Msg("Agent excluded after load failure")
	}
	if len(handles) < 2 {
		return nil, fmt.Errorf("series needs at least 2 loaded agents, got %d", len(handles))
	}
	if err := s.cfg.ValidateForRoster(len(handles)); err != nil {
		return nil, fmt.Errorf("series config: %w", err)
	}

	byName, err := handleMap(handles)
	if err != nil {
		return nil, err
	}
	bots := sortedNames(byName)

	info := &model.SeriesInfo{
		SeriesID:  uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	s.publish(events.Event{Type: events.SeriesStarted, Payload: events.SeriesStartedPayload{
		SeriesID:    info.SeriesID,
		Tournaments: s.cfg.Tournaments,
		Bots:        bots,
	}})
	logger.Get().Info().
		Str("seriesId", info.SeriesID).
		Int("tournaments", s.cfg.Tournaments).
		Int("bots", len(bots)).
		Msg("Series starting")

	seed := s.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	agg := make(map[string]*model.SeriesStanding, len(bots))
	for _, name := range bots {
		agg[name] = &model.SeriesStanding{BotName: name, ScoresByGame: make(map[games.GameType]int)}
	}

	for t := 1; t <= s.cfg.Tournaments; t++ {
		tInfo, err := s.orch.RunTournament(ctx, info.SeriesID, t, s.cfg.Tournaments, handles, rng)
		if err != nil {
			return nil, fmt.Errorf("tournament %d/%d: %w", t, s.cfg.Tournaments, err)
		}
		info.Tournaments = append(info.Tournaments, tInfo)
		s.fold(agg, tInfo)
		s.publishStandings(agg)
	}

	info.Standings = rankAgg(agg)
	if len(info.Standings) > 0 {
		info.SeriesChampion = info.Standings[0].BotName
	}
	now := time.Now().UTC()
	info.EndedAt = &now

	s.publish(events.Event{Type: events.SeriesCompleted, Payload: events.SeriesCompletedPayload{
		Series: info,
	}})
	logger.Get().Info().
		Str("seriesId", info.SeriesID).
		Str("champion", info.SeriesChampion).
		Msg("Series completed")
	return info, nil
}

// fold adds one tournament's totals, placement, and championship into the
// running aggregates.
func (s *SeriesRunner) fold(agg map[string]*model.SeriesStanding, t *model.TournamentInfo) {
	ranked := scoring.RankAggregate(t.Scores)
	promoteChampion(ranked, t.Champion)
	for place, e := range ranked {
		st := agg[e.BotName]
		if st == nil {
			continue
		}
		st.TotalScore += e.Score
		st.Placements = append(st.Placements, place+1)
		if e.BotName == t.Champion {
			st.TournamentsWon++
		}
		for gt, n := range t.ScoresByGame[e.BotName] {
			st.ScoresByGame[gt] += n
		}
	}
}

// promoteChampion moves a tiebreak-settled champion to the front of the
// tied head of the ranking, so recorded placement 1 always agrees with the
// title. A champion who leads outright is already first; a name that is
// not tied with the top score is left alone.
func promoteChampion(ranked []scoring.AggregateEntry, champion string) {
	if champion == "" || len(ranked) == 0 || ranked[0].BotName == champion {
		return
	}
	for i := 1; i < len(ranked) && ranked[i].Score == ranked[0].Score; i++ {
		if ranked[i].BotName == champion {
			e := ranked[i]
			copy(ranked[1:i+1], ranked[:i])
			ranked[0] = e
			return
		}
	}
}

func (s *SeriesRunner) publishStandings(agg map[string]*model.SeriesStanding) {
	s.publish(events.Event{Type: events.StandingsUpdated, Payload: events.StandingsUpdatedPayload{
		Scope:     "series",
		Standings: rankAgg(agg),
	}})
}

func rankAgg(agg map[string]*model.SeriesStanding) []model.SeriesStanding {
	flat := make([]model.SeriesStanding, 0, len(agg))
	for _, st := range agg {
		flat = append(flat, *st)
	}
	return scoring.RankSeries(flat)
}

func (s *SeriesRunner) publish(e events.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}
