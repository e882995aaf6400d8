// Package live materialises a coherent current-state view from the event
// stream for dashboard consumers: current tournament and event, ranked
// group standings, a recent-match window, and overall leaders.
package live

import (
	"context"
	"sync"
	"time"

	"github.com/freeeve/botclash/internal/events"
	"github.com/freeeve/botclash/internal/logger"
	"github.com/freeeve/botclash/internal/model"
)

// recentWindow is how many finished matches are kept per event.
const recentWindow = 10

// Cache is an optional write-through sink for snapshots, backed by Redis
// in production so dashboards survive an engine restart.
type Cache interface {
	StoreSnapshot(ctx context.Context, st *model.LiveState) error
}

// Aggregator subscribes to the bus and folds every lifecycle event into a
// single LiveState. Readers get committed snapshots, never a torn view.
type Aggregator struct {
	mu    sync.RWMutex
	state model.LiveState

	bus   *events.Bus
	sub   *events.Subscription
	cache Cache
	done  chan struct{}
}

// NewAggregator subscribes to the bus and starts consuming. cache may be
// nil to skip write-through.
func NewAggregator(bus *events.Bus, cache Cache) *Aggregator {
	a := &Aggregator{
		bus:   bus,
		cache: cache,
		done:  make(chan struct{}),
		state: model.LiveState{
			GroupStandings: make(map[string][]model.GroupStanding),
			RecentMatches:  make(map[string][]*model.MatchResult),
		},
	}
	a.sub = bus.Subscribe(events.DefaultBuffer,
		events.SeriesStarted, events.SeriesCompleted,
		events.TournamentStarted, events.TournamentCompleted,
		events.EventStarted, events.EventCompleted, events.EventStageChanged,
		events.MatchCompleted, events.StandingsUpdated, events.GroupStandingsUpdated,
	)
	go a.loop()
	return a
}

// Stop detaches from the bus and ends the consumer goroutine.
func (a *Aggregator) Stop() {
	a.sub.Close()
	<-a.done
	a.sub.LogDrops("live aggregator")
}

func (a *Aggregator) loop() {
	defer close(a.done)
	for {
		select {
		case e := <-a.sub.Events():
			a.apply(e)
		case <-a.sub.Done():
			return
		}
	}
}

func (a *Aggregator) apply(e events.Event) {
	a.mu.Lock()
	switch e.Type {
	case events.SeriesStarted:
		p := e.Payload.(events.SeriesStartedPayload)
		a.state = model.LiveState{
			SeriesID:         p.SeriesID,
			TotalTournaments: p.Tournaments,
			GroupStandings:   make(map[string][]model.GroupStanding),
			RecentMatches:    make(map[string][]*model.MatchResult),
		}
	case events.TournamentStarted:
		p := e.Payload.(events.TournamentStartedPayload)
		a.state.CurrentTournament = p.TournamentID
		a.state.TournamentIndex = p.Index
		if p.Total > a.state.TotalTournaments {
			a.state.TotalTournaments = p.Total
		}
		a.state.Champion = ""
		a.state.GroupStandings = make(map[string][]model.GroupStanding)
		a.state.RecentMatches = make(map[string][]*model.MatchResult)
	case events.TournamentCompleted:
		p := e.Payload.(events.TournamentCompletedPayload)
		if p.Tournament != nil {
			a.state.Champion = p.Tournament.Champion
		}
	case events.EventStarted:
		p := e.Payload.(events.EventStartedPayload)
		a.state.CurrentEvent = p.EventID
		a.state.CurrentGameType = p.GameType
		a.state.EventIndex = p.Index
		a.state.TotalEvents = p.Total
		a.state.Stage = events.StageGroups
	case events.EventStageChanged:
		p := e.Payload.(events.StageChangedPayload)
		a.state.Stage = p.Stage
	case events.EventCompleted:
		// Standings for the finished event stay queryable until the next
		// tournament starts.
	case events.MatchCompleted:
		p := e.Payload.(events.MatchCompletedPayload)
		if p.Match != nil {
			key := p.EventID
			window := append(a.state.RecentMatches[key], p.Match)
			if len(window) > recentWindow {
				window = window[len(window)-recentWindow:]
			}
			a.state.RecentMatches[key] = window
		}
	case events.GroupStandingsUpdated:
		p := e.Payload.(events.GroupStandingsPayload)
		a.state.GroupStandings[p.EventID+"/"+p.GroupID] = p.Standings
	case events.StandingsUpdated:
		p := e.Payload.(events.StandingsUpdatedPayload)
		a.state.Leaders = p.Standings
	case events.SeriesCompleted:
		p := e.Payload.(events.SeriesCompletedPayload)
		if p.Series != nil {
			a.state.Champion = p.Series.SeriesChampion
			a.state.Leaders = p.Series.Standings
		}
	}
	a.state.UpdatedAt = e.At
	snapshot := cloneState(&a.state)
	a.mu.Unlock()

	a.bus.Publish(events.Event{Type: events.StateSnapshot, Payload: events.StateSnapshotPayload{State: snapshot}})
	if a.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		if err := a.cache.StoreSnapshot(ctx, snapshot); err != nil {
			logger.Get().Warn().Err(err).Msg("Live snapshot cache write failed")
		}
		cancel()
	}
}

// Snapshot returns a deep copy of the current live state.
func (a *Aggregator) Snapshot() *model.LiveState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return cloneState(&a.state)
}

// GroupStandings returns the ranked standings for one group, keyed by
// event and group ID.
func (a *Aggregator) GroupStandings(eventID, groupID string) ([]model.GroupStanding, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	st, ok := a.state.GroupStandings[eventID+"/"+groupID]
	if !ok {
		return nil, false
	}
	return append([]model.GroupStanding(nil), st...), true
}

// RecentMatches returns the last matches finished within one event, newest
// last.
func (a *Aggregator) RecentMatches(eventID string) []*model.MatchResult {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]*model.MatchResult(nil), a.state.RecentMatches[eventID]...)
}

// Leaders returns the current overall standings.
func (a *Aggregator) Leaders() []model.SeriesStanding {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]model.SeriesStanding(nil), a.state.Leaders...)
}

func cloneState(s *model.LiveState) *model.LiveState {
	c := *s
	c.GroupStandings = make(map[string][]model.GroupStanding, len(s.GroupStandings))
	for k, v := range s.GroupStandings {
		c.GroupStandings[k] = append([]model.GroupStanding(nil), v...)
	}
	c.RecentMatches = make(map[string][]*model.MatchResult, len(s.RecentMatches))
	for k, v := range s.RecentMatches {
		c.RecentMatches[k] = append([]*model.MatchResult(nil), v...)
	}
	c.Leaders = append([]model.SeriesStanding(nil), s.Leaders...)
	return &c
}
