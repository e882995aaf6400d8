package live

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/freeeve/botclash/internal/events"
	"github.com/freeeve/botclash/internal/model"
	"github.com/freeeve/botclash/pkg/games"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestAggregatorTracksLifecycle(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	agg := NewAggregator(bus, nil)
	defer agg.Stop()

	bus.Publish(events.Event{Type: events.SeriesStarted, Payload: events.SeriesStartedPayload{
		SeriesID: "s-1", Tournaments: 2, Bots: []string{"alpha", "bravo"},
	}})
	bus.Publish(events.Event{Type: events.TournamentStarted, Payload: events.TournamentStartedPayload{
		SeriesID: "s-1", TournamentID: "t-1", Index: 1, Total: 2,
	}})
	bus.Publish(events.Event{Type: events.EventStarted, Payload: events.EventStartedPayload{
		TournamentID: "t-1", EventID: "ev-1", GameType: games.RPSLS, Index: 1, Total: 4,
	}})
	bus.Publish(events.Event{Type: events.GroupStandingsUpdated, Payload: events.GroupStandingsPayload{
		EventID: "ev-1", GroupID: "group-1",
		Standings: []model.GroupStanding{{BotName: "alpha", Points: 3, Wins: 1}},
	}})
	bus.Publish(events.Event{Type: events.StandingsUpdated, Payload: events.StandingsUpdatedPayload{
		Scope:     "tournament",
		Standings: []model.SeriesStanding{{BotName: "alpha", TotalScore: 1}},
	}})

	waitFor(t, "standings to arrive", func() bool {
		return len(agg.Leaders()) == 1
	})

	st := agg.Snapshot()
	if st.SeriesID != "s-1" || st.CurrentTournament != "t-1" || st.CurrentEvent != "ev-1" {
		t.Errorf("snapshot identity wrong: %+v", st)
	}
	if st.CurrentGameType != games.RPSLS || st.EventIndex != 1 || st.TotalEvents != 4 {
		t.Errorf("event context wrong: %+v", st)
	}
	if st.Stage != events.StageGroups {
		t.Errorf("stage = %q, want group stage", st.Stage)
	}

	gs, ok := agg.GroupStandings("ev-1", "group-1")
	if !ok || len(gs) != 1 || gs[0].BotName != "alpha" {
		t.Errorf("group standings = %v, %v", gs, ok)
	}
	if _, ok := agg.GroupStandings("ev-1", "group-9"); ok {
		t.Error("unknown group should not resolve")
	}

	bus.Publish(events.Event{Type: events.EventStageChanged, Payload: events.StageChangedPayload{
		EventID: "ev-1", GameType: games.RPSLS, Stage: events.StagePlayoff,
	}})
	waitFor(t, "stage change", func() bool {
		return agg.Snapshot().Stage == events.StagePlayoff
	})
}

func TestRecentMatchWindow(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	agg := NewAggregator(bus, nil)
	defer agg.Stop()

	for i := 0; i < 15; i++ {
		bus.Publish(events.Event{Type: events.MatchCompleted, Payload: events.MatchCompletedPayload{
			EventID: "ev-1",
			Match:   &model.MatchResult{MatchID: fmt.Sprintf("m-%d", i), GameType: games.RPSLS},
		}})
	}

	waitFor(t, "window to fill", func() bool {
		return len(agg.RecentMatches("ev-1")) == 10
	})
	recent := agg.RecentMatches("ev-1")
	if recent[0].MatchID != "m-5" || recent[9].MatchID != "m-14" {
		t.Errorf("window = %s..%s, want m-5..m-14", recent[0].MatchID, recent[9].MatchID)
	}
}

func TestSnapshotsAreIsolated(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	agg := NewAggregator(bus, nil)
	defer agg.Stop()

	bus.Publish(events.Event{Type: events.GroupStandingsUpdated, Payload: events.GroupStandingsPayload{
		EventID: "ev-1", GroupID: "group-1",
		Standings: []model.GroupStanding{{BotName: "alpha"}},
	}})
	waitFor(t, "standings", func() bool {
		_, ok := agg.GroupStandings("ev-1", "group-1")
		return ok
	})

	st := agg.Snapshot()
	st.GroupStandings["ev-1/group-1"] = nil
	st.SeriesID = "mutated"

	if got := agg.Snapshot(); got.SeriesID == "mutated" || got.GroupStandings["ev-1/group-1"] == nil {
		t.Error("mutating a snapshot leaked into the aggregator")
	}
}

type recordingCache struct {
	mu    sync.Mutex
	count int
	last  *model.LiveState
}

func (c *recordingCache) StoreSnapshot(_ context.Context, st *model.LiveState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	c.last = st
	return nil
}

func TestCacheWriteThrough(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	cache := &recordingCache{}
	agg := NewAggregator(bus, cache)
	defer agg.Stop()

	bus.Publish(events.Event{Type: events.SeriesStarted, Payload: events.SeriesStartedPayload{SeriesID: "s-9"}})

	waitFor(t, "cache write", func() bool {
		cache.mu.Lock()
		defer cache.mu.Unlock()
		return cache.count > 0 && cache.last.SeriesID == "s-9"
	})
}

func TestStateSnapshotRepublished(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	sub := bus.Subscribe(8, events.StateSnapshot)
	defer sub.Close()

	agg := NewAggregator(bus, nil)
	defer agg.Stop()

	bus.Publish(events.Event{Type: events.SeriesStarted, Payload: events.SeriesStartedPayload{SeriesID: "s-2"}})

	select {
	case e := <-sub.Events():
		p := e.Payload.(events.StateSnapshotPayload)
		if p.State.SeriesID != "s-2" {
			t.Errorf("snapshot series = %q, want s-2", p.State.SeriesID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no state snapshot published")
	}
}
