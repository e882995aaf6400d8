package schedule

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/freeeve/botclash/internal/agent"
	"github.com/freeeve/botclash/internal/config"
	"github.com/freeeve/botclash/internal/events"
	"github.com/freeeve/botclash/internal/match"
	"github.com/freeeve/botclash/internal/model"
	"github.com/freeeve/botclash/pkg/games"
)

// fixedAgent plays the same throw in every game that takes a choice.
type fixedAgent struct {
	name  string
	throw string
}

func (a fixedAgent) TeamName() string { return a.name }
func (a fixedAgent) MakeMoveRPSLS(ctx context.Context, st *games.State) (games.Move, error) {
	return games.Move{Choice: a.throw}, nil
}
func (a fixedAgent) AllocateTroops(ctx context.Context, st *games.State) (games.Move, error) {
	return games.Move{Alloc: []int{20, 20, 20, 20, 20}}, nil
}
func (a fixedAgent) PenaltyDecision(ctx context.Context, st *games.State) (games.Move, error) {
	return games.Move{Choice: games.Left}, nil
}
func (a fixedAgent) SecurityMove(ctx context.Context, st *games.State) (games.Move, error) {
	if st.Role() == games.RoleAttacker {
		return games.Move{Target: 0}, nil
	}
	return games.Move{Alloc: []int{5, 5, 5, 5}}, nil
}

func testCfg() config.Tournament {
	cfg := config.DefaultTournament()
	cfg.Seed = 7
	cfg.Games.RoundsRPSLS = 5
	cfg.GroupCount = 1
	cfg.TiebreakerGameType = games.RPSLS
	return cfg
}

func newTestScheduler(t *testing.T, cfg config.Tournament, bus *events.Bus) *Scheduler {
	t.Helper()
	runner, err := match.NewRunner(cfg, bus)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	s, err := NewScheduler(cfg, runner, bus)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	return s
}

func handlesFor(cfg config.Tournament, agents ...agent.Agent) map[string]*agent.Handle {
	out := make(map[string]*agent.Handle, len(agents))
	for _, a := range agents {
		out[a.TeamName()] = agent.NewHandle(a, cfg.MemoryLimitBytes())
	}
	return out
}

func TestBuildGroups(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	tests := []struct {
		name       string
		bots       int
		groupCount int
		wantSizes  []int
	}{
		{"even split", 20, 10, []int{2, 2, 2, 2, 2, 2, 2, 2, 2, 2}},
		{"clamped group count", 5, 10, []int{3, 2}},
		{"single group", 4, 1, []int{4}},
		{"short tail merged", 7, 3, []int{3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bots := make([]string, tt.bots)
			for i := range bots {
				bots[i] = string(rune('a'+i%26)) + string(rune('0'+i/26))
			}
			groups, err := BuildGroups(bots, tt.groupCount, rng)
			if err != nil {
				t.Fatalf("BuildGroups: %v", err)
			}
			if len(groups) != len(tt.wantSizes) {
				t.Fatalf("got %d groups, want %d", len(groups), len(tt.wantSizes))
			}
			seen := make(map[string]bool)
			for i, g := range groups {
				if len(g.Bots) != tt.wantSizes[i] {
					t.Errorf("group %d has %d bots, want %d", i, len(g.Bots), tt.wantSizes[i])
				}
				if len(g.Standings) != len(g.Bots) {
					t.Errorf("group %d standings not initialised", i)
				}
				for _, b := range g.Bots {
					if seen[b] {
						t.Errorf("bot %s placed twice", b)
					}
					seen[b] = true
				}
			}
			if len(seen) != tt.bots {
				t.Errorf("placed %d bots, want %d", len(seen), tt.bots)
			}
		})
	}

	if _, err := BuildGroups([]string{"solo"}, 1, rng); err == nil {
		t.Error("one bot should fail group construction")
	}
}

func TestBuildGroupsDeterministicWithSeed(t *testing.T) {
	bots := []string{"a", "b", "c", "d", "e", "f"}
	g1, _ := BuildGroups(bots, 3, rand.New(rand.NewSource(42)))
	g2, _ := BuildGroups(bots, 3, rand.New(rand.NewSource(42)))
	for i := range g1 {
		for j := range g1[i].Bots {
			if g1[i].Bots[j] != g2[i].Bots[j] {
				t.Fatal("same seed should give the same group layout")
			}
		}
	}
}

func TestAllPairsCount(t *testing.T) {
	g := newGroup("g", []string{"a", "b", "c", "d", "e"})
	if n := len(allPairs(g)); n != 10 {
		t.Errorf("5 bots give %d pairs, want 10", n)
	}
}

func TestGroupStateAppliesMatchOnce(t *testing.T) {
	g := newGroup("g", []string{"rocky", "papyrus"})
	gs := newGroupState()
	res := &model.MatchResult{
		MatchID:   "m-1",
		Bot1Name:  "rocky",
		Bot2Name:  "papyrus",
		Bot1Score: 1,
		Bot2Score: 4,
		Winner:    "papyrus",
		Outcome:   model.Bot2Wins,
	}

	hooks := 0
	applied, err := gs.apply(g, res, func() { hooks++ })
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !applied {
		t.Fatal("first application should count")
	}

	// A replayed result with the same match ID must leave the standings
	// untouched and skip the publish hook.
	applied, err = gs.apply(g, res, func() { hooks++ })
	if err != nil {
		t.Fatalf("reapply: %v", err)
	}
	if applied {
		t.Error("second application should be a no-op")
	}
	if hooks != 1 {
		t.Errorf("hook ran %d times, want 1", hooks)
	}

	winner := g.Standings["papyrus"]
	if winner.Wins != 1 || winner.Points != 3 || winner.GoalDiff != 3 {
		t.Errorf("winner standing = %+v, want one win worth 3 points", winner)
	}
	loser := g.Standings["rocky"]
	if loser.Losses != 1 || loser.Points != 0 || loser.GoalDiff != -3 {
		t.Errorf("loser standing = %+v, want one loss", loser)
	}
}

func TestRunEventSingleGroup(t *testing.T) {
	cfg := testCfg()
	s := newTestScheduler(t, cfg, nil)

	// Fixed throws make every pairing decisive or a mirror draw. Paper and
	// spock both finish 2-1, tied on every rank key, so the advancement cut
	// is settled by an RPSLS tiebreaker that paper wins.
	handles := handlesFor(cfg,
		fixedAgent{name: "avalanche", throw: games.Paper},
		fixedAgent{name: "boulder", throw: games.Rock},
		fixedAgent{name: "cutter", throw: games.Scissors},
		fixedAgent{name: "doctor", throw: games.Spock},
	)

	ev, err := s.RunEvent(context.Background(), EventParams{
		TournamentID: "t-1",
		EventID:      "ev-rpsls",
		GameType:     games.RPSLS,
		Index:        1,
		Total:        4,
	}, handles, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("RunEvent: %v", err)
	}

	if ev.State != model.EventCompleted {
		t.Errorf("state = %s, want completed", ev.State)
	}
	if ev.Winner != "avalanche" {
		t.Errorf("winner = %q, want avalanche", ev.Winner)
	}
	if len(ev.Groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(ev.Groups))
	}
	g := ev.Groups[0]
	if !g.Complete {
		t.Error("group not marked complete")
	}

	// 6 round-robin matches plus the avalanche/doctor tiebreaker.
	if len(ev.Matches) != 7 {
		t.Errorf("got %d matches, want 7", len(ev.Matches))
	}

	wantWins := map[string]int{"avalanche": 2, "doctor": 2, "boulder": 1, "cutter": 1}
	for name, want := range wantWins {
		st := g.Standings[name]
		if st == nil {
			t.Fatalf("no standing for %s", name)
		}
		if st.Wins != want {
			t.Errorf("%s wins = %d, want %d", name, st.Wins, want)
		}
		if st.Wins+st.Losses+st.Draws != 3 {
			t.Errorf("%s played %d matches, want 3", name, st.Wins+st.Losses+st.Draws)
		}
	}
}

func TestRunEventGroupOfTwo(t *testing.T) {
	cfg := testCfg()
	s := newTestScheduler(t, cfg, nil)

	handles := handlesFor(cfg,
		fixedAgent{name: "rocky", throw: games.Rock},
		fixedAgent{name: "papyrus", throw: games.Paper},
	)
	ev, err := s.RunEvent(context.Background(), EventParams{
		EventID:  "ev-1",
		GameType: games.RPSLS,
		Index:    1,
		Total:    1,
	}, handles, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("RunEvent: %v", err)
	}
	if ev.Winner != "papyrus" {
		t.Errorf("winner = %q, want papyrus", ev.Winner)
	}
	if len(ev.Matches) != 1 {
		t.Errorf("got %d matches, want 1", len(ev.Matches))
	}
	if ev.Final != nil {
		t.Error("sole finalist should win without a final group")
	}
}

func TestRunTiebreakerBracketWithBye(t *testing.T) {
	cfg := testCfg()
	s := newTestScheduler(t, cfg, nil)

	handles := handlesFor(cfg,
		fixedAgent{name: "rocky", throw: games.Rock},
		fixedAgent{name: "papyrus", throw: games.Paper},
		fixedAgent{name: "cutter", throw: games.Scissors},
	)

	// Bracket of 4: rocky gets the bye, papyrus and cutter play, then the
	// winner meets rocky. Scissors beats paper, rock beats scissors.
	winner, matches, err := s.RunTiebreaker(context.Background(), "ev-1",
		[]string{"rocky", "papyrus", "cutter"}, handles)
	if err != nil {
		t.Fatalf("RunTiebreaker: %v", err)
	}
	if winner != "rocky" {
		t.Errorf("winner = %q, want rocky", winner)
	}
	if len(matches) != 2 {
		t.Errorf("played %d matches, want 2", len(matches))
	}
}

func TestTiebreakerDrawFallsBackToNameOrder(t *testing.T) {
	cfg := testCfg()
	cfg.MaxTiebreakerRematches = 2
	s := newTestScheduler(t, cfg, nil)

	handles := handlesFor(cfg,
		fixedAgent{name: "zeta", throw: games.Rock},
		fixedAgent{name: "alpha", throw: games.Rock},
	)
	winner, matches, err := s.RunTiebreaker(context.Background(), "ev-1",
		[]string{"zeta", "alpha"}, handles)
	if err != nil {
		t.Fatalf("RunTiebreaker: %v", err)
	}
	if winner != "alpha" {
		t.Errorf("winner = %q, want alpha by name order", winner)
	}
	if len(matches) != 3 {
		t.Errorf("played %d matches, want 1 + 2 rematches", len(matches))
	}
}

func TestRunEventPublishesLifecycle(t *testing.T) {
	cfg := testCfg()
	bus := events.NewBus()
	defer bus.Close()
	s := newTestScheduler(t, cfg, bus)

	sub := bus.Subscribe(256,
		events.EventStarted, events.EventStageChanged,
		events.EventCompleted, events.GroupStandingsUpdated)
	defer sub.Close()

	handles := handlesFor(cfg,
		fixedAgent{name: "rocky", throw: games.Rock},
		fixedAgent{name: "papyrus", throw: games.Paper},
	)
	if _, err := s.RunEvent(context.Background(), EventParams{
		EventID:  "ev-1",
		GameType: games.RPSLS,
	}, handles, rand.New(rand.NewSource(1))); err != nil {
		t.Fatalf("RunEvent: %v", err)
	}

	var sawStart, sawCompleted, sawStandings bool
	stages := []string{}
	deadline := time.After(2 * time.Second)
	for !(sawStart && sawCompleted && sawStandings && len(stages) >= 2) {
		select {
		case e := <-sub.Events():
			switch e.Type {
			case events.EventStarted:
				sawStart = true
			case events.EventStageChanged:
				stages = append(stages, e.Payload.(events.StageChangedPayload).Stage)
			case events.GroupStandingsUpdated:
				sawStandings = true
			case events.EventCompleted:
				sawCompleted = true
			}
		case <-deadline:
			t.Fatalf("timed out: start=%v completed=%v standings=%v stages=%v",
				sawStart, sawCompleted, sawStandings, stages)
		}
	}
	if stages[0] != events.StageGroups || stages[1] != events.StagePlayoff {
		t.Errorf("stages = %v, want group then playoff", stages)
	}
}

func TestRunEventCancelled(t *testing.T) {
	cfg := testCfg()
	s := newTestScheduler(t, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	handles := handlesFor(cfg,
		fixedAgent{name: "rocky", throw: games.Rock},
		fixedAgent{name: "papyrus", throw: games.Paper},
	)
	if _, err := s.RunEvent(ctx, EventParams{EventID: "ev-1", GameType: games.RPSLS}, handles, rand.New(rand.NewSource(1))); err == nil {
		t.Error("cancelled event should surface an error")
	}
}
