package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/botclash/internal/agent"
	"github.com/freeeve/botclash/internal/config"
	"github.com/freeeve/botclash/internal/events"
	"github.com/freeeve/botclash/internal/match"
	"github.com/freeeve/botclash/internal/model"
	"github.com/freeeve/botclash/internal/schedule"
	"github.com/freeeve/botclash/internal/tournament"
	"github.com/freeeve/botclash/pkg/games"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	var (
		rosterSpec  string
		gameTypes   string
		tournaments int
		workers     int
		moveTimeout time.Duration
		groups      int
		seed        int64
		outDir      string
		dryRun      bool
		jsonOut     bool
	)

	flag.StringVar(&rosterSpec, "bots", "", "Roster (e.g. alpha=random,beta=counter,gamma=stubborn)")
	flag.StringVar(&gameTypes, "games", "", "Comma-separated game order (default: all four)")
	flag.IntVar(&tournaments, "n", 1, "Number of tournaments in the series")
	flag.IntVar(&workers, "workers", 4, "Concurrency (parallel matches)")
	flag.DurationVar(&moveTimeout, "move-timeout", time.Second, "Per-move deadline")
	flag.IntVar(&groups, "groups", 10, "Group count per event")
	flag.Int64Var(&seed, "seed", 0, "Base seed (0 = random)")
	flag.StringVar(&outDir, "out", ".", "Directory for the series JSON artefact")
	flag.BoolVar(&dryRun, "dry-run", false, "Skip writing the artefact")
	flag.BoolVar(&jsonOut, "json", false, "Print the series record as JSON instead of a summary")

	flag.Parse()

	if rosterSpec == "" {
		fmt.Fprintln(os.Stderr, "usage: series -bots alpha=random,beta=counter [flags]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	roster, err := agent.ParseRoster(rosterSpec)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid roster")
	}

	tcfg := config.DefaultTournament()
	tcfg.Tournaments = tournaments
	tcfg.MaxParallelMatches = workers
	tcfg.MoveTimeout = moveTimeout
	tcfg.GroupCount = groups
	tcfg.Seed = seed
	if gameTypes != "" {
		tcfg.GameTypes, err = parseGameTypes(gameTypes)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid game list")
		}
	}
	if err := tcfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid tournament config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info().Msg("Shutting down...")
		cancel()
	}()

	bus := events.NewBus()
	defer bus.Close()

	if !jsonOut {
		go printProgress(bus)
	}

	loader := agent.NewStaticLoader(roster, tcfg.MemoryLimitBytes())
	runner, err := match.NewRunner(tcfg, bus)
	if err != nil {
		log.Fatal().Err(err).Msg("Bad tournament config")
	}
	sched, err := schedule.NewScheduler(tcfg, runner, bus)
	if err != nil {
		log.Fatal().Err(err).Msg("Scheduler setup failed")
	}
	orch, err := tournament.NewOrchestrator(tcfg, sched, bus, loader)
	if err != nil {
		log.Fatal().Err(err).Msg("Orchestrator setup failed")
	}
	seriesRunner, err := tournament.NewSeriesRunner(tcfg, orch, bus, loader)
	if err != nil {
		log.Fatal().Err(err).Msg("Series setup failed")
	}

	result, err := seriesRunner.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Series aborted")
	}

	if !dryRun {
		path := filepath.Join(outDir, "series-"+result.SeriesID+".json")
		if err := writeArtefact(path, result); err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("Failed to write series artefact")
		}
		log.Info().Str("path", path).Msg("Series artefact written")
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(result)
	} else {
		printSummary(result)
	}
}

func parseGameTypes(s string) ([]games.GameType, error) {
	var out []games.GameType
	for _, part := range strings.Split(s, ",") {
		gt := games.GameType(strings.TrimSpace(part))
		if !gt.Valid() {
			return nil, fmt.Errorf("unknown game type %q", gt)
		}
		out = append(out, gt)
	}
	return out, nil
}

// printProgress mirrors the lifecycle stream to stderr so long runs show
// signs of life.
func printProgress(bus *events.Bus) {
	sub := bus.Subscribe(0,
		events.TournamentStarted,
		events.EventStarted,
		events.EventCompleted,
		events.TournamentCompleted,
	)
	defer sub.Close()

	for {
		select {
		case <-sub.Done():
			return
		case e := <-sub.Events():
			switch p := e.Payload.(type) {
			case events.TournamentStartedPayload:
				log.Info().Int("tournament", p.Index).Int("of", p.Total).Msg("Tournament started")
			case events.EventStartedPayload:
				log.Info().Str("game", string(p.GameType)).Int("event", p.Index).Int("of", p.Total).Msg("Event started")
			case events.EventCompletedPayload:
				log.Info().Str("game", string(p.GameType)).Str("winner", p.Winner).Msg("Event completed")
			case events.TournamentCompletedPayload:
				log.Info().Str("champion", p.Tournament.Champion).Msg("Tournament completed")
			}
		}
	}
}

func writeArtefact(path string, s *model.SeriesInfo) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func printSummary(s *model.SeriesInfo) {
	fmt.Printf("\nSeries %s (%d tournaments):\n", s.SeriesID, len(s.Tournaments))
	for i, t := range s.Tournaments {
		fmt.Printf("  tournament %d: champion %s\n", i+1, t.Champion)
	}
	fmt.Println("\nStandings:")
	for i, st := range s.Standings {
		fmt.Printf("  %2d. %-20s score=%d tournamentsWon=%d\n", i+1, st.BotName, st.TotalScore, st.TournamentsWon)
	}
	fmt.Printf("\nSeries champion: %s\n", s.SeriesChampion)
}
