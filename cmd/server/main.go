package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/botclash/internal/agent"
	"github.com/freeeve/botclash/internal/auth"
	"github.com/freeeve/botclash/internal/config"
	"github.com/freeeve/botclash/internal/events"
	"github.com/freeeve/botclash/internal/handler"
	"github.com/freeeve/botclash/internal/live"
	"github.com/freeeve/botclash/internal/logger"
	"github.com/freeeve/botclash/internal/match"
	"github.com/freeeve/botclash/internal/middleware"
	"github.com/freeeve/botclash/internal/repository/postgres"
	redisrepo "github.com/freeeve/botclash/internal/repository/redis"
	"github.com/freeeve/botclash/internal/schedule"
	"github.com/freeeve/botclash/internal/service"
	"github.com/freeeve/botclash/internal/tournament"
)

func main() {
	logger.Init()
	cfg := config.Load()
	log.Info().Str("databaseURL", cfg.DatabaseURL).Msg("Config loaded")

	// Database
	db, err := postgres.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Database connection failed")
	}
	defer db.Close()

	// Redis
	redisClient, err := redisrepo.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Redis connection failed")
	}
	defer redisClient.Close()

	// Repos
	seriesRepo := postgres.NewSeriesRepo(db)

	// Auth
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, cfg.AdminToken)
	if cfg.AdminToken == "" {
		log.Warn().Msg("ADMIN_TOKEN not set; token exchange is disabled")
	}

	// Event bus and its consumers
	bus := events.NewBus()
	defer bus.Close()

	agg := live.NewAggregator(bus, redisClient)
	defer agg.Stop()

	archiver := service.NewArchiver(bus, seriesRepo)
	defer archiver.Stop()

	wsHub := handler.NewHub()
	bridge := handler.NewBridge(bus, wsHub)
	defer bridge.Stop()

	// Handlers
	authHandler := handler.NewAuthHandler(jwtMgr)
	botHandler := handler.NewBotHandler(cfg)
	liveHandler := handler.NewLiveHandler(agg, redisClient)
	seriesHandler := handler.NewSeriesHandler(seriesRepo)
	wsHandler := handler.NewWSHandler(wsHub)

	// Router
	mux := http.NewServeMux()
	authMw := auth.Middleware(jwtMgr)

	// Health
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Auth (public)
	mux.HandleFunc("POST /api/auth/token", authHandler.Token)

	// Submissions; mutating routes require an operator token
	mux.Handle("POST /api/bots/submit", authMw(http.HandlerFunc(botHandler.Submit)))
	mux.Handle("POST /api/bots/submit-batch", authMw(http.HandlerFunc(botHandler.SubmitBatch)))
	mux.Handle("DELETE /api/bots/{teamName}", authMw(http.HandlerFunc(botHandler.Delete)))
	mux.HandleFunc("POST /api/bots/verify", botHandler.Verify)
	mux.HandleFunc("GET /api/bots/list", botHandler.List)
	mux.HandleFunc("GET /api/resources/templates/{name}", botHandler.Template)

	// Live state snapshots (public, read-only)
	mux.HandleFunc("GET /api/live/state", liveHandler.State)
	mux.HandleFunc("GET /api/live/standings/{eventId}/{groupId}", liveHandler.GroupStandings)
	mux.HandleFunc("GET /api/live/matches/{eventId}", liveHandler.RecentMatches)
	mux.HandleFunc("GET /api/live/leaders", liveHandler.Leaders)

	// Archived series
	mux.HandleFunc("GET /api/series", seriesHandler.List)
	mux.HandleFunc("GET /api/series/{id}", seriesHandler.Get)

	// WebSocket (public dashboard stream)
	mux.HandleFunc("GET /api/ws", wsHandler.ServeWS)

	// Apply global middleware
	root := middleware.Chain(mux, middleware.Logger, middleware.Recover, middleware.CORS("*"), middleware.JSON)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A roster in the environment starts a series immediately; otherwise the
	// server just serves submissions and archived results.
	if roster := os.Getenv("ROSTER"); roster != "" {
		go runSeries(ctx, bus, roster)
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("Server stopped")
}

// runSeries plays one tournament series with built-in strategies. The bus
// consumers wired in main take care of archiving and the live dashboard.
func runSeries(ctx context.Context, bus *events.Bus, rosterSpec string) {
	roster, err := agent.ParseRoster(rosterSpec)
	if err != nil {
		log.Error().Err(err).Msg("Invalid ROSTER")
		return
	}

	tcfg := config.DefaultTournament()
	if v := os.Getenv("SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			log.Error().Str("seed", v).Msg("Invalid SEED")
			return
		}
		tcfg.Seed = seed
	}
	if v := os.Getenv("TOURNAMENTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			log.Error().Str("tournaments", v).Msg("Invalid TOURNAMENTS")
			return
		}
		tcfg.Tournaments = n
	}

	loader := agent.NewStaticLoader(roster, tcfg.MemoryLimitBytes())
	runner, err := match.NewRunner(tcfg, bus)
	if err != nil {
		log.Error().Err(err).Msg("Bad tournament config")
		return
	}
	sched, err := schedule.NewScheduler(tcfg, runner, bus)
	if err != nil {
		log.Error().Err(err).Msg("Scheduler setup failed")
		return
	}
	orch, err := tournament.NewOrchestrator(tcfg, sched, bus, loader)
	if err != nil {
		log.Error().Err(err).Msg("Orchestrator setup failed")
		return
	}
	series, err := tournament.NewSeriesRunner(tcfg, orch, bus, loader)
	if err != nil {
		log.Error().Err(err).Msg("Series setup failed")
		return
	}

	result, err := series.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Series aborted")
		return
	}
	log.Info().
		Str("seriesId", result.SeriesID).
		Str("champion", result.SeriesChampion).
		Msg("Series finished")
}
