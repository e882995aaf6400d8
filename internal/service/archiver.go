// Package service hosts the long-running consumers that sit between the
// engine's event bus and external systems.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/botclash/internal/events"
	"github.com/freeeve/botclash/internal/model"
	"github.com/freeeve/botclash/internal/repository"
)

const archiveTimeout = 5 * time.Second

// Archiver persists match results and series records as they complete.
// Persistence failures are logged and absorbed; the engine never waits on
// the database.
type Archiver struct {
	repo repository.SeriesRepository
	sub  *events.Subscription
	done chan struct{}

	mu       sync.Mutex
	seriesID string
}

// NewArchiver subscribes to the bus and starts archiving.
func NewArchiver(bus *events.Bus, repo repository.SeriesRepository) *Archiver {
	a := &Archiver{
		repo: repo,
		sub:  bus.Subscribe(0, events.SeriesStarted, events.MatchCompleted, events.SeriesCompleted),
		done: make(chan struct{}),
	}
	go a.loop()
	return a
}

// Stop detaches from the bus and waits for in-flight writes to finish.
func (a *Archiver) Stop() {
	a.sub.Close()
	<-a.done
}

func (a *Archiver) loop() {
	defer close(a.done)
	for {
		select {
		case <-a.sub.Done():
			return
		case e := <-a.sub.Events():
			a.apply(e)
		}
	}
}

func (a *Archiver) apply(e events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()

	switch p := e.Payload.(type) {
	case events.SeriesStartedPayload:
		a.mu.Lock()
		a.seriesID = p.SeriesID
		a.mu.Unlock()
		// Write a stub row immediately so per-match inserts have a series
		// to reference in listings while the series is still running.
		stub := &model.SeriesInfo{SeriesID: p.SeriesID, StartedAt: e.At}
		if err := a.repo.SaveSeries(ctx, stub); err != nil {
			log.Warn().Err(err).Str("seriesId", p.SeriesID).Msg("Failed to archive series start")
		}
	case events.MatchCompletedPayload:
		a.mu.Lock()
		seriesID := a.seriesID
		a.mu.Unlock()
		if err := a.repo.SaveMatch(ctx, seriesID, p.EventID, p.Match); err != nil {
			log.Warn().Err(err).Str("matchId", p.Match.MatchID).Msg("Failed to archive match")
		}
	case events.SeriesCompletedPayload:
		if err := a.repo.SaveSeries(ctx, p.Series); err != nil {
			log.Warn().Err(err).Str("seriesId", p.Series.SeriesID).Msg("Failed to archive series")
			return
		}
		log.Info().
			Str("seriesId", p.Series.SeriesID).
			Str("champion", p.Series.SeriesChampion).
			Msg("Series archived")
	}
}
