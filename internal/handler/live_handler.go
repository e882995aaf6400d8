package handler

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/botclash/internal/live"
	"github.com/freeeve/botclash/internal/model"
	"github.com/freeeve/botclash/internal/repository"
)

// LiveHandler serves REST snapshots of the running tournament from the
// live state aggregator. The WebSocket stream carries the same data
// incrementally; these endpoints give late joiners a full view.
type LiveHandler struct {
	agg   *live.Aggregator
	cache repository.LiveCache
}

// NewLiveHandler creates a LiveHandler. cache may be nil; when set it
// serves the last persisted snapshot after a restart, before any event
// has reached the aggregator.
func NewLiveHandler(agg *live.Aggregator, cache repository.LiveCache) *LiveHandler {
	return &LiveHandler{agg: agg, cache: cache}
}

// State handles GET /api/live/state.
func (h *LiveHandler) State(w http.ResponseWriter, r *http.Request) {
	st := h.agg.Snapshot()
	if st.UpdatedAt.IsZero() && h.cache != nil {
		cached, err := h.cache.GetSnapshot(r.Context())
		if err != nil {
			log.Warn().Err(err).Msg("Live snapshot cache read failed")
		} else if cached != nil {
			st = cached
		}
	}
	writeJSON(w, http.StatusOK, st)
}

// GroupStandings handles GET /api/live/standings/{eventId}/{groupId}.
func (h *LiveHandler) GroupStandings(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventId")
	groupID := r.PathValue("groupId")

	standings, ok := h.agg.GroupStandings(eventID, groupID)
	if !ok {
		writeError(w, http.StatusNotFound, "no standings for that group")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"event_id":  eventID,
		"group_id":  groupID,
		"standings": standings,
	})
}

// RecentMatches handles GET /api/live/matches/{eventId}.
func (h *LiveHandler) RecentMatches(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventId")
	matches := h.agg.RecentMatches(eventID)
	if matches == nil {
		matches = []*model.MatchResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"event_id": eventID,
		"matches":  matches,
	})
}

// Leaders handles GET /api/live/leaders.
func (h *LiveHandler) Leaders(w http.ResponseWriter, r *http.Request) {
	leaders := h.agg.Leaders()
	if leaders == nil {
		leaders = []model.SeriesStanding{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaders": leaders})
}
