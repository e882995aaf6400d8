// Package scoring holds the pure standings math: applying match results to
// group standings and deterministic ranking. Same input, same output; no
// hidden state. Callers are responsible for apply-once guarding and for
// locking standings they share.
package scoring

import (
	"fmt"
	"sort"
	"time"

	"github.com/freeeve/botclash/internal/model"
)

// Points awarded within a group. The formula points = 3*wins + draws is
// fixed at build time.
const (
	WinPoints  = 3
	DrawPoints = 1
)

// Apply folds one match result into both participants' standings.
// BothError matches contribute nothing beyond goal difference staying
// frozen; one-sided errors count as a win for the surviving side. Returns
// an error only if a participant is missing from the standings, which is a
// scheduler invariant violation.
func Apply(standings map[string]*model.GroupStanding, r *model.MatchResult) error {
	s1, ok := standings[r.Bot1Name]
	if !ok {
		return fmt.Errorf("participant %q missing from standings", r.Bot1Name)
	}
	s2, ok := standings[r.Bot2Name]
	if !ok {
		return fmt.Errorf("participant %q missing from standings", r.Bot2Name)
	}

	diff := r.Bot1Score - r.Bot2Score
	s1.GoalDiff += diff
	s2.GoalDiff -= diff

	switch r.Outcome {
	case model.Bot1Wins, model.Bot2Error:
		s1.Wins++
		s1.Points += WinPoints
		s2.Losses++
	case model.Bot2Wins, model.Bot1Error:
		s2.Wins++
		s2.Points += WinPoints
		s1.Losses++
	case model.Draw:
		s1.Draws++
		s2.Draws++
		s1.Points += DrawPoints
		s2.Points += DrawPoints
	case model.BothError:
		// Neither side earns ranking credit.
	default:
		return fmt.Errorf("unknown outcome %q for match %s", r.Outcome, r.MatchID)
	}
	return nil
}

// RankGroup orders standings by the four-key rule: points, goal
// difference, wins, all descending, with name ascending as the final,
// deterministic tiebreak. Returns copies; the input is not mutated.
func RankGroup(standings map[string]*model.GroupStanding) []model.GroupStanding {
	ranked := make([]model.GroupStanding, 0, len(standings))
	for _, s := range standings {
		ranked = append(ranked, *s)
	}
	sort.Slice(ranked, func(i, j int) bool {
		return lessStanding(ranked[i], ranked[j])
	})
	return ranked
}

func lessStanding(a, b model.GroupStanding) bool {
	if a.Points != b.Points {
		return a.Points > b.Points
	}
	if a.GoalDiff != b.GoalDiff {
		return a.GoalDiff > b.GoalDiff
	}
	if a.Wins != b.Wins {
		return a.Wins > b.Wins
	}
	return a.BotName < b.BotName
}

// TiedOnRankKeys reports whether two standings are indistinguishable on
// the first three keys, i.e. only the name tiebreak separates them.
func TiedOnRankKeys(a, b model.GroupStanding) bool {
	return a.Points == b.Points && a.GoalDiff == b.GoalDiff && a.Wins == b.Wins
}

// AggregateEntry is one bot's position in a plain score ranking.
type AggregateEntry struct {
	BotName string
	Score   int
}

// RankAggregate orders aggregated totals by score descending, name
// ascending.
func RankAggregate(scores map[string]int) []AggregateEntry {
	ranked := make([]AggregateEntry, 0, len(scores))
	for name, score := range scores {
		ranked = append(ranked, AggregateEntry{BotName: name, Score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].BotName < ranked[j].BotName
	})
	return ranked
}

// RankSeries orders series standings by total score, then tournaments won,
// then name ascending. Returns a sorted copy.
func RankSeries(standings []model.SeriesStanding) []model.SeriesStanding {
	ranked := append([]model.SeriesStanding(nil), standings...)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].TotalScore != ranked[j].TotalScore {
			return ranked[i].TotalScore > ranked[j].TotalScore
		}
		if ranked[i].TournamentsWon != ranked[j].TournamentsWon {
			return ranked[i].TournamentsWon > ranked[j].TournamentsWon
		}
		return ranked[i].BotName < ranked[j].BotName
	})
	return ranked
}

// Stats is a derived, non-authoritative summary over a set of matches.
type Stats struct {
	Matches       int           `json:"matches"`
	Draws         int           `json:"draws"`
	ErrorMatches  int           `json:"error_matches"`
	AgentFaults   int           `json:"agent_faults"`
	TotalDuration time.Duration `json:"total_duration"`
	AvgDuration   time.Duration `json:"avg_duration"`
}

// Statistics summarises completed matches.
func Statistics(matches []*model.MatchResult) Stats {
	var st Stats
	for _, m := range matches {
		st.Matches++
		st.TotalDuration += m.Duration()
		st.AgentFaults += len(m.Errors)
		if m.Outcome == model.Draw {
			st.Draws++
		}
		if m.Outcome.IsError() {
			st.ErrorMatches++
		}
	}
	if st.Matches > 0 {
		st.AvgDuration = st.TotalDuration / time.Duration(st.Matches)
	}
	return st
}
