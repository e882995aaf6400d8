package schedule

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/freeeve/botclash/internal/model"
)

// BuildGroups shuffles the bot set and splits it into round-robin groups.
// The configured group count is clamped so every group keeps at least two
// bots; trailing groups may be smaller but are never empty.
func BuildGroups(bots []string, groupCount int, rng *rand.Rand) ([]*model.Group, error) {
	if len(bots) < 2 {
		return nil, fmt.Errorf("need at least 2 bots, got %d", len(bots))
	}
	if groupCount < 1 {
		return nil, fmt.Errorf("group count must be at least 1, got %d", groupCount)
	}
	if groupCount > len(bots)/2 {
		groupCount = len(bots) / 2
	}

	shuffled := append([]string(nil), bots...)
	sort.Strings(shuffled)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	size := (len(shuffled) + groupCount - 1) / groupCount
	groups := make([]*model.Group, 0, groupCount)
	for i := 0; i < len(shuffled); i += size {
		end := i + size
		if end > len(shuffled) {
			end = len(shuffled)
		}
		groups = append(groups, newGroup(fmt.Sprintf("group-%d", len(groups)+1), shuffled[i:end]))
	}

	// A short trailing group can end up alone; merge it into its neighbour.
	if n := len(groups); n > 1 && len(groups[n-1].Bots) < 2 {
		prev := groups[n-2]
		groups[n-2] = newGroup(prev.GroupID, append(prev.Bots, groups[n-1].Bots...))
		groups = groups[:n-1]
	}
	return groups, nil
}

func newGroup(id string, bots []string) *model.Group {
	g := &model.Group{
		GroupID:   id,
		Bots:      append([]string(nil), bots...),
		Standings: make(map[string]*model.GroupStanding, len(bots)),
	}
	for _, b := range g.Bots {
		g.Standings[b] = &model.GroupStanding{BotName: b}
	}
	return g
}

// pairing is one scheduled match within a group.
type pairing struct {
	group *model.Group
	bot1  string
	bot2  string
}

// allPairs enumerates the n*(n-1)/2 unordered pairs of a group.
func allPairs(g *model.Group) []pairing {
	out := make([]pairing, 0, len(g.Bots)*(len(g.Bots)-1)/2)
	for i := 0; i < len(g.Bots); i++ {
		for j := i + 1; j < len(g.Bots); j++ {
			out = append(out, pairing{group: g, bot1: g.Bots[i], bot2: g.Bots[j]})
		}
	}
	return out
}
