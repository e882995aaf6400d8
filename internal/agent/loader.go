package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/botclash/internal/model"
)

// Loader produces agent handles from team submissions. Compiling and
// sandboxing untrusted sources lives behind this interface; the engine
// only consumes handles and failures. Failures never abort a tournament:
// the failed team is excluded and logged.
type Loader interface {
	// LoadAll builds every registered agent. Failures are returned
	// alongside successes.
	LoadAll(ctx context.Context) ([]*Handle, []model.LoadFailure, error)

	// ReloadAll rebuilds the given agents from their original sources and
	// resets their memory accounting.
	ReloadAll(ctx context.Context, existing []*Handle) ([]*Handle, []model.LoadFailure, error)
}

// StaticLoader serves built-in strategies from a roster map of team name
// to strategy kind. It backs the CLI and tests; directory-based loaders
// for user submissions implement the same interface elsewhere.
type StaticLoader struct {
	roster      map[string]string
	memoryLimit uint64
}

// NewStaticLoader builds a loader over a roster of built-in strategies.
func NewStaticLoader(roster map[string]string, memoryLimit uint64) *StaticLoader {
	return &StaticLoader{roster: roster, memoryLimit: memoryLimit}
}

// ParseRoster parses "alpha=random,beta=counter,gamma=stubborn" into a
// roster map.
func ParseRoster(spec string) (map[string]string, error) {
	roster := make(map[string]string)
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, kind, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("roster entry %q is not name=kind", part)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("roster entry %q has an empty team name", part)
		}
		if _, dup := roster[name]; dup {
			return nil, fmt.Errorf("duplicate team name %q", name)
		}
		roster[name] = strings.TrimSpace(kind)
	}
	if len(roster) == 0 {
		return nil, fmt.Errorf("empty roster")
	}
	return roster, nil
}

// LoadAll builds a handle per roster entry, in name order.
func (l *StaticLoader) LoadAll(_ context.Context) ([]*Handle, []model.LoadFailure, error) {
	names := make([]string, 0, len(l.roster))
	for name := range l.roster {
		names = append(names, name)
	}
	sort.Strings(names)

	var handles []*Handle
	var failures []model.LoadFailure
	for _, name := range names {
		a, err := NewBuiltin(name, l.roster[name])
		if err != nil {
			log.Warn().Str("teamName", name).Err(err).Msg("Agent load failed")
			failures = append(failures, model.LoadFailure{TeamName: name, Errors: []string{err.Error()}})
			continue
		}
		handles = append(handles, NewHandle(a, l.memoryLimit))
	}
	return handles, failures, nil
}

// ReloadAll rebuilds each handle's strategy and zeroes its accounting.
func (l *StaticLoader) ReloadAll(_ context.Context, existing []*Handle) ([]*Handle, []model.LoadFailure, error) {
	var handles []*Handle
	var failures []model.LoadFailure
	for _, h := range existing {
		name := h.TeamName()
		kind, ok := l.roster[name]
		if !ok {
			failures = append(failures, model.LoadFailure{TeamName: name, Errors: []string{"team no longer registered"}})
			continue
		}
		a, err := NewBuiltin(name, kind)
		if err != nil {
			failures = append(failures, model.LoadFailure{TeamName: name, Errors: []string{err.Error()}})
			continue
		}
		handles = append(handles, NewHandle(a, h.MemoryLimit()))
	}
	return handles, failures, nil
}
