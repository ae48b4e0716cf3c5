package orchestration

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// OrchestratorFunc is the body of an orchestration. It runs on its own
// goroutine and suspends only inside oc.
type OrchestratorFunc func(ctx context.Context, oc *Context, input json.RawMessage) (any, error)

// ActivityFunc is a unit of work invoked through Context.CallActivity.
type ActivityFunc func(ctx context.Context, input json.RawMessage) (any, error)

// Registry maps orchestration and activity names to their functions.
// Lookups are case-insensitive. Registration happens at startup before
// concurrent access, so no mutex is needed.
type Registry struct {
	orchestrators map[string]registered[OrchestratorFunc]
	activities    map[string]registered[ActivityFunc]
	logger        *slog.Logger
}

type registered[F any] struct {
	name string
	fn   F
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		orchestrators: make(map[string]registered[OrchestratorFunc]),
		activities:    make(map[string]registered[ActivityFunc]),
		logger:        logger.With("component", "orchestration-registry"),
	}
}

// RegisterOrchestrator adds an orchestrator under name, replacing any previous one.
func (r *Registry) RegisterOrchestrator(name string, fn OrchestratorFunc) {
	r.orchestrators[strings.ToLower(name)] = registered[OrchestratorFunc]{name: name, fn: fn}
	r.logger.Info("orchestrator registered", "name", name)
}

// RegisterActivity adds an activity under name, replacing any previous one.
func (r *Registry) RegisterActivity(name string, fn ActivityFunc) {
	r.activities[strings.ToLower(name)] = registered[ActivityFunc]{name: name, fn: fn}
	r.logger.Debug("activity registered", "name", name)
}

// Orchestrator returns the registered name and function for name.
func (r *Registry) Orchestrator(name string) (string, OrchestratorFunc, error) {
	o, ok := r.orchestrators[strings.ToLower(name)]
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownOrchestration, name)
	}
	return o.name, o.fn, nil
}

// Activity returns the function registered for name.
func (r *Registry) Activity(name string) (ActivityFunc, error) {
	a, ok := r.activities[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("no activity registered for %q", name)
	}
	return a.fn, nil
}

// Names returns the registered orchestration names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.orchestrators))
	for _, o := range r.orchestrators {
		names = append(names, o.name)
	}
	sort.Strings(names)
	return names
}
