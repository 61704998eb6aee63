package agents

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/agentplatform/core/apitypes"
	"github.com/agentplatform/core/telemetry"
)

// Registry holds the slug-to-agent catalog. Registration happens at
// startup (discovery) and is read-mostly afterward; a shared lock guards
// reads, an exclusive lock guards writes, matching the tool/connector
// registries' concurrency model.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Agent

	log     telemetry.Logger
	metrics telemetry.Metrics
}

// Option configures a Registry at construction time.
type Option func(*Registry)

// WithLogger overrides the registry's logger. Defaults to a no-op.
func WithLogger(l telemetry.Logger) Option { return func(r *Registry) { r.log = l } }

// WithMetrics overrides the registry's metrics sink. Defaults to a no-op.
func WithMetrics(m telemetry.Metrics) Option { return func(r *Registry) { r.metrics = m } }

// New returns an empty agent registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		agents:  make(map[string]Agent),
		log:     telemetry.NewNoopLogger(),
		metrics: telemetry.NewNoopMetrics(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds agent to the catalog under its manifest slug. Registering
// an already-registered slug replaces the prior entry with a logged
// warning (hot-reload/redeploy semantics).
func (r *Registry) Register(agent Agent) error {
	slug := agent.Manifest().Slug
	if slug == "" {
		return fmt.Errorf("agents: agent manifest missing slug")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[slug]; exists {
		r.log.Warn(context.Background(), "agent slug already registered, replacing", "slug", slug)
	}
	r.agents[slug] = agent
	return nil
}

// Get returns the agent registered under slug.
func (r *Registry) Get(slug string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[slug]
	return a, ok
}

// List returns the manifest for every registered agent, ordered by slug.
func (r *Registry) List() []apitypes.AgentManifest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]apitypes.AgentManifest, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a.Manifest())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}
