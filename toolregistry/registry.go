package toolregistry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/agentplatform/core/apitypes"
	"github.com/agentplatform/core/telemetry"
)

// entry pairs a registered tool with its compiled input-validation schema.
type entry struct {
	tool   Tool
	schema *jsonschema.Schema
}

// Registry holds the slug-to-tool catalog and performs schema-gated
// invocation. Registration happens at startup and is read-mostly
// afterward; a shared lock guards reads, an exclusive lock guards writes.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry

	log     telemetry.Logger
	metrics telemetry.Metrics
}

// Option configures a Registry at construction time.
type Option func(*Registry)

// WithLogger overrides the registry's logger. Defaults to a no-op.
func WithLogger(l telemetry.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// WithMetrics overrides the registry's metrics sink. Defaults to a no-op.
func WithMetrics(m telemetry.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// New returns an empty tool registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[string]entry),
		log:     telemetry.NewNoopLogger(),
		metrics: telemetry.NewNoopMetrics(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register compiles tool's input schema and adds it to the catalog under
// its manifest slug. Registering an already-registered slug replaces the
// prior entry with a logged warning, matching discovery's hot-reload
// semantics.
func (r *Registry) Register(tool Tool) error {
	meta := tool.Metadata()
	if meta.Slug == "" {
		return fmt.Errorf("toolregistry: tool metadata missing slug")
	}

	schema, err := compileSchema(meta.Slug, meta.InputSchema)
	if err != nil {
		return fmt.Errorf("toolregistry: register %s: %w", meta.Slug, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[meta.Slug]; exists {
		r.log.Warn(context.Background(), "tool slug already registered, replacing", "slug", meta.Slug)
	}
	r.entries[meta.Slug] = entry{tool: tool, schema: schema}
	return nil
}

// Get returns the tool registered under slug.
func (r *Registry) Get(slug string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[slug]
	if !ok {
		return nil, false
	}
	return e.tool, true
}

// List returns the catalog entry for every registered tool, ordered by
// slug for deterministic output.
func (r *Registry) List() []apitypes.ToolMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]apitypes.ToolMetadata, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.tool.Metadata())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}

// ListByCategory filters List to tools declaring the given category.
func (r *Registry) ListByCategory(category string) []apitypes.ToolMetadata {
	all := r.List()
	out := make([]apitypes.ToolMetadata, 0, len(all))
	for _, m := range all {
		if m.Category == category {
			out = append(out, m)
		}
	}
	return out
}

// Categories returns the distinct set of categories in the catalog.
func (r *Registry) Categories() []string {
	all := r.List()
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, m := range all {
		if m.Category == "" {
			continue
		}
		if _, ok := seen[m.Category]; !ok {
			seen[m.Category] = struct{}{}
			out = append(out, m.Category)
		}
	}
	sort.Strings(out)
	return out
}

// Health runs every tool's self-check and returns the result keyed by slug.
func (r *Registry) Health(ctx context.Context) map[string]HealthCheckResult {
	r.mu.RLock()
	tools := make(map[string]Tool, len(r.entries))
	for slug, e := range r.entries {
		tools[slug] = e.tool
	}
	r.mu.RUnlock()

	out := make(map[string]HealthCheckResult, len(tools))
	for slug, tool := range tools {
		out[slug] = tool.Health(ctx)
	}
	return out
}

// HealthOf runs a single tool's self-check.
func (r *Registry) HealthOf(ctx context.Context, slug string) (HealthCheckResult, bool) {
	tool, ok := r.Get(slug)
	if !ok {
		return HealthCheckResult{}, false
	}
	return tool.Health(ctx), true
}

// Execute validates params against slug's declared input schema, then
// invokes the tool. A schema mismatch is rejected with INVALID_PARAMS
// before the tool ever runs; a panic inside the tool is recovered and
// mapped to PROCESSING_ERROR, matching the caught-exception contract of
// the framework this registry is modeled on.
func (r *Registry) Execute(ctx context.Context, slug string, params map[string]any, tc ToolContext) (result apitypes.ToolResult, err error) {
	r.mu.RLock()
	e, ok := r.entries[slug]
	r.mu.RUnlock()
	if !ok {
		return apitypes.ToolResult{}, apitypes.NewError(apitypes.ErrNotFound, "unknown tool: "+slug)
	}

	if v, isValidator := e.tool.(ParamValidator); isValidator {
		if verr := v.ValidateParams(params); verr != nil {
			return apitypes.ToolResult{Success: false, Error: verr.Error(), ErrorCode: apitypes.ErrInvalidParams}, nil
		}
	} else if verr := e.schema.Validate(params); verr != nil {
		return apitypes.ToolResult{Success: false, Error: verr.Error(), ErrorCode: apitypes.ErrInvalidParams}, nil
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error(ctx, "tool panicked", "slug", slug, "panic", rec)
			result = apitypes.ToolResult{Success: false, Error: fmt.Sprintf("%v", rec), ErrorCode: apitypes.ErrProcessing}
			err = nil
		}
	}()

	res, execErr := e.tool.Execute(ctx, params, tc)
	if execErr != nil {
		r.metrics.IncCounter("tool.execute.error", 1, "slug", slug)
		return apitypes.ToolResult{Success: false, Error: execErr.Error(), ErrorCode: apitypes.ErrProcessing}, nil
	}
	r.metrics.IncCounter("tool.execute.ok", 1, "slug", slug)
	return res, nil
}
