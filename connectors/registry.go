package connectors

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/agentplatform/core/apitypes"
	"github.com/agentplatform/core/telemetry"
)

// Registry holds slug-to-connector registrations plus the membership set
// of currently connected slugs. Registration is read-mostly after startup;
// the connected set is mutated on every connect/disconnect and is guarded
// by mu; the rate limiters carry their own lock.
type Registry struct {
	mu         sync.RWMutex
	connectors map[string]Connector
	connected  map[string]struct{}

	limiter *perSlugLimiter
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

// WithRateLimit sets the per-connector token bucket applied to Execute.
// The zero value (RatePerSecond <= 0) disables limiting.
func WithRateLimit(rl RateLimit) Option {
	return func(r *Registry) { r.limiter = newPerSlugLimiter(rl) }
}

// New returns an empty connector registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		connectors: make(map[string]Connector),
		connected:  make(map[string]struct{}),
		limiter:    newPerSlugLimiter(RateLimit{}),
		log:        telemetry.NewNoopLogger(),
		metrics:    telemetry.NewNoopMetrics(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds connector to the catalog under its manifest slug,
// replacing and logging a warning if the slug was already registered.
func (r *Registry) Register(connector Connector) error {
	meta := connector.Metadata()
	if meta.Slug == "" {
		return fmt.Errorf("connectors: connector metadata missing slug")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.connectors[meta.Slug]; exists {
		r.log.Warn(context.Background(), "connector slug already registered, replacing", "slug", meta.Slug)
	}
	r.connectors[meta.Slug] = connector
	return nil
}

func (r *Registry) get(slug string) (Connector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.connectors[slug]
	return c, ok
}

// List returns the catalog entry for every registered connector, ordered
// by slug.
func (r *Registry) List() []apitypes.ConnectorMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]apitypes.ConnectorMetadata, 0, len(r.connectors))
	for _, c := range r.connectors {
		out = append(out, c.Metadata())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}

// Connect initializes slug's connection. On success the slug is marked
// connected; on failure the slug is left disconnected and the error
// returned to the caller (the Python original swallows this into a bool —
// spec.md doesn't forbid surfacing the cause, and Go idiom favors it).
func (r *Registry) Connect(ctx context.Context, slug string, config map[string]any) error {
	connector, ok := r.get(slug)
	if !ok {
		return apitypes.NewError(apitypes.ErrNotFound, "unknown connector: "+slug)
	}
	if err := connector.Connect(ctx, config); err != nil {
		r.log.Error(ctx, "connector connect failed", "slug", slug, "error", err)
		return apitypes.Wrap(apitypes.ErrConnectionFailed, "connect failed for "+slug, err)
	}
	r.mu.Lock()
	r.connected[slug] = struct{}{}
	r.mu.Unlock()
	return nil
}

// Disconnect closes slug's connection. Best effort: disconnect errors are
// logged, never returned, and the slug is removed from the connected set
// regardless of outcome.
func (r *Registry) Disconnect(ctx context.Context, slug string) {
	connector, ok := r.get(slug)
	r.mu.Lock()
	_, wasConnected := r.connected[slug]
	delete(r.connected, slug)
	r.mu.Unlock()
	if !ok || !wasConnected {
		return
	}
	if err := connector.Disconnect(ctx); err != nil {
		r.log.Warn(ctx, "connector disconnect error", "slug", slug, "error", err)
	}
}

// DisconnectAll closes every currently connected connector. Best effort.
func (r *Registry) DisconnectAll(ctx context.Context) {
	r.mu.RLock()
	slugs := make([]string, 0, len(r.connected))
	for slug := range r.connected {
		slugs = append(slugs, slug)
	}
	r.mu.RUnlock()
	for _, slug := range slugs {
		r.Disconnect(ctx, slug)
	}
}

// IsConnected reports whether slug is currently marked connected.
func (r *Registry) IsConnected(slug string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.connected[slug]
	return ok
}

func hasAction(meta apitypes.ConnectorMetadata, action string) bool {
	for _, a := range meta.Actions {
		if a.Name == action {
			return true
		}
	}
	return false
}

// Execute rejects an unknown slug (NOT_FOUND) or an action not declared in
// the connector's metadata (INVALID_ACTION) before delegating. A rate
// limit configured via WithRateLimit is enforced per slug ahead of
// dispatch; exceeding it yields RATE_LIMITED without invoking the
// connector. Errors raised by the connector are mapped to PROCESSING_ERROR;
// the connector itself may return a more specific standardized code in a
// successful (non-error) ConnectorResult.
func (r *Registry) Execute(ctx context.Context, slug, action string, params map[string]any) (result apitypes.ConnectorResult, err error) {
	connector, ok := r.get(slug)
	if !ok {
		return apitypes.ConnectorResult{}, apitypes.NewError(apitypes.ErrNotFound, "unknown connector: "+slug)
	}
	meta := connector.Metadata()
	if !hasAction(meta, action) {
		return apitypes.ConnectorResult{}, apitypes.NewError(apitypes.ErrInvalidAction, fmt.Sprintf("unknown action %q for connector %q", action, slug))
	}
	if !r.limiter.Allow(slug) {
		return apitypes.ConnectorResult{Success: false, Error: "rate limit exceeded", ErrorCode: apitypes.ErrRateLimited}, nil
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error(ctx, "connector panicked", "slug", slug, "action", action, "panic", rec)
			result = apitypes.ConnectorResult{Success: false, Error: fmt.Sprintf("%v", rec), ErrorCode: apitypes.ErrProcessing}
			err = nil
		}
	}()

	res, execErr := connector.Execute(ctx, action, params)
	if execErr != nil {
		r.metrics.IncCounter("connector.execute.error", 1, "slug", slug, "action", action)
		return apitypes.ConnectorResult{Success: false, Error: execErr.Error(), ErrorCode: apitypes.ErrProcessing}, nil
	}
	r.metrics.IncCounter("connector.execute.ok", 1, "slug", slug, "action", action)
	return res, nil
}

// Health runs a health check on every connected connector.
func (r *Registry) Health(ctx context.Context) map[string]bool {
	r.mu.RLock()
	slugs := make([]string, 0, len(r.connected))
	for slug := range r.connected {
		slugs = append(slugs, slug)
	}
	r.mu.RUnlock()

	out := make(map[string]bool, len(slugs))
	for _, slug := range slugs {
		connector, ok := r.get(slug)
		if !ok {
			continue
		}
		out[slug] = connector.Health(ctx).Healthy
	}
	return out
}
