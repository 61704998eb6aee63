package agents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agentplatform/core/agentctx"
	"github.com/agentplatform/core/apitypes"
	"github.com/agentplatform/core/connectors"
	"github.com/agentplatform/core/llmgateway"
	"github.com/agentplatform/core/pipeline"
	"github.com/agentplatform/core/session"
	"github.com/agentplatform/core/storage"
	"github.com/agentplatform/core/telemetry"
	"github.com/agentplatform/core/toolregistry"
)

// defaultMaxSubAgentDepth bounds a sub-agent call chain. The spec leaves
// cyclic sub-agent graphs as an open question (§9); this resolves it by
// rejecting re-entry of any slug already on the chain, and as a backstop
// against unbounded non-repeating chains, rejecting once the chain reaches
// this length — both cases surface as CYCLE_DETECTED.
const defaultMaxSubAgentDepth = 8

// Engine discovers agents, builds per-turn contexts, and runs both the
// direct synchronous path and sub-agent invocation.
type Engine struct {
	registry *Registry
	pipe     *pipeline.Pipeline

	providers map[string]llmgateway.Provider
	agentCfg  llmgateway.AgentConfigLookup
	catalog   llmgateway.CatalogLookup
	secrets   llmgateway.SecretStore

	tools      *toolregistry.Registry
	connectors *connectors.Registry
	sessions   session.Store

	objectStore storage.ObjectStore
	bucket      string

	maxSubAgentDepth int
	log              telemetry.Logger
	metrics          telemetry.Metrics
	now              func() time.Time
}

// EngineOption configures an Engine at construction time.
type EngineOption func(*Engine)

// WithMaxSubAgentDepth overrides the sub-agent call-chain depth limit.
// Defaults to 8.
func WithMaxSubAgentDepth(n int) EngineOption {
	return func(e *Engine) { e.maxSubAgentDepth = n }
}

// WithEngineLogger overrides the engine's logger. Defaults to a no-op.
func WithEngineLogger(l telemetry.Logger) EngineOption {
	return func(e *Engine) { e.log = l }
}

// WithEngineMetrics overrides the engine's metrics sink. Defaults to a no-op.
func WithEngineMetrics(m telemetry.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the engine's time source. Tests use this for
// deterministic session-title timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine binds the registries and collaborators an engine needs to
// build contexts and run turns.
func NewEngine(
	registry *Registry,
	pipe *pipeline.Pipeline,
	providers map[string]llmgateway.Provider,
	agentCfg llmgateway.AgentConfigLookup,
	catalog llmgateway.CatalogLookup,
	secrets llmgateway.SecretStore,
	tools *toolregistry.Registry,
	conn *connectors.Registry,
	sessions session.Store,
	objectStore storage.ObjectStore,
	bucket string,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		registry:         registry,
		pipe:             pipe,
		providers:        providers,
		agentCfg:         agentCfg,
		catalog:          catalog,
		secrets:          secrets,
		tools:            tools,
		connectors:       conn,
		sessions:         sessions,
		objectStore:      objectStore,
		bucket:           bucket,
		maxSubAgentDepth: defaultMaxSubAgentDepth,
		log:              telemetry.NewNoopLogger(),
		metrics:          telemetry.NewNoopMetrics(),
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BuildContext constructs a fully populated per-turn context for (slug,
// user, session), resolving the agent's LLM config and the storage view
// rooted at the correct prefix (workspace-scoped if workspaceID is
// non-empty, user-scoped otherwise), per spec §4.9.
func (e *Engine) BuildContext(ctx context.Context, slug, userID, sessionID, workspaceID, lang string, opts ...agentctx.Option) (*agentctx.Context, error) {
	return e.buildContext(ctx, slug, userID, sessionID, workspaceID, lang, []string{slug}, opts...)
}

func (e *Engine) buildContext(ctx context.Context, slug, userID, sessionID, workspaceID, lang string, callChain []string, opts ...agentctx.Option) (*agentctx.Context, error) {
	cfg, err := llmgateway.ResolveConfig(ctx, slug, e.agentCfg, e.catalog, e.secrets)
	if err != nil {
		return nil, fmt.Errorf("agents: resolve llm config for %s: %w", slug, err)
	}
	client := llmgateway.NewClient(cfg, e.providers)

	var scoped *storage.Scoped
	if workspaceID != "" {
		scoped = storage.NewWorkspaceScope(e.objectStore, e.bucket, workspaceID, slug)
	} else {
		scoped = storage.NewUserScope(e.objectStore, e.bucket, userID, slug)
	}

	mem := agentctx.NewSessionMemory(e.sessions, sessionID)
	invoker := &subAgentCaller{
		engine:      e,
		userID:      userID,
		sessionID:   sessionID,
		workspaceID: workspaceID,
		lang:        lang,
		callChain:   callChain,
	}

	allOpts := make([]agentctx.Option, 0, len(opts)+1)
	allOpts = append(allOpts, opts...)
	allOpts = append(allOpts, agentctx.WithAgents(invoker))

	return agentctx.New(sessionID, userID, slug, lang, client, e.tools, e.connectors, scoped, mem, allOpts...), nil
}

// ensureSession resolves sessionID to a live session, creating one if
// absent (sessionID == "") or if the caller-supplied id is unknown. The
// returned bool reports whether a new session was created, so callers
// can fire Agent.OnSessionStart exactly once per session rather than on
// every turn.
func (e *Engine) ensureSession(ctx context.Context, agentSlug, userID, sessionID, lang string) (apitypes.Session, bool, error) {
	title := session.DefaultTitle(lang, e.now())
	if sessionID == "" {
		sess, err := e.sessions.CreateSession(ctx, agentSlug, userID, title)
		return sess, err == nil, err
	}
	sess, err := e.sessions.GetSession(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		sess, err = e.sessions.CreateSessionWithID(ctx, sessionID, agentSlug, userID, title)
		return sess, err == nil, err
	}
	return sess, false, err
}

// fireSessionStart invokes Agent.OnSessionStart if agent implements
// SessionHooks, per spec §4.1's optional session lifecycle hooks.
func fireSessionStart(ctx context.Context, agent Agent, tc *agentctx.Context) {
	if hooks, ok := agent.(SessionHooks); ok {
		hooks.OnSessionStart(ctx, tc)
	}
}

// fireSessionEnd invokes Agent.OnSessionEnd if agent implements
// SessionHooks.
func fireSessionEnd(ctx context.Context, agent Agent, tc *agentctx.Context) {
	if hooks, ok := agent.(SessionHooks); ok {
		hooks.OnSessionEnd(ctx, tc)
	}
}

// Execute runs the direct synchronous path (spec §4.9): ensures the
// session exists, appends the user message, runs the pipeline, appends the
// assistant response to history on success, and returns the pipeline
// result alongside the resolved session. Extra opts (e.g.
// agentctx.WithProgress, used by the job worker to wire ctx.set_progress
// onto the realtime bus) are passed through to BuildContext unchanged.
func (e *Engine) Execute(ctx context.Context, slug, userID, sessionID, workspaceID, lang string, msg apitypes.UserMessage, opts ...agentctx.Option) (pipeline.Result, apitypes.Session, error) {
	agent, ok := e.registry.Get(slug)
	if !ok {
		return pipeline.Result{}, apitypes.Session{}, apitypes.NewError(apitypes.ErrAgentNotFound, "unknown agent: "+slug)
	}

	sess, created, err := e.ensureSession(ctx, slug, userID, sessionID, lang)
	if err != nil {
		return pipeline.Result{}, apitypes.Session{}, fmt.Errorf("agents: ensure session: %w", err)
	}

	tc, err := e.BuildContext(ctx, slug, userID, sess.SessionID, workspaceID, lang, opts...)
	if err != nil {
		return pipeline.Result{}, sess, err
	}

	if created {
		fireSessionStart(ctx, agent, tc)
	}

	if _, err := e.sessions.AppendMessage(ctx, sess.SessionID, apitypes.RoleUser, msg.Content, msg.Attachments, msg.Metadata); err != nil {
		e.log.Warn(ctx, "failed to append user message to history", "session_id", sess.SessionID, "error", err)
	}

	result := e.pipe.Execute(ctx, agent, tc, msg)

	if result.Success {
		if _, err := e.sessions.AppendMessage(ctx, sess.SessionID, apitypes.RoleAssistant, result.Response.Content, result.Response.Attachments, result.Response.Metadata); err != nil {
			e.log.Warn(ctx, "failed to append assistant message to history", "session_id", sess.SessionID, "error", err)
		}
	}

	return result, sess, nil
}

// ExecuteStream is Execute's streaming counterpart: it runs the
// agent through pipeline.ExecuteStream instead of Execute, forwarding
// chunks on the returned channel as they arrive and appending the
// accumulated assistant response to history once the result is known.
// The caller MUST drain both channels; the returned session is resolved
// before streaming begins (its SessionID is stable even if the turn
// later fails).
func (e *Engine) ExecuteStream(ctx context.Context, slug, userID, sessionID, workspaceID, lang string, msg apitypes.UserMessage, opts ...agentctx.Option) (<-chan apitypes.ResponseChunk, <-chan pipeline.Result, apitypes.Session, error) {
	agent, ok := e.registry.Get(slug)
	if !ok {
		return nil, nil, apitypes.Session{}, apitypes.NewError(apitypes.ErrAgentNotFound, "unknown agent: "+slug)
	}

	sess, created, err := e.ensureSession(ctx, slug, userID, sessionID, lang)
	if err != nil {
		return nil, nil, apitypes.Session{}, fmt.Errorf("agents: ensure session: %w", err)
	}

	tc, err := e.BuildContext(ctx, slug, userID, sess.SessionID, workspaceID, lang, opts...)
	if err != nil {
		return nil, nil, sess, err
	}

	if created {
		fireSessionStart(ctx, agent, tc)
	}

	if _, err := e.sessions.AppendMessage(ctx, sess.SessionID, apitypes.RoleUser, msg.Content, msg.Attachments, msg.Metadata); err != nil {
		e.log.Warn(ctx, "failed to append user message to history", "session_id", sess.SessionID, "error", err)
	}

	chunks, results := e.pipe.ExecuteStream(ctx, AsStreaming(agent), tc, msg)

	finalResults := make(chan pipeline.Result, 1)
	go func() {
		defer close(finalResults)
		result := <-results
		if result.Success {
			if _, err := e.sessions.AppendMessage(ctx, sess.SessionID, apitypes.RoleAssistant, result.Response.Content, result.Response.Attachments, result.Response.Metadata); err != nil {
				e.log.Warn(ctx, "failed to append assistant message to history", "session_id", sess.SessionID, "error", err)
			}
		}
		finalResults <- result
	}()

	return chunks, finalResults, sess, nil
}

// CloseSession ends a session: if the owning agent implements
// SessionHooks, OnSessionEnd runs first (under a context built the same
// way a turn's would be), then the session is marked closed in the store.
func (e *Engine) CloseSession(ctx context.Context, slug, userID, sessionID, workspaceID, lang string) error {
	agent, ok := e.registry.Get(slug)
	if !ok {
		return apitypes.NewError(apitypes.ErrAgentNotFound, "unknown agent: "+slug)
	}

	tc, err := e.BuildContext(ctx, slug, userID, sessionID, workspaceID, lang)
	if err != nil {
		return err
	}
	fireSessionEnd(ctx, agent, tc)

	return e.sessions.CloseSession(ctx, sessionID)
}

// subAgentCaller is the agentctx.SubAgentInvoker bound into every context
// the engine builds. Each level of sub-agent invocation closes over an
// extended copy of the call chain, so depth and re-entry are checked
// against the path actually taken, not a shared mutable counter.
type subAgentCaller struct {
	engine      *Engine
	userID      string
	sessionID   string
	workspaceID string
	lang        string
	callChain   []string
}

func (s *subAgentCaller) Execute(ctx context.Context, targetSlug, message string, metadata map[string]any) (apitypes.AgentResponse, error) {
	return s.engine.executeSubAgent(ctx, s.callChain, s.userID, s.sessionID, s.workspaceID, s.lang, targetSlug, message, metadata)
}

var _ agentctx.SubAgentInvoker = (*subAgentCaller)(nil)

// executeSubAgent implements ctx.agents.execute (spec §4.9): runs under a
// simplified context sharing the caller's identity, session, and quotas,
// without spawning a new job and without a second moderation pass (the
// pipeline run that owns this turn already owns moderation).
func (e *Engine) executeSubAgent(ctx context.Context, callChain []string, userID, sessionID, workspaceID, lang, targetSlug, message string, metadata map[string]any) (apitypes.AgentResponse, error) {
	maxDepth := e.maxSubAgentDepth
	if maxDepth <= 0 {
		maxDepth = defaultMaxSubAgentDepth
	}

	for _, slug := range callChain {
		if slug == targetSlug {
			return apitypes.AgentResponse{}, apitypes.NewError(apitypes.ErrCycleDetected, fmt.Sprintf("sub-agent call chain re-entered %q", targetSlug))
		}
	}
	if len(callChain) >= maxDepth {
		return apitypes.AgentResponse{}, apitypes.NewError(apitypes.ErrCycleDetected, fmt.Sprintf("sub-agent call chain exceeded max depth %d", maxDepth))
	}

	target, ok := e.registry.Get(targetSlug)
	if !ok {
		return apitypes.AgentResponse{}, apitypes.NewError(apitypes.ErrAgentNotFound, "unknown agent: "+targetSlug)
	}

	newChain := make([]string, len(callChain)+1)
	copy(newChain, callChain)
	newChain[len(callChain)] = targetSlug

	tc, err := e.buildContext(ctx, targetSlug, userID, sessionID, workspaceID, lang, newChain)
	if err != nil {
		return apitypes.AgentResponse{}, err
	}

	return target.HandleTurn(ctx, apitypes.UserMessage{Content: message, Metadata: metadata}, tc)
}
