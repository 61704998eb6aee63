// Package agentctx implements the per-turn context (spec C7): the sole
// capability surface an agent receives. It is constructed fresh by the
// agent engine for every turn and binds the LLM gateway, tool registry,
// connector registry, sub-agent invoker, scoped storage, and session
// memory into a single handle; agents must not retain it across turns.
package agentctx

import (
	"context"

	"github.com/agentplatform/core/apitypes"
	"github.com/agentplatform/core/connectors"
	"github.com/agentplatform/core/storage"
	"github.com/agentplatform/core/toolregistry"
)

// SubAgentInvoker is the capability behind ctx.agents: running another
// agent's turn in-process under the caller's identity and quotas. Defined
// locally so this package never imports the agents package — the engine
// builds a Context and hands it to agents.Engine, not the other way round.
type SubAgentInvoker interface {
	Execute(ctx context.Context, targetSlug, message string, metadata map[string]any) (apitypes.AgentResponse, error)
}

// ProgressPublisher is the capability behind ctx.set_progress. The job
// worker wires a bus-backed implementation; direct synchronous calls get
// the no-op default.
type ProgressPublisher interface {
	Publish(ctx context.Context, percent int, message string)
}

type noopProgress struct{}

func (noopProgress) Publish(context.Context, int, string) {}

// Context is the plain record described by the per-turn context: identity
// fields plus the capability handles an agent's code may use. The zero
// value is not useful — construct with New.
type Context struct {
	sessionID string
	userID    string
	agentSlug string
	lang      string

	llm        toolregistry.LLMClient
	tools      *toolregistry.Registry
	connectors *connectors.Registry
	agents     SubAgentInvoker
	storage    *storage.Scoped
	memory     Memory
	progress   ProgressPublisher
}

// Option configures a Context at construction time.
type Option func(*Context)

// WithAgents sets the sub-agent invoker.
func WithAgents(a SubAgentInvoker) Option { return func(c *Context) { c.agents = a } }

// WithProgress sets the progress publisher (defaults to a no-op).
func WithProgress(p ProgressPublisher) Option { return func(c *Context) { c.progress = p } }

// New builds a Context for one turn. sessionID, userID, agentSlug, and lang
// identify the turn; llm, tools, connectors, store, and mem are the
// capability handles bound to it.
func New(sessionID, userID, agentSlug, lang string, llm toolregistry.LLMClient, tools *toolregistry.Registry, conn *connectors.Registry, store *storage.Scoped, mem Memory, opts ...Option) *Context {
	c := &Context{
		sessionID:  sessionID,
		userID:     userID,
		agentSlug:  agentSlug,
		lang:       lang,
		llm:        llm,
		tools:      tools,
		connectors: conn,
		storage:    store,
		memory:     mem,
		progress:   noopProgress{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Context) SessionID() string { return c.sessionID }
func (c *Context) UserID() string    { return c.userID }
func (c *Context) AgentSlug() string { return c.agentSlug }
func (c *Context) Lang() string      { return c.lang }

// LLM satisfies toolregistry.ToolContext; returned as the narrow
// toolregistry.LLMClient capability, not the concrete gateway client.
func (c *Context) LLM() toolregistry.LLMClient { return c.llm }

// Tools exposes the full tool registry to agent code (not to tools
// themselves — toolregistry.ToolContext deliberately omits this).
func (c *Context) Tools() *toolregistry.Registry { return c.tools }

// Connectors satisfies toolregistry.ToolContext as the narrow
// toolregistry.ConnectorCaller capability.
func (c *Context) Connectors() toolregistry.ConnectorCaller { return c.connectors }

// ConnectorRegistry exposes the full connector registry to agent code.
func (c *Context) ConnectorRegistry() *connectors.Registry { return c.connectors }

// Agents exposes the sub-agent invoker, or nil if none was wired. The
// engine wires one into every context it builds, a sub-agent's own context
// included; the call-depth and re-entry limits are enforced by the engine,
// not here.
func (c *Context) Agents() SubAgentInvoker { return c.agents }

// Storage satisfies toolregistry.ToolContext.
func (c *Context) Storage() *storage.Scoped { return c.storage }

// Memory exposes the thin session-history view bound to this turn.
func (c *Context) Memory() Memory { return c.memory }

// SetProgress publishes a progress update on the job bus when the turn
// runs under a job; a no-op for direct synchronous calls.
func (c *Context) SetProgress(ctx context.Context, percent int, message string) {
	c.progress.Publish(ctx, percent, message)
}

var _ toolregistry.ToolContext = (*Context)(nil)
