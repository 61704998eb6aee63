// Package toolregistry implements the tool registry (spec C3): discovery,
// catalog, schema-validated invocation of pure-function tools. Tools never
// touch the network or filesystem directly; they reach the outside world
// only through the capability handles on ToolContext.
package toolregistry

import (
	"context"

	"github.com/agentplatform/core/apitypes"
	"github.com/agentplatform/core/storage"
)

// LLMClient is the minimal capability a tool needs to call the language
// model. Satisfied structurally by llmgateway.Client — this package never
// imports llmgateway, to keep the dependency edge pointing the other way
// (agentctx depends on toolregistry, not vice versa).
type LLMClient interface {
	Chat(ctx context.Context, prompt, systemPrompt string, temperature float64, maxTokens int) (string, error)
}

// ConnectorCaller is the minimal capability a tool needs to invoke a
// connector action. Satisfied structurally by connectors.Registry.
type ConnectorCaller interface {
	Execute(ctx context.Context, slug, action string, params map[string]any) (apitypes.ConnectorResult, error)
}

// ToolContext is the capability surface handed to a tool at execution
// time. It is a narrow view of the per-turn context: tools never see
// ctx.tools (no tool-calls-tool) or ctx.agents (no tool-spawns-agent).
type ToolContext interface {
	UserID() string
	SessionID() string
	Lang() string
	LLM() LLMClient
	Connectors() ConnectorCaller
	Storage() *storage.Scoped
}

// HealthCheckResult is the outcome of a tool's self-check.
type HealthCheckResult struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// Tool is the contract every registered tool implements. It is pure logic:
// no direct network calls, no direct filesystem access, no hardcoded
// secrets — those live behind ToolContext.
type Tool interface {
	// Metadata returns the tool's self-descriptive catalog entry.
	Metadata() apitypes.ToolMetadata

	// Execute runs the tool. params have already been validated against
	// Metadata().InputSchema by the registry before this is called.
	Execute(ctx context.Context, params map[string]any, tc ToolContext) (apitypes.ToolResult, error)

	// Health reports whether the tool is currently operable.
	Health(ctx context.Context) HealthCheckResult
}

// ParamValidator is an optional extension a Tool may implement to replace
// the registry's default schema-derived validation with custom logic.
type ParamValidator interface {
	ValidateParams(params map[string]any) error
}
