package toolregistry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentplatform/core/apitypes"
	"github.com/agentplatform/core/storage"
	"github.com/agentplatform/core/storage/memory"
	"github.com/agentplatform/core/toolregistry"
)

type stubLLM struct{}

func (stubLLM) Chat(ctx context.Context, prompt, systemPrompt string, temperature float64, maxTokens int) (string, error) {
	return "summary of: " + prompt, nil
}

type stubConnectors struct{}

func (stubConnectors) Execute(ctx context.Context, slug, action string, params map[string]any) (apitypes.ConnectorResult, error) {
	return apitypes.ConnectorResult{Success: true}, nil
}

type fakeToolContext struct {
	userID, sessionID string
	storage           *storage.Scoped
}

func (f fakeToolContext) UserID() string                      { return f.userID }
func (f fakeToolContext) SessionID() string                   { return f.sessionID }
func (f fakeToolContext) Lang() string                        { return "en" }
func (f fakeToolContext) LLM() toolregistry.LLMClient          { return stubLLM{} }
func (f fakeToolContext) Connectors() toolregistry.ConnectorCaller { return stubConnectors{} }
func (f fakeToolContext) Storage() *storage.Scoped             { return f.storage }

func newTestContext() toolregistry.ToolContext {
	return fakeToolContext{
		userID:    "u1",
		sessionID: "s1",
		storage:   storage.NewUserScope(memory.New(), "bucket", "u1", "text-summarizer"),
	}
}

// summarizerTool mirrors the reference text-summarizer tool: pure logic,
// delegates to ctx.llm, never touches the network directly.
type summarizerTool struct{}

func (summarizerTool) Metadata() apitypes.ToolMetadata {
	return apitypes.ToolMetadata{
		Slug:          "text-summarizer",
		Name:          "Text summarizer",
		Description:   "Summarizes a long text into key points",
		Category:      "text",
		ExecutionMode: apitypes.ExecSynchronous,
		InputSchema: apitypes.Schema{Params: []apitypes.ParamSpec{
			{Name: "text", Type: apitypes.ParamString, Required: true},
			{Name: "max_points", Type: apitypes.ParamInteger, Required: false, Default: 5},
		}},
	}
}

func (summarizerTool) Execute(ctx context.Context, params map[string]any, tc toolregistry.ToolContext) (apitypes.ToolResult, error) {
	text, _ := params["text"].(string)
	summary, err := tc.LLM().Chat(ctx, "Summarize: "+text, "", 0.2, 256)
	if err != nil {
		return apitypes.ToolResult{}, err
	}
	return apitypes.ToolResult{Success: true, Output: map[string]any{"summary": summary}}, nil
}

func (summarizerTool) Health(ctx context.Context) toolregistry.HealthCheckResult {
	return toolregistry.HealthCheckResult{Healthy: true}
}

type panickyTool struct{}

func (panickyTool) Metadata() apitypes.ToolMetadata {
	return apitypes.ToolMetadata{Slug: "panicky", Category: "test"}
}

func (panickyTool) Execute(ctx context.Context, params map[string]any, tc toolregistry.ToolContext) (apitypes.ToolResult, error) {
	panic("boom")
}

func (panickyTool) Health(ctx context.Context) toolregistry.HealthCheckResult {
	return toolregistry.HealthCheckResult{Healthy: false, Message: "always fails"}
}

func TestRegisterAndExecute(t *testing.T) {
	reg := toolregistry.New()
	require.NoError(t, reg.Register(summarizerTool{}))

	result, err := reg.Execute(context.Background(), "text-summarizer", map[string]any{"text": "a long story"}, newTestContext())
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Contains(t, result.Output["summary"], "a long story")
}

func TestExecuteRejectsInvalidParamsWithoutInvoking(t *testing.T) {
	reg := toolregistry.New()
	require.NoError(t, reg.Register(summarizerTool{}))

	result, err := reg.Execute(context.Background(), "text-summarizer", map[string]any{"max_points": 3}, newTestContext())
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, apitypes.ErrInvalidParams, result.ErrorCode)
}

func TestExecuteUnknownSlug(t *testing.T) {
	reg := toolregistry.New()
	_, err := reg.Execute(context.Background(), "nope", nil, newTestContext())
	require.Equal(t, apitypes.ErrNotFound, apitypes.CodeOf(err))
}

func TestExecuteRecoversPanicAsProcessingError(t *testing.T) {
	reg := toolregistry.New()
	require.NoError(t, reg.Register(panickyTool{}))

	result, err := reg.Execute(context.Background(), "panicky", map[string]any{}, newTestContext())
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, apitypes.ErrProcessing, result.ErrorCode)
}

func TestCatalogListAndCategories(t *testing.T) {
	reg := toolregistry.New()
	require.NoError(t, reg.Register(summarizerTool{}))
	require.NoError(t, reg.Register(panickyTool{}))

	require.Len(t, reg.List(), 2)
	require.Equal(t, []string{"test", "text"}, reg.Categories())
	require.Len(t, reg.ListByCategory("text"), 1)
}

func TestHealthOf(t *testing.T) {
	reg := toolregistry.New()
	require.NoError(t, reg.Register(panickyTool{}))

	health, ok := reg.HealthOf(context.Background(), "panicky")
	require.True(t, ok)
	require.False(t, health.Healthy)

	_, ok = reg.HealthOf(context.Background(), "missing")
	require.False(t, ok)
}
