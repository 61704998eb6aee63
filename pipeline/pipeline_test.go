package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentplatform/core/agentctx"
	"github.com/agentplatform/core/apitypes"
	"github.com/agentplatform/core/connectors"
	"github.com/agentplatform/core/session/memory"
	"github.com/agentplatform/core/storage"
	storagemem "github.com/agentplatform/core/storage/memory"
	"github.com/agentplatform/core/toolregistry"
)

type fakeLLM struct{}

func (fakeLLM) Chat(context.Context, string, string, float64, int) (string, error) { return "", nil }

func newTestTC(t *testing.T) *agentctx.Context {
	t.Helper()
	tools := toolregistry.New()
	conn := connectors.New()
	store := storage.NewUserScope(storagemem.New(), "bucket", "user-1", "agent-1")
	sessionStore := memory.New(nil)
	_, err := sessionStore.CreateSessionWithID(context.Background(), "sess-1", "agent-1", "user-1", "")
	require.NoError(t, err)
	mem := agentctx.NewSessionMemory(sessionStore, "sess-1")
	return agentctx.New("sess-1", "user-1", "agent-1", "en", fakeLLM{}, tools, conn, store, mem)
}

type echoAgent struct {
	resp apitypes.AgentResponse
	err  error
}

func (a echoAgent) HandleTurn(_ context.Context, msg apitypes.UserMessage, _ *agentctx.Context) (apitypes.AgentResponse, error) {
	if a.err != nil {
		return apitypes.AgentResponse{}, a.err
	}
	if a.resp.Content != "" {
		return a.resp, nil
	}
	return apitypes.AgentResponse{Content: "echo: " + msg.Content}, nil
}

type panickyAgent struct{}

func (panickyAgent) HandleTurn(context.Context, apitypes.UserMessage, *agentctx.Context) (apitypes.AgentResponse, error) {
	panic("boom")
}

func TestExecuteHappyPath(t *testing.T) {
	p := New()
	tc := newTestTC(t)
	result := p.Execute(context.Background(), echoAgent{}, tc, apitypes.UserMessage{Content: "hi"})
	assert.True(t, result.Success)
	assert.Equal(t, "echo: hi", result.Response.Content)
}

func TestExecuteRejectsEmptyContentWithNoAttachments(t *testing.T) {
	p := New()
	tc := newTestTC(t)
	result := p.Execute(context.Background(), echoAgent{}, tc, apitypes.UserMessage{})
	assert.False(t, result.Success)
	assert.Equal(t, apitypes.ErrValidation, result.ErrorCode)
}

func TestExecuteAllowsEmptyContentWithAttachment(t *testing.T) {
	p := New()
	tc := newTestTC(t)
	msg := apitypes.UserMessage{Attachments: []apitypes.Attachment{{Name: "a.txt", StorageKey: "k"}}}
	result := p.Execute(context.Background(), echoAgent{}, tc, msg)
	assert.True(t, result.Success)
}

func TestExecuteRejectsOversizedContent(t *testing.T) {
	p := New()
	tc := newTestTC(t)
	result := p.Execute(context.Background(), echoAgent{}, tc, apitypes.UserMessage{Content: strings.Repeat("a", apitypes.MaxContentLength+1)})
	assert.False(t, result.Success)
	assert.Equal(t, apitypes.ErrValidation, result.ErrorCode)
}

type fakeQuota struct{ decision QuotaDecision }

func (f fakeQuota) Check(context.Context, string, string) (QuotaDecision, error) { return f.decision, nil }

func TestExecuteQuotaDenial(t *testing.T) {
	p := New(WithQuota(fakeQuota{decision: QuotaDecision{Allowed: false, Reason: "daily"}}))
	tc := newTestTC(t)
	result := p.Execute(context.Background(), echoAgent{}, tc, apitypes.UserMessage{Content: "hi"})
	assert.False(t, result.Success)
	assert.Equal(t, apitypes.ErrQuotaExceeded, result.ErrorCode)
	assert.Equal(t, "daily", result.ErrorMessage)
}

type failingQuota struct{}

func (failingQuota) Check(context.Context, string, string) (QuotaDecision, error) {
	return QuotaDecision{}, errors.New("quota service down")
}

func TestExecuteQuotaCollaboratorFailureFailsOpen(t *testing.T) {
	p := New(WithQuota(failingQuota{}))
	tc := newTestTC(t)
	result := p.Execute(context.Background(), echoAgent{}, tc, apitypes.UserMessage{Content: "hi"})
	assert.True(t, result.Success)
}

type fakeModeration struct {
	inBlocked, outBlocked   bool
	inReplace, outReplace   *string
}

func (f fakeModeration) FilterIn(context.Context, string, string) (ModerationDecision, error) {
	return ModerationDecision{Blocked: f.inBlocked, Replacement: f.inReplace}, nil
}

func (f fakeModeration) FilterOut(context.Context, string, string) (ModerationDecision, error) {
	return ModerationDecision{Blocked: f.outBlocked, Replacement: f.outReplace}, nil
}

func TestExecuteInputModerationBlocks(t *testing.T) {
	p := New(WithModeration(fakeModeration{inBlocked: true}))
	tc := newTestTC(t)
	result := p.Execute(context.Background(), echoAgent{}, tc, apitypes.UserMessage{Content: "bad stuff"})
	assert.False(t, result.Success)
	assert.Equal(t, apitypes.ErrModerationBlockedInput, result.ErrorCode)
}

func TestExecuteInputModerationRewrites(t *testing.T) {
	replacement := "[redacted]"
	p := New(WithModeration(fakeModeration{inReplace: &replacement}))
	tc := newTestTC(t)
	result := p.Execute(context.Background(), echoAgent{}, tc, apitypes.UserMessage{Content: "secret"})
	require.True(t, result.Success)
	assert.Equal(t, "echo: [redacted]", result.Response.Content)
}

func TestExecuteOutputModerationBlocks(t *testing.T) {
	p := New(WithModeration(fakeModeration{outBlocked: true}))
	tc := newTestTC(t)
	result := p.Execute(context.Background(), echoAgent{}, tc, apitypes.UserMessage{Content: "hi"})
	assert.False(t, result.Success)
	assert.Equal(t, apitypes.ErrModerationBlockedOutput, result.ErrorCode)
}

func TestExecuteAgentPanicRecoveredAsExecutionError(t *testing.T) {
	p := New()
	tc := newTestTC(t)
	result := p.Execute(context.Background(), panickyAgent{}, tc, apitypes.UserMessage{Content: "hi"})
	assert.False(t, result.Success)
	assert.Equal(t, apitypes.ErrExecution, result.ErrorCode)
}

func TestExecuteAgentErrorMapsToExecutionError(t *testing.T) {
	p := New()
	tc := newTestTC(t)
	result := p.Execute(context.Background(), echoAgent{err: errors.New("boom")}, tc, apitypes.UserMessage{Content: "hi"})
	assert.False(t, result.Success)
	assert.Equal(t, apitypes.ErrExecution, result.ErrorCode)
}

type recordingConsumption struct {
	userID, agentSlug  string
	tokensIn, tokensOut int
}

func (r *recordingConsumption) Record(_ context.Context, userID, agentSlug string, tokensIn, tokensOut int) error {
	r.userID, r.agentSlug, r.tokensIn, r.tokensOut = userID, agentSlug, tokensIn, tokensOut
	return nil
}

func TestExecuteRecordsConsumptionWhenTokensPresent(t *testing.T) {
	rec := &recordingConsumption{}
	p := New(WithConsumption(rec))
	tc := newTestTC(t)
	agent := echoAgent{resp: apitypes.AgentResponse{Content: "done", Metadata: map[string]any{"tokens_in": 10, "tokens_out": 20}}}
	result := p.Execute(context.Background(), agent, tc, apitypes.UserMessage{Content: "hi"})
	require.True(t, result.Success)
	assert.Equal(t, 10, result.TokensIn)
	assert.Equal(t, 20, result.TokensOut)
	assert.Equal(t, "user-1", rec.userID)
	assert.Equal(t, 10, rec.tokensIn)
}

func TestExecuteDurationIsRecorded(t *testing.T) {
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := New(WithClock(func() time.Time { return fixed }))
	tc := newTestTC(t)
	result := p.Execute(context.Background(), echoAgent{}, tc, apitypes.UserMessage{Content: "hi"})
	assert.True(t, result.Success)
	assert.Equal(t, int64(0), result.DurationMs)
}
