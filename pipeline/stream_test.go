package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentplatform/core/agentctx"
	"github.com/agentplatform/core/apitypes"
)

type streamingEchoAgent struct {
	chunks []apitypes.ResponseChunk
}

func (a streamingEchoAgent) HandleTurn(context.Context, apitypes.UserMessage, *agentctx.Context) (apitypes.AgentResponse, error) {
	return apitypes.AgentResponse{}, nil
}

func (a streamingEchoAgent) HandleTurnStream(context.Context, apitypes.UserMessage, *agentctx.Context) (<-chan apitypes.ResponseChunk, error) {
	out := make(chan apitypes.ResponseChunk, len(a.chunks))
	for _, c := range a.chunks {
		out <- c
	}
	close(out)
	return out, nil
}

func drain(t *testing.T, chunks <-chan apitypes.ResponseChunk, results <-chan Result) ([]apitypes.ResponseChunk, Result) {
	t.Helper()
	var got []apitypes.ResponseChunk
	for c := range chunks {
		got = append(got, c)
	}
	result, ok := <-results
	require.True(t, ok)
	return got, result
}

func TestExecuteStreamForwardsChunksAndSucceeds(t *testing.T) {
	p := New()
	tc := newTestTC(t)
	agent := streamingEchoAgent{chunks: []apitypes.ResponseChunk{
		{Content: "hel"},
		{Content: "lo"},
		{IsFinal: true, Metadata: map[string]any{"tokens_in": 1, "tokens_out": 2}},
	}}

	chunks, results := p.ExecuteStream(context.Background(), agent, tc, apitypes.UserMessage{Content: "hi"})
	got, result := drain(t, chunks, results)

	require.Len(t, got, 3)
	assert.True(t, result.Success)
	assert.Equal(t, "hello", result.Response.Content)
	assert.Equal(t, 1, result.TokensIn)
	assert.Equal(t, 2, result.TokensOut)
}

func TestExecuteStreamValidationFailsBeforeStreaming(t *testing.T) {
	p := New()
	tc := newTestTC(t)
	agent := streamingEchoAgent{}

	chunks, results := p.ExecuteStream(context.Background(), agent, tc, apitypes.UserMessage{})
	got, result := drain(t, chunks, results)

	assert.Empty(t, got)
	assert.False(t, result.Success)
	assert.Equal(t, apitypes.ErrValidation, result.ErrorCode)
}

func TestExecuteStreamOutputModerationBlocksAfterDelivery(t *testing.T) {
	p := New(WithModeration(fakeModeration{outBlocked: true}))
	tc := newTestTC(t)
	agent := streamingEchoAgent{chunks: []apitypes.ResponseChunk{
		{Content: "all good"},
		{IsFinal: true},
	}}

	chunks, results := p.ExecuteStream(context.Background(), agent, tc, apitypes.UserMessage{Content: "hi"})
	got, result := drain(t, chunks, results)

	require.Len(t, got, 2)
	assert.False(t, result.Success)
	assert.Equal(t, apitypes.ErrModerationBlockedOutput, result.ErrorCode)
}
