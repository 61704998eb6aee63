package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentplatform/core/agentctx"
	"github.com/agentplatform/core/apitypes"
)

type plainAgent struct{ manifest apitypes.AgentManifest }

func (a plainAgent) Manifest() apitypes.AgentManifest { return a.manifest }

func (a plainAgent) HandleTurn(_ context.Context, msg apitypes.UserMessage, _ *agentctx.Context) (apitypes.AgentResponse, error) {
	return apitypes.AgentResponse{Content: "echo: " + msg.Content}, nil
}

type streamingAgent struct{ plainAgent }

func (a streamingAgent) HandleTurnStream(_ context.Context, msg apitypes.UserMessage, _ *agentctx.Context) (<-chan apitypes.ResponseChunk, error) {
	out := make(chan apitypes.ResponseChunk, 1)
	out <- apitypes.ResponseChunk{Content: "native: " + msg.Content, IsFinal: true}
	close(out)
	return out, nil
}

func TestAsStreamingAdaptsPlainAgent(t *testing.T) {
	agent := plainAgent{manifest: apitypes.AgentManifest{Slug: "plain"}}
	sa := AsStreaming(agent)

	chunks, err := sa.HandleTurnStream(context.Background(), apitypes.UserMessage{Content: "hi"}, nil)
	require.NoError(t, err)

	var got []apitypes.ResponseChunk
	for c := range chunks {
		got = append(got, c)
	}
	require.Len(t, got, 1)
	assert.Equal(t, "echo: hi", got[0].Content)
	assert.True(t, got[0].IsFinal)
}

func TestAsStreamingPassesThroughNativeStreamingAgent(t *testing.T) {
	agent := streamingAgent{plainAgent{manifest: apitypes.AgentManifest{Slug: "streamer"}}}
	sa := AsStreaming(agent)

	chunks, err := sa.HandleTurnStream(context.Background(), apitypes.UserMessage{Content: "hi"}, nil)
	require.NoError(t, err)

	var got []apitypes.ResponseChunk
	for c := range chunks {
		got = append(got, c)
	}
	require.Len(t, got, 1)
	assert.Equal(t, "native: hi", got[0].Content)
}
