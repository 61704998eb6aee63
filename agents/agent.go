// Package agents implements the agent registry and engine (spec C8):
// discovery, context construction, and direct/sub-agent invocation.
package agents

import (
	"context"

	"github.com/agentplatform/core/agentctx"
	"github.com/agentplatform/core/apitypes"
)

// Agent is the contract every registered agent implements.
type Agent interface {
	Manifest() apitypes.AgentManifest
	HandleTurn(ctx context.Context, msg apitypes.UserMessage, tc *agentctx.Context) (apitypes.AgentResponse, error)
}

// StreamingAgent is an Agent that can also stream its response
// incrementally. Agents that only implement Agent are automatically
// adapted into a single-final-chunk stream by the engine.
type StreamingAgent interface {
	Agent
	HandleTurnStream(ctx context.Context, msg apitypes.UserMessage, tc *agentctx.Context) (<-chan apitypes.ResponseChunk, error)
}

// SessionHooks is an optional extension an Agent may implement to observe
// session lifecycle events.
type SessionHooks interface {
	OnSessionStart(ctx context.Context, tc *agentctx.Context)
	OnSessionEnd(ctx context.Context, tc *agentctx.Context)
}

// adaptedStream wraps a plain Agent so it satisfies StreamingAgent by
// running HandleTurn to completion and emitting its result as one final
// chunk, matching the spec's default adapter for non-streaming agents.
type adaptedStream struct {
	Agent
}

func (a adaptedStream) HandleTurnStream(ctx context.Context, msg apitypes.UserMessage, tc *agentctx.Context) (<-chan apitypes.ResponseChunk, error) {
	resp, err := a.HandleTurn(ctx, msg, tc)
	if err != nil {
		return nil, err
	}
	out := make(chan apitypes.ResponseChunk, 1)
	out <- apitypes.ResponseChunk{Content: resp.Content, IsFinal: true, Metadata: resp.Metadata}
	close(out)
	return out, nil
}

// AsStreaming returns agent as a StreamingAgent, adapting it with a
// single-final-chunk stream if it doesn't already implement one.
func AsStreaming(agent Agent) StreamingAgent {
	if sa, ok := agent.(StreamingAgent); ok {
		return sa
	}
	return adaptedStream{agent}
}
