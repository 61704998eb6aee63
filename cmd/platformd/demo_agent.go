package main

import (
	"context"

	"github.com/agentplatform/core/agentctx"
	"github.com/agentplatform/core/agents"
	"github.com/agentplatform/core/apitypes"
)

// echoAgent is the in-process demo agent seeded at startup so the server
// and worker have something to invoke without requiring an exported agent
// package to be imported first. Real deployments register agents built
// against the agents.Agent contract and discovered at startup instead.
type echoAgent struct{}

func (echoAgent) Manifest() apitypes.AgentManifest {
	return apitypes.AgentManifest{
		Slug:        "echo",
		Name:        "Echo",
		Version:     "1.0.0",
		Description: "Replies with the message it was given; used to smoke-test a fresh deployment.",
		Category:    "demo",
	}
}

func (echoAgent) HandleTurn(_ context.Context, msg apitypes.UserMessage, _ *agentctx.Context) (apitypes.AgentResponse, error) {
	return apitypes.AgentResponse{Content: "echo: " + msg.Content}, nil
}

var _ agents.Agent = echoAgent{}

// seedDemoAgent registers the built-in echo agent so a freshly started
// process answers turns before any real agent package has been imported.
func seedDemoAgent(registry *agents.Registry) {
	_ = registry.Register(echoAgent{})
}
