// Package connectors implements the connector registry (spec C4): catalog,
// connection lifecycle, and rate-limited action dispatch against external
// services. Unlike tools, connectors carry a connection lifecycle
// (connect/disconnect) and per-slug rate limiting.
package connectors

import (
	"context"

	"github.com/agentplatform/core/apitypes"
)

// HealthCheckResult is the outcome of a connector's self-check.
type HealthCheckResult struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// Connector is the contract every registered connector implements.
// Multiple actions per connector are declared in Metadata().Actions and
// dispatched by action name.
type Connector interface {
	Metadata() apitypes.ConnectorMetadata
	Connect(ctx context.Context, config map[string]any) error
	Execute(ctx context.Context, action string, params map[string]any) (apitypes.ConnectorResult, error)
	Disconnect(ctx context.Context) error
	Health(ctx context.Context) HealthCheckResult
}
