package collaborators

import (
	"context"

	"github.com/agentplatform/core/llmgateway"
)

// GatewayResolver adapts the same three collaborators llmgateway.
// ResolveConfig uses into a ProviderModelResolver, so SQLiteConsumption
// can price a turn with the exact (provider, model) pair the gateway
// resolved for it.
type GatewayResolver struct {
	AgentConfig llmgateway.AgentConfigLookup
	Catalog     llmgateway.CatalogLookup
	Secrets     llmgateway.SecretStore
}

var _ ProviderModelResolver = GatewayResolver{}

// ResolveProviderModel implements ProviderModelResolver by re-running
// spec.md §4.6's resolution algorithm.
func (r GatewayResolver) ResolveProviderModel(ctx context.Context, agentSlug string) (string, string, error) {
	cfg, err := llmgateway.ResolveConfig(ctx, agentSlug, r.AgentConfig, r.Catalog, r.Secrets)
	if err != nil {
		return "", "", err
	}
	return cfg.ProviderSlug, cfg.ModelSlug, nil
}
