package llmgateway

import "context"

// ProviderModel names one (provider, model) pair from the catalog.
type ProviderModel struct {
	ProviderSlug string
	ModelSlug    string
}

// Config is a resolved, ready-to-use LLM configuration for a turn.
type Config struct {
	ProviderSlug string
	ModelSlug    string
	APIKey       string
}

// AgentConfigLookup is the collaborator surface for the agent-specific
// override row (table `agent_llm_configs` in the original platform):
// returns the configured pair for slug, or ok=false if the agent has no
// override or its override references an inactive provider/model.
type AgentConfigLookup interface {
	AgentOverride(ctx context.Context, agentSlug string) (ProviderModel, bool, error)
}

// CatalogLookup is the collaborator surface for the active provider/model
// catalog (tables `llm_providers`/`llm_models`), returned in a stable
// insertion order.
type CatalogLookup interface {
	ActivePairs(ctx context.Context) ([]ProviderModel, error)
}

// SecretStore is the collaborator interface for provider API keys (spec §6).
type SecretStore interface {
	Get(ctx context.Context, slug string) (string, bool, error)
}

// ResolveConfig implements the three-step resolution algorithm from
// spec.md §4.6:
//
//  1. If an agent-specific override exists and names an active
//     provider/model pair, use it.
//  2. Otherwise scan all active pairs in catalog order and pick the first
//     whose provider has a present secret.
//  3. Otherwise fall back to the first active pair unconditionally (the
//     caller's subsequent call will surface a clear auth error).
func ResolveConfig(ctx context.Context, agentSlug string, agentCfg AgentConfigLookup, catalog CatalogLookup, secrets SecretStore) (Config, error) {
	if pm, ok, err := agentCfg.AgentOverride(ctx, agentSlug); err != nil {
		return Config{}, err
	} else if ok {
		key, _, err := secrets.Get(ctx, pm.ProviderSlug)
		if err != nil {
			return Config{}, err
		}
		return Config{ProviderSlug: pm.ProviderSlug, ModelSlug: pm.ModelSlug, APIKey: key}, nil
	}

	pairs, err := catalog.ActivePairs(ctx)
	if err != nil {
		return Config{}, err
	}
	if len(pairs) == 0 {
		return Config{}, nil
	}

	for _, pm := range pairs {
		key, present, err := secrets.Get(ctx, pm.ProviderSlug)
		if err != nil {
			continue
		}
		if present && key != "" {
			return Config{ProviderSlug: pm.ProviderSlug, ModelSlug: pm.ModelSlug, APIKey: key}, nil
		}
	}

	first := pairs[0]
	key, _, _ := secrets.Get(ctx, first.ProviderSlug)
	return Config{ProviderSlug: first.ProviderSlug, ModelSlug: first.ModelSlug, APIKey: key}, nil
}
