package llmgateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAgentConfig struct {
	pm  ProviderModel
	ok  bool
	err error
}

func (f fakeAgentConfig) AgentOverride(context.Context, string) (ProviderModel, bool, error) {
	return f.pm, f.ok, f.err
}

type fakeCatalog struct {
	pairs []ProviderModel
	err   error
}

func (f fakeCatalog) ActivePairs(context.Context) ([]ProviderModel, error) {
	return f.pairs, f.err
}

type fakeSecrets struct {
	values map[string]string
}

func (f fakeSecrets) Get(_ context.Context, slug string) (string, bool, error) {
	v, ok := f.values[slug]
	return v, ok, nil
}

func TestResolveConfigUsesAgentOverride(t *testing.T) {
	agentCfg := fakeAgentConfig{pm: ProviderModel{ProviderSlug: "anthropic", ModelSlug: "claude-3-5"}, ok: true}
	catalog := fakeCatalog{pairs: []ProviderModel{{ProviderSlug: "openai", ModelSlug: "gpt-4o"}}}
	secrets := fakeSecrets{values: map[string]string{"anthropic": "sk-ant-1"}}

	cfg, err := ResolveConfig(context.Background(), "my-agent", agentCfg, catalog, secrets)
	require.NoError(t, err)
	assert.Equal(t, Config{ProviderSlug: "anthropic", ModelSlug: "claude-3-5", APIKey: "sk-ant-1"}, cfg)
}

func TestResolveConfigFallsBackToFirstActivePairWithSecret(t *testing.T) {
	agentCfg := fakeAgentConfig{ok: false}
	catalog := fakeCatalog{pairs: []ProviderModel{
		{ProviderSlug: "openai", ModelSlug: "gpt-4o"},
		{ProviderSlug: "anthropic", ModelSlug: "claude-3-5"},
	}}
	secrets := fakeSecrets{values: map[string]string{"anthropic": "sk-ant-1"}}

	cfg, err := ResolveConfig(context.Background(), "my-agent", agentCfg, catalog, secrets)
	require.NoError(t, err)
	assert.Equal(t, Config{ProviderSlug: "anthropic", ModelSlug: "claude-3-5", APIKey: "sk-ant-1"}, cfg)
}

func TestResolveConfigFallsBackToFirstPairUnconditionallyWithNoSecrets(t *testing.T) {
	agentCfg := fakeAgentConfig{ok: false}
	catalog := fakeCatalog{pairs: []ProviderModel{
		{ProviderSlug: "openai", ModelSlug: "gpt-4o"},
		{ProviderSlug: "anthropic", ModelSlug: "claude-3-5"},
	}}
	secrets := fakeSecrets{values: map[string]string{}}

	cfg, err := ResolveConfig(context.Background(), "my-agent", agentCfg, catalog, secrets)
	require.NoError(t, err)
	assert.Equal(t, Config{ProviderSlug: "openai", ModelSlug: "gpt-4o", APIKey: ""}, cfg)
}

func TestResolveConfigEmptyCatalogReturnsZeroConfig(t *testing.T) {
	agentCfg := fakeAgentConfig{ok: false}
	catalog := fakeCatalog{pairs: nil}
	secrets := fakeSecrets{}

	cfg, err := ResolveConfig(context.Background(), "my-agent", agentCfg, catalog, secrets)
	require.NoError(t, err)
	assert.Equal(t, Config{}, cfg)
}

func TestResolveConfigPropagatesAgentOverrideError(t *testing.T) {
	agentCfg := fakeAgentConfig{err: errors.New("db unavailable")}
	catalog := fakeCatalog{}
	secrets := fakeSecrets{}

	_, err := ResolveConfig(context.Background(), "my-agent", agentCfg, catalog, secrets)
	assert.Error(t, err)
}
