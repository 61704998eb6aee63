package collaborators

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/agentplatform/core/llmgateway"
)

// SQLiteCatalog implements llmgateway.AgentConfigLookup and
// llmgateway.CatalogLookup over the `agent_llm_configs`/`llm_providers`/
// `llm_models` tables from spec §6.
type SQLiteCatalog struct {
	db *sql.DB
}

// NewSQLiteCatalog wraps an already-migrated database (see OpenSQLite).
func NewSQLiteCatalog(db *sql.DB) *SQLiteCatalog {
	return &SQLiteCatalog{db: db}
}

var _ llmgateway.AgentConfigLookup = (*SQLiteCatalog)(nil)
var _ llmgateway.CatalogLookup = (*SQLiteCatalog)(nil)

// AgentOverride returns the configured (provider, model) pair for
// agentSlug, if `agent_llm_configs` carries an active row referencing
// active provider and model rows.
func (c *SQLiteCatalog) AgentOverride(ctx context.Context, agentSlug string) (llmgateway.ProviderModel, bool, error) {
	const q = `
		SELECT p.slug, m.slug
		FROM agent_llm_configs c
		JOIN llm_providers p ON p.id = c.provider_id
		JOIN llm_models m ON m.id = c.model_id
		WHERE c.agent_slug = ? AND c.is_active = 1 AND p.is_active = 1 AND m.is_active = 1
	`
	var pm llmgateway.ProviderModel
	err := c.db.QueryRowContext(ctx, q, agentSlug).Scan(&pm.ProviderSlug, &pm.ModelSlug)
	if err == sql.ErrNoRows {
		return llmgateway.ProviderModel{}, false, nil
	}
	if err != nil {
		return llmgateway.ProviderModel{}, false, fmt.Errorf("collaborators: looking up agent override: %w", err)
	}
	return pm, true, nil
}

// ActivePairs returns every active (provider, model) pair, ordered by
// provider/model insertion (their auto-incrementing ids).
func (c *SQLiteCatalog) ActivePairs(ctx context.Context) ([]llmgateway.ProviderModel, error) {
	const q = `
		SELECT p.slug, m.slug
		FROM llm_models m
		JOIN llm_providers p ON p.id = m.provider_id
		WHERE p.is_active = 1 AND m.is_active = 1
		ORDER BY p.id, m.id
	`
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("collaborators: listing active pairs: %w", err)
	}
	defer rows.Close()

	var pairs []llmgateway.ProviderModel
	for rows.Next() {
		var pm llmgateway.ProviderModel
		if err := rows.Scan(&pm.ProviderSlug, &pm.ModelSlug); err != nil {
			return nil, fmt.Errorf("collaborators: scanning active pair: %w", err)
		}
		pairs = append(pairs, pm)
	}
	return pairs, rows.Err()
}

// RegisterProvider inserts or reactivates a provider row, returning its id.
func (c *SQLiteCatalog) RegisterProvider(ctx context.Context, slug, name, baseURL string) (int64, error) {
	res, err := c.db.ExecContext(ctx, `
		INSERT INTO llm_providers (slug, name, base_url, is_active) VALUES (?, ?, ?, 1)
		ON CONFLICT(slug) DO UPDATE SET name = excluded.name, base_url = excluded.base_url, is_active = 1
	`, slug, name, baseURL)
	if err != nil {
		return 0, fmt.Errorf("collaborators: registering provider: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil || id == 0 {
		var existing int64
		if qerr := c.db.QueryRowContext(ctx, `SELECT id FROM llm_providers WHERE slug = ?`, slug).Scan(&existing); qerr != nil {
			return 0, fmt.Errorf("collaborators: resolving provider id: %w", qerr)
		}
		return existing, nil
	}
	return id, nil
}

// RegisterModel inserts a model row under providerID, returning its id.
func (c *SQLiteCatalog) RegisterModel(ctx context.Context, providerID int64, slug, name string) (int64, error) {
	res, err := c.db.ExecContext(ctx, `
		INSERT INTO llm_models (provider_id, slug, name, is_active) VALUES (?, ?, ?, 1)
	`, providerID, slug, name)
	if err != nil {
		return 0, fmt.Errorf("collaborators: registering model: %w", err)
	}
	return res.LastInsertId()
}

// SetAgentOverride pins agentSlug to (providerID, modelID).
func (c *SQLiteCatalog) SetAgentOverride(ctx context.Context, agentSlug string, providerID, modelID int64) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO agent_llm_configs (agent_slug, provider_id, model_id, is_active) VALUES (?, ?, ?, 1)
		ON CONFLICT(agent_slug) DO UPDATE SET provider_id = excluded.provider_id, model_id = excluded.model_id, is_active = 1
	`, agentSlug, providerID, modelID)
	if err != nil {
		return fmt.Errorf("collaborators: setting agent override: %w", err)
	}
	return nil
}
