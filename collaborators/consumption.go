package collaborators

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/agentplatform/core/pipeline"
)

// PriceTable is the supplemented collaborator that prices token usage per
// (provider, model) pair (spec SUPPLEMENTED FEATURES — not part of the
// distilled spec's collaborator list). ConsumptionService is the only
// consumer.
type PriceTable interface {
	PriceFor(providerSlug, modelSlug string) (inPer1k, outPer1k float64, ok bool)
}

// MemoryPriceTable is a static, mutex-guarded PriceTable keyed by
// "provider/model".
type MemoryPriceTable struct {
	mu     sync.RWMutex
	prices map[string][2]float64
}

// NewMemoryPriceTable builds an empty price table.
func NewMemoryPriceTable() *MemoryPriceTable {
	return &MemoryPriceTable{prices: make(map[string][2]float64)}
}

// SetPrice records the per-1k-token price for a (provider, model) pair.
func (t *MemoryPriceTable) SetPrice(providerSlug, modelSlug string, inPer1k, outPer1k float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prices[priceKey(providerSlug, modelSlug)] = [2]float64{inPer1k, outPer1k}
}

// PriceFor implements PriceTable.
func (t *MemoryPriceTable) PriceFor(providerSlug, modelSlug string) (float64, float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.prices[priceKey(providerSlug, modelSlug)]
	if !ok {
		return 0, 0, false
	}
	return p[0], p[1], true
}

func priceKey(providerSlug, modelSlug string) string { return providerSlug + "/" + modelSlug }

// ProviderModelResolver supplies the (provider, model) pair currently in
// effect for an agent, so SQLiteConsumption can price a turn's tokens.
// pipeline.ConsumptionService.Record's signature (spec-mandated) carries
// only user/agent/token counts, not the resolved pair, so the consumption
// collaborator re-derives it the same way the gateway did earlier in the
// turn rather than threading extra parameters through the pipeline.
type ProviderModelResolver interface {
	ResolveProviderModel(ctx context.Context, agentSlug string) (providerSlug, modelSlug string, err error)
}

// SQLiteConsumption implements pipeline.ConsumptionService over the
// `consumptions` table, pricing each record via PriceTable when a resolver
// is configured.
type SQLiteConsumption struct {
	db       *sql.DB
	resolver ProviderModelResolver
	prices   PriceTable
}

var _ pipeline.ConsumptionService = (*SQLiteConsumption)(nil)

// ConsumptionOption configures a SQLiteConsumption.
type ConsumptionOption func(*SQLiteConsumption)

// WithProviderModelResolver wires the lookup used to price a turn's
// tokens; without it every record carries a zero cost.
func WithProviderModelResolver(r ProviderModelResolver) ConsumptionOption {
	return func(c *SQLiteConsumption) { c.resolver = r }
}

// WithPriceTable wires the price table used to convert token counts into
// cost; without it every record carries a zero cost.
func WithPriceTable(p PriceTable) ConsumptionOption {
	return func(c *SQLiteConsumption) { c.prices = p }
}

// NewSQLiteConsumption wraps an already-migrated database.
func NewSQLiteConsumption(db *sql.DB, opts ...ConsumptionOption) *SQLiteConsumption {
	c := &SQLiteConsumption{db: db}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Record implements pipeline.ConsumptionService: inserts one row into
// `consumptions`, resolving provider/model and cost when configured to.
func (c *SQLiteConsumption) Record(ctx context.Context, userID, agentSlug string, tokensIn, tokensOut int) error {
	var providerSlug, modelSlug string
	var costIn, costOut float64

	if c.resolver != nil {
		var err error
		providerSlug, modelSlug, err = c.resolver.ResolveProviderModel(ctx, agentSlug)
		if err != nil {
			return fmt.Errorf("collaborators: resolving provider/model for consumption record: %w", err)
		}
	}
	if c.prices != nil && providerSlug != "" {
		if inPer1k, outPer1k, ok := c.prices.PriceFor(providerSlug, modelSlug); ok {
			costIn = float64(tokensIn) / 1000 * inPer1k
			costOut = float64(tokensOut) / 1000 * outPer1k
		}
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO consumptions (user_id, agent_slug, provider_slug, model_slug, tokens_in, tokens_out, cost_in, cost_out)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, userID, agentSlug, providerSlug, modelSlug, tokensIn, tokensOut, costIn, costOut)
	if err != nil {
		return fmt.Errorf("collaborators: recording consumption: %w", err)
	}
	return nil
}
