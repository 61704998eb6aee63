// Package collaborators provides concrete, swappable reference
// implementations of the §6 collaborator interfaces the core assumes but
// never implements itself: AuthZ, SecretStore, Moderation, QuotaService,
// ConsumptionService, the LLM catalog lookups, and the cost PriceTable.
// These adapters back cmd/platformd's default wiring and the test suite;
// production deployments are expected to swap in their own.
package collaborators

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, registers as "sqlite"
)

// OpenSQLite opens (creating if absent) a SQLite database at path and
// applies the schema for the relational tables spec §6 lists: the agent
// catalog, the LLM provider/model catalog and per-agent override, and the
// consumption ledger. path may be ":memory:" for tests.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("collaborators: opening sqlite database: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS agents (
		slug TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		version TEXT,
		agent_type TEXT,
		config TEXT,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS llm_providers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		slug TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		base_url TEXT,
		is_active INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS llm_models (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		provider_id INTEGER NOT NULL REFERENCES llm_providers(id),
		slug TEXT NOT NULL,
		name TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS agent_llm_configs (
		agent_slug TEXT NOT NULL UNIQUE,
		provider_id INTEGER NOT NULL REFERENCES llm_providers(id),
		model_id INTEGER NOT NULL REFERENCES llm_models(id),
		is_active INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS consumptions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		agent_slug TEXT NOT NULL,
		provider_slug TEXT,
		model_slug TEXT,
		tokens_in INTEGER NOT NULL DEFAULT 0,
		tokens_out INTEGER NOT NULL DEFAULT 0,
		cost_in REAL NOT NULL DEFAULT 0,
		cost_out REAL NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_consumptions_created ON consumptions(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_consumptions_user ON consumptions(user_id)`,
}

func migrate(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("collaborators: applying schema: %w", err)
		}
	}
	return nil
}
