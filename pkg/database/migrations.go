package database

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"cryptotrack/pkg/logger"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	UpSQL       string
}

// Migrations holds all database migrations
var Migrations = []Migration{
	{
		Version:     1,
		Description: "Create quotes table",
		UpSQL: `
			CREATE TABLE IF NOT EXISTS quotes (
				id BIGSERIAL PRIMARY KEY,
				symbol VARCHAR(16) NOT NULL,
				name VARCHAR(100) NOT NULL DEFAULT '',
				price_usd DECIMAL(24,10) NOT NULL CHECK (price_usd >= 0),
				change_24h DECIMAL(12,6),
				observed_at TIMESTAMP WITH TIME ZONE NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
			);

			-- Backs both duplicate-write idempotency and per-symbol range scans.
			CREATE UNIQUE INDEX IF NOT EXISTS idx_quotes_symbol_observed_at
				ON quotes(symbol, observed_at);
			CREATE INDEX IF NOT EXISTS idx_quotes_observed_at ON quotes(observed_at);
		`,
	},
}

// RunMigrations applies all pending migrations in version order.
func (db *DB) RunMigrations(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, migration := range Migrations {
		var applied bool
		err := db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`,
			migration.Version).Scan(&applied)
		if err != nil {
			return fmt.Errorf("failed to check migration %d: %w", migration.Version, err)
		}
		if applied {
			continue
		}

		if _, err := db.ExecContext(ctx, migration.UpSQL); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
		}
		if _, err := db.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, description) VALUES ($1, $2)`,
			migration.Version, migration.Description); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		logger.Log.Info("applied migration",
			zap.Int("version", migration.Version),
			zap.String("description", migration.Description))
	}

	return nil
}
