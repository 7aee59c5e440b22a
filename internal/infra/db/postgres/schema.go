package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"

	"telegram-start-bot/internal/domain/ports/repository"
)

// schemaStatements only ever create what is missing. Existing tables and
// columns are left as they are; there are no migrations.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
  id SERIAL PRIMARY KEY,
  telegram_id BIGINT UNIQUE NOT NULL,
  username VARCHAR(255),
  first_name VARCHAR(255),
  last_name VARCHAR(255),
  language_code VARCHAR(10),
  created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
  updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
  last_active_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE INDEX IF NOT EXISTS idx_users_telegram_id ON users(telegram_id)`,
}

// EnsureSchema creates the users table and its identity index when absent.
// Safe to run on every start.
func EnsureSchema(ctx context.Context, tm repository.TransactionManager) error {
	return tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		exec, err := getExecutor(nil, tx)
		if err != nil {
			return err
		}
		for _, stmt := range schemaStatements {
			if _, err := exec.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("ensure schema: %w", err)
			}
		}
		return nil
	})
}
