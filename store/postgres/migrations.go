package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Migration is one forward schema step, applied at most once.
type Migration struct {
	Name    string
	Version string
	Up      string
}

// Migrations lists the schema history of the store in order.
var Migrations = []Migration{
	{
		Name:    "create_parkledger_accounts",
		Version: "20250301000001",
		Up: `
CREATE TABLE IF NOT EXISTS parkledger_accounts (
    address    BYTEA PRIMARY KEY,
    kind       TEXT NOT NULL,
    parent     BYTEA NOT NULL,
    lamports   NUMERIC(20,0) NOT NULL DEFAULT 0 CHECK (lamports >= 0),
    data       BYTEA NOT NULL DEFAULT '\x',
    version    BIGINT NOT NULL CHECK (version > 0),
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_parkledger_accounts_parent
    ON parkledger_accounts (parent, kind, created_at, address);
`,
	},
	{
		Name:    "create_parkledger_receipts",
		Version: "20250301000002",
		Up: `
CREATE TABLE IF NOT EXISTS parkledger_receipts (
    seq           BIGSERIAL PRIMARY KEY,
    id            TEXT NOT NULL UNIQUE,
    op            TEXT NOT NULL,
    account       BYTEA NOT NULL,
    tenant        BYTEA NOT NULL,
    actor         BYTEA NOT NULL,
    counterparty  BYTEA NOT NULL,
    amount        NUMERIC(20,0) NOT NULL DEFAULT 0,
    fee           NUMERIC(20,0) NOT NULL DEFAULT 0,
    elapsed       NUMERIC(20,0) NOT NULL DEFAULT 0,
    balance_after NUMERIC(20,0) NOT NULL DEFAULT 0,
    created_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_parkledger_receipts_account
    ON parkledger_receipts (account, created_at DESC, seq DESC);
`,
	},
}

const migrationsTable = `
CREATE TABLE IF NOT EXISTS parkledger_migrations (
    version    TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// migrate applies every pending migration, each in its own transaction.
func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, migrationsTable); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	for _, m := range Migrations {
		err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx,
				`INSERT INTO parkledger_migrations (version, name) VALUES ($1, $2) ON CONFLICT (version) DO NOTHING`,
				m.Version, m.Name)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return nil
			}
			_, err = tx.Exec(ctx, m.Up)
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %s (%s): %w", m.Name, m.Version, err)
		}
	}
	return nil
}
