// Package postgres implements store.Store on PostgreSQL using pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xraph/parkledger"
	"github.com/xraph/parkledger/account"
	"github.com/xraph/parkledger/address"
	"github.com/xraph/parkledger/receipt"
	"github.com/xraph/parkledger/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to databaseURL and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parkledger/postgres: parse database URL: %w", err)
	}

	// Connection pool settings
	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("parkledger/postgres: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("parkledger/postgres: ping: %w", err)
	}

	return New(pool), nil
}

// New wraps an existing pool. The store takes ownership of it.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool returns the underlying connection pool.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Migrate creates the required tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.migrate(ctx); err != nil {
		return fmt.Errorf("parkledger/postgres: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// ==================== Account Store ====================

func (s *Store) GetAccount(ctx context.Context, addr address.Address) (*account.Account, error) {
	a, err := scanAccount(s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM parkledger_accounts WHERE address = $1`,
		addr.Bytes()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, parkledger.ErrNotFound
		}
		return nil, fmt.Errorf("parkledger/postgres: get account: %w", err)
	}
	return a, nil
}

func (s *Store) ListAccounts(ctx context.Context, opts account.ListOpts) ([]*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM parkledger_accounts WHERE TRUE`
	var args []any

	if !opts.Parent.IsZero() {
		args = append(args, opts.Parent.Bytes())
		query += fmt.Sprintf(" AND parent = $%d", len(args))
	}
	if opts.Kind != "" {
		args = append(args, string(opts.Kind))
		query += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	query += " ORDER BY created_at, address"
	query += pageClause(&args, opts.Limit, opts.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("parkledger/postgres: list accounts: %w", err)
	}
	defer rows.Close()

	var result []*account.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// ==================== Receipt Store ====================

func (s *Store) ListReceipts(ctx context.Context, subject address.Address, opts receipt.ListOpts) ([]*receipt.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM parkledger_receipts WHERE account = $1`
	args := []any{subject.Bytes()}

	if opts.Op != "" {
		args = append(args, string(opts.Op))
		query += fmt.Sprintf(" AND op = $%d", len(args))
	}
	query += " ORDER BY created_at DESC, seq DESC"
	query += pageClause(&args, opts.Limit, opts.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("parkledger/postgres: list receipts: %w", err)
	}
	defer rows.Close()

	var result []*receipt.Receipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// ==================== Commit ====================

const (
	insertAccount = `
INSERT INTO parkledger_accounts (address, kind, parent, lamports, data, version, created_at, updated_at)
VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8)
ON CONFLICT (address) DO NOTHING`

	updateAccount = `
UPDATE parkledger_accounts
SET kind = $2, parent = $3, lamports = $4::numeric, data = $5, version = $6, updated_at = $7
WHERE address = $1 AND version = $8`

	insertReceipt = `
INSERT INTO parkledger_receipts (id, op, account, tenant, actor, counterparty,
    amount, fee, elapsed, balance_after, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9::numeric, $10::numeric, $11)`
)

// Apply commits cs in a single transaction. Creates use ON CONFLICT DO NOTHING
// and updates are guarded by the expected version, so a lost race affects
// zero rows and rolls the whole transaction back.
func (s *Store) Apply(ctx context.Context, cs *store.ChangeSet) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, w := range cs.Writes {
			m := toAccountModel(w.Account)

			var (
				tag pgconn.CommandTag
				err error
			)
			if w.IsCreate() {
				tag, err = tx.Exec(ctx, insertAccount,
					m.Address, m.Kind, m.Parent, m.Lamports, m.Data, m.Version, m.CreatedAt, m.UpdatedAt)
			} else {
				tag, err = tx.Exec(ctx, updateAccount,
					m.Address, m.Kind, m.Parent, m.Lamports, m.Data, m.Version, m.UpdatedAt, int64(w.Prev))
			}
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				if w.IsCreate() {
					return fmt.Errorf("%w: account %s already exists", parkledger.ErrConflict, w.Account.Address)
				}
				return fmt.Errorf("%w: account %s is not at version %d", parkledger.ErrConflict, w.Account.Address, w.Prev)
			}
		}

		if len(cs.Receipts) == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		for _, r := range cs.Receipts {
			m := toReceiptModel(r)
			batch.Queue(insertReceipt,
				m.ID, m.Op, m.Account, m.Tenant, m.Actor, m.Counterparty,
				m.Amount, m.Fee, m.Elapsed, m.BalanceAfter, m.CreatedAt)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		if errors.Is(err, parkledger.ErrConflict) {
			return err
		}
		if isConflict(err) {
			return fmt.Errorf("%w: %w", parkledger.ErrConflict, err)
		}
		return fmt.Errorf("parkledger/postgres: apply: %w", err)
	}
	return nil
}

// ==================== Helpers ====================

// pageClause appends LIMIT/OFFSET placeholders for positive values.
func pageClause(args *[]any, limit, offset int) string {
	var clause string
	if limit > 0 {
		*args = append(*args, limit)
		clause += fmt.Sprintf(" LIMIT $%d", len(*args))
	}
	if offset > 0 {
		*args = append(*args, offset)
		clause += fmt.Sprintf(" OFFSET $%d", len(*args))
	}
	return clause
}

// isConflict reports unique violations and serialization failures.
func isConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "23505", "40001", "40P01":
		return true
	}
	return false
}
