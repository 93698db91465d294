// Package sqlite implements store.Store on SQLite using GORM.
package sqlite

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/xraph/parkledger"
	"github.com/xraph/parkledger/account"
	"github.com/xraph/parkledger/address"
	"github.com/xraph/parkledger/receipt"
	"github.com/xraph/parkledger/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using SQLite via GORM.
type Store struct {
	db *gorm.DB
}

// Open opens the SQLite database at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000&_foreign_keys=on"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("parkledger/sqlite: open %s: %w", path, err)
	}

	// One writer at a time; also keeps ":memory:" on a single connection.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("parkledger/sqlite: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return New(db), nil
}

// New wraps an existing GORM database.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying GORM database for direct access.
func (s *Store) DB() *gorm.DB { return s.db }

// Migrate creates the required tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&accountModel{}, &receiptModel{}); err != nil {
		return fmt.Errorf("parkledger/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ==================== Account Store ====================

func (s *Store) GetAccount(ctx context.Context, addr address.Address) (*account.Account, error) {
	var m accountModel
	err := s.db.WithContext(ctx).Where("address = ?", addr.Bytes()).Take(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, parkledger.ErrNotFound
		}
		return nil, fmt.Errorf("parkledger/sqlite: get account: %w", err)
	}
	return fromAccountModel(&m)
}

func (s *Store) ListAccounts(ctx context.Context, opts account.ListOpts) ([]*account.Account, error) {
	q := s.db.WithContext(ctx).Model(&accountModel{})
	if !opts.Parent.IsZero() {
		q = q.Where("parent = ?", opts.Parent.Bytes())
	}
	if opts.Kind != "" {
		q = q.Where("kind = ?", string(opts.Kind))
	}
	q = paginate(q.Order("created_at, address"), opts.Limit, opts.Offset)

	var models []accountModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("parkledger/sqlite: list accounts: %w", err)
	}

	result := make([]*account.Account, len(models))
	for i := range models {
		a, err := fromAccountModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = a
	}
	return result, nil
}

// ==================== Receipt Store ====================

func (s *Store) ListReceipts(ctx context.Context, subject address.Address, opts receipt.ListOpts) ([]*receipt.Receipt, error) {
	q := s.db.WithContext(ctx).Model(&receiptModel{}).Where("account = ?", subject.Bytes())
	if opts.Op != "" {
		q = q.Where("op = ?", string(opts.Op))
	}
	q = paginate(q.Order("created_at DESC, seq DESC"), opts.Limit, opts.Offset)

	var models []receiptModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("parkledger/sqlite: list receipts: %w", err)
	}

	result := make([]*receipt.Receipt, len(models))
	for i := range models {
		r, err := fromReceiptModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

// ==================== Commit ====================

// Apply commits cs in a single transaction. A create that hits an existing
// row or an update whose version guard fails affects zero rows and rolls
// everything back with ErrConflict.
func (s *Store) Apply(ctx context.Context, cs *store.ChangeSet) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, w := range cs.Writes {
			m := toAccountModel(w.Account)

			if w.IsCreate() {
				res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(m)
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 0 {
					return fmt.Errorf("%w: account %s already exists", parkledger.ErrConflict, w.Account.Address)
				}
				continue
			}

			res := tx.Model(&accountModel{}).
				Where("address = ? AND version = ?", m.Address, int64(w.Prev)).
				Updates(map[string]any{
					"kind":       m.Kind,
					"parent":     m.Parent,
					"lamports":   m.Lamports,
					"data":       m.Data,
					"version":    m.Version,
					"updated_at": m.UpdatedAt,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("%w: account %s is not at version %d", parkledger.ErrConflict, w.Account.Address, w.Prev)
			}
		}

		if len(cs.Receipts) == 0 {
			return nil
		}
		models := make([]*receiptModel, len(cs.Receipts))
		for i, r := range cs.Receipts {
			models[i] = toReceiptModel(r)
		}
		return tx.Create(models).Error
	})
	if err != nil {
		if errors.Is(err, parkledger.ErrConflict) {
			return err
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %w", parkledger.ErrConflict, err)
		}
		return fmt.Errorf("parkledger/sqlite: apply: %w", err)
	}
	return nil
}

// ==================== Helpers ====================

func paginate(q *gorm.DB, limit, offset int) *gorm.DB {
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	return q
}
