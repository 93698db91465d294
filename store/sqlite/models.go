package sqlite

import (
	"fmt"
	"time"

	"github.com/xraph/parkledger"
	"github.com/xraph/parkledger/account"
	"github.com/xraph/parkledger/address"
	"github.com/xraph/parkledger/id"
	"github.com/xraph/parkledger/receipt"
	"github.com/xraph/parkledger/types"
)

// SQLite integers are signed 64-bit, so base-unit amounts are stored with
// their bits reinterpreted as int64. Amounts are never compared in SQL.

// ==================== Account models ====================

type accountModel struct {
	Address   []byte    `gorm:"column:address;primaryKey"`
	Kind      string    `gorm:"column:kind;not null;index:idx_parkledger_accounts_parent,priority:2"`
	Parent    []byte    `gorm:"column:parent;not null;index:idx_parkledger_accounts_parent,priority:1"`
	Lamports  int64     `gorm:"column:lamports;not null;default:0"`
	Data      []byte    `gorm:"column:data"`
	Version   int64     `gorm:"column:version;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime:false;index:idx_parkledger_accounts_parent,priority:3"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;autoUpdateTime:false"`
}

func (accountModel) TableName() string { return "parkledger_accounts" }

func toAccountModel(a *account.Account) *accountModel {
	return &accountModel{
		Address:   a.Address.Bytes(),
		Kind:      string(a.Kind),
		Parent:    a.Parent.Bytes(),
		Lamports:  int64(a.Lamports),
		Data:      a.Data,
		Version:   int64(a.Version),
		CreatedAt: a.CreatedAt.UTC(),
		UpdatedAt: a.UpdatedAt.UTC(),
	}
}

func fromAccountModel(m *accountModel) (*account.Account, error) {
	addr, err := address.FromBytes(m.Address)
	if err != nil {
		return nil, corrupt("account address", err)
	}
	parent, err := address.FromBytes(m.Parent)
	if err != nil {
		return nil, corrupt("account parent", err)
	}
	var data []byte
	if len(m.Data) > 0 {
		data = m.Data
	}
	return &account.Account{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt.UTC(),
			UpdatedAt: m.UpdatedAt.UTC(),
		},
		Address:  addr,
		Kind:     account.Kind(m.Kind),
		Parent:   parent,
		Lamports: uint64(m.Lamports),
		Data:     data,
		Version:  uint64(m.Version),
	}, nil
}

// ==================== Receipt models ====================

type receiptModel struct {
	Seq          int64     `gorm:"column:seq;primaryKey;autoIncrement"`
	ID           id.ID     `gorm:"column:id;type:text;not null;uniqueIndex"`
	Op           string    `gorm:"column:op;not null"`
	Account      []byte    `gorm:"column:account;not null;index:idx_parkledger_receipts_account,priority:1"`
	Tenant       []byte    `gorm:"column:tenant;not null"`
	Actor        []byte    `gorm:"column:actor;not null"`
	Counterparty []byte    `gorm:"column:counterparty;not null"`
	Amount       int64     `gorm:"column:amount;not null;default:0"`
	Fee          int64     `gorm:"column:fee;not null;default:0"`
	Elapsed      int64     `gorm:"column:elapsed;not null;default:0"`
	BalanceAfter int64     `gorm:"column:balance_after;not null;default:0"`
	CreatedAt    time.Time `gorm:"column:created_at;not null;autoCreateTime:false;index:idx_parkledger_receipts_account,priority:2"`
}

func (receiptModel) TableName() string { return "parkledger_receipts" }

func toReceiptModel(r *receipt.Receipt) *receiptModel {
	return &receiptModel{
		ID:           r.ID,
		Op:           string(r.Op),
		Account:      r.Account.Bytes(),
		Tenant:       r.Tenant.Bytes(),
		Actor:        r.Actor.Bytes(),
		Counterparty: r.Counterparty.Bytes(),
		Amount:       int64(r.Amount),
		Fee:          int64(r.Fee),
		Elapsed:      int64(r.Elapsed),
		BalanceAfter: int64(r.BalanceAfter),
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

func fromReceiptModel(m *receiptModel) (*receipt.Receipt, error) {
	if m.ID.Prefix() != id.PrefixReceipt {
		return nil, corrupt("receipt id", fmt.Errorf("unexpected id %q", m.ID))
	}
	var err error
	r := &receipt.Receipt{
		ID:           m.ID,
		Op:           receipt.Op(m.Op),
		Amount:       uint64(m.Amount),
		Fee:          uint64(m.Fee),
		Elapsed:      uint64(m.Elapsed),
		BalanceAfter: uint64(m.BalanceAfter),
		CreatedAt:    m.CreatedAt.UTC(),
	}
	if r.Account, err = address.FromBytes(m.Account); err != nil {
		return nil, corrupt("receipt account", err)
	}
	if r.Tenant, err = address.FromBytes(m.Tenant); err != nil {
		return nil, corrupt("receipt tenant", err)
	}
	if r.Actor, err = address.FromBytes(m.Actor); err != nil {
		return nil, corrupt("receipt actor", err)
	}
	if r.Counterparty, err = address.FromBytes(m.Counterparty); err != nil {
		return nil, corrupt("receipt counterparty", err)
	}
	return r, nil
}

func corrupt(what string, err error) error {
	return fmt.Errorf("%w: sqlite %s: %w", parkledger.ErrInvalidRecord, what, err)
}
