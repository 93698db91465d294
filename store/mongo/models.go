package mongo

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/parkledger"
	"github.com/xraph/parkledger/account"
	"github.com/xraph/parkledger/address"
	"github.com/xraph/parkledger/id"
	"github.com/xraph/parkledger/receipt"
	"github.com/xraph/parkledger/types"
)

// BSON has no unsigned 64-bit type, so base-unit amounts are stored with
// their bits reinterpreted as int64. Amounts are never compared in queries.

// ==================== Account models ====================

type accountModel struct {
	Address   []byte    `bson:"_id"`
	Kind      string    `bson:"kind"`
	Parent    []byte    `bson:"parent"`
	Lamports  int64     `bson:"lamports"`
	Data      []byte    `bson:"data,omitempty"`
	Version   int64     `bson:"version"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

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
	Seq          bson.ObjectID `bson:"_id"`
	ID           string        `bson:"receipt_id"`
	Op           string        `bson:"op"`
	Account      []byte        `bson:"account"`
	Tenant       []byte        `bson:"tenant"`
	Actor        []byte        `bson:"actor"`
	Counterparty []byte        `bson:"counterparty"`
	Amount       int64         `bson:"amount"`
	Fee          int64         `bson:"fee"`
	Elapsed      int64         `bson:"elapsed"`
	BalanceAfter int64         `bson:"balance_after"`
	CreatedAt    time.Time     `bson:"created_at"`
}

func toReceiptModel(r *receipt.Receipt) *receiptModel {
	return &receiptModel{
		Seq:          bson.NewObjectID(),
		ID:           r.ID.String(),
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
	rid, err := id.ParseReceiptID(m.ID)
	if err != nil {
		return nil, corrupt("receipt id", err)
	}
	r := &receipt.Receipt{
		ID:           rid,
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
	return fmt.Errorf("%w: mongo %s: %w", parkledger.ErrInvalidRecord, what, err)
}
