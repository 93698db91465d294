package postgres

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/parkledger"
	"github.com/xraph/parkledger/account"
	"github.com/xraph/parkledger/address"
	"github.com/xraph/parkledger/id"
	"github.com/xraph/parkledger/receipt"
	"github.com/xraph/parkledger/types"
)

// Base-unit amounts are NUMERIC(20,0) so the full uint64 range round-trips.
// They cross the wire as decimal text.

// ==================== Account models ====================

const accountColumns = `address, kind, parent, lamports::text, data, version, created_at, updated_at`

type accountModel struct {
	Address   []byte
	Kind      string
	Parent    []byte
	Lamports  string
	Data      []byte
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func toAccountModel(a *account.Account) *accountModel {
	data := a.Data
	if data == nil {
		data = []byte{}
	}
	return &accountModel{
		Address:   a.Address.Bytes(),
		Kind:      string(a.Kind),
		Parent:    a.Parent.Bytes(),
		Lamports:  strconv.FormatUint(a.Lamports, 10),
		Data:      data,
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
	lamports, err := strconv.ParseUint(m.Lamports, 10, 64)
	if err != nil {
		return nil, corrupt("account lamports", err)
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
		Lamports: lamports,
		Data:     data,
		Version:  uint64(m.Version),
	}, nil
}

func scanAccount(row pgx.Row) (*account.Account, error) {
	var m accountModel
	if err := row.Scan(&m.Address, &m.Kind, &m.Parent, &m.Lamports, &m.Data, &m.Version, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return fromAccountModel(&m)
}

// ==================== Receipt models ====================

const receiptColumns = `id, op, account, tenant, actor, counterparty,
	amount::text, fee::text, elapsed::text, balance_after::text, created_at`

type receiptModel struct {
	ID           id.ID
	Op           string
	Account      []byte
	Tenant       []byte
	Actor        []byte
	Counterparty []byte
	Amount       string
	Fee          string
	Elapsed      string
	BalanceAfter string
	CreatedAt    time.Time
}

func toReceiptModel(r *receipt.Receipt) *receiptModel {
	return &receiptModel{
		ID:           r.ID,
		Op:           string(r.Op),
		Account:      r.Account.Bytes(),
		Tenant:       r.Tenant.Bytes(),
		Actor:        r.Actor.Bytes(),
		Counterparty: r.Counterparty.Bytes(),
		Amount:       strconv.FormatUint(r.Amount, 10),
		Fee:          strconv.FormatUint(r.Fee, 10),
		Elapsed:      strconv.FormatUint(r.Elapsed, 10),
		BalanceAfter: strconv.FormatUint(r.BalanceAfter, 10),
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

func fromReceiptModel(m *receiptModel) (*receipt.Receipt, error) {
	if m.ID.Prefix() != id.PrefixReceipt {
		return nil, corrupt("receipt id", fmt.Errorf("unexpected id %q", m.ID))
	}
	var err error
	r := &receipt.Receipt{
		ID:        m.ID,
		Op:        receipt.Op(m.Op),
		CreatedAt: m.CreatedAt.UTC(),
	}

	addrs := []struct {
		dst *address.Address
		src []byte
	}{
		{&r.Account, m.Account},
		{&r.Tenant, m.Tenant},
		{&r.Actor, m.Actor},
		{&r.Counterparty, m.Counterparty},
	}
	for _, a := range addrs {
		if *a.dst, err = address.FromBytes(a.src); err != nil {
			return nil, corrupt("receipt address", err)
		}
	}

	nums := []struct {
		dst *uint64
		src string
	}{
		{&r.Amount, m.Amount},
		{&r.Fee, m.Fee},
		{&r.Elapsed, m.Elapsed},
		{&r.BalanceAfter, m.BalanceAfter},
	}
	for _, n := range nums {
		if *n.dst, err = strconv.ParseUint(n.src, 10, 64); err != nil {
			return nil, corrupt("receipt amount", err)
		}
	}
	return r, nil
}

func scanReceipt(row pgx.Row) (*receipt.Receipt, error) {
	var m receiptModel
	if err := row.Scan(&m.ID, &m.Op, &m.Account, &m.Tenant, &m.Actor, &m.Counterparty,
		&m.Amount, &m.Fee, &m.Elapsed, &m.BalanceAfter, &m.CreatedAt); err != nil {
		return nil, err
	}
	return fromReceiptModel(&m)
}

func corrupt(what string, err error) error {
	return fmt.Errorf("%w: postgres %s: %w", parkledger.ErrInvalidRecord, what, err)
}
