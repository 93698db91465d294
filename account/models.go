// Package account defines the persisted unit of the ledger: an addressed
// balance with optional record data.
package account

import (
	"github.com/xraph/parkledger/address"
	"github.com/xraph/parkledger/types"
)

// Kind identifies what an account holds.
type Kind string

const (
	KindTenant Kind = "tenant"
	KindEntry  Kind = "user-entry"
	KindVault  Kind = "vault"
	KindWallet Kind = "wallet"
)

// Derived reports whether accounts of this kind live at derived addresses.
func (k Kind) Derived() bool {
	return k == KindTenant || k == KindEntry || k == KindVault
}

// Account is an addressed value holder. Lamports is the spendable value in
// base units; Data holds the fixed-layout record for tenant and entry accounts.
// Version increases by one on every committed write.
type Account struct {
	types.Entity
	Address  address.Address `json:"address"`
	Kind     Kind            `json:"kind"`
	Parent   address.Address `json:"parent"`
	Lamports uint64          `json:"lamports"`
	Data     []byte          `json:"data,omitempty"`
	Version  uint64          `json:"version"`
}

// New returns an unsaved account.
func New(addr address.Address, kind Kind, parent address.Address) *Account {
	return &Account{
		Entity:  types.NewEntity(),
		Address: addr,
		Kind:    kind,
		Parent:  parent,
	}
}

// Clone returns a deep copy of a.
func (a *Account) Clone() *Account {
	c := *a
	if a.Data != nil {
		c.Data = make([]byte, len(a.Data))
		copy(c.Data, a.Data)
	}
	return &c
}

// Write is a single account mutation within a commit. Prev is the version the
// account had when it was read, zero for an account that must not yet exist.
type Write struct {
	Account *Account
	Prev    uint64
}

// IsCreate reports whether the write inserts a new account.
func (w Write) IsCreate() bool { return w.Prev == 0 }

type ListOpts struct {
	Parent address.Address
	Kind   Kind
	Limit  int
	Offset int
}
