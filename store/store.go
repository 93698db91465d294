// Package store defines the persistence contract for parkledger.
//
// Reads return snapshots. All writes go through Apply, which commits a
// ChangeSet atomically: either every account write and receipt is persisted or
// none is. Backends enforce optimistic concurrency with per-account versions
// and report a lost race as parkledger.ErrConflict.
package store

import (
	"context"

	"github.com/xraph/parkledger/account"
	"github.com/xraph/parkledger/address"
	"github.com/xraph/parkledger/receipt"
)

// Store is the unified storage interface for all parkledger records.
type Store interface {
	// Account methods
	GetAccount(ctx context.Context, addr address.Address) (*account.Account, error)
	ListAccounts(ctx context.Context, opts account.ListOpts) ([]*account.Account, error)

	// Receipt methods
	ListReceipts(ctx context.Context, subject address.Address, opts receipt.ListOpts) ([]*receipt.Receipt, error)

	// Apply commits every write and receipt in cs atomically.
	Apply(ctx context.Context, cs *ChangeSet) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// ChangeSet is the complete post-state of one operation.
type ChangeSet struct {
	Writes   []account.Write
	Receipts []*receipt.Receipt
}

// Create schedules the insert of a new account at version 1.
func (cs *ChangeSet) Create(a *account.Account) {
	a.Version = 1
	cs.Writes = append(cs.Writes, account.Write{Account: a})
}

// Update schedules a write of a, which must have been read at its current
// Version. The version is bumped in place.
func (cs *ChangeSet) Update(a *account.Account) {
	prev := a.Version
	a.Version = prev + 1
	cs.Writes = append(cs.Writes, account.Write{Account: a, Prev: prev})
}

// Put schedules a as a create or an update depending on whether it has been stored.
func (cs *ChangeSet) Put(a *account.Account) {
	if a.Version == 0 {
		cs.Create(a)
		return
	}
	cs.Update(a)
}

// AddReceipt appends r to the commit.
func (cs *ChangeSet) AddReceipt(r *receipt.Receipt) {
	cs.Receipts = append(cs.Receipts, r)
}

// Empty reports whether cs has nothing to commit.
func (cs *ChangeSet) Empty() bool {
	return len(cs.Writes) == 0 && len(cs.Receipts) == 0
}
