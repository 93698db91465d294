// Package storetest is a conformance suite for store.Store implementations.
//
//	func TestStore(t *testing.T) {
//	    storetest.Run(t, func(t *testing.T) store.Store { return memory.New() })
//	}
package storetest

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/parkledger"
	"github.com/xraph/parkledger/account"
	"github.com/xraph/parkledger/address"
	"github.com/xraph/parkledger/receipt"
	"github.com/xraph/parkledger/store"
)

// Factory returns an empty, migrated store. The suite does not close it.
type Factory func(t *testing.T) store.Store

// Run exercises every store.Store contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"GetMissing", testGetMissing},
		{"CreateAndGet", testCreateAndGet},
		{"FullRangeValues", testFullRangeValues},
		{"DuplicateCreateConflicts", testDuplicateCreate},
		{"StaleUpdateConflicts", testStaleUpdate},
		{"UpdateVanishedConflicts", testUpdateVanished},
		{"FailedApplyWritesNothing", testAtomicity},
		{"ListAccounts", testListAccounts},
		{"Receipts", testReceipts},
		{"RacingUpdates", testRacingUpdates},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

var epoch = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

var seq struct {
	mu sync.Mutex
	n  int
}

// addr returns a fresh deterministic address.
func addr(label string) address.Address {
	seq.mu.Lock()
	seq.n++
	n := seq.n
	seq.mu.Unlock()
	return address.ProgramID(fmt.Sprintf("storetest/%s/%d/%d", label, n, time.Now().UnixNano()))
}

func newAccount(kind account.Kind, parent address.Address, at time.Time) *account.Account {
	a := account.New(addr(string(kind)), kind, parent)
	a.CreatedAt = at
	a.UpdatedAt = at
	return a
}

func create(t *testing.T, s store.Store, accts ...*account.Account) {
	t.Helper()
	var cs store.ChangeSet
	for _, a := range accts {
		cs.Create(a)
	}
	require.NoError(t, s.Apply(context.Background(), &cs))
}

func assertAccount(t *testing.T, want, got *account.Account) {
	t.Helper()
	assert.Equal(t, want.Address, got.Address)
	assert.Equal(t, want.Kind, got.Kind)
	assert.Equal(t, want.Parent, got.Parent)
	assert.Equal(t, want.Lamports, got.Lamports)
	assert.Equal(t, want.Version, got.Version)
	if len(want.Data) == 0 {
		assert.Empty(t, got.Data)
	} else {
		assert.Equal(t, want.Data, got.Data)
	}
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "created_at %s != %s", got.CreatedAt, want.CreatedAt)
	assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt), "updated_at %s != %s", got.UpdatedAt, want.UpdatedAt)
}

func testGetMissing(t *testing.T, s store.Store) {
	_, err := s.GetAccount(context.Background(), addr("missing"))
	require.ErrorIs(t, err, parkledger.ErrNotFound)
}

func testCreateAndGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	parent := addr("tenant")
	a := newAccount(account.KindEntry, parent, epoch)
	a.Data = []byte{1, 2, 3, 0, 0, 255}
	a.Lamports = 42

	create(t, s, a)
	assert.Equal(t, uint64(1), a.Version)

	got, err := s.GetAccount(ctx, a.Address)
	require.NoError(t, err)
	assertAccount(t, a, got)

	got.Lamports = 99
	got.UpdatedAt = epoch.Add(time.Minute)
	var cs store.ChangeSet
	cs.Update(got)
	require.NoError(t, s.Apply(ctx, &cs))

	again, err := s.GetAccount(ctx, a.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), again.Version)
	assert.Equal(t, uint64(99), again.Lamports)
	assert.True(t, epoch.Add(time.Minute).Equal(again.UpdatedAt))
	assert.True(t, epoch.Equal(again.CreatedAt))
}

func testFullRangeValues(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := newAccount(account.KindVault, addr("tenant"), epoch)
	a.Lamports = math.MaxUint64

	var cs store.ChangeSet
	cs.Create(a)
	r := receipt.New(receipt.OpDeposit, a.Address, epoch)
	r.Amount = math.MaxUint64
	r.BalanceAfter = math.MaxUint64 - 1
	r.Fee = 1 << 63
	cs.AddReceipt(r)
	require.NoError(t, s.Apply(ctx, &cs))

	got, err := s.GetAccount(ctx, a.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), got.Lamports)

	rs, err := s.ListReceipts(ctx, a.Address, receipt.ListOpts{})
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, uint64(math.MaxUint64), rs[0].Amount)
	assert.Equal(t, uint64(math.MaxUint64-1), rs[0].BalanceAfter)
	assert.Equal(t, uint64(1<<63), rs[0].Fee)
}

func testDuplicateCreate(t *testing.T, s store.Store) {
	a := newAccount(account.KindTenant, addr("admin"), epoch)
	create(t, s, a)

	dup := a.Clone()
	var cs store.ChangeSet
	cs.Create(dup)
	err := s.Apply(context.Background(), &cs)
	require.ErrorIs(t, err, parkledger.ErrConflict)
}

func testStaleUpdate(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := newAccount(account.KindWallet, address.Zero, epoch)
	create(t, s, a)

	first, err := s.GetAccount(ctx, a.Address)
	require.NoError(t, err)
	second := first.Clone()

	first.Lamports = 10
	var cs store.ChangeSet
	cs.Update(first)
	require.NoError(t, s.Apply(ctx, &cs))

	second.Lamports = 20
	var stale store.ChangeSet
	stale.Update(second)
	require.ErrorIs(t, s.Apply(ctx, &stale), parkledger.ErrConflict)

	got, err := s.GetAccount(ctx, a.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), got.Lamports)
}

func testUpdateVanished(t *testing.T, s store.Store) {
	a := newAccount(account.KindWallet, address.Zero, epoch)
	a.Version = 3
	var cs store.ChangeSet
	cs.Update(a)
	require.ErrorIs(t, s.Apply(context.Background(), &cs), parkledger.ErrConflict)
}

func testAtomicity(t *testing.T, s store.Store) {
	ctx := context.Background()
	existing := newAccount(account.KindTenant, addr("admin"), epoch)
	create(t, s, existing)

	fresh := newAccount(account.KindWallet, address.Zero, epoch)
	var cs store.ChangeSet
	cs.Create(fresh)
	cs.Create(existing.Clone())
	cs.AddReceipt(receipt.New(receipt.OpCredit, fresh.Address, epoch))
	require.ErrorIs(t, s.Apply(ctx, &cs), parkledger.ErrConflict)

	_, err := s.GetAccount(ctx, fresh.Address)
	require.ErrorIs(t, err, parkledger.ErrNotFound, "no write of a failed apply may persist")

	rs, err := s.ListReceipts(ctx, fresh.Address, receipt.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, rs, "no receipt of a failed apply may persist")
}

func testListAccounts(t *testing.T, s store.Store) {
	ctx := context.Background()
	tenant := addr("tenant")
	other := addr("tenant")

	var entries []*account.Account
	for i := range 4 {
		entries = append(entries, newAccount(account.KindEntry, tenant, epoch.Add(time.Duration(i)*time.Second)))
	}
	// Created out of order to exercise sorting.
	create(t, s, entries[2], entries[0])
	create(t, s, entries[3], entries[1])
	create(t, s,
		newAccount(account.KindVault, tenant, epoch),
		newAccount(account.KindEntry, other, epoch),
	)

	got, err := s.ListAccounts(ctx, account.ListOpts{Parent: tenant, Kind: account.KindEntry})
	require.NoError(t, err)
	require.Len(t, got, 4)
	for i, a := range got {
		assert.Equal(t, entries[i].Address, a.Address, "position %d", i)
	}

	page, err := s.ListAccounts(ctx, account.ListOpts{Parent: tenant, Kind: account.KindEntry, Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, entries[1].Address, page[0].Address)
	assert.Equal(t, entries[2].Address, page[1].Address)

	all, err := s.ListAccounts(ctx, account.ListOpts{Parent: tenant})
	require.NoError(t, err)
	assert.Len(t, all, 5)

	huge, err := s.ListAccounts(ctx, account.ListOpts{Parent: tenant, Kind: account.KindEntry, Limit: math.MaxInt, Offset: 1})
	require.NoError(t, err)
	require.Len(t, huge, 3)
	assert.Equal(t, entries[1].Address, huge[0].Address)

	past, err := s.ListAccounts(ctx, account.ListOpts{Parent: tenant, Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, past)
}

func testReceipts(t *testing.T, s store.Store) {
	ctx := context.Background()
	subject := newAccount(account.KindEntry, addr("tenant"), epoch)
	actor := addr("user")
	create(t, s, subject)

	ops := []receipt.Op{receipt.OpOpenEntry, receipt.OpDeposit, receipt.OpStartSession, receipt.OpExitSession, receipt.OpDeposit}
	var want []*receipt.Receipt
	for i, op := range ops {
		r := receipt.New(op, subject.Address, epoch.Add(time.Duration(i)*time.Minute))
		r.Tenant = subject.Parent
		r.Actor = actor
		r.Amount = uint64(i * 100)
		if op == receipt.OpExitSession {
			r.Counterparty = addr("operator")
			r.Fee = 300
			r.Elapsed = 180
		}
		r.BalanceAfter = uint64(1000 - i)

		var cs store.ChangeSet
		cs.AddReceipt(r)
		require.NoError(t, s.Apply(ctx, &cs))
		want = append(want, r)
	}

	got, err := s.ListReceipts(ctx, subject.Address, receipt.ListOpts{})
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i, r := range got {
		w := want[len(want)-1-i]
		assert.Equal(t, w.ID, r.ID, "newest first")
		assert.Equal(t, w.Op, r.Op)
		assert.Equal(t, w.Account, r.Account)
		assert.Equal(t, w.Tenant, r.Tenant)
		assert.Equal(t, w.Actor, r.Actor)
		assert.Equal(t, w.Counterparty, r.Counterparty)
		assert.Equal(t, w.Amount, r.Amount)
		assert.Equal(t, w.Fee, r.Fee)
		assert.Equal(t, w.Elapsed, r.Elapsed)
		assert.Equal(t, w.BalanceAfter, r.BalanceAfter)
		assert.True(t, w.CreatedAt.Equal(r.CreatedAt))
	}

	deposits, err := s.ListReceipts(ctx, subject.Address, receipt.ListOpts{Op: receipt.OpDeposit})
	require.NoError(t, err)
	require.Len(t, deposits, 2)
	assert.Equal(t, want[4].ID, deposits[0].ID)
	assert.Equal(t, want[1].ID, deposits[1].ID)

	page, err := s.ListReceipts(ctx, subject.Address, receipt.ListOpts{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, want[3].ID, page[0].ID)

	rest, err := s.ListReceipts(ctx, subject.Address, receipt.ListOpts{Limit: math.MaxInt, Offset: 1})
	require.NoError(t, err)
	require.Len(t, rest, len(want)-1)
	assert.Equal(t, want[3].ID, rest[0].ID)

	none, err := s.ListReceipts(ctx, addr("nobody"), receipt.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testRacingUpdates(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := newAccount(account.KindWallet, address.Zero, epoch)
	create(t, s, a)

	base, err := s.GetAccount(ctx, a.Address)
	require.NoError(t, err)

	const racers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := range racers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := base.Clone()
			c.Lamports = uint64(i + 1)
			var cs store.ChangeSet
			cs.Update(c)
			err := s.Apply(ctx, &cs)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case parkledger.IsRetryable(err):
				conflicts++
			default:
				t.Errorf("racer %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, racers-1, conflicts)

	got, err := s.GetAccount(ctx, a.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Version)
}
