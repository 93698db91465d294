// Package memory provides an in-process store.Store for tests and single-node
// development.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/xraph/parkledger"
	"github.com/xraph/parkledger/account"
	"github.com/xraph/parkledger/address"
	"github.com/xraph/parkledger/receipt"
	"github.com/xraph/parkledger/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	accounts map[address.Address]*account.Account

	// Receipts per subject account, oldest first
	receipts map[address.Address][]*receipt.Receipt

	closed bool
}

func New() *Store {
	return &Store{
		accounts: make(map[address.Address]*account.Account),
		receipts: make(map[address.Address][]*receipt.Receipt),
	}
}

// ==================== Account Store ====================

func (s *Store) GetAccount(_ context.Context, addr address.Address) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, parkledger.ErrStoreClosed
	}
	if a, ok := s.accounts[addr]; ok {
		return a.Clone(), nil
	}
	return nil, parkledger.ErrNotFound
}

func (s *Store) ListAccounts(_ context.Context, opts account.ListOpts) ([]*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, parkledger.ErrStoreClosed
	}

	result := make([]*account.Account, 0)
	for _, a := range s.accounts {
		if opts.Kind != "" && a.Kind != opts.Kind {
			continue
		}
		if !opts.Parent.IsZero() && a.Parent != opts.Parent {
			continue
		}
		result = append(result, a.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return bytes.Compare(result[i].Address[:], result[j].Address[:]) < 0
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

// ==================== Receipt Store ====================

func (s *Store) ListReceipts(_ context.Context, subject address.Address, opts receipt.ListOpts) ([]*receipt.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, parkledger.ErrStoreClosed
	}

	all := s.receipts[subject]
	result := make([]*receipt.Receipt, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if opts.Op != "" && all[i].Op != opts.Op {
			continue
		}
		r := *all[i]
		result = append(result, &r)
	}

	return paginate(result, opts.Offset, opts.Limit), nil
}

// ==================== Commit ====================

// Apply validates every write against the current versions and then commits
// all of them under a single lock.
func (s *Store) Apply(_ context.Context, cs *store.ChangeSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return parkledger.ErrStoreClosed
	}

	seen := make(map[address.Address]struct{}, len(cs.Writes))
	for _, w := range cs.Writes {
		addr := w.Account.Address
		if _, dup := seen[addr]; dup {
			return fmt.Errorf("parkledger/memory: duplicate write for %s", addr)
		}
		seen[addr] = struct{}{}

		cur, exists := s.accounts[addr]
		switch {
		case w.IsCreate() && exists:
			return fmt.Errorf("%w: account %s already created", parkledger.ErrConflict, addr)
		case !w.IsCreate() && !exists:
			return fmt.Errorf("%w: account %s vanished", parkledger.ErrConflict, addr)
		case !w.IsCreate() && cur.Version != w.Prev:
			return fmt.Errorf("%w: account %s at version %d, expected %d", parkledger.ErrConflict, addr, cur.Version, w.Prev)
		}
	}

	for _, w := range cs.Writes {
		s.accounts[w.Account.Address] = w.Account.Clone()
	}
	for _, r := range cs.Receipts {
		c := *r
		s.receipts[r.Account] = append(s.receipts[r.Account], &c)
	}
	return nil
}

// ==================== Core ====================

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return parkledger.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func paginate[T any](items []T, offset, limit int) []T {
	start := min(max(offset, 0), len(items))
	end := len(items)
	if limit > 0 && limit < end-start {
		end = start + limit
	}
	return items[start:end]
}
