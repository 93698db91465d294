// Package redis implements store.Store on Redis using go-redis.
//
// Accounts are hashes, receipts are per-subject lists with the newest entry
// at the head, and sorted sets index accounts by parent and kind. Apply uses
// WATCH/MULTI/EXEC over the touched account keys, so a concurrent writer makes
// the transaction fail with parkledger.ErrConflict.
package redis

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/parkledger"
	"github.com/xraph/parkledger/account"
	"github.com/xraph/parkledger/address"
	"github.com/xraph/parkledger/receipt"
	"github.com/xraph/parkledger/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "parkledger"

// Store implements store.Store using a Redis client.
type Store struct {
	client *redis.Client
	prefix string
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the key namespace.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// Open connects to redisURL and verifies the connection.
func Open(ctx context.Context, redisURL string, opts ...Option) (*Store, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parkledger/redis: parse URL: %w", err)
	}

	// Connection pool settings
	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("parkledger/redis: ping: %w", err)
	}

	return New(client, opts...), nil
}

// New wraps an existing client. The store takes ownership of it.
func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{client: client, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() *redis.Client { return s.client }

// Migrate is a no-op; Redis needs no schema.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping checks Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

// ==================== Account Store ====================

func (s *Store) GetAccount(ctx context.Context, addr address.Address) (*account.Account, error) {
	f, err := s.client.HGetAll(ctx, s.accountKey(addr)).Result()
	if err != nil {
		return nil, fmt.Errorf("parkledger/redis: get account: %w", err)
	}
	if len(f) == 0 {
		return nil, parkledger.ErrNotFound
	}
	return fromFields(f)
}

func (s *Store) ListAccounts(ctx context.Context, opts account.ListOpts) ([]*account.Account, error) {
	start, stop := rangeOf(opts.Offset, opts.Limit)
	members, err := s.client.ZRange(ctx, s.listKey(opts), start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("parkledger/redis: list accounts: %w", err)
	}
	if len(members) == 0 {
		return []*account.Account{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(members))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, m := range members {
			cmds[i] = pipe.HGetAll(ctx, s.prefix+":acct:"+m)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("parkledger/redis: list accounts: %w", err)
	}

	result := make([]*account.Account, 0, len(cmds))
	for _, cmd := range cmds {
		a, err := fromFields(cmd.Val())
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, nil
}

// ==================== Receipt Store ====================

func (s *Store) ListReceipts(ctx context.Context, subject address.Address, opts receipt.ListOpts) ([]*receipt.Receipt, error) {
	key := s.receiptsKey(subject)

	// Without an op filter the list can be paged server-side.
	start, stop := rangeOf(opts.Offset, opts.Limit)
	if opts.Op != "" {
		start, stop = 0, -1
	}
	raw, err := s.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("parkledger/redis: list receipts: %w", err)
	}

	result := make([]*receipt.Receipt, 0, len(raw))
	for _, item := range raw {
		var r receipt.Receipt
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, fmt.Errorf("%w: redis receipt: %w", parkledger.ErrInvalidRecord, err)
		}
		if opts.Op != "" && r.Op != opts.Op {
			continue
		}
		result = append(result, &r)
	}

	if opts.Op != "" {
		result = page(result, opts.Offset, opts.Limit)
	}
	return result, nil
}

// ==================== Commit ====================

// Apply commits cs in one MULTI/EXEC guarded by WATCH on every written
// account. Version checks run inside the watch, so either they fail or any
// concurrent change aborts EXEC.
func (s *Store) Apply(ctx context.Context, cs *store.ChangeSet) error {
	keys := make([]string, len(cs.Writes))
	for i, w := range cs.Writes {
		keys[i] = s.accountKey(w.Account.Address)
	}

	receipts := make([]string, len(cs.Receipts))
	for i, r := range cs.Receipts {
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("parkledger/redis: encode receipt: %w", err)
		}
		receipts[i] = string(b)
	}

	txf := func(tx *redis.Tx) error {
		for i, w := range cs.Writes {
			cur, err := tx.HGet(ctx, keys[i], "version").Result()
			switch {
			case errors.Is(err, redis.Nil):
				if !w.IsCreate() {
					return fmt.Errorf("%w: account %s vanished", parkledger.ErrConflict, w.Account.Address)
				}
			case err != nil:
				return err
			case w.IsCreate():
				return fmt.Errorf("%w: account %s already exists", parkledger.ErrConflict, w.Account.Address)
			case cur != strconv.FormatUint(w.Prev, 10):
				return fmt.Errorf("%w: account %s at version %s, expected %d", parkledger.ErrConflict, w.Account.Address, cur, w.Prev)
			}
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, w := range cs.Writes {
				pipe.HSet(ctx, keys[i], accountFields(w.Account))
				if w.IsCreate() {
					member := hex.EncodeToString(w.Account.Address[:])
					z := redis.Z{Score: indexScore(w.Account), Member: member}
					for _, idx := range s.indexKeys(w.Account) {
						pipe.ZAdd(ctx, idx, z)
					}
				}
			}
			for i, r := range cs.Receipts {
				pipe.LPush(ctx, s.receiptsKey(r.Account), receipts[i])
			}
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txf, keys...)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, parkledger.ErrConflict):
		return err
	case errors.Is(err, redis.TxFailedErr):
		return fmt.Errorf("%w: %w", parkledger.ErrConflict, err)
	}
	return fmt.Errorf("parkledger/redis: apply: %w", err)
}

// ==================== Helpers ====================

// rangeOf converts offset/limit into an inclusive Redis index range.
func rangeOf(offset, limit int) (int64, int64) {
	start := int64(max(offset, 0))
	if limit <= 0 {
		return start, -1
	}
	return start, start + int64(limit) - 1
}

func page[T any](items []T, offset, limit int) []T {
	start := min(max(offset, 0), len(items))
	end := len(items)
	if limit > 0 && limit < end-start {
		end = start + limit
	}
	return items[start:end]
}
