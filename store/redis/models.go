package redis

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/xraph/parkledger"
	"github.com/xraph/parkledger/account"
	"github.com/xraph/parkledger/address"
	"github.com/xraph/parkledger/types"
)

// ==================== Keys ====================

const all = "all"

func (s *Store) accountKey(a address.Address) string {
	return s.prefix + ":acct:" + hex.EncodeToString(a[:])
}

func (s *Store) receiptsKey(subject address.Address) string {
	return s.prefix + ":rcpt:" + hex.EncodeToString(subject[:])
}

// indexKey names the sorted set listing accounts by parent and kind. Either
// part may be "all".
func (s *Store) indexKey(parent, kind string) string {
	return s.prefix + ":idx:" + parent + ":" + kind
}

// indexKeys returns every index an account belongs to.
func (s *Store) indexKeys(a *account.Account) []string {
	parent := hex.EncodeToString(a.Parent[:])
	kind := string(a.Kind)
	return []string{
		s.indexKey(parent, kind),
		s.indexKey(parent, all),
		s.indexKey(all, kind),
		s.indexKey(all, all),
	}
}

func (s *Store) listKey(opts account.ListOpts) string {
	parent, kind := all, all
	if !opts.Parent.IsZero() {
		parent = hex.EncodeToString(opts.Parent[:])
	}
	if opts.Kind != "" {
		kind = string(opts.Kind)
	}
	return s.indexKey(parent, kind)
}

// indexScore orders accounts by creation time; equal scores fall back to the
// member, the hex address, which sorts like the raw bytes.
func indexScore(a *account.Account) float64 {
	return float64(a.CreatedAt.UnixMicro())
}

// ==================== Account hashes ====================

func accountFields(a *account.Account) map[string]any {
	return map[string]any{
		"address":    string(a.Address[:]),
		"kind":       string(a.Kind),
		"parent":     string(a.Parent[:]),
		"lamports":   strconv.FormatUint(a.Lamports, 10),
		"data":       string(a.Data),
		"version":    strconv.FormatUint(a.Version, 10),
		"created_at": a.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at": a.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func fromFields(f map[string]string) (*account.Account, error) {
	addr, err := address.FromBytes([]byte(f["address"]))
	if err != nil {
		return nil, corrupt("address", err)
	}
	parent, err := address.FromBytes([]byte(f["parent"]))
	if err != nil {
		return nil, corrupt("parent", err)
	}
	lamports, err := strconv.ParseUint(f["lamports"], 10, 64)
	if err != nil {
		return nil, corrupt("lamports", err)
	}
	version, err := strconv.ParseUint(f["version"], 10, 64)
	if err != nil {
		return nil, corrupt("version", err)
	}
	created, err := time.Parse(time.RFC3339Nano, f["created_at"])
	if err != nil {
		return nil, corrupt("created_at", err)
	}
	updated, err := time.Parse(time.RFC3339Nano, f["updated_at"])
	if err != nil {
		return nil, corrupt("updated_at", err)
	}

	var data []byte
	if d := f["data"]; d != "" {
		data = []byte(d)
	}
	return &account.Account{
		Entity: types.Entity{
			CreatedAt: created.UTC(),
			UpdatedAt: updated.UTC(),
		},
		Address:  addr,
		Kind:     account.Kind(f["kind"]),
		Parent:   parent,
		Lamports: lamports,
		Data:     data,
		Version:  version,
	}, nil
}

func corrupt(field string, err error) error {
	return fmt.Errorf("%w: redis account %s: %w", parkledger.ErrInvalidRecord, field, err)
}
