package parkledger

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/parkledger/account"
	"github.com/xraph/parkledger/address"
	"github.com/xraph/parkledger/entry"
	"github.com/xraph/parkledger/receipt"
	"github.com/xraph/parkledger/store"
	"github.com/xraph/parkledger/tenant"
)

// ──────────────────────────────────────────────────
// Tenant Registry
// ──────────────────────────────────────────────────

// CreateTenant registers the tenant owned by admin. Each admin owns at most
// one tenant; a second registration fails with ErrAlreadyExists and leaves
// the first record untouched. Names longer than tenant.NameSize bytes are
// truncated and trailing zero bytes dropped before the empty check.
func (l *Ledger) CreateTenant(ctx context.Context, admin address.Address, name string) (*tenant.Tenant, error) {
	const op = receipt.OpCreateTenant
	started := time.Now()

	name = tenant.TruncateName(name)
	if name == "" {
		return nil, l.fail(ctx, op, ErrEmptyName)
	}

	addr, bump, err := address.Derive(l.program, address.DomainTenant, admin)
	if err != nil {
		return nil, l.fail(ctx, op, err)
	}

	unlock := l.locks.lock(addr)
	defer unlock()

	found, err := l.exists(ctx, addr)
	if err != nil {
		return nil, l.fail(ctx, op, err)
	}
	if found {
		return nil, l.fail(ctx, op, fmt.Errorf("%w: tenant of admin %s", ErrAlreadyExists, admin))
	}

	now := l.now()
	t := &tenant.Tenant{
		Address:   addr,
		Admin:     admin,
		Name:      name,
		CreatedAt: now,
		Bump:      bump,
	}

	acct := l.newAccount(addr, account.KindTenant, admin, now)
	acct.Data = t.Encode()

	var cs store.ChangeSet
	cs.Create(acct)

	r := receipt.New(op, addr, now)
	r.Tenant = addr
	r.Actor = admin
	cs.AddReceipt(r)

	if err := l.commit(ctx, op, &cs, started); err != nil {
		return nil, l.fail(ctx, op, err)
	}

	l.plugins.EmitTenantCreated(ctx, t)
	l.logger.Debug("tenant created",
		"tenant", addr,
		"admin", admin,
		"name", t.Name,
	)

	return t, nil
}

// ──────────────────────────────────────────────────
// User Ledger Entries
// ──────────────────────────────────────────────────

// OpenEntry creates the ledger entry of user at tenantAddr and reserves its
// vault with zero value.
func (l *Ledger) OpenEntry(ctx context.Context, tenantAddr, user address.Address, plate string) (*entry.Entry, error) {
	const op = receipt.OpOpenEntry
	started := time.Now()

	plate = entry.TruncatePlate(plate)
	if plate == "" && l.plateRequired {
		return nil, l.fail(ctx, op, ErrEmptyPlate)
	}

	keys, err := l.pair(tenantAddr, user)
	if err != nil {
		return nil, l.fail(ctx, op, err)
	}

	unlock := l.locks.lock(tenantAddr, keys.entry, keys.vault)
	defer unlock()

	if _, _, err := l.loadTenant(ctx, tenantAddr); err != nil {
		return nil, l.fail(ctx, op, err)
	}

	for _, a := range []address.Address{keys.entry, keys.vault} {
		found, err := l.exists(ctx, a)
		if err != nil {
			return nil, l.fail(ctx, op, err)
		}
		if found {
			return nil, l.fail(ctx, op, fmt.Errorf("%w: account %s for user %s", ErrAlreadyExists, a, user))
		}
	}

	now := l.now()
	e := &entry.Entry{
		Address:   keys.entry,
		Vault:     keys.vault,
		Owner:     user,
		Tenant:    tenantAddr,
		VaultBump: keys.vaultBump,
		EntryBump: keys.entryBump,
		Plate:     plate,
	}

	entryAcct := l.newAccount(keys.entry, account.KindEntry, tenantAddr, now)
	entryAcct.Data = e.Encode()
	vault := l.newAccount(keys.vault, account.KindVault, tenantAddr, now)

	if err := checkBalance(e, vault); err != nil {
		return nil, l.fail(ctx, op, err)
	}

	var cs store.ChangeSet
	cs.Create(entryAcct)
	cs.Create(vault)

	r := receipt.New(op, keys.entry, now)
	r.Tenant = tenantAddr
	r.Actor = user
	cs.AddReceipt(r)

	if err := l.commit(ctx, op, &cs, started); err != nil {
		return nil, l.fail(ctx, op, err)
	}

	l.plugins.EmitEntryOpened(ctx, e)
	l.logger.Debug("entry opened",
		"tenant", tenantAddr,
		"user", user,
		"entry", keys.entry,
		"vault", keys.vault,
	)

	return e, nil
}
