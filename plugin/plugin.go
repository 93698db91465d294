// Package plugin provides an extensible plugin system for parkledger.
// Plugins can hook into lifecycle and settlement events to extend functionality.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/parkledger/address"
	"github.com/xraph/parkledger/entry"
	"github.com/xraph/parkledger/tenant"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the ledger starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l interface{}) error
}

// OnShutdown is called when the ledger stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Registration hooks
// ──────────────────────────────────────────────────

// OnTenantCreated is called after a tenant is registered.
type OnTenantCreated interface {
	Plugin
	OnTenantCreated(ctx context.Context, t *tenant.Tenant) error
}

// OnEntryOpened is called after a user ledger entry and its vault are created.
type OnEntryOpened interface {
	Plugin
	OnEntryOpened(ctx context.Context, e *entry.Entry) error
}

// ──────────────────────────────────────────────────
// Value hooks
// ──────────────────────────────────────────────────

// OnDeposit is called after value moves from a wallet into a vault.
type OnDeposit interface {
	Plugin
	OnDeposit(ctx context.Context, e *entry.Entry, amount uint64) error
}

// OnWithdraw is called after value moves from a vault back to its owner.
type OnWithdraw interface {
	Plugin
	OnWithdraw(ctx context.Context, e *entry.Entry, amount uint64) error
}

// OnCredit is called after the faucet credits a wallet.
type OnCredit interface {
	Plugin
	OnCredit(ctx context.Context, wallet address.Address, amount, balance uint64) error
}

// ──────────────────────────────────────────────────
// Session hooks
// ──────────────────────────────────────────────────

// OnSessionStarted is called after an entry transitions Idle -> Parked.
type OnSessionStarted interface {
	Plugin
	OnSessionStarted(ctx context.Context, e *entry.Entry) error
}

// OnSessionSettled is called after an entry transitions Parked -> Idle and
// the fee has been forwarded.
type OnSessionSettled interface {
	Plugin
	OnSessionSettled(ctx context.Context, e *entry.Entry, fee, elapsedSeconds uint64, recipient address.Address) error
}

// ──────────────────────────────────────────────────
// Operation hooks
// ──────────────────────────────────────────────────

// OnOperationCommitted is called after every successful commit.
type OnOperationCommitted interface {
	Plugin
	OnOperationCommitted(ctx context.Context, op string, elapsed time.Duration) error
}

// OnOperationFailed is called when an operation is rejected or fails to commit.
type OnOperationFailed interface {
	Plugin
	OnOperationFailed(ctx context.Context, op string, err error) error
}

// OnInvariantViolation is called when an operation detects corrupted state,
// such as a vault whose value disagrees with its entry balance.
type OnInvariantViolation interface {
	Plugin
	OnInvariantViolation(ctx context.Context, op string, err error) error
}
