package parkledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/parkledger/account"
	"github.com/xraph/parkledger/address"
	"github.com/xraph/parkledger/entry"
	"github.com/xraph/parkledger/fee"
	"github.com/xraph/parkledger/plugin"
	"github.com/xraph/parkledger/receipt"
	"github.com/xraph/parkledger/store"
	"github.com/xraph/parkledger/tenant"
	"github.com/xraph/parkledger/types"
)

// Defaults applied by New.
const (
	DefaultProgramName   = "parkledger"
	DefaultRatePerMinute = 100
	DefaultLockStripes   = 256
)

// Ledger is the custody and settlement engine.
type Ledger struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	locks   *stripes

	// Configuration
	program       address.Address
	clock         func() time.Time
	policy        fee.Policy
	plateRequired bool
	lockStripes   int
}

// New creates a new Ledger instance.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:         s,
		plugins:       plugin.NewRegistry(),
		logger:        slog.Default(),
		program:       address.ProgramID(DefaultProgramName),
		clock:         time.Now,
		policy:        fee.PerMinute(DefaultRatePerMinute),
		plateRequired: true,
		lockStripes:   DefaultLockStripes,
	}

	for _, opt := range opts {
		opt(l)
	}

	l.locks = newStripes(l.lockStripes)
	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithPluginTimeout bounds every plugin hook call.
func WithPluginTimeout(d time.Duration) Option {
	return func(l *Ledger) {
		l.plugins.WithTimeout(d)
	}
}

// WithClock sets the time source. It is read exactly once per operation.
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) {
		l.clock = clock
	}
}

// WithFeePolicy sets the parking fee policy.
func WithFeePolicy(p fee.Policy) Option {
	return func(l *Ledger) {
		l.policy = p
	}
}

// WithProgramID sets the program identity that scopes every derived address.
func WithProgramID(program address.Address) Option {
	return func(l *Ledger) {
		l.program = program
	}
}

// WithPlateRequired controls whether OpenEntry rejects an empty plate.
func WithPlateRequired(required bool) Option {
	return func(l *Ledger) {
		l.plateRequired = required
	}
}

// WithLockStripes sets the number of address lock stripes.
func WithLockStripes(n int) Option {
	return func(l *Ledger) {
		l.lockStripes = n
	}
}

// Start migrates the store and initializes plugins.
func (l *Ledger) Start(ctx context.Context) error {
	if err := l.store.Migrate(ctx); err != nil {
		return err
	}

	l.plugins.EmitInit(ctx, l)

	l.logger.Info("parkledger started",
		"program", l.program,
		"fee_policy", fmt.Sprint(l.policy),
		"plate_required", l.plateRequired,
		"lock_stripes", l.lockStripes,
		"plugins", l.plugins.Count(),
	)

	return nil
}

// Stop shuts down plugins and closes the store.
func (l *Ledger) Stop() error {
	ctx := context.Background()
	l.plugins.EmitShutdown(ctx)

	return l.store.Close()
}

// Program returns the program identity.
func (l *Ledger) Program() address.Address { return l.program }

// FeePolicy returns the configured fee policy.
func (l *Ledger) FeePolicy() fee.Policy { return l.policy }

// Store returns the underlying store.
func (l *Ledger) Store() store.Store { return l.store }

// Ping checks store connectivity.
func (l *Ledger) Ping(ctx context.Context) error { return l.store.Ping(ctx) }

// ──────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────

// GetTenant returns the tenant registered at tenantAddr.
func (l *Ledger) GetTenant(ctx context.Context, tenantAddr address.Address) (*tenant.Tenant, error) {
	t, _, err := l.loadTenant(ctx, tenantAddr)
	if err != nil {
		return nil, &OperationError{Op: "get_tenant", Err: err}
	}
	return t, nil
}

// LookupTenant returns the tenant registered by admin.
func (l *Ledger) LookupTenant(ctx context.Context, admin address.Address) (*tenant.Tenant, error) {
	addr, _, err := address.Derive(l.program, address.DomainTenant, admin)
	if err != nil {
		return nil, &OperationError{Op: "lookup_tenant", Err: err}
	}
	t, _, err := l.loadTenant(ctx, addr)
	if err != nil {
		return nil, &OperationError{Op: "lookup_tenant", Err: err}
	}
	return t, nil
}

// GetEntry returns the ledger entry of user at tenantAddr.
func (l *Ledger) GetEntry(ctx context.Context, tenantAddr, user address.Address) (*entry.Entry, error) {
	keys, err := l.pair(tenantAddr, user)
	if err != nil {
		return nil, &OperationError{Op: "get_entry", Err: err}
	}
	e, _, err := l.loadEntry(ctx, keys.entry)
	if err != nil {
		return nil, &OperationError{Op: "get_entry", Err: err}
	}
	return e, nil
}

// ListOpts paginates list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// ListEntries returns the entries opened at tenantAddr, oldest first.
func (l *Ledger) ListEntries(ctx context.Context, tenantAddr address.Address, opts ListOpts) ([]*entry.Entry, error) {
	accts, err := l.store.ListAccounts(ctx, account.ListOpts{
		Parent: tenantAddr,
		Kind:   account.KindEntry,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
	if err != nil {
		return nil, &OperationError{Op: "list_entries", Err: err}
	}

	result := make([]*entry.Entry, 0, len(accts))
	for _, a := range accts {
		e, err := l.decodeEntry(a)
		if err != nil {
			return nil, &OperationError{Op: "list_entries", Err: err}
		}
		result = append(result, e)
	}
	return result, nil
}

// ListReceipts returns the receipts filed under subject, newest first.
func (l *Ledger) ListReceipts(ctx context.Context, subject address.Address, opts receipt.ListOpts) ([]*receipt.Receipt, error) {
	rs, err := l.store.ListReceipts(ctx, subject, opts)
	if err != nil {
		return nil, &OperationError{Op: "list_receipts", Err: err}
	}
	return rs, nil
}

// Account returns the raw account at addr.
func (l *Ledger) Account(ctx context.Context, addr address.Address) (*account.Account, error) {
	a, err := l.store.GetAccount(ctx, addr)
	if err != nil {
		return nil, &OperationError{Op: "get_account", Err: err}
	}
	return a, nil
}

// Balance returns the value held at addr, zero for unknown accounts.
func (l *Ledger) Balance(ctx context.Context, addr address.Address) (uint64, error) {
	a, err := l.store.GetAccount(ctx, addr)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, &OperationError{Op: "balance", Err: err}
	}
	return a.Lamports, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// now reads the clock once, truncated to whole seconds.
func (l *Ledger) now() time.Time {
	return l.clock().UTC().Truncate(time.Second)
}

type pair struct {
	tenant    address.Address
	user      address.Address
	entry     address.Address
	vault     address.Address
	entryBump uint8
	vaultBump uint8
}

func (l *Ledger) pair(tenantAddr, user address.Address) (pair, error) {
	k := pair{tenant: tenantAddr, user: user}
	var err error
	k.entry, k.entryBump, err = address.Derive(l.program, address.DomainEntry, tenantAddr, user)
	if err != nil {
		return k, err
	}
	k.vault, k.vaultBump, err = address.Derive(l.program, address.DomainVault, tenantAddr, user)
	return k, err
}

// vaultProof rebuilds the capability that authorizes transfers out of e's vault.
func (l *Ledger) vaultProof(e *entry.Entry) (address.Proof, error) {
	p, err := address.NewProof(l.program, address.DomainVault, e.VaultBump, e.Tenant, e.Owner)
	if err != nil {
		return address.Proof{}, fmt.Errorf("%w: vault proof: %w", ErrInvalidRecord, err)
	}
	return p, nil
}

func (l *Ledger) load(ctx context.Context, addr address.Address, kind account.Kind) (*account.Account, error) {
	a, err := l.store.GetAccount(ctx, addr)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %s account %s", ErrNotFound, kind, addr)
	}
	if err != nil {
		return nil, err
	}
	if a.Kind != kind {
		return nil, fmt.Errorf("%w: %s is a %s account, want %s", ErrInvalidRecord, addr, a.Kind, kind)
	}
	return a, nil
}

func (l *Ledger) exists(ctx context.Context, addr address.Address) (bool, error) {
	_, err := l.store.GetAccount(ctx, addr)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// loadWallet returns the wallet at addr, or an unsaved empty one.
func (l *Ledger) loadWallet(ctx context.Context, addr address.Address, now time.Time) (*account.Account, error) {
	a, err := l.store.GetAccount(ctx, addr)
	if errors.Is(err, ErrNotFound) {
		return l.newAccount(addr, account.KindWallet, address.Zero, now), nil
	}
	if err != nil {
		return nil, err
	}
	if a.Kind != account.KindWallet {
		return nil, fmt.Errorf("%w: %s is a %s account, want wallet", ErrInvalidRecipient, addr, a.Kind)
	}
	return a, nil
}

func (l *Ledger) loadTenant(ctx context.Context, addr address.Address) (*tenant.Tenant, *account.Account, error) {
	a, err := l.load(ctx, addr, account.KindTenant)
	if err != nil {
		return nil, nil, err
	}
	t, err := tenant.Decode(addr, a.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	return t, a, nil
}

func (l *Ledger) loadEntry(ctx context.Context, addr address.Address) (*entry.Entry, *account.Account, error) {
	a, err := l.load(ctx, addr, account.KindEntry)
	if err != nil {
		return nil, nil, err
	}
	e, err := l.decodeEntry(a)
	if err != nil {
		return nil, nil, err
	}
	return e, a, nil
}

func (l *Ledger) decodeEntry(a *account.Account) (*entry.Entry, error) {
	e, err := entry.Decode(a.Address, a.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	e.Vault, err = address.Create(l.program, address.DomainVault, e.VaultBump, e.Tenant, e.Owner)
	if err != nil {
		return nil, fmt.Errorf("%w: vault of %s: %w", ErrInvalidRecord, a.Address, err)
	}
	return e, nil
}

func (l *Ledger) newAccount(addr address.Address, kind account.Kind, parent address.Address, now time.Time) *account.Account {
	a := account.New(addr, kind, parent)
	a.Entity = types.StampedAt(now)
	return a
}

// checkBalance enforces that a vault holds exactly its entry's balance.
func checkBalance(e *entry.Entry, vault *account.Account) error {
	if vault.Lamports != e.Balance {
		return fmt.Errorf("%w: entry %s balance %d, vault %s holds %d",
			ErrBalanceMismatch, e.Address, e.Balance, vault.Address, vault.Lamports)
	}
	return nil
}

// commit applies cs atomically and reports the commit to plugins.
func (l *Ledger) commit(ctx context.Context, op receipt.Op, cs *store.ChangeSet, started time.Time) error {
	if err := l.store.Apply(ctx, cs); err != nil {
		return err
	}
	elapsed := time.Since(started)
	l.plugins.EmitOperationCommitted(ctx, string(op), elapsed)
	l.logger.Debug("operation committed",
		"op", op,
		"writes", len(cs.Writes),
		"elapsed_ms", elapsed.Milliseconds(),
	)
	return nil
}

// fail wraps err for op and reports it.
func (l *Ledger) fail(ctx context.Context, op receipt.Op, err error) error {
	if IsInvariantViolation(err) {
		l.logger.Error("invariant violation",
			"op", op,
			"error", err,
		)
		l.plugins.EmitInvariantViolation(ctx, string(op), err)
	} else {
		l.logger.Debug("operation rejected",
			"op", op,
			"code", Code(err),
			"error", err,
		)
	}
	l.plugins.EmitOperationFailed(ctx, string(op), err)
	return &OperationError{Op: string(op), Err: err}
}
