package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/parkledger/address"
	"github.com/xraph/parkledger/entry"
	"github.com/xraph/parkledger/tenant"
)

// DefaultTimeout bounds a single hook call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery so each emit only visits interested plugins.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit               []OnInit
	onShutdown           []OnShutdown
	onTenantCreated      []OnTenantCreated
	onEntryOpened        []OnEntryOpened
	onDeposit            []OnDeposit
	onWithdraw           []OnWithdraw
	onCredit             []OnCredit
	onSessionStarted     []OnSessionStarted
	onSessionSettled     []OnSessionSettled
	onCommitted          []OnOperationCommitted
	onFailed             []OnOperationFailed
	onInvariantViolation []OnInvariantViolation
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnTenantCreated); ok {
		r.onTenantCreated = append(r.onTenantCreated, v)
	}
	if v, ok := p.(OnEntryOpened); ok {
		r.onEntryOpened = append(r.onEntryOpened, v)
	}
	if v, ok := p.(OnDeposit); ok {
		r.onDeposit = append(r.onDeposit, v)
	}
	if v, ok := p.(OnWithdraw); ok {
		r.onWithdraw = append(r.onWithdraw, v)
	}
	if v, ok := p.(OnCredit); ok {
		r.onCredit = append(r.onCredit, v)
	}
	if v, ok := p.(OnSessionStarted); ok {
		r.onSessionStarted = append(r.onSessionStarted, v)
	}
	if v, ok := p.(OnSessionSettled); ok {
		r.onSessionSettled = append(r.onSessionSettled, v)
	}
	if v, ok := p.(OnOperationCommitted); ok {
		r.onCommitted = append(r.onCommitted, v)
	}
	if v, ok := p.(OnOperationFailed); ok {
		r.onFailed = append(r.onFailed, v)
	}
	if v, ok := p.(OnInvariantViolation); ok {
		r.onInvariantViolation = append(r.onInvariantViolation, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	typ  reflect.Type
	name string
}{
	{reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit"},
	{reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown"},
	{reflect.TypeOf((*OnTenantCreated)(nil)).Elem(), "OnTenantCreated"},
	{reflect.TypeOf((*OnEntryOpened)(nil)).Elem(), "OnEntryOpened"},
	{reflect.TypeOf((*OnDeposit)(nil)).Elem(), "OnDeposit"},
	{reflect.TypeOf((*OnWithdraw)(nil)).Elem(), "OnWithdraw"},
	{reflect.TypeOf((*OnCredit)(nil)).Elem(), "OnCredit"},
	{reflect.TypeOf((*OnSessionStarted)(nil)).Elem(), "OnSessionStarted"},
	{reflect.TypeOf((*OnSessionSettled)(nil)).Elem(), "OnSessionSettled"},
	{reflect.TypeOf((*OnOperationCommitted)(nil)).Elem(), "OnOperationCommitted"},
	{reflect.TypeOf((*OnOperationFailed)(nil)).Elem(), "OnOperationFailed"},
	{reflect.TypeOf((*OnInvariantViolation)(nil)).Elem(), "OnInvariantViolation"},
}

// implementedInterfaces returns the hook names implemented by p.
func implementedInterfaces(p Plugin) []string {
	var names []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			names = append(names, h.name)
		}
	}
	return names
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// snapshot copies a cached hook list under the read lock.
func snapshot[T any](r *Registry, list *[]T) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return *list
}

// dispatch calls fn for every plugin and logs failures. Hook errors never
// propagate to the caller.
func dispatch[T Plugin](ctx context.Context, r *Registry, hook string, plugins []T, fn func(T) error) {
	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return fn(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, l interface{}) {
	dispatch(ctx, r, "OnInit", snapshot(r, &r.onInit), func(p OnInit) error {
		return p.OnInit(ctx, l)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	dispatch(ctx, r, "OnShutdown", snapshot(r, &r.onShutdown), func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitTenantCreated emits a tenant created event.
func (r *Registry) EmitTenantCreated(ctx context.Context, t *tenant.Tenant) {
	dispatch(ctx, r, "OnTenantCreated", snapshot(r, &r.onTenantCreated), func(p OnTenantCreated) error {
		return p.OnTenantCreated(ctx, t)
	})
}

// EmitEntryOpened emits an entry opened event.
func (r *Registry) EmitEntryOpened(ctx context.Context, e *entry.Entry) {
	dispatch(ctx, r, "OnEntryOpened", snapshot(r, &r.onEntryOpened), func(p OnEntryOpened) error {
		return p.OnEntryOpened(ctx, e)
	})
}

// EmitDeposit emits a deposit event.
func (r *Registry) EmitDeposit(ctx context.Context, e *entry.Entry, amount uint64) {
	dispatch(ctx, r, "OnDeposit", snapshot(r, &r.onDeposit), func(p OnDeposit) error {
		return p.OnDeposit(ctx, e, amount)
	})
}

// EmitWithdraw emits a withdraw event.
func (r *Registry) EmitWithdraw(ctx context.Context, e *entry.Entry, amount uint64) {
	dispatch(ctx, r, "OnWithdraw", snapshot(r, &r.onWithdraw), func(p OnWithdraw) error {
		return p.OnWithdraw(ctx, e, amount)
	})
}

// EmitCredit emits a faucet credit event.
func (r *Registry) EmitCredit(ctx context.Context, wallet address.Address, amount, balance uint64) {
	dispatch(ctx, r, "OnCredit", snapshot(r, &r.onCredit), func(p OnCredit) error {
		return p.OnCredit(ctx, wallet, amount, balance)
	})
}

// EmitSessionStarted emits a session started event.
func (r *Registry) EmitSessionStarted(ctx context.Context, e *entry.Entry) {
	dispatch(ctx, r, "OnSessionStarted", snapshot(r, &r.onSessionStarted), func(p OnSessionStarted) error {
		return p.OnSessionStarted(ctx, e)
	})
}

// EmitSessionSettled emits a session settled event.
func (r *Registry) EmitSessionSettled(ctx context.Context, e *entry.Entry, fee, elapsedSeconds uint64, recipient address.Address) {
	dispatch(ctx, r, "OnSessionSettled", snapshot(r, &r.onSessionSettled), func(p OnSessionSettled) error {
		return p.OnSessionSettled(ctx, e, fee, elapsedSeconds, recipient)
	})
}

// EmitOperationCommitted emits an operation committed event.
func (r *Registry) EmitOperationCommitted(ctx context.Context, op string, elapsed time.Duration) {
	dispatch(ctx, r, "OnOperationCommitted", snapshot(r, &r.onCommitted), func(p OnOperationCommitted) error {
		return p.OnOperationCommitted(ctx, op, elapsed)
	})
}

// EmitOperationFailed emits an operation failed event.
func (r *Registry) EmitOperationFailed(ctx context.Context, op string, err error) {
	dispatch(ctx, r, "OnOperationFailed", snapshot(r, &r.onFailed), func(p OnOperationFailed) error {
		return p.OnOperationFailed(ctx, op, err)
	})
}

// EmitInvariantViolation emits an invariant violation event.
func (r *Registry) EmitInvariantViolation(ctx context.Context, op string, err error) {
	dispatch(ctx, r, "OnInvariantViolation", snapshot(r, &r.onInvariantViolation), func(p OnInvariantViolation) error {
		return p.OnInvariantViolation(ctx, op, err)
	})
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the settlement path.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
