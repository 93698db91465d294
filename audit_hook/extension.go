// Package audithook bridges parkledger events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import any
// audit backend directly. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/parkledger/address"
	"github.com/xraph/parkledger/entry"
	"github.com/xraph/parkledger/plugin"
	"github.com/xraph/parkledger/tenant"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin               = (*Extension)(nil)
	_ plugin.OnTenantCreated      = (*Extension)(nil)
	_ plugin.OnEntryOpened        = (*Extension)(nil)
	_ plugin.OnDeposit            = (*Extension)(nil)
	_ plugin.OnWithdraw           = (*Extension)(nil)
	_ plugin.OnCredit             = (*Extension)(nil)
	_ plugin.OnSessionStarted     = (*Extension)(nil)
	_ plugin.OnSessionSettled     = (*Extension)(nil)
	_ plugin.OnOperationFailed    = (*Extension)(nil)
	_ plugin.OnInvariantViolation = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges parkledger events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Registry hooks
// ──────────────────────────────────────────────────

// OnTenantCreated implements plugin.OnTenantCreated.
func (e *Extension) OnTenantCreated(ctx context.Context, t *tenant.Tenant) error {
	return e.record(ctx, ActionTenantCreated, SeverityInfo, OutcomeSuccess,
		ResourceTenant, t.Address.String(), CategoryRegistry, nil,
		"admin", t.Admin.String(),
		"name", t.Name,
	)
}

// OnEntryOpened implements plugin.OnEntryOpened.
func (e *Extension) OnEntryOpened(ctx context.Context, en *entry.Entry) error {
	return e.record(ctx, ActionEntryOpened, SeverityInfo, OutcomeSuccess,
		ResourceEntry, en.Address.String(), CategoryRegistry, nil,
		"tenant", en.Tenant.String(),
		"owner", en.Owner.String(),
		"vault", en.Vault.String(),
		"plate", en.Plate,
	)
}

// ──────────────────────────────────────────────────
// Value hooks
// ──────────────────────────────────────────────────

// OnDeposit implements plugin.OnDeposit.
func (e *Extension) OnDeposit(ctx context.Context, en *entry.Entry, amount uint64) error {
	return e.record(ctx, ActionDeposit, SeverityInfo, OutcomeSuccess,
		ResourceEntry, en.Address.String(), CategoryCustody, nil,
		"owner", en.Owner.String(),
		"amount", amount,
		"balance", en.Balance,
	)
}

// OnWithdraw implements plugin.OnWithdraw.
func (e *Extension) OnWithdraw(ctx context.Context, en *entry.Entry, amount uint64) error {
	return e.record(ctx, ActionWithdraw, SeverityInfo, OutcomeSuccess,
		ResourceEntry, en.Address.String(), CategoryCustody, nil,
		"owner", en.Owner.String(),
		"amount", amount,
		"balance", en.Balance,
	)
}

// OnCredit implements plugin.OnCredit.
func (e *Extension) OnCredit(ctx context.Context, wallet address.Address, amount, balance uint64) error {
	return e.record(ctx, ActionCredit, SeverityWarning, OutcomeSuccess,
		ResourceWallet, wallet.String(), CategoryCustody, nil,
		"amount", amount,
		"balance", balance,
	)
}

// ──────────────────────────────────────────────────
// Session hooks
// ──────────────────────────────────────────────────

// OnSessionStarted implements plugin.OnSessionStarted.
func (e *Extension) OnSessionStarted(ctx context.Context, en *entry.Entry) error {
	return e.record(ctx, ActionSessionStarted, SeverityInfo, OutcomeSuccess,
		ResourceSession, en.Address.String(), CategoryParking, nil,
		"plate", en.Plate,
		"started_at", en.SessionStart,
	)
}

// OnSessionSettled implements plugin.OnSessionSettled.
func (e *Extension) OnSessionSettled(ctx context.Context, en *entry.Entry, fee, elapsedSeconds uint64, recipient address.Address) error {
	return e.record(ctx, ActionSessionSettled, SeverityInfo, OutcomeSuccess,
		ResourceSession, en.Address.String(), CategoryParking, nil,
		"plate", en.Plate,
		"fee", fee,
		"elapsed_seconds", elapsedSeconds,
		"recipient", recipient.String(),
		"balance", en.Balance,
	)
}

// ──────────────────────────────────────────────────
// Failure hooks
// ──────────────────────────────────────────────────

// OnOperationFailed implements plugin.OnOperationFailed.
func (e *Extension) OnOperationFailed(ctx context.Context, op string, err error) error {
	return e.record(ctx, ActionOperationRejected, SeverityWarning, OutcomeFailure,
		ResourceLedger, op, CategoryRegistry, err,
		"op", op,
	)
}

// OnInvariantViolation implements plugin.OnInvariantViolation.
func (e *Extension) OnInvariantViolation(ctx context.Context, op string, err error) error {
	return e.record(ctx, ActionInvariantViolation, SeverityCritical, OutcomeFailure,
		ResourceLedger, op, CategoryIntegrity, err,
		"op", op,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
