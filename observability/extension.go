// Package observability provides a metrics extension for parkledger that
// records custody and session event counts through a MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/parkledger"
	"github.com/xraph/parkledger/address"
	"github.com/xraph/parkledger/entry"
	"github.com/xraph/parkledger/plugin"
	"github.com/xraph/parkledger/tenant"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin               = (*MetricsExtension)(nil)
	_ plugin.OnInit               = (*MetricsExtension)(nil)
	_ plugin.OnTenantCreated      = (*MetricsExtension)(nil)
	_ plugin.OnEntryOpened        = (*MetricsExtension)(nil)
	_ plugin.OnDeposit            = (*MetricsExtension)(nil)
	_ plugin.OnWithdraw           = (*MetricsExtension)(nil)
	_ plugin.OnCredit             = (*MetricsExtension)(nil)
	_ plugin.OnSessionStarted     = (*MetricsExtension)(nil)
	_ plugin.OnSessionSettled     = (*MetricsExtension)(nil)
	_ plugin.OnOperationCommitted = (*MetricsExtension)(nil)
	_ plugin.OnOperationFailed    = (*MetricsExtension)(nil)
	_ plugin.OnInvariantViolation = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide ledger metrics.
// Register it as a parkledger plugin to track custody and parking activity.
type MetricsExtension struct {
	factory MetricFactory

	// Registry metrics
	TenantsCreated Counter
	EntriesOpened  Counter

	// Custody metrics
	Deposits        Counter
	DepositAmount   Histogram
	Withdrawals     Counter
	WithdrawnAmount Histogram
	Credits         Counter

	// Session metrics
	SessionsStarted Counter
	SessionsSettled Counter
	FreeSessions    Counter
	FeesCollected   Counter
	SessionDuration Histogram
	SessionFee      Histogram

	// Operation metrics
	OperationsCommitted Counter
	OperationLatency    Histogram
	OperationsFailed    Counter
	Conflicts           Counter
	InvariantViolations Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions or NewPrometheusFactory elsewhere.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		TenantsCreated: factory.Counter("parkledger.tenant.created"),
		EntriesOpened:  factory.Counter("parkledger.entry.opened"),

		Deposits:        factory.Counter("parkledger.vault.deposits"),
		DepositAmount:   factory.Histogram("parkledger.vault.deposit.amount"),
		Withdrawals:     factory.Counter("parkledger.vault.withdrawals"),
		WithdrawnAmount: factory.Histogram("parkledger.vault.withdraw.amount"),
		Credits:         factory.Counter("parkledger.wallet.credits"),

		SessionsStarted: factory.Counter("parkledger.session.started"),
		SessionsSettled: factory.Counter("parkledger.session.settled"),
		FreeSessions:    factory.Counter("parkledger.session.free"),
		FeesCollected:   factory.Counter("parkledger.session.fees"),
		SessionDuration: factory.Histogram("parkledger.session.duration_seconds"),
		SessionFee:      factory.Histogram("parkledger.session.fee"),

		OperationsCommitted: factory.Counter("parkledger.operation.committed"),
		OperationLatency:    factory.Histogram("parkledger.operation.latency_ms"),
		OperationsFailed:    factory.Counter("parkledger.operation.failed"),
		Conflicts:           factory.Counter("parkledger.operation.conflicts"),
		InvariantViolations: factory.Counter("parkledger.invariant.violations"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	return nil
}

// ──────────────────────────────────────────────────
// Registry hooks
// ──────────────────────────────────────────────────

// OnTenantCreated implements plugin.OnTenantCreated.
func (m *MetricsExtension) OnTenantCreated(_ context.Context, _ *tenant.Tenant) error {
	m.TenantsCreated.Inc()
	return nil
}

// OnEntryOpened implements plugin.OnEntryOpened.
func (m *MetricsExtension) OnEntryOpened(_ context.Context, _ *entry.Entry) error {
	m.EntriesOpened.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Custody hooks
// ──────────────────────────────────────────────────

// OnDeposit implements plugin.OnDeposit.
func (m *MetricsExtension) OnDeposit(_ context.Context, _ *entry.Entry, amount uint64) error {
	m.Deposits.Inc()
	m.DepositAmount.Observe(float64(amount))
	return nil
}

// OnWithdraw implements plugin.OnWithdraw.
func (m *MetricsExtension) OnWithdraw(_ context.Context, _ *entry.Entry, amount uint64) error {
	m.Withdrawals.Inc()
	m.WithdrawnAmount.Observe(float64(amount))
	return nil
}

// OnCredit implements plugin.OnCredit.
func (m *MetricsExtension) OnCredit(_ context.Context, _ address.Address, _, _ uint64) error {
	m.Credits.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Session hooks
// ──────────────────────────────────────────────────

// OnSessionStarted implements plugin.OnSessionStarted.
func (m *MetricsExtension) OnSessionStarted(_ context.Context, _ *entry.Entry) error {
	m.SessionsStarted.Inc()
	return nil
}

// OnSessionSettled implements plugin.OnSessionSettled.
func (m *MetricsExtension) OnSessionSettled(_ context.Context, _ *entry.Entry, fee, elapsedSeconds uint64, _ address.Address) error {
	m.SessionsSettled.Inc()
	m.SessionDuration.Observe(float64(elapsedSeconds))
	m.SessionFee.Observe(float64(fee))
	if fee == 0 {
		m.FreeSessions.Inc()
	} else {
		m.FeesCollected.Add(float64(fee))
	}
	return nil
}

// ──────────────────────────────────────────────────
// Operation hooks
// ──────────────────────────────────────────────────

// OnOperationCommitted implements plugin.OnOperationCommitted.
func (m *MetricsExtension) OnOperationCommitted(_ context.Context, _ string, elapsed time.Duration) error {
	m.OperationsCommitted.Inc()
	m.OperationLatency.Observe(float64(elapsed.Microseconds()) / 1000)
	return nil
}

// OnOperationFailed implements plugin.OnOperationFailed.
func (m *MetricsExtension) OnOperationFailed(_ context.Context, _ string, err error) error {
	m.OperationsFailed.Inc()
	if parkledger.IsRetryable(err) {
		m.Conflicts.Inc()
	}
	return nil
}

// OnInvariantViolation implements plugin.OnInvariantViolation.
func (m *MetricsExtension) OnInvariantViolation(_ context.Context, _ string, _ error) error {
	m.InvariantViolations.Inc()
	return nil
}
