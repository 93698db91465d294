package audithook_test

import (
	"context"
	"crypto/ed25519"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/parkledger"
	"github.com/xraph/parkledger/address"
	audithook "github.com/xraph/parkledger/audit_hook"
	"github.com/xraph/parkledger/fee"
	"github.com/xraph/parkledger/store/memory"
)

type collector struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
}

func (c *collector) record(_ context.Context, e *audithook.AuditEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *collector) actions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.Action
	}
	return out
}

func (c *collector) find(action string) *audithook.AuditEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.events {
		if e.Action == action {
			return e
		}
	}
	return nil
}

func key(t *testing.T) address.Address {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	a, err := address.FromPublicKey(pub)
	require.NoError(t, err)
	return a
}

func TestExtensionRecordsLedgerActivity(t *testing.T) {
	ctx := context.Background()
	c := &collector{}
	ext := audithook.New(audithook.RecorderFunc(c.record))

	l := parkledger.New(memory.New(),
		parkledger.WithPlugin(ext),
		parkledger.WithFeePolicy(fee.PerMinute(100)),
	)

	admin, user, operator := key(t), key(t), key(t)

	tn, err := l.CreateTenant(ctx, admin, "Harbour Lot")
	require.NoError(t, err)
	_, err = l.OpenEntry(ctx, tn.Address, user, "MH-12-XY-9876")
	require.NoError(t, err)
	_, err = l.Credit(ctx, user, 1_000_000)
	require.NoError(t, err)
	_, err = l.Deposit(ctx, tn.Address, user, 5_000)
	require.NoError(t, err)
	_, err = l.StartSession(ctx, tn.Address, user)
	require.NoError(t, err)
	_, err = l.ExitSession(ctx, tn.Address, user, operator)
	require.NoError(t, err)
	_, err = l.Withdraw(ctx, tn.Address, user, 1_000)
	require.NoError(t, err)

	// The vault only holds what is left of the deposit.
	_, err = l.Withdraw(ctx, tn.Address, user, 1_000_000)
	require.Error(t, err)

	assert.Equal(t, []string{
		audithook.ActionTenantCreated,
		audithook.ActionEntryOpened,
		audithook.ActionCredit,
		audithook.ActionDeposit,
		audithook.ActionSessionStarted,
		audithook.ActionSessionSettled,
		audithook.ActionWithdraw,
		audithook.ActionOperationRejected,
	}, c.actions())

	created := c.find(audithook.ActionTenantCreated)
	require.NotNil(t, created)
	assert.Equal(t, audithook.ResourceTenant, created.Resource)
	assert.Equal(t, tn.Address.String(), created.ResourceID)
	assert.Equal(t, "Harbour Lot", created.Metadata["name"])
	assert.Equal(t, audithook.OutcomeSuccess, created.Outcome)

	dep := c.find(audithook.ActionDeposit)
	require.NotNil(t, dep)
	assert.Equal(t, audithook.CategoryCustody, dep.Category)
	assert.Equal(t, uint64(5_000), dep.Metadata["amount"])

	settled := c.find(audithook.ActionSessionSettled)
	require.NotNil(t, settled)
	assert.Equal(t, operator.String(), settled.Metadata["recipient"])

	rejected := c.find(audithook.ActionOperationRejected)
	require.NotNil(t, rejected)
	assert.Equal(t, audithook.OutcomeFailure, rejected.Outcome)
	assert.Equal(t, audithook.SeverityWarning, rejected.Severity)
	assert.NotEmpty(t, rejected.Reason)
	assert.Equal(t, "withdraw", rejected.ResourceID)
}

func TestEnabledActions(t *testing.T) {
	ctx := context.Background()
	c := &collector{}
	ext := audithook.New(audithook.RecorderFunc(c.record),
		audithook.WithEnabledActions(audithook.ActionCredit),
	)

	wallet := key(t)
	require.NoError(t, ext.OnCredit(ctx, wallet, 10, 10))
	require.NoError(t, ext.OnOperationFailed(ctx, "deposit", errors.New("boom")))

	assert.Equal(t, []string{audithook.ActionCredit}, c.actions())
	assert.Equal(t, wallet.String(), c.events[0].ResourceID)
}

func TestDisabledActions(t *testing.T) {
	ctx := context.Background()
	c := &collector{}
	ext := audithook.New(audithook.RecorderFunc(c.record),
		audithook.WithDisabledActions(audithook.ActionOperationRejected),
	)

	require.NoError(t, ext.OnOperationFailed(ctx, "deposit", errors.New("boom")))
	require.NoError(t, ext.OnInvariantViolation(ctx, "exit_session", errors.New("vault drift")))

	assert.Equal(t, []string{audithook.ActionInvariantViolation}, c.actions())
	evt := c.events[0]
	assert.Equal(t, audithook.SeverityCritical, evt.Severity)
	assert.Equal(t, audithook.CategoryIntegrity, evt.Category)
	assert.Equal(t, "vault drift", evt.Reason)
}

func TestRecorderErrorsAreSwallowed(t *testing.T) {
	ext := audithook.New(audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("sink offline")
	}))
	assert.NoError(t, ext.OnCredit(context.Background(), key(t), 1, 1))
	assert.Equal(t, "audit-hook", ext.Name())
}
