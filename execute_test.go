package parkledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/parkledger"
	"github.com/xraph/parkledger/instruction"
)

func TestExecuteRoundTrip(t *testing.T) {
	f := setup(t)
	program := f.l.Program()
	admin, user := newKey(t), newKey(t)

	_, err := f.l.Credit(f.ctx, user, 1_000_000)
	require.NoError(t, err)

	ix, err := instruction.CreateTenant(program, admin, "North Lot")
	require.NoError(t, err)
	res, err := f.l.Execute(f.ctx, ix)
	require.NoError(t, err)
	require.NotNil(t, res.Tenant)
	assert.Equal(t, instruction.OpCreateTenant, res.Op)
	tenantAddr := res.Tenant.Address

	ix, err = instruction.OpenEntry(program, tenantAddr, user, "MH-12-XY-9999")
	require.NoError(t, err)
	res, err = f.l.Execute(f.ctx, ix)
	require.NoError(t, err)
	require.NotNil(t, res.Entry)
	assert.Equal(t, "MH-12-XY-9999", res.Entry.Plate)

	ix, err = instruction.Deposit(program, tenantAddr, user, 10_000)
	require.NoError(t, err)
	res, err = f.l.Execute(f.ctx, ix)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000), res.Entry.Balance)

	ix, err = instruction.StartSession(program, tenantAddr, user)
	require.NoError(t, err)
	res, err = f.l.Execute(f.ctx, ix)
	require.NoError(t, err)
	assert.True(t, res.Entry.Parked)

	f.clock.Advance(5 * time.Minute)

	ix, err = instruction.ExitSession(program, tenantAddr, user, admin)
	require.NoError(t, err)
	res, err = f.l.Execute(f.ctx, ix)
	require.NoError(t, err)
	require.NotNil(t, res.Settlement)
	assert.Equal(t, uint64(500), res.Settlement.Fee)
	assert.Equal(t, uint64(500), f.balance(t, admin))

	ix, err = instruction.Withdraw(program, tenantAddr, user, 9_500)
	require.NoError(t, err)
	res, err = f.l.Execute(f.ctx, ix)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), res.Entry.Balance)
	assert.Equal(t, uint64(1_000_000-500), f.balance(t, user))
}

func TestExecuteRejections(t *testing.T) {
	f := setup(t)
	program := f.l.Program()

	deposit := func(t *testing.T) instruction.Instruction {
		t.Helper()
		ix, err := instruction.Deposit(program, f.tenant.Address, f.user, 100)
		require.NoError(t, err)
		return ix
	}

	t.Run("MissingSigner", func(t *testing.T) {
		ix := deposit(t)
		ix.Accounts[0].Signer = false
		_, err := f.l.Execute(f.ctx, ix)
		require.ErrorIs(t, err, parkledger.ErrMissingSigner)
	})

	t.Run("SwappedVault", func(t *testing.T) {
		ix := deposit(t)
		ix.Accounts[1].Address = newKey(t)
		_, err := f.l.Execute(f.ctx, ix)
		require.ErrorIs(t, err, parkledger.ErrAccountMismatch)
	})

	t.Run("ForeignSigner", func(t *testing.T) {
		ix := deposit(t)
		ix.Accounts[0].Address = newKey(t)
		_, err := f.l.Execute(f.ctx, ix)
		require.ErrorIs(t, err, parkledger.ErrAccountMismatch)
	})

	t.Run("ReadonlyEntry", func(t *testing.T) {
		ix := deposit(t)
		ix.Accounts[2].Writable = false
		_, err := f.l.Execute(f.ctx, ix)
		require.ErrorIs(t, err, parkledger.ErrMalformedInstruction)
	})

	t.Run("WrongAccountCount", func(t *testing.T) {
		ix := deposit(t)
		ix.Accounts = ix.Accounts[:2]
		_, err := f.l.Execute(f.ctx, ix)
		require.ErrorIs(t, err, parkledger.ErrMalformedInstruction)
	})

	t.Run("TruncatedData", func(t *testing.T) {
		ix := deposit(t)
		ix.Data = ix.Data[:10]
		_, err := f.l.Execute(f.ctx, ix)
		require.ErrorIs(t, err, parkledger.ErrMalformedInstruction)
	})

	t.Run("UnknownDiscriminator", func(t *testing.T) {
		ix := deposit(t)
		ix.Data = append([]byte{0xde, 0xad, 0xbe, 0xef, 0, 0, 0, 0}, ix.Data[8:]...)
		_, err := f.l.Execute(f.ctx, ix)
		require.ErrorIs(t, err, parkledger.ErrUnknownInstruction)
		assert.Equal(t, "UnknownInstruction", parkledger.Code(err))
	})

	t.Run("ReadonlyRecipient", func(t *testing.T) {
		ix, err := instruction.ExitSession(program, f.tenant.Address, f.user, f.operator)
		require.NoError(t, err)
		ix.Accounts[3].Writable = false
		_, err = f.l.Execute(f.ctx, ix)
		require.ErrorIs(t, err, parkledger.ErrMalformedInstruction)
	})

	assert.Equal(t, uint64(0), f.assertConsistent(t).Balance)
}
