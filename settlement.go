package parkledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/parkledger/account"
	"github.com/xraph/parkledger/address"
	"github.com/xraph/parkledger/entry"
	"github.com/xraph/parkledger/fee"
	"github.com/xraph/parkledger/internal/custody"
	"github.com/xraph/parkledger/receipt"
	"github.com/xraph/parkledger/store"
	"github.com/xraph/parkledger/types"
)

// Settlement is the outcome of ExitSession.
type Settlement struct {
	Entry     *entry.Entry    `json:"entry"`
	Fee       uint64          `json:"fee"`
	Elapsed   uint64          `json:"elapsed_seconds"`
	Recipient address.Address `json:"recipient"`
}

// ──────────────────────────────────────────────────
// Deposits and withdrawals
// ──────────────────────────────────────────────────

// Deposit moves amount from user's wallet into the vault of their entry at
// tenantAddr and credits the entry balance by the same amount.
func (l *Ledger) Deposit(ctx context.Context, tenantAddr, user address.Address, amount uint64) (*entry.Entry, error) {
	const op = receipt.OpDeposit
	started := time.Now()

	if amount == 0 {
		return nil, l.fail(ctx, op, ErrInvalidDepositAmount)
	}

	keys, err := l.pair(tenantAddr, user)
	if err != nil {
		return nil, l.fail(ctx, op, err)
	}

	unlock := l.locks.lock(keys.entry, keys.vault, user)
	defer unlock()

	e, entryAcct, vault, err := l.loadPair(ctx, keys)
	if err != nil {
		return nil, l.fail(ctx, op, err)
	}

	balance, ok := types.CheckedAdd(e.Balance, amount)
	if !ok {
		return nil, l.fail(ctx, op, fmt.Errorf("%w: balance %d + %d", ErrArithmeticOverflow, e.Balance, amount))
	}
	if _, ok := types.CheckedAdd(vault.Lamports, amount); !ok {
		return nil, l.fail(ctx, op, fmt.Errorf("%w: vault %d + %d", ErrArithmeticOverflow, vault.Lamports, amount))
	}

	now := l.now()
	wallet, err := l.loadWallet(ctx, user, now)
	if err != nil {
		return nil, l.fail(ctx, op, err)
	}
	if wallet.Lamports < amount {
		return nil, l.fail(ctx, op, fmt.Errorf("%w: wallet %s holds %d, deposit %d", ErrInsufficientFunds, user, wallet.Lamports, amount))
	}

	if err := custody.Transfer(wallet, vault, amount, custody.Signer(user)); err != nil {
		return nil, l.fail(ctx, op, custodyErr(err))
	}
	e.Balance = balance

	if err := checkBalance(e, vault); err != nil {
		return nil, l.fail(ctx, op, err)
	}

	var cs store.ChangeSet
	l.stage(&cs, now, entryAcct, e, vault, wallet)

	r := receipt.New(op, keys.entry, now)
	r.Tenant = tenantAddr
	r.Actor = user
	r.Amount = amount
	r.BalanceAfter = e.Balance
	cs.AddReceipt(r)

	if err := l.commit(ctx, op, &cs, started); err != nil {
		return nil, l.fail(ctx, op, err)
	}

	l.plugins.EmitDeposit(ctx, e, amount)
	l.logger.Debug("deposit settled",
		"entry", keys.entry,
		"amount", amount,
		"balance", e.Balance,
	)

	return e, nil
}

// Withdraw returns amount from the vault to user's wallet. Withdrawals are
// refused while a session is open so the pending fee stays covered.
func (l *Ledger) Withdraw(ctx context.Context, tenantAddr, user address.Address, amount uint64) (*entry.Entry, error) {
	const op = receipt.OpWithdraw
	started := time.Now()

	if amount == 0 {
		return nil, l.fail(ctx, op, ErrInvalidWithdrawAmount)
	}

	keys, err := l.pair(tenantAddr, user)
	if err != nil {
		return nil, l.fail(ctx, op, err)
	}

	unlock := l.locks.lock(keys.entry, keys.vault, user)
	defer unlock()

	e, entryAcct, vault, err := l.loadPair(ctx, keys)
	if err != nil {
		return nil, l.fail(ctx, op, err)
	}
	if e.Parked {
		return nil, l.fail(ctx, op, fmt.Errorf("%w: withdraw during session", ErrAlreadyParked))
	}
	if amount > vault.Lamports {
		return nil, l.fail(ctx, op, fmt.Errorf("%w: vault holds %d, withdraw %d", ErrInsufficientVaultBalance, vault.Lamports, amount))
	}
	balance, ok := types.CheckedSub(e.Balance, amount)
	if !ok {
		return nil, l.fail(ctx, op, fmt.Errorf("%w: balance %d - %d", ErrArithmeticUnderflow, e.Balance, amount))
	}

	now := l.now()
	wallet, err := l.loadWallet(ctx, user, now)
	if err != nil {
		return nil, l.fail(ctx, op, err)
	}

	proof, err := l.vaultProof(e)
	if err != nil {
		return nil, l.fail(ctx, op, err)
	}
	if err := custody.Transfer(vault, wallet, amount, proof); err != nil {
		return nil, l.fail(ctx, op, custodyErr(err))
	}
	e.Balance = balance

	if err := checkBalance(e, vault); err != nil {
		return nil, l.fail(ctx, op, err)
	}

	var cs store.ChangeSet
	l.stage(&cs, now, entryAcct, e, vault, wallet)

	r := receipt.New(op, keys.entry, now)
	r.Tenant = tenantAddr
	r.Actor = user
	r.Counterparty = user
	r.Amount = amount
	r.BalanceAfter = e.Balance
	cs.AddReceipt(r)

	if err := l.commit(ctx, op, &cs, started); err != nil {
		return nil, l.fail(ctx, op, err)
	}

	l.plugins.EmitWithdraw(ctx, e, amount)
	l.logger.Debug("withdrawal settled",
		"entry", keys.entry,
		"amount", amount,
		"balance", e.Balance,
	)

	return e, nil
}

// ──────────────────────────────────────────────────
// Parking sessions
// ──────────────────────────────────────────────────

// StartSession opens a parking session on the entry of user at tenantAddr.
func (l *Ledger) StartSession(ctx context.Context, tenantAddr, user address.Address) (*entry.Entry, error) {
	const op = receipt.OpStartSession
	started := time.Now()

	keys, err := l.pair(tenantAddr, user)
	if err != nil {
		return nil, l.fail(ctx, op, err)
	}

	unlock := l.locks.lock(keys.entry)
	defer unlock()

	e, entryAcct, err := l.loadEntry(ctx, keys.entry)
	if err != nil {
		return nil, l.fail(ctx, op, err)
	}
	if e.Parked {
		return nil, l.fail(ctx, op, fmt.Errorf("%w: since %s", ErrAlreadyParked, e.SessionStartTime()))
	}

	now := l.now()
	e.SessionStart = now.Unix()
	e.Parked = true

	var cs store.ChangeSet
	l.stage(&cs, now, entryAcct, e)

	r := receipt.New(op, keys.entry, now)
	r.Tenant = tenantAddr
	r.Actor = user
	r.BalanceAfter = e.Balance
	cs.AddReceipt(r)

	if err := l.commit(ctx, op, &cs, started); err != nil {
		return nil, l.fail(ctx, op, err)
	}

	l.plugins.EmitSessionStarted(ctx, e)
	l.logger.Debug("session started",
		"entry", keys.entry,
		"at", now,
	)

	return e, nil
}

// ExitSession closes the open session on the entry of user at tenantAddr,
// charges the fee for the elapsed time and forwards it from the vault to
// feeRecipient. The recipient must be an on-curve wallet address.
func (l *Ledger) ExitSession(ctx context.Context, tenantAddr, user, feeRecipient address.Address) (*Settlement, error) {
	const op = receipt.OpExitSession
	started := time.Now()

	if !address.IsOnCurve(feeRecipient) {
		return nil, l.fail(ctx, op, fmt.Errorf("%w: %s is a derived address", ErrInvalidRecipient, feeRecipient))
	}

	keys, err := l.pair(tenantAddr, user)
	if err != nil {
		return nil, l.fail(ctx, op, err)
	}

	unlock := l.locks.lock(keys.entry, keys.vault, feeRecipient)
	defer unlock()

	e, entryAcct, vault, err := l.loadPair(ctx, keys)
	if err != nil {
		return nil, l.fail(ctx, op, err)
	}
	if !e.Parked {
		return nil, l.fail(ctx, op, ErrNotCurrentlyParked)
	}

	now := l.now()
	if now.Unix() < e.SessionStart {
		return nil, l.fail(ctx, op, fmt.Errorf("%w: exit at %d before start at %d", ErrInvalidParkingDuration, now.Unix(), e.SessionStart))
	}
	elapsed := uint64(now.Unix() - e.SessionStart)

	charge, err := l.policy.Fee(elapsed)
	if err != nil {
		if errors.Is(err, fee.ErrOverflow) {
			err = fmt.Errorf("%w: %w", ErrArithmeticOverflow, err)
		}
		return nil, l.fail(ctx, op, err)
	}

	var dest *account.Account
	if charge > 0 {
		if charge > vault.Lamports {
			return nil, l.fail(ctx, op, fmt.Errorf("%w: fee %d, vault holds %d", ErrInsufficientVaultBalance, charge, vault.Lamports))
		}
		balance, ok := types.CheckedSub(e.Balance, charge)
		if !ok {
			return nil, l.fail(ctx, op, fmt.Errorf("%w: balance %d - fee %d", ErrArithmeticUnderflow, e.Balance, charge))
		}

		dest, err = l.loadWallet(ctx, feeRecipient, now)
		if err != nil {
			return nil, l.fail(ctx, op, err)
		}
		proof, err := l.vaultProof(e)
		if err != nil {
			return nil, l.fail(ctx, op, err)
		}
		if err := custody.Transfer(vault, dest, charge, proof); err != nil {
			return nil, l.fail(ctx, op, custodyErr(err))
		}
		e.Balance = balance
	}

	e.Parked = false
	e.SessionStart = now.Unix()

	if err := checkBalance(e, vault); err != nil {
		return nil, l.fail(ctx, op, err)
	}

	var cs store.ChangeSet
	if dest != nil {
		l.stage(&cs, now, entryAcct, e, vault, dest)
	} else {
		l.stage(&cs, now, entryAcct, e)
	}

	r := receipt.New(op, keys.entry, now)
	r.Tenant = tenantAddr
	r.Actor = user
	r.Counterparty = feeRecipient
	r.Fee = charge
	r.Elapsed = elapsed
	r.BalanceAfter = e.Balance
	cs.AddReceipt(r)

	if err := l.commit(ctx, op, &cs, started); err != nil {
		return nil, l.fail(ctx, op, err)
	}

	l.plugins.EmitSessionSettled(ctx, e, charge, elapsed, feeRecipient)
	l.logger.Debug("session settled",
		"entry", keys.entry,
		"elapsed_s", elapsed,
		"fee", charge,
		"recipient", feeRecipient,
		"balance", e.Balance,
	)

	return &Settlement{
		Entry:     e,
		Fee:       charge,
		Elapsed:   elapsed,
		Recipient: feeRecipient,
	}, nil
}

// ──────────────────────────────────────────────────
// Faucet
// ──────────────────────────────────────────────────

// Credit adds amount to the wallet at addr and returns the new balance.
// Derived addresses cannot be credited directly.
func (l *Ledger) Credit(ctx context.Context, addr address.Address, amount uint64) (uint64, error) {
	const op = receipt.OpCredit
	started := time.Now()

	if amount == 0 {
		return 0, l.fail(ctx, op, ErrInvalidDepositAmount)
	}
	if !address.IsOnCurve(addr) {
		return 0, l.fail(ctx, op, fmt.Errorf("%w: %s is a derived address", ErrInvalidRecipient, addr))
	}

	unlock := l.locks.lock(addr)
	defer unlock()

	now := l.now()
	wallet, err := l.loadWallet(ctx, addr, now)
	if err != nil {
		return 0, l.fail(ctx, op, err)
	}
	balance, ok := types.CheckedAdd(wallet.Lamports, amount)
	if !ok {
		return 0, l.fail(ctx, op, fmt.Errorf("%w: wallet %d + %d", ErrArithmeticOverflow, wallet.Lamports, amount))
	}
	wallet.Lamports = balance
	wallet.Touch(now)

	var cs store.ChangeSet
	cs.Put(wallet)

	r := receipt.New(op, addr, now)
	r.Actor = addr
	r.Amount = amount
	r.BalanceAfter = balance
	cs.AddReceipt(r)

	if err := l.commit(ctx, op, &cs, started); err != nil {
		return 0, l.fail(ctx, op, err)
	}

	l.plugins.EmitCredit(ctx, addr, amount, balance)
	return balance, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// loadPair loads an entry together with its vault.
func (l *Ledger) loadPair(ctx context.Context, keys pair) (*entry.Entry, *account.Account, *account.Account, error) {
	e, entryAcct, err := l.loadEntry(ctx, keys.entry)
	if err != nil {
		return nil, nil, nil, err
	}
	if e.Owner != keys.user || e.Tenant != keys.tenant || e.Vault != keys.vault {
		return nil, nil, nil, fmt.Errorf("%w: entry %s does not belong to user %s", ErrInvalidRecord, keys.entry, keys.user)
	}
	vault, err := l.load(ctx, keys.vault, account.KindVault)
	if err != nil {
		return nil, nil, nil, err
	}
	return e, entryAcct, vault, nil
}

// stage re-encodes e into its account and schedules it plus every value
// account touched by the operation.
func (l *Ledger) stage(cs *store.ChangeSet, now time.Time, entryAcct *account.Account, e *entry.Entry, touched ...*account.Account) {
	entryAcct.Data = e.Encode()
	entryAcct.Touch(now)
	cs.Update(entryAcct)
	for _, a := range touched {
		a.Touch(now)
		cs.Put(a)
	}
}

// custodyErr maps a transfer failure onto the error taxonomy. Callers check
// every precondition first, so these only surface on corrupted state.
func custodyErr(err error) error {
	switch {
	case errors.Is(err, custody.ErrInsufficient):
		return fmt.Errorf("%w: %w", ErrArithmeticUnderflow, err)
	case errors.Is(err, custody.ErrOverflow):
		return fmt.Errorf("%w: %w", ErrArithmeticOverflow, err)
	case errors.Is(err, custody.ErrUnauthorized):
		return fmt.Errorf("%w: %w", ErrMissingSigner, err)
	case errors.Is(err, custody.ErrSelfTransfer):
		return fmt.Errorf("%w: %w", ErrInvalidRecipient, err)
	}
	return err
}
