package parkledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/parkledger/address"
	"github.com/xraph/parkledger/entry"
	"github.com/xraph/parkledger/instruction"
	"github.com/xraph/parkledger/receipt"
	"github.com/xraph/parkledger/tenant"
)

// Result is the outcome of an executed instruction. Exactly one of the
// record fields is set, depending on Op.
type Result struct {
	Op         instruction.Op `json:"op"`
	Tenant     *tenant.Tenant `json:"tenant,omitempty"`
	Entry      *entry.Entry   `json:"entry,omitempty"`
	Settlement *Settlement    `json:"settlement,omitempty"`
}

// Execute decodes ix, checks its account list against the derived addresses
// and dispatches it to the matching operation.
//
// The first account is always the signing user or admin. Entry operations
// name the entry account, whose stored tenant is used to re-derive and
// verify the entry and vault addresses.
func (l *Ledger) Execute(ctx context.Context, ix instruction.Instruction) (*Result, error) {
	call, err := instruction.Decode(ix.Data)
	if err != nil {
		if errors.Is(err, instruction.ErrUnknown) {
			return nil, l.fail(ctx, "execute", fmt.Errorf("%w: %w", ErrUnknownInstruction, err))
		}
		return nil, l.fail(ctx, "execute", fmt.Errorf("%w: %w", ErrMalformedInstruction, err))
	}

	op := receipt.Op(call.Op)
	metas := ix.Accounts
	if want := instruction.AccountCount(call.Op); len(metas) != want {
		return nil, l.fail(ctx, op, fmt.Errorf("%w: %s takes %d accounts, got %d", ErrMalformedInstruction, call.Op, want, len(metas)))
	}
	if !metas[0].Signer {
		return nil, l.fail(ctx, op, fmt.Errorf("%w: %s", ErrMissingSigner, metas[0].Address))
	}
	signer := metas[0].Address
	res := &Result{Op: call.Op}

	switch call.Op {
	case instruction.OpCreateTenant:
		want, _, err := address.Derive(l.program, address.DomainTenant, signer)
		if err != nil {
			return nil, l.fail(ctx, op, err)
		}
		if err := expect(metas, 1, want, true); err != nil {
			return nil, l.fail(ctx, op, err)
		}
		res.Tenant, err = l.CreateTenant(ctx, signer, call.Name)
		if err != nil {
			return nil, err
		}

	case instruction.OpOpenEntry:
		tenantAddr := metas[1].Address
		keys, err := l.pair(tenantAddr, signer)
		if err != nil {
			return nil, l.fail(ctx, op, err)
		}
		if err := expectPair(metas, 2, 3, keys); err != nil {
			return nil, l.fail(ctx, op, err)
		}
		res.Entry, err = l.OpenEntry(ctx, tenantAddr, signer, call.Plate)
		if err != nil {
			return nil, err
		}

	case instruction.OpDeposit, instruction.OpWithdraw, instruction.OpExitSession:
		keys, err := l.resolve(ctx, metas[2].Address, signer)
		if err != nil {
			return nil, l.fail(ctx, op, err)
		}
		if err := expectPair(metas, 2, 1, keys); err != nil {
			return nil, l.fail(ctx, op, err)
		}

		switch call.Op {
		case instruction.OpDeposit:
			res.Entry, err = l.Deposit(ctx, keys.tenant, signer, call.Amount)
		case instruction.OpWithdraw:
			res.Entry, err = l.Withdraw(ctx, keys.tenant, signer, call.Amount)
		default:
			if !metas[3].Writable {
				return nil, l.fail(ctx, op, fmt.Errorf("%w: fee recipient must be writable", ErrMalformedInstruction))
			}
			res.Settlement, err = l.ExitSession(ctx, keys.tenant, signer, metas[3].Address)
		}
		if err != nil {
			return nil, err
		}

	case instruction.OpStartSession:
		keys, err := l.resolve(ctx, metas[1].Address, signer)
		if err != nil {
			return nil, l.fail(ctx, op, err)
		}
		if err := expect(metas, 1, keys.entry, true); err != nil {
			return nil, l.fail(ctx, op, err)
		}
		res.Entry, err = l.StartSession(ctx, keys.tenant, signer)
		if err != nil {
			return nil, err
		}
	}

	return res, nil
}

// resolve reads the tenant recorded in the entry at entryAddr and derives the
// (tenant, user) addresses from it.
func (l *Ledger) resolve(ctx context.Context, entryAddr, user address.Address) (pair, error) {
	e, _, err := l.loadEntry(ctx, entryAddr)
	if err != nil {
		return pair{}, err
	}
	return l.pair(e.Tenant, user)
}

func expect(metas []instruction.Meta, i int, want address.Address, writable bool) error {
	m := metas[i]
	if m.Address != want {
		return fmt.Errorf("%w: account %d is %s, want %s", ErrAccountMismatch, i, m.Address, want)
	}
	if writable && !m.Writable {
		return fmt.Errorf("%w: account %d must be writable", ErrMalformedInstruction, i)
	}
	return nil
}

func expectPair(metas []instruction.Meta, entryIdx, vaultIdx int, keys pair) error {
	if err := expect(metas, entryIdx, keys.entry, true); err != nil {
		return err
	}
	return expect(metas, vaultIdx, keys.vault, true)
}
