// Package custody moves value between accounts under an explicit authority.
//
// On-curve wallets are debited by their signer. Derived accounts have no
// private key and are debited only with the derivation proof that reproduces
// their address.
package custody

import (
	"errors"
	"fmt"

	"github.com/xraph/parkledger/account"
	"github.com/xraph/parkledger/address"
	"github.com/xraph/parkledger/types"
)

var (
	ErrUnauthorized = errors.New("custody: authority does not cover source account")
	ErrInsufficient = errors.New("custody: insufficient value")
	ErrOverflow     = errors.New("custody: destination overflow")
	ErrSelfTransfer = errors.New("custody: source and destination are the same account")
)

// Authority grants the right to debit an account.
type Authority interface {
	Authorizes(a address.Address) bool
}

// Signer is the authority of an on-curve key over its own wallet.
type Signer address.Address

// Authorizes implements Authority.
func (s Signer) Authorizes(a address.Address) bool {
	return address.Address(s) == a && address.IsOnCurve(a)
}

var (
	_ Authority = Signer{}
	_ Authority = address.Proof{}
)

// Transfer moves amount from one account to another in memory. Both accounts
// are left untouched unless the transfer succeeds.
func Transfer(from, to *account.Account, amount uint64, auth Authority) error {
	if from.Address == to.Address {
		return ErrSelfTransfer
	}
	if auth == nil || !auth.Authorizes(from.Address) {
		return fmt.Errorf("%w: %s", ErrUnauthorized, from.Address)
	}
	debited, ok := types.CheckedSub(from.Lamports, amount)
	if !ok {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficient, from.Lamports, amount)
	}
	credited, ok := types.CheckedAdd(to.Lamports, amount)
	if !ok {
		return fmt.Errorf("%w: %d + %d", ErrOverflow, to.Lamports, amount)
	}
	from.Lamports = debited
	to.Lamports = credited
	return nil
}
