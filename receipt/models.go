// Package receipt records the outcome of every committed ledger mutation.
package receipt

import (
	"time"

	"github.com/xraph/parkledger/address"
	"github.com/xraph/parkledger/id"
)

// Op names the operation that produced a receipt.
type Op string

const (
	OpCreateTenant Op = "create_tenant"
	OpOpenEntry    Op = "open_entry"
	OpDeposit      Op = "deposit"
	OpWithdraw     Op = "withdraw"
	OpStartSession Op = "start_session"
	OpExitSession  Op = "exit_session"
	OpCredit       Op = "credit"
)

// Receipt is an append-only settlement record. Account is the subject the
// receipt is filed under: the entry for session and transfer operations, the
// tenant for registrations and the wallet for credits.
type Receipt struct {
	ID           id.ReceiptID    `json:"id"`
	Op           Op              `json:"op"`
	Account      address.Address `json:"account"`
	Tenant       address.Address `json:"tenant"`
	Actor        address.Address `json:"actor"`
	Counterparty address.Address `json:"counterparty,omitempty"`
	Amount       uint64          `json:"amount"`
	Fee          uint64          `json:"fee"`
	Elapsed      uint64          `json:"elapsed_seconds"`
	BalanceAfter uint64          `json:"balance_after"`
	CreatedAt    time.Time       `json:"created_at"`
}

// New returns a receipt with a fresh ID.
func New(op Op, subject address.Address, at time.Time) *Receipt {
	return &Receipt{
		ID:        id.NewReceiptID(),
		Op:        op,
		Account:   subject,
		CreatedAt: at,
	}
}

type ListOpts struct {
	Op     Op
	Limit  int
	Offset int
}
