// Package instruction encodes ledger operations as account lists plus a
// tagged argument payload, so they can be submitted over the wire and
// dispatched with Ledger.Execute.
//
// Data is an 8-byte discriminator, sha256("global:" + name)[:8], followed by
// the arguments: strings as a u32 little-endian length and the bytes, amounts
// as u64 little-endian.
package instruction

import (
	"errors"
	"fmt"

	"github.com/xraph/parkledger/address"
	"github.com/xraph/parkledger/internal/layout"
)

// Op names an operation.
type Op string

const (
	OpCreateTenant Op = "create_tenant"
	OpOpenEntry    Op = "open_entry"
	OpDeposit      Op = "deposit"
	OpWithdraw     Op = "withdraw"
	OpStartSession Op = "start_session"
	OpExitSession  Op = "exit_session"
)

// Ops lists every operation in dispatch order.
var Ops = []Op{OpCreateTenant, OpOpenEntry, OpDeposit, OpWithdraw, OpStartSession, OpExitSession}

var (
	ErrUnknown   = errors.New("instruction: unknown discriminator")
	ErrMalformed = errors.New("instruction: malformed data")
)

var (
	discriminators  = make(map[Op]layout.Discriminator, len(Ops))
	byDiscriminator = make(map[layout.Discriminator]Op, len(Ops))
)

func init() {
	for _, op := range Ops {
		d := layout.NewDiscriminator("global", string(op))
		discriminators[op] = d
		byDiscriminator[d] = op
	}
}

// Discriminator returns the tag of op.
func Discriminator(op Op) (layout.Discriminator, bool) {
	d, ok := discriminators[op]
	return d, ok
}

// Meta describes one account passed to an instruction.
type Meta struct {
	Address  address.Address `json:"address"`
	Signer   bool            `json:"signer"`
	Writable bool            `json:"writable"`
}

// Instruction is an operation request.
type Instruction struct {
	Accounts []Meta `json:"accounts"`
	Data     []byte `json:"data"`
}

// Call is a decoded instruction payload.
type Call struct {
	Op     Op
	Name   string // create_tenant
	Plate  string // open_entry
	Amount uint64 // deposit, withdraw
}

// AccountCount returns the number of accounts op expects.
func AccountCount(op Op) int {
	switch op {
	case OpCreateTenant:
		return 2
	case OpOpenEntry, OpExitSession:
		return 4
	case OpDeposit, OpWithdraw:
		return 3
	case OpStartSession:
		return 2
	}
	return 0
}

// Encode serializes c.
func Encode(c Call) ([]byte, error) {
	d, ok := discriminators[c.Op]
	if !ok {
		return nil, fmt.Errorf("%w: op %q", ErrUnknown, c.Op)
	}
	w := layout.NewWriter(layout.DiscriminatorSize + 4 + len(c.Name) + len(c.Plate) + 8)
	w.Discriminator(d)
	switch c.Op {
	case OpCreateTenant:
		w.String(c.Name)
	case OpOpenEntry:
		w.String(c.Plate)
	case OpDeposit, OpWithdraw:
		w.U64(c.Amount)
	}
	return w.Bytes(), nil
}

// Decode parses instruction data. It rejects unknown discriminators, short
// payloads and trailing bytes.
func Decode(data []byte) (Call, error) {
	r := layout.NewReader(data)
	d := r.Discriminator()
	if err := r.Err(); err != nil {
		return Call{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	op, ok := byDiscriminator[d]
	if !ok {
		return Call{}, fmt.Errorf("%w: %x", ErrUnknown, d[:])
	}

	c := Call{Op: op}
	switch op {
	case OpCreateTenant:
		c.Name = r.String()
	case OpOpenEntry:
		c.Plate = r.String()
	case OpDeposit, OpWithdraw:
		c.Amount = r.U64()
	}
	if err := r.Finish(); err != nil {
		return Call{}, fmt.Errorf("%w: %s: %w", ErrMalformed, op, err)
	}
	return c, nil
}
