// Package entry defines the per-(tenant, user) ledger entry record.
package entry

import (
	"fmt"
	"time"

	"github.com/xraph/parkledger/address"
	"github.com/xraph/parkledger/internal/layout"
)

// PlateSize is the width of the stored licence plate. Longer plates are truncated.
const PlateSize = 16

// Size is the encoded record length including the discriminator.
const Size = layout.DiscriminatorSize + 2*address.Size + 8 + 1 + 8 + 1 + 1 + PlateSize

// Discriminator tags encoded entry records.
var Discriminator = layout.NewDiscriminator("account", "User")

// State is the session state of an entry.
type State string

const (
	StateIdle   State = "idle"
	StateParked State = "parked"
)

// Entry tracks one user's balance and parking session at one tenant.
// Balance always equals the value held by the paired vault.
type Entry struct {
	Address      address.Address `json:"address"`
	Vault        address.Address `json:"vault"`
	Owner        address.Address `json:"owner"`
	Tenant       address.Address `json:"tenant"`
	SessionStart int64           `json:"session_start"`
	Parked       bool            `json:"parked"`
	Balance      uint64          `json:"balance"`
	VaultBump    uint8           `json:"vault_bump"`
	EntryBump    uint8           `json:"entry_bump"`
	Plate        string          `json:"plate"`
}

// TruncatePlate returns plate as the record reads it back: cut to PlateSize
// bytes with trailing zero bytes removed.
func TruncatePlate(plate string) string {
	if len(plate) > PlateSize {
		plate = plate[:PlateSize]
	}
	return string(layout.TrimZero([]byte(plate)))
}

// State reports whether a session is open.
func (e *Entry) State() State {
	if e.Parked {
		return StateParked
	}
	return StateIdle
}

// SessionStartTime returns SessionStart as a time.
func (e *Entry) SessionStartTime() time.Time {
	return time.Unix(e.SessionStart, 0).UTC()
}

// Clone returns a copy of e.
func (e *Entry) Clone() *Entry {
	c := *e
	return &c
}

// Encode returns the fixed-layout record. Vault and Address are not stored;
// they are re-derived from the owner keys and bumps.
func (e *Entry) Encode() []byte {
	w := layout.NewWriter(Size)
	w.Discriminator(Discriminator)
	w.Address(e.Owner)
	w.Address(e.Tenant)
	w.I64(e.SessionStart)
	w.Bool(e.Parked)
	w.U64(e.Balance)
	w.U8(e.VaultBump)
	w.U8(e.EntryBump)
	w.Fixed([]byte(e.Plate), PlateSize)
	return w.Bytes()
}

// Decode parses an entry record stored at addr.
func Decode(addr address.Address, data []byte) (*Entry, error) {
	if len(data) != Size {
		return nil, fmt.Errorf("entry: record is %d bytes, want %d", len(data), Size)
	}
	r := layout.NewReader(data)
	r.Expect(Discriminator)
	e := &Entry{Address: addr}
	e.Owner = r.Address()
	e.Tenant = r.Address()
	e.SessionStart = r.I64()
	e.Parked = r.Bool()
	e.Balance = r.U64()
	e.VaultBump = r.U8()
	e.EntryBump = r.U8()
	e.Plate = string(layout.TrimZero(r.Fixed(PlateSize)))
	if err := r.Finish(); err != nil {
		return nil, fmt.Errorf("entry: decode: %w", err)
	}
	return e, nil
}
