// Package address implements deterministic account addressing for parkledger.
//
// Identities (tenant admins, users, fee recipients) are ed25519 public keys and
// therefore lie on the ed25519 curve. Accounts owned by the ledger itself
// (tenant records, ledger entries and vaults) use derived addresses that are
// guaranteed to lie off the curve, so no private key can ever sign for them.
// Moving value out of a derived account requires a Proof: the domain tag, owner
// keys and bump that reproduce the address.
package address

import (
	"crypto/ed25519"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Size is the length of an address in bytes.
const Size = 32

// Address is a 32-byte account address. Its text form is base58.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receiver for UnmarshalText.
type Address [Size]byte

// Zero is the all-zero address.
var Zero Address

// FromBytes copies b into an Address. b must be exactly Size bytes.
func FromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != Size {
		return Zero, fmt.Errorf("address: invalid length %d, want %d", len(b), Size)
	}
	copy(a[:], b)
	return a, nil
}

// FromPublicKey returns the address of an ed25519 public key.
func FromPublicKey(pub ed25519.PublicKey) (Address, error) {
	return FromBytes(pub)
}

// Parse decodes a base58 address.
func Parse(s string) (Address, error) {
	if s == "" {
		return Zero, fmt.Errorf("address: parse %q: empty string", s)
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return Zero, fmt.Errorf("address: parse %q: %w", s, err)
	}
	a, err := FromBytes(raw)
	if err != nil {
		return Zero, fmt.Errorf("address: parse %q: %w", s, err)
	}
	return a, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded values.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// String returns the base58 encoding of the address.
func (a Address) String() string {
	return base58.Encode(a[:])
}

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, a[:])
	return b
}

// IsZero reports whether a is the all-zero address.
func (a Address) IsZero() bool {
	return a == Zero
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(data []byte) error {
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// IsOnCurve reports whether a decodes to a point on the ed25519 curve, that is,
// whether a private key could exist for it.
func IsOnCurve(a Address) bool {
	_, err := new(edwards25519.Point).SetBytes(a[:])
	return err == nil
}
