package address

import (
	"crypto/sha256"
	"errors"
	"fmt"
)

// Domain is the fixed tag that namespaces a family of derived addresses.
type Domain string

// Domains used by the ledger.
const (
	DomainTenant Domain = "tenant"     // keyed by admin
	DomainEntry  Domain = "user-entry" // keyed by tenant address + user
	DomainVault  Domain = "vault"      // keyed by tenant address + user
)

// Limits on derivation inputs. The domain tag and the bump each count as one seed.
const (
	MaxSeeds   = 16
	MaxSeedLen = 32
)

const derivationMarker = "ProgramDerivedAddress"

// Derivation errors.
var (
	ErrInvalidSeeds = errors.New("address: invalid derivation seeds")
	ErrOnCurve      = errors.New("address: derived address is on curve")
	ErrNoViableBump = errors.New("address: no viable bump")
)

// ProgramID returns the program identity for name. Every derived address is
// scoped to a program identity so two deployments never share custody.
func ProgramID(name string) Address {
	return Address(sha256.Sum256([]byte(name)))
}

// Create computes the derived address for a known bump. It fails with
// ErrOnCurve when the candidate has a corresponding private key.
func Create(program Address, domain Domain, bump uint8, keys ...Address) (Address, error) {
	if err := checkSeeds(domain, keys); err != nil {
		return Zero, err
	}

	h := sha256.New()
	h.Write([]byte(domain))
	for _, k := range keys {
		h.Write(k[:])
	}
	h.Write([]byte{bump})
	h.Write(program[:])
	h.Write([]byte(derivationMarker))

	var a Address
	copy(a[:], h.Sum(nil))
	if IsOnCurve(a) {
		return Zero, ErrOnCurve
	}
	return a, nil
}

// Derive finds the canonical derived address for (domain, keys): the first
// off-curve candidate searching bumps from 255 down to 0. Identical inputs
// always yield the identical address and bump.
func Derive(program Address, domain Domain, keys ...Address) (Address, uint8, error) {
	if err := checkSeeds(domain, keys); err != nil {
		return Zero, 0, err
	}
	for bump := 255; bump >= 0; bump-- {
		a, err := Create(program, domain, uint8(bump), keys...)
		if err == nil {
			return a, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return Zero, 0, err
		}
	}
	return Zero, 0, ErrNoViableBump
}

func checkSeeds(domain Domain, keys []Address) error {
	if domain == "" || len(domain) > MaxSeedLen {
		return fmt.Errorf("%w: domain tag %q", ErrInvalidSeeds, domain)
	}
	if len(keys)+2 > MaxSeeds {
		return fmt.Errorf("%w: %d keys", ErrInvalidSeeds, len(keys))
	}
	return nil
}

// Proof is the capability to authorize outgoing transfers from a derived
// address. It bundles the inputs that reproduce the address and is only
// obtained by re-deriving, so holding a Proof implies knowing the seeds.
type Proof struct {
	program Address
	domain  Domain
	keys    []Address
	bump    uint8
	addr    Address
	valid   bool
}

// NewProof re-derives the address for (domain, keys, bump) and returns the
// matching capability.
func NewProof(program Address, domain Domain, bump uint8, keys ...Address) (Proof, error) {
	a, err := Create(program, domain, bump, keys...)
	if err != nil {
		return Proof{}, err
	}
	ks := make([]Address, len(keys))
	copy(ks, keys)
	return Proof{
		program: program,
		domain:  domain,
		keys:    ks,
		bump:    bump,
		addr:    a,
		valid:   true,
	}, nil
}

// Address returns the derived address this proof authorizes.
func (p Proof) Address() Address { return p.addr }

// Domain returns the domain tag of the proof.
func (p Proof) Domain() Domain { return p.domain }

// Bump returns the bump that completes the derivation.
func (p Proof) Bump() uint8 { return p.bump }

// Authorizes reports whether the proof grants authority over a.
func (p Proof) Authorizes(a Address) bool {
	return p.valid && p.addr == a
}
