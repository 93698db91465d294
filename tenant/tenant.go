// Package tenant defines the parking-operator registration record.
package tenant

import (
	"fmt"
	"time"

	"github.com/xraph/parkledger/address"
	"github.com/xraph/parkledger/internal/layout"
)

// NameSize is the width of the stored name. Longer names are truncated.
const NameSize = 32

// Size is the encoded record length including the discriminator.
const Size = layout.DiscriminatorSize + address.Size + NameSize + 8 + 1

// Discriminator tags encoded tenant records.
var Discriminator = layout.NewDiscriminator("account", "Tenant")

// Tenant is a parking operator keyed by its admin identity.
type Tenant struct {
	Address   address.Address `json:"address"`
	Admin     address.Address `json:"admin"`
	Name      string          `json:"name"`
	CreatedAt time.Time       `json:"created_at"`
	Bump      uint8           `json:"bump"`
}

// TruncateName returns name as the record reads it back: cut to NameSize
// bytes with trailing zero bytes removed.
func TruncateName(name string) string {
	if len(name) > NameSize {
		name = name[:NameSize]
	}
	return string(layout.TrimZero([]byte(name)))
}

// Encode returns the fixed-layout record.
func (t *Tenant) Encode() []byte {
	w := layout.NewWriter(Size)
	w.Discriminator(Discriminator)
	w.Address(t.Admin)
	w.Fixed([]byte(t.Name), NameSize)
	w.I64(t.CreatedAt.Unix())
	w.U8(t.Bump)
	return w.Bytes()
}

// Decode parses a tenant record stored at addr.
func Decode(addr address.Address, data []byte) (*Tenant, error) {
	if len(data) != Size {
		return nil, fmt.Errorf("tenant: record is %d bytes, want %d", len(data), Size)
	}
	r := layout.NewReader(data)
	r.Expect(Discriminator)
	t := &Tenant{Address: addr}
	t.Admin = r.Address()
	t.Name = string(layout.TrimZero(r.Fixed(NameSize)))
	t.CreatedAt = time.Unix(r.I64(), 0).UTC()
	t.Bump = r.U8()
	if err := r.Finish(); err != nil {
		return nil, fmt.Errorf("tenant: decode: %w", err)
	}
	return t, nil
}
