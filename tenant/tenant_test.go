package tenant_test

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xraph/parkledger/address"
	"github.com/xraph/parkledger/internal/layout"
	"github.com/xraph/parkledger/tenant"
)

func sample() *tenant.Tenant {
	return &tenant.Tenant{
		Address:   address.ProgramID("tenant-addr"),
		Admin:     address.ProgramID("admin"),
		Name:      "Downtown Garage",
		CreatedAt: time.Unix(1_700_000_000, 0).UTC(),
		Bump:      254,
	}
}

func TestSize(t *testing.T) {
	if tenant.Size != 81 {
		t.Fatalf("Size = %d, want 81", tenant.Size)
	}
	if got := len(sample().Encode()); got != tenant.Size {
		t.Errorf("encoded length = %d, want %d", got, tenant.Size)
	}
}

func TestDiscriminator(t *testing.T) {
	sum := sha256.Sum256([]byte("account:Tenant"))
	if !bytes.Equal(tenant.Discriminator[:], sum[:8]) {
		t.Errorf("discriminator = %x, want %x", tenant.Discriminator, sum[:8])
	}
}

func TestEncodeDecode(t *testing.T) {
	want := sample()
	got, err := tenant.Decode(want.Address, want.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if *got != *want {
		t.Errorf("decoded %+v, want %+v", got, want)
	}
}

func TestTruncateName(t *testing.T) {
	long := strings.Repeat("x", 40)
	if got := tenant.TruncateName(long); len(got) != tenant.NameSize {
		t.Errorf("truncated length = %d", len(got))
	}
	if got := tenant.TruncateName("short"); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := tenant.TruncateName("\x00\x00"); got != "" {
		t.Errorf("zero padding kept: %q", got)
	}
	if got := tenant.TruncateName("a\x00b\x00"); got != "a\x00b" {
		t.Errorf("got %q", got)
	}
}

func TestDecodeRejects(t *testing.T) {
	good := sample().Encode()

	wrongTag := append([]byte(nil), good...)
	wrongTag[0] ^= 0xff

	tests := []struct {
		name string
		data []byte
	}{
		{"Short", good[:len(good)-1]},
		{"Long", append(append([]byte(nil), good...), 0)},
		{"WrongTag", wrongTag},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tenant.Decode(address.Zero, tt.data); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := tenant.Decode(address.Zero, wrongTag); !errors.Is(err, layout.ErrBadTag) {
		t.Errorf("expected ErrBadTag, got %v", err)
	}
}
