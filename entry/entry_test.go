package entry_test

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/xraph/parkledger/address"
	"github.com/xraph/parkledger/entry"
	"github.com/xraph/parkledger/internal/layout"
)

func sample() *entry.Entry {
	return &entry.Entry{
		Address:      address.ProgramID("entry"),
		Owner:        address.ProgramID("owner"),
		Tenant:       address.ProgramID("tenant"),
		SessionStart: 1_700_000_600,
		Parked:       true,
		Balance:      1_000_000_000,
		VaultBump:    253,
		EntryBump:    255,
		Plate:        "KA-01-AB-1234",
	}
}

func TestSize(t *testing.T) {
	if entry.Size != 107 {
		t.Fatalf("Size = %d, want 107", entry.Size)
	}
	if got := len(sample().Encode()); got != entry.Size {
		t.Errorf("encoded length = %d, want %d", got, entry.Size)
	}
}

func TestDiscriminator(t *testing.T) {
	sum := sha256.Sum256([]byte("account:User"))
	if !bytes.Equal(entry.Discriminator[:], sum[:8]) {
		t.Errorf("discriminator = %x, want %x", entry.Discriminator, sum[:8])
	}
}

func TestEncodeDecode(t *testing.T) {
	want := sample()
	got, err := entry.Decode(want.Address, want.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if *got != *want {
		t.Errorf("decoded %+v, want %+v", got, want)
	}
	if got.State() != entry.StateParked {
		t.Errorf("state = %s", got.State())
	}
}

func TestFieldOffsets(t *testing.T) {
	e := sample()
	b := e.Encode()

	if !bytes.Equal(b[8:40], e.Owner[:]) {
		t.Error("owner not at offset 8")
	}
	if !bytes.Equal(b[40:72], e.Tenant[:]) {
		t.Error("tenant not at offset 40")
	}
	if b[80] != 1 {
		t.Errorf("parked byte = %d", b[80])
	}
	if b[89] != e.VaultBump || b[90] != e.EntryBump {
		t.Errorf("bumps = %d/%d", b[89], b[90])
	}
}

func TestDecodeRejectsBadBool(t *testing.T) {
	b := sample().Encode()
	b[80] = 2
	if _, err := entry.Decode(address.Zero, b); !errors.Is(err, layout.ErrBadBool) {
		t.Errorf("expected ErrBadBool, got %v", err)
	}
}

func TestTruncatePlate(t *testing.T) {
	if got := entry.TruncatePlate("ABCDEFGHIJKLMNOPQRST"); got != "ABCDEFGHIJKLMNOP" {
		t.Errorf("got %q", got)
	}
	if got := entry.TruncatePlate("KA01\x00\x00"); got != "KA01" {
		t.Errorf("zero padding kept: %q", got)
	}
}
