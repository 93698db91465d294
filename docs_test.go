package parkledger_test

import (
	"context"
	"crypto/ed25519"
	"log/slog"
	"testing"

	"github.com/xraph/parkledger"
	"github.com/xraph/parkledger/address"
	"github.com/xraph/parkledger/fee"
	"github.com/xraph/parkledger/store/memory"
	"github.com/xraph/parkledger/types"
)

// TestDocumentationExamples verifies that the package documentation examples run.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		// Memory store for the demo; use PostgreSQL in production.
		store := memory.New()

		l := parkledger.New(store,
			parkledger.WithLogger(slog.Default()),
			parkledger.WithFeePolicy(fee.PerMinute(100)),
		)

		ctx := context.Background()
		if err := l.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer l.Stop()

		admin := mustKey(t)
		user := mustKey(t)

		funds, err := parkledger.ParseUnits("2", types.DefaultDecimals)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := l.Credit(ctx, user, funds); err != nil {
			t.Fatal(err)
		}

		tn, err := l.CreateTenant(ctx, admin, "Downtown Garage")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := l.OpenEntry(ctx, tn.Address, user, "KA-01-AB-1234"); err != nil {
			t.Fatal(err)
		}
		if _, err := l.Deposit(ctx, tn.Address, user, 1_000_000_000); err != nil {
			t.Fatal(err)
		}
		if _, err := l.StartSession(ctx, tn.Address, user); err != nil {
			t.Fatal(err)
		}
		s, err := l.ExitSession(ctx, tn.Address, user, admin)
		if err != nil {
			t.Fatal(err)
		}

		t.Logf("settled fee=%s balance=%s",
			parkledger.FormatUnits(s.Fee, types.DefaultDecimals),
			parkledger.FormatUnits(s.Entry.Balance, types.DefaultDecimals))
	})

	t.Run("AddressesExample", func(t *testing.T) {
		program := parkledger.ProgramID("parkledger")
		admin := mustKey(t)

		tenantAddr, bump, err := address.Derive(program, address.DomainTenant, admin)
		if err != nil {
			t.Fatal(err)
		}
		if address.IsOnCurve(tenantAddr) {
			t.Fatalf("derived address %s (bump %d) is on curve", tenantAddr, bump)
		}

		parsed, err := parkledger.ParseAddress(tenantAddr.String())
		if err != nil {
			t.Fatal(err)
		}
		if parsed != tenantAddr {
			t.Fatalf("round trip: got %s, want %s", parsed, tenantAddr)
		}
	})
}

func mustKey(t *testing.T) parkledger.Address {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	a, err := address.FromPublicKey(pub)
	if err != nil {
		t.Fatal(err)
	}
	return a
}
