// Package parkledger provides a multi-tenant custodial ledger for metered
// parking sessions.
//
// Parking operators (tenants) register once per admin identity. Users open a
// ledger entry at a tenant, deposit value into a vault that only the ledger
// can move value out of, start a parked session and, on exit, are charged a
// time-based fee that is forwarded from the vault to an operator wallet.
//
// Parkledger is designed as a library. Import it directly into your Go
// application and pick a store:
//
//	import (
//	    "github.com/xraph/parkledger"
//	    "github.com/xraph/parkledger/fee"
//	    "github.com/xraph/parkledger/store/postgres"
//	)
//
//	store, err := postgres.Open(ctx, databaseURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	l := parkledger.New(store, parkledger.WithFeePolicy(fee.PerMinute(100)))
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
// # Addresses
//
// Identities are ed25519 public keys. Tenant records, user entries and vaults
// live at derived addresses that lie off the ed25519 curve, so no key can sign
// for them. Every derived address is scoped to a program identity
// (WithProgramID) and a domain tag:
//
//	tenant      <- admin
//	user-entry  <- tenant, user
//	vault       <- tenant, user
//
// # Operations
//
//	t, _ := l.CreateTenant(ctx, admin, "Downtown Garage")
//	_, _ = l.OpenEntry(ctx, t.Address, user, "KA-01-AB-1234")
//	_, _ = l.Deposit(ctx, t.Address, user, 1_000_000_000)
//	_, _ = l.StartSession(ctx, t.Address, user)
//	s, _ := l.ExitSession(ctx, t.Address, user, admin)
//
// Every operation reads its accounts once, validates every precondition,
// builds the complete post-state in memory and commits it with a single
// atomic store.Apply. A failed operation leaves no partial state. After every
// commit the entry balance equals the value held by its vault.
//
// Operations are also available in wire form through the instruction package
// and Ledger.Execute.
//
// # Errors
//
// Failures are *OperationError values wrapping one of the package sentinels;
// use errors.Is to match them and Code for a stable string tag.
package parkledger
