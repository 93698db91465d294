package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/xraph/parkledger/address"
	"github.com/xraph/parkledger/instruction"
)

var keygenCmd = &cli.Command{
	Name:  "keygen",
	Usage: "generate an ed25519 keypair usable as an admin or user address",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "json", Usage: "print as JSON"},
	},
	Action: func(cctx *cli.Context) error {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return fmt.Errorf("generate key: %w", err)
		}
		addr, err := address.FromPublicKey(pub)
		if err != nil {
			return err
		}

		w := cctx.App.Writer
		if cctx.Bool("json") {
			return writeJSON(w, map[string]string{
				"address":     addr.String(),
				"private_key": hex.EncodeToString(priv),
			})
		}
		printField(w, "address", addr.String())
		printField(w, "private key", hex.EncodeToString(priv))
		fmt.Fprintln(w, color.YellowString("keep the private key secret; the ledger only stores addresses"))
		return nil
	},
}

var deriveCmd = &cli.Command{
	Name:  "derive",
	Usage: "print the tenant, entry and vault addresses for an admin and user",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "program", Value: "parkledger", Usage: "program name the addresses derive from"},
		&cli.StringFlag{Name: "admin", Usage: "tenant admin address"},
		&cli.StringFlag{Name: "tenant", Usage: "tenant address, instead of --admin"},
		&cli.StringFlag{Name: "user", Usage: "user address; adds entry and vault"},
		&cli.BoolFlag{Name: "json", Usage: "print as JSON"},
	},
	Action: func(cctx *cli.Context) error {
		program := address.ProgramID(cctx.String("program"))
		out := map[string]string{"program": program.String()}

		var tenant address.Address
		switch {
		case cctx.IsSet("tenant") && cctx.IsSet("admin"):
			return errors.New("--admin and --tenant are mutually exclusive")
		case cctx.IsSet("tenant"):
			t, err := address.Parse(cctx.String("tenant"))
			if err != nil {
				return err
			}
			tenant = t
		case cctx.IsSet("admin"):
			admin, err := address.Parse(cctx.String("admin"))
			if err != nil {
				return err
			}
			t, _, err := address.Derive(program, address.DomainTenant, admin)
			if err != nil {
				return fmt.Errorf("derive tenant: %w", err)
			}
			tenant = t
		default:
			return errors.New("one of --admin or --tenant is required")
		}
		out["tenant"] = tenant.String()

		if cctx.IsSet("user") {
			user, err := address.Parse(cctx.String("user"))
			if err != nil {
				return err
			}
			addrs, err := instruction.DeriveEntry(program, tenant, user)
			if err != nil {
				return fmt.Errorf("derive entry: %w", err)
			}
			out["entry"] = addrs.Entry.String()
			out["vault"] = addrs.Vault.String()
		}

		w := cctx.App.Writer
		if cctx.Bool("json") {
			return writeJSON(w, out)
		}
		for _, k := range []string{"program", "tenant", "entry", "vault"} {
			if v, ok := out[k]; ok {
				printField(w, k, v)
			}
		}
		return nil
	},
}

func printField(w io.Writer, name, value string) {
	fmt.Fprintf(w, "%s %s\n", color.CyanString("%-12s", name+":"), value)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
