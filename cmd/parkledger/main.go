// Command parkledger runs the parking ledger HTTP server and offers key and
// address utilities.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "parkledger",
		Usage:   "multi-tenant custodial ledger for metered parking sessions",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a TOML config file",
				EnvVars: []string{"PARKLEDGER_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			serveCmd,
			keygenCmd,
			deriveCmd,
		},
	}
}
