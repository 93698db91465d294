package extension

import (
	"time"

	"github.com/xraph/parkledger"
	"github.com/xraph/parkledger/plugin"
	"github.com/xraph/parkledger/store"
)

// Option configures the parkledger Forge extension.
type Option func(*Extension)

// WithStore sets the store for the ledger engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithLedgerOption passes a parkledger.Option through to the underlying engine.
func WithLedgerOption(opt parkledger.Option) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, opt)
	}
}

// WithPlugin registers a ledger plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, parkledger.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableRoutes prevents the HTTP API from being built.
func WithDisableRoutes() Option {
	return func(e *Extension) { e.config.DisableRoutes = true }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithBasePath sets the URL prefix for API routes.
func WithBasePath(path string) Option {
	return func(e *Extension) { e.config.BasePath = path }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithProgramName sets the program identity addresses derive from.
func WithProgramName(name string) Option {
	return func(e *Extension) { e.config.ProgramName = name }
}

// WithFee sets the per-unit parking fee.
func WithFee(rate uint64, unit time.Duration) Option {
	return func(e *Extension) {
		e.config.FeeRate = rate
		e.config.FeeUnit = unit
	}
}

// WithFaucet exposes the wallet credit route.
func WithFaucet() Option {
	return func(e *Extension) { e.config.Faucet = true }
}
