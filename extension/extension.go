// Package extension provides the Forge extension adapter for parkledger.
//
// It implements the forge.Extension interface to integrate the parking
// ledger into a Forge application with DI registration and lifecycle
// management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.parkledger" or
// "parkledger" keys.
package extension

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/parkledger"
	"github.com/xraph/parkledger/address"
	"github.com/xraph/parkledger/api"
	"github.com/xraph/parkledger/fee"
	"github.com/xraph/parkledger/store"
	"github.com/xraph/parkledger/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "parkledger"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Custodial ledger for metered parking sessions"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts parkledger as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *parkledger.Ledger
	server     *api.Server
	store      store.Store
	ledgerOpts []parkledger.Option
}

// New creates a new parkledger Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying ledger. It is nil until Register is called.
func (e *Extension) Engine() *parkledger.Ledger { return e.engine }

// Handler returns the HTTP API, or nil when routes are disabled or the
// extension is not registered.
func (e *Extension) Handler() http.Handler {
	if e.server == nil {
		return nil
	}
	return e.server.Handler()
}

// Register implements [forge.Extension]. It loads configuration, builds the
// ledger and registers it, and the API server unless disabled, in the DI
// container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil {
		e.store = memory.New()
	}

	opts, err := e.buildLedgerOpts()
	if err != nil {
		return err
	}
	e.engine = parkledger.New(e.store, opts...)

	if err := vessel.Provide(fapp.Container(), func() (*parkledger.Ledger, error) {
		return e.engine, nil
	}); err != nil {
		return err
	}

	if e.config.DisableRoutes {
		return nil
	}
	e.server = api.New(e.engine,
		api.WithBasePath(e.config.BasePath),
		api.WithFaucet(e.config.Faucet),
	)
	return vessel.Provide(fapp.Container(), func() (*api.Server, error) {
		return e.server, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("parkledger: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("parkledger: store not initialized")
	}
	return e.engine.Ping(ctx)
}

// buildLedgerOpts constructs parkledger.Option values from the resolved config.
// Pass-through options come last so they win over config.
func (e *Extension) buildLedgerOpts() ([]parkledger.Option, error) {
	policy, err := fee.NewPerUnit(e.config.FeeRate, e.config.FeeUnit)
	if err != nil {
		return nil, fmt.Errorf("parkledger: %w", err)
	}

	opts := make([]parkledger.Option, 0, len(e.ledgerOpts)+4)
	opts = append(opts,
		parkledger.WithProgramID(address.ProgramID(e.config.ProgramName)),
		parkledger.WithFeePolicy(policy),
		parkledger.WithPlateRequired(!e.config.AllowEmptyPlate),
		parkledger.WithLockStripes(e.config.LockStripes),
	)
	return append(opts, e.ledgerOpts...), nil
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("parkledger: configuration is required but not found in config files; " +
				"ensure 'extensions.parkledger' or 'parkledger' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("parkledger: configuration loaded",
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("base_path", e.config.BasePath),
		forge.F("program_name", e.config.ProgramName),
		forge.F("fee_rate", e.config.FeeRate),
		forge.F("fee_unit", e.config.FeeUnit),
		forge.F("faucet", e.config.Faucet),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.parkledger", "parkledger"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("parkledger: loaded config from file", forge.F("key", key))
			return cfg, true
		}
		e.Logger().Warn("parkledger: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.BasePath == "" {
		cfg.BasePath = defaults.BasePath
	}
	if cfg.ProgramName == "" {
		cfg.ProgramName = defaults.ProgramName
	}
	if cfg.FeeRate == 0 {
		cfg.FeeRate = defaults.FeeRate
	}
	if cfg.FeeUnit == 0 {
		cfg.FeeUnit = defaults.FeeUnit
	}
	if cfg.LockStripes == 0 {
		cfg.LockStripes = defaults.LockStripes
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.AllowEmptyPlate {
		yamlConfig.AllowEmptyPlate = true
	}
	if programmaticConfig.Faucet {
		yamlConfig.Faucet = true
	}

	if yamlConfig.BasePath == "" {
		yamlConfig.BasePath = programmaticConfig.BasePath
	}
	if yamlConfig.ProgramName == "" {
		yamlConfig.ProgramName = programmaticConfig.ProgramName
	}
	if yamlConfig.FeeRate == 0 {
		yamlConfig.FeeRate = programmaticConfig.FeeRate
	}
	if yamlConfig.FeeUnit == 0 {
		yamlConfig.FeeUnit = programmaticConfig.FeeUnit
	}
	if yamlConfig.LockStripes == 0 {
		yamlConfig.LockStripes = programmaticConfig.LockStripes
	}

	return mergeWithDefaults(yamlConfig)
}
