// Package config loads the parkledger server configuration.
//
// Values start from Default, are overlaid by an optional TOML file and then
// by PARKLEDGER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/parkledger/fee"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverMongo    = "mongo"
)

// Config is the complete server configuration.
type Config struct {
	Log     Log     `toml:"log" envPrefix:"LOG_"`
	HTTP    HTTP    `toml:"http" envPrefix:"HTTP_"`
	Store   Store   `toml:"store" envPrefix:"STORE_"`
	Ledger  Ledger  `toml:"ledger" envPrefix:"LEDGER_"`
	Metrics Metrics `toml:"metrics" envPrefix:"METRICS_"`
}

// Log configures the slog handler.
type Log struct {
	Level  string `toml:"level" env:"LEVEL"`   // debug, info, warn, error
	Format string `toml:"format" env:"FORMAT"` // json or text

	// Audit logs one audit record per ledger event.
	Audit bool `toml:"audit" env:"AUDIT"`
}

// HTTP configures the API server.
type HTTP struct {
	Addr            string        `toml:"addr" env:"ADDR"`
	BasePath        string        `toml:"base_path" env:"BASE_PATH"`
	ReadTimeout     time.Duration `toml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `toml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`

	// Faucet exposes POST /accounts/{address}/credit. Development only.
	Faucet bool `toml:"faucet" env:"FAUCET"`
}

// Store selects and configures the persistence backend.
type Store struct {
	Driver string `toml:"driver" env:"DRIVER"`

	// URL is the DSN, connection URI or SQLite file path.
	URL string `toml:"url" env:"URL"`

	// Database names the MongoDB database.
	Database string `toml:"database" env:"DATABASE"`

	// Prefix namespaces Redis keys.
	Prefix string `toml:"prefix" env:"PREFIX"`
}

// Ledger configures the engine.
type Ledger struct {
	ProgramName   string        `toml:"program_name" env:"PROGRAM_NAME"`
	FeeRate       uint64        `toml:"fee_rate" env:"FEE_RATE"`
	FeeUnit       time.Duration `toml:"fee_unit" env:"FEE_UNIT"`
	PlateRequired bool          `toml:"plate_required" env:"PLATE_REQUIRED"`
	LockStripes   int           `toml:"lock_stripes" env:"LOCK_STRIPES"`
	PluginTimeout time.Duration `toml:"plugin_timeout" env:"PLUGIN_TIMEOUT"`
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	Enabled bool   `toml:"enabled" env:"ENABLED"`
	Path    string `toml:"path" env:"PATH"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Log: Log{
			Level:  "info",
			Format: "json",
			Audit:  true,
		},
		HTTP: HTTP{
			Addr:            ":8080",
			BasePath:        "/",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Store: Store{
			Driver:   DriverMemory,
			Database: "parkledger",
			Prefix:   "parkledger",
		},
		Ledger: Ledger{
			ProgramName:   "parkledger",
			FeeRate:       100,
			FeeUnit:       time.Minute,
			PlateRequired: true,
			LockStripes:   256,
			PluginTimeout: 5 * time.Second,
		},
		Metrics: Metrics{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// FeePolicy returns the per-unit fee policy described by the ledger section.
func (c *Config) FeePolicy() (fee.PerUnit, error) {
	return fee.NewPerUnit(c.Ledger.FeeRate, c.Ledger.FeeUnit)
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format: must be json or text, got %q", c.Log.Format))
	}

	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr: required"))
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres, DriverSQLite, DriverRedis:
		if c.Store.URL == "" {
			errs = append(errs, fmt.Errorf("store.url: required for driver %s", c.Store.Driver))
		}
	case DriverMongo:
		if c.Store.URL == "" {
			errs = append(errs, errors.New("store.url: required for driver mongo"))
		}
		if c.Store.Database == "" {
			errs = append(errs, errors.New("store.database: required for driver mongo"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver: unknown driver %q", c.Store.Driver))
	}

	if c.Ledger.ProgramName == "" {
		errs = append(errs, errors.New("ledger.program_name: required"))
	}
	if _, err := c.FeePolicy(); err != nil {
		errs = append(errs, fmt.Errorf("ledger.fee_unit: %w", err))
	}
	if c.Ledger.LockStripes < 1 {
		errs = append(errs, errors.New("ledger.lock_stripes: must be at least 1"))
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("metrics.path: must start with /, got %q", c.Metrics.Path))
	}

	return errors.Join(errs...)
}
