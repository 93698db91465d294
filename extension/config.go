package extension

import "time"

// Config holds the parkledger extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.parkledger" or "parkledger" keys).
type Config struct {
	// DisableRoutes prevents the HTTP API from being built and provided.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is the URL prefix for API routes (default: "/parkledger").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// ProgramName seeds the program identity every address derives from
	// (default: "parkledger").
	ProgramName string `json:"program_name" mapstructure:"program_name" yaml:"program_name"`

	// FeeRate is the fee charged per started FeeUnit of parking (default: 100).
	FeeRate uint64 `json:"fee_rate" mapstructure:"fee_rate" yaml:"fee_rate"`

	// FeeUnit is the billing granularity (default: 1m).
	FeeUnit time.Duration `json:"fee_unit" mapstructure:"fee_unit" yaml:"fee_unit"`

	// AllowEmptyPlate lets entries open without a licence plate.
	AllowEmptyPlate bool `json:"allow_empty_plate" mapstructure:"allow_empty_plate" yaml:"allow_empty_plate"`

	// LockStripes sizes the per-entry lock table (default: 256).
	LockStripes int `json:"lock_stripes" mapstructure:"lock_stripes" yaml:"lock_stripes"`

	// Faucet exposes the wallet credit route. Development only.
	Faucet bool `json:"faucet" mapstructure:"faucet" yaml:"faucet"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BasePath:    "/parkledger",
		ProgramName: "parkledger",
		FeeRate:     100,
		FeeUnit:     time.Minute,
		LockStripes: 256,
	}
}
