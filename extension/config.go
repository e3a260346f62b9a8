package extension

import "github.com/xraph/fdwledger/catalog"

// Config holds the fdwledger extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.fdwledger" or "fdwledger" keys).
type Config struct {
	// Extension is the Postgres extension whose schema holds the stats
	// table (default: "wrappers").
	Extension string `json:"extension" mapstructure:"extension" yaml:"extension"`

	// Table is the unqualified stats table name (default: "wrappers_fdw_stats").
	Table string `json:"table" mapstructure:"table" yaml:"table"`

	// SearchPath resolves the table on the session search path instead of
	// inside the extension schema.
	SearchPath bool `json:"search_path" mapstructure:"search_path" yaml:"search_path"`

	// AutoMigrate creates the stats table on start when it is missing.
	AutoMigrate bool `json:"auto_migrate" mapstructure:"auto_migrate" yaml:"auto_migrate"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Extension: catalog.DefaultExtension,
		Table:     catalog.DefaultTable,
	}
}
