// Package extension provides the Forge extension adapter for fdwledger.
//
// It implements the forge.Extension interface to integrate the ledger
// into a Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.fdwledger" or "fdwledger" keys.
package extension

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	fdwledger "github.com/xraph/fdwledger"
	"github.com/xraph/fdwledger/store"
	"github.com/xraph/fdwledger/store/memory"
	"github.com/xraph/fdwledger/store/pgxstore"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "fdwledger"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Per-connector FDW usage statistics and metadata ledger"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the ledger as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	ledger     *fdwledger.Ledger
	store      store.Store
	pool       *pgxpool.Pool
	ledgerOpts []fdwledger.Option
}

// New creates a new fdwledger Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ledger returns the underlying Ledger instance.
// This is nil until Register is called.
func (e *Extension) Ledger() *fdwledger.Ledger { return e.ledger }

// Register implements [forge.Extension]. It loads configuration,
// builds the ledger, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	e.store = e.buildStore()
	e.ledger = fdwledger.New(e.store, e.buildLedgerOpts()...)

	return vessel.Provide(fapp.Container(), func() (*fdwledger.Ledger, error) {
		return e.ledger, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.ledger == nil {
		return errors.New("fdwledger: extension not initialized")
	}

	if err := e.ledger.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.ledger != nil {
		if err := e.ledger.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("fdwledger: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildStore picks the programmatic store, then a pgx store on the
// configured pool, then an in-memory store.
func (e *Extension) buildStore() store.Store {
	switch {
	case e.store != nil:
		return e.store
	case e.pool != nil:
		return pgxstore.New(e.pool, storeOpts(e.config)...)
	default:
		e.Logger().Warn("fdwledger: no store configured, using in-memory store")
		return memory.New(memory.WithTable(e.config.Table))
	}
}

func storeOpts(cfg Config) []pgxstore.Option {
	ext := cfg.Extension
	if cfg.SearchPath {
		ext = ""
	}
	return []pgxstore.Option{
		pgxstore.WithExtension(ext),
		pgxstore.WithTable(cfg.Table),
	}
}

// buildLedgerOpts constructs fdwledger.Option values from the resolved config.
func (e *Extension) buildLedgerOpts() []fdwledger.Option {
	opts := make([]fdwledger.Option, 0, len(e.ledgerOpts)+1)
	opts = append(opts, fdwledger.WithAutoMigrate(e.config.AutoMigrate))

	// Append any pass-through ledger options.
	opts = append(opts, e.ledgerOpts...)
	return opts
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("fdwledger: configuration is required but not found in config files; " +
				"ensure 'extensions.fdwledger' or 'fdwledger' key exists in your config")
		}

		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("fdwledger: configuration loaded",
		forge.F("extension", e.config.Extension),
		forge.F("table", e.config.Table),
		forge.F("search_path", e.config.SearchPath),
		forge.F("auto_migrate", e.config.AutoMigrate),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.fdwledger", "fdwledger"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("fdwledger: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("fdwledger: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Extension == "" {
		cfg.Extension = defaults.Extension
	}
	if cfg.Table == "" {
		cfg.Table = defaults.Table
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.SearchPath {
		yamlConfig.SearchPath = true
	}
	if programmaticConfig.AutoMigrate {
		yamlConfig.AutoMigrate = true
	}

	if yamlConfig.Extension == "" && programmaticConfig.Extension != "" {
		yamlConfig.Extension = programmaticConfig.Extension
	}
	if yamlConfig.Table == "" && programmaticConfig.Table != "" {
		yamlConfig.Table = programmaticConfig.Table
	}

	return mergeWithDefaults(yamlConfig)
}
