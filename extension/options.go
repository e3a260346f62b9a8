package extension

import (
	"github.com/jackc/pgx/v5/pgxpool"

	fdwledger "github.com/xraph/fdwledger"
	"github.com/xraph/fdwledger/plugin"
	"github.com/xraph/fdwledger/store"
)

// Option configures the fdwledger Forge extension.
type Option func(*Extension)

// WithStore sets the store for the ledger. It takes precedence over WithPgxPool.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithPgxPool makes the extension build a pgx store on pool, configured
// from the resolved Config.
func WithPgxPool(pool *pgxpool.Pool) Option {
	return func(e *Extension) {
		e.pool = pool
	}
}

// WithLedgerOption passes a fdwledger.Option through to the underlying ledger.
func WithLedgerOption(opt fdwledger.Option) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, opt)
	}
}

// WithPlugin registers a ledger plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, fdwledger.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithExtensionName sets the Postgres extension owning the stats table.
func WithExtensionName(name string) Option {
	return func(e *Extension) { e.config.Extension = name }
}

// WithTable sets the stats table name.
func WithTable(name string) Option {
	return func(e *Extension) { e.config.Table = name }
}

// WithSearchPath resolves the stats table on the session search path.
func WithSearchPath() Option {
	return func(e *Extension) { e.config.SearchPath = true }
}

// WithAutoMigrate creates the stats table on start.
func WithAutoMigrate() Option {
	return func(e *Extension) { e.config.AutoMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
