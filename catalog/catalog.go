// Package catalog resolves the qualified name of the shared stats table.
//
// Resolution happens on every call. The table's namespace depends on where the
// owning extension is installed and on the session search path, both of which
// can change between calls, so nothing here is cached.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/fdwledger/sqlexec"
)

// Defaults match the wrappers extension install script.
const (
	DefaultExtension = "wrappers"
	DefaultTable     = "wrappers_fdw_stats"
)

// Deployment errors. Both mean the ledger cannot work until an operator
// fixes the database; neither is retried.
var (
	ErrExtensionNotInstalled = errors.New("fdwledger: owning extension is not installed")
	ErrStatsTableMissing     = errors.New("fdwledger: stats table does not exist")
)

// Locator resolves the stats table visible to the calling session.
type Locator interface {
	StatsTable(ctx context.Context) (string, error)
}

// Option configures a Postgres locator.
type Option func(*Postgres)

// WithExtension sets the extension whose schema holds the table. An empty
// name resolves the table on the session search path instead.
func WithExtension(name string) Option {
	return func(p *Postgres) { p.extension = name }
}

// WithTable sets the unqualified stats table name.
func WithTable(name string) Option {
	return func(p *Postgres) { p.table = name }
}

// Postgres resolves the table through pg_catalog.
type Postgres struct {
	scalar    sqlexec.ScalarFunc
	extension string
	table     string
}

// NewPostgres creates a Postgres locator that queries through scalar.
func NewPostgres(scalar sqlexec.ScalarFunc, opts ...Option) *Postgres {
	p := &Postgres{
		scalar:    scalar,
		extension: DefaultExtension,
		table:     DefaultTable,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

const (
	// One row per installed extension; NULL when its schema lacks the table.
	extensionTableQuery = `
SELECT quote_ident(n.nspname) || '.' || quote_ident(c.relname)
FROM pg_catalog.pg_extension e
JOIN pg_catalog.pg_namespace n ON n.oid = e.extnamespace
LEFT JOIN pg_catalog.pg_class c
  ON c.relnamespace = n.oid AND c.relname = $2 AND c.relkind IN ('r', 'p')
WHERE e.extname = $1`

	searchPathTableQuery = `
SELECT quote_ident(n.nspname) || '.' || quote_ident(c.relname)
FROM pg_catalog.pg_class c
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE c.oid = to_regclass($1)`
)

// StatsTable implements Locator.
func (p *Postgres) StatsTable(ctx context.Context) (string, error) {
	var name sql.NullString

	if p.extension == "" {
		err := p.scalar(ctx, &name, searchPathTableQuery, pgx.Identifier{p.table}.Sanitize())
		if err != nil {
			if sqlexec.IsNoRows(err) {
				return "", fmt.Errorf("%w: %s not on search path", ErrStatsTableMissing, p.table)
			}
			return "", fmt.Errorf("fdwledger/catalog: resolve %s: %w", p.table, err)
		}
	} else {
		err := p.scalar(ctx, &name, extensionTableQuery, p.extension, p.table)
		if err != nil {
			if sqlexec.IsNoRows(err) {
				return "", fmt.Errorf("%w: %s", ErrExtensionNotInstalled, p.extension)
			}
			return "", fmt.Errorf("fdwledger/catalog: resolve %s: %w", p.table, err)
		}
	}

	if !name.Valid || name.String == "" {
		return "", fmt.Errorf("%w: %s", ErrStatsTableMissing, p.table)
	}
	return name.String, nil
}

// SQLite resolves the table in the main database schema.
type SQLite struct {
	scalar sqlexec.ScalarFunc
	table  string
}

// NewSQLite creates a SQLite locator for table.
func NewSQLite(scalar sqlexec.ScalarFunc, table string) *SQLite {
	if table == "" {
		table = DefaultTable
	}
	return &SQLite{scalar: scalar, table: table}
}

// StatsTable implements Locator.
func (s *SQLite) StatsTable(ctx context.Context) (string, error) {
	var name sql.NullString
	err := s.scalar(ctx, &name,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, s.table)
	if err != nil {
		if sqlexec.IsNoRows(err) {
			return "", fmt.Errorf("%w: %s", ErrStatsTableMissing, s.table)
		}
		return "", fmt.Errorf("fdwledger/catalog: resolve %s: %w", s.table, err)
	}
	if !name.Valid {
		return "", fmt.Errorf("%w: %s", ErrStatsTableMissing, s.table)
	}
	return pgx.Identifier{name.String}.Sanitize(), nil
}

// IsDeploymentError reports whether err means the ledger table cannot be found.
func IsDeploymentError(err error) bool {
	return errors.Is(err, ErrExtensionNotInstalled) || errors.Is(err, ErrStatsTableMissing)
}
