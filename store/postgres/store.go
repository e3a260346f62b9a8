// Package postgres implements store.Store on PostgreSQL through the grove
// pgdriver. Statements run on the grove pool, one per call.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate"
	"github.com/xraph/grove/migrate"

	fdwledger "github.com/xraph/fdwledger"
	"github.com/xraph/fdwledger/catalog"
	"github.com/xraph/fdwledger/internal/pgsql"
	"github.com/xraph/fdwledger/sqlexec"
	"github.com/xraph/fdwledger/stats"
	fdwstore "github.com/xraph/fdwledger/store"
	"github.com/xraph/fdwledger/txn"
)

// compile-time interface check
var _ fdwstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db      *grove.DB
	pg      *pgdriver.PgDB
	table   string
	locator catalog.Locator
	guard   txn.Guard
}

// Option configures a Store.
type Option func(*options)

type options struct {
	extension string
	table     string
}

// WithExtension sets the extension owning the stats table. An empty name
// resolves the table on the search path.
func WithExtension(name string) Option {
	return func(o *options) { o.extension = name }
}

// WithTable sets the unqualified stats table name.
func WithTable(name string) Option {
	return func(o *options) { o.table = name }
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB, opts ...Option) *Store {
	o := options{extension: catalog.DefaultExtension, table: catalog.DefaultTable}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Store{
		db:    db,
		pg:    pgdriver.Unwrap(db),
		table: o.table,
	}
	s.locator = catalog.NewPostgres(sqlexec.WithScanners(s.scalar),
		catalog.WithExtension(o.extension),
		catalog.WithTable(o.table),
	)
	s.guard = txn.NewPostgres(sqlexec.WithScanners(s.scalar))
	return s
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

func (s *Store) scalar(ctx context.Context, dest any, query string, args ...any) error {
	return s.pg.NewRaw(query, args...).Scan(ctx, dest)
}

// Migrate creates the stats table using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("fdwledger/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, NewMigrations(s.table))
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("fdwledger/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Locator & Guard ====================

func (s *Store) StatsTable(ctx context.Context) (string, error) {
	return s.locator.StatsTable(ctx)
}

func (s *Store) ReadOnly(ctx context.Context) (bool, error) {
	return s.guard.ReadOnly(ctx)
}

// ==================== Stats Store ====================

func (s *Store) Increment(ctx context.Context, table, fdwName string, m stats.Metric, delta int64) (int64, error) {
	query, args, err := pgsql.Postgres.Increment(table, fdwName, m, delta)
	if err != nil {
		return 0, err
	}

	var total int64
	if err := s.pg.NewRaw(query, args...).Scan(ctx, &total); err != nil {
		return 0, fmt.Errorf("fdwledger/postgres: increment %s: %w", fdwName, err)
	}
	return total, nil
}

func (s *Store) Metadata(ctx context.Context, table, fdwName string) (json.RawMessage, error) {
	query, args, err := pgsql.Postgres.Metadata(table, fdwName)
	if err != nil {
		return nil, err
	}

	var raw []byte
	if err := s.pg.NewRaw(query, args...).Scan(ctx, &raw); err != nil {
		if sqlexec.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fdwledger/postgres: get metadata %s: %w", fdwName, err)
	}
	return pgsql.Document(raw), nil
}

func (s *Store) SetMetadata(ctx context.Context, table, fdwName string, md json.RawMessage) error {
	query, args, err := pgsql.Postgres.SetMetadata(table, fdwName, md)
	if err != nil {
		return err
	}

	var name string
	if err := s.pg.NewRaw(query, args...).Scan(ctx, &name); err != nil {
		return fmt.Errorf("fdwledger/postgres: set metadata %s: %w", fdwName, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, table, fdwName string) (*stats.Row, error) {
	query, args, err := pgsql.Postgres.Get(table, fdwName)
	if err != nil {
		return nil, err
	}

	m := new(statsModel)
	if err := s.pg.NewRaw(query, args...).Scan(ctx, m); err != nil {
		if sqlexec.IsNoRows(err) {
			return nil, fdwledger.ErrNotFound
		}
		return nil, err
	}
	return fromStatsModel(m), nil
}

func (s *Store) List(ctx context.Context, table string, opts stats.ListOpts) ([]*stats.Row, error) {
	query, args, err := pgsql.Postgres.List(table, opts)
	if err != nil {
		return nil, err
	}

	var models []statsModel
	if err := s.pg.NewRaw(query, args...).Scan(ctx, &models); err != nil {
		return nil, err
	}

	result := make([]*stats.Row, len(models))
	for i := range models {
		result[i] = fromStatsModel(&models[i])
	}
	return result, nil
}
