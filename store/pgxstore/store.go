// Package pgxstore implements store.Store on any pgx querier: a pool, a
// single connection or the caller's transaction. Bound to a transaction,
// ledger writes commit or roll back together with the caller's work.
package pgxstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

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

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements store.Store over a pgx Querier.
type Store struct {
	q       Querier
	pool    *pgxpool.Pool
	opts    options
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

// New creates a store running its statements on q. When q is a pool, Close
// closes it.
func New(q Querier, opts ...Option) *Store {
	o := options{extension: catalog.DefaultExtension, table: catalog.DefaultTable}
	for _, opt := range opts {
		opt(&o)
	}
	s := bind(q, o)
	if pool, ok := q.(*pgxpool.Pool); ok {
		s.pool = pool
	}
	return s
}

func bind(q Querier, o options) *Store {
	s := &Store{q: q, opts: o}
	s.locator = catalog.NewPostgres(s.scalar,
		catalog.WithExtension(o.extension),
		catalog.WithTable(o.table),
	)
	s.guard = txn.NewPostgres(s.scalar)
	return s
}

// WithTx returns a store with the same configuration that runs inside tx.
// Closing it does not close the original pool.
func (s *Store) WithTx(tx pgx.Tx) *Store {
	return bind(tx, s.opts)
}

func (s *Store) scalar(ctx context.Context, dest any, query string, args ...any) error {
	return s.q.QueryRow(ctx, query, args...).Scan(dest)
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
	if err := s.q.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("fdwledger/pgx: increment %s: %w", fdwName, classify(err))
	}
	return total, nil
}

func (s *Store) Metadata(ctx context.Context, table, fdwName string) (json.RawMessage, error) {
	query, args, err := pgsql.Postgres.Metadata(table, fdwName)
	if err != nil {
		return nil, err
	}

	var raw []byte
	if err := s.q.QueryRow(ctx, query, args...).Scan(&raw); err != nil {
		if sqlexec.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fdwledger/pgx: get metadata %s: %w", fdwName, classify(err))
	}
	return pgsql.Document(raw), nil
}

func (s *Store) SetMetadata(ctx context.Context, table, fdwName string, md json.RawMessage) error {
	query, args, err := pgsql.Postgres.SetMetadata(table, fdwName, md)
	if err != nil {
		return err
	}

	var name string
	if err := s.q.QueryRow(ctx, query, args...).Scan(&name); err != nil {
		return fmt.Errorf("fdwledger/pgx: set metadata %s: %w", fdwName, classify(err))
	}
	return nil
}

func (s *Store) Get(ctx context.Context, table, fdwName string) (*stats.Row, error) {
	query, args, err := pgsql.Postgres.Get(table, fdwName)
	if err != nil {
		return nil, err
	}

	var (
		row stats.Row
		md  []byte
	)
	if err := s.q.QueryRow(ctx, query, args...).Scan(pgsql.RowDest(&row, &md)...); err != nil {
		if sqlexec.IsNoRows(err) {
			return nil, fdwledger.ErrNotFound
		}
		return nil, classify(err)
	}
	row.Metadata = pgsql.Document(md)
	return &row, nil
}

func (s *Store) List(ctx context.Context, table string, opts stats.ListOpts) ([]*stats.Row, error) {
	query, args, err := pgsql.Postgres.List(table, opts)
	if err != nil {
		return nil, err
	}

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var result []*stats.Row
	for rows.Next() {
		var (
			row stats.Row
			md  []byte
		)
		if err := rows.Scan(pgsql.RowDest(&row, &md)...); err != nil {
			return nil, err
		}
		row.Metadata = pgsql.Document(md)
		result = append(result, &row)
	}
	return result, rows.Err()
}

// ==================== Core ====================

// Migrate creates the stats table on the session search path.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.q.Exec(ctx, fmt.Sprintf(createTable, pgx.Identifier{s.opts.table}.Sanitize())); err != nil {
		return fmt.Errorf("fdwledger/pgx: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if s.pool != nil {
		return s.pool.Ping(ctx)
	}
	var one int
	return s.q.QueryRow(ctx, "SELECT 1").Scan(&one)
}

// Close closes the pool the store was created with, if any.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

const createTable = `
CREATE TABLE IF NOT EXISTS %s (
    fdw_name     TEXT NOT NULL PRIMARY KEY,
    create_times BIGINT NULL,
    rows_in      BIGINT NULL,
    rows_out     BIGINT NULL,
    bytes_in     BIGINT NULL,
    bytes_out    BIGINT NULL,
    metadata     JSONB NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT timezone('utc'::text, now()),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT timezone('utc'::text, now())
)`

// Postgres error codes the store maps onto ledger errors.
const (
	codeUndefinedTable = "42P01"
)

// classify maps a dropped stats table onto the deployment error.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeUndefinedTable {
		return fmt.Errorf("%w: %s", fdwledger.ErrStatsTableMissing, pgErr.Message)
	}
	return err
}
