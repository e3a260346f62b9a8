// Package sqlite implements store.Store on SQLite through the grove
// sqlitedriver, for embedded deployments and local development.
package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate"
	"github.com/xraph/grove/migrate"

	fdwledger "github.com/xraph/fdwledger"
	"github.com/xraph/fdwledger/catalog"
	"github.com/xraph/fdwledger/internal/pgsql"
	"github.com/xraph/fdwledger/sqlexec"
	"github.com/xraph/fdwledger/stats"
	fdwstore "github.com/xraph/fdwledger/store"
	"github.com/xraph/fdwledger/txn"
	"github.com/xraph/fdwledger/types"
)

// compile-time interface check
var _ fdwstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db      *grove.DB
	sdb     *sqlitedriver.SqliteDB
	table   string
	locator catalog.Locator
	guard   txn.Guard
}

// New creates a new SQLite store backed by Grove ORM. An empty table uses
// catalog.DefaultTable.
func New(db *grove.DB, table string) *Store {
	if table == "" {
		table = catalog.DefaultTable
	}
	s := &Store{
		db:    db,
		sdb:   sqlitedriver.Unwrap(db),
		table: table,
	}
	s.locator = catalog.NewSQLite(sqlexec.WithScanners(s.scalar), table)
	s.guard = txn.NewSQLite(sqlexec.WithScanners(s.scalar))
	return s
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

func (s *Store) scalar(ctx context.Context, dest any, query string, args ...any) error {
	return s.sdb.NewRaw(query, args...).Scan(ctx, dest)
}

// Migrate creates the stats table using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("fdwledger/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, NewMigrations(s.table))
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("fdwledger/sqlite: migration failed: %w", err)
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
	query, args, err := pgsql.SQLite.Increment(table, fdwName, m, delta)
	if err != nil {
		return 0, err
	}

	var total int64
	if err := s.sdb.NewRaw(query, args...).Scan(ctx, &total); err != nil {
		return 0, fmt.Errorf("fdwledger/sqlite: increment %s: %w", fdwName, err)
	}
	return total, nil
}

func (s *Store) Metadata(ctx context.Context, table, fdwName string) (json.RawMessage, error) {
	query, args, err := pgsql.SQLite.Metadata(table, fdwName)
	if err != nil {
		return nil, err
	}

	var raw []byte
	if err := s.sdb.NewRaw(query, args...).Scan(ctx, &raw); err != nil {
		if sqlexec.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fdwledger/sqlite: get metadata %s: %w", fdwName, err)
	}
	return pgsql.Document(raw), nil
}

func (s *Store) SetMetadata(ctx context.Context, table, fdwName string, md json.RawMessage) error {
	query, args, err := pgsql.SQLite.SetMetadata(table, fdwName, md)
	if err != nil {
		return err
	}

	var name string
	if err := s.sdb.NewRaw(query, args...).Scan(ctx, &name); err != nil {
		return fmt.Errorf("fdwledger/sqlite: set metadata %s: %w", fdwName, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, table, fdwName string) (*stats.Row, error) {
	query, args, err := pgsql.SQLite.Get(table, fdwName)
	if err != nil {
		return nil, err
	}

	m := new(statsModel)
	if err := s.sdb.NewRaw(query, args...).Scan(ctx, m); err != nil {
		if sqlexec.IsNoRows(err) {
			return nil, fdwledger.ErrNotFound
		}
		return nil, err
	}
	return fromStatsModel(m), nil
}

func (s *Store) List(ctx context.Context, table string, opts stats.ListOpts) ([]*stats.Row, error) {
	query, args, err := pgsql.SQLite.List(table, opts)
	if err != nil {
		return nil, err
	}

	var models []statsModel
	if err := s.sdb.NewRaw(query, args...).Scan(ctx, &models); err != nil {
		return nil, err
	}

	result := make([]*stats.Row, len(models))
	for i := range models {
		result[i] = fromStatsModel(&models[i])
	}
	return result, nil
}

// ==================== Models ====================

type statsModel struct {
	grove.BaseModel `grove:"table:wrappers_fdw_stats"`

	FdwName     string    `grove:"fdw_name,pk"`
	CreateTimes *int64    `grove:"create_times"`
	RowsIn      *int64    `grove:"rows_in"`
	RowsOut     *int64    `grove:"rows_out"`
	BytesIn     *int64    `grove:"bytes_in"`
	BytesOut    *int64    `grove:"bytes_out"`
	Metadata    []byte    `grove:"metadata"`
	CreatedAt   time.Time `grove:"created_at"`
	UpdatedAt   time.Time `grove:"updated_at"`
}

func fromStatsModel(m *statsModel) *stats.Row {
	return &stats.Row{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		FdwName:     m.FdwName,
		CreateTimes: m.CreateTimes,
		RowsIn:      m.RowsIn,
		RowsOut:     m.RowsOut,
		BytesIn:     m.BytesIn,
		BytesOut:    m.BytesOut,
		Metadata:    pgsql.Document(m.Metadata),
	}
}
