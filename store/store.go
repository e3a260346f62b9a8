package store

import (
	"context"
	"encoding/json"

	"github.com/xraph/fdwledger/stats"
)

// Store is the unified storage interface behind the ledger. A backend
// resolves its own stats table, reports the transaction mode of its session
// and executes the ledger statements. Instead of embedding catalog.Locator,
// txn.Guard and stats.Store, the methods are declared explicitly.
type Store interface {
	// Locator
	StatsTable(ctx context.Context) (string, error)

	// Guard
	ReadOnly(ctx context.Context) (bool, error)

	// Stats methods
	Increment(ctx context.Context, table, fdwName string, m stats.Metric, delta int64) (int64, error)
	Metadata(ctx context.Context, table, fdwName string) (json.RawMessage, error)
	SetMetadata(ctx context.Context, table, fdwName string, md json.RawMessage) error
	Get(ctx context.Context, table, fdwName string) (*stats.Row, error)
	List(ctx context.Context, table string, opts stats.ListOpts) ([]*stats.Row, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
