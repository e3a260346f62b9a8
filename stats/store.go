package stats

import (
	"context"
	"encoding/json"
)

// Store issues the ledger statements against a resolved table. Every
// method takes the qualified table name produced by a catalog.Locator.
type Store interface {
	// Increment atomically adds delta to the metric column of fdwName,
	// creating the row when absent, and returns the new total.
	Increment(ctx context.Context, table, fdwName string, m Metric, delta int64) (int64, error)
	// Metadata returns the stored document, or nil when there is none.
	Metadata(ctx context.Context, table, fdwName string) (json.RawMessage, error)
	// SetMetadata replaces the stored document; nil clears it.
	SetMetadata(ctx context.Context, table, fdwName string, md json.RawMessage) error
	Get(ctx context.Context, table, fdwName string) (*Row, error)
	List(ctx context.Context, table string, opts ListOpts) ([]*Row, error)
}
