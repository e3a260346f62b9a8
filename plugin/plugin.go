// Package plugin provides an extensible plugin system for fdwledger.
// Plugins can hook into ledger events to extend functionality.
package plugin

import (
	"context"

	"github.com/xraph/fdwledger/stats"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the ledger starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l interface{}) error
}

// OnShutdown is called when the ledger stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Counter hooks
// ──────────────────────────────────────────────────

// OnStatsIncremented is called after a counter upsert succeeds.
type OnStatsIncremented interface {
	Plugin
	OnStatsIncremented(ctx context.Context, fdwName string, m stats.Metric, delta, total int64) error
}

// ──────────────────────────────────────────────────
// Metadata hooks
// ──────────────────────────────────────────────────

// OnMetadataSet is called after a metadata document is stored or cleared.
type OnMetadataSet interface {
	Plugin
	OnMetadataSet(ctx context.Context, fdwName string, cleared bool) error
}

// OnMetadataWriteFailed is called when a metadata write failed and was
// downgraded to a warning.
type OnMetadataWriteFailed interface {
	Plugin
	OnMetadataWriteFailed(ctx context.Context, warningID, fdwName string, err error) error
}

// OnMetadataReadFailed is called when a metadata read failed and was
// reported as absent.
type OnMetadataReadFailed interface {
	Plugin
	OnMetadataReadFailed(ctx context.Context, warningID, fdwName string, err error) error
}

// ──────────────────────────────────────────────────
// Transaction guard hooks
// ──────────────────────────────────────────────────

// OnReadOnlySkipped is called when a mutation is skipped because the
// session is read-only. op is "inc" or "set_metadata".
type OnReadOnlySkipped interface {
	Plugin
	OnReadOnlySkipped(ctx context.Context, fdwName, op string) error
}

// OnGuardUndetermined is called when the transaction mode could not be
// determined and the mutation went ahead anyway.
type OnGuardUndetermined interface {
	Plugin
	OnGuardUndetermined(ctx context.Context, fdwName string, err error) error
}
