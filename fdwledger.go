package fdwledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/xraph/fdwledger/id"
	"github.com/xraph/fdwledger/plugin"
	"github.com/xraph/fdwledger/stats"
	"github.com/xraph/fdwledger/store"
)

// Ledger records per-connector counters and metadata in the shared stats
// table. It is safe for concurrent use; every operation runs synchronously
// in the session of its store.
type Ledger struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger

	autoMigrate bool
}

// New creates a new Ledger instance.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:   s,
		plugins: plugin.NewRegistry(),
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithAutoMigrate makes Start create the stats table when it is missing.
// Off by default: the table normally belongs to the extension's install script.
func WithAutoMigrate(enabled bool) Option {
	return func(l *Ledger) {
		l.autoMigrate = enabled
	}
}

// WithStore returns a Ledger that shares plugins and logger with l but runs
// its statements through s, typically a store bound to the caller's transaction.
func (l *Ledger) WithStore(s store.Store) *Ledger {
	c := *l
	c.store = s
	return &c
}

// Start verifies the deployment and initialises plugins. A missing
// extension or stats table is reported here rather than on the first write.
func (l *Ledger) Start(ctx context.Context) error {
	if l.autoMigrate {
		if err := l.store.Migrate(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
		}
	}

	table, err := l.store.StatsTable(ctx)
	if err != nil {
		return err
	}

	l.plugins.EmitInit(ctx, l)

	l.logger.Info("fdw ledger started",
		"table", table,
		"auto_migrate", l.autoMigrate,
		"plugins", l.plugins.Count(),
	)

	return nil
}

// Stop shuts down plugins and closes the store.
func (l *Ledger) Stop() error {
	l.plugins.EmitShutdown(context.Background())
	return l.store.Close()
}

// ──────────────────────────────────────────────────
// Counters
// ──────────────────────────────────────────────────

// Inc adds delta to the metric counter of fdwName, creating the ledger row
// on first use. Inside a read-only transaction it does nothing.
//
// Every returned error is fatal for the caller: a deployment error, or
// ErrStatsWrite wrapping the engine failure.
func (l *Ledger) Inc(ctx context.Context, fdwName string, m stats.Metric, delta int64) error {
	if fdwName == "" {
		return ErrInvalidName
	}
	if !m.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownMetric, int(m))
	}

	if l.readOnly(ctx, fdwName) {
		l.plugins.EmitReadOnlySkipped(ctx, fdwName, "inc")
		return nil
	}

	table, err := l.store.StatsTable(ctx)
	if err != nil {
		if IsDeploymentError(err) {
			return err
		}
		return fmt.Errorf("%w: locate stats table: %w", ErrStatsWrite, err)
	}

	total, err := l.store.Increment(ctx, table, fdwName, m, delta)
	if err != nil {
		l.logger.Error("insert into fdw stats table failed",
			"fdw_name", fdwName,
			"metric", m.String(),
			"delta", delta,
			"error", err,
		)
		return fmt.Errorf("%w: %s %s: %w", ErrStatsWrite, fdwName, m, err)
	}

	l.plugins.EmitStatsIncremented(ctx, fdwName, m, delta, total)
	return nil
}

// ──────────────────────────────────────────────────
// Metadata
// ──────────────────────────────────────────────────

// Metadata returns the metadata document of fdwName, or nil when the
// connector has no row or no document. Engine failures are reported as a
// warning and read as "no metadata"; only deployment errors are returned.
func (l *Ledger) Metadata(ctx context.Context, fdwName string) (json.RawMessage, error) {
	table, err := l.store.StatsTable(ctx)
	if err != nil {
		if IsDeploymentError(err) {
			return nil, err
		}
		l.metadataReadFailed(ctx, fdwName, err)
		return nil, nil
	}

	md, err := l.store.Metadata(ctx, table, fdwName)
	if err != nil {
		l.metadataReadFailed(ctx, fdwName, err)
		return nil, nil
	}
	return md, nil
}

// SetMetadata replaces the metadata document of fdwName; nil (or a JSON
// null) clears it. Inside a read-only transaction it does nothing.
//
// Engine failures are reported as a warning and not returned. Deployment
// errors and invalid input are.
func (l *Ledger) SetMetadata(ctx context.Context, fdwName string, md json.RawMessage) error {
	if fdwName == "" {
		return ErrInvalidName
	}
	md = normalizeDocument(md)
	if md != nil && !json.Valid(md) {
		return ErrInvalidDocument
	}

	if l.readOnly(ctx, fdwName) {
		l.plugins.EmitReadOnlySkipped(ctx, fdwName, "set_metadata")
		return nil
	}

	table, err := l.store.StatsTable(ctx)
	if err != nil {
		if IsDeploymentError(err) {
			return err
		}
		l.metadataWriteFailed(ctx, fdwName, err)
		return nil
	}

	if err := l.store.SetMetadata(ctx, table, fdwName, md); err != nil {
		l.metadataWriteFailed(ctx, fdwName, err)
		return nil
	}

	l.plugins.EmitMetadataSet(ctx, fdwName, md == nil)
	return nil
}

// ──────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────

// Stats returns the full ledger row of fdwName.
func (l *Ledger) Stats(ctx context.Context, fdwName string) (*stats.Row, error) {
	table, err := l.store.StatsTable(ctx)
	if err != nil {
		return nil, err
	}
	return l.store.Get(ctx, table, fdwName)
}

// ListStats returns ledger rows ordered by connector name.
func (l *Ledger) ListStats(ctx context.Context, opts stats.ListOpts) ([]*stats.Row, error) {
	table, err := l.store.StatsTable(ctx)
	if err != nil {
		return nil, err
	}
	return l.store.List(ctx, table, opts)
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// readOnly consults the transaction guard. An undetermined mode counts as
// writable so that telemetry is not silently dropped.
func (l *Ledger) readOnly(ctx context.Context, fdwName string) bool {
	ro, err := l.store.ReadOnly(ctx)
	if err != nil {
		l.logger.Debug("transaction mode undetermined, assuming writable",
			"fdw_name", fdwName,
			"error", err,
		)
		l.plugins.EmitGuardUndetermined(ctx, fdwName, err)
		return false
	}
	return ro
}

func (l *Ledger) metadataReadFailed(ctx context.Context, fdwName string, err error) {
	warningID := id.NewWarningID().String()
	l.logger.Warn("get fdw stats metadata failed",
		"warning_id", warningID,
		"fdw_name", fdwName,
		"error", err,
	)
	l.plugins.EmitMetadataReadFailed(ctx, warningID, fdwName, err)
}

func (l *Ledger) metadataWriteFailed(ctx context.Context, fdwName string, err error) {
	warningID := id.NewWarningID().String()
	l.logger.Warn("set fdw stats metadata failed",
		"warning_id", warningID,
		"fdw_name", fdwName,
		"error", err,
	)
	l.plugins.EmitMetadataWriteFailed(ctx, warningID, fdwName, err)
}

func normalizeDocument(md json.RawMessage) json.RawMessage {
	if md == nil || bytes.Equal(bytes.TrimSpace(md), []byte("null")) {
		return nil
	}
	return md
}
