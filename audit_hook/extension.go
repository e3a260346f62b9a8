// Package audithook bridges ledger events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import an
// audit library directly. Callers inject a RecorderFunc adapter at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/fdwledger/id"
	"github.com/xraph/fdwledger/plugin"
	"github.com/xraph/fdwledger/stats"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                = (*Extension)(nil)
	_ plugin.OnStatsIncremented    = (*Extension)(nil)
	_ plugin.OnMetadataSet         = (*Extension)(nil)
	_ plugin.OnMetadataWriteFailed = (*Extension)(nil)
	_ plugin.OnMetadataReadFailed  = (*Extension)(nil)
	_ plugin.OnReadOnlySkipped     = (*Extension)(nil)
	_ plugin.OnGuardUndetermined   = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	ID         id.AuditEventID `json:"id"`
	Action     string          `json:"action"`
	Resource   string          `json:"resource"`
	Category   string          `json:"category"`
	ResourceID string          `json:"resource_id,omitempty"`
	Metadata   map[string]any  `json:"metadata,omitempty"`
	Outcome    string          `json:"outcome"`
	Severity   string          `json:"severity"`
	Reason     string          `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges ledger events to an audit trail backend.
// The resource ID of every event is the connector name.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Counter hooks
// ──────────────────────────────────────────────────

// OnStatsIncremented implements plugin.OnStatsIncremented.
func (e *Extension) OnStatsIncremented(ctx context.Context, fdwName string, m stats.Metric, delta, total int64) error {
	return e.record(ctx, ActionStatsIncremented, SeverityInfo, OutcomeSuccess,
		ResourceStats, fdwName, CategoryUsage, nil,
		"metric", m.String(),
		"delta", delta,
		"total", total,
	)
}

// ──────────────────────────────────────────────────
// Metadata hooks
// ──────────────────────────────────────────────────

// OnMetadataSet implements plugin.OnMetadataSet.
func (e *Extension) OnMetadataSet(ctx context.Context, fdwName string, cleared bool) error {
	action := ActionMetadataSet
	if cleared {
		action = ActionMetadataCleared
	}
	return e.record(ctx, action, SeverityInfo, OutcomeSuccess,
		ResourceMetadata, fdwName, CategoryConnector, nil,
	)
}

// OnMetadataWriteFailed implements plugin.OnMetadataWriteFailed.
func (e *Extension) OnMetadataWriteFailed(ctx context.Context, warningID, fdwName string, err error) error {
	return e.record(ctx, ActionMetadataWriteFailed, SeverityWarning, OutcomeFailure,
		ResourceMetadata, fdwName, CategoryConnector, err,
		"warning_id", warningID,
	)
}

// OnMetadataReadFailed implements plugin.OnMetadataReadFailed.
func (e *Extension) OnMetadataReadFailed(ctx context.Context, warningID, fdwName string, err error) error {
	return e.record(ctx, ActionMetadataReadFailed, SeverityWarning, OutcomeFailure,
		ResourceMetadata, fdwName, CategoryConnector, err,
		"warning_id", warningID,
	)
}

// ──────────────────────────────────────────────────
// Transaction guard hooks
// ──────────────────────────────────────────────────

// OnReadOnlySkipped implements plugin.OnReadOnlySkipped.
func (e *Extension) OnReadOnlySkipped(ctx context.Context, fdwName, op string) error {
	return e.record(ctx, ActionReadOnlySkipped, SeverityInfo, OutcomeSkipped,
		ResourceTransaction, fdwName, CategoryConsistency, nil,
		"op", op,
	)
}

// OnGuardUndetermined implements plugin.OnGuardUndetermined.
func (e *Extension) OnGuardUndetermined(ctx context.Context, fdwName string, err error) error {
	return e.record(ctx, ActionGuardUndetermined, SeverityWarning, OutcomeSuccess,
		ResourceTransaction, fdwName, CategoryConsistency, err,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		ID:         id.NewAuditEventID(),
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
