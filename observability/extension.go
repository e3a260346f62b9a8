// Package observability provides a metrics extension for fdwledger that
// records counter traffic and metadata failures via a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/fdwledger/plugin"
	"github.com/xraph/fdwledger/stats"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                = (*MetricsExtension)(nil)
	_ plugin.OnInit                = (*MetricsExtension)(nil)
	_ plugin.OnStatsIncremented    = (*MetricsExtension)(nil)
	_ plugin.OnMetadataSet         = (*MetricsExtension)(nil)
	_ plugin.OnMetadataWriteFailed = (*MetricsExtension)(nil)
	_ plugin.OnMetadataReadFailed  = (*MetricsExtension)(nil)
	_ plugin.OnReadOnlySkipped     = (*MetricsExtension)(nil)
	_ plugin.OnGuardUndetermined   = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records ledger traffic as process metrics.
// Register it as a Ledger plugin to mirror every connector counter.
type MetricsExtension struct {
	factory MetricFactory

	// Counter metrics, one per ledger column
	Increments  Counter
	MetricTotal map[stats.Metric]Counter
	Delta       Histogram

	// Metadata metrics
	MetadataSet         Counter
	MetadataCleared     Counter
	MetadataWriteFailed Counter
	MetadataReadFailed  Counter

	// Transaction guard metrics
	ReadOnlySkipped   Counter
	GuardUndetermined Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	m := &MetricsExtension{
		factory: factory,

		Increments:  factory.Counter("fdwledger.stats.increments"),
		MetricTotal: make(map[stats.Metric]Counter, len(stats.Metrics())),
		Delta:       factory.Histogram("fdwledger.stats.delta"),

		MetadataSet:         factory.Counter("fdwledger.metadata.set"),
		MetadataCleared:     factory.Counter("fdwledger.metadata.cleared"),
		MetadataWriteFailed: factory.Counter("fdwledger.metadata.write_failed"),
		MetadataReadFailed:  factory.Counter("fdwledger.metadata.read_failed"),

		ReadOnlySkipped:   factory.Counter("fdwledger.txn.read_only_skipped"),
		GuardUndetermined: factory.Counter("fdwledger.txn.guard_undetermined"),
	}
	for _, metric := range stats.Metrics() {
		m.MetricTotal[metric] = factory.Counter("fdwledger.stats." + metric.String())
	}
	return m
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Counter hooks
// ──────────────────────────────────────────────────

// OnStatsIncremented implements plugin.OnStatsIncremented.
func (m *MetricsExtension) OnStatsIncremented(_ context.Context, _ string, metric stats.Metric, delta, _ int64) error {
	m.Increments.Inc()
	m.Delta.Observe(float64(delta))
	if c, ok := m.MetricTotal[metric]; ok {
		c.Add(float64(delta))
	}
	return nil
}

// ──────────────────────────────────────────────────
// Metadata hooks
// ──────────────────────────────────────────────────

// OnMetadataSet implements plugin.OnMetadataSet.
func (m *MetricsExtension) OnMetadataSet(_ context.Context, _ string, cleared bool) error {
	if cleared {
		m.MetadataCleared.Inc()
	} else {
		m.MetadataSet.Inc()
	}
	return nil
}

// OnMetadataWriteFailed implements plugin.OnMetadataWriteFailed.
func (m *MetricsExtension) OnMetadataWriteFailed(_ context.Context, _, _ string, _ error) error {
	m.MetadataWriteFailed.Inc()
	return nil
}

// OnMetadataReadFailed implements plugin.OnMetadataReadFailed.
func (m *MetricsExtension) OnMetadataReadFailed(_ context.Context, _, _ string, _ error) error {
	m.MetadataReadFailed.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Transaction guard hooks
// ──────────────────────────────────────────────────

// OnReadOnlySkipped implements plugin.OnReadOnlySkipped.
func (m *MetricsExtension) OnReadOnlySkipped(_ context.Context, _, _ string) error {
	m.ReadOnlySkipped.Inc()
	return nil
}

// OnGuardUndetermined implements plugin.OnGuardUndetermined.
func (m *MetricsExtension) OnGuardUndetermined(_ context.Context, _ string, _ error) error {
	m.GuardUndetermined.Inc()
	return nil
}
