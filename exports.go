package fdwledger

import (
	"github.com/xraph/fdwledger/stats"
	"github.com/xraph/fdwledger/types"
)

// Re-export common types for convenience so connectors only import the root package.

// Metric is re-exported from the stats package.
type Metric = stats.Metric

// Row is re-exported from the stats package.
type Row = stats.Row

// ListOpts is re-exported from the stats package.
type ListOpts = stats.ListOpts

// Entity is re-exported from the types package.
type Entity = types.Entity

// Re-export the counter selectors.
const (
	CreateTimes = stats.CreateTimes
	RowsIn      = stats.RowsIn
	RowsOut     = stats.RowsOut
	BytesIn     = stats.BytesIn
	BytesOut    = stats.BytesOut
)

// ParseMetric is re-exported from the stats package.
var ParseMetric = stats.ParseMetric
