// Package stats defines the per-connector ledger row and the closed set of
// counters a connector can report.
package stats

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xraph/fdwledger/types"
)

// ErrUnknownMetric is returned for a Metric outside the closed set.
var ErrUnknownMetric = errors.New("fdwledger: unknown metric")

// Metric selects one of the fixed ledger counters.
type Metric int

const (
	CreateTimes Metric = iota
	RowsIn
	RowsOut
	BytesIn
	BytesOut

	numMetrics
)

// columns is the only source of counter column names that ever reach SQL text.
var columns = [numMetrics]string{
	CreateTimes: "create_times",
	RowsIn:      "rows_in",
	RowsOut:     "rows_out",
	BytesIn:     "bytes_in",
	BytesOut:    "bytes_out",
}

// Metrics returns every counter in column order.
func Metrics() []Metric {
	return []Metric{CreateTimes, RowsIn, RowsOut, BytesIn, BytesOut}
}

// Valid reports whether m is one of the fixed counters.
func (m Metric) Valid() bool {
	return m >= 0 && m < numMetrics
}

// Column returns the ledger column backing m.
func (m Metric) Column() (string, error) {
	if !m.Valid() {
		return "", fmt.Errorf("%w: %d", ErrUnknownMetric, int(m))
	}
	return columns[m], nil
}

func (m Metric) String() string {
	if !m.Valid() {
		return fmt.Sprintf("Metric(%d)", int(m))
	}
	return columns[m]
}

// ParseMetric maps a column name back to its Metric.
func ParseMetric(s string) (Metric, error) {
	for i, c := range columns {
		if c == s {
			return Metric(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMetric, s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Metric) MarshalText() ([]byte, error) {
	c, err := m.Column()
	if err != nil {
		return nil, err
	}
	return []byte(c), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Metric) UnmarshalText(data []byte) error {
	parsed, err := ParseMetric(string(data))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Row is the ledger entry of a single connector. A nil counter has never been
// recorded; a nil Metadata has never been set or was cleared.
type Row struct {
	types.Entity

	FdwName     string          `json:"fdw_name"`
	CreateTimes *int64          `json:"create_times,omitempty"`
	RowsIn      *int64          `json:"rows_in,omitempty"`
	RowsOut     *int64          `json:"rows_out,omitempty"`
	BytesIn     *int64          `json:"bytes_in,omitempty"`
	BytesOut    *int64          `json:"bytes_out,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// Value returns the counter selected by m.
func (r *Row) Value(m Metric) *int64 {
	switch m {
	case CreateTimes:
		return r.CreateTimes
	case RowsIn:
		return r.RowsIn
	case RowsOut:
		return r.RowsOut
	case BytesIn:
		return r.BytesIn
	case BytesOut:
		return r.BytesOut
	default:
		return nil
	}
}

// SetValue stores v into the counter selected by m.
func (r *Row) SetValue(m Metric, v *int64) {
	switch m {
	case CreateTimes:
		r.CreateTimes = v
	case RowsIn:
		r.RowsIn = v
	case RowsOut:
		r.RowsOut = v
	case BytesIn:
		r.BytesIn = v
	case BytesOut:
		r.BytesOut = v
	}
}

// ListOpts filters ListStats results.
type ListOpts struct {
	// Prefix restricts results to connector names starting with it.
	Prefix string
	Limit  int
	Offset int
}
