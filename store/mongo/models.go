package mongo

import (
	"encoding/json"
	"time"

	"github.com/xraph/fdwledger/stats"
	"github.com/xraph/fdwledger/types"
)

// statsModel is one ledger document keyed by connector name. Metadata is
// kept as JSON text so documents come back byte for byte.
type statsModel struct {
	FdwName     string    `bson:"_id"`
	CreateTimes *int64    `bson:"create_times,omitempty"`
	RowsIn      *int64    `bson:"rows_in,omitempty"`
	RowsOut     *int64    `bson:"rows_out,omitempty"`
	BytesIn     *int64    `bson:"bytes_in,omitempty"`
	BytesOut    *int64    `bson:"bytes_out,omitempty"`
	Metadata    *string   `bson:"metadata,omitempty"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func fromStatsModel(m *statsModel) *stats.Row {
	r := &stats.Row{
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
	}
	if m.Metadata != nil {
		r.Metadata = json.RawMessage(*m.Metadata)
	}
	return r
}
