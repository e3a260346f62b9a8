package postgres

import (
	"encoding/json"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/fdwledger/internal/pgsql"
	"github.com/xraph/fdwledger/stats"
	"github.com/xraph/fdwledger/types"
)

type statsModel struct {
	grove.BaseModel `grove:"table:wrappers_fdw_stats"`

	FdwName     string          `grove:"fdw_name,pk"`
	CreateTimes *int64          `grove:"create_times"`
	RowsIn      *int64          `grove:"rows_in"`
	RowsOut     *int64          `grove:"rows_out"`
	BytesIn     *int64          `grove:"bytes_in"`
	BytesOut    *int64          `grove:"bytes_out"`
	Metadata    json.RawMessage `grove:"metadata,type:jsonb"`
	CreatedAt   time.Time       `grove:"created_at"`
	UpdatedAt   time.Time       `grove:"updated_at"`
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
