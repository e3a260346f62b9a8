// Package pgsql builds the parameterised ledger statements shared by the SQL
// backends. Table names come from a catalog.Locator and counter columns from
// the fixed stats.Metric table; connector input only ever travels as a bind
// parameter.
package pgsql

import (
	"encoding/json"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/xraph/fdwledger/stats"
)

const (
	ColFdwName     = "fdw_name"
	ColCreateTimes = "create_times"
	ColRowsIn      = "rows_in"
	ColRowsOut     = "rows_out"
	ColBytesIn     = "bytes_in"
	ColBytesOut    = "bytes_out"
	ColMetadata    = "metadata"
	ColCreatedAt   = "created_at"
	ColUpdatedAt   = "updated_at"
)

// RowColumns is the select list matching RowDest.
var RowColumns = []string{
	ColFdwName,
	ColCreateTimes,
	ColRowsIn,
	ColRowsOut,
	ColBytesIn,
	ColBytesOut,
	ColMetadata,
	ColCreatedAt,
	ColUpdatedAt,
}

// Dialect captures the per-engine differences of the ledger statements.
type Dialect struct {
	format   sq.PlaceholderFormat
	now      string
	jsonBind string
}

var (
	// Postgres stamps rows in UTC, matching the extension's column defaults.
	Postgres = Dialect{
		format:   sq.Dollar,
		now:      "timezone('utc'::text, now())",
		jsonBind: "CAST(? AS jsonb)",
	}

	SQLite = Dialect{
		format:   sq.Question,
		now:      "CURRENT_TIMESTAMP",
		jsonBind: "?",
	}
)

func (d Dialect) builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(d.format)
}

// Increment adds delta to the metric column in a single upsert, treating an
// unset counter as zero, and returns the new total.
func (d Dialect) Increment(table, fdwName string, m stats.Metric, delta int64) (string, []any, error) {
	col, err := m.Column()
	if err != nil {
		return "", nil, err
	}
	return d.builder().
		Insert(table+" AS s").
		Columns(ColFdwName, col).
		Values(fdwName, delta).
		Suffix(fmt.Sprintf(
			"ON CONFLICT (%[1]s) DO UPDATE SET %[2]s = COALESCE(s.%[2]s, 0) + excluded.%[2]s, %[3]s = %[4]s RETURNING %[2]s",
			ColFdwName, col, ColUpdatedAt, d.now,
		)).
		ToSql()
}

// SetMetadata replaces the metadata document; a nil document stores NULL.
func (d Dialect) SetMetadata(table, fdwName string, md json.RawMessage) (string, []any, error) {
	var doc any
	if md != nil {
		doc = string(md)
	}
	return d.builder().
		Insert(table+" AS s").
		Columns(ColFdwName, ColMetadata).
		Values(fdwName, sq.Expr(d.jsonBind, doc)).
		Suffix(fmt.Sprintf(
			"ON CONFLICT (%[1]s) DO UPDATE SET %[2]s = excluded.%[2]s, %[3]s = %[4]s RETURNING %[1]s",
			ColFdwName, ColMetadata, ColUpdatedAt, d.now,
		)).
		ToSql()
}

// Metadata selects the metadata document of a single connector.
func (d Dialect) Metadata(table, fdwName string) (string, []any, error) {
	return d.builder().
		Select(ColMetadata).
		From(table).
		Where(sq.Eq{ColFdwName: fdwName}).
		ToSql()
}

// Get selects the full row of a single connector.
func (d Dialect) Get(table, fdwName string) (string, []any, error) {
	return d.builder().
		Select(RowColumns...).
		From(table).
		Where(sq.Eq{ColFdwName: fdwName}).
		ToSql()
}

// List selects rows ordered by connector name.
func (d Dialect) List(table string, opts stats.ListOpts) (string, []any, error) {
	q := d.builder().
		Select(RowColumns...).
		From(table).
		OrderBy(ColFdwName)

	if opts.Prefix != "" {
		q = q.Where(ColFdwName+` LIKE ? ESCAPE '\'`, escapeLike(opts.Prefix)+"%")
	}
	if opts.Limit > 0 {
		q = q.Limit(uint64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Offset(uint64(opts.Offset))
	}
	return q.ToSql()
}

// RowDest returns scan destinations for RowColumns.
func RowDest(r *stats.Row, metadata *[]byte) []any {
	return []any{
		&r.FdwName,
		&r.CreateTimes,
		&r.RowsIn,
		&r.RowsOut,
		&r.BytesIn,
		&r.BytesOut,
		metadata,
		&r.CreatedAt,
		&r.UpdatedAt,
	}
}

// Document converts a scanned metadata column to the ledger representation.
func Document(raw []byte) json.RawMessage {
	if raw == nil {
		return nil
	}
	return json.RawMessage(raw)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
