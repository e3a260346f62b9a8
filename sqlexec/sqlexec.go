// Package sqlexec is the seam between the ledger and the SQL engine that
// executes its statements.
package sqlexec

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
)

// ScalarFunc runs query and scans the first column of its single result row
// into dest. It returns a no-rows error when the query yields nothing.
type ScalarFunc func(ctx context.Context, dest any, query string, args ...any) error

// IsNoRows reports whether err signals an empty result from either
// database/sql based drivers or pgx.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows)
}

// WithScanners wraps fn so sql.Scanner destinations such as sql.NullString
// are filled from a plain value. Engines whose raw scan treats every struct
// pointer as a row model need it.
func WithScanners(fn ScalarFunc) ScalarFunc {
	return func(ctx context.Context, dest any, query string, args ...any) error {
		sc, ok := dest.(sql.Scanner)
		if !ok {
			return fn(ctx, dest, query, args...)
		}
		var v any
		if err := fn(ctx, &v, query, args...); err != nil {
			return err
		}
		return sc.Scan(v)
	}
}
