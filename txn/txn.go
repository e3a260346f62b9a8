// Package txn reports the read/write mode of the caller's transaction.
//
// Writing to the ledger from a read-only transaction would abort the caller's
// work, so the ledger asks a Guard before every mutation. Guards fail open:
// only an explicit read-only answer suppresses a write.
package txn

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/xraph/fdwledger/sqlexec"
)

// Guard reports whether the current transaction is read-only.
type Guard interface {
	ReadOnly(ctx context.Context) (bool, error)
}

// Postgres reads the transaction_read_only setting.
type Postgres struct {
	scalar sqlexec.ScalarFunc
}

// NewPostgres creates a guard that queries through scalar.
func NewPostgres(scalar sqlexec.ScalarFunc) *Postgres {
	return &Postgres{scalar: scalar}
}

// ReadOnly implements Guard. Only the literal "on" counts as read-only.
func (p *Postgres) ReadOnly(ctx context.Context) (bool, error) {
	var mode sql.NullString
	if err := p.scalar(ctx, &mode, "SHOW transaction_read_only"); err != nil {
		return false, fmt.Errorf("fdwledger/txn: show transaction_read_only: %w", err)
	}
	return mode.Valid && mode.String == "on", nil
}

// SQLite reads the query_only pragma of the connection.
type SQLite struct {
	scalar sqlexec.ScalarFunc
}

// NewSQLite creates a guard that queries through scalar.
func NewSQLite(scalar sqlexec.ScalarFunc) *SQLite {
	return &SQLite{scalar: scalar}
}

// ReadOnly implements Guard. Only the literal 1 counts as read-only.
func (s *SQLite) ReadOnly(ctx context.Context) (bool, error) {
	var mode sql.NullInt64
	if err := s.scalar(ctx, &mode, "PRAGMA query_only"); err != nil {
		return false, fmt.Errorf("fdwledger/txn: pragma query_only: %w", err)
	}
	return mode.Valid && mode.Int64 == 1, nil
}

// Static is a Guard with a fixed answer, for stores without transaction modes.
type Static bool

// ReadOnly implements Guard.
func (s Static) ReadOnly(context.Context) (bool, error) {
	return bool(s), nil
}
