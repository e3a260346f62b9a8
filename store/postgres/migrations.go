package postgres

import (
	"context"
	"fmt"

	"github.com/xraph/grove/migrate"

	"github.com/xraph/fdwledger/catalog"
)

// Migrations is the grove migration group for the default stats table.
var Migrations = NewMigrations(catalog.DefaultTable)

// NewMigrations returns the migration group creating the stats table under
// the given unqualified name. The table lands in the first schema of the
// session search path.
func NewMigrations(table string) *migrate.Group {
	g := migrate.NewGroup("fdwledger")
	g.MustRegister(
		&migrate.Migration{
			Name:    "create_" + table,
			Version: "20240601000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    fdw_name     TEXT NOT NULL PRIMARY KEY,
    create_times BIGINT NULL,
    rows_in      BIGINT NULL,
    rows_out     BIGINT NULL,
    bytes_in     BIGINT NULL,
    bytes_out    BIGINT NULL,
    metadata     JSONB NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT timezone('utc'::text, now()),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT timezone('utc'::text, now())
);
`, table))
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, table))
				return err
			},
		},
	)
	return g
}
