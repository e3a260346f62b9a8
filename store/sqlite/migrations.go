package sqlite

import (
	"context"
	"fmt"

	"github.com/xraph/grove/migrate"

	"github.com/xraph/fdwledger/catalog"
)

// Migrations is the grove migration group for the default stats table (SQLite).
var Migrations = NewMigrations(catalog.DefaultTable)

// NewMigrations returns the migration group creating the stats table under
// the given name. Metadata is stored as JSON text.
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
    create_times INTEGER NULL,
    rows_in      INTEGER NULL,
    rows_out     INTEGER NULL,
    bytes_in     INTEGER NULL,
    bytes_out    INTEGER NULL,
    metadata     TEXT NULL CHECK (metadata IS NULL OR json_valid(metadata)),
    created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
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
