package sqlite_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/drivers/sqlitedriver"

	fdwledger "github.com/xraph/fdwledger"
	"github.com/xraph/fdwledger/stats"
	"github.com/xraph/fdwledger/store/sqlite"
)

func openGrove(t *testing.T, path string, opts ...driver.Option) *grove.DB {
	t.Helper()
	ctx := context.Background()

	drv := sqlitedriver.New()
	if err := drv.Open(ctx, path, opts...); err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db, err := grove.Open(drv)
	if err != nil {
		t.Fatalf("grove open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newLedger(s *sqlite.Store, opts ...fdwledger.Option) *fdwledger.Ledger {
	opts = append([]fdwledger.Option{
		fdwledger.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	return fdwledger.New(s, opts...)
}

func counter(t *testing.T, row *stats.Row, m stats.Metric) int64 {
	t.Helper()
	v := row.Value(m)
	if v == nil {
		t.Fatalf("%s: %s is NULL", row.FdwName, m)
	}
	return *v
}

func TestLedger(t *testing.T) {
	ctx := context.Background()
	s := sqlite.New(openGrove(t, filepath.Join(t.TempDir(), "ledger.db")), "")

	if err := newLedger(s).Start(ctx); !errors.Is(err, fdwledger.ErrStatsTableMissing) {
		t.Fatalf("Start() before migration error = %v, want ErrStatsTableMissing", err)
	}

	l := newLedger(s, fdwledger.WithAutoMigrate(true))
	if err := l.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// A second migration run finds the table already applied.
	if err := l.Start(ctx); err != nil {
		t.Fatalf("Start again: %v", err)
	}

	table, err := s.StatsTable(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if table != `"wrappers_fdw_stats"` {
		t.Errorf("StatsTable() = %q", table)
	}
	if ro, err := s.ReadOnly(ctx); err != nil || ro {
		t.Fatalf("ReadOnly() = %v, %v; want false, nil", ro, err)
	}

	t.Run("inc", func(t *testing.T) {
		for _, delta := range []int64{5, 7} {
			if err := l.Inc(ctx, "stripe", stats.RowsIn, delta); err != nil {
				t.Fatalf("Inc: %v", err)
			}
		}
		if err := l.Inc(ctx, "stripe", stats.CreateTimes, 1); err != nil {
			t.Fatalf("Inc: %v", err)
		}

		row, err := l.Stats(ctx, "stripe")
		if err != nil {
			t.Fatal(err)
		}
		if got := counter(t, row, stats.RowsIn); got != 12 {
			t.Errorf("rows_in = %d, want 12", got)
		}
		if got := counter(t, row, stats.CreateTimes); got != 1 {
			t.Errorf("create_times = %d, want 1", got)
		}
		if row.RowsOut != nil {
			t.Errorf("rows_out = %d, want NULL", *row.RowsOut)
		}
	})

	t.Run("metadata", func(t *testing.T) {
		md, err := l.Metadata(ctx, "airtable")
		if err != nil || md != nil {
			t.Fatalf("Metadata() of unknown connector = %s, %v; want nil, nil", md, err)
		}

		if err := l.SetMetadata(ctx, "stripe", json.RawMessage(`{"cursor":"abc"}`)); err != nil {
			t.Fatal(err)
		}
		md, err = l.Metadata(ctx, "stripe")
		if err != nil {
			t.Fatal(err)
		}
		if string(md) != `{"cursor":"abc"}` {
			t.Errorf("Metadata() = %s", md)
		}

		row, err := l.Stats(ctx, "stripe")
		if err != nil {
			t.Fatal(err)
		}
		if got := counter(t, row, stats.RowsIn); got != 12 {
			t.Errorf("rows_in after metadata write = %d, want 12", got)
		}

		if err := l.SetMetadata(ctx, "stripe", nil); err != nil {
			t.Fatal(err)
		}
		if md, _ := l.Metadata(ctx, "stripe"); md != nil {
			t.Errorf("Metadata() after clear = %s, want nil", md)
		}
	})

	t.Run("list", func(t *testing.T) {
		if err := l.Inc(ctx, "s3", stats.BytesIn, 64); err != nil {
			t.Fatal(err)
		}

		tests := []struct {
			name string
			opts stats.ListOpts
			want []string
		}{
			{"all", stats.ListOpts{}, []string{"s3", "stripe"}},
			{"prefix", stats.ListOpts{Prefix: "str"}, []string{"stripe"}},
			{"limit", stats.ListOpts{Limit: 1}, []string{"s3"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rows, err := l.ListStats(ctx, tt.opts)
				if err != nil {
					t.Fatal(err)
				}
				if len(rows) != len(tt.want) {
					t.Fatalf("got %d rows, want %d", len(rows), len(tt.want))
				}
				for i, r := range rows {
					if r.FdwName != tt.want[i] {
						t.Errorf("rows[%d] = %q, want %q", i, r.FdwName, tt.want[i])
					}
				}
			})
		}
	})

	t.Run("not found", func(t *testing.T) {
		if _, err := l.Stats(ctx, "missing"); !errors.Is(err, fdwledger.ErrNotFound) {
			t.Errorf("Stats() error = %v, want ErrNotFound", err)
		}
	})
}

func TestReadOnlyConnection(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	rw := sqlite.New(openGrove(t, path), "")
	l := newLedger(rw, fdwledger.WithAutoMigrate(true))
	if err := l.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := l.Inc(ctx, "stripe", stats.RowsIn, 3); err != nil {
		t.Fatal(err)
	}

	// query_only is per connection, so the read-only handle keeps exactly one.
	roDB := openGrove(t, path, driver.WithPoolSize(1))
	if _, err := sqlitedriver.Unwrap(roDB).Exec(ctx, "PRAGMA query_only = 1"); err != nil {
		t.Fatal(err)
	}
	ro := sqlite.New(roDB, "")

	got, err := ro.ReadOnly(ctx)
	if err != nil {
		t.Fatalf("ReadOnly: %v", err)
	}
	if !got {
		t.Fatal("ReadOnly() = false on a query_only connection")
	}

	rol := newLedger(ro)
	if err := rol.Inc(ctx, "stripe", stats.RowsIn, 100); err != nil {
		t.Errorf("Inc() in read-only mode = %v, want nil", err)
	}
	if err := rol.SetMetadata(ctx, "stripe", json.RawMessage(`{"a":1}`)); err != nil {
		t.Errorf("SetMetadata() in read-only mode = %v, want nil", err)
	}

	row, err := rol.Stats(ctx, "stripe")
	if err != nil {
		t.Fatal(err)
	}
	if got := counter(t, row, stats.RowsIn); got != 3 {
		t.Errorf("rows_in = %d, want 3", got)
	}
	if row.Metadata != nil {
		t.Errorf("metadata = %s, want NULL", row.Metadata)
	}
}
