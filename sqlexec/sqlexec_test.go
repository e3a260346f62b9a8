package sqlexec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestIsNoRows(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"database/sql", sql.ErrNoRows, true},
		{"pgx", pgx.ErrNoRows, true},
		{"wrapped", fmt.Errorf("select: %w", sql.ErrNoRows), true},
		{"other", errors.New("connection reset"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNoRows(tt.err); got != tt.want {
				t.Errorf("IsNoRows(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

// rowModelScalar behaves like a raw query engine that hands every struct
// pointer to a row-model scanner: it fills plain destinations with value and
// rejects structs.
func rowModelScalar(value any, err error) ScalarFunc {
	return func(_ context.Context, dest any, _ string, _ ...any) error {
		if err != nil {
			return err
		}
		rv := reflect.ValueOf(dest).Elem()
		if rv.Kind() == reflect.Struct {
			return fmt.Errorf("expected 1 destination arguments in Scan, not %d", rv.NumField())
		}
		if value == nil {
			rv.Set(reflect.Zero(rv.Type()))
			return nil
		}
		rv.Set(reflect.ValueOf(value))
		return nil
	}
}

func TestWithScannersNullString(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  sql.NullString
	}{
		{"text", "wrappers_fdw_stats", sql.NullString{String: "wrappers_fdw_stats", Valid: true}},
		{"null", nil, sql.NullString{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got sql.NullString
			fn := WithScanners(rowModelScalar(tt.value, nil))
			if err := fn(context.Background(), &got, "SELECT 1"); err != nil {
				t.Fatalf("scan: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestWithScannersNullInt64(t *testing.T) {
	var got sql.NullInt64
	fn := WithScanners(rowModelScalar(int64(1), nil))
	if err := fn(context.Background(), &got, "PRAGMA query_only"); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !got.Valid || got.Int64 != 1 {
		t.Errorf("got %+v, want 1", got)
	}
}

func TestWithScannersPlainDestination(t *testing.T) {
	var total int64
	fn := WithScanners(rowModelScalar(int64(42), nil))
	if err := fn(context.Background(), &total, "SELECT 42"); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if total != 42 {
		t.Errorf("got %d, want 42", total)
	}
}

func TestWithScannersPassesErrors(t *testing.T) {
	var got sql.NullString
	fn := WithScanners(rowModelScalar(nil, sql.ErrNoRows))
	if err := fn(context.Background(), &got, "SELECT 1"); !IsNoRows(err) {
		t.Fatalf("got %v, want no-rows error", err)
	}
}
