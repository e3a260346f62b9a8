package fdwledger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/xraph/fdwledger"
	"github.com/xraph/fdwledger/plugin"
	"github.com/xraph/fdwledger/stats"
	"github.com/xraph/fdwledger/store/memory"
)

var errEngine = errors.New("engine: connection reset")

// failingStore wraps a memory store and fails the selected operations.
type failingStore struct {
	*memory.Store

	failIncrement bool
	failMetadata  bool
	failSet       bool
	guardErr      error
}

func (s *failingStore) Increment(ctx context.Context, table, fdwName string, m stats.Metric, delta int64) (int64, error) {
	if s.failIncrement {
		return 0, errEngine
	}
	return s.Store.Increment(ctx, table, fdwName, m, delta)
}

func (s *failingStore) Metadata(ctx context.Context, table, fdwName string) (json.RawMessage, error) {
	if s.failMetadata {
		return nil, errEngine
	}
	return s.Store.Metadata(ctx, table, fdwName)
}

func (s *failingStore) SetMetadata(ctx context.Context, table, fdwName string, md json.RawMessage) error {
	if s.failSet {
		return errEngine
	}
	return s.Store.SetMetadata(ctx, table, fdwName, md)
}

func (s *failingStore) ReadOnly(ctx context.Context) (bool, error) {
	if s.guardErr != nil {
		return false, s.guardErr
	}
	return s.Store.ReadOnly(ctx)
}

// recorder captures the hooks the ledger emits.
type recorder struct {
	mu           sync.Mutex
	incremented  int
	lastTotal    int64
	metadataSet  []bool
	writeFailed  []string
	readFailed   []string
	skipped      []string
	undetermined int
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) OnStatsIncremented(_ context.Context, _ string, _ stats.Metric, _, total int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.incremented++
	r.lastTotal = total
	return nil
}

func (r *recorder) OnMetadataSet(_ context.Context, _ string, cleared bool) error {
	r.metadataSet = append(r.metadataSet, cleared)
	return nil
}

func (r *recorder) OnMetadataWriteFailed(_ context.Context, warningID, _ string, _ error) error {
	r.writeFailed = append(r.writeFailed, warningID)
	return nil
}

func (r *recorder) OnMetadataReadFailed(_ context.Context, warningID, _ string, _ error) error {
	r.readFailed = append(r.readFailed, warningID)
	return nil
}

func (r *recorder) OnReadOnlySkipped(_ context.Context, _, op string) error {
	r.skipped = append(r.skipped, op)
	return nil
}

func (r *recorder) OnGuardUndetermined(_ context.Context, _ string, _ error) error {
	r.undetermined++
	return nil
}

var (
	_ plugin.OnStatsIncremented    = (*recorder)(nil)
	_ plugin.OnMetadataSet         = (*recorder)(nil)
	_ plugin.OnMetadataWriteFailed = (*recorder)(nil)
	_ plugin.OnMetadataReadFailed  = (*recorder)(nil)
	_ plugin.OnReadOnlySkipped     = (*recorder)(nil)
	_ plugin.OnGuardUndetermined   = (*recorder)(nil)
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newLedger(t *testing.T, s *memory.Store) (*fdwledger.Ledger, *recorder) {
	t.Helper()
	rec := &recorder{}
	l := fdwledger.New(s, fdwledger.WithLogger(quietLogger()), fdwledger.WithPlugin(rec))
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return l, rec
}

func TestIncCreatesRow(t *testing.T) {
	ctx := context.Background()
	l, rec := newLedger(t, memory.New())

	if err := l.Inc(ctx, "stripe", fdwledger.RowsIn, 7); err != nil {
		t.Fatalf("Inc() error = %v", err)
	}

	rows, err := l.ListStats(ctx, fdwledger.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}

	row := rows[0]
	for _, m := range stats.Metrics() {
		v := row.Value(m)
		if m == fdwledger.RowsIn {
			if v == nil || *v != 7 {
				t.Errorf("%s = %v, want 7", m, v)
			}
			continue
		}
		if v != nil {
			t.Errorf("%s = %d, want unset", m, *v)
		}
	}
	if rec.incremented != 1 || rec.lastTotal != 7 {
		t.Errorf("hook: incremented=%d total=%d, want 1 and 7", rec.incremented, rec.lastTotal)
	}
}

func TestIncSumsSequentially(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t, memory.New())

	deltas := []int64{1, 10, 100, 0, 1000}
	var want int64
	for _, d := range deltas {
		want += d
		if err := l.Inc(ctx, "s3", fdwledger.BytesOut, d); err != nil {
			t.Fatal(err)
		}
	}

	row, err := l.Stats(ctx, "s3")
	if err != nil {
		t.Fatal(err)
	}
	if got := *row.BytesOut; got != want {
		t.Errorf("bytes_out = %d, want %d", got, want)
	}
}

func TestIncConcurrent(t *testing.T) {
	const (
		workers = 16
		perWork = 250
	)

	ctx := context.Background()
	l, _ := newLedger(t, memory.New())

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWork {
				if err := l.Inc(ctx, "airtable", fdwledger.CreateTimes, 1); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("Inc() error = %v", err)
	}

	row, err := l.Stats(ctx, "airtable")
	if err != nil {
		t.Fatal(err)
	}
	if got := *row.CreateTimes; got != workers*perWork {
		t.Errorf("create_times = %d, want %d", got, workers*perWork)
	}
}

func TestIncValidation(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t, memory.New())

	tests := []struct {
		name    string
		fdw     string
		metric  stats.Metric
		wantErr error
	}{
		{"empty name", "", fdwledger.RowsIn, fdwledger.ErrInvalidName},
		{"unknown metric", "stripe", stats.Metric(99), fdwledger.ErrUnknownMetric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := l.Inc(ctx, tt.fdw, tt.metric, 1)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Inc() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestReadOnlySkipsMutations(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	l, rec := newLedger(t, s)

	if err := l.SetMetadata(ctx, "stripe", json.RawMessage(`{"v":1}`)); err != nil {
		t.Fatal(err)
	}

	s.SetReadOnly(true)

	if err := l.Inc(ctx, "stripe", fdwledger.RowsOut, 5); err != nil {
		t.Fatalf("Inc() error = %v", err)
	}
	if err := l.SetMetadata(ctx, "stripe", json.RawMessage(`{"v":2}`)); err != nil {
		t.Fatalf("SetMetadata() error = %v", err)
	}
	if err := l.Inc(ctx, "github", fdwledger.RowsOut, 5); err != nil {
		t.Fatalf("Inc() error = %v", err)
	}

	s.SetReadOnly(false)

	row, err := l.Stats(ctx, "stripe")
	if err != nil {
		t.Fatal(err)
	}
	if row.RowsOut != nil {
		t.Errorf("rows_out = %d, want unset", *row.RowsOut)
	}
	if string(row.Metadata) != `{"v":1}` {
		t.Errorf("metadata = %s, want {\"v\":1}", row.Metadata)
	}
	if _, err := l.Stats(ctx, "github"); !fdwledger.IsNotFound(err) {
		t.Errorf("Stats(github) error = %v, want not found", err)
	}

	want := []string{"inc", "set_metadata", "inc"}
	if len(rec.skipped) != len(want) {
		t.Fatalf("skipped = %v, want %v", rec.skipped, want)
	}
	for i := range want {
		if rec.skipped[i] != want[i] {
			t.Errorf("skipped[%d] = %q, want %q", i, rec.skipped[i], want[i])
		}
	}
}

func TestMetadataLifecycle(t *testing.T) {
	ctx := context.Background()
	l, rec := newLedger(t, memory.New())

	md, err := l.Metadata(ctx, "unknown")
	if err != nil || md != nil {
		t.Fatalf("Metadata(unknown) = %s, %v, want nil, nil", md, err)
	}

	steps := []struct {
		name string
		set  json.RawMessage
		want string
	}{
		{"set", json.RawMessage(`{"a":1,"b":2}`), `{"a":1,"b":2}`},
		{"replace not merge", json.RawMessage(`{"c":3}`), `{"c":3}`},
		{"clear with nil", nil, ""},
		{"set again", json.RawMessage(`[1,2]`), `[1,2]`},
		{"clear with null", json.RawMessage(`null`), ""},
	}

	for _, st := range steps {
		t.Run(st.name, func(t *testing.T) {
			if err := l.SetMetadata(ctx, "stripe", st.set); err != nil {
				t.Fatalf("SetMetadata() error = %v", err)
			}
			got, err := l.Metadata(ctx, "stripe")
			if err != nil {
				t.Fatalf("Metadata() error = %v", err)
			}
			if st.want == "" {
				if got != nil {
					t.Errorf("Metadata() = %s, want nil", got)
				}
				return
			}
			if string(got) != st.want {
				t.Errorf("Metadata() = %s, want %s", got, st.want)
			}
		})
	}

	want := []bool{false, false, true, false, true}
	if len(rec.metadataSet) != len(want) {
		t.Fatalf("metadataSet hooks = %v, want %v", rec.metadataSet, want)
	}
	for i := range want {
		if rec.metadataSet[i] != want[i] {
			t.Errorf("metadataSet[%d] = %v, want %v", i, rec.metadataSet[i], want[i])
		}
	}
}

func TestSetMetadataKeepsCounters(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t, memory.New())

	if err := l.Inc(ctx, "stripe", fdwledger.BytesIn, 512); err != nil {
		t.Fatal(err)
	}
	if err := l.SetMetadata(ctx, "stripe", json.RawMessage(`{"x":true}`)); err != nil {
		t.Fatal(err)
	}

	row, err := l.Stats(ctx, "stripe")
	if err != nil {
		t.Fatal(err)
	}
	if row.BytesIn == nil || *row.BytesIn != 512 {
		t.Errorf("bytes_in = %v, want 512", row.BytesIn)
	}
}

func TestSetMetadataInvalidDocument(t *testing.T) {
	l, _ := newLedger(t, memory.New())

	err := l.SetMetadata(context.Background(), "stripe", json.RawMessage(`{not json`))
	if !errors.Is(err, fdwledger.ErrInvalidDocument) {
		t.Errorf("SetMetadata() error = %v, want ErrInvalidDocument", err)
	}
}

func TestExecutionFailurePolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("inc propagates", func(t *testing.T) {
		s := &failingStore{Store: memory.New(), failIncrement: true}
		l := fdwledger.New(s, fdwledger.WithLogger(quietLogger()))

		err := l.Inc(ctx, "stripe", fdwledger.RowsIn, 1)
		if !errors.Is(err, fdwledger.ErrStatsWrite) {
			t.Errorf("Inc() error = %v, want ErrStatsWrite", err)
		}
		if !errors.Is(err, errEngine) {
			t.Errorf("Inc() error = %v, want wrapped engine error", err)
		}
		if !fdwledger.IsFatal(err) {
			t.Error("IsFatal() = false, want true")
		}
	})

	t.Run("set metadata warns", func(t *testing.T) {
		var logs bytes.Buffer
		rec := &recorder{}
		s := &failingStore{Store: memory.New(), failSet: true}
		l := fdwledger.New(s,
			fdwledger.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
			fdwledger.WithPlugin(rec),
		)

		if err := l.SetMetadata(ctx, "stripe", json.RawMessage(`{}`)); err != nil {
			t.Errorf("SetMetadata() error = %v, want nil", err)
		}
		if !bytes.Contains(logs.Bytes(), []byte("set fdw stats metadata failed")) {
			t.Errorf("missing warning in logs: %s", logs.String())
		}
		if len(rec.writeFailed) != 1 {
			t.Fatalf("writeFailed hooks = %d, want 1", len(rec.writeFailed))
		}
		if len(rec.metadataSet) != 0 {
			t.Errorf("metadataSet hooks = %d, want 0", len(rec.metadataSet))
		}
	})

	t.Run("metadata read reports absent", func(t *testing.T) {
		rec := &recorder{}
		s := &failingStore{Store: memory.New(), failMetadata: true}
		l := fdwledger.New(s, fdwledger.WithLogger(quietLogger()), fdwledger.WithPlugin(rec))

		md, err := l.Metadata(ctx, "stripe")
		if err != nil || md != nil {
			t.Errorf("Metadata() = %s, %v, want nil, nil", md, err)
		}
		if len(rec.readFailed) != 1 {
			t.Errorf("readFailed hooks = %d, want 1", len(rec.readFailed))
		}
	})
}

func TestDeploymentErrors(t *testing.T) {
	ctx := context.Background()
	l := fdwledger.New(memory.New(memory.WithoutTable()), fdwledger.WithLogger(quietLogger()))

	if err := l.Inc(ctx, "stripe", fdwledger.RowsIn, 1); !errors.Is(err, fdwledger.ErrStatsTableMissing) {
		t.Errorf("Inc() error = %v, want ErrStatsTableMissing", err)
	}
	if _, err := l.Metadata(ctx, "stripe"); !errors.Is(err, fdwledger.ErrStatsTableMissing) {
		t.Errorf("Metadata() error = %v, want ErrStatsTableMissing", err)
	}
	if err := l.SetMetadata(ctx, "stripe", nil); !errors.Is(err, fdwledger.ErrStatsTableMissing) {
		t.Errorf("SetMetadata() error = %v, want ErrStatsTableMissing", err)
	}
}

func TestAutoMigrateCreatesTable(t *testing.T) {
	l := fdwledger.New(memory.New(memory.WithoutTable()),
		fdwledger.WithLogger(quietLogger()),
		fdwledger.WithAutoMigrate(true),
	)
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := l.Inc(context.Background(), "stripe", fdwledger.RowsIn, 1); err != nil {
		t.Errorf("Inc() error = %v", err)
	}
}

func TestGuardFailsOpen(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	s := &failingStore{Store: memory.New(), guardErr: errors.New("show transaction_read_only: canceled")}
	l := fdwledger.New(s, fdwledger.WithLogger(quietLogger()), fdwledger.WithPlugin(rec))

	if err := l.Inc(ctx, "stripe", fdwledger.RowsIn, 3); err != nil {
		t.Fatalf("Inc() error = %v", err)
	}
	if err := l.SetMetadata(ctx, "stripe", json.RawMessage(`{"ok":1}`)); err != nil {
		t.Fatalf("SetMetadata() error = %v", err)
	}

	row, err := l.Stats(ctx, "stripe")
	if err != nil {
		t.Fatal(err)
	}
	if row.RowsIn == nil || *row.RowsIn != 3 {
		t.Errorf("rows_in = %v, want 3", row.RowsIn)
	}
	if string(row.Metadata) != `{"ok":1}` {
		t.Errorf("metadata = %s", row.Metadata)
	}
	if rec.undetermined != 2 {
		t.Errorf("undetermined hooks = %d, want 2", rec.undetermined)
	}
}

func TestWithStoreSharesPlugins(t *testing.T) {
	ctx := context.Background()
	l, rec := newLedger(t, memory.New())

	other := memory.New()
	if err := l.WithStore(other).Inc(ctx, "stripe", fdwledger.RowsIn, 1); err != nil {
		t.Fatal(err)
	}

	if _, err := l.Stats(ctx, "stripe"); !fdwledger.IsNotFound(err) {
		t.Errorf("original store Stats() error = %v, want not found", err)
	}
	if _, err := other.Get(ctx, "", "stripe"); err != nil {
		t.Errorf("bound store Get() error = %v", err)
	}
	if rec.incremented != 1 {
		t.Errorf("incremented hooks = %d, want 1", rec.incremented)
	}
}

func TestStopClosesStore(t *testing.T) {
	s := memory.New()
	l, _ := newLedger(t, s)

	if err := l.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(context.Background()); !errors.Is(err, fdwledger.ErrStoreClosed) {
		t.Errorf("Ping() error = %v, want ErrStoreClosed", err)
	}
}
