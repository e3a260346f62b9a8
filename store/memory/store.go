// Package memory provides an in-process Store for tests and demos.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	fdwledger "github.com/xraph/fdwledger"
	"github.com/xraph/fdwledger/catalog"
	"github.com/xraph/fdwledger/stats"
	"github.com/xraph/fdwledger/store"
	"github.com/xraph/fdwledger/types"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store keeps ledger rows in a map. The mutex plays the role of the
// database's atomic upsert: every read-add-write happens under it.
type Store struct {
	mu       sync.RWMutex
	table    string
	missing  bool
	readOnly bool
	closed   bool
	rows     map[string]*stats.Row
}

// Option configures a memory store.
type Option func(*Store)

// WithTable sets the name reported by StatsTable.
func WithTable(name string) Option {
	return func(s *Store) { s.table = name }
}

// WithoutTable makes StatsTable report a missing deployment.
func WithoutTable() Option {
	return func(s *Store) { s.missing = true }
}

// New creates an empty memory store.
func New(opts ...Option) *Store {
	s := &Store{
		table: "memory." + catalog.DefaultTable,
		rows:  make(map[string]*stats.Row),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetReadOnly simulates the session entering or leaving a read-only transaction.
func (s *Store) SetReadOnly(readOnly bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readOnly = readOnly
}

// StatsTable implements catalog.Locator.
func (s *Store) StatsTable(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.missing {
		return "", catalog.ErrStatsTableMissing
	}
	return s.table, nil
}

// ReadOnly implements txn.Guard.
func (s *Store) ReadOnly(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readOnly, nil
}

// Stats Store implementation

func (s *Store) Increment(_ context.Context, _, fdwName string, m stats.Metric, delta int64) (int64, error) {
	if _, err := m.Column(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fdwledger.ErrStoreClosed
	}

	row := s.upsert(fdwName)
	var total int64
	if cur := row.Value(m); cur != nil {
		total = *cur
	}
	total += delta
	row.SetValue(m, &total)
	return total, nil
}

func (s *Store) Metadata(_ context.Context, _, fdwName string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fdwledger.ErrStoreClosed
	}
	row, ok := s.rows[fdwName]
	if !ok {
		return nil, nil
	}
	return clone(row.Metadata), nil
}

func (s *Store) SetMetadata(_ context.Context, _, fdwName string, md json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fdwledger.ErrStoreClosed
	}
	if md != nil && !json.Valid(md) {
		return fdwledger.ErrInvalidDocument
	}
	row := s.upsert(fdwName)
	row.Metadata = clone(md)
	return nil
}

func (s *Store) Get(_ context.Context, _, fdwName string) (*stats.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fdwledger.ErrStoreClosed
	}
	row, ok := s.rows[fdwName]
	if !ok {
		return nil, fdwledger.ErrNotFound
	}
	return copyRow(row), nil
}

func (s *Store) List(_ context.Context, _ string, opts stats.ListOpts) ([]*stats.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fdwledger.ErrStoreClosed
	}

	result := make([]*stats.Row, 0, len(s.rows))
	for name, row := range s.rows {
		if strings.HasPrefix(name, opts.Prefix) {
			result = append(result, copyRow(row))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].FdwName < result[j].FdwName })

	// Apply limit/offset; non-positive values are ignored like the SQL stores do.
	start := max(opts.Offset, 0)
	if start > len(result) {
		start = len(result)
	}
	end := len(result)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}

	return result[start:end], nil
}

// upsert returns the row for fdwName, creating it when absent, and stamps
// it as updated. Callers hold s.mu.
func (s *Store) upsert(fdwName string) *stats.Row {
	row, ok := s.rows[fdwName]
	if !ok {
		row = &stats.Row{FdwName: fdwName, Entity: types.NewEntity()}
		s.rows[fdwName] = row
		return row
	}
	row.Touch()
	return row
}

// Core methods

func (s *Store) Migrate(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.missing = false
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fdwledger.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func copyRow(r *stats.Row) *stats.Row {
	out := *r
	for _, m := range stats.Metrics() {
		if v := r.Value(m); v != nil {
			n := *v
			out.SetValue(m, &n)
		}
	}
	out.Metadata = clone(r.Metadata)
	return &out
}

func clone(md json.RawMessage) json.RawMessage {
	if md == nil {
		return nil
	}
	return bytes.Clone(md)
}
