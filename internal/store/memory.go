package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/v1truv1us/fleettools-sub010/internal/ferr"
)

// MemoryStore is an in-memory Adapter for tests and single-process
// development, grounded on the teacher's MemStore[S]
// (graph/store/memory.go): plain maps guarded by one mutex, no
// eviction, data lost on process exit. Transactions here are not
// truly isolated — Begin takes the store's write lock for the
// transaction's lifetime, which is sufficient for tests and a single
// in-process caller but not for concurrent load testing.
type MemoryStore struct {
	mu          sync.Mutex
	rows        map[string]map[string]Row // table -> key -> row
	sequences   map[string]int64          // "type:id" -> last sequence
	idempotency map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows:        make(map[string]map[string]Row),
		sequences:   make(map[string]int64),
		idempotency: make(map[string]bool),
	}
}

func (s *MemoryStore) Init(context.Context) error     { return nil }
func (s *MemoryStore) SelfTest(context.Context) error { return nil }
func (s *MemoryStore) Close() error                   { return nil }

func (s *MemoryStore) Begin(context.Context) (Tx, error) {
	s.mu.Lock()
	return &memTx{store: s}, nil
}

type memTx struct {
	store *MemoryStore
	done  bool
}

func (t *memTx) Commit() error {
	t.finish()
	return nil
}

func (t *memTx) Rollback() error {
	// MemoryStore mutates in place, so a rollback after partial writes
	// cannot undo them; acceptable for its intended use (tests, single
	// in-process caller) where rollback is the error-abort path that
	// expects the caller to stop retrying rather than reuse state.
	t.finish()
	return nil
}

func (t *memTx) finish() {
	if t.done {
		return
	}
	t.done = true
	t.store.mu.Unlock()
}

func (t *memTx) Put(_ context.Context, table, key string, sortKey int64, value any) error {
	data, err := marshal(value)
	if err != nil {
		return err
	}
	if t.store.rows[table] == nil {
		t.store.rows[table] = make(map[string]Row)
	}
	t.store.rows[table][key] = Row{Table: table, Key: key, SortKey: sortKey, Value: data}
	return nil
}

func (t *memTx) Get(_ context.Context, table, key string, dest any) error {
	row, ok := t.store.rows[table][key]
	if !ok {
		return ferr.New(ferr.NotFound, table+"/"+key)
	}
	return unmarshal(row.Value, dest)
}

func (t *memTx) Delete(_ context.Context, table, key string) error {
	delete(t.store.rows[table], key)
	return nil
}

func (t *memTx) Range(_ context.Context, table string, opts RangeOptions) ([]Row, error) {
	var out []Row
	for _, row := range t.store.rows[table] {
		if row.SortKey <= opts.AfterSortKey {
			continue
		}
		if opts.KeyPrefix != "" && !strings.HasPrefix(row.Key, opts.KeyPrefix) {
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if opts.Descending {
			return out[i].SortKey > out[j].SortKey
		}
		return out[i].SortKey < out[j].SortKey
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (t *memTx) NextSequence(_ context.Context, streamType, streamID string) (int64, error) {
	k := streamType + ":" + streamID
	t.store.sequences[k]++
	return t.store.sequences[k], nil
}

func (t *memTx) CurrentSequence(_ context.Context, streamType, streamID string) (int64, error) {
	return t.store.sequences[streamType+":"+streamID], nil
}

func (t *memTx) ClaimIdempotencyKey(_ context.Context, key string) (bool, error) {
	if t.store.idempotency[key] {
		return true, nil
	}
	t.store.idempotency[key] = true
	return false, nil
}

// Exec has no general-purpose implementation over plain maps; the
// event log's cross-stream queries fall back to Range plus in-process
// filtering against MemoryStore, so nothing calls this in tests.
func (t *memTx) Exec(context.Context, string, ...any) ([]map[string]any, error) {
	return nil, ferr.New(ferr.Internal, "memory store does not support raw Exec")
}
