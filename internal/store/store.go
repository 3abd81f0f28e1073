// Package store is the persistence adapter (spec §4.1): a single
// transactional key-row store with WAL durability, exposing typed row
// operations, ordered range queries, a serializable sequence
// allocator for the event log, and a raw-statement escape hatch.
//
// Every domain package (eventlog, mailbox, reservation, pilot,
// orchestrator, checkpoint, learning) stores its entities as
// JSON-serialized rows under its own table name; this package knows
// nothing about entity shape.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/v1truv1us/fleettools-sub010/internal/ferr"
)

// SchemaVersion is the current forward-only migration target. Every
// Adapter implementation must leave the database at this version
// after Init, applying any intermediate migrations in order.
const SchemaVersion = 1

// Row is one (table, key) record as stored by the adapter. SortKey
// orders Range results within a table (e.g. event sequence number);
// Value is the caller's JSON-encoded payload.
type Row struct {
	Table   string
	Key     string
	SortKey int64
	Value   []byte
}

// RangeOptions scopes a Range query to a table.
type RangeOptions struct {
	// KeyPrefix restricts results to keys with this prefix. Empty
	// means no restriction.
	KeyPrefix string
	// AfterSortKey restricts results to SortKey > AfterSortKey.
	AfterSortKey int64
	// Limit caps the number of rows returned; zero means unlimited.
	Limit int
	// Descending sorts by SortKey descending instead of ascending.
	Descending bool
}

// Adapter is the persistence layer's entry point: a connection pool
// plus lifecycle (self-test, migration, close).
type Adapter interface {
	// Begin starts a transaction. Writes within it are not visible to
	// other transactions until Commit; reads within it observe its
	// own writes.
	Begin(ctx context.Context) (Tx, error)

	// SelfTest issues a trivial read and reports health, per spec
	// §4.1's startup self-test requirement.
	SelfTest(ctx context.Context) error

	// Init creates missing tables/indexes and runs forward-only
	// migrations up to SchemaVersion.
	Init(ctx context.Context) error

	Close() error
}

// Tx is one transaction against the store. Every Tx must end in
// exactly one Commit or Rollback call.
type Tx interface {
	Commit() error
	Rollback() error

	// Put upserts a row, JSON-encoding value.
	Put(ctx context.Context, table, key string, sortKey int64, value any) error

	// Get decodes the row at (table, key) into dest. Returns a
	// *ferr.Error{Kind: ferr.NotFound} if absent.
	Get(ctx context.Context, table, key string, dest any) error

	// Delete removes the row at (table, key). Deleting an absent key
	// is not an error.
	Delete(ctx context.Context, table, key string) error

	// Range returns rows from table matching opts, ordered by
	// SortKey.
	Range(ctx context.Context, table string, opts RangeOptions) ([]Row, error)

	// NextSequence serializably allocates the next sequence number
	// for (streamType, streamID), starting at 1. Concurrent callers
	// within the same or different transactions never observe the
	// same value twice.
	NextSequence(ctx context.Context, streamType, streamID string) (int64, error)

	// CurrentSequence reports the last sequence allocated for the
	// stream without allocating a new one; zero if none yet.
	CurrentSequence(ctx context.Context, streamType, streamID string) (int64, error)

	// ClaimIdempotencyKey atomically records key as used, returning
	// true if it was already present (a duplicate commit attempt).
	ClaimIdempotencyKey(ctx context.Context, key string) (alreadyUsed bool, err error)

	// Exec is the raw-statement escape hatch for queries Put/Get/Range
	// cannot express. Not required for correctness elsewhere in this
	// module — callers needing a cross-table query build a secondary
	// index out of ordinary rows instead, so MemoryStore's Exec never
	// has to emulate SQL.
	Exec(ctx context.Context, query string, args ...any) ([]map[string]any, error)
}

// ErrNotFound mirrors ferr.NotFound for callers that prefer errors.Is
// against a plain sentinel.
var ErrNotFound = ferr.New(ferr.NotFound, "row not found")

func marshal(value any) ([]byte, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return nil, ferr.Wrap(ferr.InvalidInput, "marshal row value", err)
	}
	return b, nil
}

func unmarshal(data []byte, dest any) error {
	if err := json.Unmarshal(data, dest); err != nil {
		return ferr.Wrap(ferr.Internal, "unmarshal row value", err)
	}
	return nil
}

// now is overridable in tests that need deterministic timestamps.
var now = time.Now
