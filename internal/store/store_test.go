package store

import (
	"context"
	"testing"

	"github.com/v1truv1us/fleettools-sub010/internal/ferr"
)

type widget struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func withTx(t *testing.T, s Adapter, fn func(tx Tx)) {
	t.Helper()
	tx, err := s.Begin(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	fn(tx)
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestMemoryStorePutGetRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	withTx(t, s, func(tx Tx) {
		if err := tx.Put(ctx, "widgets", "w1", 1, widget{Name: "bolt", Count: 3}); err != nil {
			t.Fatalf("put: %v", err)
		}
	})

	withTx(t, s, func(tx Tx) {
		var got widget
		if err := tx.Get(ctx, "widgets", "w1", &got); err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Name != "bolt" || got.Count != 3 {
			t.Fatalf("got %+v", got)
		}
	})
}

func TestMemoryStoreGetMissingReturnsNotFound(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	withTx(t, s, func(tx Tx) {
		var got widget
		err := tx.Get(ctx, "widgets", "missing", &got)
		if ferr.KindOf(err) != ferr.NotFound {
			t.Fatalf("expected NotFound, got %v", err)
		}
	})
}

func TestMemoryStorePutOverwrites(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	withTx(t, s, func(tx Tx) {
		_ = tx.Put(ctx, "widgets", "w1", 1, widget{Name: "bolt", Count: 1})
		_ = tx.Put(ctx, "widgets", "w1", 2, widget{Name: "bolt", Count: 2})
	})

	withTx(t, s, func(tx Tx) {
		var got widget
		_ = tx.Get(ctx, "widgets", "w1", &got)
		if got.Count != 2 {
			t.Fatalf("expected overwritten count 2, got %d", got.Count)
		}
		rows, err := tx.Range(ctx, "widgets", RangeOptions{})
		if err != nil {
			t.Fatalf("range: %v", err)
		}
		if len(rows) != 1 {
			t.Fatalf("expected one row after overwrite, got %d", len(rows))
		}
	})
}

func TestMemoryStoreRangeOrdering(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	withTx(t, s, func(tx Tx) {
		_ = tx.Put(ctx, "events", "e3", 3, widget{Name: "c"})
		_ = tx.Put(ctx, "events", "e1", 1, widget{Name: "a"})
		_ = tx.Put(ctx, "events", "e2", 2, widget{Name: "b"})
	})

	withTx(t, s, func(tx Tx) {
		rows, err := tx.Range(ctx, "events", RangeOptions{})
		if err != nil {
			t.Fatalf("range: %v", err)
		}
		if len(rows) != 3 {
			t.Fatalf("expected 3 rows, got %d", len(rows))
		}
		for i, want := range []int64{1, 2, 3} {
			if rows[i].SortKey != want {
				t.Fatalf("row %d: expected sort key %d, got %d", i, want, rows[i].SortKey)
			}
		}
	})

	withTx(t, s, func(tx Tx) {
		rows, err := tx.Range(ctx, "events", RangeOptions{AfterSortKey: 1, Limit: 1})
		if err != nil {
			t.Fatalf("range: %v", err)
		}
		if len(rows) != 1 || rows[0].SortKey != 2 {
			t.Fatalf("expected single row with sort key 2, got %+v", rows)
		}
	})

	withTx(t, s, func(tx Tx) {
		rows, err := tx.Range(ctx, "events", RangeOptions{Descending: true})
		if err != nil {
			t.Fatalf("range: %v", err)
		}
		if rows[0].SortKey != 3 || rows[len(rows)-1].SortKey != 1 {
			t.Fatalf("descending order not honored: %+v", rows)
		}
	})
}

func TestMemoryStoreRangeKeyPrefix(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	withTx(t, s, func(tx Tx) {
		_ = tx.Put(ctx, "events", "msn-1:1", 1, widget{Name: "a"})
		_ = tx.Put(ctx, "events", "msn-1:2", 2, widget{Name: "b"})
		_ = tx.Put(ctx, "events", "msn-2:1", 3, widget{Name: "c"})
	})

	withTx(t, s, func(tx Tx) {
		rows, err := tx.Range(ctx, "events", RangeOptions{KeyPrefix: "msn-1:"})
		if err != nil {
			t.Fatalf("range: %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("expected 2 rows for prefix, got %d", len(rows))
		}
	})
}

func TestMemoryStoreNextSequenceMonotonic(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var got []int64
	for i := 0; i < 5; i++ {
		withTx(t, s, func(tx Tx) {
			seq, err := tx.NextSequence(ctx, "mission", "msn-1")
			if err != nil {
				t.Fatalf("next sequence: %v", err)
			}
			got = append(got, seq)
		})
	}
	for i, v := range got {
		if v != int64(i+1) {
			t.Fatalf("expected gap-free sequence starting at 1, got %v", got)
		}
	}

	withTx(t, s, func(tx Tx) {
		cur, err := tx.CurrentSequence(ctx, "mission", "msn-1")
		if err != nil {
			t.Fatalf("current sequence: %v", err)
		}
		if cur != 5 {
			t.Fatalf("expected current sequence 5, got %d", cur)
		}
	})
}

func TestMemoryStoreNextSequenceIndependentStreams(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	withTx(t, s, func(tx Tx) {
		a, _ := tx.NextSequence(ctx, "mission", "msn-1")
		b, _ := tx.NextSequence(ctx, "mission", "msn-2")
		if a != 1 || b != 1 {
			t.Fatalf("expected independent streams to each start at 1, got a=%d b=%d", a, b)
		}
	})
}

func TestMemoryStoreClaimIdempotencyKeyDedup(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	withTx(t, s, func(tx Tx) {
		used, err := tx.ClaimIdempotencyKey(ctx, "sha256:abc")
		if err != nil {
			t.Fatalf("claim: %v", err)
		}
		if used {
			t.Fatalf("expected first claim to report unused")
		}
	})

	withTx(t, s, func(tx Tx) {
		used, err := tx.ClaimIdempotencyKey(ctx, "sha256:abc")
		if err != nil {
			t.Fatalf("claim: %v", err)
		}
		if !used {
			t.Fatalf("expected second claim of the same key to report already used")
		}
	})
}

func TestMemoryStoreDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	withTx(t, s, func(tx Tx) {
		_ = tx.Put(ctx, "widgets", "w1", 1, widget{Name: "bolt"})
		_ = tx.Delete(ctx, "widgets", "w1")
	})

	withTx(t, s, func(tx Tx) {
		var got widget
		err := tx.Get(ctx, "widgets", "w1", &got)
		if ferr.KindOf(err) != ferr.NotFound {
			t.Fatalf("expected NotFound after delete, got %v", err)
		}
	})

	withTx(t, s, func(tx Tx) {
		// Deleting an absent key is not an error.
		if err := tx.Delete(ctx, "widgets", "never-existed"); err != nil {
			t.Fatalf("delete of absent key: %v", err)
		}
	})
}
