package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/v1truv1us/fleettools-sub010/internal/ferr"
)

// sqlEngine implements Adapter over any database/sql driver using one
// physical schema (fleet_rows / fleet_sequences / fleet_idempotency /
// fleet_schema_meta). SQLiteStore and MySQLStore differ only in how
// they open the connection and whether sequence allocation needs an
// explicit row lock (forUpdateClause).
type sqlEngine struct {
	db               *sql.DB
	forUpdateClause  string // "" for SQLite (single-writer already serializes), " FOR UPDATE" for MySQL
	createStatements []string
}

func (e *sqlEngine) Init(ctx context.Context) error {
	for _, stmt := range e.createStatements {
		if _, err := e.db.ExecContext(ctx, stmt); err != nil {
			return ferr.Wrap(ferr.StorageUnavailable, "init schema", err)
		}
	}
	var version int
	row := e.db.QueryRowContext(ctx, "SELECT version FROM fleet_schema_meta WHERE id = 1")
	switch err := row.Scan(&version); {
	case err == sql.ErrNoRows:
		_, err = e.db.ExecContext(ctx, "INSERT INTO fleet_schema_meta (id, version) VALUES (1, ?)", SchemaVersion)
		if err != nil {
			return ferr.Wrap(ferr.StorageUnavailable, "seed schema_meta", err)
		}
	case err != nil:
		return ferr.Wrap(ferr.StorageUnavailable, "read schema_meta", err)
	default:
		if version < SchemaVersion {
			if _, err := e.db.ExecContext(ctx, "UPDATE fleet_schema_meta SET version = ? WHERE id = 1", SchemaVersion); err != nil {
				return ferr.Wrap(ferr.StorageUnavailable, "migrate schema_meta", err)
			}
		}
	}
	return nil
}

func (e *sqlEngine) SelfTest(ctx context.Context) error {
	if err := e.db.PingContext(ctx); err != nil {
		return ferr.Wrap(ferr.StorageUnavailable, "ping", err)
	}
	var one int
	if err := e.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return ferr.Wrap(ferr.StorageUnavailable, "self-test read", err)
	}
	return nil
}

func (e *sqlEngine) Close() error {
	return e.db.Close()
}

func (e *sqlEngine) Begin(ctx context.Context) (Tx, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, ferr.Wrap(ferr.StorageUnavailable, "begin transaction", err)
	}
	return &sqlTx{tx: tx, forUpdateClause: e.forUpdateClause}, nil
}

type sqlTx struct {
	tx              *sql.Tx
	forUpdateClause string
	done            bool
}

func (t *sqlTx) Commit() error {
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return ferr.Wrap(ferr.StorageUnavailable, "commit", err)
	}
	return nil
}

func (t *sqlTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return ferr.Wrap(ferr.StorageUnavailable, "rollback", err)
	}
	return nil
}

func (t *sqlTx) Put(ctx context.Context, table, key string, sortKey int64, value any) error {
	data, err := marshal(value)
	if err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx, "DELETE FROM fleet_rows WHERE tbl = ? AND row_key = ?", table, key); err != nil {
		return ferr.Wrap(ferr.StorageUnavailable, "put: clear prior row", err)
	}
	if _, err := t.tx.ExecContext(ctx,
		"INSERT INTO fleet_rows (tbl, row_key, sort_key, value, created_at) VALUES (?, ?, ?, ?, ?)",
		table, key, sortKey, data, now()); err != nil {
		return ferr.Wrap(ferr.StorageUnavailable, "put: insert row", err)
	}
	return nil
}

func (t *sqlTx) Get(ctx context.Context, table, key string, dest any) error {
	var data []byte
	err := t.tx.QueryRowContext(ctx, "SELECT value FROM fleet_rows WHERE tbl = ? AND row_key = ?", table, key).Scan(&data)
	if err == sql.ErrNoRows {
		return ferr.New(ferr.NotFound, fmt.Sprintf("%s/%s", table, key))
	}
	if err != nil {
		return ferr.Wrap(ferr.StorageUnavailable, "get", err)
	}
	return unmarshal(data, dest)
}

func (t *sqlTx) Delete(ctx context.Context, table, key string) error {
	if _, err := t.tx.ExecContext(ctx, "DELETE FROM fleet_rows WHERE tbl = ? AND row_key = ?", table, key); err != nil {
		return ferr.Wrap(ferr.StorageUnavailable, "delete", err)
	}
	return nil
}

func (t *sqlTx) Range(ctx context.Context, table string, opts RangeOptions) ([]Row, error) {
	query := "SELECT tbl, row_key, sort_key, value FROM fleet_rows WHERE tbl = ? AND sort_key > ?"
	args := []any{table, opts.AfterSortKey}
	if opts.KeyPrefix != "" {
		query += " AND row_key LIKE ?"
		args = append(args, opts.KeyPrefix+"%")
	}
	if opts.Descending {
		query += " ORDER BY sort_key DESC"
	} else {
		query += " ORDER BY sort_key ASC"
	}
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ferr.Wrap(ferr.StorageUnavailable, "range", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.Table, &r.Key, &r.SortKey, &r.Value); err != nil {
			return nil, ferr.Wrap(ferr.StorageUnavailable, "range scan", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, ferr.Wrap(ferr.StorageUnavailable, "range iterate", err)
	}
	return out, nil
}

func (t *sqlTx) NextSequence(ctx context.Context, streamType, streamID string) (int64, error) {
	var last int64
	query := "SELECT last_sequence FROM fleet_sequences WHERE stream_type = ? AND stream_id = ?" + t.forUpdateClause
	err := t.tx.QueryRowContext(ctx, query, streamType, streamID).Scan(&last)
	switch {
	case err == sql.ErrNoRows:
		last = 0
	case err != nil:
		return 0, ferr.Wrap(ferr.StorageUnavailable, "read sequence", err)
	}
	next := last + 1
	if last == 0 {
		if _, err := t.tx.ExecContext(ctx,
			"INSERT INTO fleet_sequences (stream_type, stream_id, last_sequence) VALUES (?, ?, ?)",
			streamType, streamID, next); err != nil {
			return 0, ferr.Wrap(ferr.StorageUnavailable, "seed sequence", err)
		}
	} else {
		if _, err := t.tx.ExecContext(ctx,
			"UPDATE fleet_sequences SET last_sequence = ? WHERE stream_type = ? AND stream_id = ?",
			next, streamType, streamID); err != nil {
			return 0, ferr.Wrap(ferr.StorageUnavailable, "advance sequence", err)
		}
	}
	return next, nil
}

func (t *sqlTx) CurrentSequence(ctx context.Context, streamType, streamID string) (int64, error) {
	var last int64
	err := t.tx.QueryRowContext(ctx,
		"SELECT last_sequence FROM fleet_sequences WHERE stream_type = ? AND stream_id = ?",
		streamType, streamID).Scan(&last)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, ferr.Wrap(ferr.StorageUnavailable, "current sequence", err)
	}
	return last, nil
}

func (t *sqlTx) ClaimIdempotencyKey(ctx context.Context, key string) (bool, error) {
	var exists int
	err := t.tx.QueryRowContext(ctx, "SELECT 1 FROM fleet_idempotency WHERE idem_key = ?", key).Scan(&exists)
	if err == nil {
		return true, nil
	}
	if err != sql.ErrNoRows {
		return false, ferr.Wrap(ferr.StorageUnavailable, "check idempotency key", err)
	}
	if _, err := t.tx.ExecContext(ctx,
		"INSERT INTO fleet_idempotency (idem_key, created_at) VALUES (?, ?)", key, now()); err != nil {
		return false, ferr.Wrap(ferr.StorageUnavailable, "claim idempotency key", err)
	}
	return false, nil
}

func (t *sqlTx) Exec(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ferr.Wrap(ferr.StorageUnavailable, "exec", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, ferr.Wrap(ferr.StorageUnavailable, "exec columns", err)
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		pointers := make([]any, len(cols))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, ferr.Wrap(ferr.StorageUnavailable, "exec scan", err)
		}
		record := make(map[string]any, len(cols))
		for i, col := range cols {
			record[col] = values[i]
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

// schemaDDL is shared verbatim by both SQL backends: every column
// type used (VARCHAR, BIGINT, TEXT, TIMESTAMP) and every constraint
// (composite PRIMARY KEY, no inline KEY clauses) is valid in both
// SQLite's and MySQL's dialect, so no per-engine DDL is needed beyond
// the driver-specific pragmas each constructor applies before this
// runs.
var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS fleet_rows (
		tbl VARCHAR(64) NOT NULL,
		row_key VARCHAR(191) NOT NULL,
		sort_key BIGINT NOT NULL DEFAULT 0,
		value TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (tbl, row_key)
	)`,
	`CREATE TABLE IF NOT EXISTS fleet_sequences (
		stream_type VARCHAR(32) NOT NULL,
		stream_id VARCHAR(191) NOT NULL,
		last_sequence BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (stream_type, stream_id)
	)`,
	`CREATE TABLE IF NOT EXISTS fleet_idempotency (
		idem_key VARCHAR(191) NOT NULL PRIMARY KEY,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS fleet_schema_meta (
		id INTEGER NOT NULL PRIMARY KEY,
		version INTEGER NOT NULL
	)`,
}

func init() {
	// Guard against a future column/table rename leaving the two
	// backends out of sync: both constructors pass schemaDDL by
	// reference, never a copy, so a single edit updates both.
	_ = schemaDDL
}
