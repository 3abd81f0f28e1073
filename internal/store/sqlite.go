package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/v1truv1us/fleettools-sub010/internal/ferr"
)

// SQLiteStore is the default Adapter (spec §4.1, §6 DB_PATH):
// a single file, WAL journaling for crash-safe durability, and a
// single open connection since SQLite allows only one writer at a
// time — serializing writes through the pool rather than through
// database-level locking keeps NextSequence correct without contention
// errors. Grounded on the teacher's SQLiteStore[S] in
// graph/store/sqlite.go.
type SQLiteStore struct {
	engine *sqlEngine
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, ferr.Wrap(ferr.StorageUnavailable, "open sqlite database", err)
	}
	db.SetMaxOpenConns(1)

	return &SQLiteStore{engine: &sqlEngine{
		db:               db,
		forUpdateClause:  "",
		createStatements: schemaDDL,
	}}, nil
}

func (s *SQLiteStore) Init(ctx context.Context) error          { return s.engine.Init(ctx) }
func (s *SQLiteStore) SelfTest(ctx context.Context) error      { return s.engine.SelfTest(ctx) }
func (s *SQLiteStore) Close() error                            { return s.engine.Close() }
func (s *SQLiteStore) Begin(ctx context.Context) (Tx, error)   { return s.engine.Begin(ctx) }
