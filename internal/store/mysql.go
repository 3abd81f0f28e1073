package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"github.com/v1truv1us/fleettools-sub010/internal/ferr"
)

// MySQLStore is the external-store Adapter (spec §4.1, §6
// DB_HOST), for fleets that already run a MySQL instance and
// don't want a second storage technology. Unlike SQLite, MySQL serves
// many concurrent writer connections, so NextSequence locks the
// candidate row with SELECT ... FOR UPDATE inside the caller's
// transaction rather than relying on a single connection to serialize.
type MySQLStore struct {
	engine *sqlEngine
}

// MySQLConfig holds the connection parameters from spec §6.
type MySQLConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

func NewMySQLStore(cfg MySQLConfig) (*MySQLStore, error) {
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
		cfg.User, cfg.Password, cfg.Host, port, cfg.Database)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, ferr.Wrap(ferr.StorageUnavailable, "open mysql database", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)

	return &MySQLStore{engine: &sqlEngine{
		db:               db,
		forUpdateClause:  " FOR UPDATE",
		createStatements: schemaDDL,
	}}, nil
}

func (s *MySQLStore) Init(ctx context.Context) error        { return s.engine.Init(ctx) }
func (s *MySQLStore) SelfTest(ctx context.Context) error    { return s.engine.SelfTest(ctx) }
func (s *MySQLStore) Close() error                          { return s.engine.Close() }
func (s *MySQLStore) Begin(ctx context.Context) (Tx, error) { return s.engine.Begin(ctx) }
