// Package sqlstore implements the storage ports on top of database/sql via
// sqlx. PostgreSQL (pgx) is the production target; SQLite is used for
// single-node deployments and tests.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/99minutos/admin-auth/internal/core/ports"
)

const defaultTimeout = 10 * time.Second

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config selects the SQL backend.
type Config struct {
	Driver  string
	DSN     string
	Timeout time.Duration
}

// Open connects and pings the configured database.
func Open(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	var driverName string
	switch cfg.Driver {
	case DriverPostgres:
		driverName = "pgx"
	case DriverSQLite:
		driverName = "sqlite3"
	default:
		return nil, fmt.Errorf("sqlstore: unknown driver %q", cfg.Driver)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := sqlx.ConnectContext(connectCtx, driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlstore connect: %w", err)
	}
	if cfg.Driver == DriverSQLite {
		// SQLite allows a single writer; serializing on one connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// Store bundles the SQL-backed repositories.
type Store struct {
	db       *sqlx.DB
	accounts *AccountRepository
	invites  *InviteRepository
	activity *ActivityRepository
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{
		db:       db,
		accounts: &AccountRepository{db: db},
		invites:  &InviteRepository{db: db},
		activity: &ActivityRepository{db: db},
	}
}

func (s *Store) Accounts() ports.AccountRepository  { return s.accounts }
func (s *Store) Invites() ports.InviteRepository    { return s.invites }
func (s *Store) Activity() ports.ActivityRepository { return s.activity }
func (s *Store) Registrar() ports.Registrar         { return &Registrar{db: s.db} }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close(context.Context) error {
	return s.db.Close()
}

// withTx runs fn in a transaction, rolling back when fn fails.
func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// isUniqueViolation recognizes unique-constraint failures from either driver.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
