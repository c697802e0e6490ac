package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrDuplicateBill is returned when a bill with the same account number
	// and date range is already stored.
	ErrDuplicateBill = errors.New("a bill for this account and date range already exists")
	// ErrNotFound is returned when no row matches the given ID.
	ErrNotFound = errors.New("not found")
)

// Store persists bills and parties in SQLite or PostgreSQL.
type Store struct {
	db     *sql.DB
	driver string
	logger *zap.Logger
}

// Open connects with driver ("sqlite" or "pgx") and applies the schema.
func Open(ctx context.Context, driver, dsn string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("store")

	switch driver {
	case "sqlite", "pgx":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == "sqlite" {
		// Each connection to :memory: is its own database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db, driver: driver, logger: logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("database ready", zap.String("driver", driver))
	return s, nil
}

// SetMaxOpenConns caps the pool; ignored for SQLite.
func (s *Store) SetMaxOpenConns(n int) {
	if s.driver != "sqlite" && n > 0 {
		s.db.SetMaxOpenConns(n)
	}
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS parties (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		electricity_account_number TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS electricity_bills (
		id TEXT PRIMARY KEY,
		account_number TEXT NOT NULL,
		bill_amount TEXT NOT NULL,
		bill_date TEXT NOT NULL,
		bill_date_range_start TEXT NOT NULL,
		bill_date_range_end TEXT NOT NULL,
		total_units_consumed TEXT NOT NULL,
		units_per_day TEXT NOT NULL,
		is_estimated BOOLEAN NOT NULL DEFAULT FALSE,
		meter_reading TEXT NOT NULL,
		pdf_file_path TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (account_number, bill_date_range_start, bill_date_range_end)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_electricity_bills_bill_date ON electricity_bills (bill_date)`,
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders as $N for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.driver != "pgx" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(liteErr.Error(), "UNIQUE")
		}
	}
	return false
}
