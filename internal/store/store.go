package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/querymate/internal/querysql"
)

// DriverName is the database/sql driver registered by this package: the
// go-sqlite3 driver with the query functions installed on every connection.
const DriverName = "sqlite3_querymate"

var registerOnce sync.Once

// connectionPragmas are applied to every new connection; SQLite scopes them
// per connection rather than per database.
var connectionPragmas = []string{
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
	// LIKE matches case-sensitively, as it does on PostgreSQL; i_cont and
	// friends fold case explicitly.
	"PRAGMA case_sensitive_like = ON",
}

func registerDriver() {
	registerOnce.Do(func() {
		sql.Register(DriverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				if err := conn.RegisterFunc(querysql.BucketFunc, bucket, true); err != nil {
					return fmt.Errorf("register %s: %w", querysql.BucketFunc, err)
				}
				for _, pragma := range connectionPragmas {
					if _, err := conn.Exec(pragma, nil); err != nil {
						return fmt.Errorf("failed to execute %q: %w", pragma, err)
					}
				}
				return nil
			},
		})
	})
}

// Store executes query plans against a SQLite database.
//
// Temporal columns are expected to hold ISO-8601 text in UTC
// (querysql.SQLiteTimeLayout, or YYYY-MM-DD for dates), which orders
// lexically in time order.
type Store struct {
	db       *sql.DB
	renderer *querysql.Renderer
}

// Open creates or opens a SQLite database at the given path.
//
// The database is configured with:
//   - WAL mode for concurrent reads
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
func Open(path string) (*Store, error) {
	registerDriver()

	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Group pages are fetched concurrently; WAL lets readers share the file.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	return &Store{db: db, renderer: querysql.NewRenderer(querysql.SQLite)}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Exec runs statements that return no rows, such as a schema or fixture
// script. A script may hold several semicolon-separated statements when no
// arguments are given.
func (s *Store) Exec(ctx context.Context, query string, args ...any) error {
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

// applyPragmas sets database-wide SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragma := "PRAGMA journal_mode = WAL"
	if _, err := db.Exec(pragma); err != nil {
		return fmt.Errorf("failed to execute %q: %w", pragma, err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
