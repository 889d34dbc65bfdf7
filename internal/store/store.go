package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver
)

// Driver identifies the SQL dialect behind a Store
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Store represents the application's persistent movie list
type Store struct {
	db     *sql.DB
	driver Driver
}

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens the database named by uri, creating and migrating it if needed.
//
// Accepted forms:
//
//	sqlite:///movies.db        relative SQLite file
//	sqlite:////var/lib/m.db    absolute SQLite file
//	movies.db                  bare path, SQLite
//	postgres://user@host/db    PostgreSQL (postgresql:// also accepted)
func Open(uri string) (*Store, error) {
	driver, dsn, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(string(driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return newStore(db, driver)
}

// OpenDB wraps an existing connection. Used by tests that need a mocked *sql.DB.
func OpenDB(db *sql.DB, driver Driver) (*Store, error) {
	return newStore(db, driver)
}

func newStore(db *sql.DB, driver Driver) (*Store, error) {
	if driver == DriverSQLite {
		// SQLite works best with a single writer
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	}

	store := &Store{db: db, driver: driver}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return store, nil
}

// ParseURI splits a database URI into a driver name and a driver-specific DSN
func ParseURI(uri string) (Driver, string, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return "", "", fmt.Errorf("database uri cannot be empty")
	}

	switch {
	case strings.HasPrefix(uri, "postgres://"), strings.HasPrefix(uri, "postgresql://"):
		return DriverPostgres, uri, nil
	case strings.HasPrefix(uri, "sqlite://"):
		path := SQLitePath(uri)
		if path == "" {
			return "", "", fmt.Errorf("sqlite uri %q has no database path", uri)
		}
		return DriverSQLite, sqliteDSN(path), nil
	case strings.Contains(uri, "://"):
		return "", "", fmt.Errorf("unsupported database scheme in %q", uri)
	default:
		return DriverSQLite, sqliteDSN(uri), nil
	}
}

// SQLitePath returns the database file named by a SQLite URI or bare path,
// or "" when uri names another driver
func SQLitePath(uri string) string {
	uri = strings.TrimSpace(uri)
	if !strings.HasPrefix(uri, "sqlite://") {
		if strings.Contains(uri, "://") {
			return ""
		}
		return uri
	}
	// sqlite:///rel.db leaves "/rel.db", sqlite:////abs.db leaves "//abs.db"
	return strings.TrimPrefix(strings.TrimPrefix(uri, "sqlite://"), "/")
}

func sqliteDSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Driver reports which SQL dialect the store speaks
func (s *Store) Driver() Driver {
	return s.driver
}

// Ping verifies the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SQLiteVersion returns the SQLite version string
func SQLiteVersion() string {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return ""
	}
	defer db.Close()

	var version string
	err = db.QueryRow("SELECT sqlite_version()").Scan(&version)
	if err != nil {
		return ""
	}
	return version
}

// CheckIntegrity runs PRAGMA integrity_check on SQLite databases.
// PostgreSQL has no equivalent, so it only pings.
func (s *Store) CheckIntegrity(ctx context.Context) error {
	if s.driver != DriverSQLite {
		return s.Ping(ctx)
	}

	var result string
	err := s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result)
	if err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}

	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}

	return nil
}

// migrate applies database migrations
func (s *Store) migrate() error {
	if _, err := s.db.Exec(schemaVersionTable); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	version, err := s.getSchemaVersion()
	if err != nil {
		return err
	}

	steps := migrations[s.driver]
	if version >= len(steps) {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for v := version + 1; v <= len(steps); v++ {
		if _, err := tx.Exec(steps[v-1]); err != nil {
			return fmt.Errorf("failed to apply schema v%d: %w", v, err)
		}
		if _, err := tx.Exec(s.rebind("INSERT INTO schema_version (version) VALUES (?)"), v); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	return nil
}

// getSchemaVersion returns the current schema version
func (s *Store) getSchemaVersion() (int, error) {
	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Tx is a store transaction exposing the queries the ranking pass needs
type Tx struct {
	tx    *sql.Tx
	store *Store
}

// Transaction executes fn within a transaction, committing when fn returns nil
func (s *Store) Transaction(ctx context.Context, fn func(*Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Tx{tx: tx, store: s}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Movie is a stored movie record
type Movie struct {
	ID          int64
	Title       string
	TitleKey    string
	Year        int
	Description string
	Rating      *float64 // nil until the user rates it
	Ranking     *int     // derived by the ranking pass
	Review      string
	ImgURL      string
	CreatedAt   time.Time
}

// Rated reports whether the movie has a rating
func (m *Movie) Rated() bool {
	return m.Rating != nil
}
