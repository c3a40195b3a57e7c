package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/limitidx/internal/order"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Identity scheme recorded in meta
// 2 - Index on maker_address for listing by maker
const currentSchemaVersion = 2

// RecordStore is the capability the upsert engine needs.
//
// Load returns found=false with a nil error on a miss. Save stores rec under
// key following the versioned-save rule (see package doc). A Save is visible
// to a subsequent Load of the same key.
type RecordStore interface {
	Load(ctx context.Context, key string) (order.Record, bool, error)
	Save(ctx context.Context, key string, rec order.Record) error
}

// Lister is implemented by backends that can enumerate records.
// Records are returned in ascending key order.
type Lister interface {
	List(ctx context.Context, limit int) ([]order.Record, error)
}

// Store is the SQLite-backed RecordStore.
// Uses WAL mode for concurrent read access.
type Store struct {
	db *sql.DB
}

var (
	_ RecordStore = (*Store)(nil)
	_ Lister      = (*Store)(nil)
)

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//
// Returns *SchemeMismatchError if the database was written under another
// identity scheme. This function is idempotent - safe to call multiple times.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	if err := checkScheme(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}
	if version < 2 {
		if err := migrateToV2(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 records the identity scheme. An existing row is kept so that
// checkScheme can detect a mismatch.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		INSERT INTO meta (key, value) VALUES ('identity_scheme', ?)
		ON CONFLICT(key) DO NOTHING
	`, order.IdentityScheme)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

func migrateToV2(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_limit_orders_maker
		ON limit_orders(maker_address)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v2: %w", err)
	}
	return nil
}

// checkScheme verifies the recorded identity scheme matches this build.
func checkScheme(db *sql.DB) error {
	var stored string
	err := db.QueryRow(`SELECT value FROM meta WHERE key = 'identity_scheme'`).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("identity scheme not recorded")
	}
	if err != nil {
		return fmt.Errorf("read identity scheme: %w", err)
	}
	if stored != order.IdentityScheme {
		return &SchemeMismatchError{Stored: stored, Want: order.IdentityScheme}
	}
	return nil
}

// unavailable wraps a SQLite failure.
func unavailable(op, key string, err error) error {
	return &UnavailableError{Backend: "sqlite", Op: op, Key: key, Err: err}
}
