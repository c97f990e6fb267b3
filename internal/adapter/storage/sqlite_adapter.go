package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/rl1809/stock-ledger/internal/port"
)

var _ port.Store = (*SQLiteAdapter)(nil)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS materials (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS persons (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS inventory (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		material TEXT NOT NULL UNIQUE,
		quantity INTEGER NOT NULL CHECK (quantity >= 0),
		version INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS inflows (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		material TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		occurred_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS outflows (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		material TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		recipient TEXT NOT NULL,
		occurred_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_inflows_material ON inflows(material)`,
	`CREATE INDEX IF NOT EXISTS idx_outflows_material ON outflows(material)`,
}

var sqlitePragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
}

// SQLiteAdapter is the default single-node backend (pure Go driver, no CGO).
type SQLiteAdapter struct {
	*sqlStore
}

// NewSQLiteAdapter opens or creates the database at path, applies pragmas and
// the schema. The pool is limited to one connection: SQLite has a single
// writer, and serialising commits there gives the per-material exclusion the
// ledger needs.
func NewSQLiteAdapter(ctx context.Context, path string) (*SQLiteAdapter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range sqlitePragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}

	s := &sqlStore{
		db: db,
		d: dialect{
			name:   "sqlite",
			schema: sqliteSchema,
			upsertStock: `
				INSERT INTO inventory (material, quantity, version, updated_at) VALUES (?, ?, 1, ?)
				ON CONFLICT(material) DO UPDATE SET
					quantity = quantity + excluded.quantity,
					version = version + 1,
					updated_at = excluded.updated_at`,
			isDuplicate: isSQLiteUniqueViolation,
		},
		now: time.Now,
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteAdapter{sqlStore: s}, nil
}

func isSQLiteUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
