// Package storage persists accounts, relays and settings in SQLite.
// Statistics are always recomputed and never stored.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// DB is the nostrboard database handle.
type DB struct {
	conn     *sql.DB
	path     string
	isMemory bool
}

// Config for database initialization
type Config struct {
	Path     string // Path to database file
	InMemory bool   // Use in-memory database (for testing)
}

// pragmas applied to every connection. WAL only applies to file databases.
var pragmas = []struct {
	stmt     string
	fileOnly bool
}{
	{"PRAGMA journal_mode=WAL", true},
	{"PRAGMA busy_timeout=5000", false},
	{"PRAGMA foreign_keys=ON", false},
}

// Open opens or creates the database. Call Migrate before using the stores.
func Open(cfg Config) (*DB, error) {
	db := &DB{path: cfg.Path, isMemory: cfg.InMemory}

	dsn := cfg.Path
	if cfg.InMemory {
		// A unique name keeps concurrent in-memory databases apart.
		dsn = fmt.Sprintf("file:nb-%s?mode=memory&cache=shared", uuid.NewString())
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("database path is required")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0700); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer at a time; session writes are rare and tiny.
	conn.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if p.fileOnly && db.isMemory {
			continue
		}
		if _, err := conn.Exec(p.stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%s: %w", p.stmt, err)
		}
	}

	db.conn = conn
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying sql.DB for direct access
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Path is the database file, or "" for an in-memory database.
func (db *DB) Path() string {
	if db.isMemory {
		return ""
	}
	return db.path
}

// Ping checks that the database still answers.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Transaction runs fn in a transaction, committing only if fn succeeds.
func (db *DB) Transaction(fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
