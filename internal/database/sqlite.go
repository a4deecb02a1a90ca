// Package database implements the SQLite-backed snapshot store.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modq/internal/database/migrations"
	"modq/internal/modq"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// historyLimit is the number of flush records kept per table.
const historyLimit = 100

// Flush is one recorded save of a table.
type Flush struct {
	ID        int64
	Table     string
	Size      int64
	FlushedAt time.Time
}

// SQLiteStore keeps one row per table snapshot and a bounded flush history.
type SQLiteStore struct {
	db    *sql.DB
	clock modq.Clock
	path  string
}

// NewSQLiteStore opens the database at path and migrates it to the latest schema.
// path can be a file path or ":memory:".
func NewSQLiteStore(path string, clock modq.Clock) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}
	if clock == nil {
		clock = modq.RealClock{}
	}
	return &SQLiteStore{db: db, clock: clock, path: path}, nil
}

// OpenConnection opens a SQLite connection with foreign keys enabled.
// The pool is capped at one connection so ":memory:" databases stay shared.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return db, nil
}

// Load returns the stored snapshot for table, or nil when none exists.
func (s *SQLiteStore) Load(ctx context.Context, table string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM snapshots WHERE name = ?", table).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading %s: %w", table, err)
	}
	return data, nil
}

// Save replaces the snapshot for table and appends a flush record.
func (s *SQLiteStore) Save(ctx context.Context, table string, data []byte) error {
	now := s.clock.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (name, data, size, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET data = excluded.data, size = excluded.size, updated_at = excluded.updated_at`,
		table, data, len(data), now)
	if err != nil {
		return fmt.Errorf("saving %s: %w", table, err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO flushes (name, size, flushed_at) VALUES (?, ?, ?)", table, len(data), now); err != nil {
		return fmt.Errorf("recording flush of %s: %w", table, err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM flushes WHERE name = ? AND id NOT IN (
			SELECT id FROM flushes WHERE name = ? ORDER BY id DESC LIMIT ?)`,
		table, table, historyLimit)
	if err != nil {
		return fmt.Errorf("pruning flush history of %s: %w", table, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s: %w", table, err)
	}
	return nil
}

// History returns the most recent flushes, newest first. An empty table name
// returns flushes of every table.
func (s *SQLiteStore) History(ctx context.Context, table string, limit int) ([]Flush, error) {
	query := "SELECT id, name, size, flushed_at FROM flushes"
	args := []any{}
	if table != "" {
		query += " WHERE name = ?"
		args = append(args, table)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing flushes: %w", err)
	}
	defer rows.Close()

	var out []Flush
	for rows.Next() {
		var f Flush
		if err := rows.Scan(&f.ID, &f.Table, &f.Size, &f.FlushedAt); err != nil {
			return nil, fmt.Errorf("scanning flush: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// BackupTo writes a complete copy of the database to destPath using VACUUM INTO.
func (s *SQLiteStore) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ modq.Store = (*SQLiteStore)(nil)
