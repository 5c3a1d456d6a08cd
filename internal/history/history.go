// Package history keeps an append-only SQLite log of every mutating
// operation, so an operator can see what the tool did and where the config
// backups went.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
	path string
}

// Open opens or creates the history database at the given path.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	db := &DB{conn: conn, path: path}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (d *DB) Close() error { return d.conn.Close() }

// Path returns the database file path.
func (d *DB) Path() string { return d.path }

func (d *DB) migrate() error {
	_, err := d.conn.Exec(`
		CREATE TABLE IF NOT EXISTS operations (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			target TEXT NOT NULL,
			ok INTEGER NOT NULL,
			message TEXT,
			backup_path TEXT,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_operations_timestamp ON operations(timestamp);
	`)
	return err
}

// Record is one logged operation.
type Record struct {
	ID         string
	Kind       string // mount, unmount, format, persist, share, reconnect, forget
	Target     string // device name, mountpoint or uuid
	OK         bool
	Message    string
	BackupPath string
	Timestamp  time.Time
}

// Append stores a record, assigning an id when the caller left it empty.
func (d *DB) Append(r Record) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	_, err := d.conn.Exec(`
		INSERT INTO operations (id, kind, target, ok, message, backup_path)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.Kind, r.Target, boolToInt(r.OK), r.Message, r.BackupPath)
	if err != nil {
		return fmt.Errorf("failed to record operation: %w", err)
	}
	return nil
}

// Recent returns the most recent operations, newest first.
func (d *DB) Recent(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.conn.Query(`
		SELECT id, kind, target, ok, message, backup_path, timestamp
		FROM operations
		ORDER BY timestamp DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var ok int
		var message, backup sql.NullString
		if err := rows.Scan(&r.ID, &r.Kind, &r.Target, &ok, &message, &backup, &r.Timestamp); err != nil {
			return nil, err
		}
		r.OK = ok != 0
		r.Message = message.String
		r.BackupPath = backup.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
