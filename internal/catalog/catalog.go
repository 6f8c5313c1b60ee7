// Package catalog keeps the durable record of backups and operations in a
// SQLite database next to the vault. Every operation leaves a row whether it
// succeeded or not; the list command and the management protocol read from
// here instead of re-scanning the vault.
package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// nowUTC returns the current UTC time as an ISO 8601 string.
func nowUTC() string { return time.Now().UTC().Format(time.RFC3339) }

// Operation row statuses.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

const currentSchemaVersion = 1

const schemaV1 = `
CREATE TABLE schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE backups (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	server     TEXT NOT NULL,
	label      TEXT NOT NULL,
	size       INTEGER NOT NULL DEFAULT 0,
	elapsed    TEXT NOT NULL DEFAULT '',
	valid      INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	UNIQUE(server, label)
);

CREATE TABLE operations (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	server       TEXT NOT NULL,
	backup_label TEXT,
	status       TEXT NOT NULL,
	elapsed      TEXT,
	detail       TEXT,
	created_at   TEXT NOT NULL
);

CREATE INDEX idx_operations_server ON operations(server, created_at);
`

// Backup is one row of the backups table.
type Backup struct {
	ID        int64
	Server    string
	Label     string
	Size      int64
	Elapsed   string
	Valid     bool
	CreatedAt string
}

// Operation is one row of the operations table.
type Operation struct {
	ID          string
	Kind        string
	Server      string
	BackupLabel string
	Status      string
	Elapsed     string
	Detail      string
	CreatedAt   string
}

// Catalog wraps the SQLite handle.
type Catalog struct {
	db *sql.DB
}

// Open opens or creates the catalog database at path and runs migrations.
// The parent directory is created if missing.
func Open(path string) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create catalog dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	c := &Catalog{db: db}
	if err := c.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Catalog) migrate() error {
	var tableCount int
	err := c.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableCount == 0 {
		if _, err := c.db.Exec(schemaV1); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := c.db.Exec("INSERT INTO schema_version(version) VALUES(?)", currentSchemaVersion); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
		return nil
	}

	var v int
	if err := c.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if v != currentSchemaVersion {
		return fmt.Errorf("unknown schema version %d", v)
	}
	return nil
}

// Close releases the database handle.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// RecordBackup inserts or updates the row for (server, label). Backups are
// recorded invalid when started and re-recorded valid when finished, so the
// upsert keeps one row per backup.
func (c *Catalog) RecordBackup(server, label string, size int64, elapsed string, valid bool) error {
	validInt := 0
	if valid {
		validInt = 1
	}
	_, err := c.db.Exec(
		`INSERT INTO backups(server, label, size, elapsed, valid, created_at)
		 VALUES(?, ?, ?, ?, ?, ?)
		 ON CONFLICT(server, label) DO UPDATE SET size = excluded.size,
		     elapsed = excluded.elapsed, valid = excluded.valid`,
		server, label, size, elapsed, validInt, nowUTC(),
	)
	if err != nil {
		return fmt.Errorf("record backup: %w", err)
	}
	return nil
}

// GetBackup returns the row for (server, label), or nil if absent.
func (c *Catalog) GetBackup(server, label string) (*Backup, error) {
	var b Backup
	var valid int
	err := c.db.QueryRow(
		`SELECT id, server, label, size, elapsed, valid, created_at
		 FROM backups WHERE server = ? AND label = ?`,
		server, label,
	).Scan(&b.ID, &b.Server, &b.Label, &b.Size, &b.Elapsed, &valid, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get backup: %w", err)
	}
	b.Valid = valid == 1
	return &b, nil
}

// ListBackups returns a server's backups in label (chronological) order.
func (c *Catalog) ListBackups(server string) ([]*Backup, error) {
	rows, err := c.db.Query(
		`SELECT id, server, label, size, elapsed, valid, created_at
		 FROM backups WHERE server = ? ORDER BY label`,
		server,
	)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	var list []*Backup
	for rows.Next() {
		var b Backup
		var valid int
		if err := rows.Scan(&b.ID, &b.Server, &b.Label, &b.Size, &b.Elapsed, &valid, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		b.Valid = valid == 1
		list = append(list, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	return list, nil
}

// BeginOperation records a new operation row in the running state.
func (c *Catalog) BeginOperation(id, kind, server, backupLabel string) error {
	_, err := c.db.Exec(
		`INSERT INTO operations(id, kind, server, backup_label, status, elapsed, detail, created_at)
		 VALUES(?, ?, ?, ?, ?, '', '', ?)`,
		id, kind, server, backupLabel, StatusRunning, nowUTC(),
	)
	if err != nil {
		return fmt.Errorf("begin operation: %w", err)
	}
	return nil
}

// FinishOperation closes an operation row with its final status. detail
// carries the failure message, empty on success.
func (c *Catalog) FinishOperation(id, status, elapsed, detail string) error {
	res, err := c.db.Exec(
		`UPDATE operations SET status = ?, elapsed = ?, detail = ? WHERE id = ?`,
		status, elapsed, detail, id,
	)
	if err != nil {
		return fmt.Errorf("finish operation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish operation: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish operation: no row for id %s", id)
	}
	return nil
}

// ListOperations returns a server's most recent operations, newest first.
func (c *Catalog) ListOperations(server string, limit int) ([]*Operation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := c.db.Query(
		`SELECT id, kind, server, backup_label, status, elapsed, detail, created_at
		 FROM operations WHERE server = ?
		 ORDER BY created_at DESC, id LIMIT ?`,
		server, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	defer rows.Close()

	var list []*Operation
	for rows.Next() {
		var op Operation
		var label, elapsed, detail sql.NullString
		if err := rows.Scan(&op.ID, &op.Kind, &op.Server, &label, &op.Status, &elapsed, &detail, &op.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		op.BackupLabel = label.String
		op.Elapsed = elapsed.String
		op.Detail = detail.String
		list = append(list, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	return list, nil
}
