package checkpoint

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure Go SQLite driver
)

//go:embed schema.sql
var schemaFS embed.FS

// DB wraps the sqlite connection shared by all snapshots
type DB struct {
	db *sqlx.DB
}

// OpenSQLite opens the database and creates the snapshots table
func OpenSQLite(ctx context.Context, dsn string) (*DB, error) {
	if dsn == "" {
		dsn = "file:profscout.db?cache=shared&mode=rwc&_txlock=immediate"
	}

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000", // 5 second timeout for locks
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("read schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, string(schema)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("execute schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection
func (d *DB) Close() error { return d.db.Close() }

// Backend returns a backend for the named snapshot
func (d *DB) Backend(name string) *SQLiteBackend {
	return &SQLiteBackend{db: d.db, name: name}
}

// SQLiteBackend keeps a snapshot as a single row of the snapshots table
type SQLiteBackend struct {
	db   *sqlx.DB
	name string
}

// Read returns the stored snapshot or nil when the row does not exist
func (s *SQLiteBackend) Read(ctx context.Context) ([]byte, error) {
	var data string
	err := s.db.GetContext(ctx, &data, "SELECT data FROM snapshots WHERE name = ?", s.name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select snapshot %s: %w", s.name, err)
	}
	return []byte(data), nil
}

// Write upserts the snapshot, retrying while the database is locked
func (s *SQLiteBackend) Write(ctx context.Context, data []byte) error {
	records := countRecords(data)
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	var lastErr error
	err := retrier.Do(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO snapshots (name, data, records, updated_at) VALUES (?, ?, ?, datetime('now'))
			ON CONFLICT(name) DO UPDATE SET data = excluded.data, records = excluded.records, updated_at = excluded.updated_at`,
			s.name, string(data), records)
		if err != nil && !isLockError(err) {
			lastErr = err
			return nil // not retryable, reported below
		}
		return err
	})
	if lastErr != nil {
		return fmt.Errorf("upsert snapshot %s: %w", s.name, lastErr)
	}
	if err != nil {
		return fmt.Errorf("upsert snapshot %s: %w", s.name, err)
	}
	return nil
}

func (s *SQLiteBackend) String() string { return "sqlite:" + s.name }

// countRecords returns the number of array elements, zero for anything else
func countRecords(data []byte) int {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return 0
	}
	return len(arr)
}

// isLockError checks if an error is a SQLite lock/busy error
func isLockError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "SQLITE_BUSY") ||
		strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "database table is locked")
}
