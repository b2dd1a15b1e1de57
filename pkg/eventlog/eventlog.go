// Package eventlog records normalized stream lifecycle and tool events in a
// SQLite database, and provides query access for the CLI and the viewer.
// Message bodies are not stored; transcripts live only in memory.
package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// Event is one recorded stream signal.
type Event struct {
	ID         int64
	Type       string // stream.start, stream.end, stream.tool, stream.subagent
	SessionKey string
	RunID      string
	Payload    string
	CreatedAt  time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	type TEXT NOT NULL,
	session_key TEXT NOT NULL DEFAULT '',
	run_id TEXT NOT NULL DEFAULT '',
	payload TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%S','now'))
);
CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_key);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
`

// Writer appends events to the log.
type Writer struct {
	db *sql.DB
}

// NewWriter opens (creating if needed) the event database in WAL mode.
func NewWriter(dbPath string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Writer{db: db}, nil
}

// Append records one event.
func (w *Writer) Append(ctx context.Context, typ, sessionKey, runID, payload string) error {
	_, err := w.db.ExecContext(ctx,
		"INSERT INTO events (type, session_key, run_id, payload) VALUES (?, ?, ?, ?)",
		typ, sessionKey, runID, payload)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (w *Writer) Close() error {
	if w.db != nil {
		return w.db.Close()
	}
	return nil
}

// DefaultDBPath returns the default event database location.
func DefaultDBPath() string {
	if dir := os.Getenv("TALON_DIR"); dir != "" {
		return filepath.Join(dir, "events.db")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".talon", "events.db")
}
