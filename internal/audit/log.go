// Package audit keeps an append-only trail of every mutation made through
// the CLI.
package audit

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	_ "modernc.org/sqlite"
)

const defaultAuditPath = "audit/audit.sqlite"

// Event types written by the CLI.
const (
	EventImport        = "seed_imported"
	EventOKRCreated    = "okr_created"
	EventCheckIn       = "checkin_added"
	EventRollover      = "okr_rolled_over"
	EventLinked        = "okr_linked"
	EventClosed        = "okr_closed"
	EventReopened      = "okr_reopened"
	EventJiraLinked    = "jira_link_added"
	EventKRUpdated     = "key_result_updated"
	EventCadence       = "team_cadence_changed"
	EventExport        = "export_written"
	EventEditForbidden = "edit_forbidden"

	EventWorkspaceInit       = "workspace_init"
	EventReminderInstalled   = "reminder_installed"
	EventReminderUninstalled = "reminder_uninstalled"
)

// Event is one row of the audit trail.
type Event struct {
	ID          int64
	TS          time.Time
	Actor       string
	Type        string
	PayloadJSON string
}

// Logger writes audit events to a specific SQLite DB path.
type Logger struct {
	DBPath string
}

// NewLogger returns a Logger bound to the provided DB path.
func NewLogger(dbPath string) *Logger {
	return &Logger{DBPath: dbPath}
}

// LogEvent writes an audit event to the SQLite-backed log.
func LogEvent(actor string, eventType string, payload any) error {
	return logEvent("", actor, eventType, payload)
}

// LogEvent writes an audit event to the configured SQLite-backed log.
func (l *Logger) LogEvent(actor string, eventType string, payload any) error {
	if l == nil {
		return logEvent("", actor, eventType, payload)
	}
	return logEvent(l.DBPath, actor, eventType, payload)
}

// Recent returns up to limit events, newest first. A missing log has no events.
func (l *Logger) Recent(limit int) ([]Event, error) {
	path := ""
	if l != nil {
		path = l.DBPath
	}
	resolved, err := resolveDBPath(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(resolved); os.IsNotExist(err) {
		return nil, nil
	}

	db, err := sql.Open("sqlite", resolved)
	if err != nil {
		return nil, errors.Wrap(err, "open audit db")
	}
	defer func() {
		_ = db.Close()
	}()
	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.Query("SELECT id, ts, actor, type, payload_json FROM events ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, errors.Wrap(err, "query audit events")
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var ts string
		if err := rows.Scan(&ev.ID, &ts, &ev.Actor, &ev.Type, &ev.PayloadJSON); err != nil {
			return nil, errors.Wrap(err, "scan audit event")
		}
		ev.TS, _ = time.Parse(time.RFC3339Nano, ts)
		events = append(events, ev)
	}
	return events, rows.Err()
}

func logEvent(dbPath string, actor string, eventType string, payload any) error {
	resolved, err := resolveDBPath(dbPath)
	if err != nil {
		return err
	}
	return writeEvent(resolved, actor, eventType, payload)
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			actor TEXT NOT NULL,
			type TEXT NOT NULL,
			payload_json TEXT NOT NULL
		)
	`)
	if err != nil {
		return errors.Wrap(err, "create audit schema")
	}
	return nil
}

func resolveDBPath(dbPath string) (string, error) {
	if dbPath == "" {
		dbPath = os.Getenv("OKRTRACK_AUDIT_DB")
	}
	if dbPath == "" {
		dbPath = defaultAuditPath
	}
	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return "", errors.Wrap(err, "resolve audit db path")
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return "", errors.Wrap(err, "ensure audit db dir")
	}
	return absPath, nil
}

func writeEvent(dbPath string, actor string, eventType string, payload any) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return errors.Wrap(err, "open audit db")
	}
	defer func() {
		_ = db.Close()
	}()

	if err := ensureSchema(db); err != nil {
		return err
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal payload")
	}

	_, err = db.Exec(
		"INSERT INTO events (ts, actor, type, payload_json) VALUES (?, ?, ?, ?)",
		time.Now().UTC().Format(time.RFC3339Nano),
		actor,
		eventType,
		string(payloadJSON),
	)
	if err != nil {
		return errors.Wrap(err, "insert audit event")
	}

	return nil
}
