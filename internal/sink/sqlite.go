package sink

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Alia5/wiistream/apitypes"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id      INTEGER PRIMARY KEY AUTOINCREMENT,
		session TEXT NOT NULL,
		kind    TEXT NOT NULL,
		time    TEXT NOT NULL,
		payload TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS events_session ON events(session, id)`,
}

// SQLiteRecorder appends every event to an sqlite database for later
// replay and analysis.
type SQLiteRecorder struct {
	logger *slog.Logger

	mu     sync.Mutex
	db     *sql.DB
	insert *sql.Stmt
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteRecorder, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite schema: %w", err)
		}
	}
	insert, err := db.Prepare(`INSERT INTO events(session, kind, time, payload) VALUES(?, ?, ?, ?)`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite prepare: %w", err)
	}
	logger.Info("recording events", "db", path)
	return &SQLiteRecorder{logger: logger, db: db, insert: insert}, nil
}

func (r *SQLiteRecorder) Handle(ev apitypes.Event) {
	var payload sql.NullString
	if ev.Payload != nil {
		b, err := json.Marshal(ev.Payload)
		if err != nil {
			r.logger.Error("sqlite: marshal payload", "kind", ev.Kind, "error", err)
			return
		}
		payload = sql.NullString{String: string(b), Valid: true}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insert == nil {
		return
	}
	if _, err := r.insert.Exec(ev.Session, string(ev.Kind), ev.Time.Format(time.RFC3339Nano), payload); err != nil {
		r.logger.Error("sqlite: insert event", "kind", ev.Kind, "error", err)
	}
}

// Count returns the number of events recorded for session, or for all
// sessions when session is empty.
func (r *SQLiteRecorder) Count(session string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	var err error
	if session == "" {
		err = r.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n)
	} else {
		err = r.db.QueryRow(`SELECT COUNT(*) FROM events WHERE session = ?`, session).Scan(&n)
	}
	return n, err
}

// Close flushes and closes the database.
func (r *SQLiteRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insert == nil {
		return nil
	}
	_ = r.insert.Close()
	r.insert = nil
	return r.db.Close()
}
