// Package sqlite stores session transcripts in a SQLite database.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/martinemde/agentwire/agentcore"
	"github.com/martinemde/agentwire/transcript"
)

// Store appends session events to a SQLite database, one row per event.
type Store struct {
	db  *sql.DB
	seq int64
	mu  sync.Mutex
}

var _ transcript.Recorder = (*Store)(nil)

// New opens (or creates) a SQLite database at the given path and runs
// migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		kind TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		data TEXT NOT NULL DEFAULT '{}',
		PRIMARY KEY (session_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record appends one event. The per-store sequence number preserves emission
// order within a session.
func (s *Store) Record(ev agentcore.Event) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("encode event data: %w", err)
	}

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	_, err = s.db.Exec(
		`INSERT INTO events (session_id, seq, kind, timestamp, data) VALUES (?, ?, ?, ?, ?)`,
		ev.SessionID, seq, string(ev.Kind), ev.Timestamp.UTC(), string(data),
	)
	return err
}

// Events returns all recorded events for a session in emission order.
func (s *Store) Events(sessionID string) ([]agentcore.Event, error) {
	rows, err := s.db.Query(
		`SELECT kind, timestamp, data FROM events WHERE session_id = ? ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []agentcore.Event
	for rows.Next() {
		var kind, data string
		var ts time.Time
		if err := rows.Scan(&kind, &ts, &data); err != nil {
			return nil, err
		}
		ev := agentcore.Event{
			Kind:      agentcore.EventKind(kind),
			Timestamp: ts,
			SessionID: sessionID,
		}
		if err := json.Unmarshal([]byte(data), &ev.Data); err != nil {
			return nil, fmt.Errorf("decode event data: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Sessions lists the distinct session ids present in the store.
func (s *Store) Sessions() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT session_id FROM events ORDER BY session_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
