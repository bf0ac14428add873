package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agentflow/agentflow/core"
)

// SQLiteStore is a durable SessionStore backed by a SQLite database. Session
// state and metadata are stored as JSON blobs; events live in a companion
// table ordered by a per-session sequence number. The store mirrors the
// in-memory semantics: Get lazily creates missing sessions and Create
// overwrites any existing session with the same id.
//
// A single store is safe for concurrent use. Writes are serialized through an
// internal mutex since SQLite permits only one writer at a time.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (creating if necessary) the database at the given DSN
// and ensures the schema exists. Use ":memory:" for an ephemeral store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id       TEXT PRIMARY KEY,
			state    TEXT NOT NULL,
			metadata TEXT NOT NULL,
			created  TEXT NOT NULL,
			updated  TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS session_events (
			session_id TEXT    NOT NULL,
			seq        INTEGER NOT NULL,
			event      TEXT    NOT NULL,
			PRIMARY KEY (session_id, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_session_events_session_id ON session_events(session_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("ensure sqlite schema: %w", err)
		}
	}
	return nil
}

// Get returns the session with the given id, creating it if absent.
func (s *SQLiteStore) Get(sessionID string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.loadSession(sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return s.insertFresh(sessionID)
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Create stores a fresh session under the given id, replacing any existing
// session and its event history.
func (s *SQLiteStore) Create(sessionID string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM session_events WHERE session_id = ?`, sessionID); err != nil {
		return nil, fmt.Errorf("clear events for session %q: %w", sessionID, err)
	}

	sess := core.NewSession(sessionID)
	if err := upsertSession(tx, sess); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit session %q: %w", sessionID, err)
	}
	return sess, nil
}

// AppendEvent appends an event to the session's history, creating the session
// if it does not exist yet.
func (s *SQLiteStore) AppendEvent(sessionID string, ev core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event %q: %w", ev.ID, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := ensureSessionRow(tx, sessionID); err != nil {
		return err
	}

	_, err = tx.Exec(
		`INSERT INTO session_events (session_id, seq, event)
		 VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM session_events WHERE session_id = ?), ?)`,
		sessionID, sessionID, string(payload),
	)
	if err != nil {
		return fmt.Errorf("append event to session %q: %w", sessionID, err)
	}

	if err := touchSession(tx, sessionID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event for session %q: %w", sessionID, err)
	}
	return nil
}

// ApplyDelta merges a key/value delta into the session's state blob, creating
// the session if it does not exist yet.
func (s *SQLiteStore) ApplyDelta(sessionID string, delta map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := ensureSessionRow(tx, sessionID); err != nil {
		return err
	}

	var stateJSON string
	if err := tx.QueryRow(`SELECT state FROM sessions WHERE id = ?`, sessionID).Scan(&stateJSON); err != nil {
		return fmt.Errorf("load state for session %q: %w", sessionID, err)
	}

	state := map[string]interface{}{}
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return fmt.Errorf("decode state for session %q: %w", sessionID, err)
	}
	for k, v := range delta {
		state[k] = v
	}

	merged, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state for session %q: %w", sessionID, err)
	}

	_, err = tx.Exec(
		`UPDATE sessions SET state = ?, updated = ? WHERE id = ?`,
		string(merged), time.Now().UTC().Format(time.RFC3339Nano), sessionID,
	)
	if err != nil {
		return fmt.Errorf("update state for session %q: %w", sessionID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit state for session %q: %w", sessionID, err)
	}
	return nil
}

// Summary describes a stored session without materializing its state or
// event payloads.
type Summary struct {
	ID         string
	Created    time.Time
	Updated    time.Time
	EventCount int
}

// List returns summaries for every stored session, most recently updated
// first. Ordering happens on the parsed timestamps since RFC3339Nano strings
// with trimmed fractions do not sort lexicographically.
func (s *SQLiteStore) List() ([]Summary, error) {
	rows, err := s.db.Query(
		`SELECT s.id, s.created, s.updated, COUNT(e.seq)
		 FROM sessions s
		 LEFT JOIN session_events e ON e.session_id = s.id
		 GROUP BY s.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var created, updated string
		if err := rows.Scan(&sum.ID, &created, &updated, &sum.EventCount); err != nil {
			return nil, fmt.Errorf("scan session summary: %w", err)
		}
		if sum.Created, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parse created for session %q: %w", sum.ID, err)
		}
		if sum.Updated, err = time.Parse(time.RFC3339Nano, updated); err != nil {
			return nil, fmt.Errorf("parse updated for session %q: %w", sum.ID, err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session summaries: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Updated.After(out[j].Updated) })
	return out, nil
}

// loadSession reads the session row plus its ordered event history. Returns
// sql.ErrNoRows (wrapped) when the session does not exist.
func (s *SQLiteStore) loadSession(sessionID string) (*core.Session, error) {
	var stateJSON, metadataJSON, created, updated string
	err := s.db.QueryRow(
		`SELECT state, metadata, created, updated FROM sessions WHERE id = ?`, sessionID,
	).Scan(&stateJSON, &metadataJSON, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("load session %q: %w", sessionID, err)
	}

	sess := core.NewSession(sessionID)
	if err := json.Unmarshal([]byte(stateJSON), &sess.State); err != nil {
		return nil, fmt.Errorf("decode state for session %q: %w", sessionID, err)
	}
	if err := json.Unmarshal([]byte(metadataJSON), &sess.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata for session %q: %w", sessionID, err)
	}
	if sess.Created, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("parse created for session %q: %w", sessionID, err)
	}
	if sess.Updated, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, fmt.Errorf("parse updated for session %q: %w", sessionID, err)
	}

	rows, err := s.db.Query(
		`SELECT event FROM session_events WHERE session_id = ? ORDER BY seq`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("load events for session %q: %w", sessionID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event for session %q: %w", sessionID, err)
		}
		var ev core.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("decode event for session %q: %w", sessionID, err)
		}
		sess.Events = append(sess.Events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events for session %q: %w", sessionID, err)
	}
	return sess, nil
}

// insertFresh creates and persists a brand new session row.
func (s *SQLiteStore) insertFresh(sessionID string) (*core.Session, error) {
	sess := core.NewSession(sessionID)
	if err := upsertSession(s.db, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// execer abstracts *sql.DB and *sql.Tx for the shared row helpers.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func upsertSession(e execer, sess *core.Session) error {
	stateJSON, err := json.Marshal(sess.State)
	if err != nil {
		return fmt.Errorf("encode state for session %q: %w", sess.ID, err)
	}
	metadataJSON, err := json.Marshal(sess.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata for session %q: %w", sess.ID, err)
	}

	_, err = e.Exec(
		`INSERT INTO sessions (id, state, metadata, created, updated)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			state    = excluded.state,
			metadata = excluded.metadata,
			created  = excluded.created,
			updated  = excluded.updated`,
		sess.ID,
		string(stateJSON),
		string(metadataJSON),
		sess.Created.UTC().Format(time.RFC3339Nano),
		sess.Updated.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("store session %q: %w", sess.ID, err)
	}
	return nil
}

func ensureSessionRow(e execer, sessionID string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := e.Exec(
		`INSERT INTO sessions (id, state, metadata, created, updated)
		 VALUES (?, '{}', '{}', ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		sessionID, now, now,
	)
	if err != nil {
		return fmt.Errorf("ensure session %q: %w", sessionID, err)
	}
	return nil
}

func touchSession(e execer, sessionID string) error {
	if _, err := e.Exec(
		`UPDATE sessions SET updated = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), sessionID,
	); err != nil {
		return fmt.Errorf("touch session %q: %w", sessionID, err)
	}
	return nil
}
