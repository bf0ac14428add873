package artifact

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a durable ArtifactStore backed by a SQLite database.
// Artifacts are stored as raw blobs keyed by (session id, artifact id) and
// overwrite on save, matching the in-memory semantics. Suitable for
// single-node deployments where artifacts must survive process restarts.
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
		`CREATE TABLE IF NOT EXISTS artifacts (
			session_id  TEXT NOT NULL,
			artifact_id TEXT NOT NULL,
			data        BLOB NOT NULL,
			updated     TEXT NOT NULL,
			PRIMARY KEY (session_id, artifact_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_artifacts_session_id ON artifacts(session_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("ensure sqlite schema: %w", err)
		}
	}
	return nil
}

// Save stores (or overwrites) the artifact bytes for the given session and id.
func (s *SQLiteStore) Save(sessionID, artifactID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO artifacts (session_id, artifact_id, data, updated)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id, artifact_id) DO UPDATE SET
			data    = excluded.data,
			updated = excluded.updated`,
		sessionID, artifactID, data, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save artifact %q/%q: %w", sessionID, artifactID, err)
	}
	return nil
}

// Get returns the stored artifact bytes or ErrNotFound.
func (s *SQLiteStore) Get(sessionID, artifactID string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow(
		`SELECT data FROM artifacts WHERE session_id = ? AND artifact_id = ?`,
		sessionID, artifactID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact %q/%q: %w", sessionID, artifactID, err)
	}
	return data, nil
}

// List returns the artifact ids stored for the session ordered by id.
func (s *SQLiteStore) List(sessionID string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT artifact_id FROM artifacts WHERE session_id = ? ORDER BY artifact_id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list artifacts for %q: %w", sessionID, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan artifact id for %q: %w", sessionID, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifacts for %q: %w", sessionID, err)
	}
	return ids, nil
}

// Delete removes the artifact if present or returns ErrNotFound.
func (s *SQLiteStore) Delete(sessionID, artifactID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`DELETE FROM artifacts WHERE session_id = ? AND artifact_id = ?`,
		sessionID, artifactID,
	)
	if err != nil {
		return fmt.Errorf("delete artifact %q/%q: %w", sessionID, artifactID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete artifact %q/%q: %w", sessionID, artifactID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
