package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS kv_store (
	key           TEXT PRIMARY KEY,
	value         TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	session_id    TEXT PRIMARY KEY,
	seed          INTEGER NOT NULL,
	revision      TEXT NOT NULL,
	started_at    TEXT NOT NULL,
	ended_at      TEXT
);

CREATE TABLE IF NOT EXISTS transition_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    TEXT,
	module        TEXT NOT NULL,
	reading       REAL NOT NULL,
	threshold     TEXT NOT NULL,
	params_json   TEXT,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(session_id)
);
`

// #endregion schema

// #region store-struct
// Store is the SQLite-backed key-value store and session ledger.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion close

// #region kv
// Get reads the value under key. ok is false when the key was never written.
func (s *Store) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv_store WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Put overwrites the value under key.
func (s *Store) Put(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Entries lists every key-value row ordered by key.
func (s *Store) Entries() ([]Entry, error) {
	rows, err := s.db.Query(`SELECT key, value, updated_at FROM kv_store ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var updated string
		if err := rows.Scan(&e.Key, &e.Value, &updated); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion kv

// #region sessions
// StartSession records a new session and returns it.
func (s *Store) StartSession(seed int64, revision string) (SessionRecord, error) {
	rec := SessionRecord{
		SessionID: uuid.New().String(),
		Seed:      seed,
		Revision:  revision,
		StartedAt: time.Now().UTC(),
	}
	if err := s.InsertSession(rec); err != nil {
		return SessionRecord{}, err
	}
	return rec, nil
}

// InsertSession records a session with a caller-chosen id.
func (s *Store) InsertSession(rec SessionRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO sessions (session_id, seed, revision, started_at) VALUES (?, ?, ?, ?)`,
		rec.SessionID, rec.Seed, rec.Revision, rec.StartedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// EndSession stamps the session's end time.
func (s *Store) EndSession(sessionID string) error {
	res, err := s.db.Exec(
		`UPDATE sessions SET ended_at = ? WHERE session_id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), sessionID,
	)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s not found", sessionID)
	}
	return nil
}

// ListSessions returns the most recent sessions first.
func (s *Store) ListSessions(limit int) ([]SessionRecord, error) {
	rows, err := s.db.Query(
		`SELECT session_id, seed, revision, started_at, ended_at
		 FROM sessions ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var records []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var started string
		var ended sql.NullString
		if err := rows.Scan(&rec.SessionID, &rec.Seed, &rec.Revision, &started, &ended); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		if ended.Valid {
			rec.EndedAt, _ = time.Parse(time.RFC3339Nano, ended.String)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// #endregion sessions
