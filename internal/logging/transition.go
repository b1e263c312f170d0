package logging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/danielpatrickdp/cdpagentx/internal/completion"
)

// #region logger
// New returns a component logger writing "[component] message" lines.
// A nil writer means stderr.
func New(w io.Writer, component string) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	return log.New(w, "["+component+"] ", log.LstdFlags|log.Lmsgprefix)
}

// #endregion logger

// #region log-transition
// LogTransition writes a transition entry to the transition_log table.
func LogTransition(db *sql.DB, entry TransitionEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO transition_log (session_id, module, reading, threshold, params_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		nullIfEmpty(entry.SessionID),
		entry.Module,
		entry.Reading,
		entry.Threshold,
		nullIfEmpty(entry.ParamsJSON),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log transition: %w", err)
	}
	return nil
}

// FromTransition builds a log entry from a tracker transition.
func FromTransition(sessionID string, tr completion.Transition) TransitionEntry {
	entry := TransitionEntry{
		SessionID: sessionID,
		Module:    tr.Module,
		Reading:   tr.Reading,
		Threshold: tr.Threshold,
		CreatedAt: tr.At,
	}
	if len(tr.Params) > 0 {
		if b, err := json.Marshal(tr.Params); err == nil {
			entry.ParamsJSON = string(b)
		}
	}
	return entry
}

// #endregion log-transition

// #region list-transitions
// ListTransitions returns the most recent transitions first.
func ListTransitions(db *sql.DB, limit int) ([]TransitionEntry, error) {
	rows, err := db.Query(
		`SELECT session_id, module, reading, threshold, params_json, created_at
		 FROM transition_log ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var out []TransitionEntry
	for rows.Next() {
		var e TransitionEntry
		var session, paramsJSON sql.NullString
		var created string
		if err := rows.Scan(&session, &e.Module, &e.Reading, &e.Threshold, &paramsJSON, &created); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		e.SessionID = session.String
		e.ParamsJSON = paramsJSON.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion list-transitions

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
