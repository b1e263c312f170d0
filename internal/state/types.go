package state

import "time"

// #region session-record
// SessionRecord is one run of the lab against this database.
type SessionRecord struct {
	SessionID string
	Seed      int64
	Revision  string // sequence table revision in use
	StartedAt time.Time
	EndedAt   time.Time // zero while the session is live
}

// #endregion session-record

// #region entry
// Entry is one key-value row.
type Entry struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// #endregion entry
