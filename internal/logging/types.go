package logging

import "time"

// #region transition-entry
// TransitionEntry is a single row in the transition_log table.
type TransitionEntry struct {
	SessionID  string
	Module     string
	Reading    float64
	Threshold  string
	ParamsJSON string
	CreatedAt  time.Time
}

// #endregion transition-entry
