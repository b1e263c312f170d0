package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a scripted lab run.
type Fixture struct {
	Description string          `json:"description"`
	Seed        int64           `json:"seed"`
	Steps       int             `json:"steps"`
	Tick        string          `json:"tick,omitempty"`   // period of one step, default 1s
	Course      string          `json:"course,omitempty"` // inline course TOML
	Events      []Event         `json:"events"`
	Expected    map[string]bool `json:"expected"`
}

// Event is one scripted host action, applied once At steps have run (At 0
// is before the first tick). An event either writes a parameter (Key,
// Value) or edits the sequence (Op).
type Event struct {
	At     int    `json:"at"`
	Module string `json:"module,omitempty"`
	Key    string `json:"key,omitempty"`
	Value  any    `json:"value,omitempty"`
	Op     string `json:"op,omitempty"` // move | add | remove | complete
	Index  int    `json:"index,omitempty"`
	Dir    int    `json:"dir,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	return &f, nil
}

// Validate checks the script is runnable.
func (f *Fixture) Validate() error {
	if f.Steps < 0 {
		return fmt.Errorf("steps %d: must not be negative", f.Steps)
	}
	if _, err := f.Period(); err != nil {
		return err
	}
	for i, e := range f.Events {
		if e.At < 0 || e.At > f.Steps {
			return fmt.Errorf("event %d: at %d outside [0,%d]", i, e.At, f.Steps)
		}
		if e.Op == "" && (e.Module == "" || e.Key == "") {
			return fmt.Errorf("event %d: needs module and key, or an op", i)
		}
	}
	return nil
}

// Period returns the duration of one step.
func (f *Fixture) Period() (time.Duration, error) {
	if f.Tick == "" {
		return time.Second, nil
	}
	d, err := time.ParseDuration(f.Tick)
	if err != nil {
		return 0, fmt.Errorf("tick %q: %w", f.Tick, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("tick %q: must be positive", f.Tick)
	}
	return d, nil
}

// #endregion fixture-loader
