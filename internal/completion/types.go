package completion

import (
	"fmt"
	"time"

	"github.com/danielpatrickdp/cdpagentx/internal/params"
)

// StorageKey is the single key the progress mapping is stored under.
const StorageKey = "cdpAgentX_progress"

// #region op
// Op is a threshold comparator.
type Op string

const (
	AtLeast Op = ">="
	Above   Op = ">"
	AtMost  Op = "<="
	Within  Op = "within" // |reading - Value| <= tolerance
)

// #endregion op

// #region threshold
// Threshold is one module's completion test.
type Threshold struct {
	Op           Op      `toml:"op"`
	Value        float64 `toml:"value"`
	Tolerance    float64 `toml:"tolerance"`     // fixed band for Within
	ToleranceKey string  `toml:"tolerance_key"` // read the band from params instead
}

// Met reports whether reading passes the test under parameters p.
func (t Threshold) Met(reading float64, p params.Params) bool {
	switch t.Op {
	case AtLeast:
		return reading >= t.Value
	case Above:
		return reading > t.Value
	case AtMost:
		return reading <= t.Value
	case Within:
		d := reading - t.Value
		if d < 0 {
			d = -d
		}
		return d <= t.tolerance(p)
	}
	return false
}

func (t Threshold) tolerance(p params.Params) float64 {
	tol := t.Tolerance
	if t.ToleranceKey != "" {
		tol = p.FloatOr(t.ToleranceKey, tol)
	}
	if tol < 0 {
		return 0
	}
	return tol
}

// Describe renders the test for logs, resolving the tolerance from p.
func (t Threshold) Describe(p params.Params) string {
	if t.Op == Within {
		return fmt.Sprintf("|x-%g| <= %g", t.Value, t.tolerance(p))
	}
	return fmt.Sprintf("x %s %g", t.Op, t.Value)
}

// #endregion threshold

// #region decision
// Decision is the outcome of observing one reading.
type Decision struct {
	Module       string
	Met          bool
	Transitioned bool // first crossing: Incomplete -> Complete
	Complete     bool // flag after this observation
	Reason       string
}

// Transition describes a module reaching its goal.
type Transition struct {
	Module    string
	Reading   float64
	Threshold string
	Params    params.Params
	At        time.Time
}

// #endregion decision
