// Package replay runs scripted lab sessions deterministically on a manual
// clock, for regression fixtures and trace capture.
package replay

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"time"

	"github.com/danielpatrickdp/cdpagentx/internal/archive"
	"github.com/danielpatrickdp/cdpagentx/internal/config"
	"github.com/danielpatrickdp/cdpagentx/internal/lab"
	"github.com/danielpatrickdp/cdpagentx/internal/schedule"
	"github.com/danielpatrickdp/cdpagentx/internal/state"
)

// #region types
// Options are the optional sinks of a run.
type Options struct {
	Store  *state.Store    // persist progress and transitions
	Trace  *archive.Writer // stream every row
	Logger *log.Logger
}

// Transition records the step a module completed on.
type Transition struct {
	Step   int    `json:"step"`
	Module string `json:"module"`
}

// Report is the outcome of one run.
type Report struct {
	SessionID   string             `json:"session_id"`
	Rows        []archive.Row      `json:"-"`
	Transitions []Transition       `json:"transitions"`
	Readings    map[string]float64 `json:"readings"`
	Progress    map[string]bool    `json:"progress"`
	Mismatches  []string           `json:"mismatches,omitempty"`
}

// Passed reports whether the final progress matched the expectation.
func (r *Report) Passed() bool { return len(r.Mismatches) == 0 }

// #endregion types

// #region run
// Run executes f. Each step advances the clock one period, so every metric
// module ticks once, then applies the events due at that step.
func Run(f *Fixture, opts Options) (*Report, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	period, _ := f.Period()
	course, err := config.DecodeCourse(f.Course)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	rep := &Report{Readings: map[string]float64{}}
	step := 0
	var traceErr error
	onTick := func(e lab.Event) {
		row := archive.Row{
			Step:         step,
			Module:       e.Module,
			Tick:         e.State.Tick,
			Value:        e.State.Value,
			Reading:      e.State.Reading,
			Offset:       e.State.Offset,
			Damping:      e.State.Damping,
			Met:          e.Decision.Met,
			Transitioned: e.Decision.Transitioned,
			Complete:     e.Decision.Complete,
			Params:       e.Params,
		}
		rep.Rows = append(rep.Rows, row)
		if e.Decision.Transitioned {
			rep.Transitions = append(rep.Transitions, Transition{Step: step, Module: e.Module})
		}
		if opts.Trace != nil && traceErr == nil {
			traceErr = opts.Trace.Write(row)
		}
	}

	clock := schedule.NewManual(time.Unix(0, 0))
	l, err := lab.New(lab.Options{
		Seed:      f.Seed,
		Course:    course,
		Tick:      period,
		Scheduler: clock,
		Store:     opts.Store,
		Logger:    logger,
		OnTick:    onTick,
	})
	if err != nil {
		return nil, err
	}
	defer l.Close()
	rep.SessionID = l.ID()

	events := append([]Event(nil), f.Events...)
	sort.SliceStable(events, func(i, j int) bool { return events[i].At < events[j].At })
	next := 0
	apply := func(at int) error {
		for ; next < len(events) && events[next].At == at; next++ {
			if err := applyEvent(l, events[next]); err != nil {
				return fmt.Errorf("step %d: %w", at, err)
			}
		}
		return nil
	}

	if err := apply(0); err != nil {
		return nil, err
	}
	if err := l.Start(context.Background()); err != nil {
		return nil, err
	}
	for step = 1; step <= f.Steps; step++ {
		clock.Advance(period)
		if err := apply(step); err != nil {
			return nil, err
		}
	}
	if traceErr != nil {
		return nil, traceErr
	}

	for _, id := range l.Modules() {
		r, _ := l.Reading(id)
		rep.Readings[id] = r
	}
	rep.Progress = l.Progress()
	rep.Mismatches = compare(f.Expected, rep.Progress)
	logger.Printf("replay %s: %d steps, %d rows, %d transitions", rep.SessionID, f.Steps, len(rep.Rows), len(rep.Transitions))
	return rep, nil
}

func applyEvent(l *lab.Lab, e Event) error {
	var err error
	switch e.Op {
	case "":
		_, err = l.SetParam(e.Module, e.Key, e.Value)
	case "move":
		_, err = l.Move(e.Index, e.Dir)
	case "add":
		_, err = l.Add()
	case "remove":
		_, err = l.Remove(e.Index)
	case "complete":
		_, err = l.Complete(e.Module)
	default:
		err = fmt.Errorf("unknown op %q", e.Op)
	}
	return err
}

func compare(expected, got map[string]bool) []string {
	var out []string
	for module, want := range expected {
		if got[module] != want {
			out = append(out, fmt.Sprintf("%s: expected complete=%v, got %v", module, want, got[module]))
		}
	}
	sort.Strings(out)
	return out
}

// #endregion run
