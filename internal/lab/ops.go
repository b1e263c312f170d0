package lab

import (
	"fmt"

	"github.com/danielpatrickdp/cdpagentx/internal/bias"
	"github.com/danielpatrickdp/cdpagentx/internal/completion"
	"github.com/danielpatrickdp/cdpagentx/internal/metric"
	"github.com/danielpatrickdp/cdpagentx/internal/params"
	"github.com/danielpatrickdp/cdpagentx/internal/sequence"
)

// #region snapshot
// Snapshot is the observable state of one module.
type Snapshot struct {
	ID            string
	Title         string
	Metric        string
	Reading       float64
	Tick          int
	History       []float64
	Params        params.Params
	Threshold     string
	Met           bool
	Complete      bool
	Steps         []string                // sequence modules only
	Breakdown     []sequence.Contribution // sequence modules only
	Projection    float64                 // set when HasProjection
	HasProjection bool
}

// Module returns the snapshot of one module.
func (l *Lab) Module(id string) (Snapshot, error) {
	m, err := l.module(id)
	if err != nil {
		return Snapshot{}, err
	}
	return l.snapshot(m), nil
}

// Snapshots returns every module in definition order.
func (l *Lab) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.snapshot(l.modules[id]))
	}
	return out
}

func (l *Lab) snapshot(m *module) Snapshot {
	p := m.board.Snapshot()
	s := Snapshot{
		ID:        m.def.ID,
		Title:     m.def.Title,
		Metric:    m.def.Metric,
		Params:    p,
		Threshold: m.def.Threshold.Describe(p),
		Complete:  l.tracker.IsComplete(m.def.ID),
	}
	switch {
	case m.proc != nil:
		st := m.proc.State()
		s.Reading, s.Tick, s.History = st.Reading, st.Tick, st.History
	case m == l.seq:
		s.Steps = l.editor.Steps()
		s.Reading = l.editor.Lift()
		s.Breakdown = sequence.Explain(s.Steps, l.editor.Tables())
	}
	s.Met = m.def.Threshold.Met(s.Reading, p)
	if m.def.Project != nil {
		s.Projection, s.HasProjection = m.def.Project(s.Reading, p), true
	}
	return s
}

// Reading returns the current exposed reading of one module.
func (l *Lab) Reading(id string) (float64, error) {
	m, err := l.module(id)
	if err != nil {
		return 0, err
	}
	if m.proc != nil {
		return m.proc.Reading(), nil
	}
	return l.editor.Lift(), nil
}

// History returns the chart window of a metric module.
func (l *Lab) History(id string) ([]float64, error) {
	m, err := l.module(id)
	if err != nil {
		return nil, err
	}
	if m.proc == nil {
		return nil, nil
	}
	return m.proc.History(), nil
}

// #endregion snapshot

// #region params
// SetParam writes one parameter; the next tick reads it. Writing the steps
// of a sequence module replaces its order and re-scores at once.
func (l *Lab) SetParam(id, key string, v any) (any, error) {
	if l.isClosed() {
		return nil, ErrClosed
	}
	m, err := l.module(id)
	if err != nil {
		return nil, err
	}
	if m == l.seq && key == bias.KeySteps {
		stored, err := m.board.Set(key, v)
		if err != nil {
			return nil, err
		}
		steps, _ := params.Params{key: stored}.List(key)
		if !l.editor.Replace(steps) {
			m.board.Set(key, l.editor.Steps())
			return nil, fmt.Errorf("%s: %w: need 1 to %d steps", key, params.ErrInvalidValue, sequence.MaxSteps)
		}
		l.observeSequence()
		return stored, nil
	}
	return m.board.Set(key, v)
}

// Param reads one parameter of a module.
func (l *Lab) Param(id, key string) (any, bool, error) {
	m, err := l.module(id)
	if err != nil {
		return nil, false, err
	}
	v, ok := m.board.Snapshot()[key]
	return v, ok, nil
}

// Params returns a module's parameter snapshot and declarations.
func (l *Lab) Params(id string) (params.Params, []params.Spec, error) {
	m, err := l.module(id)
	if err != nil {
		return nil, nil, err
	}
	return m.board.Snapshot(), m.board.Specs(), nil
}

// #endregion params

// #region sequence
// Steps returns the order of the sequence module.
func (l *Lab) Steps() ([]string, error) {
	if l.seq == nil {
		return nil, ErrNotSequence
	}
	return l.editor.Steps(), nil
}

// Score rates an arbitrary order against the session's tables without
// touching the editor.
func (l *Lab) Score(steps []string) float64 {
	return sequence.Score(steps, l.tables)
}

// EditOutcome reports the order and lift after a sequence edit.
type EditOutcome struct {
	Changed  bool
	Steps    []string
	Lift     float64
	Decision completion.Decision
}

// Move shifts one step and re-scores. Out-of-range moves change nothing.
func (l *Lab) Move(index, dir int) (EditOutcome, error) {
	return l.edit(func(e *sequence.Editor) bool { return e.Move(index, dir) })
}

// Add appends the next pool channel and re-scores.
func (l *Lab) Add() (EditOutcome, error) {
	return l.edit(func(e *sequence.Editor) bool {
		_, ok := e.Add()
		return ok
	})
}

// Remove drops one step and re-scores.
func (l *Lab) Remove(index int) (EditOutcome, error) {
	return l.edit(func(e *sequence.Editor) bool { return e.Remove(index) })
}

func (l *Lab) edit(fn func(*sequence.Editor) bool) (EditOutcome, error) {
	if l.seq == nil {
		return EditOutcome{}, ErrNotSequence
	}
	if l.isClosed() {
		return EditOutcome{}, ErrClosed
	}
	changed := fn(l.editor)
	if changed {
		l.seq.board.Set(bias.KeySteps, l.editor.Steps())
	}
	d := l.observeSequence()
	return EditOutcome{
		Changed:  changed,
		Steps:    l.editor.Steps(),
		Lift:     l.editor.Lift(),
		Decision: d,
	}, nil
}

func (l *Lab) observeSequence() completion.Decision {
	m := l.seq
	p := m.board.Snapshot()
	steps := l.editor.Steps()
	lift := sequence.Score(steps, l.editor.Tables())
	d := l.tracker.Observe(m.def.ID, m.def.Threshold, lift, p)
	if l.onTick != nil {
		l.onTick(Event{
			Module:   m.def.ID,
			State:    metric.State{ID: m.def.ID, Value: lift, Reading: lift},
			Params:   p,
			Decision: d,
		})
	}
	return d
}

// #endregion sequence

// #region progress
// Progress returns the completion mapping.
func (l *Lab) Progress() map[string]bool {
	return l.tracker.Snapshot()
}

// Completed lists complete modules in name order.
func (l *Lab) Completed() []string {
	return l.tracker.Completed()
}

// Complete marks a module complete without a reading.
func (l *Lab) Complete(id string) (bool, error) {
	if _, err := l.module(id); err != nil {
		return false, err
	}
	return l.tracker.Complete(id), nil
}

func (l *Lab) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// #endregion progress
