package sequence

import "sync"

// MaxSteps bounds how long a sequence may grow.
const MaxSteps = 6

// DefaultSteps is the starting order of the course.
func DefaultSteps() []string { return []string{"Email", "Push", "Ads"} }

// DefaultPool lists channels Add draws from, in order.
func DefaultPool() []string { return []string{"SMS", "Direct Mail", "Social"} }

// #region editor

// Editor owns one ordered list of channel tokens and the scoring tables.
// Every edit re-scores synchronously.
type Editor struct {
	mu     sync.RWMutex
	steps  []string
	pool   []string
	tables Tables
}

// NewEditor starts from steps (DefaultSteps when empty).
func NewEditor(steps, pool []string, t Tables) *Editor {
	if len(steps) == 0 {
		steps = DefaultSteps()
	}
	if pool == nil {
		pool = DefaultPool()
	}
	return &Editor{
		steps:  append([]string(nil), steps...),
		pool:   append([]string(nil), pool...),
		tables: t,
	}
}

// Steps returns a copy of the current order.
func (e *Editor) Steps() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.steps...)
}

// Lift scores the current order.
func (e *Editor) Lift() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Score(e.steps, e.tables)
}

// Tables returns the scoring tables in use.
func (e *Editor) Tables() Tables {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tables
}

// Move shifts the step at index by dir positions (-1 up, +1 down).
// Moves past either end are ignored. Reports whether the order changed.
func (e *Editor) Move(index, dir int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	to := index + dir
	if dir == 0 || index < 0 || index >= len(e.steps) || to < 0 || to >= len(e.steps) {
		return false
	}
	step := e.steps[index]
	rest := append(append([]string(nil), e.steps[:index]...), e.steps[index+1:]...)
	out := make([]string, 0, len(e.steps))
	out = append(out, rest[:to]...)
	out = append(out, step)
	out = append(out, rest[to:]...)
	e.steps = out
	return true
}

// Add appends the first pool channel not already present.
func (e *Editor) Add() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.steps) >= MaxSteps {
		return "", false
	}
	present := make(map[string]bool, len(e.steps))
	for _, s := range e.steps {
		present[s] = true
	}
	for _, ch := range e.pool {
		if !present[ch] {
			e.steps = append(e.steps, ch)
			return ch, true
		}
	}
	return "", false
}

// Remove drops the step at index. The last remaining step cannot be removed.
func (e *Editor) Remove(index int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.steps) <= 1 || index < 0 || index >= len(e.steps) {
		return false
	}
	e.steps = append(e.steps[:index:index], e.steps[index+1:]...)
	return true
}

// Replace sets the whole order at once, e.g. from a persisted layout.
// An empty order is refused.
func (e *Editor) Replace(steps []string) bool {
	if len(steps) == 0 || len(steps) > MaxSteps {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.steps = append([]string(nil), steps...)
	return true
}

// #endregion editor
