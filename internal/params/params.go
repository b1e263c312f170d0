// Package params holds the host-editable knobs of a module: their
// declarations, the writer-side board, and the read-only snapshots handed to
// each tick.
package params

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
)

// ErrInvalidValue reports a value that cannot be coerced to its declared kind.
var ErrInvalidValue = errors.New("invalid parameter value")

// #region kind

// Kind is the primitive shape of a parameter.
type Kind string

const (
	KindNumber Kind = "number"
	KindToggle Kind = "toggle"
	KindText   Kind = "text"
	KindList   Kind = "list"
)

// #endregion kind

// #region spec

// Spec declares one editable parameter. Numeric specs clamp to [Min, Max];
// use math.Inf for an open side.
type Spec struct {
	Key     string
	Label   string
	Kind    Kind
	Min     float64
	Max     float64
	Step    float64
	Default any
}

// Slider declares a bounded numeric parameter.
func Slider(key, label string, min, max, step, def float64) Spec {
	return Spec{Key: key, Label: label, Kind: KindNumber, Min: min, Max: max, Step: step, Default: def}
}

// Number declares a numeric input with only a lower bound.
func Number(key, label string, min, def float64) Spec {
	return Spec{Key: key, Label: label, Kind: KindNumber, Min: min, Max: math.Inf(1), Step: 1, Default: def}
}

// Toggle declares a boolean parameter.
func Toggle(key, label string, def bool) Spec {
	return Spec{Key: key, Label: label, Kind: KindToggle, Default: def}
}

// Text declares a free-text parameter.
func Text(key, label, def string) Spec {
	return Spec{Key: key, Label: label, Kind: KindText, Default: def}
}

// List declares an ordered list of tokens.
func List(key, label string, def []string) Spec {
	return Spec{Key: key, Label: label, Kind: KindList, Default: def}
}

// Coerce converts v to the spec's kind, clamping numbers into range.
func (s Spec) Coerce(v any) (any, error) {
	switch s.Kind {
	case KindNumber:
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("%s: %w: %v", s.Key, ErrInvalidValue, v)
		}
		return clamp(f, s.Min, s.Max), nil
	case KindToggle:
		b, ok := toBool(v)
		if !ok {
			return nil, fmt.Errorf("%s: %w: %v", s.Key, ErrInvalidValue, v)
		}
		return b, nil
	case KindText:
		switch t := v.(type) {
		case string:
			return t, nil
		case fmt.Stringer:
			return t.String(), nil
		}
		return fmt.Sprint(v), nil
	case KindList:
		l, ok := toList(v)
		if !ok {
			return nil, fmt.Errorf("%s: %w: %v", s.Key, ErrInvalidValue, v)
		}
		return l, nil
	}
	return v, nil
}

// #endregion spec

// #region snapshot

// Params is a read-only snapshot of named parameter values. Missing keys are
// normal; accessors report presence.
type Params map[string]any

// Float returns a numeric parameter.
func (p Params) Float(key string) (float64, bool) {
	v, ok := p[key]
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

// FloatOr returns a numeric parameter or fallback.
func (p Params) FloatOr(key string, fallback float64) float64 {
	if f, ok := p.Float(key); ok {
		return f
	}
	return fallback
}

// Bool returns a boolean parameter.
func (p Params) Bool(key string) (bool, bool) {
	v, ok := p[key]
	if !ok {
		return false, false
	}
	return toBool(v)
}

// Text returns a text parameter.
func (p Params) Text(key string) (string, bool) {
	v, ok := p[key].(string)
	return v, ok
}

// List returns a list parameter.
func (p Params) List(key string) ([]string, bool) {
	v, ok := p[key]
	if !ok {
		return nil, false
	}
	return toList(v)
}

// Clone returns a deep copy safe to hand to another goroutine.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		if l, ok := v.([]string); ok {
			v = append([]string(nil), l...)
		}
		out[k] = v
	}
	return out
}

// #endregion snapshot

// #region board

// Board is the writer side of a module's parameters. The host is the only
// writer; ticks read snapshots, so a write takes effect on the next tick.
type Board struct {
	mu     sync.RWMutex
	specs  map[string]Spec
	order  []string
	values Params
}

// NewBoard seeds a board with every spec's default.
func NewBoard(specs []Spec) *Board {
	b := &Board{
		specs:  make(map[string]Spec, len(specs)),
		values: make(Params, len(specs)),
	}
	for _, s := range specs {
		b.specs[s.Key] = s
		b.order = append(b.order, s.Key)
		if s.Default == nil {
			continue
		}
		if v, err := s.Coerce(s.Default); err == nil {
			b.values[s.Key] = v
		}
	}
	return b
}

// Set writes one value. Declared keys are coerced and clamped; undeclared
// keys are stored as given so newer hosts can pass knobs older modules ignore.
func (b *Board) Set(key string, v any) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.specs[key]; ok {
		cv, err := s.Coerce(v)
		if err != nil {
			return nil, err
		}
		v = cv
	}
	b.values[key] = v
	return v, nil
}

// Snapshot returns a copy of the current values.
func (b *Board) Snapshot() Params {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.values.Clone()
}

// Specs returns the declarations in declaration order.
func (b *Board) Specs() []Spec {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Spec, 0, len(b.order))
	for _, k := range b.order {
		out = append(out, b.specs[k])
	}
	return out
}

// #endregion board

// #region coercion
func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, false
		}
		return parsed, true
	}
	if f, ok := toFloat(v); ok {
		return f != 0, true
	}
	return false, false
}

func toList(v any) ([]string, bool) {
	switch l := v.(type) {
	case []string:
		return append([]string(nil), l...), true
	case []any:
		out := make([]string, 0, len(l))
		for _, item := range l {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	case string:
		var out []string
		for _, part := range strings.Split(l, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, true
	}
	return nil, false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// #endregion coercion
