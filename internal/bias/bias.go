// Package bias maps named simulation parameters onto an additive offset for
// the metric process. Signs and magnitudes are part of the contract; they
// model causal direction, not measured effect sizes.
package bias

import (
	"math"
	"strings"

	"github.com/danielpatrickdp/cdpagentx/internal/params"
)

// Parameter keys understood by DefaultTerms.
const (
	KeyRecency    = "recency"
	KeyFrequency  = "frequency"
	KeyMonetary   = "monetary"
	KeySimilarity = "similarity"
	KeySteps      = "steps"
	KeyCap        = "cap"
	KeyBanned     = "banned"
)

// #region term

// Term turns one parameter into an offset. ok is false when the parameter
// is absent or unreadable, which counts as a zero contribution.
type Term struct {
	Key string
	Fn  func(p params.Params) (offset float64, ok bool)
}

// DefaultTerms returns the seven recognized terms in a stable order.
func DefaultTerms() []Term {
	return []Term{
		{Key: KeyRecency, Fn: recency},
		{Key: KeyFrequency, Fn: frequency},
		{Key: KeyMonetary, Fn: monetary},
		{Key: KeySimilarity, Fn: similarity},
		{Key: KeySteps, Fn: steps},
		{Key: KeyCap, Fn: capTerm},
		{Key: KeyBanned, Fn: banned},
	}
}

// smaller recency (more recent) raises the metric
func recency(p params.Params) (float64, bool) {
	r, ok := p.Float(KeyRecency)
	if !ok {
		return 0, false
	}
	return (60 - math.Max(r, 0)) / 600, true
}

// stricter frequency narrows reach
func frequency(p params.Params) (float64, bool) {
	f, ok := p.Float(KeyFrequency)
	if !ok {
		return 0, false
	}
	return -(math.Max(f, 1) - 1) / 20, true
}

func monetary(p params.Params) (float64, bool) {
	m, ok := p.Float(KeyMonetary)
	if !ok {
		return 0, false
	}
	return -math.Max(m, 0) / 1000, true
}

func similarity(p params.Params) (float64, bool) {
	on, ok := p.Bool(KeySimilarity)
	if !ok {
		return 0, false
	}
	if on {
		return 0.2, true
	}
	return 0, true
}

func steps(p params.Params) (float64, bool) {
	l, ok := p.List(KeySteps)
	if !ok || len(l) == 0 {
		return 0, false
	}
	return float64(len(l)-1) * 0.02, true
}

func capTerm(p params.Params) (float64, bool) {
	c, ok := p.Float(KeyCap)
	if !ok {
		return 0, false
	}
	return math.Min(math.Max(c, 0)/10, 0.3), true
}

func banned(p params.Params) (float64, bool) {
	text, ok := p.Text(KeyBanned)
	if !ok {
		return 0, false
	}
	return math.Min(float64(CountTerms(text))*0.1, 0.4), true
}

// CountTerms counts the non-empty, trimmed comma-separated entries of text.
func CountTerms(text string) int {
	n := 0
	for _, part := range strings.Split(text, ",") {
		if strings.TrimSpace(part) != "" {
			n++
		}
	}
	return n
}

// #endregion term

// #region mapper

// Mapper sums a fixed table of terms. A nil Mapper contributes nothing.
type Mapper struct {
	terms []Term
}

// NewMapper builds a mapper over terms, evaluated in the given order.
func NewMapper(terms ...Term) *Mapper {
	return &Mapper{terms: append([]Term(nil), terms...)}
}

// Only returns a mapper restricted to the default terms named by keys.
// Unknown keys are skipped.
func Only(keys ...string) *Mapper {
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	var picked []Term
	for _, t := range DefaultTerms() {
		if want[t.Key] {
			picked = append(picked, t)
		}
	}
	return NewMapper(picked...)
}

// Offset returns the summed contribution of every term present in p.
func (m *Mapper) Offset(p params.Params) float64 {
	if m == nil {
		return 0
	}
	var sum float64
	for _, t := range m.terms {
		if off, ok := t.Fn(p); ok {
			sum += off
		}
	}
	return sum
}

// Breakdown returns each present term's contribution keyed by parameter.
func (m *Mapper) Breakdown(p params.Params) map[string]float64 {
	out := map[string]float64{}
	if m == nil {
		return out
	}
	for _, t := range m.terms {
		if off, ok := t.Fn(p); ok {
			out[t.Key] = off
		}
	}
	return out
}

// Keys lists the parameter keys this mapper reads.
func (m *Mapper) Keys() []string {
	if m == nil {
		return nil
	}
	keys := make([]string, len(m.terms))
	for i, t := range m.terms {
		keys[i] = t.Key
	}
	return keys
}

// #endregion mapper
