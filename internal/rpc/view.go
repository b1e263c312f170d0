package rpc

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/cdpagentx/internal/completion"
	"github.com/danielpatrickdp/cdpagentx/internal/lab"
)

// #region view
// ModuleView is the wire shape of one module snapshot.
type ModuleView struct {
	ID         string
	Title      string
	Metric     string
	Reading    float64
	Tick       int
	History    []float64
	Params     map[string]any
	Threshold  string
	Met        bool
	Complete   bool
	Steps      []string
	Projection *float64
}

// NewModuleView converts a lab snapshot.
func NewModuleView(s lab.Snapshot) ModuleView {
	v := ModuleView{
		ID:        s.ID,
		Title:     s.Title,
		Metric:    s.Metric,
		Reading:   s.Reading,
		Tick:      s.Tick,
		History:   append([]float64(nil), s.History...),
		Params:    map[string]any(s.Params.Clone()),
		Threshold: s.Threshold,
		Met:       s.Met,
		Complete:  s.Complete,
		Steps:     append([]string(nil), s.Steps...),
	}
	if s.HasProjection {
		p := s.Projection
		v.Projection = &p
	}
	return v
}

func (v ModuleView) fields() map[string]any {
	m := map[string]any{
		"id":        v.ID,
		"title":     v.Title,
		"metric":    v.Metric,
		"reading":   v.Reading,
		"tick":      v.Tick,
		"history":   plain(v.History),
		"params":    plain(v.Params),
		"threshold": v.Threshold,
		"met":       v.Met,
		"complete":  v.Complete,
	}
	if len(v.Steps) > 0 {
		m["steps"] = plain(v.Steps)
	}
	if v.Projection != nil {
		m["projection"] = *v.Projection
	}
	return m
}

func (v ModuleView) toStruct() (*structpb.Struct, error) {
	s, err := structpb.NewStruct(v.fields())
	if err != nil {
		return nil, fmt.Errorf("encode module %s: %w", v.ID, err)
	}
	return s, nil
}

func moduleViewFrom(s *structpb.Struct) ModuleView {
	m := s.AsMap()
	v := ModuleView{
		ID:        str(m["id"]),
		Title:     str(m["title"]),
		Metric:    str(m["metric"]),
		Reading:   num(m["reading"]),
		Tick:      int(num(m["tick"])),
		Threshold: str(m["threshold"]),
		Met:       boolean(m["met"]),
		Complete:  boolean(m["complete"]),
	}
	if h, ok := m["history"].([]any); ok {
		for _, x := range h {
			v.History = append(v.History, num(x))
		}
	}
	if p, ok := m["params"].(map[string]any); ok {
		v.Params = p
	}
	if steps, ok := m["steps"].([]any); ok {
		for _, x := range steps {
			v.Steps = append(v.Steps, str(x))
		}
	}
	if p, ok := m["projection"].(float64); ok {
		v.Projection = &p
	}
	return v
}

// #endregion view

// #region edit
// EditResult is the outcome of a sequence edit.
type EditResult struct {
	Steps        []string
	Lift         float64
	Met          bool
	Transitioned bool
	Complete     bool
}

func editResultFrom(s *structpb.Struct) EditResult {
	m := s.AsMap()
	r := EditResult{
		Lift:         num(m["lift"]),
		Met:          boolean(m["met"]),
		Transitioned: boolean(m["transitioned"]),
		Complete:     boolean(m["complete"]),
	}
	if steps, ok := m["steps"].([]any); ok {
		for _, x := range steps {
			r.Steps = append(r.Steps, str(x))
		}
	}
	return r
}

func editFields(steps []string, lift float64, d completion.Decision) map[string]any {
	return map[string]any{
		"steps":        plain(steps),
		"lift":         lift,
		"met":          d.Met,
		"transitioned": d.Transitioned,
		"complete":     d.Complete,
	}
}

// #endregion edit

// #region convert
// plain rewrites typed slices and maps into the shapes structpb accepts.
func plain(v any) any {
	switch x := v.(type) {
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case []float64:
		out := make([]any, len(x))
		for i, f := range x {
			out[i] = f
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = plain(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = plain(e)
		}
		return out
	}
	return v
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func num(v any) float64 {
	f, _ := v.(float64)
	return f
}

func boolean(v any) bool {
	b, _ := v.(bool)
	return b
}

// #endregion convert
