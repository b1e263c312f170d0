// Package lab composes metric processes, parameter boards, the sequence
// editor and the completion tracker into one running session.
package lab

import (
	"math"

	"github.com/danielpatrickdp/cdpagentx/internal/bias"
	"github.com/danielpatrickdp/cdpagentx/internal/completion"
	"github.com/danielpatrickdp/cdpagentx/internal/metric"
	"github.com/danielpatrickdp/cdpagentx/internal/params"
	"github.com/danielpatrickdp/cdpagentx/internal/sequence"
)

// Module identifiers of the course.
const (
	Segmentation  = "seg"
	Orchestration = "orch"
	Guardrails    = "guard"
	Optimiser     = "optimise"
)

// #region definition
// Definition describes one module. A Sequence module has no Metric; its
// reading is the scorer's lift over the editor's order.
type Definition struct {
	ID        string
	Title     string
	Metric    string // label of the reading
	Params    []params.Spec
	Config    *metric.Config
	Terms     []string
	Threshold completion.Threshold
	Sequence  bool

	// Project derives a secondary figure from the reading, if any.
	Project func(reading float64, p params.Params) float64
}

func (d Definition) mapper() *bias.Mapper {
	if len(d.Terms) == 0 {
		return nil
	}
	return bias.Only(d.Terms...)
}

// #endregion definition

// #region catalogue
// Catalogue returns the four course modules in course order.
func Catalogue() []Definition {
	return []Definition{
		segmentation(),
		orchestration(),
		guardrails(),
		optimiser(),
	}
}

func segmentation() Definition {
	cfg := metric.DefaultConfig()
	cfg.Rest = 0.5
	cfg.ExploreKey = ""
	cfg.Damping = metric.Flat(0.8)
	return Definition{
		ID:     Segmentation,
		Title:  "Segmentation Basics",
		Metric: "Reachable audience",
		Params: []params.Spec{
			params.Slider(bias.KeyRecency, "Recency days", 0, 60, 1, 30),
			params.Slider(bias.KeyFrequency, "Frequency", 1, 10, 1, 3),
			params.Slider(bias.KeyMonetary, "Monetary $", 0, 500, 1, 100),
			params.Toggle(bias.KeySimilarity, "Similarity search", false),
		},
		Config:    &cfg,
		Terms:     []string{bias.KeyRecency, bias.KeyFrequency, bias.KeyMonetary, bias.KeySimilarity},
		Threshold: completion.Threshold{Op: completion.AtLeast, Value: 0.7},
	}
}

func orchestration() Definition {
	return Definition{
		ID:     Orchestration,
		Title:  "Channel Orchestration",
		Metric: "Predicted lift",
		Params: []params.Spec{
			params.List(bias.KeySteps, "Sequence", sequence.DefaultSteps()),
		},
		Threshold: completion.Threshold{Op: completion.Above, Value: 0.11},
		Sequence:  true,
	}
}

func guardrails() Definition {
	cfg := metric.DefaultConfig()
	cfg.Rest = 0.5
	cfg.ExploreKey = ""
	cfg.Damping = metric.Flat(0.94)
	return Definition{
		ID:     Guardrails,
		Title:  "Guardrails & Caps",
		Metric: "Compliance",
		Params: []params.Spec{
			params.Number(bias.KeyCap, "Max messages / week", 0, 5),
			params.Text(bias.KeyBanned, "Banned words (comma)", ""),
		},
		Config:    &cfg,
		Terms:     []string{bias.KeyCap, bias.KeyBanned},
		Threshold: completion.Threshold{Op: completion.AtLeast, Value: 1},
	}
}

func optimiser() Definition {
	cfg := metric.DefaultConfig()
	cfg.Domain = metric.Domain{Min: -100, Max: 100}
	cfg.Initial = -25
	cfg.BaseJitter = 0.5
	cfg.ExploreJitterScale = 0.5
	return Definition{
		ID:     Optimiser,
		Title:  "Agentic Optimiser",
		Metric: "Goal delta %",
		Params: []params.Spec{
			params.Number("target", "Revenue target", 0, 1000),
			params.Slider("tolerance", "Tolerance %", 0, 20, 1, 5),
			params.Slider("explore", "Exploration", 0, 100, 1, 50),
		},
		Config:    &cfg,
		Threshold: completion.Threshold{Op: completion.Within, Value: 0, Tolerance: 5, ToleranceKey: "tolerance"},
		Project:   projectRevenue,
	}
}

// projectRevenue turns the goal delta into projected revenue.
func projectRevenue(delta float64, p params.Params) float64 {
	target := p.FloatOr("target", 0)
	return math.Max(0, target*(1+delta/100))
}

// #endregion catalogue
