package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danielpatrickdp/cdpagentx/internal/completion"
	"github.com/danielpatrickdp/cdpagentx/internal/metric"
	"github.com/danielpatrickdp/cdpagentx/internal/sequence"
)

// #region course
// Course is the optional TOML course file: which scoring tables to use and
// per-module overrides of the metric strategy.
type Course struct {
	Revision string                    `toml:"revision"`
	Tables   *TablesFile               `toml:"tables"`
	Modules  map[string]ModuleOverride `toml:"modules"`
}

// TablesFile spells out scoring tables explicitly.
type TablesFile struct {
	Cap     float64            `toml:"cap"`
	Decay   float64            `toml:"decay"`
	Base    map[string]float64 `toml:"base"`
	Synergy []SynergyRow       `toml:"synergy"`
}

// SynergyRow is one ordered pair bonus.
type SynergyRow struct {
	From  string  `toml:"from"`
	To    string  `toml:"to"`
	Bonus float64 `toml:"bonus"`
}

// ModuleOverride replaces individual strategy knobs; unset fields keep the
// module's defaults.
type ModuleOverride struct {
	Initial            *float64              `toml:"initial"`
	Rest               *float64              `toml:"rest"`
	BaseJitter         *float64              `toml:"base_jitter"`
	ExploreJitterScale *float64              `toml:"explore_jitter_scale"`
	Window             *int                  `toml:"window"`
	Precision          *int                  `toml:"precision"`
	Tick               string                `toml:"tick"`
	Damping            *metric.DampingTiers  `toml:"damping"`
	Threshold          *completion.Threshold `toml:"threshold"`
}

// #endregion course

// #region load
// LoadCourse decodes a course file. An empty path yields the zero Course.
func LoadCourse(path string) (Course, error) {
	var c Course
	if path == "" {
		return c, nil
	}
	if _, err := os.Stat(path); err != nil {
		return c, fmt.Errorf("course %s: %w", path, err)
	}
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return c, fmt.Errorf("parse course %s: %w", path, err)
	}
	for id, o := range c.Modules {
		if o.Tick == "" {
			continue
		}
		if _, err := time.ParseDuration(o.Tick); err != nil {
			return c, fmt.Errorf("course module %s: tick %q: %w", id, o.Tick, err)
		}
	}
	return c, nil
}

// DecodeCourse parses course TOML from a string.
func DecodeCourse(data string) (Course, error) {
	var c Course
	if _, err := toml.Decode(data, &c); err != nil {
		return c, fmt.Errorf("parse course: %w", err)
	}
	return c, nil
}

// #endregion load

// #region resolve
// SequenceTables resolves the tables the course asks for: explicit tables
// win over a named revision; nothing configured means revision A.
func (c Course) SequenceTables() sequence.Tables {
	if c.Tables == nil {
		return sequence.Revision(c.Revision)
	}
	t := sequence.Tables{
		Base:    map[string]float64{},
		Synergy: map[sequence.Pair]float64{},
		Decay:   c.Tables.Decay,
		Cap:     c.Tables.Cap,
	}
	if t.Decay == 0 {
		t.Decay = 0.6
	}
	if t.Cap == 0 {
		t.Cap = 0.15
	}
	for k, v := range c.Tables.Base {
		t.Base[k] = v
	}
	for _, row := range c.Tables.Synergy {
		t.Synergy[sequence.Pair{From: row.From, To: row.To}] = row.Bonus
	}
	return t
}

// RevisionName labels the tables in use for session records.
func (c Course) RevisionName() string {
	switch {
	case c.Tables != nil:
		return "custom"
	case c.Revision == "b" || c.Revision == "B":
		return "b"
	default:
		return "a"
	}
}

// Apply folds the override for one module into its metric config and
// threshold. Either target may be nil.
func (o ModuleOverride) Apply(cfg *metric.Config, th *completion.Threshold) {
	if o.Threshold != nil && th != nil {
		*th = *o.Threshold
	}
	if cfg == nil {
		return
	}
	if o.Initial != nil {
		cfg.Initial = *o.Initial
	}
	if o.Rest != nil {
		cfg.Rest = *o.Rest
	}
	if o.BaseJitter != nil {
		cfg.BaseJitter = *o.BaseJitter
	}
	if o.ExploreJitterScale != nil {
		cfg.ExploreJitterScale = *o.ExploreJitterScale
	}
	if o.Window != nil {
		cfg.Window = *o.Window
	}
	if o.Precision != nil {
		cfg.Precision = *o.Precision
	}
	if d, err := time.ParseDuration(o.Tick); err == nil && d > 0 {
		cfg.TickPeriod = d
	}
	if o.Damping != nil {
		cfg.Damping = *o.Damping
	}
}

// #endregion resolve
