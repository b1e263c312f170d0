package metric

import (
	"errors"
	"time"
)

var (
	// ErrDisposed is returned by Tick once the process has been disposed.
	ErrDisposed = errors.New("metric process disposed")
	// ErrOutOfDomain rejects an initial value outside the declared domain.
	ErrOutOfDomain = errors.New("initial value outside domain")
)

// #region domain
// Domain is the closed interval every raw value is clamped into.
type Domain struct {
	Min float64 `toml:"min"`
	Max float64 `toml:"max"`
}

// Clamp pins v into the domain.
func (d Domain) Clamp(v float64) float64 {
	if v < d.Min {
		return d.Min
	}
	if v > d.Max {
		return d.Max
	}
	return v
}

// Contains reports whether v lies inside the domain.
func (d Domain) Contains(v float64) bool {
	return v >= d.Min && v <= d.Max
}

// UnitDomain is the [0,1] domain used by rate-style metrics.
var UnitDomain = Domain{Min: 0, Max: 1}

// #endregion domain

// #region damping
// DampingTiers picks the pull-toward-rest factor from the explore parameter:
// below LowBelow the pull is strong (Low), above HighAbove it is weak (High),
// otherwise Mid. Without an explore parameter Mid applies.
type DampingTiers struct {
	Low       float64 `toml:"low"`
	Mid       float64 `toml:"mid"`
	High      float64 `toml:"high"`
	LowBelow  float64 `toml:"low_below"`
	HighAbove float64 `toml:"high_above"`
}

// DefaultDampingTiers returns the 0.90 / 0.94 / 0.97 split at 30 and 70.
func DefaultDampingTiers() DampingTiers {
	return DampingTiers{Low: 0.90, Mid: 0.94, High: 0.97, LowBelow: 30, HighAbove: 70}
}

// Flat returns tiers that always damp by f.
func Flat(f float64) DampingTiers {
	return DampingTiers{Low: f, Mid: f, High: f, LowBelow: 0, HighAbove: 100}
}

// Factor returns the damping for an explore reading.
func (d DampingTiers) Factor(explore float64, present bool) float64 {
	switch {
	case !present:
		return d.Mid
	case explore < d.LowBelow:
		return d.Low
	case explore > d.HighAbove:
		return d.High
	default:
		return d.Mid
	}
}

// #endregion damping

// #region config
// Config holds the strategy knobs of one process.
type Config struct {
	Domain             Domain
	Initial            float64
	Rest               float64 // resting point damping pulls toward
	BaseJitter         float64 // uniform ±BaseJitter each tick
	ExploreKey         string  // parameter that widens noise and picks the damping tier
	ExploreJitterScale float64 // ±explore/100*scale extra noise
	Damping            DampingTiers
	Window             int // smoothing samples behind the exposed reading
	ChartWindow        int // readings kept for charting
	Precision          int // decimals of the exposed reading
	TickPeriod         time.Duration
}

// DefaultConfig returns the optimiser-style walk: unit domain, rest 0,
// ±0.05 base jitter, explore-widened noise and tiered damping.
func DefaultConfig() Config {
	return Config{
		Domain:             UnitDomain,
		Initial:            0.5,
		Rest:               0,
		BaseJitter:         0.05,
		ExploreKey:         "explore",
		ExploreJitterScale: 0.05,
		Damping:            DefaultDampingTiers(),
		Window:             10,
		ChartWindow:        30,
		Precision:          1,
		TickPeriod:         time.Second,
	}
}

// #endregion config

// #region state
// State is the observable result of one tick.
type State struct {
	ID      string
	Tick    int
	Value   float64   // raw clamped value driving the walk
	Reading float64   // rounded windowed mean, the exposed value
	Offset  float64   // bias offset applied this tick
	Damping float64   // damping factor applied this tick
	History []float64 // chart window of readings, oldest first
}

// #endregion state
