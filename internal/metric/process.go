package metric

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/danielpatrickdp/cdpagentx/internal/bias"
	"github.com/danielpatrickdp/cdpagentx/internal/params"
	"github.com/danielpatrickdp/cdpagentx/internal/schedule"
	"github.com/danielpatrickdp/cdpagentx/internal/window"
)

// Rand is the uniform source the process draws jitter from.
// *math/rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// ParamSource yields the parameter snapshot read at tick time.
type ParamSource interface {
	Snapshot() params.Params
}

// #region process
// Process is one stochastic metric. Tick order is strict: each tick's output
// and the current parameters are the only inputs to the next.
type Process struct {
	id     string
	cfg    Config
	rng    Rand
	mapper *bias.Mapper

	mu       sync.Mutex
	value    float64
	reading  float64
	ticks    int
	samples  *window.Rolling
	chart    *window.Rolling
	disposed bool
	task     schedule.Task
}

// New initializes a process at cfg.Initial. A nil mapper means no bias.
func New(id string, cfg Config, rng Rand, mapper *bias.Mapper) (*Process, error) {
	if cfg.Domain.Min > cfg.Domain.Max {
		return nil, fmt.Errorf("domain [%g,%g]: min above max", cfg.Domain.Min, cfg.Domain.Max)
	}
	if !cfg.Domain.Contains(cfg.Initial) {
		return nil, fmt.Errorf("initial %g in [%g,%g]: %w", cfg.Initial, cfg.Domain.Min, cfg.Domain.Max, ErrOutOfDomain)
	}
	if rng == nil {
		return nil, fmt.Errorf("process %s: random source is required", id)
	}
	if cfg.Window < 1 {
		cfg.Window = 10
	}
	if cfg.ChartWindow < 1 {
		cfg.ChartWindow = 30
	}
	if cfg.Precision < 0 {
		cfg.Precision = 0
	}
	if cfg.TickPeriod <= 0 {
		cfg.TickPeriod = time.Second
	}
	return &Process{
		id:      id,
		cfg:     cfg,
		rng:     rng,
		mapper:  mapper,
		value:   cfg.Initial,
		reading: round(cfg.Initial, cfg.Precision),
		samples: window.New(cfg.Window),
		chart:   window.New(cfg.ChartWindow),
	}, nil
}

// ID returns the process identifier.
func (p *Process) ID() string { return p.id }

// Config returns the effective configuration.
func (p *Process) Config() Config { return p.cfg }

// #endregion process

// #region tick
// Tick advances the walk once using the given parameter snapshot.
func (p *Process) Tick(in params.Params) (State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disposed {
		return p.stateLocked(0, 0), ErrDisposed
	}

	v := p.value

	// 1. base jitter
	v += p.uniform(p.cfg.BaseJitter)

	// 2. explore widens the noise band
	explore, hasExplore := 0.0, false
	if p.cfg.ExploreKey != "" {
		explore, hasExplore = in.Float(p.cfg.ExploreKey)
		explore = math.Max(0, math.Min(100, explore))
	}
	if hasExplore {
		v += p.uniform(explore / 100 * p.cfg.ExploreJitterScale)
	}

	// 3. parameter bias shifts where the walk settles
	offset := p.mapper.Offset(in)
	v += offset

	// 4. pull toward rest
	damping := p.cfg.Damping.Factor(explore, hasExplore)
	v = p.cfg.Rest + (v-p.cfg.Rest)*damping

	// 5. clamp
	v = p.cfg.Domain.Clamp(v)
	p.value = v

	// 6. smooth over the window, 7. round the exposed reading
	p.samples.Push(v)
	if mean, ok := p.samples.Mean(); ok {
		p.reading = round(mean, p.cfg.Precision)
	}
	p.chart.Push(p.reading)
	p.ticks++

	return p.stateLocked(offset, damping), nil
}

// uniform draws from [-mag, mag].
func (p *Process) uniform(mag float64) float64 {
	if mag <= 0 {
		return 0
	}
	return (p.rng.Float64()*2 - 1) * mag
}

func (p *Process) stateLocked(offset, damping float64) State {
	return State{
		ID:      p.id,
		Tick:    p.ticks,
		Value:   p.value,
		Reading: p.reading,
		Offset:  offset,
		Damping: damping,
		History: p.chart.Values(),
	}
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

// #endregion tick

// #region readers
// Reading returns the last exposed reading without side effects.
func (p *Process) Reading() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reading
}

// Value returns the raw clamped value.
func (p *Process) Value() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

// History returns the charted readings, oldest first.
func (p *Process) History() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chart.Values()
}

// Samples returns the raw values behind the current reading.
func (p *Process) Samples() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.samples.Values()
}

// State returns the current state without ticking.
func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked(0, 0)
}

// Disposed reports whether Dispose has been called.
func (p *Process) Disposed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disposed
}

// #endregion readers

// #region lifecycle
// Run schedules the process every TickPeriod. Each tick reads a fresh
// snapshot from src and hands the result to onTick (which may be nil).
// Calling Run again replaces the previous schedule.
func (p *Process) Run(ctx context.Context, sched schedule.Scheduler, src ParamSource, onTick func(State)) error {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return ErrDisposed
	}
	prev := p.task
	p.mu.Unlock()
	if prev != nil {
		prev.Stop()
	}

	task := sched.Every(ctx, p.cfg.TickPeriod, func(time.Time) {
		st, err := p.Tick(src.Snapshot())
		if err != nil {
			return
		}
		if onTick != nil {
			onTick(st)
		}
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disposed {
		task.Stop()
		return ErrDisposed
	}
	p.task = task
	return nil
}

// Dispose stops the schedule; the process never ticks again.
func (p *Process) Dispose() {
	p.mu.Lock()
	task := p.task
	p.task = nil
	p.disposed = true
	p.mu.Unlock()
	if task != nil {
		task.Stop()
	}
}

// #endregion lifecycle
