package lab

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/cdpagentx/internal/completion"
	"github.com/danielpatrickdp/cdpagentx/internal/config"
	"github.com/danielpatrickdp/cdpagentx/internal/logging"
	"github.com/danielpatrickdp/cdpagentx/internal/metric"
	"github.com/danielpatrickdp/cdpagentx/internal/params"
	"github.com/danielpatrickdp/cdpagentx/internal/schedule"
	"github.com/danielpatrickdp/cdpagentx/internal/sequence"
	"github.com/danielpatrickdp/cdpagentx/internal/state"
)

var (
	// ErrUnknownModule reports a module id the session does not carry.
	ErrUnknownModule = errors.New("unknown module")
	// ErrNotSequence reports a sequence edit against a session without one.
	ErrNotSequence = errors.New("module is not a sequence")
	// ErrClosed reports use of a session after Close.
	ErrClosed = errors.New("lab closed")
)

// #region options
// Options configures a session. Zero values pick the defaults noted.
type Options struct {
	Seed        int64              // 0 draws a crypto seed
	Definitions []Definition       // nil uses Catalogue()
	Course      config.Course      // tables and per-module overrides
	Tick        time.Duration      // >0 overrides every module's period
	Scheduler   schedule.Scheduler // nil uses a real ticker
	Store       *state.Store       // durable progress, session row and transition log
	KV          completion.KV      // used when Store is nil; nil means in-memory
	Logger      *log.Logger
	OnTick      func(Event) // called after every observed reading
}

// Event is one observed reading and the decision it produced.
type Event struct {
	Module   string
	State    metric.State
	Params   params.Params
	Decision completion.Decision
}

// #endregion options

// #region lab
type module struct {
	def   Definition
	board *params.Board
	proc  *metric.Process
}

// Lab is one running session over the module catalogue.
type Lab struct {
	id      string
	seed    int64
	logger  *log.Logger
	sched   schedule.Scheduler
	store   *state.Store
	tracker *completion.Tracker
	editor  *sequence.Editor
	tables  sequence.Tables
	onTick  func(Event)

	order   []string
	modules map[string]*module
	seq     *module

	mu      sync.Mutex
	started bool
	closed  bool
}

// New builds every module of opts.Definitions. Processes do not tick until
// Start.
func New(opts Options) (*Lab, error) {
	seed, err := config.ResolveSeed(opts.Seed)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	defs := opts.Definitions
	if defs == nil {
		defs = Catalogue()
	}
	sched := opts.Scheduler
	if sched == nil {
		sched = schedule.NewTicker()
	}

	l := &Lab{
		seed:    seed,
		logger:  logger,
		sched:   sched,
		store:   opts.Store,
		tables:  opts.Course.SequenceTables(),
		onTick:  opts.OnTick,
		modules: make(map[string]*module, len(defs)),
	}

	var kv completion.KV = completion.NewMemoryKV()
	switch {
	case opts.Store != nil:
		kv = opts.Store
		rec, err := opts.Store.StartSession(seed, opts.Course.RevisionName())
		if err != nil {
			return nil, fmt.Errorf("start session: %w", err)
		}
		l.id = rec.SessionID
	case opts.KV != nil:
		kv = opts.KV
	}
	if l.id == "" {
		l.id = uuid.New().String()
	}
	l.tracker = completion.NewTracker(kv, completion.StorageKey, logger)
	l.tracker.OnTransition(l.recordTransition)

	for i, def := range defs {
		if _, dup := l.modules[def.ID]; dup {
			return nil, fmt.Errorf("module %s: defined twice", def.ID)
		}
		override, hasOverride := opts.Course.Modules[def.ID]
		if hasOverride {
			override.Apply(nil, &def.Threshold)
		}
		m := &module{def: def, board: params.NewBoard(def.Params)}
		switch {
		case def.Sequence:
			if l.seq != nil {
				return nil, fmt.Errorf("module %s: only one sequence module is supported", def.ID)
			}
			steps, _ := m.board.Snapshot().List("steps")
			l.editor = sequence.NewEditor(steps, nil, l.tables)
			l.seq = m
		case def.Config != nil:
			cfg := *def.Config
			if hasOverride {
				override.Apply(&cfg, nil)
			}
			if opts.Tick > 0 {
				cfg.TickPeriod = opts.Tick
			}
			rng := rand.New(rand.NewSource(seed + int64(i)))
			proc, err := metric.New(def.ID, cfg, rng, def.mapper())
			if err != nil {
				return nil, fmt.Errorf("module %s: %w", def.ID, err)
			}
			m.proc = proc
		default:
			return nil, fmt.Errorf("module %s: neither metric nor sequence", def.ID)
		}
		l.modules[def.ID] = m
		l.order = append(l.order, def.ID)
	}
	return l, nil
}

// ID returns the session id.
func (l *Lab) ID() string { return l.id }

// Seed returns the resolved random seed.
func (l *Lab) Seed() int64 { return l.seed }

// Modules lists module ids in definition order.
func (l *Lab) Modules() []string { return append([]string(nil), l.order...) }

// Definition returns the definition behind id.
func (l *Lab) Definition(id string) (Definition, error) {
	m, err := l.module(id)
	if err != nil {
		return Definition{}, err
	}
	return m.def, nil
}

func (l *Lab) module(id string) (*module, error) {
	m, ok := l.modules[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrUnknownModule)
	}
	return m, nil
}

// #endregion lab

// #region lifecycle
// Start schedules every metric process and scores the sequence once.
// Cancelling ctx stops the ticking; Close also releases the session.
func (l *Lab) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	if l.started {
		l.mu.Unlock()
		return nil
	}
	l.started = true
	l.mu.Unlock()

	for _, id := range l.order {
		m := l.modules[id]
		if m.proc == nil {
			continue
		}
		if err := m.proc.Run(ctx, l.sched, m.board, l.tickHandler(m)); err != nil {
			return fmt.Errorf("run %s: %w", id, err)
		}
	}
	if l.seq != nil {
		l.observeSequence()
	}
	l.logger.Printf("session %s started (seed %d, %d modules)", l.id, l.seed, len(l.order))
	return nil
}

func (l *Lab) tickHandler(m *module) func(metric.State) {
	return func(st metric.State) {
		p := m.board.Snapshot()
		d := l.tracker.Observe(m.def.ID, m.def.Threshold, st.Reading, p)
		if l.onTick != nil {
			l.onTick(Event{Module: m.def.ID, State: st, Params: p, Decision: d})
		}
	}
}

// Close disposes every process and ends the session. Idempotent.
func (l *Lab) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	for _, id := range l.order {
		if p := l.modules[id].proc; p != nil {
			p.Dispose()
		}
	}
	if l.store != nil {
		if err := l.store.EndSession(l.id); err != nil {
			return fmt.Errorf("end session: %w", err)
		}
	}
	l.logger.Printf("session %s closed", l.id)
	return nil
}

// #endregion lifecycle

// #region transitions
func (l *Lab) recordTransition(tr completion.Transition) {
	l.logger.Printf("module %s complete at %g (%s)", tr.Module, tr.Reading, tr.Threshold)
	if l.store == nil {
		return
	}
	if err := logging.LogTransition(l.store.DB(), logging.FromTransition(l.id, tr)); err != nil {
		l.logger.Printf("log transition %s: %v", tr.Module, err)
	}
}

// #endregion transitions
