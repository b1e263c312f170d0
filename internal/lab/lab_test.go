package lab

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/danielpatrickdp/cdpagentx/internal/bias"
	"github.com/danielpatrickdp/cdpagentx/internal/completion"
	"github.com/danielpatrickdp/cdpagentx/internal/config"
	"github.com/danielpatrickdp/cdpagentx/internal/logging"
	"github.com/danielpatrickdp/cdpagentx/internal/params"
	"github.com/danielpatrickdp/cdpagentx/internal/schedule"
	"github.com/danielpatrickdp/cdpagentx/internal/state"
)

func newManualLab(t *testing.T, opts Options) (*Lab, *schedule.Manual) {
	t.Helper()
	clock := schedule.NewManual(time.Unix(0, 0))
	opts.Scheduler = clock
	if opts.Seed == 0 {
		opts.Seed = 42
	}
	l, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l, clock
}

func TestCatalogue(t *testing.T) {
	defs := Catalogue()
	want := []string{Segmentation, Orchestration, Guardrails, Optimiser}
	if len(defs) != len(want) {
		t.Fatalf("expected %d modules, got %d", len(want), len(defs))
	}
	for i, d := range defs {
		if d.ID != want[i] {
			t.Errorf("module %d: expected %s, got %s", i, want[i], d.ID)
		}
		if d.Sequence != (d.ID == Orchestration) {
			t.Errorf("module %s: unexpected Sequence=%v", d.ID, d.Sequence)
		}
		if !d.Sequence && d.Config == nil {
			t.Errorf("module %s: metric module without config", d.ID)
		}
	}
}

func TestNewDefaults(t *testing.T) {
	l, _ := newManualLab(t, Options{})
	if l.ID() == "" {
		t.Fatal("expected a session id")
	}
	if l.Seed() != 42 {
		t.Fatalf("expected seed 42, got %d", l.Seed())
	}
	if got := l.Modules(); len(got) != 4 {
		t.Fatalf("expected 4 modules, got %v", got)
	}
	r, err := l.Reading(Optimiser)
	if err != nil || r != -25 {
		t.Fatalf("expected initial optimiser reading -25, got %v (%v)", r, err)
	}
	if len(l.Progress()) != 0 {
		t.Fatalf("expected empty progress, got %v", l.Progress())
	}
}

func TestUnknownModule(t *testing.T) {
	l, _ := newManualLab(t, Options{})
	if _, err := l.Reading("nope"); !errors.Is(err, ErrUnknownModule) {
		t.Fatalf("expected ErrUnknownModule, got %v", err)
	}
	if _, err := l.SetParam("nope", "x", 1); !errors.Is(err, ErrUnknownModule) {
		t.Fatalf("expected ErrUnknownModule, got %v", err)
	}
	if _, err := l.Module("nope"); !errors.Is(err, ErrUnknownModule) {
		t.Fatalf("expected ErrUnknownModule, got %v", err)
	}
}

func TestSetParamClampsAndValidates(t *testing.T) {
	l, _ := newManualLab(t, Options{})
	v, err := l.SetParam(Segmentation, "recency", 100)
	if err != nil {
		t.Fatalf("SetParam: %v", err)
	}
	if v != 60.0 {
		t.Fatalf("expected recency clamped to 60, got %v", v)
	}
	if _, err := l.SetParam(Segmentation, "similarity", "maybe"); !errors.Is(err, params.ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
	got, ok, err := l.Param(Segmentation, "recency")
	if err != nil || !ok || got != 60.0 {
		t.Fatalf("Param: %v %v %v", got, ok, err)
	}
}

func TestSequenceStartsComplete(t *testing.T) {
	l, _ := newManualLab(t, Options{})
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !l.Progress()[Orchestration] {
		t.Fatal("default order scores above 0.11 and should complete on start")
	}
}

func TestSequenceEditsRescore(t *testing.T) {
	l, _ := newManualLab(t, Options{})

	if _, err := l.SetParam(Orchestration, "steps", "Ads, Push, Email"); err != nil {
		t.Fatalf("SetParam steps: %v", err)
	}
	lift, _ := l.Reading(Orchestration)
	if math.Abs(lift-0.1038) > 1e-9 {
		t.Fatalf("expected lift 0.1038, got %v", lift)
	}
	if l.Progress()[Orchestration] {
		t.Fatal("0.1038 must not pass > 0.11")
	}

	res, err := l.Move(2, -2)
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if !res.Changed || !res.Decision.Transitioned || !res.Decision.Complete {
		t.Fatalf("expected the move to complete orchestration, got %+v", res)
	}
	if math.Abs(res.Lift-0.136) > 1e-9 {
		t.Fatalf("expected lift 0.136 for Email, Ads, Push, got %v", res.Lift)
	}
	steps, _ := l.Steps()
	if steps[0] != "Email" {
		t.Fatalf("expected Email first, got %v", steps)
	}
	got, _, _ := l.Param(Orchestration, "steps")
	if list, ok := got.([]string); !ok || list[0] != "Email" {
		t.Fatalf("steps param should mirror the editor, got %v", got)
	}

	res, _ = l.Move(5, 1)
	if res.Changed || res.Decision.Transitioned {
		t.Fatalf("out-of-range move must be a no-op, got %+v", res)
	}
}

func TestSequenceAddRemove(t *testing.T) {
	l, _ := newManualLab(t, Options{})
	if _, err := l.Add(); err != nil {
		t.Fatalf("Add: %v", err)
	}
	steps, _ := l.Steps()
	if len(steps) != 4 || steps[3] != "SMS" {
		t.Fatalf("expected SMS appended, got %v", steps)
	}
	for i := 0; i < 5; i++ {
		l.Remove(0)
	}
	steps, _ = l.Steps()
	if len(steps) != 1 {
		t.Fatalf("the last step must stay, got %v", steps)
	}
	if _, err := l.SetParam(Orchestration, "steps", []string{}); !errors.Is(err, params.ErrInvalidValue) {
		t.Fatalf("expected empty order refused, got %v", err)
	}
	if after, _ := l.Steps(); len(after) != 1 {
		t.Fatalf("refused write must keep the order, got %v", after)
	}
}

func TestNoSequenceModule(t *testing.T) {
	l, _ := newManualLab(t, Options{Definitions: []Definition{optimiser()}})
	if _, err := l.Add(); !errors.Is(err, ErrNotSequence) {
		t.Fatalf("expected ErrNotSequence, got %v", err)
	}
	if _, err := l.Steps(); !errors.Is(err, ErrNotSequence) {
		t.Fatalf("expected ErrNotSequence, got %v", err)
	}
}

func TestCustomDefinitionStepsBias(t *testing.T) {
	d := guardrails()
	d.ID = "journey"
	d.Params = append(d.Params, params.List(bias.KeySteps, "Journey", []string{"Email", "Push", "Ads"}))
	d.Terms = []string{bias.KeySteps}

	m := d.mapper()
	if m == nil {
		t.Fatal("expected a mapper for a steps-aware definition")
	}
	got := m.Offset(params.NewBoard(d.Params).Snapshot())
	if math.Abs(got-0.04) > 1e-9 {
		t.Fatalf("expected steps offset 0.04 for three steps, got %v", got)
	}

	if _, err := New(Options{Seed: 1, Definitions: []Definition{d}}); err != nil {
		t.Fatalf("New with steps-aware definition: %v", err)
	}
}

func TestDuplicateModuleRejected(t *testing.T) {
	_, err := New(Options{Seed: 1, Definitions: []Definition{guardrails(), guardrails()}})
	if err == nil {
		t.Fatal("expected duplicate module error")
	}
}

func TestOptimiserSettles(t *testing.T) {
	l, clock := newManualLab(t, Options{})
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	clock.Advance(120 * time.Second)

	s, err := l.Module(Optimiser)
	if err != nil {
		t.Fatalf("Module: %v", err)
	}
	if s.Tick != 120 {
		t.Fatalf("expected 120 ticks, got %d", s.Tick)
	}
	if math.Abs(s.Reading) > 5 {
		t.Fatalf("expected delta within 5 after settling, got %v", s.Reading)
	}
	if !s.Complete || !l.Progress()[Optimiser] {
		t.Fatal("optimiser should be complete")
	}
	if len(s.History) != 30 {
		t.Fatalf("expected a full chart window, got %d", len(s.History))
	}
}

func TestOptimiserProjection(t *testing.T) {
	l, _ := newManualLab(t, Options{})
	s, _ := l.Module(Optimiser)
	if !s.HasProjection || s.Projection != 750 {
		t.Fatalf("expected 1000 x (1 - 0.25) = 750, got %v (%v)", s.Projection, s.HasProjection)
	}
	seg, _ := l.Module(Segmentation)
	if seg.HasProjection {
		t.Fatal("segmentation has no projection")
	}
}

func TestGuardrailsDependOnCap(t *testing.T) {
	l, clock := newManualLab(t, Options{})
	l.SetParam(Guardrails, "cap", 0)
	l.Start(context.Background())
	clock.Advance(60 * time.Second)
	if l.Progress()[Guardrails] {
		t.Fatal("with no cap compliance rests at 0.5 and must not complete")
	}

	l.SetParam(Guardrails, "cap", 5)
	clock.Advance(30 * time.Second)
	if !l.Progress()[Guardrails] {
		r, _ := l.Reading(Guardrails)
		t.Fatalf("with cap 5 compliance should saturate, reading %v", r)
	}
}

func TestSegmentationNeedsFavourableParams(t *testing.T) {
	l, clock := newManualLab(t, Options{})
	l.Start(context.Background())
	clock.Advance(60 * time.Second)
	if l.Progress()[Segmentation] {
		t.Fatal("default segmentation parameters should not reach 0.7")
	}

	l.SetParam(Segmentation, "recency", 0)
	l.SetParam(Segmentation, "frequency", 1)
	l.SetParam(Segmentation, "monetary", 0)
	l.SetParam(Segmentation, "similarity", true)
	clock.Advance(60 * time.Second)
	if !l.Progress()[Segmentation] {
		r, _ := l.Reading(Segmentation)
		t.Fatalf("favourable parameters should reach 0.7, reading %v", r)
	}
}

func TestSameSeedSameWalk(t *testing.T) {
	a, ca := newManualLab(t, Options{Seed: 7})
	b, cb := newManualLab(t, Options{Seed: 7})
	a.Start(context.Background())
	b.Start(context.Background())
	ca.Advance(40 * time.Second)
	cb.Advance(40 * time.Second)
	for _, id := range []string{Segmentation, Guardrails, Optimiser} {
		ha, _ := a.History(id)
		hb, _ := b.History(id)
		if len(ha) != len(hb) {
			t.Fatalf("%s: history length differs", id)
		}
		for i := range ha {
			if ha[i] != hb[i] {
				t.Fatalf("%s: histories diverge at %d: %v vs %v", id, i, ha[i], hb[i])
			}
		}
	}
}

func TestOnTickEvents(t *testing.T) {
	var mu sync.Mutex
	counts := map[string]int{}
	l, clock := newManualLab(t, Options{OnTick: func(e Event) {
		mu.Lock()
		counts[e.Module]++
		mu.Unlock()
	}})
	l.Start(context.Background())
	clock.Advance(3 * time.Second)
	mu.Lock()
	defer mu.Unlock()
	if counts[Optimiser] != 3 || counts[Guardrails] != 3 || counts[Segmentation] != 3 {
		t.Fatalf("expected 3 ticks per metric module, got %v", counts)
	}
	if counts[Orchestration] != 1 {
		t.Fatalf("expected one sequence observation at start, got %d", counts[Orchestration])
	}
}

func TestTickOverride(t *testing.T) {
	l, clock := newManualLab(t, Options{Tick: 500 * time.Millisecond})
	l.Start(context.Background())
	clock.Advance(2 * time.Second)
	s, _ := l.Module(Optimiser)
	if s.Tick != 4 {
		t.Fatalf("expected 4 ticks at 500ms, got %d", s.Tick)
	}
}

func TestCourseOverrides(t *testing.T) {
	course, err := config.DecodeCourse(`
revision = "b"

[modules.guard.threshold]
op = ">"
value = 2

[modules.optimise]
initial = 10
`)
	if err != nil {
		t.Fatalf("DecodeCourse: %v", err)
	}
	l, clock := newManualLab(t, Options{Course: course})
	if r, _ := l.Reading(Optimiser); r != 10 {
		t.Fatalf("expected overridden initial 10, got %v", r)
	}
	if lift, _ := l.Reading(Orchestration); lift <= 0.15 {
		t.Fatalf("revision B should lift the default order above 0.15, got %v", lift)
	}
	l.Start(context.Background())
	clock.Advance(60 * time.Second)
	if l.Progress()[Guardrails] {
		t.Fatal("compliance can never exceed 2")
	}
	s, _ := l.Module(Guardrails)
	if s.Threshold != "x > 2" {
		t.Fatalf("unexpected threshold text %q", s.Threshold)
	}
}

func TestCloseStopsTicking(t *testing.T) {
	l, clock := newManualLab(t, Options{})
	l.Start(context.Background())
	clock.Advance(2 * time.Second)
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	clock.Advance(5 * time.Second)
	s, _ := l.Module(Optimiser)
	if s.Tick != 2 {
		t.Fatalf("expected ticking to stop at 2, got %d", s.Tick)
	}
	if _, err := l.SetParam(Optimiser, "explore", 10); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := l.Start(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed on Start, got %v", err)
	}
}

func TestContextCancelStopsTicking(t *testing.T) {
	l, clock := newManualLab(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	l.Start(ctx)
	clock.Advance(time.Second)
	cancel()
	clock.Advance(5 * time.Second)
	if s, _ := l.Module(Optimiser); s.Tick != 1 {
		t.Fatalf("expected ticking to stop at 1, got %d", s.Tick)
	}
}

func TestStorePersistsAndLogs(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "lab.db")
	store, err := state.NewStore(dbPath)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	l, err := New(Options{Seed: 3, Store: store, Scheduler: schedule.NewManual(time.Unix(0, 0))})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	raw, ok, err := store.Get(completion.StorageKey)
	if err != nil || !ok {
		t.Fatalf("expected persisted progress, got ok=%v err=%v", ok, err)
	}
	if got := completion.Decode(raw, nil); !got[Orchestration] {
		t.Fatalf("expected orch persisted, got %v", got)
	}

	entries, err := logging.ListTransitions(store.DB(), 10)
	if err != nil {
		t.Fatalf("ListTransitions: %v", err)
	}
	if len(entries) != 1 || entries[0].Module != Orchestration || entries[0].SessionID != l.ID() {
		t.Fatalf("unexpected transitions %+v", entries)
	}

	sessions, err := store.ListSessions(5)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].EndedAt.IsZero() {
		t.Fatalf("expected one ended session, got %+v", sessions)
	}

	// a second session resumes the stored mapping
	again, err := New(Options{Seed: 4, Store: store, Scheduler: schedule.NewManual(time.Unix(0, 0))})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer again.Close()
	if !again.Progress()[Orchestration] {
		t.Fatal("progress should survive across sessions")
	}
}
