package main

import (
	"context"
	"errors"
	"testing"

	"github.com/danielpatrickdp/cdpagentx/internal/rpc"
)

type fakeLab struct {
	healthy  bool
	err      error
	view     rpc.SessionView
	progress map[string]bool
}

func (f *fakeLab) Healthy(context.Context) (bool, error) { return f.healthy, f.err }
func (f *fakeLab) Snapshot(context.Context) (rpc.SessionView, error) {
	return f.view, nil
}
func (f *fakeLab) Progress(context.Context) (map[string]bool, error) { return f.progress, nil }

func TestCollectLiveFiltersModule(t *testing.T) {
	lab := &fakeLab{
		healthy: true,
		view: rpc.SessionView{
			SessionID: "abc",
			Seed:      7,
			Modules: []rpc.ModuleView{
				{ID: "seg", Metric: "Conversion Rate", Reading: 0.05, Tick: 3, Threshold: ">= 0.08"},
				{ID: "guard", Metric: "Opt-out Rate", Reading: 0.02, Tick: 3, Complete: true},
			},
		},
		progress: map[string]bool{"guard": true},
	}
	out, err := collectLive(context.Background(), lab, "guard")
	if err != nil {
		t.Fatalf("collectLive: %v", err)
	}
	if out.Session != "abc" || out.Seed != 7 {
		t.Fatalf("unexpected session %q seed %d", out.Session, out.Seed)
	}
	if len(out.Modules) != 1 || out.Modules[0].ID != "guard" || !out.Modules[0].Complete {
		t.Fatalf("expected only guard, got %+v", out.Modules)
	}
	if !out.Progress["guard"] {
		t.Fatalf("expected guard progress, got %v", out.Progress)
	}
}

func TestCollectLiveNilProgress(t *testing.T) {
	lab := &fakeLab{healthy: true, view: rpc.SessionView{Modules: []rpc.ModuleView{{ID: "seg"}}}}
	out, err := collectLive(context.Background(), lab, "")
	if err != nil {
		t.Fatalf("collectLive: %v", err)
	}
	if out.Progress == nil || len(out.Modules) != 1 {
		t.Fatalf("unexpected output %+v", out)
	}
}

func TestCollectLiveUnhealthy(t *testing.T) {
	if _, err := collectLive(context.Background(), &fakeLab{}, ""); err == nil {
		t.Fatal("expected error for a lab that is not serving")
	}
	boom := errors.New("unavailable")
	_, err := collectLive(context.Background(), &fakeLab{err: boom}, "")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped health error, got %v", err)
	}
}
