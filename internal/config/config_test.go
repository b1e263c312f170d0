package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielpatrickdp/cdpagentx/internal/completion"
	"github.com/danielpatrickdp/cdpagentx/internal/metric"
)

func TestLoadEnvDefaults(t *testing.T) {
	for _, k := range []string{"CDPLAB_DB", "CDPLAB_ADDR", "CDPLAB_TICK", "CDPLAB_SEED", "CDPLAB_COURSE"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	cfg, err := LoadEnv()
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if cfg.DBPath != "cdplab.db" || cfg.Addr != "localhost:50061" || cfg.Tick != time.Second {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Seed != 0 || cfg.CoursePath != "" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CDPLAB_DB", "/tmp/x.db")
	t.Setenv("CDPLAB_TICK", "750ms")
	t.Setenv("CDPLAB_SEED", "99")
	cfg, err := LoadEnv()
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if cfg.DBPath != "/tmp/x.db" || cfg.Tick != 750*time.Millisecond || cfg.Seed != 99 {
		t.Fatalf("unexpected overrides %+v", cfg)
	}
}

func TestLoadEnvBadDuration(t *testing.T) {
	t.Setenv("CDPLAB_TICK", "soon")
	if _, err := LoadEnv(); err == nil {
		t.Fatal("expected error for malformed duration")
	}
}

func TestResolveSeed(t *testing.T) {
	if s, _ := ResolveSeed(7); s != 7 {
		t.Fatalf("expected explicit seed kept, got %d", s)
	}
	a, err := ResolveSeed(0)
	if err != nil {
		t.Fatalf("ResolveSeed: %v", err)
	}
	b, _ := ResolveSeed(0)
	if a == b {
		t.Fatalf("expected fresh seeds to differ, got %d twice", a)
	}
}

func TestLoadCourseEmptyPath(t *testing.T) {
	c, err := LoadCourse("")
	if err != nil {
		t.Fatalf("LoadCourse: %v", err)
	}
	if c.RevisionName() != "a" || c.SequenceTables().Cap != 0.15 {
		t.Fatalf("expected revision A defaults, got %+v", c)
	}
}

func TestLoadCourseMissingFile(t *testing.T) {
	if _, err := LoadCourse(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected error for missing course file")
	}
}

const courseTOML = `
revision = "b"

[tables]
cap = 0.2
decay = 0.5

[tables.base]
Email = 0.1
Push = 0.04

[[tables.synergy]]
from = "Email"
to = "Push"
bonus = 0.03

[modules.guard]
base_jitter = 0.01
rest = 0.4
tick = "750ms"

[modules.guard.damping]
low = 0.8
mid = 0.85
high = 0.9
low_below = 20
high_above = 80

[modules.guard.threshold]
op = ">"
value = 0.95
`

func TestLoadCourseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "course.toml")
	if err := os.WriteFile(path, []byte(courseTOML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := LoadCourse(path)
	if err != nil {
		t.Fatalf("LoadCourse: %v", err)
	}
	if c.RevisionName() != "custom" {
		t.Fatalf("explicit tables should win, got %s", c.RevisionName())
	}
	tables := c.SequenceTables()
	if tables.Cap != 0.2 || tables.Decay != 0.5 || tables.Base["Email"] != 0.1 {
		t.Fatalf("unexpected tables %+v", tables)
	}
	if len(tables.Synergy) != 1 {
		t.Fatalf("expected one synergy row, got %v", tables.Synergy)
	}

	cfg := metric.DefaultConfig()
	th := completion.Threshold{Op: completion.AtLeast, Value: 1}
	c.Modules["guard"].Apply(&cfg, &th)
	if cfg.BaseJitter != 0.01 || cfg.Rest != 0.4 || cfg.TickPeriod != 750*time.Millisecond {
		t.Fatalf("override not applied: %+v", cfg)
	}
	if cfg.Damping.Mid != 0.85 || cfg.Damping.HighAbove != 80 {
		t.Fatalf("damping override not applied: %+v", cfg.Damping)
	}
	if th.Op != completion.Above || th.Value != 0.95 {
		t.Fatalf("threshold override not applied: %+v", th)
	}
	if cfg.Window != 10 {
		t.Fatalf("unset knobs must keep defaults, window=%d", cfg.Window)
	}
}

func TestLoadCourseBadTick(t *testing.T) {
	path := filepath.Join(t.TempDir(), "course.toml")
	os.WriteFile(path, []byte("[modules.seg]\ntick = \"often\"\n"), 0o644)
	if _, err := LoadCourse(path); err == nil {
		t.Fatal("expected error for malformed tick")
	}
}

func TestDecodeCourseRevisionB(t *testing.T) {
	c, err := DecodeCourse(`revision = "b"`)
	if err != nil {
		t.Fatalf("DecodeCourse: %v", err)
	}
	if c.RevisionName() != "b" || c.SequenceTables().Cap != 0.25 {
		t.Fatalf("expected revision B, got %+v", c.SequenceTables())
	}
}
