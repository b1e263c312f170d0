package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/danielpatrickdp/cdpagentx/internal/completion"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var _ completion.KV = (*Store)(nil)

func TestGetMissing(t *testing.T) {
	s := tempDB(t)
	v, ok, err := s.Get("nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok || v != "" {
		t.Fatalf("expected missing key, got %q (%v)", v, ok)
	}
}

func TestPutOverwrites(t *testing.T) {
	s := tempDB(t)
	if err := s.Put("k", "one"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put("k", "two"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	v, ok, err := s.Get("k")
	if err != nil || !ok || v != "two" {
		t.Fatalf("expected two, got %q (%v, %v)", v, ok, err)
	}

	entries, err := s.Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 1 || entries[0].UpdatedAt.IsZero() {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestProgressSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.db")
	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	tr := completion.NewTracker(s, completion.StorageKey, nil)
	tr.Complete("seg")
	s.Close()

	s2, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	again := completion.NewTracker(s2, completion.StorageKey, nil)
	if !again.IsComplete("seg") {
		t.Fatal("expected seg completion to survive reopen")
	}
}

func TestMalformedProgressInDB(t *testing.T) {
	s := tempDB(t)
	s.Put(completion.StorageKey, "{broken")
	tr := completion.NewTracker(s, completion.StorageKey, nil)
	if len(tr.Snapshot()) != 0 {
		t.Fatalf("expected empty mapping, got %v", tr.Snapshot())
	}
}

func TestSessions(t *testing.T) {
	s := tempDB(t)
	rec, err := s.StartSession(42, "a")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if rec.SessionID == "" {
		t.Fatal("expected session id")
	}
	if err := s.EndSession(rec.SessionID); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if err := s.EndSession("missing"); err == nil {
		t.Fatal("expected error ending unknown session")
	}

	list, err := s.ListSessions(10)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 session, got %d", len(list))
	}
	got := list[0]
	if got.Seed != 42 || got.Revision != "a" || got.EndedAt.IsZero() {
		t.Fatalf("unexpected session %+v", got)
	}
}

func TestNewStoreInvalidPath(t *testing.T) {
	_, err := NewStore(filepath.Join(string(os.PathSeparator), "nonexistent", "deep", "path", "test.db"))
	if err == nil {
		t.Fatal("expected error for invalid path")
	}
}

func TestDBAccessor(t *testing.T) {
	s := tempDB(t)
	if s.DB() == nil {
		t.Fatal("expected non-nil *sql.DB")
	}
}
