package block

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

func TestManifestWrittenOnCreate(t *testing.T) {
	s := newTestStore(t)

	data, err := os.ReadFile(filepath.Join(s.Dir(), ManifestName))
	if err != nil {
		t.Fatalf("manifest not written: %v", err)
	}

	if got := gjson.GetBytes(data, "session").String(); got != filepath.Base(s.Dir()) {
		t.Errorf("expected session %q, got %q", filepath.Base(s.Dir()), got)
	}
	created := gjson.GetBytes(data, "created").String()
	if _, err := time.Parse(time.RFC3339, created); err != nil {
		t.Errorf("created timestamp not RFC3339: %q", created)
	}
	if pid := gjson.GetBytes(data, "pid").Int(); pid != int64(os.Getpid()) {
		t.Errorf("expected pid %d, got %d", os.Getpid(), pid)
	}
}

func TestManifestRecordsSource(t *testing.T) {
	s := newTestStore(t, WithBlockSize(2))

	path := writeSourceFile(t, "a\nb\nc\n")
	if _, _, err := s.Open(path); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(s.Dir(), ManifestName))
	if err != nil {
		t.Fatalf("reading manifest: %v", err)
	}
	if got := gjson.GetBytes(data, "source").String(); got != path {
		t.Errorf("expected source %q, got %q", path, got)
	}
	if got := gjson.GetBytes(data, "blocks").Int(); got != 2 {
		t.Errorf("expected 2 blocks recorded, got %d", got)
	}
}

func backdateManifest(t *testing.T, dir string, created time.Time) {
	t.Helper()
	path := filepath.Join(dir, ManifestName)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading manifest: %v", err)
	}
	body, err := sjson.Set(string(data), "created", created.UTC().Format(time.RFC3339))
	if err != nil {
		t.Fatalf("rewriting manifest: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}
}

func TestSweepStaleRemovesOldSessions(t *testing.T) {
	base := t.TempDir()

	stale, err := NewStore(WithBaseDir(base))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	backdateManifest(t, stale.Dir(), time.Now().Add(-48*time.Hour))

	fresh, err := NewStore(WithBaseDir(base))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer fresh.Cleanup()

	// An unrelated directory must never be touched.
	other := filepath.Join(base, "unrelated")
	if err := os.Mkdir(other, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	removed, err := SweepStale(base, 24*time.Hour)
	if err != nil {
		t.Fatalf("SweepStale failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 directory removed, got %d", removed)
	}
	if _, err := os.Stat(stale.Dir()); !os.IsNotExist(err) {
		t.Error("stale session directory should be gone")
	}
	if _, err := os.Stat(fresh.Dir()); err != nil {
		t.Errorf("fresh session directory should survive: %v", err)
	}
	if _, err := os.Stat(other); err != nil {
		t.Errorf("unrelated directory should survive: %v", err)
	}
}

func TestSweepStaleMissingManifest(t *testing.T) {
	base := t.TempDir()

	// A prefix-matching directory without a manifest falls back to mtime.
	orphan := filepath.Join(base, DirPrefix+"orphan")
	if err := os.Mkdir(orphan, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(orphan, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	removed, err := SweepStale(base, 24*time.Hour)
	if err != nil {
		t.Fatalf("SweepStale failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected orphan removed, got %d", removed)
	}
}
