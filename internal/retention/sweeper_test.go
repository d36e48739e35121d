package retention

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFileAged(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("writing test file: %v", err)
	}
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatalf("setting mtime: %v", err)
	}
	return path
}

func TestSweepOnce_RemovesAgedFiles(t *testing.T) {
	dir := t.TempDir()

	old := writeFileAged(t, dir, "old.mp4", 2*time.Hour)
	fresh := writeFileAged(t, dir, "fresh.mp4", time.Minute)

	s := New(dir, time.Hour, time.Hour, nil)
	if err := s.SweepOnce(); err != nil {
		t.Fatalf("SweepOnce() failed: %v", err)
	}

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Errorf("aged file still exists: %v", err)
	}

	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("fresh file was removed: %v", err)
	}
}

func TestSweepOnce_Idempotent(t *testing.T) {
	dir := t.TempDir()
	writeFileAged(t, dir, "old.mp4", 2*time.Hour)

	s := New(dir, time.Hour, time.Hour, nil)

	if err := s.SweepOnce(); err != nil {
		t.Fatalf("first SweepOnce() failed: %v", err)
	}

	// Nothing left to delete; sweeping again is not an error.
	if err := s.SweepOnce(); err != nil {
		t.Fatalf("second SweepOnce() failed: %v", err)
	}
}

func TestSweepOnce_MissingDirectory(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "does-not-exist"), time.Hour, time.Hour, nil)

	if err := s.SweepOnce(); err != nil {
		t.Errorf("SweepOnce() on missing dir = %v, expected nil", err)
	}
}

func TestSweepOnce_SkipsDirectories(t *testing.T) {
	dir := t.TempDir()

	sub := filepath.Join(dir, "keep")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatalf("creating subdir: %v", err)
	}
	stamp := time.Now().Add(-3 * time.Hour)
	if err := os.Chtimes(sub, stamp, stamp); err != nil {
		t.Fatalf("setting subdir mtime: %v", err)
	}

	s := New(dir, time.Hour, time.Hour, nil)
	if err := s.SweepOnce(); err != nil {
		t.Fatalf("SweepOnce() failed: %v", err)
	}

	if _, err := os.Stat(sub); err != nil {
		t.Errorf("subdirectory was removed: %v", err)
	}
}
