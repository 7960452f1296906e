package persist

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileSink_readMissingReturnsNil(t *testing.T) {
	s := NewFileSink(filepath.Join(t.TempDir(), "missing.blob"))
	blob, err := s.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if blob != nil {
		t.Errorf("expected nil blob, got %v", blob)
	}
}

func TestFileSink_writeThenRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.blob")
	s := NewFileSink(path)

	want := []byte("opaque-blob-contents")
	if err := s.Write(want); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := s.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("got %q, want %q", got, want)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestFileSink_writeOverwritesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.blob")
	s := NewFileSink(path)

	if err := s.Write([]byte("first")); err != nil {
		t.Fatalf("Write 1: %v", err)
	}
	if err := s.Write([]byte("second")); err != nil {
		t.Fatalf("Write 2: %v", err)
	}
	got, err := s.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("got %q, want %q", got, "second")
	}
}
