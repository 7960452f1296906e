package hostsfile

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/sempasha/super-dns-lookup/pkg/lookuperr"
)

func writeTempHosts(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "hosts")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestSource_Read_basic(t *testing.T) {
	path := writeTempHosts(t, "127.0.0.1 localhost\n::1 localhost\n# comment\n10.0.0.5 FOO.example BAR\n")
	s := New(path, nil)

	pairs, err := s.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(pairs) != 4 {
		t.Fatalf("got %d pairs, want 4: %+v", len(pairs), pairs)
	}
	if pairs[2].Host != "foo.example" {
		t.Errorf("host not lowercased: %q", pairs[2].Host)
	}
}

func TestSource_Read_notFound(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing"), nil)
	_, err := s.Read()
	if !lookuperr.Is(err, lookuperr.HostsNotFound) {
		t.Fatalf("err = %v, want HostsNotFound", err)
	}
}

func TestSource_ReloadOnce_buildsSnapshot(t *testing.T) {
	path := writeTempHosts(t, "1.2.3.4 example.com\n::1 example.com\n")
	s := New(path, nil)

	if err := s.ReloadOnce(); err != nil {
		t.Fatalf("ReloadOnce: %v", err)
	}
	snap := s.CurrentSnapshot()
	v4, v6, ok := snap.Lookup("EXAMPLE.COM")
	if !ok {
		t.Fatal("expected a hit for EXAMPLE.COM")
	}
	if len(v4) != 1 || v4[0] != "1.2.3.4" {
		t.Errorf("v4 = %v", v4)
	}
	if len(v6) != 1 || v6[0] != "::1" {
		t.Errorf("v6 = %v", v6)
	}
}

func TestSource_Watch_detectsChange(t *testing.T) {
	path := writeTempHosts(t, "1.1.1.1 example.com\n")
	s := New(path, nil)
	s.debounce = 20 * time.Millisecond
	if err := s.ReloadOnce(); err != nil {
		t.Fatalf("ReloadOnce: %v", err)
	}

	changed := make(chan struct{}, 1)
	if err := s.Watch(func() { changed <- struct{}{} }); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer s.StopWatching()

	// idempotent second call must not error or double-start.
	if err := s.Watch(func() {}); err != nil {
		t.Fatalf("second Watch call: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("2.2.2.2 example.com\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("onChange was not called after hosts file modification")
	}

	v4, _, ok := s.CurrentSnapshot().Lookup("example.com")
	if !ok || len(v4) != 1 || v4[0] != "2.2.2.2" {
		t.Errorf("snapshot not updated: v4=%v ok=%v", v4, ok)
	}
}

func TestDefaultPath_unixLikeReturnsEtcHosts(t *testing.T) {
	path, err := DefaultPath()
	if err != nil {
		// Only plan9 returns an error in this codebase's test environment,
		// which we don't run on, so any error here is unexpected.
		t.Fatalf("DefaultPath: %v", err)
	}
	if path == "" {
		t.Fatal("DefaultPath returned an empty path")
	}
	if runtime.GOOS != "windows" && path != "/etc/hosts" {
		t.Fatalf("DefaultPath = %q, want /etc/hosts", path)
	}
}
