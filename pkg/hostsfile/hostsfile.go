// Package hostsfile reads and watches a system hosts file, the "Hosts
// Source" collaborator the lookup controller overlays in front of the
// resolver. It never delegates to the Go runtime's own hosts-file lookup
// (no //go:linkname tricks into net.goLookupIPFiles) — it owns a real
// line parser so it can expose both v4 and v6 addresses for a name in one
// read, which the runtime's internal lookup does not.
//
// The watch loop's debounce timer is grounded on the certificate watcher
// in the teacher's pkg/server/tls.go: one fsnotify.Watcher, a single
// reusable timer reset on every event, acted on only once the timer
// actually fires.
package hostsfile

import (
	"bufio"
	"bytes"
	"net/netip"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/sempasha/super-dns-lookup/internal/poolutil"
	"github.com/sempasha/super-dns-lookup/pkg/lookuperr"
)

// Snapshot is the in-memory view of a hosts file: hostname (lowercased)
// to its literal v4/v6 addresses. It is immutable once built; the watcher
// replaces the pointer rather than mutating a shared map.
type Snapshot struct {
	entries map[string]hostAddrs
}

type hostAddrs struct {
	v4 []string
	v6 []string
}

// Lookup returns the v4 and v6 literal addresses hosts maps host to,
// comparing case-insensitively. ok is false if host has no entry.
func (s *Snapshot) Lookup(host string) (v4, v6 []string, ok bool) {
	if s == nil {
		return nil, nil, false
	}
	a, ok := s.entries[strings.ToLower(host)]
	if !ok {
		return nil, nil, false
	}
	return a.v4, a.v6, true
}

// DefaultPath returns the platform's conventional hosts file path, or
// UnsupportedPlatform if this OS has none.
func DefaultPath() (string, error) {
	switch runtime.GOOS {
	case "windows":
		return `C:\Windows\System32\drivers\etc\hosts`, nil
	case "plan9":
		return "", lookuperr.New(lookuperr.UnsupportedPlatform)
	default:
		return "/etc/hosts", nil
	}
}

// Source reads and watches one hosts file path.
type Source struct {
	path string
	log  *zap.Logger

	snapshot atomic.Pointer[Snapshot]

	watchOnce sync.Once
	stopped   chan struct{}
	debounce  time.Duration
}

// New builds a Source for path. path may be empty, in which case Read and
// Watch resolve DefaultPath lazily.
func New(path string, log *zap.Logger) *Source {
	if log == nil {
		log = zap.NewNop()
	}
	return &Source{path: path, log: log, debounce: 500 * time.Millisecond, stopped: make(chan struct{})}
}

func (s *Source) resolvePath() (string, error) {
	if s.path != "" {
		return s.path, nil
	}
	return DefaultPath()
}

// Read parses the hosts file and returns it as flat (host, addr) pairs,
// one per address per host, in file order.
func (s *Source) Read() ([]HostAddr, error) {
	path, err := s.resolvePath()
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, lookuperr.Wrap(lookuperr.HostsNotFound, err)
		}
		return nil, lookuperr.Wrap(lookuperr.HostsNotReadable, err)
	}
	defer f.Close()

	pairs, perr := parseHosts(f)
	if perr != nil {
		return nil, lookuperr.Wrap(lookuperr.HostsParseError, perr)
	}
	return pairs, nil
}

// HostAddr is one hostname/address pair as it appears in the hosts file.
type HostAddr struct {
	Host string
	Addr netip.Addr
}

func parseHosts(f *os.File) ([]HostAddr, error) {
	var out []HostAddr
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if i := bytes.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(string(line))
		if len(fields) < 2 {
			continue
		}
		addr, err := netip.ParseAddr(fields[0])
		if err != nil {
			continue
		}
		for _, host := range fields[1:] {
			out = append(out, HostAddr{Host: strings.ToLower(host), Addr: addr})
		}
	}
	return out, scanner.Err()
}

// NewSnapshot builds a Snapshot directly from pairs, without reading a
// file. Exported for callers (and tests) that construct a Hosts
// collaborator around a fixed, in-memory table.
func NewSnapshot(pairs []HostAddr) *Snapshot {
	return buildSnapshot(pairs)
}

func buildSnapshot(pairs []HostAddr) *Snapshot {
	entries := make(map[string]hostAddrs, len(pairs))
	for _, p := range pairs {
		a := entries[p.Host]
		if p.Addr.Is4() {
			a.v4 = append(a.v4, p.Addr.String())
		} else {
			a.v6 = append(a.v6, p.Addr.String())
		}
		entries[p.Host] = a
	}
	return &Snapshot{entries: entries}
}

// CurrentSnapshot returns the most recently installed snapshot, or nil if
// none has been installed yet.
func (s *Source) CurrentSnapshot() *Snapshot {
	return s.snapshot.Load()
}

// ReloadOnce reads the hosts file and atomically installs the resulting
// snapshot. Read failures are returned but the previous snapshot, if any,
// is left in place.
func (s *Source) ReloadOnce() error {
	pairs, err := s.Read()
	if err != nil {
		return err
	}
	s.snapshot.Store(buildSnapshot(pairs))
	return nil
}

// Watch starts a background watcher that calls onChange after every
// modification to the hosts file, having already re-read it and swapped
// the snapshot. It is idempotent: a second call is a no-op. Watch does not
// block; it returns once the watcher goroutine has started.
func (s *Source) Watch(onChange func()) error {
	var startErr error
	s.watchOnce.Do(func() {
		path, err := s.resolvePath()
		if err != nil {
			startErr = err
			return
		}

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			startErr = err
			return
		}
		if err := watcher.Add(path); err != nil {
			watcher.Close()
			startErr = err
			return
		}

		go s.watchLoop(watcher, onChange)
	})
	return startErr
}

func (s *Source) watchLoop(watcher *fsnotify.Watcher, onChange func()) {
	defer watcher.Close()

	timer := poolutil.GetTimer(s.debounce)
	poolutil.ResetAndDrain(timer, 24*time.Hour)
	defer poolutil.ReleaseTimer(timer)

	for {
		select {
		case _, ok := <-watcher.Events:
			if !ok {
				return
			}
			poolutil.ResetAndDrain(timer, s.debounce)
		case <-timer.C:
			if err := s.ReloadOnce(); err != nil {
				s.log.Warn("hosts reload failed, keeping previous snapshot", zap.Error(err))
				continue
			}
			onChange()
		case <-s.stopped:
			return
		}
	}
}

// StopWatching stops the background watcher started by Watch, if any. It
// is idempotent.
func (s *Source) StopWatching() {
	select {
	case <-s.stopped:
	default:
		close(s.stopped)
	}
}
