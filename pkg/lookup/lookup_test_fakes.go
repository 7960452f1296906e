package lookup

import (
	"context"
	"net/netip"
	"sync"
	"sync/atomic"

	"github.com/sempasha/super-dns-lookup/pkg/hostsfile"
	"github.com/sempasha/super-dns-lookup/pkg/resolver"
)

// fakeResolver is a Resolver collaborator that serves canned answers and
// counts how many times each family was queried, for single-flight and
// cache-hit assertions.
type fakeResolver struct {
	mu sync.Mutex

	v4        map[string][]resolver.Record
	v6        map[string][]resolver.Record
	err       map[string]error
	calls4    int32
	calls6    int32
	onResolve func(family string, host string)
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		v4:  map[string][]resolver.Record{},
		v6:  map[string][]resolver.Record{},
		err: map[string]error{},
	}
}

func (f *fakeResolver) setV4(host string, records ...resolver.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.v4[host] = records
}

func (f *fakeResolver) setV6(host string, records ...resolver.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.v6[host] = records
}

func (f *fakeResolver) setErr(host string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err[host] = err
}

func (f *fakeResolver) Resolve4(ctx context.Context, host string) ([]resolver.Record, error) {
	atomic.AddInt32(&f.calls4, 1)
	if f.onResolve != nil {
		f.onResolve("4", host)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.err[host]; ok {
		return nil, err
	}
	return append([]resolver.Record{}, f.v4[host]...), nil
}

func (f *fakeResolver) Resolve6(ctx context.Context, host string) ([]resolver.Record, error) {
	atomic.AddInt32(&f.calls6, 1)
	if f.onResolve != nil {
		f.onResolve("6", host)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.err[host]; ok {
		return nil, err
	}
	return append([]resolver.Record{}, f.v6[host]...), nil
}

// fakeHosts is a Hosts collaborator with a fixed, directly-settable
// snapshot and no real file or watcher underneath.
type fakeHosts struct {
	snapshot atomic.Pointer[hostsfile.Snapshot]
}

func (f *fakeHosts) CurrentSnapshot() *hostsfile.Snapshot { return f.snapshot.Load() }
func (f *fakeHosts) ReloadOnce() error                    { return nil }
func (f *fakeHosts) Watch(onChange func()) error          { return nil }
func (f *fakeHosts) StopWatching()                        {}

func mustAddr(s string) netip.Addr {
	a, err := netip.ParseAddr(s)
	if err != nil {
		panic(err)
	}
	return a
}
