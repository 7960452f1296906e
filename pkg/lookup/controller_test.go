package lookup

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sempasha/super-dns-lookup/pkg/hostsfile"
	"github.com/sempasha/super-dns-lookup/pkg/lookuperr"
	"github.com/sempasha/super-dns-lookup/pkg/resolver"
)

func newTestController(t *testing.T, res *fakeResolver, hosts *fakeHosts) *Controller {
	t.Helper()
	if hosts == nil {
		hosts = &fakeHosts{}
	}
	return NewController(ControllerOptions{
		Resolver: res,
		Hosts:    hosts,
	})
}

func TestLookup_ipv4LiteralShortCircuits(t *testing.T) {
	res := newFakeResolver()
	c := newTestController(t, res, nil)

	result, err := c.Lookup(context.Background(), "1.2.3.4", Options{})
	require.NoError(t, err)
	require.Len(t, result.Addresses, 1)
	assert.Equal(t, "1.2.3.4", result.Addresses[0].String())
	assert.EqualValues(t, 0, atomic.LoadInt32(&res.calls4))
	assert.EqualValues(t, 0, atomic.LoadInt32(&res.calls6))
}

func TestLookup_ipv4LiteralWithFamily6AndV4Mapped(t *testing.T) {
	res := newFakeResolver()
	c := newTestController(t, res, nil)

	result, err := c.Lookup(context.Background(), "1.2.3.4", Options{Family: FamilyV6, Hints: HintV4MAPPED})
	require.NoError(t, err)
	require.Len(t, result.Addresses, 1)
	assert.Equal(t, "::ffff:1.2.3.4", result.Addresses[0].String())
}

func TestLookup_ipv4LiteralWithFamily6NoMapping(t *testing.T) {
	res := newFakeResolver()
	c := newTestController(t, res, nil)

	_, err := c.Lookup(context.Background(), "1.2.3.4", Options{Family: FamilyV6})
	assert.True(t, lookuperr.Is(err, lookuperr.NotFound))
}

func TestLookup_hostnameFamily6WithV4MappedFallsBackToMappedA(t *testing.T) {
	res := newFakeResolver()
	res.setV4("v4only.example", resolver.Record{Addr: mustAddr("1.2.3.4"), TTL: 60 * time.Second})
	// no AAAA records configured for this host
	c := newTestController(t, res, nil)

	result, err := c.Lookup(context.Background(), "v4only.example", Options{Family: FamilyV6, Hints: HintV4MAPPED})
	require.NoError(t, err)
	require.Len(t, result.Addresses, 1)
	assert.Equal(t, "::ffff:1.2.3.4", result.Addresses[0].String())
	assert.EqualValues(t, 1, atomic.LoadInt32(&res.calls4), "V4MAPPED fallback must still query the A family")
	assert.EqualValues(t, 1, atomic.LoadInt32(&res.calls6))
}

func TestLookup_hostnameFamily6WithV4MappedPrefersRealAAAA(t *testing.T) {
	res := newFakeResolver()
	res.setV4("dualstack.example", resolver.Record{Addr: mustAddr("1.2.3.4"), TTL: 60 * time.Second})
	res.setV6("dualstack.example", resolver.Record{Addr: mustAddr("2001:db8::1"), TTL: 60 * time.Second})
	c := newTestController(t, res, nil)

	result, err := c.Lookup(context.Background(), "dualstack.example", Options{Family: FamilyV6, Hints: HintV4MAPPED})
	require.NoError(t, err)
	require.Len(t, result.Addresses, 1)
	assert.Equal(t, "2001:db8::1", result.Addresses[0].String())
}

func TestLookup_hostsOverlayBypassesResolver(t *testing.T) {
	res := newFakeResolver()
	hosts := &fakeHosts{}
	hosts.snapshot.Store(hostsfile.NewSnapshot([]hostsfile.HostAddr{
		{Host: "example.internal", Addr: mustAddr("10.0.0.9")},
	}))
	c := newTestController(t, res, hosts)

	result, err := c.Lookup(context.Background(), "example.internal", Options{})
	require.NoError(t, err)
	require.Len(t, result.Addresses, 1)
	assert.Equal(t, "10.0.0.9", result.Addresses[0].String())
	assert.EqualValues(t, 0, atomic.LoadInt32(&res.calls4))
}

func TestLookup_freshCacheHitMakesNoResolverCall(t *testing.T) {
	res := newFakeResolver()
	res.setV4("example.com", resolver.Record{Addr: mustAddr("1.2.3.4"), TTL: 60 * time.Second})
	c := newTestController(t, res, nil)

	_, err := c.Lookup(context.Background(), "example.com", Options{Family: FamilyV4})
	require.NoError(t, err)
	require.EqualValues(t, 1, atomic.LoadInt32(&res.calls4))

	result, err := c.Lookup(context.Background(), "example.com", Options{Family: FamilyV4})
	require.NoError(t, err)
	assert.Equal(t, "1.2.3.4", result.Addresses[0].String())
	assert.EqualValues(t, 1, atomic.LoadInt32(&res.calls4), "second lookup within TTL must not call the resolver again")
}

func TestLookup_roundRobinOverStableCache(t *testing.T) {
	res := newFakeResolver()
	res.setV4("rr.example",
		resolver.Record{Addr: mustAddr("10.0.0.1"), TTL: 60 * time.Second},
		resolver.Record{Addr: mustAddr("10.0.0.2"), TTL: 60 * time.Second},
		resolver.Record{Addr: mustAddr("10.0.0.3"), TTL: 60 * time.Second},
	)
	c := newTestController(t, res, nil)

	var got []string
	for i := 0; i < 4; i++ {
		result, err := c.Lookup(context.Background(), "rr.example", Options{Family: FamilyV4})
		require.NoError(t, err)
		got = append(got, result.Addresses[0].String())
	}
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.1"}, got)
}

func TestLookup_allReturnsEveryCandidate(t *testing.T) {
	res := newFakeResolver()
	res.setV4("rr.example",
		resolver.Record{Addr: mustAddr("10.0.0.1"), TTL: 60 * time.Second},
		resolver.Record{Addr: mustAddr("10.0.0.2"), TTL: 60 * time.Second},
	)
	c := newTestController(t, res, nil)

	result, err := c.Lookup(context.Background(), "rr.example", Options{Family: FamilyV4, All: true})
	require.NoError(t, err)
	assert.Len(t, result.Addresses, 2)
}

func TestLookup_singleFlightCoalescesConcurrentCalls(t *testing.T) {
	res := newFakeResolver()
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	res.onResolve = func(family, host string) {
		once.Do(func() { close(started) })
		<-release
	}
	res.setV4("concurrent.example", resolver.Record{Addr: mustAddr("1.1.1.1"), TTL: 60 * time.Second})
	c := newTestController(t, res, nil)

	const n = 20
	var wg sync.WaitGroup
	results := make([]Result, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Lookup(context.Background(), "concurrent.example", Options{Family: FamilyV4})
		}(i)
	}

	<-started
	close(release)
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "1.1.1.1", results[i].Addresses[0].String())
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&res.calls4), "expected exactly one resolver call despite concurrent lookups")
}

func TestLookup_staleServedOnTimeoutUnderDefaultPolicy(t *testing.T) {
	res := newFakeResolver()
	// clampTTL enforces a 1s floor, so the entry only goes stale once more
	// than a second has elapsed since it was fetched.
	res.setV4("stale.example", resolver.Record{Addr: mustAddr("9.9.9.9"), TTL: 1 * time.Nanosecond})
	c := newTestController(t, res, nil)

	_, err := c.Lookup(context.Background(), "stale.example", Options{Family: FamilyV4})
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond)
	res.setErr("stale.example", lookuperr.New(lookuperr.Timeout))

	result, err := c.Lookup(context.Background(), "stale.example", Options{Family: FamilyV4})
	require.NoError(t, err, "default failover policy should permit serving the stale entry")
	assert.Equal(t, "9.9.9.9", result.Addresses[0].String())
}

func TestLookup_failureIsCachedBriefly(t *testing.T) {
	res := newFakeResolver()
	res.setErr("nope.example", lookuperr.New(lookuperr.NotFound))
	c := newTestController(t, res, nil)

	_, err := c.Lookup(context.Background(), "nope.example", Options{Family: FamilyV4})
	assert.True(t, lookuperr.Is(err, lookuperr.NotFound))
	calls := atomic.LoadInt32(&res.calls4)

	_, err = c.Lookup(context.Background(), "nope.example", Options{Family: FamilyV4})
	assert.True(t, lookuperr.Is(err, lookuperr.NotFound))
	assert.Equal(t, calls, atomic.LoadInt32(&res.calls4), "second lookup within the failure TTL must not re-query")
}

func TestLookup_emptyAnswerIsNoData(t *testing.T) {
	res := newFakeResolver() // no records configured for this host
	c := newTestController(t, res, nil)

	_, err := c.Lookup(context.Background(), "empty.example", Options{Family: FamilyV4})
	assert.True(t, lookuperr.Is(err, lookuperr.NoData))
}

func TestTeardown_flushesCacheToPersistence(t *testing.T) {
	res := newFakeResolver()
	res.setV4("persist.example", resolver.Record{Addr: mustAddr("4.4.4.4"), TTL: 60 * time.Second})

	sink := &memSink{}
	c := NewController(ControllerOptions{
		Resolver: res,
		Hosts:    &fakeHosts{},
		Persist:  sink,
	})

	_, err := c.Lookup(context.Background(), "persist.example", Options{Family: FamilyV4})
	require.NoError(t, err)
	require.NoError(t, c.Teardown())
	assert.NotEmpty(t, sink.blob)
}

type memSink struct {
	blob []byte
}

func (m *memSink) Read() ([]byte, error) { return m.blob, nil }
func (m *memSink) Write(b []byte) error  { m.blob = append([]byte{}, b...); return nil }
