// Package lookup implements the caching DNS lookup engine's core: the
// Controller that composes an IP-literal recognizer, a resolver, a hosts
// source, a cache store, a failover policy, a selection strategy, an
// optional persistence sink, and an optional throttle into the external
// contract of a conventional host-resolution call.
//
// Every collaborator is an interface the Controller is constructed with —
// no package-level state — so the whole pipeline can be driven against
// fakes in tests, the same "dynamic dispatch, capability-typed
// abstractions, no global state" shape the spec calls for.
package lookup

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sempasha/super-dns-lookup/internal/lifecycle"
	"github.com/sempasha/super-dns-lookup/internal/metrics"
	"github.com/sempasha/super-dns-lookup/internal/persist"
	"github.com/sempasha/super-dns-lookup/pkg/failover"
	"github.com/sempasha/super-dns-lookup/pkg/hostsfile"
	"github.com/sempasha/super-dns-lookup/pkg/iplit"
	"github.com/sempasha/super-dns-lookup/pkg/lrucache"
	"github.com/sempasha/super-dns-lookup/pkg/resolver"
	"github.com/sempasha/super-dns-lookup/pkg/selection"
	"github.com/sempasha/super-dns-lookup/pkg/throttle"
)

// Cache is the Cache Store collaborator's contract, satisfied by
// *lrucache.Store[V] without modification.
type Cache[V any] interface {
	Get(key string) (V, bool)
	Set(key string, v V)
	Del(key string)
	Entries() []lrucache.Entry[V]
	Len() int
	Clean(f func(key string, v V) bool) int
}

// Resolver is the network resolution collaborator's contract, satisfied
// by *resolver.Pool.
type Resolver interface {
	Resolve4(ctx context.Context, host string) ([]resolver.Record, error)
	Resolve6(ctx context.Context, host string) ([]resolver.Record, error)
}

// Hosts is the hosts-file collaborator's contract, satisfied by
// *hostsfile.Source.
type Hosts interface {
	CurrentSnapshot() *hostsfile.Snapshot
	ReloadOnce() error
	Watch(onChange func()) error
	StopWatching()
}

// FailoverPolicy is the failover collaborator's contract, satisfied by
// *failover.Policy.
type FailoverPolicy interface {
	CacheResolverFailure(err error, host string) (time.Duration, bool)
	UseExpiredCache(err error, host string) (time.Duration, bool)
}

// IPLiteral is the IP-literal recognizer collaborator's contract,
// satisfied by iplit.Recognizer.
type IPLiteral interface {
	Classify(s string) (isV4, isV6 bool)
}

// Choice is the selection-strategy collaborator's contract, satisfied by
// selection.RoundRobin[Address].
type Choice interface {
	ChooseOne(candidates []Address, rotation *uint32) (Address, error)
}

// Options for constructing a Controller. Resolver and Hosts are required;
// everything else has a usable default.
type ControllerOptions struct {
	Resolver  Resolver
	Hosts     Hosts
	Cache     Cache[*entry]
	Failover  FailoverPolicy
	IsIP      IPLiteral
	Choice    Choice
	Throttle  *throttle.Throttle
	Persist   persist.Sink
	Metrics   *metrics.Metrics
	Registry  prometheus.Registerer
	Log       *zap.Logger
}

// Controller is the caching DNS lookup engine's core. Build one with
// NewController, call Bootstrap before the first Lookup, and Teardown when
// shutting down.
type Controller struct {
	resolver Resolver
	hosts    Hosts
	cache    Cache[*entry]
	ipCache  Cache[ipClass]
	rotation Cache[*uint32]
	failover FailoverPolicy
	isIP     IPLiteral
	choice   Choice
	persist  persist.Sink
	metrics  *metrics.Metrics
	log      *zap.Logger

	resolve4 throttle.ResolveFunc[[]resolver.Record]
	resolve6 throttle.ResolveFunc[[]resolver.Record]

	sf   singleflight.Group
	life *lifecycle.Group

	bootstrapOnce sync.Once
	teardownOnce  sync.Once
}

type ipClass struct {
	isV4, isV6 bool
}

// NewCache builds the Cache Store collaborator a Controller expects,
// sized to maxEntries across shards shards. Exported because the entry
// value type it is parameterized over is package-private: callers that
// want a non-default cache size (internal/config, mainly) cannot spell
// Cache[*entry] themselves and must go through this constructor instead.
// onEvict, if non-nil, runs whenever an entry leaves the store (displaced
// to make room for a new one, deleted, or dropped by the janitor's Clean
// sweep; typically wired to a CacheEvicted metric); it takes no
// arguments because the evicted entry's own type is equally unspellable
// outside this package.
func NewCache(maxEntries, shards int, onEvict func()) Cache[*entry] {
	return lrucache.NewStore[*entry](maxEntries, shards, func(string, *entry) {
		if onEvict != nil {
			onEvict()
		}
	})
}

// janitorInterval is how often Bootstrap's background janitor sweeps the
// cache, matching the teacher's mem_cache.defaultCleanerInterval.
const janitorInterval = time.Minute

// janitorRetention bounds how long a fully-expired cache entry is kept
// around after it stops being servable, mirroring failover.DefaultPolicy's
// CacheMaxExpiration: an entry older than that can never be served as
// stale under the default policy, so there is nothing left to gain by
// keeping it.
const janitorRetention = time.Hour

// NewController builds a Controller from opts, applying the spec's
// defaults for any collaborator left unset.
func NewController(opts ControllerOptions) *Controller {
	if opts.Resolver == nil {
		panic("lookup: Resolver collaborator is required")
	}
	if opts.Hosts == nil {
		panic("lookup: Hosts collaborator is required")
	}
	if opts.Failover == nil {
		opts.Failover = failover.DefaultPolicy()
	}
	if opts.IsIP == nil {
		opts.IsIP = iplit.Recognizer{}
	}
	if opts.Choice == nil {
		opts.Choice = selection.RoundRobin[Address]{}
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Metrics == nil && opts.Registry != nil {
		opts.Metrics = metrics.New(opts.Registry)
	}
	if opts.Cache == nil {
		opts.Cache = lrucache.NewStore[*entry](lrucache.DefaultMaxEntries, lrucache.DefaultShards, func(string, *entry) {
			opts.Metrics.CacheEvicted("answers")
		})
	}
	opts.Throttle.SetWaitRecorder(opts.Metrics)

	c := &Controller{
		resolver: opts.Resolver,
		hosts:    opts.Hosts,
		cache:    opts.Cache,
		ipCache: lrucache.NewStore[ipClass](lrucache.DefaultMaxEntries, lrucache.DefaultShards, func(string, ipClass) {
			opts.Metrics.CacheEvicted("ip_literal")
		}),
		rotation: lrucache.NewStore[*uint32](lrucache.DefaultMaxEntries, lrucache.DefaultShards, func(string, *uint32) {
			opts.Metrics.CacheEvicted("rotation")
		}),
		failover: opts.Failover,
		isIP:     opts.IsIP,
		choice:   opts.Choice,
		persist:  opts.Persist,
		metrics:  opts.Metrics,
		log:      opts.Log,
		life:     lifecycle.NewGroup(),
	}
	c.resolve4 = throttle.Wrap(opts.Throttle, throttle.ResolveFunc[[]resolver.Record](c.resolver.Resolve4))
	c.resolve6 = throttle.Wrap(opts.Throttle, throttle.ResolveFunc[[]resolver.Record](c.resolver.Resolve6))
	return c
}

// Bootstrap is idempotent: it hydrates the cache from the persistence
// sink (if configured) and starts the hosts watcher and the stale-entry
// janitor, blocking only long enough to perform the initial hosts read.
func (c *Controller) Bootstrap(ctx context.Context) error {
	var bootErr error
	c.bootstrapOnce.Do(func() {
		if c.persist != nil {
			c.hydrateFromPersistence()
		}

		if err := c.hosts.Watch(c.onHostsChange); err != nil {
			bootErr = err
			return
		}
		c.life.Attach(func(done func(), stopping <-chan struct{}) {
			defer done()
			<-stopping
			c.hosts.StopWatching()
		})

		c.life.Attach(c.runJanitor)

		if err := c.hosts.ReloadOnce(); err != nil {
			bootErr = err
			return
		}
		c.metrics.HostsReloaded()
	})
	return bootErr
}

// runJanitor periodically drops cache entries that are too far past their
// expiry to ever be served again (stale or otherwise), the same
// ticker-driven sweep the teacher's mem_cache.startCleaner runs over its
// own ShardedLRU.
func (c *Controller) runJanitor(done func(), stopping <-chan struct{}) {
	defer done()
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopping:
			return
		case <-ticker.C:
			now := time.Now()
			c.cache.Clean(func(_ string, e *entry) bool {
				return now.Sub(e.expiresAt) > janitorRetention
			})
		}
	}
}

func (c *Controller) onHostsChange() {
	c.metrics.HostsReloaded()
}

func (c *Controller) hydrateFromPersistence() {
	blob, err := c.persist.Read()
	if err != nil {
		c.log.Warn("persistence read failed, starting with a cold cache", zap.Error(err))
		return
	}
	state, err := persist.Unmarshal(blob)
	if err != nil {
		c.log.Warn("persisted cache blob is corrupt, starting with a cold cache", zap.Error(err))
		return
	}
	for _, se := range state.Entries {
		records := make([]resolver.Record, len(se.Addrs))
		for i, a := range se.Addrs {
			addr, perr := parseAddr(a)
			if perr != nil {
				continue
			}
			records[i] = resolver.Record{Addr: addr}
		}
		fam := FamilyV4
		if se.Family == "v6" {
			fam = FamilyV6
		}
		c.cache.Set(cacheKey(se.Host, fam), &entry{
			kind:      kindSuccess,
			addrs:     records,
			fetchedAt: se.FetchedAt,
			expiresAt: se.ExpiresAt,
		})
	}
}

// Teardown stops the hosts watcher (if Bootstrap started one) and, if a
// persistence sink is configured, flushes the cache to it. Safe to call
// without a prior Bootstrap.
func (c *Controller) Teardown() error {
	var teardownErr error
	c.teardownOnce.Do(func() {
		c.life.Stop(nil)
		c.life.Wait()

		if c.persist == nil {
			return
		}
		state := c.snapshotState()
		blob, err := persist.Marshal(state)
		if err != nil {
			teardownErr = err
			return
		}
		if err := c.persist.Write(blob); err != nil {
			teardownErr = err
		}
	})
	return teardownErr
}

func (c *Controller) snapshotState() *persist.State {
	var state persist.State
	for _, kv := range c.cache.Entries() {
		e := kv.Value
		if e.kind != kindSuccess {
			continue
		}
		host, family := splitCacheKey(kv.Key)
		addrs := make([]string, len(e.addrs))
		for i, r := range e.addrs {
			addrs[i] = r.Addr.String()
		}
		famLabel := "v4"
		if family == FamilyV6 {
			famLabel = "v6"
		}
		state.Entries = append(state.Entries, persist.StateEntry{
			Host:      host,
			Family:    famLabel,
			Addrs:     addrs,
			FetchedAt: e.fetchedAt,
			ExpiresAt: e.expiresAt,
		})
	}
	return &state
}

// DialContext resolves address's host through Lookup and dials the
// selected address over network, the same splice point
// bschaatsbergen-dnsdialer uses to install a custom resolver into an
// http.Transport.
func (c *Controller) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		host, port = address, ""
	}

	result, err := c.Lookup(ctx, host, Options{})
	if err != nil {
		return nil, err
	}
	resolved := result.Addresses[0].String()
	if port != "" {
		resolved = net.JoinHostPort(resolved, port)
	}

	d := &net.Dialer{}
	return d.DialContext(ctx, network, resolved)
}

// Install assigns Controller.DialContext as t's dial function, the
// three-line convenience for splicing this resolver into an
// http.Transport.
func (c *Controller) Install(t *http.Transport) {
	t.DialContext = c.DialContext
}
