package lookup

import (
	"context"
	"net"
	"net/netip"
	"sort"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sempasha/super-dns-lookup/pkg/lookuperr"
	"github.com/sempasha/super-dns-lookup/pkg/resolver"
)

// Result is the shaped outcome of a Lookup call: one address if
// Options.All was false, every candidate otherwise.
type Result struct {
	Addresses []Address
}

// Lookup resolves host under opts, threading it through IP-literal
// short-circuiting, the hosts overlay, the TTL-aware cache, single-flight
// resolution, and final response shaping.
func (c *Controller) Lookup(ctx context.Context, host string, opts Options) (Result, error) {
	opts = opts.normalize()

	if addr, family, handled, err := c.ipLiteralShortCircuit(host, opts); handled {
		if err != nil {
			return Result{}, err
		}
		return c.shapeResponse(ctx, []Address{{Addr: addr, Family: family}}, opts, host)
	}

	if candidates, ok := c.hostsOverlay(host, opts); ok {
		return c.shapeResponse(ctx, candidates, opts, host)
	}

	families, err := c.resolveFamilies(opts)
	if err != nil {
		return Result{}, err
	}

	candidates, err := c.fetchFamilies(ctx, host, families)
	if err != nil {
		return Result{}, err
	}
	if len(candidates) == 0 {
		return Result{}, lookuperr.New(lookuperr.NotFound)
	}

	return c.shapeResponse(ctx, candidates, opts, host)
}

// fetchFamilies fetches every family in families concurrently, the same
// errgroup-fan-out-plus-multierr shape lc-void's dnsresolver.lookupIPs uses
// for its own A/AAAA fan-out: each family's failure is collected rather
// than cancelling its sibling, so one family's outage never masks the
// other's answer.
func (c *Controller) fetchFamilies(ctx context.Context, host string, families []Family) ([]Address, error) {
	if len(families) == 1 {
		records, err := c.fetchFamily(ctx, host, families[0])
		if err != nil {
			return nil, err
		}
		return recordsToAddresses(records, families[0]), nil
	}

	grp, gctx := errgroup.WithContext(ctx)
	var (
		mu         sync.Mutex
		candidates []Address
		errs       error
	)
	for _, f := range families {
		f := f
		grp.Go(func() error {
			records, err := c.fetchFamily(gctx, host, f)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = multierr.Append(errs, err) // collect but don't cancel the sibling family
				return nil
			}
			candidates = append(candidates, recordsToAddresses(records, f)...)
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		errs = multierr.Append(errs, err)
	}

	// Every family failed: report NotFound, keeping the aggregated cause
	// attached for logs/Unwrap chains.
	if len(candidates) == 0 && errs != nil {
		return nil, lookuperr.Wrap(lookuperr.NotFound, errs)
	}
	return candidates, nil
}

// LookupCallback is the callback-style calling convention equivalent to
// Lookup, invoking cb(result, err) once resolution completes.
func (c *Controller) LookupCallback(ctx context.Context, host string, opts Options, cb func(Result, error)) {
	go func() {
		result, err := c.Lookup(ctx, host, opts)
		cb(result, err)
	}()
}

func (c *Controller) ipLiteralShortCircuit(host string, opts Options) (addr netip.Addr, family Family, handled bool, err error) {
	isV4, isV6 := c.classifyCached(host)
	if !isV4 && !isV6 {
		return netip.Addr{}, 0, false, nil
	}

	parsed, perr := netip.ParseAddr(host)
	if perr != nil {
		return netip.Addr{}, 0, false, nil
	}

	if isV4 {
		switch opts.Family {
		case FamilyAuto, FamilyV4:
			return parsed, FamilyV4, true, nil
		case FamilyV6:
			if opts.Hints.has(HintV4MAPPED) {
				mapped := netip.AddrFrom16(parsed.As16())
				return mapped, FamilyV6, true, nil
			}
			return netip.Addr{}, 0, true, lookuperr.New(lookuperr.NotFound)
		}
	}

	if isV6 {
		switch opts.Family {
		case FamilyAuto, FamilyV6:
			return parsed, FamilyV6, true, nil
		case FamilyV4:
			return netip.Addr{}, 0, true, lookuperr.New(lookuperr.NotFound)
		}
	}
	return netip.Addr{}, 0, false, nil
}

func (c *Controller) classifyCached(host string) (isV4, isV6 bool) {
	if cls, ok := c.ipCache.Get(host); ok {
		return cls.isV4, cls.isV6
	}
	isV4, isV6 = c.isIP.Classify(host)
	c.ipCache.Set(host, ipClass{isV4: isV4, isV6: isV6})
	return isV4, isV6
}

func (c *Controller) hostsOverlay(host string, opts Options) ([]Address, bool) {
	snap := c.hosts.CurrentSnapshot()
	if snap == nil {
		return nil, false
	}
	v4, v6, ok := snap.Lookup(host)
	if !ok {
		return nil, false
	}

	var candidates []Address
	if opts.Family != FamilyV6 || opts.Hints.has(HintV4MAPPED) {
		for _, a := range v4 {
			if addr, err := netip.ParseAddr(a); err == nil {
				candidates = append(candidates, Address{Addr: addr, Family: FamilyV4})
			}
		}
	}
	if opts.Family != FamilyV4 {
		for _, a := range v6 {
			if addr, err := netip.ParseAddr(a); err == nil {
				candidates = append(candidates, Address{Addr: addr, Family: FamilyV6})
			}
		}
	}
	return candidates, true
}

func (c *Controller) resolveFamilies(opts Options) ([]Family, error) {
	families := opts.familiesNeeded()
	if !opts.Hints.has(HintADDRCONFIG) {
		return families, nil
	}

	haveV4, haveV6 := localInterfaceFamilies()
	var filtered []Family
	for _, f := range families {
		if f == FamilyV4 && haveV4 {
			filtered = append(filtered, f)
		}
		if f == FamilyV6 && haveV6 {
			filtered = append(filtered, f)
		}
	}
	if len(filtered) == 0 {
		return nil, lookuperr.New(lookuperr.NotFound)
	}
	return filtered, nil
}

func localInterfaceFamilies() (haveV4, haveV6 bool) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return true, true
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip, ok := netip.AddrFromSlice(ipNet.IP)
		if !ok {
			continue
		}
		ip = ip.Unmap()
		if ip.IsLoopback() {
			continue
		}
		if ip.Is4() {
			haveV4 = true
		} else if ip.Is6() {
			haveV6 = true
		}
	}
	return haveV4, haveV6
}

// fetchFamily returns the candidate records for (host, family), consulting
// the cache and, on a miss or stale entry, resolving through the
// single-flight/throttle path.
func (c *Controller) fetchFamily(ctx context.Context, host string, family Family) ([]resolver.Record, error) {
	key := cacheKey(host, family)
	now := time.Now()

	e, ok := c.cache.Get(key)
	if !ok {
		c.metrics.CacheMiss()
		return c.resolveAndWrite(ctx, host, family, key, nil)
	}

	switch e.kind {
	case kindSuccess:
		if e.fresh(now) {
			c.metrics.CacheHit()
			return e.addrs, nil
		}
		c.metrics.CacheMiss()
		return c.resolveAndWrite(ctx, host, family, key, e)
	default: // kindFailure
		if e.fresh(now) {
			c.metrics.CacheHit()
			return nil, e.err
		}
		c.metrics.CacheMiss()
		return c.resolveAndWrite(ctx, host, family, key, nil)
	}
}

// resolveAndWrite performs the resolve subroutine for (host, family) and
// updates the cache. staleSuccess, if non-nil, is the stale SUCCESS entry
// being refreshed; on a resolver error it is offered to the failover
// policy's stale-serving decision before a FAILURE entry is considered.
func (c *Controller) resolveAndWrite(ctx context.Context, host string, family Family, key string, staleSuccess *entry) ([]resolver.Record, error) {
	records, err := c.resolveSubroutine(ctx, host, family)
	now := time.Now()

	if err == nil {
		ttl := clampTTL(minTTL(records))
		c.cache.Set(key, &entry{
			kind:      kindSuccess,
			addrs:     records,
			fetchedAt: now,
			expiresAt: now.Add(ttl),
		})
		return records, nil
	}

	if staleSuccess != nil {
		if maxExp, ok := c.failover.UseExpiredCache(err, host); ok && now.Sub(staleSuccess.expiresAt) <= maxExp {
			c.metrics.StaleServed()
			return staleSuccess.addrs, nil
		}
	}

	if ttl, ok := c.failover.CacheResolverFailure(err, host); ok {
		c.cache.Set(key, &entry{
			kind:      kindFailure,
			err:       err,
			fetchedAt: now,
			expiresAt: now.Add(ttl),
		})
	}
	return nil, err
}

func (c *Controller) resolveSubroutine(ctx context.Context, host string, family Family) ([]resolver.Record, error) {
	key := cacheKey(host, family)
	v, err, shared := c.sf.Do(key, func() (interface{}, error) {
		start := time.Now()
		var records []resolver.Record
		var rerr error
		if family == FamilyV4 {
			records, rerr = c.resolve4(ctx, host)
		} else {
			records, rerr = c.resolve6(ctx, host)
		}
		c.metrics.ResolverCall(familyLabel(family), rerr == nil, time.Since(start).Seconds())
		if rerr == nil && len(records) == 0 {
			rerr = lookuperr.New(lookuperr.NoData)
		}
		if rerr != nil {
			return nil, rerr
		}
		return records, nil
	})
	if shared {
		c.metrics.SingleFlightCoalesced()
	}
	if err != nil {
		return nil, err
	}
	return v.([]resolver.Record), nil
}

func familyLabel(f Family) string {
	if f == FamilyV6 {
		return "6"
	}
	return "4"
}

// shapeResponse applies ordering, V4MAPPED/ALL folding, and single-vs-all
// selection to the raw candidates gathered for host.
func (c *Controller) shapeResponse(ctx context.Context, candidates []Address, opts Options, host string) (Result, error) {
	candidates = applyHints(candidates, opts)
	candidates = orderCandidates(candidates, opts.Order)

	if len(candidates) == 0 {
		return Result{}, lookuperr.New(lookuperr.NotFound)
	}

	if opts.All {
		return Result{Addresses: candidates}, nil
	}

	rotation := c.rotationCounter(opts.rotationKey(host))
	chosen, err := c.choice.ChooseOne(candidates, rotation)
	if err != nil {
		c.log.Error("selection strategy rejected a non-empty candidate list", zap.Error(err))
		return Result{}, lookuperr.New(lookuperr.NotFound)
	}
	return Result{Addresses: []Address{chosen}}, nil
}

func (c *Controller) rotationCounter(key string) *uint32 {
	if r, ok := c.rotation.Get(key); ok {
		return r
	}
	r := new(uint32)
	c.rotation.Set(key, r)
	return r
}

func applyHints(candidates []Address, opts Options) []Address {
	if opts.Family != FamilyV6 || !opts.Hints.has(HintV4MAPPED) {
		return candidates
	}

	var v4, v6 []Address
	for _, a := range candidates {
		if a.Family == FamilyV6 {
			v6 = append(v6, a)
		} else {
			v4 = append(v4, a)
		}
	}
	if len(v6) > 0 && !opts.Hints.has(HintALL) {
		return v6
	}

	mapped := make([]Address, len(v4))
	for i, a := range v4 {
		mapped[i] = Address{Addr: netip.AddrFrom16(a.Addr.As16()), Family: FamilyV6}
	}
	return append(v6, mapped...)
}

func orderCandidates(candidates []Address, order Order) []Address {
	switch order {
	case OrderV4First:
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Family < candidates[j].Family
		})
	case OrderV6First:
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Family > candidates[j].Family
		})
	default: // OrderVerbatim: A-family then AAAA-family, per the documented choice.
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Family < candidates[j].Family
		})
	}
	return candidates
}
