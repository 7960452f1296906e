// Package metrics defines the Prometheus instrumentation the lookup
// controller exposes, mirroring how coremain.Mosdns registers its own
// process/Go collectors and prefixes everything under one namespace.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds every counter/histogram the controller updates. A nil
// *Metrics (returned by New for a nil registerer) makes every method a no-op, so the
// controller can unconditionally call into it without a presence check at
// each call site.
type Metrics struct {
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	CacheStale      prometheus.Counter
	CacheEvictions  *prometheus.CounterVec
	Coalesced       prometheus.Counter
	ResolverCalls   *prometheus.CounterVec
	ResolverLatency *prometheus.HistogramVec
	ThrottleWait    prometheus.Histogram
	HostsReloads    prometheus.Counter
}

// NewRegistry builds a fresh prometheus.Registry with the standard process
// and Go runtime collectors attached, the same baseline
// coremain.newMetricsReg gives every mosdns instance.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewGoCollector())
	return reg
}

// New registers and returns a Metrics bound to reg under the
// "lookup_" prefix.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	ns := "lookup"
	m := &Metrics{
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "cache_hits_total", Help: "Fresh cache entries served without a resolver call.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "cache_misses_total", Help: "Lookups that required a resolver call.",
		}),
		CacheStale: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "cache_stale_served_total", Help: "Stale cache entries served under the failover policy.",
		}),
		CacheEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "cache_evictions_total", Help: "Entries removed from a bounded cache store (displaced, deleted or cleaned), by store name.",
		}, []string{"cache"}),
		Coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "single_flight_coalesced_total", Help: "Lookups that joined an in-flight resolution instead of issuing a new one.",
		}),
		ResolverCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "resolver_calls_total", Help: "Resolver calls by family and outcome.",
		}, []string{"family", "outcome"}),
		ResolverLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns, Name: "resolver_call_seconds", Help: "Resolver call latency by family.",
		}, []string{"family"}),
		ThrottleWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns, Name: "throttle_wait_seconds", Help: "Time spent waiting for a throttle slot before a resolver call.",
		}),
		HostsReloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "hosts_reloads_total", Help: "Successful hosts-file snapshot rebuilds.",
		}),
	}

	reg.MustRegister(m.CacheHits, m.CacheMisses, m.CacheStale, m.CacheEvictions, m.Coalesced,
		m.ResolverCalls, m.ResolverLatency, m.ThrottleWait, m.HostsReloads)
	return m
}

func (m *Metrics) incCacheHit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

func (m *Metrics) incCacheMiss() {
	if m != nil {
		m.CacheMisses.Inc()
	}
}

// CacheHit records a fresh cache hit.
func (m *Metrics) CacheHit() { m.incCacheHit() }

// CacheMiss records a resolver call triggered by a cache miss.
func (m *Metrics) CacheMiss() { m.incCacheMiss() }

// StaleServed records a stale entry served via the failover policy.
func (m *Metrics) StaleServed() {
	if m != nil {
		m.CacheStale.Inc()
	}
}

// CacheEvicted records an entry removed from the named cache store, whether
// displaced to make room for a new one, deleted, or dropped by a Clean sweep.
func (m *Metrics) CacheEvicted(cache string) {
	if m != nil {
		m.CacheEvictions.WithLabelValues(cache).Inc()
	}
}

// SingleFlightCoalesced records a lookup that joined an in-flight call.
func (m *Metrics) SingleFlightCoalesced() {
	if m != nil {
		m.Coalesced.Inc()
	}
}

// ResolverCall records the outcome of one resolver call for family (4 or 6)
// and its duration in seconds.
func (m *Metrics) ResolverCall(family string, ok bool, seconds float64) {
	if m == nil {
		return
	}
	outcome := "error"
	if ok {
		outcome = "success"
	}
	m.ResolverCalls.WithLabelValues(family, outcome).Inc()
	m.ResolverLatency.WithLabelValues(family).Observe(seconds)
}

// ThrottleWaited records time spent blocked on the throttle.
func (m *Metrics) ThrottleWaited(seconds float64) {
	if m != nil {
		m.ThrottleWait.Observe(seconds)
	}
}

// HostsReloaded records a successful hosts-file snapshot rebuild.
func (m *Metrics) HostsReloaded() {
	if m != nil {
		m.HostsReloads.Inc()
	}
}
