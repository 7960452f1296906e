// Package failover implements the "Failover Policy" collaborator: given a
// resolver error, decide whether the lookup controller should cache that
// failure (so repeated lookups of a known-bad host don't hammer the
// resolver) and whether a stale cache entry may be served in its place.
package failover

import (
	"time"

	"github.com/sempasha/super-dns-lookup/pkg/lookuperr"
)

// Policy holds the two error-code sets and two durations the controller
// consults on a resolver failure.
type Policy struct {
	CacheErrorCodes    map[lookuperr.Code]bool
	CacheErrorTTL      time.Duration
	UseExpiredOnCodes  map[lookuperr.Code]bool
	CacheMaxExpiration time.Duration
}

// DefaultPolicy returns the universal defaults: the resolver's transient
// failure modes are cached briefly, and any of them permits falling back
// to an expired cache entry for up to an hour.
func DefaultPolicy() *Policy {
	codes := map[lookuperr.Code]bool{
		lookuperr.ConnRefused: true,
		lookuperr.NotFound:    true,
		lookuperr.Refused:     true,
		lookuperr.ServFail:    true,
		lookuperr.Timeout:     true,
	}
	return &Policy{
		CacheErrorCodes:    codes,
		CacheErrorTTL:      time.Second,
		UseExpiredOnCodes:  codes,
		CacheMaxExpiration: time.Hour,
	}
}

// CacheResolverFailure reports whether err should be negatively cached for
// host, and for how long. ok is false for an unrecognized error code.
func (p *Policy) CacheResolverFailure(err error, host string) (ttl time.Duration, ok bool) {
	code, found := lookuperr.CodeOf(err)
	if !found || !p.CacheErrorCodes[code] {
		return 0, false
	}
	return p.CacheErrorTTL, true
}

// UseExpiredCache reports whether a cache entry for host older than its
// TTL may still be served in response to err, and the maximum age (since
// expiry) for which that is allowed.
func (p *Policy) UseExpiredCache(err error, host string) (maxExpiration time.Duration, ok bool) {
	code, found := lookuperr.CodeOf(err)
	if !found || !p.UseExpiredOnCodes[code] {
		return 0, false
	}
	return p.CacheMaxExpiration, true
}
