package lookup

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/sempasha/super-dns-lookup/pkg/resolver"
)

type entryKind uint8

const (
	kindSuccess entryKind = iota
	kindFailure
)

// entry is one (hostname, family) cache slot. A SUCCESS entry holds the
// resolved records; a FAILURE entry holds the captured error. Exactly one
// of the two is populated, selected by kind.
type entry struct {
	kind entryKind

	addrs []resolver.Record
	err   error

	fetchedAt time.Time
	expiresAt time.Time
}

func (e *entry) fresh(now time.Time) bool {
	return now.Before(e.expiresAt)
}

// Address is one candidate the controller hands to the caller: a resolved
// value plus the family it belongs to, which may differ from the query
// family once V4MAPPED has folded an A record into IPv6 space.
type Address struct {
	Addr   netip.Addr
	Family Family
}

func (a Address) String() string {
	return a.Addr.String()
}

func cacheKey(host string, family Family) string {
	return fmt.Sprintf("%s|%d", host, family)
}

// splitCacheKey inverts cacheKey, used when snapshotting the cache for
// persistence.
func splitCacheKey(key string) (host string, family Family) {
	i := strings.LastIndexByte(key, '|')
	if i < 0 {
		return key, FamilyAuto
	}
	n, err := strconv.Atoi(key[i+1:])
	if err != nil {
		return key[:i], FamilyAuto
	}
	return key[:i], Family(n)
}

func parseAddr(s string) (netip.Addr, error) {
	return netip.ParseAddr(s)
}

func minTTL(records []resolver.Record) time.Duration {
	if len(records) == 0 {
		return 0
	}
	min := records[0].TTL
	for _, r := range records[1:] {
		if r.TTL < min {
			min = r.TTL
		}
	}
	return min
}

func clampTTL(d time.Duration) time.Duration {
	const (
		minTTL = time.Second
		maxTTL = 86400 * time.Second
	)
	if d < minTTL {
		return minTTL
	}
	if d > maxTTL {
		return maxTTL
	}
	return d
}

func recordsToAddresses(records []resolver.Record, family Family) []Address {
	out := make([]Address, len(records))
	for i, r := range records {
		out[i] = Address{Addr: r.Addr, Family: family}
	}
	return out
}
