// Package iplit classifies a hostname string as an IPv4 literal, an IPv6
// literal, or neither. It does no network I/O and keeps no cache of its
// own — the lookup controller memoizes results in its own IP-check cache.
package iplit

import "net/netip"

// IsV4 reports whether s parses as an IPv4 literal address (dotted-quad,
// not a v4-in-v6 form).
func IsV4(s string) bool {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return false
	}
	return addr.Is4()
}

// IsV6 reports whether s parses as an IPv6 literal address, including
// zero-compressed and v4-mapped (v4-in-v6) forms such as "::ffff:1.2.3.4".
func IsV6(s string) bool {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return false
	}
	return addr.Is6()
}

// Classify parses s once and reports both booleans, for callers (such as
// the controller's IP-check cache) that want to memoize a single result.
func Classify(s string) (isV4, isV6 bool) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return false, false
	}
	if addr.Is4() {
		return true, false
	}
	return false, true
}

// Recognizer is the stateless Classify function packaged as a value, so
// callers that depend on an interface rather than a package function (the
// lookup controller's IPLiteral collaborator) can be given one.
type Recognizer struct{}

// Classify delegates to the package-level Classify function.
func (Recognizer) Classify(s string) (isV4, isV6 bool) {
	return Classify(s)
}
