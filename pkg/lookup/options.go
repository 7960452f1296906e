package lookup

import "fmt"

// Family selects which DNS record types a lookup considers. Zero means
// "both", matching the conventional system resolver's family 0.
type Family int

const (
	FamilyAuto Family = 0
	FamilyV4   Family = 4
	FamilyV6   Family = 6
)

// Hints is a bit-set of the conventional getaddrinfo-style lookup hints
// this engine understands.
type Hints uint8

const (
	HintADDRCONFIG Hints = 1 << iota
	HintV4MAPPED
	HintALL
)

func (h Hints) has(bit Hints) bool { return h&bit != 0 }

// Order controls how v4/v6 candidates are combined when both are fetched.
type Order string

const (
	OrderVerbatim Order = "verbatim"
	OrderV4First  Order = "ipv4first"
	OrderV6First  Order = "ipv6first"
)

// Options mirrors the conventional host-resolution call's option bag.
type Options struct {
	All    bool
	Family Family
	Hints  Hints
	Order  Order

	// Verbatim is the deprecated boolean predecessor of Order. If Order is
	// empty and Verbatim is non-nil and false, Order defaults to
	// OrderV4First instead of OrderVerbatim.
	Verbatim *bool
}

func (o Options) normalize() Options {
	out := o
	if out.Order == "" {
		if out.Verbatim != nil && !*out.Verbatim {
			out.Order = OrderV4First
		} else {
			out.Order = OrderVerbatim
		}
	}
	return out
}

// familiesNeeded returns the set of record families (4, 6, or both) a
// normalized Options requires, before any ADDRCONFIG intersection. A
// HintV4MAPPED request against Family==FamilyV6 still needs A records: the
// response shaping step (applyHints) falls back to synthesizing V4MAPPED
// AAAA candidates from them when the host has no real AAAA records.
func (o Options) familiesNeeded() []Family {
	switch o.Family {
	case FamilyV4:
		return []Family{FamilyV4}
	case FamilyV6:
		if o.Hints.has(HintV4MAPPED) {
			return []Family{FamilyV4, FamilyV6}
		}
		return []Family{FamilyV6}
	default:
		return []Family{FamilyV4, FamilyV6}
	}
}

// rotationKey identifies the stable selection-rotation bucket for a given
// host under these options: the same (host, family, hints, order) always
// rotates through the same counter, independent of how many times the
// underlying candidate list has been rebuilt.
func (o Options) rotationKey(host string) string {
	return fmt.Sprintf("%s|%d|%d|%s", host, o.Family, o.Hints, o.Order)
}
