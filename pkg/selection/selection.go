// Package selection implements the "Selection Strategy" collaborator: given
// a non-empty candidate list, pick one. The only strategy this module
// provides is round-robin, keyed by a rotation counter the caller owns
// rather than by the list's own identity. The lookup controller keeps one
// counter per (host, family, hints, order) in its own rotation store.
package selection

import (
	"sync/atomic"

	"github.com/sempasha/super-dns-lookup/pkg/lookuperr"
)

// RoundRobin selects successive elements of a candidate list on each call,
// advancing rotation atomically.
type RoundRobin[T any] struct{}

// ChooseOne returns list[rotation % len(list)] and advances *rotation.
// Returns an EmptyArray error if list has no elements; the lookup
// controller must never let that error escape past itself.
func (RoundRobin[T]) ChooseOne(list []T, rotation *uint32) (T, error) {
	var zero T
	if len(list) == 0 {
		return zero, lookuperr.New(lookuperr.EmptyArray)
	}
	i := atomic.AddUint32(rotation, 1) - 1
	return list[i%uint32(len(list))], nil
}
