// Package throttle implements the "Throttle" collaborator: it wraps a
// resolve function so the lookup controller issues outbound resolver calls
// at a bounded rate, grounded on golang.org/x/time/rate the way
// dep2p's relay.RelayLimiter bounds outbound bandwidth with the same
// limiter type.
package throttle

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/sempasha/super-dns-lookup/pkg/lookuperr"
)

// ResolveFunc is the shape of the per-family resolve call the controller
// drives through the throttle.
type ResolveFunc[T any] func(ctx context.Context, host string) (T, error)

// WaitRecorder observes how long a call spent blocked on a Throttle's
// limiter before proceeding (or failing). *internal/metrics.Metrics
// satisfies this without modification.
type WaitRecorder interface {
	ThrottleWaited(seconds float64)
}

// Throttle rate-limits calls to a wrapped ResolveFunc. The zero value is
// the identity wrapper: Wrap returns fn unchanged.
type Throttle struct {
	limiter *rate.Limiter
	rec     WaitRecorder
}

// New builds a Throttle allowing ratePerSecond calls per second, with
// bursts up to burst. A nil *Throttle (or one built with ratePerSecond<=0)
// behaves as the identity wrapper.
func New(ratePerSecond float64, burst int) *Throttle {
	if ratePerSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &Throttle{limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

// SetWaitRecorder attaches rec to t, which from then on observes every
// Wrap call's blocking duration. Safe to call on a nil *Throttle.
func (t *Throttle) SetWaitRecorder(rec WaitRecorder) {
	if t == nil {
		return
	}
	t.rec = rec
}

// Wrap returns fn unchanged if t is nil or the zero value, or a ResolveFunc that blocks on
// t's limiter before calling fn. Call ordering and error semantics of fn
// are preserved: Wrap never reorders or swallows fn's result.
func Wrap[T any](t *Throttle, fn ResolveFunc[T]) ResolveFunc[T] {
	if t == nil || t.limiter == nil {
		return fn
	}
	return func(ctx context.Context, host string) (T, error) {
		start := time.Now()
		err := t.limiter.Wait(ctx)
		if t.rec != nil {
			t.rec.ThrottleWaited(time.Since(start).Seconds())
		}
		if err != nil {
			var zero T
			if errors.Is(err, context.Canceled) {
				return zero, lookuperr.Wrap(lookuperr.Cancelled, err)
			}
			return zero, lookuperr.Wrap(lookuperr.Timeout, err)
		}
		return fn(ctx, host)
	}
}
