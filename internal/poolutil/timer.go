// Package poolutil holds small sync.Pool-backed helpers for components
// that fire on a timer in a hot loop (the hosts-file watcher's debounce
// timer) and would otherwise allocate a *time.Timer per event.
package poolutil

import (
	"sync"
	"time"
)

var timerPool = sync.Pool{}

// GetTimer returns a timer from the pool, reset to fire after d.
func GetTimer(d time.Duration) *time.Timer {
	if timer, ok := timerPool.Get().(*time.Timer); ok {
		drainAndStop(timer)
		timer.Reset(d)
		return timer
	}
	return time.NewTimer(d)
}

// ReleaseTimer stops timer, drains any pending fire, and returns it to the
// pool for reuse.
func ReleaseTimer(timer *time.Timer) {
	if timer == nil {
		return
	}
	drainAndStop(timer)
	timerPool.Put(timer)
}

// ResetAndDrain stops timer, drains any pending fire, and restarts it with
// the new duration. Unlike time.Timer.Reset, this is always safe to call
// regardless of whether the timer has already fired.
func ResetAndDrain(timer *time.Timer, d time.Duration) {
	if timer == nil {
		return
	}
	drainAndStop(timer)
	timer.Reset(d)
}

func drainAndStop(timer *time.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}
