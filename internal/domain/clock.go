package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock is a package-level time source so tests can freeze time via SetClock.
// It stamps wall-clock fields (processed_at, created_at) and seeds the default
// scenario time; scenario time itself is always explicit.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current time from the package clock in UTC.
func Now() time.Time {
	return clock.Now().UTC()
}

// Since returns the time elapsed on the package clock since t.
func Since(t time.Time) time.Duration {
	return clock.Since(t)
}
