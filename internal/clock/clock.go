// Package clock centralizes "now"/"today" access so every component can be
// driven by a fixed instant in tests instead of reading the wall clock
// directly.
package clock

import "time"

// Clock is the sole source of the current instant for every component that
// needs "now" or "today". Production code is injected a RealClock; tests
// inject a FixedClock.
type Clock interface {
	Now() time.Time
	Today() time.Time
}

// RealClock reads the system wall clock in UTC.
type RealClock struct{}

// NewReal returns a Clock backed by the system wall clock.
func NewReal() Clock { return RealClock{} }

// Now returns the current instant in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// Today returns the current calendar day at midnight UTC.
func (c RealClock) Today() time.Time { return truncateToDay(c.Now()) }

// FixedClock always returns the same instant. Used by tests that need
// deterministic "today" computations.
type FixedClock struct {
	At time.Time
}

// NewFixed returns a Clock pinned to at.
func NewFixed(at time.Time) Clock { return FixedClock{At: at.UTC()} }

// Now returns the pinned instant.
func (c FixedClock) Now() time.Time { return c.At }

// Today returns the pinned instant's calendar day at midnight UTC.
func (c FixedClock) Today() time.Time { return truncateToDay(c.At) }

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
