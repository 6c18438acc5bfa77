// Package clock supplies the current time behind an interface so TTL and
// cooldown logic can be tested with a fake clock.
package clock

import "time"

// Clock returns the current time. Implementations must return UTC.
type Clock interface {
	Now() time.Time
}

// System is the real clock.
type System struct{}

// Now returns the current UTC time.
func (System) Now() time.Time { return time.Now().UTC() }

// Func adapts a function to the Clock interface (e.g. a fake in tests).
type Func func() time.Time

// Now calls f.
func (f Func) Now() time.Time { return f() }
