// Package clock provides an injectable time source so freshness gates
// (recency interval, recommendation age, sentry delay) can be tested
// without sleeping real time.
package clock

import "time"

// Clock exposes the current time.
type Clock interface {
	Now() time.Time
}

type funcClock func() time.Time

// Now implements Clock for functional adapters.
func (c funcClock) Now() time.Time { return c() }

// Func adapts a plain function to a Clock.
func Func(f func() time.Time) Clock { return funcClock(f) }

// systemClock delegates to time.Now for production code paths.
type systemClock struct{}

// Now implements Clock by delegating to time.Now.
func (systemClock) Now() time.Time { return time.Now() }

// System is the production Clock.
var System Clock = systemClock{}
