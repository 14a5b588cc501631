// Copyright 2026 The Siphon Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock lets production code depend on an interface instead of
// the time package directly, so tests can control the passage of time
// instead of sleeping and hoping.
//
// Anything that would otherwise call time.Now, time.After,
// time.NewTicker, time.AfterFunc, or time.Sleep should instead hold a
// Clock — as a constructor parameter or a struct field — and call the
// corresponding method on it. Production wiring uses [Real]; tests use
// [Fake].
//
// # Wiring a component
//
//	type trigger struct {
//	    clock clock.Clock
//	    // ...
//	}
//
// Production:
//
//	t := &trigger{clock: clock.Real()}
//
// Tests:
//
//	fc := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	t := &trigger{clock: fc}
//	// start the goroutine under test, then:
//	fc.WaitForTimers(1)        // block until it has registered a timer
//	fc.Advance(5 * time.Second) // and only then move time forward
//
// # Why WaitForTimers exists
//
// A goroutine that calls Sleep, After, NewTicker, or AfterFunc on a
// FakeClock registers a pending operation before it can observe time
// moving. Calling Advance before that registration lands is a race:
// the goroutine may not see the deadline pass. WaitForTimers blocks
// until a specific number of operations are pending, which removes
// that race without resorting to a real sleep in the test.
package clock

import "time"

// Clock abstracts the handful of time.* functions a component might
// need, so the same code can run against real wall-clock time or a
// clock a test drives by hand.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once
	// duration d has elapsed, mirroring time.After. A non-positive d
	// delivers immediately.
	After(d time.Duration) <-chan time.Time

	// AfterFunc runs f after duration d, in its own goroutine under
	// Real, or synchronously during Advance under Fake. The returned
	// Timer can cancel a pending call via Stop; its C field is always
	// nil, matching time.AfterFunc. A non-positive d runs f before
	// AfterFunc returns.
	AfterFunc(d time.Duration, f func()) *Timer

	// NewTicker returns a Ticker delivering ticks on C at the given
	// interval, mirroring time.NewTicker. Panics if d is non-positive.
	NewTicker(d time.Duration) *Ticker

	// Sleep blocks the calling goroutine for at least duration d,
	// mirroring time.Sleep.
	Sleep(d time.Duration)
}

// Ticker delivers periodic ticks on C until Stop is called.
//
// C has capacity 1, matching time.Ticker: a consumer that falls behind
// sees its missed ticks dropped rather than queued.
type Ticker struct {
	C <-chan time.Time

	stopFunc  func()
	resetFunc func(time.Duration)
}

// Stop ends the tick cycle. C receives no further ticks once Stop
// returns; Stop never closes C.
func (t *Ticker) Stop() { t.stopFunc() }

// Reset restarts the tick cycle at a new interval. The next tick
// arrives d after Reset is called.
func (t *Ticker) Reset(d time.Duration) { t.resetFunc(d) }

// Timer represents a single scheduled callback, as returned by
// AfterFunc. C is always nil — callers that want a channel use After
// instead, which returns one directly without exposing a Timer.
type Timer struct {
	C <-chan time.Time

	stopFunc  func() bool
	resetFunc func(time.Duration) bool
}

// Stop cancels a pending callback. It reports whether the cancellation
// happened in time — false means the callback already ran or was
// already stopped.
func (t *Timer) Stop() bool { return t.stopFunc() }

// Reset reschedules the callback to run after duration d, discarding
// any pending fire. It reports whether the timer was still active
// before the reset.
func (t *Timer) Reset(d time.Duration) bool { return t.resetFunc(d) }
