// Copyright 2026 The Siphon Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"sync"
	"time"

	"github.com/siphonfs/siphon/lib/clock"
)

// Reason identifies why a [Trigger] fired.
type Reason int

const (
	// ReasonTime indicates the trigger's timeout elapsed.
	ReasonTime Reason = iota
	// ReasonRead indicates enough bytes were read to cross the
	// preloadRead threshold.
	ReasonRead
)

func (r Reason) String() string {
	switch r {
	case ReasonTime:
		return "time"
	case ReasonRead:
		return "read"
	default:
		return "unknown"
	}
}

// Trigger is a single-firing, cancellable latch with three observable
// states: armed, fired, or cancelled. Transitions are monotonic —
// once fired or cancelled, further Fire/Cancel calls are no-ops.
// Exactly one subscriber observes the resolution; subscribers that
// attach after resolution observe the recorded value immediately.
//
// A Trigger is safe for concurrent use.
type Trigger struct {
	mu       sync.Mutex
	resolved bool
	reason   Reason
	timer    *clock.Timer
	onResolve func(Reason)
	observed bool
}

// NewTrigger creates an armed Trigger. If timeout > 0, a timer is
// scheduled immediately: if nothing fires or cancels the trigger
// first, it self-fires with defaultReason when the timer expires.
// A timeout of 0 fires immediately — a zero PreloadOpen means the
// time-based trigger fires as soon as the file is opened.
func NewTrigger(c clock.Clock, timeout time.Duration, defaultReason Reason) *Trigger {
	t := &Trigger{}
	if timeout <= 0 {
		t.fireLocked(defaultReason)
		return t
	}
	t.timer = c.AfterFunc(timeout, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.fireLocked(defaultReason)
	})
	return t
}

// OnResolve registers the single subscriber that observes this
// trigger's resolution. If the trigger has already resolved, fn is
// invoked synchronously and immediately. Only one subscriber is
// supported; registering a second subscriber replaces the first.
func (t *Trigger) OnResolve(fn func(Reason)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.resolved {
		if !isCancelledReason(t.reason) {
			fn(t.reason)
		}
		return
	}
	t.onResolve = fn
}

// sentinel reason used internally to mark a cancelled resolution
// without widening the public Reason enum (Cancelled is not a firing
// reason — no request is enqueued for it).
const reasonCancelled Reason = -1

func isCancelledReason(r Reason) bool { return r == reasonCancelled }

// Fire immediately transitions Armed -> Fired(reason), clearing any
// pending timer. A no-op if already resolved.
func (t *Trigger) Fire(reason Reason) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fireLocked(reason)
}

func (t *Trigger) fireLocked(reason Reason) {
	if t.resolved {
		return
	}
	t.resolved = true
	t.reason = reason
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if t.onResolve != nil {
		fn := t.onResolve
		t.onResolve = nil
		fn(reason)
	}
}

// Cancel transitions Armed -> Cancelled, clearing any pending timer.
// A no-op if already resolved. Cancelled triggers never invoke their
// subscriber.
func (t *Trigger) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.resolved {
		return
	}
	t.resolved = true
	t.reason = reasonCancelled
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.onResolve = nil
}

// Resolved reports whether the trigger has fired or been cancelled.
func (t *Trigger) Resolved() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resolved
}

// Cancelled reports whether the trigger resolved via Cancel.
func (t *Trigger) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resolved && isCancelledReason(t.reason)
}
