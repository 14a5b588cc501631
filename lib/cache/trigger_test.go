// Copyright 2026 The Siphon Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"testing"
	"time"

	"github.com/siphonfs/siphon/lib/clock"
)

func TestTriggerFiresOnTimeout(t *testing.T) {
	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	trigger := NewTrigger(fakeClock, 100*time.Millisecond, ReasonTime)

	resolved := make(chan Reason, 1)
	trigger.OnResolve(func(r Reason) { resolved <- r })

	fakeClock.Advance(100 * time.Millisecond)

	select {
	case r := <-resolved:
		if r != ReasonTime {
			t.Fatalf("reason = %v, want Time", r)
		}
	default:
		t.Fatal("trigger did not fire on timeout")
	}
	if !trigger.Resolved() || trigger.Cancelled() {
		t.Fatalf("trigger state wrong after timeout fire")
	}
}

func TestTriggerFireIsIdempotent(t *testing.T) {
	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	trigger := NewTrigger(fakeClock, time.Hour, ReasonTime)

	var calls int
	trigger.OnResolve(func(Reason) { calls++ })

	trigger.Fire(ReasonRead)
	trigger.Fire(ReasonTime) // no-op: already resolved
	trigger.Cancel()         // no-op: already resolved

	if calls != 1 {
		t.Fatalf("onResolve called %d times, want 1", calls)
	}
	if trigger.Cancelled() {
		t.Fatal("trigger should be Fired, not Cancelled")
	}
}

func TestTriggerCancelPreventsFire(t *testing.T) {
	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	trigger := NewTrigger(fakeClock, 100*time.Millisecond, ReasonTime)

	var called bool
	trigger.OnResolve(func(Reason) { called = true })

	trigger.Cancel()
	fakeClock.Advance(100 * time.Millisecond)

	if called {
		t.Fatal("cancelled trigger invoked its subscriber")
	}
	if !trigger.Cancelled() {
		t.Fatal("trigger should report Cancelled")
	}
}

func TestTriggerZeroTimeoutFiresImmediately(t *testing.T) {
	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	trigger := NewTrigger(fakeClock, 0, ReasonTime)

	if !trigger.Resolved() {
		t.Fatal("zero-timeout trigger should resolve synchronously")
	}

	var reason Reason
	trigger.OnResolve(func(r Reason) { reason = r })
	if reason != ReasonTime {
		t.Fatalf("reason = %v, want Time", reason)
	}
}

func TestTriggerLateSubscriberObservesRecordedValue(t *testing.T) {
	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	trigger := NewTrigger(fakeClock, time.Hour, ReasonTime)
	trigger.Fire(ReasonRead)

	var reason Reason
	var called bool
	trigger.OnResolve(func(r Reason) { reason, called = r, true })

	if !called || reason != ReasonRead {
		t.Fatalf("late subscriber got called=%v reason=%v, want true/Read", called, reason)
	}
}
