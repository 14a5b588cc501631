// Copyright 2026 The Siphon Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake returns a FakeClock holding at the given time. Nothing fires
// until Advance moves it forward; After, AfterFunc, NewTicker, and
// Sleep all register a pending operation and wait for a future Advance
// to cross their deadline.
//
// A FakeClock is safe for concurrent use.
func Fake(initial time.Time) *FakeClock {
	fc := &FakeClock{now: initial}
	fc.pendingChanged = sync.NewCond(&fc.mu)
	return fc
}

// FakeClock is a Clock a test drives by hand: time only moves when
// Advance is called, and every timer, ticker, or sleep registered
// against it stays dormant until Advance crosses its deadline.
//
// Advance invokes AfterFunc callbacks synchronously, in deadline
// order, on the calling goroutine, without holding the clock's lock.
// A callback that calls Sleep on the same clock blocks the calling
// Advance until some other goroutine advances the clock.
type FakeClock struct {
	mu             sync.Mutex
	now            time.Time
	pending        []*scheduledOp
	pendingChanged *sync.Cond
}

// scheduledOp is one registered After, AfterFunc, Sleep, or ticker
// interval waiting for the clock to reach its deadline.
type scheduledOp struct {
	deadline time.Time

	// fireChan receives the fire time for After, Sleep, and ticker
	// operations. Nil for AfterFunc, which has no channel.
	fireChan chan time.Time

	// callback runs synchronously during Advance for AfterFunc
	// operations. Nil otherwise.
	callback func()

	// repeat is the tick interval for a ticker operation; zero for
	// everything else. A fired op with repeat > 0 is rescheduled
	// rather than retired.
	repeat time.Duration

	// canceled is set by Stop. Canceled ops are skipped on the next
	// Advance and dropped from the pending list.
	canceled bool

	// done is set once a one-shot op (After, AfterFunc) has fired and
	// been retired from the pending list; Stop then reports false and
	// Reset re-registers the op.
	done bool
}

// Now reports the clock's current, held time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After registers an operation that delivers the fire time on the
// returned channel once d has elapsed. A non-positive d delivers
// immediately without registering anything.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.now
		return ch
	}

	c.pending = append(c.pending, &scheduledOp{
		deadline: c.now.Add(d),
		fireChan: ch,
	})
	c.pendingChanged.Broadcast()
	return ch
}

// AfterFunc registers f to run once d has elapsed. The returned
// Timer's C is always nil. A non-positive d runs f before AfterFunc
// returns, with no operation registered.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	if d <= 0 {
		c.mu.Unlock()
		f()
		c.mu.Lock()
		return &Timer{
			C:         nil,
			stopFunc:  func() bool { return false },
			resetFunc: func(time.Duration) bool { return false },
		}
	}

	op := &scheduledOp{
		deadline: c.now.Add(d),
		callback: f,
	}
	c.pending = append(c.pending, op)
	c.pendingChanged.Broadcast()

	return &Timer{
		C: nil,
		stopFunc: func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			if op.canceled || op.done {
				return false
			}
			op.canceled = true
			return true
		},
		resetFunc: func(d time.Duration) bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			wasLive := !op.canceled && !op.done
			op.canceled = false
			op.done = false
			op.deadline = c.now.Add(d)
			if !wasLive {
				// A fired op is already retired from the pending list;
				// a canceled one stays listed until the next Advance
				// reaps it. Put the op back only if it is not listed.
				listed := false
				for _, p := range c.pending {
					if p == op {
						listed = true
						break
					}
				}
				if !listed {
					c.pending = append(c.pending, op)
				}
				c.pendingChanged.Broadcast()
			}
			return wasLive
		},
	}
}

// NewTicker registers a repeating operation that delivers a tick on
// its C channel every d. Panics if d is non-positive.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	op := &scheduledOp{
		deadline: c.now.Add(d),
		fireChan: ch,
		repeat:   d,
	}
	c.pending = append(c.pending, op)
	c.pendingChanged.Broadcast()

	return &Ticker{
		C: ch,
		stopFunc: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			op.canceled = true
		},
		resetFunc: func(d time.Duration) {
			c.mu.Lock()
			defer c.mu.Unlock()
			op.repeat = d
			op.deadline = c.now.Add(d)
			if op.canceled {
				op.canceled = false
				// An Advance after Stop drops the op from the pending
				// list; re-register it if that has happened.
				listed := false
				for _, p := range c.pending {
					if p == op {
						listed = true
						break
					}
				}
				if !listed {
					c.pending = append(c.pending, op)
				}
				c.pendingChanged.Broadcast()
			}
		},
	}
}

// Sleep blocks until the clock advances past d from now. A
// non-positive d returns immediately.
func (c *FakeClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	<-c.After(d)
}

// Advance moves the clock forward by d and fires every operation
// whose deadline now falls at or before the new time, in deadline
// order.
//
// AfterFunc callbacks run synchronously on the calling goroutine.
// Deliveries to fireChan are non-blocking sends, matching
// time.Ticker's behavior of dropping a tick a slow consumer hasn't
// read yet. An Advance that spans several ticker intervals fires that
// ticker once per interval crossed, but only the most recent delivery
// survives in its capacity-1 channel.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	target := c.now
	c.mu.Unlock()

	for {
		ready := c.reapDue(target)
		if len(ready) == 0 {
			return
		}

		sort.Slice(ready, func(i, j int) bool {
			return ready[i].deadline.Before(ready[j].deadline)
		})

		for _, op := range ready {
			switch {
			case op.callback != nil:
				op.callback()
			case op.fireChan != nil:
				select {
				case op.fireChan <- target:
				default:
				}
			}
		}
	}
}

// reapDue locks the pending list, splits it into operations whose
// deadline has arrived and those that haven't, reschedules the
// repeating ones among the former, and returns the ones that should
// fire this round.
func (c *FakeClock) reapDue(target time.Time) []*scheduledOp {
	c.mu.Lock()
	defer c.mu.Unlock()

	var due []*scheduledOp
	var keep []*scheduledOp

	for _, op := range c.pending {
		if op.canceled {
			continue
		}
		if !op.deadline.After(target) {
			due = append(due, op)
		} else {
			keep = append(keep, op)
		}
	}

	for _, op := range due {
		if op.repeat > 0 {
			op.deadline = op.deadline.Add(op.repeat)
			keep = append(keep, op)
		} else {
			op.done = true
		}
	}

	c.pending = keep
	return due
}

// WaitForTimers blocks until at least n operations are registered and
// still live (not yet canceled or fired). Pair it with Advance to
// remove the race between a goroutine registering a timer and the
// test moving time past it:
//
//	go func() { fc.Sleep(5 * time.Second) }()
//	fc.WaitForTimers(1)          // block until Sleep has registered
//	fc.Advance(5 * time.Second) // now it's safe to fire it
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.liveCountLocked() < n {
		c.pendingChanged.Wait()
	}
}

// PendingCount reports how many operations are currently registered
// and live. Intended for test assertions.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.liveCountLocked()
}

// liveCountLocked counts non-canceled pending operations. c.mu must
// already be held.
func (c *FakeClock) liveCountLocked() int {
	n := 0
	for _, op := range c.pending {
		if !op.canceled {
			n++
		}
	}
	return n
}
