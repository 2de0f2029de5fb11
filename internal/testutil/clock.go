// Package testutil provides deterministic infrastructure for exercising the
// poll loops without real sleeping.
package testutil

import (
	"context"
	"sync"
	"time"
)

// FakeClock is a virtual wall clock. Sleep advances time instantly, and
// callbacks scheduled with At fire while time passes them, which lets a test
// mutate the observed page "between ticks" of a poll loop.
//
// Thread-safety: all methods are safe for concurrent use; callbacks run
// without the internal lock held.
type FakeClock struct {
	mu        sync.Mutex
	now       time.Time
	scheduled []scheduledCall
}

type scheduledCall struct {
	at time.Time
	fn func()
}

// NewFakeClock creates a clock frozen at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the current virtual time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep advances virtual time by d. It never blocks; a canceled context is
// still honored so cancellation paths stay testable.
func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Advance(d)
	return nil
}

// Advance moves virtual time forward by d, firing scheduled callbacks in
// time order as their instants are passed. Each callback observes Now() at
// its own scheduled instant.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		idx := -1
		for i, s := range c.scheduled {
			if s.at.After(target) {
				continue
			}
			if idx == -1 || s.at.Before(c.scheduled[idx].at) {
				idx = i
			}
		}
		if idx == -1 {
			c.now = target
			c.mu.Unlock()
			return
		}
		call := c.scheduled[idx]
		c.scheduled = append(c.scheduled[:idx], c.scheduled[idx+1:]...)
		if call.at.After(c.now) {
			c.now = call.at
		}
		c.mu.Unlock()

		call.fn()
	}
}

// At schedules fn to fire when virtual time reaches t. Scheduling in the
// past fires on the next Advance.
func (c *FakeClock) At(t time.Time, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scheduled = append(c.scheduled, scheduledCall{at: t, fn: fn})
}

// After schedules fn to fire d past the current virtual time.
func (c *FakeClock) After(d time.Duration, fn func()) {
	c.mu.Lock()
	at := c.now.Add(d)
	c.scheduled = append(c.scheduled, scheduledCall{at: at, fn: fn})
	c.mu.Unlock()
}
