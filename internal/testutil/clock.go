// Package testutil holds shared helpers for the package test suites.
package testutil

import (
	"sync"
	"time"
)

// StepClock is a deterministic wall clock for tests: every Now call returns
// the current instant and advances it by a fixed step. Timestamps produced
// from it are stable across runs, which keeps golden files byte-identical.
type StepClock struct {
	mu    sync.Mutex
	start time.Time
	now   time.Time
	step  time.Duration
}

// NewStepClock creates a clock starting at start, advancing by step per call.
func NewStepClock(start time.Time, step time.Duration) *StepClock {
	return &StepClock{start: start, now: start, step: step}
}

// Now returns the current instant and advances the clock.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Reset rewinds the clock to its start instant, so the same scenario can run
// twice with identical timestamps.
func (c *StepClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.start
}
