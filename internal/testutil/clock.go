package testutil

import (
	"sync"

	"github.com/roach88/toglayer/internal/ir"
)

// VirtualClock is a millisecond timeline for tests and the harness.
//
// Time only moves when the test says so, which keeps quick-tap windows and
// TTLs exact. The clock never moves backwards.
//
// Thread-safety: all methods are safe for concurrent use.
type VirtualClock struct {
	mu  sync.Mutex
	now ir.Timestamp
}

// NewVirtualClock creates a clock at time 0.
func NewVirtualClock() *VirtualClock {
	return &VirtualClock{}
}

// Now returns the current virtual time.
func (c *VirtualClock) Now() ir.Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AdvanceTo moves the clock to ts. Earlier timestamps leave it unchanged.
// Returns the resulting time.
func (c *VirtualClock) AdvanceTo(ts ir.Timestamp) ir.Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ts > c.now {
		c.now = ts
	}
	return c.now
}

// Advance moves the clock forward by ms milliseconds.
func (c *VirtualClock) Advance(ms int64) ir.Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ms > 0 {
		c.now += ir.Timestamp(ms)
	}
	return c.now
}

// Reset moves the clock back to 0 for test reuse.
func (c *VirtualClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = 0
}
