// Package sim models the board peripherals in software: an open-drain
// two-wire bus with bit-level target decoding, an AHT10 sensor target, an
// SX127x register file, and a recording sleeper. Tests and host binaries use
// it in place of the memory-mapped registers.
package sim

import (
	"sync"
	"time"
)

// Clock records sleeps instead of performing them.
type Clock struct {
	mu    sync.Mutex
	calls int
	total time.Duration
	byDur map[time.Duration]int
}

func (c *Clock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.byDur == nil {
		c.byDur = make(map[time.Duration]int)
	}
	c.calls++
	c.total += d
	c.byDur[d]++
}

// Calls returns the number of Sleep calls.
func (c *Clock) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Total returns the summed sleep duration.
func (c *Clock) Total() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// Count returns how many sleeps of exactly d were requested.
func (c *Clock) Count(d time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.byDur[d]
}
