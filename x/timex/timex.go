// Package timex holds the injectable time sources used by the drivers.
// Drivers never call time.Sleep directly: they take a Sleeper so tests can
// run the same timing paths with zero real delay.
package timex

import "time"

// Sleeper blocks the caller for d.
type Sleeper interface {
	Sleep(d time.Duration)
}

// SleepFunc adapts a function to Sleeper.
type SleepFunc func(d time.Duration)

func (f SleepFunc) Sleep(d time.Duration) { f(d) }

var (
	// Real yields to the scheduler via time.Sleep.
	Real Sleeper = SleepFunc(time.Sleep)
	// Busy spins on the monotonic clock; used for microsecond line settling
	// where a timer would oversleep.
	Busy Sleeper = SleepFunc(Spin)
)

// Spin busy-waits for d without arming a timer.
func Spin(d time.Duration) {
	if d <= 0 {
		return
	}
	start := time.Now()
	for time.Since(start) < d {
	}
}

// Or returns s, or def when s is nil.
func Or(s, def Sleeper) Sleeper {
	if s == nil {
		return def
	}
	return s
}

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }
