package util

import (
	"time"

	"k8s.io/utils/clock"
)

// The process clock. The now() SQL function reads it, and the CLI hands
// it to the engine for staleness decisions; tests can substitute a fake.
var processClock clock.Clock = clock.RealClock{}

// SetClock replaces the process clock; tests pass a
// k8s.io/utils/clock/testing fake and restore the real clock afterwards.
func SetClock(c clock.Clock) { processClock = c }

// GetClock returns the process clock.
func GetClock() clock.Clock { return processClock }

// NowSecs returns the current time as epoch seconds.
func NowSecs() int64 { return processClock.Now().Unix() }

// Sleep pauses on the process clock; a fake clock advances instead.
func Sleep(d time.Duration) { processClock.Sleep(d) }
