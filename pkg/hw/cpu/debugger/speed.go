package debugger

import (
	"fmt"
	"time"
)

// Speed is the requested run speed, from 1 (slowest) to 10 (fastest)
type Speed int

const (
	MinSpeed     Speed = 1
	MaxSpeed     Speed = 10
	DefaultSpeed Speed = 5
)

var (
	batchSizes    = [...]int{1, 1, 1, 5, 10, 50, 100, 500, 1000, 5000}
	tickIntervals = [...]time.Duration{
		500 * time.Millisecond,
		250 * time.Millisecond,
		100 * time.Millisecond,
		16 * time.Millisecond,
		16 * time.Millisecond,
		16 * time.Millisecond,
		16 * time.Millisecond,
		16 * time.Millisecond,
		16 * time.Millisecond,
		16 * time.Millisecond,
	}
)

// Valid tells whether the speed is in range
func (s Speed) Valid() bool {
	return s >= MinSpeed && s <= MaxSpeed
}

// BatchSize returns how many instructions a tick executes at this speed
func (s Speed) BatchSize() int {
	return batchSizes[s.clamp()-1]
}

// TickInterval returns the delay between two ticks at this speed
func (s Speed) TickInterval() time.Duration {
	return tickIntervals[s.clamp()-1]
}

func (s Speed) clamp() Speed {
	return min(max(s, MinSpeed), MaxSpeed)
}

func (s Speed) String() string {
	return fmt.Sprintf("%d (%d instr / %v)", int(s), s.BatchSize(), s.TickInterval())
}
