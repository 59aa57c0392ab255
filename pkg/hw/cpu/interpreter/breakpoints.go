package interpreter

import (
	"sort"
	"strings"
)

// Breakpoint stops a run right before the instruction of a source line
type Breakpoint struct {
	// Line is the 1-based source line
	Line int
	// Enabled indicates if the breakpoint is active
	Enabled bool
	// Condition is an optional boolean expression over registers and flags.
	// An empty condition always holds.
	Condition string
	// HitCount tracks how many times this breakpoint has stopped a run
	HitCount int
}

// Breakpoints is the breakpoint table, keyed by source line
type Breakpoints struct {
	byLine map[int]*Breakpoint
}

// NewBreakpoints creates an empty breakpoint table
func NewBreakpoints() *Breakpoints {
	return &Breakpoints{byLine: make(map[int]*Breakpoint)}
}

// Add sets an enabled breakpoint on a line. Adding a breakpoint twice
// re-enables the existing one.
func (b *Breakpoints) Add(line int) *Breakpoint {
	if bp, ok := b.byLine[line]; ok {
		bp.Enabled = true
		return bp
	}
	bp := &Breakpoint{Line: line, Enabled: true}
	b.byLine[line] = bp
	return bp
}

// Remove deletes the breakpoint of a line
func (b *Breakpoints) Remove(line int) bool {
	if _, ok := b.byLine[line]; !ok {
		return false
	}
	delete(b.byLine, line)
	return true
}

// Toggle flips a breakpoint between enabled and disabled
func (b *Breakpoints) Toggle(line int) (*Breakpoint, bool) {
	bp, ok := b.byLine[line]
	if !ok {
		return nil, false
	}
	bp.Enabled = !bp.Enabled
	return bp, true
}

// SetCondition changes the condition of a breakpoint
func (b *Breakpoints) SetCondition(line int, condition string) bool {
	bp, ok := b.byLine[line]
	if !ok {
		return false
	}
	bp.Condition = strings.TrimSpace(condition)
	return true
}

// At returns the breakpoint of a line, if any
func (b *Breakpoints) At(line int) (*Breakpoint, bool) {
	bp, ok := b.byLine[line]
	return bp, ok
}

// List returns all breakpoints sorted by line
func (b *Breakpoints) List() []*Breakpoint {
	bps := make([]*Breakpoint, 0, len(b.byLine))
	for _, bp := range b.byLine {
		bps = append(bps, bp)
	}
	sort.Slice(bps, func(i, j int) bool {
		return bps[i].Line < bps[j].Line
	})
	return bps
}

// Len returns the number of breakpoints
func (b *Breakpoints) Len() int {
	return len(b.byLine)
}

// Clear removes all breakpoints
func (b *Breakpoints) Clear() {
	b.byLine = make(map[int]*Breakpoint)
}
