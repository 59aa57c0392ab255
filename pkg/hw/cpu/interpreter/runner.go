package interpreter

import (
	"errors"
	"fmt"
	"io"

	"github.com/Manu343726/emu8086/pkg/hw/cpu/machine"
)

// KeySource supplies keystrokes to programs run without a debugger. NextKey
// returns io.EOF when no more input will ever arrive.
type KeySource interface {
	NextKey() (machine.KeyEvent, error)
}

// TraceCallback is called after each executed instruction. Return false to
// stop the run.
type TraceCallback func(step int, result StepResult, state *machine.State) bool

// Stop reasons reported by Runner summaries
const (
	ReasonProgramEnd = "completed"
	ReasonError      = "failed"
	ReasonMaxSteps   = "stopped after max steps"
	ReasonStopped    = "stopped by trace callback"
	ReasonNoInput    = "stopped waiting for input"
)

// Runner runs a program to completion without breakpoints or batching,
// feeding blocking input services from a KeySource.
type Runner struct {
	interp *Interpreter
	keys   KeySource
}

// NewRunner wraps an interpreter. keys may be nil for programs that never
// read input.
func NewRunner(interp *Interpreter, keys KeySource) *Runner {
	return &Runner{interp: interp, keys: keys}
}

// Interpreter returns the underlying interpreter
func (r *Runner) Interpreter() *Interpreter {
	return r.interp
}

// Run executes until the program ends, fails or maxSteps instructions ran
// (0 = unlimited).
func (r *Runner) Run(maxSteps int) ExecutionSummary {
	return r.RunWithTrace(maxSteps, nil)
}

// RunWithTrace is Run with a per-instruction callback
func (r *Runner) RunWithTrace(maxSteps int, callback TraceCallback) ExecutionSummary {
	state := r.interp.State()
	steps := 0

	summarize := func(reason string, err error) ExecutionSummary {
		return ExecutionSummary{
			Steps:    steps,
			FinalIP:  state.Registers.IP,
			ExitCode: state.ExitCode,
			Reason:   reason,
			Error:    err,
		}
	}

	for {
		if maxSteps > 0 && steps >= maxSteps {
			return summarize(ReasonMaxSteps, nil)
		}

		result, err := r.interp.Step()
		if err != nil {
			return summarize(ReasonError, err)
		}

		switch result.Status {
		case StatusEnded:
			return summarize(ReasonProgramEnd, nil)
		case StatusSkipped:
			continue
		case StatusAwaitingInput:
			if err := r.feed(); err != nil {
				if errors.Is(err, io.EOF) {
					return summarize(ReasonNoInput, nil)
				}
				return summarize(ReasonError, err)
			}
			continue
		}

		steps++
		if callback != nil && !callback(steps, result, state) {
			return summarize(ReasonStopped, nil)
		}
	}
}

func (r *Runner) feed() error {
	if r.keys == nil {
		return io.EOF
	}
	key, err := r.keys.NextKey()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return err
		}
		return fmt.Errorf("failed to read key: %w", err)
	}
	r.interp.State().Keys.Push(key)
	return nil
}
