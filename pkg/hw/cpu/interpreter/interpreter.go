// Package interpreter executes loaded programs one instruction at a time.
//
// Every instruction is dispatched through a mnemonic keyed table of
// handlers sharing one signature. Handlers receive the machine state
// explicitly and return the index of the next instruction plus an optional
// software interrupt, which the interpreter routes to an InterruptController
// right after the instruction completes.
package interpreter

import (
	"errors"
	"io"
	"log/slog"

	"github.com/Manu343726/emu8086/pkg/hw/cpu/loader"
	"github.com/Manu343726/emu8086/pkg/hw/cpu/machine"
)

// InterruptController services software interrupts. Returning
// machine.ErrInputRequired suspends the interpreter until the interrupt is
// retried by the next Step.
type InterruptController interface {
	Invoke(state *machine.State, vector uint8) error
}

// Status tells what a call to Step did
type Status int

const (
	// StatusExecuted means a command instruction ran
	StatusExecuted Status = iota
	// StatusSkipped means an empty record was passed over
	StatusSkipped
	// StatusAwaitingInput means a blocking interrupt found no key to read
	StatusAwaitingInput
	// StatusEnded means the program had already finished
	StatusEnded
)

func (s Status) String() string {
	switch s {
	case StatusExecuted:
		return "executed"
	case StatusSkipped:
		return "skipped"
	case StatusAwaitingInput:
		return "awaiting_input"
	case StatusEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// StepResult describes a single Step
type StepResult struct {
	Status Status
	// Index is the index of the instruction the step worked on
	Index int
	// Instruction is that instruction, nil once the program ended
	Instruction *loader.Instruction
}

// Options configures an Interpreter
type Options struct {
	// Logger receives diagnostics such as ignored instructions
	Logger *slog.Logger
}

// Option customizes Options
type Option func(*Options)

// WithLogger sets the interpreter logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

type pendingInterrupt struct {
	vector uint8
	index  int
}

// Interpreter runs a loaded program on a machine state
type Interpreter struct {
	state      *machine.State
	program    *loader.Program
	resolver   *Resolver
	interrupts InterruptController
	logger     *slog.Logger
	pending    *pendingInterrupt
	executed   int
}

// New creates an interpreter. The program is expected to be installed in
// state already. interrupts may be nil, in which case every INT is ignored.
func New(state *machine.State, program *loader.Program, interrupts InterruptController, opts ...Option) *Interpreter {
	options := Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&options)
	}

	return &Interpreter{
		state:      state,
		program:    program,
		resolver:   NewResolver(program),
		interrupts: interrupts,
		logger:     options.Logger,
	}
}

// State returns the machine state
func (i *Interpreter) State() *machine.State {
	return i.state
}

// Program returns the running program
func (i *Interpreter) Program() *loader.Program {
	return i.program
}

// Resolver returns the operand resolver bound to the program
func (i *Interpreter) Resolver() *Resolver {
	return i.resolver
}

// Executed returns how many command instructions have run
func (i *Interpreter) Executed() int {
	return i.executed
}

// Ended tells whether the program terminated or ran past its last record
func (i *Interpreter) Ended() bool {
	return i.state.Terminated || int(i.state.Registers.IP) >= len(i.program.Instructions)
}

// AwaitingInput tells whether a blocking interrupt is waiting for a key
func (i *Interpreter) AwaitingInput() bool {
	return i.pending != nil
}

// Current returns the instruction at IP, or nil once the program ended
func (i *Interpreter) Current() *loader.Instruction {
	if i.state.Terminated {
		return nil
	}
	return i.program.At(int(i.state.Registers.IP))
}

type savedState struct {
	registers  machine.Registers
	flags      machine.Flags
	callStack  []machine.CallFrame
	terminated bool
}

func (i *Interpreter) save() savedState {
	return savedState{
		registers:  i.state.Registers,
		flags:      i.state.Flags,
		callStack:  i.state.CallStack,
		terminated: i.state.Terminated,
	}
}

func (i *Interpreter) restore(s savedState) {
	i.state.Registers = s.registers
	i.state.Flags = s.flags
	i.state.CallStack = s.callStack
	i.state.Terminated = s.terminated
}

// Step executes the record at IP. Empty records are skipped. If a blocking
// interrupt is pending, Step retries it instead of fetching a new
// instruction. A failing instruction leaves registers and flags untouched and
// returns a *machine.RuntimeError.
func (i *Interpreter) Step() (StepResult, error) {
	if i.pending != nil {
		pending := i.pending
		i.pending = nil
		result := StepResult{Status: StatusExecuted, Index: pending.index, Instruction: i.program.At(pending.index)}
		return i.invoke(result, pending.vector)
	}

	index := int(i.state.Registers.IP)
	if i.Ended() {
		return StepResult{Status: StatusEnded, Index: index}, nil
	}

	instr := i.program.At(index)
	result := StepResult{Status: StatusExecuted, Index: index, Instruction: instr}

	if instr.Kind == loader.Empty {
		i.state.Registers.IP++
		result.Status = StatusSkipped
		return result, nil
	}

	desc, ok := Lookup(instr.Mnemonic)
	if !ok {
		i.logger.Warn("unknown instruction ignored",
			slog.Int("line", instr.Line),
			slog.String("text", instr.Text))
		i.state.Registers.IP++
		i.executed++
		return result, nil
	}

	if n := len(instr.Operands); n < desc.MinOperands || n > desc.MaxOperands {
		return result, i.fail(instr, invalidOperand(instr.Text, "%s takes %d to %d operands, got %d",
			desc.Mnemonic, desc.MinOperands, desc.MaxOperands, n))
	}

	saved := i.save()
	ops := &Operands{
		Tokens:   instr.Operands,
		Index:    uint16(index),
		Next:     uint16(index + 1),
		program:  i.program,
		resolver: i.resolver,
		state:    i.state,
	}

	outcome, err := desc.Handler(i.state, ops)
	if err != nil {
		i.restore(saved)
		return result, i.fail(instr, err)
	}

	i.state.Registers.IP = outcome.Next
	i.executed++

	if outcome.Raised {
		return i.invoke(result, outcome.Vector)
	}
	return result, nil
}

func (i *Interpreter) invoke(result StepResult, vector uint8) (StepResult, error) {
	if i.interrupts == nil {
		i.logger.Warn("no interrupt controller, interrupt ignored", slog.Int("vector", int(vector)))
		return result, nil
	}

	err := i.interrupts.Invoke(i.state, vector)
	switch {
	case errors.Is(err, machine.ErrInputRequired):
		i.pending = &pendingInterrupt{vector: vector, index: result.Index}
		result.Status = StatusAwaitingInput
		return result, nil
	case err != nil:
		return result, i.fail(result.Instruction, err)
	default:
		return result, nil
	}
}

func (i *Interpreter) fail(instr *loader.Instruction, err error) error {
	runtimeErr := &machine.RuntimeError{Err: err}
	if instr != nil {
		runtimeErr.Line = instr.Line
		runtimeErr.Text = instr.Text
	}
	i.logger.Error("execution error",
		slog.Int("line", runtimeErr.Line),
		slog.String("text", runtimeErr.Text),
		slog.String("error", err.Error()))
	return runtimeErr
}
