package debugger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/Manu343726/emu8086/pkg/hw/cpu/bios"
	"github.com/Manu343726/emu8086/pkg/hw/cpu/interpreter"
	"github.com/Manu343726/emu8086/pkg/hw/cpu/loader"
	"github.com/Manu343726/emu8086/pkg/hw/cpu/machine"
	"github.com/Manu343726/emu8086/pkg/utils"
)

var (
	// ErrNoProgram is returned by operations that need a loaded program
	ErrNoProgram = errors.New("no program loaded")

	// ErrBusy is returned by state mutations requested while a run is in progress
	ErrBusy = errors.New("emulator is running")

	// ErrInvalidBreakpoint is returned for breakpoints on lines outside the program
	ErrInvalidBreakpoint = errors.New("invalid breakpoint")

	// ErrInvalidSpeed is returned for speeds outside MinSpeed..MaxSpeed
	ErrInvalidSpeed = errors.New("invalid speed")
)

// Mode is the state of the execution driver
type Mode int

const (
	ModeIdle Mode = iota
	ModeStepping
	ModeRunning
	ModeAwaitingInput
	ModeHalted
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeStepping:
		return "stepping"
	case ModeRunning:
		return "running"
	case ModeAwaitingInput:
		return "awaiting input"
	case ModeHalted:
		return "halted"
	default:
		return "unknown"
	}
}

// HaltReason tells why the driver is in ModeHalted
type HaltReason int

const (
	HaltNone HaltReason = iota
	HaltProgramEnd
	HaltBreakpoint
	HaltError
)

func (r HaltReason) String() string {
	switch r {
	case HaltProgramEnd:
		return "program end"
	case HaltBreakpoint:
		return "breakpoint"
	case HaltError:
		return "error"
	default:
		return "none"
	}
}

// ExecutionResult contains the result of an execution operation
type ExecutionResult struct {
	Mode   Mode
	Reason HaltReason
	// StepsExecuted counts non-empty instructions executed by the operation
	StepsExecuted int
	// Line is the source line of the next instruction (0 past the end)
	Line int
	// BreakpointLine is set when a breakpoint halted the run
	BreakpointLine int
	// Error is the *machine.RuntimeError that halted the run, if any
	Error error
}

// Snapshot is a read-only copy of everything a frontend displays
type Snapshot struct {
	machine.Snapshot
	Mode        Mode
	Reason      HaltReason
	Error       error
	Line        int
	Executed    int
	Speed       Speed
	Breakpoints []interpreter.Breakpoint
}

// Options configures a Backend
type Options struct {
	Logger *slog.Logger
	Clock  bios.Clock
	Speed  Speed
}

// Option modifies Options
type Option func(*Options)

// WithLogger sets the logger shared by the loader, interpreter and services
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithClock overrides the host clock seen by the clock services
func WithClock(clock bios.Clock) Option {
	return func(o *Options) {
		o.Clock = clock
	}
}

// WithSpeed sets the initial run speed
func WithSpeed(speed Speed) Option {
	return func(o *Options) {
		o.Speed = speed
	}
}

// Backend is the execution driver: it owns the machine, the loaded program
// and the breakpoint table, and moves between Idle, Stepping, Running,
// AwaitingInput and Halted. Running is cooperative: Run only arms the driver
// and every Tick executes one bounded batch.
type Backend struct {
	mu sync.Mutex

	logger      *slog.Logger
	state       *machine.State
	services    *bios.Services
	program     *loader.Program
	interp      *interpreter.Interpreter
	breakpoints *interpreter.Breakpoints
	evaluator   *ExpressionEvaluator

	speed  Speed
	mode   Mode
	reason HaltReason
	err    error

	// resume is the mode a submitted key returns to
	resume Mode
	// skip is the instruction index whose breakpoint is ignored once, so a
	// run resumed from a breakpoint can leave it
	skip int
}

// NewBackend creates a driver with no program loaded
func NewBackend(opts ...Option) *Backend {
	options := Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:  bios.SystemClock{},
		Speed:  DefaultSpeed,
	}
	for _, opt := range opts {
		opt(&options)
	}

	state := machine.NewState()
	b := &Backend{
		logger:      options.Logger,
		state:       state,
		services:    bios.New(bios.WithLogger(options.Logger), bios.WithClock(options.Clock)),
		breakpoints: interpreter.NewBreakpoints(),
		speed:       options.Speed.clamp(),
		skip:        -1,
	}
	return b
}

// Load assembles source and reloads the machine with it. Load diagnostics
// are non-fatal and available in Program().Diagnostics.
func (b *Backend) Load(source string) *loader.Program {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.program = loader.Load(source, loader.WithLogger(b.logger))
	b.reload()
	return b.program
}

// LoadFile reads and loads a source file
func (b *Backend) LoadFile(path string) (*loader.Program, error) {
	program, err := loader.LoadFile(path, loader.WithLogger(b.logger))
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.program = program
	b.reload()
	return program, nil
}

// Reload reassembles the current source and reinitializes memory, registers,
// flags, call stack, key queue and breakpoints. The driver goes back to Idle.
func (b *Backend) Reload() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.program == nil {
		return ErrNoProgram
	}
	b.program = loader.Load(b.program.Source, loader.WithLogger(b.logger))
	b.reload()
	return nil
}

func (b *Backend) reload() {
	b.state.Reset()
	b.services.Reset()
	b.breakpoints.Clear()

	if err := b.program.Install(b.state); err != nil {
		b.logger.Error("failed to install program", slog.String("error", err.Error()))
	}

	b.interp = interpreter.New(b.state, b.program, b.services, interpreter.WithLogger(b.logger))
	b.evaluator = NewExpressionEvaluator(StateEnvironment{State: b.state, Program: b.program})
	b.mode, b.reason, b.err = ModeIdle, HaltNone, nil
	b.resume = ModeIdle
	b.skip = -1

	b.logger.Info("program loaded",
		slog.Int("instructions", len(b.program.Instructions)),
		slog.Int("diagnostics", len(b.program.Diagnostics)))
}

// Program returns the loaded program, or nil
func (b *Backend) Program() *loader.Program {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.program
}

// Mode returns the current driver state
func (b *Backend) Mode() (Mode, HaltReason) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mode, b.reason
}

// Speed returns the current run speed
func (b *Backend) Speed() Speed {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.speed
}

// SetSpeed changes the batch size and tick interval of runs
func (b *Backend) SetSpeed(speed Speed) error {
	if !speed.Valid() {
		return utils.MakeError(ErrInvalidSpeed, "%d is not in %d..%d", speed, MinSpeed, MaxSpeed)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.speed = speed
	return nil
}

func (b *Backend) result(steps int) ExecutionResult {
	return ExecutionResult{
		Mode:          b.mode,
		Reason:        b.reason,
		StepsExecuted: steps,
		Line:          b.currentLine(),
		Error:         b.err,
	}
}

func (b *Backend) currentLine() int {
	if b.interp == nil {
		return 0
	}
	if instr := b.interp.Current(); instr != nil {
		return instr.Line
	}
	return 0
}

func (b *Backend) halt(reason HaltReason, err error) {
	b.mode, b.reason, b.err = ModeHalted, reason, err
	if err != nil {
		b.logger.Error("execution halted", slog.String("reason", reason.String()), slog.String("error", err.Error()))
	} else {
		b.logger.Debug("execution halted", slog.String("reason", reason.String()))
	}
}

// execute runs interpreter steps until one non-empty instruction completes.
// It reports whether the driver may keep going.
func (b *Backend) execute() (executed bool, proceed bool) {
	for {
		result, err := b.interp.Step()
		if err != nil {
			b.halt(HaltError, err)
			return false, false
		}

		switch result.Status {
		case interpreter.StatusSkipped:
			continue
		case interpreter.StatusEnded:
			b.halt(HaltProgramEnd, nil)
			return false, false
		case interpreter.StatusAwaitingInput:
			b.resume = b.mode
			b.mode = ModeAwaitingInput
			return false, false
		}

		return true, true
	}
}

// Step executes exactly one non-empty instruction, ignoring breakpoints
func (b *Backend) Step() ExecutionResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.step()
}

func (b *Backend) step() ExecutionResult {
	if b.interp == nil {
		return ExecutionResult{Error: ErrNoProgram}
	}

	switch {
	case b.mode == ModeAwaitingInput || b.mode == ModeRunning:
		return b.result(0)
	case b.mode == ModeHalted && b.reason == HaltProgramEnd:
		return b.result(0)
	}

	b.mode, b.reason, b.err = ModeStepping, HaltNone, nil
	b.skip = -1

	executed, proceed := b.execute()
	steps := 0
	if executed {
		steps = 1
	}
	if proceed {
		b.mode = ModeIdle
		if b.interp.Ended() {
			b.halt(HaltProgramEnd, nil)
		}
	}
	return b.result(steps)
}

// Run arms the driver. Instructions execute in the following Ticks. A run
// started from a breakpoint halt does not stop on that same breakpoint
// before executing at least one instruction.
func (b *Backend) Run() ExecutionResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.run()
}

func (b *Backend) run() ExecutionResult {
	if b.interp == nil {
		return ExecutionResult{Error: ErrNoProgram}
	}

	switch b.mode {
	case ModeRunning:
		return b.result(0)
	case ModeAwaitingInput:
		b.resume = ModeRunning
		return b.result(0)
	case ModeHalted:
		switch b.reason {
		case HaltProgramEnd:
			return b.result(0)
		case HaltBreakpoint:
			b.skip = int(b.state.Registers.IP)
		}
	}

	b.mode, b.reason, b.err = ModeRunning, HaltNone, nil
	return b.result(0)
}

// Tick executes one batch of a run. It does nothing unless Running.
func (b *Backend) Tick() ExecutionResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tick()
}

func (b *Backend) tick() ExecutionResult {
	if b.mode != ModeRunning {
		return b.result(0)
	}

	batch := b.speed.BatchSize()
	steps := 0
	for steps < batch {
		if b.interp.Ended() {
			b.halt(HaltProgramEnd, nil)
			break
		}

		if !b.interp.AwaitingInput() {
			b.skipEmpty()
			if line, hit := b.breakpointHit(); hit {
				b.halt(HaltBreakpoint, nil)
				result := b.result(steps)
				result.BreakpointLine = line
				return result
			}
		}
		b.skip = -1

		executed, proceed := b.execute()
		if executed {
			steps++
		}
		if !proceed {
			break
		}
	}

	if b.mode == ModeRunning && b.interp.Ended() {
		b.halt(HaltProgramEnd, nil)
	}
	return b.result(steps)
}

// skipEmpty moves IP past empty records so the breakpoint check sees the
// instruction that runs next
func (b *Backend) skipEmpty() {
	for {
		instr := b.interp.Current()
		if instr == nil || instr.Kind != loader.Empty {
			return
		}
		if _, err := b.interp.Step(); err != nil {
			return
		}
	}
}

// breakpointHit checks the breakpoint on the record at IP
func (b *Backend) breakpointHit() (int, bool) {
	index := int(b.state.Registers.IP)
	if index == b.skip {
		return 0, false
	}

	instr := b.program.At(index)
	if instr == nil {
		return 0, false
	}

	bp, ok := b.breakpoints.At(instr.Line)
	if !ok || !bp.Enabled {
		return 0, false
	}

	if bp.Condition != "" {
		fire, err := b.evaluator.EvalCondition(bp.Condition)
		if err != nil {
			b.logger.Warn("breakpoint condition failed, stopping anyway",
				slog.Int("line", bp.Line),
				slog.String("condition", bp.Condition),
				slog.String("error", err.Error()))
		} else if !fire {
			return 0, false
		}
	}

	bp.HitCount++
	return bp.Line, true
}

// Continue runs batches until the run stops or ctx is done, in which case
// the run is paused. Frontends without their own timer use it instead of
// Run and Tick.
func (b *Backend) Continue(ctx context.Context) ExecutionResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	result := b.run()
	if result.Error != nil {
		return result
	}

	steps := 0
	for b.mode == ModeRunning {
		if ctx.Err() != nil {
			b.mode = ModeIdle
			break
		}
		tick := b.tick()
		steps += tick.StepsExecuted
		result = tick
	}
	result.StepsExecuted = steps
	return result
}

// Pause stops a run at the current instruction boundary
func (b *Backend) Pause() ExecutionResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.mode {
	case ModeRunning:
		b.mode = ModeIdle
	case ModeAwaitingInput:
		b.resume = ModeStepping
	}
	return b.result(0)
}

// SubmitKey appends a key to the queue. If the driver was waiting for input
// it resumes what it was doing: a pending step completes immediately, a run
// continues in the next Tick.
func (b *Backend) SubmitKey(key machine.KeyEvent) ExecutionResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state.Keys.Push(key)
	if b.mode != ModeAwaitingInput {
		return b.result(0)
	}

	switch b.resume {
	case ModeRunning:
		b.mode = ModeRunning
		return b.result(0)
	default:
		b.mode = ModeStepping
		steps := 0
		if executed, proceed := b.execute(); proceed {
			b.mode = ModeIdle
			if executed {
				steps = 1
			}
			if b.interp.Ended() {
				b.halt(HaltProgramEnd, nil)
			}
		}
		return b.result(steps)
	}
}

// codeLine maps a source line to the line of the first instruction at or
// after it, so breakpoints on labels, PROC headers and blank lines land on
// code that runs
func (b *Backend) codeLine(line int) (int, error) {
	if b.program == nil {
		return 0, ErrNoProgram
	}
	index, ok := b.program.IndexOfLine(line)
	if !ok {
		return 0, utils.MakeError(ErrInvalidBreakpoint, "line %d is outside the program", line)
	}
	for ; index < len(b.program.Instructions); index++ {
		if instr := b.program.At(index); instr.Kind != loader.Empty {
			return instr.Line, nil
		}
	}
	return 0, utils.MakeError(ErrInvalidBreakpoint, "no instruction at or after line %d", line)
}

// AddBreakpoint sets an enabled breakpoint on the first instruction at or
// after a source line
func (b *Backend) AddBreakpoint(line int) (*interpreter.Breakpoint, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	line, err := b.codeLine(line)
	if err != nil {
		return nil, err
	}
	return b.breakpoints.Add(line), nil
}

// existing resolves the line of a breakpoint set through AddBreakpoint
func (b *Backend) existing(line int) (int, error) {
	code, err := b.codeLine(line)
	if err != nil {
		return 0, err
	}
	if _, ok := b.breakpoints.At(code); !ok {
		return 0, utils.MakeError(ErrInvalidBreakpoint, "no breakpoint at line %d", line)
	}
	return code, nil
}

// RemoveBreakpoint deletes the breakpoint on a line
func (b *Backend) RemoveBreakpoint(line int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	line, err := b.existing(line)
	if err != nil {
		return err
	}
	b.breakpoints.Remove(line)
	return nil
}

// ToggleBreakpoint flips the enabled flag of the breakpoint on a line
func (b *Backend) ToggleBreakpoint(line int) (*interpreter.Breakpoint, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	line, err := b.existing(line)
	if err != nil {
		return nil, err
	}
	bp, _ := b.breakpoints.Toggle(line)
	return bp, nil
}

// SetBreakpointCondition attaches a condition to the breakpoint on a line.
// An empty condition makes it unconditional. Conditions that do not parse or
// name unknown registers, flags, symbols or constants fail with ErrExpression.
func (b *Backend) SetBreakpointCondition(line int, condition string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	line, err := b.existing(line)
	if err != nil {
		return err
	}
	if strings.TrimSpace(condition) != "" {
		if err := b.evaluator.Check(condition); err != nil {
			return err
		}
	}
	b.breakpoints.SetCondition(line, condition)
	return nil
}

// Breakpoints returns the breakpoints sorted by line
func (b *Backend) Breakpoints() []interpreter.Breakpoint {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listBreakpoints()
}

func (b *Backend) listBreakpoints() []interpreter.Breakpoint {
	return utils.Map(b.breakpoints.List(), func(bp *interpreter.Breakpoint) interpreter.Breakpoint {
		return *bp
	})
}

// Eval evaluates an expression against the current machine state
func (b *Backend) Eval(expr string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.evaluator == nil {
		return NewExpressionEvaluator(nil).Eval(expr)
	}
	return b.evaluator.Eval(expr)
}

// ReadMemory copies size bytes starting at a physical address
func (b *Backend) ReadMemory(addr uint32, size int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.Memory.ReadBytes(addr, size)
}

// WriteMemory stores bytes at a physical address. It is rejected while running.
func (b *Backend) WriteMemory(addr uint32, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mode == ModeRunning {
		return ErrBusy
	}
	return b.state.Memory.WriteBytes(addr, data)
}

// SetRegister writes a register or flag by name. It is rejected while running.
func (b *Backend) SetRegister(name string, value uint16) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mode == ModeRunning {
		return ErrBusy
	}
	if b.state.Registers.Set(name, value) {
		return nil
	}
	if b.state.Flags.Set(name, value != 0) {
		return nil
	}
	return fmt.Errorf("unknown register %q", name)
}

// Snapshot copies the state for display
func (b *Backend) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	executed := 0
	if b.interp != nil {
		executed = b.interp.Executed()
	}
	return Snapshot{
		Snapshot:    b.state.Snapshot(),
		Mode:        b.mode,
		Reason:      b.reason,
		Error:       b.err,
		Line:        b.currentLine(),
		Executed:    executed,
		Speed:       b.speed,
		Breakpoints: b.listBreakpoints(),
	}
}

// Services returns the interrupt table
func (b *Backend) Services() *bios.Services {
	return b.services
}
