package debugger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Manu343726/emu8086/pkg/hw/cpu/machine"
)

// Controller coordinates between the debugger backend and UI.
// It implements the command processing logic while delegating
// presentation to the UI interface.
type Controller struct {
	backend     *Backend
	ui          DebuggerUI
	running     bool
	lastCommand string
	// ticked is set when the frontend runs batches from its own timer
	ticked bool
}

// ControllerOption configures a Controller
type ControllerOption func(*Controller)

// WithTicker is for frontends that call Backend.Tick from their own timer.
// Commands that resume a run then return as soon as the backend is running
// and leave the batches to the timer.
func WithTicker() ControllerOption {
	return func(c *Controller) {
		c.ticked = true
	}
}

// NewController creates a new debugger controller
func NewController(backend *Backend, ui DebuggerUI, opts ...ControllerOption) *Controller {
	c := &Controller{
		backend: backend,
		ui:      ui,
		running: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Backend returns the underlying backend
func (c *Controller) Backend() *Backend {
	return c.backend
}

// IsRunning returns true if the debugger session is active
func (c *Controller) IsRunning() bool {
	return c.running
}

// LastCommand returns the last command
func (c *Controller) LastCommand() string {
	return c.lastCommand
}

type command struct {
	help CommandHelp
	run  func(c *Controller, ctx context.Context, args []string)
}

var commands []command

func init() {
	commands = []command{
		{CommandHelp{Name: "step", Aliases: []string{"s"}, Description: "Execute n instructions", Usage: "step [n]"}, (*Controller).cmdStep},
		{CommandHelp{Name: "continue", Aliases: []string{"c", "run", "r"}, Description: "Run until a breakpoint, input request, error or program end", Usage: "continue"}, (*Controller).cmdContinue},
		{CommandHelp{Name: "break", Aliases: []string{"b"}, Description: "Set a breakpoint on a line or label", Usage: "break <line|label>"}, (*Controller).cmdBreak},
		{CommandHelp{Name: "delete", Aliases: []string{"d"}, Description: "Delete a breakpoint", Usage: "delete <line|label>"}, (*Controller).cmdDelete},
		{CommandHelp{Name: "toggle", Aliases: []string{"t"}, Description: "Enable or disable a breakpoint", Usage: "toggle <line|label>"}, (*Controller).cmdToggle},
		{CommandHelp{Name: "cond", Description: "Set a breakpoint condition (none to clear)", Usage: "cond <line|label> [expr]"}, (*Controller).cmdCond},
		{CommandHelp{Name: "list", Aliases: []string{"l"}, Description: "List breakpoints", Usage: "list"}, (*Controller).cmdList},
		{CommandHelp{Name: "source", Aliases: []string{"src"}, Description: "Show the source around the current line", Usage: "source [lines]"}, (*Controller).cmdSource},
		{CommandHelp{Name: "print", Aliases: []string{"p"}, Description: "Evaluate an expression", Usage: "print <expr>"}, (*Controller).cmdPrint},
		{CommandHelp{Name: "set", Description: "Set a register or flag", Usage: "set <reg> <expr>"}, (*Controller).cmdSet},
		{CommandHelp{Name: "mem", Aliases: []string{"m", "x"}, Description: "Dump memory", Usage: "mem <[seg:]offset> [count]"}, (*Controller).cmdMemory},
		{CommandHelp{Name: "screen", Description: "Show the text screen", Usage: "screen"}, (*Controller).cmdScreen},
		{CommandHelp{Name: "regs", Aliases: []string{"info", "i"}, Description: "Show registers and flags", Usage: "regs"}, (*Controller).cmdRegisters},
		{CommandHelp{Name: "stack", Aliases: []string{"bt"}, Description: "Show the stack and call frames", Usage: "stack [words]"}, (*Controller).cmdStack},
		{CommandHelp{Name: "key", Aliases: []string{"k"}, Description: "Type keys (enter, esc, backspace or text)", Usage: "key <text>"}, (*Controller).cmdKey},
		{CommandHelp{Name: "reload", Description: "Reload the program", Usage: "reload"}, (*Controller).cmdReload},
		{CommandHelp{Name: "speed", Description: "Show or set the run speed (1-10)", Usage: "speed [n]"}, (*Controller).cmdSpeed},
		{CommandHelp{Name: "help", Aliases: []string{"h", "?"}, Description: "Show help", Usage: "help"}, (*Controller).cmdHelp},
		{CommandHelp{Name: "quit", Aliases: []string{"q", "exit"}, Description: "Exit debugger", Usage: "quit"}, (*Controller).cmdQuit},
	}
}

// Commands returns the help of every command, in display order
func Commands() []CommandHelp {
	help := make([]CommandHelp, len(commands))
	for i, cmd := range commands {
		help[i] = cmd.help
	}
	return help
}

func lookupCommand(name string) (command, bool) {
	name = strings.ToLower(name)
	for _, cmd := range commands {
		if cmd.help.Name == name {
			return cmd, true
		}
		for _, alias := range cmd.help.Aliases {
			if alias == name {
				return cmd, true
			}
		}
	}
	return command{}, false
}

// Execute parses and runs one command line. An empty line repeats the last
// command. ctx bounds long runs.
func (c *Controller) Execute(ctx context.Context, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		line = c.lastCommand
	}
	if line == "" {
		return
	}

	fields := strings.Fields(line)
	cmd, ok := lookupCommand(fields[0])
	if !ok {
		c.ui.ShowMessage(LevelError, "Unknown command %q. Type 'help' for a list of commands.", fields[0])
		return
	}

	c.lastCommand = line
	cmd.run(c, ctx, fields[1:])
}

// Report translates an execution result into UI events. Frontends that
// drive runs with their own timer use it to report Tick results.
func (c *Controller) Report(result ExecutionResult) {
	event := EventData{
		Line:          result.Line,
		Text:          c.lineText(result.Line),
		StepsExecuted: result.StepsExecuted,
		Error:         result.Error,
	}

	switch {
	case result.Error != nil:
		event.Event = EventError
		event.Message = result.Error.Error()
		var runtimeErr *machine.RuntimeError
		if errors.As(result.Error, &runtimeErr) {
			event.Line, event.Text = runtimeErr.Line, runtimeErr.Text
		}
	case result.Mode == ModeHalted && result.Reason == HaltProgramEnd:
		event.Event = EventProgramTerminated
		event.ExitCode = c.backend.Snapshot().ExitCode
	case result.Mode == ModeHalted && result.Reason == HaltBreakpoint:
		event.Event = EventBreakpointHit
	case result.Mode == ModeAwaitingInput:
		event.Event = EventAwaitingInput
	case result.Mode == ModeIdle && result.StepsExecuted == 0:
		event.Event = EventInterrupted
	default:
		event.Event = EventStepped
	}

	c.ui.OnEvent(event)
}

func (c *Controller) lineText(line int) string {
	program := c.backend.Program()
	if program == nil {
		return ""
	}
	idx, ok := program.IndexOfLine(line)
	if !ok {
		return ""
	}
	return program.Instructions[idx].Text
}

// resolveLine accepts a source line number or a label name
func (c *Controller) resolveLine(arg string) (int, error) {
	if line, err := strconv.Atoi(arg); err == nil {
		return line, nil
	}
	program := c.backend.Program()
	if program == nil {
		return 0, ErrNoProgram
	}
	idx, ok := program.Labels.Lookup(arg)
	if !ok {
		return 0, fmt.Errorf("unknown line or label %q", arg)
	}
	return idx + 1, nil
}

func (c *Controller) cmdStep(ctx context.Context, args []string) {
	count := 1
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			c.ui.ShowMessage(LevelError, "Invalid step count %q", args[0])
			return
		}
		count = n
	}

	var result ExecutionResult
	steps := 0
	for i := 0; i < count && ctx.Err() == nil; i++ {
		result = c.backend.Step()
		steps += result.StepsExecuted
		if result.Mode != ModeIdle || result.Error != nil {
			break
		}
	}
	result.StepsExecuted = steps
	c.Report(result)
}

func (c *Controller) cmdContinue(ctx context.Context, args []string) {
	c.Report(c.backend.Continue(ctx))
}

func (c *Controller) withLine(args []string, usage string, f func(line int) error) {
	if len(args) == 0 {
		c.ui.ShowMessage(LevelError, "Usage: %s", usage)
		return
	}
	line, err := c.resolveLine(args[0])
	if err == nil {
		err = f(line)
	}
	if err != nil {
		c.ui.ShowMessage(LevelError, "%v", err)
	}
}

func (c *Controller) cmdBreak(ctx context.Context, args []string) {
	c.withLine(args, "break <line|label>", func(line int) error {
		bp, err := c.backend.AddBreakpoint(line)
		if err != nil {
			return err
		}
		c.ui.ShowMessage(LevelSuccess, "Breakpoint set at line %d: %s", bp.Line, c.lineText(bp.Line))
		return nil
	})
}

func (c *Controller) cmdDelete(ctx context.Context, args []string) {
	c.withLine(args, "delete <line|label>", func(line int) error {
		if err := c.backend.RemoveBreakpoint(line); err != nil {
			return err
		}
		c.ui.ShowMessage(LevelSuccess, "Breakpoint at line %d deleted", line)
		return nil
	})
}

func (c *Controller) cmdToggle(ctx context.Context, args []string) {
	c.withLine(args, "toggle <line|label>", func(line int) error {
		bp, err := c.backend.ToggleBreakpoint(line)
		if err != nil {
			return err
		}
		state := "disabled"
		if bp.Enabled {
			state = "enabled"
		}
		c.ui.ShowMessage(LevelSuccess, "Breakpoint at line %d %s", line, state)
		return nil
	})
}

func (c *Controller) cmdCond(ctx context.Context, args []string) {
	c.withLine(args, "cond <line|label> [expr]", func(line int) error {
		condition := strings.Join(args[1:], " ")
		if err := c.backend.SetBreakpointCondition(line, condition); err != nil {
			return err
		}
		if condition == "" {
			c.ui.ShowMessage(LevelSuccess, "Breakpoint at line %d is now unconditional", line)
		} else {
			c.ui.ShowMessage(LevelSuccess, "Breakpoint at line %d stops when %s", line, condition)
		}
		return nil
	})
}

func (c *Controller) cmdList(ctx context.Context, args []string) {
	bps := c.backend.Breakpoints()
	if len(bps) == 0 {
		c.ui.ShowMessage(LevelInfo, "No breakpoints set.")
		return
	}
	c.ui.ShowBreakpoints(bps)
}

func (c *Controller) cmdSource(ctx context.Context, args []string) {
	around := 5
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
			around = n
		}
	}

	program := c.backend.Program()
	if program == nil {
		c.ui.ShowMessage(LevelError, "%v", ErrNoProgram)
		return
	}

	snapshot := c.backend.Snapshot()
	breakpoints := make(map[int]bool)
	for _, bp := range snapshot.Breakpoints {
		breakpoints[bp.Line] = bp.Enabled
	}

	current := snapshot.Line
	if current == 0 {
		current = len(program.Instructions)
	}
	first := max(current-around, 1)
	last := min(current+around, len(program.Instructions))

	var lines []SourceLine
	for line := first; line <= last; line++ {
		lines = append(lines, SourceLine{
			Line:          line,
			Text:          program.Instructions[line-1].Text,
			IsCurrent:     line == snapshot.Line,
			HasBreakpoint: breakpoints[line],
		})
	}
	c.ui.ShowSource(lines)
}

func (c *Controller) cmdPrint(ctx context.Context, args []string) {
	expr := strings.Join(args, " ")
	value, err := c.backend.Eval(expr)
	c.ui.ShowEvalResult(expr, value, err)
}

func (c *Controller) cmdSet(ctx context.Context, args []string) {
	if len(args) < 2 {
		c.ui.ShowMessage(LevelError, "Usage: set <reg> <expr>")
		return
	}
	value, err := c.backend.Eval(strings.Join(args[1:], " "))
	if err == nil {
		err = c.backend.SetRegister(args[0], uint16(value))
	}
	if err != nil {
		c.ui.ShowMessage(LevelError, "Failed to set %s: %v", args[0], err)
		return
	}
	c.ui.ShowMessage(LevelSuccess, "%s = %04XH", strings.ToUpper(args[0]), uint16(value))
}

// address evaluates "seg:offset" (segment defaults to DS) to a physical address
func (c *Controller) address(expr string) (uint32, error) {
	segment, offset := "DS", expr
	if before, after, ok := strings.Cut(expr, ":"); ok {
		segment, offset = before, after
	}
	seg, err := c.backend.Eval(segment)
	if err != nil {
		return 0, err
	}
	off, err := c.backend.Eval(offset)
	if err != nil {
		return 0, err
	}
	return machine.Physical(uint16(seg), uint16(off)), nil
}

func (c *Controller) cmdMemory(ctx context.Context, args []string) {
	if len(args) == 0 {
		c.ui.ShowMessage(LevelError, "Usage: mem <[seg:]offset> [count]")
		return
	}
	addr, err := c.address(args[0])
	if err != nil {
		c.ui.ShowMessage(LevelError, "Invalid address %q: %v", args[0], err)
		return
	}

	count := 64
	if len(args) > 1 {
		if n, err := strconv.Atoi(args[1]); err == nil && n > 0 {
			count = n
		}
	}
	count = min(count, int(machine.MemorySize-addr))

	data, err := c.backend.ReadMemory(addr, count)
	if err != nil {
		c.ui.ShowMessage(LevelError, "Failed to read memory at %05XH: %v", addr, err)
		return
	}
	c.ui.ShowMemory(addr, data)
}

func (c *Controller) cmdScreen(ctx context.Context, args []string) {
	c.ui.ShowScreen(c.backend.Snapshot().Snapshot)
}

func (c *Controller) cmdRegisters(ctx context.Context, args []string) {
	snapshot := c.backend.Snapshot()
	c.ui.ShowRegisters(snapshot.Registers, snapshot.Flags)
}

func (c *Controller) cmdStack(ctx context.Context, args []string) {
	count := 8
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
			count = n
		}
	}

	snapshot := c.backend.Snapshot()
	regs := snapshot.Registers
	var words []uint16
	for i := 0; i < count; i++ {
		offset := regs.SP + uint16(2*i)
		if offset < regs.SP {
			break
		}
		data, err := c.backend.ReadMemory(machine.Physical(regs.SS, offset), 2)
		if err != nil {
			break
		}
		words = append(words, uint16(data[0])|uint16(data[1])<<8)
	}
	c.ui.ShowStack(regs.SP, words, snapshot.CallStack)
}

var namedKeys = map[string]rune{
	"enter":     '\r',
	"esc":       0x1B,
	"backspace": '\b',
	"space":     ' ',
}

func (c *Controller) cmdKey(ctx context.Context, args []string) {
	if len(args) == 0 {
		c.ui.ShowMessage(LevelError, "Usage: key <text>")
		return
	}

	var keys []rune
	for i, arg := range args {
		if r, ok := namedKeys[strings.ToLower(arg)]; ok {
			keys = append(keys, r)
			continue
		}
		if i > 0 {
			keys = append(keys, ' ')
		}
		keys = append(keys, []rune(arg)...)
	}

	var result ExecutionResult
	for _, r := range keys {
		result = c.backend.SubmitKey(machine.KeyFromRune(r))
	}
	if result.Mode == ModeRunning {
		if c.ticked {
			c.ui.ShowMessage(LevelInfo, "Resumed")
			return
		}
		result = c.backend.Continue(ctx)
	}
	if result.StepsExecuted > 0 || result.Mode != ModeIdle {
		c.Report(result)
	}
}

func (c *Controller) cmdReload(ctx context.Context, args []string) {
	if err := c.backend.Reload(); err != nil {
		c.ui.ShowMessage(LevelError, "Failed to reload: %v", err)
		return
	}
	snapshot := c.backend.Snapshot()
	c.ui.OnEvent(EventData{Event: EventProgramLoaded, Line: snapshot.Line, Text: c.lineText(snapshot.Line)})
}

func (c *Controller) cmdSpeed(ctx context.Context, args []string) {
	if len(args) == 0 {
		c.ui.ShowMessage(LevelInfo, "Speed %v", c.backend.Speed())
		return
	}
	n, err := strconv.Atoi(args[0])
	if err == nil {
		err = c.backend.SetSpeed(Speed(n))
	}
	if err != nil {
		c.ui.ShowMessage(LevelError, "Invalid speed %q: %v", args[0], err)
		return
	}
	c.ui.ShowMessage(LevelSuccess, "Speed %v", Speed(n))
}

func (c *Controller) cmdHelp(ctx context.Context, args []string) {
	c.ui.ShowHelp(Commands())
}

func (c *Controller) cmdQuit(ctx context.Context, args []string) {
	c.running = false
	c.ui.ShowMessage(LevelSuccess, "Exiting debugger.")
}
