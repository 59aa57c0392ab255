// Package debugger drives the emulator for interactive frontends. The Backend
// is the execution state machine; the Controller maps textual commands onto
// it and reports back through a DebuggerUI, so that different frontends (REPL,
// TUI, tests) can reuse the same core.
package debugger

import (
	"github.com/Manu343726/emu8086/pkg/hw/cpu/interpreter"
	"github.com/Manu343726/emu8086/pkg/hw/cpu/machine"
)

// DebugEvent represents events that can be sent to the UI
type DebugEvent int

const (
	// EventProgramLoaded is fired when a program is loaded or reloaded
	EventProgramLoaded DebugEvent = iota
	// EventStepped is fired after stepping one or more instructions
	EventStepped
	// EventBreakpointHit is fired when a breakpoint is hit
	EventBreakpointHit
	// EventProgramTerminated is fired when the program ends
	EventProgramTerminated
	// EventAwaitingInput is fired when the program waits for a key
	EventAwaitingInput
	// EventError is fired when an instruction fails
	EventError
	// EventInterrupted is fired when a run is paused by the user
	EventInterrupted
)

// String returns the string representation of a DebugEvent
func (e DebugEvent) String() string {
	switch e {
	case EventProgramLoaded:
		return "program_loaded"
	case EventStepped:
		return "stepped"
	case EventBreakpointHit:
		return "breakpoint_hit"
	case EventProgramTerminated:
		return "program_terminated"
	case EventAwaitingInput:
		return "awaiting_input"
	case EventError:
		return "error"
	case EventInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// EventData contains data associated with a debug event
type EventData struct {
	Event DebugEvent
	// Line is the source line of the next instruction
	Line int
	// Text is the source text of that line
	Text string
	// Message associated with the event
	Message string
	// Error if any
	Error error
	// ExitCode for program termination
	ExitCode uint8
	// StepsExecuted by the operation that raised the event
	StepsExecuted int
}

// MessageLevel indicates the severity of a message
type MessageLevel int

const (
	LevelInfo MessageLevel = iota
	LevelSuccess
	LevelWarning
	LevelError
	LevelDebug
)

// CommandHelp contains help information for a command
type CommandHelp struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
}

// SourceLine is a line of the program listing
type SourceLine struct {
	Line          int
	Text          string
	IsCurrent     bool
	HasBreakpoint bool
}

// DebuggerUI is the interface presentation layers implement
type DebuggerUI interface {
	// OnEvent is called when a debug event occurs
	OnEvent(event EventData)

	// ShowMessage displays a message to the user
	ShowMessage(level MessageLevel, format string, args ...any)

	// ShowSource displays a window of the program listing
	ShowSource(lines []SourceLine)

	// ShowRegisters displays register and flag values
	ShowRegisters(regs machine.Registers, flags machine.Flags)

	// ShowMemory displays memory contents starting at a physical address
	ShowMemory(addr uint32, data []byte)

	// ShowScreen displays the text screen
	ShowScreen(snapshot machine.Snapshot)

	// ShowStack displays the words above SP and the call frames
	ShowStack(sp uint16, words []uint16, frames []machine.CallFrame)

	// ShowBreakpoints displays the list of breakpoints
	ShowBreakpoints(breakpoints []interpreter.Breakpoint)

	// ShowEvalResult displays the result of an expression evaluation
	ShowEvalResult(expr string, value int64, err error)

	// ShowHelp displays help information
	ShowHelp(commands []CommandHelp)
}
