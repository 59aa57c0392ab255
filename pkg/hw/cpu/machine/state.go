package machine

// CallFrame records a pending CALL for call stack display
type CallFrame struct {
	// Label is the called procedure
	Label string
	// ReturnIndex is the instruction index RET will return to
	ReturnIndex uint16
	// SP is the stack pointer right after the return address was pushed
	SP uint16
}

// State is the complete architectural state of the emulated machine. It is
// threaded explicitly through every instruction handler and interrupt service.
type State struct {
	Registers Registers
	Flags     Flags
	Memory    *Memory
	Screen    *Screen
	Keys      KeyQueue
	CallStack []CallFrame

	// Terminated is set when the program asks to end (DOS terminate, HLT...)
	Terminated bool
	// ExitCode is the code passed to the terminate service
	ExitCode uint8
}

// NewState creates a machine with a zeroed 1 MiB arena and reset registers
func NewState() *State {
	mem := NewMemory(MemorySize)
	s := &State{
		Memory: mem,
		Screen: NewScreen(mem),
	}
	s.Reset()
	return s
}

// Reset reinitializes every piece of owned state: memory is zeroed, the
// screen is blanked, registers and flags get their defaults and the call
// stack and key queue are emptied.
func (s *State) Reset() {
	s.Memory.Clear()
	s.Screen.Reset()
	s.Registers = DefaultRegisters()
	s.Flags = DefaultFlags()
	s.Keys.Clear()
	s.CallStack = nil
	s.Terminated = false
	s.ExitCode = 0
}

// DataAddress returns the physical address of a DS-relative offset
func (s *State) DataAddress(offset uint16) uint32 {
	return Physical(s.Registers.DS, offset)
}

// Push pre-decrements SP by 2 and writes value at SS:SP
func (s *State) Push(value uint16) error {
	sp := s.Registers.SP - 2
	if err := s.Memory.Write16(Physical(s.Registers.SS, sp), value); err != nil {
		return err
	}
	s.Registers.SP = sp
	return nil
}

// Pop reads the word at SS:SP and post-increments SP by 2
func (s *State) Pop() (uint16, error) {
	value, err := s.Memory.Read16(Physical(s.Registers.SS, s.Registers.SP))
	if err != nil {
		return 0, err
	}
	s.Registers.SP += 2
	return value, nil
}

// PushFrame records a CALL
func (s *State) PushFrame(frame CallFrame) {
	s.CallStack = append(s.CallStack, frame)
}

// PopFrame drops the innermost CALL record
func (s *State) PopFrame() (CallFrame, bool) {
	if len(s.CallStack) == 0 {
		return CallFrame{}, false
	}
	frame := s.CallStack[len(s.CallStack)-1]
	s.CallStack = s.CallStack[:len(s.CallStack)-1]
	return frame, true
}

// Snapshot is an immutable copy of the state exposed to collaborators
type Snapshot struct {
	Registers Registers
	Flags     Flags
	Cursor    Cursor
	Columns   int
	CallStack []CallFrame
	Screen    [][]Cell
	Keys      int

	Terminated bool
	ExitCode   uint8
}

// Snapshot copies the registers, flags, screen cells and call stack
func (s *State) Snapshot() Snapshot {
	cells := make([][]Cell, ScreenRows)
	for row := range cells {
		cells[row] = make([]Cell, s.Screen.Columns())
		for col := range cells[row] {
			cells[row][col] = s.Screen.At(row, col)
		}
	}
	return Snapshot{
		Registers: s.Registers,
		Flags:     s.Flags,
		Cursor:    s.Screen.Cursor,
		Columns:   s.Screen.Columns(),
		CallStack: append([]CallFrame(nil), s.CallStack...),
		Screen:    cells,
		Keys:      s.Keys.Len(),

		Terminated: s.Terminated,
		ExitCode:   s.ExitCode,
	}
}
