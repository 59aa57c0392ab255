package interpreter

import (
	"errors"
	"strings"
	"testing"

	"github.com/Manu343726/emu8086/pkg/hw/cpu/loader"
	"github.com/Manu343726/emu8086/pkg/hw/cpu/machine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeInterrupts implements INT 16h (blocking key read) and INT 20h
type fakeInterrupts struct {
	calls []uint8
}

func (f *fakeInterrupts) Invoke(state *machine.State, vector uint8) error {
	f.calls = append(f.calls, vector)
	switch vector {
	case 0x16:
		key, ok := state.Keys.Pop()
		if !ok {
			return machine.ErrInputRequired
		}
		state.Registers.AX = key.Word()
	case 0x20:
		state.Terminated = true
	}
	return nil
}

func newInterpreter(t *testing.T, source string) (*Interpreter, *fakeInterrupts) {
	t.Helper()
	program := loader.Load(source)
	require.Empty(t, program.Diagnostics)
	state := machine.NewState()
	require.NoError(t, program.Install(state))
	interrupts := &fakeInterrupts{}
	return New(state, program, interrupts), interrupts
}

// runToEnd steps until the program ends and fails on any error
func runToEnd(t *testing.T, interp *Interpreter) {
	t.Helper()
	for n := 0; n < 100000; n++ {
		result, err := interp.Step()
		require.NoError(t, err)
		if result.Status == StatusEnded {
			return
		}
	}
	t.Fatal("program did not end")
}

// runSource loads and runs a program, returning the final state
func runSource(t *testing.T, source string) *machine.State {
	t.Helper()
	interp, _ := newInterpreter(t, source)
	runToEnd(t, interp)
	return interp.State()
}

// runUntilError runs a program expecting it to fail
func runUntilError(t *testing.T, interp *Interpreter) error {
	t.Helper()
	for n := 0; n < 100000; n++ {
		result, err := interp.Step()
		if err != nil {
			return err
		}
		require.NotEqual(t, StatusEnded, result.Status, "program ended without error")
	}
	t.Fatal("program did not fail")
	return nil
}

func lines(instrs ...string) string {
	return strings.Join(instrs, "\n")
}

func TestScenario_AddWords(t *testing.T) {
	state := runSource(t, lines("MOV AX,1234H", "MOV BX,5678H", "ADD AX,BX"))

	assert.Equal(t, uint16(0x68AC), state.Registers.AX)
	assert.False(t, state.Flags.CF)
	assert.False(t, state.Flags.OF)
	assert.False(t, state.Flags.SF)
	assert.False(t, state.Flags.ZF)
}

func TestScenario_DecrementThroughZero(t *testing.T) {
	interp, _ := newInterpreter(t, lines("MOV CX,1", "DEC CX", "DEC CX"))
	state := interp.State()

	_, err := interp.Step()
	require.NoError(t, err)
	_, err = interp.Step()
	require.NoError(t, err)
	assert.Equal(t, uint16(0), state.Registers.CX)
	assert.True(t, state.Flags.ZF)

	_, err = interp.Step()
	require.NoError(t, err)
	assert.Equal(t, uint16(0xFFFF), state.Registers.CX)
	assert.False(t, state.Flags.ZF)
	assert.True(t, state.Flags.SF)
}

func TestScenario_DivideByZero(t *testing.T) {
	interp, _ := newInterpreter(t, lines("MOV AX,5", "MOV BX,0", "DIV BX"))

	err := runUntilError(t, interp)

	assert.True(t, errors.Is(err, machine.ErrDivideByZero))
	var runtimeErr *machine.RuntimeError
	require.True(t, errors.As(err, &runtimeErr))
	assert.Equal(t, 3, runtimeErr.Line)
	assert.Equal(t, "DIV BX", runtimeErr.Text)

	state := interp.State()
	assert.Equal(t, uint16(5), state.Registers.AX)
	assert.Equal(t, uint16(0), state.Registers.BX)
	assert.Equal(t, uint16(2), state.Registers.IP, "IP stays on the failing instruction")
}

func TestDivide(t *testing.T) {
	t.Run("byte", func(t *testing.T) {
		state := runSource(t, lines("MOV AX, 17", "MOV BL, 5", "DIV BL"))
		assert.Equal(t, uint16(0x0203), state.Registers.AX)
	})

	t.Run("word", func(t *testing.T) {
		state := runSource(t, lines("MOV DX, 1", "MOV AX, 0", "MOV BX, 10H", "DIV BX"))
		assert.Equal(t, uint16(0x1000), state.Registers.AX)
		assert.Equal(t, uint16(0), state.Registers.DX)
	})

	t.Run("overflow", func(t *testing.T) {
		interp, _ := newInterpreter(t, lines("MOV AX, 1000H", "MOV BL, 2", "DIV BL"))
		err := runUntilError(t, interp)
		assert.True(t, errors.Is(err, machine.ErrDivideOverflow))
		assert.Equal(t, uint16(0x1000), interp.State().Registers.AX)
	})

	t.Run("signed", func(t *testing.T) {
		state := runSource(t, lines("MOV AX, -7", "MOV BL, 2", "IDIV BL"))
		assert.Equal(t, uint16(0xFD), state.Registers.AX&0xFF, "quotient -3")
		assert.Equal(t, uint16(0xFF), state.Registers.AX>>8, "remainder -1")
	})
}

func TestMultiply(t *testing.T) {
	t.Run("byte without high part", func(t *testing.T) {
		state := runSource(t, lines("MOV AL, 10", "MOV BL, 12", "MUL BL"))
		assert.Equal(t, uint16(120), state.Registers.AX)
		assert.False(t, state.Flags.CF)
		assert.False(t, state.Flags.OF)
	})

	t.Run("word with high part", func(t *testing.T) {
		state := runSource(t, lines("MOV AX, 1000H", "MOV BX, 100H", "MUL BX"))
		assert.Equal(t, uint16(0x0000), state.Registers.AX)
		assert.Equal(t, uint16(0x0010), state.Registers.DX)
		assert.True(t, state.Flags.CF)
		assert.True(t, state.Flags.OF)
	})

	t.Run("signed", func(t *testing.T) {
		state := runSource(t, lines("MOV AL, -2", "MOV BL, 3", "IMUL BL"))
		assert.Equal(t, uint16(0xFFFA), state.Registers.AX)
		assert.False(t, state.Flags.CF)
	})
}

func TestPushPopRestoresRegisters(t *testing.T) {
	for _, reg := range []string{"AX", "BX", "CX", "DX", "BP", "SI", "DI", "DS", "ES"} {
		t.Run(reg, func(t *testing.T) {
			interp, _ := newInterpreter(t, lines("PUSH "+reg, "MOV "+reg+", 0", "POP "+reg))
			state := interp.State()
			state.Registers.Set(reg, 0xBEEF)
			sp := state.Registers.SP

			runToEnd(t, interp)

			value, _ := state.Registers.Get(reg)
			assert.Equal(t, uint16(0xBEEF), value)
			assert.Equal(t, sp, state.Registers.SP)
		})
	}
}

func TestPushPopStackAndCodeRegisters(t *testing.T) {
	tests := []struct {
		reg   string
		value uint16
	}{
		{"SP", 0x0F00},
		{"CS", 0xBEEF},
		{"SS", 0x2000},
	}

	for _, tt := range tests {
		t.Run(tt.reg, func(t *testing.T) {
			interp, _ := newInterpreter(t, lines("PUSH "+tt.reg, "POP DX", "PUSH "+tt.reg, "POP "+tt.reg))
			state := interp.State()
			state.Registers.Set(tt.reg, tt.value)
			sp := state.Registers.SP

			runToEnd(t, interp)

			assert.Equal(t, tt.value, state.Registers.DX, "pushed value")
			value, _ := state.Registers.Get(tt.reg)
			assert.Equal(t, tt.value, value)
			assert.Equal(t, sp, state.Registers.SP)
		})
	}
}

func TestPushWritesThroughStackSegment(t *testing.T) {
	state := runSource(t, lines("MOV AX, 1234H", "PUSH AX"))

	assert.Equal(t, machine.DefaultSP-2, state.Registers.SP)
	value, err := state.Memory.Read16(machine.Physical(machine.DefaultSS, machine.DefaultSP-2))
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), value)
}

const callSource = `MAIN PROC
    MOV AX, 1
    CALL DOUBLE
    MOV BX, AX
    INT 20H
MAIN ENDP
DOUBLE PROC
    ADD AX, AX
    RET
DOUBLE ENDP
END MAIN`

func TestCallReturnsAfterCall(t *testing.T) {
	interp, _ := newInterpreter(t, callSource)
	state := interp.State()

	for state.Registers.IP != 2 {
		_, err := interp.Step()
		require.NoError(t, err)
	}
	depth := len(state.CallStack)
	sp := state.Registers.SP

	_, err := interp.Step() // CALL
	require.NoError(t, err)
	require.Len(t, state.CallStack, depth+1)
	frame := state.CallStack[depth]
	assert.Equal(t, "DOUBLE", frame.Label)
	assert.Equal(t, uint16(3), frame.ReturnIndex)
	assert.Equal(t, sp-2, frame.SP)

	for state.Registers.IP != 3 {
		_, err := interp.Step()
		require.NoError(t, err)
	}
	assert.Len(t, state.CallStack, depth)
	assert.Equal(t, sp, state.Registers.SP)

	runToEnd(t, interp)
	assert.Equal(t, uint16(2), state.Registers.BX)
}

func TestRetWithoutCallEndsProgram(t *testing.T) {
	state := runSource(t, lines("MOV AX, 1", "RET", "MOV AX, 2"))
	assert.True(t, state.Terminated)
	assert.Equal(t, uint16(1), state.Registers.AX)
}

func TestRetReleasesArguments(t *testing.T) {
	state := runSource(t, lines(
		"PUSH AX",
		"CALL F",
		"HLT",
		"F: RET 2",
	))
	assert.Equal(t, machine.DefaultSP, state.Registers.SP)
}

func TestLoopCounts(t *testing.T) {
	source := lines(
		"MOV BX, 0",
		"L: INC BX",
		"LOOP L",
	)

	for n := uint16(1); n <= 5; n++ {
		interp, _ := newInterpreter(t, source)
		interp.State().Registers.CX = n
		interp.State().Registers.IP = 0
		runToEnd(t, interp)
		assert.Equal(t, n, interp.State().Registers.BX, "CX=%d", n)
		assert.Equal(t, uint16(0), interp.State().Registers.CX)
	}

	t.Run("CX=0 wraps and falls through", func(t *testing.T) {
		interp, _ := newInterpreter(t, source)
		runToEnd(t, interp)
		assert.Equal(t, uint16(1), interp.State().Registers.BX)
		assert.Equal(t, uint16(0xFFFF), interp.State().Registers.CX)
	})
}

func TestLoopConditional(t *testing.T) {
	state := runSource(t, lines(
		"MOV CX, 10",
		"MOV BX, 0",
		"L: INC BX",
		"CMP BX, 3",
		"LOOPNE L",
	))
	assert.Equal(t, uint16(3), state.Registers.BX)
	assert.Equal(t, uint16(7), state.Registers.CX)
}

func TestConditionalJumps(t *testing.T) {
	tests := []struct {
		a, b  string
		jump  string
		taken bool
	}{
		{"5", "5", "JE", true},
		{"5", "6", "JZ", false},
		{"5", "6", "JNE", true},
		{"-1", "1", "JL", true},
		{"-1", "1", "JB", false},
		{"-1", "1", "JA", true},
		{"1", "-1", "JG", true},
		{"1", "-1", "JNAE", true},
		{"3", "3", "JGE", true},
		{"3", "3", "JBE", true},
		{"3", "4", "JNC", false},
		{"3", "4", "JC", true},
		{"4", "3", "JNLE", true},
		{"4", "3", "JNG", false},
	}

	for _, tt := range tests {
		t.Run(tt.a+" "+tt.jump+" "+tt.b, func(t *testing.T) {
			state := runSource(t, lines(
				"MOV AX, "+tt.a,
				"CMP AX, "+tt.b,
				tt.jump+" YES",
				"MOV DX, 0",
				"JMP DONE",
				"YES: MOV DX, 1",
				"DONE:",
			))
			assert.Equal(t, tt.taken, state.Registers.DX == 1)
		})
	}
}

func TestJcxz(t *testing.T) {
	state := runSource(t, lines("MOV CX, 0", "JCXZ SKIP", "MOV AX, 1", "SKIP: NOP"))
	assert.Equal(t, uint16(0), state.Registers.AX)
}

func TestUndefinedLabel(t *testing.T) {
	interp, _ := newInterpreter(t, lines("MOV AX, 1", "JMP NOWHERE"))
	err := runUntilError(t, interp)
	assert.True(t, errors.Is(err, machine.ErrUndefinedLabel))
	assert.Equal(t, uint16(1), interp.State().Registers.AX)
}

func TestJumpQualifiers(t *testing.T) {
	state := runSource(t, lines("JMP SHORT L", "MOV AX, 1", "L: JMP NEAR PTR M", "MOV AX, 2", "M: NOP"))
	assert.Equal(t, uint16(0), state.Registers.AX)
}

func TestUnknownMnemonicIsIgnored(t *testing.T) {
	interp, _ := newInterpreter(t, lines("MOV AX, 1", "FROB AX", "MOV BX, 2"))
	runToEnd(t, interp)
	assert.Equal(t, uint16(2), interp.State().Registers.BX)
	assert.Equal(t, 3, interp.Executed())
}

func TestInvalidOperands(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"write immediate", "MOV 5, AX"},
		{"size mismatch", "MOV AL, BX"},
		{"memory to memory", "X DW 1\nY DW 2\nMOV X, Y"},
		{"unknown operand", "MOV AX, NOPE"},
		{"operand count", "MOV AX"},
		{"lea from register", "LEA AX, BX"},
		{"push byte", "PUSH AL"},
		{"shift count register", "SHL AX, BL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			interp, _ := newInterpreter(t, tt.source)
			err := runUntilError(t, interp)
			assert.True(t, errors.Is(err, machine.ErrInvalidOperand), "got %v", err)
		})
	}
}

func TestMemoryOperands(t *testing.T) {
	source := lines(
		"TABLE DB 10, 20, 30, 40",
		"WVAL DW 1234H",
		"MOV SI, 2",
		"MOV AL, TABLE[SI]",
		"MOV BX, OFFSET TABLE",
		"MOV AH, [BX+SI+1]",
		"MOV CX, WVAL",
		"MOV BYTE PTR [BX], 99",
		"INC WVAL",
		"LEA DI, TABLE[SI+1]",
	)
	state := runSource(t, source)

	assert.Equal(t, uint16(0x281E), state.Registers.AX)
	assert.Equal(t, uint16(0x1234), state.Registers.CX)
	assert.Equal(t, uint16(3), state.Registers.DI)

	b, err := state.Memory.Read8(state.DataAddress(0))
	require.NoError(t, err)
	assert.Equal(t, uint8(99), b)

	w, err := state.Memory.Read16(state.DataAddress(4))
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1235), w, "INC on a DW variable is a word access")
}

func TestXchg(t *testing.T) {
	state := runSource(t, lines("V DW 7", "MOV AX, 1", "MOV BX, 2", "XCHG AX, BX", "XCHG V, AX"))
	assert.Equal(t, uint16(7), state.Registers.AX)
	assert.Equal(t, uint16(1), state.Registers.BX)
	w, _ := state.Memory.Read16(state.DataAddress(0))
	assert.Equal(t, uint16(2), w)
}

func TestSignExtension(t *testing.T) {
	state := runSource(t, lines("MOV AL, 80H", "CBW", "CWD"))
	assert.Equal(t, uint16(0xFF80), state.Registers.AX)
	assert.Equal(t, uint16(0xFFFF), state.Registers.DX)
}

func TestFlagInstructions(t *testing.T) {
	state := runSource(t, lines("STC", "CMC", "STD", "CLI"))
	assert.False(t, state.Flags.CF)
	assert.True(t, state.Flags.DF)
	assert.False(t, state.Flags.IF)
}

func TestFlagsTransfer(t *testing.T) {
	state := runSource(t, lines(
		"STC",
		"PUSHF",
		"CLC",
		"POPF",
		"MOV AH, 0C1H", // SF, ZF, CF
		"SAHF",
		"LAHF",
	))
	assert.True(t, state.Flags.CF)
	assert.True(t, state.Flags.ZF)
	assert.True(t, state.Flags.SF)
	ah, _ := state.Registers.Get("AH")
	assert.Equal(t, uint16(0xC3), ah, "bit 1 of the flags word is always set")
}

func TestShiftsAndRotates(t *testing.T) {
	tests := []struct {
		instr  string
		result uint16
		cf, of bool
	}{
		{"SHL AL, 1", 0x02, true, true},
		{"SAL AL, 1", 0x02, true, true},
		{"SHR AL, 1", 0x40, true, true},
		{"SAR AL, 1", 0xC0, true, false},
		{"ROL AL, 1", 0x03, true, false},
		{"ROR AL, 1", 0xC0, true, false},
		{"SHL AL", 0x02, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.instr, func(t *testing.T) {
			state := runSource(t, lines("MOV AL, 81H", tt.instr))
			al, _ := state.Registers.Get("AL")
			assert.Equal(t, tt.result, al)
			assert.Equal(t, tt.cf, state.Flags.CF, "CF")
			assert.Equal(t, tt.of, state.Flags.OF, "OF")
		})
	}

	t.Run("count in CL", func(t *testing.T) {
		state := runSource(t, lines("MOV AX, 1", "MOV CL, 4", "SHL AX, CL"))
		assert.Equal(t, uint16(0x10), state.Registers.AX)
		assert.False(t, state.Flags.CF)
	})

	t.Run("rotates keep ZF", func(t *testing.T) {
		state := runSource(t, lines("MOV AX, 0", "CMP AX, 0", "MOV AL, 1", "ROR AL, 1"))
		assert.True(t, state.Flags.ZF)
	})
}

func TestLogicClearsCarryAndOverflow(t *testing.T) {
	state := runSource(t, lines("MOV AL, 0FFH", "ADD AL, 1", "MOV AL, 0F0H", "AND AL, 0FH"))
	assert.False(t, state.Flags.CF)
	assert.False(t, state.Flags.OF)
	assert.True(t, state.Flags.ZF)
}

func TestIncPreservesCarry(t *testing.T) {
	state := runSource(t, lines("STC", "MOV AL, 0FFH", "INC AL"))
	assert.True(t, state.Flags.CF)
	assert.True(t, state.Flags.ZF)
}

func TestNeg(t *testing.T) {
	state := runSource(t, lines("MOV AX, 5", "NEG AX"))
	assert.Equal(t, uint16(0xFFFB), state.Registers.AX)
	assert.True(t, state.Flags.CF)
	assert.True(t, state.Flags.SF)
}

func TestAdcSbb(t *testing.T) {
	state := runSource(t, lines(
		"MOV AX, 0FFFFH",
		"MOV DX, 0",
		"ADD AX, 1",
		"ADC DX, 0",
		"MOV BX, 0",
		"MOV CX, 1",
		"SUB BX, 1",
		"SBB CX, 0",
	))
	assert.Equal(t, uint16(1), state.Registers.DX)
	assert.Equal(t, uint16(0), state.Registers.CX)
}

func TestInterruptAwaitingInput(t *testing.T) {
	interp, interrupts := newInterpreter(t, lines("MOV AH, 0", "INT 16H", "MOV BX, AX"))
	state := interp.State()

	_, err := interp.Step()
	require.NoError(t, err)

	result, err := interp.Step()
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingInput, result.Status)
	assert.True(t, interp.AwaitingInput())
	assert.Equal(t, uint16(2), state.Registers.IP)

	result, err = interp.Step()
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingInput, result.Status, "still no key")

	state.Keys.Push(machine.KeyFromRune('A'))
	result, err = interp.Step()
	require.NoError(t, err)
	assert.Equal(t, StatusExecuted, result.Status)
	assert.Equal(t, 1, result.Index)
	assert.False(t, interp.AwaitingInput())

	runToEnd(t, interp)
	assert.Equal(t, uint16('A'), state.Registers.BX&0xFF)
	assert.Equal(t, []uint8{0x16, 0x16, 0x16}, interrupts.calls)
}

func TestEmptyRecordsAreSkipped(t *testing.T) {
	interp, _ := newInterpreter(t, "; comment\n\nNOP")

	result, err := interp.Step()
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, result.Status)

	result, err = interp.Step()
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, result.Status)

	result, err = interp.Step()
	require.NoError(t, err)
	assert.Equal(t, StatusExecuted, result.Status)
	assert.Equal(t, "NOP", result.Instruction.Mnemonic)

	result, err = interp.Step()
	require.NoError(t, err)
	assert.Equal(t, StatusEnded, result.Status)
}

func TestInstructionSet(t *testing.T) {
	for _, mnemonic := range []string{
		"MOV", "XCHG", "LEA", "PUSH", "POP",
		"ADD", "ADC", "SUB", "SBB", "INC", "DEC", "NEG", "MUL", "DIV", "CMP",
		"AND", "OR", "XOR", "NOT", "TEST", "SHL", "SAL", "SHR", "SAR", "ROL", "ROR",
		"JMP", "JE", "JNE", "JG", "JL", "JA", "JB", "LOOP", "CALL", "RET",
		"CLC", "STC", "CMC", "CLD", "STD", "CLI", "STI", "NOP", "CBW", "CWD",
		"INT",
	} {
		_, ok := Lookup(mnemonic)
		assert.True(t, ok, mnemonic)
	}

	all := Instructions()
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Mnemonic, all[i].Mnemonic)
	}
}
