package debugger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Manu343726/emu8086/pkg/hw/cpu/bios"
	"github.com/Manu343726/emu8086/pkg/hw/cpu/machine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T, source string) *Backend {
	t.Helper()
	b := NewBackend(WithClock(bios.FixedClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))), WithSpeed(MaxSpeed))
	program := b.Load(source)
	require.Empty(t, program.Diagnostics)
	return b
}

// runUntilStopped ticks until the driver leaves ModeRunning
func runUntilStopped(t *testing.T, b *Backend) ExecutionResult {
	t.Helper()
	result := b.Run()
	for n := 0; n < 1000 && result.Mode == ModeRunning; n++ {
		result = b.Tick()
	}
	require.NotEqual(t, ModeRunning, result.Mode, "run did not stop")
	return result
}

const countSource = `MOV CX, 3
MOV AX, 0
AGAIN:
INC AX
LOOP AGAIN
MOV BX, AX`

func TestBackend_StepSkipsEmptyRecords(t *testing.T) {
	b := newBackend(t, countSource)

	for i := 0; i < 2; i++ {
		result := b.Step()
		assert.Equal(t, ModeIdle, result.Mode)
		assert.Equal(t, 1, result.StepsExecuted)
	}
	assert.Equal(t, 3, b.Snapshot().Line, "next record is the label line")

	result := b.Step()
	assert.Equal(t, 1, result.StepsExecuted)
	assert.Equal(t, uint16(1), b.Snapshot().Registers.AX, "INC executed through the empty record")
	assert.Equal(t, 5, result.Line)
}

func TestBackend_RunToEnd(t *testing.T) {
	b := newBackend(t, countSource)

	result := runUntilStopped(t, b)

	assert.Equal(t, ModeHalted, result.Mode)
	assert.Equal(t, HaltProgramEnd, result.Reason)
	assert.NoError(t, result.Error)
	snapshot := b.Snapshot()
	assert.Equal(t, uint16(3), snapshot.Registers.BX)
	assert.Equal(t, 9, snapshot.Executed)

	assert.Equal(t, ModeHalted, b.Step().Mode, "stepping past the end does nothing")
	assert.Equal(t, ModeHalted, b.Run().Mode)
}

func TestBackend_BatchSize(t *testing.T) {
	b := newBackend(t, "L: INC AX\nJMP L")
	require.NoError(t, b.SetSpeed(4))

	b.Run()
	result := b.Tick()

	assert.Equal(t, ModeRunning, result.Mode)
	assert.Equal(t, 5, result.StepsExecuted)
	assert.Equal(t, uint16(3), b.Snapshot().Registers.AX)

	b.Pause()
	mode, _ := b.Mode()
	assert.Equal(t, ModeIdle, mode)
	assert.Equal(t, 0, b.Tick().StepsExecuted, "ticks do nothing unless running")
}

func TestBackend_BreakpointHaltsBeforeInstruction(t *testing.T) {
	b := newBackend(t, `MOV AX, 1
MOV BX, 2
TARGET: MOV CX, 3
MOV DX, 4`)
	_, err := b.AddBreakpoint(3)
	require.NoError(t, err)

	result := runUntilStopped(t, b)

	assert.Equal(t, HaltBreakpoint, result.Reason)
	assert.Equal(t, 3, result.BreakpointLine)
	assert.Equal(t, 3, result.Line)
	regs := b.Snapshot().Registers
	assert.Equal(t, uint16(1), regs.AX)
	assert.Equal(t, uint16(2), regs.BX)
	assert.Equal(t, uint16(0), regs.CX, "breakpointed instruction not executed")

	result = runUntilStopped(t, b)
	assert.Equal(t, HaltProgramEnd, result.Reason, "resuming leaves the breakpoint")
	assert.Equal(t, uint16(4), b.Snapshot().Registers.DX)
	assert.Equal(t, 1, b.Breakpoints()[0].HitCount)
}

func TestBackend_BreakpointInLoopHitsEveryIteration(t *testing.T) {
	b := newBackend(t, countSource)
	_, err := b.AddBreakpoint(4)
	require.NoError(t, err)

	hits := 0
	for {
		result := runUntilStopped(t, b)
		if result.Reason != HaltBreakpoint {
			break
		}
		hits++
	}
	assert.Equal(t, 3, hits)
}

func TestBackend_BreakpointConditions(t *testing.T) {
	b := newBackend(t, countSource)
	_, err := b.AddBreakpoint(4)
	require.NoError(t, err)
	require.NoError(t, b.SetBreakpointCondition(4, "AX == 2"))

	result := runUntilStopped(t, b)
	require.Equal(t, HaltBreakpoint, result.Reason)
	assert.Equal(t, uint16(2), b.Snapshot().Registers.AX)

	t.Run("disabled breakpoints do not fire", func(t *testing.T) {
		_, err := b.ToggleBreakpoint(4)
		require.NoError(t, err)
		assert.Equal(t, HaltProgramEnd, runUntilStopped(t, b).Reason)
	})
}

func TestBackend_InvalidConditionsAreRejected(t *testing.T) {
	b := newBackend(t, countSource)
	_, err := b.AddBreakpoint(5)
	require.NoError(t, err)

	for _, condition := range []string{"AX == ) (", "NOPE == 1", "AX ==", "(CX > 1", "AX 1"} {
		t.Run(condition, func(t *testing.T) {
			assert.True(t, errors.Is(b.SetBreakpointCondition(5, condition), ErrExpression))
		})
	}

	bp := b.Breakpoints()[0]
	assert.Empty(t, bp.Condition, "a rejected condition is not stored")

	require.NoError(t, b.SetBreakpointCondition(5, "CX == 9"))
	assert.Equal(t, HaltProgramEnd, runUntilStopped(t, b).Reason)
}

func TestBackend_ConditionErrorAtRunTimeFires(t *testing.T) {
	b := newBackend(t, countSource)
	_, err := b.AddBreakpoint(5)
	require.NoError(t, err)
	require.NoError(t, b.SetBreakpointCondition(5, "AX / BX == 1"), "division is only checked when it runs")

	result := runUntilStopped(t, b)
	assert.Equal(t, HaltBreakpoint, result.Reason)
	assert.Equal(t, 5, result.BreakpointLine)
}

func TestBackend_BreakpointValidation(t *testing.T) {
	b := newBackend(t, countSource)

	_, err := b.AddBreakpoint(0)
	assert.True(t, errors.Is(err, ErrInvalidBreakpoint))
	_, err = b.AddBreakpoint(7)
	assert.True(t, errors.Is(err, ErrInvalidBreakpoint))

	assert.True(t, errors.Is(b.RemoveBreakpoint(2), ErrInvalidBreakpoint))
	assert.True(t, errors.Is(b.SetBreakpointCondition(2, "AX"), ErrInvalidBreakpoint))

	bp, err := b.AddBreakpoint(3)
	require.NoError(t, err)
	assert.Equal(t, 4, bp.Line, "label lines move to the next instruction")
	_, err = b.ToggleBreakpoint(3)
	assert.NoError(t, err)

	_, err = b.AddBreakpoint(2)
	require.NoError(t, err)
	assert.True(t, errors.Is(b.SetBreakpointCondition(2, "AX = 1"), ErrExpression))
	assert.NoError(t, b.RemoveBreakpoint(2))
	assert.Len(t, b.Breakpoints(), 1)
}

const echoSource = `MOV AH, 1
INT 21H
MOV BL, AL
MOV AH, 4CH
MOV AL, 7
INT 21H`

func TestBackend_AwaitingInputWhileRunning(t *testing.T) {
	b := newBackend(t, echoSource)

	result := runUntilStopped(t, b)
	assert.Equal(t, ModeAwaitingInput, result.Mode)
	assert.Equal(t, 1, result.StepsExecuted)
	assert.Equal(t, 3, result.Line, "IP already past the INT")

	result = b.SubmitKey(machine.KeyFromRune('x'))
	assert.Equal(t, ModeRunning, result.Mode)

	for result.Mode == ModeRunning {
		result = b.Tick()
	}
	assert.Equal(t, HaltProgramEnd, result.Reason)

	snapshot := b.Snapshot()
	assert.Equal(t, uint16('x'), snapshot.Registers.BX)
	assert.Equal(t, uint8(7), snapshot.ExitCode)
	assert.Equal(t, uint8('x'), snapshot.Screen[0][0].Char, "echoed")
}

func TestBackend_AwaitingInputWhileStepping(t *testing.T) {
	b := newBackend(t, echoSource)

	b.Step()
	result := b.Step()
	assert.Equal(t, ModeAwaitingInput, result.Mode)
	assert.Equal(t, 0, result.StepsExecuted)
	assert.Equal(t, ModeAwaitingInput, b.Step().Mode, "steps wait for the key")

	result = b.SubmitKey(machine.KeyFromRune('q'))
	assert.Equal(t, ModeIdle, result.Mode)
	assert.Equal(t, 1, result.StepsExecuted)
	assert.Equal(t, uint16(0x0171), b.Snapshot().Registers.AX)
}

func TestBackend_KeysQueuedAheadAreConsumedInOrder(t *testing.T) {
	b := newBackend(t, `MOV AH, 0
INT 16H
MOV BX, AX
MOV AH, 0
INT 16H`)

	b.SubmitKey(machine.KeyEvent{ASCII: 'a', Scan: 0x1E})
	b.SubmitKey(machine.KeyEvent{ASCII: 'b', Scan: 0x30})

	result := runUntilStopped(t, b)
	assert.Equal(t, HaltProgramEnd, result.Reason)
	regs := b.Snapshot().Registers
	assert.Equal(t, uint16(0x1E61), regs.BX)
	assert.Equal(t, uint16(0x3062), regs.AX)
}

func TestBackend_ErrorCapture(t *testing.T) {
	b := newBackend(t, `MOV AX, 5
MOV BX, 0
DIV BX
MOV CX, 1`)

	result := runUntilStopped(t, b)

	assert.Equal(t, ModeHalted, result.Mode)
	assert.Equal(t, HaltError, result.Reason)
	assert.Equal(t, 2, result.StepsExecuted)

	var runtimeErr *machine.RuntimeError
	require.True(t, errors.As(result.Error, &runtimeErr))
	assert.Equal(t, 3, runtimeErr.Line)
	assert.Equal(t, "DIV BX", runtimeErr.Text)
	assert.True(t, errors.Is(result.Error, machine.ErrDivideByZero))

	regs := b.Snapshot().Registers
	assert.Equal(t, uint16(5), regs.AX)
	assert.Equal(t, uint16(0), regs.BX)
	assert.Equal(t, uint16(2), regs.IP)
}

func TestBackend_ReloadClearsState(t *testing.T) {
	b := newBackend(t, countSource)
	_, err := b.AddBreakpoint(5)
	require.NoError(t, err)
	b.SubmitKey(machine.KeyFromRune('k'))
	b.Step()
	b.Step()
	require.NoError(t, b.WriteMemory(machine.Physical(machine.DefaultDS, 0), []byte{0xAA}))

	require.NoError(t, b.Reload())

	snapshot := b.Snapshot()
	assert.Equal(t, ModeIdle, snapshot.Mode)
	assert.Equal(t, machine.DefaultRegisters(), snapshot.Registers)
	assert.Equal(t, machine.DefaultFlags(), snapshot.Flags)
	assert.Empty(t, snapshot.Breakpoints)
	assert.Equal(t, 0, snapshot.Keys)
	assert.Equal(t, 0, snapshot.Executed)
	assert.Equal(t, 1, snapshot.Line)

	data, err := b.ReadMemory(machine.Physical(machine.DefaultDS, 0), 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, data)
}

func TestBackend_MutationsRejectedWhileRunning(t *testing.T) {
	b := newBackend(t, "L: JMP L")
	b.Run()

	assert.True(t, errors.Is(b.WriteMemory(0, []byte{1}), ErrBusy))
	assert.True(t, errors.Is(b.SetRegister("AX", 1), ErrBusy))

	b.Pause()
	assert.NoError(t, b.SetRegister("ax", 0x1234))
	assert.NoError(t, b.SetRegister("ZF", 1))
	snapshot := b.Snapshot()
	assert.Equal(t, uint16(0x1234), snapshot.Registers.AX)
	assert.True(t, snapshot.Flags.ZF)
	assert.Error(t, b.SetRegister("XYZ", 1))
}

func TestBackend_Continue(t *testing.T) {
	b := newBackend(t, countSource)

	result := b.Continue(context.Background())
	assert.Equal(t, HaltProgramEnd, result.Reason)
	assert.Equal(t, 9, result.StepsExecuted)

	t.Run("cancelled context pauses", func(t *testing.T) {
		b := newBackend(t, "L: JMP L")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result := b.Continue(ctx)
		assert.Equal(t, ModeIdle, result.Mode)
	})
}

func TestBackend_NoProgram(t *testing.T) {
	b := NewBackend()

	assert.True(t, errors.Is(b.Step().Error, ErrNoProgram))
	assert.True(t, errors.Is(b.Run().Error, ErrNoProgram))
	assert.True(t, errors.Is(b.Reload(), ErrNoProgram))
	_, err := b.AddBreakpoint(1)
	assert.True(t, errors.Is(err, ErrNoProgram))
}

func TestSpeed(t *testing.T) {
	assert.Equal(t, 1, MinSpeed.BatchSize())
	assert.Equal(t, 500*time.Millisecond, MinSpeed.TickInterval())
	assert.Equal(t, 5000, MaxSpeed.BatchSize())
	assert.Equal(t, 16*time.Millisecond, MaxSpeed.TickInterval())
	assert.Equal(t, 5000, Speed(42).BatchSize(), "out of range speeds clamp")

	b := NewBackend()
	assert.True(t, errors.Is(b.SetSpeed(0), ErrInvalidSpeed))
	assert.True(t, errors.Is(b.SetSpeed(11), ErrInvalidSpeed))
	assert.NoError(t, b.SetSpeed(3))
	assert.Equal(t, Speed(3), b.Speed())
}
