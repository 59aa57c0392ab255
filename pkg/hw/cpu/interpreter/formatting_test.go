package interpreter

import (
	"errors"
	"testing"

	"github.com/Manu343726/emu8086/pkg/hw/cpu/loader"
	"github.com/Manu343726/emu8086/pkg/hw/cpu/machine"
	"github.com/stretchr/testify/assert"
)

func TestTraceFormatter_Plain(t *testing.T) {
	f := NewTraceFormatter(StylePlain)
	instr := &loader.Instruction{Kind: loader.Command, Mnemonic: "MOV", Operands: []string{"AX", "1"}, Line: 7, Text: "MOV AX, 1"}
	regs := machine.Registers{AX: 1, BX: 0x20, SP: 0x800}

	line := f.FormatStep(3, StepResult{Status: StatusExecuted, Index: 6, Instruction: instr}, regs)

	assert.Equal(t, "[    3]    7  AX=0001 BX=0020 CX=0000 DX=0000 SP=0800 | MOV AX, 1", line)
}

func TestTraceFormatter_Summary(t *testing.T) {
	f := NewTraceFormatter(StylePlain)

	out := f.FormatSummary(ExecutionSummary{Steps: 4, FinalIP: 0x10, ExitCode: 2, Reason: ReasonError, Error: errors.New("boom")})

	assert.Contains(t, out, "=== Execution failed ===")
	assert.Contains(t, out, "Steps executed: 4")
	assert.Contains(t, out, "Final IP: 0010H")
	assert.Contains(t, out, "Exit code: 2")
	assert.Contains(t, out, "Error: boom")
}

func TestInstructionFormatter_PlainIsIdentity(t *testing.T) {
	f := NewInstructionFormatter(StylePlain)
	assert.Equal(t, "ADD AX, [BX+2]", f.FormatInstruction("ADD AX, [BX+2]"))
}
