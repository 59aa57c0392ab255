package interpreter

import (
	"github.com/Manu343726/emu8086/pkg/hw/cpu/machine"
)

var flagInstructions = []*Descriptor{
	{Mnemonic: "CLC", Syntax: "CLC", Description: "CF = 0", Handler: setFlag(func(f *machine.Flags) { f.CF = false })},
	{Mnemonic: "STC", Syntax: "STC", Description: "CF = 1", Handler: setFlag(func(f *machine.Flags) { f.CF = true })},
	{Mnemonic: "CMC", Syntax: "CMC", Description: "CF = !CF", Handler: setFlag(func(f *machine.Flags) { f.CF = !f.CF })},
	{Mnemonic: "CLD", Syntax: "CLD", Description: "DF = 0", Handler: setFlag(func(f *machine.Flags) { f.DF = false })},
	{Mnemonic: "STD", Syntax: "STD", Description: "DF = 1", Handler: setFlag(func(f *machine.Flags) { f.DF = true })},
	{Mnemonic: "CLI", Syntax: "CLI", Description: "IF = 0", Handler: setFlag(func(f *machine.Flags) { f.IF = false })},
	{Mnemonic: "STI", Syntax: "STI", Description: "IF = 1", Handler: setFlag(func(f *machine.Flags) { f.IF = true })},
	{Mnemonic: "NOP", Syntax: "NOP", Description: "Do nothing", Handler: setFlag(func(*machine.Flags) {})},
	{Mnemonic: "CBW", Syntax: "CBW", Description: "Sign extend AL into AX", Handler: cbw},
	{Mnemonic: "CWD", Syntax: "CWD", Description: "Sign extend AX into DX:AX", Handler: cwd},
}

func setFlag(update func(*machine.Flags)) Handler {
	return func(state *machine.State, ops *Operands) (Outcome, error) {
		update(&state.Flags)
		return ops.Continue()
	}
}

func cbw(state *machine.State, ops *Operands) (Outcome, error) {
	state.Registers.AX = uint16(int16(int8(state.Registers.AX)))
	return ops.Continue()
}

func cwd(state *machine.State, ops *Operands) (Outcome, error) {
	if state.Registers.AX&0x8000 != 0 {
		state.Registers.DX = 0xFFFF
	} else {
		state.Registers.DX = 0
	}
	return ops.Continue()
}
