package interpreter

import (
	"github.com/Manu343726/emu8086/pkg/hw/cpu/machine"
)

var moveInstructions = []*Descriptor{
	{Mnemonic: "MOV", Syntax: "MOV dst, src", Description: "Copy src into dst", MinOperands: 2, MaxOperands: 2, Handler: mov},
	{Mnemonic: "XCHG", Syntax: "XCHG a, b", Description: "Swap two operands", MinOperands: 2, MaxOperands: 2, Handler: xchg},
	{Mnemonic: "LEA", Syntax: "LEA reg16, mem", Description: "Load the effective address of a memory operand", MinOperands: 2, MaxOperands: 2, Handler: lea},
	{Mnemonic: "PUSH", Syntax: "PUSH src16", Description: "Decrement SP by 2 and store src at SS:SP", MinOperands: 1, MaxOperands: 1, Handler: push},
	{Mnemonic: "POP", Syntax: "POP dst16", Description: "Load dst from SS:SP and increment SP by 2", MinOperands: 1, MaxOperands: 1, Handler: pop},
	{Mnemonic: "PUSHF", Syntax: "PUSHF", Description: "Push the flags word", Handler: pushf},
	{Mnemonic: "POPF", Syntax: "POPF", Description: "Pop the flags word", Handler: popf},
	{Mnemonic: "LAHF", Syntax: "LAHF", Description: "Load AH with the low byte of the flags word", Handler: lahf},
	{Mnemonic: "SAHF", Syntax: "SAHF", Description: "Store AH into SF, ZF, AF, PF and CF", Handler: sahf},
}

func mov(state *machine.State, ops *Operands) (Outcome, error) {
	dst, src, width, err := ops.Pair()
	if err != nil {
		return Outcome{}, err
	}
	value, err := ops.Read(src, width)
	if err != nil {
		return Outcome{}, err
	}
	if err := ops.Write(dst, width, value); err != nil {
		return Outcome{}, err
	}
	return ops.Continue()
}

func xchg(state *machine.State, ops *Operands) (Outcome, error) {
	a, b, width, err := ops.Pair()
	if err != nil {
		return Outcome{}, err
	}
	if a.Kind == ImmediateOperand || b.Kind == ImmediateOperand {
		return Outcome{}, invalidOperand(ops.Tokens[0]+", "+ops.Tokens[1], "cannot exchange immediates")
	}
	// Register side first so a failing memory write leaves memory intact
	if a.Kind == MemoryOperand {
		a, b = b, a
	}
	va, err := ops.Read(a, width)
	if err != nil {
		return Outcome{}, err
	}
	vb, err := ops.Read(b, width)
	if err != nil {
		return Outcome{}, err
	}
	if err := ops.Write(a, width, vb); err != nil {
		return Outcome{}, err
	}
	if err := ops.Write(b, width, va); err != nil {
		return Outcome{}, err
	}
	return ops.Continue()
}

func lea(state *machine.State, ops *Operands) (Outcome, error) {
	dst, err := ops.Resolve(0)
	if err != nil {
		return Outcome{}, err
	}
	src, err := ops.Resolve(1)
	if err != nil {
		return Outcome{}, err
	}
	if dst.Kind != RegisterOperand || dst.Width != machine.Word {
		return Outcome{}, invalidOperand(dst.Text, "LEA needs a 16 bit register destination")
	}
	if src.Kind != MemoryOperand {
		return Outcome{}, invalidOperand(src.Text, "LEA needs a memory operand")
	}
	if err := ops.Write(dst, machine.Word, src.Offset); err != nil {
		return Outcome{}, err
	}
	return ops.Continue()
}

func push(state *machine.State, ops *Operands) (Outcome, error) {
	src, err := ops.Resolve(0)
	if err != nil {
		return Outcome{}, err
	}
	if src.Sized && src.Width != machine.Word {
		return Outcome{}, invalidOperand(src.Text, "only words can be pushed")
	}
	value, err := ops.Read(src, machine.Word)
	if err != nil {
		return Outcome{}, err
	}
	if err := state.Push(value); err != nil {
		return Outcome{}, err
	}
	return ops.Continue()
}

func pop(state *machine.State, ops *Operands) (Outcome, error) {
	dst, err := ops.Resolve(0)
	if err != nil {
		return Outcome{}, err
	}
	if dst.Sized && dst.Width != machine.Word {
		return Outcome{}, invalidOperand(dst.Text, "only words can be popped")
	}
	if dst.Kind == ImmediateOperand {
		return Outcome{}, invalidOperand(dst.Text, "cannot be assigned")
	}
	value, err := state.Pop()
	if err != nil {
		return Outcome{}, err
	}
	if err := ops.Write(dst, machine.Word, value); err != nil {
		return Outcome{}, err
	}
	return ops.Continue()
}

func pushf(state *machine.State, ops *Operands) (Outcome, error) {
	if err := state.Push(state.Flags.Word()); err != nil {
		return Outcome{}, err
	}
	return ops.Continue()
}

func popf(state *machine.State, ops *Operands) (Outcome, error) {
	word, err := state.Pop()
	if err != nil {
		return Outcome{}, err
	}
	state.Flags.SetWord(word)
	return ops.Continue()
}

func lahf(state *machine.State, ops *Operands) (Outcome, error) {
	state.Registers.Set("AH", state.Flags.Word()&0xFF)
	return ops.Continue()
}

func sahf(state *machine.State, ops *Operands) (Outcome, error) {
	ah, _ := state.Registers.Get("AH")
	word := state.Flags.Word()&0xFF00 | ah
	state.Flags.SetWord(word)
	return ops.Continue()
}
