package interpreter

import (
	"github.com/Manu343726/emu8086/pkg/hw/cpu/machine"
)

// Condition is a predicate over the flags tested by a conditional jump
type Condition func(f machine.Flags) bool

// Conditions maps every conditional jump mnemonic, aliases included, to its
// predicate
var Conditions = map[string]Condition{
	"JE": condEqual, "JZ": condEqual,
	"JNE": condNotEqual, "JNZ": condNotEqual,
	"JG": condGreater, "JNLE": condGreater,
	"JGE": condGreaterEqual, "JNL": condGreaterEqual,
	"JL": condLess, "JNGE": condLess,
	"JLE": condLessEqual, "JNG": condLessEqual,
	"JA": condAbove, "JNBE": condAbove,
	"JAE": condAboveEqual, "JNB": condAboveEqual, "JNC": condAboveEqual,
	"JB": condBelow, "JNAE": condBelow, "JC": condBelow,
	"JBE": condBelowEqual, "JNA": condBelowEqual,
	"JO": condOverflow, "JNO": condNoOverflow,
	"JS": condSign, "JNS": condNoSign,
	"JP": condParity, "JPE": condParity,
	"JNP": condNoParity, "JPO": condNoParity,
}

func condEqual(f machine.Flags) bool        { return f.ZF }
func condNotEqual(f machine.Flags) bool     { return !f.ZF }
func condGreater(f machine.Flags) bool      { return !f.ZF && f.SF == f.OF }
func condGreaterEqual(f machine.Flags) bool { return f.SF == f.OF }
func condLess(f machine.Flags) bool         { return f.SF != f.OF }
func condLessEqual(f machine.Flags) bool    { return f.ZF || f.SF != f.OF }
func condAbove(f machine.Flags) bool        { return !f.CF && !f.ZF }
func condAboveEqual(f machine.Flags) bool   { return !f.CF }
func condBelow(f machine.Flags) bool        { return f.CF }
func condBelowEqual(f machine.Flags) bool   { return f.CF || f.ZF }
func condOverflow(f machine.Flags) bool     { return f.OF }
func condNoOverflow(f machine.Flags) bool   { return !f.OF }
func condSign(f machine.Flags) bool         { return f.SF }
func condNoSign(f machine.Flags) bool       { return !f.SF }
func condParity(f machine.Flags) bool       { return f.PF }
func condNoParity(f machine.Flags) bool     { return !f.PF }

var controlInstructions = append([]*Descriptor{
	{Mnemonic: "JMP", Syntax: "JMP label", Description: "Jump to label", MinOperands: 1, MaxOperands: 1, Handler: jmp},
	{Mnemonic: "JCXZ", Syntax: "JCXZ label", Description: "Jump if CX is 0", MinOperands: 1, MaxOperands: 1, Handler: jcxz},
	{Mnemonic: "LOOP", Syntax: "LOOP label", Description: "Decrement CX, jump while CX != 0", MinOperands: 1, MaxOperands: 1, Handler: loop(nil)},
	{Mnemonic: "LOOPE", Syntax: "LOOPE label", Description: "Decrement CX, jump while CX != 0 and ZF = 1", MinOperands: 1, MaxOperands: 1, Handler: loop(condEqual)},
	{Mnemonic: "LOOPZ", Syntax: "LOOPZ label", Description: "Same as LOOPE", MinOperands: 1, MaxOperands: 1, Handler: loop(condEqual)},
	{Mnemonic: "LOOPNE", Syntax: "LOOPNE label", Description: "Decrement CX, jump while CX != 0 and ZF = 0", MinOperands: 1, MaxOperands: 1, Handler: loop(condNotEqual)},
	{Mnemonic: "LOOPNZ", Syntax: "LOOPNZ label", Description: "Same as LOOPNE", MinOperands: 1, MaxOperands: 1, Handler: loop(condNotEqual)},
	{Mnemonic: "CALL", Syntax: "CALL label", Description: "Push the return index and jump to label", MinOperands: 1, MaxOperands: 1, Handler: call},
	{Mnemonic: "RET", Syntax: "RET [n]", Description: "Pop the return index, then release n more stack bytes. Ends the program outside of a procedure", MaxOperands: 1, Handler: ret},
	{Mnemonic: "INT", Syntax: "INT n", Description: "Raise software interrupt n", MinOperands: 1, MaxOperands: 1, Handler: interrupt},
	{Mnemonic: "HLT", Syntax: "HLT", Description: "Stop the program", Handler: hlt},
}, conditionalJumps()...)

func conditionalJumps() []*Descriptor {
	jumps := make([]*Descriptor, 0, len(Conditions))
	for mnemonic, cond := range Conditions {
		jumps = append(jumps, &Descriptor{
			Mnemonic:    mnemonic,
			Syntax:      mnemonic + " label",
			Description: "Conditional jump",
			MinOperands: 1,
			MaxOperands: 1,
			Handler:     conditionalJump(cond),
		})
	}
	return jumps
}

func jmp(state *machine.State, ops *Operands) (Outcome, error) {
	target, _, err := ops.Target(0)
	if err != nil {
		return Outcome{}, err
	}
	return ops.Jump(target)
}

func conditionalJump(cond Condition) Handler {
	return func(state *machine.State, ops *Operands) (Outcome, error) {
		target, _, err := ops.Target(0)
		if err != nil {
			return Outcome{}, err
		}
		if cond(state.Flags) {
			return ops.Jump(target)
		}
		return ops.Continue()
	}
}

func jcxz(state *machine.State, ops *Operands) (Outcome, error) {
	target, _, err := ops.Target(0)
	if err != nil {
		return Outcome{}, err
	}
	if state.Registers.CX == 0 {
		return ops.Jump(target)
	}
	return ops.Continue()
}

// loop decrements CX before testing it. Entered with CX = 0, CX wraps to
// 0xFFFF and the branch is not taken.
func loop(cond Condition) Handler {
	return func(state *machine.State, ops *Operands) (Outcome, error) {
		target, _, err := ops.Target(0)
		if err != nil {
			return Outcome{}, err
		}
		wrapped := state.Registers.CX == 0
		state.Registers.CX--
		if !wrapped && state.Registers.CX != 0 && (cond == nil || cond(state.Flags)) {
			return ops.Jump(target)
		}
		return ops.Continue()
	}
}

func call(state *machine.State, ops *Operands) (Outcome, error) {
	target, label, err := ops.Target(0)
	if err != nil {
		return Outcome{}, err
	}
	if err := state.Push(ops.Next); err != nil {
		return Outcome{}, err
	}
	state.PushFrame(machine.CallFrame{
		Label:       label,
		ReturnIndex: ops.Next,
		SP:          state.Registers.SP,
	})
	return ops.Jump(target)
}

func ret(state *machine.State, ops *Operands) (Outcome, error) {
	var release uint16
	if ops.Count() > 0 {
		n, err := ops.Resolve(0)
		if err != nil {
			return Outcome{}, err
		}
		if n.Kind != ImmediateOperand {
			return Outcome{}, invalidOperand(n.Text, "RET takes an immediate byte count")
		}
		release = n.Value
	}

	if len(state.CallStack) == 0 {
		state.Terminated = true
		return ops.Continue()
	}

	index, err := state.Pop()
	if err != nil {
		return Outcome{}, err
	}
	state.Registers.SP += release
	state.PopFrame()
	return ops.Jump(index)
}

func interrupt(state *machine.State, ops *Operands) (Outcome, error) {
	n, err := ops.Resolve(0)
	if err != nil {
		return Outcome{}, err
	}
	if n.Kind != ImmediateOperand || n.Value > 0xFF {
		return Outcome{}, invalidOperand(n.Text, "interrupt vectors are immediates from 0 to 0FFH")
	}
	return ops.Raise(uint8(n.Value))
}

func hlt(state *machine.State, ops *Operands) (Outcome, error) {
	state.Terminated = true
	return ops.Continue()
}
