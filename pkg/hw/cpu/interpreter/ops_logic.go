package interpreter

import (
	"github.com/Manu343726/emu8086/pkg/hw/cpu/machine"
)

var logicInstructions = []*Descriptor{
	{Mnemonic: "AND", Syntax: "AND dst, src", Description: "dst = dst & src, CF = OF = 0", MinOperands: 2, MaxOperands: 2, Handler: logic(func(a, b uint16) uint16 { return a & b }, true)},
	{Mnemonic: "OR", Syntax: "OR dst, src", Description: "dst = dst | src, CF = OF = 0", MinOperands: 2, MaxOperands: 2, Handler: logic(func(a, b uint16) uint16 { return a | b }, true)},
	{Mnemonic: "XOR", Syntax: "XOR dst, src", Description: "dst = dst ^ src, CF = OF = 0", MinOperands: 2, MaxOperands: 2, Handler: logic(func(a, b uint16) uint16 { return a ^ b }, true)},
	{Mnemonic: "TEST", Syntax: "TEST a, b", Description: "Set flags as AND would, without storing the result", MinOperands: 2, MaxOperands: 2, Handler: logic(func(a, b uint16) uint16 { return a & b }, false)},
	{Mnemonic: "NOT", Syntax: "NOT dst", Description: "dst = ~dst, flags unchanged", MinOperands: 1, MaxOperands: 1, Handler: not},
	{Mnemonic: "SHL", Syntax: "SHL dst[, count]", Description: "Shift left, filling with zeros", MinOperands: 1, MaxOperands: 2, Handler: shift(shiftLeft)},
	{Mnemonic: "SAL", Syntax: "SAL dst[, count]", Description: "Same as SHL", MinOperands: 1, MaxOperands: 2, Handler: shift(shiftLeft)},
	{Mnemonic: "SHR", Syntax: "SHR dst[, count]", Description: "Shift right, filling with zeros", MinOperands: 1, MaxOperands: 2, Handler: shift(shiftRight)},
	{Mnemonic: "SAR", Syntax: "SAR dst[, count]", Description: "Shift right, replicating the sign bit", MinOperands: 1, MaxOperands: 2, Handler: shift(shiftArithmeticRight)},
	{Mnemonic: "ROL", Syntax: "ROL dst[, count]", Description: "Rotate left", MinOperands: 1, MaxOperands: 2, Handler: shift(rotateLeft)},
	{Mnemonic: "ROR", Syntax: "ROR dst[, count]", Description: "Rotate right", MinOperands: 1, MaxOperands: 2, Handler: shift(rotateRight)},
}

func logic(op func(a, b uint16) uint16, store bool) Handler {
	return func(state *machine.State, ops *Operands) (Outcome, error) {
		dst, src, width, err := ops.Pair()
		if err != nil {
			return Outcome{}, err
		}
		a, err := ops.Read(dst, width)
		if err != nil {
			return Outcome{}, err
		}
		b, err := ops.Read(src, width)
		if err != nil {
			return Outcome{}, err
		}
		result := op(a, b)
		if store {
			if err := ops.Write(dst, width, result); err != nil {
				return Outcome{}, err
			}
		}
		LogicFlags(width, uint32(result)).ApplyTo(&state.Flags)
		return ops.Continue()
	}
}

func not(state *machine.State, ops *Operands) (Outcome, error) {
	dst, err := ops.Resolve(0)
	if err != nil {
		return Outcome{}, err
	}
	width := SingleWidth(dst)
	a, err := ops.Read(dst, width)
	if err != nil {
		return Outcome{}, err
	}
	if err := ops.Write(dst, width, ^a); err != nil {
		return Outcome{}, err
	}
	return ops.Continue()
}

// shifter moves a value by one bit, returning the new value and the bit
// shifted out
type shifter struct {
	step   func(v uint32, width machine.Width) (uint32, bool)
	rotate bool
	// overflow computes OF from the operand before the last iteration, the
	// final result and the final CF
	overflow func(prev, result uint32, cf bool, width machine.Width) bool
}

func msb(v uint32, width machine.Width) bool {
	return v&width.SignBit() != 0
}

var shiftLeft = shifter{
	step: func(v uint32, width machine.Width) (uint32, bool) {
		return (v << 1) & width.Mask(), msb(v, width)
	},
	overflow: func(prev, result uint32, cf bool, width machine.Width) bool {
		return msb(result, width) != cf
	},
}

var shiftRight = shifter{
	step: func(v uint32, width machine.Width) (uint32, bool) {
		return v >> 1, v&1 != 0
	},
	overflow: func(prev, result uint32, cf bool, width machine.Width) bool {
		return msb(prev, width)
	},
}

var shiftArithmeticRight = shifter{
	step: func(v uint32, width machine.Width) (uint32, bool) {
		return (v >> 1) | (v & width.SignBit()), v&1 != 0
	},
	overflow: func(prev, result uint32, cf bool, width machine.Width) bool {
		return false
	},
}

var rotateLeft = shifter{
	rotate: true,
	step: func(v uint32, width machine.Width) (uint32, bool) {
		out := msb(v, width)
		v = (v << 1) & width.Mask()
		if out {
			v |= 1
		}
		return v, out
	},
	overflow: topBitsDiffer,
}

var rotateRight = shifter{
	rotate: true,
	step: func(v uint32, width machine.Width) (uint32, bool) {
		out := v&1 != 0
		v >>= 1
		if out {
			v |= width.SignBit()
		}
		return v, out
	},
	overflow: topBitsDiffer,
}

// topBitsDiffer is the XOR of the two most significant bits of the result
func topBitsDiffer(prev, result uint32, cf bool, width machine.Width) bool {
	return msb(result, width) != msb(result<<1, width)
}

// shift runs a shift or rotate one bit per count. OF is only architecturally
// defined for a count of 1; larger counts apply the same rule to the last
// iteration.
func shift(s shifter) Handler {
	return func(state *machine.State, ops *Operands) (Outcome, error) {
		dst, err := ops.Resolve(0)
		if err != nil {
			return Outcome{}, err
		}
		width := SingleWidth(dst)

		count := uint16(1)
		if ops.Count() > 1 {
			src, err := ops.Resolve(1)
			if err != nil {
				return Outcome{}, err
			}
			if src.Kind == MemoryOperand || (src.Kind == RegisterOperand && src.Register != "CL") {
				return Outcome{}, invalidOperand(src.Text, "shift counts are CL or an immediate")
			}
			if count, err = ops.Read(src, machine.Byte); err != nil {
				return Outcome{}, err
			}
		}

		value, err := ops.Read(dst, width)
		if err != nil {
			return Outcome{}, err
		}
		if count == 0 {
			return ops.Continue()
		}

		v, prev := uint32(value), uint32(value)
		var cf bool
		for i := uint16(0); i < count; i++ {
			prev = v
			v, cf = s.step(v, width)
		}

		if err := ops.Write(dst, width, uint16(v)); err != nil {
			return Outcome{}, err
		}

		if !s.rotate {
			ResultFlags(width, v).ApplyExceptCarry(&state.Flags)
		}
		state.Flags.CF = cf
		state.Flags.OF = s.overflow(prev, v, cf, width)
		return ops.Continue()
	}
}
