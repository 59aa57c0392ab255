package interpreter

import (
	"math/bits"

	"github.com/Manu343726/emu8086/pkg/hw/cpu/machine"
)

// OpKind selects how the flag unit interprets a result
type OpKind int

const (
	// OpAdd is an addition (ADD, ADC, INC)
	OpAdd OpKind = iota
	// OpSub is a subtraction (SUB, SBB, CMP, DEC, NEG)
	OpSub
	// OpLogic is a pure bitwise operation (AND, OR, XOR, TEST)
	OpLogic
)

// StatusFlags are the flags computed by arithmetic and logic instructions
type StatusFlags struct {
	CF bool
	PF bool
	AF bool
	ZF bool
	SF bool
	OF bool
}

// ApplyTo copies the status flags into a flag set
func (f StatusFlags) ApplyTo(flags *machine.Flags) {
	flags.CF = f.CF
	f.ApplyExceptCarry(flags)
}

// ApplyExceptCarry copies every status flag but CF
func (f StatusFlags) ApplyExceptCarry(flags *machine.Flags) {
	flags.PF = f.PF
	flags.AF = f.AF
	flags.ZF = f.ZF
	flags.SF = f.SF
	flags.OF = f.OF
}

// Parity tells whether the low byte of v has an even number of set bits
func Parity(v uint32) bool {
	return bits.OnesCount8(uint8(v))%2 == 0
}

// ResultFlags computes ZF, SF and PF of a result
func ResultFlags(width machine.Width, result uint32) StatusFlags {
	r := result & width.Mask()
	return StatusFlags{
		ZF: r == 0,
		SF: r&width.SignBit() != 0,
		PF: Parity(r),
	}
}

// ArithmeticFlags computes the status flags of a + b or a - b (including any
// carry or borrow in), given the untruncated result raw.
func ArithmeticFlags(kind OpKind, width machine.Width, a, b uint32, raw int64) StatusFlags {
	if kind == OpLogic {
		return LogicFlags(width, uint32(raw))
	}

	mask := width.Mask()
	sign := width.SignBit()
	a, b = a&mask, b&mask
	r := uint32(raw) & mask

	flags := ResultFlags(width, r)
	flags.AF = (a^b^r)&0x10 != 0

	switch kind {
	case OpAdd:
		flags.CF = raw > int64(mask)
		flags.OF = (a^r)&(b^r)&sign != 0
	case OpSub:
		flags.CF = raw < 0
		flags.OF = (a^b)&(a^r)&sign != 0
	}

	return flags
}

// LogicFlags computes the flags of a bitwise result: CF and OF are cleared
func LogicFlags(width machine.Width, result uint32) StatusFlags {
	return ResultFlags(width, result)
}
