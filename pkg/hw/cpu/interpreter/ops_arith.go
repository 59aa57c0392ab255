package interpreter

import (
	"github.com/Manu343726/emu8086/pkg/hw/cpu/machine"
	"github.com/Manu343726/emu8086/pkg/utils"
)

var arithmeticInstructions = []*Descriptor{
	{Mnemonic: "ADD", Syntax: "ADD dst, src", Description: "dst = dst + src", MinOperands: 2, MaxOperands: 2, Handler: arithmetic(OpAdd, false, true)},
	{Mnemonic: "ADC", Syntax: "ADC dst, src", Description: "dst = dst + src + CF", MinOperands: 2, MaxOperands: 2, Handler: arithmetic(OpAdd, true, true)},
	{Mnemonic: "SUB", Syntax: "SUB dst, src", Description: "dst = dst - src", MinOperands: 2, MaxOperands: 2, Handler: arithmetic(OpSub, false, true)},
	{Mnemonic: "SBB", Syntax: "SBB dst, src", Description: "dst = dst - src - CF", MinOperands: 2, MaxOperands: 2, Handler: arithmetic(OpSub, true, true)},
	{Mnemonic: "CMP", Syntax: "CMP a, b", Description: "Set flags as SUB would, without storing the result", MinOperands: 2, MaxOperands: 2, Handler: arithmetic(OpSub, false, false)},
	{Mnemonic: "INC", Syntax: "INC dst", Description: "dst = dst + 1, CF unchanged", MinOperands: 1, MaxOperands: 1, Handler: step(OpAdd)},
	{Mnemonic: "DEC", Syntax: "DEC dst", Description: "dst = dst - 1, CF unchanged", MinOperands: 1, MaxOperands: 1, Handler: step(OpSub)},
	{Mnemonic: "NEG", Syntax: "NEG dst", Description: "dst = 0 - dst", MinOperands: 1, MaxOperands: 1, Handler: neg},
	{Mnemonic: "MUL", Syntax: "MUL src", Description: "Unsigned AX = AL * src8, or DX:AX = AX * src16", MinOperands: 1, MaxOperands: 1, Handler: mul},
	{Mnemonic: "IMUL", Syntax: "IMUL src", Description: "Signed AX = AL * src8, or DX:AX = AX * src16", MinOperands: 1, MaxOperands: 1, Handler: imul},
	{Mnemonic: "DIV", Syntax: "DIV src", Description: "Unsigned AL = AX / src8 (AH = remainder), or AX = DX:AX / src16 (DX = remainder)", MinOperands: 1, MaxOperands: 1, Handler: div},
	{Mnemonic: "IDIV", Syntax: "IDIV src", Description: "Signed AL = AX / src8 (AH = remainder), or AX = DX:AX / src16 (DX = remainder)", MinOperands: 1, MaxOperands: 1, Handler: idiv},
}

func arithmetic(kind OpKind, withCarry bool, store bool) Handler {
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

		var carry int64
		if withCarry && state.Flags.CF {
			carry = 1
		}

		var raw int64
		if kind == OpAdd {
			raw = int64(a) + int64(b) + carry
		} else {
			raw = int64(a) - int64(b) - carry
		}

		if store {
			if err := ops.Write(dst, width, uint16(raw)); err != nil {
				return Outcome{}, err
			}
		}
		ArithmeticFlags(kind, width, uint32(a), uint32(b), raw).ApplyTo(&state.Flags)
		return ops.Continue()
	}
}

// step implements INC and DEC
func step(kind OpKind) Handler {
	return func(state *machine.State, ops *Operands) (Outcome, error) {
		dst, err := ops.Resolve(0)
		if err != nil {
			return Outcome{}, err
		}
		width := SingleWidth(dst)
		a, err := ops.Read(dst, width)
		if err != nil {
			return Outcome{}, err
		}

		raw := int64(a) + 1
		if kind == OpSub {
			raw = int64(a) - 1
		}

		if err := ops.Write(dst, width, uint16(raw)); err != nil {
			return Outcome{}, err
		}
		ArithmeticFlags(kind, width, uint32(a), 1, raw).ApplyExceptCarry(&state.Flags)
		return ops.Continue()
	}
}

func neg(state *machine.State, ops *Operands) (Outcome, error) {
	dst, err := ops.Resolve(0)
	if err != nil {
		return Outcome{}, err
	}
	width := SingleWidth(dst)
	a, err := ops.Read(dst, width)
	if err != nil {
		return Outcome{}, err
	}
	raw := -int64(a)
	if err := ops.Write(dst, width, uint16(raw)); err != nil {
		return Outcome{}, err
	}
	ArithmeticFlags(OpSub, width, 0, uint32(a), raw).ApplyTo(&state.Flags)
	return ops.Continue()
}

// multiplicand resolves the explicit operand of MUL, IMUL, DIV and IDIV
func multiplicand(ops *Operands) (uint16, machine.Width, error) {
	src, err := ops.Resolve(0)
	if err != nil {
		return 0, 0, err
	}
	if src.Kind == ImmediateOperand {
		return 0, 0, invalidOperand(src.Text, "needs a register or memory operand")
	}
	width := SingleWidth(src)
	value, err := ops.Read(src, width)
	return value, width, err
}

func mul(state *machine.State, ops *Operands) (Outcome, error) {
	src, width, err := multiplicand(ops)
	if err != nil {
		return Outcome{}, err
	}
	r := &state.Registers

	var high uint16
	if width == machine.Byte {
		product := (r.AX & 0xFF) * (src & 0xFF)
		r.AX = product
		high = product >> 8
	} else {
		product := uint32(r.AX) * uint32(src)
		r.AX = uint16(product)
		r.DX = uint16(product >> 16)
		high = r.DX
	}

	state.Flags.CF = high != 0
	state.Flags.OF = high != 0
	return ops.Continue()
}

func imul(state *machine.State, ops *Operands) (Outcome, error) {
	src, width, err := multiplicand(ops)
	if err != nil {
		return Outcome{}, err
	}
	r := &state.Registers

	var significant bool
	if width == machine.Byte {
		product := int16(int8(r.AX)) * int16(int8(src))
		r.AX = uint16(product)
		significant = product != int16(int8(product))
	} else {
		product := int32(int16(r.AX)) * int32(int16(src))
		r.AX = uint16(product)
		r.DX = uint16(uint32(product) >> 16)
		significant = product != int32(int16(product))
	}

	state.Flags.CF = significant
	state.Flags.OF = significant
	return ops.Continue()
}

func div(state *machine.State, ops *Operands) (Outcome, error) {
	divisor, width, err := multiplicand(ops)
	if err != nil {
		return Outcome{}, err
	}
	if divisor == 0 {
		return Outcome{}, utils.MakeError(machine.ErrDivideByZero, "%s", ops.Tokens[0])
	}
	r := &state.Registers

	if width == machine.Byte {
		quotient := r.AX / divisor
		if quotient > 0xFF {
			return Outcome{}, utils.MakeError(machine.ErrDivideOverflow, "AX=%04XH / %02XH", r.AX, divisor)
		}
		remainder := r.AX % divisor
		r.AX = remainder<<8 | quotient
	} else {
		dividend := uint32(r.DX)<<16 | uint32(r.AX)
		quotient := dividend / uint32(divisor)
		if quotient > 0xFFFF {
			return Outcome{}, utils.MakeError(machine.ErrDivideOverflow, "DX:AX=%08XH / %04XH", dividend, divisor)
		}
		r.AX = uint16(quotient)
		r.DX = uint16(dividend % uint32(divisor))
	}
	return ops.Continue()
}

func idiv(state *machine.State, ops *Operands) (Outcome, error) {
	divisor, width, err := multiplicand(ops)
	if err != nil {
		return Outcome{}, err
	}
	if divisor == 0 {
		return Outcome{}, utils.MakeError(machine.ErrDivideByZero, "%s", ops.Tokens[0])
	}
	r := &state.Registers

	if width == machine.Byte {
		dividend := int32(int16(r.AX))
		d := int32(int8(divisor))
		quotient := dividend / d
		if quotient > 127 || quotient < -128 {
			return Outcome{}, utils.MakeError(machine.ErrDivideOverflow, "AX=%d / %d", dividend, d)
		}
		remainder := dividend % d
		r.AX = uint16(uint8(remainder))<<8 | uint16(uint8(quotient))
	} else {
		dividend := int64(int32(uint32(r.DX)<<16 | uint32(r.AX)))
		d := int64(int16(divisor))
		quotient := dividend / d
		if quotient > 32767 || quotient < -32768 {
			return Outcome{}, utils.MakeError(machine.ErrDivideOverflow, "DX:AX=%d / %d", dividend, d)
		}
		r.AX = uint16(quotient)
		r.DX = uint16(dividend % d)
	}
	return ops.Continue()
}
