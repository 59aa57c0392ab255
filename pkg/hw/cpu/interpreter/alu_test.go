package interpreter

import (
	"testing"

	"github.com/Manu343726/emu8086/pkg/hw/cpu/machine"
	"github.com/stretchr/testify/assert"
)

func TestArithmeticFlags_Fixtures(t *testing.T) {
	tests := []struct {
		name     string
		kind     OpKind
		width    machine.Width
		a, b     uint32
		expected StatusFlags
	}{
		{"8-bit signed overflow", OpAdd, machine.Byte, 0x7F, 0x01, StatusFlags{SF: true, OF: true, AF: true}},
		{"8-bit carry to zero", OpAdd, machine.Byte, 0xFF, 0x01, StatusFlags{CF: true, ZF: true, AF: true, PF: true}},
		{"8-bit negative plus negative", OpAdd, machine.Byte, 0x80, 0x80, StatusFlags{CF: true, ZF: true, OF: true, PF: true}},
		{"16-bit parity only", OpAdd, machine.Word, 0x1234, 0x5678, StatusFlags{PF: true}},
		{"16-bit unsigned overflow", OpAdd, machine.Word, 0xFFFF, 0x0002, StatusFlags{CF: true, AF: true}},
		{"16-bit signed overflow", OpAdd, machine.Word, 0x7FFF, 0x0001, StatusFlags{SF: true, OF: true, AF: true, PF: true}},
		{"8-bit borrow", OpSub, machine.Byte, 0x00, 0x01, StatusFlags{CF: true, SF: true, AF: true, PF: true}},
		{"8-bit signed underflow", OpSub, machine.Byte, 0x80, 0x01, StatusFlags{OF: true, AF: true}},
		{"16-bit equal", OpSub, machine.Word, 0x4242, 0x4242, StatusFlags{ZF: true, PF: true}},
		{"16-bit borrow", OpSub, machine.Word, 0x0001, 0x8000, StatusFlags{CF: true, SF: true, OF: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var raw int64
			if tt.kind == OpAdd {
				raw = int64(tt.a) + int64(tt.b)
			} else {
				raw = int64(tt.a) - int64(tt.b)
			}
			got := ArithmeticFlags(tt.kind, tt.width, tt.a, tt.b, raw)
			assert.Equal(t, tt.expected.CF, got.CF, "CF")
			assert.Equal(t, tt.expected.ZF, got.ZF, "ZF")
			assert.Equal(t, tt.expected.SF, got.SF, "SF")
			assert.Equal(t, tt.expected.OF, got.OF, "OF")
			assert.Equal(t, tt.expected.AF, got.AF, "AF")
			assert.Equal(t, tt.expected.PF, got.PF, "PF")
		})
	}
}

var sampleWords = []uint32{0, 1, 2, 0x7F, 0x80, 0xFF, 0x100, 0x1234, 0x5678, 0x7FFE, 0x7FFF, 0x8000, 0x8001, 0xABCD, 0xFFFE, 0xFFFF}

func signOf(v uint32) bool {
	return v&0x8000 != 0
}

func TestArithmeticFlags_WordAddition(t *testing.T) {
	for _, a := range sampleWords {
		for _, b := range sampleWords {
			raw := int64(a) + int64(b)
			r := uint32(raw) & 0xFFFF
			flags := ArithmeticFlags(OpAdd, machine.Word, a, b, raw)

			assert.Equal(t, a+b > 0xFFFF, flags.CF, "CF %04X+%04X", a, b)
			overflow := signOf(a) == signOf(b) && signOf(r) != signOf(a)
			assert.Equal(t, overflow, flags.OF, "OF %04X+%04X", a, b)
		}
	}
}

func TestArithmeticFlags_WordSubtraction(t *testing.T) {
	for _, a := range sampleWords {
		for _, b := range sampleWords {
			raw := int64(a) - int64(b)
			flags := ArithmeticFlags(OpSub, machine.Word, a, b, raw)

			assert.Equal(t, a < b, flags.CF, "CF %04X-%04X", a, b)
			assert.Equal(t, a == b, flags.ZF, "ZF %04X-%04X", a, b)
		}
	}
}

func TestLogicFlags(t *testing.T) {
	flags := LogicFlags(machine.Byte, 0x80)
	assert.False(t, flags.CF)
	assert.False(t, flags.OF)
	assert.True(t, flags.SF)
	assert.False(t, flags.ZF)
	assert.False(t, flags.PF)

	assert.Equal(t, flags, ArithmeticFlags(OpLogic, machine.Byte, 0xFF, 0x80, 0x80))
}

func TestParity(t *testing.T) {
	assert.True(t, Parity(0x00))
	assert.True(t, Parity(0x03))
	assert.False(t, Parity(0x01))
	assert.False(t, Parity(0x07))
	assert.True(t, Parity(0x1FF00), "only the low byte counts")
}

func TestStatusFlags_ApplyExceptCarry(t *testing.T) {
	flags := machine.Flags{CF: true, IF: true}
	StatusFlags{ZF: true}.ApplyExceptCarry(&flags)
	assert.True(t, flags.CF)
	assert.True(t, flags.ZF)
	assert.True(t, flags.IF)
}
