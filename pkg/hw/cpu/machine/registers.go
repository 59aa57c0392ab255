package machine

import (
	"strings"

	"github.com/Manu343726/emu8086/pkg/utils"
)

// Width is the size in bits of an operand
type Width int

const (
	Byte Width = 8
	Word Width = 16
)

// Mask returns the all-ones mask for the width
func (w Width) Mask() uint32 {
	return utils.AllOnes[uint32](int(w))
}

// SignBit returns the most significant bit of the width
func (w Width) SignBit() uint32 {
	return 1 << (int(w) - 1)
}

// Bytes returns the size of the width in bytes
func (w Width) Bytes() int {
	return int(w) / utils.BitsPerByte
}

func (w Width) String() string {
	if w == Byte {
		return "byte"
	}
	return "word"
}

// Reset values of the register file
const (
	DefaultCS uint16 = 0x1000
	DefaultDS uint16 = 0x2000
	DefaultES uint16 = DefaultDS
	DefaultSS uint16 = 0x3000
	DefaultSP uint16 = 0x0800
)

// Registers is the 8086 register file. IP holds an index into the loaded
// instruction list rather than a byte address.
type Registers struct {
	AX, BX, CX, DX uint16
	SP, BP, SI, DI uint16
	CS, DS, SS, ES uint16
	IP             uint16
}

// DefaultRegisters returns the register file right after a reload
func DefaultRegisters() Registers {
	return Registers{
		SP: DefaultSP,
		CS: DefaultCS,
		DS: DefaultDS,
		ES: DefaultES,
		SS: DefaultSS,
	}
}

// RegisterNames lists the 16-bit registers in display order
var RegisterNames = []string{"AX", "BX", "CX", "DX", "SP", "BP", "SI", "DI", "CS", "DS", "SS", "ES", "IP"}

// ByteRegisterNames lists the 8-bit register halves
var ByteRegisterNames = []string{"AL", "AH", "BL", "BH", "CL", "CH", "DL", "DH"}

// SegmentRegisterNames lists the segment registers
var SegmentRegisterNames = []string{"CS", "DS", "SS", "ES"}

func (r *Registers) word(name string) *uint16 {
	switch name {
	case "AX":
		return &r.AX
	case "BX":
		return &r.BX
	case "CX":
		return &r.CX
	case "DX":
		return &r.DX
	case "SP":
		return &r.SP
	case "BP":
		return &r.BP
	case "SI":
		return &r.SI
	case "DI":
		return &r.DI
	case "CS":
		return &r.CS
	case "DS":
		return &r.DS
	case "SS":
		return &r.SS
	case "ES":
		return &r.ES
	case "IP":
		return &r.IP
	}
	return nil
}

// half returns the 16-bit register holding an 8-bit half and whether it is the high byte
func (r *Registers) half(name string) (*uint16, bool) {
	if len(name) != 2 || (name[1] != 'L' && name[1] != 'H') {
		return nil, false
	}
	full := r.word(name[:1] + "X")
	if full == nil {
		return nil, false
	}
	return full, name[1] == 'H'
}

// RegisterWidth returns the width of a named register and whether the name is a register at all
func RegisterWidth(name string) (Width, bool) {
	var r Registers
	name = strings.ToUpper(name)
	if r.word(name) != nil {
		return Word, true
	}
	if full, _ := r.half(name); full != nil {
		return Byte, true
	}
	return 0, false
}

// IsSegmentRegister tells whether name is CS, DS, SS or ES
func IsSegmentRegister(name string) bool {
	switch strings.ToUpper(name) {
	case "CS", "DS", "SS", "ES":
		return true
	}
	return false
}

// Get reads a register by name (case-insensitive)
func (r *Registers) Get(name string) (uint16, bool) {
	name = strings.ToUpper(name)
	if p := r.word(name); p != nil {
		return *p, true
	}
	if p, high := r.half(name); p != nil {
		if high {
			return *p >> 8, true
		}
		return *p & 0xFF, true
	}
	return 0, false
}

// Set writes a register by name (case-insensitive). Values are masked to the
// register width; writing a half leaves the other half untouched.
func (r *Registers) Set(name string, value uint16) bool {
	name = strings.ToUpper(name)
	if p := r.word(name); p != nil {
		*p = value
		return true
	}
	if p, high := r.half(name); p != nil {
		if high {
			*p = (*p & 0x00FF) | (value&0xFF)<<8
		} else {
			*p = (*p & 0xFF00) | value&0xFF
		}
		return true
	}
	return false
}
