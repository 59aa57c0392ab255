package machine

import (
	"strings"

	"github.com/Manu343726/emu8086/pkg/utils"
)

// Flags is the 8086 status/control flag set
type Flags struct {
	CF bool // Carry
	PF bool // Parity
	AF bool // Auxiliary carry
	ZF bool // Zero
	SF bool // Sign
	TF bool // Trap
	IF bool // Interrupt enable
	DF bool // Direction
	OF bool // Overflow
}

// Bit positions in the FLAGS word
const (
	FlagBitCF = 0
	FlagBitPF = 2
	FlagBitAF = 4
	FlagBitZF = 6
	FlagBitSF = 7
	FlagBitTF = 8
	FlagBitIF = 9
	FlagBitDF = 10
	FlagBitOF = 11
)

// FlagNames lists the flags in display order
var FlagNames = []string{"CF", "PF", "AF", "ZF", "SF", "TF", "IF", "DF", "OF"}

// DefaultFlags returns the flags right after a reload: interrupts enabled, everything else clear
func DefaultFlags() Flags {
	return Flags{IF: true}
}

func (f *Flags) flag(name string) *bool {
	switch strings.ToUpper(name) {
	case "CF":
		return &f.CF
	case "PF":
		return &f.PF
	case "AF":
		return &f.AF
	case "ZF":
		return &f.ZF
	case "SF":
		return &f.SF
	case "TF":
		return &f.TF
	case "IF":
		return &f.IF
	case "DF":
		return &f.DF
	case "OF":
		return &f.OF
	}
	return nil
}

// Get reads a flag by name (case-insensitive)
func (f *Flags) Get(name string) (value bool, ok bool) {
	if p := f.flag(name); p != nil {
		return *p, true
	}
	return false, false
}

// Set writes a flag by name (case-insensitive)
func (f *Flags) Set(name string, value bool) bool {
	if p := f.flag(name); p != nil {
		*p = value
		return true
	}
	return false
}

func (f *Flags) bits() []struct {
	bit   int
	value *bool
} {
	return []struct {
		bit   int
		value *bool
	}{
		{FlagBitCF, &f.CF}, {FlagBitPF, &f.PF}, {FlagBitAF, &f.AF},
		{FlagBitZF, &f.ZF}, {FlagBitSF, &f.SF}, {FlagBitTF, &f.TF},
		{FlagBitIF, &f.IF}, {FlagBitDF, &f.DF}, {FlagBitOF, &f.OF},
	}
}

// Word packs the flags into the 8086 FLAGS register layout. Bit 1 is always set.
func (f Flags) Word() uint16 {
	var word uint16
	view := utils.CreateBitView(&word)
	view.SetBit(1)
	for _, b := range f.bits() {
		if *b.value {
			view.SetBit(b.bit)
		}
	}
	return word
}

// SetWord unpacks a FLAGS register value
func (f *Flags) SetWord(word uint16) {
	view := utils.CreateBitView(&word)
	for _, b := range f.bits() {
		*b.value = view.Read(b.bit, 1) != 0
	}
}
