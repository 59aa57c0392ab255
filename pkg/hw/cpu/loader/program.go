package loader

import (
	"fmt"
	"strings"

	"github.com/Manu343726/emu8086/pkg/hw/cpu/machine"
)

// InstructionKind distinguishes executable records from placeholders
type InstructionKind int

const (
	// Empty records stand for lines with nothing to execute (blank lines,
	// comments, directives, data declarations, label-only lines)
	Empty InstructionKind = iota
	// Command records hold an executable instruction
	Command
)

func (k InstructionKind) String() string {
	if k == Command {
		return "command"
	}
	return "empty"
}

// Instruction is one record of the instruction list. There is exactly one
// record per source line, so record i always comes from line i+1.
type Instruction struct {
	Kind     InstructionKind `yaml:"kind"`
	Mnemonic string          `yaml:"mnemonic,omitempty"`
	Operands []string        `yaml:"operands,omitempty"`
	// Line is the 1-based source line
	Line int `yaml:"line"`
	// Text is the raw source text of the line
	Text string `yaml:"text"`
}

func (i Instruction) String() string {
	if i.Kind == Empty {
		return ""
	}
	if len(i.Operands) == 0 {
		return i.Mnemonic
	}
	return i.Mnemonic + " " + strings.Join(i.Operands, ", ")
}

// Symbol is a named data declaration
type Symbol struct {
	Name string `yaml:"name"`
	// Offset is the DS-relative offset of the first element
	Offset uint16 `yaml:"offset"`
	// ElementSize is the declared element size in bytes (1, 2 or 4)
	ElementSize int `yaml:"element_size"`
	// Length is the number of declared elements
	Length int `yaml:"length"`
}

// Width returns the access width implied by the declaration
func (s Symbol) Width() machine.Width {
	if s.ElementSize == 1 {
		return machine.Byte
	}
	return machine.Word
}

// SymbolTable maps upper-cased variable names to their declaration
type SymbolTable map[string]Symbol

// Lookup finds a symbol, ignoring case
func (t SymbolTable) Lookup(name string) (Symbol, bool) {
	s, ok := t[strings.ToUpper(name)]
	return s, ok
}

// LabelTable maps upper-cased label names to instruction list indices
type LabelTable map[string]int

// Lookup finds a label, ignoring case
func (t LabelTable) Lookup(name string) (int, bool) {
	idx, ok := t[strings.ToUpper(name)]
	return idx, ok
}

// Program is the result of assembling a source text
type Program struct {
	Source       string
	Instructions []Instruction
	Symbols      SymbolTable
	Labels       LabelTable
	// Constants holds EQU definitions
	Constants map[string]int64
	// Segments maps segment names to the segment register holding their base
	Segments map[string]string
	// Data is the initial DS-relative data image
	Data []byte
	// Entry is the instruction index execution starts at
	Entry int
	// Diagnostics collects non-fatal load errors (see machine.ErrLoad)
	Diagnostics []error
}

func newProgram(source string) *Program {
	return &Program{
		Source:    source,
		Symbols:   make(SymbolTable),
		Labels:    make(LabelTable),
		Constants: make(map[string]int64),
		Segments: map[string]string{
			"@DATA":  "DS",
			"@CODE":  "CS",
			"@STACK": "SS",
		},
	}
}

// Constant finds an EQU constant, ignoring case
func (p *Program) Constant(name string) (int64, bool) {
	v, ok := p.Constants[strings.ToUpper(name)]
	return v, ok
}

// Segment finds the segment register a segment name maps to, ignoring case
func (p *Program) Segment(name string) (string, bool) {
	reg, ok := p.Segments[strings.ToUpper(name)]
	return reg, ok
}

// LabelAt returns the name of a label pointing at the given instruction index
func (p *Program) LabelAt(index int) (string, bool) {
	best := ""
	for name, idx := range p.Labels {
		if idx == index && (best == "" || name < best) {
			best = name
		}
	}
	return best, best != ""
}

// At returns the instruction at an index, or nil past the end of the list
func (p *Program) At(index int) *Instruction {
	if index < 0 || index >= len(p.Instructions) {
		return nil
	}
	return &p.Instructions[index]
}

// IndexOfLine maps a 1-based source line to its instruction index
func (p *Program) IndexOfLine(line int) (int, bool) {
	idx := line - 1
	return idx, idx >= 0 && idx < len(p.Instructions)
}

// Install copies the data image to DS:0000 and points IP at the entry label.
// The state is expected to be freshly reset.
func (p *Program) Install(state *machine.State) error {
	if err := state.Memory.WriteBytes(state.DataAddress(0), p.Data); err != nil {
		return fmt.Errorf("failed to install data image: %w", err)
	}
	state.Registers.IP = uint16(p.Entry)
	return nil
}
