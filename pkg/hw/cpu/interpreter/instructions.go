package interpreter

import (
	"sort"
	"strings"

	"github.com/Manu343726/emu8086/pkg/hw/cpu/loader"
	"github.com/Manu343726/emu8086/pkg/hw/cpu/machine"
	"github.com/Manu343726/emu8086/pkg/utils"
)

// Outcome is what an instruction asks the interpreter to do next
type Outcome struct {
	// Next is the index of the next instruction
	Next uint16
	// Raised is set when the instruction raised a software interrupt
	Raised bool
	// Vector is the raised interrupt vector
	Vector uint8
}

// Handler implements an instruction. Handlers must not leave partial
// memory writes behind when they fail: registers and flags are restored by
// the interpreter, memory is not.
type Handler func(state *machine.State, ops *Operands) (Outcome, error)

// Descriptor describes an instruction of the instruction set
type Descriptor struct {
	Mnemonic string
	// Description is a one line summary used by documentation tools
	Description string
	// Syntax shows the operand forms
	Syntax string
	// MinOperands and MaxOperands bound the operand count
	MinOperands int
	MaxOperands int
	Handler     Handler
}

// Operands gives handlers access to the operand tokens of the instruction
// being executed
type Operands struct {
	// Tokens are the raw operand tokens
	Tokens []string
	// Index is the index of the executing instruction
	Index uint16
	// Next is the index of the instruction that follows it
	Next     uint16
	program  *loader.Program
	resolver *Resolver
	state    *machine.State
}

// Count returns the number of operands
func (o *Operands) Count() int {
	return len(o.Tokens)
}

// Resolve resolves the i-th operand
func (o *Operands) Resolve(i int) (Operand, error) {
	return o.resolver.Resolve(o.state, o.Tokens[i])
}

// Read fetches an operand value
func (o *Operands) Read(op Operand, width machine.Width) (uint16, error) {
	return o.resolver.Read(o.state, op, width)
}

// Write stores a value into an operand
func (o *Operands) Write(op Operand, width machine.Width, value uint16) error {
	return o.resolver.Write(o.state, op, width, value)
}

// Pair resolves a destination/source pair and infers their common width
func (o *Operands) Pair() (dst, src Operand, width machine.Width, err error) {
	if dst, err = o.Resolve(0); err != nil {
		return
	}
	if src, err = o.Resolve(1); err != nil {
		return
	}
	if dst.Kind == MemoryOperand && src.Kind == MemoryOperand {
		err = invalidOperand(o.Tokens[0]+", "+o.Tokens[1], "memory to memory operations are not allowed")
		return
	}
	width, err = PairWidth(dst, src)
	return
}

var jumpQualifiers = []string{"SHORT ", "NEAR PTR ", "FAR PTR ", "NEAR ", "FAR "}

// Target resolves the i-th operand as a jump target through the label table
func (o *Operands) Target(i int) (uint16, string, error) {
	name := strings.ToUpper(strings.TrimSpace(o.Tokens[i]))
	for _, q := range jumpQualifiers {
		if rest, ok := strings.CutPrefix(name, q); ok {
			name = strings.TrimSpace(rest)
			break
		}
	}
	idx, ok := o.program.Labels.Lookup(name)
	if !ok {
		return 0, name, utils.MakeError(machine.ErrUndefinedLabel, "%s", name)
	}
	return uint16(idx), name, nil
}

// Continue falls through to the next instruction
func (o *Operands) Continue() (Outcome, error) {
	return Outcome{Next: o.Next}, nil
}

// Jump transfers control to an instruction index
func (o *Operands) Jump(index uint16) (Outcome, error) {
	return Outcome{Next: index}, nil
}

// Raise falls through and raises a software interrupt
func (o *Operands) Raise(vector uint8) (Outcome, error) {
	return Outcome{Next: o.Next, Raised: true, Vector: vector}, nil
}

var instructionSet = buildInstructionSet(
	moveInstructions,
	arithmeticInstructions,
	logicInstructions,
	controlInstructions,
	flagInstructions,
)

func buildInstructionSet(families ...[]*Descriptor) map[string]*Descriptor {
	set := make(map[string]*Descriptor)
	for _, family := range families {
		for _, d := range family {
			set[d.Mnemonic] = d
		}
	}
	return set
}

// Lookup finds the descriptor of a mnemonic, ignoring case
func Lookup(mnemonic string) (*Descriptor, bool) {
	d, ok := instructionSet[strings.ToUpper(mnemonic)]
	return d, ok
}

// Instructions returns every supported instruction sorted by mnemonic
func Instructions() []*Descriptor {
	mnemonics := utils.Keys(instructionSet)
	sort.Strings(mnemonics)
	return utils.Map(mnemonics, func(m string) *Descriptor {
		return instructionSet[m]
	})
}
