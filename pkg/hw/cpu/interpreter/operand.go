package interpreter

import (
	"fmt"
	"strings"

	"github.com/Manu343726/emu8086/pkg/hw/cpu/loader"
	"github.com/Manu343726/emu8086/pkg/hw/cpu/machine"
	"github.com/Manu343726/emu8086/pkg/utils"
)

// OperandKind classifies a resolved operand
type OperandKind int

const (
	RegisterOperand OperandKind = iota
	ImmediateOperand
	MemoryOperand
)

func (k OperandKind) String() string {
	switch k {
	case RegisterOperand:
		return "register"
	case ImmediateOperand:
		return "immediate"
	case MemoryOperand:
		return "memory"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Operand is an operand token resolved against the current machine state
type Operand struct {
	Kind OperandKind
	// Text is the original token
	Text string
	// Register names the register of register operands
	Register string
	// Value holds the value of immediate operands
	Value uint16
	// Width is the operand size, or 0 when the operand does not imply one
	Width machine.Width
	// Sized is set when Width comes from a register or a BYTE/WORD qualifier
	// rather than from the declaration of a variable
	Sized bool
	// Segment is the segment register memory operands are relative to
	Segment string
	// Offset is the effective address of memory operands
	Offset uint16
}

// Address returns the physical address of a memory operand
func (op Operand) Address(state *machine.State) uint32 {
	segment, _ := state.Registers.Get(op.Segment)
	return machine.Physical(segment, op.Offset)
}

// Resolver turns operand tokens into operands, looking names up in the
// program tables
type Resolver struct {
	program *loader.Program
}

// NewResolver creates a resolver for a loaded program
func NewResolver(program *loader.Program) *Resolver {
	return &Resolver{program: program}
}

func invalidOperand(token string, format string, args ...any) error {
	return utils.MakeError(machine.ErrInvalidOperand, "'%s': "+format, append([]any{token}, args...)...)
}

// Resolve classifies a token. Classification order is: register, OFFSET
// reference, character literal, segment name, number or constant, memory
// reference.
func (r *Resolver) Resolve(state *machine.State, token string) (Operand, error) {
	text := strings.TrimSpace(token)
	upper := strings.ToUpper(text)

	if width, ok := machine.RegisterWidth(upper); ok {
		return Operand{Kind: RegisterOperand, Text: text, Register: upper, Width: width, Sized: true}, nil
	}

	if name, ok := strings.CutPrefix(upper, "OFFSET "); ok {
		name = strings.TrimSpace(name)
		if sym, ok := r.program.Symbols.Lookup(name); ok {
			return immediate(text, sym.Offset), nil
		}
		return Operand{}, invalidOperand(text, "unknown variable %s", name)
	}

	if s, ok := quoted(text); ok {
		if len(s) != 1 {
			return Operand{}, invalidOperand(text, "character literals hold a single character")
		}
		return immediate(text, uint16(s[0])), nil
	}

	if reg, ok := r.program.Segment(upper); ok {
		value, _ := state.Registers.Get(reg)
		return Operand{Kind: ImmediateOperand, Text: text, Value: value, Width: machine.Word}, nil
	}

	if value, ok, err := r.number(upper); ok {
		return immediate(text, uint16(value)), nil
	} else if err != nil {
		return Operand{}, invalidOperand(text, "%v", err)
	}

	return r.memory(state, text)
}

func immediate(text string, value uint16) Operand {
	return Operand{Kind: ImmediateOperand, Text: text, Value: value}
}

// number resolves numeric literals and EQU constants
func (r *Resolver) number(upper string) (int64, bool, error) {
	if c, ok := r.program.Constant(upper); ok {
		return c, true, nil
	}
	if !loader.LooksNumeric(upper) {
		return 0, false, nil
	}
	value, err := loader.ParseNumber(upper)
	if err != nil {
		return 0, false, err
	}
	return value, true, nil
}

var sizeQualifiers = []struct {
	prefix string
	width  machine.Width
}{
	{"BYTE PTR ", machine.Byte},
	{"WORD PTR ", machine.Word},
	{"BYTE ", machine.Byte},
	{"WORD ", machine.Word},
}

// memory resolves "[expr]", "name[expr]", "name" and "name+n" forms, with
// optional size qualifier and segment override
func (r *Resolver) memory(state *machine.State, text string) (Operand, error) {
	op := Operand{Kind: MemoryOperand, Text: text}
	expr := strings.TrimSpace(text)

	for _, q := range sizeQualifiers {
		if len(expr) >= len(q.prefix) && strings.EqualFold(expr[:len(q.prefix)], q.prefix) {
			op.Width, op.Sized = q.width, true
			expr = strings.TrimSpace(expr[len(q.prefix):])
			break
		}
	}

	if len(expr) > 3 && expr[2] == ':' && machine.IsSegmentRegister(strings.ToUpper(expr[:2])) {
		op.Segment = strings.ToUpper(expr[:2])
		expr = strings.TrimSpace(expr[3:])
	}

	bracketed := strings.Contains(expr, "[")
	if bracketed {
		open := strings.IndexByte(expr, '[')
		end := strings.LastIndexByte(expr, ']')
		if end < open {
			return Operand{}, invalidOperand(text, "unbalanced brackets")
		}
		prefix := strings.TrimSpace(expr[:open])
		inner := strings.ReplaceAll(expr[open+1:end], "][", "+")
		if prefix != "" {
			inner = prefix + "+" + inner
		}
		expr = inner
	}

	offset, usesBP, sawSymbol, err := r.sum(state, expr, &op)
	if err != nil {
		return Operand{}, invalidOperand(text, "%v", err)
	}
	if !bracketed && !sawSymbol {
		return Operand{}, invalidOperand(text, "unknown operand")
	}

	op.Offset = offset
	if op.Segment == "" {
		op.Segment = "DS"
		if usesBP {
			op.Segment = "SS"
		}
	}
	return op, nil
}

// sum evaluates a left-to-right sum of signed terms. Symbols contribute
// their offset and, for unqualified operands, their declared width.
func (r *Resolver) sum(state *machine.State, expr string, op *Operand) (offset uint16, usesBP bool, sawSymbol bool, err error) {
	var total int64

	for _, t := range splitTerms(expr) {
		name := strings.ToUpper(strings.TrimSpace(t.text))
		var value int64

		switch {
		case name == "":
			return 0, false, false, fmt.Errorf("empty term")
		case isAddressRegister(name):
			v, _ := state.Registers.Get(name)
			value = int64(v)
			usesBP = usesBP || name == "BP"
		default:
			if sym, ok := r.program.Symbols.Lookup(name); ok {
				value = int64(sym.Offset)
				sawSymbol = true
				if op.Width == 0 {
					op.Width = sym.Width()
				}
				break
			}
			n, ok, err := r.number(name)
			if err != nil {
				return 0, false, false, err
			}
			if !ok {
				return 0, false, false, fmt.Errorf("unknown term %s", t.text)
			}
			value = n
		}

		if t.negative {
			total -= value
		} else {
			total += value
		}
	}

	return uint16(total), usesBP, sawSymbol, nil
}

// isAddressRegister tells whether a register may appear in an address
// expression
func isAddressRegister(name string) bool {
	width, ok := machine.RegisterWidth(name)
	return ok && width == machine.Word && !machine.IsSegmentRegister(name) && name != "IP"
}

type term struct {
	text     string
	negative bool
}

func splitTerms(expr string) []term {
	var (
		terms    []term
		start    int
		negative bool
	)
	for i := 0; i < len(expr); i++ {
		if c := expr[i]; c == '+' || c == '-' {
			if text := strings.TrimSpace(expr[start:i]); text != "" {
				terms = append(terms, term{text: text, negative: negative})
			} else if len(terms) > 0 {
				terms = append(terms, term{text: "", negative: negative})
			}
			negative = c == '-'
			start = i + 1
		}
	}
	terms = append(terms, term{text: strings.TrimSpace(expr[start:]), negative: negative})
	return terms
}

func quoted(s string) (string, bool) {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1], true
	}
	return "", false
}

// Read fetches the value of an operand at the given width
func (r *Resolver) Read(state *machine.State, op Operand, width machine.Width) (uint16, error) {
	switch op.Kind {
	case RegisterOperand:
		v, _ := state.Registers.Get(op.Register)
		return v & uint16(width.Mask()), nil
	case ImmediateOperand:
		return op.Value & uint16(width.Mask()), nil
	default:
		return state.Memory.Read(op.Address(state), width)
	}
}

// Write stores a value into a register or memory operand
func (r *Resolver) Write(state *machine.State, op Operand, width machine.Width, value uint16) error {
	value &= uint16(width.Mask())
	switch op.Kind {
	case RegisterOperand:
		if op.Width != width {
			return invalidOperand(op.Text, "is %v wide, not %v", op.Width, width)
		}
		state.Registers.Set(op.Register, value)
		return nil
	case MemoryOperand:
		return state.Memory.Write(op.Address(state), width, value)
	default:
		return invalidOperand(op.Text, "cannot be assigned")
	}
}

// PairWidth infers the width of a two operand instruction: an explicit
// destination size wins, then an explicit non-immediate source size, then
// declared variable widths, then 16 bits.
func PairWidth(dst, src Operand) (machine.Width, error) {
	if dst.Sized && src.Sized && src.Kind != ImmediateOperand && dst.Width != src.Width {
		return 0, invalidOperand(dst.Text+", "+src.Text, "operand sizes differ")
	}
	switch {
	case dst.Sized:
		return dst.Width, nil
	case src.Sized && src.Kind != ImmediateOperand:
		return src.Width, nil
	case dst.Width != 0:
		return dst.Width, nil
	case src.Width != 0 && src.Kind != ImmediateOperand:
		return src.Width, nil
	default:
		return machine.Word, nil
	}
}

// SingleWidth is the width of a one operand instruction
func SingleWidth(op Operand) machine.Width {
	if op.Width != 0 {
		return op.Width
	}
	return machine.Word
}
