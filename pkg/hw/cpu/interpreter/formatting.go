package interpreter

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Manu343726/emu8086/pkg/hw/cpu/machine"
	"github.com/fatih/color"
)

// FormatStyle controls the output style for formatting functions
type FormatStyle int

const (
	// StylePlain produces plain text output without colors
	StylePlain FormatStyle = iota
	// StyleColored produces colorized output using ANSI escape codes
	StyleColored
)

var (
	regPattern    = regexp.MustCompile(`(?i)\b([ABCD][XHL]|SP|BP|SI|DI|[CDES]S|IP)\b`)
	immPattern    = regexp.MustCompile(`(?i)\b(0x[0-9a-f]+|[0-9][0-9a-f]*h|[01]+b|[0-9]+)\b|'[^']'`)
	opcodePattern = regexp.MustCompile(`^[A-Za-z]+`)

	opcodeColor = color.New(color.FgYellow, color.Bold)
	regColor    = color.New(color.FgGreen)
	immColor    = color.New(color.FgCyan)
	stepColor   = color.New(color.FgHiBlack)
	valueColor  = color.New(color.FgWhite, color.Bold)
	lineColor   = color.New(color.FgHiCyan)
)

// InstructionFormatter formats instructions for display
type InstructionFormatter struct {
	style FormatStyle
}

// NewInstructionFormatter creates a new instruction formatter
func NewInstructionFormatter(style FormatStyle) *InstructionFormatter {
	return &InstructionFormatter{style: style}
}

// FormatInstruction formats an instruction string
func (f *InstructionFormatter) FormatInstruction(instr string) string {
	if f.style == StylePlain {
		return instr
	}
	return colorizeInstruction(instr)
}

type colorSpan struct {
	start, end int
	color      *color.Color
}

// colorizeInstruction highlights the opcode, registers and immediates
func colorizeInstruction(instr string) string {
	instr = strings.TrimSpace(instr)
	loc := opcodePattern.FindStringIndex(instr)
	if loc == nil {
		return instr
	}

	opcode := instr[loc[0]:loc[1]]
	rest := instr[loc[1]:]

	var spans []colorSpan
	regMatches := regPattern.FindAllStringIndex(rest, -1)
	for _, m := range regMatches {
		spans = append(spans, colorSpan{m[0], m[1], regColor})
	}
	for _, m := range immPattern.FindAllStringIndex(rest, -1) {
		overlaps := false
		for _, rm := range regMatches {
			if m[0] < rm[1] && m[1] > rm[0] {
				overlaps = true
				break
			}
		}
		if !overlaps {
			spans = append(spans, colorSpan{m[0], m[1], immColor})
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	var sb strings.Builder
	sb.WriteString(opcodeColor.Sprint(opcode))
	pos := 0
	for _, span := range spans {
		if span.start < pos {
			continue
		}
		sb.WriteString(rest[pos:span.start])
		sb.WriteString(span.color.Sprint(rest[span.start:span.end]))
		pos = span.end
	}
	sb.WriteString(rest[pos:])
	return sb.String()
}

// TraceFormatter formats execution trace output
type TraceFormatter struct {
	style     FormatStyle
	formatter *InstructionFormatter
}

// NewTraceFormatter creates a new trace formatter
func NewTraceFormatter(style FormatStyle) *TraceFormatter {
	return &TraceFormatter{
		style:     style,
		formatter: NewInstructionFormatter(style),
	}
}

// FormatStep formats a single execution step for trace output
func (t *TraceFormatter) FormatStep(step int, result StepResult, regs machine.Registers) string {
	text, line := "", 0
	if result.Instruction != nil {
		text, line = result.Instruction.Text, result.Instruction.Line
	}

	if t.style == StylePlain {
		return fmt.Sprintf("[%5d] %4d  AX=%04X BX=%04X CX=%04X DX=%04X SP=%04X | %s",
			step, line, regs.AX, regs.BX, regs.CX, regs.DX, regs.SP, text)
	}

	return fmt.Sprintf("[%s] %s  %s %s %s %s %s | %s",
		stepColor.Sprintf("%5d", step),
		lineColor.Sprintf("%4d", line),
		formatRegister("AX", regs.AX),
		formatRegister("BX", regs.BX),
		formatRegister("CX", regs.CX),
		formatRegister("DX", regs.DX),
		formatRegister("SP", regs.SP),
		t.formatter.FormatInstruction(text))
}

func formatRegister(name string, value uint16) string {
	return regColor.Sprint(name) + "=" + valueColor.Sprintf("%04X", value)
}

// ExecutionSummary contains summary information about an execution
type ExecutionSummary struct {
	// Steps is the total number of instructions executed
	Steps int
	// FinalIP is the instruction index at termination
	FinalIP uint16
	// ExitCode is the code passed to the DOS terminate service
	ExitCode uint8
	// Reason is why execution stopped
	Reason string
	// Error is any error that occurred (may be nil)
	Error error
}

// FormatSummary formats an execution summary for display
func (t *TraceFormatter) FormatSummary(summary ExecutionSummary) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "=== Execution %s ===\n", summary.Reason)
	fmt.Fprintf(&sb, "Steps executed: %d\n", summary.Steps)
	fmt.Fprintf(&sb, "Final IP: %04XH\n", summary.FinalIP)
	fmt.Fprintf(&sb, "Exit code: %d\n", summary.ExitCode)
	if summary.Error != nil {
		fmt.Fprintf(&sb, "Error: %v\n", summary.Error)
	}

	return sb.String()
}
