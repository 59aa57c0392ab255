// Package loader assembles source text into a loadable program.
//
// Loading is done in two passes over the source lines:
//
//  1. Declarations: data declarations (DB/DW/DD, with literal lists, strings
//     and DUP forms) are allocated sequentially from offset 0 of the data
//     segment and their names are entered in the symbol table. EQU constants
//     and segment names are collected too.
//  2. Instructions: every line becomes exactly one instruction record, so a
//     record index always maps back to its source line. Labels point at
//     instruction indices.
//
// Loading never fails on malformed input: undecodable values become zero and
// are reported in Program.Diagnostics.
package loader

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Manu343726/emu8086/pkg/hw/cpu/machine"
	"github.com/Manu343726/emu8086/pkg/utils"
)

// Options configures the loading process
type Options struct {
	// Logger receives load diagnostics. Defaults to a discarding logger.
	Logger *slog.Logger
}

// Option customizes Options
type Option func(*Options)

// WithLogger sets the logger used to report diagnostics
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

type assembler struct {
	program  *Program
	logger   *slog.Logger
	line     int
	dataFull bool
	entry    string
}

// LoadFile reads and assembles a source file
func LoadFile(path string, opts ...Option) (*Program, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Load(string(source), opts...), nil
}

// Load assembles a source text
func Load(source string, opts ...Option) *Program {
	options := Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&options)
	}

	a := &assembler{
		program: newProgram(source),
		logger:  options.Logger,
	}

	lines := strings.Split(strings.ReplaceAll(source, "\r\n", "\n"), "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	a.declarations(lines)
	a.instructions(lines)
	a.resolveEntry()

	a.logger.Debug("program loaded",
		slog.Int("instructions", len(a.program.Instructions)),
		slog.Int("symbols", len(a.program.Symbols)),
		slog.Int("labels", len(a.program.Labels)),
		slog.Int("data_bytes", len(a.program.Data)),
		slog.Int("diagnostics", len(a.program.Diagnostics)))

	return a.program
}

func (a *assembler) diagnose(format string, args ...any) {
	err := utils.MakeError(machine.ErrLoad, "line %d: "+format, append([]any{a.line}, args...)...)
	a.program.Diagnostics = append(a.program.Diagnostics, err)
	a.logger.Warn("load diagnostic", slog.Int("line", a.line), slog.String("error", err.Error()))
}

// declarations is pass 1
func (a *assembler) declarations(lines []string) {
	for i, raw := range lines {
		a.line = i + 1
		text := strings.TrimSpace(stripComment(raw))
		if text == "" {
			continue
		}

		if name, size, items, ok := dataDeclaration(text); ok {
			a.declare(name, size, items)
			continue
		}

		first, rest := splitWord(text)
		second, value := splitWord(rest)
		switch strings.ToUpper(second) {
		case "EQU":
			a.defineConstant(strings.ToUpper(first), value)
		case "SEGMENT":
			a.defineSegment(strings.ToUpper(first))
		}

		if strings.EqualFold(first, "ASSUME") {
			a.assume(rest)
		}
	}
}

func (a *assembler) defineConstant(name, value string) {
	if _, exists := a.program.Constants[name]; exists {
		a.diagnose("duplicate constant %s", name)
		return
	}
	a.program.Constants[name] = a.value(value)
}

func (a *assembler) defineSegment(name string) {
	if _, exists := a.program.Segments[name]; exists {
		return
	}
	switch {
	case strings.Contains(name, "STACK"):
		a.program.Segments[name] = "SS"
	case strings.Contains(name, "CODE"):
		a.program.Segments[name] = "CS"
	default:
		a.program.Segments[name] = "DS"
	}
}

// assume handles "ASSUME CS:CODE, DS:DATA"
func (a *assembler) assume(pairs string) {
	for _, pair := range SplitOperands(pairs) {
		reg, name, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		reg = strings.ToUpper(strings.TrimSpace(reg))
		name = strings.ToUpper(strings.TrimSpace(name))
		if machine.IsSegmentRegister(reg) && name != "NOTHING" {
			a.program.Segments[name] = reg
		}
	}
}

var wordDirectives = map[string]bool{
	"TITLE":   true,
	"ASSUME":  true,
	"END":     true,
	"ORG":     true,
	"INCLUDE": true,
	"PUBLIC":  true,
	"EXTRN":   true,
	"PAGE":    true,
	"NAME":    true,
}

var namedDirectives = map[string]bool{
	"SEGMENT": true,
	"ENDS":    true,
	"PROC":    true,
	"ENDP":    true,
	"EQU":     true,
}

// instructions is pass 2
func (a *assembler) instructions(lines []string) {
	for i, raw := range lines {
		a.line = i + 1
		text := strings.TrimSpace(stripComment(raw))
		record := Instruction{Kind: Empty, Line: a.line, Text: text}

		if label, rest, ok := splitLabel(text); ok {
			a.defineLabel(label)
			text = rest
		}

		if text != "" && !a.directive(text) {
			mnemonic, operands := splitWord(text)
			record.Kind = Command
			record.Mnemonic = strings.ToUpper(mnemonic)
			record.Operands = SplitOperands(operands)
		}

		a.program.Instructions = append(a.program.Instructions, record)
	}
}

func (a *assembler) defineLabel(name string) {
	if _, exists := a.program.Labels[name]; exists {
		a.diagnose("duplicate label %s", name)
		return
	}
	a.program.Labels[name] = len(a.program.Instructions)
}

// directive tells whether text is a non-executable line, handling the
// directives that affect pass 2 (PROC labels and the END entry point)
func (a *assembler) directive(text string) bool {
	if _, _, _, ok := dataDeclaration(text); ok {
		return true
	}

	first, rest := splitWord(text)
	upperFirst := strings.ToUpper(first)

	if strings.HasPrefix(first, ".") || wordDirectives[upperFirst] {
		if upperFirst == "END" && rest != "" {
			a.entry = strings.ToUpper(rest)
		}
		return true
	}

	second, _ := splitWord(rest)
	upperSecond := strings.ToUpper(second)
	if namedDirectives[upperSecond] {
		if upperSecond == "PROC" {
			a.defineLabel(upperFirst)
		}
		return true
	}

	return false
}

func (a *assembler) resolveEntry() {
	if a.entry == "" {
		return
	}
	if idx, ok := a.program.Labels[a.entry]; ok {
		a.program.Entry = idx
		return
	}
	a.line = len(a.program.Instructions)
	a.diagnose("entry point %s is not a label", a.entry)
}
