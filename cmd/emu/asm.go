package emu

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/Manu343726/emu8086/pkg/hw/cpu/interpreter"
	"github.com/Manu343726/emu8086/pkg/hw/cpu/loader"
	"github.com/Manu343726/emu8086/pkg/utils"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var asmFormat string

var asmCmd = &cobra.Command{
	Use:   "asm <file.asm>",
	Short: "Assemble a program and print its listing",
	Long: `Runs both loader passes over a program and prints what they produced:
the instruction records, labels, data symbols, constants, the initial data
image and any diagnostics.

Example:
  emu8086 emu asm hello.asm
  emu8086 emu asm --format yaml hello.asm > hello.yaml`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openSession(os.Stderr)
		if err != nil {
			fail(1, "%v", err)
		}
		defer s.Close()

		program, err := loader.LoadFile(args[0], loader.WithLogger(s.logger))
		if err != nil {
			fail(1, "%v", err)
		}

		switch asmFormat {
		case "yaml":
			err = newListing(program).write(os.Stdout)
		case "text":
			printListing(os.Stdout, program)
		default:
			err = fmt.Errorf("unknown format %q", asmFormat)
		}
		if err != nil {
			fail(1, "%v", err)
		}
	},
}

func init() {
	EmuCmd.AddCommand(asmCmd)
	asmCmd.Flags().StringVarP(&asmFormat, "format", "f", "text", "output format: text or yaml")
}

// listing is the YAML form of an assembled program
type listing struct {
	Entry        int                  `yaml:"entry"`
	Segments     map[string]string    `yaml:"segments"`
	Constants    map[string]int64     `yaml:"constants,omitempty"`
	Labels       map[string]int       `yaml:"labels,omitempty"`
	Symbols      []loader.Symbol      `yaml:"symbols,omitempty"`
	Data         []string             `yaml:"data,omitempty"`
	Instructions []loader.Instruction `yaml:"instructions"`
	Diagnostics  []string             `yaml:"diagnostics,omitempty"`
}

func newListing(program *loader.Program) listing {
	symbols := utils.Values(program.Symbols)
	sort.Slice(symbols, func(i, j int) bool { return symbols[i].Offset < symbols[j].Offset })

	l := listing{
		Entry:        program.Entry,
		Segments:     program.Segments,
		Constants:    program.Constants,
		Labels:       program.Labels,
		Symbols:      symbols,
		Data:         hexLines(program.Data),
		Instructions: program.Instructions,
		Diagnostics:  utils.Map(program.Diagnostics, func(err error) string { return err.Error() }),
	}
	return l
}

func (l listing) write(w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(l); err != nil {
		return fmt.Errorf("failed to encode listing: %w", err)
	}
	return encoder.Close()
}

// hexLines formats a data image as "OFFS: xx xx ..." lines of 16 bytes
func hexLines(data []byte) []string {
	var lines []string
	for offset := 0; offset < len(data); offset += 16 {
		end := min(offset+16, len(data))
		row := hex.EncodeToString(data[offset:end])
		var pairs []string
		for i := 0; i < len(row); i += 2 {
			pairs = append(pairs, row[i:i+2])
		}
		lines = append(lines, fmt.Sprintf("%04X: %s", offset, strings.ToUpper(strings.Join(pairs, " "))))
	}
	return lines
}

func printListing(w io.Writer, program *loader.Program) {
	formatter := interpreter.NewInstructionFormatter(interpreter.StyleColored)
	labels := utils.InvertedMap(program.Labels)

	colorHeader.Fprintln(w, "Instructions:")
	for i, instr := range program.Instructions {
		if instr.Kind == loader.Empty {
			continue
		}
		marker := "  "
		if i == program.Entry {
			marker = colorCurrent.Sprint("=>")
		}
		label := ""
		if name, ok := labels[i]; ok {
			label = colorLine.Sprint(name + ":")
		}
		fmt.Fprintf(w, "%s %s %s %-12s %s\n",
			marker,
			colorHiBlack.Sprintf("%4d", i),
			colorLine.Sprintf("%4d", instr.Line),
			label,
			formatter.FormatInstruction(instr.String()))
	}

	if len(program.Symbols) > 0 {
		fmt.Fprintln(w)
		colorHeader.Fprintln(w, "Symbols:")
		for _, symbol := range newListing(program).Symbols {
			fmt.Fprintf(w, "  %s %-16s %d x %d bytes\n",
				colorAddr.Sprintf("%04XH", symbol.Offset),
				colorReg.Sprint(symbol.Name),
				symbol.Length, symbol.ElementSize)
		}
	}

	if len(program.Constants) > 0 {
		fmt.Fprintln(w)
		colorHeader.Fprintln(w, "Constants:")
		names := utils.Keys(program.Constants)
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %-16s %s\n", colorReg.Sprint(name), colorValue.Sprint(program.Constants[name]))
		}
	}

	if len(program.Data) > 0 {
		fmt.Fprintln(w)
		colorHeader.Fprintln(w, "Data:")
		for _, line := range hexLines(program.Data) {
			fmt.Fprintln(w, "  "+colorHex.Sprint(line))
		}
	}

	for _, diagnostic := range program.Diagnostics {
		colorWarning.Fprintf(w, "warning: %v\n", diagnostic)
	}
}
