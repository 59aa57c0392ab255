package emu

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/Manu343726/emu8086/pkg/hw/cpu/debugger"
	"github.com/Manu343726/emu8086/pkg/hw/cpu/interpreter"
	"github.com/Manu343726/emu8086/pkg/hw/cpu/machine"
	"github.com/fatih/color"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
)

// cliUI implements debugger.DebuggerUI for a line oriented terminal
type cliUI struct {
	out       io.Writer
	formatter *interpreter.InstructionFormatter
}

var _ debugger.DebuggerUI = (*cliUI)(nil)

func newCliUI(out io.Writer) *cliUI {
	return &cliUI{out: out, formatter: interpreter.NewInstructionFormatter(interpreter.StyleColored)}
}

func (ui *cliUI) printf(c *color.Color, format string, args ...any) {
	c.Fprintf(ui.out, format, args...)
}

func (ui *cliUI) location(line int, text string) string {
	if line == 0 {
		return colorHiBlack.Sprint("end of program")
	}
	return fmt.Sprintf("%s %s", colorLine.Sprintf("%4d", line), ui.formatter.FormatInstruction(text))
}

// OnEvent handles debugger events
func (ui *cliUI) OnEvent(event debugger.EventData) {
	switch event.Event {
	case debugger.EventBreakpointHit:
		ui.printf(colorBreakpoint, "Breakpoint hit at line %d\n", event.Line)
		fmt.Fprintf(ui.out, "%s %s\n", colorCurrent.Sprint("=>"), ui.location(event.Line, event.Text))

	case debugger.EventProgramTerminated:
		ui.printf(colorSuccess, "Program terminated after %d steps with exit code %d.\n",
			event.StepsExecuted, event.ExitCode)

	case debugger.EventAwaitingInput:
		ui.printf(colorWarning, "Program is waiting for a key. Type it with 'key'.\n")

	case debugger.EventInterrupted:
		ui.printf(colorWarning, "Interrupted at %s\n", ui.location(event.Line, event.Text))

	case debugger.EventError:
		ui.printf(colorError, "Error at line %d (%s): %v\n", event.Line, strings.TrimSpace(event.Text), event.Error)

	case debugger.EventProgramLoaded:
		ui.printf(colorSuccess, "Program loaded.\n")
		fmt.Fprintf(ui.out, "%s %s\n", colorCurrent.Sprint("=>"), ui.location(event.Line, event.Text))

	case debugger.EventStepped:
		if event.StepsExecuted > 1 {
			colorHiBlack.Fprintf(ui.out, "(%d steps)\n", event.StepsExecuted)
		}
		fmt.Fprintf(ui.out, "%s %s\n", colorCurrent.Sprint("=>"), ui.location(event.Line, event.Text))
	}
}

// ShowMessage displays a message with appropriate color based on level
func (ui *cliUI) ShowMessage(level debugger.MessageLevel, format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	switch level {
	case debugger.LevelError:
		colorError.Fprintln(ui.out, message)
	case debugger.LevelWarning:
		colorWarning.Fprintln(ui.out, message)
	case debugger.LevelSuccess:
		colorSuccess.Fprintln(ui.out, message)
	case debugger.LevelDebug:
		colorHiBlack.Fprintln(ui.out, message)
	default:
		fmt.Fprintln(ui.out, message)
	}
}

// ShowSource displays a window of the listing
func (ui *cliUI) ShowSource(lines []debugger.SourceLine) {
	for _, line := range lines {
		marker := "  "
		if line.IsCurrent {
			marker = colorCurrent.Sprint("=>")
		}
		bp := " "
		if line.HasBreakpoint {
			bp = colorBreakpoint.Sprint("*")
		}
		fmt.Fprintf(ui.out, "%s%s %s %s\n", marker, bp, colorLine.Sprintf("%4d", line.Line), ui.formatter.FormatInstruction(line.Text))
	}
}

// ShowRegisters displays register and flag values
func (ui *cliUI) ShowRegisters(regs machine.Registers, flags machine.Flags) {
	colorHeader.Fprintln(ui.out, "=== CPU State ===")
	for i, name := range machine.RegisterNames {
		value, _ := regs.Get(name)
		fmt.Fprintf(ui.out, "%s=%s ", colorReg.Sprintf("%-2s", name), colorValue.Sprintf("%04X", value))
		if i%4 == 3 {
			fmt.Fprintln(ui.out)
		}
	}
	fmt.Fprintln(ui.out)

	var parts []string
	for _, name := range machine.FlagNames {
		set, _ := flags.Get(name)
		if set {
			parts = append(parts, colorFlagSet.Sprint(name))
		} else {
			parts = append(parts, colorFlagClear.Sprint(name))
		}
	}
	fmt.Fprintf(ui.out, "%s: %s (%s)\n", colorReg.Sprint("FLAGS"), strings.Join(parts, " "), colorHex.Sprintf("%04X", flags.Word()))
}

// ShowMemory displays memory contents as a hex dump
func (ui *cliUI) ShowMemory(addr uint32, data []byte) {
	fmt.Fprintf(ui.out, "Memory at %s:\n", colorAddr.Sprintf("%05XH", addr))
	for i := 0; i < len(data); i += 16 {
		end := min(i+16, len(data))
		var hexPart, asciiPart strings.Builder
		for j := i; j < end; j++ {
			fmt.Fprintf(&hexPart, "%02X ", data[j])
			if data[j] >= 0x20 && data[j] < 0x7F {
				asciiPart.WriteByte(data[j])
			} else {
				asciiPart.WriteByte('.')
			}
		}
		fmt.Fprintf(ui.out, "  %s  %-48s %s\n",
			colorAddr.Sprintf("%05X", addr+uint32(i)),
			colorHex.Sprint(hexPart.String()),
			colorHiBlack.Sprint(asciiPart.String()))
	}
}

// ShowScreen draws the emulated screen inside a frame
func (ui *cliUI) ShowScreen(snapshot machine.Snapshot) {
	border := "+" + strings.Repeat("-", snapshot.Columns) + "+"
	colorHiBlack.Fprintln(ui.out, border)
	for _, row := range strings.Split(renderScreen(snapshot, "\n"), "\n") {
		fmt.Fprintf(ui.out, "%s%s%s\n", colorHiBlack.Sprint("|"), row, colorHiBlack.Sprint("|"))
	}
	colorHiBlack.Fprintln(ui.out, border)
	fmt.Fprintf(ui.out, "Cursor: row %d, column %d\n", snapshot.Cursor.Row, snapshot.Cursor.Col)
}

// ShowStack displays the words above SP and the pending calls
func (ui *cliUI) ShowStack(sp uint16, words []uint16, frames []machine.CallFrame) {
	fmt.Fprintf(ui.out, "Stack (%s = %s):\n", colorReg.Sprint("SP"), colorAddr.Sprintf("%04X", sp))
	for i, word := range words {
		marker := ""
		if i == 0 {
			marker = colorCurrent.Sprint(" <- SP")
		}
		fmt.Fprintf(ui.out, "  %s: %s (%s)%s\n",
			colorAddr.Sprintf("%04X", sp+uint16(2*i)),
			colorHex.Sprintf("%04X", word),
			colorValue.Sprintf("%6d", int16(word)),
			marker)
	}

	if len(frames) == 0 {
		return
	}
	colorHeader.Fprintln(ui.out, "Call stack:")
	for i := len(frames) - 1; i >= 0; i-- {
		frame := frames[i]
		fmt.Fprintf(ui.out, "  #%d %s returns to line %s\n",
			len(frames)-1-i,
			colorReg.Sprint(frame.Label),
			colorLine.Sprintf("%d", frame.ReturnIndex+1))
	}
}

// ShowBreakpoints displays the list of breakpoints
func (ui *cliUI) ShowBreakpoints(breakpoints []interpreter.Breakpoint) {
	colorHeader.Fprintln(ui.out, "Breakpoints:")
	for _, bp := range breakpoints {
		status := colorFlagClear.Sprint("disabled")
		if bp.Enabled {
			status = colorSuccess.Sprint("enabled")
		}
		fmt.Fprintf(ui.out, "  line %s (%s)", colorLine.Sprintf("%d", bp.Line), status)
		if bp.Condition != "" {
			fmt.Fprintf(ui.out, " if %s", colorValue.Sprint(bp.Condition))
		}
		if bp.HitCount > 0 {
			colorHiBlack.Fprintf(ui.out, " [%d hits]", bp.HitCount)
		}
		fmt.Fprintln(ui.out)
	}
}

// ShowEvalResult displays the result of an expression evaluation
func (ui *cliUI) ShowEvalResult(expr string, value int64, err error) {
	if err != nil {
		colorError.Fprintf(ui.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(ui.out, "%s = %s (%s) [%s]\n",
		colorValue.Sprint(expr),
		colorValue.Sprintf("%d", value),
		colorHex.Sprintf("%04XH", uint16(value)),
		debugger.FormatBinary(uint16(value)))
}

// ShowHelp displays help information
func (ui *cliUI) ShowHelp(commands []debugger.CommandHelp) {
	colorHeader.Fprintln(ui.out, "emu8086 Debugger Commands:")
	fmt.Fprintln(ui.out)
	for _, cmd := range commands {
		aliases := ""
		if len(cmd.Aliases) > 0 {
			aliases = ", " + strings.Join(cmd.Aliases, ", ")
		}
		fmt.Fprintf(ui.out, "  %-28s %s\n", colorCommand.Sprint(cmd.Name+aliases), cmd.Description)
		colorHiBlack.Fprintf(ui.out, "  %-28s usage: %s\n", "", cmd.Usage)
	}
	fmt.Fprintln(ui.out)
	fmt.Fprintln(ui.out, "Press Enter to repeat the last command.")
}

var debugCmd = &cobra.Command{
	Use:   "debug <file.asm>",
	Short: "Debug a program from a command prompt",
	Long: `Interactive line debugger for 8086 programs.

Breakpoints are set on source lines or labels and may carry a condition
such as "CX == 0 && AL > 'A'". A running program that waits for a key stops
and resumes when the key is typed with the 'key' command. Ctrl+C pauses a
run. Type 'help' at the prompt for the full command list.`,
	Args: cobra.ExactArgs(1),
	Run:  runDebug,
}

func init() {
	EmuCmd.AddCommand(debugCmd)
}

func runDebug(cmd *cobra.Command, args []string) {
	s, err := openSession(os.Stderr)
	if err != nil {
		fail(1, "%v", err)
	}
	defer s.Close()

	backend, err := s.backend(args[0])
	if err != nil {
		s.fail(1, "%v", err)
	}

	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetMultiLineMode(false)
	line.SetCompleter(func(input string) []string {
		var completions []string
		for _, help := range debugger.Commands() {
			for _, name := range append([]string{help.Name}, help.Aliases...) {
				if strings.HasPrefix(name, strings.ToLower(input)) {
					completions = append(completions, name)
				}
			}
		}
		return completions
	})

	historyFile := historyFilePath()
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	ui := newCliUI(os.Stdout)
	controller := debugger.NewController(backend, ui)

	program := backend.Program()
	fmt.Printf("Loaded %d lines from %s\n", len(program.Instructions), args[0])
	colorSuccess.Println("Type 'help' for available commands.")
	snapshot := backend.Snapshot()
	if instr := program.At(snapshot.Line - 1); instr != nil {
		fmt.Printf("%s %s\n", colorCurrent.Sprint("=>"), ui.location(instr.Line, instr.Text))
	}

	for controller.IsRunning() {
		input, err := line.Prompt("(emu8086) ")
		if err != nil {
			if err == io.EOF {
				colorSuccess.Println("\nExiting debugger.")
				break
			}
			if err == liner.ErrPromptAborted {
				colorWarning.Println("Use 'quit' or 'exit' to leave the debugger.")
				continue
			}
			colorError.Printf("Error reading input: %v\n", err)
			break
		}

		input = strings.TrimSpace(input)
		if input != "" && input != controller.LastCommand() {
			line.AppendHistory(input)
		}

		// Ctrl+C while a command runs pauses it
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		controller.Execute(ctx, input)
		stop()
	}

	if f, err := os.Create(historyFile); err == nil {
		line.WriteHistory(f)
		f.Close()
	}
}

// historyFilePath returns the path to the debugger history file
func historyFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".emu8086_history"
	}
	return filepath.Join(homeDir, ".emu8086_history")
}
