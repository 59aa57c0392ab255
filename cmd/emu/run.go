package emu

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Manu343726/emu8086/pkg/hw/cpu/bios"
	"github.com/Manu343726/emu8086/pkg/hw/cpu/interpreter"
	"github.com/Manu343726/emu8086/pkg/hw/cpu/loader"
	"github.com/Manu343726/emu8086/pkg/hw/cpu/machine"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	runTrace bool
	runInput string
	runDump  string
	runQuiet bool
)

var runCmd = &cobra.Command{
	Use:   "run <file.asm>",
	Short: "Run a program to completion",
	Long: `Loads an assembly program and runs it without breakpoints.

Keyboard services read from --input when given, otherwise from stdin. On a
terminal stdin is put in raw mode and the emulated screen is redrawn every
time the program waits for a key. When the program ends the screen is
printed and the process exits with the program's exit code.

Example:
  emu8086 emu run hello.asm
  emu8086 emu run --input "42\n" --dump state.yaml sum.asm
  emu8086 emu run --trace --max-steps 100 loop.asm`,
	Args: cobra.ExactArgs(1),
	Run:  runRun,
}

func init() {
	EmuCmd.AddCommand(runCmd)
	runCmd.Flags().IntP("max-steps", "n", 1_000_000, "maximum number of instructions to execute (0 = unlimited)")
	runCmd.Flags().BoolVarP(&runTrace, "trace", "t", false, "trace each executed instruction to stderr")
	runCmd.Flags().StringVarP(&runInput, "input", "i", "", `keys to type, "\n" is Enter`)
	runCmd.Flags().StringVar(&runDump, "dump", "", `write the final state as YAML to this file ("-" for stdout)`)
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "do not print the screen and summary")
	cobra.CheckErr(viper.BindPFlag("max_steps", runCmd.Flags().Lookup("max-steps")))
}

func runRun(cmd *cobra.Command, args []string) {
	os.Exit(runProgram(cmd, args[0]))
}

// runProgram runs the program at path and returns the process exit code.
// Deferred cleanup runs before the caller exits.
func runProgram(cmd *cobra.Command, path string) int {
	s, err := openSession(os.Stderr)
	if err != nil {
		return report(1, "%v", err)
	}
	defer s.Close()

	program, err := loader.LoadFile(path, loader.WithLogger(s.logger))
	if err != nil {
		return report(1, "%v", err)
	}
	for _, diagnostic := range program.Diagnostics {
		colorWarning.Fprintf(os.Stderr, "warning: %v\n", diagnostic)
	}

	state := machine.NewState()
	if err := program.Install(state); err != nil {
		return report(2, "%v", err)
	}
	services := bios.New(bios.WithLogger(s.logger))
	interp := interpreter.New(state, program, services, interpreter.WithLogger(s.logger))

	var keys interpreter.KeySource
	switch {
	case cmd.Flags().Changed("input"):
		keys = newTextKeys(strings.ReplaceAll(runInput, `\n`, "\r"))
	case isTerminal(os.Stdin) && !runTrace:
		tty, err := newTerminalKeys(os.Stdin, os.Stdout, func() string {
			return renderScreen(state.Snapshot(), "\r\n")
		})
		if err != nil {
			return report(1, "%v", err)
		}
		defer tty.Close()
		keys = tty
	default:
		keys = newReaderKeys(os.Stdin)
	}

	runner := interpreter.NewRunner(interp, keys)
	formatter := interpreter.NewTraceFormatter(traceStyle())

	var summary interpreter.ExecutionSummary
	if runTrace {
		summary = runner.RunWithTrace(s.settings.MaxSteps, func(step int, result interpreter.StepResult, state *machine.State) bool {
			fmt.Fprintln(os.Stderr, formatter.FormatStep(step, result, state.Registers))
			return true
		})
	} else {
		summary = runner.Run(s.settings.MaxSteps)
	}

	if tty, ok := keys.(*terminalKeys); ok {
		tty.Close()
		fmt.Print("\x1b[H\x1b[2J")
	}

	snapshot := state.Snapshot()
	if !runQuiet {
		fmt.Println(renderScreen(trimmedSnapshot(snapshot), "\n"))
		fmt.Fprint(os.Stderr, formatter.FormatSummary(summary))
	}

	if runDump != "" {
		if err := writeDump(newDump(summary, snapshot)); err != nil {
			return report(1, "%v", err)
		}
	}

	if summary.Error != nil {
		var runtimeErr *machine.RuntimeError
		if errors.As(summary.Error, &runtimeErr) {
			return report(3, "line %d: %s: %v", runtimeErr.Line, runtimeErr.Text, runtimeErr.Err)
		}
		return report(3, "%v", summary.Error)
	}
	return int(summary.ExitCode)
}

func writeDump(d dump) error {
	if runDump == "-" {
		return d.write(os.Stdout)
	}
	file, err := os.Create(runDump)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", runDump, err)
	}
	defer file.Close()
	return d.write(file)
}

// trimmedSnapshot drops the trailing blank rows of the screen
func trimmedSnapshot(snapshot machine.Snapshot) machine.Snapshot {
	snapshot.Screen = snapshot.Screen[:len(screenRows(snapshot))]
	return snapshot
}

func traceStyle() interpreter.FormatStyle {
	if isTerminal(os.Stderr) {
		return interpreter.StyleColored
	}
	return interpreter.StylePlain
}
