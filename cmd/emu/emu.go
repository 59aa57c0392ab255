package emu

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Manu343726/emu8086/pkg/config"
	"github.com/Manu343726/emu8086/pkg/hw/cpu/debugger"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EmuCmd groups the commands that load and execute programs
var EmuCmd = &cobra.Command{
	Use:   "emu",
	Short: "Run, debug and inspect 8086 assembly programs",
}

// session holds what every subcommand needs before touching a program
type session struct {
	settings config.Settings
	logger   *slog.Logger
	closer   io.Closer
}

// openSession decodes the settings and builds the logger. Console log
// records go to console, which frontends owning the terminal leave nil.
func openSession(console io.Writer) (*session, error) {
	settings, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	logger, closer, err := settings.Log.Logger(console)
	if err != nil {
		return nil, err
	}

	if !settings.Screen.Color {
		color.NoColor = true
	}
	return &session{settings: settings, logger: logger, closer: closer}, nil
}

func (s *session) Close() {
	s.closer.Close()
}

// backend creates an execution driver loaded with the program at path
func (s *session) backend(path string) (*debugger.Backend, error) {
	backend := debugger.NewBackend(
		debugger.WithLogger(s.logger),
		debugger.WithSpeed(debugger.Speed(s.settings.Speed)))

	program, err := backend.LoadFile(path)
	if err != nil {
		return nil, err
	}
	for _, diagnostic := range program.Diagnostics {
		colorWarning.Fprintf(os.Stderr, "warning: %v\n", diagnostic)
	}
	return backend, nil
}

// report prints an error and returns code
func report(code int, format string, args ...any) int {
	colorError.Fprintf(os.Stderr, "Error: %s\n", fmt.Sprintf(format, args...))
	return code
}

// fail prints an error and exits with code
func fail(code int, format string, args ...any) {
	os.Exit(report(code, format, args...))
}

// fail closes the session and exits with code
func (s *session) fail(code int, format string, args ...any) {
	s.Close()
	fail(code, format, args...)
}

func init() {
	EmuCmd.PersistentFlags().Int("speed", 5, "initial run speed of the debuggers (1-10)")
	cobra.CheckErr(viper.BindPFlag("speed", EmuCmd.PersistentFlags().Lookup("speed")))
}
