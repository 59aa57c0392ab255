package emu

import (
	"fmt"
	"io"

	"github.com/Manu343726/emu8086/pkg/hw/cpu/interpreter"
	"github.com/Manu343726/emu8086/pkg/hw/cpu/machine"
	"gopkg.in/yaml.v3"
)

// dump is the final machine state written by `emu run --dump`
type dump struct {
	Reason    string            `yaml:"reason"`
	Steps     int               `yaml:"steps"`
	ExitCode  uint8             `yaml:"exit_code"`
	Error     string            `yaml:"error,omitempty"`
	Registers map[string]string `yaml:"registers"`
	Flags     map[string]bool   `yaml:"flags"`
	Cursor    machine.Cursor    `yaml:"cursor"`
	CallStack []dumpFrame       `yaml:"call_stack,omitempty"`
	Screen    []string          `yaml:"screen"`
}

type dumpFrame struct {
	Label  string `yaml:"label"`
	Return uint16 `yaml:"return"`
	SP     string `yaml:"sp"`
}

func newDump(summary interpreter.ExecutionSummary, snapshot machine.Snapshot) dump {
	d := dump{
		Reason:    summary.Reason,
		Steps:     summary.Steps,
		ExitCode:  summary.ExitCode,
		Registers: make(map[string]string, len(machine.RegisterNames)),
		Flags:     make(map[string]bool, len(machine.FlagNames)),
		Cursor:    snapshot.Cursor,
		Screen:    screenRows(snapshot),
	}
	if summary.Error != nil {
		d.Error = summary.Error.Error()
	}
	for _, name := range machine.RegisterNames {
		value, _ := snapshot.Registers.Get(name)
		d.Registers[name] = fmt.Sprintf("%04XH", value)
	}
	for _, name := range machine.FlagNames {
		d.Flags[name], _ = snapshot.Flags.Get(name)
	}
	for _, frame := range snapshot.CallStack {
		d.CallStack = append(d.CallStack, dumpFrame{
			Label:  frame.Label,
			Return: frame.ReturnIndex,
			SP:     fmt.Sprintf("%04XH", frame.SP),
		})
	}
	return d
}

func (d dump) write(w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(d); err != nil {
		return fmt.Errorf("failed to encode dump: %w", err)
	}
	return encoder.Close()
}
