package emu

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Manu343726/emu8086/pkg/hw/cpu/debugger"
	"github.com/Manu343726/emu8086/pkg/hw/cpu/interpreter"
	"github.com/Manu343726/emu8086/pkg/hw/cpu/machine"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/spf13/cobra"
)

// commandTimeout bounds synchronous commands typed in the TUI so a program
// stuck in a loop cannot freeze the interface
const commandTimeout = 2 * time.Second

// cgaNames are the tview color names of the 16 CGA colors
var cgaNames = [16]string{
	"black", "navy", "green", "teal", "maroon", "purple", "olive", "silver",
	"gray", "blue", "lime", "aqua", "red", "fuchsia", "yellow", "white",
}

// tuiUI implements debugger.DebuggerUI on top of the TUI output pane
type tuiUI struct {
	output *tview.TextView
}

var _ debugger.DebuggerUI = (*tuiUI)(nil)

func (ui *tuiUI) println(tag, format string, args ...any) {
	fmt.Fprintf(ui.output, "%s%s[-:-:-]\n", tag, tview.Escape(fmt.Sprintf(format, args...)))
	ui.output.ScrollToEnd()
}

func (ui *tuiUI) OnEvent(event debugger.EventData) {
	switch event.Event {
	case debugger.EventBreakpointHit:
		ui.println("[red::b]", "Breakpoint hit at line %d: %s", event.Line, event.Text)
	case debugger.EventProgramTerminated:
		ui.println("[green]", "Program terminated with exit code %d", event.ExitCode)
	case debugger.EventAwaitingInput:
		ui.println("[yellow]", "Waiting for a key: press Tab and type it on the screen")
	case debugger.EventInterrupted:
		ui.println("[yellow]", "Paused at line %d", event.Line)
	case debugger.EventError:
		ui.println("[red::b]", "Error at line %d (%s): %v", event.Line, event.Text, event.Error)
	case debugger.EventProgramLoaded:
		ui.println("[green]", "Program loaded")
	}
}

func (ui *tuiUI) ShowMessage(level debugger.MessageLevel, format string, args ...any) {
	tags := map[debugger.MessageLevel]string{
		debugger.LevelError:   "[red]",
		debugger.LevelWarning: "[yellow]",
		debugger.LevelSuccess: "[green]",
		debugger.LevelDebug:   "[gray]",
	}
	ui.println(tags[level], format, args...)
}

func (ui *tuiUI) ShowSource(lines []debugger.SourceLine) {
	for _, line := range lines {
		marker := "  "
		if line.IsCurrent {
			marker = "=>"
		}
		ui.println("", "%s %4d %s", marker, line.Line, line.Text)
	}
}

func (ui *tuiUI) ShowRegisters(regs machine.Registers, flags machine.Flags) {
	ui.println("", "%s", registerText(regs, flags))
}

func (ui *tuiUI) ShowMemory(addr uint32, data []byte) {
	for i := 0; i < len(data); i += 16 {
		end := min(i+16, len(data))
		var sb strings.Builder
		for _, b := range data[i:end] {
			fmt.Fprintf(&sb, "%02X ", b)
		}
		ui.println("[aqua]", "%05X  %s", addr+uint32(i), sb.String())
	}
}

func (ui *tuiUI) ShowScreen(snapshot machine.Snapshot) {
	ui.println("", "%s", strings.Join(screenRows(snapshot), "\n"))
}

func (ui *tuiUI) ShowStack(sp uint16, words []uint16, frames []machine.CallFrame) {
	for i, word := range words {
		ui.println("", "%04X: %04X", sp+uint16(2*i), word)
	}
	for _, frame := range frames {
		ui.println("[green]", "%s returns to line %d", frame.Label, frame.ReturnIndex+1)
	}
}

func (ui *tuiUI) ShowBreakpoints(breakpoints []interpreter.Breakpoint) {
	for _, bp := range breakpoints {
		ui.println("", "line %d enabled=%v hits=%d %s", bp.Line, bp.Enabled, bp.HitCount, bp.Condition)
	}
}

func (ui *tuiUI) ShowEvalResult(expr string, value int64, err error) {
	if err != nil {
		ui.println("[red]", "Error: %v", err)
		return
	}
	ui.println("", "%s = %d (%04XH) [%s]", expr, value, uint16(value), debugger.FormatBinary(uint16(value)))
}

func (ui *tuiUI) ShowHelp(commands []debugger.CommandHelp) {
	ui.println("[::b]", "F5 run  F6 pause  F9 breakpoint  F10 step  Tab keyboard/command  Ctrl+C quit")
	for _, cmd := range commands {
		ui.println("", "  %-10s %s", cmd.Name, cmd.Usage)
	}
}

func registerText(regs machine.Registers, flags machine.Flags) string {
	var sb strings.Builder
	for i, name := range machine.RegisterNames {
		value, _ := regs.Get(name)
		fmt.Fprintf(&sb, "%-2s %04X", name, value)
		if i%2 == 1 {
			sb.WriteByte('\n')
		} else {
			sb.WriteString("  ")
		}
	}
	sb.WriteString("\n\n")
	for _, name := range machine.FlagNames {
		bit := 0
		if set, _ := flags.Get(name); set {
			bit = 1
		}
		fmt.Fprintf(&sb, "%s=%d ", name, bit)
	}
	return sb.String()
}

// tui is the full screen debugger
type tui struct {
	app        *tview.Application
	backend    *debugger.Backend
	controller *debugger.Controller

	source    *tview.TextView
	screen    *tview.TextView
	registers *tview.TextView
	stack     *tview.TextView
	status    *tview.TextView
	command   *tview.InputField

	stopOnce sync.Once
	done     chan struct{}
}

func newTUI(backend *debugger.Backend) *tui {
	t := &tui{
		app:     tview.NewApplication(),
		backend: backend,
		done:    make(chan struct{}),
	}

	panel := func(title string) *tview.TextView {
		view := tview.NewTextView().SetDynamicColors(true).SetWrap(false)
		view.SetBorder(true).SetTitle(" " + title + " ")
		return view
	}

	t.source = panel("Source")
	t.screen = panel("Screen")
	t.registers = panel("Registers")
	t.stack = panel("Call stack")
	t.status = tview.NewTextView().SetDynamicColors(true)
	output := panel("Output")

	t.controller = debugger.NewController(backend, &tuiUI{output: output}, debugger.WithTicker())

	t.command = tview.NewInputField().SetLabel("(emu8086) ").SetFieldBackgroundColor(tcell.ColorDefault)
	t.command.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		t.execute(t.command.GetText())
		t.command.SetText("")
	})

	t.screen.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if key, ok := tcellKey(ev); ok {
			result := t.backend.SubmitKey(key)
			if result.StepsExecuted > 0 || result.Mode == debugger.ModeHalted {
				t.controller.Report(result)
			}
			t.refresh()
			return nil
		}
		return ev
	})

	side := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(t.registers, 11, 0, false).
		AddItem(t.stack, 0, 1, false)
	top := tview.NewFlex().
		AddItem(t.source, 0, 1, false).
		AddItem(t.screen, machine.ScreenMaxColumns+2, 0, false).
		AddItem(side, 26, 0, false)
	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(top, machine.ScreenRows+2, 0, false).
		AddItem(output, 0, 1, false).
		AddItem(t.status, 1, 0, false).
		AddItem(t.command, 1, 0, true)

	t.app.SetInputCapture(t.globalKeys)
	t.app.SetRoot(root, true).SetFocus(t.command)
	return t
}

func (t *tui) globalKeys(ev *tcell.EventKey) *tcell.EventKey {
	switch ev.Key() {
	case tcell.KeyF5:
		t.backend.Run()
	case tcell.KeyF6:
		t.controller.Report(t.backend.Pause())
	case tcell.KeyF9:
		t.toggleBreakpoint()
	case tcell.KeyF10:
		t.execute("step")
	case tcell.KeyTab:
		if t.app.GetFocus() == t.command {
			t.app.SetFocus(t.screen)
			t.screen.SetTitle(" Screen (keyboard) ")
		} else {
			t.app.SetFocus(t.command)
			t.screen.SetTitle(" Screen ")
		}
	default:
		return ev
	}
	t.refresh()
	return nil
}

func (t *tui) toggleBreakpoint() {
	line := t.backend.Snapshot().Line
	if line == 0 {
		return
	}
	for _, bp := range t.backend.Breakpoints() {
		if bp.Line == line {
			t.execute("delete " + strconv.Itoa(line))
			return
		}
	}
	t.execute("break " + strconv.Itoa(line))
}

// execute runs a command line. Runs are handed to the ticker instead of
// blocking the interface.
func (t *tui) execute(line string) {
	fields := strings.Fields(line)
	if len(fields) > 0 {
		switch strings.ToLower(fields[0]) {
		case "continue", "c", "run", "r":
			t.backend.Run()
			t.refresh()
			return
		case "quit", "q", "exit":
			t.stop()
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	t.controller.Execute(ctx, line)
	t.refresh()
}

// tick drives runs: one batch per tick interval of the current speed
func (t *tui) tick() {
	for {
		select {
		case <-t.done:
			return
		case <-time.After(t.backend.Speed().TickInterval()):
		}

		if mode, _ := t.backend.Mode(); mode != debugger.ModeRunning {
			continue
		}
		result := t.backend.Tick()
		t.app.QueueUpdateDraw(func() {
			if result.Mode != debugger.ModeRunning {
				t.controller.Report(result)
			}
			t.refresh()
		})
	}
}

func (t *tui) refresh() {
	snapshot := t.backend.Snapshot()
	t.refreshSource(snapshot)
	t.screen.SetText(screenMarkup(snapshot.Snapshot))
	t.registers.SetText(registerText(snapshot.Registers, snapshot.Flags))
	t.refreshStack(snapshot)

	reason := ""
	if snapshot.Mode == debugger.ModeHalted {
		reason = " (" + snapshot.Reason.String() + ")"
	}
	t.status.SetText(fmt.Sprintf("[black:aqua] %s%s [-:-] line %d  steps %d  speed %v  keys %d   [gray]F5 run F6 pause F9 break F10 step Tab keyboard",
		snapshot.Mode, reason, snapshot.Line, snapshot.Executed, snapshot.Speed, snapshot.Keys))
}

func (t *tui) refreshSource(snapshot debugger.Snapshot) {
	program := t.backend.Program()
	breakpoints := make(map[int]bool)
	for _, bp := range snapshot.Breakpoints {
		breakpoints[bp.Line] = bp.Enabled
	}

	var sb strings.Builder
	for _, instr := range program.Instructions {
		marker := "  "
		if enabled, ok := breakpoints[instr.Line]; ok {
			marker = "[red]o [-]"
			if enabled {
				marker = "[red]* [-]"
			}
		}
		text := tview.Escape(instr.Text)
		if instr.Line == snapshot.Line {
			fmt.Fprintf(&sb, "%s[black:green]%4d %s[-:-]\n", marker, instr.Line, text)
		} else {
			fmt.Fprintf(&sb, "%s[gray]%4d[-] %s\n", marker, instr.Line, text)
		}
	}
	t.source.SetText(sb.String())

	_, _, _, height := t.source.GetInnerRect()
	t.source.ScrollTo(max(snapshot.Line-height/2, 0), 0)
}

func (t *tui) refreshStack(snapshot debugger.Snapshot) {
	var sb strings.Builder
	for i := len(snapshot.CallStack) - 1; i >= 0; i-- {
		frame := snapshot.CallStack[i]
		fmt.Fprintf(&sb, "[green]%s[-] -> %d\n", tview.Escape(frame.Label), frame.ReturnIndex+1)
	}
	if len(snapshot.CallStack) == 0 {
		sb.WriteString("[gray](empty)[-]\n")
	}
	t.stack.SetText(sb.String())
}

// screenMarkup renders the screen cells as tview color tags. The cursor cell
// is shown in reverse video.
func screenMarkup(snapshot machine.Snapshot) string {
	var sb strings.Builder
	for row, cells := range snapshot.Screen {
		for col, cell := range cells {
			fg, bg := cgaNames[cell.Attribute&0x0F], cgaNames[cell.Attribute>>4&0x07]
			if cell.Attribute == 0 {
				fg = cgaNames[machine.DefaultAttribute]
			}
			flags := "-"
			if row == snapshot.Cursor.Row && col == snapshot.Cursor.Col {
				flags = "r"
			}
			fmt.Fprintf(&sb, "[%s:%s:%s]%s", fg, bg, flags, tview.Escape(string(cell.Rune())))
		}
		sb.WriteString("[-:-:-]\n")
	}
	return sb.String()
}

func (t *tui) stop() {
	t.stopOnce.Do(func() {
		close(t.done)
		t.app.Stop()
	})
}

func (t *tui) run() error {
	t.refresh()
	go t.tick()
	defer t.stop()
	return t.app.Run()
}

var tuiCmd = &cobra.Command{
	Use:   "tui <file.asm>",
	Short: "Debug a program in a full screen terminal interface",
	Long: `Full screen debugger showing the source, the emulated screen, registers,
flags and call stack side by side.

Keys:
  F5   run          F6  pause
  F9   breakpoint   F10 step
  Tab  switch between the command line and the emulated keyboard

Every command of 'emu debug' is available on the command line.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openSession(nil)
		if err != nil {
			fail(1, "%v", err)
		}
		defer s.Close()

		backend, err := s.backend(args[0])
		if err != nil {
			s.fail(1, "%v", err)
		}
		if err := newTUI(backend).run(); err != nil {
			s.fail(1, "%v", err)
		}
	},
}

func init() {
	EmuCmd.AddCommand(tuiCmd)
}
