package emu

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Manu343726/emu8086/pkg/hw/cpu/machine"
	"github.com/gdamore/tcell/v2"
	"golang.org/x/term"
)

var errInterrupted = errors.New("interrupted")

// textKeys types a fixed text. Newlines are sent as Enter.
type textKeys struct {
	runes []rune
}

func newTextKeys(text string) *textKeys {
	return &textKeys{runes: []rune(text)}
}

func (k *textKeys) NextKey() (machine.KeyEvent, error) {
	if len(k.runes) == 0 {
		return machine.KeyEvent{}, io.EOF
	}
	r := k.runes[0]
	k.runes = k.runes[1:]
	return machine.KeyFromRune(r), nil
}

// readerKeys reads keys byte by byte from a non interactive stream
type readerKeys struct {
	reader *bufio.Reader
}

func newReaderKeys(r io.Reader) *readerKeys {
	return &readerKeys{reader: bufio.NewReader(r)}
}

func (k *readerKeys) NextKey() (machine.KeyEvent, error) {
	b, err := k.reader.ReadByte()
	if err != nil {
		return machine.KeyEvent{}, err
	}
	return machine.KeyFromRune(rune(b)), nil
}

// terminalKeys reads raw keystrokes from a terminal. Before blocking it
// redraws the emulated screen so prompts are visible.
type terminalKeys struct {
	fd       int
	previous *term.State
	in       *os.File
	out      io.Writer
	redraw   func() string
}

func newTerminalKeys(in *os.File, out io.Writer, redraw func() string) (*terminalKeys, error) {
	fd := int(in.Fd())
	previous, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("failed to put the terminal in raw mode: %w", err)
	}
	return &terminalKeys{fd: fd, previous: previous, in: in, out: out, redraw: redraw}, nil
}

func (k *terminalKeys) NextKey() (machine.KeyEvent, error) {
	if k.redraw != nil {
		fmt.Fprint(k.out, "\x1b[H\x1b[2J", k.redraw())
	}

	var buf [1]byte
	if _, err := k.in.Read(buf[:]); err != nil {
		return machine.KeyEvent{}, err
	}
	switch buf[0] {
	case 0x03:
		return machine.KeyEvent{}, errInterrupted
	case 0x04:
		return machine.KeyEvent{}, io.EOF
	}
	return machine.KeyFromRune(rune(buf[0])), nil
}

// Close restores the terminal mode
func (k *terminalKeys) Close() error {
	return term.Restore(k.fd, k.previous)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// tcellKey translates a TUI key press into an emulated keystroke
func tcellKey(ev *tcell.EventKey) (machine.KeyEvent, bool) {
	switch ev.Key() {
	case tcell.KeyRune:
		return machine.KeyFromRune(ev.Rune()), true
	case tcell.KeyEnter:
		return machine.KeyFromRune('\r'), true
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		return machine.KeyFromRune('\b'), true
	case tcell.KeyTab:
		return machine.KeyEvent{ASCII: '\t', Scan: 0x0F}, true
	}
	if scan, ok := extendedScanCodes[ev.Key()]; ok {
		return machine.KeyEvent{Scan: scan}, true
	}
	return machine.KeyEvent{}, false
}

// extendedScanCodes are keys the BIOS reports with ASCII 0
var extendedScanCodes = map[tcell.Key]uint8{
	tcell.KeyUp:     0x48,
	tcell.KeyDown:   0x50,
	tcell.KeyLeft:   0x4B,
	tcell.KeyRight:  0x4D,
	tcell.KeyHome:   0x47,
	tcell.KeyEnd:    0x4F,
	tcell.KeyPgUp:   0x49,
	tcell.KeyPgDn:   0x51,
	tcell.KeyInsert: 0x52,
	tcell.KeyDelete: 0x53,
}
