package machine

import (
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// Text-mode screen layout
const (
	ScreenBase       uint32 = 0xB8000
	ScreenRows              = 25
	ScreenMaxColumns        = 80
	ScreenSize              = ScreenRows * ScreenMaxColumns * 2

	DefaultAttribute uint8 = 0x07
)

// Cell is one character position of the screen
type Cell struct {
	Char      uint8
	Attribute uint8
}

// Rune returns the CP437 glyph of the cell character
func (c Cell) Rune() rune {
	if c.Char == 0 {
		return ' '
	}
	return charmap.CodePage437.DecodeByte(c.Char)
}

// Cursor is a screen position
type Cursor struct {
	Row, Col int
}

// Screen is a view over the reserved video range of Memory. It does not own
// any cell storage: every accessor computes an offset into the arena.
type Screen struct {
	mem     *Memory
	columns int
	Cursor  Cursor
	Mode    uint8
}

// NewScreen creates an 80-column screen view over mem
func NewScreen(mem *Memory) *Screen {
	return &Screen{mem: mem, columns: ScreenMaxColumns, Mode: 3}
}

// Columns returns the effective column count of the current video mode
func (s *Screen) Columns() int {
	return s.columns
}

// Rows returns the row count
func (s *Screen) Rows() int {
	return ScreenRows
}

// SetMode switches video mode, updating the column count and clearing the screen
func (s *Screen) SetMode(mode uint8) {
	s.Mode = mode
	switch mode {
	case 0, 1:
		s.columns = 40
	default:
		s.columns = ScreenMaxColumns
	}
	s.Clear(DefaultAttribute)
	s.Cursor = Cursor{}
}

// Reset restores mode 3 with a blank screen and the cursor at the origin
func (s *Screen) Reset() {
	s.SetMode(3)
}

func (s *Screen) inside(row, col int) bool {
	return row >= 0 && row < ScreenRows && col >= 0 && col < s.columns
}

func (s *Screen) addr(row, col int) uint32 {
	return ScreenBase + uint32(2*(row*s.columns+col))
}

// At returns the cell at row, col. Positions outside the screen read as blank.
func (s *Screen) At(row, col int) Cell {
	if !s.inside(row, col) {
		return Cell{Char: ' ', Attribute: DefaultAttribute}
	}
	data := s.mem.data[s.addr(row, col):]
	return Cell{Char: data[0], Attribute: data[1]}
}

// Put writes a cell at row, col. Positions outside the screen are clipped.
func (s *Screen) Put(row, col int, char, attribute uint8) {
	if !s.inside(row, col) {
		return
	}
	addr := s.addr(row, col)
	s.mem.data[addr] = char
	s.mem.data[addr+1] = attribute
}

// Clear blanks the whole screen with the given attribute
func (s *Screen) Clear(attribute uint8) {
	s.ClearWindow(0, 0, ScreenRows-1, s.columns-1, attribute)
}

// ClearWindow blanks a rectangular window (inclusive bounds)
func (s *Screen) ClearWindow(top, left, bottom, right int, attribute uint8) {
	for row := top; row <= bottom; row++ {
		for col := left; col <= right; col++ {
			s.Put(row, col, ' ', attribute)
		}
	}
}

func (s *Screen) clampWindow(top, left, bottom, right int) (int, int, int, int) {
	top = max(top, 0)
	left = max(left, 0)
	bottom = min(bottom, ScreenRows-1)
	right = min(right, s.columns-1)
	return top, left, bottom, right
}

// ScrollUp scrolls a window up by lines rows, filling the vacated rows with
// blanks of the given attribute. lines == 0 (or lines >= window height)
// clears the window.
func (s *Screen) ScrollUp(top, left, bottom, right, lines int, attribute uint8) {
	top, left, bottom, right = s.clampWindow(top, left, bottom, right)
	if top > bottom || left > right {
		return
	}
	if lines <= 0 || lines > bottom-top {
		s.ClearWindow(top, left, bottom, right, attribute)
		return
	}
	for row := top; row <= bottom-lines; row++ {
		for col := left; col <= right; col++ {
			c := s.At(row+lines, col)
			s.Put(row, col, c.Char, c.Attribute)
		}
	}
	s.ClearWindow(bottom-lines+1, left, bottom, right, attribute)
}

// ScrollDown scrolls a window down by lines rows, see ScrollUp
func (s *Screen) ScrollDown(top, left, bottom, right, lines int, attribute uint8) {
	top, left, bottom, right = s.clampWindow(top, left, bottom, right)
	if top > bottom || left > right {
		return
	}
	if lines <= 0 || lines > bottom-top {
		s.ClearWindow(top, left, bottom, right, attribute)
		return
	}
	for row := bottom; row >= top+lines; row-- {
		for col := left; col <= right; col++ {
			c := s.At(row-lines, col)
			s.Put(row, col, c.Char, c.Attribute)
		}
	}
	s.ClearWindow(top, left, top+lines-1, right, attribute)
}

// SetCursor moves the cursor, clamping it to the screen
func (s *Screen) SetCursor(row, col int) {
	s.Cursor = Cursor{
		Row: min(max(row, 0), ScreenRows-1),
		Col: min(max(col, 0), s.columns-1),
	}
}

func (s *Screen) newLine() {
	s.Cursor.Col = 0
	s.Cursor.Row++
	if s.Cursor.Row >= ScreenRows {
		s.ScrollUp(0, 0, ScreenRows-1, s.columns-1, 1, DefaultAttribute)
		s.Cursor.Row = ScreenRows - 1
	}
}

// Teletype writes a character at the cursor the way a console does: control
// characters move the cursor, printable ones are stored and advance it,
// wrapping at the right edge and scrolling at the bottom.
func (s *Screen) Teletype(char, attribute uint8) {
	switch char {
	case '\r':
		s.Cursor.Col = 0
	case '\n':
		col := s.Cursor.Col
		s.newLine()
		s.Cursor.Col = col
	case '\b':
		if s.Cursor.Col > 0 {
			s.Cursor.Col--
		}
	case 0x07:
		// bell
	default:
		s.Put(s.Cursor.Row, s.Cursor.Col, char, attribute)
		s.Cursor.Col++
		if s.Cursor.Col >= s.columns {
			s.newLine()
		}
	}
}

// Line returns row as a string, with trailing blanks removed
func (s *Screen) Line(row int) string {
	var b strings.Builder
	for col := 0; col < s.columns; col++ {
		b.WriteRune(s.At(row, col).Rune())
	}
	return strings.TrimRight(b.String(), " ")
}

// Text returns the whole screen, one line per row
func (s *Screen) Text() string {
	lines := make([]string, ScreenRows)
	for row := range lines {
		lines[row] = s.Line(row)
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}
