package machine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScreen_PutLivesInMemory(t *testing.T) {
	s := NewState()
	s.Screen.Put(1, 2, 'A', 0x1F)

	addr := ScreenBase + uint32(2*(1*80+2))
	assert.Equal(t, byte('A'), s.Memory.Bytes()[addr])
	assert.Equal(t, byte(0x1F), s.Memory.Bytes()[addr+1])
	assert.Equal(t, Cell{Char: 'A', Attribute: 0x1F}, s.Screen.At(1, 2))
}

func TestScreen_Clipping(t *testing.T) {
	s := NewState()
	s.Screen.Put(25, 0, 'X', 0x07)
	s.Screen.Put(0, 80, 'X', 0x07)
	assert.Equal(t, "", s.Screen.Text())
}

func TestScreen_SetMode(t *testing.T) {
	s := NewState()
	s.Screen.Put(0, 0, 'A', 0x07)
	s.Screen.SetCursor(3, 3)

	s.Screen.SetMode(1)
	assert.Equal(t, 40, s.Screen.Columns())
	assert.Equal(t, Cursor{}, s.Screen.Cursor)
	assert.Equal(t, "", s.Screen.Line(0))
}

func TestScreen_Scroll(t *testing.T) {
	s := NewState()
	for row := 0; row < 3; row++ {
		s.Screen.Put(row, 0, byte('A'+row), 0x07)
	}

	s.Screen.ScrollUp(0, 0, 2, 79, 1, 0x07)
	assert.Equal(t, "B", s.Screen.Line(0))
	assert.Equal(t, "C", s.Screen.Line(1))
	assert.Equal(t, "", s.Screen.Line(2))

	s.Screen.ScrollDown(0, 0, 2, 79, 1, 0x07)
	assert.Equal(t, "", s.Screen.Line(0))
	assert.Equal(t, "B", s.Screen.Line(1))
	assert.Equal(t, "C", s.Screen.Line(2))

	s.Screen.ScrollUp(0, 0, 2, 79, 0, 0x07)
	assert.Equal(t, "", s.Screen.Text())
}

func TestScreen_Teletype(t *testing.T) {
	s := NewState()
	for _, c := range []byte("HI\r\nX") {
		s.Screen.Teletype(c, DefaultAttribute)
	}
	assert.Equal(t, "HI", s.Screen.Line(0))
	assert.Equal(t, "X", s.Screen.Line(1))
	assert.Equal(t, Cursor{Row: 1, Col: 1}, s.Screen.Cursor)

	t.Run("scrolls at the bottom", func(t *testing.T) {
		s.Screen.SetCursor(24, 0)
		s.Screen.Teletype('Z', DefaultAttribute)
		s.Screen.Teletype('\r', DefaultAttribute)
		s.Screen.Teletype('\n', DefaultAttribute)
		assert.Equal(t, "Z", s.Screen.Line(23))
		assert.Equal(t, 24, s.Screen.Cursor.Row)
	})
}

func TestCell_RuneIsCP437(t *testing.T) {
	assert.Equal(t, '█', Cell{Char: 0xDB}.Rune())
	assert.Equal(t, 'A', Cell{Char: 'A'}.Rune())
	assert.Equal(t, ' ', Cell{}.Rune())
}
