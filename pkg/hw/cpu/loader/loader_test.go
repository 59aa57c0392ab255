package loader

import (
	"errors"
	"testing"

	"github.com/Manu343726/emu8086/pkg/hw/cpu/machine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helloSource = `.MODEL SMALL
.STACK 100H
.DATA
MSG     DB 'HI$'
COUNT   DW 1234H, 5
BUF     DB 3 DUP(7)
.CODE
MAIN PROC
    MOV AX, @DATA
    MOV DS, AX
START:
    MOV DX, OFFSET MSG   ; comment, with a comma
    MOV AH, 09H
    INT 21H
DONE: MOV AH, 4CH
    INT 21H
MAIN ENDP
END MAIN
`

func TestLoad_Data(t *testing.T) {
	p := Load(helloSource)
	require.Empty(t, p.Diagnostics)

	assert.Equal(t, []byte{'H', 'I', '$', 0x34, 0x12, 0x05, 0x00, 7, 7, 7}, p.Data)

	msg, ok := p.Symbols.Lookup("msg")
	require.True(t, ok)
	assert.Equal(t, Symbol{Name: "MSG", Offset: 0, ElementSize: 1, Length: 3}, msg)
	assert.Equal(t, machine.Byte, msg.Width())

	count, ok := p.Symbols.Lookup("COUNT")
	require.True(t, ok)
	assert.Equal(t, uint16(3), count.Offset)
	assert.Equal(t, 2, count.Length)
	assert.Equal(t, machine.Word, count.Width())

	buf, ok := p.Symbols.Lookup("BUF")
	require.True(t, ok)
	assert.Equal(t, uint16(7), buf.Offset)
	assert.Equal(t, 3, buf.Length)
}

func TestLoad_Instructions(t *testing.T) {
	p := Load(helloSource)

	// One record per source line
	require.Len(t, p.Instructions, 18)
	for i, instr := range p.Instructions {
		assert.Equal(t, i+1, instr.Line)
	}

	assert.Equal(t, Empty, p.Instructions[0].Kind)
	assert.Equal(t, Empty, p.Instructions[3].Kind, "data declarations are empty records")

	mov := p.Instructions[11]
	assert.Equal(t, Command, mov.Kind)
	assert.Equal(t, "MOV", mov.Mnemonic)
	assert.Equal(t, []string{"DX", "OFFSET MSG"}, mov.Operands)
	assert.Equal(t, "MOV DX, OFFSET MSG", mov.Text)

	t.Run("labels point at instruction indices", func(t *testing.T) {
		start, ok := p.Labels.Lookup("start")
		require.True(t, ok)
		assert.Equal(t, 10, start)
		assert.Equal(t, Empty, p.Instructions[start].Kind)

		done, ok := p.Labels.Lookup("DONE")
		require.True(t, ok)
		assert.Equal(t, 14, done)
		assert.Equal(t, "MOV", p.Instructions[done].Mnemonic, "label-terminated lines keep their command")

		main, ok := p.Labels.Lookup("MAIN")
		require.True(t, ok)
		assert.Equal(t, 7, main)
		assert.Equal(t, main, p.Entry, "END names the entry point")
	})
}

func TestLoad_DataForms(t *testing.T) {
	tests := []struct {
		name   string
		source string
		data   []byte
	}{
		{"byte list", "X DB 1, 2, 0FFH", []byte{1, 2, 0xFF}},
		{"word little endian", "X DW 0ABCDH", []byte{0xCD, 0xAB}},
		{"doubleword", "X DD 12345678H", []byte{0x78, 0x56, 0x34, 0x12}},
		{"uninitialized", "X DW ?", []byte{0, 0}},
		{"string with terminators", "X DB 'A,B', 0DH, 0AH, '$'", []byte{'A', ',', 'B', 0x0D, 0x0A, '$'}},
		{"character literal", "X DB 'Z'", []byte{'Z'}},
		{"dup list", "X DB 2 DUP(1, 2)", []byte{1, 2, 1, 2}},
		{"nested dup", "X DB 2 DUP(2 DUP(9))", []byte{9, 9, 9, 9}},
		{"anonymous", "DB 5\nDW 6", []byte{5, 6, 0}},
		{"binary literal", "X DB 101B", []byte{5}},
		{"negative", "X DB -1", []byte{0xFF}},
		{"constant", "N EQU 3\nX DB N DUP(0)", []byte{0, 0, 0}},
		{"offset of earlier variable", "A DB 1, 2\nB DW OFFSET A", []byte{1, 2, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Load(tt.source)
			assert.Empty(t, p.Diagnostics)
			assert.Equal(t, tt.data, p.Data)
		})
	}
}

func TestLoad_MalformedLiteralsDecodeAsZero(t *testing.T) {
	p := Load("X DB 12ZH, 3\nY DW 9QQ")

	assert.Equal(t, []byte{0, 3, 0, 0}, p.Data)
	require.Len(t, p.Diagnostics, 2)
	for _, err := range p.Diagnostics {
		assert.True(t, errors.Is(err, machine.ErrLoad))
	}
}

func TestLoad_DuplicateLabel(t *testing.T) {
	p := Load("L: NOP\nL: NOP")

	idx, ok := p.Labels.Lookup("L")
	require.True(t, ok)
	assert.Equal(t, 0, idx)
	assert.Len(t, p.Diagnostics, 1)
}

func TestLoad_Segments(t *testing.T) {
	p := Load("DSEG SEGMENT\nDSEG ENDS\nCSEG SEGMENT\nASSUME CS:CSEG, DS:DSEG, SS:STK\nCSEG ENDS")

	reg, ok := p.Segment("cseg")
	assert.True(t, ok)
	assert.Equal(t, "CS", reg)

	reg, _ = p.Segment("DSEG")
	assert.Equal(t, "DS", reg)

	reg, _ = p.Segment("STK")
	assert.Equal(t, "SS", reg)

	reg, _ = p.Segment("@DATA")
	assert.Equal(t, "DS", reg)
}

func TestProgram_Install(t *testing.T) {
	p := Load("X DB 'OK'\nEND")
	state := machine.NewState()

	require.NoError(t, p.Install(state))

	data, err := state.Memory.ReadBytes(machine.Physical(machine.DefaultDS, 0), 2)
	require.NoError(t, err)
	assert.Equal(t, []byte("OK"), data)
	assert.Equal(t, uint16(0), state.Registers.IP)
}

func TestProgram_LabelAt(t *testing.T) {
	p := Load("NOP\nFOO: NOP")

	name, ok := p.LabelAt(1)
	assert.True(t, ok)
	assert.Equal(t, "FOO", name)

	_, ok = p.LabelAt(0)
	assert.False(t, ok)
}
