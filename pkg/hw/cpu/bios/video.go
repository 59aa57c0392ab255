package bios

import (
	"github.com/Manu343726/emu8086/pkg/hw/cpu/machine"
	"github.com/Manu343726/emu8086/pkg/utils"
)

// Write string (AH=13h) mode bits in AL
const (
	writeStringUpdateCursor = 1 << 0
	writeStringAttributes   = 1 << 1
)

func videoServices() map[uint8]Service {
	return map[uint8]Service{
		0x00: {Desc: "Set video mode", Handler: setMode},
		0x02: {Desc: "Set cursor position", Handler: setCursor},
		0x03: {Desc: "Get cursor position", Handler: getCursor},
		0x06: {Desc: "Scroll window up", Handler: scroll(true)},
		0x07: {Desc: "Scroll window down", Handler: scroll(false)},
		0x09: {Desc: "Write character and attribute", Handler: writeCharAttribute},
		0x0E: {Desc: "Teletype output", Handler: teletype},
		0x0F: {Desc: "Get video mode", Handler: getMode},
		0x13: {Desc: "Write string", Handler: writeString},
	}
}

// AH=00: AL = mode
func setMode(s *Services, state *machine.State) error {
	state.Screen.SetMode(utils.Low(state.Registers.AX))
	return nil
}

// AH=02: DH = row, DL = column
func setCursor(s *Services, state *machine.State) error {
	dx := state.Registers.DX
	state.Screen.SetCursor(int(utils.High(dx)), int(utils.Low(dx)))
	return nil
}

// AH=03: DH = row, DL = column, CX = cursor shape
func getCursor(s *Services, state *machine.State) error {
	cursor := state.Screen.Cursor
	state.Registers.DX = utils.Word(uint8(cursor.Row), uint8(cursor.Col))
	state.Registers.CX = 0x0607
	return nil
}

// AH=06/07: AL = lines (0 clears), BH = fill attribute, CH,CL = top left,
// DH,DL = bottom right
func scroll(up bool) Handler {
	return func(s *Services, state *machine.State) error {
		regs := state.Registers
		lines := int(utils.Low(regs.AX))
		attribute := utils.High(regs.BX)
		top, left := int(utils.High(regs.CX)), int(utils.Low(regs.CX))
		bottom, right := int(utils.High(regs.DX)), int(utils.Low(regs.DX))

		if up {
			state.Screen.ScrollUp(top, left, bottom, right, lines, attribute)
		} else {
			state.Screen.ScrollDown(top, left, bottom, right, lines, attribute)
		}
		return nil
	}
}

// AH=09: AL = char, BL = attribute, CX = count. The cursor does not move.
func writeCharAttribute(s *Services, state *machine.State) error {
	screen := state.Screen
	char := utils.Low(state.Registers.AX)
	attribute := utils.Low(state.Registers.BX)

	pos := screen.Cursor.Row*screen.Columns() + screen.Cursor.Col
	end := min(pos+int(state.Registers.CX), screen.Rows()*screen.Columns())
	for ; pos < end; pos++ {
		screen.Put(pos/screen.Columns(), pos%screen.Columns(), char, attribute)
	}
	return nil
}

// AH=0E: AL = char
func teletype(s *Services, state *machine.State) error {
	state.Screen.Teletype(utils.Low(state.Registers.AX), machine.DefaultAttribute)
	return nil
}

// AH=0F: AL = mode, AH = columns, BH = page
func getMode(s *Services, state *machine.State) error {
	state.Registers.AX = utils.Word(uint8(state.Screen.Columns()), state.Screen.Mode)
	state.Registers.BX = utils.Word(0, utils.Low(state.Registers.BX))
	return nil
}

// AH=13: AL = mode, BL = attribute, CX = length, DH,DL = row,col,
// ES:BP = string. Characters past the right edge are dropped.
func writeString(s *Services, state *machine.State) error {
	regs := state.Registers
	mode := utils.Low(regs.AX)
	attribute := utils.Low(regs.BX)
	row, col := int(utils.High(regs.DX)), int(utils.Low(regs.DX))

	stride := 1
	if mode&writeStringAttributes != 0 {
		stride = 2
	}

	data, err := state.Memory.ReadBytes(machine.Physical(regs.ES, regs.BP), int(regs.CX)*stride)
	if err != nil {
		return err
	}

	screen := state.Screen
	for i := 0; i < len(data); i += stride {
		if stride == 2 {
			attribute = data[i+1]
		}
		if col < screen.Columns() {
			screen.Put(row, col, data[i], attribute)
		}
		col++
	}

	if mode&writeStringUpdateCursor != 0 {
		screen.SetCursor(row, col)
	}
	return nil
}
