package emu

import (
	"strings"

	"github.com/Manu343726/emu8086/pkg/hw/cpu/machine"
	"github.com/fatih/color"
)

var (
	colorAddr       = color.New(color.FgCyan)
	colorReg        = color.New(color.FgGreen)
	colorValue      = color.New(color.FgWhite, color.Bold)
	colorHex        = color.New(color.FgMagenta)
	colorPrompt     = color.New(color.FgBlue, color.Bold)
	colorError      = color.New(color.FgRed, color.Bold)
	colorSuccess    = color.New(color.FgGreen)
	colorWarning    = color.New(color.FgYellow)
	colorHeader     = color.New(color.FgWhite, color.Bold, color.Underline)
	colorBreakpoint = color.New(color.FgRed, color.Bold)
	colorCurrent    = color.New(color.FgGreen, color.Bold)
	colorFlagSet    = color.New(color.FgGreen, color.Bold)
	colorFlagClear  = color.New(color.FgHiBlack)
	colorLine       = color.New(color.FgHiCyan)
	colorHiBlack    = color.New(color.FgHiBlack)
	colorCommand    = color.New(color.FgYellow)
)

// cgaToANSI maps the 3 low bits of a CGA color to the ANSI color order
var cgaToANSI = [8]color.Attribute{0, 4, 2, 6, 1, 5, 3, 7}

// attributeColor returns the terminal colors of a text attribute
func attributeColor(attribute uint8) *color.Color {
	fg, bg := attribute&0x0F, attribute>>4&0x07

	fgAttr := color.FgBlack + cgaToANSI[fg&0x07]
	if fg&0x08 != 0 {
		fgAttr = color.FgHiBlack + cgaToANSI[fg&0x07]
	}
	return color.New(fgAttr, color.BgBlack+cgaToANSI[bg])
}

// screenRows returns the screen as text, one string per row, right-trimmed,
// without the trailing blank rows
func screenRows(snapshot machine.Snapshot) []string {
	rows := make([]string, len(snapshot.Screen))
	last := -1
	for i, cells := range snapshot.Screen {
		var sb strings.Builder
		for _, cell := range cells {
			sb.WriteRune(cell.Rune())
		}
		rows[i] = strings.TrimRight(sb.String(), " ")
		if rows[i] != "" {
			last = i
		}
	}
	return rows[:last+1]
}

// renderScreen draws the screen for a terminal. Cells with the default
// attribute are written plain; the rest get their CGA colors.
func renderScreen(snapshot machine.Snapshot, newline string) string {
	var sb strings.Builder
	for row, cells := range snapshot.Screen {
		if row > 0 {
			sb.WriteString(newline)
		}
		for col := 0; col < len(cells); {
			attribute := cells[col].Attribute
			var run strings.Builder
			for ; col < len(cells) && cells[col].Attribute == attribute; col++ {
				run.WriteRune(cells[col].Rune())
			}
			if attribute == machine.DefaultAttribute || attribute == 0 {
				sb.WriteString(run.String())
			} else {
				sb.WriteString(attributeColor(attribute).Sprint(run.String()))
			}
		}
	}
	return sb.String()
}
