package utils

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidFrame = errors.New("invalid frame")

// FrameField is a named run of contiguous units within a frame
type FrameField struct {
	Name string

	// First unit of the field
	Begin int

	// Number of units
	Width int
}

// Returns the last unit covered by the field
func (f FrameField) Top() int {
	return f.End() - 1
}

// Returns the first unit past the field
func (f FrameField) End() int {
	return f.Begin + f.Width
}

type FrameLayout uint

const (
	// Units increase left to right
	LeftToRight FrameLayout = iota
	// Units increase right to left, as register diagrams are usually drawn
	RightToLeft
)

// Frame describes an ascii diagram of a binary word split in fields
type Frame struct {
	Fields []FrameField
	// Width of the whole frame in units. Units not covered by a field are
	// drawn as gap fields.
	Width int
	// Unit name shown in the widths row, "bits" for example
	Unit   string
	Layout FrameLayout
	// Spaces written before each row
	LeftPad int
	// Label of gap fields, "(unused)" if empty
	Gap string
	// Omits the row of width arrows
	HideWidths bool
}

type frameColumn struct {
	label  string
	name   string
	width  string
	length int
}

func centered(text string, decoration int, filler byte, length int, builder *strings.Builder) {
	free := length - len(text) - decoration
	left := free / 2
	builder.WriteString(strings.Repeat(string(filler), left))
	builder.WriteString(text)
	builder.WriteString(strings.Repeat(string(filler), free-left))
}

func (f Frame) fill() ([]FrameField, error) {
	if f.Width <= 0 {
		return nil, MakeError(ErrInvalidFrame, "frame width must be positive, got %d", f.Width)
	}

	gap := f.Gap
	if gap == "" {
		gap = "(unused)"
	}

	result := make([]FrameField, 0, len(f.Fields)+1)
	unit := 0
	for _, field := range f.Fields {
		if field.Width <= 0 {
			return nil, MakeError(ErrInvalidFrame, "field '%s' has width %d", field.Name, field.Width)
		}
		if field.Begin < unit {
			return nil, MakeError(ErrInvalidFrame, "field '%s' overlaps the previous one or is out of order", field.Name)
		}
		if field.Begin > unit {
			result = append(result, FrameField{Name: gap, Begin: unit, Width: field.Begin - unit})
		}
		result = append(result, field)
		unit = field.End()
	}

	if unit > f.Width {
		return nil, MakeError(ErrInvalidFrame, "fields cover %d units but the frame is %d units wide", unit, f.Width)
	}
	if unit < f.Width {
		result = append(result, FrameField{Name: gap, Begin: unit, Width: f.Width - unit})
	}

	return result, nil
}

// Renders the frame. The first row labels the boundaries of each field,
// followed by the boxed field names and, unless hidden, the width of each
// field.
func (f Frame) Draw() (string, error) {
	const (
		arrowLeft  = "<-"
		arrowRight = "->"
	)

	fields, err := f.fill()
	if err != nil {
		return "", err
	}

	columns := make([]frameColumn, len(fields))
	for i := range columns {
		field := fields[i]
		label := field.Begin
		if f.Layout == RightToLeft {
			field = fields[len(fields)-i-1]
			label = field.Top()
		}

		column := &columns[i]
		column.label = fmt.Sprint(label)
		column.name = fmt.Sprintf(" %v ", field.Name)
		column.width = fmt.Sprintf(" %v %v ", field.Width, f.Unit)
		column.length = max(len(column.label), len(column.name))
		if !f.HideWidths {
			column.length = max(column.length, len(arrowLeft)+len(column.width)+len(arrowRight))
		}
	}

	pad := strings.Repeat(" ", f.LeftPad)
	var labels, border, body, widths strings.Builder

	for _, column := range columns {
		labels.WriteString(column.label)
		labels.WriteString(strings.Repeat(" ", column.length-len(column.label)+1))
		border.WriteString("+")
		border.WriteString(strings.Repeat("-", column.length))
		body.WriteString("|")
		centered(column.name, 0, ' ', column.length, &body)
		if !f.HideWidths {
			widths.WriteString(" ")
			widths.WriteString(arrowLeft)
			centered(column.width, len(arrowLeft)+len(arrowRight), '-', column.length, &widths)
			widths.WriteString(arrowRight)
		}
	}

	last := fields[len(fields)-1].Top()
	if f.Layout == RightToLeft {
		last = 0
	}
	if fmt.Sprint(last) != columns[len(columns)-1].label {
		labels.WriteString(fmt.Sprint(last))
	}
	border.WriteString("+")
	body.WriteString("|")

	rows := []string{
		strings.TrimRight(labels.String(), " "),
		border.String(),
		body.String(),
		border.String(),
	}
	if !f.HideWidths {
		rows = append(rows, strings.TrimRight(widths.String(), " "))
	}

	var result strings.Builder
	for _, row := range rows {
		result.WriteString(pad)
		result.WriteString(row)
		result.WriteString("\n")
	}
	return result.String(), nil
}
