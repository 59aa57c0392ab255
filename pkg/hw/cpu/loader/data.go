package loader

import (
	"regexp"
	"strings"
)

// MaxDataSize bounds the data image to one 64 KiB segment
const MaxDataSize = 0x10000

var dataDirectives = map[string]int{
	"DB": 1,
	"DW": 2,
	"DD": 4,
}

var dupPattern = regexp.MustCompile(`(?i)^(.+?)\s+DUP\s*\((.*)\)$`)

// dataDeclaration recognizes "[name] DB|DW|DD items" lines
func dataDeclaration(text string) (name string, size int, items string, ok bool) {
	first, rest := splitWord(text)
	if size, ok := dataDirectives[strings.ToUpper(first)]; ok {
		return "", size, rest, true
	}
	second, rest := splitWord(rest)
	if size, ok := dataDirectives[strings.ToUpper(second)]; ok && IsIdentifier(first) {
		return strings.ToUpper(first), size, rest, true
	}
	return "", 0, "", false
}

// declare runs pass 1 over a single data declaration, appending its initial
// bytes to the data image and registering its symbol
func (a *assembler) declare(name string, size int, items string) {
	offset := len(a.program.Data)
	count := a.emit(SplitOperands(items), size, 0)

	if name == "" {
		return
	}
	if _, exists := a.program.Symbols[name]; exists {
		a.diagnose("duplicate variable %s", name)
		return
	}
	a.program.Symbols[name] = Symbol{
		Name:        name,
		Offset:      uint16(offset),
		ElementSize: size,
		Length:      count,
	}
}

// emit appends the given items and returns how many elements were written
func (a *assembler) emit(items []string, size int, depth int) int {
	count := 0

	for _, item := range items {
		if a.dataFull {
			return count
		}

		if item == "?" {
			a.emitValue(0, size)
			count++
			continue
		}

		if s, ok := unquote(item); ok {
			for i := 0; i < len(s); i++ {
				a.emitValue(int64(s[i]), size)
				count++
			}
			continue
		}

		if m := dupPattern.FindStringSubmatch(item); m != nil {
			repeat := a.value(m[1])
			if repeat < 0 || depth > 8 {
				a.diagnose("invalid DUP count in %s", item)
				continue
			}
			inner := SplitOperands(m[2])
			for i := int64(0); i < repeat && !a.dataFull; i++ {
				count += a.emit(inner, size, depth+1)
			}
			continue
		}

		a.emitValue(a.value(item), size)
		count++
	}

	return count
}

func (a *assembler) emitValue(value int64, size int) {
	if len(a.program.Data)+size > MaxDataSize {
		a.diagnose("data exceeds %d bytes, truncated", MaxDataSize)
		a.dataFull = true
		return
	}
	for i := 0; i < size; i++ {
		a.program.Data = append(a.program.Data, byte(value>>(8*i)))
	}
}

// value evaluates a declaration item: a number, an EQU constant, a character
// literal or OFFSET name. Anything it cannot decode becomes 0.
func (a *assembler) value(expr string) int64 {
	expr = strings.TrimSpace(expr)
	upper := strings.ToUpper(expr)

	if rest, ok := strings.CutPrefix(upper, "OFFSET "); ok {
		upper = strings.TrimSpace(rest)
	}
	if sym, ok := a.program.Symbols[upper]; ok {
		return int64(sym.Offset)
	}
	if c, ok := a.program.Constants[upper]; ok {
		return c
	}

	v, err := ParseNumber(expr)
	if err != nil {
		a.diagnose("%v, using 0", err)
		return 0
	}
	return v
}
