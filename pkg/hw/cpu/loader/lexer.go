package loader

import (
	"strings"
)

// stripComment removes a ';' comment, ignoring semicolons inside quotes
func stripComment(line string) string {
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == ';':
			return line[:i]
		}
	}
	return line
}

// SplitOperands splits an operand list on commas that are neither inside
// brackets, parentheses nor quotes. Each operand is trimmed and empty
// operands are dropped.
func SplitOperands(text string) []string {
	var (
		operands []string
		depth    int
		quote    byte
		start    int
	)

	flush := func(end int) {
		if op := strings.TrimSpace(text[start:end]); op != "" {
			operands = append(operands, op)
		}
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '[' || c == '(':
			depth++
		case c == ']' || c == ')':
			if depth > 0 {
				depth--
			}
		case c == ',' && depth == 0:
			flush(i)
			start = i + 1
		}
	}
	flush(len(text))

	return operands
}

// splitWord splits off the first whitespace-delimited word of text
func splitWord(text string) (word, rest string) {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, " \t"); i >= 0 {
		return text[:i], strings.TrimSpace(text[i+1:])
	}
	return text, ""
}

// splitLabel recognizes a leading "label:" and returns the label and the rest
// of the line. Segment overrides such as "ES:[DI]" are not labels.
func splitLabel(text string) (label, rest string, ok bool) {
	text = strings.TrimSpace(text)
	colon := strings.IndexByte(text, ':')
	if colon <= 0 {
		return "", text, false
	}
	candidate := text[:colon]
	if !IsIdentifier(candidate) {
		return "", text, false
	}
	switch strings.ToUpper(candidate) {
	case "CS", "DS", "SS", "ES":
		return "", text, false
	}
	return strings.ToUpper(candidate), strings.TrimSpace(text[colon+1:]), true
}

// IsIdentifier tells whether s can name a symbol, label or constant
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c == '_', c == '@', c == '$', c == '?', c == '.':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// unquote returns the content of a quoted literal and whether s was quoted
func unquote(s string) (string, bool) {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1], true
	}
	return "", false
}
