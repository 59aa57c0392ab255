package loader

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseNumber decodes an assembler numeric literal: decimal (optionally with a
// trailing D), hexadecimal with a trailing H or a 0x prefix, binary with a
// trailing B, or a quoted single character. A leading sign is accepted.
func ParseNumber(token string) (int64, error) {
	text := strings.TrimSpace(token)
	if text == "" {
		return 0, fmt.Errorf("empty number")
	}

	if s, ok := unquote(text); ok {
		if len(s) != 1 {
			return 0, fmt.Errorf("invalid character literal %s", token)
		}
		return int64(s[0]), nil
	}

	negative := false
	switch text[0] {
	case '-':
		negative = true
		text = text[1:]
	case '+':
		text = text[1:]
	}

	upper := strings.ToUpper(text)
	if upper == "" || upper[0] < '0' || upper[0] > '9' {
		return 0, fmt.Errorf("invalid number %s", token)
	}

	base := 10
	digits := upper

	switch {
	case strings.HasPrefix(upper, "0X"):
		base, digits = 16, upper[2:]
	case strings.HasSuffix(upper, "H"):
		base, digits = 16, upper[:len(upper)-1]
	case strings.HasSuffix(upper, "B"):
		base, digits = 2, upper[:len(upper)-1]
	case strings.HasSuffix(upper, "D"):
		digits = upper[:len(upper)-1]
	}

	if digits == "" || !isDigitOf(digits[0], base) {
		return 0, fmt.Errorf("invalid number %s", token)
	}

	value, err := strconv.ParseUint(digits, base, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid number %s: %w", token, err)
	}

	if negative {
		return -int64(value), nil
	}
	return int64(value), nil
}

// LooksNumeric tells whether token starts like a number literal, so that
// malformed literals ("12XH") can be told apart from identifiers
func LooksNumeric(token string) bool {
	token = strings.TrimLeft(strings.TrimSpace(token), "+-")
	return token != "" && token[0] >= '0' && token[0] <= '9'
}

func isDigitOf(c byte, base int) bool {
	switch base {
	case 2:
		return c == '0' || c == '1'
	case 16:
		return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F')
	default:
		return c >= '0' && c <= '9'
	}
}
