package utils

import (
	"strconv"
	"strings"
)

// Formats value in base 2, zero padded to bits digits
func FormatUintBinary(value uint64, bits int) string {
	digits := strconv.FormatUint(value, 2)
	if len(digits) >= bits {
		return digits
	}
	return strings.Repeat("0", bits-len(digits)) + digits
}
