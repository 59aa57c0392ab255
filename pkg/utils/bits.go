package utils

import (
	"golang.org/x/exp/constraints"
)

const BitsPerByte = 8

// Returns a mask with the low n bits set
func AllOnes[T constraints.Unsigned](n int) T {
	return (T(1) << n) - 1
}

// BitView reads and writes bit ranges of an unsigned integer in place
type BitView[T constraints.Unsigned] struct {
	Bits *T
}

// Returns a view over value
func CreateBitView[T constraints.Unsigned](value *T) BitView[T] {
	return BitView[T]{Bits: value}
}

// Extracts width bits starting at bit
func (v BitView[T]) Read(bit int, width int) T {
	return (*v.Bits >> bit) & AllOnes[T](width)
}

// Stores the low width bits of value starting at bit, leaving the rest
// of the word untouched
func (v BitView[T]) Write(value T, bit int, width int) {
	mask := AllOnes[T](width) << bit
	*v.Bits = (*v.Bits &^ mask) | ((value << bit) & mask)
}

func (v BitView[T]) SetBit(bit int) {
	v.Write(1, bit, 1)
}

// Returns the upper byte of a word (AH of AX)
func High(word uint16) uint8 {
	return uint8(word >> BitsPerByte)
}

// Returns the lower byte of a word (AL of AX)
func Low(word uint16) uint8 {
	return uint8(word & 0xFF)
}

// Joins two bytes into a word, high first
func Word(high, low uint8) uint16 {
	return uint16(high)<<BitsPerByte | uint16(low)
}
