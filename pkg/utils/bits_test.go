package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBitView(t *testing.T) {
	var word uint16
	view := CreateBitView(&word)

	view.SetBit(1)
	view.Write(0b101, 8, 3)
	assert.Equal(t, uint16(0x0502), word)
	assert.Equal(t, uint16(0b101), view.Read(8, 3))

	view.Write(0xFF, 8, 3)
	assert.Equal(t, uint16(0x0702), word, "bits past the width are dropped")
}

func TestWordBytes(t *testing.T) {
	assert.Equal(t, uint8(0x12), High(0x1234))
	assert.Equal(t, uint8(0x34), Low(0x1234))
	assert.Equal(t, uint16(0xABCD), Word(0xAB, 0xCD))
	assert.Equal(t, uint32(0xFFFF), AllOnes[uint32](16))
}
