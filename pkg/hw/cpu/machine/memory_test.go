package machine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhysical(t *testing.T) {
	assert.Equal(t, uint32(0x20010), Physical(0x2000, 0x0010))
	assert.Equal(t, uint32(0x12345), Physical(0x1000, 0x2345))
	// Wraps around the 1 MiB boundary
	assert.Equal(t, uint32(0x0FFEF), Physical(0xFFFF, 0xFFFF))
}

func TestMemory_ReadWrite(t *testing.T) {
	mem := NewMemory(MemorySize)

	t.Run("little endian word", func(t *testing.T) {
		require.NoError(t, mem.Write16(0x100, 0xBEEF))
		assert.Equal(t, byte(0xEF), mem.Bytes()[0x100])
		assert.Equal(t, byte(0xBE), mem.Bytes()[0x101])

		value, err := mem.Read16(0x100)
		require.NoError(t, err)
		assert.Equal(t, uint16(0xBEEF), value)
	})

	t.Run("byte width truncates", func(t *testing.T) {
		require.NoError(t, mem.Write(0x200, Byte, 0x1234))
		value, err := mem.Read(0x200, Byte)
		require.NoError(t, err)
		assert.Equal(t, uint16(0x34), value)
	})

	t.Run("last byte is addressable", func(t *testing.T) {
		require.NoError(t, mem.Write8(MemorySize-1, 0xAA))
		value, err := mem.Read8(MemorySize - 1)
		require.NoError(t, err)
		assert.Equal(t, uint8(0xAA), value)
	})

	t.Run("word past the end fails", func(t *testing.T) {
		_, err := mem.Read16(MemorySize - 1)
		assert.True(t, errors.Is(err, ErrMemoryAccessViolation))

		err = mem.Write16(MemorySize-1, 1)
		assert.True(t, errors.Is(err, ErrMemoryAccessViolation))
	})

	t.Run("bulk access", func(t *testing.T) {
		require.NoError(t, mem.WriteBytes(0x300, []byte("HI$")))
		data, err := mem.ReadBytes(0x300, 3)
		require.NoError(t, err)
		assert.Equal(t, []byte("HI$"), data)

		_, err = mem.ReadBytes(MemorySize-2, 3)
		assert.ErrorIs(t, err, ErrMemoryAccessViolation)
	})
}
