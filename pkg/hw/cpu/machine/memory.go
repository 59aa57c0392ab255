package machine

import (
	"github.com/Manu343726/emu8086/pkg/utils"
)

// MemorySize is the size of the real-mode address space (1 MiB)
const MemorySize uint32 = 0x100000

// AddressMask masks a linear address into the 20-bit real-mode range
const AddressMask uint32 = MemorySize - 1

// Physical computes the 20-bit physical address of segment:offset
func Physical(segment, offset uint16) uint32 {
	return (uint32(segment)<<4 + uint32(offset)) & AddressMask
}

// Memory is the linear byte arena backing the emulated machine. The text
// screen lives inside it (see Screen), there is no separate video buffer.
type Memory struct {
	data []byte
}

// NewMemory creates a zeroed arena of the given size in bytes
func NewMemory(size uint32) *Memory {
	return &Memory{data: make([]byte, size)}
}

// Size returns the arena size in bytes
func (m *Memory) Size() uint32 {
	return uint32(len(m.data))
}

// Bytes returns the whole arena. Callers must treat it as read-only.
func (m *Memory) Bytes() []byte {
	return m.data
}

// Clear zeroes the whole arena
func (m *Memory) Clear() {
	clear(m.data)
}

func (m *Memory) check(addr uint32, size int) error {
	if uint64(addr)+uint64(size) > uint64(len(m.data)) {
		return utils.MakeError(ErrMemoryAccessViolation, "0x%05X + %d exceeds 0x%05X", addr, size, len(m.data))
	}
	return nil
}

// Read8 reads the byte at a physical address
func (m *Memory) Read8(addr uint32) (uint8, error) {
	if err := m.check(addr, 1); err != nil {
		return 0, err
	}
	return m.data[addr], nil
}

// Read16 reads a little-endian word at a physical address
func (m *Memory) Read16(addr uint32) (uint16, error) {
	if err := m.check(addr, 2); err != nil {
		return 0, err
	}
	return uint16(m.data[addr]) | uint16(m.data[addr+1])<<8, nil
}

// Write8 writes a byte at a physical address
func (m *Memory) Write8(addr uint32, value uint8) error {
	if err := m.check(addr, 1); err != nil {
		return err
	}
	m.data[addr] = value
	return nil
}

// Write16 writes a little-endian word at a physical address
func (m *Memory) Write16(addr uint32, value uint16) error {
	if err := m.check(addr, 2); err != nil {
		return err
	}
	m.data[addr] = byte(value)
	m.data[addr+1] = byte(value >> 8)
	return nil
}

// Read reads a value of the given width
func (m *Memory) Read(addr uint32, width Width) (uint16, error) {
	if width == Byte {
		v, err := m.Read8(addr)
		return uint16(v), err
	}
	return m.Read16(addr)
}

// Write writes a value of the given width, truncating it if needed
func (m *Memory) Write(addr uint32, width Width, value uint16) error {
	if width == Byte {
		return m.Write8(addr, uint8(value))
	}
	return m.Write16(addr, value)
}

// ReadBytes copies size bytes starting at addr
func (m *Memory) ReadBytes(addr uint32, size int) ([]byte, error) {
	if err := m.check(addr, size); err != nil {
		return nil, err
	}
	result := make([]byte, size)
	copy(result, m.data[addr:addr+uint32(size)])
	return result, nil
}

// WriteBytes copies data into memory starting at addr
func (m *Memory) WriteBytes(addr uint32, data []byte) error {
	if err := m.check(addr, len(data)); err != nil {
		return err
	}
	copy(m.data[addr:], data)
	return nil
}
