package machine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_PushPop(t *testing.T) {
	s := NewState()

	for _, name := range RegisterNames {
		if name == "SP" || name == "SS" {
			// Both move the stack itself
			continue
		}
		t.Run(name, func(t *testing.T) {
			s.Registers.Set(name, 0xA5A5)
			original, _ := s.Registers.Get(name)
			sp := s.Registers.SP

			require.NoError(t, s.Push(original))
			assert.Equal(t, sp-2, s.Registers.SP)
			s.Registers.Set(name, 0)

			value, err := s.Pop()
			require.NoError(t, err)
			s.Registers.Set(name, value)

			restored, _ := s.Registers.Get(name)
			assert.Equal(t, original, restored)
			assert.Equal(t, sp, s.Registers.SP)
		})
	}
}

func TestState_PushWritesThroughSS(t *testing.T) {
	s := NewState()
	require.NoError(t, s.Push(0x1234))

	value, err := s.Memory.Read16(Physical(DefaultSS, DefaultSP-2))
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), value)
}

func TestState_Reset(t *testing.T) {
	s := NewState()
	s.Registers.AX = 1
	s.Flags.CF = true
	s.Keys.Push(KeyFromRune('a'))
	s.PushFrame(CallFrame{Label: "F"})
	s.Screen.Put(0, 0, 'A', 0x07)
	s.Terminated = true

	s.Reset()

	assert.Equal(t, DefaultRegisters(), s.Registers)
	assert.Equal(t, DefaultFlags(), s.Flags)
	assert.Equal(t, 0, s.Keys.Len())
	assert.Empty(t, s.CallStack)
	assert.Equal(t, "", s.Screen.Text())
	assert.False(t, s.Terminated)
}

func TestKeyQueue_FIFO(t *testing.T) {
	var q KeyQueue
	q.Push(KeyFromRune('a'))
	q.Push(KeyFromRune('b'))

	head, ok := q.Peek()
	assert.True(t, ok)
	assert.Equal(t, uint8('a'), head.ASCII)

	first, _ := q.Pop()
	second, _ := q.Pop()
	_, ok = q.Pop()
	assert.Equal(t, uint8('a'), first.ASCII)
	assert.Equal(t, uint8('b'), second.ASCII)
	assert.False(t, ok)
}

func TestKeyFromRune(t *testing.T) {
	assert.Equal(t, KeyEnter, KeyFromRune('\n').ASCII)
	assert.Equal(t, KeyBackspace, KeyFromRune(0x7F).ASCII)
	assert.Equal(t, uint16(0x1C0D), KeyFromRune('\r').Word())
}
