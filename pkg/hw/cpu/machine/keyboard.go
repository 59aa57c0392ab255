package machine

import "time"

// Common key codes
const (
	KeyBackspace uint8 = 0x08
	KeyEnter     uint8 = 0x0D
	KeyEscape    uint8 = 0x1B
)

// KeyEvent is a keystroke submitted by the host
type KeyEvent struct {
	ASCII     uint8
	Scan      uint8
	Timestamp time.Time
}

// Word packs the key the way the BIOS returns it: scan code high, ASCII low
func (k KeyEvent) Word() uint16 {
	return uint16(k.Scan)<<8 | uint16(k.ASCII)
}

// KeyFromRune builds a key event for a typed character. Scan codes are only
// approximated: the emulator never inspects them.
func KeyFromRune(r rune) KeyEvent {
	key := KeyEvent{ASCII: uint8(r), Timestamp: time.Now()}
	switch r {
	case '\n':
		key.ASCII = KeyEnter
		key.Scan = 0x1C
	case '\r':
		key.Scan = 0x1C
	case '\b', 0x7F:
		key.ASCII = KeyBackspace
		key.Scan = 0x0E
	case 0x1B:
		key.Scan = 0x01
	case ' ':
		key.Scan = 0x39
	}
	return key
}

// KeyQueue is a FIFO of pending keystrokes
type KeyQueue struct {
	events []KeyEvent
}

// Push appends a key at the tail of the queue
func (q *KeyQueue) Push(key KeyEvent) {
	q.events = append(q.events, key)
}

// Pop removes and returns the key at the head of the queue
func (q *KeyQueue) Pop() (KeyEvent, bool) {
	if len(q.events) == 0 {
		return KeyEvent{}, false
	}
	key := q.events[0]
	q.events = q.events[1:]
	return key, true
}

// Peek returns the key at the head of the queue without removing it
func (q *KeyQueue) Peek() (KeyEvent, bool) {
	if len(q.events) == 0 {
		return KeyEvent{}, false
	}
	return q.events[0], true
}

// Len returns the number of pending keys
func (q *KeyQueue) Len() int {
	return len(q.events)
}

// Clear drops every pending key
func (q *KeyQueue) Clear() {
	q.events = nil
}
