// Package keyboard implements the VM's keyboard and joystick input device.
package keyboard

import (
	"strings"
	"sync"
)

const (
	// KeyCount is the number of key numbers reported by INKEY(n).
	KeyCount = 80
	// TokenCount is the number of expansion tokens (KEY 0..31).
	TokenCount = 32

	// first character code of the expansion tokens 128..159
	tokenBase = 128
	// key buffer limit; further keys are dropped
	maxBuffered = 256
)

// Modifier bits reported by KeyState for a pressed key.
const (
	ModShift = 32
	ModCtrl  = 128
)

// Joystick direction and fire bits for JOY(n).
const (
	JoyUp    = 1
	JoyDown  = 2
	JoyLeft  = 4
	JoyRight = 8
	JoyFire2 = 16
	JoyFire1 = 32
)

// Buffer implements cpcvm.InputDevice. It is fed by the host (terminal or
// websocket) and read by the VM; all methods are safe for concurrent use.
type Buffer struct {
	mu     sync.Mutex
	keys   []string
	states [KeyCount]int
	joy    [2]int
	tokens [TokenCount]string
	escape bool
}

// NewBuffer returns an empty buffer with the default expansion tokens.
func NewBuffer() *Buffer {
	b := &Buffer{}
	b.resetStates()
	b.resetTokens()
	return b
}

func (b *Buffer) resetStates() {
	for i := range b.states {
		b.states[i] = -1
	}
}

// resetTokens restores the power-on function keys: digits, "." and RUN".
func (b *Buffer) resetTokens() {
	for i := range b.tokens {
		b.tokens[i] = ""
	}
	for i := 0; i < 10; i++ {
		b.tokens[i] = string(rune('0' + i))
	}
	b.tokens[10] = "."
	b.tokens[11] = "\r"
	b.tokens[12] = "RUN\"\r"
}

// PutKey appends typed text. Characters 128..159 are expanded through their
// token; the ESC character sets the escape flag instead of being buffered.
func (b *Buffer) PutKey(s string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range s {
		switch {
		case r == 0x1b:
			b.escape = true
		case r >= tokenBase && r < tokenBase+TokenCount:
			for _, t := range b.tokens[r-tokenBase] {
				b.push(string(t))
			}
		default:
			b.push(string(r))
		}
	}
}

func (b *Buffer) push(key string) {
	if len(b.keys) >= maxBuffered {
		return
	}
	b.keys = append(b.keys, key)
}

// GetKeyFromBuffer removes and returns the oldest key, or "".
func (b *Buffer) GetKeyFromBuffer() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.keys) == 0 {
		return ""
	}
	k := b.keys[0]
	b.keys = b.keys[1:]
	return k
}

// PeekKey returns the oldest key without removing it.
func (b *Buffer) PeekKey() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.keys) == 0 {
		return ""
	}
	return b.keys[0]
}

// Pending returns the number of buffered keys.
func (b *Buffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.keys)
}

// SetKeyState records a key press (modifier bits) or release (-1).
func (b *Buffer) SetKeyState(key, state int) {
	if key < 0 || key >= KeyCount {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states[key] = state
}

// KeyState returns -1 for a released key, otherwise its modifier bits.
func (b *Buffer) KeyState(key int) int {
	if key < 0 || key >= KeyCount {
		return -1
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.states[key]
}

// SetJoystick sets the direction and fire bits of joystick n.
func (b *Buffer) SetJoystick(n, bits int) {
	if n < 0 || n > 1 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.joy[n] = bits
}

func (b *Buffer) Joystick(n int) int {
	if n < 0 || n > 1 {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.joy[n]
}

// SetExpansionToken implements KEY token,s.
func (b *Buffer) SetExpansionToken(token int, s string) {
	if token < 0 || token >= TokenCount {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens[token] = s
}

// ExpansionToken returns the text of a token.
func (b *Buffer) ExpansionToken(token int) string {
	if token < 0 || token >= TokenCount {
		return ""
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens[token]
}

// ClearInput drops buffered keys and pressed states.
func (b *Buffer) ClearInput() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keys = nil
	b.resetStates()
}

// TakeEscape reports and clears a pending ESC.
func (b *Buffer) TakeEscape() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	esc := b.escape
	b.escape = false
	return esc
}

// ReadLine removes keys up to and including a carriage return and returns
// the line without it. ok is false while no complete line is buffered.
func (b *Buffer) ReadLine() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, k := range b.keys {
		if k == "\r" || k == "\n" {
			var sb strings.Builder
			for _, c := range b.keys[:i] {
				if c == "\x7f" || c == "\b" {
					s := sb.String()
					if len(s) > 0 {
						sb.Reset()
						sb.WriteString(s[:len(s)-1])
					}
					continue
				}
				sb.WriteString(c)
			}
			b.keys = b.keys[i+1:]
			return sb.String(), true
		}
	}
	return "", false
}
