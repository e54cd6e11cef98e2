// Package escape holds back ANSI escape sequences arriving from the device
// one byte at a time so they reach the screen in one piece.
package escape

import (
	"errors"
	"fmt"

	"serterm/pkg/render"
)

const (
	// ESC starts an escape sequence
	ESC = 0x1B
	// MaxSequenceLen is the longest sequence buffered before it is given up on
	MaxSequenceLen = 64
)

// ErrNestedEscape is returned when an ESC arrives inside an unfinished sequence
var ErrNestedEscape = errors.New("escape sequence interrupted by another escape")

// Kind says what, if anything, a fed byte produced
type Kind int

const (
	// Nothing means the byte was absorbed into a pending sequence
	Nothing Kind = iota
	// Char is a plain byte to print at the device cursor
	Char
	// Sequence is a complete escape sequence
	Sequence
	// Literal is an abandoned partial sequence to print as text
	Literal
)

// String returns the name of the kind
func (k Kind) String() string {
	switch k {
	case Nothing:
		return "nothing"
	case Char:
		return "char"
	case Sequence:
		return "sequence"
	case Literal:
		return "literal"
	default:
		return "unknown"
	}
}

// Emit is the result of feeding one byte
type Emit struct {
	Kind  Kind
	Byte  byte
	Bytes []byte
	At    render.Position
}

// Buffer accumulates escape sequences. The zero value is idle and ready to use.
type Buffer struct {
	// Strict makes a nested escape panic instead of flushing the partial sequence
	Strict bool

	buf   []byte
	start render.Position
}

// Buffering reports whether a sequence is in progress
func (b *Buffer) Buffering() bool {
	return len(b.buf) > 0
}

// Start returns the device position the pending sequence started at
func (b *Buffer) Start() render.Position {
	return b.start
}

// Rebase moves the recorded start of the pending sequence
func (b *Buffer) Rebase(at render.Position) {
	if b.Buffering() {
		b.start = at
	}
}

// Reset drops any pending sequence
func (b *Buffer) Reset() {
	b.buf = b.buf[:0]
}

// Feed processes one device byte. at is the device cursor position at the
// time the byte arrived; it is recorded when a sequence starts and stamped on
// the emitted Sequence.
func (b *Buffer) Feed(c byte, at render.Position) (Emit, error) {
	if !b.Buffering() {
		if c != ESC {
			return Emit{Kind: Char, Byte: c, At: at}, nil
		}
		b.begin(at)
		return Emit{Kind: Nothing}, nil
	}

	if c == ESC {
		if b.Strict {
			panic(fmt.Sprintf("escape: nested escape after %q", b.buf))
		}
		flushed := b.take()
		b.begin(at)
		return flushed, ErrNestedEscape
	}

	b.buf = append(b.buf, c)
	if c == 'm' {
		seq := b.take()
		seq.Kind = Sequence
		return seq, nil
	}
	if len(b.buf) >= MaxSequenceLen {
		return b.take(), nil
	}
	return Emit{Kind: Nothing}, nil
}

func (b *Buffer) begin(at render.Position) {
	b.buf = append(b.buf[:0], ESC)
	b.start = at
}

// take empties the buffer and returns its contents as a Literal
func (b *Buffer) take() Emit {
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	b.buf = b.buf[:0]
	return Emit{Kind: Literal, Bytes: out, At: b.start}
}
