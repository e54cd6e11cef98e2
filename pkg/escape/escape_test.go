package escape

import (
	"bytes"
	"errors"
	"testing"

	"serterm/pkg/render"
)

func TestBuffer_PlainBytes(t *testing.T) {
	var b Buffer
	at := render.Position{Col: 4, Row: 2}

	e, err := b.Feed('A', at)
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if e.Kind != Char || e.Byte != 'A' || e.At != at {
		t.Errorf("Feed('A') = %+v, want Char 'A' at %v", e, at)
	}
	if b.Buffering() {
		t.Error("buffer should stay idle")
	}
}

func TestBuffer_SGRIsAtomic(t *testing.T) {
	var b Buffer
	start := render.Position{Col: 7, Row: 3}
	input := []byte{0x1B, 0x5B, 0x33, 0x31, 0x6D}

	for i, c := range input[:4] {
		e, err := b.Feed(c, start)
		if err != nil {
			t.Fatalf("byte %d: error = %v", i, err)
		}
		if e.Kind != Nothing {
			t.Fatalf("byte %d: kind = %v, want nothing", i, e.Kind)
		}
	}

	e, err := b.Feed(input[4], start)
	if err != nil {
		t.Fatalf("final byte: error = %v", err)
	}
	if e.Kind != Sequence {
		t.Fatalf("final byte: kind = %v, want sequence", e.Kind)
	}
	if !bytes.Equal(e.Bytes, input) {
		t.Errorf("sequence = % x, want % x", e.Bytes, input)
	}
	if e.At != start {
		t.Errorf("sequence stamped at %v, want %v", e.At, start)
	}
	if b.Buffering() {
		t.Error("buffer should be idle after the sequence")
	}
}

func TestBuffer_StampsStartPosition(t *testing.T) {
	var b Buffer

	b.Feed(ESC, render.Position{Col: 1})
	b.Feed('[', render.Position{Col: 9})
	e, _ := b.Feed('m', render.Position{Col: 9})

	if e.At != (render.Position{Col: 1}) {
		t.Errorf("sequence stamped at %v, want column 1", e.At)
	}
}

func TestBuffer_NestedEscape(t *testing.T) {
	var b Buffer
	first := render.Position{Col: 2}
	second := render.Position{Col: 5}

	b.Feed(ESC, first)
	b.Feed('[', first)
	e, err := b.Feed(ESC, second)

	if !errors.Is(err, ErrNestedEscape) {
		t.Fatalf("error = %v, want ErrNestedEscape", err)
	}
	if e.Kind != Literal || !bytes.Equal(e.Bytes, []byte{ESC, '['}) || e.At != first {
		t.Errorf("flushed = %+v, want literal ESC [ at %v", e, first)
	}
	if !b.Buffering() || b.Start() != second {
		t.Errorf("buffering restarted at %v, want %v", b.Start(), second)
	}

	b.Feed('[', second)
	e, err = b.Feed('m', second)
	if err != nil || e.Kind != Sequence || e.At != second {
		t.Errorf("second sequence = %+v, %v", e, err)
	}
}

func TestBuffer_StrictPanics(t *testing.T) {
	b := Buffer{Strict: true}
	b.Feed(ESC, render.Position{})

	defer func() {
		if recover() == nil {
			t.Error("expected panic on nested escape in strict mode")
		}
	}()
	b.Feed(ESC, render.Position{})
}

func TestBuffer_Overflow(t *testing.T) {
	var b Buffer
	b.Feed(ESC, render.Position{})

	var e Emit
	for i := 1; i < MaxSequenceLen; i++ {
		e, _ = b.Feed('0', render.Position{})
		if i < MaxSequenceLen-1 && e.Kind != Nothing {
			t.Fatalf("byte %d: kind = %v, want nothing", i, e.Kind)
		}
	}
	if e.Kind != Literal || len(e.Bytes) != MaxSequenceLen {
		t.Errorf("overflow = %v with %d bytes, want literal with %d", e.Kind, len(e.Bytes), MaxSequenceLen)
	}
	if b.Buffering() {
		t.Error("buffer should be idle after overflow")
	}
}

func TestBuffer_Rebase(t *testing.T) {
	var b Buffer
	b.Rebase(render.Position{Col: 3})
	if b.Start() != (render.Position{}) {
		t.Error("Rebase on an idle buffer should do nothing")
	}

	b.Feed(ESC, render.Position{Col: 1})
	b.Rebase(render.Position{Col: 4})
	e, _ := b.Feed('m', render.Position{Col: 4})
	if e.At != (render.Position{Col: 4}) {
		t.Errorf("sequence stamped at %v, want column 4", e.At)
	}
}

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{Nothing, "nothing"},
		{Char, "char"},
		{Sequence, "sequence"},
		{Literal, "literal"},
		{Kind(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
