package render

import "unicode/utf8"

// Decoder assembles UTF-8 runes from a byte stream fed one byte at a time
type Decoder struct {
	buf      [utf8.UTFMax]byte
	n        int
	expected int
}

// Decode processes a byte and returns a rune once one is complete.
// Malformed input decodes to utf8.RuneError; an ASCII byte interrupting a
// multi-byte sequence abandons the sequence and is returned as itself.
func (d *Decoder) Decode(b byte) (rune, bool) {
	if d.expected > 0 {
		if b >= 0x80 && b < 0xC0 {
			d.buf[d.n] = b
			d.n++
			d.expected--
			if d.expected > 0 {
				return 0, false
			}
			r, _ := utf8.DecodeRune(d.buf[:d.n])
			d.Reset()
			return r, true
		}
		d.Reset()
	}

	switch {
	case b < 0x80:
		return rune(b), true
	case b < 0xC0:
		// stray continuation byte
		return utf8.RuneError, true
	case b < 0xE0:
		d.start(b, 1)
	case b < 0xF0:
		d.start(b, 2)
	case b < 0xF8:
		d.start(b, 3)
	default:
		return utf8.RuneError, true
	}
	return 0, false
}

// Pending reports whether a multi-byte sequence is partially decoded
func (d *Decoder) Pending() bool {
	return d.expected > 0
}

// Reset drops any partial sequence
func (d *Decoder) Reset() {
	d.n = 0
	d.expected = 0
}

func (d *Decoder) start(b byte, continuation int) {
	d.buf[0] = b
	d.n = 1
	d.expected = continuation
}
