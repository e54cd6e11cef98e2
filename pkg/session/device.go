package session

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"serterm/pkg/escape"
	"serterm/pkg/history"
	"serterm/pkg/render"
)

const tabWidth = 8

// receive feeds one device byte through the escape buffer onto the screen
func (s *Session) receive(c byte) {
	s.stats.BytesRecv++
	s.capture([]byte{c}, history.DirectionOutput)

	emit, err := s.esc.Feed(c, s.device)
	switch emit.Kind {
	case escape.Char:
		s.putByte(emit.Byte)
	case escape.Sequence:
		s.sink.Apply(render.Sequence(emit.At, emit.Bytes))
	case escape.Literal:
		s.putLiteral(emit.Bytes)
	}

	if err != nil {
		s.logger.Warn().Err(err).Msg("protocol error")
		s.logf("Protocol error: %v", err)
	}
	s.esc.Rebase(s.device)
}

// putByte interprets the C0 controls a line oriented device uses and draws
// everything else
func (s *Session) putByte(c byte) {
	switch c {
	case '\r':
		s.dec.Reset()
		s.device.Col = 0
		return
	case '\n':
		s.dec.Reset()
		s.lineFeed()
		return
	case '\b':
		s.dec.Reset()
		if s.device.Col > 0 {
			s.device.Col--
		}
		return
	case '\t':
		s.dec.Reset()
		col := (s.device.Col/tabWidth + 1) * tabWidth
		if s.width > 0 && col > s.width-1 {
			col = s.width - 1
		}
		if col > s.device.Col {
			s.device.Col = col
		}
		return
	case 0x07:
		s.dec.Reset()
		s.sink.Apply(render.Beep())
		return
	}

	if c < 0x20 || c == 0x7F {
		s.dec.Reset()
		return
	}
	if r, ok := s.dec.Decode(c); ok {
		s.putRune(r)
	}
}

// putLiteral shows a broken escape sequence as text with ESC spelled ^[
func (s *Session) putLiteral(seq []byte) {
	s.dec.Reset()
	for _, c := range seq {
		if c == escape.ESC {
			s.putRune('^')
			s.putRune('[')
			continue
		}
		s.putByte(c)
	}
}

func (s *Session) putRune(r rune) {
	w := runewidth.RuneWidth(r)
	if w == 0 || s.width <= 0 || s.height <= 0 {
		return
	}
	if s.device.Col+w > s.width {
		s.newline()
	}
	s.sink.Apply(render.Draw(s.device, string(r), render.RoleDevice))
	s.device.Col += w
	s.lineUsed = true
}

func (s *Session) newline() {
	s.device.Col = 0
	s.lineFeed()
}

// lineFeed moves the device cursor down one row keeping its column. The
// device region ends above the menu row while the menu is open; when the
// menu cannot move further down the region scrolls instead.
func (s *Session) lineFeed() {
	s.lineUsed = false

	limit := s.height
	if s.menu.IsOpen() {
		limit = s.menu.Row()
	}
	if s.device.Row+1 < limit {
		s.device.Row++
		return
	}
	if s.menu.IsOpen() && s.menu.Row()+1 < s.height {
		s.sink.Apply(s.menu.MoveTo(s.menu.Row() + 1)...)
		s.device.Row++
		return
	}
	s.sink.Apply(render.Scroll(0, limit))
}

// logf writes a timestamped status line on its own row above the device
// cursor
func (s *Session) logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.logger.Info().Str("status", msg).Send()

	if s.width <= 0 || s.height <= 0 {
		return
	}
	// With the menu open a screen under three rows has a single device row,
	// which the line feed after the status line would scroll away at once.
	// The line then only reaches the debug log.
	if s.menu.IsOpen() && s.height < 3 {
		return
	}
	if s.lineUsed {
		s.newline()
	}
	line := render.FormatStatus(s.now(), msg)
	s.sink.Apply(render.Draw(render.Position{Row: s.device.Row}, line, render.RoleStatus))
	s.newline()
}

func (s *Session) drawSpinner(glyph string) {
	intents := []render.Intent{render.HideCursor()}
	if s.spinnerWidth > 0 {
		intents = append(intents, render.Draw(s.spinnerAt, strings.Repeat(" ", s.spinnerWidth), render.RolePlain))
	}
	s.spinnerAt = s.device
	s.spinnerWidth = runewidth.StringWidth(glyph)
	intents = append(intents, render.Draw(s.spinnerAt, glyph, render.RolePlain))
	s.sink.Apply(intents...)
	s.sink.Show()
}

func (s *Session) clearSpinner() {
	if s.spinnerWidth > 0 {
		s.sink.Apply(render.Draw(s.spinnerAt, strings.Repeat(" ", s.spinnerWidth), render.RolePlain))
		s.spinnerWidth = 0
	}
	s.sink.Apply(render.ShowCursor(s.cursor()))
}

// toggleMenu closes an open menu or opens one on the row below the device
// cursor, scrolling the device region when the cursor is on the last row
func (s *Session) toggleMenu() {
	// The device cursor only moves when the menu needs the row it is on, and
	// stays put on close so output continues where it left off.
	if s.menu.IsOpen() {
		s.sink.Apply(s.menu.Close()...)
		return
	}
	if s.height < 2 {
		return
	}
	if s.device.Row >= s.height-1 {
		s.sink.Apply(render.Scroll(0, s.height))
		s.device.Row = s.height - 2
	}
	s.sink.Apply(s.menu.Open(s.device.Row+1, s.width)...)
}

// resize adopts the new screen size, clamping both cursors into it
func (s *Session) resize() {
	s.sink.Sync()
	s.width, s.height = s.sink.Size()
	s.logger.Debug().Int("width", s.width).Int("height", s.height).Msg("resize")

	if s.device.Row > s.height-1 {
		s.device.Row = max(s.height-1, 0)
	}
	if s.device.Col > s.width {
		s.device.Col = s.width
	}

	if !s.menu.IsOpen() {
		return
	}
	if s.height < 2 {
		s.sink.Apply(s.menu.Close()...)
		return
	}
	if s.device.Row > s.height-2 {
		s.device.Row = s.height - 2
	}
	s.sink.Apply(s.menu.Resize(s.width)...)
	s.sink.Apply(s.menu.MoveTo(s.device.Row + 1)...)
}

// cursor is where the visible cursor belongs: the menu while it is open,
// otherwise the device cursor
func (s *Session) cursor() render.Position {
	if s.menu.IsOpen() {
		return s.menu.Cursor()
	}
	at := s.device
	if s.width > 0 && at.Col >= s.width {
		at.Col = s.width - 1
	}
	return at
}

// present places the visible cursor and flushes the screen. The cursor stays
// hidden while the spinner is shown.
func (s *Session) present() {
	if s.spinnerWidth == 0 {
		s.sink.Apply(render.ShowCursor(s.cursor()))
	}
	s.sink.Show()
}
