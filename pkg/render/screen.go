package render

import (
	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
)

var (
	menuStyle      = tcell.StyleDefault.Background(tcell.ColorDimGray).Foreground(tcell.ColorWhite)
	menuErrorStyle = tcell.StyleDefault.Background(tcell.ColorDimGray).Foreground(tcell.ColorRed).Bold(true)
	statusStyle    = tcell.StyleDefault.Background(tcell.ColorDimGray).Foreground(tcell.ColorWhite)
)

// Screen is a Sink drawing onto a tcell screen
type Screen struct {
	screen tcell.Screen
	pen    tcell.Style
}

// NewScreen wraps an initialised tcell screen
func NewScreen(screen tcell.Screen) *Screen {
	return &Screen{
		screen: screen,
		pen:    tcell.StyleDefault,
	}
}

// Pen returns the current device style
func (s *Screen) Pen() tcell.Style {
	return s.pen
}

// Size returns the screen size in cells
func (s *Screen) Size() (int, int) {
	return s.screen.Size()
}

// Show flushes pending changes to the terminal
func (s *Screen) Show() {
	s.screen.Show()
}

// Sync redraws the whole terminal, used after a resize
func (s *Screen) Sync() {
	s.screen.Sync()
}

// Apply performs the intents in order
func (s *Screen) Apply(intents ...Intent) {
	for _, in := range intents {
		switch in.Op {
		case OpDraw:
			s.draw(in.At, in.Text, s.style(in.Role))
		case OpClearRow:
			s.clearRow(in.At.Row, s.background(in.Role))
		case OpSequence:
			s.pen = ApplySGR(s.pen, in.Bytes)
		case OpScroll:
			s.scrollUp(in.At.Row, in.Bottom)
		case OpShowCursor:
			s.screen.ShowCursor(in.At.Col, in.At.Row)
		case OpHideCursor:
			s.screen.HideCursor()
		case OpBeep:
			_ = s.screen.Beep()
		}
	}
}

func (s *Screen) style(role Role) tcell.Style {
	switch role {
	case RoleMenu:
		return menuStyle
	case RoleMenuError:
		return menuErrorStyle
	case RoleStatus:
		return statusStyle
	case RolePlain:
		return tcell.StyleDefault
	default:
		return s.pen
	}
}

// background is the style used when blanking a row; device rows are blanked
// with the default style so a pending SGR background does not bleed.
func (s *Screen) background(role Role) tcell.Style {
	if role == RoleDevice || role == RolePlain {
		return tcell.StyleDefault
	}
	return s.style(role)
}

func (s *Screen) draw(at Position, text string, style tcell.Style) {
	width, height := s.screen.Size()
	if at.Row < 0 || at.Row >= height {
		return
	}
	x := at.Col
	for _, r := range text {
		if x >= width {
			return
		}
		w := runewidth.RuneWidth(r)
		if w == 0 {
			continue
		}
		s.screen.SetContent(x, at.Row, r, nil, style)
		x += w
	}
}

func (s *Screen) clearRow(row int, style tcell.Style) {
	width, height := s.screen.Size()
	if row < 0 || row >= height {
		return
	}
	for x := 0; x < width; x++ {
		s.screen.SetContent(x, row, ' ', nil, style)
	}
}

// scrollUp moves every row in (top, bottom) up one row and blanks bottom-1
func (s *Screen) scrollUp(top, bottom int) {
	width, height := s.screen.Size()
	if top < 0 {
		top = 0
	}
	if bottom > height {
		bottom = height
	}
	if top >= bottom {
		return
	}

	for y := top; y < bottom-1; y++ {
		s.clearRow(y, tcell.StyleDefault)
		for x := 0; x < width; {
			mainc, combc, style, w := s.screen.GetContent(x, y+1)
			s.screen.SetContent(x, y, mainc, combc, style)
			if w < 1 {
				w = 1
			}
			x += w
		}
	}
	s.clearRow(bottom-1, tcell.StyleDefault)
}
