package render

import "github.com/gdamore/tcell/v2"

// ansiColors maps the 16 basic SGR colors to tcell colors
var ansiColors = [16]tcell.Color{
	tcell.ColorBlack,
	tcell.ColorMaroon,
	tcell.ColorGreen,
	tcell.ColorOlive,
	tcell.ColorNavy,
	tcell.ColorPurple,
	tcell.ColorTeal,
	tcell.ColorSilver,
	tcell.ColorGray,
	tcell.ColorRed,
	tcell.ColorLime,
	tcell.ColorYellow,
	tcell.ColorBlue,
	tcell.ColorFuchsia,
	tcell.ColorAqua,
	tcell.ColorWhite,
}

// ApplySGR returns style updated by a complete "ESC [ params m" sequence.
// Anything that is not an SGR sequence leaves the style unchanged.
func ApplySGR(style tcell.Style, seq []byte) tcell.Style {
	if len(seq) < 3 || seq[0] != 0x1B || seq[1] != '[' || seq[len(seq)-1] != 'm' {
		return style
	}

	params := parseParams(seq[2 : len(seq)-1])
	if len(params) == 0 {
		return tcell.StyleDefault
	}

	for i := 0; i < len(params); i++ {
		p := params[i]
		switch {
		case p == 0:
			style = tcell.StyleDefault
		case p == 1:
			style = style.Bold(true)
		case p == 2:
			style = style.Dim(true)
		case p == 3:
			style = style.Italic(true)
		case p == 4:
			style = style.Underline(true)
		case p == 5:
			style = style.Blink(true)
		case p == 7:
			style = style.Reverse(true)
		case p == 9:
			style = style.StrikeThrough(true)
		case p == 22:
			style = style.Bold(false).Dim(false)
		case p == 23:
			style = style.Italic(false)
		case p == 24:
			style = style.Underline(false)
		case p == 25:
			style = style.Blink(false)
		case p == 27:
			style = style.Reverse(false)
		case p == 29:
			style = style.StrikeThrough(false)
		case p >= 30 && p <= 37:
			style = style.Foreground(ansiColors[p-30])
		case p == 39:
			style = style.Foreground(tcell.ColorDefault)
		case p >= 40 && p <= 47:
			style = style.Background(ansiColors[p-40])
		case p == 49:
			style = style.Background(tcell.ColorDefault)
		case p >= 90 && p <= 97:
			style = style.Foreground(ansiColors[p-90+8])
		case p >= 100 && p <= 107:
			style = style.Background(ansiColors[p-100+8])
		case p == 38 || p == 48:
			color, used := extendedColor(params[i+1:])
			i += used
			if used == 0 {
				continue
			}
			if p == 38 {
				style = style.Foreground(color)
			} else {
				style = style.Background(color)
			}
		}
	}

	return style
}

// extendedColor decodes the "5;n" and "2;r;g;b" forms following a 38 or 48
func extendedColor(rest []int) (tcell.Color, int) {
	if len(rest) >= 2 && rest[0] == 5 {
		return tcell.PaletteColor(rest[1] & 0xFF), 2
	}
	if len(rest) >= 4 && rest[0] == 2 {
		return tcell.NewRGBColor(int32(rest[1]&0xFF), int32(rest[2]&0xFF), int32(rest[3]&0xFF)), 4
	}
	return tcell.ColorDefault, 0
}

// parseParams splits a parameter string on ';' and ':', empty fields are 0
func parseParams(raw []byte) []int {
	if len(raw) == 0 {
		return nil
	}

	var params []int
	current := 0
	for _, ch := range raw {
		switch {
		case ch >= '0' && ch <= '9':
			if current < 1<<16 {
				current = current*10 + int(ch-'0')
			}
		case ch == ';' || ch == ':':
			params = append(params, current)
			current = 0
		}
	}
	return append(params, current)
}
