// Package render owns every write to the terminal screen.
//
// The rest of the program describes what it wants drawn as a list of Intents;
// a Sink applies them. Only the session goroutine holds the Sink, so the two
// logical cursors (device output and menu line) can never interleave writes.
package render

// Position is a zero based cell coordinate
type Position struct {
	Col int
	Row int
}

// Op is the kind of screen operation an Intent asks for
type Op int

const (
	// OpDraw draws Text starting at At
	OpDraw Op = iota
	// OpClearRow blanks row At.Row
	OpClearRow
	// OpSequence applies an SGR escape sequence to the device pen
	OpSequence
	// OpScroll moves rows [At.Row+1, Bottom) up one row and blanks row Bottom-1
	OpScroll
	// OpShowCursor places the visible cursor at At
	OpShowCursor
	// OpHideCursor hides the visible cursor
	OpHideCursor
	// OpBeep rings the terminal bell
	OpBeep
)

// String returns the name of the operation
func (o Op) String() string {
	switch o {
	case OpDraw:
		return "draw"
	case OpClearRow:
		return "clear-row"
	case OpSequence:
		return "sequence"
	case OpScroll:
		return "scroll"
	case OpShowCursor:
		return "show-cursor"
	case OpHideCursor:
		return "hide-cursor"
	case OpBeep:
		return "beep"
	default:
		return "unknown"
	}
}

// Role selects the style a drawn intent is rendered with
type Role int

const (
	// RoleDevice uses the pen built from the device's SGR sequences
	RoleDevice Role = iota
	// RoleMenu is the menu line
	RoleMenu
	// RoleMenuError is an error message shown on the menu line
	RoleMenuError
	// RoleStatus is a timestamped status line
	RoleStatus
	// RolePlain ignores the device pen
	RolePlain
)

// Intent is a single data-only screen operation
type Intent struct {
	Op     Op
	At     Position
	Text   string
	Bytes  []byte
	Role   Role
	Bottom int
}

// Draw returns an intent drawing text at at
func Draw(at Position, text string, role Role) Intent {
	return Intent{Op: OpDraw, At: at, Text: text, Role: role}
}

// ClearRow returns an intent blanking a whole row in the role's background
func ClearRow(row int, role Role) Intent {
	return Intent{Op: OpClearRow, At: Position{Row: row}, Role: role}
}

// Sequence returns an intent applying an escape sequence that started at at
func Sequence(at Position, seq []byte) Intent {
	return Intent{Op: OpSequence, At: at, Bytes: seq}
}

// Scroll returns an intent scrolling rows [top, bottom) up by one
func Scroll(top, bottom int) Intent {
	return Intent{Op: OpScroll, At: Position{Row: top}, Bottom: bottom}
}

// ShowCursor returns an intent making the cursor visible at at
func ShowCursor(at Position) Intent {
	return Intent{Op: OpShowCursor, At: at}
}

// HideCursor returns an intent hiding the cursor
func HideCursor() Intent {
	return Intent{Op: OpHideCursor}
}

// Beep returns an intent ringing the bell
func Beep() Intent {
	return Intent{Op: OpBeep}
}

// Sink applies intents to a screen
type Sink interface {
	Apply(intents ...Intent)
	Size() (width, height int)
	Show()
	Sync()
}
