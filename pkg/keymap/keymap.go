// Package keymap translates terminal key events into the bytes sent to the device
package keymap

import (
	"errors"
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"
)

// ErrInputClosed is reported when the keyboard event stream has ended
var ErrInputClosed = errors.New("keyboard event stream closed")

// Kind is the kind of action a key event maps to
type Kind int

const (
	// None means the event is ignored
	None Kind = iota
	// Bytes means Action.Bytes are transmitted
	Bytes
	// MenuToggle opens or closes the menu line
	MenuToggle
	// InputError means the keyboard can no longer be read
	InputError
)

// String returns the name of the kind
func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Bytes:
		return "bytes"
	case MenuToggle:
		return "menu-toggle"
	case InputError:
		return "input-error"
	default:
		return "unknown"
	}
}

// Action is the result of mapping one event
type Action struct {
	Kind  Kind
	Bytes []byte
	Err   error
}

func send(b ...byte) Action {
	return Action{Kind: Bytes, Bytes: b}
}

// Map translates ev. It is total: every event, including nil for a closed
// event stream, maps to exactly one action.
func Map(ev tcell.Event) Action {
	switch e := ev.(type) {
	case nil:
		return Action{Kind: InputError, Err: ErrInputClosed}
	case *tcell.EventError:
		return Action{Kind: InputError, Err: e}
	case *tcell.EventKey:
		return mapKey(e)
	default:
		return Action{Kind: None}
	}
}

func mapKey(ev *tcell.EventKey) Action {
	key := ev.Key()

	if key == tcell.KeyRune {
		if ev.Modifiers()&tcell.ModCtrl != 0 {
			return controlRune(ev.Rune())
		}
		return printable(ev.Rune())
	}

	// Ctrl only has a meaning for the C0 control codes; Ctrl with a named key
	// such as Up or Delete is ignored.
	if ev.Modifiers()&tcell.ModCtrl != 0 && key > tcell.KeyCtrlUnderscore {
		return Action{Kind: None}
	}

	// Enter, Tab, Backspace and Escape share codes with Ctrl combinations in
	// tcell, so they are matched before the control range.
	if action, ok := specialKey(key); ok {
		return action
	}
	if action, ok := cursorKey(key); ok {
		return action
	}
	if key >= tcell.KeyCtrlA && key <= tcell.KeyCtrlUnderscore {
		return controlKey(key)
	}

	return Action{Kind: None}
}

func printable(r rune) Action {
	if r < utf8.RuneSelf {
		return send(byte(r))
	}
	return send(utf8.AppendRune(nil, r)...)
}

// specialKey handles special keys like Enter, Tab, Backspace, etc.
func specialKey(key tcell.Key) (Action, bool) {
	switch key {
	case tcell.KeyEnter:
		return send(0x0D), true
	case tcell.KeyTab:
		return send(0x09), true
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		return send(0x08), true
	case tcell.KeyDelete:
		return send(0x7F), true
	case tcell.KeyEscape:
		return send(0x1B), true
	case tcell.KeyNUL:
		return send(0x00), true
	}
	return Action{}, false
}

// cursorKey follows the device table, which pairs Left with C and Right with D
func cursorKey(key tcell.Key) (Action, bool) {
	switch key {
	case tcell.KeyUp:
		return send(0x1B, '[', 'A'), true
	case tcell.KeyDown:
		return send(0x1B, '[', 'B'), true
	case tcell.KeyLeft:
		return send(0x1B, '[', 'C'), true
	case tcell.KeyRight:
		return send(0x1B, '[', 'D'), true
	}
	return Action{}, false
}

func controlKey(key tcell.Key) Action {
	switch key {
	case tcell.KeyCtrlC:
		return send(0x03)
	case tcell.KeyCtrlT:
		return Action{Kind: MenuToggle}
	}
	return Action{Kind: None}
}

func controlRune(r rune) Action {
	switch r {
	case 'c', 'C':
		return send(0x03)
	case 't', 'T':
		return Action{Kind: MenuToggle}
	}
	return Action{Kind: None}
}
