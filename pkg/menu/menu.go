// Package menu implements the one line command menu drawn over the device output
package menu

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"serterm/pkg/render"
)

// Prompt is drawn at the start of the menu line
const Prompt = ": "

// Action is a command the menu asks the session to perform
type Action int

const (
	ActionNone Action = iota
	ActionQuit
	ActionTimestamp
	ActionHelp
)

// String returns the name of the action
func (a Action) String() string {
	switch a {
	case ActionQuit:
		return "quit"
	case ActionTimestamp:
		return "timestamp"
	case ActionHelp:
		return "help"
	default:
		return "none"
	}
}

// Item is one entry of the command table
type Item struct {
	Names  []string
	Action Action
	Help   string
}

// Items lists the commands the menu understands. Names are matched exactly.
var Items = []Item{
	{Names: []string{"quit", "q"}, Action: ActionQuit, Help: "exit the terminal"},
	{Names: []string{"timestamp", "ts"}, Action: ActionTimestamp, Help: "print a timestamp line"},
	{Names: []string{"help", "h", "?"}, Action: ActionHelp, Help: "list commands"},
}

// Lookup returns the action for a command name
func Lookup(name string) (Action, bool) {
	for _, item := range Items {
		for _, n := range item.Names {
			if n == name {
				return item.Action, true
			}
		}
	}
	return ActionNone, false
}

// HelpText summarises the command table on one line
func HelpText() string {
	parts := make([]string, 0, len(Items))
	for _, item := range Items {
		parts = append(parts, fmt.Sprintf("%s (%s)", strings.Join(item.Names, "|"), item.Help))
	}
	return "commands: " + strings.Join(parts, ", ")
}

// Menu is the state of the command line. It never draws; every state change
// returns the intents that redraw the menu row.
type Menu struct {
	open    bool
	command []rune
	pending Action
	err     string
	row     int
	width   int
}

// New creates a closed menu
func New() *Menu {
	return &Menu{}
}

// IsOpen returns whether the menu line is shown
func (m *Menu) IsOpen() bool {
	return m.open
}

// Row returns the screen row reserved for the menu
func (m *Menu) Row() int {
	return m.row
}

// Command returns the text typed so far
func (m *Menu) Command() string {
	return string(m.command)
}

// Error returns the error currently displayed, if any
func (m *Menu) Error() string {
	return m.err
}

// Cursor returns where the visible cursor belongs while the menu is open
func (m *Menu) Cursor() render.Position {
	col := runewidth.StringWidth(Prompt) + runewidth.StringWidth(m.text())
	if m.width > 0 && col >= m.width {
		col = m.width - 1
	}
	return render.Position{Col: col, Row: m.row}
}

// Open reserves row for the menu and draws an empty prompt
func (m *Menu) Open(row, width int) []render.Intent {
	m.open = true
	m.command = m.command[:0]
	m.err = ""
	m.pending = ActionNone
	m.row = row
	m.width = width
	return m.draw()
}

// Close hides the menu and blanks its row
func (m *Menu) Close() []render.Intent {
	if !m.open {
		return nil
	}
	m.open = false
	m.command = m.command[:0]
	m.err = ""
	return []render.Intent{render.ClearRow(m.row, render.RoleDevice)}
}

// Reopen starts a fresh command line on row
func (m *Menu) Reopen(row int) []render.Intent {
	return m.Open(row, m.width)
}

// MoveTo shifts the menu to another row keeping what was typed
func (m *Menu) MoveTo(row int) []render.Intent {
	if !m.open || row == m.row {
		return nil
	}
	old := m.row
	m.row = row
	return append([]render.Intent{render.ClearRow(old, render.RoleDevice)}, m.draw()...)
}

// Resize redraws the menu for a new screen width
func (m *Menu) Resize(width int) []render.Intent {
	m.width = width
	if !m.open {
		return nil
	}
	return m.draw()
}

// HandleKey applies a key press to the open menu
func (m *Menu) HandleKey(ev *tcell.EventKey) []render.Intent {
	if !m.open {
		return nil
	}

	switch ev.Key() {
	case tcell.KeyEnter:
		m.submit()
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if !m.dismiss() && len(m.command) > 0 {
			m.command = m.command[:len(m.command)-1]
		}
	case tcell.KeyRune:
		if ev.Modifiers()&tcell.ModCtrl != 0 {
			return nil
		}
		m.dismiss()
		m.command = append(m.command, ev.Rune())
	default:
		return nil
	}

	return m.draw()
}

// TakeAction returns the dispatched command, if any, and clears it
func (m *Menu) TakeAction() (Action, bool) {
	a := m.pending
	m.pending = ActionNone
	return a, a != ActionNone
}

// dismiss clears a displayed error together with the command that caused it
func (m *Menu) dismiss() bool {
	if m.err == "" {
		return false
	}
	m.err = ""
	m.command = m.command[:0]
	return true
}

func (m *Menu) submit() {
	if m.dismiss() {
		return
	}

	cmd := string(m.command)
	action, ok := Lookup(cmd)
	if !ok {
		m.err = fmt.Sprintf("%s is an unknown command", cmd)
		return
	}
	m.pending = action
	m.command = m.command[:0]
}

func (m *Menu) text() string {
	if m.err != "" {
		return m.err
	}
	return string(m.command)
}

func (m *Menu) draw() []render.Intent {
	role := render.RoleMenu
	if m.err != "" {
		role = render.RoleMenuError
	}
	return []render.Intent{
		render.ClearRow(m.row, render.RoleMenu),
		render.Draw(render.Position{Row: m.row}, Prompt+m.text(), role),
	}
}
