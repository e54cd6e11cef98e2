package session

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gdamore/tcell/v2"

	"serterm/pkg/history"
	"serterm/pkg/keymap"
	"serterm/pkg/menu"
	"serterm/pkg/serial"
)

// readErrorBackoff throttles the reader after a read error that does not end
// the connection
const readErrorBackoff = 10 * time.Millisecond

type readResult struct {
	b   byte
	err error
}

// input is whichever source won the race
type input struct {
	isKey bool
	key   tcell.Event
	read  readResult
}

// readBytes reads the port one byte at a time and hands every byte or error
// to rx. It exits once done is closed.
func readBytes(port io.Reader, rx chan<- readResult, done <-chan struct{}) {
	buf := make([]byte, 1)
	for {
		n, err := port.Read(buf)
		var res readResult
		switch {
		case n == 1:
			res.b = buf[0]
		case err != nil:
			res.err = err
		default:
			// no timeout is configured, so an empty read means the tty hung up
			res.err = io.EOF
		}

		select {
		case rx <- res:
		case <-done:
			return
		}

		if res.err != nil && !serial.KindOf(res.err).IsLinkFailure() {
			select {
			case <-time.After(readErrorBackoff):
			case <-done:
				return
			}
		}
	}
}

// race waits for a keyboard event or a device byte. The two sources are
// polled in alternating order first so a busy one cannot starve the other.
func (s *Session) race(ctx context.Context, rx <-chan readResult) (input, error) {
	s.keysFirst = !s.keysFirst

	for i := 0; i < 2; i++ {
		if s.keysFirst == (i == 0) {
			select {
			case ev := <-s.keys:
				return input{isKey: true, key: ev}, nil
			default:
			}
		} else {
			select {
			case r := <-rx:
				return input{read: r}, nil
			default:
			}
		}
	}

	select {
	case <-ctx.Done():
		return input{}, ctx.Err()
	case ev := <-s.keys:
		return input{isKey: true, key: ev}, nil
	case r := <-rx:
		return input{read: r}, nil
	}
}

// handleKey routes a keyboard event to the menu when it is open and to the
// device otherwise
func (s *Session) handleKey(ev tcell.Event, port io.Writer) error {
	if _, ok := ev.(*tcell.EventResize); ok {
		s.resize()
		return nil
	}

	action := keymap.Map(ev)
	switch action.Kind {
	case keymap.InputError:
		return s.inputFailed(action.Err)
	case keymap.MenuToggle:
		s.toggleMenu()
		return nil
	}

	if s.menu.IsOpen() {
		if key, ok := ev.(*tcell.EventKey); ok {
			s.sink.Apply(s.menu.HandleKey(key)...)
			return s.dispatch()
		}
		return nil
	}

	if action.Kind == keymap.Bytes {
		s.transmit(port, action.Bytes)
	}
	return nil
}

// dispatch runs the command the menu accepted, if any
func (s *Session) dispatch() error {
	action, ok := s.menu.TakeAction()
	if !ok {
		return nil
	}
	s.logger.Debug().Str("command", action.String()).Msg("menu command")

	switch action {
	case menu.ActionQuit:
		return errQuit
	case menu.ActionTimestamp:
		s.logf("")
	case menu.ActionHelp:
		s.logf("%s", menu.HelpText())
	}
	s.sink.Apply(s.menu.Reopen(s.device.Row + 1)...)
	return nil
}

func (s *Session) transmit(port io.Writer, data []byte) {
	n, err := port.Write(data)
	if n > 0 {
		s.stats.BytesSent += int64(n)
		s.capture(data[:n], history.DirectionInput)
	}
	if err == nil {
		return
	}
	if serial.KindOf(err) == serial.KindWouldBlock {
		s.logger.Debug().Err(err).Msg("write would block")
		return
	}
	s.logf("Serial write error: %v", err)
}

func (s *Session) inputFailed(err error) error {
	s.logf("Input error: %v", err)
	return fmt.Errorf("%w: %w", ErrInputFailed, err)
}

func (s *Session) capture(data []byte, direction history.Direction) {
	if s.opts.Capture == nil {
		return
	}
	if err := s.opts.Capture.Write(data, direction); err != nil {
		s.logger.Warn().Err(err).Msg("capture failed")
	}
}
