// Package session runs one terminal session: it connects to the port, then
// races keyboard events against device bytes until the user quits, the
// keyboard fails or the context is cancelled. A lost link sends the session
// back to the connection manager instead of ending it.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"

	"serterm/pkg/conn"
	"serterm/pkg/escape"
	"serterm/pkg/history"
	"serterm/pkg/keymap"
	"serterm/pkg/menu"
	"serterm/pkg/render"
	"serterm/pkg/serial"
)

// ErrInputFailed is returned by Run when the keyboard event stream breaks
var ErrInputFailed = errors.New("keyboard input failed")

// errQuit ends Run without an error
var errQuit = errors.New("quit")

// Options configures a Session
type Options struct {
	Config serial.Config
	// Open defaults to serial.Open
	Open serial.Opener
	// StrictEscapes panics on a nested escape instead of flushing it
	StrictEscapes bool
	// Capture records the traffic when set
	Capture *history.Recorder
	// Logger receives diagnostics; nil disables them
	Logger *zerolog.Logger
	// Interval between open attempts, conn.DefaultInterval when zero
	Interval time.Duration
	// Frames overrides the spinner animation
	Frames []string
	// Now is the clock used for status lines
	Now func() time.Time
}

// Stats summarises a finished session
type Stats struct {
	BytesSent  int64
	BytesRecv  int64
	Reconnects int
	StartTime  time.Time
	EndTime    time.Time
}

// Duration returns how long the session ran
func (s Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// Session owns the screen, the menu, the escape buffer and the connection
// for one invocation. All of its state is touched by the Run goroutine only.
type Session struct {
	opts    Options
	sink    render.Sink
	keys    <-chan tcell.Event
	manager *conn.Manager
	logger  zerolog.Logger
	now     func() time.Time

	state conn.State
	menu  *menu.Menu
	esc   escape.Buffer
	dec   render.Decoder

	width  int
	height int
	device render.Position
	// lineUsed is set once a rune is drawn on the device row
	lineUsed bool

	spinnerAt    render.Position
	spinnerWidth int

	keysFirst bool
	stats     Stats
}

// New creates a session drawing on sink and reading keyboard events from keys
func New(sink render.Sink, keys <-chan tcell.Event, opts Options) (*Session, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid serial config: %w", err)
	}
	if opts.Open == nil {
		opts.Open = serial.Open
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	s := &Session{
		opts:   opts,
		sink:   sink,
		keys:   keys,
		logger: logger,
		now:    opts.Now,
		menu:   menu.New(),
		esc:    escape.Buffer{Strict: opts.StrictEscapes},
	}
	s.width, s.height = sink.Size()
	s.manager = conn.NewManager(opts.Config, opts.Open, display{s},
		conn.WithInterval(opts.Interval),
		conn.WithFrames(opts.Frames),
		conn.WithLogger(logger))
	return s, nil
}

// Stats returns the session counters. Only valid once Run has returned.
func (s *Session) Stats() Stats {
	return s.stats
}

// State returns the connection state. Only valid once Run has returned.
func (s *Session) State() conn.State {
	return s.state
}

// Run drives the session until the user quits or ctx is cancelled, both of
// which return nil. A broken keyboard stream returns an error wrapping
// ErrInputFailed.
func (s *Session) Run(ctx context.Context) error {
	s.stats.StartTime = s.now()
	defer func() {
		s.stats.EndTime = s.now()
		s.sink.Show()
	}()

	s.logger.Info().Str("port", s.opts.Config.Port).Str("mode", s.opts.Config.String()).Msg("session started")
	s.present()

	prior := serial.KindNone
	for {
		port, err := s.connect(ctx, prior)
		if err != nil {
			return s.finish(err)
		}

		kind, err := s.communicate(ctx, port)
		if cerr := port.Close(); cerr != nil {
			s.logger.Debug().Err(cerr).Msg("close port")
		}
		s.state = conn.State{Phase: conn.Disconnected}
		if err != nil {
			return s.finish(err)
		}

		s.logger.Warn().Str("kind", kind.String()).Msg("link lost, reconnecting")
		s.stats.Reconnects++
		prior = kind
		s.esc.Reset()
		s.dec.Reset()
		s.sink.Apply(s.menu.Close()...)
	}
}

func (s *Session) finish(err error) error {
	switch {
	case errors.Is(err, errQuit), errors.Is(err, context.Canceled):
		s.logger.Info().Msg("session ended")
		return nil
	default:
		s.logger.Error().Err(err).Msg("session failed")
		return err
	}
}

// connect polls the open primitive once per tick until it succeeds. Keyboard
// events are watched between attempts: the menu key or a broken keyboard end
// the session, anything else is ignored.
func (s *Session) connect(ctx context.Context, prior serial.Kind) (serial.Port, error) {
	st := conn.Begin(prior)
	s.state = conn.State{Phase: conn.Connecting, Waiting: st}

	ticker := time.NewTicker(s.manager.Interval())
	defer ticker.Stop()

	for {
		var port serial.Port
		port, st = s.manager.Attempt(st)
		if port != nil {
			s.state = conn.State{Phase: conn.Connected, Port: port}
			s.present()
			return port, nil
		}
		s.state.Waiting = st
		s.present()

		if err := s.waitRetry(ctx, ticker.C, st); err != nil {
			return nil, err
		}
	}
}

func (s *Session) waitRetry(ctx context.Context, tick <-chan time.Time, st conn.Waiting) error {
	for {
		select {
		case <-ctx.Done():
			s.manager.Abandon(st)
			s.present()
			return ctx.Err()
		case <-tick:
			return nil
		case ev := <-s.keys:
			if _, ok := ev.(*tcell.EventResize); ok {
				s.resize()
				s.present()
				continue
			}
			action := keymap.Map(ev)
			switch action.Kind {
			case keymap.MenuToggle:
				s.manager.Abandon(st)
				s.present()
				return errQuit
			case keymap.InputError:
				s.manager.Abandon(st)
				err := s.inputFailed(action.Err)
				s.present()
				return err
			}
		}
	}
}

// communicate runs until the link fails, returning its kind, or until the
// session must end, returning the reason as an error.
func (s *Session) communicate(ctx context.Context, port serial.Port) (serial.Kind, error) {
	rx := make(chan readResult)
	done := make(chan struct{})
	defer close(done)
	go readBytes(port, rx, done)

	for {
		in, err := s.race(ctx, rx)
		if err != nil {
			return serial.KindNone, err
		}

		switch {
		case in.isKey:
			if err := s.handleKey(in.key, port); err != nil {
				s.present()
				return serial.KindNone, err
			}
		case in.read.err != nil:
			kind := serial.KindOf(in.read.err)
			if kind.IsLinkFailure() {
				s.logger.Debug().Err(in.read.err).Msg("read failed")
				return kind, nil
			}
			s.logf("Serial read error: %v", in.read.err)
		default:
			s.receive(in.read.b)
		}
		s.present()
	}
}

// display reports connection progress on the session screen
type display struct {
	s *Session
}

func (d display) Logf(format string, args ...any) {
	d.s.logf(format, args...)
}

func (d display) Spinner(glyph string) {
	d.s.drawSpinner(glyph)
}

func (d display) ClearSpinner() {
	d.s.clearSpinner()
}
