// Package conn manages the lifecycle of the serial connection: opening the
// port, waiting for it to appear and reconnecting after it disappears.
package conn

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/rs/zerolog"

	"serterm/pkg/serial"
)

// DefaultInterval is the delay between open attempts and spinner frames
const DefaultInterval = 80 * time.Millisecond

// Phase is the coarse connection state
type Phase int

const (
	Disconnected Phase = iota
	Connecting
	Connected
)

// String returns the string representation of Phase
func (p Phase) String() string {
	switch p {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// State is the connection state owned by a session. Waiting is only
// meaningful in the Connecting phase and Port only in the Connected phase.
type State struct {
	Phase   Phase
	Waiting Waiting
	Port    serial.Port
}

// Waiting is the progress of one connection cycle
type Waiting struct {
	// Attempts counts failed opens in this cycle
	Attempts uint32
	// LastError is why the previous connection ended, KindNone on first connect
	LastError serial.Kind
	// Frame is the spinner frame currently shown
	Frame int
}

// Begin starts a connection cycle
func Begin(prior serial.Kind) Waiting {
	return Waiting{LastError: prior}
}

// Display is where the manager reports progress
type Display interface {
	Logf(format string, args ...any)
	Spinner(glyph string)
	ClearSpinner()
}

// Manager opens the port, retrying forever until it succeeds
type Manager struct {
	cfg      serial.Config
	open     serial.Opener
	display  Display
	frames   []string
	interval time.Duration
	logger   zerolog.Logger
}

// Option configures a Manager
type Option func(*Manager)

// WithInterval overrides DefaultInterval
func WithInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithFrames overrides the spinner animation
func WithFrames(frames []string) Option {
	return func(m *Manager) {
		if len(frames) > 0 {
			m.frames = frames
		}
	}
}

// WithLogger sets the diagnostic logger
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a connection manager for cfg. open is usually serial.Open.
func NewManager(cfg serial.Config, open serial.Opener, display Display, opts ...Option) *Manager {
	m := &Manager{
		cfg:      cfg,
		open:     open,
		display:  display,
		frames:   spinner.Dot.Frames,
		interval: DefaultInterval,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Interval returns the delay between attempts
func (m *Manager) Interval() time.Duration {
	return m.interval
}

// Frames returns the spinner animation frames
func (m *Manager) Frames() []string {
	return m.frames
}

// Attempt tries to open the port once. On success it returns the port; on
// failure it returns nil and the state to pass to the next attempt.
//
// The first failure of a cycle logs why the manager is waiting and shows the
// spinner; later failures only advance the spinner.
func (m *Manager) Attempt(st Waiting) (serial.Port, Waiting) {
	port, err := m.open(m.cfg)
	if err == nil && port == nil {
		err = serial.ErrPortNotOpen
	}
	if err == nil {
		if st.Attempts > 0 {
			m.display.ClearSpinner()
		}
		m.display.Logf("Connected to %s", m.cfg.Port)
		m.logger.Info().Str("port", m.cfg.Port).Uint32("attempts", st.Attempts).Msg("connected")
		return port, st
	}

	m.logger.Debug().Err(err).Str("kind", serial.KindOf(err).String()).
		Uint32("attempt", st.Attempts).Msg("open failed")

	if st.Attempts == 0 {
		if st.LastError == serial.KindNone {
			m.display.Logf("Waiting for %s", m.cfg.Port)
		} else {
			m.display.Logf("%s error '%s', waiting", m.cfg.Port, st.LastError)
		}
		st.Frame = 0
	} else {
		st.Frame = (st.Frame + 1) % len(m.frames)
	}
	m.display.Spinner(m.frames[st.Frame])

	if st.Attempts < ^uint32(0) {
		st.Attempts++
	}
	return nil, st
}

// Abandon ends a cycle without a connection, leaving the screen clean
func (m *Manager) Abandon(st Waiting) {
	if st.Attempts > 0 {
		m.display.ClearSpinner()
	}
	m.logger.Debug().Uint32("attempts", st.Attempts).Msg("connection attempt abandoned")
}

// Connect blocks until the port opens or ctx is done
func (m *Manager) Connect(ctx context.Context, prior serial.Kind) (serial.Port, error) {
	st := Begin(prior)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		var port serial.Port
		port, st = m.Attempt(st)
		if port != nil {
			return port, nil
		}

		select {
		case <-ctx.Done():
			m.Abandon(st)
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
