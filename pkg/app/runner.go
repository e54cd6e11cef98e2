package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"serterm/pkg/history"
	"serterm/pkg/logging"
	"serterm/pkg/render"
	"serterm/pkg/serial"
	"serterm/pkg/session"
)

// ErrNotTerminal is returned when stdin is not an interactive terminal
var ErrNotTerminal = errors.New("standard input is not a terminal")

// Runner provides a high-level interface to run the terminal application
type Runner struct {
	config AppConfig
	out    io.Writer

	newScreen  func() (tcell.Screen, error)
	open       serial.Opener
	isTerminal func() bool
}

// NewRunner creates a new application runner. The session summary is
// written to out once the terminal is restored.
func NewRunner(config AppConfig, out io.Writer) (*Runner, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Runner{
		config:    config,
		out:       out,
		newScreen: tcell.NewScreen,
		open:      serial.Open,
		isTerminal: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd()))
		},
	}, nil
}

// Run blocks until the session ends. SIGINT, SIGTERM and SIGHUP end the
// session like the quit command does.
func (r *Runner) Run(ctx context.Context) error {
	if !r.isTerminal() {
		return ErrNotTerminal
	}

	level := zerolog.InfoLevel
	if r.config.Verbose {
		level = zerolog.DebugLevel
	}
	logger, closeLog, err := logging.New(r.config.DebugLog, level)
	if err != nil {
		return err
	}
	defer closeLog()

	var capture *history.Recorder
	if r.config.CaptureFile != "" {
		capture = history.NewRecorder(r.config.HistorySize)
	}

	stats, runErr := r.runScreen(ctx, logger, capture)

	if capture != nil {
		if err := capture.SaveToFile(r.config.CaptureFile, r.config.CaptureFormat); err != nil {
			logger.Error().Err(err).Str("file", r.config.CaptureFile).Msg("failed to save capture")
			if runErr == nil {
				runErr = fmt.Errorf("failed to save capture: %w", err)
			}
		}
	}

	r.printSessionSummary(stats)
	return runErr
}

// runScreen owns the tcell screen; the terminal is restored before it
// returns, including when the session panics.
func (r *Runner) runScreen(ctx context.Context, logger zerolog.Logger, capture *history.Recorder) (session.Stats, error) {
	screen, err := r.newScreen()
	if err != nil {
		return session.Stats{}, fmt.Errorf("failed to create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return session.Stats{}, fmt.Errorf("failed to initialize screen: %w", err)
	}
	defer screen.Fini()

	screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorReset).Foreground(tcell.ColorReset))
	screen.Clear()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	events := make(chan tcell.Event, 16)
	quit := make(chan struct{})
	go screen.ChannelEvents(events, quit)
	defer close(quit)

	sess, err := session.New(render.NewScreen(screen), events, session.Options{
		Config:        r.config.Serial,
		Open:          r.open,
		StrictEscapes: r.config.StrictEscapes,
		Capture:       capture,
		Logger:        &logger,
	})
	if err != nil {
		return session.Stats{}, err
	}

	err = sess.Run(ctx)
	return sess.Stats(), err
}

// printSessionSummary prints a summary of the session
func (r *Runner) printSessionSummary(stats session.Stats) {
	if r.out == nil || stats.StartTime.IsZero() {
		return
	}

	fmt.Fprintf(r.out, "\n=== Session Summary ===\n")
	fmt.Fprintf(r.out, "Port: %s\n", r.config.Serial.Port)
	fmt.Fprintf(r.out, "Settings: %s\n", r.config.Serial)
	fmt.Fprintf(r.out, "Duration: %v\n", stats.Duration().Round(time.Millisecond))
	fmt.Fprintf(r.out, "Bytes Sent: %d\n", stats.BytesSent)
	fmt.Fprintf(r.out, "Bytes Received: %d\n", stats.BytesRecv)
	fmt.Fprintf(r.out, "Reconnects: %d\n", stats.Reconnects)
	if r.config.CaptureFile != "" {
		fmt.Fprintf(r.out, "Capture: %s (%s)\n", r.config.CaptureFile, r.config.CaptureFormat)
	}
	fmt.Fprintf(r.out, "=====================\n")
}
