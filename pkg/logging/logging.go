// Package logging builds the diagnostic logger. The screen owns the terminal
// while a session runs, so diagnostics only ever go to a file.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// TimeFormat is the timestamp layout of debug log lines
const TimeFormat = "15:04:05.000"

// New opens path for appending and returns a logger writing to it together
// with a function closing the file. An empty path disables logging.
func New(path string, level zerolog.Level) (zerolog.Logger, func() error, error) {
	if path == "" {
		return zerolog.Nop(), func() error { return nil }, nil
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("failed to open debug log: %w", err)
	}
	return NewWriter(file, level), file.Close, nil
}

// NewWriter returns a logger writing human readable lines to w
func NewWriter(w io.Writer, level zerolog.Level) zerolog.Logger {
	out := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    true,
		TimeFormat: TimeFormat,
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
