// Package app wires a terminal session to the real terminal: it owns the
// tcell screen, signal handling, the debug log and the capture file.
package app

import (
	"fmt"

	"serterm/pkg/history"
	"serterm/pkg/serial"
)

// AppConfig contains application configuration
type AppConfig struct {
	Serial        serial.Config
	StrictEscapes bool
	// CaptureFile receives the session transcript when set
	CaptureFile   string
	CaptureFormat history.FileFormat
	HistorySize   int
	// DebugLog receives diagnostics when set
	DebugLog string
	Verbose  bool
}

// DefaultAppConfig returns default application configuration
func DefaultAppConfig(port string) AppConfig {
	return AppConfig{
		Serial:        serial.DefaultConfig(port),
		CaptureFormat: history.FormatTimestamped,
		HistorySize:   10 * 1024 * 1024, // 10MB
	}
}

// Validate checks the configuration before the screen is touched
func (c AppConfig) Validate() error {
	if err := c.Serial.Validate(); err != nil {
		return fmt.Errorf("invalid serial config: %w", err)
	}
	if c.HistorySize < 0 {
		return fmt.Errorf("history size cannot be negative: %d", c.HistorySize)
	}
	switch c.CaptureFormat {
	case history.FormatPlainText, history.FormatTimestamped, history.FormatJSON:
	default:
		return fmt.Errorf("unsupported capture format: %v", c.CaptureFormat)
	}
	return nil
}
