package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"serterm/pkg/history"
	"serterm/pkg/serial"
)

// idlePort never produces data; Read returns once the port is closed
type idlePort struct {
	closed chan struct{}
}

func newIdlePort() *idlePort {
	return &idlePort{closed: make(chan struct{})}
}

func (p *idlePort) Read([]byte) (int, error) {
	<-p.closed
	return 0, os.ErrClosed
}

func (p *idlePort) Write(b []byte) (int, error) {
	return len(b), nil
}

func (p *idlePort) Close() error {
	select {
	case <-p.closed:
	default:
		close(p.closed)
	}
	return nil
}

func newTestRunner(t *testing.T, cfg AppConfig, opened chan<- struct{}) (*Runner, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	r, err := NewRunner(cfg, &out)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	r.isTerminal = func() bool { return true }
	r.newScreen = func() (tcell.Screen, error) {
		return tcell.NewSimulationScreen("UTF-8"), nil
	}
	r.open = func(serial.Config) (serial.Port, error) {
		select {
		case opened <- struct{}{}:
		default:
		}
		return newIdlePort(), nil
	}
	return r, &out
}

func TestDefaultAppConfig(t *testing.T) {
	cfg := DefaultAppConfig("/dev/ttyUSB0")

	if cfg.Serial.Port != "/dev/ttyUSB0" || cfg.Serial.BaudRate != 115200 {
		t.Errorf("Serial = %+v", cfg.Serial)
	}
	if cfg.HistorySize != 10*1024*1024 {
		t.Errorf("HistorySize = %d, want %d", cfg.HistorySize, 10*1024*1024)
	}
	if cfg.CaptureFormat != history.FormatTimestamped {
		t.Errorf("CaptureFormat = %v, want timestamped", cfg.CaptureFormat)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestAppConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*AppConfig)
	}{
		{"empty port", func(c *AppConfig) { c.Serial.Port = "" }},
		{"negative history", func(c *AppConfig) { c.HistorySize = -1 }},
		{"bad capture format", func(c *AppConfig) { c.CaptureFormat = history.FileFormat(99) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultAppConfig("/dev/ttyUSB0")
			tt.modify(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() should return error")
			}
			if _, err := NewRunner(cfg, nil); err == nil {
				t.Error("NewRunner() should reject an invalid config")
			}
		})
	}
}

func TestRunner_NotTerminal(t *testing.T) {
	r, _ := newTestRunner(t, DefaultAppConfig("/dev/ttyUSB0"), nil)
	r.isTerminal = func() bool { return false }

	if err := r.Run(context.Background()); !errors.Is(err, ErrNotTerminal) {
		t.Errorf("Run() error = %v, want ErrNotTerminal", err)
	}
}

func TestRunner_ScreenError(t *testing.T) {
	r, _ := newTestRunner(t, DefaultAppConfig("/dev/ttyUSB0"), nil)
	r.newScreen = func() (tcell.Screen, error) {
		return nil, errors.New("no tty")
	}

	if err := r.Run(context.Background()); err == nil || !strings.Contains(err.Error(), "no tty") {
		t.Errorf("Run() error = %v", err)
	}
}

func TestRunner_RunUntilCancelled(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultAppConfig("/dev/ttyUSB0")
	cfg.CaptureFile = filepath.Join(dir, "capture.log")
	cfg.DebugLog = filepath.Join(dir, "debug.log")
	cfg.Verbose = true

	opened := make(chan struct{}, 1)
	r, out := newTestRunner(t, cfg, opened)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case <-opened:
	case <-time.After(5 * time.Second):
		t.Fatal("port was never opened")
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	summary := out.String()
	for _, want := range []string{"=== Session Summary ===", "Port: /dev/ttyUSB0", "Settings: 115200 8N1", "Reconnects: 0", "Capture: " + cfg.CaptureFile} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}
	if _, err := os.Stat(cfg.CaptureFile); err != nil {
		t.Errorf("capture file not written: %v", err)
	}
	debug, err := os.ReadFile(cfg.DebugLog)
	if err != nil {
		t.Fatalf("debug log not written: %v", err)
	}
	if !strings.Contains(string(debug), "session started") {
		t.Errorf("debug log = %q", debug)
	}
}
