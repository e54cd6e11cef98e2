package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"serterm/pkg/app"
	"serterm/pkg/history"
	"serterm/pkg/serial"
)

var testPorts = []serial.PortInfo{
	{Name: "/dev/ttyS0"},
	{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6001", SerialNumber: "A50285BI", Product: "FT232R USB UART"},
}

// testCLI replaces port enumeration and the terminal runner
type testCLI struct {
	*cli
	runs []app.AppConfig
}

func newTestCLI(t *testing.T) *testCLI {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	tc := &testCLI{cli: newCLI()}
	tc.listPorts = func() ([]serial.PortInfo, error) { return testPorts, nil }
	tc.portKnown = func(name string) bool {
		for _, p := range testPorts {
			if p.Name == name {
				return true
			}
		}
		return false
	}
	tc.run = func(_ context.Context, cfg app.AppConfig, _ io.Writer) error {
		tc.runs = append(tc.runs, cfg)
		return nil
	}
	return tc
}

func (tc *testCLI) execute(args ...string) (string, string, error) {
	root := tc.rootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func (tc *testCLI) lastRun(t *testing.T) app.AppConfig {
	t.Helper()
	if len(tc.runs) == 0 {
		t.Fatal("terminal was not started")
	}
	return tc.runs[len(tc.runs)-1]
}

func TestRootCommand(t *testing.T) {
	root := NewRootCmd()

	if !strings.HasPrefix(root.Use, "serterm") {
		t.Errorf("Use = %q, want serterm prefix", root.Use)
	}
	if root.Short == "" {
		t.Error("Short should not be empty")
	}

	for _, name := range []string{"list", "config", "connect"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd == root {
			t.Errorf("subcommand %q not found", name)
		}
	}
	for _, alias := range []string{"ls", "ports", "open"} {
		if cmd, _, err := root.Find([]string{alias}); err != nil || cmd == root {
			t.Errorf("alias %q not found", alias)
		}
	}

	for _, flag := range []string{keyBaud, keyDataBits, keyParity, keyStopBits, keyFlowControl, keyStrict, keyCapture, keyCaptureFormat, keyDebugLog, keyVerbose, keyProfileDir} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("flag --%s not registered", flag)
		}
	}
}

func TestRoot_ListsPorts(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{"missing target", nil, errMissingTarget},
		{"question mark", []string{"?"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := newTestCLI(t)
			out, _, err := tc.execute(tt.args...)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("execute(%v) error = %v, want %v", tt.args, err, tt.wantErr)
			}
			if !strings.Contains(out, "Found 2 serial port(s)") || !strings.Contains(out, "/dev/ttyUSB0") {
				t.Errorf("execute(%v) output = %q", tt.args, out)
			}
			if len(tc.runs) != 0 {
				t.Errorf("execute(%v) started the terminal", tt.args)
			}
		})
	}
}

func TestList_Formats(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"table", []string{"list"}, []string{"Port", "/dev/ttyS0", "/dev/ttyUSB0"}},
		{"table details", []string{"list", "--details"}, []string{"Type", "usb", "native", "USB 0403:6001, Serial: A50285BI, FT232R USB UART"}},
		{"csv", []string{"list", "--format", "csv"}, []string{"port\n/dev/ttyS0\n/dev/ttyUSB0\n"}},
		{"csv details", []string{"ports", "--format", "csv", "--details"}, []string{"port,is_usb,vid,pid,product,serial_number", "/dev/ttyUSB0,true,0403,6001,FT232R USB UART,A50285BI"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := newTestCLI(t).execute(tt.args...)
			if err != nil {
				t.Fatalf("execute() error = %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestList_JSON(t *testing.T) {
	out, _, err := newTestCLI(t).execute("ls", "--format", "json")
	if err != nil {
		t.Fatalf("execute() error = %v", err)
	}
	var names []string
	if err := json.Unmarshal([]byte(out), &names); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if len(names) != 2 || names[1] != "/dev/ttyUSB0" {
		t.Errorf("names = %v", names)
	}

	out, _, err = newTestCLI(t).execute("ls", "--format", "json", "--details")
	if err != nil {
		t.Fatalf("execute() error = %v", err)
	}
	var ports []serial.PortInfo
	if err := json.Unmarshal([]byte(out), &ports); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if len(ports) != 2 || ports[1] != testPorts[1] {
		t.Errorf("ports = %+v", ports)
	}
}

func TestList_UnsupportedFormat(t *testing.T) {
	if _, _, err := newTestCLI(t).execute("list", "--format", "xml"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestConnect_Flags(t *testing.T) {
	tc := newTestCLI(t)
	capture := filepath.Join(t.TempDir(), "capture.json")

	_, _, err := tc.execute("connect", "/dev/ttyUSB0",
		"-b", "9600", "-d", "7", "-p", "even", "-s", "2", "-f", "hw",
		"--strict-escapes", "--capture", capture, "--capture-format", "json", "-v")
	if err != nil {
		t.Fatalf("execute() error = %v", err)
	}

	cfg := tc.lastRun(t)
	want := serial.Config{Port: "/dev/ttyUSB0", BaudRate: 9600, DataBits: 7, Parity: serial.ParityEven, StopBits: 2, FlowControl: serial.FlowHardware}
	if cfg.Serial != want {
		t.Errorf("Serial = %+v, want %+v", cfg.Serial, want)
	}
	if !cfg.StrictEscapes || !cfg.Verbose {
		t.Errorf("StrictEscapes = %v, Verbose = %v", cfg.StrictEscapes, cfg.Verbose)
	}
	if cfg.CaptureFile != capture || cfg.CaptureFormat != history.FormatJSON {
		t.Errorf("capture = %q (%v)", cfg.CaptureFile, cfg.CaptureFormat)
	}
}

func TestRoot_PortArgument(t *testing.T) {
	tests := []struct {
		name string
		arg  string
	}{
		{"device path", "/dev/ttyACM3"},
		{"windows port", "COM7"},
		{"enumerated", "/dev/ttyS0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := newTestCLI(t)
			if _, _, err := tc.execute(tt.arg); err != nil {
				t.Fatalf("execute() error = %v", err)
			}
			cfg := tc.lastRun(t)
			if cfg.Serial != serial.DefaultConfig(tt.arg) {
				t.Errorf("Serial = %+v, want defaults for %s", cfg.Serial, tt.arg)
			}
			if cfg.CaptureFormat != history.FormatTimestamped {
				t.Errorf("CaptureFormat = %v", cfg.CaptureFormat)
			}
		})
	}
}

func TestConnect_InvalidFlags(t *testing.T) {
	tests := [][]string{
		{"connect", "/dev/ttyUSB0", "-p", "mark"},
		{"connect", "/dev/ttyUSB0", "-f", "rts"},
		{"connect", "/dev/ttyUSB0", "-s", "3"},
		{"connect", "/dev/ttyUSB0", "-d", "9"},
		{"connect", "/dev/ttyUSB0", "-b", "0"},
		{"connect", "/dev/ttyUSB0", "--capture-format", "xml"},
	}

	for _, args := range tests {
		tc := newTestCLI(t)
		if _, _, err := tc.execute(args...); err == nil {
			t.Errorf("execute(%v) should fail", args)
		}
		if len(tc.runs) != 0 {
			t.Errorf("execute(%v) started the terminal", args)
		}
	}
}

func TestConnect_Unresolvable(t *testing.T) {
	tc := newTestCLI(t)
	dir := t.TempDir()

	if _, _, err := tc.execute("config", "save", "bench", "/dev/ttyS0", "--profile-dir", dir); err != nil {
		t.Fatalf("save error = %v", err)
	}

	_, stderr, err := tc.execute("nosuchthing", "--profile-dir", dir)
	if err == nil {
		t.Fatal("expected error for unknown target")
	}
	for _, want := range []string{"'nosuchthing' is neither a serial port nor a saved profile", "/dev/ttyUSB0", "bench (port: /dev/ttyS0)"} {
		if !strings.Contains(stderr, want) {
			t.Errorf("stderr missing %q:\n%s", want, stderr)
		}
	}
	if len(tc.runs) != 0 {
		t.Error("terminal should not start")
	}
}

func TestConnect_Environment(t *testing.T) {
	tc := newTestCLI(t)
	t.Setenv("SERTERM_BAUD", "57600")
	t.Setenv("SERTERM_FLOW_CONTROL", "software")

	if _, _, err := tc.execute("/dev/ttyUSB0"); err != nil {
		t.Fatalf("execute() error = %v", err)
	}
	cfg := tc.lastRun(t)
	if cfg.Serial.BaudRate != 57600 || cfg.Serial.FlowControl != serial.FlowSoftware {
		t.Errorf("Serial = %+v", cfg.Serial)
	}

	// flags win over the environment
	if _, _, err := tc.execute("/dev/ttyUSB0", "-b", "1200"); err != nil {
		t.Fatalf("execute() error = %v", err)
	}
	if got := tc.lastRun(t).Serial.BaudRate; got != 1200 {
		t.Errorf("BaudRate = %d, want 1200", got)
	}
}

func TestConnect_ConfigFile(t *testing.T) {
	tc := newTestCLI(t)
	dir := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "serterm")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("baud: 38400\nparity: odd\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := tc.execute("/dev/ttyUSB0"); err != nil {
		t.Fatalf("execute() error = %v", err)
	}
	cfg := tc.lastRun(t)
	if cfg.Serial.BaudRate != 38400 || cfg.Serial.Parity != serial.ParityOdd {
		t.Errorf("Serial = %+v", cfg.Serial)
	}
}

func TestConfig_Lifecycle(t *testing.T) {
	tc := newTestCLI(t)
	dir := t.TempDir()

	out, _, err := tc.execute("config", "save", "mydevice", "/dev/ttyUSB0", "-b", "9600", "-p", "even", "--description", "bench board", "--profile-dir", dir)
	if err != nil {
		t.Fatalf("save error = %v", err)
	}
	if !strings.Contains(out, "Profile 'mydevice' saved.") || !strings.Contains(out, "9600 8E1") {
		t.Errorf("save output = %q", out)
	}

	out, _, err = tc.execute("config", "list", "--profile-dir", dir)
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	for _, want := range []string{"Found 1 saved profile(s)", "mydevice", "/dev/ttyUSB0", "9600 8E1"} {
		if !strings.Contains(out, want) {
			t.Errorf("list output missing %q:\n%s", want, out)
		}
	}

	out, _, err = tc.execute("config", "show", "mydevice", "--profile-dir", dir)
	if err != nil {
		t.Fatalf("show error = %v", err)
	}
	for _, want := range []string{"Profile: mydevice", "Baud Rate:    9600", "Parity:       even", "Description:  bench board"} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q:\n%s", want, out)
		}
	}

	// a profile name connects with its saved settings
	if _, _, err := tc.execute("mydevice", "--profile-dir", dir); err != nil {
		t.Fatalf("connect error = %v", err)
	}
	cfg := tc.lastRun(t)
	if cfg.Serial.Port != "/dev/ttyUSB0" || cfg.Serial.BaudRate != 9600 || cfg.Serial.Parity != serial.ParityEven {
		t.Errorf("Serial = %+v", cfg.Serial)
	}

	// explicit flags override the profile
	if _, _, err := tc.execute("config", "load", "mydevice", "-b", "19200", "--profile-dir", dir); err != nil {
		t.Fatalf("load error = %v", err)
	}
	cfg = tc.lastRun(t)
	if cfg.Serial.BaudRate != 19200 || cfg.Serial.Parity != serial.ParityEven {
		t.Errorf("Serial = %+v", cfg.Serial)
	}

	if _, _, err := tc.execute("config", "rm", "mydevice", "--profile-dir", dir); err != nil {
		t.Fatalf("delete error = %v", err)
	}
	if _, _, err := tc.execute("config", "show", "mydevice", "--profile-dir", dir); err == nil {
		t.Error("show after delete should fail")
	}
	if _, _, err := tc.execute("config", "delete", "mydevice", "--profile-dir", dir); err == nil {
		t.Error("second delete should fail")
	}

	out, _, err = tc.execute("config", "list", "--profile-dir", dir)
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	if !strings.Contains(out, "No saved profiles found.") {
		t.Errorf("list output = %q", out)
	}
}
