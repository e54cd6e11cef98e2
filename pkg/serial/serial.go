// Package serial provides serial port configuration, opening and enumeration
package serial

import (
	"fmt"
	"io"
	"strings"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// Parity is the parity mode of a serial line
type Parity string

const (
	ParityNone Parity = "none"
	ParityOdd  Parity = "odd"
	ParityEven Parity = "even"
)

// FlowControl is the flow control mode of a serial line
type FlowControl string

const (
	FlowNone     FlowControl = "none"
	FlowSoftware FlowControl = "software"
	FlowHardware FlowControl = "hardware"
)

// Config defines the configuration for serial port communication
type Config struct {
	Port        string      `json:"port"`
	BaudRate    int         `json:"baud_rate"`
	DataBits    int         `json:"data_bits"`
	Parity      Parity      `json:"parity"`
	StopBits    int         `json:"stop_bits"`
	FlowControl FlowControl `json:"flow_control"`
}

// Validate checks if the serial configuration is valid
func (c Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}

	if c.BaudRate <= 0 {
		return fmt.Errorf("invalid baud rate: %d", c.BaudRate)
	}

	if c.DataBits < 5 || c.DataBits > 8 {
		return fmt.Errorf("data bits must be between 5 and 8, got: %d", c.DataBits)
	}

	if c.StopBits < 1 || c.StopBits > 2 {
		return fmt.Errorf("stop bits must be 1 or 2, got: %d", c.StopBits)
	}

	if _, err := ParseParity(string(c.Parity)); err != nil {
		return err
	}

	if _, err := ParseFlowControl(string(c.FlowControl)); err != nil {
		return err
	}

	return nil
}

// String renders the line settings the way they are usually written, e.g. "115200 8N1"
func (c Config) String() string {
	p := "N"
	switch c.Parity {
	case ParityOdd:
		p = "O"
	case ParityEven:
		p = "E"
	}
	s := fmt.Sprintf("%d %d%s%d", c.BaudRate, c.DataBits, p, c.StopBits)
	if c.FlowControl != "" && c.FlowControl != FlowNone {
		s += " " + string(c.FlowControl)
	}
	return s
}

// DefaultConfig returns a default serial configuration for the given port
func DefaultConfig(port string) Config {
	return Config{
		Port:        port,
		BaudRate:    115200,
		DataBits:    8,
		Parity:      ParityNone,
		StopBits:    1,
		FlowControl: FlowNone,
	}
}

// ParseParity accepts none, odd or even in any letter case
func ParseParity(s string) (Parity, error) {
	switch strings.ToLower(s) {
	case "none", "n":
		return ParityNone, nil
	case "odd", "o":
		return ParityOdd, nil
	case "even", "e":
		return ParityEven, nil
	}
	return "", fmt.Errorf("invalid parity: %q (expected none, odd or even)", s)
}

// ParseFlowControl accepts none, sw/software or hw/hardware
func ParseFlowControl(s string) (FlowControl, error) {
	switch strings.ToLower(s) {
	case "none":
		return FlowNone, nil
	case "sw", "software":
		return FlowSoftware, nil
	case "hw", "hardware":
		return FlowHardware, nil
	}
	return "", fmt.Errorf("invalid flow control: %q (expected none, software or hardware)", s)
}

// ParseStopBits accepts 1/one or 2/two
func ParseStopBits(s string) (int, error) {
	switch strings.ToLower(s) {
	case "1", "one":
		return 1, nil
	case "2", "two":
		return 2, nil
	}
	return 0, fmt.Errorf("invalid stop bits: %q (expected 1 or 2)", s)
}

// Port is an open serial connection
type Port interface {
	io.Reader
	io.Writer
	io.Closer
}

// Opener opens a port for the given configuration. Open is the production implementation.
type Opener func(cfg Config) (Port, error)

// Open opens the serial port described by cfg.
//
// On Linux and macOS the returned handle does not hold the tty exclusively and
// the requested flow control is applied to the line; elsewhere only "none" is supported.
func Open(cfg Config) (Port, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// The control handle has to exist before the port is opened; once the
	// port sets the exclusive flag no second open would be allowed.
	ctl, err := openControl(cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Port, err)
	}
	if ctl != nil {
		defer ctl.Close()
	}

	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		StopBits: convertStopBits(cfg.StopBits),
		Parity:   convertParity(cfg.Parity),
	}

	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Port, err)
	}

	if err := configureLine(ctl, cfg.FlowControl); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to configure serial port %s: %w", cfg.Port, err)
	}

	return port, nil
}

// convertStopBits converts our stop bits format to go.bug.st/serial format
func convertStopBits(stopBits int) serial.StopBits {
	if stopBits == 2 {
		return serial.TwoStopBits
	}
	return serial.OneStopBit
}

// convertParity converts our parity format to go.bug.st/serial format
func convertParity(parity Parity) serial.Parity {
	switch parity {
	case ParityOdd:
		return serial.OddParity
	case ParityEven:
		return serial.EvenParity
	default:
		return serial.NoParity
	}
}

// PortInfo contains information about a serial port
type PortInfo struct {
	Name         string `json:"name"`
	IsUSB        bool   `json:"is_usb"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Product      string `json:"product,omitempty"`
}

// Description returns a one line summary of the USB details, or "" for other ports
func (p PortInfo) Description() string {
	if !p.IsUSB {
		return ""
	}
	parts := []string{fmt.Sprintf("USB %s:%s", p.VID, p.PID)}
	if p.SerialNumber != "" {
		parts = append(parts, "Serial: "+p.SerialNumber)
	}
	if p.Product != "" {
		parts = append(parts, p.Product)
	}
	return strings.Join(parts, ", ")
}

// ListPorts returns a list of available serial ports on the system
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to get ports list: %w", err)
	}
	return ports, nil
}

// GetDetailedPortsList returns detailed information about available serial ports
func GetDetailedPortsList() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to get detailed ports list: %w", err)
	}

	infos := make([]PortInfo, 0, len(details))
	for _, d := range details {
		infos = append(infos, PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}
	return infos, nil
}

// IsPortAvailable checks if a specific port is currently enumerated
func IsPortAvailable(portName string) bool {
	ports, err := ListPorts()
	if err != nil {
		return false
	}

	for _, port := range ports {
		if port == portName {
			return true
		}
	}

	return false
}

// LooksLikePort reports whether name is plausibly a device path even when nothing is plugged in
func LooksLikePort(name string) bool {
	upper := strings.ToUpper(name)
	return strings.HasPrefix(name, "/dev/") ||
		strings.HasPrefix(upper, "COM") ||
		strings.HasPrefix(name, `\\.\`)
}
