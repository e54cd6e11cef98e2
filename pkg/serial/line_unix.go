//go:build linux || darwin

package serial

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// openControl opens a second descriptor on the tty that is used to tune the
// line after go.bug.st/serial has opened it.
func openControl(name string) (*os.File, error) {
	return os.OpenFile(name, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
}

// configureLine drops the exclusive open flag and applies flow control.
func configureLine(ctl *os.File, flow FlowControl) error {
	fd := int(ctl.Fd())

	if err := unix.IoctlSetInt(fd, unix.TIOCNXCL, 0); err != nil {
		return fmt.Errorf("clear exclusive mode: %w", err)
	}

	t, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return fmt.Errorf("read termios: %w", err)
	}

	t.Cflag &^= unix.CRTSCTS
	t.Iflag &^= unix.IXON | unix.IXOFF | unix.IXANY
	switch flow {
	case FlowHardware:
		t.Cflag |= unix.CRTSCTS
	case FlowSoftware:
		t.Iflag |= unix.IXON | unix.IXOFF
	}

	if err := unix.IoctlSetTermios(fd, ioctlSetTermios, t); err != nil {
		return fmt.Errorf("write termios: %w", err)
	}
	return nil
}
