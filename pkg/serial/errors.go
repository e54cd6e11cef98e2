package serial

import (
	"errors"
	"io"
	"os"
	"syscall"

	"go.bug.st/serial"
)

var (
	// ErrPortNotOpen is returned when an operation needs an open port
	ErrPortNotOpen = errors.New("serial port is not open")
	// ErrFlowControlUnsupported is returned by Open on platforms without termios access
	ErrFlowControlUnsupported = errors.New("flow control is not supported on this platform")
)

// Kind classifies a serial I/O error
type Kind int

const (
	KindNone Kind = iota
	KindPermissionDenied
	KindTimedOut
	KindDisconnected
	KindNotFound
	KindBusy
	KindWouldBlock
	KindOther
)

// String returns the human readable name of the kind
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindPermissionDenied:
		return "permission denied"
	case KindTimedOut:
		return "timed out"
	case KindDisconnected:
		return "disconnected"
	case KindNotFound:
		return "not found"
	case KindBusy:
		return "busy"
	case KindWouldBlock:
		return "would block"
	default:
		return "other"
	}
}

// IsLinkFailure reports whether the error kind means the device went away and
// the connection should be re-established.
func (k Kind) IsLinkFailure() bool {
	switch k {
	case KindPermissionDenied, KindTimedOut, KindDisconnected:
		return true
	}
	return false
}

// KindOf classifies err. It understands go.bug.st/serial port errors, errno
// values from the tty driver and the os package sentinels.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}

	if code, ok := portErrorCode(err); ok {
		switch code {
		case serial.PermissionDenied:
			return KindPermissionDenied
		case serial.PortClosed:
			return KindDisconnected
		case serial.PortNotFound:
			return KindNotFound
		case serial.PortBusy:
			return KindBusy
		}
	}

	switch {
	case errors.Is(err, syscall.EAGAIN):
		return KindWouldBlock
	case errors.Is(err, os.ErrDeadlineExceeded), errors.Is(err, syscall.ETIMEDOUT):
		return KindTimedOut
	case errors.Is(err, syscall.EACCES), errors.Is(err, syscall.EPERM), errors.Is(err, os.ErrPermission):
		return KindPermissionDenied
	case errors.Is(err, syscall.EIO), errors.Is(err, syscall.ENXIO), errors.Is(err, syscall.ENODEV),
		errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, os.ErrClosed):
		return KindDisconnected
	case errors.Is(err, syscall.EBUSY):
		return KindBusy
	case errors.Is(err, syscall.ENOENT), errors.Is(err, os.ErrNotExist):
		return KindNotFound
	}

	return KindOther
}

// portErrorCode digs a go.bug.st/serial error code out of err; the library
// returns both pointer and value forms depending on the call site.
func portErrorCode(err error) (serial.PortErrorCode, bool) {
	var ptr *serial.PortError
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.Code(), true
	}
	var val serial.PortError
	if errors.As(err, &val) {
		return val.Code(), true
	}
	return 0, false
}
