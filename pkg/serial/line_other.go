//go:build !linux && !darwin

package serial

import "os"

func openControl(string) (*os.File, error) {
	return nil, nil
}

func configureLine(_ *os.File, flow FlowControl) error {
	if flow != "" && flow != FlowNone {
		return ErrFlowControlUnsupported
	}
	return nil
}
