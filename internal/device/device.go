// Package device implements LED strips the lighting loop can drive.
package device

import (
	"fmt"
	"io"

	"libdb.so/ttglow/lighting"
)

// Device is a lighting.Device that holds resources.
type Device interface {
	lighting.Device
	io.Closer
}

var (
	_ Device = (*Serial)(nil)
	_ Device = (*NRZ)(nil)
	_ Device = (*Null)(nil)
)

func checkFrame(pix []uint8, numLEDs int) error {
	if len(pix) != 3*numLEDs {
		return &FrameSizeError{Got: len(pix), Want: 3 * numLEDs}
	}
	return nil
}

// FrameSizeError is returned when a frame does not match the strip length.
type FrameSizeError struct {
	Got  int
	Want int
}

func (e *FrameSizeError) Error() string {
	return fmt.Sprintf("frame has %d channel values, want %d", e.Got, e.Want)
}
