package main

import (
	"io"
	"machine"
	"runtime"
	"time"
)

// pollInterval is how long Read sleeps when no byte is buffered.
const pollInterval = time.Millisecond

// SerialReadWriter is a machine.Serialer that also satisfies io.ReadWriter, so
// that ledserial can decode packets from it.
type SerialReadWriter interface {
	io.ReadWriter
	io.ByteReader
	io.ByteWriter
	// Buffered returns the number of bytes currently buffered in the serial
	// device.
	Buffered() int
}

// WrapSerial wraps a machine.Serialer in an io.ReadWriter.
func WrapSerial(serial machine.Serialer) SerialReadWriter {
	return serialIO{serial}
}

type serialIO struct {
	machine.Serialer
}

// Read blocks until at least one byte is available, then reads as many
// buffered bytes as fit in b. It never returns 0, nil, which io.ReadFull
// would treat as a stalled reader.
func (s serialIO) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}

	for s.Buffered() == 0 {
		time.Sleep(pollInterval)
	}

	n := min(s.Buffered(), len(b))
	for i := 0; i < n; i++ {
		c, err := s.ReadByte()
		if err != nil {
			return i, err
		}
		b[i] = c
	}

	runtime.Gosched()
	return n, nil
}

func (s serialIO) Write(b []byte) (int, error) {
	for i, c := range b {
		if err := s.WriteByte(c); err != nil {
			return i, err
		}
	}
	runtime.Gosched()
	return len(b), nil
}
