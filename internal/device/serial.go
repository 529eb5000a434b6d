package device

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"golang.org/x/sync/errgroup"
	"libdb.so/ttglow/ledserial"
)

// ErrControllerPanicked is returned once the strip controller reported that it
// cannot recover.
var ErrControllerPanicked = errors.New("controller panicked")

// SerialOptions configures a serial strip.
type SerialOptions struct {
	// Path is the path to the serial device, usually /dev/ttyUSB0 or
	// /dev/ttyACM0.
	Path string
	// Baud is the baud rate for the serial connection.
	Baud int
	// NumLEDs is the number of LEDs on the strip.
	NumLEDs int
	// AckTimeout is how long to wait for the controller to acknowledge a
	// packet. Zero disables waiting.
	AckTimeout time.Duration
}

// Serial is a strip behind a microcontroller speaking the ledserial protocol.
type Serial struct {
	rw         io.ReadWriteCloser
	numLEDs    int
	ackTimeout time.Duration
	logger     *slog.Logger

	acks    chan ledserial.IncomingPacketType
	errg    errgroup.Group
	done    chan struct{}
	closing atomic.Bool

	mu  sync.Mutex
	err error
}

// OpenSerial opens the serial port and initializes the strip.
func OpenSerial(opts SerialOptions, logger *slog.Logger) (*Serial, error) {
	port, err := serial.Open(opts.Path, &serial.Mode{
		BaudRate: opts.Baud,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open serial port %q", opts.Path)
	}

	if err := port.SetReadTimeout(serial.NoTimeout); err != nil {
		port.Close()
		return nil, errors.Wrap(err, "failed to reset read timeout")
	}

	return NewSerial(port, opts, logger.With("device", opts.Path))
}

// NewSerial initializes a strip over an already opened connection. The
// Serial takes ownership of rw. opts.Path and opts.Baud are ignored.
func NewSerial(rw io.ReadWriteCloser, opts SerialOptions, logger *slog.Logger) (*Serial, error) {
	if opts.NumLEDs < 1 || opts.NumLEDs > 1<<16-1 {
		rw.Close()
		return nil, errors.Errorf("invalid number of LEDs: %d", opts.NumLEDs)
	}

	s := &Serial{
		rw:         rw,
		numLEDs:    opts.NumLEDs,
		ackTimeout: opts.AckTimeout,
		logger:     logger,
		acks:       make(chan ledserial.IncomingPacketType, 4),
		done:       make(chan struct{}),
	}

	s.errg.Go(func() error {
		defer close(s.done)
		return s.readPackets()
	})

	s.logger.Debug("sending initialize packet", "num_leds", s.numLEDs)

	if err := s.send(ledserial.InitializePacket{NumLEDs: uint16(s.numLEDs)}); err != nil {
		s.Close()
		return nil, errors.Wrap(err, "failed to initialize LEDs")
	}

	return s, nil
}

func (s *Serial) NumLEDs() int { return s.numLEDs }

// SetLighting sends a frame and waits for the controller to acknowledge it.
func (s *Serial) SetLighting(pix []uint8) error {
	if err := checkFrame(pix, s.numLEDs); err != nil {
		return err
	}
	return s.send(ledserial.SetPacket{Pix: pix})
}

// Clear turns off every LED on the strip.
func (s *Serial) Clear() error {
	return s.send(ledserial.ClearPacket{})
}

// Err returns the error that broke the connection, if any.
func (s *Serial) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close closes the connection and waits for the reader to exit.
func (s *Serial) Close() error {
	if !s.closing.CompareAndSwap(false, true) {
		return nil
	}

	err := s.rw.Close()
	s.errg.Wait()

	return errors.Wrap(err, "failed to close serial port")
}

func (s *Serial) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

func (s *Serial) send(p ledserial.IncomingPacket) error {
	if err := s.Err(); err != nil {
		return err
	}

	// Drop acks for packets nobody waited on.
	for len(s.acks) > 0 {
		<-s.acks
	}

	if err := ledserial.WriteIncomingPacket(s.rw, p); err != nil {
		return errors.Wrapf(err, "failed to write %s packet", p.Type())
	}

	if s.ackTimeout <= 0 {
		return nil
	}

	timer := time.NewTimer(s.ackTimeout)
	defer timer.Stop()

	for {
		select {
		case acked := <-s.acks:
			if acked == p.Type() {
				return nil
			}
			s.logger.Debug("ignoring ack for another packet", "acked_for", acked)
		case <-s.done:
			if err := s.Err(); err != nil {
				return err
			}
			return errors.New("serial reader stopped")
		case <-timer.C:
			return errors.Errorf("timed out waiting for %s ack", p.Type())
		}
	}
}

func (s *Serial) readPackets() error {
	for {
		p, err := ledserial.ReadOutgoingPacket(s.rw)
		if err != nil {
			if s.closing.Load() {
				return nil
			}
			if errors.Is(err, ledserial.ErrChecksum) {
				s.logger.Warn("dropping corrupted packet from controller")
				continue
			}
			err = errors.Wrap(err, "failed to read packet")
			s.fail(err)
			return err
		}

		switch p := p.(type) {
		case ledserial.AckPacket:
			select {
			case s.acks <- p.IncomingPacketType:
			default:
			}

		case ledserial.ErrorPacket:
			s.logger.Warn(
				"received error packet from controller",
				"message", p.Message)

		case ledserial.PanicPacket:
			s.logger.Error("controller unrecoverably panicked")
			s.fail(ErrControllerPanicked)
			return ErrControllerPanicked

		case ledserial.LogPacket:
			s.logger.Info(
				"received log packet from controller",
				"message", p.Message)

		default:
			s.logger.Warn("received unknown packet from controller", "type", p.Type())
		}
	}
}
