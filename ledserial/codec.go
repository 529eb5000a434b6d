package ledserial

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
)

// ErrChecksum is returned when a packet's trailing checksum does not match.
var ErrChecksum = errors.New("packet checksum mismatch")

// packetReader reads a packet while hashing everything it consumes.
type packetReader struct {
	r    io.Reader
	hash hash.Hash32
}

func newPacketReader(r io.Reader) *packetReader {
	h := crc32.NewIEEE()
	return &packetReader{r: io.TeeReader(r, h), hash: h}
}

func (r *packetReader) readType() (uint8, error) {
	var b [1]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *packetReader) readMessage() (string, error) {
	var length uint16
	if err := binary.Read(r.r, Endianness, &length); err != nil {
		return "", fmt.Errorf("failed to read message length: %w", err)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return "", fmt.Errorf("failed to read message: %w", err)
	}
	return string(buf), nil
}

// verify reads the trailing checksum. It must be called after the payload.
func (r *packetReader) verify() error {
	sum := r.hash.Sum32()

	// The sum is taken before the checksum is consumed, since reading it
	// feeds the hash too.
	var checksum uint32
	if err := binary.Read(r.r, Endianness, &checksum); err != nil {
		return fmt.Errorf("failed to read packet checksum: %w", err)
	}
	if checksum != sum {
		return ErrChecksum
	}
	return nil
}

// packetWriter buffers a packet and appends its checksum on flush, so a
// packet reaches the wire in a single write.
type packetWriter struct {
	buf bytes.Buffer
}

func (w *packetWriter) writeType(t uint8) {
	w.buf.WriteByte(t)
}

func (w *packetWriter) writeMessage(msg string) error {
	if len(msg) > MaxMessageLength {
		return fmt.Errorf("message too long (%d bytes)", len(msg))
	}
	binary.Write(&w.buf, Endianness, uint16(len(msg)))
	w.buf.WriteString(msg)
	return nil
}

func (w *packetWriter) flush(dst io.Writer) error {
	binary.Write(&w.buf, Endianness, crc32.ChecksumIEEE(w.buf.Bytes()))
	if _, err := dst.Write(w.buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write packet: %w", err)
	}
	return nil
}

// ReadIncomingPacket reads a packet sent to the controller.
func ReadIncomingPacket(r io.Reader, rctx ReadContext) (IncomingPacket, error) {
	pr := newPacketReader(r)

	t, err := pr.readType()
	if err != nil {
		return nil, fmt.Errorf("failed to read incoming packet type: %w", err)
	}

	var packet IncomingPacket
	switch ptype := IncomingPacketType(t); ptype {
	case TypeInitializePacket:
		var p InitializePacket
		if err := binary.Read(pr.r, Endianness, &p.NumLEDs); err != nil {
			return nil, fmt.Errorf("failed to read number of LEDs: %w", err)
		}
		packet = p

	case TypeClearPacket:
		packet = ClearPacket{}

	case TypeSetPacket:
		p := SetPacket{Pix: make([]uint8, 3*int(rctx.NumLEDs))}
		if _, err := io.ReadFull(pr.r, p.Pix); err != nil {
			return nil, fmt.Errorf("failed to read pixel data: %w", err)
		}
		packet = p

	default:
		return nil, fmt.Errorf("unknown packet type: %s", ptype)
	}

	if err := pr.verify(); err != nil {
		return nil, err
	}

	return packet, nil
}

// WriteIncomingPacket writes a packet destined for the controller.
func WriteIncomingPacket(w io.Writer, p IncomingPacket) error {
	var pw packetWriter

	switch p := p.(type) {
	case InitializePacket:
		pw.writeType(uint8(TypeInitializePacket))
		binary.Write(&pw.buf, Endianness, p.NumLEDs)
	case ClearPacket:
		pw.writeType(uint8(TypeClearPacket))
	case SetPacket:
		pw.writeType(uint8(TypeSetPacket))
		pw.buf.Write(p.Pix)
	default:
		return fmt.Errorf("unknown packet type: %T", p)
	}

	return pw.flush(w)
}

// ReadOutgoingPacket reads a packet sent by the controller.
func ReadOutgoingPacket(r io.Reader) (OutgoingPacket, error) {
	pr := newPacketReader(r)

	t, err := pr.readType()
	if err != nil {
		return nil, fmt.Errorf("failed to read outgoing packet type: %w", err)
	}

	var packet OutgoingPacket
	switch ptype := OutgoingPacketType(t); ptype {
	case TypeErrorPacket:
		msg, err := pr.readMessage()
		if err != nil {
			return nil, err
		}
		packet = ErrorPacket{Message: msg}

	case TypePanicPacket:
		packet = PanicPacket{}

	case TypeLogPacket:
		msg, err := pr.readMessage()
		if err != nil {
			return nil, err
		}
		packet = LogPacket{Message: msg}

	case TypeAckPacket:
		acked, err := pr.readType()
		if err != nil {
			return nil, fmt.Errorf("failed to read acked packet type: %w", err)
		}
		packet = AckPacket{IncomingPacketType: IncomingPacketType(acked)}

	default:
		return nil, fmt.Errorf("unknown packet type: %s", ptype)
	}

	if err := pr.verify(); err != nil {
		return nil, err
	}

	return packet, nil
}

// WriteOutgoingPacket writes a packet destined for the daemon.
func WriteOutgoingPacket(w io.Writer, p OutgoingPacket) error {
	var pw packetWriter

	switch p := p.(type) {
	case ErrorPacket:
		pw.writeType(uint8(TypeErrorPacket))
		if err := pw.writeMessage(p.Message); err != nil {
			return err
		}
	case PanicPacket:
		pw.writeType(uint8(TypePanicPacket))
	case LogPacket:
		pw.writeType(uint8(TypeLogPacket))
		if err := pw.writeMessage(p.Message); err != nil {
			return err
		}
	case AckPacket:
		pw.writeType(uint8(TypeAckPacket))
		pw.writeType(uint8(p.IncomingPacketType))
	default:
		return fmt.Errorf("unknown packet type: %T", p)
	}

	return pw.flush(w)
}
