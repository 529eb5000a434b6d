// Package ledserial implements the LED serial protocol spoken between the
// daemon and a strip controller.
//
// Every packet is a type byte, a type-specific payload and the little-endian
// CRC32 (IEEE) of the type byte and payload.
package ledserial

import (
	"encoding/binary"
	"fmt"
)

// Endianness defines the endianness of the protocol.
var Endianness = binary.LittleEndian

// MaxMessageLength is the longest message an error or log packet can carry.
const MaxMessageLength = 1<<16 - 1

// IncomingPacketType is the type of a packet sent to the controller.
type IncomingPacketType uint8

const (
	TypeInitializePacket IncomingPacketType = iota
	TypeClearPacket
	TypeSetPacket
)

// String returns a string representation of the packet type.
func (t IncomingPacketType) String() string {
	switch t {
	case TypeInitializePacket:
		return "initialize"
	case TypeClearPacket:
		return "clear"
	case TypeSetPacket:
		return "set"
	default:
		return fmt.Sprintf("IncomingPacketType(%d)", uint8(t))
	}
}

// IncomingPacket is a packet sent from the daemon to the controller.
type IncomingPacket interface {
	// Type returns the type of packet.
	Type() IncomingPacketType
}

// InitializePacket tells the controller how many LEDs the strip has. It must
// be the first packet sent.
type InitializePacket struct {
	NumLEDs uint16
}

// ClearPacket turns off every LED.
type ClearPacket struct{}

// SetPacket sets the strip to the given channel values, three per LED.
type SetPacket struct {
	Pix []uint8
}

func (p InitializePacket) Type() IncomingPacketType { return TypeInitializePacket }
func (p ClearPacket) Type() IncomingPacketType      { return TypeClearPacket }
func (p SetPacket) Type() IncomingPacketType        { return TypeSetPacket }

// OutgoingPacketType is the type of a packet sent by the controller.
type OutgoingPacketType uint8

const (
	TypeErrorPacket OutgoingPacketType = iota
	TypePanicPacket
	TypeLogPacket
	TypeAckPacket
)

// String returns a string representation of the packet type.
func (t OutgoingPacketType) String() string {
	switch t {
	case TypeErrorPacket:
		return "error"
	case TypePanicPacket:
		return "panic"
	case TypeLogPacket:
		return "log"
	case TypeAckPacket:
		return "ack"
	default:
		return fmt.Sprintf("OutgoingPacketType(%d)", uint8(t))
	}
}

// OutgoingPacket is a packet sent from the controller to the daemon.
type OutgoingPacket interface {
	// Type returns the type of packet.
	Type() OutgoingPacketType
}

// ErrorPacket reports a recoverable error on the controller.
type ErrorPacket struct {
	Message string
}

// PanicPacket indicates the controller cannot recover.
type PanicPacket struct{}

// LogPacket carries a log line from the controller.
type LogPacket struct {
	Message string
}

// AckPacket acknowledges that an incoming packet was handled. The daemon
// waits for it before sending the next frame.
type AckPacket struct {
	IncomingPacketType IncomingPacketType
}

func (p ErrorPacket) Type() OutgoingPacketType { return TypeErrorPacket }
func (p PanicPacket) Type() OutgoingPacketType { return TypePanicPacket }
func (p LogPacket) Type() OutgoingPacketType   { return TypeLogPacket }
func (p AckPacket) Type() OutgoingPacketType   { return TypeAckPacket }

// ReadContext is the state of the LED strip that the reader of incoming
// packets needs to know.
type ReadContext struct {
	// NumLEDs is the number of LEDs in the strip, as sent by the last
	// InitializePacket.
	NumLEDs uint16
}
