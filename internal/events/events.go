// Package events broadcasts lighting loop events to interested parties.
package events

import (
	"time"

	"github.com/kelindar/event"
)

// Event type constants for kelindar/event.
const (
	TypeLoopStopped uint32 = iota + 1
	TypeLoopAborted
	TypeSensorFault
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// LoopStopped is published when the lighting loop exits after Stop.
type LoopStopped struct {
	Rounds uint64
	Time   time.Time
}

// LoopAborted is published when the lighting loop exits on its own because a
// round failed.
type LoopAborted struct {
	Err  error
	Time time.Time
}

// SensorFault is published when a temperature sensor could not be read. The
// loop keeps running with the last known value.
type SensorFault struct {
	Err  error
	Time time.Time
}

func (e LoopStopped) Type() uint32 { return TypeLoopStopped }
func (e LoopAborted) Type() uint32 { return TypeLoopAborted }
func (e SensorFault) Type() uint32 { return TypeSensorFault }

// Bus wraps a kelindar/event dispatcher. Handlers run on the dispatcher's
// goroutines, never on the publisher's.
type Bus struct {
	dispatcher *event.Dispatcher
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{dispatcher: event.NewDispatcher()}
}

// Publish publishes an event to all subscribers of its type. A nil bus drops
// the event.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}

	switch e := ev.(type) {
	case LoopStopped:
		event.Publish(b.dispatcher, e)
	case LoopAborted:
		event.Publish(b.dispatcher, e)
	case SensorFault:
		event.Publish(b.dispatcher, e)
	}
}

// OnLoopStopped subscribes to LoopStopped events. It returns the unsubscribe
// function.
func (b *Bus) OnLoopStopped(h func(LoopStopped)) func() {
	return event.Subscribe(b.dispatcher, h)
}

// OnLoopAborted subscribes to LoopAborted events.
func (b *Bus) OnLoopAborted(h func(LoopAborted)) func() {
	return event.Subscribe(b.dispatcher, h)
}

// OnSensorFault subscribes to SensorFault events.
func (b *Bus) OnSensorFault(h func(SensorFault)) func() {
	return event.Subscribe(b.dispatcher, h)
}

// Close closes the dispatcher and all subscriptions.
func (b *Bus) Close() error {
	return b.dispatcher.Close()
}
