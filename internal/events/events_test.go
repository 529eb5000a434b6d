package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	aborted := make(chan LoopAborted, 1)
	unsub := bus.OnLoopAborted(func(e LoopAborted) { aborted <- e })
	defer unsub()

	stopped := make(chan LoopStopped, 1)
	defer bus.OnLoopStopped(func(e LoopStopped) { stopped <- e })()

	bus.Publish(LoopAborted{Err: errors.New("device gone")})

	select {
	case e := <-aborted:
		require.Error(t, e.Err)
		assert.Equal(t, "device gone", e.Err.Error())
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for LoopAborted")
	}

	select {
	case e := <-stopped:
		t.Fatalf("unexpected LoopStopped: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNilBusPublish(t *testing.T) {
	var bus *Bus
	assert.NotPanics(t, func() { bus.Publish(SensorFault{}) })
}
