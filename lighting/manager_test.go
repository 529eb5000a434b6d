package lighting

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"libdb.so/ttglow/internal/events"
	"libdb.so/ttglow/internal/led"
	"libdb.so/ttglow/internal/sensors"
)

func fastController(t *testing.T, e Effect) *Controller {
	t.Helper()
	c := mustController(t, e)
	c.SetRefreshInterval(time.Millisecond)
	return c
}

// waitFor polls cond until it holds or the test times out.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestManagerStartWithoutController(t *testing.T) {
	m := NewManager(nil)
	assert.ErrorIs(t, m.Start(), ErrNoController)
	assert.Equal(t, StateIdle, m.State())

	// Stopping an idle manager is a no-op.
	assert.NoError(t, m.Stop())
}

func TestManagerStartStop(t *testing.T) {
	dev := newFakeDevice(2)

	m := NewManager(fastController(t, NewStatic(led.RGB(255, 0, 0))))
	m.AttachDevice(dev)
	m.SetBrightness(50)

	require.NoError(t, m.Start())
	assert.Equal(t, StateRunning, m.State())
	assert.ErrorIs(t, m.Start(), ErrAlreadyStarted)

	waitFor(t, "frames", func() bool { return dev.NumFrames() >= 3 })

	require.NoError(t, m.Stop())
	assert.Equal(t, StateStopped, m.State())
	assert.NoError(t, m.Err())

	select {
	case <-m.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}

	n := dev.NumFrames()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, dev.NumFrames(), "frames written after Stop returned")

	for _, frame := range dev.Frames() {
		assert.Equal(t, []uint8{0, 127, 0, 0, 127, 0}, frame)
	}

	assert.ErrorIs(t, m.Start(), ErrManagerStopped)
	assert.NoError(t, m.Stop())
}

func TestManagerStopInterruptsSleep(t *testing.T) {
	c := mustController(t, NewStatic(led.RGB(1, 2, 3)))
	c.SetRefreshInterval(time.Hour)

	dev := newFakeDevice(1)
	m := NewManager(c)
	m.AttachDevice(dev)

	require.NoError(t, m.Start())
	waitFor(t, "first frame", func() bool { return dev.NumFrames() == 1 })

	stopped := make(chan error, 1)
	go func() { stopped <- m.Stop() }()

	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on the refresh interval")
	}
}

func TestManagerDeviceOrderAndAlternation(t *testing.T) {
	var mu sync.Mutex
	var order []int

	devs := []*fakeDevice{newFakeDevice(3), newFakeDevice(3)}
	for i, d := range devs {
		i := i
		d.onSet = func([]uint8) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}
	}

	even := led.RGB(10, 0, 0)
	odd := led.RGB(0, 0, 20)

	m := NewManager(fastController(t, NewAlternating(even, odd)))
	for _, d := range devs {
		m.AttachDevice(d)
	}

	require.NoError(t, m.Start())
	waitFor(t, "two rounds", func() bool { return devs[1].NumFrames() >= 2 })
	require.NoError(t, m.Stop())

	mu.Lock()
	for i, dev := range order {
		assert.Equal(t, i%2, dev, "write %d went to the wrong device", i)
	}
	mu.Unlock()

	// Three LEDs per device: the alternation continues across devices and
	// rounds, so the pattern flips from one frame to the next.
	o, e := odd.Swap12(), even.Swap12()
	oddFirst := append(append(append([]uint8{}, o[:]...), e[:]...), o[:]...)
	evenFirst := append(append(append([]uint8{}, e[:]...), o[:]...), e[:]...)

	assert.Equal(t, oddFirst, devs[0].Frames()[0])
	assert.Equal(t, evenFirst, devs[1].Frames()[0])
	assert.Equal(t, oddFirst, devs[0].Frames()[1])
	assert.Equal(t, evenFirst, devs[1].Frames()[1])
}

func TestManagerAbortsOnDeviceError(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	aborted := make(chan events.LoopAborted, 1)
	defer bus.OnLoopAborted(func(e events.LoopAborted) { aborted <- e })()

	dev := newFakeDevice(1)
	m := NewManager(fastController(t, NewStatic(led.RGB(1, 2, 3))), WithEventBus(bus))
	m.AttachDevice(dev)
	require.NoError(t, m.Start())

	waitFor(t, "first frame", func() bool { return dev.NumFrames() >= 1 })

	errGone := errors.New("device unplugged")
	dev.setErr(errGone)

	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not abort")
	}

	assert.Equal(t, StateAborted, m.State())
	assert.ErrorIs(t, m.Err(), errGone)
	assert.ErrorIs(t, m.Stop(), errGone)

	select {
	case e := <-aborted:
		assert.ErrorIs(t, e.Err, errGone)
	case <-time.After(2 * time.Second):
		t.Fatal("no LoopAborted event")
	}
}

func TestManagerAbortsOnPanic(t *testing.T) {
	dev := newFakeDevice(1)
	dev.onSet = func([]uint8) { panic("driver bug") }

	m := NewManager(fastController(t, NewStatic(led.RGB(1, 2, 3))))
	m.AttachDevice(dev)
	require.NoError(t, m.Start())

	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not abort")
	}

	assert.Equal(t, StateAborted, m.State())
	assert.ErrorContains(t, m.Err(), "driver bug")
}

func TestManagerSurvivesSensorFaults(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	faults := make(chan events.SensorFault, 16)
	defer bus.OnSensorFault(func(e events.SensorFault) {
		select {
		case faults <- e:
		default:
		}
	})()

	e, err := NewTemperature("missing", DefaultThresholds, sensors.Static{}, nil)
	require.NoError(t, err)

	dev := newFakeDevice(4)
	m := NewManager(fastController(t, e), WithEventBus(bus))
	m.AttachDevice(dev)
	require.NoError(t, m.Start())

	waitFor(t, "frames", func() bool { return dev.NumFrames() >= 3 })
	require.NoError(t, m.Stop())
	assert.Equal(t, StateStopped, m.State())

	select {
	case f := <-faults:
		assert.ErrorIs(t, f.Err, sensors.ErrNotFound)
	case <-time.After(2 * time.Second):
		t.Fatal("no SensorFault event")
	}
}

func TestManagerHotSwap(t *testing.T) {
	dev := newFakeDevice(1)

	m := NewManager(fastController(t, NewStatic(led.RGB(255, 0, 0))))
	m.AttachDevice(dev)
	require.NoError(t, m.Start())
	defer m.Stop()

	waitFor(t, "red frame", func() bool { return dev.NumFrames() >= 1 })

	blue := fastController(t, NewStatic(led.RGB(0, 0, 255)))
	m.SetController(nil)
	m.SetController(blue)
	assert.Same(t, blue, m.Controller())

	m.SetBrightness(1000)
	m.SetRefreshInterval(0)
	assert.Equal(t, MaxBrightness, blue.Brightness())
	assert.Equal(t, time.Millisecond, blue.RefreshInterval())

	waitFor(t, "blue frame", func() bool {
		frames := dev.Frames()
		last := frames[len(frames)-1]
		return last[2] == 255
	})
}

func TestManagerAttachWhileRunning(t *testing.T) {
	first := newFakeDevice(1)
	m := NewManager(fastController(t, NewRGBSpectrum(nil)))
	m.AttachDevice(first)
	require.NoError(t, m.Start())
	defer m.Stop()

	second := newFakeDevice(2)
	m.AttachDevice(second)
	m.AttachDevice(second)
	assert.Len(t, m.Devices(), 3)

	waitFor(t, "frames on the new device", func() bool { return second.NumFrames() >= 2 })
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "aborted", StateAborted.String())
	assert.Equal(t, "State(42)", State(42).String())
}
