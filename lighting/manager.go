package lighting

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"libdb.so/ttglow/internal/events"
	"libdb.so/ttglow/internal/sensors"
)

var (
	// ErrNoController is returned by Start when no controller was set.
	ErrNoController = errors.New("no controller set")
	// ErrAlreadyStarted is returned by Start when the loop is running.
	ErrAlreadyStarted = errors.New("manager already started")
	// ErrManagerStopped is returned by Start after the loop has exited. A
	// Manager cannot be restarted.
	ErrManagerStopped = errors.New("manager stopped")
)

// State is the lifecycle state of a Manager.
type State uint8

const (
	// StateIdle means Start has not been called yet.
	StateIdle State = iota
	// StateRunning means the loop is running.
	StateRunning
	// StateStopping means Stop was called and the loop is finishing its
	// round.
	StateStopping
	// StateStopped means the loop exited because Stop was called.
	StateStopped
	// StateAborted means the loop exited on its own because of an error.
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Manager owns the attached devices and the active Controller, and runs the
// loop that pushes frames to the devices.
type Manager struct {
	logger *slog.Logger
	bus    *events.Bus

	mu         sync.Mutex
	devices    []Device
	controller *Controller
	state      State
	err        error
	rounds     uint64

	stop   chan struct{}
	done   chan struct{}
	cancel context.CancelFunc
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// WithEventBus makes the Manager publish loop events to bus.
func WithEventBus(bus *events.Bus) ManagerOption {
	return func(m *Manager) { m.bus = bus }
}

// NewManager creates a new Manager. c may be nil, in which case a controller
// must be set before Start.
func NewManager(c *Controller, opts ...ManagerOption) *Manager {
	m := &Manager{
		logger:     slog.New(discardHandler{}),
		controller: c,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AttachDevice appends d to the device list. Devices are driven in the order
// they were attached. It is safe to call while the loop is running; the
// device is picked up on the next round.
func (m *Manager) AttachDevice(d Device) {
	m.mu.Lock()
	m.devices = append(m.devices, d)
	m.mu.Unlock()
}

// Devices returns a copy of the device list.
func (m *Manager) Devices() []Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Device(nil), m.devices...)
}

// SetController swaps the active controller. A nil controller is ignored.
func (m *Manager) SetController(c *Controller) {
	if c == nil {
		return
	}

	m.mu.Lock()
	m.controller = c
	m.mu.Unlock()
}

// Controller returns the active controller, or nil if none was set.
func (m *Manager) Controller() *Controller {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.controller
}

// SetBrightness sets the brightness of the active controller. It does nothing
// if there is no controller.
func (m *Manager) SetBrightness(level int) {
	if c := m.Controller(); c != nil {
		c.SetBrightness(level)
	}
}

// SetRefreshInterval sets the refresh interval of the active controller. It
// does nothing if there is no controller.
func (m *Manager) SetRefreshInterval(d time.Duration) {
	if c := m.Controller(); c != nil {
		c.SetRefreshInterval(d)
	}
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err returns the error that aborted the loop, if any.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Done returns a channel that is closed once the loop has exited, either
// because of Stop or because it aborted.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Start starts the loop in the background.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateIdle:
	case StateRunning:
		return ErrAlreadyStarted
	default:
		return ErrManagerStopped
	}

	if m.controller == nil {
		return ErrNoController
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.state = StateRunning

	go m.loop(ctx)
	return nil
}

// Stop stops the loop and waits for it to exit. No frame is written to any
// device after Stop returns. If the loop had already aborted, Stop returns
// the error that aborted it. Stopping a Manager that was never started is a
// no-op.
func (m *Manager) Stop() error {
	m.mu.Lock()
	switch m.state {
	case StateIdle:
		m.mu.Unlock()
		return nil
	case StateRunning:
		m.state = StateStopping
		close(m.stop)
		m.cancel()
	}
	m.mu.Unlock()

	<-m.done
	return m.Err()
}

func (m *Manager) running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateRunning
}

func (m *Manager) loop(ctx context.Context) {
	defer close(m.done)
	defer m.cancel()

	m.logger.Debug("lighting loop started")

	for m.running() {
		interval, err := m.round(ctx)
		if err != nil {
			m.abort(err)
			return
		}

		timer := time.NewTimer(interval)
		select {
		case <-m.stop:
			timer.Stop()
		case <-timer.C:
		}
	}

	m.mu.Lock()
	m.state = StateStopped
	rounds := m.rounds
	m.mu.Unlock()

	m.logger.Debug("lighting loop stopped", "rounds", rounds)
	m.bus.Publish(events.LoopStopped{Rounds: rounds, Time: time.Now()})
}

func (m *Manager) abort(err error) {
	m.mu.Lock()
	m.state = StateAborted
	m.err = err
	m.mu.Unlock()

	m.logger.Error("lighting loop aborted", "error", err)
	m.bus.Publish(events.LoopAborted{Err: err, Time: time.Now()})
}

// round runs one iteration of the loop and returns how long to sleep before
// the next one.
func (m *Manager) round(ctx context.Context) (_ time.Duration, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in lighting round: %v", r)
		}
	}()

	m.mu.Lock()
	c := m.controller
	devices := append([]Device(nil), m.devices...)
	m.mu.Unlock()

	start := time.Now()

	if err := c.BeginRound(ctx); err != nil && ctx.Err() == nil {
		// Sensor faults keep the last colors. The next round retries.
		sensorFaultsTotal.Inc()
		m.logger.Warn("effect failed to begin round",
			"effect", c.Effect().Kind(),
			"not_found", errors.Is(err, sensors.ErrNotFound),
			"error", err)
		m.bus.Publish(events.SensorFault{Err: err, Time: time.Now()})
	}

	for i, d := range devices {
		frame, _ := c.BuildFrame(d)
		if err := d.SetLighting(frame); err != nil {
			deviceErrorsTotal.Inc()
			return 0, errors.Wrapf(err, "failed to write frame to device %d", i)
		}
		framesTotal.WithLabelValues(strconv.Itoa(i)).Inc()
	}

	roundDuration.Observe(time.Since(start).Seconds())
	roundsTotal.Inc()

	m.mu.Lock()
	m.rounds++
	m.mu.Unlock()

	interval := c.RefreshInterval()
	brightnessPercent.Set(float64(c.Brightness()))
	refreshIntervalSeconds.Set(interval.Seconds())

	return interval, nil
}

// discardHandler is a slog.Handler that drops every record.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
