// Package ttglow implements a lighting daemon for addressable-LED strips.
package ttglow

import (
	"context"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"libdb.so/ttglow/internal/device"
	"libdb.so/ttglow/internal/events"
	"libdb.so/ttglow/internal/sensors"
	"libdb.so/ttglow/lighting"
	"periph.io/x/conn/v3/physic"
)

// DeviceOpener opens the device described by cfg.
type DeviceOpener func(cfg DeviceConfig, logger *slog.Logger) (device.Device, error)

// Daemon is the main ttglow daemon.
type Daemon struct {
	logger  *slog.Logger
	sensors sensors.Reader
	open    DeviceOpener
	events  *events.Bus

	mu      sync.Mutex
	cfg     *Config
	manager *lighting.Manager
}

// DaemonOption configures a Daemon.
type DaemonOption func(*Daemon)

// WithSensors overrides the temperature sensor reader. The default reads the
// host's hardware sensors.
func WithSensors(r sensors.Reader) DaemonOption {
	return func(d *Daemon) { d.sensors = r }
}

// WithDeviceOpener overrides how devices are opened.
func WithDeviceOpener(open DeviceOpener) DaemonOption {
	return func(d *Daemon) { d.open = open }
}

// NewDaemon creates a new ttglow daemon.
func NewDaemon(cfg *Config, logger *slog.Logger, opts ...DaemonOption) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	d := &Daemon{
		cfg:    cfg,
		logger: logger,
		open:   OpenDevice,
		events: events.NewBus(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.sensors == nil {
		d.sensors = sensors.NewHost()
	}

	return d, nil
}

// Events returns the bus that the lighting loop publishes to.
func (d *Daemon) Events() *events.Bus {
	return d.events
}

// Config returns the configuration currently applied.
func (d *Daemon) Config() *Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// Run starts the daemon. It blocks until the given context is canceled or the
// lighting loop aborts.
func (d *Daemon) Run(ctx context.Context) error {
	cfg := d.Config()

	devices, err := d.openDevices(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.closeDevices(devices)

	controller, err := d.newController(cfg)
	if err != nil {
		return err
	}

	manager := lighting.NewManager(controller,
		lighting.WithLogger(d.logger),
		lighting.WithEventBus(d.events))
	for _, dev := range devices {
		manager.AttachDevice(dev)
	}

	if err := manager.Start(); err != nil {
		return errors.Wrap(err, "failed to start lighting loop")
	}

	d.mu.Lock()
	d.manager = manager
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.manager = nil
		d.mu.Unlock()
	}()

	d.logger.Info(
		"lighting loop started",
		"effect", controller.Effect().Kind(),
		"devices", len(devices),
		"leds", cfg.NumLEDs())

	select {
	case <-ctx.Done():
		d.logger.Debug("stopping lighting loop")
		if err := manager.Stop(); err != nil {
			return errors.Wrap(err, "lighting loop aborted")
		}
		return ctx.Err()
	case <-manager.Done():
		return errors.Wrap(manager.Err(), "lighting loop aborted")
	}
}

// Reload applies a new configuration to the running daemon. A changed effect
// replaces the controller. Brightness and refresh interval are applied in
// place. Device changes only take effect after a restart.
func (d *Daemon) Reload(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	old := d.cfg
	d.cfg = cfg

	if d.manager == nil {
		return nil
	}

	if !reflect.DeepEqual(old.Devices, cfg.Devices) {
		d.logger.Warn("device configuration changed, restart to apply")
	}

	if !reflect.DeepEqual(old.Effect, cfg.Effect) {
		controller, err := d.newController(cfg)
		if err != nil {
			d.cfg = old
			return err
		}

		d.manager.SetController(controller)
		d.logger.Info("switched effect", "effect", cfg.Effect.Type)
		return nil
	}

	d.manager.SetBrightness(cfg.BrightnessLevel())
	d.manager.SetRefreshInterval(cfg.Interval())
	d.logger.Debug(
		"applied configuration",
		"brightness", cfg.BrightnessLevel(),
		"refresh_interval", cfg.Interval())

	return nil
}

func (d *Daemon) newController(cfg *Config) (*lighting.Controller, error) {
	controller, err := lighting.NewControllerFromConfig(cfg.Effect, lighting.EffectDeps{
		Sensors: d.sensors,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create effect")
	}

	controller.SetBrightness(cfg.BrightnessLevel())
	controller.SetRefreshInterval(cfg.Interval())
	return controller, nil
}

// openDevices opens every configured device concurrently. The returned slice
// is in configuration order.
func (d *Daemon) openDevices(ctx context.Context, cfg *Config) ([]device.Device, error) {
	devices := make([]device.Device, len(cfg.Devices))

	errg, ctx := errgroup.WithContext(ctx)
	for i, devcfg := range cfg.Devices {
		i, devcfg := i, devcfg
		errg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			logger := d.logger.With("device", i, "kind", devcfg.Kind)
			logger.Debug("opening device", "leds", devcfg.LEDs)

			dev, err := d.open(devcfg, logger)
			if err != nil {
				return errors.Wrapf(err, "failed to open device %d", i)
			}
			if dev.NumLEDs() != devcfg.LEDs {
				dev.Close()
				return errors.Errorf(
					"device %d has %d LEDs, configured %d",
					i, dev.NumLEDs(), devcfg.LEDs)
			}

			devices[i] = dev
			return nil
		})
	}

	if err := errg.Wait(); err != nil {
		d.closeDevices(devices)
		return nil, err
	}

	return devices, nil
}

type clearer interface {
	Clear() error
}

func (d *Daemon) closeDevices(devices []device.Device) {
	for i, dev := range devices {
		if dev == nil {
			continue
		}
		if c, ok := dev.(clearer); ok {
			if err := c.Clear(); err != nil {
				d.logger.Debug("failed to clear device", "device", i, "error", err)
			}
		}
		if err := dev.Close(); err != nil {
			d.logger.Warn("failed to close device", "device", i, "error", err)
		}
	}
}

// OpenDevice opens the device described by cfg.
func OpenDevice(cfg DeviceConfig, logger *slog.Logger) (device.Device, error) {
	switch cfg.Kind {
	case SerialDevice:
		baud := cfg.Baud
		if baud == 0 {
			baud = DefaultBaud
		}

		ackTimeout := time.Duration(cfg.AckTimeout)
		switch {
		case cfg.NoAck:
			ackTimeout = 0
		case ackTimeout <= 0:
			ackTimeout = DefaultAckTimeout
		}

		return device.OpenSerial(device.SerialOptions{
			Path:       cfg.Path,
			Baud:       baud,
			NumLEDs:    cfg.LEDs,
			AckTimeout: ackTimeout,
		}, logger)

	case SPIDevice:
		return device.OpenNRZ(device.NRZOptions{
			Port:    cfg.Port,
			NumLEDs: cfg.LEDs,
			Freq:    physic.Frequency(cfg.Freq) * physic.Hertz,
		})

	case NullDevice:
		return device.NewNull(cfg.LEDs, logger), nil

	default:
		return nil, errors.Errorf("unknown device kind %q", cfg.Kind)
	}
}
