package ttglow

import (
	"encoding"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"libdb.so/ttglow/internal/sensors"
	"libdb.so/ttglow/lighting"
)

// Config is the configuration for the ttglow daemon.
type Config struct {
	// Brightness is the brightness in percent. Values outside 0 to 300 are
	// clamped. Defaults to 100.
	Brightness *int `toml:"brightness,omitempty"`
	// RefreshInterval is the time between two frames. Non-positive values
	// are ignored. Defaults to 100ms.
	RefreshInterval TOMLDuration `toml:"refresh_interval,omitempty"`
	// Effect is the effect to show on every device.
	Effect lighting.EffectConfig `toml:"effect"`
	// Devices is the list of LED strips to drive, in order.
	Devices []DeviceConfig `toml:"device"`
}

// DeviceKind is the kind of LED strip.
type DeviceKind string

const (
	// SerialDevice is a strip behind a microcontroller on a serial port,
	// speaking the ledserial protocol.
	SerialDevice DeviceKind = "serial"
	// SPIDevice is a WS2812-style strip wired to an SPI port.
	SPIDevice DeviceKind = "spi"
	// NullDevice only logs frames.
	NullDevice DeviceKind = "null"
)

// DefaultBaud is the baud rate used for serial devices that do not set one.
const DefaultBaud = 115200

// DefaultAckTimeout is how long a serial device waits for a frame to be
// acknowledged.
const DefaultAckTimeout = time.Second

// DeviceConfig is the configuration for one LED strip.
type DeviceConfig struct {
	// Kind is the kind of strip.
	Kind DeviceKind `toml:"kind"`
	// LEDs is the number of LEDs on the strip.
	LEDs int `toml:"leds"`

	// Path is the path to the serial device, usually /dev/ttyUSB0 or
	// /dev/ttyACM0.
	Path string `toml:"path,omitempty"`
	// Baud is the baud rate for the serial connection.
	Baud int `toml:"baud,omitempty"`
	// AckTimeout is how long to wait for the controller to acknowledge a
	// frame. Defaults to 1s.
	AckTimeout TOMLDuration `toml:"ack_timeout,omitempty"`
	// NoAck disables waiting for acknowledgements.
	NoAck bool `toml:"no_ack,omitempty"`

	// Port is the SPI port name. Empty selects the first port.
	Port string `toml:"port,omitempty"`
	// Freq is the NRZ data rate in Hz. Defaults to 800kHz.
	Freq int `toml:"freq,omitempty"`
}

// Validate validates the device configuration.
func (d DeviceConfig) Validate() error {
	if d.LEDs < 1 || d.LEDs > 1<<16-1 {
		return fmt.Errorf("invalid number of LEDs %d", d.LEDs)
	}

	switch d.Kind {
	case SerialDevice:
		if d.Path == "" {
			return errors.New("serial device needs a path")
		}
	case SPIDevice:
		if d.Freq < 0 {
			return fmt.Errorf("invalid frequency %d", d.Freq)
		}
	case NullDevice:
	default:
		return fmt.Errorf("unknown device kind %q", d.Kind)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.Devices) == 0 {
		return errors.New("no devices configured")
	}

	for i, dev := range c.Devices {
		if err := dev.Validate(); err != nil {
			return errors.Wrapf(err, "device %d", i)
		}
	}

	// Build the effect once against a sensor reader that never reads, so
	// that bad effect parameters fail at startup rather than mid-loop.
	if _, err := lighting.NewEffect(c.Effect, lighting.EffectDeps{Sensors: sensors.Static{}}); err != nil {
		return errors.Wrap(err, "invalid effect")
	}

	return nil
}

// BrightnessLevel returns the configured brightness clamped to
// [0, lighting.MaxBrightness], or the default when unset.
func (c *Config) BrightnessLevel() int {
	if c.Brightness == nil {
		return lighting.DefaultBrightness
	}
	return min(max(*c.Brightness, 0), lighting.MaxBrightness)
}

// Interval returns the configured refresh interval. Non-positive values fall
// back to the default.
func (c *Config) Interval() time.Duration {
	if c.RefreshInterval <= 0 {
		return lighting.DefaultRefreshInterval
	}
	return time.Duration(c.RefreshInterval)
}

// NumLEDs returns the number of LEDs across all devices.
func (c *Config) NumLEDs() int {
	var n int
	for _, dev := range c.Devices {
		n += dev.LEDs
	}
	return n
}

// TOMLDuration is a duration that can be parsed from TOML.
type TOMLDuration time.Duration

var (
	_ encoding.TextUnmarshaler = (*TOMLDuration)(nil)
	_ encoding.TextMarshaler   = (*TOMLDuration)(nil)
)

func (d *TOMLDuration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = TOMLDuration(duration)
	return nil
}

func (d TOMLDuration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// ParseConfig parses a configuration from a reader.
func ParseConfig(r io.Reader) (*Config, error) {
	var config Config
	if err := toml.NewDecoder(r).Decode(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadConfig reads and parses the configuration file at path.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open config file")
	}
	defer f.Close()

	cfg, err := ParseConfig(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	return cfg, nil
}
