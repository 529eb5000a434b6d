// Package sensors reads hardware temperature sensors.
package sensors

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/host"
)

// ErrNotFound is returned when no reading exists for a sensor name.
var ErrNotFound = errors.New("sensor not found")

// Reading is a single temperature reading in degrees Celsius.
type Reading struct {
	// Label is the full sensor key the reading was taken from.
	Label    string
	Current  float64
	High     float64
	Critical float64
}

// Reader reads temperatures for a named sensor. The first reading is the
// primary one, e.g. the package temperature of a CPU.
type Reader interface {
	Read(ctx context.Context, name string) ([]Reading, error)
}

// ReaderFunc adapts a function into a Reader.
type ReaderFunc func(ctx context.Context, name string) ([]Reading, error)

// Read implements Reader.
func (f ReaderFunc) Read(ctx context.Context, name string) ([]Reading, error) {
	return f(ctx, name)
}

// Host reads temperatures from the host's hwmon sensors.
type Host struct {
	// temperatures is swapped out in tests.
	temperatures func(ctx context.Context) ([]host.TemperatureStat, error)
}

var _ Reader = (*Host)(nil)

// NewHost creates a Reader backed by the host sensors.
func NewHost() *Host {
	return &Host{temperatures: host.SensorsTemperaturesWithContext}
}

// Read implements Reader. A sensor matches if its key equals name or starts
// with name followed by an underscore, so "coretemp" matches every coretemp
// input in the order the host reports them.
func (h *Host) Read(ctx context.Context, name string) ([]Reading, error) {
	stats, err := h.temperatures(ctx)
	if err != nil && len(stats) == 0 {
		// gopsutil returns partial results alongside warnings; only fail
		// when nothing was read at all.
		return nil, errors.Wrap(err, "failed to read host temperatures")
	}

	var readings []Reading
	for _, s := range stats {
		if s.SensorKey != name && !strings.HasPrefix(s.SensorKey, name+"_") {
			continue
		}
		readings = append(readings, Reading{
			Label:    s.SensorKey,
			Current:  s.Temperature,
			High:     s.High,
			Critical: s.Critical,
		})
	}

	if len(readings) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "no readings for %q", name)
	}

	return readings, nil
}

// Static is a Reader that always returns the same readings. It is mostly
// useful for dry runs and tests.
type Static map[string]float64

// Read implements Reader.
func (s Static) Read(ctx context.Context, name string) ([]Reading, error) {
	v, ok := s[name]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "no readings for %q", name)
	}
	return []Reading{{Label: name, Current: v}}, nil
}
