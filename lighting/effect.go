// Package lighting computes LED colors and drives them onto devices.
//
// An Effect generates colors, a Controller turns an Effect's colors into
// brightness-scaled frames and a Manager pushes frames to every attached
// Device from a single background loop.
package lighting

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"libdb.so/ttglow/internal/hue"
	"libdb.so/ttglow/internal/led"
	"libdb.so/ttglow/internal/sensors"
)

// Kind identifies an effect variant.
type Kind string

const (
	KindStatic              Kind = "static"
	KindAlternating         Kind = "alternating"
	KindRGBSpectrum         Kind = "rgb_spectrum"
	KindSpinningRGBSpectrum Kind = "spinning_rgb_spectrum"
	KindTemperature         Kind = "temperature"
)

// Kinds lists every known effect kind.
var Kinds = []Kind{
	KindStatic,
	KindAlternating,
	KindRGBSpectrum,
	KindSpinningRGBSpectrum,
	KindTemperature,
}

// HueFunc maps a compass angle to a color. It must treat angles periodically
// with a period of 360.
type HueFunc func(angle float64) led.RGBColor

func (f HueFunc) orDefault() HueFunc {
	if f == nil {
		return hue.Compass
	}
	return f
}

// Effect is a stateful generator of LED colors. The set of implementations is
// closed: *Static, *Alternating, *RGBSpectrum, *SpinningRGBSpectrum and
// *Temperature.
//
// An Effect is not safe for concurrent use; the Controller owning it
// serializes all calls.
type Effect interface {
	// Kind returns the effect's kind.
	Kind() Kind
	// BeginRound is called once per loop iteration before any device is
	// processed.
	BeginRound(ctx context.Context) error
	// BeginDevice is called once per device before its colors are requested.
	BeginDevice()
	// Next returns the color of the next LED on the current device.
	Next() led.RGBColor

	effect()
}

type noRound struct{}

func (noRound) BeginRound(context.Context) error { return nil }

type noDevice struct{}

func (noDevice) BeginDevice() {}

// Static shows one fixed color on every LED.
type Static struct {
	noRound
	noDevice
	color led.RGBColor
}

// NewStatic creates a Static effect from an (R,G,B) color.
func NewStatic(color led.RGBColor) *Static {
	return &Static{color: color}
}

func (e *Static) Kind() Kind { return KindStatic }
func (e *Static) effect()    {}

// Next returns the color in (G,R,B) order.
func (e *Static) Next() led.RGBColor {
	return e.color.Swap12()
}

// Alternating alternates between two colors on every LED. The alternation
// carries over device and round boundaries.
type Alternating struct {
	noRound
	noDevice
	even led.RGBColor
	odd  led.RGBColor
	flip bool
}

// NewAlternating creates an Alternating effect from two (R,G,B) colors. The
// first LED gets the odd color.
func NewAlternating(even, odd led.RGBColor) *Alternating {
	return &Alternating{even: even, odd: odd, flip: true}
}

func (e *Alternating) Kind() Kind { return KindAlternating }
func (e *Alternating) effect()    {}

// Next returns the next color in (G,R,B) order.
func (e *Alternating) Next() led.RGBColor {
	c := e.even
	if e.flip {
		c = e.odd
	}
	e.flip = !e.flip
	return c.Swap12()
}

// spectrumStep is the angle between two neighboring LEDs of a spectrum.
const spectrumStep = 360 / 12

// RGBSpectrum spreads the hue wheel over every device, one step of 30 degrees
// per LED, starting at 30 degrees.
type RGBSpectrum struct {
	noRound
	table [360]led.RGBColor
	count int
}

// NewRGBSpectrum creates an RGBSpectrum effect. A nil hue function selects
// hue.Compass.
func NewRGBSpectrum(hueFn HueFunc) *RGBSpectrum {
	hueFn = hueFn.orDefault()

	e := &RGBSpectrum{}
	for angle := range e.table {
		e.table[angle] = hueFn(float64(angle))
	}
	return e
}

func (e *RGBSpectrum) Kind() Kind { return KindRGBSpectrum }
func (e *RGBSpectrum) effect()    {}

func (e *RGBSpectrum) BeginDevice() { e.count = 0 }

// Next returns the color of the next LED. Devices longer than 12 LEDs wrap
// around the wheel.
func (e *RGBSpectrum) Next() led.RGBColor {
	e.count++
	return e.table[(spectrumStep*e.count)%360]
}

// SpinningRGBSpectrum is an RGBSpectrum that rotates by one LED every round.
type SpinningRGBSpectrum struct {
	hue      HueFunc
	count    int
	rotation int
}

// NewSpinningRGBSpectrum creates a SpinningRGBSpectrum effect. A nil hue
// function selects hue.Compass.
func NewSpinningRGBSpectrum(hueFn HueFunc) *SpinningRGBSpectrum {
	return &SpinningRGBSpectrum{hue: hueFn.orDefault()}
}

func (e *SpinningRGBSpectrum) Kind() Kind { return KindSpinningRGBSpectrum }
func (e *SpinningRGBSpectrum) effect()    {}

// BeginRound advances the rotation. It runs 1 through 12 and then starts over
// at 1.
func (e *SpinningRGBSpectrum) BeginRound(context.Context) error {
	if e.rotation > 11 {
		e.rotation = 0
	}
	e.rotation++
	return nil
}

func (e *SpinningRGBSpectrum) BeginDevice() { e.count = 0 }

func (e *SpinningRGBSpectrum) Next() led.RGBColor {
	e.count++
	return e.hue(float64(spectrumStep*e.count + spectrumStep*e.rotation))
}

// Rotation returns the current rotation step.
func (e *SpinningRGBSpectrum) Rotation() int { return e.rotation }

// Compass angles the Temperature effect maps its thresholds to.
const (
	ColdAngle   = 240.0
	TargetAngle = 120.0
	HotAngle    = 0.0
)

// Thresholds are the calibration temperatures of a Temperature effect, in
// degrees Celsius.
type Thresholds struct {
	Cold   float64
	Target float64
	Hot    float64
}

// DefaultThresholds are used when a temperature effect is configured without
// thresholds.
var DefaultThresholds = Thresholds{Cold: 20, Target: 30, Hot: 60}

// Validate checks that Cold <= Target <= Hot.
func (t Thresholds) Validate() error {
	if t.Cold > t.Target || t.Target > t.Hot {
		return fmt.Errorf("thresholds must satisfy cold <= target <= hot, got %v/%v/%v",
			t.Cold, t.Target, t.Hot)
	}
	return nil
}

// Angle maps a temperature onto the compass: blue when cold, green on target
// and red when hot, interpolating linearly in between.
func (t Thresholds) Angle(cur float64) float64 {
	switch {
	case cur <= t.Cold:
		return ColdAngle
	case cur < t.Target:
		return TargetAngle + (ColdAngle-TargetAngle)*(t.Target-cur)/(t.Target-t.Cold)
	case cur == t.Target:
		return TargetAngle
	case cur > t.Hot:
		return HotAngle
	default:
		return HotAngle + (TargetAngle-HotAngle)*(t.Hot-cur)/(t.Hot-t.Target)
	}
}

// Temperature colors every LED by the reading of a temperature sensor. The
// sensor is read once per round.
type Temperature struct {
	noDevice
	sensor     string
	thresholds Thresholds
	reader     sensors.Reader
	hue        HueFunc

	current float64
	angle   float64
}

// NewTemperature creates a Temperature effect reading the named sensor. A nil
// hue function selects hue.Compass.
func NewTemperature(sensor string, t Thresholds, reader sensors.Reader, hueFn HueFunc) (*Temperature, error) {
	if sensor == "" {
		return nil, errors.New("temperature effect needs a sensor name")
	}
	if reader == nil {
		return nil, errors.New("temperature effect needs a sensor reader")
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	return &Temperature{
		sensor:     sensor,
		thresholds: t,
		reader:     reader,
		hue:        hueFn.orDefault(),
	}, nil
}

func (e *Temperature) Kind() Kind { return KindTemperature }
func (e *Temperature) effect()    {}

// BeginRound samples the sensor and recomputes the angle. On failure the
// previous angle is kept and the error is returned.
func (e *Temperature) BeginRound(ctx context.Context) error {
	readings, err := e.reader.Read(ctx, e.sensor)
	if err == nil && len(readings) == 0 {
		err = errors.Wrapf(sensors.ErrNotFound, "no readings for %q", e.sensor)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to read sensor %q", e.sensor)
	}

	e.current = readings[0].Current
	e.angle = e.thresholds.Angle(e.current)

	temperatureCelsius.WithLabelValues(e.sensor).Set(e.current)
	temperatureAngle.WithLabelValues(e.sensor).Set(e.angle)
	return nil
}

func (e *Temperature) Next() led.RGBColor {
	return e.hue(e.angle)
}

// Sensor returns the name of the sensor being read.
func (e *Temperature) Sensor() string { return e.sensor }

// Reading returns the last temperature read and the angle computed from it.
func (e *Temperature) Reading() (current, angle float64) {
	return e.current, e.angle
}
