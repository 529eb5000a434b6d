package lighting

import (
	"strconv"

	"github.com/pkg/errors"
	"libdb.so/ttglow/internal/led"
	"libdb.so/ttglow/internal/sensors"
)

var (
	// ErrMissingEffectType is returned when an effect is configured without
	// a type.
	ErrMissingEffectType = errors.New("effect type missing")
	// ErrUnknownEffect is returned for an effect type that does not exist.
	ErrUnknownEffect = errors.New("unknown effect type")
)

// EffectConfig is the configuration of an effect. Only the fields relevant to
// Type are read.
type EffectConfig struct {
	// Type is the kind of effect.
	Type Kind `toml:"type"`

	// Color is the color of a static effect.
	Color led.RGBColor `toml:"color"`

	// Even and Odd are the two colors of an alternating effect.
	Even led.RGBColor `toml:"even"`
	Odd  led.RGBColor `toml:"odd"`

	// Sensor is the sensor a temperature effect reads, e.g. "coretemp" or
	// "k10temp".
	Sensor string `toml:"sensor"`
	// Cold, Target and Hot are the thresholds of a temperature effect in
	// degrees Celsius. Unset thresholds take the defaults 20, 30 and 60.
	Cold   *int `toml:"cold,omitempty"`
	Target *int `toml:"target,omitempty"`
	Hot    *int `toml:"hot,omitempty"`
}

// Thresholds returns the temperature thresholds with defaults filled in.
func (c EffectConfig) Thresholds() Thresholds {
	t := DefaultThresholds
	if c.Cold != nil {
		t.Cold = float64(*c.Cold)
	}
	if c.Target != nil {
		t.Target = float64(*c.Target)
	}
	if c.Hot != nil {
		t.Hot = float64(*c.Hot)
	}
	return t
}

// EffectDeps are the collaborators effects are built with.
type EffectDeps struct {
	// Sensors is read by temperature effects.
	Sensors sensors.Reader
	// Hue maps angles to colors. Nil selects hue.Compass.
	Hue HueFunc
}

// NewEffect builds the effect described by cfg. Unknown types are a
// configuration error and are reported as ErrUnknownEffect.
func NewEffect(cfg EffectConfig, deps EffectDeps) (Effect, error) {
	switch cfg.Type {
	case "":
		return nil, ErrMissingEffectType
	case KindStatic:
		return NewStatic(cfg.Color), nil
	case KindAlternating:
		return NewAlternating(cfg.Even, cfg.Odd), nil
	case KindRGBSpectrum:
		return NewRGBSpectrum(deps.Hue), nil
	case KindSpinningRGBSpectrum:
		return NewSpinningRGBSpectrum(deps.Hue), nil
	case KindTemperature:
		e, err := NewTemperature(cfg.Sensor, cfg.Thresholds(), deps.Sensors, deps.Hue)
		if err != nil {
			return nil, errors.Wrap(err, "invalid temperature effect")
		}
		return e, nil
	default:
		return nil, errors.Wrapf(ErrUnknownEffect, "%q", cfg.Type)
	}
}

// NewControllerFromConfig builds the effect described by cfg and wraps it in a
// new Controller.
func NewControllerFromConfig(cfg EffectConfig, deps EffectDeps) (*Controller, error) {
	e, err := NewEffect(cfg, deps)
	if err != nil {
		return nil, err
	}
	return NewController(e)
}

// ParseEffectArgs parses the positional form of an effect: the type followed
// by its parameters.
//
//	static #ff0000
//	alternating #ff0000 #0000ff
//	rgb_spectrum
//	spinning_rgb_spectrum
//	temperature coretemp [hot [target [cold]]]
func ParseEffectArgs(args ...string) (EffectConfig, error) {
	if len(args) == 0 || args[0] == "" {
		return EffectConfig{}, ErrMissingEffectType
	}

	cfg := EffectConfig{Type: Kind(args[0])}
	args = args[1:]

	var err error
	switch cfg.Type {
	case KindStatic:
		if err = wantArgs(args, 1, 1); err != nil {
			break
		}
		cfg.Color, err = led.ParseRGBColor(args[0])

	case KindAlternating:
		if err = wantArgs(args, 2, 2); err != nil {
			break
		}
		if cfg.Even, err = led.ParseRGBColor(args[0]); err != nil {
			break
		}
		cfg.Odd, err = led.ParseRGBColor(args[1])

	case KindRGBSpectrum, KindSpinningRGBSpectrum:
		err = wantArgs(args, 0, 0)

	case KindTemperature:
		if err = wantArgs(args, 1, 4); err != nil {
			break
		}
		cfg.Sensor = args[0]
		for i, dst := range []**int{&cfg.Hot, &cfg.Target, &cfg.Cold} {
			if i+1 >= len(args) {
				break
			}
			v, perr := strconv.Atoi(args[i+1])
			if perr != nil {
				err = errors.Wrapf(perr, "invalid threshold %q", args[i+1])
				break
			}
			*dst = &v
		}

	default:
		return EffectConfig{}, errors.Wrapf(ErrUnknownEffect, "%q", cfg.Type)
	}

	if err != nil {
		return EffectConfig{}, errors.Wrapf(err, "invalid %s effect", cfg.Type)
	}
	return cfg, nil
}

func wantArgs(args []string, lo, hi int) error {
	if len(args) < lo || len(args) > hi {
		if lo == hi {
			return errors.Errorf("expected %d parameters, got %d", lo, len(args))
		}
		return errors.Errorf("expected %d to %d parameters, got %d", lo, hi, len(args))
	}
	return nil
}
