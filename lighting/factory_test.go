package lighting

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"libdb.so/ttglow/internal/led"
	"libdb.so/ttglow/internal/sensors"
)

func TestNewEffect(t *testing.T) {
	deps := EffectDeps{Sensors: sensors.Static{"cpu": 40}}

	tests := []struct {
		cfg  EffectConfig
		want Kind
	}{
		{EffectConfig{Type: KindStatic, Color: led.RGB(1, 2, 3)}, KindStatic},
		{EffectConfig{Type: KindAlternating}, KindAlternating},
		{EffectConfig{Type: KindRGBSpectrum}, KindRGBSpectrum},
		{EffectConfig{Type: KindSpinningRGBSpectrum}, KindSpinningRGBSpectrum},
		{EffectConfig{Type: KindTemperature, Sensor: "cpu"}, KindTemperature},
	}

	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			e, err := NewEffect(tt.cfg, deps)
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.Kind())
		})
	}
}

func TestNewEffectErrors(t *testing.T) {
	_, err := NewEffect(EffectConfig{}, EffectDeps{})
	assert.True(t, errors.Is(err, ErrMissingEffectType), "got %v", err)

	_, err = NewEffect(EffectConfig{Type: "rainbow_puke"}, EffectDeps{})
	assert.True(t, errors.Is(err, ErrUnknownEffect), "got %v", err)

	_, err = NewEffect(EffectConfig{Type: KindTemperature}, EffectDeps{Sensors: sensors.Static{}})
	assert.Error(t, err)

	_, err = NewEffect(EffectConfig{Type: KindTemperature, Sensor: "cpu", Cold: intp(50)}, EffectDeps{Sensors: sensors.Static{}})
	assert.Error(t, err)
}

func TestEffectConfigThresholds(t *testing.T) {
	assert.Equal(t, DefaultThresholds, EffectConfig{}.Thresholds())
	assert.Equal(t,
		Thresholds{Cold: 25, Target: 30, Hot: 80},
		EffectConfig{Cold: intp(25), Hot: intp(80)}.Thresholds())
	assert.Equal(t,
		Thresholds{Cold: 0, Target: 30, Hot: 60},
		EffectConfig{Cold: intp(0)}.Thresholds(),
		"an explicit zero threshold is kept")
}

func TestNewControllerFromConfig(t *testing.T) {
	c, err := NewControllerFromConfig(EffectConfig{Type: KindStatic, Color: led.RGB(9, 8, 7)}, EffectDeps{})
	require.NoError(t, err)
	assert.Equal(t, DefaultBrightness, c.Brightness())

	frame, _ := c.BuildFrame(newFakeDevice(1))
	assert.Equal(t, []uint8{8, 9, 7}, frame)

	_, err = NewControllerFromConfig(EffectConfig{Type: "nope"}, EffectDeps{})
	assert.True(t, errors.Is(err, ErrUnknownEffect))
}

func TestParseEffectArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    EffectConfig
		wantErr error
	}{
		{
			name: "static",
			args: []string{"static", "#ff0000"},
			want: EffectConfig{Type: KindStatic, Color: led.RGB(255, 0, 0)},
		},
		{
			name: "alternating",
			args: []string{"alternating", "#ff0000", "0000ff"},
			want: EffectConfig{Type: KindAlternating, Even: led.RGB(255, 0, 0), Odd: led.RGB(0, 0, 255)},
		},
		{
			name: "spectrum",
			args: []string{"rgb_spectrum"},
			want: EffectConfig{Type: KindRGBSpectrum},
		},
		{
			name: "spinning spectrum",
			args: []string{"spinning_rgb_spectrum"},
			want: EffectConfig{Type: KindSpinningRGBSpectrum},
		},
		{
			name: "temperature",
			args: []string{"temperature", "k10temp"},
			want: EffectConfig{Type: KindTemperature, Sensor: "k10temp"},
		},
		{
			name: "temperature with thresholds",
			args: []string{"temperature", "k10temp", "70", "40", "25"},
			want: EffectConfig{Type: KindTemperature, Sensor: "k10temp", Hot: intp(70), Target: intp(40), Cold: intp(25)},
		},
		{
			name:    "missing type",
			args:    nil,
			wantErr: ErrMissingEffectType,
		},
		{
			name:    "unknown type",
			args:    []string{"strobe"},
			wantErr: ErrUnknownEffect,
		},
		{
			name: "static without color",
			args: []string{"static"},
		},
		{
			name: "spectrum with parameters",
			args: []string{"rgb_spectrum", "#ffffff"},
		},
		{
			name: "bad threshold",
			args: []string{"temperature", "cpu", "hot"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEffectArgs(tt.args...)
			if tt.want.Type == "" {
				require.Error(t, err)
				if tt.wantErr != nil {
					assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func intp(v int) *int { return &v }
