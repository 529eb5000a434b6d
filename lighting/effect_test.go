package lighting

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"libdb.so/ttglow/internal/hue"
	"libdb.so/ttglow/internal/led"
	"libdb.so/ttglow/internal/sensors"
)

// angleHue encodes the angle it was called with into the first two channels
// so tests can tell which angle produced a color.
func angleHue(angle float64) led.RGBColor {
	a := int(hue.Normalize(angle))
	return led.RGB(uint8(a/256), uint8(a%256), 0)
}

func decodeAngle(c led.RGBColor) int {
	return int(c[0])*256 + int(c[1])
}

// recordingHue records every angle it is called with.
type recordingHue struct {
	angles []float64
}

func (h *recordingHue) fn(angle float64) led.RGBColor {
	h.angles = append(h.angles, angle)
	return hue.Compass(angle)
}

func TestStaticSwapsChannels(t *testing.T) {
	e := NewStatic(led.RGB(255, 10, 20))
	want := led.RGB(10, 255, 20)

	for round := 0; round < 3; round++ {
		require.NoError(t, e.BeginRound(context.Background()))
		e.BeginDevice()
		for i := 0; i < 20; i++ {
			assert.Equal(t, want, e.Next())
		}
	}
	assert.Equal(t, KindStatic, e.Kind())
}

func TestAlternatingIgnoresBoundaries(t *testing.T) {
	even := led.RGB(1, 2, 3)
	odd := led.RGB(4, 5, 6)
	e := NewAlternating(even, odd)

	for i := 0; i < 30; i++ {
		// Boundaries at arbitrary points must not reset the alternation.
		if i%7 == 0 {
			require.NoError(t, e.BeginRound(context.Background()))
		}
		if i%3 == 0 {
			e.BeginDevice()
		}

		want := odd.Swap12()
		if i%2 == 1 {
			want = even.Swap12()
		}
		assert.Equal(t, want, e.Next(), "call %d", i)
	}
}

func TestRGBSpectrumAngles(t *testing.T) {
	e := NewRGBSpectrum(angleHue)
	want := []int{30, 60, 90, 120, 150, 180, 210, 240, 270, 300, 330, 0}

	for device := 0; device < 2; device++ {
		e.BeginDevice()

		got := make([]int, 12)
		for i := range got {
			got[i] = decodeAngle(e.Next())
		}
		assert.Equal(t, want, got, "device %d", device)
	}
}

func TestRGBSpectrumWrapsLongStrips(t *testing.T) {
	e := NewRGBSpectrum(angleHue)
	e.BeginDevice()

	for i := 0; i < 12; i++ {
		e.Next()
	}
	assert.Equal(t, 30, decodeAngle(e.Next()))
	assert.Equal(t, 60, decodeAngle(e.Next()))
}

func TestRGBSpectrumUsesTable(t *testing.T) {
	h := &recordingHue{}
	e := NewRGBSpectrum(h.fn)
	assert.Len(t, h.angles, 360)

	e.BeginDevice()
	assert.Equal(t, hue.Compass(30), e.Next())
	assert.Len(t, h.angles, 360, "Next must not call the hue function")
}

func TestSpinningRGBSpectrumRotation(t *testing.T) {
	e := NewSpinningRGBSpectrum(nil)

	var got []int
	for i := 0; i < 26; i++ {
		require.NoError(t, e.BeginRound(context.Background()))
		got = append(got, e.Rotation())
	}

	want := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 1, 2}
	assert.Equal(t, want, got)
}

func TestSpinningRGBSpectrumAngles(t *testing.T) {
	h := &recordingHue{}
	e := NewSpinningRGBSpectrum(h.fn)

	require.NoError(t, e.BeginRound(context.Background())) // rotation 1
	e.BeginDevice()
	for i := 0; i < 3; i++ {
		e.Next()
	}
	e.BeginDevice()
	e.Next()

	require.NoError(t, e.BeginRound(context.Background())) // rotation 2
	e.BeginDevice()
	e.Next()

	assert.Equal(t, []float64{60, 90, 120, 60, 90}, h.angles)
}

func TestThresholdsAngle(t *testing.T) {
	th := Thresholds{Cold: 20, Target: 30, Hot: 60}

	tests := []struct {
		name string
		cur  float64
		want float64
	}{
		{"below cold", 10, ColdAngle},
		{"cold", 20, ColdAngle},
		{"between cold and target", 25, 180},
		{"target", 30, TargetAngle},
		{"between target and hot", 45, 60},
		{"hot", 60, HotAngle},
		{"above hot", 61, HotAngle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, th.Angle(tt.cur), 1e-9)
		})
	}
}

func TestThresholdsValidate(t *testing.T) {
	assert.NoError(t, DefaultThresholds.Validate())
	assert.NoError(t, Thresholds{Cold: 30, Target: 30, Hot: 30}.Validate())
	assert.Error(t, Thresholds{Cold: 40, Target: 30, Hot: 60}.Validate())
	assert.Error(t, Thresholds{Cold: 20, Target: 70, Hot: 60}.Validate())
}

func TestTemperature(t *testing.T) {
	temp := 25.0
	var readErr error
	reader := sensors.ReaderFunc(func(_ context.Context, name string) ([]sensors.Reading, error) {
		if readErr != nil {
			return nil, readErr
		}
		return []sensors.Reading{{Label: name, Current: temp}, {Current: 99}}, nil
	})

	e, err := NewTemperature("test_sensor", DefaultThresholds, reader, angleHue)
	require.NoError(t, err)

	require.NoError(t, e.BeginRound(context.Background()))
	cur, angle := e.Reading()
	assert.Equal(t, 25.0, cur)
	assert.InDelta(t, 180.0, angle, 1e-9)
	assert.Equal(t, 180, decodeAngle(e.Next()))
	assert.Equal(t, 180.0, testutil.ToFloat64(temperatureAngle.WithLabelValues("test_sensor")))
	assert.Equal(t, 25.0, testutil.ToFloat64(temperatureCelsius.WithLabelValues("test_sensor")))

	// A failed read keeps the last angle.
	temp = 70
	readErr = errors.Wrap(sensors.ErrNotFound, "gone")
	err = e.BeginRound(context.Background())
	assert.True(t, errors.Is(err, sensors.ErrNotFound), "got %v", err)
	assert.Equal(t, 180, decodeAngle(e.Next()))

	readErr = nil
	require.NoError(t, e.BeginRound(context.Background()))
	assert.Equal(t, 0, decodeAngle(e.Next()))
}

func TestTemperatureNoReadings(t *testing.T) {
	reader := sensors.ReaderFunc(func(context.Context, string) ([]sensors.Reading, error) {
		return nil, nil
	})

	e, err := NewTemperature("empty", DefaultThresholds, reader, nil)
	require.NoError(t, err)

	err = e.BeginRound(context.Background())
	assert.True(t, errors.Is(err, sensors.ErrNotFound), "got %v", err)
}

func TestNewTemperatureInvalid(t *testing.T) {
	reader := sensors.Static{"cpu": 30}

	_, err := NewTemperature("", DefaultThresholds, reader, nil)
	assert.Error(t, err)

	_, err = NewTemperature("cpu", DefaultThresholds, nil, nil)
	assert.Error(t, err)

	_, err = NewTemperature("cpu", Thresholds{Cold: 50, Target: 30, Hot: 60}, reader, nil)
	assert.Error(t, err)
}
