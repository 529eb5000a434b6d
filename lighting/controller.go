package lighting

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"libdb.so/ttglow/internal/led"
)

const (
	// DefaultBrightness is the brightness of a new Controller, in percent.
	DefaultBrightness = 100
	// MaxBrightness is the highest brightness. Values above 100 overdrive
	// the effect's colors, saturating at full channel intensity.
	MaxBrightness = 300
	// DefaultRefreshInterval is the refresh interval of a new Controller.
	DefaultRefreshInterval = 100 * time.Millisecond
)

// Device is an LED strip that frames can be written to.
type Device interface {
	// NumLEDs returns the number of LEDs on the device.
	NumLEDs() int
	// SetLighting writes a frame to the device. The frame holds three channel
	// values per LED.
	SetLighting(pix []uint8) error
}

// Controller binds an Effect to brightness and refresh settings and builds
// per-device frames from it. It is safe for concurrent use.
type Controller struct {
	// effectMu serializes calls into the effect, which may block on a sensor
	// read. mu only guards the settings, so setters never wait on the effect.
	effectMu sync.Mutex
	effect   Effect

	mu         sync.Mutex
	brightness int
	interval   time.Duration
}

// NewController creates a Controller around e with default settings.
func NewController(e Effect) (*Controller, error) {
	if e == nil {
		return nil, errors.New("controller needs an effect")
	}

	return &Controller{
		effect:     e,
		brightness: DefaultBrightness,
		interval:   DefaultRefreshInterval,
	}, nil
}

// Effect returns the controller's effect.
func (c *Controller) Effect() Effect {
	return c.effect
}

// Brightness returns the brightness in percent.
func (c *Controller) Brightness() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.brightness
}

// SetBrightness sets the brightness in percent, clamped to [0, MaxBrightness].
func (c *Controller) SetBrightness(level int) {
	level = min(max(level, 0), MaxBrightness)

	c.mu.Lock()
	c.brightness = level
	c.mu.Unlock()
}

// RefreshInterval returns the time between two rounds.
func (c *Controller) RefreshInterval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval
}

// SetRefreshInterval sets the time between two rounds. Non-positive durations
// are ignored.
func (c *Controller) SetRefreshInterval(d time.Duration) {
	if d <= 0 {
		return
	}

	c.mu.Lock()
	c.interval = d
	c.mu.Unlock()
}

// BeginRound starts a new round on the effect.
func (c *Controller) BeginRound(ctx context.Context) error {
	c.effectMu.Lock()
	defer c.effectMu.Unlock()
	return c.effect.BeginRound(ctx)
}

// BuildFrame computes the next frame for d. It returns the frame along with
// the current refresh interval.
func (c *Controller) BuildFrame(d Device) ([]uint8, time.Duration) {
	c.mu.Lock()
	brightness, interval := c.brightness, c.interval
	c.mu.Unlock()

	c.effectMu.Lock()
	defer c.effectMu.Unlock()

	n := max(d.NumLEDs(), 0)
	pix := make([]uint8, 0, 3*n)

	c.effect.BeginDevice()
	for i := 0; i < n; i++ {
		color := c.effect.Next()
		for _, ch := range color {
			pix = append(pix, scale(ch, brightness))
		}
	}

	return pix, interval
}

// scale scales ch by brightness percent, rounding down and saturating at 255.
func scale(ch uint8, brightness int) uint8 {
	if brightness == 0 {
		return 0
	}
	return led.Clamp(int(ch) * brightness / 100)
}
