package device

import (
	"context"
	"log/slog"
	"sync/atomic"

	"libdb.so/ttglow/internal/led"
)

// Null is a strip that only logs the frames written to it. It is handy for
// trying out effects without hardware.
type Null struct {
	numLEDs int
	logger  *slog.Logger
	frames  atomic.Uint64
}

// NewNull creates a Null strip with numLEDs LEDs.
func NewNull(numLEDs int, logger *slog.Logger) *Null {
	return &Null{numLEDs: numLEDs, logger: logger}
}

func (d *Null) NumLEDs() int { return d.numLEDs }

func (d *Null) SetLighting(pix []uint8) error {
	if err := checkFrame(pix, d.numLEDs); err != nil {
		return err
	}

	n := d.frames.Add(1)
	if d.logger.Enabled(context.Background(), slog.LevelDebug) {
		leds := led.FromPixels(pix)
		colors := make([]string, len(leds))
		for i, c := range leds {
			colors[i] = c.String()
		}
		d.logger.Debug("frame", "n", n, "leds", colors)
	}
	return nil
}

// Frames returns the number of frames written.
func (d *Null) Frames() uint64 { return d.frames.Load() }

func (d *Null) Close() error { return nil }
