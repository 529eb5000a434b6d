// Package hue maps compass angles on the hue wheel to colors.
package hue

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"libdb.so/ttglow/internal/led"
)

// Normalize wraps angle into [0, 360).
func Normalize(angle float64) float64 {
	a := math.Mod(angle, 360)
	if a < 0 {
		a += 360
	}
	return a
}

// Compass returns the fully saturated, full value color at the given compass
// angle. 0 is red, 120 is green and 240 is blue. Angles outside [0, 360) wrap.
func Compass(angle float64) led.RGBColor {
	r, g, b := colorful.Hsv(Normalize(angle), 1, 1).RGB255()
	return led.RGB(r, g, b)
}
