// Package led contains the color and strip primitives shared by effects and
// devices.
package led

import (
	"encoding"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

// RGBColor is a single LED color triple. The channel order is whatever the
// producer chose; devices receive the bytes as-is.
type RGBColor [3]uint8

var (
	_ encoding.TextUnmarshaler = (*RGBColor)(nil)
	_ encoding.TextMarshaler   = (*RGBColor)(nil)
)

// RGB creates a new RGBColor from its three channels.
func RGB(r, g, b uint8) RGBColor {
	return RGBColor{r, g, b}
}

// Swap12 returns the color with the first two channels swapped, turning an
// (R,G,B) triple into (G,R,B).
func (c RGBColor) Swap12() RGBColor {
	return RGBColor{c[1], c[0], c[2]}
}

// String returns the color in #rrggbb notation.
func (c RGBColor) String() string {
	return "#" + hex.EncodeToString(c[:])
}

// ParseRGBColor parses a color in #rrggbb or rrggbb notation.
func ParseRGBColor(s string) (RGBColor, error) {
	var c RGBColor

	digits := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(digits) != 6 {
		return c, errors.Errorf("invalid color %q: expected 6 hex digits", s)
	}

	if _, err := hex.Decode(c[:], []byte(digits)); err != nil {
		return c, errors.Wrapf(err, "invalid color %q", s)
	}

	return c, nil
}

func (c *RGBColor) UnmarshalText(text []byte) error {
	v, err := ParseRGBColor(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

func (c RGBColor) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Clamp clamps v into a channel value.
func Clamp(v int) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return uint8(v)
	}
}
