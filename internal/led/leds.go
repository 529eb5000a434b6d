package led

import "io"

// LEDs describes a strip of LEDs. It is a preallocated slice of RGBColor.
type LEDs []RGBColor

// NewLEDs creates a new strip of LEDs. Colors are initialized to black
// (off).
func NewLEDs(numLEDs int) LEDs {
	return make(LEDs, numLEDs)
}

// FromPixels copies a flat channel sequence back into a strip. Trailing bytes
// that do not form a whole LED are ignored.
func FromPixels(pix []uint8) LEDs {
	l := make(LEDs, len(pix)/3)
	for i := range l {
		copy(l[i][:], pix[3*i:])
	}
	return l
}

// WriteTo implements io.WriterTo. It writes the LED strip to the given writer
// as a series of RGBColor values.
func (l LEDs) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(l.AsPixels())
	return int64(n), err
}

// AsPixels returns the LED strip as a freshly allocated slice of uint8
// values. Each LED is represented by three values, one for each channel.
func (l LEDs) AsPixels() []uint8 {
	pix := make([]uint8, 0, 3*len(l))
	for _, c := range l {
		pix = append(pix, c[:]...)
	}
	return pix
}

// SetRange sets the color of the LEDs in the given range.
func (l LEDs) SetRange(start, end int, c RGBColor) {
	for i := start; i < end; i++ {
		l[i] = c
	}
}
