package device

import (
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/host/v3"
)

// DefaultNRZFrequency is the data rate of WS2812-style strips.
const DefaultNRZFrequency = 800 * physic.KiloHertz

// NRZOptions configures a strip wired directly to an SPI port.
type NRZOptions struct {
	// Port is the SPI port name, e.g. "/dev/spidev0.0" or "SPI0.0". Empty
	// selects the first port available.
	Port string
	// NumLEDs is the number of LEDs on the strip.
	NumLEDs int
	// Freq is the NRZ data rate. Zero selects DefaultNRZFrequency.
	Freq physic.Frequency
}

// NRZ is a WS2812-style strip driven over SPI.
type NRZ struct {
	port    spi.PortCloser
	dev     *nrzled.Dev
	numLEDs int
}

// OpenNRZ initializes the host drivers and opens the SPI port.
func OpenNRZ(opts NRZOptions) (*NRZ, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize periph host")
	}

	port, err := spireg.Open(opts.Port)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open SPI port %q", opts.Port)
	}

	freq := opts.Freq
	if freq == 0 {
		freq = DefaultNRZFrequency
	}

	d, err := NewNRZ(port, opts.NumLEDs, freq)
	if err != nil {
		port.Close()
		return nil, err
	}
	return d, nil
}

// NewNRZ creates a strip on an opened SPI port. The NRZ takes ownership of
// port.
func NewNRZ(port spi.PortCloser, numLEDs int, freq physic.Frequency) (*NRZ, error) {
	dev, err := nrzled.NewSPI(port, &nrzled.Opts{
		NumPixels: numLEDs,
		Channels:  3,
		Freq:      freq,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create NRZ strip")
	}

	return &NRZ{port: port, dev: dev, numLEDs: numLEDs}, nil
}

func (d *NRZ) NumLEDs() int { return d.numLEDs }

func (d *NRZ) SetLighting(pix []uint8) error {
	if err := checkFrame(pix, d.numLEDs); err != nil {
		return err
	}
	if _, err := d.dev.Write(pix); err != nil {
		return errors.Wrap(err, "failed to write NRZ frame")
	}
	return nil
}

// Close turns the strip off and releases the port.
func (d *NRZ) Close() error {
	if err := d.dev.Halt(); err != nil {
		d.port.Close()
		return errors.Wrap(err, "failed to halt NRZ strip")
	}
	return d.port.Close()
}
