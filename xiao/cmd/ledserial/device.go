package main

import (
	"errors"
	"fmt"
	"machine"

	"libdb.so/ttglow/ledserial"
	"tinygo.org/x/drivers/ws2812"
)

// Device stores the current state of the device.
type Device struct {
	serial SerialReadWriter
	led    ws2812.Device

	numLEDs uint16
}

// NewDevice creates a new device.
func NewDevice(serial machine.Serialer, ledPin machine.Pin) *Device {
	ledPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	return &Device{
		serial: WrapSerial(serial),
		led:    ws2812.New(ledPin),
	}
}

// Run runs the device loop forever.
func (d *Device) Run() {
	defer func() {
		if v := recover(); v != nil {
			d.sendPacket(ledserial.PanicPacket{})
			panic(v)
		}
	}()

	for {
		p, err := d.readPacket()
		if err != nil {
			if !errors.Is(err, ledserial.ErrChecksum) {
				d.logError(err)
			}
			continue
		}

		if err := d.handlePacket(p); err != nil {
			d.logError(err)
		}
	}
}

func (d *Device) log(msg string) {
	d.sendPacket(ledserial.LogPacket{Message: msg})
}

func (d *Device) logError(err error) {
	d.sendPacket(ledserial.ErrorPacket{Message: err.Error()})
}

func (d *Device) sendPacket(p ledserial.OutgoingPacket) {
	ledserial.WriteOutgoingPacket(d.serial, p)
}

func (d *Device) readPacket() (ledserial.IncomingPacket, error) {
	statusLEDOn(255, 255, 255)

	p, err := ledserial.ReadIncomingPacket(d.serial, ledserial.ReadContext{
		NumLEDs: d.numLEDs,
	})

	statusLEDOff()
	return p, err
}

func (d *Device) handlePacket(p ledserial.IncomingPacket) error {
	switch p := p.(type) {
	case ledserial.InitializePacket:
		if p.NumLEDs < 1 {
			return fmt.Errorf("invalid number of LEDs: %d", p.NumLEDs)
		}
		d.numLEDs = p.NumLEDs
		d.clearLEDs(true)
		d.log(fmt.Sprintf("initialized %d LEDs", p.NumLEDs))

	case ledserial.ClearPacket:
		d.clearLEDs(false)

	case ledserial.SetPacket:
		if d.numLEDs == 0 {
			return errors.New("set before initialize")
		}
		d.led.Write(p.Pix)

	default:
		return fmt.Errorf("unknown packet type: %T", p)
	}

	d.sendPacket(ledserial.AckPacket{
		IncomingPacketType: p.Type(),
	})
	return nil
}

// clearLEDs turns every LED off. When signalReady is set, the first LED is
// lit red and the last one blue so that the strip length can be checked by
// eye.
func (d *Device) clearLEDs(signalReady bool) {
	for i := 0; i < int(d.numLEDs); i++ {
		switch {
		case signalReady && i == 0:
			writeLEDGRB(d.led, 0, 255, 0)
		case signalReady && i == int(d.numLEDs)-1:
			writeLEDGRB(d.led, 0, 0, 255)
		default:
			writeLEDGRB(d.led, 0, 0, 0)
		}
	}
}

func writeLEDGRB(led ws2812.Device, g, r, b uint8) {
	led.WriteByte(g)
	led.WriteByte(r)
	led.WriteByte(b)
}
