package main

import (
	"machine"

	"tinygo.org/x/drivers/ws2812"
)

// statusLED is the RGB LED soldered on the XIAO RP2040. It is lit while the
// firmware waits for a packet.
//
// https://wiki.seeedstudio.com/XIAO-RP2040-with-Arduino/
var statusLED = struct {
	power machine.Pin
	data  machine.Pin
	dev   ws2812.Device
	ready bool
}{
	power: machine.GPIO11,
	data:  machine.GPIO12,
}

func initStatusLED() {
	if statusLED.ready {
		return
	}

	statusLED.power.Configure(machine.PinConfig{Mode: machine.PinOutput})
	statusLED.power.Low()

	statusLED.data.Configure(machine.PinConfig{Mode: machine.PinOutput})
	statusLED.dev = ws2812.New(statusLED.data)
	statusLED.ready = true
}

// statusLEDOn lights the status LED. The on-board LED takes GRB.
func statusLEDOn(r, g, b uint8) {
	initStatusLED()
	statusLED.power.High()
	writeLEDGRB(statusLED.dev, g, r, b)
}

func statusLEDOff() {
	initStatusLED()
	statusLED.power.Low()
}
