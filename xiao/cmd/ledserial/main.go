// Command ledserial is the firmware for a Seeed XIAO RP2040 driving a
// WS2812 strip on behalf of the ttglow daemon. Build it with TinyGo:
//
//	tinygo flash -target xiao-rp2040 ./cmd/ledserial
package main

import "machine"

// stripPin is the data pin of the strip, labelled D10 on the board.
const stripPin = machine.D10

func main() {
	NewDevice(machine.Serial, stripPin).Run()
}
