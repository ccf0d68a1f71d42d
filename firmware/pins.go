package main

import "machine"

const (
	// Amplifier pins (HX711)
	PIN_HX711_DOUT  = machine.D2
	PIN_HX711_SCK   = machine.D3
	PIN_HX711_POWER = machine.D4 // Drives the amplifier supply switch

	// Front-panel buttons, active-low against the internal pull-ups
	PIN_TARE      = machine.D7
	PIN_CALIBRATE = machine.D8

	// HX711 timing
	SCK_PULSE_US       = 1  // SCK high/low time per bit, well under the 50us power-down limit
	POWER_DOWN_HOLD_US = 80 // SCK held high longer than 60us powers the HX711 down
	GAIN_PULSES        = 1  // Extra pulses after the 24 data bits: 1 = channel A, gain 128

	// Status output while no conversion is ready, so the host still sees the buttons
	STATUS_INTERVAL_MS = 50

	// Serial configuration
	// Line format: "ready,raw,tare_level,calibrate_level\n"
	// Example: "1,-8388608,1,1\n" = 15 bytes max per line
	// HX711 at 80 SPS: 80 lines/sec * 15 bytes/line = 1,200 bytes/sec
	// UART 8N1: 10 bits/byte = 12,000 baud minimum.
	// 115200 provides ~9.6x headroom
	UART_BAUD_RATE = 115200
)
