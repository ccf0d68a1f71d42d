//go:generate tinygo flash -target=xiao

package main

import (
	"machine"
	"time"
)

var (
	uart = machine.UART0

	powered    bool
	lastStatus time.Time

	// Serial buffer for reading command lines
	serialBuffer [8]byte
	serialPos    int
)

func main() {
	PIN_HX711_DOUT.Configure(machine.PinConfig{Mode: machine.PinInput})
	PIN_HX711_SCK.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_HX711_POWER.Configure(machine.PinConfig{Mode: machine.PinOutput})

	PIN_TARE.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	PIN_CALIBRATE.Configure(machine.PinConfig{Mode: machine.PinInputPullup})

	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	// The host powers the amplifier up when it is ready to measure.
	setPower(false)
	lastStatus = time.Now()

	for {
		processSerial()

		if powered && isReady() {
			outputFrame(true, readConversion())
			lastStatus = time.Now()
		} else if time.Since(lastStatus) >= STATUS_INTERVAL_MS*time.Millisecond {
			outputFrame(false, 0)
			lastStatus = time.Now()
		}

		time.Sleep(100 * time.Microsecond)
	}
}

// isReady reports whether the HX711 has a conversion waiting (DOUT low).
func isReady() bool {
	return !PIN_HX711_DOUT.Get()
}

// readConversion clocks out one 24-bit two's complement conversion and
// selects the gain of the next one.
func readConversion() int32 {
	var value uint32

	for range 24 {
		PIN_HX711_SCK.High()
		delayMicros(SCK_PULSE_US)
		value <<= 1
		if PIN_HX711_DOUT.Get() {
			value |= 1
		}
		PIN_HX711_SCK.Low()
		delayMicros(SCK_PULSE_US)
	}

	for range GAIN_PULSES {
		PIN_HX711_SCK.High()
		delayMicros(SCK_PULSE_US)
		PIN_HX711_SCK.Low()
		delayMicros(SCK_PULSE_US)
	}

	// Sign-extend bit 23.
	if value&0x800000 != 0 {
		value |= 0xFF000000
	}
	return int32(value)
}

func setPower(on bool) {
	powered = on
	if on {
		PIN_HX711_POWER.High()
		PIN_HX711_SCK.Low()
		return
	}

	PIN_HX711_SCK.High()
	delayMicros(POWER_DOWN_HOLD_US)
	PIN_HX711_POWER.Low()
}

func delayMicros(us int) {
	time.Sleep(time.Duration(us) * time.Microsecond)
}

// outputFrame writes one line: "ready,raw,tare_level,calibrate_level\n".
// Button levels are electrical: 1 means released.
func outputFrame(ready bool, raw int32) {
	if ready {
		print("1,")
	} else {
		print("0,")
	}
	print(raw)
	print(",")
	printLevel(PIN_TARE.Get())
	print(",")
	printLevel(PIN_CALIBRATE.Get())
	print("\n")
}

func printLevel(high bool) {
	if high {
		print("1")
	} else {
		print("0")
	}
}

// processSerial handles the "P1" and "P0" power commands.
func processSerial() {
	for uart.Buffered() > 0 {
		data, err := uart.ReadByte()
		if err != nil {
			break
		}

		if data == '\n' || data == '\r' {
			if serialPos == 2 && serialBuffer[0] == 'P' {
				switch serialBuffer[1] {
				case '1':
					setPower(true)
				case '0':
					setPower(false)
				}
			}
			serialPos = 0
			continue
		}

		if data == ' ' || data == '\t' {
			continue
		}

		if serialPos < len(serialBuffer) {
			serialBuffer[serialPos] = data
			serialPos++
		}
	}
}
