// Package button reads the two front-panel push buttons.
//
// Both buttons are wired active-low against an internal pull-up, so a pressed
// button reads LOW. Levels are sampled on demand; there is no latching and no
// software debounce, so a press shorter than one loop iteration can be missed.
package button

// Button identifies a front-panel button.
type Button int

const (
	Tare Button = iota
	Calibrate
)

func (b Button) String() string {
	switch b {
	case Tare:
		return "tare"
	case Calibrate:
		return "calibrate"
	default:
		return "unknown"
	}
}

// Pin is a digital input. Get returns the electrical level, true meaning HIGH.
type Pin interface {
	Get() bool
}

// PinFunc adapts a function to Pin.
type PinFunc func() bool

func (f PinFunc) Get() bool { return f() }

// Buttons maps logical buttons onto their input pins.
type Buttons struct {
	tare      Pin
	calibrate Pin
}

// New creates Buttons from the tare and calibrate pins.
func New(tare, calibrate Pin) *Buttons {
	return &Buttons{tare: tare, calibrate: calibrate}
}

// IsPressed reports whether b is currently held down.
func (b *Buttons) IsPressed(btn Button) bool {
	switch btn {
	case Tare:
		return pressed(b.tare)
	case Calibrate:
		return pressed(b.calibrate)
	default:
		return false
	}
}

func pressed(p Pin) bool {
	if p == nil {
		return false
	}
	return !p.Get()
}
