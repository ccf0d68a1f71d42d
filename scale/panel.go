package main

import (
	"sync/atomic"

	"github.com/itohio/goscale/pkg/button"
)

// heldPin is an active-low input that also reads LOW while the on-screen
// button is held. The physical pin, when attached, still works.
type heldPin struct {
	pin  atomic.Pointer[button.Pin]
	held atomic.Bool
}

func (p *heldPin) Get() bool {
	if p.held.Load() {
		return false
	}
	if pin := p.pin.Load(); pin != nil {
		return (*pin).Get()
	}
	return true
}

func (p *heldPin) attach(pin button.Pin) {
	if pin == nil {
		p.pin.Store(nil)
		return
	}
	p.pin.Store(&pin)
}

// panel merges the on-screen buttons with the board's buttons.
type panel struct {
	tare      heldPin
	calibrate heldPin
}

func (p *panel) attach(tare, calibrate button.Pin) {
	p.tare.attach(tare)
	p.calibrate.attach(calibrate)
}

func (p *panel) hold(b button.Button, held bool) {
	switch b {
	case button.Tare:
		p.tare.held.Store(held)
	case button.Calibrate:
		p.calibrate.held.Store(held)
	}
}

func (p *panel) buttons() *button.Buttons {
	return button.New(&p.tare, &p.calibrate)
}
