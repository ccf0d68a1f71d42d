package main

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
)

// HoldButton is a button that reports press and release separately, so it
// can stand in for a momentary push button that must be held down.
type HoldButton struct {
	widget.Button

	onHold func(held bool)
	held   bool
}

var _ desktop.Mouseable = (*HoldButton)(nil)

// NewHoldButton creates a HoldButton; onHold is called with true on press
// and false on release.
func NewHoldButton(label string, icon fyne.Resource, onHold func(held bool)) *HoldButton {
	b := &HoldButton{onHold: onHold}
	b.Text = label
	b.Icon = icon
	b.ExtendBaseWidget(b)
	return b
}

// MouseDown holds the button.
func (b *HoldButton) MouseDown(*desktop.MouseEvent) {
	b.setHeld(true)
}

// MouseUp releases the button.
func (b *HoldButton) MouseUp(*desktop.MouseEvent) {
	b.setHeld(false)
}

// MouseOut releases the button when the pointer leaves it while held.
func (b *HoldButton) MouseOut() {
	b.Button.MouseOut()
	b.setHeld(false)
}

// Held reports whether the button is currently held.
func (b *HoldButton) Held() bool {
	return b.held
}

func (b *HoldButton) setHeld(held bool) {
	if b.held == held || b.Disabled() {
		return
	}
	b.held = held
	if held {
		b.Importance = widget.HighImportance
	} else {
		b.Importance = widget.MediumImportance
	}
	b.Refresh()

	if b.onHold != nil {
		b.onHold(held)
	}
}
