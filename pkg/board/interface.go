// Package board connects to the scale hardware: the load-cell amplifier and
// the two front-panel buttons.
package board

import (
	"errors"

	"github.com/itohio/goscale/pkg/button"
	"github.com/itohio/goscale/pkg/loadcell"
)

var (
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
	ErrTimeout          = errors.New("timed out waiting for a conversion")
	ErrPoweredDown      = errors.New("amplifier is powered down")
)

// Device defines the interface for scale boards (real or mocked).
type Device interface {
	loadcell.Amplifier

	Connect() error
	Close() error
	IsConnected() bool

	TarePin() button.Pin
	CalibratePin() button.Pin
}

var (
	_ Device = (*Serial)(nil)
	_ Device = (*Mock)(nil)
)
