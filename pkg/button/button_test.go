package button

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type level bool

func (l *level) Get() bool { return bool(*l) }

func TestButtons_ActiveLow(t *testing.T) {
	tests := []struct {
		name          string
		tareLevel     bool
		calLevel      bool
		wantTare      bool
		wantCalibrate bool
	}{
		{"both released", true, true, false, false},
		{"tare pressed", false, true, true, false},
		{"calibrate pressed", true, false, false, true},
		{"both pressed", false, false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tare := level(tt.tareLevel)
			cal := level(tt.calLevel)
			b := New(&tare, &cal)

			assert.Equal(t, tt.wantTare, b.IsPressed(Tare))
			assert.Equal(t, tt.wantCalibrate, b.IsPressed(Calibrate))
		})
	}
}

func TestButtons_LevelIsNotLatched(t *testing.T) {
	tare := level(true)
	b := New(&tare, PinFunc(func() bool { return true }))

	assert.False(t, b.IsPressed(Tare))
	tare = false
	assert.True(t, b.IsPressed(Tare))
	tare = true
	assert.False(t, b.IsPressed(Tare))
}

func TestButtons_MissingPinReadsReleased(t *testing.T) {
	b := New(nil, nil)
	assert.False(t, b.IsPressed(Tare))
	assert.False(t, b.IsPressed(Calibrate))
	assert.False(t, b.IsPressed(Button(7)))
}

func TestButton_String(t *testing.T) {
	assert.Equal(t, "tare", Tare.String())
	assert.Equal(t, "calibrate", Calibrate.String())
	assert.Equal(t, "unknown", Button(9).String())
}
