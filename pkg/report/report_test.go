package report

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReporter_Reading(t *testing.T) {
	tests := []struct {
		name     string
		raw      float64
		mass     float64
		units    string
		decimals int
		want     string
	}{
		{"scenario", 23590, 0.2359, "kg", 4, "Raw value: 23590.00, Mass: 0.2359 kg\n"},
		{"rounded mass", 23590, 0.2359, "kg", 2, "Raw value: 23590.00, Mass: 0.24 kg\n"},
		{"negative", -12.5, -0.000125, "kg", 3, "Raw value: -12.50, Mass: -0.000 kg\n"},
		{"grams", 1000, 500, "g", 0, "Raw value: 1000.00, Mass: 500 g\n"},
		{"shortest", 3, 0.125, "lb", -1, "Raw value: 3.00, Mass: 0.125 lb\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sb strings.Builder
			r := New(&sb, tt.units, tt.decimals)
			r.Reading(tt.raw, tt.mass)
			assert.Equal(t, tt.want, sb.String())
		})
	}
}

func TestReporter_OneLinePerCall(t *testing.T) {
	var sb strings.Builder
	r := New(&sb, "kg", 3)

	for i := range 5 {
		r.Reading(float64(i), float64(i))
	}
	r.Status("Tare done")

	lines := strings.Split(strings.TrimSuffix(sb.String(), "\n"), "\n")
	assert.Len(t, lines, 6)
	assert.Equal(t, "Tare done", lines[5])
}

func TestReporter_Calibration(t *testing.T) {
	var sb strings.Builder
	r := New(&sb, "kg", 3)

	r.Calibration(23590, 100000, 0.2359)
	assert.Equal(t, "Calibrating: raw value: 23590.00, sensitivity: 100000.00 (reference 0.2359 kg)\n", sb.String())
}

func TestReporter_Status(t *testing.T) {
	var sb strings.Builder
	r := New(&sb, "kg", 3)

	r.Status("Loaded sensitivity %.1f", 87.5)
	assert.Equal(t, "Loaded sensitivity 87.5\n", sb.String())
	assert.Equal(t, "kg", r.Units())
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("port closed") }

func TestReporter_WriteErrorsAreSwallowed(t *testing.T) {
	r := New(failingWriter{}, "kg", 3)
	assert.NotPanics(t, func() {
		r.Reading(1, 1)
		r.Status("x")
	})
}
