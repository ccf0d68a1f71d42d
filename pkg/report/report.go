// Package report writes human-readable scale output, one line per event.
package report

import (
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
)

// Reporter formats readings and status messages onto a line-oriented text transport.
// Nothing is buffered or filtered.
type Reporter struct {
	w        io.Writer
	units    string
	decimals int

	mu sync.Mutex
}

// New creates a Reporter writing to w. Masses are printed with the given
// number of decimals (negative means the shortest exact representation).
func New(w io.Writer, units string, decimals int) *Reporter {
	return &Reporter{w: w, units: units, decimals: decimals}
}

// Units returns the unit label attached to masses.
func (r *Reporter) Units() string {
	return r.units
}

// Reading reports one steady-state measurement.
func (r *Reporter) Reading(raw, mass float64) {
	r.line("Raw value: " + FormatRaw(raw) + ", Mass: " + r.FormatMass(mass) + " " + r.units)
}

// Calibration reports one live calibration measurement and the candidate
// sensitivity computed from it.
func (r *Reporter) Calibration(raw float64, sensitivity float32, referenceMass float32) {
	r.line(fmt.Sprintf("Calibrating: raw value: %s, sensitivity: %s (reference %s %s)",
		FormatRaw(raw),
		strconv.FormatFloat(float64(sensitivity), 'f', 2, 32),
		strconv.FormatFloat(float64(referenceMass), 'f', -1, 32),
		r.units,
	))
}

// Status reports a free-form status line.
func (r *Reporter) Status(format string, args ...any) {
	r.line(fmt.Sprintf(format, args...))
}

// FormatMass formats a mass with the configured number of decimals.
func (r *Reporter) FormatMass(mass float64) string {
	return strconv.FormatFloat(mass, 'f', r.decimals, 64)
}

// FormatRaw formats a raw value with two decimals.
func FormatRaw(raw float64) string {
	return strconv.FormatFloat(raw, 'f', 2, 64)
}

func (r *Reporter) line(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := io.WriteString(r.w, s+"\n"); err != nil {
		logrus.WithError(err).Debug("failed to write report line")
	}
}
