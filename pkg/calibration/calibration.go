// Package calibration runs the interactive sensitivity calibration.
//
// The operator puts the reference mass on the platform and holds the calibrate
// button. While it is held the engine keeps sampling and reporting a candidate
// sensitivity; releasing the button commits the last candidate. The tare
// button stays usable during the procedure to re-zero before committing.
package calibration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chewxy/math32"

	"github.com/itohio/goscale/pkg/button"
	"github.com/itohio/goscale/pkg/loadcell"
)

// ErrZeroReferenceMass is returned when the engine is configured with a zero reference mass.
var ErrZeroReferenceMass = errors.New("reference mass must be non-zero")

// State of the engine.
type State int

const (
	Idle State = iota
	Calibrating
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Calibrating:
		return "Calibrating"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Acquisition is the part of the load cell the engine drives.
type Acquisition interface {
	ReadRaw(n int) (float64, error)
	Tare(n int) error
	SetSensitivity(v float32)
}

// Persister commits a sensitivity to non-volatile storage.
type Persister interface {
	Save(sensitivity float32) error
}

// Inputs reports button levels.
type Inputs interface {
	IsPressed(b button.Button) bool
}

// Reporter receives live calibration output.
type Reporter interface {
	Calibration(raw float64, sensitivity float32, referenceMass float32)
	Status(format string, args ...any)
}

// Options configures the engine.
type Options struct {
	ReferenceMass float32
	Samples       int
	GraceDelay    time.Duration // After entering, lets the operator settle the button
	ReleaseDelay  time.Duration // After committing, absorbs switch bounce
	Sleep         loadcell.Sleeper
}

// Engine is the Idle/Calibrating state machine. Each Step performs one
// Calibrating iteration so that the measurement loop stays the only loop.
type Engine struct {
	acq    Acquisition
	store  Persister
	inputs Inputs
	rep    Reporter
	opts   Options

	state         State
	candidate     float32
	haveCandidate bool
	commits       int
}

// New creates an idle Engine.
func New(acq Acquisition, store Persister, inputs Inputs, rep Reporter, opts Options) (*Engine, error) {
	if opts.ReferenceMass == 0 {
		return nil, ErrZeroReferenceMass
	}
	if opts.Samples < 1 {
		opts.Samples = 1
	}
	if opts.Sleep == nil {
		opts.Sleep = loadcell.Sleep
	}
	return &Engine{
		acq:    acq,
		store:  store,
		inputs: inputs,
		rep:    rep,
		opts:   opts,
		state:  Idle,
	}, nil
}

// ComputeSensitivity returns the raw counts per unit mass.
func ComputeSensitivity(raw float64, referenceMass float32) float32 {
	return float32(raw) / referenceMass
}

// Usable reports whether v can serve as a sensitivity, i.e. as a divisor
// that yields finite masses.
func Usable(v float32) bool {
	return v != 0 && !math32.IsNaN(v) && !math32.IsInf(v, 0)
}

// State returns the current state.
func (e *Engine) State() State {
	return e.state
}

// Candidate returns the last computed sensitivity of the running procedure.
func (e *Engine) Candidate() (float32, bool) {
	return e.candidate, e.haveCandidate
}

// Commits returns how many procedures have applied a new sensitivity.
func (e *Engine) Commits() int {
	return e.commits
}

// ReferenceMass returns the configured calibration mass.
func (e *Engine) ReferenceMass() float32 {
	return e.opts.ReferenceMass
}

// Begin enters Calibrating and waits the grace delay.
// If the wait is interrupted the procedure is abandoned without committing.
func (e *Engine) Begin(ctx context.Context) error {
	if e.state == Calibrating {
		return nil
	}

	e.state = Calibrating
	e.haveCandidate = false
	e.rep.Status("Calibration: place the %g reference mass, hold the button and release to save",
		e.opts.ReferenceMass)

	if err := e.opts.Sleep(ctx, e.opts.GraceDelay); err != nil {
		e.abort()
		return err
	}
	return nil
}

// Step runs one Calibrating iteration and returns the resulting state.
//
// A released calibrate button ends the procedure. The polarity is deliberate:
// the operator holds the button while watching the live sensitivity and lets
// go to lock it in.
func (e *Engine) Step(ctx context.Context) (State, error) {
	if e.state != Calibrating {
		return e.state, nil
	}

	if !e.inputs.IsPressed(button.Calibrate) {
		return e.state, e.commit(ctx)
	}

	if e.inputs.IsPressed(button.Tare) {
		if err := e.acq.Tare(e.opts.Samples); err != nil {
			return e.state, err
		}
		e.rep.Status("Calibration: tared")
	}

	if _, err := e.sample(); err != nil {
		return e.state, err
	}
	return e.state, nil
}

func (e *Engine) sample() (float32, error) {
	raw, err := e.acq.ReadRaw(e.opts.Samples)
	if err != nil {
		return 0, fmt.Errorf("failed to read during calibration: %w", err)
	}

	e.candidate = ComputeSensitivity(raw, e.opts.ReferenceMass)
	e.haveCandidate = true
	e.rep.Calibration(raw, e.candidate, e.opts.ReferenceMass)
	return e.candidate, nil
}

// commit applies and saves the last candidate and returns to Idle.
// A button released before the first sample still gets one measurement.
// An unusable candidate (e.g. released on an empty platform) is discarded and
// the sensitivity in effect stays.
func (e *Engine) commit(ctx context.Context) error {
	if !e.haveCandidate {
		if _, err := e.sample(); err != nil {
			e.abort()
			return err
		}
	}

	sensitivity := e.candidate
	if !Usable(sensitivity) {
		e.rep.Status("Calibration rejected: sensitivity %v is unusable, keeping the previous one", sensitivity)
		err := e.opts.Sleep(ctx, e.opts.ReleaseDelay)
		e.abort()
		return err
	}

	e.acq.SetSensitivity(sensitivity)
	e.commits++
	saveErr := e.store.Save(sensitivity)
	if saveErr == nil {
		e.rep.Status("Calibration saved: sensitivity %.2f", sensitivity)
	} else {
		e.rep.Status("Calibration applied but not saved: sensitivity %.2f", sensitivity)
	}

	sleepErr := e.opts.Sleep(ctx, e.opts.ReleaseDelay)
	e.abort()

	if saveErr != nil {
		return fmt.Errorf("failed to save calibration: %w", saveErr)
	}
	return sleepErr
}

func (e *Engine) abort() {
	e.state = Idle
	e.haveCandidate = false
}
