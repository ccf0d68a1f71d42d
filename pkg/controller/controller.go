// Package controller runs the scale: startup, the measurement loop and
// dispatch to tare or calibration on button presses.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/itohio/goscale/pkg/button"
	"github.com/itohio/goscale/pkg/calibration"
	"github.com/itohio/goscale/pkg/config"
	"github.com/itohio/goscale/pkg/loadcell"
	"github.com/itohio/goscale/pkg/metrics"
	"github.com/itohio/goscale/pkg/report"
	"github.com/itohio/goscale/pkg/storage"
)

// Acquisition is the load cell as seen by the controller.
type Acquisition interface {
	Initialize(ctx context.Context) error
	ReadRaw(n int) (float64, error)
	ReadMass(n int) (float64, error)
	Tare(n int) error
	SetSensitivity(v float32)
	Sensitivity() float32
}

// Store is the calibration record storage.
type Store interface {
	Load() (storage.Record, bool)
	Save(sensitivity float32) error
}

var _ Acquisition = (*loadcell.Scale)(nil)
var _ Store = (*storage.Store)(nil)

// Deps are the collaborators of a Controller.
type Deps struct {
	Scale    Acquisition
	Store    Store
	Buttons  calibration.Inputs
	Reporter *report.Reporter
	Metrics  *metrics.Collector // Optional
	Sleep    loadcell.Sleeper   // Optional, defaults to loadcell.Sleep
}

// State is a snapshot of the scale.
type State struct {
	Mode        calibration.State
	Sensitivity float32
	LastRaw     float64
	LastMass    float64
	Calibrated  bool // A saved or committed calibration is in effect
}

// Controller owns the scale state and runs the measurement loop.
type Controller struct {
	scale   Acquisition
	store   Store
	buttons calibration.Inputs
	rep     *report.Reporter
	metrics *metrics.Collector
	engine  *calibration.Engine
	sleep   loadcell.Sleeper

	averageSamples int
	tareSamples    int
	retryDelay     time.Duration

	mu    sync.RWMutex
	state State
}

// New creates a Controller from configuration.
func New(cfg *config.Config, deps Deps) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Sleep == nil {
		deps.Sleep = loadcell.Sleep
	}

	engine, err := calibration.New(deps.Scale, deps.Store, deps.Buttons, deps.Reporter, calibration.Options{
		ReferenceMass: cfg.Scale.ReferenceMass,
		Samples:       cfg.Scale.CalibrationSamples,
		GraceDelay:    cfg.Calibration.GraceDelay,
		ReleaseDelay:  cfg.Calibration.ReleaseDelay,
		Sleep:         deps.Sleep,
	})
	if err != nil {
		return nil, err
	}

	return &Controller{
		scale:          deps.Scale,
		store:          deps.Store,
		buttons:        deps.Buttons,
		rep:            deps.Reporter,
		metrics:        deps.Metrics,
		engine:         engine,
		sleep:          deps.Sleep,
		averageSamples: cfg.Scale.AverageSamples,
		tareSamples:    cfg.Scale.CalibrationSamples,
		retryDelay:     cfg.Startup.ReadyRetryDelay,
		state:          State{Sensitivity: 1},
	}, nil
}

// State returns a snapshot of the scale state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Run starts the scale and runs the measurement loop until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Startup(ctx); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.Step(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logrus.WithError(err).Warn("measurement loop step failed")
		}
	}
}

// Startup loads the saved calibration, brings up the amplifier and tares.
// An amplifier that never becomes ready is retried for as long as ctx allows,
// reporting every failed round.
func (c *Controller) Startup(ctx context.Context) error {
	c.rep.Status("Initializing the scale")

	if rec, ok := c.store.Load(); ok {
		c.applyLoaded(rec.Sensitivity)
	} else {
		c.rep.Status("No saved calibration, using an uncalibrated 1:1 factor")
		c.setSensitivity(1, false)
	}

	for round := 1; ; round++ {
		err := c.scale.Initialize(ctx)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.rep.Status("Amplifier not ready (%v), retrying (round %d)", err, round)
		logrus.WithError(err).WithField("round", round).Warn("amplifier initialization failed")

		if errors.Is(err, loadcell.ErrHardwareNotReady) {
			continue
		}
		if err := c.sleep(ctx, c.retryDelay); err != nil {
			return err
		}
	}

	if err := c.scale.Tare(c.tareSamples); err != nil {
		return fmt.Errorf("initial tare: %w", err)
	}
	c.metrics.Tared()

	c.rep.Status("Scale ready, units: %s", c.rep.Units())
	return nil
}

// Step runs one iteration of the measurement loop. While a calibration is
// open the iteration belongs to the calibration engine.
func (c *Controller) Step(ctx context.Context) error {
	if c.engine.State() == calibration.Calibrating {
		return c.stepCalibration(ctx)
	}

	raw, err := c.scale.ReadRaw(c.averageSamples)
	if err != nil {
		return c.readFailed(err)
	}
	mass, err := c.scale.ReadMass(c.averageSamples)
	if err != nil {
		return c.readFailed(err)
	}

	c.mu.Lock()
	c.state.LastRaw = raw
	c.state.LastMass = mass
	c.mu.Unlock()

	c.rep.Reading(raw, mass)
	c.metrics.Reading(raw, mass)

	switch {
	case c.buttons.IsPressed(button.Tare):
		if err := c.scale.Tare(c.tareSamples); err != nil {
			return c.readFailed(err)
		}
		c.metrics.Tared()
		c.rep.Status("Tare done")

	case c.buttons.IsPressed(button.Calibrate):
		c.setMode(calibration.Calibrating)
		if err := c.engine.Begin(ctx); err != nil {
			c.setMode(c.engine.State())
			return err
		}
	}

	return nil
}

func (c *Controller) stepCalibration(ctx context.Context) error {
	commits := c.engine.Commits()
	mode, err := c.engine.Step(ctx)

	if c.engine.Commits() != commits {
		c.setSensitivity(c.scale.Sensitivity(), true)
		c.metrics.Calibrated()
	}
	c.setMode(mode)

	if err != nil {
		c.rep.Status("Calibration error: %v", err)
	}
	return err
}

// applyLoaded puts a stored sensitivity into effect. A stored value that can
// not be a divisor (torn write, erased cells) falls back to 1:1.
func (c *Controller) applyLoaded(s float32) {
	if !calibration.Usable(s) {
		c.rep.Status("Saved calibration is unusable (sensitivity %v), using an uncalibrated 1:1 factor", s)
		c.setSensitivity(1, false)
		return
	}
	c.rep.Status("Loaded calibration: sensitivity %.2f", s)
	c.setSensitivity(s, true)
}

func (c *Controller) setSensitivity(s float32, calibrated bool) {
	c.scale.SetSensitivity(s)
	c.metrics.Sensitivity(s)

	c.mu.Lock()
	c.state.Sensitivity = s
	c.state.Calibrated = calibrated
	c.mu.Unlock()
}

func (c *Controller) setMode(m calibration.State) {
	c.metrics.Calibrating(m == calibration.Calibrating)

	c.mu.Lock()
	c.state.Mode = m
	c.mu.Unlock()
}

func (c *Controller) readFailed(err error) error {
	c.metrics.ReadError()
	c.rep.Status("Read failed: %v", err)
	return err
}
