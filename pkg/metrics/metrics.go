// Package metrics exports scale state to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Collector holds the scale gauges and counters. A nil *Collector is valid
// and records nothing, so callers need not check whether metrics are enabled.
type Collector struct {
	registry *prometheus.Registry

	raw          prometheus.Gauge
	mass         prometheus.Gauge
	sensitivity  prometheus.Gauge
	calibrating  prometheus.Gauge
	tares        prometheus.Counter
	calibrations prometheus.Counter
	readErrors   prometheus.Counter
}

// New creates a Collector registered on its own registry.
func New(units string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		raw: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scale_raw_value",
			Help: "Tare-corrected raw load cell reading (units: ADC counts)",
		}),
		mass: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "scale_mass",
			Help:        "Calibrated mass on the platform",
			ConstLabels: prometheus.Labels{"units": units},
		}),
		sensitivity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scale_sensitivity",
			Help: "Sensitivity in effect (units: ADC counts per mass unit)",
		}),
		calibrating: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scale_calibrating",
			Help: "1 while the calibration procedure is open",
		}),
		tares: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scale_tares_total",
			Help: "Number of tare operations",
		}),
		calibrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scale_calibrations_total",
			Help: "Number of committed calibrations",
		}),
		readErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scale_read_errors_total",
			Help: "Number of failed amplifier reads",
		}),
	}

	c.registry.MustRegister(
		c.raw,
		c.mass,
		c.sensitivity,
		c.calibrating,
		c.tares,
		c.calibrations,
		c.readErrors,
		prometheus.NewBuildInfoCollector(),
	)

	return c
}

// Reading records a steady-state measurement.
func (c *Collector) Reading(raw, mass float64) {
	if c == nil {
		return
	}
	c.raw.Set(raw)
	c.mass.Set(mass)
}

// Sensitivity records the sensitivity in effect.
func (c *Collector) Sensitivity(v float32) {
	if c == nil {
		return
	}
	c.sensitivity.Set(float64(v))
}

// Calibrating records whether the calibration procedure is open.
func (c *Collector) Calibrating(open bool) {
	if c == nil {
		return
	}
	if open {
		c.calibrating.Set(1)
	} else {
		c.calibrating.Set(0)
	}
}

// Tared counts a tare.
func (c *Collector) Tared() {
	if c == nil {
		return
	}
	c.tares.Inc()
}

// Calibrated counts a committed calibration.
func (c *Collector) Calibrated() {
	if c == nil {
		return
	}
	c.calibrations.Inc()
}

// ReadError counts a failed read.
func (c *Collector) ReadError() {
	if c == nil {
		return
	}
	c.readErrors.Inc()
}

// Gatherer exposes the registry.
func (c *Collector) Gatherer() prometheus.Gatherer {
	return c.registry
}

// Handler returns the /metrics HTTP handler.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes the registered metrics on addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Warn("metrics server shutdown")
		}
	}()

	logrus.WithField("addr", addr).Info("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
