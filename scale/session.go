package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/itohio/goscale/pkg/board"
	"github.com/itohio/goscale/pkg/calibration"
	"github.com/itohio/goscale/pkg/config"
	"github.com/itohio/goscale/pkg/controller"
	"github.com/itohio/goscale/pkg/loadcell"
	"github.com/itohio/goscale/pkg/metrics"
	"github.com/itohio/goscale/pkg/report"
	"github.com/itohio/goscale/pkg/storage"
)

// session is one connection to a board with its running measurement loop.
type session struct {
	dev      board.Device
	mock     *board.Mock // Set when the board is simulated
	img      *storage.File
	ctrl     *controller.Controller
	reporter *report.Reporter

	cancel context.CancelFunc
	done   chan struct{} // Closed when the measurement loop exits
	polled chan struct{} // Closed when the state poller exits
}

// startSession connects to the board and starts the measurement loop.
// onState is called from a background goroutine every refresh interval.
func startSession(cfg *config.Config, useMock bool, p *panel, out io.Writer, onState func(controller.State), onExit func(error)) (*session, error) {
	s := &session{
		done:   make(chan struct{}),
		polled: make(chan struct{}),
	}

	if useMock {
		mockCfg := cfg.Mock // Settings may change cfg while the board runs
		s.mock = board.NewMock(&mockCfg)
		s.dev = s.mock
	} else {
		s.dev = board.NewSerial(cfg.Serial.Port, cfg.Serial.BaudRate, 0)
	}

	if err := s.dev.Connect(); err != nil {
		if useMock {
			return nil, fmt.Errorf("failed to connect to mocked board: %w", err)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Serial.Port, err)
	}

	img, err := storage.OpenFile(cfg.Storage.Path, cfg.Storage.Size)
	if err != nil {
		s.dev.Close()
		return nil, err
	}
	s.img = img

	p.attach(s.dev.TarePin(), s.dev.CalibratePin())
	s.reporter = report.New(out, cfg.Scale.Units, cfg.Scale.Decimals)

	m := metrics.New(cfg.Scale.Units)
	scale := loadcell.New(s.dev, loadcell.Options{
		Settle:          cfg.Startup.Settle,
		ReadyRetries:    cfg.Startup.ReadyRetries,
		ReadyRetryDelay: cfg.Startup.ReadyRetryDelay,
	})
	s.ctrl, err = controller.New(cfg, controller.Deps{
		Scale:    scale,
		Store:    storage.New(img, byte(cfg.Scale.Signature)),
		Buttons:  p.buttons(),
		Reporter: s.reporter,
		Metrics:  m,
	})
	if err != nil {
		s.img.Close()
		s.dev.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	if cfg.Metrics.Listen != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Listen); err != nil {
				logrus.WithError(err).Error("metrics exporter stopped")
			}
		}()
	}

	go func() {
		defer close(s.done)
		err := s.ctrl.Run(ctx)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		if onExit != nil {
			onExit(err)
		}
	}()

	go func() {
		defer close(s.polled)
		ticker := time.NewTicker(cfg.Display.Refresh)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				onState(s.ctrl.State())
			}
		}
	}()

	return s, nil
}

// stop ends the measurement loop and releases the board and the storage.
func (s *session) stop() {
	if s == nil {
		return
	}
	s.cancel()
	<-s.done
	<-s.polled

	if err := s.dev.PowerDown(); err != nil {
		logrus.WithError(err).Debug("failed to power down the amplifier")
	}
	if err := s.dev.Close(); err != nil {
		logrus.WithError(err).Warn("failed to close the board")
	}
	if err := s.img.Close(); err != nil {
		logrus.WithError(err).Warn("failed to close the calibration storage")
	}
}

// isCalibrating reports whether st belongs to an open calibration.
func isCalibrating(st controller.State) bool {
	return st.Mode == calibration.Calibrating
}
