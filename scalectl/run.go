package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/itohio/goscale/pkg/board"
	"github.com/itohio/goscale/pkg/button"
	"github.com/itohio/goscale/pkg/config"
	"github.com/itohio/goscale/pkg/controller"
	"github.com/itohio/goscale/pkg/loadcell"
	"github.com/itohio/goscale/pkg/metrics"
	"github.com/itohio/goscale/pkg/report"
	"github.com/itohio/goscale/pkg/storage"
)

func NewRunCommand() *cobra.Command {
	var (
		port          string
		mock          bool
		load          float64
		metricsListen string
	)

	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run the scale",
		GroupID: gScale,
		Long: `Run the scale: tare on start-up, then print one reading per line.

Hold the tare button to re-zero. Put the reference mass on the platform and
hold the calibrate button to calibrate; releasing it saves the new factor.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Serial.Port = port
			}
			if cmd.Flags().Changed("load") {
				cfg.Mock.Load = load
			}
			if cmd.Flags().Changed("metrics-listen") {
				cfg.Metrics.Listen = metricsListen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			err = runScale(ctx, cfg, openBoard(cfg, mock), cmd.OutOrStdout())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "serial port of the bridge board (overrides config)")
	cmd.Flags().BoolVar(&mock, "mock", false, "use a simulated board")
	cmd.Flags().Float64Var(&load, "load", 0, "initial load on the simulated platform")
	cmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "address for the Prometheus exporter, e.g. :9101")

	return cmd
}

func openBoard(cfg *config.Config, mock bool) board.Device {
	if mock {
		return board.NewMock(&cfg.Mock)
	}
	return board.NewSerial(cfg.Serial.Port, cfg.Serial.BaudRate, 0)
}

func runScale(ctx context.Context, cfg *config.Config, dev board.Device, out io.Writer) error {
	if err := dev.Connect(); err != nil {
		return fmt.Errorf("failed to connect to the board: %w", err)
	}
	defer func() {
		if err := dev.PowerDown(); err != nil {
			logrus.WithError(err).Debug("failed to power down the amplifier")
		}
		if err := dev.Close(); err != nil {
			logrus.WithError(err).Warn("failed to close the board")
		}
	}()

	img, err := storage.OpenFile(cfg.Storage.Path, cfg.Storage.Size)
	if err != nil {
		return err
	}
	defer img.Close()

	m := metrics.New(cfg.Scale.Units)
	if cfg.Metrics.Listen != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Listen); err != nil {
				logrus.WithError(err).Error("metrics exporter stopped")
			}
		}()
	}

	scale := loadcell.New(dev, loadcell.Options{
		Settle:          cfg.Startup.Settle,
		ReadyRetries:    cfg.Startup.ReadyRetries,
		ReadyRetryDelay: cfg.Startup.ReadyRetryDelay,
	})

	ctrl, err := controller.New(cfg, controller.Deps{
		Scale:    scale,
		Store:    storage.New(img, byte(cfg.Scale.Signature)),
		Buttons:  button.New(dev.TarePin(), dev.CalibratePin()),
		Reporter: report.New(out, cfg.Scale.Units, cfg.Scale.Decimals),
		Metrics:  m,
	})
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"units":   cfg.Scale.Units,
		"storage": cfg.Storage.Path,
	}).Info("starting scale")

	return ctrl.Run(ctx)
}
