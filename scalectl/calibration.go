package main

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/itohio/goscale/pkg/calibration"
	"github.com/itohio/goscale/pkg/storage"
)

func NewCalibrationCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "calibration",
		Short:   "Inspect or write the saved calibration",
		GroupID: gMaintenance,
	}

	cmd.AddCommand(
		newCalibrationShowCommand(),
		newCalibrationSetCommand(),
	)

	return cmd
}

func newCalibrationShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the saved calibration record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			img, err := storage.OpenFile(cfg.Storage.Path, cfg.Storage.Size)
			if err != nil {
				return err
			}
			defer img.Close()

			store := storage.New(img, byte(cfg.Scale.Signature))
			rec, ok := store.Load()

			cmd.Printf("Storage: %s\n", bold("%s", cfg.Storage.Path))
			cmd.Printf("  Signature: %s\n", bold("%q", rune(store.Signature())))
			cmd.Printf("  Saved: %s\n", bool2Text(ok))
			if !ok {
				cmd.Printf("  Sensitivity: %s\n", bold("1 (uncalibrated)"))
				return nil
			}

			cmd.Printf("  Sensitivity: %s counts/%s\n", bold("%.2f", rec.Sensitivity), cfg.Scale.Units)
			if !calibration.Usable(rec.Sensitivity) {
				cmd.Printf("  %s\n", color.RedString("The saved sensitivity is unusable, the scale falls back to 1:1"))
			}
			return nil
		},
	}
}

func newCalibrationSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <sensitivity>",
		Short: "Write a known sensitivity (raw counts per unit mass)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.ParseFloat(args[0], 32)
			if err != nil {
				return fmt.Errorf("invalid sensitivity: %v", err)
			}
			sensitivity := float32(v)
			if !calibration.Usable(sensitivity) {
				return fmt.Errorf("invalid sensitivity %v: must be finite and non-zero", v)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			img, err := storage.OpenFile(cfg.Storage.Path, cfg.Storage.Size)
			if err != nil {
				return err
			}
			defer img.Close()

			if err := storage.New(img, byte(cfg.Scale.Signature)).Save(sensitivity); err != nil {
				return err
			}

			logrus.WithField("sensitivity", sensitivity).Infof("calibration saved to %s", cfg.Storage.Path)
			return nil
		},
	}
}

func bool2Text(b bool) string {
	if b {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}
