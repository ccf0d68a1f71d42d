package main

import (
	"fmt"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/goscale/pkg/board"
	"github.com/itohio/goscale/pkg/config"
)

// showSettingsDialog displays a settings dialog with tabs for all configuration options.
func showSettingsDialog(state *appState) {
	tabs := container.NewAppTabs(
		createSerialTab(state),
		createScaleTab(state),
		createTimingTab(state),
		createMockTab(state),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(600, 450))
	d.Show()
}

// applySettings validates a modified copy of the configuration, then saves it.
// Changes take effect on the next connection.
func applySettings(state *appState, modify func(c *config.Config) error) {
	next := *state.cfg
	if err := modify(&next); err != nil {
		dialog.ShowError(err, state.window)
		return
	}
	if err := next.Validate(); err != nil {
		dialog.ShowError(err, state.window)
		return
	}
	if err := next.Save(state.configPath); err != nil {
		dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
		return
	}
	*state.cfg = next

	if state.session != nil {
		dialog.ShowInformation("Settings", "Settings saved. Reconnect to apply them.", state.window)
	}
}

// createSerialTab creates the Serial configuration tab.
func createSerialTab(state *appState) *container.TabItem {
	ports, err := board.Ports()
	portOptions := []string{}
	portMap := make(map[string]string) // Display name to port name

	if err == nil {
		for _, port := range ports {
			portOptions = append(portOptions, port.Description)
			portMap[port.Description] = port.Name
		}
	}

	currentDisplay := state.cfg.Serial.Port
	found := false
	for _, opt := range portOptions {
		if portMap[opt] == state.cfg.Serial.Port {
			currentDisplay = opt
			found = true
			break
		}
	}
	if !found && currentDisplay != "" {
		portOptions = append(portOptions, currentDisplay)
		portMap[currentDisplay] = currentDisplay
	}

	portSelect := widget.NewSelect(portOptions, nil)
	if currentDisplay != "" {
		portSelect.SetSelected(currentDisplay)
	}

	baudEntry := widget.NewEntry()
	baudEntry.SetText(strconv.Itoa(state.cfg.Serial.BaudRate))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Serial Port", Widget: portSelect},
			{Text: "Baud Rate", Widget: baudEntry},
		},
		OnSubmit: func() {
			applySettings(state, func(c *config.Config) error {
				if portSelect.Selected != "" {
					c.Serial.Port = portMap[portSelect.Selected]
				}
				baud, err := strconv.Atoi(baudEntry.Text)
				if err != nil || baud <= 0 {
					return fmt.Errorf("invalid baud rate %q", baudEntry.Text)
				}
				c.Serial.BaudRate = baud
				return nil
			})
		},
	}

	return container.NewTabItem("Serial", form)
}

// createScaleTab creates the measurement configuration tab.
func createScaleTab(state *appState) *container.TabItem {
	unitsEntry := widget.NewEntry()
	unitsEntry.SetText(state.cfg.Scale.Units)

	referenceEntry := widget.NewEntry()
	referenceEntry.SetText(strconv.FormatFloat(float64(state.cfg.Scale.ReferenceMass), 'f', -1, 32))

	averageEntry := widget.NewEntry()
	averageEntry.SetText(strconv.Itoa(state.cfg.Scale.AverageSamples))

	calibrationEntry := widget.NewEntry()
	calibrationEntry.SetText(strconv.Itoa(state.cfg.Scale.CalibrationSamples))

	decimalsEntry := widget.NewEntry()
	decimalsEntry.SetText(strconv.Itoa(state.cfg.Scale.Decimals))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Units", Widget: unitsEntry},
			{Text: "Reference Mass", Widget: referenceEntry, HintText: "Mass used for calibration, in units"},
			{Text: "Average Samples", Widget: averageEntry},
			{Text: "Calibration Samples", Widget: calibrationEntry},
			{Text: "Decimals", Widget: decimalsEntry},
		},
		OnSubmit: func() {
			applySettings(state, func(c *config.Config) error {
				c.Scale.Units = unitsEntry.Text
				ref, err := strconv.ParseFloat(referenceEntry.Text, 32)
				if err != nil {
					return fmt.Errorf("invalid reference mass: %w", err)
				}
				c.Scale.ReferenceMass = float32(ref)
				if c.Scale.AverageSamples, err = strconv.Atoi(averageEntry.Text); err != nil {
					return fmt.Errorf("invalid average samples: %w", err)
				}
				if c.Scale.CalibrationSamples, err = strconv.Atoi(calibrationEntry.Text); err != nil {
					return fmt.Errorf("invalid calibration samples: %w", err)
				}
				if c.Scale.Decimals, err = strconv.Atoi(decimalsEntry.Text); err != nil {
					return fmt.Errorf("invalid decimals: %w", err)
				}
				return nil
			})
		},
	}

	return container.NewTabItem("Scale", form)
}

// createTimingTab creates the start-up and calibration timing tab.
func createTimingTab(state *appState) *container.TabItem {
	settleEntry := durationEntry(state.cfg.Startup.Settle)
	graceEntry := durationEntry(state.cfg.Calibration.GraceDelay)
	releaseEntry := durationEntry(state.cfg.Calibration.ReleaseDelay)
	windowEntry := durationEntry(state.cfg.Display.Window)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Settle Time", Widget: settleEntry},
			{Text: "Calibration Grace Delay", Widget: graceEntry},
			{Text: "Calibration Release Delay", Widget: releaseEntry},
			{Text: "Trend Window", Widget: windowEntry},
		},
		OnSubmit: func() {
			applySettings(state, func(c *config.Config) error {
				var err error
				if c.Startup.Settle, err = time.ParseDuration(settleEntry.Text); err != nil {
					return err
				}
				if c.Calibration.GraceDelay, err = time.ParseDuration(graceEntry.Text); err != nil {
					return err
				}
				if c.Calibration.ReleaseDelay, err = time.ParseDuration(releaseEntry.Text); err != nil {
					return err
				}
				if c.Display.Window, err = time.ParseDuration(windowEntry.Text); err != nil {
					return err
				}
				return nil
			})
		},
	}

	return container.NewTabItem("Timing", form)
}

// createMockTab creates the simulated board tab.
func createMockTab(state *appState) *container.TabItem {
	offsetEntry := floatEntry(state.cfg.Mock.Offset)
	countsEntry := floatEntry(state.cfg.Mock.CountsPerUnit)
	noiseEntry := floatEntry(state.cfg.Mock.Noise)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Offset (counts)", Widget: offsetEntry},
			{Text: "Counts per Unit", Widget: countsEntry},
			{Text: "Noise (counts)", Widget: noiseEntry},
		},
		OnSubmit: func() {
			applySettings(state, func(c *config.Config) error {
				var err error
				if c.Mock.Offset, err = strconv.ParseFloat(offsetEntry.Text, 64); err != nil {
					return fmt.Errorf("invalid offset: %w", err)
				}
				if c.Mock.CountsPerUnit, err = strconv.ParseFloat(countsEntry.Text, 64); err != nil {
					return fmt.Errorf("invalid counts per unit: %w", err)
				}
				if c.Mock.Noise, err = strconv.ParseFloat(noiseEntry.Text, 64); err != nil {
					return fmt.Errorf("invalid noise: %w", err)
				}
				return nil
			})
		},
	}

	return container.NewTabItem("Mock", form)
}

func durationEntry(d time.Duration) *widget.Entry {
	e := widget.NewEntry()
	e.SetText(d.String())
	return e
}

func floatEntry(v float64) *widget.Entry {
	e := widget.NewEntry()
	e.SetText(strconv.FormatFloat(v, 'f', -1, 64))
	return e
}
