package main

import (
	"flag"
	"fmt"
	"image/color"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"

	"github.com/itohio/goscale/pkg/button"
	"github.com/itohio/goscale/pkg/config"
	"github.com/itohio/goscale/pkg/controller"
	"github.com/itohio/goscale/pkg/scope"
)

func main() {
	var (
		portFlag   = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		configFlag = flag.String("config", "scale.yaml", "Configuration file path")
		mockFlag   = flag.Bool("mock", false, "Use a simulated board instead of the serial port")
		logLevel   = flag.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	)
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)

	cfg, err := config.Load(*configFlag)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}

	application := app.NewWithID("com.itohio.goscale")
	window := application.NewWindow("Scale")
	window.Resize(fyne.NewSize(900, 700))
	window.CenterOnScreen()

	state := &appState{
		cfg:        cfg,
		configPath: *configFlag,
		useMock:    *mockFlag,
		window:     window,
		panel:      &panel{},
	}

	window.SetContent(state.build())
	window.SetOnClosed(func() {
		state.session.stop()
	})
	window.ShowAndRun()
}

// appState holds the application state.
type appState struct {
	cfg        *config.Config
	configPath string
	useMock    bool
	window     fyne.Window
	panel      *panel
	session    *session

	connectBtn   *widget.Button
	tareBtn      *HoldButton
	calibrateBtn *HoldButton
	loadSlider   *widget.Slider
	massText     *canvas.Text
	statusLabel  *widget.Label
	scope        *scope.ScopeWidget
	log          *logView

	last controller.State
}

func (state *appState) build() fyne.CanvasObject {
	state.connectBtn = widget.NewButtonWithIcon("", theme.LoginIcon(), state.handleConnect)
	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})

	state.tareBtn = NewHoldButton("Tare", theme.ViewRefreshIcon(), func(held bool) {
		state.panel.hold(button.Tare, held)
	})
	state.calibrateBtn = NewHoldButton("Calibrate", theme.ConfirmIcon(), func(held bool) {
		state.panel.hold(button.Calibrate, held)
	})
	state.tareBtn.Disable()
	state.calibrateBtn.Disable()

	// Simulated load, up to twice the reference mass.
	state.loadSlider = widget.NewSlider(0, 2*float64(state.cfg.Scale.ReferenceMass))
	state.loadSlider.Step = float64(state.cfg.Scale.ReferenceMass) / 100
	state.loadSlider.SetValue(state.cfg.Mock.Load)
	state.loadSlider.OnChanged = func(v float64) {
		if state.session != nil && state.session.mock != nil {
			state.session.mock.SetLoad(v)
		}
	}
	state.loadSlider.Disable()

	state.massText = canvas.NewText("---", color.White)
	state.massText.TextSize = 48
	state.massText.TextStyle = fyne.TextStyle{Monospace: true}
	state.massText.Alignment = fyne.TextAlignCenter

	state.statusLabel = widget.NewLabel("Disconnected")
	state.scope = scope.New(state.cfg.Scale.Units, state.cfg.Display.Window)
	state.log = newLogView(200)

	toolbar := container.NewBorder(
		nil, nil,
		container.NewHBox(state.connectBtn, settingsBtn),
		container.NewHBox(state.tareBtn, state.calibrateBtn),
		nil,
	)

	top := container.NewVBox(toolbar, state.massText, state.statusLabel)
	if state.useMock {
		top.Add(container.NewBorder(nil, nil, widget.NewLabel("Load"), nil, state.loadSlider))
	}

	return container.NewBorder(
		top, nil, nil, nil,
		container.NewVSplit(state.scope, state.log.List),
	)
}

// handleConnect handles the connect/disconnect button click.
func (state *appState) handleConnect() {
	if state.session != nil {
		state.session.stop()
		state.session = nil
		state.setConnected(false)
		state.statusLabel.SetText("Disconnected")
		logrus.Info("disconnected")
		return
	}

	s, err := startSession(state.cfg, state.useMock, state.panel, state.log.Writer(),
		func(st controller.State) {
			now := time.Now()
			fyne.Do(func() { state.update(now, st) })
		},
		func(err error) {
			if err != nil {
				fyne.Do(func() { dialog.ShowError(err, state.window) })
			}
		},
	)
	if err != nil {
		dialog.ShowError(err, state.window)
		return
	}

	state.session = s
	state.scope.Clear()
	state.setConnected(true)
	if state.useMock {
		s.mock.SetLoad(state.loadSlider.Value)
		logrus.Info("connected to mocked board")
	} else {
		logrus.Infof("connected to serial port %s", state.cfg.Serial.Port)
	}
}

func (state *appState) setConnected(connected bool) {
	for _, w := range []fyne.Disableable{state.tareBtn, state.calibrateBtn, state.loadSlider} {
		if connected {
			w.Enable()
		} else {
			w.Disable()
		}
	}
	if !connected {
		state.massText.Text = "---"
		state.massText.Refresh()
	}
}

// update shows a state snapshot; called on the main thread.
func (state *appState) update(now time.Time, st controller.State) {
	if state.session == nil {
		return
	}

	calibrating := isCalibrating(st)
	switch {
	case calibrating && !isCalibrating(state.last):
		state.scope.Mark(scope.Marker{Timestamp: now, Label: "calibrating"})
	case !calibrating && isCalibrating(state.last):
		state.scope.Mark(scope.Marker{Timestamp: now, Label: fmt.Sprintf("sensitivity %.2f", st.Sensitivity)})
	}
	state.last = st

	state.scope.Add(scope.Point{Timestamp: now, Mass: st.LastMass, Calibrating: calibrating})

	state.massText.Text = state.session.reporter.FormatMass(st.LastMass) + " " + state.cfg.Scale.Units
	state.massText.Refresh()

	calibrated := "uncalibrated 1:1"
	if st.Calibrated {
		calibrated = "calibrated"
	}
	state.statusLabel.SetText(fmt.Sprintf("%s | sensitivity %.2f (%s) | raw %.0f",
		st.Mode, st.Sensitivity, calibrated, st.LastRaw))
}
