// Package scope draws the recent mass history as an oscilloscope-style trend.
package scope

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
)

// Point is one plotted reading.
type Point struct {
	Timestamp   time.Time
	Mass        float64
	Calibrating bool
}

// Marker labels an instant on the time axis, e.g. a tare or a committed calibration.
type Marker struct {
	Timestamp time.Time
	Label     string
}

// ScopeWidget is a custom Fyne widget that displays the mass trend.
type ScopeWidget struct {
	widget.BaseWidget

	units  string
	window time.Duration

	// Data (protected by mu)
	mu      sync.RWMutex
	points  []Point
	markers []Marker

	// Display buffer (reused for downsampling)
	display []Point

	// Auto-scaling
	yMin, yMax float64
	xMin, xMax time.Time

	maxDisplayPoints int
}

// New creates a ScopeWidget that keeps the given time window of history.
func New(units string, window time.Duration) *ScopeWidget {
	if window <= 0 {
		window = 30 * time.Second
	}
	s := &ScopeWidget{
		units:            units,
		window:           window,
		display:          make([]Point, 0, 1000),
		maxDisplayPoints: 1000,
	}
	s.ExtendBaseWidget(s)
	s.updateAutoScale()
	return s
}

// Add appends a reading and drops history older than the window.
// Call it on the main thread, e.g. through fyne.Do.
func (s *ScopeWidget) Add(p Point) {
	s.mu.Lock()
	s.points = append(s.points, p)
	s.trim(p.Timestamp.Add(-s.window))
	s.display = Downsample(s.display, s.points, s.maxDisplayPoints)
	s.updateAutoScale()
	s.mu.Unlock()

	s.Refresh()
}

// Mark adds a labelled marker.
func (s *ScopeWidget) Mark(m Marker) {
	s.mu.Lock()
	s.markers = append(s.markers, m)
	s.mu.Unlock()

	s.Refresh()
}

// Clear drops all history.
func (s *ScopeWidget) Clear() {
	s.mu.Lock()
	s.points = s.points[:0]
	s.markers = s.markers[:0]
	s.display = s.display[:0]
	s.updateAutoScale()
	s.mu.Unlock()

	s.Refresh()
}

// Latest returns the newest reading.
func (s *ScopeWidget) Latest() (Point, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.points) == 0 {
		return Point{}, false
	}
	return s.points[len(s.points)-1], true
}

// Len returns the number of readings in the window.
func (s *ScopeWidget) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}

func (s *ScopeWidget) trim(cutoff time.Time) {
	i := 0
	for i < len(s.points) && s.points[i].Timestamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		s.points = append(s.points[:0], s.points[i:]...)
	}

	j := 0
	for j < len(s.markers) && s.markers[j].Timestamp.Before(cutoff) {
		j++
	}
	if j > 0 {
		s.markers = append(s.markers[:0], s.markers[j:]...)
	}
}

// updateAutoScale calculates the axis ranges from the display buffer.
func (s *ScopeWidget) updateAutoScale() {
	if len(s.display) == 0 {
		now := time.Now()
		s.yMin, s.yMax = 0, 1
		s.xMin, s.xMax = now, now.Add(s.window)
		return
	}

	s.yMin = s.display[0].Mass
	s.yMax = s.display[0].Mass
	for _, p := range s.display {
		s.yMin = min(s.yMin, p.Mass)
		s.yMax = max(s.yMax, p.Mass)
	}

	// Add 10% margin; a flat trace gets a unit span around it.
	span := s.yMax - s.yMin
	if span == 0 {
		span = 1
	}
	s.yMin -= span * 0.1
	s.yMax += span * 0.1

	s.xMin = s.display[0].Timestamp
	s.xMax = s.display[len(s.display)-1].Timestamp
	if s.xMax.Sub(s.xMin) < s.window {
		s.xMax = s.xMin.Add(s.window)
	}
}

// CreateRenderer creates the widget renderer.
func (s *ScopeWidget) CreateRenderer() fyne.WidgetRenderer {
	background := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255})
	return &scopeRenderer{
		scope:      s,
		background: background,
		objects:    []fyne.CanvasObject{background},
	}
}
