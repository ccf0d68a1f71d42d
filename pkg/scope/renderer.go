package scope

import (
	"image/color"
	"math"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
)

var (
	gridColor        = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	labelColor       = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	massColor        = color.RGBA{R: 255, G: 165, B: 0, A: 255}   // Orange
	calibratingColor = color.RGBA{R: 100, G: 200, B: 255, A: 255} // Light blue
	markerColor      = color.RGBA{R: 0, G: 100, B: 200, A: 255}   // Dark blue
	readoutColor     = color.RGBA{R: 200, G: 200, B: 200, A: 255}
)

// scopeRenderer renders the scope widget.
type scopeRenderer struct {
	scope      *ScopeWidget
	background *canvas.Rectangle
	objects    []fyne.CanvasObject
	lastSize   fyne.Size
}

// plot is the drawing area and the value ranges mapped onto it.
type plot struct {
	x, y, w, h float32
	yMin, yMax float64
	xMin, xMax time.Time
}

func (p plot) pos(t time.Time, v float64) fyne.Position {
	x := p.x + float32(t.Sub(p.xMin).Seconds()/p.xMax.Sub(p.xMin).Seconds())*p.w
	y := p.y + p.h - float32((v-p.yMin)/(p.yMax-p.yMin))*p.h
	return fyne.NewPos(x, y)
}

// MinSize returns the minimum size of the widget.
func (r *scopeRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 200)
}

// Layout arranges the widget components.
func (r *scopeRenderer) Layout(size fyne.Size) {
	r.background.Resize(size)

	if r.lastSize != size {
		r.lastSize = size
		r.scope.BaseWidget.Refresh()
	}
}

// Refresh rebuilds the plot from the current data.
func (r *scopeRenderer) Refresh() {
	s := r.scope
	s.mu.RLock()
	points := append([]Point(nil), s.display...)
	markers := append([]Marker(nil), s.markers...)
	p := plot{yMin: s.yMin, yMax: s.yMax, xMin: s.xMin, xMax: s.xMax}
	s.mu.RUnlock()

	size := s.Size()
	r.objects = []fyne.CanvasObject{r.background}
	if size.Width == 0 || size.Height == 0 {
		return
	}

	const (
		marginLeft   = 70
		marginRight  = 20
		marginTop    = 20
		marginBottom = 40
	)
	p.x, p.y = marginLeft, marginTop
	p.w = size.Width - marginLeft - marginRight
	p.h = size.Height - marginTop - marginBottom

	r.drawGrid(p)
	r.drawTrace(p, points)
	r.drawMarkers(p, markers)
	if len(points) > 0 {
		r.drawReadout(p, points[len(points)-1])
	}
}

// drawGrid draws the grid with mass labels on Y and elapsed time on X.
func (r *scopeRenderer) drawGrid(p plot) {
	const numHLines, numVLines = 8, 10

	for i := range numHLines + 1 {
		y := p.y + float32(i)*p.h/numHLines
		r.line(gridColor, 1, fyne.NewPos(p.x, y), fyne.NewPos(p.x+p.w, y))

		value := p.yMax - float64(i)*(p.yMax-p.yMin)/numHLines
		r.text(formatMass(value, p.yMax-p.yMin), labelColor, 10, fyne.TextAlignTrailing, fyne.NewPos(p.x-5, y-6))
	}

	span := p.xMax.Sub(p.xMin)
	for i := range numVLines + 1 {
		x := p.x + float32(i)*p.w/numVLines
		r.line(gridColor, 1, fyne.NewPos(x, p.y), fyne.NewPos(x, p.y+p.h))

		offset := span * time.Duration(i) / numVLines
		r.text(formatTime(offset), labelColor, 10, fyne.TextAlignCenter, fyne.NewPos(x-20, p.y+p.h+5))
	}
}

// drawTrace draws the mass trace; stretches recorded while calibrating are
// drawn in a different colour.
func (r *scopeRenderer) drawTrace(p plot, points []Point) {
	for i := range len(points) - 1 {
		c := massColor
		if points[i].Calibrating || points[i+1].Calibrating {
			c = calibratingColor
		}
		r.line(c, 1.5,
			p.pos(points[i].Timestamp, points[i].Mass),
			p.pos(points[i+1].Timestamp, points[i+1].Mass),
		)
	}
}

func (r *scopeRenderer) drawMarkers(p plot, markers []Marker) {
	for _, m := range markers {
		if m.Timestamp.Before(p.xMin) || m.Timestamp.After(p.xMax) {
			continue
		}
		top := p.pos(m.Timestamp, p.yMax)
		bottom := p.pos(m.Timestamp, p.yMin)
		r.line(markerColor, 1, top, bottom)
		r.text(m.Label, markerColor, 11, fyne.TextAlignLeading, fyne.NewPos(top.X+3, top.Y))
	}
}

func (r *scopeRenderer) drawReadout(p plot, last Point) {
	label := formatMass(last.Mass, p.yMax-p.yMin) + " " + r.scope.units
	r.text(label, readoutColor, 14, fyne.TextAlignLeading, fyne.NewPos(p.x+10, p.y+10))
}

func (r *scopeRenderer) line(c color.Color, width float32, from, to fyne.Position) {
	l := canvas.NewLine(c)
	l.Position1 = from
	l.Position2 = to
	l.StrokeWidth = width
	r.objects = append(r.objects, l)
}

func (r *scopeRenderer) text(s string, c color.Color, size float32, align fyne.TextAlign, pos fyne.Position) {
	t := canvas.NewText(s, c)
	t.TextSize = size
	t.Alignment = align
	t.Move(pos)
	r.objects = append(r.objects, t)
}

// Objects returns all canvas objects for rendering.
func (r *scopeRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *scopeRenderer) Destroy() {}

// formatMass picks enough decimals to tell grid lines apart over the given span.
func formatMass(v, span float64) string {
	decimals := 0
	if span > 0 {
		decimals = max(0, int(math.Ceil(-math.Log10(span/10)-1e-9)))
	}
	decimals = min(decimals, 6)
	if math.Abs(v) < math.Pow(10, -float64(decimals))/2 {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

func formatTime(d time.Duration) string {
	if d < time.Second {
		return strconv.FormatFloat(d.Seconds(), 'f', 2, 64) + "s"
	}
	return strconv.FormatFloat(d.Seconds(), 'f', 1, 64) + "s"
}
