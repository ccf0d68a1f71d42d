package main

import (
	"bytes"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/widget"
)

// lineWriter splits written text into lines and hands each complete line to onLine.
type lineWriter struct {
	mu      sync.Mutex
	partial bytes.Buffer
	onLine  func(line string)
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.partial.Write(p)
	for {
		line, err := w.partial.ReadString('\n')
		if err != nil {
			// Incomplete line, keep it for the next write.
			w.partial.Reset()
			w.partial.WriteString(line)
			return len(p), nil
		}
		w.onLine(strings.TrimRight(line, "\r\n"))
	}
}

// logView shows the most recent report lines.
type logView struct {
	*widget.List

	maxLines int
	lines    []string
}

func newLogView(maxLines int) *logView {
	v := &logView{maxLines: maxLines}
	v.List = widget.NewList(
		func() int { return len(v.lines) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(id widget.ListItemID, o fyne.CanvasObject) {
			o.(*widget.Label).SetText(v.lines[id])
		},
	)
	return v
}

// Append adds a line; call it on the main thread.
func (v *logView) Append(line string) {
	v.lines = append(v.lines, line)
	if len(v.lines) > v.maxLines {
		v.lines = append(v.lines[:0], v.lines[len(v.lines)-v.maxLines:]...)
	}
	v.Refresh()
	v.ScrollToBottom()
}

// Writer returns an io.Writer that appends each line on the main thread.
func (v *logView) Writer() *lineWriter {
	return &lineWriter{onLine: func(line string) {
		fyne.Do(func() { v.Append(line) })
	}}
}
