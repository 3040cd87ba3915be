package main

import (
	"image/color"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// maxLogLines bounds the log box; older lines scroll out.
const maxLogLines = 2000

type logView struct {
	mu     sync.Mutex
	lines  []string
	box    *widget.Entry
	scroll *container.Scroll
}

func newLogView() *logView {
	l := &logView{box: widget.NewMultiLineEntry()}
	l.box.Disable()
	l.box.Wrapping = fyne.TextWrapWord
	l.scroll = container.NewVScroll(l.box)
	l.scroll.SetMinSize(fyne.NewSize(800, 180))
	return l
}

func (l *logView) object() fyne.CanvasObject {
	bg := canvas.NewLinearGradient(color.NRGBA{12, 16, 24, 255}, color.NRGBA{20, 28, 40, 255}, 90)
	return container.NewStack(bg, l.scroll)
}

// appendLine adds a timestamped line to the log.
func (l *logView) appendLine(s string) {
	l.mu.Lock()
	l.lines = append(l.lines, time.Now().Format("15:04:05 ")+s)
	if len(l.lines) > maxLogLines {
		l.lines = l.lines[len(l.lines)-maxLogLines:]
	}
	text := strings.Join(l.lines, "\n") + "\n"
	l.mu.Unlock()

	l.box.SetText(text)
	l.scroll.ScrollToBottom()
}

func (l *logView) clear() {
	l.mu.Lock()
	l.lines = nil
	l.mu.Unlock()
	l.box.SetText("")
}
