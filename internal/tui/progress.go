package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/san-kum/novabind/internal/metrics"
	"github.com/san-kum/novabind/internal/sim"
	"github.com/san-kum/novabind/internal/viz"
)

const (
	hideCursor = "\033[?25l"
	showCursor = "\033[?25h"
	barWidth   = 30
)

// Progress is a sim.Observer that redraws one status line per frame while
// a batch run steps.
type Progress struct {
	w         io.Writer
	scene     string
	duration  float64
	frameRate int
	lastFrame time.Time
	frames    int
}

// NewProgress draws at most frameRate lines per second; frameRate <= 0
// draws on every step.
func NewProgress(w io.Writer, scene string, duration float64, frameRate int) *Progress {
	return &Progress{w: w, scene: scene, duration: duration, frameRate: frameRate}
}

func (p *Progress) OnStep(f sim.Frame, t float64) {
	if p.frameRate > 0 {
		if time.Since(p.lastFrame) < time.Second/time.Duration(p.frameRate) {
			return
		}
		p.lastFrame = time.Now()
	}
	p.frames++

	frac := 0.0
	if p.duration > 0 {
		frac = t / p.duration
	}
	var b strings.Builder
	b.WriteString("\r  ")
	b.WriteString(p.scene)
	b.WriteString("  ")
	b.WriteString(viz.ProgressBar(frac, barWidth))
	fmt.Fprintf(&b, "  t=%.2fs  bodies=%d  ke=%.3f", t, len(f), metrics.Kinetic(f))
	io.WriteString(p.w, b.String())
}

// Frames is the number of lines drawn so far.
func (p *Progress) Frames() int { return p.frames }

func (p *Progress) Start() { io.WriteString(p.w, hideCursor) }

// Stop ends the status line and restores the cursor.
func (p *Progress) Stop() { io.WriteString(p.w, "\n"+showCursor) }
