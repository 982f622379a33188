// Package export writes canvases and trajectories as SVG.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/san-kum/novabind/internal/viz"
	"github.com/san-kum/novabind/nova"
)

const background = "#0a0a0a"

// WriteCanvasSVG draws every lit sub-pixel of c as a dot, scale units apart.
func WriteCanvasSVG(w io.Writer, c *viz.Canvas, scale float64, color string) error {
	if c == nil {
		return fmt.Errorf("nil canvas")
	}
	pw, ph := c.PixelSize()
	width, height := float64(pw)*scale, float64(ph)*scale

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="%s"/>
<g fill="%s">
`, width, height, width, height, background, color)

	r := scale * 0.4
	for y := 0; y < ph; y++ {
		for x := 0; x < pw; x++ {
			if c.IsSet(x, y) {
				fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"%.1f\"/>\n",
					float64(x)*scale+scale/2, float64(y)*scale+scale/2, r)
			}
		}
	}
	sb.WriteString("</g>\n</svg>\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

// WriteTrajectorySVG draws points as one polyline fitted to width x height
// with a 10% margin. Fewer than two points is an error.
func WriteTrajectorySVG(w io.Writer, points []nova.Vec2, width, height int, stroke string) error {
	if len(points) < 2 {
		return fmt.Errorf("trajectory needs at least 2 points, got %d", len(points))
	}

	box := nova.AABB{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		box = box.Union(nova.AABB{Min: p, Max: p})
	}
	rx, ry := max(box.Width(), 1e-9), max(box.Height(), 1e-9)
	box.Min = box.Min.Sub(nova.V(rx*0.1, ry*0.1))
	rx, ry = rx*1.2, ry*1.2

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
<path fill="none" stroke="%s" stroke-width="1.5" d="`,
		width, height, width, height, background, stroke)

	for i, p := range points {
		x := (p.X - box.Min.X) / rx * float64(width)
		y := float64(height) - (p.Y-box.Min.Y)/ry*float64(height)
		cmd := "L"
		if i == 0 {
			cmd = "M"
		}
		fmt.Fprintf(&sb, "%s%.1f,%.1f ", cmd, x, y)
	}
	sb.WriteString("\"/>\n</svg>\n")

	_, err := io.WriteString(w, sb.String())
	return err
}
