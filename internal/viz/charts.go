package viz

import (
	"fmt"
	"io"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/olekukonko/tablewriter"

	"github.com/san-kum/novabind/internal/storage"
	"github.com/san-kum/novabind/nova"
)

// Plot renders series as an ASCII line chart. Empty series render as "".
func Plot(series []float64, height, width int, caption string) string {
	if len(series) == 0 {
		return ""
	}
	return asciigraph.Plot(series,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}

func appendRow(t *tablewriter.Table, cells ...string) error {
	row := make([]any, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return t.Append(row...)
}

// RunsTable lists stored runs, newest first.
func RunsTable(w io.Writer, runs []storage.RunMetadata) error {
	t := tablewriter.NewWriter(w)
	t.Header("ID", "Scene", "Engine", "Steps", "Bodies", "Time")
	for _, r := range runs {
		if err := appendRow(t,
			r.ID,
			r.Scene,
			r.Engine,
			fmt.Sprintf("%d", r.Steps),
			fmt.Sprintf("%d", len(r.Bodies)),
			r.Timestamp.Format(time.DateTime),
		); err != nil {
			return err
		}
	}
	return t.Render()
}

// ProfileTable prints the phases of one step profile.
func ProfileTable(w io.Writer, p nova.Profiler) error {
	t := tablewriter.NewWriter(w)
	t.Header("Phase", "Duration")
	for _, ph := range p.Phases() {
		if err := appendRow(t, ph.Name, ph.Duration.String()); err != nil {
			return err
		}
	}
	return t.Render()
}

// HitsTable prints ray hits with the scene names of the bodies they hit.
func HitsTable(w io.Writer, hits []nova.RayCastResult, name func(*nova.RigidBody) string) error {
	t := tablewriter.NewWriter(w)
	t.Header("Body", "Point", "Normal", "Fraction")
	for _, h := range hits {
		if err := appendRow(t,
			name(h.Body),
			h.Position.String(),
			h.Normal.String(),
			fmt.Sprintf("%.4f", h.Fraction),
		); err != nil {
			return err
		}
	}
	return t.Render()
}

// MetricsTable prints name/value pairs in the given order.
func MetricsTable(w io.Writer, names []string, values map[string]float64) error {
	t := tablewriter.NewWriter(w)
	t.Header("Metric", "Value")
	for _, n := range names {
		if err := appendRow(t, n, fmt.Sprintf("%.6g", values[n])); err != nil {
			return err
		}
	}
	return t.Render()
}

// Table prints rows under header.
func Table(w io.Writer, header []string, rows [][]string) error {
	t := tablewriter.NewWriter(w)
	h := make([]any, len(header))
	for i, c := range header {
		h[i] = c
	}
	t.Header(h...)
	for _, r := range rows {
		if err := appendRow(t, r...); err != nil {
			return err
		}
	}
	return t.Render()
}
