package viz

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/novabind/internal/config"
	"github.com/san-kum/novabind/internal/scene"
	"github.com/san-kum/novabind/internal/storage"
	"github.com/san-kum/novabind/native/chipmunk"
	"github.com/san-kum/novabind/nova"
)

func TestCanvasPixels(t *testing.T) {
	c := NewCanvas(4, 2)
	w, h := c.PixelSize()
	assert.Equal(t, 8, w)
	assert.Equal(t, 8, h)

	c.Set(3, 5)
	assert.True(t, c.IsSet(3, 5))
	assert.False(t, c.IsSet(2, 5))

	c.Unset(3, 5)
	assert.False(t, c.IsSet(3, 5))

	// out of range writes are dropped
	c.Set(-1, 0)
	c.Set(100, 100)
	assert.Equal(t, strings.Repeat(string(rune(brailleBlank)), 4)+"\n", strings.SplitAfter(c.String(), "\n")[0])
}

func TestCanvasLineAndCircle(t *testing.T) {
	c := NewCanvas(10, 5)
	c.DrawLine(0, 0, 19, 19)
	assert.True(t, c.IsSet(0, 0))
	assert.True(t, c.IsSet(19, 19))
	assert.True(t, c.IsSet(10, 10))

	c.Clear()
	c.DrawCircle(10, 10, 4)
	assert.True(t, c.IsSet(14, 10))
	assert.True(t, c.IsSet(10, 6))
	assert.False(t, c.IsSet(10, 10))
}

func TestCameraProject(t *testing.T) {
	c := NewCanvas(20, 10)
	cam := Camera{Center: nova.V(1, 1), Scale: 2}

	x, y := cam.Project(c, nova.V(1, 1))
	assert.Equal(t, 20, x)
	assert.Equal(t, 20, y)

	// world up is canvas up
	_, y2 := cam.Project(c, nova.V(1, 3))
	assert.Less(t, y2, y)
}

func TestDrawWorld(t *testing.T) {
	e := chipmunk.New()
	w, err := scene.Build(e, config.GetPreset("pendulum"), nil)
	require.NoError(t, err)
	defer w.Close()

	c := NewCanvas(60, 20)
	box, ok := Bounds(w)
	require.True(t, ok)
	require.NoError(t, DrawWorld(c, Fit(c, box), w))

	lit := 0
	for _, row := range c.Grid {
		for _, r := range row {
			if r != brailleBlank {
				lit++
			}
		}
	}
	assert.Positive(t, lit)
}

func TestSparkline(t *testing.T) {
	assert.Equal(t, "─────", Sparkline(nil, 5))

	s := Sparkline([]float64{1, 2, 3, 4, 5, 6, 7, 8}, 4)
	assert.Equal(t, 4, lipgloss.Width(s))
}

func TestProgressBarClamps(t *testing.T) {
	assert.Equal(t, 10, lipgloss.Width(ProgressBar(1.5, 10)))
	assert.Equal(t, 10, lipgloss.Width(ProgressBar(-1, 10)))
}

func TestParseHex(t *testing.T) {
	r, g, b := parseHex("#0a80ff")
	assert.Equal(t, []int{10, 128, 255}, []int{r, g, b})

	r, g, b = parseHex("nope")
	assert.Equal(t, []int{255, 255, 255}, []int{r, g, b})

	assert.Empty(t, GradientText("", "#000000", "#ffffff"))
}

func TestThemeCycle(t *testing.T) {
	th := GetTheme("missing")
	assert.Equal(t, Themes[0].Name, th.Name)

	seen := map[string]bool{}
	for range Themes {
		seen[th.Name] = true
		th = th.Next()
	}
	assert.Len(t, seen, len(Themes))
	assert.Equal(t, Themes[0].Name, th.Name)
}

func TestPlot(t *testing.T) {
	assert.Empty(t, Plot(nil, 5, 20, "x"))
	assert.Contains(t, Plot([]float64{0, 1, 0, 1}, 5, 20, "energy"), "energy")
}

func TestTables(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ProfileTable(&buf, nova.Profiler{Step: time.Millisecond}))
	assert.Contains(t, buf.String(), "narrowphase")

	buf.Reset()
	require.NoError(t, RunsTable(&buf, []storage.RunMetadata{{
		ID:        "pendulum_abcd",
		Timestamp: time.Now(),
		Steps:     10,
		RunInfo:   storage.RunInfo{Scene: "pendulum", Engine: "chipmunk"},
	}}))
	assert.Contains(t, buf.String(), "pendulum_abcd")

	buf.Reset()
	require.NoError(t, MetricsTable(&buf, []string{"max_speed"}, map[string]float64{"max_speed": 2.5}))
	assert.Contains(t, buf.String(), "2.5")
}

func TestGenericTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Table(&buf, []string{"A", "B"}, [][]string{{"left", "right"}}))
	assert.Contains(t, buf.String(), "left")
	assert.Contains(t, buf.String(), "right")
}
