// Package tui runs a scene live in the terminal.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/san-kum/novabind/internal/metrics"
	"github.com/san-kum/novabind/internal/scene"
	"github.com/san-kum/novabind/internal/sim"
	"github.com/san-kum/novabind/internal/viz"
	"github.com/san-kum/novabind/nova"
)

const (
	canvasWidth     = 60
	canvasHeight    = 20
	historyCapacity = 300
	frameRate       = time.Second / 60
)

var (
	canvasStyle = lipgloss.NewStyle().Padding(1, 2)
	statsStyle  = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2).
			Width(42)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
)

var broadphases = []nova.Broadphase{nova.BVH, nova.SpatialHash, nova.BruteForce}

type TickMsg time.Time

// Builder creates a fresh world; the model calls it on start and on reset.
type Builder func() (*scene.World, error)

// Model steps a World on every tick and draws it.
type Model struct {
	build   Builder
	world   *scene.World
	dt      float64
	t       float64
	running bool
	help    bool
	theme   viz.Theme
	canvas  *viz.Canvas
	camera  viz.Camera
	energy  []float64
	hits    []nova.RayCastResult
	err     error
	log     *zap.Logger
}

func NewModel(build Builder, log *zap.Logger) (*Model, error) {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Model{
		build:   build,
		running: true,
		theme:   viz.Themes[0],
		canvas:  viz.NewCanvas(canvasWidth, canvasHeight),
		log:     log,
	}
	if err := m.reset(); err != nil {
		return nil, err
	}
	return m, nil
}

func tick() tea.Cmd {
	return tea.Tick(frameRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m *Model) Init() tea.Cmd { return tick() }

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ", "space":
			m.running = !m.running
		case ".":
			if !m.running {
				m.step()
			}
		case "r":
			m.err = m.reset()
		case "t":
			m.theme = m.theme.Next()
		case "b":
			m.err = m.cycleBroadphase()
		case "?":
			m.help = !m.help
		}
	case TickMsg:
		if m.running && m.err == nil {
			m.step()
		}
		return m, tick()
	}
	return m, nil
}

// reset closes the current world and builds a new one.
func (m *Model) reset() error {
	if m.world != nil {
		if err := m.world.Close(); err != nil {
			m.log.Warn("close world", zap.Error(err))
		}
		m.world = nil
	}
	w, err := m.build()
	if err != nil {
		return err
	}
	m.world = w
	m.dt = w.Scene.Dt
	m.t = 0
	m.energy = m.energy[:0]
	m.hits = nil
	m.fitCamera()
	return nil
}

func (m *Model) fitCamera() {
	box, ok := viz.Bounds(m.world)
	if !ok {
		m.camera = viz.Camera{Scale: 4}
		return
	}
	if r := m.world.Scene.Ray; r != nil {
		box = box.Union(nova.AABB{Min: r.From, Max: r.From}).Union(nova.AABB{Min: r.To, Max: r.To})
	}
	m.camera = viz.Fit(m.canvas, box)
}

func (m *Model) cycleBroadphase() error {
	if m.world == nil {
		return m.err
	}
	cur, err := m.world.Space.Broadphase()
	if err != nil {
		return err
	}
	next := broadphases[0]
	for i, b := range broadphases {
		if b == cur {
			next = broadphases[(i+1)%len(broadphases)]
		}
	}
	return m.world.Space.SetBroadphase(next)
}

func (m *Model) step() {
	if m.world == nil {
		return
	}
	if err := m.world.Space.Step(m.dt); err != nil {
		m.err = err
		m.running = false
		return
	}
	m.t += m.dt

	f, err := sim.Sample(m.world)
	if err != nil {
		m.err = err
		return
	}
	m.energy = append(m.energy, metrics.Kinetic(f))
	if len(m.energy) > historyCapacity {
		m.energy = m.energy[1:]
	}

	if r := m.world.Scene.Ray; r != nil {
		m.hits, m.err = m.world.Space.CastRay(r.From, r.To)
	}
}

func (m *Model) draw() {
	m.canvas.Clear()
	if err := viz.DrawWorld(m.canvas, m.camera, m.world); err != nil {
		m.log.Debug("draw", zap.Error(err))
	}
	if r := m.world.Scene.Ray; r != nil {
		viz.DrawRay(m.canvas, m.camera, r.From, r.To, m.hits)
	}
}

func (m *Model) View() string {
	if m.world == nil {
		return fmt.Sprintf("error: %v\n", m.err)
	}
	m.draw()
	view := canvasStyle.Render(m.theme.Style(m.theme.Bodies).Render(m.canvas.String()))
	return lipgloss.JoinHorizontal(lipgloss.Top, view, statsStyle.Render(m.stats()))
}

func (m *Model) stats() string {
	var s strings.Builder
	s.WriteString(viz.GradientText(strings.ToUpper(m.world.Scene.Name), m.theme.Bodies, m.theme.Accent) + "\n")

	status := viz.StatusRunning.Render("RUNNING")
	if !m.running {
		status = viz.StatusPaused.Render("PAUSED")
	}
	s.WriteString(status + "\n\n")

	row := func(label, value string) {
		s.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
	}
	row("Time", fmt.Sprintf("%.2fs", m.t))
	row("Bodies", fmt.Sprintf("%d", m.world.Space.BodyCount()))
	row("Joints", fmt.Sprintf("%d", m.world.Space.ConstraintCount()))
	if bp, err := m.world.Space.Broadphase(); err == nil {
		row("Broadphase", bp.String())
	}
	row("Step", m.world.Space.Profiler().Step.String())
	if n := len(m.energy); n > 0 {
		row("Kinetic", fmt.Sprintf("%.3f", m.energy[n-1]))
		s.WriteString(viz.Sparkline(m.energy, 30) + "\n")
	}
	if m.world.Scene.Ray != nil {
		row("Ray hits", fmt.Sprintf("%d", len(m.hits)))
	}
	if m.err != nil {
		s.WriteString("\n" + m.theme.Style(m.theme.Error).Render(m.err.Error()) + "\n")
	}

	s.WriteString("\n" + viz.Separator(36) + "\n")
	if m.help {
		s.WriteString(viz.KeyHint.Render("space pause  . step  r reset\nb broadphase  t theme  q quit") + "\n")
	} else {
		s.WriteString(viz.KeyHint.Render("? help") + "\n")
	}
	return s.String()
}

// Close releases the current world.
func (m *Model) Close() error {
	if m.world == nil {
		return nil
	}
	err := m.world.Close()
	m.world = nil
	return err
}

// Run starts the program and releases the world on exit.
func Run(build Builder, log *zap.Logger) error {
	m, err := NewModel(build, log)
	if err != nil {
		return err
	}
	defer m.Close()
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
