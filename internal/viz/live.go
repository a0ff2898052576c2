package viz

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/pbdsim/internal/experiment"
	"github.com/san-kum/pbdsim/internal/metrics"
)

const (
	width           = 80
	height          = 24
	historyCapacity = 600
	scrubStep       = 0.25
)

type TickMsg time.Time

// Model runs a scene one frame per tick and draws its ropes.
type Model struct {
	scene *experiment.Scene
	name  string

	canvas *Canvas
	camera *Camera
	energy *metrics.KineticEnergy

	frameDelta    float64
	running       bool
	showHelp      bool
	energyHistory []float64
	err           error
}

func NewModel(s *experiment.Scene, name string) Model {
	m := Model{
		scene:         s,
		name:          name,
		canvas:        NewCanvas(width, height),
		camera:        NewCamera(),
		energy:        metrics.NewKineticEnergy(),
		frameDelta:    s.Config().FrameDelta(),
		running:       true,
		energyHistory: make([]float64, 0, historyCapacity),
	}
	w, h := m.canvas.Dots()
	m.camera.Fit(m.positions(), w, h)
	m.draw()
	return m
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/60, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd { return tick() }

// Update handles input events and advances the scene.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.handleKey(msg.String())
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case TickMsg:
		if m.running {
			m.step()
		}
		m.draw()
		return m, tick()
	}
	return m, nil
}

func (m *Model) handleKey(key string) {
	b := m.scene.Baker
	switch key {
	case " ":
		m.running = !m.running
	case "r":
		m.reset()
	case "b":
		b.SetBaking(!b.Baking())
	case "p":
		if !b.Playing() {
			b.Playhead = 0
		}
		b.SetPlaying(!b.Playing())
	case "[":
		m.scrub(-scrubStep)
	case "]":
		m.scrub(scrubStep)
	case "x":
		m.camera.RotatePitch(0.1)
	case "X":
		m.camera.RotatePitch(-0.1)
	case "y":
		m.camera.RotateYaw(0.1)
	case "Y":
		m.camera.RotateYaw(-0.1)
	case "+", "=":
		m.camera.ZoomIn()
	case "-", "_":
		m.camera.ZoomOut()
	case "f":
		w, h := m.canvas.Dots()
		m.camera.Fit(m.positions(), w, h)
	case "t":
		NextTheme()
	case "?":
		m.showHelp = !m.showHelp
	}
}

// step advances the scene by one frame.
func (m *Model) step() {
	d := m.scene.Driver
	d.Frame(m.frameDelta)

	m.energy.Observe(d.Arena(), d.Time())
	m.energyHistory = append(m.energyHistory, m.energy.Value())
	if len(m.energyHistory) > historyCapacity {
		m.energyHistory = m.energyHistory[1:]
	}
}

// scrub moves the playhead while playing back.
func (m *Model) scrub(dt float64) {
	b := m.scene.Baker
	if !b.Playing() {
		return
	}
	b.Playhead = math.Max(0, math.Min(b.Cache().Duration(), b.Playhead+dt))
	m.err = b.PlaybackFrame(b.Playhead)
}

// reset puts every rope back in its generated shape.
func (m *Model) reset() {
	for _, r := range m.scene.Ropes {
		r.ResetActor()
	}
	m.energyHistory = m.energyHistory[:0]
	m.energy.Reset()
}

func (m *Model) positions() []r3.Vec {
	var out []r3.Vec
	for _, r := range m.scene.Ropes {
		for i := 0; i < r.UsedParticles(); i++ {
			out = append(out, r.ParticlePosition(i))
		}
	}
	return out
}

// draw renders every rope's active particles as a polyline.
func (m *Model) draw() {
	m.canvas.Clear()
	w, h := m.canvas.Dots()
	ar := m.scene.Driver.Arena()

	for _, r := range m.scene.Ropes {
		if !r.InArena() {
			continue
		}
		n := r.UsedParticles()
		type pt struct {
			x, y int
			ok   bool
		}
		pts := make([]pt, n)
		for i := 0; i < n; i++ {
			if !ar.IsActive(r.Slot(i)) {
				continue
			}
			x, y, _, _ := m.camera.Project(r.ParticlePosition(i), w, h)
			pts[i] = pt{x, y, true}
			if r.InvMasses[i] == 0 {
				m.canvas.Dot(x, y, 1)
			}
		}
		for i := 0; i+1 < n; i++ {
			if pts[i].ok && pts[i+1].ok {
				m.canvas.DrawLine(pts[i].x, pts[i].y, pts[i+1].x, pts[i+1].y)
			}
		}
		if r.Closed() && n > 2 && pts[0].ok && pts[n-1].ok {
			m.canvas.DrawLine(pts[n-1].x, pts[n-1].y, pts[0].x, pts[0].y)
		}
	}
}

func (m Model) status() string {
	b := m.scene.Baker
	switch {
	case b.Playing() && !m.running:
		return fmt.Sprintf("PLAYBACK PAUSED (%.2fs)", b.Playhead)
	case b.Playing():
		return fmt.Sprintf("PLAYBACK (%.2fs)", b.Playhead)
	case !m.running:
		return "PAUSED"
	case b.Baking():
		return "RECORDING"
	}
	return "RUNNING"
}

// View renders the TUI interface.
func (m Model) View() string {
	st := currentStyles()
	d := m.scene.Driver
	ar := d.Arena()
	c := m.scene.Cache

	canvasView := lipgloss.NewStyle().Padding(1, 2).Render(m.canvas.String())

	var s strings.Builder
	s.WriteString(st.header.Render(strings.ToUpper(m.name)) + "\n")
	s.WriteString(st.accent.Render(m.status()) + "\n")
	if m.err != nil {
		s.WriteString(st.warn.Render(m.err.Error()) + "\n")
	}
	s.WriteString("\n")

	if len(m.energyHistory) > 1 {
		chart := asciigraph.Plot(m.energyHistory, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Kinetic energy"))
		s.WriteString(st.graph.Render(chart) + "\n\n")
	}

	row := func(label, value string) {
		s.WriteString(st.label.Render(label) + st.value.Render(value) + "\n")
	}
	row("Time", fmt.Sprintf("%.2fs", d.Time()))
	row("Steps", fmt.Sprintf("%d", d.Steps()))
	row("Ropes", fmt.Sprintf("%d", len(m.scene.Ropes)))
	row("Particles", fmt.Sprintf("%d/%d", len(ar.ActiveIndices()), ar.Capacity()))
	row("Cache", fmt.Sprintf("%d frames, %.2fs", c.FrameCount(), c.Duration()))

	values := d.MetricValues()
	names := make([]string, 0, len(values))
	for n := range values {
		names = append(names, n)
	}
	sort.Strings(names)
	s.WriteString("\nMETRICS\n")
	for _, n := range names {
		row(n, fmt.Sprintf("%.3f", values[n]))
	}

	s.WriteString(st.help.Render("─────────────────────\nSP:Pause R:Reset Q:Quit\nB:Record P:Play [ ]:Scrub\nX/Y:Rotate +/-:Zoom ?:Help"))
	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, st.stats.Render(s.String()))
	if m.showHelp {
		return helpText + "\n\n" + mainView
	}
	return mainView
}

const helpText = `
╔══════════════════════════════════════╗
║           KEYBOARD SHORTCUTS         ║
╠══════════════════════════════════════╣
║  Space    - Pause/Resume             ║
║  R        - Reset ropes              ║
║  Q        - Quit                     ║
║  B        - Toggle recording         ║
║  P        - Toggle cache playback    ║
║  [ ]      - Scrub playback           ║
║  X / Y    - Rotate camera            ║
║  + / -    - Zoom                     ║
║  F        - Fit camera               ║
║  T        - Cycle themes             ║
║  ?        - Toggle this help         ║
╚══════════════════════════════════════╝`

// Run starts the live view on s and blocks until the user quits.
func Run(s *experiment.Scene, name string) error {
	_, err := tea.NewProgram(NewModel(s, name), tea.WithAltScreen()).Run()
	return err
}
