package viz

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/pbdsim/internal/config"
	"github.com/san-kum/pbdsim/internal/experiment"
)

var presetInfo = map[string]string{
	"hanging": "rope pinned at one end",
	"bridge":  "rope pinned at both ends",
	"loop":    "closed loop hanging",
	"pair":    "two ropes, one with drag",
}

const (
	stateMenu = iota
	stateConfig
	stateSim
)

var editable = []string{"gravity", "damping", "iterations", "fixed_dt", "thickness"}

func paramValue(c *config.Config, name string) float64 {
	v, _ := c.Param(name)
	return v
}

type app struct {
	state, cursor int
	presets       []string
	selected      string
	cfg           *config.Config
	paramCursor   int
	editing       bool
	editBuf       string
	err           error
	liveModel     Model
}

func NewInteractiveApp() *app {
	return &app{state: stateMenu, presets: config.ListPresets()}
}

func (m app) Init() tea.Cmd { return nil }

func (m app) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	default:
		if m.state == stateSim {
			newLive, cmd := m.liveModel.Update(msg)
			m.liveModel = newLive.(Model)
			return m, cmd
		}
	}
	return m, nil
}

func (m app) handleKey(msg tea.KeyMsg) (app, tea.Cmd) {
	switch m.state {
	case stateMenu:
		return m.menuKey(msg)
	case stateConfig:
		return m.configKey(msg)
	case stateSim:
		newLive, cmd := m.liveModel.Update(msg)
		m.liveModel = newLive.(Model)
		return m, cmd
	}
	return m, nil
}

func (m app) menuKey(msg tea.KeyMsg) (app, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.presets)-1 {
			m.cursor++
		}
	case "enter", " ":
		m.selected = m.presets[m.cursor]
		m.cfg = config.GetPreset(m.selected)
		m.state, m.paramCursor, m.err = stateConfig, 0, nil
	}
	return m, nil
}

func (m app) configKey(msg tea.KeyMsg) (app, tea.Cmd) {
	name := editable[m.paramCursor]
	if m.editing {
		switch msg.String() {
		case "enter":
			var val float64
			if _, err := fmt.Sscanf(m.editBuf, "%f", &val); err == nil {
				_ = m.cfg.SetParam(name, val)
			}
			m.editing, m.editBuf = false, ""
		case "esc":
			m.editing, m.editBuf = false, ""
		case "backspace":
			if len(m.editBuf) > 0 {
				m.editBuf = m.editBuf[:len(m.editBuf)-1]
			}
		default:
			if len(msg.String()) == 1 {
				c := msg.String()[0]
				if (c >= '0' && c <= '9') || c == '.' || c == '-' {
					m.editBuf += string(c)
				}
			}
		}
		return m, nil
	}
	switch msg.String() {
	case "q", "esc":
		m.state = stateMenu
	case "up", "k":
		if m.paramCursor > 0 {
			m.paramCursor--
		}
	case "down", "j":
		if m.paramCursor < len(editable)-1 {
			m.paramCursor++
		}
	case "enter", " ":
		m.editing, m.editBuf = true, fmt.Sprintf("%g", paramValue(m.cfg, name))
	case "s":
		return m.start()
	case "left", "h":
		_ = m.cfg.SetParam(name, paramValue(m.cfg, name)*0.9)
	case "right", "l":
		_ = m.cfg.SetParam(name, paramValue(m.cfg, name)*1.1)
	}
	return m, nil
}

func (m app) start() (app, tea.Cmd) {
	s, err := experiment.Build(context.Background(), m.cfg)
	if err != nil {
		m.err = err
		return m, nil
	}
	m.liveModel = NewModel(s, m.selected)
	m.state = stateSim
	return m, m.liveModel.Init()
}

func (m app) View() string {
	switch m.state {
	case stateMenu:
		return m.viewMenu()
	case stateConfig:
		return m.viewConfig()
	case stateSim:
		return m.liveModel.View()
	}
	return ""
}

func keyHints(pairs ...string) string {
	key := lipgloss.NewStyle().Foreground(CurrentTheme.Primary).Bold(true)
	text := lipgloss.NewStyle().Foreground(CurrentTheme.Muted)
	var b strings.Builder
	for i := 0; i+1 < len(pairs); i += 2 {
		b.WriteString(key.Render(pairs[i]) + text.Render(" "+pairs[i+1]+"  "))
	}
	return b.String()
}

func (m app) title(name, sub string) string {
	h := lipgloss.NewStyle().Foreground(CurrentTheme.Primary).Bold(true)
	muted := lipgloss.NewStyle().Foreground(CurrentTheme.Muted)
	return "\n\n    " + h.Render(name) + "\n    " + muted.Render(sub) + "\n    " + muted.Render("─────────────────────────") + "\n\n"
}

func (m app) viewMenu() string {
	var b strings.Builder
	b.WriteString(m.title("PBDSIM", "position based rope simulation"))
	sel := lipgloss.NewStyle().Foreground(CurrentTheme.Text).Bold(true)
	accent := lipgloss.NewStyle().Foreground(CurrentTheme.Accent)
	muted := lipgloss.NewStyle().Foreground(CurrentTheme.Muted)
	for i, name := range m.presets {
		if i == m.cursor {
			b.WriteString(fmt.Sprintf("    ▸ %s  %s\n", sel.Render(fmt.Sprintf("%-10s", name)), accent.Render(presetInfo[name])))
		} else {
			b.WriteString(fmt.Sprintf("      %s  %s\n", muted.Render(fmt.Sprintf("%-10s", name)), muted.Render(presetInfo[name])))
		}
	}
	b.WriteString("\n    " + keyHints("j/k", "navigate", "enter", "select", "q", "quit") + "\n")
	return b.String()
}

func (m app) viewConfig() string {
	var b strings.Builder
	b.WriteString(m.title(strings.ToUpper(m.selected), presetInfo[m.selected]))
	sel := lipgloss.NewStyle().Foreground(CurrentTheme.Text).Bold(true)
	accent := lipgloss.NewStyle().Foreground(CurrentTheme.Accent).Bold(true)
	muted := lipgloss.NewStyle().Foreground(CurrentTheme.Muted)
	for i, name := range editable {
		val := fmt.Sprintf("%8.3f", paramValue(m.cfg, name))
		if m.editing && i == m.paramCursor {
			val = fmt.Sprintf("%8s", m.editBuf+"_")
		}
		if i == m.paramCursor {
			b.WriteString(fmt.Sprintf("    ▸ %s %s\n", sel.Render(fmt.Sprintf("%-10s", name)), accent.Render(val)))
		} else {
			b.WriteString(fmt.Sprintf("      %s %s\n", muted.Render(fmt.Sprintf("%-10s", name)), muted.Render(val)))
		}
	}
	if m.err != nil {
		b.WriteString("\n    " + lipgloss.NewStyle().Foreground(CurrentTheme.Warning).Render(m.err.Error()) + "\n")
	}
	b.WriteString("\n    " + keyHints("j/k", "select", "h/l", "adjust", "s", "start", "esc", "back") + "\n")
	return b.String()
}

func RunInteractive() error {
	_, err := tea.NewProgram(NewInteractiveApp(), tea.WithAltScreen()).Run()
	return err
}
