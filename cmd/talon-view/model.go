package main

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"talon/pkg/stream"
)

// Messages bridged from the gateway client bus.
type (
	startMsg    stream.Start
	chunkMsg    stream.Chunk
	replaceMsg  stream.Replace
	endMsg      stream.End
	toolMsg     stream.Tool
	subagentMsg stream.SubagentDetected
	connMsg     struct{ connected bool }
	configMsg   struct{}
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	toolStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("242")).Italic(true)
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	subagentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// model holds the transcript state for the viewer.
type model struct {
	pin         string
	vp          viewport.Model
	ready       bool
	connected   bool
	streaming   bool
	transcript  []string
	current     string // text of the in-flight response
	subagents   []string
	staleConfig bool
}

func newModel(pin string) model {
	return model{pin: pin, connected: true}
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		if !m.ready {
			m.vp = viewport.New(msg.Width, msg.Height-2)
			m.ready = true
		} else {
			m.vp.Width = msg.Width
			m.vp.Height = msg.Height - 2
		}
		m.refresh()
		return m, nil

	case startMsg:
		m.streaming = true
		m.current = ""
		m.refresh()
		return m, nil

	case chunkMsg:
		m.current += msg.Text
		m.refresh()
		return m, nil

	case replaceMsg:
		// The reconciled text regressed; substitute wholesale.
		m.current = msg.Text
		m.refresh()
		return m, nil

	case toolMsg:
		if msg.Invocation.Phase == "start" {
			m.transcriptLine(toolStyle.Render("⚙ " + msg.Invocation.Name))
		}
		m.refresh()
		return m, nil

	case endMsg:
		m.streaming = false
		if m.current != "" {
			m.transcriptLine(m.current)
			m.current = ""
		}
		if msg.Err != "" {
			m.transcriptLine(errStyle.Render("run failed: " + msg.Err))
		}
		m.refresh()
		return m, nil

	case subagentMsg:
		m.noteSubagent(msg.SessionKey)
		m.refresh()
		return m, nil

	case connMsg:
		m.connected = msg.connected
		return m, nil

	case configMsg:
		m.staleConfig = true
		return m, nil
	}

	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m model) View() string {
	if !m.ready {
		return "loading..."
	}
	return m.header() + "\n" + m.vp.View() + "\n" + m.footer()
}

func (m model) header() string {
	title := "talon-view"
	if m.pin != "" {
		title += " · " + m.pin
	}
	return headerStyle.Render(title)
}

func (m model) footer() string {
	parts := []string{"q quit"}
	if !m.connected {
		parts = append(parts, errStyle.Render("disconnected, reconnecting..."))
	}
	if m.streaming {
		parts = append(parts, "streaming")
	}
	if m.staleConfig {
		parts = append(parts, subagentStyle.Render("config changed, restart to apply"))
	}
	for _, key := range m.subagents {
		parts = append(parts, subagentStyle.Render("subagent: "+key))
	}
	return statusStyle.Render(strings.Join(parts, "  ·  "))
}

func (m *model) transcriptLine(line string) {
	m.transcript = append(m.transcript, line)
}

func (m *model) noteSubagent(key string) {
	for _, k := range m.subagents {
		if k == key {
			return
		}
	}
	m.subagents = append(m.subagents, key)
}

// refresh rebuilds the viewport content from the settled transcript plus
// the in-flight response, pinned to the bottom.
func (m *model) refresh() {
	if !m.ready {
		return
	}
	content := strings.Join(m.transcript, "\n\n")
	if m.current != "" {
		if content != "" {
			content += "\n\n"
		}
		content += m.current
	}
	m.vp.SetContent(content)
	m.vp.GotoBottom()
}
