package components

import (
	"fmt"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"bluepulse/internal/adapter/tui/theme"
)

// ModalModel is a full-screen overlay showing a markdown document, used for
// analysis results and help.
type ModalModel struct {
	Viewport viewport.Model
	Title    string
	Visible  bool
	source   string
	width    int
	height   int
	renderer *glamour.TermRenderer
	wrapW    int
}

// NewModal creates a hidden modal.
func NewModal() ModalModel {
	return ModalModel{}
}

// Open shows the modal with markdown content.
func (m *ModalModel) Open(title, markdown string) {
	m.Title = title
	m.Visible = true
	m.source = markdown
	w, h := m.innerSize()
	m.Viewport = viewport.New(w, h)
	m.Viewport.MouseWheelEnabled = true
	m.Viewport.SetContent(m.render(markdown, w))
}

// SetContent replaces the body of an open modal, keeping the title.
func (m *ModalModel) SetContent(markdown string) {
	if !m.Visible {
		return
	}
	m.source = markdown
	m.Viewport.SetContent(m.render(markdown, m.Viewport.Width))
	m.Viewport.GotoTop()
}

// Close hides the modal.
func (m *ModalModel) Close() {
	m.Visible = false
}

// SetSize updates the modal dimensions.
func (m *ModalModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	if m.Visible {
		iw, ih := m.innerSize()
		m.Viewport.Width = iw
		m.Viewport.Height = ih
		m.Viewport.SetContent(m.render(m.source, iw))
	}
}

func (m ModalModel) innerSize() (int, int) {
	if m.width <= 0 || m.height <= 0 {
		return 76, 20
	}
	return max(m.width-6, 10), max(m.height-6, 3)
}

// render formats markdown, falling back to the raw text if glamour fails.
func (m *ModalModel) render(markdown string, width int) string {
	if m.renderer == nil || m.wrapW != width {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return WrapText(markdown, width)
		}
		m.renderer = r
		m.wrapW = width
	}
	out, err := m.renderer.Render(markdown)
	if err != nil {
		return WrapText(markdown, width)
	}
	return out
}

// Update handles modal keys: Esc or q closes, j/k scroll, g/G jump.
func (m ModalModel) Update(msg tea.Msg) (ModalModel, tea.Cmd) {
	if !m.Visible {
		return m, nil
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc", "q", "enter":
			m.Close()
			return m, nil
		case "j", "down":
			m.Viewport.LineDown(1)
			return m, nil
		case "k", "up":
			m.Viewport.LineUp(1)
			return m, nil
		case "g":
			m.Viewport.GotoTop()
			return m, nil
		case "G":
			m.Viewport.GotoBottom()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	return m, cmd
}

// View renders the overlay.
func (m ModalModel) View() string {
	if !m.Visible {
		return ""
	}

	titleBar := theme.Bold.Render(" " + m.Title)
	pct := m.Viewport.ScrollPercent() * 100
	footer := theme.Dim.Render(" Esc: close  j/k: scroll  g/G: top/bottom") +
		"  " + theme.TextMuted.Render(fmt.Sprintf("%.0f%%", pct))

	inner := lipgloss.JoinVertical(lipgloss.Left, titleBar, m.Viewport.View(), footer)

	style := theme.Overlay
	if m.width > 0 && m.height > 0 {
		style = style.Width(m.width - 2).Height(m.height - 2)
	}
	return style.Render(inner)
}
