package components

import (
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"bluepulse/internal/domain"
)

// LogViewModel wraps a viewport over the entry list. It follows new entries
// while the user sits at the bottom and stops following once they scroll up.
type LogViewModel struct {
	Viewport viewport.Model
	Entries  EntryListModel
	ready    bool
	atBottom bool
}

// NewLogView creates a log view. The viewport is built on the first SetSize.
func NewLogView() LogViewModel {
	return LogViewModel{
		Entries:  NewEntryList(),
		atBottom: true,
	}
}

// SetTimeFormat sets the clock layout used for entry headers.
func (m *LogViewModel) SetTimeFormat(layout string) {
	if layout != "" {
		m.Entries.TimeFormat = layout
	}
}

// SetSize sets the viewport dimensions and re-renders.
func (m *LogViewModel) SetSize(w, h int) {
	m.Entries.SetWidth(w)
	if !m.ready {
		m.Viewport = viewport.New(w, h)
		m.Viewport.MouseWheelEnabled = true
		m.Viewport.MouseWheelDelta = 3
		m.ready = true
	} else {
		m.Viewport.Width = w
		m.Viewport.Height = h
	}
	m.refresh()
}

// SetEntries shows entries, following the bottom when auto-scroll is on.
func (m *LogViewModel) SetEntries(entries []domain.LogEntry) {
	m.Entries.SetEntries(entries)
	m.refresh()
	if m.atBottom && m.ready {
		m.Viewport.GotoBottom()
	}
}

// Following reports whether new entries scroll into view.
func (m LogViewModel) Following() bool { return m.atBottom }

// Update handles scrolling keys and mouse wheel events.
func (m LogViewModel) Update(msg tea.Msg) (LogViewModel, tea.Cmd) {
	if !m.ready {
		return m, nil
	}
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	m.atBottom = m.Viewport.AtBottom()
	return m, cmd
}

// View renders the viewport.
func (m LogViewModel) View() string {
	if !m.ready {
		return "  Initializing..."
	}
	return m.Viewport.View()
}

func (m *LogViewModel) refresh() {
	if !m.ready {
		return
	}
	m.Viewport.SetContent(m.Entries.View())
}
