package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"bluepulse/internal/adapter/tui/theme"
)

// KeyHint is one keybinding shown in the status bar.
type KeyHint struct {
	Key  string
	Desc string
}

// StatusBarModel renders the bottom line: key hints on the left, backend and
// analysis model on the right.
type StatusBarModel struct {
	Hints   []KeyHint
	Backend string
	Model   string
	Extra   string // transient status such as "Scanning..."
	width   int
}

// NewStatusBar creates an empty status bar.
func NewStatusBar() StatusBarModel {
	return StatusBarModel{}
}

// SetWidth updates the available width.
func (m *StatusBarModel) SetWidth(w int) {
	m.width = w
}

// View renders the status bar as a single line. Hints are dropped from the
// end until the line fits.
func (m StatusBarModel) View() string {
	var right []string
	if m.Extra != "" {
		right = append(right, theme.TextInfo.Render(m.Extra))
	}
	var info []string
	if m.Backend != "" {
		info = append(info, m.Backend)
	}
	if m.Model != "" {
		info = append(info, m.Model)
	}
	if len(info) > 0 {
		right = append(right, theme.TextMuted.Render(strings.Join(info, " "+theme.SymbolBullet+" ")))
	}
	rightStr := strings.Join(right, "  ")
	rightW := lipgloss.Width(rightStr)

	sep := "  " + theme.Dim.Render("|") + "  "
	hints := m.Hints
	var left string
	for n := len(hints); n >= 0; n-- {
		parts := make([]string, 0, n)
		for _, h := range hints[:n] {
			parts = append(parts, theme.StatusKey.Render(h.Key)+": "+h.Desc)
		}
		left = strings.Join(parts, sep)
		if m.width == 0 || lipgloss.Width(left)+rightW+1 <= m.width-2 {
			break
		}
	}

	gap := m.width - 2 - lipgloss.Width(left) - rightW
	if gap < 1 {
		gap = 1
	}
	return theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + rightStr)
}
