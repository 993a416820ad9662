package components

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"bluepulse/internal/adapter/tui/theme"
	"bluepulse/internal/domain"
)

// PickerResultMsg is sent when the picker closes. Cancelled is true when the
// user dismissed it; otherwise ID is the chosen device.
type PickerResultMsg struct {
	ID        string
	Cancelled bool
}

// PickerModel is the device chooser overlay.
type PickerModel struct {
	Devices  []domain.DeviceInfo
	Selected int
	Visible  bool
	width    int
	maxShow  int
}

// NewPicker creates a hidden picker.
func NewPicker() PickerModel {
	return PickerModel{maxShow: 10}
}

// Open shows devices, highlighting the first.
func (m *PickerModel) Open(devices []domain.DeviceInfo) {
	m.Devices = devices
	m.Selected = 0
	m.Visible = true
}

// Close hides the picker.
func (m *PickerModel) Close() {
	m.Visible = false
	m.Devices = nil
}

// SetWidth updates the overlay width.
func (m *PickerModel) SetWidth(w int) {
	m.width = w
}

// Update handles ↑/↓ to move, Enter to choose and Esc to cancel.
func (m PickerModel) Update(msg tea.Msg) (PickerModel, tea.Cmd) {
	if !m.Visible {
		return m, nil
	}
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.String() {
	case "up", "k", "shift+tab":
		if len(m.Devices) > 0 {
			m.Selected = (m.Selected - 1 + len(m.Devices)) % len(m.Devices)
		}
	case "down", "j", "tab":
		if len(m.Devices) > 0 {
			m.Selected = (m.Selected + 1) % len(m.Devices)
		}
	case "enter":
		if len(m.Devices) == 0 {
			m.Close()
			return m, pickerResult(PickerResultMsg{Cancelled: true})
		}
		id := m.Devices[m.Selected].ID
		m.Close()
		return m, pickerResult(PickerResultMsg{ID: id})
	case "esc", "q", "ctrl+c":
		m.Close()
		return m, pickerResult(PickerResultMsg{Cancelled: true})
	}
	return m, nil
}

func pickerResult(msg PickerResultMsg) tea.Cmd {
	return func() tea.Msg { return msg }
}

// View renders the device list as a bordered box.
func (m PickerModel) View() string {
	if !m.Visible {
		return ""
	}

	var lines []string
	lines = append(lines, theme.Bold.Render("Select a device"), "")
	if len(m.Devices) == 0 {
		lines = append(lines, theme.TextMuted.Render("No devices found."))
	}

	// Window the list around the selection.
	start := 0
	if m.Selected >= m.maxShow {
		start = m.Selected - m.maxShow + 1
	}
	end := min(start+m.maxShow, len(m.Devices))

	nameW := 0
	for _, d := range m.Devices[start:end] {
		nameW = max(nameW, lipgloss.Width(d.DisplayName()))
	}

	for i := start; i < end; i++ {
		d := m.Devices[i]
		name := d.DisplayName()
		name += strings.Repeat(" ", nameW-lipgloss.Width(name))
		line := fmt.Sprintf("%s  %s  %s", name,
			theme.TextMuted.Render(d.ID), theme.TextMuted.Render(fmt.Sprintf("%d dBm", d.RSSI)))
		if i == m.Selected {
			line = theme.PickerSelected.Render(theme.SymbolArrowR+" ") + line
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}
	if len(m.Devices) > m.maxShow {
		lines = append(lines, theme.TextMuted.Render(fmt.Sprintf("  %d of %d", m.Selected+1, len(m.Devices))))
	}
	lines = append(lines, "", theme.Dim.Render(theme.SymbolArrowUp+"/"+theme.SymbolArrowDown+": move  Enter: connect  Esc: cancel"))

	style := theme.Overlay
	if m.width > 0 {
		style = style.Width(theme.Clamp(m.width-4, 30, 80))
	}
	return style.Render(strings.Join(lines, "\n"))
}
