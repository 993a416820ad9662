package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"bluepulse/internal/adapter/tui/theme"
)

const (
	// PlaceholderConnected invites a command once a device is attached.
	PlaceholderConnected = "Type a command..."
	// PlaceholderDisconnected is shown while there is nothing to send to.
	PlaceholderDisconnected = "Connect a device..."
)

// InputSubmitMsg is sent when the user presses Enter with non-blank input.
// The input is not cleared; the receiver calls Reset once the send succeeds.
type InputSubmitMsg struct {
	Value string
}

// InputAreaModel is the single-line command prompt with slash-command
// completion. Plain text is only accepted while connected; slash commands
// are always accepted.
type InputAreaModel struct {
	Textarea     textarea.Model
	Autocomplete AutocompleteModel
	connected    bool
	width        int
}

// NewInputArea creates a prompt in the disconnected state.
func NewInputArea(commands []CommandDef) InputAreaModel {
	ta := textarea.New()
	ta.Prompt = theme.SymbolArrowR + " "
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(1)
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Prompt = theme.InputPrompt
	ta.FocusedStyle.Placeholder = theme.InputPlaceholder
	ta.BlurredStyle.Placeholder = theme.InputPlaceholder
	ta.Focus()

	m := InputAreaModel{
		Textarea:     ta,
		Autocomplete: NewAutocomplete(commands),
	}
	m.SetConnected(false)
	return m
}

// SetWidth updates the prompt width.
func (m *InputAreaModel) SetWidth(w int) {
	m.width = w
	m.Textarea.SetWidth(w - 2)
	m.Autocomplete.SetWidth(w)
}

// SetConnected switches placeholder and whether plain text is submitted.
func (m *InputAreaModel) SetConnected(connected bool) {
	m.connected = connected
	if connected {
		m.Textarea.Placeholder = PlaceholderConnected
	} else {
		m.Textarea.Placeholder = PlaceholderDisconnected
	}
}

// Connected reports the last state given to SetConnected.
func (m InputAreaModel) Connected() bool { return m.connected }

// Focus gives the prompt keyboard focus.
func (m *InputAreaModel) Focus() tea.Cmd { return m.Textarea.Focus() }

// Blur removes keyboard focus, e.g. while an overlay is open.
func (m *InputAreaModel) Blur() { m.Textarea.Blur() }

// Reset clears the prompt.
func (m *InputAreaModel) Reset() {
	m.Textarea.Reset()
	m.Autocomplete.Hide()
}

// Value returns the current text.
func (m InputAreaModel) Value() string {
	return m.Textarea.Value()
}

// SlashEscape starts a line that is sent with a literal leading slash.
const SlashEscape = "//"

// IsSlashCommand reports whether input would be handled as a command rather
// than sent to the device.
func IsSlashCommand(input string) bool {
	input = strings.TrimSpace(input)
	return strings.HasPrefix(input, "/") && !strings.HasPrefix(input, SlashEscape)
}

// UnescapeSlash turns "//reset" into "/reset". Other input, including its
// surrounding whitespace, is returned unchanged.
func UnescapeSlash(input string) string {
	i := len(input) - len(strings.TrimLeft(input, " \t"))
	if strings.HasPrefix(input[i:], SlashEscape) {
		return input[:i] + input[i+1:]
	}
	return input
}

// ParseSlashCommand splits "/cmd args..." into a lowercase command and its
// arguments. ok is false for anything not starting with a single slash.
func ParseSlashCommand(input string) (cmd string, args []string, ok bool) {
	input = strings.TrimSpace(input)
	if !IsSlashCommand(input) {
		return "", nil, false
	}
	parts := strings.Fields(input)
	return strings.ToLower(parts[0]), parts[1:], true
}

// Update handles key events. While the completion popup is open Tab and the
// arrows move through it and Enter accepts the highlighted command.
func (m InputAreaModel) Update(msg tea.Msg) (InputAreaModel, tea.Cmd) {
	if _, ok := msg.(tea.MouseMsg); ok {
		return m, nil
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if m.Autocomplete.Visible {
			switch keyMsg.Type {
			case tea.KeyTab, tea.KeyDown:
				m.Autocomplete.SelectNext()
				return m, nil
			case tea.KeyShiftTab, tea.KeyUp:
				m.Autocomplete.SelectPrev()
				return m, nil
			case tea.KeyEnter:
				if accepted := m.Autocomplete.Accept(); accepted != "" {
					m.Textarea.SetValue(accepted)
					m.Textarea.CursorEnd()
				}
				return m, nil
			case tea.KeyEsc:
				m.Autocomplete.Hide()
				return m, nil
			}
		}

		if keyMsg.Type == tea.KeyEnter {
			value := m.Textarea.Value()
			if strings.TrimSpace(value) == "" {
				return m, nil
			}
			if !m.connected && !IsSlashCommand(value) {
				return m, nil
			}
			m.Autocomplete.Hide()
			return m, func() tea.Msg { return InputSubmitMsg{Value: value} }
		}
	}

	var cmd tea.Cmd
	m.Textarea, cmd = m.Textarea.Update(msg)

	value := m.Textarea.Value()
	if strings.HasPrefix(value, "/") && !strings.HasPrefix(value, SlashEscape) && !strings.Contains(value, " ") {
		m.Autocomplete.SetPrefix(value)
	} else {
		m.Autocomplete.Hide()
	}
	return m, cmd
}

// Height returns the lines used by the prompt plus any open popup.
func (m InputAreaModel) Height() int {
	return m.Textarea.Height() + m.Autocomplete.Height()
}

// View renders the prompt with the completion popup above it.
func (m InputAreaModel) View() string {
	if popup := m.Autocomplete.View(); popup != "" {
		return popup + "\n" + m.Textarea.View()
	}
	return m.Textarea.View()
}
