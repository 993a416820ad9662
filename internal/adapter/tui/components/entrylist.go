package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"bluepulse/internal/adapter/tui/theme"
	"bluepulse/internal/domain"
)

// DefaultTimeFormat renders entry times as a local wall clock.
const DefaultTimeFormat = "15:04:05"

// EmptyLogText is shown before the first entry arrives.
const EmptyLogText = "Waiting for data..."

// EntryListModel renders message log entries. Sent entries hug the right
// edge, everything else the left.
type EntryListModel struct {
	Entries    []domain.LogEntry
	TimeFormat string
	width      int
	rendered   map[string]string // entry ID -> rendered block at width
}

// NewEntryList creates an empty list.
func NewEntryList() EntryListModel {
	return EntryListModel{TimeFormat: DefaultTimeFormat, rendered: make(map[string]string)}
}

// SetWidth updates the rendering width. Cached renders are dropped.
func (m *EntryListModel) SetWidth(w int) {
	if w == m.width {
		return
	}
	m.width = w
	m.rendered = make(map[string]string)
}

// SetEntries replaces the entries. The log is append-only, so renders of
// entries already seen stay valid.
func (m *EntryListModel) SetEntries(entries []domain.LogEntry) {
	m.Entries = entries
}

// View renders every entry.
func (m *EntryListModel) View() string {
	if len(m.Entries) == 0 {
		return lipgloss.Place(theme.Clamp(m.width, 1, theme.MaxContentWidth), 3,
			lipgloss.Center, lipgloss.Center, theme.TextMuted.Render(EmptyLogText))
	}
	if m.rendered == nil {
		m.rendered = make(map[string]string)
	}

	var sb strings.Builder
	for i, e := range m.Entries {
		if i > 0 {
			sb.WriteString("\n")
		}
		block, ok := m.rendered[e.ID]
		if !ok {
			block = m.renderEntry(e)
			m.rendered[e.ID] = block
		}
		sb.WriteString(block)
	}
	return sb.String()
}

func (m *EntryListModel) renderEntry(e domain.LogEntry) string {
	width := theme.Clamp(m.width, 20, theme.MaxContentWidth)
	bubbleW := theme.Clamp(int(float64(width)*theme.BubbleWidthRatio), 16, width)

	format := m.TimeFormat
	if format == "" {
		format = DefaultTimeFormat
	}
	header := theme.EntryHeader.Render(KindLabel(e.Kind)) + "  " +
		theme.Timestamp.Render(e.Timestamp.Local().Format(format))

	// Inner width excludes the bubble's horizontal padding.
	body := WrapText(e.Content, bubbleW-2)

	var bubble string
	switch e.Kind {
	case domain.EntrySent:
		bubble = theme.SentBubble.Render(header + "\n" + body)
	case domain.EntryReceived:
		bubble = theme.ReceivedBubble.Render(header + "\n" + body)
	case domain.EntryError:
		bubble = theme.ErrorLine.Render(header + "\n" + theme.SymbolError + " " + body)
	default:
		bubble = theme.StatusLine.Render(header + "\n" + body)
	}

	align := lipgloss.Left
	if e.Kind == domain.EntrySent {
		align = lipgloss.Right
	}
	return lipgloss.PlaceHorizontal(width, align, bubble)
}

// KindLabel is the uppercase tag shown above an entry.
func KindLabel(k domain.EntryKind) string {
	return strings.ToUpper(string(k))
}

// WrapText hard-wraps s to width runes per line, preferring spaces as break
// points. Existing newlines are kept. Long unbroken tokens such as hex dumps
// are split mid-token.
func WrapText(s string, width int) string {
	if width <= 0 {
		return s
	}
	var out []string
	for _, line := range strings.Split(s, "\n") {
		runes := []rune(line)
		for len(runes) > width {
			idx := -1
			for i := width; i > 0; i-- {
				if runes[i] == ' ' {
					idx = i
					break
				}
			}
			if idx <= 0 {
				idx = width
			}
			out = append(out, string(runes[:idx]))
			runes = runes[idx:]
			for len(runes) > 0 && runes[0] == ' ' {
				runes = runes[1:]
			}
		}
		out = append(out, string(runes))
	}
	return strings.Join(out, "\n")
}

// Divider renders a horizontal rule.
func Divider(width int) string {
	if width <= 0 {
		return ""
	}
	return lipgloss.NewStyle().
		Foreground(theme.ColorBorder).
		Render(strings.Repeat(theme.SymbolRule, width))
}
