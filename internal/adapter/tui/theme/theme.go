// Package theme holds the colors, styles and glyphs of the terminal UI.
// Colors adapt to light and dark terminals; lipgloss drops them entirely
// when NO_COLOR is set.
package theme

import (
	"github.com/charmbracelet/lipgloss"
)

// --- Palette ---

var (
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#2e7d32", Dark: "#66bb6a"}
	ColorError   = lipgloss.AdaptiveColor{Light: "#c62828", Dark: "#ef5350"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#e65100", Dark: "#ffa726"}
	ColorInfo    = lipgloss.AdaptiveColor{Light: "#0277bd", Dark: "#4fc3f7"}
	ColorAccent  = lipgloss.AdaptiveColor{Light: "#1565c0", Dark: "#42a5f5"}
	ColorMuted   = lipgloss.AdaptiveColor{Light: "#757575", Dark: "#9e9e9e"}

	ColorBorder       = lipgloss.AdaptiveColor{Light: "#bdbdbd", Dark: "#475569"}
	ColorBorderActive = lipgloss.AdaptiveColor{Light: "#1565c0", Dark: "#3b82f6"}

	ColorBgAlt  = lipgloss.AdaptiveColor{Light: "#f1f5f9", Dark: "#0f172a"}
	ColorBubble = lipgloss.AdaptiveColor{Light: "#e2e8f0", Dark: "#1e293b"}
	ColorSentBg = lipgloss.AdaptiveColor{Light: "#1d4ed8", Dark: "#2563eb"}
	ColorSentFg = lipgloss.AdaptiveColor{Light: "#ffffff", Dark: "#ffffff"}
	ColorFg     = lipgloss.AdaptiveColor{Light: "#0f172a", Dark: "#e2e8f0"}
	ColorFgDim  = lipgloss.AdaptiveColor{Light: "#94a3b8", Dark: "#64748b"}
)

// --- Base styles ---

var (
	Bold = lipgloss.NewStyle().Bold(true)
	Dim  = lipgloss.NewStyle().Faint(true)

	TextSuccess = lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
	TextError   = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	TextWarning = lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)
	TextInfo    = lipgloss.NewStyle().Foreground(ColorInfo)
	TextAccent  = lipgloss.NewStyle().Foreground(ColorAccent)
	TextMuted   = lipgloss.NewStyle().Foreground(ColorMuted)
)

// --- Title bar ---

var (
	AppTitle = lipgloss.NewStyle().
			Foreground(ColorSentFg).
			Background(ColorSentBg).
			Bold(true).
			Padding(0, 1)

	AppSubtitle = lipgloss.NewStyle().
			Foreground(ColorFgDim).
			Padding(0, 1)

	BadgeConnected = lipgloss.NewStyle().
			Foreground(ColorSuccess).
			Border(lipgloss.RoundedBorder(), false, true).
			BorderForeground(ColorSuccess).
			Bold(true).
			Padding(0, 1)

	BadgeIdle = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Padding(0, 1)
)

// --- Log entries ---

var (
	SentBubble = lipgloss.NewStyle().
			Foreground(ColorSentFg).
			Background(ColorSentBg).
			Padding(0, 1)

	ReceivedBubble = lipgloss.NewStyle().
			Foreground(ColorFg).
			Background(ColorBubble).
			Padding(0, 1)

	StatusLine = lipgloss.NewStyle().
			Foreground(ColorInfo).
			Padding(0, 1)

	ErrorLine = lipgloss.NewStyle().
			Foreground(ColorError).
			Bold(true).
			Padding(0, 1)

	EntryHeader = lipgloss.NewStyle().
			Faint(true).
			Bold(true)

	Timestamp = lipgloss.NewStyle().
			Foreground(ColorFgDim).
			Faint(true)
)

// --- Status bar ---

var (
	StatusBar = lipgloss.NewStyle().
			Foreground(ColorFgDim).
			Background(ColorBgAlt).
			Padding(0, 1)

	StatusKey = lipgloss.NewStyle().
			Foreground(ColorInfo).
			Bold(true)
)

// --- Input area ---

var (
	InputPrompt = lipgloss.NewStyle().
			Foreground(ColorInfo).
			Bold(true)

	InputPlaceholder = lipgloss.NewStyle().
				Foreground(ColorFgDim)
)

// --- Overlays ---

var (
	Overlay = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorderActive).
		Padding(0, 1)

	PickerSelected = lipgloss.NewStyle().
			Foreground(ColorInfo).
			Bold(true)
)

// MaxContentWidth caps the log width on very wide terminals.
const MaxContentWidth = 120

// BubbleWidthRatio is the share of the log width one entry may occupy.
const BubbleWidthRatio = 0.85

// Clamp returns v clamped to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
