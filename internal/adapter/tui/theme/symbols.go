package theme

import (
	"os"
	"strings"
)

// Glyphs used across the UI. InitSymbols swaps them for ASCII on terminals
// that cannot draw Unicode.
var (
	SymbolSuccess   = "✓"
	SymbolError     = "✗"
	SymbolWarning   = "⚠"
	SymbolLinked    = "●"
	SymbolUnlinked  = "○"
	SymbolArrowR    = "→"
	SymbolArrowUp   = "↑"
	SymbolArrowDown = "↓"
	SymbolBullet    = "•"
	SymbolEllipsis  = "…"
	SymbolRule      = "─"
)

// SymbolSet is one complete set of glyphs.
type SymbolSet struct {
	Success   string
	Error     string
	Warning   string
	Linked    string
	Unlinked  string
	ArrowR    string
	ArrowUp   string
	ArrowDown string
	Bullet    string
	Ellipsis  string
	Rule      string
}

var unicodeSymbols = SymbolSet{
	Success:   "✓",
	Error:     "✗",
	Warning:   "⚠",
	Linked:    "●",
	Unlinked:  "○",
	ArrowR:    "→",
	ArrowUp:   "↑",
	ArrowDown: "↓",
	Bullet:    "•",
	Ellipsis:  "…",
	Rule:      "─",
}

var asciiSymbols = SymbolSet{
	Success:   "[OK]",
	Error:     "[ERR]",
	Warning:   "[!]",
	Linked:    "(*)",
	Unlinked:  "( )",
	ArrowR:    "->",
	ArrowUp:   "^",
	ArrowDown: "v",
	Bullet:    "*",
	Ellipsis:  "...",
	Rule:      "-",
}

// DetectUnicodeSupport reports whether the terminal likely draws Unicode.
// BLUEPULSE_ASCII_SYMBOLS=1 forces ASCII.
func DetectUnicodeSupport() bool {
	if v := os.Getenv("BLUEPULSE_ASCII_SYMBOLS"); v == "1" || strings.EqualFold(v, "true") {
		return false
	}
	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		val := strings.ToLower(os.Getenv(key))
		if val == "c" || val == "posix" {
			return false
		}
		if strings.Contains(val, "utf-8") || strings.Contains(val, "utf8") {
			return true
		}
	}
	return true
}

// InitSymbols picks the glyph set from the environment.
func InitSymbols() {
	UseSymbols(!DetectUnicodeSupport())
}

// UseSymbols switches to the ASCII set when ascii is true.
func UseSymbols(ascii bool) {
	set := unicodeSymbols
	if ascii {
		set = asciiSymbols
	}
	SymbolSuccess = set.Success
	SymbolError = set.Error
	SymbolWarning = set.Warning
	SymbolLinked = set.Linked
	SymbolUnlinked = set.Unlinked
	SymbolArrowR = set.ArrowR
	SymbolArrowUp = set.ArrowUp
	SymbolArrowDown = set.ArrowDown
	SymbolBullet = set.Bullet
	SymbolEllipsis = set.Ellipsis
	SymbolRule = set.Rule
}

func init() {
	InitSymbols()
}
