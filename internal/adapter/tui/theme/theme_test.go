package theme

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 5, Clamp(1, 5, 10))
	assert.Equal(t, 10, Clamp(99, 5, 10))
	assert.Equal(t, 7, Clamp(7, 5, 10))
}

func TestUseSymbols(t *testing.T) {
	t.Cleanup(InitSymbols)

	UseSymbols(true)
	assert.Equal(t, "[OK]", SymbolSuccess)
	assert.Equal(t, "(*)", SymbolLinked)

	UseSymbols(false)
	assert.Equal(t, "✓", SymbolSuccess)
	assert.Equal(t, "●", SymbolLinked)
}

func TestDetectUnicodeSupport(t *testing.T) {
	t.Setenv("BLUEPULSE_ASCII_SYMBOLS", "true")
	assert.False(t, DetectUnicodeSupport())

	t.Setenv("BLUEPULSE_ASCII_SYMBOLS", "")
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_CTYPE", "")
	t.Setenv("LANG", "en_US.UTF-8")
	assert.True(t, DetectUnicodeSupport())

	t.Setenv("LANG", "C")
	assert.False(t, DetectUnicodeSupport())
}
