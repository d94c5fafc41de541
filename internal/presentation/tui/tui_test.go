package tui_test

import (
	"bytes"
	"os"
	"testing"

	"github.com/aretw0/palaver/internal/presentation/tui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintBanner(t *testing.T) {
	var out bytes.Buffer
	tui.PrintBanner(&out, "v1.2.3")

	assert.Contains(t, out.String(), "palaver v1.2.3")
	assert.NotContains(t, out.String(), "\x1b[", "a buffer is not a color terminal")
}

func TestNewRenderer(t *testing.T) {
	render, err := tui.NewRenderer(40)
	require.NoError(t, err)

	out, err := render("**bold** text")
	require.NoError(t, err)
	assert.Contains(t, out, "bold")
	assert.Contains(t, out, "text")
}

func TestIsTerminal_File(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()

	assert.False(t, tui.IsTerminal(f))
	assert.Equal(t, 0, tui.Width(f))
}
