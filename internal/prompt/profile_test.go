package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	p, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), p)
	assert.Equal(t, DefaultModel, p.Model)
	assert.Equal(t, DefaultTemperature, p.Style.Temperature)
	assert.Equal(t, 1000, p.Style.MaxTokens)
	assert.Equal(t, 5, p.HistoryWindow)
}

func TestParseOverrides(t *testing.T) {
	p, err := Parse([]byte(`
system: Be brief.
model: grok-2
style:
  temperature: 0.2
  max_tokens: 64
history_window: 3
`))
	require.NoError(t, err)
	assert.Equal(t, "Be brief.", p.System)
	assert.Equal(t, "grok-2", p.Model)
	assert.Equal(t, float32(0.2), p.Style.Temperature)
	assert.Equal(t, 64, p.Style.MaxTokens)
	assert.Equal(t, 3, p.HistoryWindow)
}

func TestParseFallsBackOnInvalidValues(t *testing.T) {
	p, err := Parse([]byte("style:\n  temperature: 9\n  max_tokens: -1\nhistory_window: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultTemperature, p.Style.Temperature)
	assert.Equal(t, DefaultMaxTokens, p.Style.MaxTokens)
	assert.Equal(t, DefaultHistoryWindow, p.HistoryWindow)
	assert.Equal(t, DefaultSystem, p.System)
}

func TestParseCapsHistoryWindow(t *testing.T) {
	p, err := Parse([]byte("history_window: 50\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultHistoryWindow, p.HistoryWindow)
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("system: [unterminated"))
	assert.Error(t, err)
}

func TestRepoProfileMatchesDefaults(t *testing.T) {
	b, err := os.ReadFile(filepath.Join("..", "..", "prompts", "relay.yaml"))
	require.NoError(t, err)
	p, err := Parse(b)
	require.NoError(t, err)
	assert.Equal(t, Default(), p)
}
