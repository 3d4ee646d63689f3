package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	assert.Equal(t, 20, c.Convert.MaxCandidates)
	assert.True(t, c.Convert.Prediction)
	assert.Equal(t, "data", c.Dict.Path)
	assert.Positive(t, c.Server.MaxSessions)
}

func TestLoadConfigTOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
[server]
max_sessions = 8

[dict]
path = "dict.tsv"

[convert]
max_candidates = 5
prediction = false
`)
	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8, c.Server.MaxSessions)
	assert.Equal(t, "dict.tsv", c.Dict.Path)
	assert.Equal(t, 5, c.Convert.MaxCandidates)
	assert.False(t, c.Convert.Prediction)
	// untouched keys keep defaults
	assert.Equal(t, DefaultConfig().Server.MaxBuffer, c.Server.MaxBuffer)
}

func TestLoadConfigPartialRecovery(t *testing.T) {
	path := writeFile(t, "config.toml", `
[server]
max_sessions = "lots"
max_buffer = 32

[convert]
max_candidates = 3
`)
	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server.MaxSessions, c.Server.MaxSessions)
	assert.Equal(t, 32, c.Server.MaxBuffer)
	assert.Equal(t, 3, c.Convert.MaxCandidates)
}

func TestLoadConfigUnparseable(t *testing.T) {
	path := writeFile(t, "config.toml", "[server\nmax_sessions = ")
	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), c)
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
dict:
  path: words.db
convert:
  max_candidates: 200
  kana_fallback: true
`)
	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "words.db", c.Dict.Path)
	assert.True(t, c.Convert.KanaFallback)
	assert.Equal(t, 64, c.Convert.MaxCandidates, "clamped")
}

func TestSanitize(t *testing.T) {
	c := DefaultConfig()
	c.Server.MaxSessions = -1
	c.CLI.DefaultLimit = 0
	c.Convert.BeamWidth = 1
	c.Sanitize()
	assert.Equal(t, DefaultConfig().Server.MaxSessions, c.Server.MaxSessions)
	assert.Equal(t, DefaultConfig().CLI.DefaultLimit, c.CLI.DefaultLimit)
	assert.Equal(t, c.Convert.MaxCandidates, c.Convert.BeamWidth)
}

func TestInitConfigCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	c, err := InitConfig(path)
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Equal(t, DefaultConfig(), c)

	c.Dict.Path = "other"
	require.NoError(t, SaveConfig(c, path))
	again, err := InitConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "other", again.Dict.Path)
}

func TestSaveConfigYAMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	c := DefaultConfig()
	c.CLI.DefaultContext = "今日は"
	require.NoError(t, SaveConfig(c, path))
	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, c, loaded)
}

func TestLoadConfigWithPriorityCustomPath(t *testing.T) {
	path := writeFile(t, "custom.toml", "[cli]\ndefault_limit = 4\n")
	c, active, err := LoadConfigWithPriority(path)
	require.NoError(t, err)
	assert.Equal(t, path, active)
	assert.Equal(t, 4, c.CLI.DefaultLimit)
}

func TestEngineConfig(t *testing.T) {
	c := DefaultConfig()
	c.Dict.Path = "/abs/dict.tsv"
	c.Dict.WeightsPath = "w.toml"
	ec := c.EngineConfig(nil)
	assert.Equal(t, "/abs/dict.tsv", ec.DictionaryPath)
	assert.Equal(t, "w.toml", ec.WeightPath)
	assert.Equal(t, c.Convert, ec.Options)
}
