package envconfig

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	t.Setenv("ENFORCER_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))
	t.Setenv("ENFORCER_DEBUG", "")
	LoadConfig()
	require.False(t, Debug)
	t.Setenv("ENFORCER_DEBUG", "false")
	LoadConfig()
	require.False(t, Debug)
	t.Setenv("ENFORCER_DEBUG", "1")
	LoadConfig()
	require.True(t, Debug)
	t.Setenv("ENFORCER_STRICT_FIELD_ORDER", "true")
	LoadConfig()
	require.True(t, StrictFieldOrder)
}

func TestMaxWhitespace(t *testing.T) {
	t.Setenv("ENFORCER_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))

	cases := map[string]int{
		"":     DefaultMaxWhitespace,
		"4":    4,
		"'8'":  8,
		"-1":   DefaultMaxWhitespace,
		"many": DefaultMaxWhitespace,
	}
	for value, expect := range cases {
		t.Run(value, func(t *testing.T) {
			t.Setenv("ENFORCER_MAX_WHITESPACE", value)
			LoadConfig()
			assert.Equal(t, expect, MaxWhitespace)
		})
	}
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[grammar]
max_whitespace = 3
ascii_only = true

[logging]
debug = true
`), 0o644))

	t.Setenv("ENFORCER_CONFIG", path)
	t.Setenv("ENFORCER_DEBUG", "")
	t.Setenv("ENFORCER_MAX_WHITESPACE", "")
	t.Setenv("ENFORCER_ASCII_ONLY", "")
	LoadConfig()
	assert.Equal(t, 3, MaxWhitespace)
	assert.True(t, ASCIIOnly)
	assert.True(t, Debug)
	assert.False(t, StrictFieldOrder)

	// the environment wins over the file
	t.Setenv("ENFORCER_MAX_WHITESPACE", "7")
	LoadConfig()
	assert.Equal(t, 7, MaxWhitespace)
}

func TestExampleConfigParses(t *testing.T) {
	var cfg Config
	_, err := toml.Decode(GenerateExampleConfig(), &cfg)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxWhitespace, cfg.Grammar.MaxWhitespace)
	require.NotNil(t, cfg.Logging.Debug)
	assert.False(t, *cfg.Logging.Debug)
}

func TestLogLevel(t *testing.T) {
	t.Setenv("ENFORCER_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))
	LoadConfig()

	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"false": slog.LevelInfo,
		"0":     slog.LevelInfo,
		"1":     slog.LevelDebug,
		"true":  slog.LevelDebug,
		"2":     slog.Level(-8),
		"loud":  slog.LevelDebug,
	}
	for value, expect := range cases {
		t.Run(value, func(t *testing.T) {
			t.Setenv("ENFORCER_DEBUG", value)
			assert.Equal(t, expect, LogLevel())
		})
	}
}
