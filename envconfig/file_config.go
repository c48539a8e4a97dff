package envconfig

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/BurntSushi/toml"
)

// Config represents the TOML configuration structure
type Config struct {
	Grammar struct {
		MaxWhitespace    int   `toml:"max_whitespace"`
		StrictFieldOrder *bool `toml:"strict_field_order"`
		ASCIIOnly        *bool `toml:"ascii_only"`
	} `toml:"grammar"`

	Logging struct {
		Debug *bool `toml:"debug"`
	} `toml:"logging"`
}

var (
	configMu   sync.Mutex
	configOnce sync.Once
	config     *Config
	configPath string
)

func resetConfigFile() {
	configMu.Lock()
	defer configMu.Unlock()
	configOnce = sync.Once{}
	config, configPath = nil, ""
}

// GetConfigPaths returns the list of possible config file paths. An explicit
// ENFORCER_CONFIG wins over the per-user locations.
func GetConfigPaths() []string {
	if ConfigFile != "" {
		return []string{ConfigFile}
	}

	var paths []string
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		paths = append(paths, filepath.Join(xdgConfig, "enforcer", "config.toml"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "enforcer", "config.toml"))
	}
	return paths
}

// loadConfig loads the first available configuration file
func loadConfig() (*Config, string, error) {
	for _, path := range GetConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			var cfg Config
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return nil, "", fmt.Errorf("error parsing config file %s: %w", path, err)
			}
			return &cfg, path, nil
		}
	}
	return nil, "", nil
}

// GetConfigValue returns the value for a given environment variable key from the config file
func GetConfigValue(key string) string {
	configMu.Lock()
	defer configMu.Unlock()

	configOnce.Do(func() {
		var err error
		config, configPath, err = loadConfig()
		if err != nil {
			slog.Warn("failed to load config file", "error", err)
		} else if config != nil {
			slog.Debug("loaded config file", "path", configPath)
		}
	})

	if config == nil {
		return ""
	}

	switch key {
	case "ENFORCER_MAX_WHITESPACE":
		if config.Grammar.MaxWhitespace > 0 {
			return strconv.Itoa(config.Grammar.MaxWhitespace)
		}
	case "ENFORCER_STRICT_FIELD_ORDER":
		if config.Grammar.StrictFieldOrder != nil {
			return strconv.FormatBool(*config.Grammar.StrictFieldOrder)
		}
	case "ENFORCER_ASCII_ONLY":
		if config.Grammar.ASCIIOnly != nil {
			return strconv.FormatBool(*config.Grammar.ASCIIOnly)
		}
	case "ENFORCER_DEBUG":
		if config.Logging.Debug != nil {
			return strconv.FormatBool(*config.Logging.Debug)
		}
	}

	return ""
}

// GenerateExampleConfig returns a commented example TOML configuration
func GenerateExampleConfig() string {
	return `# Enforcer Configuration File
# Environment variables override every value in this file.

[grammar]
# Consecutive whitespace characters allowed in generated JSON (default: 12)
max_whitespace = 12
# Require required object keys in schema order (default: false)
strict_field_order = false
# Only allow printable ASCII inside JSON strings (default: false)
ascii_only = false

[logging]
# Enable debug logging (default: false)
debug = false
`
}
