package envconfig

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

var (
	// Set via ENFORCER_DEBUG in the environment
	Debug bool
	// Set via ENFORCER_MAX_WHITESPACE in the environment
	MaxWhitespace int
	// Set via ENFORCER_STRICT_FIELD_ORDER in the environment
	StrictFieldOrder bool
	// Set via ENFORCER_ASCII_ONLY in the environment
	ASCIIOnly bool
	// Set via ENFORCER_CONFIG in the environment
	ConfigFile string
)

// DefaultMaxWhitespace is the number of consecutive whitespace characters
// allowed before whitespace is no longer offered.
const DefaultMaxWhitespace = 12

type EnvVar struct {
	Name        string
	Value       any
	Description string
}

func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"ENFORCER_DEBUG":              {"ENFORCER_DEBUG", Debug, "Show additional debug information (e.g. ENFORCER_DEBUG=1, 2 for trace)"},
		"ENFORCER_MAX_WHITESPACE":     {"ENFORCER_MAX_WHITESPACE", MaxWhitespace, "Consecutive whitespace characters allowed in generated JSON (default 12)"},
		"ENFORCER_STRICT_FIELD_ORDER": {"ENFORCER_STRICT_FIELD_ORDER", StrictFieldOrder, "Require object keys in the order the schema lists them as required"},
		"ENFORCER_ASCII_ONLY":         {"ENFORCER_ASCII_ONLY", ASCIIOnly, "Only allow printable ASCII inside JSON strings"},
		"ENFORCER_CONFIG":             {"ENFORCER_CONFIG", ConfigFile, "Path of a TOML configuration file"},
	}
}

func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}

// LogLevel returns the log level selected by ENFORCER_DEBUG. 1 or true
// selects debug, 2 selects trace.
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := lookup("ENFORCER_DEBUG"); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			if b {
				level = slog.LevelDebug
			}
		} else if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			level = slog.Level(i * -4)
		} else {
			level = slog.LevelDebug
		}
	}
	return level
}

// Clean quotes and spaces from the value
func clean(key string) string {
	return strings.Trim(os.Getenv(key), "\"' ")
}

// lookup returns the environment value for key, falling back to the config
// file.
func lookup(key string) string {
	if v := clean(key); v != "" {
		return v
	}
	return GetConfigValue(key)
}

func init() {
	LoadConfig()
}

func LoadConfig() {
	Debug = false
	MaxWhitespace = DefaultMaxWhitespace
	StrictFieldOrder = false
	ASCIIOnly = false

	ConfigFile = clean("ENFORCER_CONFIG")
	resetConfigFile()

	if debug := lookup("ENFORCER_DEBUG"); debug != "" {
		d, err := strconv.ParseBool(debug)
		if err == nil {
			Debug = d
		} else {
			Debug = true
		}
	}

	if ws := lookup("ENFORCER_MAX_WHITESPACE"); ws != "" {
		n, err := strconv.Atoi(ws)
		if err != nil || n < 0 {
			slog.Error("invalid setting, ignoring", "ENFORCER_MAX_WHITESPACE", ws, "error", err)
		} else {
			MaxWhitespace = n
		}
	}

	if order := lookup("ENFORCER_STRICT_FIELD_ORDER"); order != "" {
		b, err := strconv.ParseBool(order)
		if err != nil {
			slog.Error("invalid setting, ignoring", "ENFORCER_STRICT_FIELD_ORDER", order, "error", err)
		} else {
			StrictFieldOrder = b
		}
	}

	if ascii := lookup("ENFORCER_ASCII_ONLY"); ascii != "" {
		b, err := strconv.ParseBool(ascii)
		if err != nil {
			slog.Error("invalid setting, ignoring", "ENFORCER_ASCII_ONLY", ascii, "error", err)
		} else {
			ASCIIOnly = b
		}
	}
}
