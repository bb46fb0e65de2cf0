package loader

import (
	"os"
	"strings"
)

// DefaultPrefix is the prefix of modsettings environment variables.
const DefaultPrefix = "MODSETTINGS_"

// EnvLoader loads configuration from environment variables.
// Values are kept as strings; typed decoding happens in the config package.
type EnvLoader struct {
	prefix  string            // Environment variable prefix (e.g., "MODSETTINGS_")
	mapping map[string]string // Env var -> config path
	lookup  func(string) (string, bool)
}

// NewEnvLoader creates a new environment variable loader.
// The prefix should include the trailing underscore (e.g., "MODSETTINGS_").
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: defaultEnvMapping(prefix),
		lookup:  os.LookupEnv,
	}
}

// defaultEnvMapping returns the default environment variable mappings.
func defaultEnvMapping(prefix string) map[string]string {
	return map[string]string{
		prefix + "ROOT":         "root",
		prefix + "FORMAT":       "format",
		prefix + "WATCH":        "watch.enabled",
		prefix + "DEBOUNCE":     "watch.debounce",
		prefix + "LOG_LEVEL":    "log.level",
		prefix + "LOG_ENCODING": "log.encoding",
	}
}

// Load reads the mapped environment variables and returns a configuration map.
// Note: Empty string values are treated as unset.
func (l *EnvLoader) Load() (map[string]any, error) {
	config := make(map[string]any)
	for env, path := range l.mapping {
		val, ok := l.lookup(env)
		if !ok || strings.TrimSpace(val) == "" {
			continue
		}
		setByPath(config, path, strings.TrimSpace(val))
	}
	if len(config) == 0 {
		return nil, nil
	}
	return config, nil
}
