// Package config loads the runtime configuration of modsettings.
//
// Configuration comes from three layers, lowest priority first: built-in
// defaults, an optional TOML file and MODSETTINGS_* environment variables.
//
//	root = "/home/me/.config/ModSettings"
//	format = "json"
//
//	[log]
//	level = "info"
//	encoding = "console"
//
//	[watch]
//	enabled = true
//	debounce = "100ms"
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/multierr"

	"github.com/dshills/modsettings/internal/config/loader"
	"github.com/dshills/modsettings/internal/logging"
	"github.com/dshills/modsettings/internal/storage"
)

// Defaults.
const (
	DefaultFormat      = "json"
	DefaultLogLevel    = "info"
	DefaultLogEncoding = logging.EncodingConsole
	DefaultDebounce    = 100 * time.Millisecond
)

// Config is the runtime configuration.
type Config struct {
	// Root is the storage root directory.
	Root string

	// Format names the file codec: json, toml or yaml.
	Format string

	// LogLevel is a zap level name.
	LogLevel string

	// LogEncoding is "console" or "json".
	LogEncoding string

	// Watch enables reloading of externally edited files.
	Watch bool

	// Debounce is the quiet period before a file change is reported.
	Debounce time.Duration
}

// Default returns the built-in configuration. Root is ModSettings under the
// user config directory, or relative to the working directory when the
// user config directory is unknown.
func Default() Config {
	root := storage.DefaultRoot
	if dir, err := os.UserConfigDir(); err == nil {
		root = filepath.Join(dir, storage.DefaultRoot)
	}
	return Config{
		Root:        root,
		Format:      DefaultFormat,
		LogLevel:    DefaultLogLevel,
		LogEncoding: DefaultLogEncoding,
		Debounce:    DefaultDebounce,
	}
}

// Load reads the configuration file at path from the OS file system and
// applies environment overrides. An empty or missing path yields defaults.
func Load(path string) (Config, error) {
	return LoadFrom(afero.NewOsFs(), path, loader.NewEnvLoader(loader.DefaultPrefix))
}

// LoadFrom is Load with an explicit file system and environment source.
func LoadFrom(fs afero.Fs, path string, env loader.Loader) (Config, error) {
	cfg := Default()

	fileData, err := loader.NewTOMLLoaderWithFs(fs, path).Load()
	if err != nil {
		return cfg, err
	}
	var envData map[string]any
	if env != nil {
		if envData, err = env.Load(); err != nil {
			return cfg, fmt.Errorf("reading environment: %w", err)
		}
	}

	merged := loader.DeepMerge(fileData, envData)
	if err := cfg.apply(merged); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// apply decodes a merged configuration map over cfg.
func (c *Config) apply(data map[string]any) error {
	var errs error
	str := func(path string, dst *string) {
		v, ok := loader.Lookup(data, path)
		if !ok {
			return
		}
		s, ok := v.(string)
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidValue, path, v))
			return
		}
		*dst = s
	}

	str("root", &c.Root)
	str("format", &c.Format)
	str("log.level", &c.LogLevel)
	str("log.encoding", &c.LogEncoding)

	if v, ok := loader.Lookup(data, "watch.enabled"); ok {
		b, err := toBool(v)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%w: watch.enabled: %v", ErrInvalidValue, err))
		} else {
			c.Watch = b
		}
	}
	if v, ok := loader.Lookup(data, "watch.debounce"); ok {
		d, err := toDuration(v)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%w: watch.debounce: %v", ErrInvalidValue, err))
		} else {
			c.Debounce = d
		}
	}
	return errs
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs error
	if strings.TrimSpace(c.Root) == "" {
		errs = multierr.Append(errs, fmt.Errorf("%w: root is empty", ErrInvalidValue))
	}
	if _, err := storage.CodecByName(c.Format); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("%w: format: %v", ErrInvalidValue, err))
	}
	switch strings.ToLower(c.LogEncoding) {
	case logging.EncodingConsole, logging.EncodingJSON:
	default:
		errs = multierr.Append(errs, fmt.Errorf("%w: log encoding %q", ErrInvalidValue, c.LogEncoding))
	}
	if c.Debounce < 0 {
		errs = multierr.Append(errs, fmt.Errorf("%w: negative debounce %s", ErrInvalidValue, c.Debounce))
	}
	return errs
}

// Logging returns the logger configuration.
func (c Config) Logging() logging.Config {
	return logging.Config{Level: c.LogLevel, Encoding: c.LogEncoding}
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		return strconv.ParseBool(b)
	default:
		return false, fmt.Errorf("expected bool, got %T", v)
	}
}

func toDuration(v any) (time.Duration, error) {
	switch d := v.(type) {
	case string:
		return time.ParseDuration(d)
	case int64:
		return time.Duration(d) * time.Millisecond, nil
	case time.Duration:
		return d, nil
	default:
		return 0, fmt.Errorf("expected duration, got %T", v)
	}
}
