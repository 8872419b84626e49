package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dshills/gitbuf/internal/config/loader"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "GITBUF_"

// Config holds the merged gitbuf configuration.
type Config struct {
	mu     sync.RWMutex
	merged map[string]any
	source string
}

// New returns a Config holding only the built-in defaults.
func New() *Config {
	return &Config{merged: defaultConfig()}
}

// Load builds the configuration from the defaults, the file at path and
// GITBUF_* environment variables, in increasing priority, and validates it.
// An empty path skips the file layer; a missing file is an error.
func Load(path string) (*Config, error) {
	merged := defaultConfig()

	if path != "" {
		l, err := loader.ForPath(path)
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		file, err := l.LoadFrom(path)
		if err != nil {
			return nil, err
		}
		merged = loader.DeepMerge(merged, file)
	}

	env, err := loader.NewEnvLoader(EnvPrefix).Load()
	if err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	merged = loader.DeepMerge(merged, env)

	c := &Config{merged: merged, source: path}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Source returns the file the configuration was loaded from, if any.
func (c *Config) Source() string {
	return c.source
}

// Get returns the value at the given path from the merged configuration.
func (c *Config) Get(path string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return getPath(c.merged, path)
}

// GetString returns a string value at the given path.
func (c *Config) GetString(path string) (string, error) {
	v, ok := c.Get(path)
	if !ok {
		return "", ErrSettingNotFound
	}
	s, ok := v.(string)
	if !ok {
		return "", &TypeError{Path: path, Expected: "string", Actual: typeName(v)}
	}
	return s, nil
}

// GetBool returns a boolean value at the given path.
func (c *Config) GetBool(path string) (bool, error) {
	v, ok := c.Get(path)
	if !ok {
		return false, ErrSettingNotFound
	}
	b, ok := v.(bool)
	if !ok {
		return false, &TypeError{Path: path, Expected: "bool", Actual: typeName(v)}
	}
	return b, nil
}

// GetDuration returns a duration at the given path. Strings are parsed
// with time.ParseDuration.
func (c *Config) GetDuration(path string) (time.Duration, error) {
	v, ok := c.Get(path)
	if !ok {
		return 0, ErrSettingNotFound
	}
	switch val := v.(type) {
	case time.Duration:
		return val, nil
	case string:
		d, err := time.ParseDuration(strings.TrimSpace(val))
		if err != nil {
			return 0, &ValidationError{Path: path, Message: "invalid duration", Value: val}
		}
		return d, nil
	default:
		return 0, &TypeError{Path: path, Expected: "duration", Actual: typeName(v)}
	}
}

// Set sets the value at path.
func (c *Config) Set(path string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return setPath(c.merged, path, value)
}

// Merged returns a copy of the merged configuration.
func (c *Config) Merged() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return loader.Clone(c.merged)
}

// Validate checks every known setting.
func (c *Config) Validate() error {
	var errs []error
	for _, s := range settings {
		if err := s.validate(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// getPath retrieves a value from a nested map using a dot-separated path.
func getPath(m map[string]any, path string) (any, bool) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return nil, false
	}

	current := any(m)
	for _, part := range parts {
		cm, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		if current, ok = cm[part]; !ok {
			return nil, false
		}
	}

	return current, true
}

// setPath sets a value in a nested map using a dot-separated path.
func setPath(m map[string]any, path string, value any) error {
	parts := splitPath(path)
	if len(parts) == 0 {
		return ErrInvalidPath
	}

	current := m
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part]
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		nextMap, ok := next.(map[string]any)
		if !ok {
			return ErrInvalidPath
		}
		current = nextMap
	}

	current[parts[len(parts)-1]] = value
	return nil
}

// splitPath splits a dot-separated path into its non-empty parts.
func splitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, ".") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// typeName returns the type name for error messages.
func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	switch v.(type) {
	case string:
		return "string"
	case int, int64:
		return "int"
	case float64:
		return "float64"
	case bool:
		return "bool"
	case time.Duration:
		return "duration"
	case []any:
		return "[]any"
	case map[string]any:
		return "map"
	default:
		return fmt.Sprintf("%T", v)
	}
}
