package loader

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvLoader loads configuration from environment variables.
type EnvLoader struct {
	prefix  string            // Environment variable prefix (e.g., "GITBUF_")
	mapping map[string]string // Env var -> config path
}

// NewEnvLoader creates a new environment variable loader.
// The prefix should include the trailing underscore (e.g., "GITBUF_").
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: defaultEnvMapping(),
	}
}

// NewEnvLoaderWithMapping creates a loader with custom environment variable mappings.
func NewEnvLoaderWithMapping(prefix string, mapping map[string]string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: mapping,
	}
}

// defaultEnvMapping returns the variables whose names do not follow the
// SECTION_SETTING_NAME convention.
func defaultEnvMapping() map[string]string {
	return map[string]string{
		"GITBUF_LOG_LEVEL": "logging.level",
		"GITBUF_GIT":       "git.binary",
		"GITBUF_HOME":      "git.home",
	}
}

// Load reads environment variables and returns a configuration map.
// Note: Empty string values are treated as valid values, not as unset.
func (l *EnvLoader) Load() (map[string]any, error) {
	config := make(map[string]any)

	// First, load explicitly mapped variables
	for env, path := range l.mapping {
		if val, ok := os.LookupEnv(env); ok {
			setByPath(config, path, l.parseValue(val))
		}
	}

	// Then, scan for additional prefixed variables not in mapping
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, l.prefix) {
			continue
		}

		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			continue
		}

		name := parts[0]
		value := parts[1]

		// Skip if already mapped
		if _, ok := l.mapping[name]; ok {
			continue
		}

		// Convert GITBUF_COMMIT_EDITMSG_TIMEOUT to commit.editmsgTimeout
		path := l.envToPath(name)
		setByPath(config, path, l.parseValue(value))
	}

	return config, nil
}

// AddMapping adds a custom environment variable mapping.
func (l *EnvLoader) AddMapping(envVar, configPath string) {
	if l.mapping == nil {
		l.mapping = make(map[string]string)
	}
	l.mapping[envVar] = configPath
}

// envToPath converts GITBUF_COMMIT_EDITMSG_TIMEOUT to commit.editmsgTimeout.
func (l *EnvLoader) envToPath(env string) string {
	// Remove prefix
	name := strings.TrimPrefix(env, l.prefix)

	// Split by underscore
	parts := strings.Split(name, "_")
	if len(parts) == 0 {
		return strings.ToLower(name)
	}

	// Convert to camelCase path
	// First part is section (lowercase)
	// Subsequent parts form the setting name in camelCase
	result := make([]string, 0, 2)

	// First part is the section
	if len(parts) > 0 {
		result = append(result, strings.ToLower(parts[0]))
	}

	// Remaining parts form the setting name
	if len(parts) > 1 {
		settingParts := parts[1:]
		settingName := strings.ToLower(settingParts[0])
		for i := 1; i < len(settingParts); i++ {
			part := settingParts[i]
			if len(part) > 0 {
				settingName += strings.ToUpper(part[:1]) + strings.ToLower(part[1:])
			}
		}
		result = append(result, settingName)
	}

	return strings.Join(result, ".")
}

// parseValue converts an environment string into a bool, int, float or
// duration when it reads as one, and keeps it as a string otherwise.
func (l *EnvLoader) parseValue(s string) any {
	if s == "" {
		return s
	}

	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}

	// Only with a decimal point, so ints are not read as floats.
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}

	if d, err := time.ParseDuration(s); err == nil {
		return d
	}

	return s
}

// setByPath sets a value in a nested map using a dot-separated path.
func setByPath(data map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := data

	// Navigate/create intermediate maps
	for i := 0; i < len(parts)-1; i++ {
		part := parts[i]
		if next, ok := current[part].(map[string]any); ok {
			current = next
		} else {
			// Create intermediate map
			next := make(map[string]any)
			current[part] = next
			current = next
		}
	}

	// Set the final value
	if len(parts) > 0 {
		current[parts[len(parts)-1]] = value
	}
}
