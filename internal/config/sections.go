package config

import (
	"fmt"
	"os"
	"time"
)

// Section accessor methods return snapshot structs. Mutating the returned
// struct does not modify the underlying configuration.

// kind is the value type of a setting.
type kind int

const (
	kindString kind = iota
	kindDuration
)

// setting describes one known configuration key.
type setting struct {
	path  string
	kind  kind
	def   any
	enum  []string
	empty    bool // an empty string is allowed
	positive bool // a zero duration is rejected
}

var settings = []setting{
	{path: "logging.level", kind: kindString, def: "info",
		enum: []string{"debug", "info", "warn", "warning", "error"}},
	{path: "git.binary", kind: kindString, def: "git"},
	{path: "git.home", kind: kindString, def: "", empty: true},
	{path: "job.pollInterval", kind: kindDuration, def: "5ms", positive: true},
	{path: "job.retention", kind: kindDuration, def: "5m"},
	{path: "job.drainTimeout", kind: kindDuration, def: "2s"},
	{path: "commit.stagedCheckTimeout", kind: kindDuration, def: "1s"},
	{path: "commit.editmsgTimeout", kind: kindDuration, def: "3s"},
	{path: "commit.releaseTimeout", kind: kindDuration, def: "1s"},
	{path: "commit.launcherPoll", kind: kindDuration, def: "100ms", positive: true},
	{path: "commit.launcher", kind: kindString, def: "shell",
		enum: []string{"shell", "builtin"}},
}

func (s setting) validate(c *Config) error {
	switch s.kind {
	case kindDuration:
		d, err := c.GetDuration(s.path)
		if err != nil {
			return err
		}
		if d < 0 {
			return &ValidationError{Path: s.path, Message: "must not be negative", Value: d}
		}
		if d == 0 && s.positive {
			return &ValidationError{Path: s.path, Message: "must be positive", Value: d}
		}
	case kindString:
		v, err := c.GetString(s.path)
		if err != nil {
			return err
		}
		if v == "" && !s.empty {
			return &ValidationError{Path: s.path, Message: "must not be empty", Value: v}
		}
		if len(s.enum) > 0 && !contains(s.enum, v) {
			return &ValidationError{Path: s.path, Message: fmt.Sprintf("must be one of %v", s.enum), Value: v}
		}
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// defaultConfig returns the built-in defaults as a nested map.
func defaultConfig() map[string]any {
	m := make(map[string]any)
	for _, s := range settings {
		_ = setPath(m, s.path, s.def)
	}
	if home, err := os.UserHomeDir(); err == nil {
		_ = setPath(m, "git.home", home)
	}
	return m
}

// LoggingConfig provides type-safe access to logging settings.
type LoggingConfig struct {
	// Level is the minimum log level.
	Level string
}

// GitConfig provides type-safe access to git settings.
type GitConfig struct {
	// Binary is the git executable.
	Binary string

	// Home is exported as HOME to git commit.
	Home string
}

// JobConfig provides type-safe access to job settings.
type JobConfig struct {
	// PollInterval is the predicate recheck period of WaitFor.
	PollInterval time.Duration

	// Retention is how long exited jobs stay retrievable.
	Retention time.Duration

	// DrainTimeout bounds reading a job's output after it exits.
	DrainTimeout time.Duration
}

// CommitConfig provides type-safe access to commit settings.
type CommitConfig struct {
	StagedCheckTimeout time.Duration
	EditmsgTimeout     time.Duration
	ReleaseTimeout     time.Duration
	LauncherPoll       time.Duration

	// Launcher is "shell" or "builtin".
	Launcher string
}

// Logging returns the logging section.
func (c *Config) Logging() LoggingConfig {
	return LoggingConfig{Level: c.stringOr("logging.level")}
}

// Git returns the git section.
func (c *Config) Git() GitConfig {
	return GitConfig{
		Binary: c.stringOr("git.binary"),
		Home:   c.stringOr("git.home"),
	}
}

// Job returns the job section.
func (c *Config) Job() JobConfig {
	return JobConfig{
		PollInterval: c.durationOr("job.pollInterval"),
		Retention:    c.durationOr("job.retention"),
		DrainTimeout: c.durationOr("job.drainTimeout"),
	}
}

// Commit returns the commit section.
func (c *Config) Commit() CommitConfig {
	return CommitConfig{
		StagedCheckTimeout: c.durationOr("commit.stagedCheckTimeout"),
		EditmsgTimeout:     c.durationOr("commit.editmsgTimeout"),
		ReleaseTimeout:     c.durationOr("commit.releaseTimeout"),
		LauncherPoll:       c.durationOr("commit.launcherPoll"),
		Launcher:           c.stringOr("commit.launcher"),
	}
}

// stringOr returns the string at path, or its default when unset or invalid.
func (c *Config) stringOr(path string) string {
	if v, err := c.GetString(path); err == nil {
		return v
	}
	def, _ := lookupSetting(path).def.(string)
	return def
}

// durationOr returns the duration at path, or its default when unset or
// invalid.
func (c *Config) durationOr(path string) time.Duration {
	if d, err := c.GetDuration(path); err == nil {
		return d
	}
	d, _ := time.ParseDuration(lookupSetting(path).def.(string))
	return d
}

func lookupSetting(path string) setting {
	for _, s := range settings {
		if s.path == path {
			return s
		}
	}
	return setting{path: path, def: ""}
}
