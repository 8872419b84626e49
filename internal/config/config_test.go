package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	c := New()
	require.NoError(t, c.Validate())

	assert.Equal(t, LoggingConfig{Level: "info"}, c.Logging())
	assert.Equal(t, "git", c.Git().Binary)

	assert.Equal(t, JobConfig{
		PollInterval: 5 * time.Millisecond,
		Retention:    5 * time.Minute,
		DrainTimeout: 2 * time.Second,
	}, c.Job())

	assert.Equal(t, CommitConfig{
		StagedCheckTimeout: time.Second,
		EditmsgTimeout:     3 * time.Second,
		ReleaseTimeout:     time.Second,
		LauncherPoll:       100 * time.Millisecond,
		Launcher:           "shell",
	}, c.Commit())
}

func TestLoad_NoFile(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "", c.Source())
	assert.Equal(t, 3*time.Second, c.Commit().EditmsgTimeout)
}

func TestLoad_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gitbuf.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[commit]
editmsgTimeout = "5s"
releaseTimeout = "2s"

[logging]
level = "warn"
`), 0o644))

	t.Setenv("GITBUF_COMMIT_RELEASE_TIMEOUT", "4s")
	t.Setenv("GITBUF_LOG_LEVEL", "debug")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, c.Source())

	commit := c.Commit()
	assert.Equal(t, 5*time.Second, commit.EditmsgTimeout, "file overrides default")
	assert.Equal(t, 4*time.Second, commit.ReleaseTimeout, "env overrides file")
	assert.Equal(t, time.Second, commit.StagedCheckTimeout, "default kept")
	assert.Equal(t, "debug", c.Logging().Level)
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gitbuf.yaml")
	require.NoError(t, os.WriteFile(path, []byte("commit:\n  launcher: builtin\ngit:\n  binary: /usr/local/bin/git\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "builtin", c.Commit().Launcher)
	assert.Equal(t, "/usr/local/bin/git", c.Git().Binary)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_UnknownFormat(t *testing.T) {
	_, err := Load("gitbuf.ini")
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gitbuf.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[commit]
launcher = "emacs"
editmsgTimeout = "soon"
releaseTimeout = 3
`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidationFailed))
	assert.True(t, errors.Is(err, ErrTypeMismatch))
	assert.Contains(t, err.Error(), "commit.launcher")
	assert.Contains(t, err.Error(), "commit.editmsgTimeout")
}

func TestLoad_NegativeDuration(t *testing.T) {
	t.Setenv("GITBUF_JOB_RETENTION", "-1s")

	_, err := Load("")
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestLoad_ZeroPollInterval(t *testing.T) {
	for _, env := range []string{"GITBUF_JOB_POLL_INTERVAL", "GITBUF_COMMIT_LAUNCHER_POLL"} {
		t.Run(env, func(t *testing.T) {
			t.Setenv(env, "0s")

			_, err := Load("")
			assert.ErrorIs(t, err, ErrValidationFailed)
			assert.Contains(t, err.Error(), "must be positive")
		})
	}
}

func TestLoad_ZeroTimeoutAllowed(t *testing.T) {
	t.Setenv("GITBUF_COMMIT_STAGED_CHECK_TIMEOUT", "0s")

	c, err := Load("")
	require.NoError(t, err)
	assert.Zero(t, c.Commit().StagedCheckTimeout)
}

func TestGetters(t *testing.T) {
	c := New()

	_, err := c.GetString("missing.key")
	assert.ErrorIs(t, err, ErrSettingNotFound)

	_, err = c.GetBool("logging.level")
	assert.ErrorIs(t, err, ErrTypeMismatch)

	require.NoError(t, c.Set("custom.flag", true))
	b, err := c.GetBool("custom.flag")
	require.NoError(t, err)
	assert.True(t, b)

	require.NoError(t, c.Set("job.retention", 90*time.Second))
	d, err := c.GetDuration("job.retention")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	assert.ErrorIs(t, c.Set("logging.level.sub", 1), ErrInvalidPath)
	assert.ErrorIs(t, c.Set("", 1), ErrInvalidPath)
}

func TestSections_FallBackOnBadValues(t *testing.T) {
	c := New()
	require.NoError(t, c.Set("commit.launcherPoll", "bogus"))
	require.NoError(t, c.Set("git.binary", 42))

	assert.Equal(t, 100*time.Millisecond, c.Commit().LauncherPoll)
	assert.Equal(t, "git", c.Git().Binary)
	assert.Error(t, c.Validate())
}

func TestMerged_IsCopy(t *testing.T) {
	c := New()
	m := c.Merged()
	m["logging"].(map[string]any)["level"] = "error"

	assert.Equal(t, "info", c.Logging().Level)
}
