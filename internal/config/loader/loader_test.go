package loader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestTOMLLoader(t *testing.T) {
	path := writeFile(t, "gitbuf.toml", `
[commit]
editmsgTimeout = "5s"
launcher = "builtin"

[git]
binary = "/usr/bin/git"
`)

	cfg, err := NewTOMLLoader(path).Load()
	require.NoError(t, err)

	commit := cfg["commit"].(map[string]any)
	assert.Equal(t, "5s", commit["editmsgTimeout"])
	assert.Equal(t, "builtin", commit["launcher"])
	assert.Equal(t, "/usr/bin/git", cfg["git"].(map[string]any)["binary"])
}

func TestTOMLLoader_Missing(t *testing.T) {
	cfg, err := NewTOMLLoader(filepath.Join(t.TempDir(), "none.toml")).Load()
	assert.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestTOMLLoader_ParseError(t *testing.T) {
	path := writeFile(t, "bad.toml", "[commit\nlauncher = 1\n")

	_, err := NewTOMLLoader(path).Load()
	var perr *ParseError
	require.True(t, errors.As(err, &perr), "expected ParseError, got %v", err)
	assert.Equal(t, path, perr.Path)
	assert.Positive(t, perr.Line)
}

func TestTOMLLoader_Reader(t *testing.T) {
	cfg, err := NewTOMLLoader("").LoadFromReader(strings.NewReader(`logging = { level = "debug" }`))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg["logging"].(map[string]any)["level"])
}

func TestYAMLLoader(t *testing.T) {
	path := writeFile(t, "gitbuf.yaml", `
job:
  retention: 1m
  pollInterval: 2ms
logging:
  level: warn
`)

	cfg, err := NewYAMLLoader(path).Load()
	require.NoError(t, err)

	job := cfg["job"].(map[string]any)
	assert.Equal(t, "1m", job["retention"])
	assert.Equal(t, "2ms", job["pollInterval"])
	assert.Equal(t, "warn", cfg["logging"].(map[string]any)["level"])
}

func TestYAMLLoader_ParseError(t *testing.T) {
	path := writeFile(t, "bad.yml", "job: [unterminated\n")

	_, err := NewYAMLLoader(path).Load()
	var perr *ParseError
	assert.True(t, errors.As(err, &perr), "expected ParseError, got %v", err)
}

func TestYAMLLoader_NonStringKeys(t *testing.T) {
	cfg, err := NewYAMLLoader("").LoadFromReader(strings.NewReader("codes:\n  1: one\n"))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"1": "one"}, cfg["codes"])
}

func TestForPath(t *testing.T) {
	l, err := ForPath("a/gitbuf.toml")
	require.NoError(t, err)
	assert.IsType(t, &TOMLLoader{}, l)

	l, err = ForPath("gitbuf.YML")
	require.NoError(t, err)
	assert.IsType(t, &YAMLLoader{}, l)

	_, err = ForPath("gitbuf.json")
	assert.Error(t, err)
}

func TestEnvLoader(t *testing.T) {
	t.Setenv("GITBUF_LOG_LEVEL", "debug")
	t.Setenv("GITBUF_GIT", "/opt/git")
	t.Setenv("GITBUF_COMMIT_EDITMSG_TIMEOUT", "4s")
	t.Setenv("GITBUF_COMMIT_LAUNCHER", "builtin")
	t.Setenv("GITBUF_JOB_MAX", "3")

	cfg, err := NewEnvLoader("GITBUF_").Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg["logging"].(map[string]any)["level"])
	assert.Equal(t, "/opt/git", cfg["git"].(map[string]any)["binary"])

	commit := cfg["commit"].(map[string]any)
	assert.Equal(t, 4*time.Second, commit["editmsgTimeout"])
	assert.Equal(t, "builtin", commit["launcher"])
	assert.Equal(t, int64(3), cfg["job"].(map[string]any)["max"])
}

func TestEnvLoader_EnvToPath(t *testing.T) {
	l := NewEnvLoader("GITBUF_")
	tests := map[string]string{
		"GITBUF_JOB_POLL_INTERVAL":           "job.pollInterval",
		"GITBUF_COMMIT_STAGED_CHECK_TIMEOUT": "commit.stagedCheckTimeout",
		"GITBUF_GIT_BINARY":                  "git.binary",
		"GITBUF_LOGGING":                     "logging",
	}
	for env, want := range tests {
		assert.Equal(t, want, l.envToPath(env), env)
	}
}

func TestEnvLoader_ParseValue(t *testing.T) {
	l := NewEnvLoader("GITBUF_")
	assert.Equal(t, true, l.parseValue("yes"))
	assert.Equal(t, false, l.parseValue("Off"))
	assert.Equal(t, int64(1), l.parseValue("1"))
	assert.Equal(t, 0.5, l.parseValue("0.5"))
	assert.Equal(t, 250*time.Millisecond, l.parseValue("250ms"))
	assert.Equal(t, "shell", l.parseValue("shell"))
	assert.Equal(t, "", l.parseValue(""))
}

func TestDeepMerge(t *testing.T) {
	defaults := map[string]any{
		"commit": map[string]any{"launcher": "shell", "releaseTimeout": "1s"},
		"git":    map[string]any{"binary": "git"},
	}
	file := map[string]any{
		"commit": map[string]any{"launcher": "builtin"},
	}

	merged := DeepMerge(Clone(defaults), file)
	assert.Equal(t, "builtin", merged["commit"].(map[string]any)["launcher"])
	assert.Equal(t, "1s", merged["commit"].(map[string]any)["releaseTimeout"])
	assert.Equal(t, "git", merged["git"].(map[string]any)["binary"])

	// Clone kept the defaults intact.
	assert.Equal(t, "shell", defaults["commit"].(map[string]any)["launcher"])
}

func TestClone(t *testing.T) {
	src := map[string]any{"a": []any{map[string]any{"b": 1}}}
	dst := Clone(src)
	dst["a"].([]any)[0].(map[string]any)["b"] = 2
	assert.Equal(t, 1, src["a"].([]any)[0].(map[string]any)["b"])
	assert.Nil(t, Clone(nil))
}
