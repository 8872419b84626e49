package git

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dshills/gitbuf/internal/integration/async"
)

// Repository represents a git repository.
type Repository struct {
	path   string
	binary string
	env    map[string]string
	caller *async.Caller
}

// openRepository opens an existing git repository.
func openRepository(path string, caller *async.Caller, binary string, env map[string]string) (*Repository, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}

	gitDir := filepath.Join(absPath, ".git")
	info, err := os.Stat(gitDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotRepository
		}
		return nil, fmt.Errorf("stat .git: %w", err)
	}

	// .git can be a directory or a file (for worktrees)
	if !info.IsDir() {
		content, err := os.ReadFile(gitDir)
		if err != nil {
			return nil, fmt.Errorf("read .git file: %w", err)
		}
		if !bytes.HasPrefix(content, []byte("gitdir:")) {
			return nil, ErrNotRepository
		}
	}

	return &Repository{
		path:   absPath,
		binary: binary,
		env:    env,
		caller: caller,
	}, nil
}

// discoverRepository finds the repository root from any path within it.
func discoverRepository(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("abs path: %w", err)
	}

	current := absPath
	for {
		if _, err := os.Stat(filepath.Join(current, ".git")); err == nil {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", ErrRepositoryNotFound
		}
		current = parent
	}
}

// Path returns the repository root path.
func (r *Repository) Path() string {
	return r.path
}

// Binary returns the git executable used for this repository.
func (r *Repository) Binary() string {
	return r.binary
}

// Git starts a git command in the repository root without waiting for it.
// opts.Env is layered over the repository's environment.
func (r *Repository) Git(args []string, opts async.Options) (*async.Result, error) {
	env := make(map[string]string, len(r.env)+len(opts.Env))
	for k, v := range r.env {
		env[k] = v
	}
	for k, v := range opts.Env {
		env[k] = v
	}
	opts.Env = env
	opts.Dir = r.path
	if opts.Name == "" && len(args) > 0 {
		opts.Name = "git " + args[0]
	}

	argv := append([]string{r.binary}, args...)
	return r.caller.SystemAsync(argv, opts)
}

// HasStagedChanges reports whether the index differs from HEAD.
// The check is abandoned with ErrTimeout after timeout.
func (r *Repository) HasStagedChanges(timeout time.Duration) (bool, error) {
	res, err := r.Git([]string{"diff", "--cached", "--quiet"}, async.Options{SplitLines: true})
	if err != nil {
		return false, err
	}

	if !async.Wait(res, timeout) {
		_ = res.Cancel()
		return false, fmt.Errorf("git diff --cached: %w", ErrTimeout)
	}

	switch res.ExitCode() {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("git diff --cached: exit %d: %s",
			res.ExitCode(), strings.Join(res.ErrOutput(), "\n"))
	}
}
