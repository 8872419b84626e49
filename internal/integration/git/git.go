package git

import (
	"sync"
	"sync/atomic"

	logging "github.com/op/go-logging"

	"github.com/dshills/gitbuf/internal/integration/async"
)

var log = logging.MustGetLogger("git")

// DefaultBinary is the git executable used when none is configured.
const DefaultBinary = "git"

// Manager opens repositories and shares one Caller among them.
type Manager struct {
	mu     sync.RWMutex
	repos  map[string]*Repository
	closed atomic.Bool

	caller *async.Caller
	binary string
	env    map[string]string
}

// ManagerConfig configures a git manager.
type ManagerConfig struct {
	// Caller runs every git command. Required.
	Caller *async.Caller

	// Binary is the git executable. Defaults to DefaultBinary.
	Binary string

	// Env is added to the environment of every git command.
	Env map[string]string
}

// NewManager creates a new git manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Binary == "" {
		cfg.Binary = DefaultBinary
	}

	return &Manager{
		repos:  make(map[string]*Repository),
		caller: cfg.Caller,
		binary: cfg.Binary,
		env:    cfg.Env,
	}
}

// Open opens a repository at the given path.
// The path must be the repository root (containing .git).
func (m *Manager) Open(path string) (*Repository, error) {
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if repo, ok := m.repos[path]; ok {
		return repo, nil
	}

	repo, err := openRepository(path, m.caller, m.binary, m.env)
	if err != nil {
		return nil, err
	}

	m.repos[path] = repo
	return repo, nil
}

// Discover finds and opens the repository containing the given path.
// It walks up the directory tree looking for a .git entry.
func (m *Manager) Discover(path string) (*Repository, error) {
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}

	root, err := discoverRepository(path)
	if err != nil {
		return nil, err
	}

	return m.Open(root)
}

// IsRepository checks if the path is inside a git repository.
func (m *Manager) IsRepository(path string) bool {
	_, err := discoverRepository(path)
	return err == nil
}

// Close forgets every open repository.
func (m *Manager) Close() error {
	if m.closed.Swap(true) {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.repos = make(map[string]*Repository)

	return nil
}
