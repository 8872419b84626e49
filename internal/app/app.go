// Package app wires the gitbuf components together and manages their
// lifecycle.
package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/gitbuf/internal/config"
	"github.com/dshills/gitbuf/internal/host"
	"github.com/dshills/gitbuf/internal/integration/async"
	"github.com/dshills/gitbuf/internal/integration/git"
	"github.com/dshills/gitbuf/internal/integration/process"
)

// ShutdownTimeout bounds how long Close waits for running jobs.
const ShutdownTimeout = 5 * time.Second

// Options configures the application.
type Options struct {
	// ConfigPath is the path to the configuration file. Empty uses defaults
	// and the environment only.
	ConfigPath string

	// WorkDir is the directory commands run in and repositories are
	// discovered from. Defaults to the current directory.
	WorkDir string

	// LogLevel overrides logging.level when set.
	LogLevel string

	// LogOutput receives log records. Defaults to os.Stderr.
	LogOutput io.Writer

	// Host is the editor commits are edited in.
	Host host.Host

	// Executable is the gitbuf binary used by the builtin editor launcher.
	// Defaults to os.Executable().
	Executable string
}

// Application is the central coordinator for all gitbuf components.
type Application struct {
	mu sync.Mutex

	config     *config.Config
	supervisor *process.Supervisor
	caller     *async.Caller
	git        *git.Manager
	host       host.Host
	committers map[string]*git.Committer

	workDir string
	opts    Options
	closed  atomic.Bool
}

// New creates a new Application with the given options.
func New(opts Options) (*Application, error) {
	app := &Application{
		opts:       opts,
		host:       opts.Host,
		committers: make(map[string]*git.Committer),
	}

	if err := app.bootstrap(); err != nil {
		return nil, err
	}

	return app, nil
}

// bootstrap initializes all components in dependency order.
func (app *Application) bootstrap() error {
	// 1. Config
	cfg, err := config.Load(app.opts.ConfigPath)
	if err != nil {
		return &InitError{Component: "config", Err: err}
	}
	app.config = cfg

	// 2. Logging
	level := app.opts.LogLevel
	if level == "" {
		level = cfg.Logging().Level
	}
	out := app.opts.LogOutput
	if out == nil {
		out = os.Stderr
	}
	SetupLogging(level, out)

	// 3. Work directory
	dir := app.opts.WorkDir
	if dir == "" {
		if dir, err = os.Getwd(); err != nil {
			return &InitError{Component: "workdir", Err: err}
		}
	}
	if app.workDir, err = filepath.Abs(dir); err != nil {
		return &InitError{Component: "workdir", Err: err}
	}
	if info, err := os.Stat(app.workDir); err != nil {
		return &InitError{Component: "workdir", Err: err}
	} else if !info.IsDir() {
		return &InitError{Component: "workdir", Err: fmt.Errorf("%s is not a directory", app.workDir)}
	}

	// 4. Jobs
	job := cfg.Job()
	app.supervisor = process.NewSupervisor(process.WithRetention(job.Retention))
	app.caller = async.NewCaller(app.supervisor,
		async.WithDir(app.workDir),
		async.WithDrainTimeout(job.DrainTimeout),
		async.WithPollInterval(job.PollInterval),
	)

	// 5. Git
	app.git = git.NewManager(git.ManagerConfig{
		Caller: app.caller,
		Binary: cfg.Git().Binary,
	})

	log.Debugf("initialized in %s (config %q)", app.workDir, cfg.Source())
	return nil
}

// Config returns the loaded configuration.
func (app *Application) Config() *config.Config { return app.config }

// Supervisor returns the job supervisor.
func (app *Application) Supervisor() *process.Supervisor { return app.supervisor }

// Caller returns the async caller.
func (app *Application) Caller() *async.Caller { return app.caller }

// Git returns the git manager.
func (app *Application) Git() *git.Manager { return app.git }

// Host returns the editor host, or nil when none was configured.
func (app *Application) Host() host.Host { return app.host }

// WorkDir returns the absolute working directory.
func (app *Application) WorkDir() string { return app.workDir }

// Repository returns the repository containing the working directory.
func (app *Application) Repository() (*git.Repository, error) {
	if app.closed.Load() {
		return nil, ErrClosed
	}
	return app.git.Discover(app.workDir)
}

// Committer returns the committer for the repository containing the working
// directory. All callers share one committer per repository, so at most one
// commit is pending per repository.
func (app *Application) Committer() (*git.Committer, error) {
	if app.host == nil {
		return nil, fmt.Errorf("commit: no editor host configured")
	}

	repo, err := app.Repository()
	if err != nil {
		return nil, err
	}

	app.mu.Lock()
	defer app.mu.Unlock()

	if c, ok := app.committers[repo.Path()]; ok {
		return c, nil
	}

	cc := app.config.Commit()
	launcher, err := git.ParseLauncher(cc.Launcher)
	if err != nil {
		return nil, err
	}

	c := git.NewCommitter(repo, app.host, git.CommitConfig{
		StagedCheckTimeout: cc.StagedCheckTimeout,
		EditmsgTimeout:     cc.EditmsgTimeout,
		ReleaseTimeout:     cc.ReleaseTimeout,
		LauncherPoll:       cc.LauncherPoll,
		Launcher:           launcher,
		Executable:         app.opts.Executable,
		Home:               app.config.Git().Home,
	})
	app.committers[repo.Path()] = c
	return c, nil
}

// Close shuts down running jobs and releases resources.
func (app *Application) Close() error {
	if app.closed.Swap(true) {
		return nil
	}

	app.supervisor.Shutdown(ShutdownTimeout)

	var err error
	if app.git != nil {
		err = app.git.Close()
	}
	log.Debug("closed")
	return err
}
