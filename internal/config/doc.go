// Package config provides the configuration system for gitbuf.
//
// Configuration is organized in layers with higher layers overriding lower:
//
//	┌─────────────────────────────┐
//	│  3. Environment Variables   │  ← GITBUF_*, highest priority
//	├─────────────────────────────┤
//	│  2. Config File             │  ← --config, TOML or YAML
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← Lowest priority
//	└─────────────────────────────┘
//
// # Basic Usage
//
//	cfg, err := config.Load("gitbuf.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	commit := cfg.Commit()
//	fmt.Println(commit.EditmsgTimeout)
//
// # Settings
//
//	logging.level              debug | info | warn | error     (info)
//	git.binary                 git executable                  (git)
//	git.home                   HOME for git commit             (user home)
//	job.pollInterval           WaitFor predicate recheck       (5ms)
//	job.retention              exited job retention            (5m)
//	job.drainTimeout           output drain after exit         (2s)
//	commit.stagedCheckTimeout  staged changes check            (1s)
//	commit.editmsgTimeout      wait for the message path       (3s)
//	commit.releaseTimeout      wait for git commit to exit     (1s)
//	commit.launcherPoll        shell launcher poll period      (100ms)
//	commit.launcher            shell | builtin                 (shell)
//
// Environment variables follow GITBUF_SECTION_SETTING_NAME, for example
// GITBUF_COMMIT_EDITMSG_TIMEOUT=5s. GITBUF_LOG_LEVEL, GITBUF_GIT and
// GITBUF_HOME are shorthands for logging.level, git.binary and git.home.
//
// Durations are strings in time.ParseDuration syntax.
package config
