package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/gitbuf/internal/app"
	"github.com/dshills/gitbuf/internal/host"
)

// globalOptions holds the persistent flags.
type globalOptions struct {
	configPath string
	logLevel   string
	dir        string
}

func NewRootCmd() *cobra.Command {
	g := &globalOptions{}

	root := &cobra.Command{
		Use:           "gitbuf",
		Short:         "Run commands asynchronously and edit git commit messages in a buffer",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&g.configPath, "config", "", "path to configuration file (.toml, .yaml)")
	flags.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVarP(&g.dir, "directory", "C", "", "run as if started in this directory")

	root.AddCommand(newRunCmd(g))
	root.AddCommand(newCommitCmd(g))
	root.AddCommand(newLuaCmd(g))
	root.AddCommand(newEditorWaitCmd())

	return root
}

// newApp builds the application for a command. h may be nil for commands
// that never open a buffer.
func (g *globalOptions) newApp(cmd *cobra.Command, h host.Host) (*app.Application, error) {
	return app.New(app.Options{
		ConfigPath: g.configPath,
		WorkDir:    g.dir,
		LogLevel:   g.logLevel,
		LogOutput:  cmd.ErrOrStderr(),
		Host:       h,
	})
}
