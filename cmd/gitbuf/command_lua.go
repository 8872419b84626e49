package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/gitbuf/internal/host/fshost"
	luaplugin "github.com/dshills/gitbuf/internal/plugin/lua"
)

func newLuaCmd(g *globalOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "lua <script>",
		Short: "Run a Lua script with the git module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h := fshost.New(cmd.OutOrStdout())
			defer h.Close()

			application, err := g.newApp(cmd, h)
			if err != nil {
				return err
			}
			defer application.Close()

			state, err := luaplugin.NewState(
				luaplugin.WithOutput(cmd.OutOrStdout()),
				luaplugin.WithExecutionTimeout(timeout),
			)
			if err != nil {
				return err
			}
			defer state.Close()

			luaplugin.NewModule(application.Caller(), application.Committer).Register(state)

			// An interrupt abandons any buffer a script's commit is waiting on.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				h.Discard()
			}()

			return state.DoFile(args[0])
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "abort the script after this long (0 means no limit)")

	return cmd
}
