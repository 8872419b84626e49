package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/gitbuf/internal/host/fshost"
	"github.com/dshills/gitbuf/internal/integration/git"
)

func newCommitCmd(g *globalOptions) *cobra.Command {
	var amend bool

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Commit the staged changes, editing the message in any editor",
		Long: "Runs git commit and prints the path of the commit message file.\n" +
			"Saving the file finishes the commit; an interrupt aborts the edit.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h := fshost.New(cmd.OutOrStdout())
			defer h.Close()

			application, err := g.newApp(cmd, h)
			if err != nil {
				return err
			}
			defer application.Close()

			c, err := application.Committer()
			if err != nil {
				return err
			}

			s, err := c.Commit(git.CommitOptions{Amend: amend})
			if errors.Is(err, git.ErrNothingToCommit) {
				// Already reported through the host.
				return &exitError{code: 1}
			}
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			select {
			case <-s.Done():
			case <-ctx.Done():
				h.Discard()
				<-s.Done()
			}

			if err := s.Err(); err != nil {
				return err
			}
			if code := s.Job().ExitCode(); s.Job().Done() && code != 0 {
				return &exitError{code: code}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&amend, "amend", false, "amend the previous commit")

	return cmd
}
