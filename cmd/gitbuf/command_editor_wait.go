package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/gitbuf/internal/integration/git"
	"github.com/dshills/gitbuf/internal/integration/sentinel"
)

// newEditorWaitCmd is the builtin editor launcher: git runs it as its
// editor, it reports the message file and exits once the sentinel exists.
func newEditorWaitCmd() *cobra.Command {
	return &cobra.Command{
		Use:    git.EditorWaitCommand + " <sentinel> <file>",
		Short:  "Editor launcher used by gitbuf commit",
		Hidden: true,
		Args:   cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), args[1]); err != nil {
				return err
			}
			return sentinel.Wait(cmd.Context(), args[0], sentinel.DefaultPollInterval)
		},
	}
}
