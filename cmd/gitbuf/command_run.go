package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/gitbuf/internal/integration/async"
)

func newRunCmd(g *globalOptions) *cobra.Command {
	var (
		opts    async.Options
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run [flags] -- <command> [args...]",
		Short: "Start a command asynchronously, wait for it and print its output",
		Long: `Start a command asynchronously, wait for it and print its output.

With --merge, stdout fragments are combined into one at exit. Raw chunks are
concatenated unchanged; with --split-lines the lines, whose terminators were
stripped, are joined with newlines.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := g.newApp(cmd, nil)
			if err != nil {
				return err
			}
			defer application.Close()

			r, err := application.Caller().SystemAsync(args, opts)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				select {
				case <-ctx.Done():
					_ = r.Cancel()
				case <-r.Finished():
				}
			}()

			wait := timeout
			if wait <= 0 {
				wait = -1
			}
			done := async.Wait(r, wait)

			printFragments(cmd.OutOrStdout(), r.Output(), opts.SplitLines)
			printFragments(cmd.ErrOrStderr(), r.ErrOutput(), opts.SplitLines)

			switch {
			case r.Cancelled():
				return &exitError{code: 130}
			case !done:
				_ = r.Cancel()
				return fmt.Errorf("%s: no exit after %s", args[0], timeout)
			case r.ExitCode() != 0:
				return &exitError{code: r.ExitCode()}
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.SplitLines, "split-lines", false, "collect output as lines")
	flags.BoolVar(&opts.MergeOutput, "merge", false, "merge output into one fragment at exit (lines are joined with newlines under --split-lines)")
	flags.StringVar(&opts.Name, "name", "", "job name (default: the program name)")
	flags.DurationVar(&timeout, "timeout", 0, "give up waiting after this long (0 waits without a deadline)")

	return cmd
}

func printFragments(w io.Writer, fragments []string, lines bool) {
	for _, f := range fragments {
		if lines {
			fmt.Fprintln(w, f)
		} else {
			fmt.Fprint(w, f)
		}
	}
}
