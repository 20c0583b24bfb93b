package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eve-ci/propagate/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "propagate: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var cfg app.Config

	cmd := &cobra.Command{
		Use:   "propagate",
		Short: "Replay a merged pull request onto release branches",
		Long: `propagate replays the commits of a merged upstream pull request onto
release branches, pushing each replayed branch to your fork and opening
the corresponding pull requests upstream.

Run it from inside a clone whose origin remote points at your fork of
the upstream repository. Target branches come from --branches patterns
or, when omitted, from the source pull request's "pr:<branch>" labels.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Finalize(); err != nil {
				return err
			}
			runner, err := app.NewRunner(cfg)
			if err != nil {
				return err
			}
			return runner.Run(cmd.Context())
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&cfg.PullRequest, "pr", "p", 0, "merged upstream pull request number to propagate (required)")
	flags.StringSliceVarP(&cfg.BranchPatterns, "branches", "b", nil, "target branch names or * patterns (default: pr:<branch> labels)")
	flags.StringVarP(&cfg.RepoPath, "repo-path", "C", ".", "path to the local clone of the fork")
	flags.StringVar(&cfg.GitHubToken, "token", "", "GitHub token (default: GITHUB_TOKEN)")
	flags.BoolVarP(&cfg.DryRun, "dry-run", "n", false, "log mutations instead of performing them")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&cfg.LogLevel, "log-level", "info", "log level: debug, info, warn, error")
	flags.StringVar(&cfg.LogFormat, "log-format", "", "log format: text or json (default text, env PROPAGATE_LOG_FORMAT)")
	_ = cmd.MarkFlagRequired("pr")

	return cmd
}
