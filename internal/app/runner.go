package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	gh "github.com/eve-ci/propagate/internal/github"
	"github.com/eve-ci/propagate/internal/gitrepo"
	"github.com/eve-ci/propagate/internal/orchestrator"
	"github.com/eve-ci/propagate/internal/resolve"
)

// Runner glues together the orchestrator and supporting services to execute
// a propagation run against the operator's local clone.
type Runner struct {
	cfg       Config
	log       *slog.Logger
	ghFactory gh.Factory
	repo      gitrepo.WorkingCopy // only set for testing via NewRunnerWithDeps
	resolver  resolve.Resolver
	confirm   resolve.Confirmer
}

// NewRunner constructs a Runner with the supplied configuration.
func NewRunner(cfg Config) (*Runner, error) {
	logger, err := NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	return &Runner{
		cfg:       cfg,
		log:       logger,
		ghFactory: gh.NewRESTFactory(),
	}, nil
}

// NewRunnerWithDeps constructs a Runner with injected dependencies for testing.
func NewRunnerWithDeps(cfg Config, log *slog.Logger, ghFactory gh.Factory, repo gitrepo.WorkingCopy, resolver resolve.Resolver, confirm resolve.Confirmer) *Runner {
	return &Runner{cfg: cfg, log: log, ghFactory: ghFactory, repo: repo, resolver: resolver, confirm: confirm}
}

// Run executes the application using the provided context.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info("starting propagation run", "pr", r.cfg.PullRequest, "dry_run", r.cfg.DryRun)

	ghClient, err := r.ghFactory.New(ctx, r.cfg.GitHubToken)
	if err != nil {
		return fmt.Errorf("initialize github client: %w", err)
	}

	repo := r.repo
	if repo == nil {
		opened, err := gitrepo.Open(ctx, r.cfg.RepoPath)
		if err != nil {
			return fmt.Errorf("open repository: %w", err)
		}
		repo = opened
	}

	fork, err := r.validateRepo(ctx, ghClient, repo)
	if err != nil {
		return err
	}

	upstream, err := ghClient.ParentRepo(ctx, fork)
	if err != nil {
		if errors.Is(err, gh.ErrNotAFork) {
			return &RepoValidationError{Path: repo.Root(), Reason: fmt.Sprintf("%s is not a fork", fork)}
		}
		return fmt.Errorf("discover upstream: %w", err)
	}
	r.log.Info("resolved repositories", "fork", fork.String(), "upstream", upstream.String())

	resolver := r.resolver
	if resolver == nil {
		resolver = resolve.NewShellResolver(repo.Root())
	}
	confirm := r.confirm
	if confirm == nil {
		confirm = resolve.NewTerminalConfirmer()
	}

	orch := orchestrator.New(orchestrator.Config{
		BranchPatterns: r.cfg.BranchPatterns,
		DryRun:         r.cfg.DryRun,
	}, ghClient, repo, resolver, confirm, r.log)

	result, err := orch.Run(ctx, fork, upstream, r.cfg.PullRequest)
	if err != nil {
		if errors.Is(err, orchestrator.ErrAlreadyPropagated) {
			r.log.Info("pull request already propagated, nothing to do", "pr", r.cfg.PullRequest)
			return nil
		}
		return err
	}

	return r.report(result)
}

// validateRepo checks the local clone before anything is mutated: the origin
// remote must point at a GitHub repository owned by the authenticated user,
// and the tree must be clean.
func (r *Runner) validateRepo(ctx context.Context, ghClient gh.Client, repo gitrepo.WorkingCopy) (gh.Repo, error) {
	dirty, err := repo.IsDirty(ctx)
	if err != nil {
		return gh.Repo{}, fmt.Errorf("inspect working tree: %w", err)
	}
	if dirty {
		return gh.Repo{}, &RepoValidationError{Path: repo.Root(), Reason: "working tree has uncommitted changes"}
	}

	remoteURL, err := repo.RemoteURL(ctx, "origin")
	if err != nil {
		return gh.Repo{}, fmt.Errorf("read origin remote: %w", err)
	}
	owner, name, err := gitrepo.ParseGitHubRemote(remoteURL)
	if err != nil {
		return gh.Repo{}, &RepoValidationError{Path: repo.Root(), Reason: err.Error()}
	}
	fork := gh.Repo{Owner: owner, Name: name}

	login, err := ghClient.CurrentUser(ctx)
	if err != nil {
		return gh.Repo{}, fmt.Errorf("identify authenticated user: %w", err)
	}
	if !strings.EqualFold(login, fork.Owner) {
		return gh.Repo{}, &RepoValidationError{
			Path:   repo.Root(),
			Reason: fmt.Sprintf("origin remote %s is not owned by authenticated user %s", fork, login),
		}
	}

	return fork, nil
}

func (r *Runner) report(result orchestrator.Result) error {
	if result.Skipped {
		r.log.Info("run skipped", "reason", result.SkippedReason)
		return nil
	}

	for _, task := range result.Tasks {
		attrs := []any{"branch", task.Branch, "status", string(task.Status)}
		if task.Reason != "" {
			attrs = append(attrs, "reason", task.Reason)
		}
		if task.Result != nil {
			attrs = append(attrs, "url", task.Result.URL)
		}
		if task.Err != nil {
			attrs = append(attrs, "error", task.Err)
			r.log.Error("branch failed", attrs...)
			continue
		}
		r.log.Info("branch finished", attrs...)
	}

	if result.Completed {
		r.log.Info("all declared branches have pull requests, source marked completed")
	}

	if failed := result.FailedBranches(); len(failed) > 0 {
		return fmt.Errorf("propagation failed for branches: %s", strings.Join(failed, ", "))
	}
	return nil
}
