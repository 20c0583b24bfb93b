// Package orchestrator propagates a merged change request across many release
// branches: it resolves target patterns, reconciles the fork with upstream,
// replays the merged commits onto a local branch per target, publishes the
// result as a new change request, and records completion in labels.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/eve-ci/propagate/internal/branches"
	gh "github.com/eve-ci/propagate/internal/github"
	"github.com/eve-ci/propagate/internal/gitrepo"
	"github.com/eve-ci/propagate/internal/labels"
	"github.com/eve-ci/propagate/internal/resolve"
)

// Orchestrator coordinates the hosting API, the local working copy, and the
// operator-facing resolution interfaces. Target branches are processed
// strictly sequentially: every git operation mutates the one shared working
// copy.
type Orchestrator struct {
	cfg      Config
	gh       gh.Client
	repo     gitrepo.WorkingCopy
	resolver resolve.Resolver
	confirm  resolve.Confirmer
	log      *slog.Logger
}

// New returns a configured Orchestrator instance.
func New(cfg Config, ghClient gh.Client, repo gitrepo.WorkingCopy, resolver resolve.Resolver, confirm resolve.Confirmer, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Orchestrator{cfg: cfg, gh: ghClient, repo: repo, resolver: resolver, confirm: confirm, log: logger}
}

// Run propagates the numbered change request from upstream across every
// resolved target branch. The branch checked out before the run is restored
// on every exit path.
func (o *Orchestrator) Run(ctx context.Context, fork, upstream gh.Repo, number int) (Result, error) {
	pr, err := o.gh.GetPullRequest(ctx, upstream, number)
	if err != nil {
		return Result{}, fmt.Errorf("get change request #%d: %w", number, err)
	}

	o.log.Info("loaded source change request",
		"number", pr.Number, "title", pr.Title, "base", pr.BaseBranch,
		"merged", pr.IsMerged, "merge_sha", pr.MergeSHA, "labels", pr.Labels)

	if labels.IsCompleted(pr.Labels) {
		return Result{}, fmt.Errorf("change request #%d: %w", pr.Number, ErrAlreadyPropagated)
	}

	if !pr.IsMerged {
		o.log.Info("skipping propagation: change request is not merged", "number", pr.Number)
		return Result{Source: pr, Skipped: true, SkippedReason: "not merged"}, nil
	}

	targets, err := o.resolveTargets(ctx, upstream, pr)
	if err != nil {
		return Result{}, err
	}

	if err := o.syncForkBranches(ctx, fork, upstream, targets); err != nil {
		return Result{}, err
	}

	restore, err := o.acquireWorkingCopy(ctx)
	if err != nil {
		return Result{}, err
	}
	defer restore()

	if err := o.fetchRemotes(ctx); err != nil {
		return Result{}, err
	}

	commits, err := o.extractCommits(ctx, pr)
	if err != nil {
		return Result{}, err
	}

	patchPath, removePatch, err := o.fetchPatchFile(ctx, upstream, pr)
	if err != nil {
		return Result{}, err
	}
	defer removePatch()

	result := Result{Source: pr}
	for _, branch := range targets {
		task := o.executeTarget(ctx, fork, upstream, pr, commits, patchPath, branch)
		o.log.Info("target evaluated", "branch", task.Branch, "status", task.Status, "reason", task.Reason)
		result.Tasks = append(result.Tasks, task)
	}

	completed, err := o.trackCompletion(ctx, fork, upstream, pr)
	if err != nil {
		o.log.Warn("completion check failed", "error", err)
	}
	result.Completed = completed

	return result, nil
}

// resolveTargets expands the configured or label-declared patterns against
// the upstream branch list and excludes the change request's own base branch.
func (o *Orchestrator) resolveTargets(ctx context.Context, upstream gh.Repo, pr gh.ChangeRequest) ([]string, error) {
	patterns := o.cfg.BranchPatterns
	if len(patterns) == 0 {
		patterns = labels.TargetBranches(pr.Labels)
	}

	upstreamBranches, err := o.gh.ListBranches(ctx, upstream)
	if err != nil {
		return nil, fmt.Errorf("list upstream branches: %w", err)
	}

	names := make([]string, 0, len(upstreamBranches))
	for _, b := range upstreamBranches {
		names = append(names, b.Name)
	}
	o.log.Debug("found upstream branches", "repo", upstream.String(), "branches", names)

	targets, err := branches.ExpandPatterns(patterns, names)
	if err != nil {
		return nil, fmt.Errorf("resolve target branches: %w", err)
	}

	if contains(targets, pr.BaseBranch) {
		o.log.Info("excluding source base branch from targets", "branch", pr.BaseBranch)
		targets = labels.Remove(targets, pr.BaseBranch)
	}

	if len(targets) == 0 {
		return nil, ErrNoTargets
	}

	o.log.Info("resolved target branches", "targets", targets)
	return targets, nil
}

// acquireWorkingCopy records the currently checked-out branch and returns a
// release function that restores it. Restoration is guaranteed on every exit
// path; in dry-run it is only reported.
func (o *Orchestrator) acquireWorkingCopy(ctx context.Context) (func(), error) {
	original, err := o.repo.CurrentBranch(ctx)
	if err != nil {
		return nil, fmt.Errorf("record current branch: %w", err)
	}

	return func() {
		if o.cfg.DryRun {
			o.log.Info("dry run: would restore original branch", "branch", original)
			return
		}
		// Restoration must survive cancellation of the run context.
		if err := o.repo.Checkout(context.WithoutCancel(ctx), original); err != nil {
			o.log.Warn("failed to restore original branch", "branch", original, "error", err)
			return
		}
		o.log.Info("restored original branch", "branch", original)
	}, nil
}

func (o *Orchestrator) fetchRemotes(ctx context.Context) error {
	// The upstream fetch is required sequencing, not an optimization: the
	// merge commit is only resolvable locally after it.
	for _, remote := range []string{"origin", "upstream"} {
		summary, err := o.repo.Fetch(ctx, remote, o.cfg.DryRun)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", remote, err)
		}
		o.log.Info("fetched remote", "remote", remote, "dry_run", o.cfg.DryRun, "summary", summary)
	}
	return nil
}

// executeTarget runs the full task lifecycle for one branch. Failures are
// recorded on the task and never abort sibling branches.
func (o *Orchestrator) executeTarget(ctx context.Context, fork, upstream gh.Repo, pr gh.ChangeRequest, commits []gitrepo.Commit, patchPath, branch string) Task {
	task := Task{
		Branch:      branch,
		LocalBranch: LocalBranchName(pr.Number, branch),
		Status:      TaskStatusPending,
	}

	// Idempotency guard: a change request that already exists (open or
	// merged) for this (source, target) pair means re-runs must not push or
	// create anything.
	existing, err := o.findExistingPR(ctx, fork, upstream, task.LocalBranch, branch)
	if err != nil {
		return task.fail("check existing change request", err)
	}
	if existing != nil {
		task.Status = TaskStatusExisting
		task.Reason = fmt.Sprintf("change request already exists: %s", existing.URL)
		task.Result = existing
		o.log.Info("skipping target: change request already exists", "branch", branch, "url", existing.URL)
		return task
	}

	if o.cfg.DryRun {
		o.log.Info("dry run: would create local branch", "branch", task.LocalBranch, "from", "origin/"+branch)
		o.log.Info("dry run: would replay commits", "branch", task.LocalBranch, "commits", len(commits))
		o.log.Info("dry run: would push branch and open change request", "branch", task.LocalBranch, "target", branch)
		task.Status = TaskStatusDryRun
		task.Reason = "dry run enabled"
		return task
	}

	if err := o.ensureLocalBranch(ctx, task.LocalBranch, branch); err != nil {
		return task.fail(fmt.Sprintf("prepare local branch %s", task.LocalBranch), err)
	}
	if err := o.repo.Checkout(ctx, task.LocalBranch); err != nil {
		return task.fail(fmt.Sprintf("checkout %s", task.LocalBranch), err)
	}
	task.Status = TaskStatusBranchReady

	task = o.replay(ctx, task, commits, patchPath)
	if task.Status != TaskStatusReplayed {
		return task
	}

	return o.publish(ctx, fork, upstream, pr, task)
}

func (o *Orchestrator) ensureLocalBranch(ctx context.Context, name, target string) error {
	exists, err := o.repo.HasLocalBranch(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		o.log.Info("reusing existing local branch", "branch", name)
		return nil
	}

	o.log.Info("creating local branch", "branch", name, "from", "origin/"+target)
	return o.repo.CreateTrackingBranch(ctx, name, "origin", target)
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
