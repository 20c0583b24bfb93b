package orchestrator

import (
	"context"
	"errors"

	gh "github.com/eve-ci/propagate/internal/github"
)

// syncForkBranches ensures every target branch exists in the fork and points
// at the same commit as upstream. Fork branches are mirrors, never developed
// independently, so a diverged reference is moved to upstream's commit rather
// than merged. Any hosting-API failure aborts the whole run as a *SyncError.
func (o *Orchestrator) syncForkBranches(ctx context.Context, fork, upstream gh.Repo, targets []string) error {
	for _, branch := range targets {
		upstreamBranch, err := o.gh.GetBranch(ctx, upstream, branch)
		if err != nil {
			return &SyncError{Branch: branch, Err: err}
		}

		forkBranch, err := o.gh.GetBranch(ctx, fork, branch)
		switch {
		case errors.Is(err, gh.ErrBranchNotFound):
			if o.cfg.DryRun {
				o.log.Info("dry run: would create fork branch", "branch", branch, "sha", upstreamBranch.SHA)
				continue
			}
			if err := o.gh.CreateBranchRef(ctx, fork, branch, upstreamBranch.SHA); err != nil {
				return &SyncError{Branch: branch, Err: err}
			}
			o.log.Info("created fork branch", "branch", branch, "sha", upstreamBranch.SHA)

		case err != nil:
			return &SyncError{Branch: branch, Err: err}

		case forkBranch.SHA == upstreamBranch.SHA:
			o.log.Info("fork branch is up-to-date", "branch", branch)

		default:
			if o.cfg.DryRun {
				o.log.Info("dry run: would fast-forward fork branch", "branch", branch, "old", forkBranch.SHA, "new", upstreamBranch.SHA)
				continue
			}
			if err := o.gh.UpdateBranchRef(ctx, fork, branch, upstreamBranch.SHA); err != nil {
				return &SyncError{Branch: branch, Err: err}
			}
			o.log.Info("fast-forwarded fork branch", "branch", branch, "old", forkBranch.SHA, "new", upstreamBranch.SHA)
		}
	}

	return nil
}
