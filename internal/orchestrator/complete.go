package orchestrator

import (
	"context"

	gh "github.com/eve-ci/propagate/internal/github"
	"github.com/eve-ci/propagate/internal/labels"
)

// trackCompletion marks the source pull request once every branch named by
// its target labels has an open or merged propagation pull request. The
// check runs against live state rather than this run's tasks, so a later
// re-run can finish the bookkeeping after a previously aborted branch is
// dealt with.
func (o *Orchestrator) trackCompletion(ctx context.Context, fork, upstream gh.Repo, pr gh.ChangeRequest) (bool, error) {
	declared := labels.Remove(labels.TargetBranches(pr.Labels), pr.BaseBranch)
	if len(declared) == 0 {
		return false, nil
	}

	for _, branch := range declared {
		existing, err := o.findExistingPR(ctx, fork, upstream, LocalBranchName(pr.Number, branch), branch)
		if err != nil {
			return false, err
		}
		if existing == nil {
			o.log.Info("completion pending, branch has no pull request yet", "branch", branch)
			return false, nil
		}
	}

	if o.cfg.DryRun {
		o.log.Info("dry run: would mark pull request completed", "pr", pr.Number)
		return true, nil
	}

	if err := o.gh.SetLabels(ctx, upstream, pr.Number, labels.WithCompleted(pr.Labels)); err != nil {
		return false, err
	}
	o.log.Info("pull request marked completed", "pr", pr.Number)
	return true, nil
}
