package orchestrator

import (
	"context"
	"errors"

	"github.com/eve-ci/propagate/internal/gitrepo"
	"github.com/eve-ci/propagate/internal/resolve"
)

// replay applies the extracted commits in merge order onto the checked-out
// local branch. Each commit preserves authorship and records the source hash
// in its trailer. A commit that fails to apply suspends the task for human
// resolution; "resumed" continues with the next commit, "aborted" terminates
// this branch's task only.
func (o *Orchestrator) replay(ctx context.Context, task Task, commits []gitrepo.Commit, patchPath string) Task {
	applied, err := o.repo.IsPatchApplied(ctx, patchPath)
	if err != nil {
		o.log.Warn("already-applied probe failed, replaying anyway", "branch", task.LocalBranch, "error", err)
	} else if applied {
		o.log.Info("change already applied to branch", "branch", task.LocalBranch)
		task.Status = TaskStatusReplayed
		task.Reason = "change already applied"
		return task
	}

	task.Status = TaskStatusReplaying
	o.log.Info("replaying commits", "branch", task.LocalBranch, "count", len(commits))

	for _, commit := range commits {
		err := o.repo.CherryPick(ctx, commit.SHA)
		if err == nil {
			o.log.Info("replayed commit", "branch", task.LocalBranch, "sha", commit.ShortSHA(), "subject", commit.Subject)
			continue
		}

		var conflict *gitrepo.ConflictError
		if !errors.As(err, &conflict) {
			o.abortReplay(ctx, task)
			return task.fail("replay commit "+commit.ShortSHA(), err)
		}

		task.Status = TaskStatusConflict
		o.log.Warn("replay conflict, escalating for resolution",
			"branch", task.LocalBranch, "sha", commit.ShortSHA(), "files", conflict.Files)

		resolution, err := o.resolver.Resolve(ctx, resolve.Conflict{
			Commit:  commit.SHA,
			Subject: commit.Subject,
			Branch:  task.Branch,
			Files:   conflict.Files,
			Output:  conflict.Output,
		})
		if err != nil {
			o.abortReplay(ctx, task)
			return task.fail("resolve conflict on "+commit.ShortSHA(), err)
		}

		if resolution.Outcome == resolve.OutcomeAborted {
			o.abortReplay(ctx, task)
			task.Status = TaskStatusAborted
			task.Reason = "conflict on commit " + commit.ShortSHA() + " aborted by operator"
			o.log.Warn("replay aborted by operator", "branch", task.LocalBranch, "sha", commit.ShortSHA())
			return task
		}

		task.Status = TaskStatusReplaying
		o.log.Info("conflict resolved, resuming replay",
			"branch", task.LocalBranch, "sha", commit.ShortSHA(), "resolved_files", resolution.ResolvedFiles)
	}

	task.Status = TaskStatusReplayed
	return task
}

func (o *Orchestrator) abortReplay(ctx context.Context, task Task) {
	if err := o.repo.AbortCherryPick(ctx); err != nil {
		o.log.Warn("failed to abort cherry-pick", "branch", task.LocalBranch, "error", err)
	}
}
