package orchestrator

import (
	"fmt"

	gh "github.com/eve-ci/propagate/internal/github"
)

// TaskStatus describes where a propagation task is in its lifecycle:
//
//	pending -> branch_ready -> replaying -> replayed -> published
//	                              |
//	                           conflict -> (replaying | aborted)
//
// existing, dry_run, declined and failed are terminal states entered from the
// evaluation, confirmation and error paths.
type TaskStatus string

const (
	TaskStatusPending     TaskStatus = "pending"
	TaskStatusBranchReady TaskStatus = "branch_ready"
	TaskStatusReplaying   TaskStatus = "replaying"
	TaskStatusConflict    TaskStatus = "conflict"
	TaskStatusReplayed    TaskStatus = "replayed"
	TaskStatusPublished   TaskStatus = "published"
	TaskStatusExisting    TaskStatus = "existing"
	TaskStatusAborted     TaskStatus = "aborted"
	TaskStatusDeclined    TaskStatus = "declined"
	TaskStatusDryRun      TaskStatus = "dry_run"
	TaskStatusFailed      TaskStatus = "failed"
)

// Task is the unit of work: one source change request propagated onto one
// target branch.
type Task struct {
	Branch      string
	LocalBranch string
	Status      TaskStatus
	Reason      string
	Err         error

	// Result is the change request created for this branch, or the one that
	// already existed.
	Result *gh.ChangeRequest
}

func (t Task) fail(stage string, err error) Task {
	t.Status = TaskStatusFailed
	t.Err = err
	t.Reason = fmt.Sprintf("%s: %v", stage, err)
	return t
}

// LocalBranchName derives the deterministic local branch for a (change
// request, target branch) pair. Re-runs reuse the branch instead of creating
// a second one.
func LocalBranchName(number int, branch string) string {
	return fmt.Sprintf("pr/%d/%s", number, branch)
}

// Result captures the outcome of a full propagation run.
type Result struct {
	Source        gh.ChangeRequest
	Skipped       bool
	SkippedReason string
	Tasks         []Task

	// Completed reports that every declared target branch has a change
	// request, i.e. the completion label was (or in dry-run, would be)
	// applied.
	Completed bool
}

// FailedBranches lists the target branches whose tasks failed.
func (r Result) FailedBranches() []string {
	var failed []string
	for _, task := range r.Tasks {
		if task.Status == TaskStatusFailed {
			failed = append(failed, task.Branch)
		}
	}
	return failed
}
