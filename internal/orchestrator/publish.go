package orchestrator

import (
	"context"
	"fmt"

	"github.com/eve-ci/propagate/internal/branches"
	gh "github.com/eve-ci/propagate/internal/github"
	"github.com/eve-ci/propagate/internal/gitrepo"
)

// findExistingPR reports whether an open or merged pull request already
// proposes localBranch into the upstream target branch. Closed-unmerged
// requests do not count, a fresh one may be opened in their place.
func (o *Orchestrator) findExistingPR(ctx context.Context, fork, upstream gh.Repo, localBranch, target string) (*gh.ChangeRequest, error) {
	prs, err := o.gh.ListPullRequests(ctx, upstream, gh.ListPROptions{
		State: "all",
		Head:  gh.CrossRepoHead(fork.Owner, localBranch),
		Base:  target,
	})
	if err != nil {
		return nil, err
	}
	for i := range prs {
		if prs[i].State == "open" || prs[i].IsMerged {
			return &prs[i], nil
		}
	}
	return nil, nil
}

// publish pushes the replayed branch to the fork and opens the upstream
// pull request, pausing for operator confirmation in between. Declining
// the prompt leaves the pushed branch in place and ends the task without
// marking it failed.
func (o *Orchestrator) publish(ctx context.Context, fork, upstream gh.Repo, pr gh.ChangeRequest, task Task) Task {
	result, err := o.repo.Push(ctx, "origin", task.LocalBranch, true)
	if err != nil {
		return task.fail("push", &PublishError{Branch: task.Branch, Stage: "push", Err: err})
	}
	o.logPushOutcome(task, result)

	prompt := fmt.Sprintf("Open pull request %s -> %s/%s?", task.LocalBranch, upstream.String(), task.Branch)
	ok, err := o.confirm.Confirm(ctx, prompt)
	if err != nil {
		return task.fail("confirm", &PublishError{Branch: task.Branch, Stage: "confirm", Err: err})
	}
	if !ok {
		task.Status = TaskStatusDeclined
		task.Reason = "pull request creation declined"
		o.log.Info("pull request creation declined", "branch", task.Branch)
		return task
	}

	created, err := o.gh.CreatePullRequest(ctx, upstream, buildCreatePROptions(fork, pr, task))
	if err != nil {
		return task.fail("create pull request", &PublishError{Branch: task.Branch, Stage: "create", Err: err})
	}

	task.Status = TaskStatusPublished
	task.Result = &created
	o.log.Info("pull request created", "branch", task.Branch, "url", created.URL)
	return task
}

func (o *Orchestrator) logPushOutcome(task Task, result gitrepo.PushResult) {
	switch result.Outcome {
	case gitrepo.PushUpToDate:
		o.log.Info("branch already up-to-date on fork", "branch", task.LocalBranch)
	case gitrepo.PushForcedUpdate:
		o.log.Warn("branch force-updated on fork", "branch", task.LocalBranch, "summary", result.Summary)
	default:
		o.log.Info("branch pushed to fork", "branch", task.LocalBranch, "outcome", string(result.Outcome), "summary", result.Summary)
	}
}

func buildCreatePROptions(fork gh.Repo, pr gh.ChangeRequest, task Task) gh.CreatePROptions {
	title := fmt.Sprintf("[Merge PR#%d -> %s] %s", pr.Number, branches.ShortName(task.Branch), pr.Title)
	body := fmt.Sprintf("Propagates %s to `%s`.", pr.URL, task.Branch)
	return gh.CreatePROptions{
		Title: title,
		Body:  body,
		Head:  gh.CrossRepoHead(fork.Owner, task.LocalBranch),
		Base:  task.Branch,
	}
}
