package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	gh "github.com/eve-ci/propagate/internal/github"
	"github.com/eve-ci/propagate/internal/gitrepo"
)

// extractCommits produces the ordered list of commits that were merged,
// oldest first, by walking backward from the merge commit for exactly the
// change request's commit count and reversing. An unmerged change request
// yields no commits.
func (o *Orchestrator) extractCommits(ctx context.Context, pr gh.ChangeRequest) ([]gitrepo.Commit, error) {
	if !pr.IsMerged {
		return nil, nil
	}
	if pr.MergeSHA == "" {
		return nil, fmt.Errorf("change request #%d has no merge commit", pr.Number)
	}

	recent, err := o.repo.RecentCommits(ctx, pr.MergeSHA, pr.CommitCount)
	if err != nil {
		return nil, fmt.Errorf("walk history from merge commit %s: %w", pr.MergeSHA, err)
	}

	commits := make([]gitrepo.Commit, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		commits = append(commits, recent[i])
	}

	o.log.Info("commits to replay", "count", len(commits))
	for _, c := range commits {
		o.log.Info("commit", "sha", c.ShortSHA(), "subject", c.Subject)
	}

	return commits, nil
}

// fetchPatchFile downloads the change request's patch document into a
// temporary file used by the already-applied probe. The returned remove
// function is safe to call on every exit path.
func (o *Orchestrator) fetchPatchFile(ctx context.Context, upstream gh.Repo, pr gh.ChangeRequest) (string, func(), error) {
	patch, err := o.gh.GetPullRequestPatch(ctx, upstream, pr.Number)
	if err != nil {
		return "", nil, fmt.Errorf("fetch patch document: %w", err)
	}

	dir, err := os.MkdirTemp("", "propagate-")
	if err != nil {
		return "", nil, fmt.Errorf("create patch directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("merge-pr-%d.patch", pr.Number))
	if err := os.WriteFile(path, []byte(patch), 0o600); err != nil {
		_ = os.RemoveAll(dir)
		return "", nil, fmt.Errorf("write patch file: %w", err)
	}

	o.log.Info("saved patch document", "path", path)

	remove := func() {
		if err := os.RemoveAll(dir); err != nil {
			o.log.Warn("failed to remove patch file", "path", path, "error", err)
		}
	}

	return path, remove, nil
}
