// Package gitrepo drives the single local working copy shared by all
// propagation tasks. Implementations may shell out to git or use a pure Go
// library.
package gitrepo

import (
	"context"
	"fmt"
	"strings"
)

// Commit is a local commit reference in merge order context.
type Commit struct {
	SHA     string
	Subject string
}

// ShortSHA returns the abbreviated commit hash used in operator-facing output.
func (c Commit) ShortSHA() string {
	if len(c.SHA) <= 12 {
		return c.SHA
	}
	return c.SHA[:12]
}

// PushOutcome classifies the result of a branch push. All outcomes except
// rejection are successes to be reported, not errors.
type PushOutcome string

const (
	PushUpToDate     PushOutcome = "up-to-date"
	PushFastForward  PushOutcome = "fast-forward"
	PushNewRef       PushOutcome = "new-ref"
	PushForcedUpdate PushOutcome = "forced-update"
	PushRejected     PushOutcome = "rejected"
)

// PushResult reports the classified outcome of a push together with the
// old/new object summary git printed for the ref.
type PushResult struct {
	Outcome PushOutcome
	Ref     string
	Summary string
}

// WorkingCopy exposes the git primitives required by the propagation engine.
// All operations mutate one shared working tree and index, so callers must
// never interleave them concurrently.
type WorkingCopy interface {
	Root() string
	RemoteURL(ctx context.Context, remote string) (string, error)
	CurrentBranch(ctx context.Context) (string, error)
	IsDirty(ctx context.Context) (bool, error)
	Fetch(ctx context.Context, remote string, dryRun bool) (string, error)
	HasLocalBranch(ctx context.Context, name string) (bool, error)
	CreateTrackingBranch(ctx context.Context, name, remote, from string) error
	Checkout(ctx context.Context, ref string) error
	RecentCommits(ctx context.Context, ref string, count int) ([]Commit, error)
	CherryPick(ctx context.Context, sha string) error
	AbortCherryPick(ctx context.Context) error
	IsPatchApplied(ctx context.Context, patchPath string) (bool, error)
	Push(ctx context.Context, remote, branch string, force bool) (PushResult, error)
}

// ConflictError reports a cherry-pick that did not apply cleanly. It carries
// the paths left in conflict so the resolution step can surface them.
type ConflictError struct {
	Commit string
	Files  []string
	Output string
}

func (e *ConflictError) Error() string {
	if len(e.Files) == 0 {
		return fmt.Sprintf("cherry-pick of %s conflicted", e.Commit)
	}
	return fmt.Sprintf("cherry-pick of %s conflicted in %s", e.Commit, strings.Join(e.Files, ", "))
}

// ParseGitHubRemote extracts the owner and repository name from an ssh or
// https github.com remote URL.
func ParseGitHubRemote(url string) (owner, name string, err error) {
	url = strings.TrimSpace(url)

	_, rest, found := strings.Cut(url, "github.com")
	if !found {
		return "", "", fmt.Errorf("remote %q is not a github.com repository", url)
	}

	rest = strings.TrimLeft(rest, ":/")
	rest = strings.TrimSuffix(rest, ".git")
	rest = strings.TrimSuffix(rest, "/")

	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("remote %q does not name an owner/repository pair", url)
	}

	return parts[0], parts[1], nil
}
