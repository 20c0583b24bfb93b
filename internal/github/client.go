package gh

import (
	"context"
	"errors"
)

// Repo identifies a repository by owner and name.
type Repo struct {
	Owner string
	Name  string
}

func (r Repo) String() string {
	return r.Owner + "/" + r.Name
}

// ChangeRequest is an immutable snapshot of a pull request as fetched from the
// hosting API. Labels are only ever mutated through SetLabels.
type ChangeRequest struct {
	Number      int
	Title       string
	Body        string
	State       string
	URL         string
	BaseBranch  string
	HeadSHA     string
	MergeSHA    string
	IsMerged    bool
	CommitCount int
	Labels      []string
}

// Branch is a remote branch reference.
type Branch struct {
	Name string
	SHA  string
}

// ListPROptions filters pull request listings. Head uses the cross-repository
// form "<owner>:<branch>".
type ListPROptions struct {
	Base  string
	Head  string
	State string
}

// CreatePROptions defines the metadata required to open a change request.
type CreatePROptions struct {
	Title string
	Body  string
	Head  string
	Base  string
}

// Client exposes the hosting-API operations required by the propagation engine.
type Client interface {
	CurrentUser(ctx context.Context) (string, error)
	ParentRepo(ctx context.Context, repo Repo) (Repo, error)
	GetPullRequest(ctx context.Context, repo Repo, number int) (ChangeRequest, error)
	ListBranches(ctx context.Context, repo Repo) ([]Branch, error)
	GetBranch(ctx context.Context, repo Repo, branch string) (Branch, error)
	CreateBranchRef(ctx context.Context, repo Repo, branch, sha string) error
	UpdateBranchRef(ctx context.Context, repo Repo, branch, sha string) error
	ListPullRequests(ctx context.Context, repo Repo, opts ListPROptions) ([]ChangeRequest, error)
	CreatePullRequest(ctx context.Context, repo Repo, input CreatePROptions) (ChangeRequest, error)
	SetLabels(ctx context.Context, repo Repo, number int, labels []string) error
	GetPullRequestPatch(ctx context.Context, repo Repo, number int) (string, error)
}

// Factory builds concrete clients (e.g. REST-backed) for the engine.
type Factory interface {
	New(ctx context.Context, token string) (Client, error)
}

// ErrBranchNotFound indicates the requested branch does not exist on the
// queried side. Callers treat it as expected absence, not transport failure.
var ErrBranchNotFound = errors.New("github: branch not found")

// ErrNotAFork indicates the repository has no parent to propagate into.
var ErrNotAFork = errors.New("github: repository has no parent")

// retryableError marks an error that may succeed if the operation is retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	if e == nil || e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// IsRetryable reports whether the supplied error resulted from a retryable
// hosting-API failure (for example, a transient network problem or a
// rate-limited request).
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var target *retryableError
	return errors.As(err, &target)
}
