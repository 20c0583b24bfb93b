package gh

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	github "github.com/google/go-github/v55/github"
	"golang.org/x/oauth2"
)

const defaultUserAgent = "eve-ci-propagate"

// NewRESTFactory returns a client factory backed by the go-github REST client.
func NewRESTFactory() Factory {
	return &restFactory{userAgent: defaultUserAgent}
}

type restFactory struct {
	userAgent string
}

type restClient struct {
	client *github.Client
}

func (f *restFactory) New(ctx context.Context, token string) (Client, error) {
	if token == "" {
		return nil, fmt.Errorf("github token is required")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)

	ghClient := github.NewClient(tc)
	if f.userAgent != "" {
		ghClient.UserAgent = f.userAgent
	}

	return &restClient{client: ghClient}, nil
}

func (c *restClient) CurrentUser(ctx context.Context) (string, error) {
	user, _, err := c.client.Users.Get(ctx, "")
	if err != nil {
		return "", fmt.Errorf("get authenticated user: %w", classifyGitHubError(err))
	}
	return user.GetLogin(), nil
}

func (c *restClient) ParentRepo(ctx context.Context, repo Repo) (Repo, error) {
	r, _, err := c.client.Repositories.Get(ctx, repo.Owner, repo.Name)
	if err != nil {
		return Repo{}, fmt.Errorf("get repository %s: %w", repo, classifyGitHubError(err))
	}

	parent := r.GetParent()
	if parent == nil {
		return Repo{}, fmt.Errorf("repository %s: %w", repo, ErrNotAFork)
	}

	return Repo{
		Owner: parent.GetOwner().GetLogin(),
		Name:  parent.GetName(),
	}, nil
}

func (c *restClient) GetPullRequest(ctx context.Context, repo Repo, number int) (ChangeRequest, error) {
	pr, _, err := c.client.PullRequests.Get(ctx, repo.Owner, repo.Name, number)
	if err != nil {
		return ChangeRequest{}, fmt.Errorf("get pull request #%d: %w", number, classifyGitHubError(err))
	}
	return convertPullRequest(pr), nil
}

func convertPullRequest(pr *github.PullRequest) ChangeRequest {
	labels := make([]string, 0, len(pr.Labels))
	for _, label := range pr.Labels {
		if label == nil {
			continue
		}
		if name := label.GetName(); name != "" {
			labels = append(labels, name)
		}
	}

	cr := ChangeRequest{
		Number:      pr.GetNumber(),
		Title:       pr.GetTitle(),
		Body:        pr.GetBody(),
		State:       pr.GetState(),
		URL:         pr.GetHTMLURL(),
		MergeSHA:    pr.GetMergeCommitSHA(),
		IsMerged:    pr.GetMerged(),
		CommitCount: pr.GetCommits(),
		Labels:      labels,
	}

	if base := pr.GetBase(); base != nil {
		cr.BaseBranch = base.GetRef()
	}
	if head := pr.GetHead(); head != nil {
		cr.HeadSHA = head.GetSHA()
	}

	// List endpoints omit the merged flag but carry the merge timestamp.
	if !cr.IsMerged && pr.MergedAt != nil && !pr.MergedAt.IsZero() {
		cr.IsMerged = true
	}

	return cr
}

func (c *restClient) ListBranches(ctx context.Context, repo Repo) ([]Branch, error) {
	opts := &github.BranchListOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var results []Branch
	for {
		branches, resp, err := c.client.Repositories.ListBranches(ctx, repo.Owner, repo.Name, opts)
		if err != nil {
			return nil, fmt.Errorf("list branches for %s: %w", repo, classifyGitHubError(err))
		}

		for _, branch := range branches {
			if branch == nil {
				continue
			}
			results = append(results, Branch{
				Name: branch.GetName(),
				SHA:  branch.GetCommit().GetSHA(),
			})
		}

		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return results, nil
}

func (c *restClient) GetBranch(ctx context.Context, repo Repo, branch string) (Branch, error) {
	b, resp, err := c.client.Repositories.GetBranch(ctx, repo.Owner, repo.Name, branch, false)
	if err != nil {
		if isNotFound(resp, err) {
			return Branch{}, ErrBranchNotFound
		}
		return Branch{}, fmt.Errorf("get branch %s: %w", branch, classifyGitHubError(err))
	}
	return Branch{Name: b.GetName(), SHA: b.GetCommit().GetSHA()}, nil
}

func (c *restClient) CreateBranchRef(ctx context.Context, repo Repo, branch, sha string) error {
	ref := &github.Reference{
		Ref:    github.String(fmt.Sprintf("refs/heads/%s", branch)),
		Object: &github.GitObject{SHA: github.String(sha)},
	}

	if _, _, err := c.client.Git.CreateRef(ctx, repo.Owner, repo.Name, ref); err != nil {
		return fmt.Errorf("create ref %s: %w", branch, classifyGitHubError(err))
	}
	return nil
}

func (c *restClient) UpdateBranchRef(ctx context.Context, repo Repo, branch, sha string) error {
	ref := &github.Reference{
		Ref:    github.String(fmt.Sprintf("refs/heads/%s", branch)),
		Object: &github.GitObject{SHA: github.String(sha)},
	}

	// Fork branches are mirrors of upstream, so a non-fast-forward move of the
	// reference is acceptable here.
	if _, _, err := c.client.Git.UpdateRef(ctx, repo.Owner, repo.Name, ref, true); err != nil {
		return fmt.Errorf("update ref %s: %w", branch, classifyGitHubError(err))
	}
	return nil
}

func (c *restClient) ListPullRequests(ctx context.Context, repo Repo, filter ListPROptions) ([]ChangeRequest, error) {
	opts := &github.PullRequestListOptions{
		State: filter.State,
		Head:  filter.Head,
		Base:  filter.Base,
		ListOptions: github.ListOptions{
			PerPage: 50,
		},
	}

	var results []ChangeRequest
	for {
		prs, resp, err := c.client.PullRequests.List(ctx, repo.Owner, repo.Name, opts)
		if err != nil {
			return nil, fmt.Errorf("list pull requests: %w", classifyGitHubError(err))
		}

		for _, pr := range prs {
			if pr == nil {
				continue
			}
			results = append(results, convertPullRequest(pr))
		}

		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return results, nil
}

func (c *restClient) CreatePullRequest(ctx context.Context, repo Repo, input CreatePROptions) (ChangeRequest, error) {
	pr, _, err := c.client.PullRequests.Create(ctx, repo.Owner, repo.Name, &github.NewPullRequest{
		Title: github.String(input.Title),
		Head:  github.String(input.Head),
		Base:  github.String(input.Base),
		Body:  github.String(input.Body),
	})
	if err != nil {
		return ChangeRequest{}, fmt.Errorf("create pull request: %w", classifyGitHubError(err))
	}
	return convertPullRequest(pr), nil
}

func (c *restClient) SetLabels(ctx context.Context, repo Repo, number int, labels []string) error {
	if _, _, err := c.client.Issues.ReplaceLabelsForIssue(ctx, repo.Owner, repo.Name, number, labels); err != nil {
		return fmt.Errorf("set labels on #%d: %w", number, classifyGitHubError(err))
	}
	return nil
}

// GetPullRequestPatch fetches the change request as a patch document through
// the content-negotiated raw endpoint.
func (c *restClient) GetPullRequestPatch(ctx context.Context, repo Repo, number int) (string, error) {
	patch, _, err := c.client.PullRequests.GetRaw(ctx, repo.Owner, repo.Name, number, github.RawOptions{Type: github.Patch})
	if err != nil {
		return "", fmt.Errorf("get patch for #%d: %w", number, classifyGitHubError(err))
	}
	return patch, nil
}

func isNotFound(resp *github.Response, err error) bool {
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return true
	}
	var githubErr *github.ErrorResponse
	if errors.As(err, &githubErr) {
		if githubErr.Response != nil && githubErr.Response.StatusCode == http.StatusNotFound {
			return true
		}
	}
	return false
}

func classifyGitHubError(err error) error {
	if err == nil {
		return nil
	}
	if isRetryableGitHubError(err) {
		return &retryableError{err: err}
	}
	return err
}

func isRetryableGitHubError(err error) bool {
	if err == nil {
		return false
	}

	var rateLimitErr *github.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return true
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return true
	}

	var acceptedErr *github.AcceptedError
	if errors.As(err, &acceptedErr) {
		return true
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) {
		if respErr.Response != nil {
			code := respErr.Response.StatusCode
			if code == http.StatusTooManyRequests || (code >= 500 && code <= 599) {
				return true
			}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true
		}
	}

	return false
}

// CrossRepoHead formats a head reference for cross-repository pull requests.
func CrossRepoHead(owner, branch string) string {
	return strings.TrimSpace(owner) + ":" + strings.TrimSpace(branch)
}
