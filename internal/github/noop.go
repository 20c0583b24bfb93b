package gh

import (
	"context"
	"fmt"
)

// NewNoopFactory returns a Factory that builds noop clients.
func NewNoopFactory() Factory {
	return noopFactory{}
}

type noopFactory struct{}

func (noopFactory) New(ctx context.Context, token string) (Client, error) {
	return noopClient{}, nil
}

type noopClient struct{}

func (noopClient) CurrentUser(ctx context.Context) (string, error) {
	return "", fmt.Errorf("noop github client not implemented")
}

func (noopClient) ParentRepo(ctx context.Context, repo Repo) (Repo, error) {
	return Repo{}, fmt.Errorf("noop github client not implemented")
}

func (noopClient) GetPullRequest(ctx context.Context, repo Repo, number int) (ChangeRequest, error) {
	return ChangeRequest{}, fmt.Errorf("noop github client not implemented")
}

func (noopClient) ListBranches(ctx context.Context, repo Repo) ([]Branch, error) {
	return nil, fmt.Errorf("noop github client not implemented")
}

func (noopClient) GetBranch(ctx context.Context, repo Repo, branch string) (Branch, error) {
	return Branch{}, fmt.Errorf("noop github client not implemented")
}

func (noopClient) CreateBranchRef(ctx context.Context, repo Repo, branch, sha string) error {
	return fmt.Errorf("noop github client not implemented")
}

func (noopClient) UpdateBranchRef(ctx context.Context, repo Repo, branch, sha string) error {
	return fmt.Errorf("noop github client not implemented")
}

func (noopClient) ListPullRequests(ctx context.Context, repo Repo, opts ListPROptions) ([]ChangeRequest, error) {
	return nil, fmt.Errorf("noop github client not implemented")
}

func (noopClient) CreatePullRequest(ctx context.Context, repo Repo, input CreatePROptions) (ChangeRequest, error) {
	return ChangeRequest{}, fmt.Errorf("noop github client not implemented")
}

func (noopClient) SetLabels(ctx context.Context, repo Repo, number int, labels []string) error {
	return fmt.Errorf("noop github client not implemented")
}

func (noopClient) GetPullRequestPatch(ctx context.Context, repo Repo, number int) (string, error) {
	return "", fmt.Errorf("noop github client not implemented")
}
