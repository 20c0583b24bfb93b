package gitrepo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ShellRepo drives an existing local clone by shelling out to the system git
// binary.
type ShellRepo struct {
	// Git is the git binary to execute. Defaults to "git" when empty.
	Git string

	// NetworkRetries controls how many additional attempts should be made for
	// network oriented git commands (fetch, push). When zero, a default of 2
	// retries is used.
	NetworkRetries int

	// NetworkRetryDelay controls the initial backoff delay between retries.
	// When zero, a default of 1 second is used. Backoff grows exponentially
	// per attempt.
	NetworkRetryDelay time.Duration

	// NetworkTimeout bounds network commands that would otherwise inherit an
	// unbounded context. When zero, a default of 2 minutes is used.
	NetworkTimeout time.Duration

	path string
}

// Open verifies that path is the top of a git working copy and returns a
// ShellRepo rooted there.
func Open(ctx context.Context, path string) (*ShellRepo, error) {
	if path == "" {
		path = "."
	}

	r := &ShellRepo{path: path}
	top, err := r.capture(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, fmt.Errorf("open git repository at %s: %w", path, err)
	}

	r.path = strings.TrimSpace(top)
	return r, nil
}

func (r *ShellRepo) Root() string {
	return r.path
}

func (r *ShellRepo) gitBinary() string {
	if r.Git == "" {
		return "git"
	}
	return r.Git
}

func (r *ShellRepo) RemoteURL(ctx context.Context, remote string) (string, error) {
	out, err := r.capture(ctx, "remote", "get-url", remote)
	if err != nil {
		return "", fmt.Errorf("get url of remote %s: %w", remote, err)
	}
	return strings.TrimSpace(out), nil
}

func (r *ShellRepo) CurrentBranch(ctx context.Context) (string, error) {
	out, err := r.capture(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("resolve current branch: %w", err)
	}
	return strings.TrimSpace(out), nil
}

func (r *ShellRepo) IsDirty(ctx context.Context) (bool, error) {
	out, err := r.capture(ctx, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("git status: %w", err)
	}
	return strings.TrimSpace(out) != "", nil
}

// Fetch updates the named remote and returns git's transfer summary for
// logging. With dryRun the remote reports what would change without updating
// any local refs.
func (r *ShellRepo) Fetch(ctx context.Context, remote string, dryRun bool) (string, error) {
	args := []string{"fetch"}
	if dryRun {
		args = append(args, "--dry-run")
	}
	args = append(args, remote)

	out, err := r.run(ctx, args...)
	if err != nil {
		return "", fmt.Errorf("git fetch %s: %w", remote, err)
	}
	return strings.TrimSpace(out), nil
}

func (r *ShellRepo) HasLocalBranch(ctx context.Context, name string) (bool, error) {
	_, err := r.capture(ctx, "show-ref", "--verify", "--quiet", "refs/heads/"+name)
	if err == nil {
		return true, nil
	}
	var gitErr *GitError
	if errors.As(err, &gitErr) {
		return false, nil
	}
	return false, err
}

// CreateTrackingBranch creates a local branch at <remote>/<from>. When the
// remote already has a branch of the same name (from a prior partial run),
// the new branch tracks it so pushes resolve the right upstream.
func (r *ShellRepo) CreateTrackingBranch(ctx context.Context, name, remote, from string) error {
	startRef := fmt.Sprintf("%s/%s", remote, from)
	if _, err := r.run(ctx, "branch", name, startRef); err != nil {
		return fmt.Errorf("git branch %s from %s: %w", name, startRef, err)
	}

	remoteRef := fmt.Sprintf("refs/remotes/%s/%s", remote, name)
	if _, err := r.capture(ctx, "show-ref", "--verify", "--quiet", remoteRef); err == nil {
		if _, err := r.run(ctx, "branch", "--set-upstream-to", fmt.Sprintf("%s/%s", remote, name), name); err != nil {
			return fmt.Errorf("set upstream of %s: %w", name, err)
		}
	}

	return nil
}

func (r *ShellRepo) Checkout(ctx context.Context, ref string) error {
	if _, err := r.run(ctx, "checkout", ref); err != nil {
		return fmt.Errorf("git checkout %s: %w", ref, err)
	}
	return nil
}

// RecentCommits walks history backward from ref for count commits, newest
// first. The ref must be resolvable locally, which for merge commits requires
// a prior fetch of the upstream remote.
func (r *ShellRepo) RecentCommits(ctx context.Context, ref string, count int) ([]Commit, error) {
	if count <= 0 {
		return nil, nil
	}

	out, err := r.capture(ctx, "log", "--format=%H%x09%s", "-n", strconv.Itoa(count), ref)
	if err != nil {
		return nil, fmt.Errorf("git log %s: %w", ref, err)
	}

	var commits []Commit
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if line == "" {
			continue
		}
		sha, subject, _ := strings.Cut(line, "\t")
		commits = append(commits, Commit{SHA: sha, Subject: subject})
	}

	return commits, nil
}

// CherryPick replays a single commit onto the checked-out branch, recording
// the source hash in the commit trailer (-x) and signing off (-s). A replay
// that stops on conflicts is reported as a *ConflictError carrying the
// conflicted paths.
func (r *ShellRepo) CherryPick(ctx context.Context, sha string) error {
	_, err := r.run(ctx, "cherry-pick", "-x", "-s", sha)
	if err == nil {
		return nil
	}

	var gitErr *GitError
	if !errors.As(err, &gitErr) || !isConflictOutput(gitErr.Output) {
		return fmt.Errorf("git cherry-pick %s: %w", sha, err)
	}

	files, filesErr := r.conflictedFiles(ctx)
	if filesErr != nil {
		files = nil
	}

	return &ConflictError{Commit: sha, Files: files, Output: gitErr.Output}
}

func isConflictOutput(output string) bool {
	lower := strings.ToLower(output)
	return strings.Contains(lower, "conflict") ||
		strings.Contains(lower, "could not apply")
}

func (r *ShellRepo) conflictedFiles(ctx context.Context) ([]string, error) {
	out, err := r.capture(ctx, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, err
	}

	var files []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

func (r *ShellRepo) AbortCherryPick(ctx context.Context) error {
	_, err := r.run(ctx, "cherry-pick", "--abort")
	if err == nil {
		return nil
	}
	var gitErr *GitError
	if errors.As(err, &gitErr) {
		if strings.Contains(strings.ToLower(gitErr.Output), "no cherry-pick") {
			return nil
		}
	}
	return err
}

// IsPatchApplied probes whether the patch file is already contained in the
// checked-out branch by attempting a reverse apply check.
func (r *ShellRepo) IsPatchApplied(ctx context.Context, patchPath string) (bool, error) {
	_, err := r.capture(ctx, "apply", "--check", "--reverse", patchPath)
	if err == nil {
		return true, nil
	}
	var gitErr *GitError
	if errors.As(err, &gitErr) {
		if strings.Contains(gitErr.Output, "patch does not apply") ||
			strings.Contains(gitErr.Output, "does not exist in index") ||
			strings.Contains(gitErr.Output, "does not match index") {
			return false, nil
		}
	}
	return false, err
}

// Push publishes a local branch to the named remote and classifies the
// porcelain outcome. A rejected ref is returned as an error.
func (r *ShellRepo) Push(ctx context.Context, remote, branch string, force bool) (PushResult, error) {
	args := []string{"push", "--porcelain"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, remote, fmt.Sprintf("%s:%s", branch, branch))

	out, err := r.run(ctx, args...)
	if err != nil {
		return PushResult{}, fmt.Errorf("git push %s: %w", branch, err)
	}

	result, err := parsePushPorcelain(out)
	if err != nil {
		return PushResult{}, fmt.Errorf("git push %s: %w", branch, err)
	}
	if result.Outcome == PushRejected {
		return result, fmt.Errorf("git push %s: ref rejected: %s", branch, result.Summary)
	}
	return result, nil
}

// parsePushPorcelain classifies the first ref line of `git push --porcelain`
// output. The flag character encodes the outcome: '=' up to date, ' ' fast
// forward, '*' new ref, '+' forced update, '!' rejected.
func parsePushPorcelain(output string) (PushResult, error) {
	for _, line := range strings.Split(output, "\n") {
		if len(line) < 2 || line[1] != '\t' {
			continue
		}

		fields := strings.Split(line[2:], "\t")
		result := PushResult{Ref: fields[0]}
		if len(fields) > 1 {
			result.Summary = fields[1]
		}

		switch line[0] {
		case '=':
			result.Outcome = PushUpToDate
		case ' ':
			result.Outcome = PushFastForward
		case '*':
			result.Outcome = PushNewRef
		case '+':
			result.Outcome = PushForcedUpdate
		case '!':
			result.Outcome = PushRejected
		default:
			continue
		}
		return result, nil
	}

	return PushResult{}, fmt.Errorf("no ref status in push output: %q", strings.TrimSpace(output))
}

// capture runs a git command without retries and returns its combined output.
func (r *ShellRepo) capture(ctx context.Context, args ...string) (string, error) {
	full := append([]string{"-C", r.path}, args...)
	cmd := exec.CommandContext(ctx, r.gitBinary(), full...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", &GitError{Args: args, Output: string(output), Err: err}
	}
	return string(output), nil
}

// run executes a git command, retrying network commands with exponential
// backoff, and returns the combined output of the final attempt.
func (r *ShellRepo) run(ctx context.Context, args ...string) (string, error) {
	isNetwork := isNetworkCommand(primaryGitCommand(args))

	retries := 0
	if isNetwork {
		retries = r.networkRetriesValue()
	}

	delay := r.networkRetryDelayValue()
	var lastOut string
	var lastErr error

	for attempt := 0; attempt <= retries; attempt++ {
		attemptCtx, cancel := r.applyNetworkTimeout(ctx, isNetwork)
		out, err := r.runOnce(attemptCtx, args...)
		cancel()

		if err == nil {
			return out, nil
		}
		lastOut, lastErr = out, err

		if !isNetwork {
			break
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
		if attempt == retries {
			break
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		if delay < time.Second {
			delay = time.Second
		}
		delay *= 2
	}

	return lastOut, lastErr
}

func (r *ShellRepo) runOnce(ctx context.Context, args ...string) (string, error) {
	full := append([]string{"-C", r.path}, args...)
	cmd := exec.CommandContext(ctx, r.gitBinary(), full...)
	setProcessGroup(cmd)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Start(); err != nil {
		return "", &GitError{Args: args, Output: output.String(), Err: err}
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		terminateProcessGroup(cmd)
		<-done
		return "", ctx.Err()
	case err := <-done:
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			return output.String(), &GitError{Args: args, Output: output.String(), Err: err}
		}
	}

	return output.String(), nil
}

func primaryGitCommand(args []string) string {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			if i+1 < len(args) {
				return args[i+1]
			}
			return ""
		}
		if strings.HasPrefix(arg, "-") {
			switch arg {
			case "-C", "--git-dir", "-c":
				i++
			}
			continue
		}
		return arg
	}
	return ""
}

func isNetworkCommand(cmd string) bool {
	switch cmd {
	case "clone", "fetch", "push", "pull":
		return true
	default:
		return false
	}
}

func (r *ShellRepo) networkRetriesValue() int {
	if r.NetworkRetries < 0 {
		return 0
	}
	if r.NetworkRetries == 0 {
		return 2
	}
	return r.NetworkRetries
}

func (r *ShellRepo) networkRetryDelayValue() time.Duration {
	if r.NetworkRetryDelay <= 0 {
		return time.Second
	}
	return r.NetworkRetryDelay
}

func (r *ShellRepo) networkTimeoutValue() time.Duration {
	if r.NetworkTimeout <= 0 {
		return 2 * time.Minute
	}
	return r.NetworkTimeout
}

func (r *ShellRepo) applyNetworkTimeout(ctx context.Context, network bool) (context.Context, context.CancelFunc) {
	if !network {
		return ctx, func() {}
	}
	if deadline, ok := ctx.Deadline(); ok && !deadline.IsZero() {
		return ctx, func() {}
	}
	timeout := r.networkTimeoutValue()
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// GitError wraps failures when invoking the git binary.
type GitError struct {
	Args   []string
	Output string
	Err    error
}

func (e *GitError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("git %s: %v\n%s", strings.Join(e.Args, " "), e.Err, e.Output)
}

func (e *GitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
