package resolve

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// ShellResolver resolves conflicts by dropping the operator into an
// interactive shell inside the working copy, then asking whether the
// cherry-pick succeeded. There is no timeout; the operator may take as long
// as needed.
type ShellResolver struct {
	// Shell is the program to spawn. Defaults to $SHELL, then /bin/bash.
	Shell string

	// Dir is the working directory for the spawned shell.
	Dir string

	In  io.Reader
	Out io.Writer
}

// NewShellResolver returns a resolver attached to the process terminal.
func NewShellResolver(dir string) *ShellResolver {
	return &ShellResolver{Dir: dir, In: os.Stdin, Out: os.Stdout}
}

func (r *ShellResolver) shell() string {
	if r.Shell != "" {
		return r.Shell
	}
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/bash"
}

func (r *ShellResolver) Resolve(ctx context.Context, conflict Conflict) (Resolution, error) {
	fmt.Fprintf(r.Out, "Conflict replaying commit %s onto %s:\n", shortSHA(conflict.Commit), conflict.Branch)
	for _, file := range conflict.Files {
		fmt.Fprintf(r.Out, "\t%s\n", file)
	}
	fmt.Fprintln(r.Out, "Resolve the conflict in the spawned shell (stage the files and run `git cherry-pick --continue`), then exit.")

	cmd := exec.CommandContext(ctx, r.shell())
	cmd.Dir = r.Dir
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		// A non-zero shell exit is the operator's business, not a failure of
		// the resolution step itself.
		if _, ok := err.(*exec.ExitError); !ok {
			return Resolution{}, fmt.Errorf("spawn resolution shell: %w", err)
		}
	}

	ok, err := askYesNo(r.In, r.Out, fmt.Sprintf("Was cherry-pick successful for commit %s? [y/N]: ", shortSHA(conflict.Commit)))
	if err != nil {
		return Resolution{}, err
	}

	if !ok {
		return Resolution{Outcome: OutcomeAborted}, nil
	}
	return Resolution{Outcome: OutcomeResumed, ResolvedFiles: conflict.Files}, nil
}

// TerminalConfirmer prompts on the attached terminal and accepts y/yes.
type TerminalConfirmer struct {
	In  io.Reader
	Out io.Writer
}

// NewTerminalConfirmer returns a confirmer attached to the process terminal.
func NewTerminalConfirmer() *TerminalConfirmer {
	return &TerminalConfirmer{In: os.Stdin, Out: os.Stdout}
}

func (c *TerminalConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	return askYesNo(c.In, c.Out, prompt+" [y/N]: ")
}

func askYesNo(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprint(out, prompt)

	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("read confirmation: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func shortSHA(sha string) string {
	if len(sha) <= 12 {
		return sha
	}
	return sha[:12]
}
