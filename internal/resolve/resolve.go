// Package resolve decouples the propagation engine from any particular
// terminal: conflicts and confirmations are surfaced through interfaces whose
// default implementations hand control to the operator's shell.
package resolve

import (
	"context"
)

// Conflict describes a commit that failed to replay cleanly onto a target
// branch.
type Conflict struct {
	Commit  string
	Subject string
	Branch  string
	Files   []string
	Output  string
}

// Outcome is the operator's decision for a conflict.
type Outcome int

const (
	// OutcomeAborted terminates the task for this branch only.
	OutcomeAborted Outcome = iota

	// OutcomeResumed continues replay with the next commit.
	OutcomeResumed
)

// Resolution is the tagged result of a conflict-resolution step.
type Resolution struct {
	Outcome       Outcome
	ResolvedFiles []string
}

// Resolver suspends execution for human conflict resolution and reports the
// decision. Implementations may block indefinitely; cancellation is only via
// the context.
type Resolver interface {
	Resolve(ctx context.Context, conflict Conflict) (Resolution, error)
}

// Confirmer asks the operator for explicit confirmation before an outward
// action, such as opening a change request.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}
