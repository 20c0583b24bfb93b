package orchestrator

import (
	"errors"
	"fmt"
)

// ErrAlreadyPropagated indicates the source change request already carries the
// completion label; there is nothing left to do.
var ErrAlreadyPropagated = errors.New("change request is already propagated to all target branches")

// ErrNoTargets indicates the resolved target set became empty after excluding
// the source change request's own base branch.
var ErrNoTargets = errors.New("no target branches remain after excluding the base branch")

// SyncError reports a hosting-API failure while reconciling fork branches
// with upstream. It aborts the whole run; partial synchronization is not
// retried automatically.
type SyncError struct {
	Branch string
	Err    error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("synchronize fork branch %s: %v", e.Branch, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// PublishError reports a push or change-request-creation failure. It is fatal
// for the branch's task but does not abort sibling tasks.
type PublishError struct {
	Branch string
	Stage  string
	Err    error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s: %s: %v", e.Branch, e.Stage, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}
