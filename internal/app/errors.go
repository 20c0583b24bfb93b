package app

import "fmt"

// RepoValidationError indicates the local working copy is not in a state
// safe to operate on. It is always raised before any branch is touched.
type RepoValidationError struct {
	Path   string
	Reason string
}

func (e *RepoValidationError) Error() string {
	return fmt.Sprintf("repository %s: %s", e.Path, e.Reason)
}
