// Package labels interprets the label conventions that carry propagation
// state: "pr:<branch>" declares a target branch and "pr-merged" declares that
// propagation to every declared target is complete.
package labels

import (
	"strings"
)

const (
	// TargetPrefix marks a label that declares an intended target branch.
	TargetPrefix = "pr:"

	// Completed marks a change request as propagated to all declared targets.
	Completed = "pr-merged"
)

// TargetBranches extracts the declared target branches from a label set,
// deduplicated and in first-seen order.
func TargetBranches(labelNames []string) []string {
	branches := make([]string, 0, len(labelNames))
	seen := make(map[string]struct{})

	for _, name := range labelNames {
		rest, ok := strings.CutPrefix(strings.TrimSpace(name), TargetPrefix)
		if !ok {
			continue
		}
		branch := strings.TrimSpace(rest)
		if branch == "" {
			continue
		}
		if _, exists := seen[branch]; exists {
			continue
		}
		seen[branch] = struct{}{}
		branches = append(branches, branch)
	}

	return branches
}

// IsCompleted reports whether the label set carries the completion marker.
func IsCompleted(labelNames []string) bool {
	for _, name := range labelNames {
		if strings.TrimSpace(name) == Completed {
			return true
		}
	}
	return false
}

// WithCompleted returns the label set with the completion marker appended,
// unchanged when the marker is already present.
func WithCompleted(labelNames []string) []string {
	if IsCompleted(labelNames) {
		return labelNames
	}
	result := make([]string, 0, len(labelNames)+1)
	result = append(result, labelNames...)
	return append(result, Completed)
}

// Remove returns the branch list without the given branch, preserving order.
func Remove(branchNames []string, branch string) []string {
	result := make([]string, 0, len(branchNames))
	for _, name := range branchNames {
		if name == branch {
			continue
		}
		result = append(result, name)
	}
	return result
}
