package orchestrator

// Config is the immutable run configuration for a single propagation run.
type Config struct {
	// BranchPatterns overrides the label-derived target list when non-empty.
	// Each entry is a literal branch name or a glob-style pattern.
	BranchPatterns []string

	// DryRun reports every intended action without mutating the fork, the
	// working copy, or the upstream repository.
	DryRun bool
}
