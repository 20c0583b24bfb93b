// Package branches resolves branch-name patterns against an upstream branch
// list and parses the encoded kernel branch naming scheme.
package branches

import (
	"fmt"
	"regexp"
	"strings"
)

// UnknownBranchError reports a literal target branch that does not exist in
// the upstream repository.
type UnknownBranchError struct {
	Branch string
}

func (e *UnknownBranchError) Error() string {
	return fmt.Sprintf("branch %q does not exist in the upstream repository", e.Branch)
}

// EmptyExpansionError reports a pattern set that resolved to zero branches.
type EmptyExpansionError struct {
	Patterns []string
}

func (e *EmptyExpansionError) Error() string {
	return fmt.Sprintf("no upstream branches matched patterns %s", strings.Join(e.Patterns, ", "))
}

// ExpandPatterns resolves each pattern against the upstream branch list. A
// literal pattern must name an existing upstream branch; a pattern containing
// "*" collects every matching branch and may legitimately match nothing. The
// result is deduplicated and ordered: literals in pattern order, wildcard
// matches in upstream order.
func ExpandPatterns(patterns []string, upstream []string) ([]string, error) {
	known := make(map[string]struct{}, len(upstream))
	for _, name := range upstream {
		known[name] = struct{}{}
	}

	var resolved []string
	seen := make(map[string]struct{})
	add := func(name string) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		resolved = append(resolved, name)
	}

	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}

		if !strings.Contains(pattern, "*") {
			if _, ok := known[pattern]; !ok {
				return nil, &UnknownBranchError{Branch: pattern}
			}
			add(pattern)
			continue
		}

		re, err := compilePattern(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", pattern, err)
		}
		for _, name := range upstream {
			if re.MatchString(name) {
				add(name)
			}
		}
	}

	if len(resolved) == 0 {
		return nil, &EmptyExpansionError{Patterns: patterns}
	}

	return resolved, nil
}

// compilePattern turns a glob-style pattern into an anchored regular
// expression: every metacharacter is escaped except "*", which matches any
// sequence of characters.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	escaped := regexp.QuoteMeta(pattern)
	escaped = strings.ReplaceAll(escaped, `\*`, ".*")
	return regexp.Compile("^" + escaped + "$")
}
