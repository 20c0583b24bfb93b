package branches

import (
	"fmt"
	"strings"
)

// EncodedPrefix is the naming prefix shared by the kernel release branches
// this tool was built for, e.g. eve-kernel-amd64-v6.1.38-generic.
const EncodedPrefix = "eve-kernel"

// Encoded is the structured form of an encoded kernel branch name. Components
// never contain dashes.
type Encoded struct {
	Arch   string
	Series string
	Flavor string
}

// Short returns the branch name without the shared prefix.
func (e Encoded) Short() string {
	return fmt.Sprintf("%s-%s-%s", e.Arch, e.Series, e.Flavor)
}

// String reassembles the full branch name.
func (e Encoded) String() string {
	return fmt.Sprintf("%s-%s", EncodedPrefix, e.Short())
}

// MalformedBranchError reports a branch name that does not follow the
// <prefix>-<arch>-<series>-<flavor> scheme.
type MalformedBranchError struct {
	Branch string
	Reason string
}

func (e *MalformedBranchError) Error() string {
	return fmt.Sprintf("branch %q is not an encoded kernel branch: %s", e.Branch, e.Reason)
}

// ParseEncoded parses a branch name of the form
// eve-kernel-<arch>-<series>-<flavor>, where <series> is a kernel version tag
// such as v6.1.38. Malformed names are rejected explicitly.
func ParseEncoded(name string) (Encoded, error) {
	rest, ok := strings.CutPrefix(name, EncodedPrefix+"-")
	if !ok {
		return Encoded{}, &MalformedBranchError{Branch: name, Reason: fmt.Sprintf("missing %q prefix", EncodedPrefix)}
	}

	parts := strings.Split(rest, "-")
	if len(parts) != 3 {
		return Encoded{}, &MalformedBranchError{Branch: name, Reason: fmt.Sprintf("want 3 components after prefix, got %d", len(parts))}
	}
	for _, part := range parts {
		if part == "" {
			return Encoded{}, &MalformedBranchError{Branch: name, Reason: "empty component"}
		}
	}
	if !strings.HasPrefix(parts[1], "v") {
		return Encoded{}, &MalformedBranchError{Branch: name, Reason: fmt.Sprintf("series %q does not start with 'v'", parts[1])}
	}

	return Encoded{Arch: parts[0], Series: parts[1], Flavor: parts[2]}, nil
}

// ShortName returns the short form of an encoded branch name, or the name
// unchanged when it does not follow the encoded scheme.
func ShortName(name string) string {
	enc, err := ParseEncoded(name)
	if err != nil {
		return name
	}
	return enc.Short()
}
