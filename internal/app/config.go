package app

import (
	"fmt"
	"os"
	"strings"
)

const (
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
)

// Config captures runtime options sourced from command-line flags and
// environment variables.
type Config struct {
	GitHubToken    string
	RepoPath       string
	PullRequest    int
	BranchPatterns []string
	DryRun         bool
	Verbose        bool
	LogLevel       string
	LogFormat      string
}

// Finalize applies defaults and validates the configuration in place.
func (c *Config) Finalize() error {
	c.GitHubToken = strings.TrimSpace(c.GitHubToken)
	if c.GitHubToken == "" {
		c.GitHubToken = strings.TrimSpace(os.Getenv("GITHUB_TOKEN"))
	}
	if c.GitHubToken == "" {
		return fmt.Errorf("github token is required (set --token or GITHUB_TOKEN)")
	}

	if c.PullRequest <= 0 {
		return fmt.Errorf("a positive pull request number is required")
	}

	c.RepoPath = strings.TrimSpace(c.RepoPath)
	if c.RepoPath == "" {
		c.RepoPath = "."
	}

	c.BranchPatterns = trimBranchList(c.BranchPatterns)

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.Verbose {
		c.LogLevel = "debug"
	}

	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.LogFormat == "" {
		c.LogFormat = strings.ToLower(strings.TrimSpace(os.Getenv("PROPAGATE_LOG_FORMAT")))
	}
	if c.LogFormat == "" {
		c.LogFormat = defaultLogFormat
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("unsupported log format %q", c.LogFormat)
	}

	return nil
}

func trimBranchList(raw []string) []string {
	var out []string
	for _, entry := range raw {
		for _, part := range strings.Split(entry, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
