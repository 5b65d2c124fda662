package config

import "fmt"

// GitHubConfig holds GitHub API client configuration.
type GitHubConfig struct {
	// Token is the GitHub personal access token used for API calls.
	Token string
	// PerPage is the page size for paginated list calls.
	PerPage int
	// MaxPages caps how many pages a single collection walks.
	MaxPages int
}

// LoadGitHubConfigFromEnv loads GitHub configuration from environment variables.
func LoadGitHubConfigFromEnv() GitHubConfig {
	return GitHubConfig{
		Token:    GetEnv("GITHUB_TOKEN", ""),
		PerPage:  GetEnvInt("GITHUB_PER_PAGE", 100),
		MaxPages: GetEnvInt("GITHUB_MAX_PAGES", 10),
	}
}

// Validate validates GitHub configuration.
func (c GitHubConfig) Validate() error {
	if c.PerPage <= 0 || c.PerPage > 100 {
		return fmt.Errorf("GITHUB_PER_PAGE must be between 1 and 100, got %d", c.PerPage)
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("GITHUB_MAX_PAGES must be greater than 0, got %d", c.MaxPages)
	}
	return nil
}
