// Package github provides the minimal GitHub REST API client the pipeline
// needs: pull request base refs for delta comparisons and the repository's
// default branch for trend-report gating.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// DefaultAPIEndpoint is the public GitHub REST API origin.
const DefaultAPIEndpoint = "https://api.github.com"

// DefaultTimeout bounds each API request.
const DefaultTimeout = 30 * time.Second

// Client is a token-authenticated client scoped to one repository. The
// token may be empty for public repositories.
type Client struct {
	Token      string
	Owner      string
	Repo       string
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client for the "owner/repo" pair.
func NewClient(token, owner, repo string) *Client {
	return &Client{
		Token:   token,
		Owner:   owner,
		Repo:    repo,
		BaseURL: DefaultAPIEndpoint,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// WithBaseURL returns a new client with a custom base URL (for testing or
// GitHub Enterprise).
func (c *Client) WithBaseURL(baseURL string) *Client {
	return &Client{
		Token:      c.Token,
		Owner:      c.Owner,
		Repo:       c.Repo,
		BaseURL:    baseURL,
		HTTPClient: c.HTTPClient,
	}
}

// repoPath returns the "owner/repo" path segment.
func (c *Client) repoPath() string {
	return c.Owner + "/" + c.Repo
}

// get performs an authenticated GET and decodes the JSON response into out.
// There is no retry: a failed metadata lookup fails the step that needed it.
func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	const maxResponseSize = 10 * 1024 * 1024
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("unable to access repository data (status %d); specify the github-token input for private repositories", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API error: %s (status %d)", string(body), resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// PullRequestBaseRef returns the name of the pull request's base branch.
func (c *Client) PullRequestBaseRef(ctx context.Context, number int) (string, error) {
	var pr PullRequest
	if err := c.get(ctx, "/repos/"+c.repoPath()+"/pulls/"+strconv.Itoa(number), &pr); err != nil {
		return "", fmt.Errorf("failed to fetch pull request #%d: %w", number, err)
	}
	if pr.Base.Ref == "" {
		return "", fmt.Errorf("pull request #%d has no base ref", number)
	}
	return pr.Base.Ref, nil
}

// DefaultBranch returns the repository's default branch name.
func (c *Client) DefaultBranch(ctx context.Context) (string, error) {
	var repo Repository
	if err := c.get(ctx, "/repos/"+c.repoPath(), &repo); err != nil {
		return "", fmt.Errorf("failed to fetch repository metadata: %w", err)
	}
	if repo.DefaultBranch == "" {
		return "", fmt.Errorf("repository %s reports no default branch", c.repoPath())
	}
	return repo.DefaultBranch, nil
}
