// Package workspace models the checked-out repository the run operates on.
//
// The working tree is a single shared, mutable resource: the deltas
// comparison checks out another revision in place and must put HEAD back
// before the run continues. Context carries the workspace identity through
// every pipeline step instead of scattering environment lookups; Checkout
// returns a scope whose Restore is a hard postcondition on all exit paths.
package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/inotool/inosize/internal/gitutil"
)

// Event names delivered by the hosting platform.
const (
	EventPullRequest = "pull_request"
	EventPush        = "push"
)

// Context identifies the workspace checkout and the event that triggered
// the run.
type Context struct {
	// Root is the repository checkout directory (GITHUB_WORKSPACE).
	Root string
	// Repository is the "owner/name" slug.
	Repository string
	// EventName is the triggering event (push, pull_request, ...).
	EventName string
	// EventPath is the JSON payload file for the event.
	EventPath string
	// ServerURL is the hosting platform's web origin.
	ServerURL string
	// RefName is the branch or tag name the run was triggered for.
	RefName string
}

// FromEnv builds the Context from the hosting platform's environment.
func FromEnv() (*Context, error) {
	root := os.Getenv("GITHUB_WORKSPACE")
	if root == "" {
		return nil, errors.New("GITHUB_WORKSPACE is not set")
	}
	repository := os.Getenv("GITHUB_REPOSITORY")
	if repository == "" {
		return nil, errors.New("GITHUB_REPOSITORY is not set")
	}

	serverURL := os.Getenv("GITHUB_SERVER_URL")
	if serverURL == "" {
		serverURL = "https://github.com"
	}

	return &Context{
		Root:       root,
		Repository: repository,
		EventName:  os.Getenv("GITHUB_EVENT_NAME"),
		EventPath:  os.Getenv("GITHUB_EVENT_PATH"),
		ServerURL:  serverURL,
		RefName:    os.Getenv("GITHUB_REF_NAME"),
	}, nil
}

// eventPayload is the slice of the webhook payload the pipeline reads.
type eventPayload struct {
	PullRequest struct {
		Number int `json:"number"`
		Head   struct {
			SHA string `json:"sha"`
		} `json:"head"`
	} `json:"pull_request"`
}

func (c *Context) readEvent() (*eventPayload, error) {
	if c.EventPath == "" {
		return nil, errors.New("event payload path is not set")
	}
	data, err := os.ReadFile(c.EventPath)
	if err != nil {
		return nil, fmt.Errorf("reading event payload: %w", err)
	}
	var payload eventPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parsing event payload: %w", err)
	}
	return &payload, nil
}

// PullRequestNumber returns the PR number from the event payload.
func (c *Context) PullRequestNumber() (int, error) {
	payload, err := c.readEvent()
	if err != nil {
		return 0, err
	}
	if payload.PullRequest.Number == 0 {
		return 0, errors.New("event payload has no pull request number")
	}
	return payload.PullRequest.Number, nil
}

// HeadSHA returns the commit the report should attribute measurements to.
// For pull_request events the checkout is a synthetic merge commit, so the
// PR's real head commit comes from the event payload instead of git.
func (c *Context) HeadSHA() (string, error) {
	if c.EventName == EventPullRequest {
		payload, err := c.readEvent()
		if err != nil {
			return "", err
		}
		if payload.PullRequest.Head.SHA == "" {
			return "", errors.New("event payload has no pull request head commit")
		}
		return payload.PullRequest.Head.SHA, nil
	}
	return gitutil.HeadSHA(c.Root)
}

// CommitURL returns the web URL for a commit in this repository.
func (c *Context) CommitURL(sha string) string {
	return c.ServerURL + "/" + c.Repository + "/commit/" + sha
}

// CheckoutScope records the original HEAD so the working tree can be put
// back after a base-revision measurement.
type CheckoutScope struct {
	worktree *git.Worktree
	original plumbing.Hash
}

// Checkout fetches ref from origin if necessary and checks it out,
// returning a scope that restores the original HEAD. The caller must invoke
// Restore on every exit path; a failed restore is fatal for the whole run,
// because every later step would silently operate on the wrong revision.
func (c *Context) Checkout(ref string) (*CheckoutScope, error) {
	repo, err := git.PlainOpen(c.Root)
	if err != nil {
		return nil, fmt.Errorf("opening workspace repository: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("reading workspace HEAD: %w", err)
	}

	hash, err := resolveWorkspaceRef(repo, ref)
	if err != nil {
		return nil, err
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: hash, Force: true}); err != nil {
		return nil, fmt.Errorf("checking out %s: %w", ref, err)
	}

	return &CheckoutScope{worktree: wt, original: head.Hash()}, nil
}

// resolveWorkspaceRef resolves ref locally, fetching it from origin when the
// (typically shallow) workspace clone doesn't have it yet.
func resolveWorkspaceRef(repo *git.Repository, ref string) (plumbing.Hash, error) {
	if hash, err := repo.ResolveRevision(plumbing.Revision(ref)); err == nil {
		return *hash, nil
	}

	refspec := gitconfig.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/remotes/origin/%s", ref, ref))
	err := repo.Fetch(&git.FetchOptions{
		RemoteName: "origin",
		RefSpecs:   []gitconfig.RefSpec{refspec},
		Tags:       git.NoTags,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return plumbing.ZeroHash, fmt.Errorf("fetching %s from origin: %w", ref, err)
	}

	hash, err := repo.ResolveRevision(plumbing.Revision("refs/remotes/origin/" + ref))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolving %s after fetch: %w", ref, err)
	}
	return *hash, nil
}

// Restore checks the original HEAD back out. Safe to call more than once.
func (s *CheckoutScope) Restore() error {
	if s == nil || s.worktree == nil {
		return nil
	}
	if err := s.worktree.Checkout(&git.CheckoutOptions{Hash: s.original, Force: true}); err != nil {
		return fmt.Errorf("restoring original checkout %s: %w", s.original, err)
	}
	return nil
}
