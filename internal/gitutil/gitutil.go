// Package gitutil wraps the go-git operations the pipeline needs: cloning
// dependency repositories, resolving the special "latest" ref to the newest
// tag, and reading commit identity from the workspace checkout.
package gitutil

import (
	"fmt"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// LatestRelease checks out the most recent tag instead of a named ref,
// unless the repository really has a ref by this name.
const LatestRelease = "latest"

// Clone clones url into dst and checks out ref. An empty ref leaves the
// tip of the remote default branch checked out, which permits a shallow
// clone; any other ref requires full history.
func Clone(url, ref, dst string) error {
	opts := &git.CloneOptions{
		URL:               url,
		RecurseSubmodules: git.DefaultSubmoduleRecursionDepth,
	}
	if ref == "" {
		opts.Depth = 1
	}

	repo, err := git.PlainClone(dst, false, opts)
	if err != nil {
		return fmt.Errorf("cloning %s: %w", url, err)
	}
	if ref == "" {
		return nil
	}

	hash, err := resolveRef(repo, ref)
	if err != nil {
		return fmt.Errorf("resolving ref %q in %s: %w", ref, url, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: hash}); err != nil {
		return fmt.Errorf("checking out %q in %s: %w", ref, url, err)
	}
	return nil
}

// resolveRef resolves a ref name to a commit hash. The special "latest"
// value falls back to the newest tag when no real ref has that name.
func resolveRef(repo *git.Repository, ref string) (plumbing.Hash, error) {
	if hash, err := repo.ResolveRevision(plumbing.Revision(ref)); err == nil {
		return *hash, nil
	} else if ref != LatestRelease {
		return plumbing.ZeroHash, err
	}
	return latestTag(repo)
}

// latestTag returns the commit of the tag with the most recent commit time.
func latestTag(repo *git.Repository) (plumbing.Hash, error) {
	iter, err := repo.Tags()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	defer iter.Close()

	var newest plumbing.Hash
	var newestTime time.Time
	found := false

	err = iter.ForEach(func(ref *plumbing.Reference) error {
		commit, err := tagCommit(repo, ref)
		if err != nil {
			// Skip tags that don't point at commits.
			return nil
		}
		if !found || commit.Committer.When.After(newestTime) {
			newest = commit.Hash
			newestTime = commit.Committer.When
			found = true
		}
		return nil
	})
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if !found {
		return plumbing.ZeroHash, fmt.Errorf("repository has no tags to resolve %q against", LatestRelease)
	}
	return newest, nil
}

// tagCommit dereferences a tag ref to its commit, handling annotated tags.
func tagCommit(repo *git.Repository, ref *plumbing.Reference) (*object.Commit, error) {
	if tag, err := repo.TagObject(ref.Hash()); err == nil {
		return tag.Commit()
	}
	return repo.CommitObject(ref.Hash())
}

// HeadSHA returns the full hash of HEAD in the repository at root.
func HeadSHA(root string) (string, error) {
	repo, err := git.PlainOpen(root)
	if err != nil {
		return "", fmt.Errorf("opening repository at %s: %w", root, err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", err
	}
	return head.Hash().String(), nil
}

// ParentSHA returns the hash of HEAD's first parent, the comparison point
// for deltas on push events.
func ParentSHA(root string) (string, error) {
	repo, err := git.PlainOpen(root)
	if err != nil {
		return "", fmt.Errorf("opening repository at %s: %w", root, err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", err
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return "", err
	}
	parent, err := commit.Parent(0)
	if err != nil {
		return "", fmt.Errorf("resolving parent of %s: %w", head.Hash(), err)
	}
	return parent.Hash.String(), nil
}
