// Package gitrepo checks pull request branches out into the local working copy.
package gitrepo

import (
	"context"
	"fmt"
	"strings"

	"pr_panel/log"

	"github.com/cockroachdb/errors"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

type Repo struct {
	path   string
	remote string
	auth   transport.AuthMethod
}

// Open prepares a handle on the working copy at path. Credentials are only
// used when the remote is reached over http(s).
func Open(path, remote, login, password string) (*Repo, error) {
	if path == "" {
		return nil, fmt.Errorf("git.repoPath is not configured")
	}
	if remote == "" {
		remote = "origin"
	}
	r := &Repo{path: path, remote: remote}
	if login != "" {
		r.auth = &githttp.BasicAuth{Username: login, Password: password}
	}
	return r, nil
}

// CurrentBranch returns the short name of the checked out branch.
func (r *Repo) CurrentBranch() (string, error) {
	repo, err := git.PlainOpen(r.path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", r.path, err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	return head.Name().Short(), nil
}

// Checkout fetches branch from the remote and switches the working copy to it,
// creating the local branch from the remote one when needed.
func (r *Repo) Checkout(ctx context.Context, branch string) error {
	branch = strings.TrimPrefix(branch, "refs/heads/")
	if branch == "" {
		return fmt.Errorf("empty branch name")
	}

	repo, err := git.PlainOpen(r.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", r.path, err)
	}

	auth, err := r.authFor(repo)
	if err != nil {
		return err
	}

	refSpec := config.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/remotes/%s/%s", branch, r.remote, branch))
	err = repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: r.remote,
		RefSpecs:   []config.RefSpec{refSpec},
		Auth:       auth,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("fetch %s from %s: %w", branch, r.remote, err)
	}

	remoteRef, err := repo.Reference(plumbing.NewRemoteReferenceName(r.remote, branch), true)
	if err != nil {
		return fmt.Errorf("resolve %s/%s: %w", r.remote, branch, err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}

	local := plumbing.NewBranchReferenceName(branch)
	opts := &git.CheckoutOptions{Branch: local}
	if _, err := repo.Reference(local, false); errors.Is(err, plumbing.ErrReferenceNotFound) {
		opts.Create = true
		opts.Hash = remoteRef.Hash()
	} else if err != nil {
		return fmt.Errorf("resolve %s: %w", local, err)
	}

	if err := worktree.Checkout(opts); err != nil {
		return fmt.Errorf("checkout %s: %w", branch, err)
	}
	log.Infof("Checked out %s at %s", branch, remoteRef.Hash())
	return nil
}

func (r *Repo) authFor(repo *git.Repository) (transport.AuthMethod, error) {
	if r.auth == nil {
		return nil, nil
	}
	remote, err := repo.Remote(r.remote)
	if err != nil {
		return nil, fmt.Errorf("remote %s: %w", r.remote, err)
	}
	for _, u := range remote.Config().URLs {
		if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
			return r.auth, nil
		}
	}
	return nil, nil
}
