// Package repos fetches remote hook repositories into the shared cache.
package repos

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/hooklabs/prehook/internal/config"
	"github.com/hooklabs/prehook/internal/errors"
	"github.com/hooklabs/prehook/internal/logger"
	"github.com/hooklabs/prehook/internal/store"
)

// Fetcher clones hook repositories at pinned revisions, content-addressed by
// (url, rev). Each key is cloned at most once and shared by every hook the
// repository declares.
type Fetcher struct {
	store *store.Store
	// Progress receives the one-line clone notices shown to the user
	Progress io.Writer
}

// NewFetcher creates a fetcher backed by the given cache
func NewFetcher(s *store.Store) *Fetcher {
	return &Fetcher{store: s, Progress: os.Stdout}
}

// Fetch returns the local path of url cloned at rev, cloning on a cache miss
func (f *Fetcher) Fetch(ctx context.Context, url, rev string) (string, error) {
	dir := f.store.RepoDir(url, rev)
	if f.store.Installed(dir) {
		logger.Verbose("using cached %s@%s", url, rev)
		return dir, nil
	}

	err := f.store.InstallInto(ctx, "repo\x00"+url+"@"+rev, dir, func(tmp string) error {
		fmt.Fprintf(f.Progress, "Cloning %s@%s\n", url, rev)
		return clone(ctx, tmp, url, rev)
	})
	if err != nil {
		if errors.IsType(err, errors.ErrCacheLockTimeout) {
			return "", err
		}
		return "", errors.Newf(errors.ErrFetchFailed,
			"Failed to clone %s@%s", url, rev).WithCause(err)
	}
	return dir, nil
}

func clone(ctx context.Context, dir, url, rev string) error {
	repo, err := gogit.PlainCloneContext(ctx, dir, false, &gogit.CloneOptions{
		URL:  url,
		Tags: gogit.AllTags,
	})
	if err != nil {
		return err
	}

	hash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return fmt.Errorf("revision %s not found: %w", rev, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	return wt.Checkout(&gogit.CheckoutOptions{Hash: *hash, Force: true})
}

// Manifest loads the hook manifest of a fetched repository
func Manifest(repoDir string) (map[string]config.Hook, error) {
	return config.LoadManifest(filepath.Join(repoDir, config.ManifestFileName))
}
