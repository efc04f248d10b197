package git

import (
	"os"
	"sync"

	"github.com/hooklabs/prehook/internal/errors"
	"github.com/hooklabs/prehook/internal/logger"
)

// Guard snapshots unstaged working-tree changes before a run and restores
// them afterwards. Exactly one guard brackets the whole hook sequence; the
// restore side runs at most once no matter how many exit paths reach it.
type Guard struct {
	repo      *Repo
	patchPath string

	once       sync.Once
	restoreErr error
}

// NewGuard creates a guard for the repository
func NewGuard(repo *Repo) *Guard {
	return &Guard{repo: repo}
}

// PatchPath returns the saved patch location, empty when nothing was stashed
func (g *Guard) PatchPath() string { return g.patchPath }

// Snapshot saves changes not staged for commit to patchPath and resets the
// working tree to the staged state. It is a no-op when the tree is clean.
func (g *Guard) Snapshot(patchPath string) error {
	patch, err := g.repo.unstagedPatch()
	if err != nil {
		return err
	}
	if patch == nil {
		return nil
	}

	if err := os.WriteFile(patchPath, patch, 0o600); err != nil {
		return errors.New(errors.ErrGitCommandFailed,
			"failed to save unstaged changes").WithCause(err)
	}
	g.patchPath = patchPath
	logger.Info("Non-staged changes detected, saving to `%s`", patchPath)

	if err := g.repo.checkoutAll(); err != nil {
		// The tree was not reset; the patch is redundant, drop it.
		_ = os.Remove(patchPath)
		g.patchPath = ""
		return err
	}
	return nil
}

// Restore reapplies the saved patch. Safe to call from multiple exit paths;
// only the first call does work. On failure the patch file is preserved and
// its location reported instead of being discarded.
func (g *Guard) Restore() error {
	g.once.Do(func() {
		if g.patchPath == "" {
			return
		}
		if err := g.repo.applyPatch(g.patchPath); err != nil {
			g.restoreErr = errors.Newf(errors.ErrRestoreFailed,
				"Failed to restore working tree changes; patch kept at `%s`", g.patchPath).
				WithCause(err)
			return
		}
		logger.Info("")
		logger.Info("Restored working tree changes from `%s`", g.patchPath)
		_ = os.Remove(g.patchPath)
	})
	return g.restoreErr
}
