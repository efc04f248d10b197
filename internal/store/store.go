// Package store manages the shared on-disk cache: cloned hook repositories,
// installed language environments, stash patches, and their lock files.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/hooklabs/prehook/internal/errors"
)

const (
	// InstalledMarker is written last into a cache entry; an entry without
	// it is treated as absent.
	InstalledMarker = ".installed"

	// LockTimeout is the timeout for acquiring a per-key cache lock
	LockTimeout = 5 * time.Minute
	// lockRetryInterval is how often lock acquisition is retried
	lockRetryInterval = 100 * time.Millisecond
)

// Store is the cache root. It is shared across concurrent invocations;
// writes are coordinated through per-key file locks.
type Store struct {
	root string
}

// Open resolves the cache root ($PREHOOK_HOME, else ~/.cache/prehook) and
// creates its directory skeleton.
func Open() (*Store, error) {
	root := os.Getenv("PREHOOK_HOME")
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		root = filepath.Join(home, ".cache", "prehook")
	}
	return OpenAt(root)
}

// OpenAt opens a store rooted at an explicit directory
func OpenAt(root string) (*Store, error) {
	for _, dir := range []string{root, filepath.Join(root, "repos"), filepath.Join(root, "envs"), filepath.Join(root, "patches"), filepath.Join(root, "locks")} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
		}
	}
	return &Store{root: root}, nil
}

// Root returns the cache root directory
func (s *Store) Root() string { return s.root }

// RepoDir returns the cache directory for a (url, rev) clone
func (s *Store) RepoDir(url, rev string) string {
	return filepath.Join(s.root, "repos", Digest(url+"@"+rev))
}

// EnvDir returns the cache directory for a (language, fingerprint) environment
func (s *Store) EnvDir(language, fingerprint string) string {
	return filepath.Join(s.root, "envs", language+"-"+fingerprint)
}

// PatchPath returns the path for a new stash patch, named by timestamp and pid
func (s *Store) PatchPath() string {
	return filepath.Join(s.root, "patches", fmt.Sprintf("%d-%d.patch", time.Now().UnixMilli(), os.Getpid()))
}

// Installed reports whether the cache entry at dir is complete
func (s *Store) Installed(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, InstalledMarker))
	return err == nil
}

// MarkInstalled completes a cache entry. It must be the last write.
func (s *Store) MarkInstalled(dir string) error {
	return os.WriteFile(filepath.Join(dir, InstalledMarker), nil, 0o600)
}

// Lock acquires the lock for a cache key, blocking up to LockTimeout.
// The returned function releases the lock.
func (s *Store) Lock(ctx context.Context, key string) (func(), error) {
	lockPath := filepath.Join(s.root, "locks", Digest(key)+".lock")
	fileLock := flock.New(lockPath)

	lockCtx, cancel := context.WithTimeout(ctx, LockTimeout)
	defer cancel()

	locked, err := fileLock.TryLockContext(lockCtx, lockRetryInterval)
	if err != nil {
		return nil, errors.Newf(errors.ErrCacheLockTimeout,
			"failed to acquire cache lock for %s", key).WithCause(err)
	}
	if !locked {
		return nil, errors.Newf(errors.ErrCacheLockTimeout,
			"timed out waiting for cache lock for %s: another prehook command may be running", key)
	}
	return func() { _ = fileLock.Unlock() }, nil
}

// InstallInto populates a cache entry atomically: install runs against a
// temporary sibling directory which is renamed into place and marked only on
// success. Failure or interruption leaves no partial entry behind.
func (s *Store) InstallInto(ctx context.Context, key, dir string, install func(tmp string) error) error {
	unlock, err := s.Lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()

	// Another invocation may have completed the entry while we waited.
	if s.Installed(dir) {
		return nil
	}
	// A directory without the marker is a leftover from a failed install.
	if _, err := os.Stat(dir); err == nil {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to remove stale cache entry %s: %w", dir, err)
		}
	}

	tmp := dir + ".tmp"
	if err := os.RemoveAll(tmp); err != nil {
		return fmt.Errorf("failed to clear temporary install directory: %w", err)
	}
	if err := os.MkdirAll(tmp, 0o750); err != nil {
		return fmt.Errorf("failed to create temporary install directory: %w", err)
	}

	if err := install(tmp); err != nil {
		_ = os.RemoveAll(tmp)
		return err
	}

	if err := os.Rename(tmp, dir); err != nil {
		_ = os.RemoveAll(tmp)
		return fmt.Errorf("failed to move cache entry into place: %w", err)
	}
	return s.MarkInstalled(dir)
}

// InstallAt populates a cache entry directly at its final path. Language
// environments embed absolute paths (virtualenv shebangs, npm prefixes), so
// unlike InstallInto they must never be built elsewhere and moved. Crash
// safety comes from the marker-last protocol alone: a directory without the
// marker is treated as absent and rebuilt.
func (s *Store) InstallAt(ctx context.Context, key, dir string, install func(dir string) error) error {
	unlock, err := s.Lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()

	// Another invocation may have completed the entry while we waited.
	if s.Installed(dir) {
		return nil
	}
	if _, err := os.Stat(dir); err == nil {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to remove stale cache entry %s: %w", dir, err)
		}
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create cache entry %s: %w", dir, err)
	}

	if err := install(dir); err != nil {
		_ = os.RemoveAll(dir)
		return err
	}
	return s.MarkInstalled(dir)
}

// Digest returns the short content digest used for cache keys
func Digest(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:16]
}

// Fingerprint derives the environment cache key from a hook's language,
// pinned toolchain version, and sorted additional dependencies.
func Fingerprint(language, version string, dependencies []string) string {
	deps := append([]string(nil), dependencies...)
	sort.Strings(deps)
	return Digest(language + "\x00" + version + "\x00" + strings.Join(deps, "\x00"))
}
