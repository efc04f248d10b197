package languages

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/hooklabs/prehook/internal/config"
	"github.com/hooklabs/prehook/internal/errors"
	"github.com/hooklabs/prehook/internal/store"
)

// Environment is a ready execution environment for one (language,
// fingerprint) key. Passthrough environments invoke the entry directly.
type Environment struct {
	Language    string
	Fingerprint string
	// Dir is the install location, empty for passthrough environments
	Dir string
	// RepoDir is the hook repository's local path, empty for local hooks
	RepoDir string

	backend Backend
}

// Passthrough reports whether the environment bypasses installation
func (e *Environment) Passthrough() bool { return e.Dir == "" }

// Command builds the hook's invocation against this environment
func (e *Environment) Command(hook config.Hook) (argv []string, env []string, err error) {
	return e.backend.Command(hook, e.Dir, e.RepoDir)
}

// Manager resolves, installs, and caches environments. Distinct fingerprints
// may be installed concurrently; the store's per-key locks keep concurrent
// invocations of the same key safe.
type Manager struct {
	store *store.Store
	// Progress receives the one-line install notices shown to the user
	Progress io.Writer
}

// NewManager creates a manager backed by the given cache
func NewManager(s *store.Store) *Manager {
	return &Manager{store: s, Progress: os.Stdout}
}

// Resolve returns a ready environment for the hook, installing one on a
// cache miss. repoName labels the install notice (repo URL or "local").
func (m *Manager) Resolve(ctx context.Context, hook config.Hook, repoDir, repoName string) (*Environment, error) {
	backend, err := Lookup(hook.Language)
	if err != nil {
		return nil, errors.New(errors.ErrInstallFailed, err.Error())
	}

	env := &Environment{
		Language: hook.Language,
		RepoDir:  repoDir,
		backend:  backend,
	}
	if !backend.InstallRequired(hook) {
		return env, nil
	}

	// The hook repository is an implicit dependency of the environment: two
	// hooks share an install only when language, repo, and extra deps agree.
	deps := append([]string{repoDir}, hook.AdditionalDependencies...)
	env.Fingerprint = store.Fingerprint(hook.Language, "", deps)
	env.Dir = m.store.EnvDir(hook.Language, env.Fingerprint)

	if m.store.Installed(env.Dir) {
		return env, nil
	}

	// Environments are built at their final location: virtualenv and npm
	// installs write the install path into shebangs and config files, so a
	// build-then-rename would leave scripts pointing at a vanished directory.
	key := "env\x00" + hook.Language + "\x00" + env.Fingerprint
	installErr := m.store.InstallAt(ctx, key, env.Dir, func(dir string) error {
		fmt.Fprintf(m.Progress, "Installing environment for %s\n", repoName)
		return backend.Install(ctx, hook, repoDir, dir)
	})
	if installErr != nil {
		if errors.IsType(installErr, errors.ErrCacheLockTimeout) {
			return nil, installErr
		}
		return nil, errors.Newf(errors.ErrInstallFailed,
			"environment installation failed for hook `%s`", hook.ID).
			WithContext("language", hook.Language).
			WithCause(installErr)
	}
	return env, nil
}
