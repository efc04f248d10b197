// Package git wraps the git command line for the queries and tree
// manipulations the run engine needs.
package git

import (
	"bytes"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hooklabs/prehook/internal/errors"
	"github.com/hooklabs/prehook/internal/logger"
)

// Repo is an opened working copy
type Repo struct {
	root string
}

// Open locates the repository containing dir
func Open(dir string) (*Repo, error) {
	out, err := output(dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, errors.New(errors.ErrNotARepository,
			"not in a git repository").WithCause(err)
	}
	root := strings.TrimSpace(string(out))
	return &Repo{root: filepath.Clean(root)}, nil
}

// Root returns the repository's top-level directory
func (r *Repo) Root() string { return r.root }

// StagedFiles lists the repo-relative paths staged for commit, excluding
// deletions so hooks never receive vanished files.
func (r *Repo) StagedFiles() ([]string, error) {
	out, err := output(r.root, "diff", "--staged", "--name-only", "--diff-filter=ACMRTUXB", "-z")
	if err != nil {
		return nil, gitError("failed to list staged files", err)
	}
	return splitZ(out), nil
}

// AllFiles lists every tracked file
func (r *Repo) AllFiles() ([]string, error) {
	out, err := output(r.root, "ls-files", "-z")
	if err != nil {
		return nil, gitError("failed to list tracked files", err)
	}
	return splitZ(out), nil
}

// FilesFrom narrows an explicit file list to tracked paths, returned
// repo-relative in the caller's order.
func (r *Repo) FilesFrom(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	args := append([]string{"ls-files", "-z", "--"}, paths...)
	out, err := output(r.root, args...)
	if err != nil {
		return nil, gitError("failed to resolve file arguments", err)
	}
	return splitZ(out), nil
}

// HasUnmergedPaths reports whether the repository has unresolved merge
// conflicts.
func (r *Repo) HasUnmergedPaths() (bool, error) {
	out, err := output(r.root, "ls-files", "--unmerged")
	if err != nil {
		return false, gitError("failed to query merge state", err)
	}
	return len(bytes.TrimSpace(out)) > 0, nil
}

// HasUnstagedChanges reports whether path differs between the working tree
// and the index.
func (r *Repo) HasUnstagedChanges(path string) (bool, error) {
	out, err := output(r.root, "diff", "--no-ext-diff", "--name-only", "--", path)
	if err != nil {
		return false, gitError("failed to diff "+path, err)
	}
	return len(bytes.TrimSpace(out)) > 0, nil
}

// Diff captures the unstaged diff, used to detect hook-made file
// modifications by comparison.
func (r *Repo) Diff() ([]byte, error) {
	out, _, err := run(r.root, "diff", "--no-ext-diff", "--no-textconv", "--ignore-submodules")
	if err != nil {
		return nil, gitError("failed to capture diff", err)
	}
	return out, nil
}

// unstagedPatch produces a binary patch of everything not staged for commit.
// A nil result means the tree matches the index.
func (r *Repo) unstagedPatch() ([]byte, error) {
	out, code, err := run(r.root, "diff", "--ignore-submodules", "--binary", "--exit-code", "--no-color", "--no-ext-diff")
	if err != nil && code != 1 {
		return nil, gitError("failed to capture unstaged changes", err)
	}
	if code == 0 {
		return nil, nil
	}
	return out, nil
}

// checkoutAll resets the working tree to the staged state
func (r *Repo) checkoutAll() error {
	if _, err := output(r.root, "checkout", "--", "."); err != nil {
		return gitError("failed to reset working tree", err)
	}
	return nil
}

// applyPatch reapplies a saved patch to the working tree
func (r *Repo) applyPatch(path string) error {
	if _, err := output(r.root, "apply", "--whitespace=nowarn", path); err != nil {
		return gitError("failed to apply patch "+path, err)
	}
	return nil
}

// run executes git with combined output capture, returning the exit code
func run(dir string, args ...string) ([]byte, int, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("git %s", strings.Join(args, " "))
	err := cmd.Run()
	code := -1
	if cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
	}
	if err != nil {
		err = fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), code, err
}

func output(dir string, args ...string) ([]byte, error) {
	out, _, err := run(dir, args...)
	return out, err
}

func gitError(msg string, cause error) error {
	return errors.New(errors.ErrGitCommandFailed, msg).WithCause(cause)
}

func splitZ(out []byte) []string {
	var files []string
	for _, f := range bytes.Split(out, []byte{0}) {
		if len(f) > 0 {
			files = append(files, string(f))
		}
	}
	return files
}
