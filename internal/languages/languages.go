// Package languages provides one installer backend per hook language and
// the environment manager that caches installed environments.
package languages

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hooklabs/prehook/internal/config"
)

// Backend is the capability interface of one language's installer:
// Install populates an isolated environment directory, Command builds the
// hook's process invocation against it.
type Backend interface {
	// InstallRequired reports whether the hook needs an installed environment
	InstallRequired(hook config.Hook) bool
	// Install populates dst with the toolchain, the hook repository, and the
	// hook's additional dependencies
	Install(ctx context.Context, hook config.Hook, repoDir, dst string) error
	// Command returns the argv prefix and extra environment variables for
	// invoking the hook's entry. envDir is empty for passthrough environments.
	Command(hook config.Hook, envDir, repoDir string) (argv []string, env []string, err error)
}

// Lookup selects the backend for a language value. The set is closed;
// config validation rejects anything else up front.
func Lookup(language string) (Backend, error) {
	switch language {
	case "system":
		return systemLanguage{}, nil
	case "script":
		return scriptLanguage{}, nil
	case "fail":
		return failLanguage{}, nil
	case "python":
		return pythonLanguage{}, nil
	case "node":
		return nodeLanguage{}, nil
	default:
		return nil, fmt.Errorf("unsupported language: %s", language)
	}
}

// systemLanguage invokes the entry directly on the host, no environment.
type systemLanguage struct{}

func (systemLanguage) InstallRequired(config.Hook) bool { return false }

func (systemLanguage) Install(context.Context, config.Hook, string, string) error { return nil }

func (systemLanguage) Command(hook config.Hook, _, _ string) ([]string, []string, error) {
	argv, err := SplitEntry(hook.Entry)
	if err != nil {
		return nil, nil, err
	}
	return append(argv, hook.Args...), nil, nil
}

// scriptLanguage runs an executable shipped inside the hook repository.
type scriptLanguage struct{}

func (scriptLanguage) InstallRequired(config.Hook) bool { return false }

func (scriptLanguage) Install(context.Context, config.Hook, string, string) error { return nil }

func (scriptLanguage) Command(hook config.Hook, _, repoDir string) ([]string, []string, error) {
	argv, err := SplitEntry(hook.Entry)
	if err != nil {
		return nil, nil, err
	}
	if len(argv) == 0 {
		return nil, nil, fmt.Errorf("hook `%s` has an empty entry", hook.ID)
	}
	argv[0] = filepath.Join(repoDir, argv[0])
	return append(argv, hook.Args...), nil, nil
}

// failLanguage spawns nothing: it prints its entry as the failure message
// followed by the offending files. Used to ban file patterns outright.
type failLanguage struct{}

func (failLanguage) InstallRequired(config.Hook) bool { return false }

func (failLanguage) Install(context.Context, config.Hook, string, string) error { return nil }

func (failLanguage) Command(hook config.Hook, _, _ string) ([]string, []string, error) {
	return nil, nil, nil
}

// FailOutput renders the fail language's message for a file set
func FailOutput(hook config.Hook, files []string) string {
	var sb strings.Builder
	sb.WriteString(hook.Entry)
	sb.WriteString("\n\n")
	for _, f := range files {
		sb.WriteString(f)
		sb.WriteString("\n")
	}
	return sb.String()
}

// IsFail reports whether the hook runs in-process via the fail language
func IsFail(hook config.Hook) bool { return hook.Language == "fail" }

// pythonLanguage installs a virtualenv holding the hook repository and its
// additional dependencies.
type pythonLanguage struct{}

func (pythonLanguage) InstallRequired(config.Hook) bool { return true }

func (pythonLanguage) Install(ctx context.Context, hook config.Hook, repoDir, dst string) error {
	if err := runCmd(ctx, "", "python3", "-m", "venv", dst); err != nil {
		return err
	}

	pip := filepath.Join(dst, "bin", "pip")
	args := []string{"install", "--quiet"}
	if repoDir != "" && hasPythonPackage(repoDir) {
		args = append(args, repoDir)
	}
	args = append(args, hook.AdditionalDependencies...)
	if len(args) == 2 {
		// Nothing to install beyond the interpreter itself.
		return nil
	}
	return runCmd(ctx, "", pip, args...)
}

func (pythonLanguage) Command(hook config.Hook, envDir, _ string) ([]string, []string, error) {
	argv, err := SplitEntry(hook.Entry)
	if err != nil {
		return nil, nil, err
	}
	env := []string{
		"VIRTUAL_ENV=" + envDir,
		"PATH=" + filepath.Join(envDir, "bin") + string(os.PathListSeparator) + os.Getenv("PATH"),
	}
	return append(argv, hook.Args...), env, nil
}

func hasPythonPackage(repoDir string) bool {
	for _, f := range []string{"setup.py", "pyproject.toml"} {
		if _, err := os.Stat(filepath.Join(repoDir, f)); err == nil {
			return true
		}
	}
	return false
}

// nodeLanguage installs the hook repository and dependencies with npm into
// an isolated prefix.
type nodeLanguage struct{}

func (nodeLanguage) InstallRequired(config.Hook) bool { return true }

func (nodeLanguage) Install(ctx context.Context, hook config.Hook, repoDir, dst string) error {
	args := []string{"install", "-g", "--prefix", dst}
	if repoDir != "" && hasNodePackage(repoDir) {
		args = append(args, repoDir)
	}
	args = append(args, hook.AdditionalDependencies...)
	if len(args) == 4 {
		return nil
	}
	return runCmd(ctx, "", "npm", args...)
}

func (nodeLanguage) Command(hook config.Hook, envDir, _ string) ([]string, []string, error) {
	argv, err := SplitEntry(hook.Entry)
	if err != nil {
		return nil, nil, err
	}
	env := []string{
		"PATH=" + filepath.Join(envDir, "bin") + string(os.PathListSeparator) + os.Getenv("PATH"),
	}
	return append(argv, hook.Args...), env, nil
}

func hasNodePackage(repoDir string) bool {
	_, err := os.Stat(filepath.Join(repoDir, "package.json"))
	return err == nil
}

// runCmd executes an installer command, folding its output into the error on
// failure so the diagnostic is actionable.
func runCmd(ctx context.Context, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w\n%s", name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}
