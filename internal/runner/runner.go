// Package runner executes one hook's entry over a batch of files and
// captures the outcome.
package runner

import (
	"bytes"
	"os"
	"os/exec"
	"time"

	"github.com/hooklabs/prehook/internal/config"
	"github.com/hooklabs/prehook/internal/languages"
	"github.com/hooklabs/prehook/internal/logger"
)

// Status is the terminal state of one hook in one run
type Status int

const (
	Passed Status = iota
	Failed
	Skipped
)

// String returns the report label for a status
func (s Status) String() string {
	switch s {
	case Passed:
		return "Passed"
	case Failed:
		return "Failed"
	default:
		return "Skipped"
	}
}

// Result is one hook's outcome, consumed by the reporter and the aggregate
// exit status.
type Result struct {
	Hook     config.Hook
	Status   Status
	ExitCode int
	Output   []byte
	Duration time.Duration
	// FilesModified is set when the hook changed tracked file content
	FilesModified bool
	// NoFiles is set on results skipped for an empty file selection
	NoFiles bool
}

// maxCommandLength is a conservative floor of the smallest argv+env byte
// limit among supported platforms. Invocations stay under it by splitting
// the file list across sequential executions.
const maxCommandLength = 128 * 1024

// envSlack reserves command-length budget for the inherited environment.
const envSlack = 4 * 1024

// Runner executes hooks as child processes rooted at the repository
type Runner struct {
	root string
}

// New creates a runner executing in the given repository root
func New(root string) *Runner {
	return &Runner{root: root}
}

// Run executes the hook over files in its environment. The call blocks until
// every child process exits; there is no implicit timeout.
func (r *Runner) Run(hook config.Hook, env *languages.Environment, files []string) Result {
	start := time.Now()

	if languages.IsFail(hook) {
		return Result{
			Hook:     hook,
			Status:   Failed,
			ExitCode: 1,
			Output:   []byte(languages.FailOutput(hook, files)),
			Duration: time.Since(start),
		}
	}

	argv, extraEnv, err := env.Command(hook)
	if err != nil {
		return Result{Hook: hook, Status: Failed, ExitCode: 1, Output: []byte(err.Error() + "\n"), Duration: time.Since(start)}
	}
	if len(argv) == 0 {
		return Result{Hook: hook, Status: Failed, ExitCode: 1, Output: []byte("hook has an empty entry\n"), Duration: time.Since(start)}
	}

	var batches [][]string
	if hook.PassesFilenames() && len(files) > 0 {
		batches = partition(files, budget(argv))
	} else {
		batches = [][]string{nil}
	}

	result := Result{Hook: hook, Status: Passed}
	var output bytes.Buffer
	for _, batch := range batches {
		code, out := r.exec(argv, extraEnv, batch)
		output.Write(out)
		if code != 0 && result.ExitCode == 0 {
			result.Status = Failed
			result.ExitCode = code
		}
	}
	result.Output = output.Bytes()
	result.Duration = time.Since(start)
	return result
}

// exec runs one invocation with combined output capture. The child inherits
// the process environment plus the reserved context variables, so nested
// tooling can detect it is running under a hook.
func (r *Runner) exec(argv, extraEnv []string, files []string) (int, []byte) {
	args := append(append([]string(nil), argv[1:]...), files...)
	// #nosec G204 - the entry comes from the hook configuration, which has
	// the same trust level as any checked-in build script
	cmd := exec.Command(argv[0], args...)
	cmd.Dir = r.root
	cmd.Env = append(os.Environ(), "PRE_COMMIT=1", "PREHOOK=1")
	cmd.Env = append(cmd.Env, extraEnv...)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	logger.Debug("running %s with %d files", argv[0], len(files))
	err := cmd.Run()
	if err != nil {
		if cmd.ProcessState != nil && cmd.ProcessState.ExitCode() >= 0 {
			return cmd.ProcessState.ExitCode(), output.Bytes()
		}
		// The command could not be started at all.
		output.WriteString(err.Error() + "\n")
		return 1, output.Bytes()
	}
	return 0, output.Bytes()
}

// budget computes the byte budget left for file arguments after the fixed
// argv cost and environment slack.
func budget(argv []string) int {
	b := maxCommandLength - envSlack
	for _, a := range argv {
		b -= len(a) + 1
	}
	return b
}

// partition splits files into batches whose argument bytes stay within the
// budget. A file longer than the whole budget still gets a singleton batch;
// the OS reports the failure instead of the engine looping forever.
func partition(files []string, budget int) [][]string {
	var batches [][]string
	var current []string
	used := 0

	for _, f := range files {
		cost := len(f) + 1
		if len(current) > 0 && used+cost > budget {
			batches = append(batches, current)
			current = nil
			used = 0
		}
		current = append(current, f)
		used += cost
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}
