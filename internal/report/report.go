// Package report renders one status line per reached hook plus failure
// diagnostics, in a stable textual format.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"github.com/hooklabs/prehook/internal/runner"
)

// lineWidth is the total display width of a status line
const lineWidth = 79

var (
	passed  = color.New(color.FgGreen)
	failed  = color.New(color.FgRed)
	skipped = color.New(color.FgYellow)
)

// Reporter writes the run's report. root resolves hook log_file paths.
type Reporter struct {
	out  io.Writer
	root string
}

// New creates a reporter writing to out for a repository root
func New(out io.Writer, root string) *Reporter {
	return &Reporter{out: out, root: root}
}

// Report prints the hook's status line and, where applicable, its failure
// details and captured output. Output goes to the hook's log_file instead of
// inline when one is configured.
func (r *Reporter) Report(res runner.Result) error {
	r.statusLine(res)

	verbose := res.Hook.Verbose
	switch {
	case res.Status == runner.Failed:
		fmt.Fprintf(r.out, "- hook id: %s\n", res.Hook.ID)
		fmt.Fprintf(r.out, "- exit code: %d\n", res.ExitCode)
		if res.FilesModified {
			fmt.Fprintln(r.out, "- files were modified by this hook")
		}
		if verbose {
			fmt.Fprintf(r.out, "- duration: %.2fs\n", res.Duration.Seconds())
		}
		return r.emitOutput(res)
	case res.Status == runner.Passed && verbose:
		fmt.Fprintf(r.out, "- hook id: %s\n", res.Hook.ID)
		fmt.Fprintf(r.out, "- duration: %.2fs\n", res.Duration.Seconds())
		return r.emitOutput(res)
	default:
		return nil
	}
}

// statusLine pads the hook name with dots so the status ends at a fixed
// column; padding is computed in display cells so CJK names align too.
func (r *Reporter) statusLine(res runner.Result) {
	name := res.Hook.DisplayName()
	annotation := ""
	if res.Status == runner.Skipped && res.NoFiles {
		annotation = "(no files to check)"
	}

	status := res.Status.String()
	var rendered string
	switch res.Status {
	case runner.Passed:
		rendered = passed.Sprint(status)
	case runner.Failed:
		rendered = failed.Sprint(status)
	default:
		rendered = skipped.Sprint(status)
	}

	dots := lineWidth - runewidth.StringWidth(name) - len(annotation) - len(status)
	if dots < 3 {
		dots = 3
	}
	fmt.Fprintf(r.out, "%s%s%s%s\n", name, strings.Repeat(".", dots), annotation, rendered)
}

// emitOutput prints the captured output indented, or writes it verbatim to
// the hook's log_file when one is set.
func (r *Reporter) emitOutput(res runner.Result) error {
	if len(res.Output) == 0 {
		return nil
	}
	if res.Hook.LogFile != "" {
		path := res.Hook.LogFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(r.root, path)
		}
		if err := os.WriteFile(path, res.Output, 0o644); err != nil { // #nosec G306 - hook log, not a secret
			return fmt.Errorf("failed to write log file %s: %w", path, err)
		}
		return nil
	}

	for _, line := range strings.Split(strings.TrimRight(string(res.Output), "\n"), "\n") {
		fmt.Fprintf(r.out, "  %s\n", line)
	}
	return nil
}
