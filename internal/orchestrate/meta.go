package orchestrate

import (
	"bytes"
	"fmt"

	"github.com/hooklabs/prehook/internal/config"
	"github.com/hooklabs/prehook/internal/filters"
	"github.com/hooklabs/prehook/internal/runner"
)

// metaHooks are the built-in hooks of the `meta` repo. They check the
// configuration itself and run in-process rather than as child processes.
var metaHooks = map[string]config.Hook{
	"check-hooks-apply": {
		ID:       "check-hooks-apply",
		Name:     "Check hooks apply to the repository",
		Language: "system",
		Files:    config.ConfigFileName,
	},
	"check-useless-excludes": {
		ID:       "check-useless-excludes",
		Name:     "Check for useless excludes",
		Language: "system",
		Files:    config.ConfigFileName,
	},
	"identity": {
		ID:        "identity",
		Name:      "identity",
		Language:  "system",
		Verbose:   true,
		AlwaysRun: true,
	},
}

// runMeta executes one meta hook against the current configuration and file
// universe.
func (e *Engine) runMeta(hook config.Hook, files, universe []string) runner.Result {
	var out bytes.Buffer
	code := 0

	switch hook.ID {
	case "identity":
		for _, f := range files {
			fmt.Fprintln(&out, f)
		}

	case "check-hooks-apply":
		for _, repo := range e.cfg.Repos {
			if repo.IsMeta() {
				continue
			}
			for _, declared := range repo.Hooks {
				if declared.AlwaysRun {
					continue
				}
				f, err := filters.New(e.repo.Root(), e.cfg, declared)
				if err != nil {
					fmt.Fprintln(&out, err.Error())
					code = 1
					continue
				}
				if len(f.Apply(universe)) == 0 {
					fmt.Fprintf(&out, "%s does not apply to this repository\n", declared.ID)
					code = 1
				}
			}
		}

	case "check-useless-excludes":
		for _, repo := range e.cfg.Repos {
			for _, declared := range repo.Hooks {
				if declared.Exclude == "" {
					continue
				}
				withExclude, err := filters.New(e.repo.Root(), e.cfg, declared)
				if err != nil {
					fmt.Fprintln(&out, err.Error())
					code = 1
					continue
				}
				relaxed := declared
				relaxed.Exclude = ""
				withoutExclude, err := filters.New(e.repo.Root(), e.cfg, relaxed)
				if err != nil {
					fmt.Fprintln(&out, err.Error())
					code = 1
					continue
				}
				if len(withExclude.Apply(universe)) == len(withoutExclude.Apply(universe)) {
					fmt.Fprintf(&out, "The exclude pattern %q for %s does not match any files\n",
						declared.Exclude, declared.ID)
					code = 1
				}
			}
		}
	}

	status := runner.Passed
	if code != 0 {
		status = runner.Failed
	}
	return runner.Result{Hook: hook, Status: status, ExitCode: code, Output: out.Bytes()}
}
