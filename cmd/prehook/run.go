package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hooklabs/prehook/internal/config"
	"github.com/hooklabs/prehook/internal/git"
	"github.com/hooklabs/prehook/internal/orchestrate"
	"github.com/hooklabs/prehook/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run [hook-id]",
	Short: "Run hooks against the staged files",
	Long: `Run the configured hooks. By default every hook for the pre-commit stage
runs against the files staged for commit; unstaged changes are stashed for
the duration of the run and restored afterwards.

A positional hook id restricts the run to hooks with that id. Hook ids
listed in the SKIP environment variable (comma-separated) are skipped.

Examples:
  # Run all pre-commit hooks against staged files
  prehook run

  # Run a single hook against every tracked file
  prehook run trailing-whitespace --all-files

  # Run against an explicit file list
  prehook run --files src/main.go --files src/util.go

  # Run hooks registered for another stage
  prehook run --hook-stage pre-push`,
	RunE: runHooks,
	Args: cobra.MaximumNArgs(1),
}

var (
	runAllFiles bool
	runFiles    []string
	runStage    string
	runConfig   string
)

func init() {
	rootCmd.AddCommand(runCmd)

	// Bare `prehook` behaves like `prehook run`.
	rootCmd.Args = cobra.NoArgs
	rootCmd.RunE = runHooks

	runCmd.Flags().BoolVarP(&runAllFiles, "all-files", "a", false, "Run against all tracked files instead of staged files")
	runCmd.Flags().StringArrayVar(&runFiles, "files", nil, "Run against the given files (repeatable)")
	runCmd.Flags().StringVar(&runStage, "hook-stage", "", "Run hooks registered for this stage (default pre-commit)")
	runCmd.Flags().StringVar(&runConfig, "config", "", "Path to the configuration file")
}

func runHooks(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	repo, err := git.Open(cwd)
	if err != nil {
		return err
	}

	configPath := runConfig
	if configPath == "" {
		configPath, _, err = config.Find(cwd)
		if err != nil {
			return err
		}
	}
	configPath, err = filepath.Abs(configPath)
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	s, err := store.Open()
	if err != nil {
		return err
	}

	opts := orchestrate.Options{
		Stage:         runStage,
		StageExplicit: runStage != "",
		AllFiles:      runAllFiles,
		Files:         normalizePaths(cwd, repo.Root(), runFiles),
		Skip:          skipList(),
		Verbose:       flagVerbose,
	}
	if len(args) == 1 {
		opts.HookID = args[0]
	}

	engine := orchestrate.New(cfg, configPath, repo, s, os.Stdout)
	ok, err := engine.Run(cmd.Context(), opts)
	if err != nil {
		return err
	}
	if !ok {
		os.Exit(1)
	}
	return nil
}

// skipList parses the SKIP environment variable into hook ids
func skipList() []string {
	var ids []string
	for _, id := range strings.Split(os.Getenv("SKIP"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// normalizePaths rewrites user-supplied paths relative to the repository
// root, so runs from a subdirectory select the same files as runs from the
// root.
func normalizePaths(cwd, root string, paths []string) []string {
	normalized := make([]string, 0, len(paths))
	for _, p := range paths {
		abs := p
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(cwd, p)
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil {
			rel = p
		}
		normalized = append(normalized, filepath.ToSlash(rel))
	}
	return normalized
}
