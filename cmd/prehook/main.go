package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hooklabs/prehook/internal/errors"
	"github.com/hooklabs/prehook/internal/logger"
)

// CLI entry point for the prehook tool

var (
	// Version information - will be set via ldflags during build
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "prehook",
	Short: "Run git hooks declared in .pre-commit-config.yaml",
	Long: `prehook runs the hooks declared in a repository's .pre-commit-config.yaml
against the files staged for commit. Hook definitions can come from remote
git repositories, from the local repository, or from built-in meta hooks;
remote hooks run inside cached, isolated language environments.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	flagVerbose bool
	flagDebug   bool
)

func init() {
	// Custom version template that includes commit and build date
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
Commit: {{.Annotations.commit}}
Built: {{.Annotations.date}}
`)

	// Set annotations for version info
	if rootCmd.Annotations == nil {
		rootCmd.Annotations = make(map[string]string)
	}
	rootCmd.Annotations["commit"] = commit
	rootCmd.Annotations["date"] = date

	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Show per-hook details and output")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		logger.Init(flagVerbose, flagDebug)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorLine(err))
		os.Exit(1)
	}
}

// errorLine renders a fatal diagnostic with its fix hints and cause chain
func errorLine(err error) string {
	if structured, ok := err.(*errors.Error); ok {
		return "error: " + structured.Format()
	}
	return fmt.Sprintf("error: %v", err)
}
