package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hooklabs/prehook/internal/config"
	"github.com/hooklabs/prehook/internal/errors"
)

var validateCmd = &cobra.Command{
	Use:   "validate-config [path...]",
	Short: "Validate configuration files",
	Long: `Validate one or more configuration files against the configuration schema
without running any hooks. With no arguments the configuration discovered
from the current directory is validated.

Examples:
  # Validate the repository's configuration
  prehook validate-config

  # Validate specific files
  prehook validate-config .pre-commit-config.yaml other-config.yaml`,
	RunE: validateConfigs,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfigs(cmd *cobra.Command, args []string) error {
	paths := args
	if len(paths) == 0 {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		path, _, err := config.Find(cwd)
		if errors.IsType(err, errors.ErrConfigNotFound) {
			// Nothing to validate is not a failure.
			return nil
		}
		if err != nil {
			return err
		}
		paths = []string{path}
	}

	failed := false
	for _, path := range paths {
		if err := config.ValidateFile(path); err != nil {
			failed = true
			fmt.Fprintln(os.Stderr, errorLine(err))
		}
	}
	if failed {
		os.Exit(1)
	}
	return nil
}
