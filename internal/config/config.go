// Package config loads and validates the hook configuration file and the
// hook manifests distributed inside hook repositories.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/hooklabs/prehook/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file
	ConfigFileName = ".pre-commit-config.yaml"
	// ManifestFileName is the name of the hook manifest inside a hook repository
	ManifestFileName = ".pre-commit-hooks.yaml"

	// RepoLocal marks a repo whose hooks are defined inline in the config
	RepoLocal = "local"
	// RepoMeta marks the built-in meta hook repo
	RepoMeta = "meta"
)

// KnownStages lists the git hook stages a hook may declare.
var KnownStages = []string{
	"commit-msg",
	"manual",
	"post-checkout",
	"post-commit",
	"post-merge",
	"post-rewrite",
	"pre-commit",
	"pre-merge-commit",
	"pre-push",
	"prepare-commit-msg",
}

// KnownLanguages lists the language values with an installer backend.
var KnownLanguages = []string{"fail", "node", "python", "script", "system"}

// MetaHookIDs lists the hooks provided by the `meta` repo, implemented
// in-process.
var MetaHookIDs = []string{"check-hooks-apply", "check-useless-excludes", "identity"}

// Config represents the .pre-commit-config.yaml structure
type Config struct {
	Repos         []Repo   `yaml:"repos"`
	Files         string   `yaml:"files,omitempty"`
	Exclude       string   `yaml:"exclude,omitempty"`
	FailFast      bool     `yaml:"fail_fast,omitempty"`
	DefaultStages []string `yaml:"default_stages,omitempty"`
}

// Repo represents one hook repository declaration
type Repo struct {
	Repo  string `yaml:"repo"`
	Rev   string `yaml:"rev,omitempty"`
	Hooks []Hook `yaml:"hooks"`
}

// IsLocal reports whether the repo's hooks are defined inline
func (r Repo) IsLocal() bool { return r.Repo == RepoLocal }

// IsMeta reports whether the repo refers to the built-in meta hooks
func (r Repo) IsMeta() bool { return r.Repo == RepoMeta }

// IsRemote reports whether the repo must be fetched from a URL
func (r Repo) IsRemote() bool { return !r.IsLocal() && !r.IsMeta() }

// Hook represents one hook declaration, either from the config file or from
// a repository manifest
type Hook struct {
	ID                     string   `yaml:"id"`
	Name                   string   `yaml:"name,omitempty"`
	Entry                  string   `yaml:"entry,omitempty"`
	Language               string   `yaml:"language,omitempty"`
	Args                   []string `yaml:"args,omitempty"`
	Files                  string   `yaml:"files,omitempty"`
	Exclude                string   `yaml:"exclude,omitempty"`
	Types                  []string `yaml:"types,omitempty"`
	TypesOr                []string `yaml:"types_or,omitempty"`
	ExcludeTypes           []string `yaml:"exclude_types,omitempty"`
	AlwaysRun              bool     `yaml:"always_run,omitempty"`
	FailFast               bool     `yaml:"fail_fast,omitempty"`
	Verbose                bool     `yaml:"verbose,omitempty"`
	PassFilenames          *bool    `yaml:"pass_filenames,omitempty"`
	LogFile                string   `yaml:"log_file,omitempty"`
	AdditionalDependencies []string `yaml:"additional_dependencies,omitempty"`
	Stages                 []string `yaml:"stages,omitempty"`
}

// DisplayName returns the name shown in the report, falling back to the id
func (h Hook) DisplayName() string {
	if h.Name != "" {
		return h.Name
	}
	return h.ID
}

// PassesFilenames reports whether file paths are appended to the hook's
// command line (default true)
func (h Hook) PassesFilenames() bool {
	return h.PassFilenames == nil || *h.PassFilenames
}

// EffectiveStages returns the stages the hook applies to, falling back to
// the config-wide default stages, then to all known stages
func (h Hook) EffectiveStages(defaults []string) []string {
	if len(h.Stages) > 0 {
		return h.Stages
	}
	if len(defaults) > 0 {
		return defaults
	}
	return KnownStages
}

// Merge overlays a config-file hook declaration onto its manifest
// definition. Config-file values win wherever they are set.
func Merge(manifest, override Hook) Hook {
	merged := manifest
	merged.ID = override.ID
	if override.Name != "" {
		merged.Name = override.Name
	}
	if override.Entry != "" {
		merged.Entry = override.Entry
	}
	if override.Language != "" {
		merged.Language = override.Language
	}
	if len(override.Args) > 0 {
		merged.Args = override.Args
	}
	if override.Files != "" {
		merged.Files = override.Files
	}
	if override.Exclude != "" {
		merged.Exclude = override.Exclude
	}
	if len(override.Types) > 0 {
		merged.Types = override.Types
	}
	if len(override.TypesOr) > 0 {
		merged.TypesOr = override.TypesOr
	}
	if len(override.ExcludeTypes) > 0 {
		merged.ExcludeTypes = override.ExcludeTypes
	}
	if override.AlwaysRun {
		merged.AlwaysRun = true
	}
	if override.FailFast {
		merged.FailFast = true
	}
	if override.Verbose {
		merged.Verbose = true
	}
	if override.PassFilenames != nil {
		merged.PassFilenames = override.PassFilenames
	}
	if override.LogFile != "" {
		merged.LogFile = override.LogFile
	}
	if len(override.AdditionalDependencies) > 0 {
		merged.AdditionalDependencies = override.AdditionalDependencies
	}
	if len(override.Stages) > 0 {
		merged.Stages = override.Stages
	}
	return merged
}

// Find searches for the configuration file starting from startDir and walking
// up the directory tree. It returns the config path and the directory holding
// it.
func Find(startDir string) (string, string, error) {
	searchDir := startDir
	for {
		configPath := filepath.Join(searchDir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, searchDir, nil
		}

		parentDir := filepath.Dir(searchDir)
		if parentDir == searchDir {
			return "", "", errors.Newf(errors.ErrConfigNotFound,
				"no %s found in current directory or any parent directory", ConfigFileName)
		}
		searchDir = parentDir
	}
}

// Load reads, parses, and validates a configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 - config path chosen by the user
	if err != nil {
		return nil, errors.Newf(errors.ErrConfigNotFound, "Failed to read `%s`", path).WithCause(err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, parseError(path, err)
	}

	var cfg Config
	if err := doc.Decode(&cfg); err != nil {
		return nil, parseError(path, err)
	}

	if err := validate(&cfg, &doc, path); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseError(path string, cause error) error {
	return errors.Newf(errors.ErrConfigInvalid, "Failed to parse `%s`", path).WithCause(cause)
}

// validate checks structural constraints the yaml decoding cannot express.
// Violations are reported with the line and column of the offending node.
func validate(cfg *Config, doc *yaml.Node, path string) error {
	if len(cfg.Repos) == 0 {
		return parseError(path, fmt.Errorf("missing field `repos`"))
	}

	for i, repo := range cfg.Repos {
		node := repoNode(doc, i)
		switch {
		case repo.Repo == "":
			return parseError(path, locatedf(node, "repos: missing field `repo`"))
		case repo.IsRemote() && repo.Rev == "":
			return parseError(path, locatedf(node, "repos: Invalid remote repo: missing field `rev`"))
		case !repo.IsRemote() && repo.Rev != "":
			return parseError(path, locatedf(node, "repos: `rev` is not allowed for %s repo", repo.Repo))
		case len(repo.Hooks) == 0:
			return parseError(path, locatedf(node, "repos: missing field `hooks`"))
		}

		seen := make(map[string]struct{}, len(repo.Hooks))
		for _, hook := range repo.Hooks {
			if err := validateHook(repo, hook, node); err != nil {
				return parseError(path, err)
			}
			if _, dup := seen[hook.ID]; dup {
				return parseError(path, locatedf(node, "hooks: hook `%s` is declared twice in repo %s", hook.ID, repo.Repo))
			}
			seen[hook.ID] = struct{}{}
		}
	}

	for _, stage := range cfg.DefaultStages {
		if !slices.Contains(KnownStages, stage) {
			return parseError(path, fmt.Errorf("default_stages: unknown stage `%s`", stage))
		}
	}
	return nil
}

func validateHook(repo Repo, hook Hook, node *yaml.Node) error {
	if hook.ID == "" {
		return locatedf(node, "hooks: missing field `id`")
	}

	switch {
	case repo.IsLocal():
		if hook.Name == "" || hook.Entry == "" || hook.Language == "" {
			return locatedf(node, "hooks: local hook `%s` requires `name`, `entry`, and `language`", hook.ID)
		}
	case repo.IsMeta():
		if !slices.Contains(MetaHookIDs, hook.ID) {
			return locatedf(node, "hooks: unknown meta hook `%s`", hook.ID)
		}
	}

	if hook.Language != "" && !slices.Contains(KnownLanguages, hook.Language) {
		return locatedf(node, "hooks: hook `%s` has unsupported language `%s`", hook.ID, hook.Language)
	}
	for _, stage := range hook.Stages {
		if !slices.Contains(KnownStages, stage) {
			return locatedf(node, "hooks: hook `%s` declares unknown stage `%s`", hook.ID, stage)
		}
	}
	return nil
}

// repoNode finds the yaml node of the i-th repos entry for location reporting.
func repoNode(doc *yaml.Node, i int) *yaml.Node {
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil
	}
	mapping := doc.Content[0]
	for j := 0; j+1 < len(mapping.Content); j += 2 {
		if mapping.Content[j].Value == "repos" {
			seq := mapping.Content[j+1]
			if seq.Kind == yaml.SequenceNode && i < len(seq.Content) {
				return seq.Content[i]
			}
		}
	}
	return nil
}

func locatedf(node *yaml.Node, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if node != nil {
		return fmt.Errorf("%s at line %d column %d", msg, node.Line, node.Column)
	}
	return fmt.Errorf("%s", msg)
}

// LoadManifest parses a hook repository's manifest file into hook
// definitions keyed by id.
func LoadManifest(path string) (map[string]Hook, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is inside a fetched hook repo
	if err != nil {
		return nil, errors.Newf(errors.ErrFetchFailed, "Failed to read hook manifest `%s`", path).WithCause(err)
	}

	var hooks []Hook
	if err := yaml.Unmarshal(data, &hooks); err != nil {
		return nil, errors.Newf(errors.ErrFetchFailed, "Failed to parse hook manifest `%s`", path).WithCause(err)
	}

	manifest := make(map[string]Hook, len(hooks))
	for _, h := range hooks {
		if h.ID == "" {
			return nil, errors.Newf(errors.ErrFetchFailed, "hook manifest `%s` contains a hook without an id", path)
		}
		if _, dup := manifest[h.ID]; dup {
			return nil, errors.Newf(errors.ErrFetchFailed, "hook manifest `%s` declares hook `%s` twice", path, h.ID)
		}
		manifest[h.ID] = h
	}
	return manifest, nil
}
