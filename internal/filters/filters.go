// Package filters selects the files a hook runs over from the file universe.
package filters

import (
	"regexp"

	"github.com/hooklabs/prehook/internal/config"
	"github.com/hooklabs/prehook/internal/errors"
	"github.com/hooklabs/prehook/internal/identify"
)

// Filter is the compiled file selection for one hook. Hook-level `files` and
// `exclude` each fully replace their global counterpart when declared.
type Filter struct {
	root         string
	files        *regexp.Regexp
	exclude      *regexp.Regexp
	types        []string
	typesOr      []string
	excludeTypes []string

	// tags is swappable for tests; defaults to identify.TagsFromPath
	tags func(root, path string) map[string]struct{}
}

// New compiles the selection filter for a hook. A malformed pattern is a
// fatal configuration error.
func New(root string, cfg *config.Config, hook config.Hook) (*Filter, error) {
	f := &Filter{
		root:         root,
		types:        hook.Types,
		typesOr:      hook.TypesOr,
		excludeTypes: hook.ExcludeTypes,
		tags:         identify.TagsFromPath,
	}

	filesPat := cfg.Files
	if hook.Files != "" {
		filesPat = hook.Files
	}
	excludePat := cfg.Exclude
	if hook.Exclude != "" {
		excludePat = hook.Exclude
	}

	var err error
	if f.files, err = compile(hook.ID, "files", filesPat); err != nil {
		return nil, err
	}
	if f.exclude, err = compile(hook.ID, "exclude", excludePat); err != nil {
		return nil, err
	}
	return f, nil
}

func compile(hookID, field, pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.Newf(errors.ErrConfigInvalid,
			"Invalid `%s` pattern for hook `%s`: %s", field, hookID, pattern).WithCause(err)
	}
	return re, nil
}

// Apply selects the files the hook should see, preserving the universe's
// order and dropping duplicates. An empty result is a valid outcome.
func (f *Filter) Apply(universe []string) []string {
	selected := make([]string, 0, len(universe))
	seen := make(map[string]struct{}, len(universe))

	for _, path := range universe {
		if _, dup := seen[path]; dup {
			continue
		}
		seen[path] = struct{}{}

		if f.files != nil && !f.files.MatchString(path) {
			continue
		}
		if f.exclude != nil && f.exclude.MatchString(path) {
			continue
		}
		if !f.matchesTypes(path) {
			continue
		}
		selected = append(selected, path)
	}
	return selected
}

// matchesTypes applies the tag filters. Files that cannot be identified
// (vanished, unreadable) carry no tags and match no type requirement.
func (f *Filter) matchesTypes(path string) bool {
	if len(f.types) == 0 && len(f.typesOr) == 0 && len(f.excludeTypes) == 0 {
		return true
	}

	tags := f.tags(f.root, path)
	for _, t := range f.types {
		if _, ok := tags[t]; !ok {
			return false
		}
	}
	if len(f.typesOr) > 0 {
		any := false
		for _, t := range f.typesOr {
			if _, ok := tags[t]; ok {
				any = true
				break
			}
		}
		if !any {
			return false
		}
	}
	for _, t := range f.excludeTypes {
		if _, ok := tags[t]; ok {
			return false
		}
	}
	return true
}
