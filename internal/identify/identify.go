// Package identify derives content-family tags for files, used by hook
// type filters (`types`, `types_or`, `exclude_types`).
package identify

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"
)

// Tags always derivable from the directory entry itself.
const (
	TagFile          = "file"
	TagDirectory     = "directory"
	TagSymlink       = "symlink"
	TagExecutable    = "executable"
	TagNonExecutable = "non-executable"
	TagText          = "text"
	TagBinary        = "binary"
)

// extensionTags maps lowercase file extensions (without the dot) to tags.
// Extension-derived tags come in addition to the base tags above.
var extensionTags = map[string][]string{
	"bash":      {"shell", "bash"},
	"c":         {"c"},
	"cfg":       {"ini"},
	"cpp":       {"c++"},
	"css":       {"css"},
	"csv":       {"csv"},
	"gitignore": {"gitignore"},
	"go":        {"go"},
	"h":         {"c", "header"},
	"html":      {"html"},
	"ini":       {"ini"},
	"js":        {"javascript"},
	"json":      {"json"},
	"jsx":       {"jsx"},
	"lock":      {"lockfile"},
	"md":        {"markdown"},
	"proto":     {"proto"},
	"py":        {"python"},
	"pyi":       {"python", "pyi"},
	"rb":        {"ruby"},
	"rs":        {"rust"},
	"sh":        {"shell"},
	"sql":       {"sql"},
	"svg":       {"svg", "xml"},
	"toml":      {"toml"},
	"ts":        {"ts"},
	"tsx":       {"tsx"},
	"txt":       {"plain-text"},
	"xml":       {"xml"},
	"yaml":      {"yaml"},
	"yml":       {"yaml"},
	"zig":       {"zig"},
	"zsh":       {"shell", "zsh"},
}

// nameTags maps exact base names to tags for files without a telling extension.
var nameTags = map[string][]string{
	"Dockerfile": {"dockerfile"},
	"Makefile":   {"makefile"},
	"makefile":   {"makefile"},
	"go.mod":     {"go-mod"},
	"go.sum":     {"go-sum"},
}

// interpreterTags maps shebang interpreter names to tags.
var interpreterTags = map[string][]string{
	"bash":    {"shell", "bash"},
	"dash":    {"shell", "dash"},
	"node":    {"javascript"},
	"python":  {"python"},
	"python3": {"python", "python3"},
	"ruby":    {"ruby"},
	"sh":      {"shell"},
	"zsh":     {"shell", "zsh"},
}

// TagsFromPath returns the tag set for the file at path, relative to root.
// Vanished or unreadable files yield a nil set; the caller treats them as
// matching no content filters.
func TagsFromPath(root, path string) map[string]struct{} {
	full := filepath.Join(root, path)
	info, err := os.Lstat(full)
	if err != nil {
		return nil
	}

	tags := make(map[string]struct{})
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		tags[TagSymlink] = struct{}{}
		return tags
	case info.IsDir():
		tags[TagDirectory] = struct{}{}
		return tags
	}

	tags[TagFile] = struct{}{}
	if info.Mode()&0o111 != 0 {
		tags[TagExecutable] = struct{}{}
	} else {
		tags[TagNonExecutable] = struct{}{}
	}

	for _, t := range TagsFromFilename(filepath.Base(path)) {
		tags[t] = struct{}{}
	}

	head, err := readHead(full)
	if err != nil {
		return nil
	}
	if isText(head) {
		tags[TagText] = struct{}{}
		for _, t := range tagsFromShebang(head) {
			tags[t] = struct{}{}
		}
	} else {
		tags[TagBinary] = struct{}{}
	}

	return tags
}

// TagsFromFilename returns extension- and name-derived tags for a base name.
func TagsFromFilename(name string) []string {
	var tags []string
	if nt, ok := nameTags[name]; ok {
		tags = append(tags, nt...)
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if et, ok := extensionTags[ext]; ok {
		tags = append(tags, et...)
	}
	return tags
}

// readHead reads up to the first 1KiB of the file for content sniffing.
func readHead(path string) ([]byte, error) {
	f, err := os.Open(path) // #nosec G304 - path comes from the tracked file list
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 1024)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		// Empty files read io.EOF with n == 0 and are text.
		return nil, nil
	}
	return buf[:n], nil
}

// isText reports whether content looks like text: no NUL byte in the head.
func isText(head []byte) bool {
	return !bytes.ContainsRune(head, 0)
}

// tagsFromShebang inspects a `#!` first line for interpreter tags.
func tagsFromShebang(head []byte) []string {
	if !bytes.HasPrefix(head, []byte("#!")) {
		return nil
	}
	_, line, _ := bufio.ScanLines(head, true)
	fields := strings.Fields(strings.TrimPrefix(string(line), "#!"))
	if len(fields) == 0 {
		return nil
	}
	interp := filepath.Base(fields[0])
	if interp == "env" && len(fields) > 1 {
		interp = filepath.Base(fields[1])
	}
	return interpreterTags[interp]
}
