package identify

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, root, name string, content []byte, mode os.FileMode) {
	t.Helper()
	path := filepath.Join(root, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, content, mode); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

func TestTagsFromPath(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "file.txt", []byte("Hello, world!\n"), 0o644)
	writeFile(t, root, "data.json", []byte("{}"), 0o644)
	writeFile(t, root, "blob.bin", []byte{0x00, 0x01, 0x02}, 0o644)
	writeFile(t, root, "script", []byte("#!/usr/bin/env python3\nprint()\n"), 0o755)
	writeFile(t, root, "empty.py", nil, 0o644)

	tests := []struct {
		name     string
		path     string
		want     []string
		dontWant []string
	}{
		{
			name:     "plain text file",
			path:     "file.txt",
			want:     []string{TagFile, TagText, TagNonExecutable, "plain-text"},
			dontWant: []string{TagBinary, TagExecutable},
		},
		{
			name: "json by extension",
			path: "data.json",
			want: []string{TagFile, TagText, "json"},
		},
		{
			name:     "binary content",
			path:     "blob.bin",
			want:     []string{TagFile, TagBinary},
			dontWant: []string{TagText},
		},
		{
			name:     "executable with shebang",
			path:     "script",
			want:     []string{TagFile, TagExecutable, TagText, "python", "python3"},
			dontWant: []string{TagNonExecutable},
		},
		{
			name: "empty file is text",
			path: "empty.py",
			want: []string{TagFile, TagText, "python"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tags := TagsFromPath(root, tt.path)
			for _, w := range tt.want {
				if _, ok := tags[w]; !ok {
					t.Errorf("TagsFromPath(%q) missing tag %q, got %v", tt.path, w, tags)
				}
			}
			for _, dw := range tt.dontWant {
				if _, ok := tags[dw]; ok {
					t.Errorf("TagsFromPath(%q) should not include tag %q", tt.path, dw)
				}
			}
		})
	}
}

func TestTagsFromPathMissingFile(t *testing.T) {
	root := t.TempDir()
	if tags := TagsFromPath(root, "nope.txt"); tags != nil {
		t.Errorf("expected nil tags for missing file, got %v", tags)
	}
}

func TestTagsFromFilename(t *testing.T) {
	tests := []struct {
		name string
		want []string
	}{
		{name: "main.py", want: []string{"python"}},
		{name: "config.yml", want: []string{"yaml"}},
		{name: "config.yaml", want: []string{"yaml"}},
		{name: "Dockerfile", want: []string{"dockerfile"}},
		{name: "go.mod", want: []string{"go-mod"}},
		{name: "README", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TagsFromFilename(tt.name)
			if len(got) != len(tt.want) {
				t.Fatalf("TagsFromFilename(%q) = %v, want %v", tt.name, got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("TagsFromFilename(%q) = %v, want %v", tt.name, got, tt.want)
				}
			}
		})
	}
}
