package languages

import (
	"context"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hooklabs/prehook/internal/config"
	"github.com/hooklabs/prehook/internal/store"
)

func TestSplitEntry(t *testing.T) {
	tests := []struct {
		entry   string
		want    []string
		wantErr bool
	}{
		{entry: "echo Hello, world!", want: []string{"echo", "Hello,", "world!"}},
		{entry: `python3 -c 'import sys; print(sys.argv[1:]); exit(1)'`, want: []string{"python3", "-c", "import sys; print(sys.argv[1:]); exit(1)"}},
		{entry: `sh -c "echo $PRE_COMMIT > env.txt"`, want: []string{"sh", "-c", "echo $PRE_COMMIT > env.txt"}},
		{entry: `cmd "a \"quoted\" word"`, want: []string{"cmd", `a "quoted" word`}},
		{entry: `cmd with\ space`, want: []string{"cmd", "with space"}},
		{entry: "  spaced   out  ", want: []string{"spaced", "out"}},
		{entry: "cmd ''", want: []string{"cmd", ""}},
		{entry: "", want: nil},
		{entry: "unbalanced '", wantErr: true},
		{entry: `unbalanced "`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.entry, func(t *testing.T) {
			got, err := SplitEntry(tt.entry)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SplitEntry(%q) error = %v, wantErr %v", tt.entry, err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitEntry(%q) = %#v, want %#v", tt.entry, got, tt.want)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	for _, lang := range config.KnownLanguages {
		if _, err := Lookup(lang); err != nil {
			t.Errorf("Lookup(%q) error: %v", lang, err)
		}
	}
	if _, err := Lookup("cobol"); err == nil {
		t.Error("Lookup() expected error for unknown language")
	}
}

func TestSystemCommand(t *testing.T) {
	hook := config.Hook{ID: "x", Language: "system", Entry: "echo Hello, world!", Args: []string{"--flag"}}
	be, _ := Lookup("system")

	argv, env, err := be.Command(hook, "", "")
	if err != nil {
		t.Fatalf("Command() error: %v", err)
	}
	want := []string{"echo", "Hello,", "world!", "--flag"}
	if !reflect.DeepEqual(argv, want) {
		t.Errorf("Command() argv = %v, want %v", argv, want)
	}
	if env != nil {
		t.Errorf("system language should not add env vars, got %v", env)
	}
}

func TestScriptCommandResolvesAgainstRepo(t *testing.T) {
	hook := config.Hook{ID: "x", Language: "script", Entry: "bin/check.sh --strict"}
	be, _ := Lookup("script")

	argv, _, err := be.Command(hook, "", "/repos/abc")
	if err != nil {
		t.Fatalf("Command() error: %v", err)
	}
	if argv[0] != filepath.Join("/repos/abc", "bin/check.sh") {
		t.Errorf("script entry not resolved against repo dir: %v", argv)
	}
	if argv[1] != "--strict" {
		t.Errorf("script entry lost its arguments: %v", argv)
	}
}

func TestFailOutput(t *testing.T) {
	hook := config.Hook{ID: "no-env-files", Language: "fail", Entry: "Do not commit env files"}
	got := FailOutput(hook, []string{".env", "config/.env"})
	want := "Do not commit env files\n\n.env\nconfig/.env\n"
	if got != want {
		t.Errorf("FailOutput() = %q, want %q", got, want)
	}
	if !IsFail(hook) {
		t.Error("IsFail() should be true for the fail language")
	}
}

func TestPythonCommandEnv(t *testing.T) {
	hook := config.Hook{ID: "x", Language: "python", Entry: "flake8"}
	be, _ := Lookup("python")

	argv, env, err := be.Command(hook, "/cache/envs/python-abc", "")
	if err != nil {
		t.Fatalf("Command() error: %v", err)
	}
	if argv[0] != "flake8" {
		t.Errorf("Command() argv = %v", argv)
	}
	var hasVenv, hasPath bool
	for _, e := range env {
		if e == "VIRTUAL_ENV=/cache/envs/python-abc" {
			hasVenv = true
		}
		if strings.HasPrefix(e, "PATH=") && strings.Contains(e, filepath.Join("/cache/envs/python-abc", "bin")) {
			hasPath = true
		}
	}
	if !hasVenv || !hasPath {
		t.Errorf("python env should set VIRTUAL_ENV and prepend PATH, got %v", env)
	}
}

func TestResolvePassthrough(t *testing.T) {
	s, err := store.OpenAt(t.TempDir())
	if err != nil {
		t.Fatalf("store.OpenAt() error: %v", err)
	}
	m := NewManager(s)
	var progress strings.Builder
	m.Progress = &progress

	hook := config.Hook{ID: "x", Language: "system", Entry: "true"}
	env, err := m.Resolve(context.Background(), hook, "", "local")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if !env.Passthrough() {
		t.Error("system language should resolve to a passthrough environment")
	}
	if progress.Len() != 0 {
		t.Errorf("passthrough resolution should print nothing, got %q", progress.String())
	}
}

func TestResolveFingerprintSharing(t *testing.T) {
	a := store.Fingerprint("python", "", []string{"/repo/x", "dep-a"})
	b := store.Fingerprint("python", "", []string{"dep-a", "/repo/x"})
	if a != b {
		t.Error("fingerprints should be order-insensitive")
	}
	c := store.Fingerprint("python", "", []string{"/repo/y", "dep-a"})
	if a == c {
		t.Error("different repos must not share an environment")
	}
}
