package git

import (
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"testing"
)

// initRepo creates a git repository with an initial commit in a temp dir.
func initRepo(t *testing.T) (*Repo, string) {
	t.Helper()
	dir := t.TempDir()
	gitRun(t, dir, "init", "--initial-branch=main")
	gitRun(t, dir, "config", "user.name", "test")
	gitRun(t, dir, "config", "user.email", "test@example.com")
	gitRun(t, dir, "config", "commit.gpgsign", "false")

	writeFile(t, dir, "file.txt", "Hello, world!\n")
	gitRun(t, dir, "add", ".")
	gitRun(t, dir, "commit", "-m", "initial")

	repo, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	return repo, dir
}

func gitRun(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

func readFile(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("failed to read %s: %v", name, err)
	}
	return string(data)
}

func TestOpenNotARepository(t *testing.T) {
	if _, err := Open(t.TempDir()); err == nil {
		t.Error("Open() expected error outside a repository")
	}
}

func TestOpenFromSubdirectory(t *testing.T) {
	repo, dir := initRepo(t)
	sub := filepath.Join(dir, "foo", "bar")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("failed to create subdirectory: %v", err)
	}

	fromSub, err := Open(sub)
	if err != nil {
		t.Fatalf("Open() from subdirectory error: %v", err)
	}
	if fromSub.Root() != repo.Root() {
		t.Errorf("Root() = %q, want %q", fromSub.Root(), repo.Root())
	}
}

func TestStagedFiles(t *testing.T) {
	repo, dir := initRepo(t)

	writeFile(t, dir, "new.py", "print()\n")
	writeFile(t, dir, "sub/data.json", "{}\n")
	gitRun(t, dir, "add", ".")

	files, err := repo.StagedFiles()
	if err != nil {
		t.Fatalf("StagedFiles() error: %v", err)
	}
	if !slices.Contains(files, "new.py") || !slices.Contains(files, "sub/data.json") {
		t.Errorf("StagedFiles() = %v, want new.py and sub/data.json", files)
	}
	if slices.Contains(files, "file.txt") {
		t.Errorf("StagedFiles() should not include committed unchanged files, got %v", files)
	}
}

func TestStagedFilesExcludesDeletions(t *testing.T) {
	repo, dir := initRepo(t)

	gitRun(t, dir, "rm", "file.txt")

	files, err := repo.StagedFiles()
	if err != nil {
		t.Fatalf("StagedFiles() error: %v", err)
	}
	if slices.Contains(files, "file.txt") {
		t.Errorf("StagedFiles() should exclude staged deletions, got %v", files)
	}
}

func TestAllFiles(t *testing.T) {
	repo, dir := initRepo(t)
	writeFile(t, dir, "untracked.txt", "x\n")

	files, err := repo.AllFiles()
	if err != nil {
		t.Fatalf("AllFiles() error: %v", err)
	}
	if !slices.Contains(files, "file.txt") {
		t.Errorf("AllFiles() = %v, want file.txt", files)
	}
	if slices.Contains(files, "untracked.txt") {
		t.Errorf("AllFiles() should not include untracked files, got %v", files)
	}
}

func TestFilesFrom(t *testing.T) {
	repo, dir := initRepo(t)
	writeFile(t, dir, "other.txt", "x\n")
	gitRun(t, dir, "add", ".")

	files, err := repo.FilesFrom([]string{"file.txt", "missing.txt"})
	if err != nil {
		t.Fatalf("FilesFrom() error: %v", err)
	}
	if len(files) != 1 || files[0] != "file.txt" {
		t.Errorf("FilesFrom() = %v, want [file.txt]", files)
	}

	none, err := repo.FilesFrom(nil)
	if err != nil {
		t.Fatalf("FilesFrom(nil) error: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("FilesFrom(nil) = %v, want empty", none)
	}
}

func TestHasUnstagedChanges(t *testing.T) {
	repo, dir := initRepo(t)

	changed, err := repo.HasUnstagedChanges("file.txt")
	if err != nil {
		t.Fatalf("HasUnstagedChanges() error: %v", err)
	}
	if changed {
		t.Error("clean file reported as changed")
	}

	writeFile(t, dir, "file.txt", "modified\n")
	changed, err = repo.HasUnstagedChanges("file.txt")
	if err != nil {
		t.Fatalf("HasUnstagedChanges() error: %v", err)
	}
	if !changed {
		t.Error("modified file reported as clean")
	}
}

func TestHasUnmergedPaths(t *testing.T) {
	repo, dir := initRepo(t)

	unmerged, err := repo.HasUnmergedPaths()
	if err != nil {
		t.Fatalf("HasUnmergedPaths() error: %v", err)
	}
	if unmerged {
		t.Error("fresh repo reported unmerged paths")
	}

	// Build a real conflict.
	gitRun(t, dir, "checkout", "-b", "feature")
	writeFile(t, dir, "file.txt", "feature change\n")
	gitRun(t, dir, "add", ".")
	gitRun(t, dir, "commit", "-m", "feature")
	gitRun(t, dir, "checkout", "main")
	writeFile(t, dir, "file.txt", "main change\n")
	gitRun(t, dir, "add", ".")
	gitRun(t, dir, "commit", "-m", "main")

	merge := exec.Command("git", "merge", "feature")
	merge.Dir = dir
	_ = merge.Run() // expected to fail with conflicts

	unmerged, err = repo.HasUnmergedPaths()
	if err != nil {
		t.Fatalf("HasUnmergedPaths() error: %v", err)
	}
	if !unmerged {
		t.Error("conflicted repo should report unmerged paths")
	}
}

func TestGuardRoundTrip(t *testing.T) {
	repo, dir := initRepo(t)

	// Stage one state, then dirty the tree.
	writeFile(t, dir, "file.txt", "staged content\n")
	gitRun(t, dir, "add", ".")
	writeFile(t, dir, "file.txt", "unstaged content\n")

	guard := NewGuard(repo)
	patch := filepath.Join(t.TempDir(), "0-0.patch")
	if err := guard.Snapshot(patch); err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}

	// Hooks observe only the staged state.
	if got := readFile(t, dir, "file.txt"); got != "staged content\n" {
		t.Errorf("after snapshot file.txt = %q, want staged content", got)
	}

	// Simulate a hook mutating and reverting the tree, then restore.
	if err := guard.Restore(); err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	if got := readFile(t, dir, "file.txt"); got != "unstaged content\n" {
		t.Errorf("after restore file.txt = %q, want unstaged content", got)
	}
	if _, err := os.Stat(patch); !os.IsNotExist(err) {
		t.Error("patch file should be removed after a successful restore")
	}
}

func TestGuardNoopOnCleanTree(t *testing.T) {
	repo, _ := initRepo(t)

	guard := NewGuard(repo)
	patch := filepath.Join(t.TempDir(), "0-0.patch")
	if err := guard.Snapshot(patch); err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}
	if guard.PatchPath() != "" {
		t.Error("clean tree should not produce a patch")
	}
	if _, err := os.Stat(patch); !os.IsNotExist(err) {
		t.Error("no patch file should exist for a clean tree")
	}
	if err := guard.Restore(); err != nil {
		t.Fatalf("Restore() on clean tree error: %v", err)
	}
}

func TestGuardRestoreRunsOnce(t *testing.T) {
	repo, dir := initRepo(t)

	writeFile(t, dir, "file.txt", "staged\n")
	gitRun(t, dir, "add", ".")
	writeFile(t, dir, "file.txt", "dirty\n")

	guard := NewGuard(repo)
	if err := guard.Snapshot(filepath.Join(t.TempDir(), "1-1.patch")); err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}
	if err := guard.Restore(); err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	// Mutate after restore; a second call must not reapply the patch.
	writeFile(t, dir, "file.txt", "post-restore\n")
	if err := guard.Restore(); err != nil {
		t.Fatalf("second Restore() error: %v", err)
	}
	if got := readFile(t, dir, "file.txt"); got != "post-restore\n" {
		t.Errorf("second Restore() touched the tree: %q", got)
	}
}

func TestGuardRestoreFailurePreservesPatch(t *testing.T) {
	repo, dir := initRepo(t)

	writeFile(t, dir, "file.txt", "staged\n")
	gitRun(t, dir, "add", ".")
	writeFile(t, dir, "file.txt", "dirty\n")

	guard := NewGuard(repo)
	patch := filepath.Join(t.TempDir(), "2-2.patch")
	if err := guard.Snapshot(patch); err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}

	// Make the patch unappliable by rewriting the file it targets.
	writeFile(t, dir, "file.txt", "conflicting content that the patch cannot apply onto\n")

	err := guard.Restore()
	if err == nil {
		t.Fatal("Restore() expected failure for conflicting tree")
	}
	if _, statErr := os.Stat(patch); statErr != nil {
		t.Errorf("failed restore must preserve the patch file: %v", statErr)
	}
}
