package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func initRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	ctx := context.Background()
	for _, args := range [][]string{
		{"init", "-b", "main"},
		{"config", "user.email", "runner@test.local"},
		{"config", "user.name", "runner"},
	} {
		if _, err := run(ctx, dir, args...); err != nil {
			t.Fatalf("git %v: %v", args, err)
		}
	}

	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# demo\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Commit(ctx, dir, "initial"); err != nil {
		t.Fatalf("initial commit: %v", err)
	}
	return dir
}

func TestCreateBranch(t *testing.T) {
	dir := initRepo(t)
	ctx := context.Background()

	if err := CreateBranch(ctx, dir, "autocodit/apply-12345678"); err != nil {
		t.Fatalf("CreateBranch() error = %v", err)
	}

	branch, err := CurrentBranch(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	if branch != "autocodit/apply-12345678" {
		t.Errorf("branch = %q", branch)
	}

	// Creating the same branch again resets it instead of failing.
	if err := CreateBranch(ctx, dir, "autocodit/apply-12345678"); err != nil {
		t.Errorf("re-creating existing branch: %v", err)
	}
}

func TestCommitAndChangedFiles(t *testing.T) {
	dir := initRepo(t)
	ctx := context.Background()

	if err := os.WriteFile(filepath.Join(dir, "new.txt"), []byte("x\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	changed, err := ChangedFiles(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(changed) != 1 || changed[0] != "new.txt" {
		t.Errorf("ChangedFiles() = %v, want [new.txt]", changed)
	}

	sha, err := Commit(ctx, dir, "add new file")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if len(sha) != 40 {
		t.Errorf("sha = %q, want full hash", sha)
	}

	// A clean tree has nothing to commit.
	if _, err := Commit(ctx, dir, "empty"); err == nil {
		t.Error("expected error committing a clean tree")
	}

	changed, err = ChangedFiles(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(changed) != 0 {
		t.Errorf("ChangedFiles() after commit = %v, want none", changed)
	}
}
