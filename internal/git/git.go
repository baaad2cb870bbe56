// Package git wraps the git operations the repository tool server needs,
// shelling out to the git binary in the workspace clone.
package git

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// run executes git with the given arguments in dir and returns combined
// output. Errors include git's own output, which is the useful part.
func run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	text := strings.TrimSpace(string(out))
	if err != nil {
		if text != "" {
			return text, fmt.Errorf("git %s: %s", args[0], text)
		}
		return text, fmt.Errorf("git %s: %w", args[0], err)
	}
	return text, nil
}

// CurrentBranch returns the checked-out branch name.
func CurrentBranch(ctx context.Context, dir string) (string, error) {
	return run(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
}

// HeadSHA returns the current HEAD commit hash.
func HeadSHA(ctx context.Context, dir string) (string, error) {
	return run(ctx, dir, "rev-parse", "HEAD")
}

// CreateBranch creates and checks out a branch. If the branch already
// exists from a previous attempt it is reset to HEAD and reused.
func CreateBranch(ctx context.Context, dir, name string) error {
	if _, err := run(ctx, dir, "checkout", "-b", name); err == nil {
		return nil
	}
	// Branch may already exist from a prior attempt; recreate it at HEAD.
	if _, err := run(ctx, dir, "checkout", "-B", name); err != nil {
		return fmt.Errorf("failed to create branch %s: %w", name, err)
	}
	return nil
}

// Commit stages all changes and commits them, returning the new commit
// SHA. An empty working tree is an error: mutating steps must have changed
// something before committing.
func Commit(ctx context.Context, dir, message string) (string, error) {
	if _, err := run(ctx, dir, "add", "-A"); err != nil {
		return "", err
	}

	status, err := run(ctx, dir, "status", "--porcelain")
	if err != nil {
		return "", err
	}
	if status == "" {
		return "", fmt.Errorf("nothing to commit")
	}

	if _, err := run(ctx, dir, "commit", "-m", message); err != nil {
		return "", err
	}

	return HeadSHA(ctx, dir)
}

// ChangedFiles returns paths with uncommitted changes (staged or not).
func ChangedFiles(ctx context.Context, dir string) ([]string, error) {
	out, err := run(ctx, dir, "status", "--porcelain")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}

	var files []string
	for _, line := range strings.Split(out, "\n") {
		// Porcelain format: two status columns, a space, then the path.
		if len(line) > 3 {
			files = append(files, strings.TrimSpace(line[3:]))
		}
	}
	return files, nil
}

// Diff returns the unified diff of uncommitted changes.
func Diff(ctx context.Context, dir string) (string, error) {
	return run(ctx, dir, "diff", "HEAD")
}
