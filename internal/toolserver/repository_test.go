package toolserver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autocodit-io/runner/internal/config"
	"github.com/autocodit-io/runner/internal/models"
	"github.com/autocodit-io/runner/internal/toolrpc"
)

func newTestRepository(t *testing.T) (*Repository, config.Workspace) {
	t.Helper()

	ws := config.NewWorkspace(t.TempDir())
	require.NoError(t, ws.Ensure())

	repo, srv, err := NewRepository(RepositoryOptions{
		Task: models.TaskRequest{
			TaskID: "11112222-3333-4444-5555-666677778888",
			Action: models.ActionApply,
		},
		Workspace:      ws,
		CommandTimeout: time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })

	return repo, ws
}

func call(t *testing.T, handler toolrpc.Handler, params any) (map[string]any, error) {
	t.Helper()
	body, err := json.Marshal(params)
	require.NoError(t, err)

	result, err := handler(context.Background(), body)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(result)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out, nil
}

func TestWriteFileRejectsEscapingPaths(t *testing.T) {
	repo, ws := newTestRepository(t)

	for _, path := range []string{
		"../../etc/passwd",
		"../outside.txt",
		"nested/../../outside.txt",
		"/etc/passwd",
		"",
	} {
		_, err := call(t, repo.WriteFile, map[string]any{"path": path, "content": "owned"})
		require.Error(t, err, "path %q must be rejected", path)
		assert.Equal(t, toolrpc.KindBadParams, toolrpc.KindOf(err))
	}

	// Nothing may have been written outside the clone.
	entries, err := os.ReadDir(ws.Root)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotEqual(t, "outside.txt", entry.Name())
	}
	_, err = os.Stat(filepath.Join(ws.Root, "outside.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestSymlinkedPathsCannotEscapeTheClone(t *testing.T) {
	repo, ws := newTestRepository(t)
	outside := t.TempDir()

	require.NoError(t, os.Symlink(outside, filepath.Join(ws.RepoDir(), "link")))

	_, err := call(t, repo.WriteFile, map[string]any{"path": "link/evil.txt", "content": "escaped"})
	require.Error(t, err)
	assert.Equal(t, toolrpc.KindBadParams, toolrpc.KindOf(err))
	_, err = os.Stat(filepath.Join(outside, "evil.txt"))
	assert.True(t, os.IsNotExist(err), "write must not land outside the clone")

	secret := filepath.Join(outside, "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("top secret"), 0o644))
	require.NoError(t, os.Symlink(secret, filepath.Join(ws.RepoDir(), "alias.txt")))

	_, err = call(t, repo.ReadFile, map[string]any{"path": "alias.txt"})
	require.Error(t, err)
	assert.Equal(t, toolrpc.KindBadParams, toolrpc.KindOf(err))

	// Links within the clone still resolve.
	require.NoError(t, os.MkdirAll(filepath.Join(ws.RepoDir(), "pkg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ws.RepoDir(), "pkg", "real.txt"), []byte("inside"), 0o644))
	require.NoError(t, os.Symlink(filepath.Join(ws.RepoDir(), "pkg"), filepath.Join(ws.RepoDir(), "pkglink")))

	out, err := call(t, repo.ReadFile, map[string]any{"path": "pkglink/real.txt"})
	require.NoError(t, err)
	assert.Equal(t, "inside", out["content"])
}

func TestReadFileRejectsEscapingPaths(t *testing.T) {
	repo, _ := newTestRepository(t)

	_, err := call(t, repo.ReadFile, map[string]any{"path": "../artifacts/summary.yaml"})
	require.Error(t, err)
	assert.Equal(t, toolrpc.KindBadParams, toolrpc.KindOf(err))
}

func TestWriteThenReadFile(t *testing.T) {
	repo, _ := newTestRepository(t)

	var gotPath string
	var gotAdded []string
	repo.onModified = func(path string, added, removed []string) {
		gotPath = path
		gotAdded = added
	}

	out, err := call(t, repo.WriteFile, map[string]any{
		"path":    "src/main.go",
		"content": "package main\n\nfunc main() {}\n",
	})
	require.NoError(t, err)
	assert.Equal(t, float64(3), out["lines_added"])
	assert.Equal(t, float64(0), out["lines_removed"])
	assert.Equal(t, "src/main.go", gotPath)
	assert.Len(t, gotAdded, 3)

	read, err := call(t, repo.ReadFile, map[string]any{"path": "src/main.go"})
	require.NoError(t, err)
	assert.Equal(t, "package main\n\nfunc main() {}\n", read["content"])
}

func TestWriteFileReportsLineDiff(t *testing.T) {
	repo, _ := newTestRepository(t)

	_, err := call(t, repo.WriteFile, map[string]any{
		"path":    "notes.txt",
		"content": "one\ntwo\nthree\n",
	})
	require.NoError(t, err)

	out, err := call(t, repo.WriteFile, map[string]any{
		"path":    "notes.txt",
		"content": "one\n2\nthree\nfour\n",
	})
	require.NoError(t, err)
	assert.Equal(t, float64(2), out["lines_added"])
	assert.Equal(t, float64(1), out["lines_removed"])
}

func TestListFilesWithPattern(t *testing.T) {
	repo, ws := newTestRepository(t)

	for _, f := range []string{"a.go", "b.txt", "pkg/c.go", "node_modules/d.go"} {
		path := filepath.Join(ws.RepoDir(), f)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}

	out, err := call(t, repo.ListFiles, map[string]any{"pattern": "**/*.go"})
	require.NoError(t, err)
	files := out["files"].([]any)
	assert.ElementsMatch(t, []any{"a.go", "pkg/c.go"}, files)
}

func TestAnalyzeRepositoryCachesInfo(t *testing.T) {
	repo, ws := newTestRepository(t)
	require.NoError(t, os.WriteFile(filepath.Join(ws.RepoDir(), "go.mod"), []byte("module demo\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(ws.RepoDir(), "main.go"), []byte("package main\n"), 0o644))

	assert.True(t, repo.Info().Unknown())

	out, err := call(t, repo.AnalyzeRepository, nil)
	require.NoError(t, err)
	assert.Contains(t, out["languages"], "go")

	assert.Equal(t, "go", repo.Info().PrimaryLanguage())
}

func TestApplyChanges(t *testing.T) {
	repo, _ := newTestRepository(t)

	out, err := call(t, repo.ApplyChanges, map[string]any{
		"changes": []map[string]any{
			{"path": "a.txt", "content": "a"},
			{"path": "dir/b.txt", "content": "b"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, float64(2), out["count"])

	_, err = call(t, repo.ApplyChanges, map[string]any{"changes": []map[string]any{}})
	require.Error(t, err)

	// Containment applies through the composite path too.
	_, err = call(t, repo.ApplyChanges, map[string]any{
		"changes": []map[string]any{{"path": "../evil.txt", "content": "x"}},
	})
	require.Error(t, err)
}

func TestValidatePlan(t *testing.T) {
	repo, _ := newTestRepository(t)

	out, err := call(t, repo.ValidatePlan, map[string]any{
		"steps": []map[string]any{
			{"name": "Analyze Repository", "tool": "repository", "method": "analyze_repository"},
			{"name": "Broken Step", "tool": "", "method": ""},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, false, out["valid"])

	_, err = call(t, repo.ValidatePlan, map[string]any{"steps": []map[string]any{}})
	require.Error(t, err)
}

func TestValidateSyntax(t *testing.T) {
	repo, ws := newTestRepository(t)
	require.NoError(t, os.WriteFile(filepath.Join(ws.RepoDir(), "ok.json"), []byte(`{"a":1}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(ws.RepoDir(), "bad.json"), []byte(`{"a":`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(ws.RepoDir(), "main.go"), []byte("package main\n"), 0o644))

	out, err := call(t, repo.ValidateSyntax, map[string]any{"path": "ok.json"})
	require.NoError(t, err)
	assert.Equal(t, true, out["valid"])

	out, err = call(t, repo.ValidateSyntax, map[string]any{"path": "bad.json"})
	require.NoError(t, err)
	assert.Equal(t, false, out["valid"])

	out, err = call(t, repo.ValidateSyntax, map[string]any{"path": "main.go"})
	require.NoError(t, err)
	assert.Equal(t, false, out["supported"])
}

func TestSearchRelevantFiles(t *testing.T) {
	repo, ws := newTestRepository(t)
	require.NoError(t, os.WriteFile(filepath.Join(ws.RepoDir(), "auth.go"),
		[]byte("package auth\n// login login login\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(ws.RepoDir(), "other.go"),
		[]byte("package other\n// login once\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(ws.RepoDir(), "unrelated.go"),
		[]byte("package x\n"), 0o644))

	out, err := call(t, repo.SearchRelevantFiles, map[string]any{"query": "login"})
	require.NoError(t, err)
	assert.Equal(t, float64(2), out["count"])

	files := out["files"].([]any)
	first := files[0].(map[string]any)
	assert.Equal(t, "auth.go", first["path"])
}

func TestExecuteCommandWritesLog(t *testing.T) {
	repo, ws := newTestRepository(t)

	out, err := call(t, repo.ExecuteCommand, map[string]any{
		"command": []string{"sh", "-c", "echo ok"},
		"name":    "smoke",
	})
	require.NoError(t, err)
	assert.Equal(t, float64(0), out["exit_code"])
	assert.Equal(t, "ok\n", out["stdout"])

	logs, err := os.ReadDir(ws.LogsDir())
	require.NoError(t, err)
	assert.NotEmpty(t, logs)
}
