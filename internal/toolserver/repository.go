// Package toolserver implements the tool backends the runner dispatches
// steps to: the repository server operating on the workspace clone, and a
// browser server proxying to the Playwright sidecar.
package toolserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sergi/go-diff/diffmatchpatch"
	"gopkg.in/yaml.v3"

	"github.com/autocodit-io/runner/internal/config"
	"github.com/autocodit-io/runner/internal/detect"
	"github.com/autocodit-io/runner/internal/git"
	"github.com/autocodit-io/runner/internal/models"
	"github.com/autocodit-io/runner/internal/testrun"
	"github.com/autocodit-io/runner/internal/toolrpc"
)

const maxSearchResults = 20

// ModifiedFunc is notified after a method mutates a workspace file, with
// the relative path and the added and removed lines.
type ModifiedFunc func(path string, added, removed []string)

// Repository serves workspace operations: file access, command execution,
// git operations, and project analysis. All paths are validated against
// the workspace root before any filesystem access.
type Repository struct {
	task      models.TaskRequest
	workspace config.Workspace
	runner    *testrun.Runner
	log       *slog.Logger

	onModified ModifiedFunc

	mu   sync.Mutex
	info *models.ProjectInfo
}

// RepositoryOptions configures a repository server.
type RepositoryOptions struct {
	Task           models.TaskRequest
	Workspace      config.Workspace
	CommandTimeout time.Duration
	Logger         *slog.Logger
	OnModified     ModifiedFunc
}

// NewRepository creates the repository backend on a dynamic port and
// registers its methods on a tool server.
func NewRepository(opts RepositoryOptions) (*Repository, *toolrpc.Server, error) {
	return NewRepositoryOnPort(opts, 0)
}

// NewRepositoryOnPort is NewRepository with an explicit listen port, for
// the standalone tool server binary.
func NewRepositoryOnPort(opts RepositoryOptions, port int) (*Repository, *toolrpc.Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Repository{
		task:       opts.Task,
		workspace:  opts.Workspace,
		runner:     testrun.NewRunner(opts.Workspace.RepoDir(), opts.CommandTimeout, logger),
		log:        logger.With("component", "repository"),
		onModified: opts.OnModified,
	}

	srv, err := toolrpc.NewServer("repository", port, logger)
	if err != nil {
		return nil, nil, err
	}
	r.register(srv)
	return r, srv, nil
}

func (r *Repository) register(srv *toolrpc.Server) {
	srv.Register("analyze_repository", r.AnalyzeRepository)
	srv.Register("list_files", r.ListFiles)
	srv.Register("read_file", r.ReadFile)
	srv.Register("write_file", r.WriteFile)
	srv.Register("execute_command", r.ExecuteCommand)
	srv.Register("create_branch", r.CreateBranch)
	srv.Register("create_commit", r.CreateCommit)
	srv.Register("search_relevant_files", r.SearchRelevantFiles)
	srv.Register("validate_syntax", r.ValidateSyntax)

	srv.Register("validate_plan", r.ValidatePlan)
	srv.Register("apply_changes", r.ApplyChanges)
	srv.Register("write_test_files", r.ApplyChanges)
	srv.Register("create_pull_request", r.CreatePullRequest)
	srv.Register("post_review_comments", r.PostReviewComments)
}

// resolve validates a workspace-relative path and returns its absolute
// location. Any path whose resolved target lies outside the repository
// root is rejected before a single mutating syscall touches it. The check
/// follows symlinks: a cloned repository controls its own tree, so a link
// inside the clone pointing outside the workspace must not grant access.
func (r *Repository) resolve(rel string) (string, error) {
	if rel == "" {
		return "", toolrpc.BadParams("path is required")
	}
	if filepath.IsAbs(rel) {
		return "", toolrpc.BadParams("path must be relative to the repository root: %s", rel)
	}

	root := r.workspace.RepoDir()
	abs := filepath.Join(root, filepath.Clean(rel))
	if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return "", toolrpc.BadParams("path escapes the repository root: %s", rel)
	}

	// The root itself may sit under symlinked directories (temp dirs on
	// some systems), so compare resolved against resolved.
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve repository root: %w", err)
	}
	target, err := resolveExisting(abs)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", rel, err)
	}
	if target != realRoot && !strings.HasPrefix(target, realRoot+string(filepath.Separator)) {
		return "", toolrpc.BadParams("path escapes the repository root: %s", rel)
	}
	return target, nil
}

// resolveExisting resolves symlinks on the deepest existing ancestor of
// path and rejoins the components that do not exist yet, so targets of
// pending writes are checked through any links on the way.
func resolveExisting(path string) (string, error) {
	var pending []string
	for p := path; ; {
		real, err := filepath.EvalSymlinks(p)
		if err == nil {
			for i := len(pending) - 1; i >= 0; i-- {
				real = filepath.Join(real, pending[i])
			}
			return real, nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(p)
		if parent == p {
			return "", err
		}
		pending = append(pending, filepath.Base(p))
		p = parent
	}
}

// Info returns the cached project analysis, or unknown if analysis has
// not run yet.
func (r *Repository) Info() models.ProjectInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.info == nil {
		return models.ProjectInfo{}
	}
	return *r.info
}

// AnalyzeRepository detects languages, frameworks, and test tooling in the
/// clone. Detection failures are never fatal: the analysis degrades to an
// unknown project and the task proceeds.
func (r *Repository) AnalyzeRepository(ctx context.Context, params json.RawMessage) (any, error) {
	info := detect.NewDetector().Detect(r.workspace.RepoDir())
	if info.Unknown() {
		r.log.Warn("no language detected, continuing with unknown project")
	}

	r.mu.Lock()
	r.info = info
	r.mu.Unlock()

	r.log.Info("repository analyzed",
		"language", info.PrimaryLanguage(),
		"files", info.FileCount,
		"has_tests", info.HasTests)
	return info, nil
}

type listFilesParams struct {
	Path    string `json:"path"`
	Pattern string `json:"pattern"`
}

// ListFiles lists files under a directory, optionally filtered by a glob
// pattern relative to the repository root.
func (r *Repository) ListFiles(ctx context.Context, params json.RawMessage) (any, error) {
	var p listFilesParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, toolrpc.BadParams("invalid parameters: %v", err)
	}
	if p.Path == "" {
		p.Path = "."
	}

	dir, err := r.resolve(p.Path)
	if err != nil {
		return nil, err
	}
	if p.Pattern != "" && !doublestar.ValidatePattern(p.Pattern) {
		return nil, toolrpc.BadParams("invalid glob pattern: %s", p.Pattern)
	}

	// resolve returns symlink-resolved paths, so relativize against the
	// resolved root.
	root, err := filepath.EvalSymlinks(r.workspace.RepoDir())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve repository root: %w", err)
	}
	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if detect.ExcludedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		if p.Pattern != "" {
			if ok, _ := doublestar.Match(p.Pattern, rel); !ok {
				return nil
			}
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	sort.Strings(files)
	return map[string]any{"files": files, "count": len(files)}, nil
}

type pathParams struct {
	Path string `json:"path"`
}

// ReadFile returns a file's content.
func (r *Repository) ReadFile(ctx context.Context, params json.RawMessage) (any, error) {
	var p pathParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, toolrpc.BadParams("invalid parameters: %v", err)
	}

	abs, err := r.resolve(p.Path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p.Path, err)
	}

	return map[string]any{
		"path":    p.Path,
		"content": string(data),
		"size":    len(data),
	}, nil
}

type writeFileParams struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// WriteFile writes content to a workspace file, creating parent
// directories as needed, and reports the line-level diff against the
// previous content.
func (r *Repository) WriteFile(ctx context.Context, params json.RawMessage) (any, error) {
	var p writeFileParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, toolrpc.BadParams("invalid parameters: %v", err)
	}

	abs, err := r.resolve(p.Path)
	if err != nil {
		return nil, err
	}

	old := ""
	if data, err := os.ReadFile(abs); err == nil {
		old = string(data)
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", p.Path, err)
	}
	if err := os.WriteFile(abs, []byte(p.Content), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", p.Path, err)
	}

	added, removed := lineDiff(old, p.Content)
	if r.onModified != nil {
		r.onModified(p.Path, added, removed)
	}

	r.log.Info("file written", "path", p.Path, "added", len(added), "removed", len(removed))
	return map[string]any{
		"path":          p.Path,
		"bytes_written": len(p.Content),
		"lines_added":   len(added),
		"lines_removed": len(removed),
	}, nil
}

// lineDiff computes the added and removed lines between two revisions.
func lineDiff(old, new string) (added, removed []string) {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(old, new)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added = append(added, splitLines(d.Text)...)
		case diffmatchpatch.DiffDelete:
			removed = append(removed, splitLines(d.Text)...)
		}
	}
	return added, removed
}

func splitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(strings.TrimSuffix(text, "\n"), "\n") {
		out = append(out, line)
	}
	return out
}

type executeCommandParams struct {
	Command []string `json:"command"`
	Name    string   `json:"name"`
}

// ExecuteCommand runs a command in the workspace under the validation
// timeout and captures its output. The full output is also written to the
// task's command log.
func (r *Repository) ExecuteCommand(ctx context.Context, params json.RawMessage) (any, error) {
	var p executeCommandParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, toolrpc.BadParams("invalid parameters: %v", err)
	}
	if len(p.Command) == 0 {
		return nil, toolrpc.BadParams("command is required")
	}
	if p.Name == "" {
		p.Name = p.Command[0]
	}

	started := time.Now()
	result, err := r.runner.Run(ctx, p.Command)
	if err != nil {
		return nil, fmt.Errorf("failed to execute command: %w", err)
	}

	if _, logErr := config.WriteCommandLog(
		r.workspace.LogsDir(), r.task.TaskID, p.Name,
		strings.Join(p.Command, " "), result.ExitCode, started,
		result.Stdout, result.Stderr,
	); logErr != nil {
		r.log.Warn("failed to write command log", "error", logErr)
	}

	return result, nil
}

type branchParams struct {
	Name string `json:"name"`
}

// CreateBranch creates and checks out a work branch. Without an explicit
// name the task's canonical branch name is used.
func (r *Repository) CreateBranch(ctx context.Context, params json.RawMessage) (any, error) {
	var p branchParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, toolrpc.BadParams("invalid parameters: %v", err)
	}
	if p.Name == "" {
		p.Name = r.task.BranchName()
	}

	if err := git.CreateBranch(ctx, r.workspace.RepoDir(), p.Name); err != nil {
		return nil, err
	}

	r.log.Info("branch created", "branch", p.Name)
	return map[string]any{"branch": p.Name}, nil
}

type commitParams struct {
	Message string `json:"message"`
}

// CreateCommit stages and commits all workspace changes.
func (r *Repository) CreateCommit(ctx context.Context, params json.RawMessage) (any, error) {
	var p commitParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, toolrpc.BadParams("invalid parameters: %v", err)
	}
	if p.Message == "" {
		p.Message = fmt.Sprintf("%s: %s", r.task.Action, r.task.Description)
	}

	sha, err := git.Commit(ctx, r.workspace.RepoDir(), p.Message)
	if err != nil {
		return nil, err
	}

	r.log.Info("commit created", "sha", sha)
	return map[string]any{"sha": sha, "message": p.Message}, nil
}

type searchParams struct {
	Query      string `json:"query"`
	Pattern    string `json:"pattern"`
	MaxResults int    `json:"max_results"`
}

type searchHit struct {
	Path    string `json:"path"`
	Matches int    `json:"matches"`
}

// SearchRelevantFiles ranks workspace files by how often the query terms
// appear in them.
func (r *Repository) SearchRelevantFiles(ctx context.Context, params json.RawMessage) (any, error) {
	var p searchParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, toolrpc.BadParams("invalid parameters: %v", err)
	}
	if p.Query == "" {
		return nil, toolrpc.BadParams("query is required")
	}
	if p.MaxResults <= 0 || p.MaxResults > maxSearchResults {
		p.MaxResults = maxSearchResults
	}

	terms := strings.Fields(strings.ToLower(p.Query))
	root := r.workspace.RepoDir()

	var hits []searchHit
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if detect.ExcludedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		if p.Pattern != "" {
			if ok, _ := doublestar.Match(p.Pattern, rel); !ok {
				return nil
			}
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		content := strings.ToLower(string(data))

		matches := 0
		for _, term := range terms {
			matches += strings.Count(content, term)
		}
		if matches > 0 {
			hits = append(hits, searchHit{Path: rel, Matches: matches})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Matches != hits[j].Matches {
			return hits[i].Matches > hits[j].Matches
		}
		return hits[i].Path < hits[j].Path
	})
	if len(hits) > p.MaxResults {
		hits = hits[:p.MaxResults]
	}

	return map[string]any{"files": hits, "count": len(hits)}, nil
}

// ValidateSyntax checks a file for well-formedness where a cheap check
// exists (JSON and YAML). Other formats report supported=false rather
// than guessing.
func (r *Repository) ValidateSyntax(ctx context.Context, params json.RawMessage) (any, error) {
	var p pathParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, toolrpc.BadParams("invalid parameters: %v", err)
	}

	abs, err := r.resolve(p.Path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p.Path, err)
	}

	result := map[string]any{"path": p.Path, "supported": true, "valid": true}
	switch strings.ToLower(filepath.Ext(p.Path)) {
	case ".json":
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			result["valid"] = false
			result["error"] = err.Error()
		}
	case ".yaml", ".yml":
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			result["valid"] = false
			result["error"] = err.Error()
		}
	default:
		result["supported"] = false
	}
	return result, nil
}
