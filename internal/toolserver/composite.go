package toolserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/autocodit-io/runner/internal/git"
	"github.com/autocodit-io/runner/internal/toolrpc"
)

// Composite methods built on the canonical repository operations. These
// back the higher-level plan steps directly so a step maps to one call.

type planStep struct {
	Name   string `json:"name"`
	Tool   string `json:"tool"`
	Method string `json:"method"`
}

type validatePlanParams struct {
	Steps []planStep `json:"steps"`
}

// ValidatePlan sanity-checks a generated plan: every step must name a
// tool and a method.
func (r *Repository) ValidatePlan(ctx context.Context, params json.RawMessage) (any, error) {
	var p validatePlanParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, toolrpc.BadParams("invalid parameters: %v", err)
	}
	if len(p.Steps) == 0 {
		return nil, toolrpc.BadParams("plan has no steps")
	}

	var problems []string
	for i, step := range p.Steps {
		if step.Tool == "" || step.Method == "" {
			problems = append(problems, fmt.Sprintf("step %d (%s) is missing a tool or method", i+1, step.Name))
		}
	}

	return map[string]any{
		"valid":    len(problems) == 0,
		"steps":    len(p.Steps),
		"problems": problems,
	}, nil
}

type fileChange struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type applyChangesParams struct {
	Changes []fileChange `json:"changes"`
	Files   []fileChange `json:"files"`
}

// ApplyChanges writes a batch of file changes to the workspace. It also
// backs write_test_files, which sends the same shape under "files".
func (r *Repository) ApplyChanges(ctx context.Context, params json.RawMessage) (any, error) {
	var p applyChangesParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, toolrpc.BadParams("invalid parameters: %v", err)
	}

	changes := p.Changes
	if len(changes) == 0 {
		changes = p.Files
	}
	if len(changes) == 0 {
		return nil, toolrpc.BadParams("no changes to apply")
	}

	var written []string
	for _, change := range changes {
		body, err := json.Marshal(writeFileParams{Path: change.Path, Content: change.Content})
		if err != nil {
			return nil, err
		}
		if _, err := r.WriteFile(ctx, body); err != nil {
			return nil, fmt.Errorf("failed to apply change to %s: %w", change.Path, err)
		}
		written = append(written, change.Path)
	}

	return map[string]any{"files": written, "count": len(written)}, nil
}

type pullRequestParams struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// CreatePullRequest commits any pending changes and stages a pull request
// for the task's work branch. The actual GitHub call happens in the
// backend using the task's installation; this prepares and reports the
// branch state it needs.
func (r *Repository) CreatePullRequest(ctx context.Context, params json.RawMessage) (any, error) {
	var p pullRequestParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, toolrpc.BadParams("invalid parameters: %v", err)
	}
	if p.Title == "" {
		p.Title = fmt.Sprintf("%s: %s", r.task.Action, r.task.Description)
	}

	dir := r.workspace.RepoDir()
	changed, err := git.ChangedFiles(ctx, dir)
	if err != nil {
		return nil, err
	}
	if len(changed) > 0 {
		if _, err := git.Commit(ctx, dir, p.Title); err != nil {
			return nil, err
		}
	}

	branch, err := git.CurrentBranch(ctx, dir)
	if err != nil {
		return nil, err
	}
	sha, err := git.HeadSHA(ctx, dir)
	if err != nil {
		return nil, err
	}

	r.log.Info("pull request prepared", "branch", branch, "sha", sha, "title", p.Title)
	return map[string]any{
		"branch":          branch,
		"head_sha":        sha,
		"title":           p.Title,
		"body":            p.Body,
		"installation_id": r.task.InstallationID,
	}, nil
}

type reviewComment struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Body string `json:"body"`
}

type postReviewParams struct {
	Comments []reviewComment `json:"comments"`
}

// PostReviewComments validates review comments against the workspace and
// returns them for the backend to publish.
func (r *Repository) PostReviewComments(ctx context.Context, params json.RawMessage) (any, error) {
	var p postReviewParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, toolrpc.BadParams("invalid parameters: %v", err)
	}
	if len(p.Comments) == 0 {
		return nil, toolrpc.BadParams("no comments to post")
	}

	for _, comment := range p.Comments {
		if comment.Path != "" {
			if _, err := r.resolve(comment.Path); err != nil {
				return nil, err
			}
		}
	}

	r.log.Info("review comments prepared", "count", len(p.Comments))
	return map[string]any{"comments": p.Comments, "count": len(p.Comments)}, nil
}
