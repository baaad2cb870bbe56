package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/autocodit-io/runner/internal/models"
	"github.com/autocodit-io/runner/internal/plan"
	"github.com/autocodit-io/runner/internal/progress"
	"github.com/autocodit-io/runner/internal/telemetry"
)

// Options configures a task runner.
type Options struct {
	Task      models.TaskRequest
	Executor  *Executor
	Sink      progress.Sink
	Telemetry *telemetry.Client
	Recovery  RecoveryPolicy
	Logger    *slog.Logger
}

// Runner executes one task attempt from plan generation to summary. A
// runner is single-use: Run may be called exactly once.
type Runner struct {
	task      models.TaskRequest
	generator plan.Generator
	executor  *Executor
	sink      progress.Sink
	telemetry *telemetry.Client
	recovery  RecoveryPolicy
	log       *slog.Logger

	mu        sync.Mutex
	status    models.TaskStatus
	artifacts []models.Artifact
}

// New creates a task runner in the queued state.
func New(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recovery := opts.Recovery
	if recovery.Cooldown <= 0 {
		recovery = DefaultRecoveryPolicy
	}
	return &Runner{
		task:      opts.Task,
		executor:  opts.Executor,
		sink:      opts.Sink,
		telemetry: opts.Telemetry,
		recovery:  recovery,
		log:       logger.With("component", "runner", "task_id", opts.Task.TaskID),
		status:    models.TaskStatusQueued,
	}
}

// Status returns the current lifecycle state.
func (r *Runner) Status() models.TaskStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Artifacts returns the artifacts accumulated so far, in insertion order.
func (r *Runner) Artifacts() []models.Artifact {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Artifact, len(r.artifacts))
	copy(out, r.artifacts)
	return out
}

func (r *Runner) setStatus(s models.TaskStatus) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

func (r *Runner) addArtifacts(artifacts []models.Artifact) {
	r.mu.Lock()
	r.artifacts = append(r.artifacts, artifacts...)
	r.mu.Unlock()
}

// Run executes the task to completion and returns its summary. Plan
// generation happens up front; the leading analysis step feeds project
// detection into every later step. Cancellation is honored between steps,
// never mid-step.
func (r *Runner) Run(ctx context.Context) models.Summary {
	started := time.Now()
	r.setStatus(models.TaskStatusRunning)

	info := models.ProjectInfo{}

	r.sink.Emit(progress.SessionEvent(r.task, progress.PhasePlan, "generating execution plan"))
	executionPlan := r.generator.Generate(r.task.Action, &info)
	total := executionPlan.Len()

	r.log.Info("task started",
		"action", r.task.Action,
		"repository", r.task.RepositoryURL,
		"steps", total)
	if r.telemetry != nil {
		r.telemetry.TaskStarted(r.task, total)
	}

	summary := models.Summary{
		TaskID:     r.task.TaskID,
		SessionID:  r.task.SessionID,
		StepsTotal: total,
	}

	completed := 0
	for i, step := range executionPlan.Steps {
		if err := ctx.Err(); err != nil {
			summary.FailedStep = step.Name
			summary.Error = fmt.Sprintf("task canceled before step %q", step.Name)
			return r.finish(summary, info, completed, started)
		}

		r.emitPhase(step, i, total)
		r.sink.Emit(progress.ToolInvoked(r.task, step.Method, step.Params))

		result := r.executor.Execute(ctx, step, info)
		r.sink.Emit(progress.ToolResult(r.task, step.Method, result.Success, result.Result, result.Error))

		if !result.Success && r.recovery.Eligible(r.task.Action, step, result, false) {
			r.log.Warn("validation failed, retrying once",
				"step", step.Name, "reason", result.Reason, "cooldown", r.recovery.Cooldown)
			r.sink.Emit(progress.SessionEvent(r.task, progress.PhaseEvaluate,
				fmt.Sprintf("retrying %s after failure", step.Name)))

			select {
			case <-time.After(r.recovery.Cooldown):
			case <-ctx.Done():
			}

			result = r.executor.Execute(ctx, step, info)
			r.sink.Emit(progress.ToolResult(r.task, step.Method, result.Success, result.Result, result.Error))
		}

		if !result.Success {
			r.log.Error("step failed",
				"step", step.Name, "reason", result.Reason, "error", result.Error)
			summary.FailedStep = step.Name
			summary.Error = fmt.Sprintf("step %q failed: %s", step.Name, result.Error)
			return r.finish(summary, info, completed, started)
		}

		if step.Category == models.CategoryAnalysis && step.Method == "analyze_repository" {
			if err := json.Unmarshal(result.Result, &info); err != nil {
				r.log.Warn("unreadable analysis result, continuing with unknown project", "error", err)
			}
		}

		r.addArtifacts(artifactsFor(step, result.Result))

		completed++
		r.sink.Emit(progress.TaskProgress(r.task, completed, total))
		r.log.Info("step completed", "step", step.Name, "duration", result.Duration,
			"progress", fmt.Sprintf("%d/%d", completed, total))
	}

	summary.Success = true
	return r.finish(summary, info, completed, started)
}

// emitPhase reports phase transitions around notable steps.
func (r *Runner) emitPhase(step models.Step, index, total int) {
	switch {
	case step.Category == models.CategoryAnalysis && index == 0:
		r.sink.Emit(progress.SessionEvent(r.task, progress.PhaseAnalyze, "analyzing repository"))
	case index == 1:
		r.sink.Emit(progress.SessionEvent(r.task, progress.PhaseExecute, "executing plan"))
	case step.Category == models.CategoryValidation:
		r.sink.Emit(progress.SessionEvent(r.task, progress.PhaseEvaluate, "validating changes"))
	case step.Category == models.CategoryGitOperation && index == total-1:
		r.sink.Emit(progress.SessionEvent(r.task, progress.PhaseFinalize, "finalizing results"))
	}
}

// finish seals the summary, emits the terminal event, and flips the
// runner to its terminal state. Called exactly once per run.
func (r *Runner) finish(summary models.Summary, info models.ProjectInfo, completed int, started time.Time) models.Summary {
	summary.StepsCompleted = completed
	summary.Project = info
	summary.ArtifactCount = len(r.Artifacts())
	summary.Elapsed = time.Since(started)

	if summary.Success {
		r.setStatus(models.TaskStatusCompleted)
		r.log.Info("task completed", "steps", completed, "elapsed", summary.Elapsed)
	} else {
		r.setStatus(models.TaskStatusFailed)
		r.log.Error("task failed",
			"failed_step", summary.FailedStep, "error", summary.Error, "elapsed", summary.Elapsed)
	}

	r.sink.Emit(progress.TaskCompleted(r.task, summary, r.Artifacts()))
	if r.telemetry != nil {
		r.telemetry.TaskCompleted(r.task, summary)
	}
	return summary
}

// artifactsFor extracts durable outputs from a successful step result.
func artifactsFor(step models.Step, raw json.RawMessage) []models.Artifact {
	if len(raw) == 0 {
		return nil
	}

	switch step.Method {
	case "create_branch":
		var payload struct {
			Branch string `json:"branch"`
		}
		if json.Unmarshal(raw, &payload) == nil && payload.Branch != "" {
			return []models.Artifact{models.NewArtifact(models.ArtifactBranch, "branch", payload.Branch, step.Name)}
		}
	case "create_commit":
		var payload struct {
			SHA string `json:"sha"`
		}
		if json.Unmarshal(raw, &payload) == nil && payload.SHA != "" {
			return []models.Artifact{models.NewArtifact(models.ArtifactCommit, "commit", payload.SHA, step.Name)}
		}
	case "create_pull_request":
		var payload struct {
			Branch string `json:"branch"`
			Title  string `json:"title"`
		}
		if json.Unmarshal(raw, &payload) == nil && payload.Branch != "" {
			return []models.Artifact{models.NewArtifact(models.ArtifactPullReq, payload.Title, payload.Branch, step.Name)}
		}
	case "apply_changes", "write_test_files":
		var payload struct {
			Files []string `json:"files"`
		}
		if json.Unmarshal(raw, &payload) == nil && len(payload.Files) > 0 {
			return []models.Artifact{models.NewArtifact(models.ArtifactDiff, "changed_files",
				fmt.Sprintf("%d files", len(payload.Files)), step.Name)}
		}
	case "run_tests", "run_test_suite":
		return []models.Artifact{models.NewArtifact(models.ArtifactTestReport, "test_run", "passed", step.Name)}
	case "screenshot":
		var payload struct {
			Path string `json:"path"`
		}
		if json.Unmarshal(raw, &payload) == nil && payload.Path != "" {
			return []models.Artifact{models.NewArtifact(models.ArtifactScreenshot, "screenshot", payload.Path, step.Name)}
		}
	}
	return nil
}
