// Package runner drives a task from plan to summary: it dispatches each
// plan step to a tool backend, reports progress, and applies the bounded
// recovery policy on failure.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/autocodit-io/runner/internal/detect"
	"github.com/autocodit-io/runner/internal/models"
	"github.com/autocodit-io/runner/internal/progress"
	"github.com/autocodit-io/runner/internal/testrun"
	"github.com/autocodit-io/runner/internal/toolrpc"
)

// Executor dispatches one plan step to its tool backend and classifies
// the outcome.
type Executor struct {
	task    models.TaskRequest
	clients map[string]toolrpc.Client
	sink    progress.Sink
	log     *slog.Logger
}

// NewExecutor creates an executor over the connected tool backends,
// keyed by tool name.
func NewExecutor(task models.TaskRequest, clients map[string]toolrpc.Client, sink progress.Sink, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		task:    task,
		clients: clients,
		sink:    sink,
		log:     logger.With("component", "executor"),
	}
}

// Execute runs a single step. The returned result always carries the
// measured duration; failures are classified, never returned as Go
// errors.
func (e *Executor) Execute(ctx context.Context, step models.Step, info models.ProjectInfo) *models.StepResult {
	started := time.Now()

	client, ok := e.clients[step.Tool]
	if !ok {
		return &models.StepResult{
			Reason:   models.FailureToolUnavailable,
			Error:    fmt.Sprintf("tool %q is not connected", step.Tool),
			Duration: time.Since(started),
		}
	}

	// Validation steps that run the test suite follow the test procedure
	// instead of a single tool call.
	if step.Category == models.CategoryValidation && isTestMethod(step.Method) {
		return e.runTests(ctx, client, info, started)
	}

	raw, err := client.Call(ctx, step.Method, step.Params)
	if err != nil {
		return &models.StepResult{
			Reason:   classify(err),
			Error:    err.Error(),
			Duration: time.Since(started),
		}
	}

	return &models.StepResult{
		Success:  true,
		Result:   raw,
		Duration: time.Since(started),
	}
}

func isTestMethod(method string) bool {
	return method == "run_tests" || method == "run_test_suite"
}

// runTests resolves the project's test commands and executes them through
// the repository backend. A project with no recognizable test command
// passes vacuously.
func (e *Executor) runTests(ctx context.Context, client toolrpc.Client, info models.ProjectInfo, started time.Time) *models.StepResult {
	commands := detect.TestCommands(&info)
	if len(commands) == 0 {
		e.log.Warn("no test command detected, skipping validation",
			"language", info.PrimaryLanguage())
		e.sink.Emit(progress.SessionEvent(e.task, progress.PhaseEvaluate,
			"no test command detected, validation skipped"))
		result, _ := json.Marshal(map[string]any{"skipped": true, "reason": "no test command detected"})
		return &models.StepResult{
			Success:  true,
			Result:   result,
			Duration: time.Since(started),
		}
	}

	var reports []testrun.Result
	passed := 0
	for _, command := range commands {
		raw, err := client.Call(ctx, "execute_command", map[string]any{
			"command": command.Argv,
			"name":    command.Display,
		})
		if err != nil {
			return &models.StepResult{
				Reason:   classify(err),
				Error:    err.Error(),
				Duration: time.Since(started),
			}
		}

		var report testrun.Result
		if err := json.Unmarshal(raw, &report); err != nil {
			return &models.StepResult{
				Reason:   models.FailureToolCallFailed,
				Error:    fmt.Sprintf("malformed test result: %v", err),
				Duration: time.Since(started),
			}
		}
		reports = append(reports, report)

		if report.TimedOut {
			e.sink.Emit(progress.TestResult(e.task, passed, 1))
			e.sink.Emit(progress.BuildStatus(e.task, progress.BuildFailed))
			return &models.StepResult{
				Reason:   models.FailureCommandTimeout,
				Error:    fmt.Sprintf("%s timed out after %s", command.Display, report.Duration),
				Duration: time.Since(started),
			}
		}
		if report.ExitCode != 0 {
			e.sink.Emit(progress.TestResult(e.task, passed, 1))
			e.sink.Emit(progress.BuildStatus(e.task, progress.BuildFailed))
			return &models.StepResult{
				Reason:   models.FailureValidationFailed,
				Error:    fmt.Sprintf("%s exited with code %d", command.Display, report.ExitCode),
				Duration: time.Since(started),
			}
		}
		passed++
	}

	e.sink.Emit(progress.TestResult(e.task, passed, 0))
	e.sink.Emit(progress.BuildStatus(e.task, progress.BuildSuccess))
	result, _ := json.Marshal(map[string]any{"runs": reports})
	return &models.StepResult{
		Success:  true,
		Result:   result,
		Duration: time.Since(started),
	}
}

// classify maps a tool-call error to a step failure reason.
func classify(err error) models.FailureReason {
	switch toolrpc.KindOf(err) {
	case toolrpc.KindUnavailable:
		return models.FailureToolUnavailable
	case toolrpc.KindNotFound:
		return models.FailureToolNotFound
	default:
		return models.FailureToolCallFailed
	}
}
