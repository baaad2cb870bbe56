// Package progress emits task lifecycle events to the callback API. Events
// are ordered, best-effort, and never block or fail the task.
package progress

import (
	"encoding/json"
	"time"

	"github.com/autocodit-io/runner/internal/models"
)

// Event types on the wire.
const (
	TypeSessionEvent  = "session:event"
	TypeFileModified  = "session:filemodified"
	TypeTaskProgress  = "task:progress"
	TypeTaskCompleted = "task:completed"
	TypeToolInvoked   = "tool:invoked"
	TypeToolResult    = "tool:result"
	TypeTestResult    = "test:result"
	TypeBuildStatus   = "build:status"
)

// Phases reported via session events.
const (
	PhaseAnalyze  = "analyze"
	PhasePlan     = "plan"
	PhaseExecute  = "execute"
	PhaseEvaluate = "evaluate"
	PhaseFinalize = "finalize"
)

// Event is one lifecycle notification. Data carries the type-specific
// payload.
type Event struct {
	Type      string         `json:"type"`
	SessionID string         `json:"session_id"`
	TaskID    string         `json:"task_id"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

func newEvent(task models.TaskRequest, kind string, data map[string]any) Event {
	return Event{
		Type:      kind,
		SessionID: task.SessionID,
		TaskID:    task.TaskID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// SessionEvent reports a phase transition.
func SessionEvent(task models.TaskRequest, phase, message string) Event {
	return newEvent(task, TypeSessionEvent, map[string]any{
		"phase":   phase,
		"message": message,
	})
}

// FileModified reports a workspace file change with its line diff.
func FileModified(task models.TaskRequest, path string, added, removed []string) Event {
	return newEvent(task, TypeFileModified, map[string]any{
		"path":    path,
		"added":   added,
		"removed": removed,
	})
}

// TaskProgress reports completion of iteration (1-based) of total.
func TaskProgress(task models.TaskRequest, iteration, total int) Event {
	percent := 0.0
	if total > 0 {
		percent = float64(iteration) / float64(total) * 100
	}
	return newEvent(task, TypeTaskProgress, map[string]any{
		"iteration": iteration,
		"total":     total,
		"percent":   percent,
	})
}

// TaskCompleted reports the terminal outcome, with the branch and pull
// request artifacts attached when the run produced them.
func TaskCompleted(task models.TaskRequest, summary models.Summary, artifacts []models.Artifact) Event {
	status := "failed"
	if summary.Success {
		status = "completed"
	}

	detail := map[string]any{
		"steps_completed": summary.StepsCompleted,
		"steps_total":     summary.StepsTotal,
		"elapsed_ms":      summary.Elapsed.Milliseconds(),
	}
	if summary.Error != "" {
		detail["error"] = summary.Error
	}

	data := map[string]any{
		"status":  status,
		"summary": detail,
	}
	for _, a := range artifacts {
		switch a.Kind {
		case models.ArtifactBranch:
			data["branch"] = a.Value
		case models.ArtifactPullReq:
			if _, ok := data["branch"]; !ok {
				data["branch"] = a.Value
			}
			data["pr_title"] = a.Name
		}
	}
	return newEvent(task, TypeTaskCompleted, data)
}

// ToolInvoked reports a dispatched tool call with its arguments.
func ToolInvoked(task models.TaskRequest, name string, args map[string]any) Event {
	if args == nil {
		args = map[string]any{}
	}
	return newEvent(task, TypeToolInvoked, map[string]any{
		"name": name,
		"args": args,
	})
}

// ToolResult reports the outcome of a tool call: the output payload on
// success, the error message on failure.
func ToolResult(task models.TaskRequest, name string, ok bool, output json.RawMessage, errMsg string) Event {
	data := map[string]any{
		"name": name,
		"ok":   ok,
	}
	if ok {
		data["output"] = output
	} else {
		data["error"] = errMsg
	}
	return newEvent(task, TypeToolResult, data)
}

// TestResult reports validation command counts.
func TestResult(task models.TaskRequest, passed, failed int) Event {
	return newEvent(task, TypeTestResult, map[string]any{
		"passed": passed,
		"failed": failed,
	})
}

// Build statuses.
const (
	BuildSuccess = "success"
	BuildFailed  = "failed"
)

// BuildStatus reports a build phase outcome, one of BuildSuccess or
// BuildFailed.
func BuildStatus(task models.TaskRequest, status string) Event {
	return newEvent(task, TypeBuildStatus, map[string]any{
		"status": status,
	})
}
