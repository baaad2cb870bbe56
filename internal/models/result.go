package models

import (
	"encoding/json"
	"time"
)

// FailureReason classifies why a step failed. The runner decides
// fatal-vs-recoverable from this value, never from message text.
type FailureReason string

// Failure reasons.
const (
	// FailureToolUnavailable: the step's tool was never connected.
	FailureToolUnavailable FailureReason = "tool_unavailable"
	// FailureToolNotFound: the tool backend does not expose the method.
	FailureToolNotFound FailureReason = "tool_not_found"
	// FailureToolCallFailed: the backend returned an error.
	FailureToolCallFailed FailureReason = "tool_call_failed"
	// FailureCommandTimeout: a validation command exceeded its time budget.
	FailureCommandTimeout FailureReason = "command_timeout"
	// FailureValidationFailed: a validation command exited non-zero.
	FailureValidationFailed FailureReason = "validation_failed"
	// FailureStepFatal: any step failure outside the recovery gate.
	FailureStepFatal FailureReason = "step_fatal"
)

// StepResult is the outcome of executing one step. Ephemeral: consumed by
// the task runner and optionally folded into artifacts.
type StepResult struct {
	Success  bool            `json:"success"`
	Result   json.RawMessage `json:"result,omitempty"`
	Reason   FailureReason   `json:"reason,omitempty"`
	Error    string          `json:"error,omitempty"`
	Duration time.Duration   `json:"duration"`
}

// ArtifactKind classifies a durable step output.
type ArtifactKind string

// Artifact kinds.
const (
	ArtifactDiff       ArtifactKind = "diff"
	ArtifactBranch     ArtifactKind = "branch"
	ArtifactCommit     ArtifactKind = "commit"
	ArtifactPullReq    ArtifactKind = "pr"
	ArtifactTestReport ArtifactKind = "test_report"
	ArtifactScreenshot ArtifactKind = "screenshot"
	ArtifactLog        ArtifactKind = "log"
)

// Artifact is a durable output produced by a step, accumulated in insertion
// order for the life of one task attempt.
type Artifact struct {
	Kind      ArtifactKind `json:"kind" yaml:"kind"`
	Name      string       `json:"name" yaml:"name"`
	Value     string       `json:"value" yaml:"value"`
	Step      string       `json:"step,omitempty" yaml:"step,omitempty"`
	CreatedAt time.Time    `json:"created_at" yaml:"created_at"`
}

// NewArtifact creates an artifact stamped with the current time.
func NewArtifact(kind ArtifactKind, name, value, step string) Artifact {
	return Artifact{
		Kind:      kind,
		Name:      name,
		Value:     value,
		Step:      step,
		CreatedAt: time.Now().UTC(),
	}
}

// Summary is the terminal record of one task attempt, created exactly once.
type Summary struct {
	TaskID         string        `json:"task_id" yaml:"task_id"`
	SessionID      string        `json:"session_id" yaml:"session_id"`
	Success        bool          `json:"success" yaml:"success"`
	StepsCompleted int           `json:"steps_completed" yaml:"steps_completed"`
	StepsTotal     int           `json:"steps_total" yaml:"steps_total"`
	Project        ProjectInfo   `json:"project" yaml:"project"`
	ArtifactCount  int           `json:"artifact_count" yaml:"artifact_count"`
	Elapsed        time.Duration `json:"elapsed" yaml:"elapsed"`
	FailedStep     string        `json:"failed_step,omitempty" yaml:"failed_step,omitempty"`
	Error          string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// Progress returns the completed fraction, 1.0 only on full completion.
func (s *Summary) Progress() float64 {
	if s.StepsTotal == 0 {
		return 0
	}
	return float64(s.StepsCompleted) / float64(s.StepsTotal)
}
