// Package models contains shared data structures used across the runner.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ActionType is the kind of coding action a task performs.
type ActionType string

// Supported action types.
const (
	ActionPlan   ActionType = "plan"
	ActionFix    ActionType = "fix"
	ActionApply  ActionType = "apply"
	ActionReview ActionType = "review"
	ActionTest   ActionType = "test"
)

// Known returns true if the action type is one of the supported set.
// Unknown action types are not an error: plan generation degrades to the
// bare analysis step for them.
func (a ActionType) Known() bool {
	switch a {
	case ActionPlan, ActionFix, ActionApply, ActionReview, ActionTest:
		return true
	}
	return false
}

// TaskStatus represents the lifecycle state of a task attempt.
type TaskStatus string

// Task attempt states. Completed and failed are terminal.
const (
	TaskStatusQueued    TaskStatus = "queued"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// Terminal returns true for completed and failed.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// AgentConfig holds per-task AI agent settings, delivered as JSON in the
// AGENT_CONFIG environment variable.
type AgentConfig struct {
	Model        string  `json:"model,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
}

// ParseAgentConfig parses the AGENT_CONFIG JSON blob. An empty blob yields
// the zero config.
func ParseAgentConfig(raw string) (AgentConfig, error) {
	var cfg AgentConfig
	if raw == "" {
		return cfg, nil
	}
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return cfg, fmt.Errorf("invalid agent config: %w", err)
	}
	return cfg, nil
}

// TaskRequest is the immutable input for one task attempt. It is created
// once at startup from the process configuration and never mutated.
type TaskRequest struct {
	TaskID         string      `json:"task_id" yaml:"task_id"`
	SessionID      string      `json:"session_id" yaml:"session_id"`
	RepositoryURL  string      `json:"repository_url" yaml:"repository_url"`
	Description    string      `json:"description" yaml:"description"`
	Action         ActionType  `json:"action_type" yaml:"action_type"`
	Agent          AgentConfig `json:"agent_config" yaml:"agent_config"`
	APIEndpoint    string      `json:"api_endpoint" yaml:"api_endpoint"`
	InstallationID string      `json:"installation_id" yaml:"installation_id"`
	CreatedAt      time.Time   `json:"created_at" yaml:"created_at"`
}

// ShortTaskID returns the first 8 characters of the task ID, used in branch
// names and commit trailers.
func (r *TaskRequest) ShortTaskID() string {
	if len(r.TaskID) <= 8 {
		return r.TaskID
	}
	return r.TaskID[:8]
}

// BranchName returns the branch created for this task attempt.
func (r *TaskRequest) BranchName() string {
	return fmt.Sprintf("autocodit/%s-%s", r.Action, r.ShortTaskID())
}
