package models

import "time"

// StepCategory classifies a plan step. The set is closed: dispatch in the
// runner branches on these values, never on free-form strings.
type StepCategory string

// Step categories.
const (
	CategoryAnalysis      StepCategory = "analysis"
	CategoryAIRequest     StepCategory = "ai_request"
	CategoryFileOperation StepCategory = "file_operation"
	CategoryGitOperation  StepCategory = "git_operation"
	CategoryValidation    StepCategory = "validation"
)

// Step is one unit of an execution plan, bound to a named method on a named
// tool backend.
type Step struct {
	Name     string         `json:"name" yaml:"name"`
	Category StepCategory   `json:"category" yaml:"category"`
	Tool     string         `json:"tool" yaml:"tool"`
	Method   string         `json:"method" yaml:"method"`
	Estimate time.Duration  `json:"estimate" yaml:"estimate"` // planning hint only, not enforced
	Params   map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// ExecutionPlan is the ordered step sequence for one task attempt.
// Generated once and never mutated afterwards.
type ExecutionPlan struct {
	Action ActionType `json:"action_type" yaml:"action_type"`
	Steps  []Step     `json:"steps" yaml:"steps"`
}

// Len returns the number of steps.
func (p *ExecutionPlan) Len() int { return len(p.Steps) }
