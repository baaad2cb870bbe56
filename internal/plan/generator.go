// Package plan maps an action type to the fixed, ordered execution plan for
// one task attempt.
package plan

import (
	"time"

	"github.com/autocodit-io/runner/internal/models"
)

// Tool backend names referenced by generated steps.
const (
	ToolRepository = "repository"
	ToolAI         = "ai"
	ToolSecurity   = "security"
)

// Generator produces execution plans. It holds no state: the same action
// type always yields the same step sequence. Project metadata is carried to
// later steps for parameterization (the actual test command to run) but is
// never branched on here.
type Generator struct{}

// NewGenerator creates a plan generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate returns the execution plan for the given action type. Every plan
// starts with a repository analysis step. Unknown action types degrade to
// the analysis step alone; that is a documented edge case, not an error.
func (g *Generator) Generate(action models.ActionType, info *models.ProjectInfo) *models.ExecutionPlan {
	steps := []models.Step{
		{
			Name:     "Analyze Repository",
			Category: models.CategoryAnalysis,
			Tool:     ToolRepository,
			Method:   "analyze_repository",
			Estimate: 30 * time.Second,
		},
	}

	steps = append(steps, actionSteps(action, info)...)

	return &models.ExecutionPlan{
		Action: action,
		Steps:  steps,
	}
}

// actionSteps returns the action-specific tail of the plan.
func actionSteps(action models.ActionType, info *models.ProjectInfo) []models.Step {
	switch action {
	case models.ActionPlan:
		return []models.Step{
			{
				Name:     "Generate Implementation Plan",
				Category: models.CategoryAIRequest,
				Tool:     ToolAI,
				Method:   "generate_implementation_plan",
				Estimate: 2 * time.Minute,
			},
			{
				Name:     "Validate Plan",
				Category: models.CategoryAnalysis,
				Tool:     ToolRepository,
				Method:   "validate_plan",
				Estimate: 30 * time.Second,
			},
		}

	case models.ActionFix, models.ActionApply:
		return []models.Step{
			{
				Name:     "Identify Issues",
				Category: models.CategoryAIRequest,
				Tool:     ToolAI,
				Method:   "identify_issues",
				Estimate: 2 * time.Minute,
			},
			{
				Name:     "Generate Solution",
				Category: models.CategoryAIRequest,
				Tool:     ToolAI,
				Method:   "generate_solution",
				Estimate: 3 * time.Minute,
			},
			{
				Name:     "Apply Changes",
				Category: models.CategoryFileOperation,
				Tool:     ToolRepository,
				Method:   "apply_changes",
				Estimate: time.Minute,
			},
			{
				Name:     "Run Tests",
				Category: models.CategoryValidation,
				Tool:     ToolRepository,
				Method:   "run_tests",
				Estimate: 10 * time.Minute,
				Params:   testParams(info),
			},
			{
				Name:     "Create Pull Request",
				Category: models.CategoryGitOperation,
				Tool:     ToolRepository,
				Method:   "create_pull_request",
				Estimate: time.Minute,
			},
		}

	case models.ActionReview:
		return []models.Step{
			{
				Name:     "Analyze Diff",
				Category: models.CategoryAIRequest,
				Tool:     ToolAI,
				Method:   "analyze_diff",
				Estimate: 2 * time.Minute,
			},
			{
				Name:     "Security Scan",
				Category: models.CategoryAnalysis,
				Tool:     ToolSecurity,
				Method:   "security_scan",
				Estimate: 2 * time.Minute,
			},
			{
				Name:     "Generate Review",
				Category: models.CategoryAIRequest,
				Tool:     ToolAI,
				Method:   "generate_review",
				Estimate: 2 * time.Minute,
			},
			{
				Name:     "Post Review Comments",
				Category: models.CategoryGitOperation,
				Tool:     ToolRepository,
				Method:   "post_review_comments",
				Estimate: 30 * time.Second,
			},
		}

	case models.ActionTest:
		return []models.Step{
			{
				Name:     "Analyze Test Needs",
				Category: models.CategoryAIRequest,
				Tool:     ToolAI,
				Method:   "analyze_test_needs",
				Estimate: 2 * time.Minute,
			},
			{
				Name:     "Generate Tests",
				Category: models.CategoryAIRequest,
				Tool:     ToolAI,
				Method:   "generate_tests",
				Estimate: 3 * time.Minute,
			},
			{
				Name:     "Write Test Files",
				Category: models.CategoryFileOperation,
				Tool:     ToolRepository,
				Method:   "write_test_files",
				Estimate: time.Minute,
			},
			{
				Name:     "Run Test Suite",
				Category: models.CategoryValidation,
				Tool:     ToolRepository,
				Method:   "run_test_suite",
				Estimate: 10 * time.Minute,
				Params:   testParams(info),
			},
		}
	}

	// Unknown action: only the leading analysis step executes.
	return nil
}

// testParams carries project classification into validation steps. This is
// parameterization only: the step sequence itself never depends on it.
func testParams(info *models.ProjectInfo) map[string]any {
	if info == nil {
		return nil
	}
	return map[string]any{
		"languages":       info.Languages,
		"test_frameworks": info.TestFrameworks,
	}
}
