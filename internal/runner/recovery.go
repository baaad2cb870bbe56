package runner

import (
	"time"

	"github.com/autocodit-io/runner/internal/models"
)

// RecoveryPolicy bounds the retry behavior on step failure. Only a failed
// validation step of an apply task is eligible, and only once per step:
// the step is re-run after a cooldown, on the theory that applied changes
// plus a flaky suite deserve exactly one more look. Everything else fails
// the task immediately.
type RecoveryPolicy struct {
	Cooldown time.Duration
}

// DefaultRecoveryPolicy is used when the caller does not override the
// cooldown.
var DefaultRecoveryPolicy = RecoveryPolicy{Cooldown: 5 * time.Second}

// Eligible reports whether a failed step may be retried. attempted is
// whether recovery already ran for this step.
func (p RecoveryPolicy) Eligible(action models.ActionType, step models.Step, result *models.StepResult, attempted bool) bool {
	if attempted {
		return false
	}
	if action != models.ActionApply {
		return false
	}
	if step.Category != models.CategoryValidation {
		return false
	}
	// A backend that is gone will not come back within one cooldown.
	if result.Reason == models.FailureToolUnavailable {
		return false
	}
	return true
}
