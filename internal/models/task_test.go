package models

import "testing"

func TestBranchName(t *testing.T) {
	tests := []struct {
		name string
		task TaskRequest
		want string
	}{
		{
			name: "long task id is truncated",
			task: TaskRequest{TaskID: "9f86d081884c7d65-9a2f", Action: ActionApply},
			want: "autocodit/apply-9f86d081",
		},
		{
			name: "short task id is kept whole",
			task: TaskRequest{TaskID: "abc123", Action: ActionFix},
			want: "autocodit/fix-abc123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.task.BranchName(); got != tt.want {
				t.Errorf("BranchName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestActionTypeKnown(t *testing.T) {
	for _, action := range []ActionType{ActionPlan, ActionFix, ActionApply, ActionReview, ActionTest} {
		if !action.Known() {
			t.Errorf("%s should be known", action)
		}
	}
	if ActionType("deploy").Known() {
		t.Error("deploy should not be known")
	}
}

func TestParseAgentConfig(t *testing.T) {
	cfg, err := ParseAgentConfig(`{"model":"gpt-4","temperature":0.2,"max_tokens":4096}`)
	if err != nil {
		t.Fatalf("ParseAgentConfig() error = %v", err)
	}
	if cfg.Model != "gpt-4" || cfg.Temperature != 0.2 || cfg.MaxTokens != 4096 {
		t.Errorf("unexpected config: %+v", cfg)
	}

	if _, err := ParseAgentConfig("{not json"); err == nil {
		t.Error("expected error for malformed config")
	}

	empty, err := ParseAgentConfig("")
	if err != nil {
		t.Fatalf("empty config should not error: %v", err)
	}
	if empty != (AgentConfig{}) {
		t.Errorf("empty blob should yield zero config, got %+v", empty)
	}
}

func TestTaskStatusTerminal(t *testing.T) {
	if TaskStatusQueued.Terminal() || TaskStatusRunning.Terminal() {
		t.Error("queued/running must not be terminal")
	}
	if !TaskStatusCompleted.Terminal() || !TaskStatusFailed.Terminal() {
		t.Error("completed/failed must be terminal")
	}
}

func TestSummaryProgress(t *testing.T) {
	s := Summary{StepsCompleted: 4, StepsTotal: 6}
	if got := s.Progress(); got < 0.66 || got > 0.67 {
		t.Errorf("Progress() = %v, want 4/6", got)
	}

	full := Summary{StepsCompleted: 3, StepsTotal: 3}
	if full.Progress() != 1.0 {
		t.Errorf("full progress = %v, want 1.0", full.Progress())
	}

	empty := Summary{}
	if empty.Progress() != 0 {
		t.Errorf("zero-step progress = %v, want 0", empty.Progress())
	}
}
