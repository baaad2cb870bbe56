package progress

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/autocodit-io/runner/internal/models"
)

var testTask = models.TaskRequest{
	TaskID:    "task-1",
	SessionID: "session-1",
	Action:    models.ActionApply,
}

func TestReporterDeliversInOrder(t *testing.T) {
	var mu sync.Mutex
	var received []Event

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var e Event
		if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
			t.Errorf("malformed event: %v", err)
		}
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	r := NewReporter(srv.URL, 16, nil)
	r.Emit(SessionEvent(testTask, PhaseAnalyze, "analyzing repository"))
	r.Emit(TaskProgress(testTask, 1, 3))
	r.Emit(TaskProgress(testTask, 2, 3))
	r.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 3 {
		t.Fatalf("received %d events, want 3", len(received))
	}
	if received[0].Type != TypeSessionEvent {
		t.Errorf("first event = %s, want %s", received[0].Type, TypeSessionEvent)
	}
	if received[1].Data["iteration"].(float64) != 1 || received[2].Data["iteration"].(float64) != 2 {
		t.Error("progress events out of order")
	}
}

func TestReporterSwallowsDeliveryFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewReporter(srv.URL, 4, nil)
	r.Emit(SessionEvent(testTask, PhaseExecute, "executing plan"))
	r.Close() // must not hang or panic
}

func TestReporterNeverBlocksWhenQueueIsFull(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	r := NewReporter(srv.URL, 1, nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			r.Emit(TaskProgress(testTask, i, 50))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a full queue")
	}
}

func TestTaskProgressPercent(t *testing.T) {
	e := TaskProgress(testTask, 4, 6)
	got := e.Data["percent"].(float64)
	if got < 66.6 || got > 66.7 {
		t.Errorf("percent = %v, want 4/6 of 100", got)
	}
	if e.Data["iteration"].(int) != 4 || e.Data["total"].(int) != 6 {
		t.Errorf("iteration/total = %v/%v, want 4/6", e.Data["iteration"], e.Data["total"])
	}

	full := TaskProgress(testTask, 3, 3)
	if full.Data["percent"].(float64) != 100.0 {
		t.Error("completed task must report percent 100")
	}
}

func TestTaskCompletedSchema(t *testing.T) {
	failed := TaskCompleted(testTask, models.Summary{
		Success:        false,
		StepsCompleted: 4,
		StepsTotal:     6,
		Error:          `step "Run Tests" failed: npm test exited with code 1`,
	}, nil)
	if failed.Data["status"] != "failed" {
		t.Errorf("status = %v, want failed", failed.Data["status"])
	}
	detail := failed.Data["summary"].(map[string]any)
	if detail["error"] == nil {
		t.Error("failed completion must carry the error")
	}

	completed := TaskCompleted(testTask, models.Summary{Success: true, StepsCompleted: 6, StepsTotal: 6},
		[]models.Artifact{
			models.NewArtifact(models.ArtifactBranch, "branch", "autocodit/apply-12345678", "Create Branch"),
			models.NewArtifact(models.ArtifactPullReq, "fix login", "autocodit/apply-12345678", "Create Pull Request"),
		})
	if completed.Data["status"] != "completed" {
		t.Errorf("status = %v, want completed", completed.Data["status"])
	}
	if completed.Data["branch"] != "autocodit/apply-12345678" {
		t.Errorf("branch = %v, want the branch artifact value", completed.Data["branch"])
	}
	if completed.Data["pr_title"] != "fix login" {
		t.Errorf("pr_title = %v, want the pull request artifact name", completed.Data["pr_title"])
	}
}

func TestToolEventSchema(t *testing.T) {
	invoked := ToolInvoked(testTask, "write_file", map[string]any{"path": "a.txt"})
	if invoked.Data["name"] != "write_file" {
		t.Errorf("name = %v, want write_file", invoked.Data["name"])
	}
	if invoked.Data["args"].(map[string]any)["path"] != "a.txt" {
		t.Error("args not carried")
	}

	ok := ToolResult(testTask, "write_file", true, json.RawMessage(`{"path":"a.txt"}`), "")
	if ok.Data["ok"] != true || ok.Data["output"] == nil || ok.Data["error"] != nil {
		t.Errorf("success result schema wrong: %v", ok.Data)
	}

	failed := ToolResult(testTask, "write_file", false, nil, "disk full")
	if failed.Data["ok"] != false || failed.Data["error"] != "disk full" || failed.Data["output"] != nil {
		t.Errorf("failure result schema wrong: %v", failed.Data)
	}

	tests := TestResult(testTask, 3, 1)
	if tests.Data["passed"] != 3 || tests.Data["failed"] != 1 {
		t.Errorf("test result schema wrong: %v", tests.Data)
	}

	build := BuildStatus(testTask, BuildSuccess)
	if build.Data["status"] != "success" {
		t.Errorf("build status = %v, want success", build.Data["status"])
	}
}

func TestRecorderOrdering(t *testing.T) {
	rec := &Recorder{}
	rec.Emit(ToolInvoked(testTask, "analyze_repository", nil))
	rec.Emit(ToolResult(testTask, "analyze_repository", true, json.RawMessage(`{}`), ""))

	events := rec.Events()
	if len(events) != 2 {
		t.Fatalf("recorded %d events, want 2", len(events))
	}
	if events[0].Type != TypeToolInvoked || events[1].Type != TypeToolResult {
		t.Error("events recorded out of order")
	}
	if got := rec.OfType(TypeToolResult); len(got) != 1 {
		t.Errorf("OfType returned %d events, want 1", len(got))
	}
}
