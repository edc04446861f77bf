package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/timmy/nercompare/internal/config"
	"github.com/timmy/nercompare/internal/domain"
	"github.com/timmy/nercompare/internal/llm"
)

type fakeTask struct {
	id      string
	order   int
	typ     domain.TaskType
	status  domain.TaskStatus
	errMsg  string
	input   domain.TaskDetails
	output  domain.TaskOutput
	history []domain.TaskStatus
}

type fakeStore struct {
	mu         sync.Mutex
	jobStatus  []domain.JobStatus
	jobErr     string
	tasks      []*fakeTask
	failCreate bool
}

func (s *fakeStore) CreateJob(_ context.Context, _, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobStatus = append(s.jobStatus, domain.JobStatusStarted)
	return "job-1", nil
}

func (s *fakeStore) UpdateJobStatus(_ context.Context, _ string, status domain.JobStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobStatus = append(s.jobStatus, status)
	s.jobErr = errMsg
	return nil
}

func (s *fakeStore) CreateTask(_ context.Context, _ string, order int, typ domain.TaskType) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate {
		return "", errors.New("db down")
	}
	t := &fakeTask{id: fmt.Sprintf("task-%d", order), order: order, typ: typ, status: domain.TaskStatusPending}
	s.tasks = append(s.tasks, t)
	return t.id, nil
}

func (s *fakeStore) find(id string) *fakeTask {
	for _, t := range s.tasks {
		if t.id == id {
			return t
		}
	}
	return nil
}

func (s *fakeStore) UpdateTaskStatus(_ context.Context, id string, status domain.TaskStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.find(id)
	t.status = status
	t.errMsg = errMsg
	t.history = append(t.history, status)
	return nil
}

func (s *fakeStore) RecordTaskInput(_ context.Context, id string, details domain.TaskDetails) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.find(id).input = details
	return nil
}

func (s *fakeStore) RecordTaskOutput(_ context.Context, id string, _ domain.TaskType, out domain.TaskOutput, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.find(id).output = out
	return nil
}

func (s *fakeStore) lastJobStatus() domain.JobStatus {
	return s.jobStatus[len(s.jobStatus)-1]
}

// scriptedExecutor answers by model name.
type scriptedExecutor struct {
	replies map[string]string
	errs    map[string]error
	calls   []call
}

type call struct {
	input llm.Input
	cfg   *config.StepConfig
}

func (e *scriptedExecutor) Execute(_ context.Context, in llm.Input, cfg *config.StepConfig) (*llm.Response, error) {
	e.calls = append(e.calls, call{input: in, cfg: cfg})
	if err := e.errs[cfg.Model]; err != nil {
		return nil, err
	}
	content, _ := json.Marshal(e.replies[cfg.Model])
	body := fmt.Sprintf(`{"id":"resp-%s","choices":[{"index":0,"message":{"role":"assistant","content":%s}}]}`, cfg.Model, content)
	var resp llm.Response
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, err
	}
	resp.Raw = json.RawMessage(body)
	return &resp, nil
}

func stepConfig(t *testing.T, model, userPrompt string) *config.StepConfig {
	t.Helper()
	cfg, err := config.NewStepConfig(model+".ini", map[string]string{
		"API_KEY":     "key",
		"BASE_URL":    "https://llm.example.com",
		"MODEL":       model,
		"USER_PROMPT": userPrompt,
	})
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func testSteps(t *testing.T, withReview bool) config.StepSet {
	steps := config.StepSet{
		VLM:  stepConfig(t, "vlm", ""),
		NER1: stepConfig(t, "ner1", "Extract entities."),
		NER2: stepConfig(t, "ner2", "Extract entities."),
	}
	if withReview {
		steps.Review = stepConfig(t, "review", "Check these: "+"{{MISMATCHED_ENTITIES}}")
	}
	return steps
}

func writeInput(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "letter.txt")
	if err := os.WriteFile(p, []byte("Dear Alice, see you on 2024-01-01."), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

const (
	nerBoth   = `{"entities":[{"entity_name":"PERSON","entity_value":"Alice","confidence":80},{"entity_name":"DATE","entity_value":"2024-01-01","confidence":90}]}`
	nerPerson = `{"entities":[{"entity_name":"PERSON","entity_value":"Alice","confidence":80}]}`
)

func newTestRunner(t *testing.T, exec StepExecutor, store Gateway) *Runner {
	return NewRunner(exec, store, Options{TempDir: t.TempDir()})
}

// execute records a job for input and runs it to the end.
func execute(r *Runner, input string, steps config.StepSet) (*Outcome, error) {
	ctx := context.Background()
	jobID, err := r.NewJob(ctx, input)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, Spec{JobID: jobID, Input: input, Steps: steps}), nil
}

func TestRunVLMFailureStopsJob(t *testing.T) {
	store := &fakeStore{}
	exec := &scriptedExecutor{errs: map[string]error{"vlm": &llm.ExternalCallError{Message: "timeout"}}}

	out, err := execute(newTestRunner(t, exec, store), writeInput(t), testSteps(t, true))
	if err != nil {
		t.Fatalf("execute() error = %v", err)
	}

	if out.Status != domain.JobStatusFailed || store.lastJobStatus() != domain.JobStatusFailed {
		t.Fatalf("job status = %s / %s, want failed", out.Status, store.lastJobStatus())
	}
	if len(store.tasks) != 1 {
		t.Fatalf("tasks created = %d, want 1", len(store.tasks))
	}
	if store.tasks[0].status != domain.TaskStatusFailed || store.tasks[0].errMsg != "timeout" {
		t.Errorf("task 1 = %s %q", store.tasks[0].status, store.tasks[0].errMsg)
	}
	if store.jobErr != "VLM step failed: timeout" {
		t.Errorf("job error = %q", store.jobErr)
	}

	var stepErr *StepError
	if !errors.As(out.Err, &stepErr) || stepErr.TaskType != domain.TaskTypeVLMExtraction {
		t.Errorf("Err = %v", out.Err)
	}
}

func TestRunNERFailureStopsJob(t *testing.T) {
	tests := []struct {
		name      string
		model     string
		wantTasks int
		wantJob   string
	}{
		{name: "first run", model: "ner1", wantTasks: 2, wantJob: "NER1 step failed: boom"},
		{name: "second run", model: "ner2", wantTasks: 3, wantJob: "NER2 step failed: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			exec := &scriptedExecutor{
				replies: map[string]string{"vlm": "text", "ner1": nerBoth, "ner2": nerPerson},
				errs:    map[string]error{tt.model: &llm.ExternalCallError{Message: "boom"}},
			}

			out, err := execute(newTestRunner(t, exec, store), writeInput(t), testSteps(t, true))
			if err != nil {
				t.Fatalf("execute() error = %v", err)
			}

			if out.Status != domain.JobStatusFailed || store.lastJobStatus() != domain.JobStatusFailed {
				t.Fatalf("job status = %s / %s, want failed", out.Status, store.lastJobStatus())
			}
			if len(store.tasks) != tt.wantTasks {
				t.Fatalf("tasks created = %d, want %d", len(store.tasks), tt.wantTasks)
			}
			for _, task := range store.tasks[:tt.wantTasks-1] {
				if task.status != domain.TaskStatusCompleted {
					t.Errorf("task %d = %s, want completed", task.order, task.status)
				}
			}
			last := store.tasks[tt.wantTasks-1]
			if last.typ != domain.TaskTypeNERProcessing || last.status != domain.TaskStatusFailed || last.errMsg != "boom" {
				t.Errorf("task %d = %s %s %q", last.order, last.typ, last.status, last.errMsg)
			}
			if store.jobErr != tt.wantJob {
				t.Errorf("job error = %q, want %q", store.jobErr, tt.wantJob)
			}
			if out.Comparison != nil || out.Reviewed {
				t.Error("no comparison or review expected after a NER failure")
			}
		})
	}
}

func TestRunWithoutMismatchSkipsReview(t *testing.T) {
	store := &fakeStore{}
	exec := &scriptedExecutor{replies: map[string]string{
		"vlm":  "Dear Alice, see you on 2024-01-01.",
		"ner1": nerBoth,
		"ner2": nerBoth,
	}}

	out, err := execute(newTestRunner(t, exec, store), writeInput(t), testSteps(t, true))
	if err != nil {
		t.Fatal(err)
	}

	if out.Status != domain.JobStatusCompleted || out.Reviewed {
		t.Fatalf("outcome = %s reviewed=%v, err=%v", out.Status, out.Reviewed, out.Err)
	}
	if len(store.tasks) != 4 {
		t.Fatalf("tasks created = %d, want 4", len(store.tasks))
	}
	for i, task := range store.tasks {
		if task.order != i+1 || task.status != domain.TaskStatusCompleted {
			t.Errorf("task %d = order %d status %s", i, task.order, task.status)
		}
		want := []domain.TaskStatus{domain.TaskStatusRunning, domain.TaskStatusCompleted}
		if fmt.Sprint(task.history) != fmt.Sprint(want) {
			t.Errorf("task %d history = %v", task.order, task.history)
		}
	}

	wantJob := []domain.JobStatus{domain.JobStatusStarted, domain.JobStatusInProgress, domain.JobStatusCompleted}
	if fmt.Sprint(store.jobStatus) != fmt.Sprint(wantJob) {
		t.Errorf("job history = %v, want %v", store.jobStatus, wantJob)
	}

	for _, e := range out.Comparison.Entities {
		if e.Comparison != "match" {
			t.Errorf("entity %s = %s", e.Name, e.Comparison)
		}
	}

	// NER steps read the VLM text from a file, not the original input.
	if got := exec.calls[1].input.Ref; filepath.Base(got) != vlmArtifact {
		t.Errorf("NER1 input = %s", got)
	}
}

func TestRunWithMismatchRunsReview(t *testing.T) {
	store := &fakeStore{}
	exec := &scriptedExecutor{replies: map[string]string{
		"vlm":    "Dear Alice, see you on 2024-01-01.",
		"ner1":   nerBoth,
		"ner2":   nerPerson,
		"review": "DATE 2024-01-01 is present in the document.",
	}}
	input := writeInput(t)

	out, err := execute(newTestRunner(t, exec, store), input, testSteps(t, true))
	if err != nil {
		t.Fatal(err)
	}

	if out.Status != domain.JobStatusCompleted || !out.Reviewed {
		t.Fatalf("outcome = %s reviewed=%v err=%v", out.Status, out.Reviewed, out.Err)
	}
	if len(store.tasks) != 5 || store.tasks[4].typ != domain.TaskTypeVLMReview {
		t.Fatalf("tasks = %d", len(store.tasks))
	}

	review := exec.calls[len(exec.calls)-1]
	if review.input.Ref != input {
		t.Errorf("review input = %s, want original document", review.input.Ref)
	}
	wantPrompt := `Check these: [{"entity_name":"DATE","entity_value":"2024-01-01"}]`
	if review.cfg.UserPrompt != wantPrompt {
		t.Errorf("review prompt = %q", review.cfg.UserPrompt)
	}

	details, ok := store.tasks[4].input.(*domain.ReviewDetails)
	if !ok || string(details.MismatchJSON) != `[{"entity_name":"DATE","entity_value":"2024-01-01"}]` {
		t.Errorf("review details = %+v", store.tasks[4].input)
	}
	if out.ReviewText == "" || *store.tasks[4].output.Text != out.ReviewText {
		t.Errorf("review output = %q", out.ReviewText)
	}
}

func TestRunReviewFailureFailsJob(t *testing.T) {
	store := &fakeStore{}
	exec := &scriptedExecutor{
		replies: map[string]string{"vlm": "text", "ner1": nerBoth, "ner2": nerPerson},
		errs:    map[string]error{"review": &llm.ExternalCallError{StatusCode: 500, Message: "HTTP 500: boom"}},
	}

	out, _ := execute(newTestRunner(t, exec, store), writeInput(t), testSteps(t, true))

	if out.Status != domain.JobStatusFailed || store.jobErr != "Review step failed: HTTP 500: boom" {
		t.Fatalf("status = %s err = %q", out.Status, store.jobErr)
	}
	for _, task := range store.tasks[:4] {
		if task.status != domain.TaskStatusCompleted {
			t.Errorf("task %d = %s, earlier steps must stay completed", task.order, task.status)
		}
	}
}

func TestRunWithoutReviewConfigCompletes(t *testing.T) {
	store := &fakeStore{}
	exec := &scriptedExecutor{replies: map[string]string{"vlm": "text", "ner1": nerBoth, "ner2": nerPerson}}

	out, _ := execute(newTestRunner(t, exec, store), writeInput(t), testSteps(t, false))

	if out.Status != domain.JobStatusCompleted || len(store.tasks) != 4 {
		t.Fatalf("status = %s tasks = %d", out.Status, len(store.tasks))
	}
}

func TestRunInvalidNERContentComparesAsEmpty(t *testing.T) {
	store := &fakeStore{}
	exec := &scriptedExecutor{replies: map[string]string{
		"vlm":  "text",
		"ner1": "Sorry, I cannot help with that.",
		"ner2": nerPerson,
	}}

	out, _ := execute(newTestRunner(t, exec, store), writeInput(t), testSteps(t, false))

	if out.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %s err = %v", out.Status, out.Err)
	}
	if len(out.Comparison.Entities) != 1 || out.Comparison.Entities[0].Comparison != "omission" {
		t.Errorf("comparison = %+v", out.Comparison.Entities)
	}
}

func TestRunNERNonObjectFailsComparison(t *testing.T) {
	store := &fakeStore{}
	exec := &scriptedExecutor{replies: map[string]string{"vlm": "text", "ner1": `["Alice"]`, "ner2": nerPerson}}

	out, _ := execute(newTestRunner(t, exec, store), writeInput(t), testSteps(t, true))

	if out.Status != domain.JobStatusFailed || len(store.tasks) != 4 {
		t.Fatalf("status = %s tasks = %d", out.Status, len(store.tasks))
	}
	if !strings.HasPrefix(store.jobErr, "Comparison step failed:") {
		t.Errorf("job error = %q", store.jobErr)
	}
}

func TestRunTaskCreationFailureIsFatal(t *testing.T) {
	store := &fakeStore{failCreate: true}
	exec := &scriptedExecutor{}

	out, _ := execute(newTestRunner(t, exec, store), writeInput(t), testSteps(t, false))

	if out.Status != domain.JobStatusFailed || len(exec.calls) != 0 {
		t.Fatalf("status = %s calls = %d", out.Status, len(exec.calls))
	}
}

func TestRunRemovesArtifacts(t *testing.T) {
	tmp := t.TempDir()
	store := &fakeStore{}
	exec := &scriptedExecutor{replies: map[string]string{"vlm": "text", "ner1": nerBoth, "ner2": nerBoth}}

	execute(NewRunner(exec, store, Options{TempDir: tmp}), writeInput(t), testSteps(t, false))

	if _, err := os.Stat(filepath.Join(tmp, "job-1")); !os.IsNotExist(err) {
		t.Errorf("artifact dir still present: %v", err)
	}

	execute(NewRunner(exec, &fakeStore{}, Options{TempDir: tmp, KeepArtifacts: true}), writeInput(t), testSteps(t, false))
	for _, name := range []string{vlmArtifact, ner1Artifact, ner2Artifact} {
		if _, err := os.Stat(filepath.Join(tmp, "job-1", name)); err != nil {
			t.Errorf("%s not kept: %v", name, err)
		}
	}
}
