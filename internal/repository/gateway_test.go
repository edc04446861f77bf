package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/timmy/nercompare/internal/config"
	"github.com/timmy/nercompare/internal/domain"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	db, err := InitDB(&config.DatabaseConfig{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "test.db"),
		LogLevel:    "silent",
		AutoMigrate: true,
	})
	if err != nil {
		t.Fatalf("InitDB() error = %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewGateway(db)
}

func TestJobLifecycle(t *testing.T) {
	ctx := context.Background()
	g := newTestGateway(t)

	jobID, err := g.CreateJob(ctx, "vlm_ner_comparison_review", "uploads/a.png")
	if err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}

	job, err := g.GetJobStatus(ctx, jobID)
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != domain.JobStatusStarted || job.EndTime != nil {
		t.Errorf("new job = %+v", job)
	}

	if err := g.UpdateJobStatus(ctx, jobID, domain.JobStatusInProgress, ""); err != nil {
		t.Fatal(err)
	}
	if err := g.UpdateJobStatus(ctx, jobID, domain.JobStatusFailed, "VLM step failed: timeout"); err != nil {
		t.Fatal(err)
	}

	job, err = g.GetJobStatus(ctx, jobID)
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != domain.JobStatusFailed || job.EndTime == nil {
		t.Errorf("failed job = %+v", job)
	}
	if job.ErrorMessage == nil || *job.ErrorMessage != "VLM step failed: timeout" {
		t.Errorf("ErrorMessage = %v", job.ErrorMessage)
	}

	err = g.UpdateJobStatus(ctx, jobID, domain.JobStatusCompleted, "")
	if !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("update after terminal: error = %v, want ErrIllegalTransition", err)
	}

	_, err = g.GetJobStatus(ctx, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetJobStatus(missing) error = %v, want ErrNotFound", err)
	}
	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Errorf("error %T is not a *PersistenceError", err)
	}
}

func TestTasksOrderedAndUnique(t *testing.T) {
	ctx := context.Background()
	g := newTestGateway(t)

	jobID, err := g.CreateJob(ctx, "wf", "doc.pdf")
	if err != nil {
		t.Fatal(err)
	}

	order := []struct {
		n int
		t domain.TaskType
	}{
		{domain.OrderNER1, domain.TaskTypeNERProcessing},
		{domain.OrderVLM, domain.TaskTypeVLMExtraction},
		{domain.OrderCompare, domain.TaskTypeJSONComparison},
	}
	for _, o := range order {
		if _, err := g.CreateTask(ctx, jobID, o.n, o.t); err != nil {
			t.Fatalf("CreateTask(%d) error = %v", o.n, err)
		}
	}

	if _, err := g.CreateTask(ctx, jobID, domain.OrderVLM, domain.TaskTypeVLMExtraction); err == nil {
		t.Error("duplicate task_order accepted")
	}

	tasks, err := g.GetTasksForJob(ctx, jobID)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 3 {
		t.Fatalf("tasks = %d, want 3", len(tasks))
	}
	for i, want := range []int{1, 2, 4} {
		if tasks[i].TaskOrder != want {
			t.Errorf("tasks[%d].TaskOrder = %d, want %d", i, tasks[i].TaskOrder, want)
		}
		if tasks[i].Status != domain.TaskStatusPending {
			t.Errorf("tasks[%d].Status = %s", i, tasks[i].Status)
		}
	}
}

func TestTaskStatusTimestamps(t *testing.T) {
	ctx := context.Background()
	g := newTestGateway(t)

	jobID, _ := g.CreateJob(ctx, "wf", "doc.txt")
	taskID, err := g.CreateTask(ctx, jobID, domain.OrderVLM, domain.TaskTypeVLMExtraction)
	if err != nil {
		t.Fatal(err)
	}

	if err := g.UpdateTaskStatus(ctx, taskID, domain.TaskStatusRunning, ""); err != nil {
		t.Fatal(err)
	}
	task, _ := g.GetTask(ctx, taskID)
	if task.StartTime == nil || task.EndTime != nil {
		t.Errorf("running task = %+v", task)
	}

	if err := g.UpdateTaskStatus(ctx, taskID, domain.TaskStatusCompleted, ""); err != nil {
		t.Fatal(err)
	}
	task, _ = g.GetTask(ctx, taskID)
	if task.Status != domain.TaskStatusCompleted || task.EndTime == nil {
		t.Errorf("completed task = %+v", task)
	}

	if err := g.UpdateTaskStatus(ctx, taskID, domain.TaskStatusFailed, "late"); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("error = %v, want ErrIllegalTransition", err)
	}
	if err := g.UpdateTaskStatus(ctx, "missing", domain.TaskStatusRunning, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestTaskDetailsWriteOnce(t *testing.T) {
	ctx := context.Background()
	g := newTestGateway(t)

	jobID, _ := g.CreateJob(ctx, "wf", "doc.png")
	vlmTask, _ := g.CreateTask(ctx, jobID, domain.OrderVLM, domain.TaskTypeVLMExtraction)

	err := g.RecordTaskInput(ctx, vlmTask, &domain.VLMDetails{
		InputSource:      "doc.png",
		InputContentType: domain.ContentImageBase64,
		InputContent:     "aGVsbG8=",
		Request: domain.RequestParams{
			Model:          "vision/model",
			Temperature:    0.7,
			TopP:           1,
			ResponseFormat: domain.JSON(`{"type":"text"}`),
		},
	})
	if err != nil {
		t.Fatalf("RecordTaskInput() error = %v", err)
	}

	if err := g.RecordTaskOutput(ctx, vlmTask, domain.TaskTypeVLMExtraction, domain.TextOutput("extracted"), "gen-1"); err != nil {
		t.Fatalf("RecordTaskOutput() error = %v", err)
	}
	err = g.RecordTaskOutput(ctx, vlmTask, domain.TaskTypeVLMExtraction, domain.TextOutput("again"), "gen-2")
	if !errors.Is(err, ErrOutputRecorded) {
		t.Errorf("second RecordTaskOutput() error = %v, want ErrOutputRecorded", err)
	}

	out, err := g.GetTaskOutput(ctx, vlmTask, domain.TaskTypeVLMExtraction)
	if err != nil {
		t.Fatal(err)
	}
	if out.Text == nil || *out.Text != "extracted" {
		t.Errorf("output = %v", out.Text)
	}

	input, err := g.GetVLMInput(ctx, vlmTask)
	if err != nil {
		t.Fatal(err)
	}
	if input.InputContentType != domain.ContentImageBase64 || input.InputContent != "aGVsbG8=" {
		t.Errorf("input = %+v", input)
	}
}

func TestRecordOutputWithoutInputRow(t *testing.T) {
	ctx := context.Background()
	g := newTestGateway(t)

	jobID, _ := g.CreateJob(ctx, "wf", "doc.png")
	cmpTask, _ := g.CreateTask(ctx, jobID, domain.OrderCompare, domain.TaskTypeJSONComparison)

	payload := []byte(`{"entities":[]}`)
	if err := g.RecordTaskOutput(ctx, cmpTask, domain.TaskTypeJSONComparison, domain.JSONOutput(payload), ""); err != nil {
		t.Fatalf("RecordTaskOutput() error = %v", err)
	}

	out, err := g.GetTaskOutput(ctx, cmpTask, domain.TaskTypeJSONComparison)
	if err != nil {
		t.Fatal(err)
	}
	if string(out.JSON) != string(payload) {
		t.Errorf("output = %s", out.JSON)
	}

	if _, err := g.GetTaskOutput(ctx, "missing", domain.TaskTypeNERProcessing); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}
