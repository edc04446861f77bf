package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/timmy/nercompare/internal/domain"
)

// Gateway is the job/task store used by the workflow and the HTTP API.
// Every failure is returned as a *PersistenceError.
type Gateway struct {
	jobs    *JobRepository
	tasks   *TaskRepository
	details *TaskDetailRepository
}

// NewGateway creates a Gateway over db.
func NewGateway(db *gorm.DB) *Gateway {
	return &Gateway{
		jobs:    NewJobRepository(db),
		tasks:   NewTaskRepository(db),
		details: NewTaskDetailRepository(db),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// CreateJob inserts a job in the started state and returns its ID.
func (g *Gateway) CreateJob(ctx context.Context, workflowName, inputSource string) (string, error) {
	job := &domain.Job{
		JobID:        uuid.New().String(),
		WorkflowName: workflowName,
		InputSource:  inputSource,
		Status:       domain.JobStatusStarted,
		StartTime:    time.Now(),
	}
	if err := g.jobs.Create(ctx, job); err != nil {
		return "", wrap("create job", err)
	}
	return job.JobID, nil
}

// UpdateJobStatus moves a job forward; errMsg is stored when non-empty.
func (g *Gateway) UpdateJobStatus(ctx context.Context, jobID string, status domain.JobStatus, errMsg string) error {
	return wrap("update job status", g.jobs.UpdateStatus(ctx, jobID, status, optional(errMsg)))
}

// CreateTask inserts a pending task at order within job and returns its ID.
func (g *Gateway) CreateTask(ctx context.Context, jobID string, order int, taskType domain.TaskType) (string, error) {
	task := &domain.Task{
		TaskID:    uuid.New().String(),
		JobID:     jobID,
		TaskOrder: order,
		TaskType:  taskType,
		Status:    domain.TaskStatusPending,
	}
	if err := g.tasks.Create(ctx, task); err != nil {
		return "", wrap("create task", err)
	}
	return task.TaskID, nil
}

// UpdateTaskStatus moves a task forward; errMsg is stored when non-empty.
func (g *Gateway) UpdateTaskStatus(ctx context.Context, taskID string, status domain.TaskStatus, errMsg string) error {
	return wrap("update task status", g.tasks.UpdateStatus(ctx, taskID, status, optional(errMsg)))
}

// RecordTaskInput stores the detail row of a task.
func (g *Gateway) RecordTaskInput(ctx context.Context, taskID string, details domain.TaskDetails) error {
	details.SetTaskID(taskID)
	return wrap("record task input", g.details.SaveInput(ctx, details))
}

// RecordTaskOutput stores a task's output once.
func (g *Gateway) RecordTaskOutput(ctx context.Context, taskID string, taskType domain.TaskType, out domain.TaskOutput, responseID string) error {
	return wrap("record task output", g.details.SaveOutput(ctx, taskID, taskType, out, optional(responseID)))
}

// GetJobStatus returns a job row.
func (g *Gateway) GetJobStatus(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := g.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, wrap("get job", err)
	}
	return job, nil
}

// GetTasksForJob returns a job's tasks ordered by task_order.
func (g *Gateway) GetTasksForJob(ctx context.Context, jobID string) ([]domain.Task, error) {
	tasks, err := g.tasks.ListByJob(ctx, jobID)
	if err != nil {
		return nil, wrap("list tasks", err)
	}
	return tasks, nil
}

// GetTask returns a task row.
func (g *Gateway) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	task, err := g.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, wrap("get task", err)
	}
	return task, nil
}

// GetTaskOutput returns a task's output payload.
func (g *Gateway) GetTaskOutput(ctx context.Context, taskID string, taskType domain.TaskType) (domain.TaskOutput, error) {
	out, err := g.details.GetOutput(ctx, taskID, taskType)
	if err != nil {
		return domain.TaskOutput{}, wrap("get task output", err)
	}
	return out, nil
}

// GetVLMInput returns the recorded input of a VLM task.
func (g *Gateway) GetVLMInput(ctx context.Context, taskID string) (*domain.VLMDetails, error) {
	d, err := g.details.GetVLMInput(ctx, taskID)
	if err != nil {
		return nil, wrap("get vlm input", err)
	}
	return d, nil
}
