package handler

import (
	"context"

	"github.com/timmy/nercompare/internal/domain"
)

// JobStore is the read side of the job/task store.
type JobStore interface {
	GetJobStatus(ctx context.Context, jobID string) (*domain.Job, error)
	GetTasksForJob(ctx context.Context, jobID string) ([]domain.Task, error)
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)
	GetTaskOutput(ctx context.Context, taskID string, taskType domain.TaskType) (domain.TaskOutput, error)
	GetVLMInput(ctx context.Context, taskID string) (*domain.VLMDetails, error)
}
