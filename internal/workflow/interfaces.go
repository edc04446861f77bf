package workflow

import (
	"context"

	"github.com/timmy/nercompare/internal/config"
	"github.com/timmy/nercompare/internal/domain"
	"github.com/timmy/nercompare/internal/llm"
)

// StepExecutor sends one step's input to a model.
type StepExecutor interface {
	Execute(ctx context.Context, in llm.Input, cfg *config.StepConfig) (*llm.Response, error)
}

// Gateway persists job and task progress.
type Gateway interface {
	CreateJob(ctx context.Context, workflowName, inputSource string) (string, error)
	UpdateJobStatus(ctx context.Context, jobID string, status domain.JobStatus, errMsg string) error
	CreateTask(ctx context.Context, jobID string, order int, taskType domain.TaskType) (string, error)
	UpdateTaskStatus(ctx context.Context, taskID string, status domain.TaskStatus, errMsg string) error
	RecordTaskInput(ctx context.Context, taskID string, details domain.TaskDetails) error
	RecordTaskOutput(ctx context.Context, taskID string, taskType domain.TaskType, out domain.TaskOutput, responseID string) error
}
