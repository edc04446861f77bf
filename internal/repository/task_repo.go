package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/timmy/nercompare/internal/domain"
)

var terminalTaskStatuses = []domain.TaskStatus{domain.TaskStatusCompleted, domain.TaskStatusFailed}

// TaskRepository handles task rows.
type TaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository.
// Parameters:
//   - db: GORM database handle used for queries.
//
// Returns:
//   - *TaskRepository: repository instance bound to db.
func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create inserts a new task. (job_id, task_order) is unique.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - task: task to persist; TaskID must be set.
//
// Returns:
//   - error: non-nil if the insert fails.
func (r *TaskRepository) Create(ctx context.Context, task *domain.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

// GetByID retrieves a task by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: task ID.
//
// Returns:
//   - *domain.Task: matching task.
//   - error: gorm.ErrRecordNotFound if missing.
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	var task domain.Task
	if err := r.db.WithContext(ctx).Where("task_id = ?", id).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// ListByJob returns a job's tasks ordered by task_order.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - jobID: owning job ID.
//
// Returns:
//   - []domain.Task: tasks in pipeline order.
//   - error: non-nil if the query fails.
func (r *TaskRepository) ListByJob(ctx context.Context, jobID string) ([]domain.Task, error) {
	var tasks []domain.Task
	if err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("task_order ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// UpdateStatus moves a non-terminal task to status. Running sets
// start_time; terminal statuses set end_time.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: task ID.
//   - status: new status.
//   - errMsg: optional error message.
//
// Returns:
//   - error: ErrNotFound, ErrIllegalTransition, or a store error.
func (r *TaskRepository) UpdateStatus(ctx context.Context, id string, status domain.TaskStatus, errMsg *string) error {
	now := time.Now()
	updates := map[string]interface{}{"status": status}
	switch {
	case status == domain.TaskStatusRunning:
		updates["start_time"] = now
	case status.Terminal():
		updates["end_time"] = now
	}
	if errMsg != nil {
		updates["error_message"] = *errMsg
	}

	result := r.db.WithContext(ctx).Model(&domain.Task{}).
		Where("task_id = ? AND status NOT IN ?", id, terminalTaskStatuses).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Task{}).Where("task_id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrIllegalTransition
}
