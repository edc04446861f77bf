package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/timmy/nercompare/internal/domain"
)

var terminalJobStatuses = []domain.JobStatus{domain.JobStatusCompleted, domain.JobStatusFailed}

// JobRepository handles job rows.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
// Parameters:
//   - db: GORM database handle used for queries.
//
// Returns:
//   - *JobRepository: repository instance bound to db.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new job.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - job: job to persist; JobID must be set.
//
// Returns:
//   - error: non-nil if the insert fails.
func (r *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// GetByID retrieves a job by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
//
// Returns:
//   - *domain.Job: matching job.
//   - error: gorm.ErrRecordNotFound if missing.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	if err := r.db.WithContext(ctx).Where("job_id = ?", id).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateStatus moves a non-terminal job to status. Terminal statuses also
// set end_time.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
//   - status: new status.
//   - errMsg: optional error message.
//
// Returns:
//   - error: ErrNotFound, ErrIllegalTransition, or a store error.
func (r *JobRepository) UpdateStatus(ctx context.Context, id string, status domain.JobStatus, errMsg *string) error {
	updates := map[string]interface{}{"status": status}
	if status.Terminal() {
		updates["end_time"] = time.Now()
	}
	if errMsg != nil {
		updates["error_message"] = *errMsg
	}

	result := r.db.WithContext(ctx).Model(&domain.Job{}).
		Where("job_id = ? AND status NOT IN ?", id, terminalJobStatuses).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.missingOrTerminal(ctx, id)
	}
	return nil
}

func (r *JobRepository) missingOrTerminal(ctx context.Context, id string) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Job{}).Where("job_id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrIllegalTransition
}
