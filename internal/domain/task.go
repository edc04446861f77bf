package domain

import "time"

// TaskStatus is the lifecycle state of one pipeline step.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// TaskType selects which detail table a task owns.
type TaskType string

const (
	TaskTypeVLMExtraction  TaskType = "vlm_extraction"
	TaskTypeNERProcessing  TaskType = "ner_processing"
	TaskTypeJSONComparison TaskType = "json_comparison"
	TaskTypeVLMReview      TaskType = "vlm_review"
)

// Pipeline positions. TaskOrder is unique within a job.
const (
	OrderVLM     = 1
	OrderNER1    = 2
	OrderNER2    = 3
	OrderCompare = 4
	OrderReview  = 5
)

// Task is one step's execution record.
type Task struct {
	TaskID       string     `gorm:"column:task_id;type:text;primaryKey" json:"task_id"`
	JobID        string     `gorm:"column:job_id;type:text;not null;uniqueIndex:idx_tasks_job_order" json:"job_id"`
	TaskOrder    int        `gorm:"not null;uniqueIndex:idx_tasks_job_order" json:"task_order"`
	TaskType     TaskType   `gorm:"type:text;not null" json:"task_type"`
	Status       TaskStatus `gorm:"type:text;not null;default:pending" json:"status"`
	StartTime    *time.Time `json:"start_time"`
	EndTime      *time.Time `json:"end_time"`
	ErrorMessage *string    `gorm:"type:text" json:"error_message"`
	CreatedAt    time.Time  `json:"-"`
	UpdatedAt    time.Time  `json:"-"`
}

// TableName returns the database table name for Task.
func (Task) TableName() string {
	return "tasks"
}
