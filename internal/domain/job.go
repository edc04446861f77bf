package domain

import "time"

// JobStatus is the lifecycle state of a workflow job.
// Transitions are monotonic: started -> in-progress -> completed | failed.
type JobStatus string

const (
	JobStatusStarted    JobStatus = "started"
	JobStatusInProgress JobStatus = "in-progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is one end-to-end pipeline invocation.
type Job struct {
	JobID        string     `gorm:"column:job_id;type:text;primaryKey" json:"job_id"`
	WorkflowName string     `gorm:"type:text;not null" json:"workflow_name"`
	InputSource  string     `gorm:"type:text;not null" json:"input_source"`
	Status       JobStatus  `gorm:"type:text;not null;index:idx_jobs_status;default:started" json:"job_status"`
	StartTime    time.Time  `gorm:"not null" json:"start_time"`
	EndTime      *time.Time `json:"end_time"`
	ErrorMessage *string    `gorm:"type:text" json:"error_message"`
	CreatedAt    time.Time  `json:"-"`
	UpdatedAt    time.Time  `json:"-"`
	Tasks        []Task     `gorm:"foreignKey:JobID;references:JobID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the database table name for Job.
func (Job) TableName() string {
	return "jobs"
}
