package logger

// Fields is a set of structured log fields.
type Fields map[string]interface{}

// Fields carried on the context logger through a request or job.
const (
	FieldRequestID = "request_id"
	FieldJobID     = "job_id"
	FieldTaskID    = "task_id"
	FieldTaskOrder = "task_order"
	// FieldStep is the task type of the running step (vlm_extraction, ner_processing, ...).
	FieldStep      = "step"
	FieldComponent = "component"
)

// Per-entry metric fields.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldSize       = "size"
	FieldStatus     = "status"
	FieldModel      = "model"
)
