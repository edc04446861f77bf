package domain

// RequestParams mirrors the model parameters sent for a step.
type RequestParams struct {
	Model           string  `gorm:"type:text" json:"model"`
	SystemPrompt    string  `gorm:"type:text" json:"system_prompt"`
	UserPrompt      string  `gorm:"type:text" json:"user_prompt"`
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"top_p"`
	Stream          bool    `json:"stream"`
	ResponseFormat  JSON    `gorm:"type:text" json:"response_format"`
	ProviderOptions JSON    `gorm:"type:text" json:"provider_options"`
}

// InputContentType values recorded for VLM and review inputs.
const (
	ContentImageBase64 = "image_base64"
	ContentPDFBase64   = "pdf_base64"
	ContentText        = "text"
	ContentURL         = "url"
)

// TaskDetails is a task-type specific detail record.
type TaskDetails interface {
	DetailTaskType() TaskType
	SetTaskID(id string)
}

// VLMDetails belongs to a vlm_extraction task.
type VLMDetails struct {
	TaskID           string        `gorm:"column:task_id;type:text;primaryKey" json:"task_id"`
	InputSource      string        `gorm:"type:text" json:"input_source"`
	InputContentType string        `gorm:"type:text" json:"input_content_type"`
	InputContent     string        `gorm:"type:text" json:"-"`
	PageCount        *int          `json:"page_count,omitempty"`
	Request          RequestParams `gorm:"embedded;embeddedPrefix:api_request_" json:"request"`
	OutputText       *string       `gorm:"type:text" json:"output_text"`
	APIResponseID    *string       `gorm:"type:text" json:"api_response_id"`
}

func (VLMDetails) TableName() string        { return "task_details_vlm" }
func (VLMDetails) DetailTaskType() TaskType { return TaskTypeVLMExtraction }
func (d *VLMDetails) SetTaskID(id string)   { d.TaskID = id }

// NERDetails belongs to a ner_processing task.
type NERDetails struct {
	TaskID        string        `gorm:"column:task_id;type:text;primaryKey" json:"task_id"`
	InputText     string        `gorm:"type:text" json:"input_text"`
	Request       RequestParams `gorm:"embedded;embeddedPrefix:api_request_" json:"request"`
	OutputJSON    JSON          `gorm:"type:text" json:"output_json"`
	APIResponseID *string       `gorm:"type:text" json:"api_response_id"`
}

func (NERDetails) TableName() string        { return "task_details_ner" }
func (NERDetails) DetailTaskType() TaskType { return TaskTypeNERProcessing }
func (d *NERDetails) SetTaskID(id string)   { d.TaskID = id }

// ComparisonDetails belongs to a json_comparison task.
type ComparisonDetails struct {
	TaskID               string `gorm:"column:task_id;type:text;primaryKey" json:"task_id"`
	InputJSONPath1       string `gorm:"column:input_json_path1;type:text" json:"input_json_path1"`
	InputJSONPath2       string `gorm:"column:input_json_path2;type:text" json:"input_json_path2"`
	OutputComparisonJSON JSON   `gorm:"type:text" json:"output_comparison_json"`
}

func (ComparisonDetails) TableName() string        { return "task_details_comparison" }
func (ComparisonDetails) DetailTaskType() TaskType { return TaskTypeJSONComparison }
func (d *ComparisonDetails) SetTaskID(id string)   { d.TaskID = id }

// ReviewDetails belongs to a vlm_review task.
type ReviewDetails struct {
	TaskID           string        `gorm:"column:task_id;type:text;primaryKey" json:"task_id"`
	InputSource      string        `gorm:"type:text" json:"input_source"`
	InputContentType string        `gorm:"type:text" json:"input_content_type"`
	MismatchJSON     JSON          `gorm:"type:text" json:"mismatch_json"`
	Request          RequestParams `gorm:"embedded;embeddedPrefix:api_request_" json:"request"`
	OutputText       *string       `gorm:"type:text" json:"output_text"`
	APIResponseID    *string       `gorm:"type:text" json:"api_response_id"`
}

func (ReviewDetails) TableName() string        { return "task_details_review" }
func (ReviewDetails) DetailTaskType() TaskType { return TaskTypeVLMReview }
func (d *ReviewDetails) SetTaskID(id string)   { d.TaskID = id }

// TaskOutput is the payload a step produces. Text steps fill Text,
// NER and comparison steps fill JSON.
type TaskOutput struct {
	Text *string
	JSON JSON
}

// TextOutput wraps s as a TaskOutput.
func TextOutput(s string) TaskOutput {
	return TaskOutput{Text: &s}
}

// JSONOutput wraps raw JSON as a TaskOutput.
func JSONOutput(raw []byte) TaskOutput {
	return TaskOutput{JSON: JSON(raw)}
}
