package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/timmy/nercompare/internal/domain"
)

// TaskDetailRepository handles the per-type detail rows of tasks.
type TaskDetailRepository struct {
	db *gorm.DB
}

// NewTaskDetailRepository creates a new TaskDetailRepository.
func NewTaskDetailRepository(db *gorm.DB) *TaskDetailRepository {
	return &TaskDetailRepository{db: db}
}

// outputColumns describes where each task type keeps its output.
type outputColumns struct {
	model      interface{}
	output     string
	responseID bool
}

func columnsFor(taskType domain.TaskType) (outputColumns, error) {
	switch taskType {
	case domain.TaskTypeVLMExtraction:
		return outputColumns{model: &domain.VLMDetails{}, output: "output_text", responseID: true}, nil
	case domain.TaskTypeNERProcessing:
		return outputColumns{model: &domain.NERDetails{}, output: "output_json", responseID: true}, nil
	case domain.TaskTypeJSONComparison:
		return outputColumns{model: &domain.ComparisonDetails{}, output: "output_comparison_json"}, nil
	case domain.TaskTypeVLMReview:
		return outputColumns{model: &domain.ReviewDetails{}, output: "output_text", responseID: true}, nil
	default:
		return outputColumns{}, fmt.Errorf("unknown task type %q", taskType)
	}
}

// SaveInput inserts the detail row describing a task's request.
func (r *TaskDetailRepository) SaveInput(ctx context.Context, details domain.TaskDetails) error {
	return r.db.WithContext(ctx).Create(details).Error
}

// SaveOutput writes a task's output once. If no detail row exists yet, one
// is created holding only the output.
func (r *TaskDetailRepository) SaveOutput(ctx context.Context, taskID string, taskType domain.TaskType, out domain.TaskOutput, responseID *string) error {
	cols, err := columnsFor(taskType)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{}
	if out.Text != nil {
		updates[cols.output] = *out.Text
	} else {
		updates[cols.output] = out.JSON
	}
	if cols.responseID && responseID != nil {
		updates["api_response_id"] = *responseID
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(cols.model).
			Where("task_id = ? AND "+cols.output+" IS NULL", taskID).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			return nil
		}

		var count int64
		if err := tx.Model(cols.model).Where("task_id = ?", taskID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrOutputRecorded
		}
		return tx.Create(outputOnly(taskID, taskType, out, responseID)).Error
	})
}

func outputOnly(taskID string, taskType domain.TaskType, out domain.TaskOutput, responseID *string) domain.TaskDetails {
	switch taskType {
	case domain.TaskTypeVLMExtraction:
		return &domain.VLMDetails{TaskID: taskID, OutputText: out.Text, APIResponseID: responseID}
	case domain.TaskTypeNERProcessing:
		return &domain.NERDetails{TaskID: taskID, OutputJSON: out.JSON, APIResponseID: responseID}
	case domain.TaskTypeJSONComparison:
		return &domain.ComparisonDetails{TaskID: taskID, OutputComparisonJSON: out.JSON}
	default:
		return &domain.ReviewDetails{TaskID: taskID, OutputText: out.Text, APIResponseID: responseID}
	}
}

// GetOutput reads a task's output payload.
func (r *TaskDetailRepository) GetOutput(ctx context.Context, taskID string, taskType domain.TaskType) (domain.TaskOutput, error) {
	db := r.db.WithContext(ctx).Where("task_id = ?", taskID)

	switch taskType {
	case domain.TaskTypeVLMExtraction:
		var d domain.VLMDetails
		if err := db.First(&d).Error; err != nil {
			return domain.TaskOutput{}, err
		}
		return domain.TaskOutput{Text: d.OutputText}, nil
	case domain.TaskTypeNERProcessing:
		var d domain.NERDetails
		if err := db.First(&d).Error; err != nil {
			return domain.TaskOutput{}, err
		}
		return domain.TaskOutput{JSON: d.OutputJSON}, nil
	case domain.TaskTypeJSONComparison:
		var d domain.ComparisonDetails
		if err := db.First(&d).Error; err != nil {
			return domain.TaskOutput{}, err
		}
		return domain.TaskOutput{JSON: d.OutputComparisonJSON}, nil
	case domain.TaskTypeVLMReview:
		var d domain.ReviewDetails
		if err := db.First(&d).Error; err != nil {
			return domain.TaskOutput{}, err
		}
		return domain.TaskOutput{Text: d.OutputText}, nil
	default:
		return domain.TaskOutput{}, fmt.Errorf("unknown task type %q", taskType)
	}
}

// GetVLMInput returns the recorded input of a VLM task.
func (r *TaskDetailRepository) GetVLMInput(ctx context.Context, taskID string) (*domain.VLMDetails, error) {
	var d domain.VLMDetails
	if err := r.db.WithContext(ctx).
		Select("task_id", "input_source", "input_content_type", "input_content").
		Where("task_id = ?", taskID).
		First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}
