package handler

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/nercompare/internal/api/middleware"
	"github.com/timmy/nercompare/internal/document"
	"github.com/timmy/nercompare/internal/domain"
	"github.com/timmy/nercompare/internal/repository"
)

// TaskHandler serves task outputs and inputs.
type TaskHandler struct {
	store JobStore
}

func NewTaskHandler(store JobStore) *TaskHandler {
	return &TaskHandler{store: store}
}

// TaskOutput handles GET /api/v1/tasks/:id/output.
func (h *TaskHandler) TaskOutput(c *gin.Context) {
	ctx := c.Request.Context()
	taskID := c.Param("id")

	task, err := h.store.GetTask(ctx, taskID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Task %s not found", taskID)})
		return
	}
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to load task")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load task"})
		return
	}

	out, err := h.store.GetTaskOutput(ctx, taskID, task.TaskType)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		middleware.GetLogger(c).WithError(err).Error("Failed to load task output")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load task output"})
		return
	}

	resp := gin.H{"task_id": taskID, "task_type": task.TaskType}
	switch task.TaskType {
	case domain.TaskTypeVLMExtraction, domain.TaskTypeVLMReview:
		resp["output_text"] = out.Text
	case domain.TaskTypeNERProcessing:
		resp["output_json"] = out.JSON
	case domain.TaskTypeJSONComparison:
		resp["output_comparison_json"] = out.JSON
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Unknown task type %s for task %s", task.TaskType, taskID),
		})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// InputContent handles GET /api/v1/tasks/:id/input_content.
func (h *TaskHandler) InputContent(c *gin.Context) {
	taskID := c.Param("id")

	details, err := h.store.GetVLMInput(c.Request.Context(), taskID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && details.InputContent == "") {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Input content not found for task %s", taskID)})
		return
	}
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to load task input")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch input content"})
		return
	}

	switch details.InputContentType {
	case domain.ContentImageBase64:
		mimeType := "image/jpeg"
		if data, err := base64.StdEncoding.DecodeString(details.InputContent); err == nil {
			mimeType = document.ImageMIMEType(document.Inspect(details.InputSource), data)
		}
		c.JSON(http.StatusOK, gin.H{
			"task_id":      taskID,
			"content_type": details.InputContentType,
			"mime_type":    mimeType,
			"base64_data":  details.InputContent,
		})
	case domain.ContentPDFBase64:
		c.JSON(http.StatusOK, gin.H{
			"task_id":      taskID,
			"content_type": details.InputContentType,
			"message":      "PDF preview not directly supported via base64. Consider serving file.",
		})
	case domain.ContentURL:
		c.JSON(http.StatusOK, gin.H{
			"task_id":      taskID,
			"content_type": details.InputContentType,
			"url":          details.InputContent,
		})
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Input content type '%s' not suitable for display.", details.InputContentType),
		})
	}
}
