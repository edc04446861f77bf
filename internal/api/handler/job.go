package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/timmy/nercompare/internal/api/middleware"
	"github.com/timmy/nercompare/internal/config"
	"github.com/timmy/nercompare/internal/jobs"
	"github.com/timmy/nercompare/internal/repository"
	"github.com/timmy/nercompare/internal/storage"
	"github.com/timmy/nercompare/internal/workflow"
)

// JobStarter records new jobs and fails them when they cannot be run.
type JobStarter interface {
	NewJob(ctx context.Context, input string) (string, error)
	Abort(ctx context.Context, jobID string, cause error)
}

// JobQueue runs jobs in the background and tracks the unfinished ones.
type JobQueue interface {
	Submit(spec workflow.Spec) (*jobs.Handle, error)
	Get(jobID string) (*jobs.Handle, error)
}

// JobHandler handles job upload and status endpoints.
type JobHandler struct {
	store     JobStore
	starter   JobStarter
	jobs      JobQueue
	steps     config.StepPaths
	uploadDir string
	maxUpload int64
	archive   *storage.Archive
}

// JobHandlerConfig configures a JobHandler.
type JobHandlerConfig struct {
	Steps       config.StepPaths
	UploadDir   string
	MaxUploadMB int64
	// Archive is optional.
	Archive *storage.Archive
}

func NewJobHandler(store JobStore, starter JobStarter, queue JobQueue, cfg JobHandlerConfig) *JobHandler {
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 16
	}
	return &JobHandler{
		store:     store,
		starter:   starter,
		jobs:      queue,
		steps:     cfg.Steps,
		uploadDir: cfg.UploadDir,
		maxUpload: cfg.MaxUploadMB << 20,
		archive:   cfg.Archive,
	}
}

// StartJob handles POST /api/v1/jobs.
func (h *JobHandler) StartJob(c *gin.Context) {
	ctx := c.Request.Context()
	log := middleware.GetLogger(c)

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file part"})
		return
	}
	if file.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No selected file"})
		return
	}
	if file.Size > h.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("File exceeds the %d MB upload limit", h.maxUpload>>20),
		})
		return
	}

	filename := uuid.New().String() + "_" + filepath.Base(file.Filename)
	uploadPath := filepath.Join(h.uploadDir, filename)
	if err := c.SaveUploadedFile(file, uploadPath); err != nil {
		log.WithError(err).Error("Failed to save upload")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process file: " + err.Error()})
		return
	}

	discard := func() {
		if err := os.Remove(uploadPath); err != nil {
			log.WithError(err).Warn("Failed to clean up upload")
		}
	}

	if missing := h.steps.Missing(); len(missing) > 0 {
		discard()
		log.WithField("missing", missing).Error("Step configuration not found")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Missing configuration file: " + filepath.Base(missing[0]),
		})
		return
	}
	steps, err := h.steps.Load()
	if err != nil {
		discard()
		log.WithError(err).Error("Invalid step configuration")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Invalid configuration: " + err.Error()})
		return
	}

	archived := false
	if h.archive != nil {
		if url, err := h.archive.StoreFile(ctx, uploadPath); err != nil {
			log.WithError(err).Warn("Failed to archive upload")
		} else {
			archived = true
			log.WithField("url", url).Info("Upload archived")
		}
	}

	jobID, err := h.starter.NewJob(ctx, uploadPath)
	if err != nil {
		discard()
		if archived {
			if err := h.archive.Remove(ctx, filename); err != nil {
				log.WithError(err).Warn("Failed to remove archived upload")
			}
		}
		log.WithError(err).Error("Failed to create job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create job record in database"})
		return
	}

	if _, err := h.jobs.Submit(workflow.Spec{JobID: jobID, Input: uploadPath, Steps: steps}); err != nil {
		h.starter.Abort(ctx, jobID, err)
		status := http.StatusInternalServerError
		if errors.Is(err, jobs.ErrShuttingDown) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": "Failed to start job: " + err.Error()})
		return
	}

	log.WithField("job_id", jobID).Info("Job submitted")
	c.JSON(http.StatusAccepted, gin.H{
		"message":           "File uploaded and processing started.",
		"job_id":            jobID,
		"uploaded_filename": filename,
	})
}

// JobStatus handles GET /api/v1/jobs/:id/status. "active" is false for a
// job this process no longer runs, so an unfinished status with active
// false means the job was cut short by a restart.
func (h *JobHandler) JobStatus(c *gin.Context) {
	ctx := c.Request.Context()
	jobID := c.Param("id")

	job, err := h.store.GetJobStatus(ctx, jobID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Job %s not found", jobID)})
		return
	}
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to load job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load job status"})
		return
	}

	tasks, err := h.store.GetTasksForJob(ctx, jobID)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to load tasks")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load job status"})
		return
	}

	_, err = h.jobs.Get(jobID)
	active := err == nil

	c.JSON(http.StatusOK, gin.H{
		"job_id":        job.JobID,
		"active":        active,
		"job_status":    job.Status,
		"start_time":    job.StartTime,
		"end_time":      job.EndTime,
		"error_message": job.ErrorMessage,
		"input_source":  job.InputSource,
		"workflow_name": job.WorkflowName,
		"tasks":         tasks,
	})
}
