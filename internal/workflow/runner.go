package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/timmy/nercompare/internal/compare"
	"github.com/timmy/nercompare/internal/config"
	"github.com/timmy/nercompare/internal/document"
	"github.com/timmy/nercompare/internal/domain"
	"github.com/timmy/nercompare/internal/events"
	"github.com/timmy/nercompare/internal/llm"
	"github.com/timmy/nercompare/internal/logger"
)

// DefaultName is recorded as the workflow name of every job.
const DefaultName = "vlm_ner_comparison_review"

const (
	vlmArtifact  = "vlm_output.txt"
	ner1Artifact = "ner1.json"
	ner2Artifact = "ner2.json"
)

// Options configures a Runner.
type Options struct {
	WorkflowName  string
	TempDir       string
	KeepArtifacts bool
	Events        events.Publisher
}

// Runner drives the five-step pipeline of a job:
// VLM extraction, two NER runs, entity comparison and an optional review.
// Steps run strictly in order and the first failure ends the job.
type Runner struct {
	executor      StepExecutor
	store         Gateway
	events        events.Publisher
	workflowName  string
	tempDir       string
	keepArtifacts bool
}

// NewRunner creates a Runner.
func NewRunner(executor StepExecutor, store Gateway, opts Options) *Runner {
	if opts.WorkflowName == "" {
		opts.WorkflowName = DefaultName
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.Events == nil {
		opts.Events = events.Nop{}
	}
	return &Runner{
		executor:      executor,
		store:         store,
		events:        opts.Events,
		workflowName:  opts.WorkflowName,
		tempDir:       opts.TempDir,
		keepArtifacts: opts.KeepArtifacts,
	}
}

// Spec is one job to run.
type Spec struct {
	JobID string
	Input string
	Steps config.StepSet
}

// Outcome is what a finished job produced.
type Outcome struct {
	JobID      string
	Status     domain.JobStatus
	Err        error
	VLMText    string
	Comparison *compare.Result
	Reviewed   bool
	ReviewText string
	// Responses holds the model reply of each step by task order.
	Responses map[int]*llm.Response
}

// Failed reports whether the job ended in failure.
func (o *Outcome) Failed() bool {
	return o.Status == domain.JobStatusFailed
}

// NewJob records a job for input and returns its ID.
func (r *Runner) NewJob(ctx context.Context, input string) (string, error) {
	jobID, err := r.store.CreateJob(ctx, r.workflowName, input)
	if err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}
	events.Emit(ctx, r.events, events.Event{Type: events.JobCreated, JobID: jobID})
	return jobID, nil
}

// Abort marks a job failed with cause.
func (r *Runner) Abort(ctx context.Context, jobID string, cause error) {
	if err := r.store.UpdateJobStatus(ctx, jobID, domain.JobStatusFailed, cause.Error()); err != nil {
		logger.CtxError(ctx, "Failed to mark job %s failed: %v", jobID, err)
	}
	events.Emit(ctx, r.events, events.Event{Type: events.JobFailed, JobID: jobID, Error: cause.Error()})
}

// run is the state of one job while it executes.
type run struct {
	spec    Spec
	dir     string
	started bool
	out     *Outcome
}

// Run executes every step of spec. The returned Outcome carries the final
// status; Outcome.Err is a *StepError when a step failed.
func (r *Runner) Run(ctx context.Context, spec Spec) *Outcome {
	ctx = logger.ForJob(ctx, spec.JobID, "workflow")

	jr := &run{
		spec: spec,
		dir:  filepath.Join(r.tempDir, spec.JobID),
		out:  &Outcome{JobID: spec.JobID, Status: domain.JobStatusStarted, Responses: map[int]*llm.Response{}},
	}
	start := time.Now()
	logger.CtxInfo(ctx, "Starting workflow for %s", spec.Input)

	if !r.keepArtifacts {
		defer os.RemoveAll(jr.dir)
	}

	if err := r.runSteps(ctx, jr); err != nil {
		jr.out.Status = domain.JobStatusFailed
		jr.out.Err = err
		r.Abort(ctx, spec.JobID, err)
		logger.Since(start).Error(ctx, "Workflow failed: %v", err)
		return jr.out
	}

	jr.out.Status = domain.JobStatusCompleted
	if err := r.store.UpdateJobStatus(ctx, spec.JobID, domain.JobStatusCompleted, ""); err != nil {
		logger.CtxError(ctx, "Failed to mark job completed: %v", err)
	}
	events.Emit(ctx, r.events, events.Event{Type: events.JobCompleted, JobID: spec.JobID})
	logger.Since(start).Info(ctx, "Workflow completed")
	return jr.out
}

func (r *Runner) runSteps(ctx context.Context, jr *run) error {
	steps := jr.spec.Steps
	if steps.VLM == nil || steps.NER1 == nil || steps.NER2 == nil {
		return &StepError{Step: "Setup", Err: errors.New("vlm, ner1 and ner2 step configs are required")}
	}
	if err := os.MkdirAll(jr.dir, 0o755); err != nil {
		return &StepError{Step: "Setup", Err: fmt.Errorf("failed to create temp dir: %w", err)}
	}

	vlmText, err := r.runVLM(ctx, jr)
	if err != nil {
		return err
	}
	jr.out.VLMText = vlmText

	vlmPath := filepath.Join(jr.dir, vlmArtifact)
	if err := os.WriteFile(vlmPath, []byte(vlmText), 0o644); err != nil {
		return &StepError{Step: "NER1", TaskType: domain.TaskTypeNERProcessing, Err: err}
	}

	ner1, err := r.runNER(ctx, jr, domain.OrderNER1, "NER1", steps.NER1, vlmPath)
	if err != nil {
		return err
	}
	ner2, err := r.runNER(ctx, jr, domain.OrderNER2, "NER2", steps.NER2, vlmPath)
	if err != nil {
		return err
	}

	result, err := r.runComparison(ctx, jr, ner1, ner2)
	if err != nil {
		return err
	}
	jr.out.Comparison = result

	mismatches := result.Mismatches()
	if len(mismatches) == 0 {
		logger.CtxInfo(ctx, "NER runs agree; review skipped")
		return nil
	}
	if steps.Review == nil {
		logger.With(logger.Fields{logger.FieldCount: len(mismatches)}).
			Info(ctx, "No review config; %d mismatches left unreviewed", len(mismatches))
		return nil
	}
	return r.runReview(ctx, jr, mismatches)
}

// task is a created task while its step runs.
type task struct {
	id    string
	order int
	typ   domain.TaskType
	step  string
}

// beginTask creates the task, records its input and marks it running. The
// job moves to in-progress with its first task.
func (r *Runner) beginTask(ctx context.Context, jr *run, order int, typ domain.TaskType, step string, details domain.TaskDetails) (*task, context.Context, error) {
	taskID, err := r.store.CreateTask(ctx, jr.spec.JobID, order, typ)
	if err != nil {
		return nil, ctx, &StepError{Step: step, TaskType: typ, Err: fmt.Errorf("failed to create task: %w", err)}
	}
	t := &task{id: taskID, order: order, typ: typ, step: step}
	ctx = logger.ForTask(ctx, taskID, order, string(typ))

	if details != nil {
		if err := r.store.RecordTaskInput(ctx, taskID, details); err != nil {
			logger.CtxWarn(ctx, "Failed to record %s input: %v", step, err)
		}
	}

	if err := r.store.UpdateTaskStatus(ctx, taskID, domain.TaskStatusRunning, ""); err != nil {
		logger.CtxWarn(ctx, "Failed to mark %s task running: %v", step, err)
	}
	if !jr.started {
		jr.started = true
		jr.out.Status = domain.JobStatusInProgress
		if err := r.store.UpdateJobStatus(ctx, jr.spec.JobID, domain.JobStatusInProgress, ""); err != nil {
			logger.CtxWarn(ctx, "Failed to mark job in-progress: %v", err)
		}
		events.Emit(ctx, r.events, events.Event{Type: events.JobStarted, JobID: jr.spec.JobID})
	}

	events.Emit(ctx, r.events, r.taskEvent(events.TaskStarted, jr, t, ""))
	logger.CtxInfo(ctx, "%s step started", step)
	return t, ctx, nil
}

func (r *Runner) completeTask(ctx context.Context, jr *run, t *task, out domain.TaskOutput, responseID string) {
	if err := r.store.RecordTaskOutput(ctx, t.id, t.typ, out, responseID); err != nil {
		logger.CtxWarn(ctx, "Failed to record %s output: %v", t.step, err)
	}
	if err := r.store.UpdateTaskStatus(ctx, t.id, domain.TaskStatusCompleted, ""); err != nil {
		logger.CtxWarn(ctx, "Failed to mark %s task completed: %v", t.step, err)
	}
	events.Emit(ctx, r.events, r.taskEvent(events.TaskCompleted, jr, t, ""))
	logger.CtxInfo(ctx, "%s step completed", t.step)
}

// failTask marks t failed with the verbatim cause and returns the job's
// terminal error.
func (r *Runner) failTask(ctx context.Context, jr *run, t *task, cause error) error {
	if err := r.store.UpdateTaskStatus(ctx, t.id, domain.TaskStatusFailed, cause.Error()); err != nil {
		logger.CtxWarn(ctx, "Failed to mark %s task failed: %v", t.step, err)
	}
	events.Emit(ctx, r.events, r.taskEvent(events.TaskFailed, jr, t, cause.Error()))
	return &StepError{Step: t.step, TaskType: t.typ, Err: cause}
}

func (r *Runner) taskEvent(typ events.Type, jr *run, t *task, errMsg string) events.Event {
	return events.Event{
		Type:      typ,
		JobID:     jr.spec.JobID,
		TaskID:    t.id,
		TaskOrder: t.order,
		TaskType:  string(t.typ),
		Error:     errMsg,
	}
}

// call executes a model step and extracts the first choice's content.
func (r *Runner) call(ctx context.Context, jr *run, order int, in llm.Input, cfg *config.StepConfig) (*llm.Response, string, error) {
	resp, err := r.executor.Execute(ctx, in, cfg)
	if err != nil {
		return nil, "", err
	}
	jr.out.Responses[order] = resp
	content, err := resp.Content()
	if err != nil {
		return resp, "", err
	}
	return resp, content, nil
}

func (r *Runner) runVLM(ctx context.Context, jr *run) (string, error) {
	cfg := jr.spec.Steps.VLM
	src := document.Inspect(jr.spec.Input)

	details := &domain.VLMDetails{
		InputSource: jr.spec.Input,
		Request:     requestParams(cfg),
	}
	contentType, content, inputErr := document.InputContent(src)
	details.InputContentType = contentType
	details.InputContent = content
	if src.Kind == document.KindPDF && !src.Remote {
		if pages, err := localPageCount(src.Ref); err == nil {
			details.PageCount = &pages
		}
	}

	t, ctx, err := r.beginTask(ctx, jr, domain.OrderVLM, domain.TaskTypeVLMExtraction, "VLM", details)
	if err != nil {
		return "", err
	}
	if inputErr != nil {
		return "", r.failTask(ctx, jr, t, fmt.Errorf("failed to read input: %w", inputErr))
	}

	resp, text, err := r.call(ctx, jr, t.order, llm.FileInput(jr.spec.Input), cfg)
	if err != nil {
		return "", r.failTask(ctx, jr, t, err)
	}

	r.completeTask(ctx, jr, t, domain.TextOutput(text), resp.ID)
	return text, nil
}

func (r *Runner) runNER(ctx context.Context, jr *run, order int, step string, cfg *config.StepConfig, vlmPath string) (*llm.Response, error) {
	details := &domain.NERDetails{
		InputText: jr.out.VLMText,
		Request:   requestParams(cfg),
	}
	t, ctx, err := r.beginTask(ctx, jr, order, domain.TaskTypeNERProcessing, step, details)
	if err != nil {
		return nil, err
	}

	resp, err := r.executor.Execute(ctx, llm.FileInput(vlmPath), cfg)
	if err != nil {
		return nil, r.failTask(ctx, jr, t, err)
	}
	jr.out.Responses[order] = resp

	r.completeTask(ctx, jr, t, domain.JSONOutput(resp.Body()), resp.ID)
	return resp, nil
}

func (r *Runner) runComparison(ctx context.Context, jr *run, ner1, ner2 *llm.Response) (*compare.Result, error) {
	path1 := filepath.Join(jr.dir, ner1Artifact)
	path2 := filepath.Join(jr.dir, ner2Artifact)
	details := &domain.ComparisonDetails{InputJSONPath1: path1, InputJSONPath2: path2}

	t, ctx, err := r.beginTask(ctx, jr, domain.OrderCompare, domain.TaskTypeJSONComparison, "Comparison", details)
	if err != nil {
		return nil, err
	}

	doc1 := entityPayload(ctx, "NER1", ner1, jr.spec.Steps.NER1)
	doc2 := entityPayload(ctx, "NER2", ner2, jr.spec.Steps.NER2)
	if err := writeArtifact(path1, doc1); err != nil {
		return nil, r.failTask(ctx, jr, t, err)
	}
	if err := writeArtifact(path2, doc2); err != nil {
		return nil, r.failTask(ctx, jr, t, err)
	}

	result, err := compare.CompareEntityJSON(doc1, doc2)
	if err != nil {
		return nil, r.failTask(ctx, jr, t, err)
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		return nil, r.failTask(ctx, jr, t, err)
	}

	counts := result.Counts()
	logger.With(logger.Fields{
		"match":    counts[compare.Match],
		"addition": counts[compare.Addition],
		"omission": counts[compare.Omission],
	}).Info(ctx, "Compared %d entities", len(result.Entities))

	r.completeTask(ctx, jr, t, domain.JSONOutput(encoded), "")
	return &result, nil
}

func (r *Runner) runReview(ctx context.Context, jr *run, mismatches []compare.ResultEntity) error {
	payload := mismatchJSON(mismatches)
	cfg, injected := InjectMismatches(jr.spec.Steps.Review, payload)
	if !injected {
		logger.CtxWarn(ctx, "Review prompt has no mismatch placeholder; appending mismatches to the user prompt")
	}

	src := document.Inspect(jr.spec.Input)
	contentType := domain.ContentText
	switch {
	case src.Remote:
		contentType = domain.ContentURL
	case src.Kind == document.KindImage:
		contentType = domain.ContentImageBase64
	case src.Kind == document.KindPDF:
		contentType = domain.ContentPDFBase64
	}
	details := &domain.ReviewDetails{
		InputSource:      jr.spec.Input,
		InputContentType: contentType,
		MismatchJSON:     domain.JSON(payload),
		Request:          requestParams(cfg),
	}

	t, ctx, err := r.beginTask(ctx, jr, domain.OrderReview, domain.TaskTypeVLMReview, "Review", details)
	if err != nil {
		return err
	}

	resp, text, err := r.call(ctx, jr, t.order, llm.FileInput(jr.spec.Input), cfg)
	if err != nil {
		return r.failTask(ctx, jr, t, err)
	}

	jr.out.Reviewed = true
	jr.out.ReviewText = text
	r.completeTask(ctx, jr, t, domain.TextOutput(text), resp.ID)
	return nil
}

func requestParams(cfg *config.StepConfig) domain.RequestParams {
	params := domain.RequestParams{
		Model:           cfg.Model,
		SystemPrompt:    cfg.SystemPrompt,
		UserPrompt:      cfg.UserPrompt,
		Temperature:     cfg.Temperature,
		TopP:            cfg.TopP,
		Stream:          cfg.Stream,
		ProviderOptions: domain.JSON(cfg.Provider),
	}
	if b, err := json.Marshal(cfg.ResponseFormat); err == nil {
		params.ResponseFormat = domain.JSON(b)
	}
	return params
}

func localPageCount(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return document.PageCount(data)
}

func writeArtifact(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
