package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/timmy/nercompare/internal/logger"
	"github.com/timmy/nercompare/internal/workflow"
)

var (
	ErrShuttingDown = errors.New("job manager is shutting down")
	ErrUnknownJob   = errors.New("unknown job")
	ErrDuplicateJob = errors.New("job already submitted")
)

// Runner executes one job.
type Runner interface {
	Run(ctx context.Context, spec workflow.Spec) *workflow.Outcome
	Abort(ctx context.Context, jobID string, cause error)
}

// Handle tracks a submitted job until it finishes.
type Handle struct {
	JobID string

	done    chan struct{}
	outcome *workflow.Outcome
	err     error
}

// Done is closed when the job has finished.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the job finishes or ctx ends. A recovered panic is
// returned as the error.
func (h *Handle) Wait(ctx context.Context) (*workflow.Outcome, error) {
	select {
	case <-h.done:
		return h.outcome, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Manager runs jobs in the background, at most a fixed number at a time.
// A job that panics is marked failed without affecting the others.
type Manager struct {
	runner Runner
	sem    *semaphore.Weighted

	mu      sync.RWMutex
	active  map[string]*Handle
	closing bool
	wg      sync.WaitGroup
}

// NewManager creates a Manager running up to maxConcurrent jobs at once.
func NewManager(runner Runner, maxConcurrent int64) *Manager {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Manager{
		runner: runner,
		sem:    semaphore.NewWeighted(maxConcurrent),
		active: make(map[string]*Handle),
	}
}

// Submit starts spec in the background.
func (m *Manager) Submit(spec workflow.Spec) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closing {
		return nil, ErrShuttingDown
	}
	if _, ok := m.active[spec.JobID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateJob, spec.JobID)
	}

	h := &Handle{JobID: spec.JobID, done: make(chan struct{})}
	m.active[spec.JobID] = h
	m.wg.Add(1)
	go m.execute(h, spec)
	return h, nil
}

// Get returns the handle of a job that has not finished yet.
func (m *Manager) Get(jobID string) (*Handle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.active[jobID]
	if !ok {
		return nil, ErrUnknownJob
	}
	return h, nil
}

// Active returns the number of queued or running jobs.
func (m *Manager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}

// Shutdown stops accepting jobs and waits for running ones until ctx ends.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closing = true
	m.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%d jobs still running: %w", m.Active(), ctx.Err())
	}
}

func (m *Manager) execute(h *Handle, spec workflow.Spec) {
	ctx := logger.ForJob(context.Background(), spec.JobID, "jobs")

	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		delete(m.active, h.JobID)
		m.mu.Unlock()
		close(h.done)
	}()
	defer func() {
		if r := recover(); r != nil {
			h.err = fmt.Errorf("job panicked: %v", r)
			logger.With(logger.Fields{"stack": string(debug.Stack())}).Error(ctx, "Recovered panic in job: %v", r)
			m.runner.Abort(ctx, spec.JobID, h.err)
		}
	}()

	if err := m.sem.Acquire(ctx, 1); err != nil {
		h.err = err
		return
	}
	defer m.sem.Release(1)

	logger.CtxInfo(ctx, "Job started")
	h.outcome = m.runner.Run(ctx, spec)
}
