package workflow

import (
	"fmt"

	"github.com/timmy/nercompare/internal/domain"
)

// StepError is the terminal failure of a job: the step that failed and why.
type StepError struct {
	Step     string
	TaskType domain.TaskType
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// ParseError means a step's output was not the JSON it should be.
type ParseError struct {
	Step string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s output is not valid JSON: %v", e.Step, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
