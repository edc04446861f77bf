package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a job, task or detail record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrIllegalTransition is returned when a status update would leave a terminal state.
	ErrIllegalTransition = errors.New("status already terminal")

	// ErrOutputRecorded is returned when a task's output was already written.
	ErrOutputRecorded = errors.New("task output already recorded")
)

// PersistenceError wraps a failed store operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = ErrNotFound
	}
	return &PersistenceError{Op: op, Err: err}
}
