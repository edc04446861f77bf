package compare

import "fmt"

// ValidationError reports input that cannot be compared at all.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(reason string, err error) error {
	return &ValidationError{Reason: reason, Err: err}
}
