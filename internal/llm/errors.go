package llm

import "fmt"

// ExternalCallError is the error marker of a failed model call. Message is
// recorded verbatim as the task error.
type ExternalCallError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *ExternalCallError) Error() string {
	return e.Message
}

func (e *ExternalCallError) Unwrap() error { return e.Err }

func callFailed(err error) *ExternalCallError {
	return &ExternalCallError{Message: err.Error(), Err: err}
}

func httpFailed(status int, detail string) *ExternalCallError {
	return &ExternalCallError{StatusCode: status, Message: fmt.Sprintf("HTTP %d: %s", status, detail)}
}
