package relay

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates bad or missing caller input. Requests failing
	// validation are rejected before any remote call is made.
	ErrValidation = errors.New("invalid request")

	// ErrUnknownTask indicates a push event referenced a task ID this session
	// does not track: stale, already consumed, or never created.
	ErrUnknownTask = errors.New("unknown task")

	// ErrTaskNotFound indicates a fetch of an unknown or already consumed task.
	ErrTaskNotFound = errors.New("task not found")
)

// RemoteError wraps a transport or remote-service failure during a task
// operation. The underlying message is surfaced to the caller unsanitized.
type RemoteError struct {
	Op  string // "submit", "get", or "cancel"
	Err error
}

// Error implements the error interface for RemoteError.
func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *RemoteError) Unwrap() error {
	return e.Err
}

// TaskFailedError reports a task the remote agent marked failed in the
// synchronous submission response.
type TaskFailedError struct {
	TaskID string
}

// Error implements the error interface for TaskFailedError.
func (e *TaskFailedError) Error() string {
	return fmt.Sprintf("task %s failed on submission", e.TaskID)
}
