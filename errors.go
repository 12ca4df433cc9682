package gocelery

import (
	"fmt"

	"github.com/go-errors/errors"
)

// Sentinel errors returned by the client and the AsyncResult. Dispatch
// failures carry one of these as their Reason so callers can match with
// errors.Is.
var (
	// ErrInvalidTaskName is reported synchronously before a task id is
	// generated.
	ErrInvalidTaskName = errors.New("task name must not be empty")
	// ErrInvalidTaskID rejects empty ids handed to the message codec or
	// to NewAsyncResult.
	ErrInvalidTaskID = errors.New("task id must not be empty")
	// ErrNotEncodable marks a task message whose arguments cannot be
	// serialized.
	ErrNotEncodable = errors.New("task message is not serializable")
	// ErrNotReady marks a message that waited longer than
	// Config.ReadyTimeout for the connections to become usable.
	ErrNotReady = errors.New("connections not ready before deadline")
	// ErrTransport marks a message the broker rejected or failed to
	// deliver.
	ErrTransport = errors.New("broker did not accept the message")
	// ErrBackendUnavailable is returned when the result backend cannot
	// be reached. A missing result record is not an error; it is the
	// Pending state.
	ErrBackendUnavailable = errors.New("result backend unavailable")
	// ErrResultTimeout is returned by AsyncResult.Get when no terminal
	// state was recorded within the timeout.
	ErrResultTimeout = errors.New("timed out waiting for task result")
	// ErrClientClosed rejects publishes on a closed client.
	ErrClientClosed = errors.New("client is closed")
)

// DispatchError reports the failure of an asynchronous publish. Publish
// returns before the message reaches the broker, so these are delivered
// through Client.DispatchFailures instead of a return value.
type DispatchError struct {
	// TaskID of the message that failed, empty for connection-level
	// failures.
	TaskID string
	// Reason is one of the sentinel errors above.
	Reason error
	// Cause is the underlying transport or encoding error, if any.
	Cause error
}

func (e *DispatchError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("dispatch of task [%s] failed: %v", e.TaskID, e.Reason)
	}
	return fmt.Sprintf("dispatch of task [%s] failed: %v: %v", e.TaskID, e.Reason, e.Cause)
}

func (e *DispatchError) Unwrap() error {
	return e.Reason
}

// TaskError is returned by AsyncResult.Get when the task finished
// unsuccessfully on the worker.
type TaskError struct {
	TaskID    string
	Status    ResultStatus
	TraceBack string
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task [%s] finished with status %s: %s", e.TaskID, e.Status, e.TraceBack)
}
