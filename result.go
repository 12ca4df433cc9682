package gocelery

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/taoh/gocelery-client/backend"
	"github.com/taoh/gocelery-client/serializer"
)

// ResultStatus is the valid statuses for task executions
type ResultStatus string

// ResultStatus values
const (
	Pending ResultStatus = "PENDING"
	Started ResultStatus = "STARTED"
	Success ResultStatus = "SUCCESS"
	Retry   ResultStatus = "RETRY"
	Failure ResultStatus = "FAILURE"
	Revoked ResultStatus = "REVOKED"
)

// Terminal reports whether the status can no longer change.
func (s ResultStatus) Terminal() bool {
	return s == Success || s == Failure || s == Revoked
}

// TaskResult is the result record workers write to the backend
type TaskResult struct {
	ID        string       `json:"task_id"`
	Result    interface{}  `json:"result"`
	Status    ResultStatus `json:"status"`
	TraceBack string       `json:"traceback"`
}

func (t TaskResult) String() string {
	return fmt.Sprintf("ID: %s, Status: %s", t.ID, t.Status)
}

// AsyncResult correlates a dispatched task id with the backend record
// of its outcome. The handle itself is immutable; every query goes back
// to the backend, so queries can be repeated any number of times.
// Discarding the handle does not cancel the task.
type AsyncResult struct {
	taskID       string
	backend      backend.Backend
	client       *Client
	pollInterval time.Duration
}

// NewAsyncResult builds a handle for the given task id against the
// given backend. Both are required.
func NewAsyncResult(taskID string, b backend.Backend) (*AsyncResult, error) {
	if taskID == "" {
		return nil, ErrInvalidTaskID
	}
	if b == nil {
		return nil, ErrBackendUnavailable
	}
	return &AsyncResult{
		taskID:       taskID,
		backend:      b,
		pollInterval: 500 * time.Millisecond,
	}, nil
}

// TaskID returns the correlating identifier, fixed at creation.
func (r *AsyncResult) TaskID() string {
	return r.taskID
}

// Equal reports whether both handles refer to the same task.
func (r *AsyncResult) Equal(other *AsyncResult) bool {
	return other != nil && r.taskID == other.taskID
}

func (r *AsyncResult) String() string {
	return fmt.Sprintf("AsyncResult: %s", r.taskID)
}

// resultBackend resolves the backend capability. Handles minted by a
// client share the client's backend, which may connect after the handle
// is created.
func (r *AsyncResult) resultBackend() backend.Backend {
	if r.backend != nil {
		return r.backend
	}
	if r.client != nil {
		return r.client.Backend()
	}
	return nil
}

// State queries the backend once. A task with no record yet reports
// Pending; that is never an error.
func (r *AsyncResult) State() (*TaskResult, error) {
	be := r.resultBackend()
	if be == nil {
		return nil, ErrBackendUnavailable
	}
	message, err := be.GetResult(r.taskID)
	if err != nil {
		log.Error("Failed to read task result: ", err)
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if message == nil {
		return &TaskResult{ID: r.taskID, Status: Pending}, nil
	}

	s, err := serializer.NewSerializer(message.ContentType)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown content type %s", ErrBackendUnavailable, message.ContentType)
	}
	var taskResult TaskResult
	if err = s.Deserialize(message.Body, &taskResult); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if taskResult.ID == "" {
		taskResult.ID = r.taskID
	}
	return &taskResult, nil
}

// Get polls the backend until the task reaches a terminal state or the
// timeout expires. A timeout of zero polls forever.
func (r *AsyncResult) Get(timeout time.Duration) (interface{}, error) {
	deadline := time.Now().Add(timeout)
	for {
		taskResult, err := r.State()
		if err != nil {
			return nil, err
		}
		switch taskResult.Status {
		case Success:
			return taskResult.Result, nil
		case Failure, Revoked:
			return nil, &TaskError{
				TaskID:    r.taskID,
				Status:    taskResult.Status,
				TraceBack: taskResult.TraceBack,
			}
		}

		wait := r.pollInterval
		if timeout > 0 {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return nil, ErrResultTimeout
			}
			if remaining < wait {
				wait = remaining
			}
		}
		time.Sleep(wait)
	}
}
