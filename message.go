package gocelery

import (
	"fmt"

	"github.com/taoh/gocelery-client/serializer"
)

// Constants
const (
	JSON string = "application/json"
)

// TaskMessage is the protocol v1 payload published for one task
// invocation. Existing consumers depend on the exact wire shape: the
// four keys id, task, args, kwargs in that order, present even when
// empty.
type TaskMessage struct {
	ID     string                 `json:"id"`
	Task   string                 `json:"task"`
	Args   []interface{}          `json:"args"`
	Kwargs map[string]interface{} `json:"kwargs"`
}

func (t TaskMessage) String() string {
	return fmt.Sprintf("ID: %s, Task: %s, Args: %v", t.ID, t.Task, t.Args)
}

// NewTaskMessage builds a task message with nil args and kwargs
// replaced by their empty wire forms so the encoder never emits null.
func NewTaskMessage(id string, task string, args []interface{}, kwargs map[string]interface{}) *TaskMessage {
	if args == nil {
		args = []interface{}{}
	}
	if kwargs == nil {
		kwargs = map[string]interface{}{}
	}
	return &TaskMessage{
		ID:     id,
		Task:   task,
		Args:   args,
		Kwargs: kwargs,
	}
}

// EncodeTaskMessage serializes a task message to its canonical JSON
// wire form. It is a pure function: identical inputs produce identical
// output.
func EncodeTaskMessage(id string, task string, args []interface{}, kwargs map[string]interface{}) (string, error) {
	if id == "" {
		return "", ErrInvalidTaskID
	}
	if task == "" {
		return "", ErrInvalidTaskName
	}
	s, err := serializer.NewSerializer(JSON)
	if err != nil {
		return "", err
	}
	body, err := s.Serialize(NewTaskMessage(id, task, args, kwargs))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotEncodable, err)
	}
	return string(body), nil
}
