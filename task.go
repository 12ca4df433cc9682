package gocelery

import "fmt"

// Task is a named remote procedure bound to the client that created it.
// It holds no state of its own; it only forwards submissions to the
// owning client.
type Task struct {
	// Name identifies the procedure registered on the workers. Unknown
	// names are not rejected here; they fail on the worker.
	Name string

	client *Client
}

func (t *Task) String() string {
	return fmt.Sprintf("Task: %s", t.Name)
}

// Delay submits the task with the given positional and keyword
// arguments and returns a handle to its eventual result. The call
// returns as soon as the message is queued for dispatch; it never waits
// for the publish itself.
func (t *Task) Delay(args []interface{}, kwargs map[string]interface{}) (*AsyncResult, error) {
	return t.client.Publish(t, args, kwargs)
}
