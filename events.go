package gocelery

import (
	"os"
	"strings"
	"time"
)

var hostname, _ = os.Hostname()
var pid = os.Getpid()

const (
	identity = "gocelery"
	system   = "golang"
)

// EventType is enum of valid event types in celery
type EventType string

// Valid EventTypes. Only producer-side events are emitted by this
// client; worker lifecycle events come from the consuming side.
const (
	None     EventType = "None"
	TaskSent EventType = "task-sent"
)

// RoutingKey returns celery routing keys for events
func (eventType EventType) RoutingKey() string {
	return strings.Replace(string(eventType), "-", ".", -1)
}

// NewTaskSentEvent creates the event celery producers publish when a
// task message has been handed to the broker
func NewTaskSentEvent(id string, name string, args []interface{}, kwargs map[string]interface{}, queue string) map[string]interface{} {
	taskEvent := map[string]interface{}{
		"type":      TaskSent,
		"uuid":      id,
		"name":      name,
		"args":      args,
		"kwargs":    kwargs,
		"queue":     queue,
		"sw_ident":  identity,
		"sw_sys":    system,
		"hostname":  hostname,
		"pid":       pid,
		"timestamp": time.Now().Unix(),
	}
	return taskEvent
}
