package gocelery

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/taoh/gocelery-client/backend"
	"github.com/taoh/gocelery-client/broker"
)

// fakeBroker records published messages so tests can inspect the wire.
type fakeBroker struct {
	mu        sync.Mutex
	published []*broker.Message
	keys      []string
	events    []*broker.Message
	eventKeys []string
	failWith  error
}

func (b *fakeBroker) Connect(string) error { return nil }

func (b *fakeBroker) Publish(key string, m *broker.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failWith != nil {
		return b.failWith
	}
	b.keys = append(b.keys, key)
	b.published = append(b.published, m)
	return nil
}

func (b *fakeBroker) PublishEvent(key string, m *broker.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.eventKeys = append(b.eventKeys, key)
	b.events = append(b.events, m)
	return nil
}

func (b *fakeBroker) Close() error { return nil }

func (b *fakeBroker) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

func (b *fakeBroker) message(i int) *broker.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.published[i]
}

// fakeBackend is an in-memory result store.
type fakeBackend struct {
	mu       sync.Mutex
	records  map[string]*backend.Message
	failWith error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{records: make(map[string]*backend.Message)}
}

func (b *fakeBackend) Connect(string) error { return nil }

func (b *fakeBackend) GetResult(taskID string) (*backend.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failWith != nil {
		return nil, b.failWith
	}
	return b.records[taskID], nil
}

func (b *fakeBackend) SetResult(taskID string, m *backend.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records[taskID] = m
	return nil
}

func (b *fakeBackend) Close() error { return nil }

func newTestClient(cfg *Config) (*Client, *fakeBroker, *fakeBackend) {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "error"
	}
	fb := &fakeBroker{}
	fbe := newFakeBackend()
	return NewWith(cfg, fb, fbe), fb, fbe
}

func decodeTaskMessage(t *testing.T, m *broker.Message) *TaskMessage {
	t.Helper()
	var msg TaskMessage
	if err := json.Unmarshal(m.Body, &msg); err != nil {
		t.Fatal("broker received invalid JSON: ", err)
	}
	return &msg
}

func TestPublishCorrelation(t *testing.T) {
	client, fb, _ := newTestClient(nil)
	defer client.Close()
	client.MarkReady()

	result, err := client.Delay("tasks.add", []interface{}{1, 2}, nil)
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	if err := client.Drain(2 * time.Second); err != nil {
		t.Fatal("drain: ", err)
	}

	if fb.count() != 1 {
		t.Fatalf("expected 1 published message, got %d", fb.count())
	}
	if fb.keys[0] != "celery" {
		t.Errorf("expected routing key celery, got %s", fb.keys[0])
	}
	msg := decodeTaskMessage(t, fb.message(0))
	if msg.ID != result.TaskID() {
		t.Errorf("id on the wire %s does not match handle %s", msg.ID, result.TaskID())
	}
	if msg.Task != "tasks.add" {
		t.Errorf("expected task tasks.add, got %s", msg.Task)
	}
	if len(msg.Args) != 2 || msg.Args[0].(float64) != 1 || msg.Args[1].(float64) != 2 {
		t.Errorf("unexpected args: %v", msg.Args)
	}
	if len(msg.Kwargs) != 0 {
		t.Errorf("expected empty kwargs, got %v", msg.Kwargs)
	}
}

func TestPublishEmptyArgs(t *testing.T) {
	client, fb, _ := newTestClient(nil)
	defer client.Close()
	client.MarkReady()

	task, err := client.CreateTask("tasks.noop")
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	if _, err = task.Delay([]interface{}{}, nil); err != nil {
		t.Fatal("unexpected error: ", err)
	}
	if err := client.Drain(2 * time.Second); err != nil {
		t.Fatal("drain: ", err)
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(fb.message(0).Body, &decoded); err != nil {
		t.Fatal("invalid JSON on the wire: ", err)
	}
	if string(decoded["args"]) != "[]" {
		t.Errorf("expected args [], got %s", decoded["args"])
	}
	if string(decoded["kwargs"]) != "{}" {
		t.Errorf("expected kwargs {}, got %s", decoded["kwargs"])
	}
}

func TestReadinessGatesPublish(t *testing.T) {
	client, fb, _ := newTestClient(nil)
	defer client.Close()

	var submitted []string
	for i := 0; i < 3; i++ {
		result, err := client.Delay("tasks.add", []interface{}{i}, nil)
		if err != nil {
			t.Fatal("unexpected error: ", err)
		}
		submitted = append(submitted, result.TaskID())
	}

	// nothing may reach the broker while not ready
	time.Sleep(50 * time.Millisecond)
	if fb.count() != 0 {
		t.Fatalf("broker received %d messages before readiness", fb.count())
	}

	client.MarkReady()
	if err := client.Drain(2 * time.Second); err != nil {
		t.Fatal("drain: ", err)
	}
	if fb.count() != 3 {
		t.Fatalf("expected 3 published messages, got %d", fb.count())
	}
	for i, id := range submitted {
		msg := decodeTaskMessage(t, fb.message(i))
		if msg.ID != id {
			t.Errorf("message %d: expected id %s, got %s", i, id, msg.ID)
		}
	}
}

func TestDistinctTaskIDs(t *testing.T) {
	client, _, _ := newTestClient(nil)
	defer client.Close()
	client.MarkReady()

	first, err := client.Delay("tasks.add", []interface{}{1}, nil)
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	second, err := client.Delay("tasks.add", []interface{}{1}, nil)
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	if first.TaskID() == second.TaskID() {
		t.Error("two publishes produced the same task id")
	}
	if first.Equal(second) {
		t.Error("handles with different ids must not be equal")
	}
}

func TestCreateTaskValidation(t *testing.T) {
	client, _, _ := newTestClient(nil)
	defer client.Close()

	if _, err := client.CreateTask(""); !errors.Is(err, ErrInvalidTaskName) {
		t.Errorf("expected ErrInvalidTaskName, got %v", err)
	}
	if _, err := client.Delay("", nil, nil); !errors.Is(err, ErrInvalidTaskName) {
		t.Errorf("expected ErrInvalidTaskName, got %v", err)
	}
	if _, err := client.Publish(nil, nil, nil); !errors.Is(err, ErrInvalidTaskName) {
		t.Errorf("expected ErrInvalidTaskName for nil task, got %v", err)
	}
}

func waitForFailure(t *testing.T, client *Client) *DispatchError {
	t.Helper()
	select {
	case derr := <-client.DispatchFailures():
		return derr
	case <-time.After(2 * time.Second):
		t.Fatal("no dispatch failure observed")
		return nil
	}
}

func TestTransportFailureReported(t *testing.T) {
	client, fb, _ := newTestClient(nil)
	defer client.Close()
	fb.failWith = errors.New("connection reset")
	client.MarkReady()

	result, err := client.Delay("tasks.add", []interface{}{1}, nil)
	if err != nil {
		t.Fatal("publish must not fail synchronously: ", err)
	}

	derr := waitForFailure(t, client)
	if derr.TaskID != result.TaskID() {
		t.Errorf("failure for task %s, expected %s", derr.TaskID, result.TaskID())
	}
	if !errors.Is(derr, ErrTransport) {
		t.Errorf("expected ErrTransport, got %v", derr)
	}
}

func TestEncodingFailureReported(t *testing.T) {
	client, fb, _ := newTestClient(nil)
	defer client.Close()
	client.MarkReady()

	result, err := client.Delay("tasks.add", []interface{}{make(chan int)}, nil)
	if err != nil {
		t.Fatal("publish must not fail synchronously: ", err)
	}

	derr := waitForFailure(t, client)
	if derr.TaskID != result.TaskID() {
		t.Errorf("failure for task %s, expected %s", derr.TaskID, result.TaskID())
	}
	if !errors.Is(derr, ErrNotEncodable) {
		t.Errorf("expected ErrNotEncodable, got %v", derr)
	}
	if fb.count() != 0 {
		t.Errorf("unencodable message must not reach the broker")
	}
}

func TestNotReadyTimeoutReported(t *testing.T) {
	client, fb, _ := newTestClient(&Config{ReadyTimeout: 20 * time.Millisecond})
	defer client.Close()

	if _, err := client.Delay("tasks.add", []interface{}{1}, nil); err != nil {
		t.Fatal("publish must not fail synchronously: ", err)
	}

	derr := waitForFailure(t, client)
	if !errors.Is(derr, ErrNotReady) {
		t.Errorf("expected ErrNotReady, got %v", derr)
	}
	if fb.count() != 0 {
		t.Errorf("message must not reach the broker without readiness")
	}
}

func TestClosedClientRejectsPublish(t *testing.T) {
	client, _, _ := newTestClient(nil)
	client.MarkReady()
	client.Close()

	if _, err := client.Delay("tasks.add", nil, nil); !errors.Is(err, ErrClientClosed) {
		t.Errorf("expected ErrClientClosed, got %v", err)
	}
}

func TestTaskSentEvent(t *testing.T) {
	client, fb, _ := newTestClient(&Config{SendEvents: true})
	defer client.Close()
	client.MarkReady()

	result, err := client.Delay("tasks.add", []interface{}{1, 2}, nil)
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	if err := client.Drain(2 * time.Second); err != nil {
		t.Fatal("drain: ", err)
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()
	if len(fb.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(fb.events))
	}
	if fb.eventKeys[0] != "task.sent" {
		t.Errorf("expected routing key task.sent, got %s", fb.eventKeys[0])
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(fb.events[0].Body, &payload); err != nil {
		t.Fatal("invalid event payload: ", err)
	}
	if payload["uuid"] != result.TaskID() {
		t.Errorf("event uuid %v does not match task id %s", payload["uuid"], result.TaskID())
	}
	if payload["name"] != "tasks.add" {
		t.Errorf("unexpected event name %v", payload["name"])
	}
}
