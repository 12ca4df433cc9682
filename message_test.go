package gocelery

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestEncodeTaskMessageCanonicalForm(t *testing.T) {
	got, err := EncodeTaskMessage("id-1", "tasks.add", []interface{}{1, 2}, nil)
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	want := `{"id":"id-1","task":"tasks.add","args":[1,2],"kwargs":{}}`
	if got != want {
		t.Errorf("wire form mismatch:\n got %s\nwant %s", got, want)
	}
}

func TestEncodeTaskMessageDefaults(t *testing.T) {
	got, err := EncodeTaskMessage("id-2", "tasks.noop", nil, nil)
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatal("output is not valid JSON: ", err)
	}
	if len(decoded) != 4 {
		t.Errorf("expected exactly 4 keys, got %d: %v", len(decoded), decoded)
	}
	for _, key := range []string{"id", "task", "args", "kwargs"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}
	if string(decoded["args"]) != "[]" {
		t.Errorf("omitted args must encode as [], got %s", decoded["args"])
	}
	if string(decoded["kwargs"]) != "{}" {
		t.Errorf("omitted kwargs must encode as {}, got %s", decoded["kwargs"])
	}
}

func TestEncodeTaskMessageDeterministic(t *testing.T) {
	kwargs := map[string]interface{}{"b": 2, "a": 1, "c": "x"}
	first, err := EncodeTaskMessage("id-3", "tasks.add", []interface{}{1}, kwargs)
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	second, err := EncodeTaskMessage("id-3", "tasks.add", []interface{}{1}, kwargs)
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	if first != second {
		t.Errorf("same inputs produced different output:\n%s\n%s", first, second)
	}
}

func TestEncodeTaskMessageValidation(t *testing.T) {
	if _, err := EncodeTaskMessage("", "tasks.add", nil, nil); !errors.Is(err, ErrInvalidTaskID) {
		t.Errorf("empty id: expected ErrInvalidTaskID, got %v", err)
	}
	if _, err := EncodeTaskMessage("id-4", "", nil, nil); !errors.Is(err, ErrInvalidTaskName) {
		t.Errorf("empty task name: expected ErrInvalidTaskName, got %v", err)
	}
}

func TestEncodeTaskMessageUnserializable(t *testing.T) {
	_, err := EncodeTaskMessage("id-5", "tasks.add", []interface{}{make(chan int)}, nil)
	if !errors.Is(err, ErrNotEncodable) {
		t.Errorf("expected ErrNotEncodable, got %v", err)
	}
}
