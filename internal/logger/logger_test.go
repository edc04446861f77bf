package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"
)

func newBufferLogger(buf *bytes.Buffer) *Logger {
	return New(&Config{Level: "debug", Format: "json", Output: buf, ServiceName: "test"})
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var m map[string]interface{}
	if err := json.Unmarshal(lines[len(lines)-1], &m); err != nil {
		t.Fatalf("invalid log line %q: %v", lines[len(lines)-1], err)
	}
	return m
}

func TestContextFields(t *testing.T) {
	var buf bytes.Buffer
	ctx := newBufferLogger(&buf).WithContext(context.Background())
	ctx = ForJob(ctx, "job-1", "workflow")
	ctx = ForTask(ctx, "task-2", 2, "ner_processing")

	CtxInfo(ctx, "step %s", "started")

	line := lastLine(t, &buf)
	want := map[string]interface{}{
		"message":      "step started",
		"service":      "test",
		FieldJobID:     "job-1",
		FieldComponent: "workflow",
		FieldTaskID:    "task-2",
		FieldTaskOrder: float64(2),
		FieldStep:      "ner_processing",
	}
	for k, v := range want {
		if line[k] != v {
			t.Errorf("field %s = %v, want %v", k, line[k], v)
		}
	}
}

func TestEntryFields(t *testing.T) {
	var buf bytes.Buffer
	ctx := ForJob(newBufferLogger(&buf).WithContext(context.Background()), "job-9", "jobs")

	base := With(Fields{FieldCount: 3})
	base.With(Fields{FieldModel: "m1"}).Warn(ctx, "done")

	line := lastLine(t, &buf)
	if line["level"] != "warning" || line[FieldCount] != float64(3) || line[FieldModel] != "m1" || line[FieldJobID] != "job-9" {
		t.Errorf("unexpected line %v", line)
	}
	if _, ok := base.fields[FieldModel]; ok {
		t.Error("With must not modify the receiver")
	}
}

func TestSince(t *testing.T) {
	e := Since(time.Now().Add(-1500 * time.Millisecond))
	ms, ok := e.fields[FieldDurationMs].(int64)
	if !ok || ms < 1500 {
		t.Errorf("duration_ms = %v", e.fields[FieldDurationMs])
	}
}

func TestFromContextDefault(t *testing.T) {
	if FromContext(context.Background()) != GetDefault() {
		t.Error("expected default logger for a bare context")
	}
	SetDefaultLogger(nil)
	if GetDefault() == nil {
		t.Error("nil must not replace the default logger")
	}
}
