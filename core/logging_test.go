package core

import (
	"context"
	"sync"
	"testing"
)

type capturedLog struct {
	level  string
	msg    string
	fields map[string]any
}

type captureLogger struct {
	mu       *sync.Mutex
	records  *[]capturedLog
	defaults map[string]any
}

func newCaptureLogger() *captureLogger {
	records := []capturedLog{}
	return &captureLogger{mu: &sync.Mutex{}, records: &records, defaults: map[string]any{}}
}

func (l *captureLogger) WithFields(fields map[string]any) Logger {
	merged := CloneFields(l.defaults)
	for key, value := range fields {
		merged[key] = value
	}
	return &captureLogger{mu: l.mu, records: l.records, defaults: merged}
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args...) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args...) }

func (l *captureLogger) WithContext(context.Context) Logger {
	return &captureLogger{mu: l.mu, records: l.records, defaults: CloneFields(l.defaults)}
}

func (l *captureLogger) record(level string, msg string, args ...any) {
	fields := CloneFields(l.defaults)
	for index := 0; index+1 < len(args); index += 2 {
		key, ok := args[index].(string)
		if !ok {
			continue
		}
		fields[key] = args[index+1]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.records = append(*l.records, capturedLog{level: level, msg: msg, fields: fields})
}

func (l *captureLogger) snapshot() []capturedLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := *l.records
	out := make([]capturedLog, len(items))
	copy(out, items)
	return out
}

func TestLogging_NilLoggerIsNoOp(t *testing.T) {
	LogInfo(context.Background(), nil, "ignored", map[string]any{"k": "v"})
	LogError(nil, nil, "ignored", nil)
}

func TestLogging_StructuredFieldsReachTheLogger(t *testing.T) {
	logger := newCaptureLogger()
	LogInfo(context.Background(), logger, "secret stored", map[string]any{
		"backend": "keychain",
		"size":    32,
	})
	LogError(context.Background(), logger, "callback failed", map[string]any{
		"handle": uint64(7),
	})

	records := logger.snapshot()
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].level != "info" || records[0].msg != "secret stored" {
		t.Fatalf("unexpected first record: %+v", records[0])
	}
	if records[0].fields["backend"] != "keychain" || records[0].fields["size"] != 32 {
		t.Fatalf("fields lost: %+v", records[0].fields)
	}
	if records[1].level != "error" || records[1].fields["handle"] != uint64(7) {
		t.Fatalf("unexpected error record: %+v", records[1])
	}
}

func TestLogging_FlattenFieldsIsDeterministic(t *testing.T) {
	args := flattenFields(map[string]any{"zeta": 1, "alpha": 2, "mid": 3})
	if len(args) != 6 {
		t.Fatalf("expected 6 flattened args, got %d", len(args))
	}
	if args[0] != "alpha" || args[2] != "mid" || args[4] != "zeta" {
		t.Fatalf("keys must be sorted: %v", args)
	}
}
