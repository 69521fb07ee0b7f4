package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	apperrors "github.com/streamvault/backend/internal/errors"
)

func TestLogger_BasicLogging(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelDebug, "test")

	log.Info(context.Background(), "test message", map[string]interface{}{
		"key": "value",
	})

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}

	if entry.Level != "info" {
		t.Errorf("expected level info, got %s", entry.Level)
	}
	if entry.Message != "test message" {
		t.Errorf("expected message 'test message', got %s", entry.Message)
	}
	if entry.Component != "test" {
		t.Errorf("expected component test, got %s", entry.Component)
	}
	if entry.Fields["key"] != "value" {
		t.Errorf("expected field key=value, got %v", entry.Fields["key"])
	}
}

func TestLogger_RequestIDPropagation(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelDebug, "")

	ctx := apperrors.WithRequestID(context.Background(), "test-request-id")
	log.Info(ctx, "test message")

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}

	if entry.RequestID != "test-request-id" {
		t.Errorf("expected request_id 'test-request-id', got %s", entry.RequestID)
	}
}

func TestLogger_LogLevels(t *testing.T) {
	tests := []struct {
		minLevel     Level
		log          func(l *Logger, ctx context.Context)
		shouldOutput bool
	}{
		{LevelInfo, func(l *Logger, ctx context.Context) { l.Debug(ctx, "m") }, false},
		{LevelInfo, func(l *Logger, ctx context.Context) { l.Info(ctx, "m") }, true},
		{LevelWarn, func(l *Logger, ctx context.Context) { l.Info(ctx, "m") }, false},
		{LevelWarn, func(l *Logger, ctx context.Context) { l.Warn(ctx, "m") }, true},
		{LevelError, func(l *Logger, ctx context.Context) { l.Warn(ctx, "m") }, false},
		{LevelError, func(l *Logger, ctx context.Context) { l.Error(ctx, "m", nil) }, true},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		log := New(&buf, tt.minLevel, "")
		tt.log(log, context.Background())

		if got := buf.Len() > 0; got != tt.shouldOutput {
			t.Errorf("minLevel %s: output=%v, want %v", tt.minLevel, got, tt.shouldOutput)
		}
	}
}

func TestLogger_ErrorDetails(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelDebug, "")

	appErr := apperrors.TransferError("transfer process failed").WithCause(errors.New("exit status 1"))
	log.Error(context.Background(), "job failed", appErr)

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}

	if entry.Error == nil {
		t.Fatal("expected structured error details")
	}
	if entry.Error.Code != apperrors.CodeTransferError {
		t.Errorf("expected code %s, got %s", apperrors.CodeTransferError, entry.Error.Code)
	}
}
