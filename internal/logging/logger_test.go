package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"subtrans/internal/config"
	"subtrans/internal/logging"
	"subtrans/internal/services"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello from test")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "subtrans.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "hello from test") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerRendersComponentPrefix(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "component.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.NewComponentLogger(logger, "runner").Info("batch completed", logging.Int("batch_index", 3))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if !strings.Contains(line, "INFO runner: batch completed") {
		t.Fatalf("expected component prefix, got %q", line)
	}
	if !strings.Contains(line, "batch_index=3") {
		t.Fatalf("expected batch_index attribute, got %q", line)
	}
	if strings.Contains(line, "\x1b[") {
		t.Fatalf("expected no color codes when writing to a file, got %q", line)
	}
}

func TestJSONLoggerIncludesContextFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithJobID(context.Background(), "job-42")
	ctx = services.WithBatchIndex(ctx, 2)
	ctx = services.WithRequestID(ctx, "req-1")
	logging.WithContext(ctx, logger).Info("with context")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(content, &payload); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if payload["job_id"] != "job-42" {
		t.Fatalf("expected job_id, got %v", payload["job_id"])
	}
	if payload["batch_index"] != float64(2) {
		t.Fatalf("expected batch_index 2, got %v", payload["batch_index"])
	}
	if payload["correlation_id"] != "req-1" {
		t.Fatalf("expected correlation id, got %v", payload["correlation_id"])
	}
	if payload["level"] != "info" || payload["msg"] != "with context" {
		t.Fatalf("unexpected level/msg: %v", payload)
	}
}

func TestJSONLoggerScrubsVideoURLAndKeys(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "scrub.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("batch dispatched",
		logging.String(logging.FieldVideoURL, "https://cdn.example/v.mp4?sig=secret#t=10"),
		logging.String(logging.FieldAPIKey, "AIzaSyExampleKey1234"),
		logging.Duration("elapsed", 1500*time.Millisecond),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), "secret") || strings.Contains(string(content), "AIzaSy") {
		t.Fatalf("sensitive values leaked: %s", content)
	}
	var payload map[string]any
	if err := json.Unmarshal(content, &payload); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if payload[logging.FieldVideoURL] != "https://cdn.example/v.mp4" {
		t.Fatalf("unexpected video_url %v", payload[logging.FieldVideoURL])
	}
	if payload[logging.FieldAPIKey] != "****1234" {
		t.Fatalf("unexpected api_key %v", payload[logging.FieldAPIKey])
	}
	if payload["elapsed"] != 1.5 {
		t.Fatalf("expected elapsed in seconds, got %v", payload["elapsed"])
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.WarnWithContext(logger, "credential rejected", "credential_rejected", logging.String(logging.FieldErrorHint, "rotate keys"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(content, &payload); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if payload[logging.FieldEventType] != "credential_rejected" {
		t.Fatalf("expected event type, got %v", payload[logging.FieldEventType])
	}
	if payload[logging.FieldErrorHint] != "rotate keys" {
		t.Fatalf("expected caller hint to win, got %v", payload[logging.FieldErrorHint])
	}
	if payload[logging.FieldImpact] == nil {
		t.Fatal("expected default impact field")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
