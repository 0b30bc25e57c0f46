package preflight_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"subtrans/internal/config"
	"subtrans/internal/preflight"
	"subtrans/internal/testsupport"
)

func TestCheckDirectoryAccess(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		pass bool
	}{
		{name: "writable dir", path: t.TempDir(), pass: true},
		{name: "missing", path: filepath.Join(t.TempDir(), "nope")},
		{name: "file", path: file},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := preflight.CheckDirectoryAccess("test", tt.path)
			if result.Passed != tt.pass {
				t.Fatalf("Passed = %v, want %v (%s)", result.Passed, tt.pass, result.Detail)
			}
			if result.Detail == "" {
				t.Fatal("expected non-empty detail")
			}
		})
	}
}

func TestCheckBinary(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	if result := preflight.CheckBinary("Present", present, false); !result.Passed || result.Detail != present {
		t.Fatalf("expected present binary to pass, got %#v", result)
	}
	missing := preflight.CheckBinary("Missing", "clearly-not-present-binary", true)
	if missing.Passed || !missing.Optional || !strings.Contains(missing.Detail, "not found") {
		t.Fatalf("unexpected result for missing binary: %#v", missing)
	}
	if result := preflight.CheckBinary("Blank", " ", false); result.Passed {
		t.Fatal("expected blank command to fail")
	}
}

func providerServer(t *testing.T, goodKeys ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("x-goog-api-key")
		for _, good := range goodKeys {
			if key == good {
				_, _ = w.Write([]byte(`{"name":"models/test"}`))
				return
			}
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckProvider(t *testing.T) {
	srv := providerServer(t, "good-1", "good-2")
	cfg := config.Default().Provider
	cfg.BaseURL = srv.URL

	tests := []struct {
		name   string
		keys   []string
		pass   bool
		detail string
	}{
		{name: "all accepted", keys: []string{"good-1", "good-2"}, pass: true, detail: "2 keys accepted"},
		{name: "partial", keys: []string{"good-1", "bad"}, pass: true, detail: "1 of 2"},
		{name: "all rejected", keys: []string{"bad-1", "bad-2"}, detail: "all 2 keys rejected"},
		{name: "no keys", keys: []string{" "}, detail: "no API keys"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := preflight.CheckProvider(context.Background(), cfg, tt.keys)
			if result.Passed != tt.pass || !strings.Contains(result.Detail, tt.detail) {
				t.Fatalf("unexpected result %#v", result)
			}
		})
	}
}

func TestCheckProviderEndpointDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	cfg := config.Default().Provider
	cfg.BaseURL = srv.URL

	result := preflight.CheckProvider(context.Background(), cfg, []string{"a", "b"})
	if result.Passed || strings.Contains(result.Detail, "rejected") {
		t.Fatalf("expected endpoint failure, got %#v", result)
	}
}

func TestCheckBrokerMissingURL(t *testing.T) {
	if result := preflight.CheckBroker(context.Background(), ""); result.Passed {
		t.Fatal("expected failure for missing url")
	}
}

func TestRunAllSkipsDisabledFeatures(t *testing.T) {
	srv := providerServer(t, "test-key")
	cfg := testsupport.NewConfig(t, testsupport.WithProviderURL(srv.URL))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}

	results := preflight.RunAll(context.Background(), cfg, nil)
	names := make(map[string]preflight.Result, len(results))
	for _, r := range results {
		names[r.Name] = r
	}
	if _, ok := names["Broker"]; ok {
		t.Fatal("broker check should be skipped when disabled")
	}
	if !names["Translation provider"].Passed {
		t.Fatalf("expected provider check to pass: %#v", names["Translation provider"])
	}
	if !names["Data directory"].Passed || !names["Log directory"].Passed {
		t.Fatalf("expected directory checks to pass: %#v", results)
	}
	for _, failed := range preflight.Failed(results) {
		if !failed.Optional {
			t.Fatalf("unexpected required failure %#v", failed)
		}
	}
}
