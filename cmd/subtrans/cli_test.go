package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"subtrans/internal/config"
	"subtrans/internal/daemon"
	"subtrans/internal/ipc"
	"subtrans/internal/logging"
	"subtrans/internal/queue"
	"subtrans/internal/services/gemini"
	"subtrans/internal/testsupport"
)

type cannedProvider struct {
	mu    sync.Mutex
	calls int
}

func (p *cannedProvider) Generate(context.Context, gemini.Request) (gemini.Response, error) {
	p.mu.Lock()
	p.calls++
	call := p.calls
	p.mu.Unlock()
	return gemini.Response{Text: fmt.Sprintf("1\n00:00:01,000 --> 00:00:02,000\ntake %d\n", call)}, nil
}

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	socketPath string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	st := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	d, err := daemon.New(cfg, st, &cannedProvider{}, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon start: %v", err)
	}
	socketPath := filepath.Join(cfg.Paths.LogDir, "cli.sock")
	srv, err := ipc.NewServer(ctx, socketPath, d, logger)
	if err != nil {
		cancel()
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	t.Cleanup(func() {
		cancel()
		srv.Close()
		_ = d.Close()
	})

	return &cliTestEnv{cfg: cfg, daemon: d, socketPath: socketPath, configPath: configPath}
}

func (env *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runCLI(t, args, env.socketPath, env.configPath)
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if socket != "" {
		flags = append(flags, "--socket", socket)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf("[paths]\ndata_dir = %q\nlog_dir = %q\n\n[provider]\napi_keys = [\"test-key\"]\n",
		cfg.Paths.DataDir, cfg.Paths.LogDir)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

const videoURL = "https://cdn.example/films/alpha.mp4"

func (env *cliTestEnv) waitCompleted(t *testing.T) {
	t.Helper()
	waitFor(t, 5*time.Second, func() bool {
		return len(env.daemon.Items(queue.StatusCompleted)) > 0
	})
}

func TestQueueAddListAndResult(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "queue", "add", videoURL, "--duration", "600")
	if err != nil {
		t.Fatalf("queue add: %v", err)
	}
	requireContains(t, out, "Queued job")
	env.waitCompleted(t)

	out, err = env.run(t, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "completed")
	requireContains(t, out, "1/1")

	out, err = env.run(t, "queue", "counts")
	if err != nil {
		t.Fatalf("queue counts: %v", err)
	}
	requireContains(t, out, "completed")

	out, err = env.run(t, "result", videoURL)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	requireContains(t, out, "take 1")

	target := filepath.Join(t.TempDir(), "alpha.srt")
	if _, err := env.run(t, "result", videoURL, "--output", target); err != nil {
		t.Fatalf("result --output: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	requireContains(t, string(data), "00:00:01,000 --> 00:00:02,000")

	out, err = env.run(t, "result", videoURL, "--batches")
	if err != nil {
		t.Fatalf("result --batches: %v", err)
	}
	requireContains(t, out, "0-600s")
}

func TestQueueAddRejectsHalfRange(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := env.run(t, "queue", "add", videoURL, "--start", "60"); err == nil {
		t.Fatal("expected --start without --end to fail")
	}
	if len(env.daemon.Items()) != 0 {
		t.Fatal("invalid range must not reach the daemon")
	}
}

func TestQueueRemoveWithPurge(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := env.run(t, "queue", "add", videoURL, "--duration", "600"); err != nil {
		t.Fatalf("queue add: %v", err)
	}
	env.waitCompleted(t)

	out, err := env.run(t, "queue", "remove", videoURL, "--purge")
	if err != nil {
		t.Fatalf("queue remove: %v", err)
	}
	requireContains(t, out, "Deleted 1 stored results")

	if _, err := env.run(t, "result", videoURL); err == nil {
		t.Fatal("expected result lookup to fail after purge")
	}
}

func TestKeysAndSettingsCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "keys", "set", "alpha-1234", "beta-5678")
	if err != nil {
		t.Fatalf("keys set: %v", err)
	}
	requireContains(t, out, "2 keys")

	out, err = env.run(t, "keys", "list")
	if err != nil {
		t.Fatalf("keys list: %v", err)
	}
	requireContains(t, out, "1234")
	if strings.Contains(out, "alpha") {
		t.Fatalf("keys must be masked, got %q", out)
	}

	out, err = env.run(t, "settings", "set", "--max-concurrent-batches", "3")
	if err != nil {
		t.Fatalf("settings set: %v", err)
	}
	requireContains(t, out, "Max concurrent batches")

	settings, err := env.daemon.Settings(context.Background())
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if settings.MaxConcurrentBatches != 3 || settings.MaxVideoDuration != env.cfg.Batch.MaxVideoDuration {
		t.Fatalf("unexpected settings %+v", settings)
	}

	if _, err := env.run(t, "settings", "set", "--max-concurrent-batches", "9"); err == nil {
		t.Fatal("expected out-of-range setting to be rejected")
	}
}

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := env.run(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "running")
	requireContains(t, out, "idle")
}

func TestCommandsReportMissingDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	_, err := runCLI(t, []string{"status"}, filepath.Join(cfg.Paths.LogDir, "missing.sock"), configPath)
	if err == nil {
		t.Fatal("expected dial failure")
	}
	requireContains(t, err.Error(), "not found")
}

func TestConfigInitAndValidate(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "subtrans", "config.toml")

	out, err := runCLI(t, []string{"config", "init", "--path", target}, "", "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, target)
	if _, err := runCLI(t, []string{"config", "init", "--path", target}, "", ""); err == nil {
		t.Fatal("expected existing config to be protected")
	}

	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)
	out, err = runCLI(t, []string{"config", "validate"}, "", configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
}

func TestDoctorCommand(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "test-key" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte(`{"name":"models/gemini"}`))
	}))
	defer provider.Close()

	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	content := fmt.Sprintf("[paths]\ndata_dir = %q\nlog_dir = %q\n\n[provider]\nbase_url = %q\napi_keys = [\"test-key\"]\n",
		cfg.Paths.DataDir, cfg.Paths.LogDir, provider.URL)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out, err := runCLI(t, []string{"doctor"}, "", configPath)
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	requireContains(t, out, "Translation provider:")
	requireContains(t, out, "1 keys accepted")

	out, err = runCLI(t, []string{"doctor", "--key", "wrong"}, "", configPath)
	if err == nil {
		t.Fatalf("expected rejected key to fail doctor, got %s", out)
	}
	requireContains(t, out, "[ERROR]")
}

func TestLogsCommandFilters(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)
	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	content := "INFO job queued job_id=aaa\nINFO job queued job_id=bbb\nWARN batch failed job_id=aaa\n"
	if err := os.WriteFile(filepath.Join(cfg.Paths.LogDir, "subtrans.log"), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, err := runCLI(t, []string{"logs", "--job", "aaa"}, "", configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "batch failed")
	if strings.Contains(out, "bbb") {
		t.Fatalf("expected filtered output, got %q", out)
	}
}
