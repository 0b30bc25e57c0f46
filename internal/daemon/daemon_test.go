package daemon_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"subtrans/internal/config"
	"subtrans/internal/daemon"
	"subtrans/internal/logging"
	"subtrans/internal/queue"
	"subtrans/internal/services"
	"subtrans/internal/services/gemini"
	"subtrans/internal/testsupport"
)

type scriptedProvider struct {
	mu    sync.Mutex
	calls int
}

func (p *scriptedProvider) Generate(_ context.Context, req gemini.Request) (gemini.Response, error) {
	p.mu.Lock()
	p.calls++
	call := p.calls
	p.mu.Unlock()
	text := fmt.Sprintf("1\n00:00:01,000 --> 00:00:02,000\ntake %d\n", call)
	return gemini.Response{Text: text}, nil
}

func newDaemon(t *testing.T, cfg *config.Config) *daemon.Daemon {
	t.Helper()
	st := testsupport.MustOpenStore(t, cfg)
	d, err := daemon.New(cfg, st, &scriptedProvider{}, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})
	return d
}

func waitTerminal(t *testing.T, events <-chan queue.Event, jobID string) queue.Job {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case evt, ok := <-events:
			if !ok {
				t.Fatal("event stream closed")
			}
			if evt.Job.ID == jobID && evt.Terminal() {
				return evt.Job
			}
		case <-timeout:
			t.Fatalf("job %s did not finish", jobID)
		}
	}
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status()
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.Keys != 1 || !status.KeyAvailable {
		t.Fatalf("expected configured key to be loaded, got %+v", status)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status().Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonLockRejectsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := newDaemon(t, cfg)
	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer first.Stop()

	second := newDaemon(t, cfg)
	err := second.Start(ctx)
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock conflict, got %v", err)
	}
}

func TestDaemonTranslatesAndRetranslates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	events, unsubscribe := d.Subscribe()
	defer unsubscribe()

	job, created, err := d.Enqueue(ctx, daemon.EnqueueRequest{
		VideoURL:        "https://example.com/a.mp4",
		DurationSeconds: 300,
	})
	if err != nil || !created {
		t.Fatalf("Enqueue: created=%v err=%v", created, err)
	}
	done := waitTerminal(t, events, job.ID)
	if done.Status != queue.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", done.Status, done.ErrorMessage)
	}

	result, err := d.Result(ctx, "https://example.com/a.mp4", nil)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if !strings.Contains(result.Track, "take 1") {
		t.Fatalf("unexpected track %q", result.Track)
	}

	redo, created, err := d.Retranslate(ctx, "https://example.com/a.mp4", nil, 0)
	if err != nil || !created {
		t.Fatalf("Retranslate: created=%v err=%v", created, err)
	}
	if done := waitTerminal(t, events, redo.ID); done.Status != queue.StatusCompleted {
		t.Fatalf("retranslate ended %s (%s)", done.Status, done.ErrorMessage)
	}
	result, err = d.Result(ctx, "https://example.com/a.mp4", nil)
	if err != nil {
		t.Fatalf("Result after retranslate: %v", err)
	}
	if !strings.Contains(result.Track, "take 2") || strings.Contains(result.Track, "take 1") {
		t.Fatalf("expected spliced track, got %q", result.Track)
	}

	if _, _, err := d.Retranslate(ctx, "https://example.com/a.mp4", nil, 4); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for batch 4, got %v", err)
	}
	if _, _, err := d.Retranslate(ctx, "https://example.com/missing.mp4", nil, 0); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDaemonRemovePurgesResults(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	events, unsubscribe := d.Subscribe()
	defer unsubscribe()

	job, _, err := d.Enqueue(ctx, daemon.EnqueueRequest{VideoURL: "https://example.com/b.mp4", DurationSeconds: 120})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitTerminal(t, events, job.ID)

	if _, err := d.Remove(ctx, "https://example.com/b.mp4", false); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for evicted job, got %v", err)
	}
	summary, err := d.Remove(ctx, "https://example.com/b.mp4", true)
	if err != nil {
		t.Fatalf("Remove purge: %v", err)
	}
	if summary.Results != 1 {
		t.Fatalf("expected one result purged, got %+v", summary)
	}
	if _, err := d.Result(ctx, "https://example.com/b.mp4", nil); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected result gone, got %v", err)
	}
}

func TestDaemonKeysAndSettings(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	count, err := d.SetKeys(ctx, []string{"alpha-1234", "beta-5678", "alpha-1234", " "})
	if err != nil {
		t.Fatalf("SetKeys: %v", err)
	}
	if count != 2 || d.Status().Keys != 2 {
		t.Fatalf("expected two keys, got %d (status %d)", count, d.Status().Keys)
	}
	masked, err := d.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(masked) != 2 || masked[0] != "******1234" || masked[1] != "*****5678" {
		t.Fatalf("unexpected masked keys %v", masked)
	}

	settings, err := d.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if settings.MaxVideoDuration != cfg.Batch.MaxVideoDuration {
		t.Fatalf("expected config defaults, got %+v", settings)
	}
	settings.MaxConcurrentBatches = 4
	if _, err := d.SetSettings(ctx, settings); err != nil {
		t.Fatalf("SetSettings: %v", err)
	}
	settings.MaxConcurrentBatches = 9
	if _, err := d.SetSettings(ctx, settings); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	job, _, err := d.Enqueue(ctx, daemon.EnqueueRequest{VideoURL: "https://example.com/c.mp4", DurationSeconds: 60})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if job.Settings.MaxConcurrentBatches != 4 {
		t.Fatalf("expected persisted settings on job, got %+v", job.Settings)
	}
}

func TestDaemonAttachedClients(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)

	detachA := d.AttachClient()
	detachB := d.AttachClient()
	if got := d.AttachedClients(); got != 2 {
		t.Fatalf("expected 2 attached clients, got %d", got)
	}
	detachA()
	detachA()
	if got := d.AttachedClients(); got != 1 {
		t.Fatalf("expected detach to be idempotent, got %d", got)
	}
	detachB()
	if got := d.AttachedClients(); got != 0 {
		t.Fatalf("expected no attached clients, got %d", got)
	}
}

func TestDaemonTestNotificationWithoutTopic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)

	sent, message, err := d.TestNotification(context.Background())
	if err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if sent || message != "ntfy topic not configured" {
		t.Fatalf("unexpected result sent=%v message=%q", sent, message)
	}
}

func TestMaskKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"abc", "***"},
		{"abcd", "****"},
		{"abcdef", "**cdef"},
	}
	for _, tt := range tests {
		if got := daemon.MaskKey(tt.in); got != tt.want {
			t.Fatalf("MaskKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
