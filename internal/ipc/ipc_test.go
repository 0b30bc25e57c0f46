package ipc_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"subtrans/internal/daemon"
	"subtrans/internal/ipc"
	"subtrans/internal/logging"
	"subtrans/internal/services/gemini"
	"subtrans/internal/testsupport"
)

// gatedProvider blocks every call until release is closed.
type gatedProvider struct {
	release chan struct{}
}

func (p *gatedProvider) Generate(ctx context.Context, _ gemini.Request) (gemini.Response, error) {
	select {
	case <-p.release:
		return gemini.Response{Text: "1\n00:00:01,000 --> 00:00:02,000\nhello\n"}, nil
	case <-ctx.Done():
		return gemini.Response{}, ctx.Err()
	}
}

func TestIPCServerClient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	provider := &gatedProvider{release: make(chan struct{})}
	d, err := daemon.New(cfg, store, provider, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		srv.Close()
	})

	client, err := ipc.Dial(cfg.SocketPath())
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running || status.Keys != 1 {
		t.Fatalf("unexpected status: %+v", status)
	}

	const urlA = "https://example.com/a.mp4"
	const urlB = "https://example.com/b.mp4"
	addA, err := client.QueueAdd(ipc.QueueAddRequest{VideoURL: urlA, DurationSeconds: 300})
	if err != nil || !addA.Created {
		t.Fatalf("QueueAdd A: %+v %v", addA, err)
	}
	if _, err := client.QueueAdd(ipc.QueueAddRequest{VideoURL: urlB, DurationSeconds: 300}); err != nil {
		t.Fatalf("QueueAdd B: %v", err)
	}
	again, err := client.QueueAdd(ipc.QueueAddRequest{VideoURL: urlB, DurationSeconds: 300})
	if err != nil || again.Created {
		t.Fatalf("expected duplicate add to be a no-op: %+v %v", again, err)
	}

	videoB, err := client.VideoStatus(urlB)
	if err != nil {
		t.Fatalf("VideoStatus: %v", err)
	}
	if !videoB.InQueue || videoB.Status != "pending" || videoB.Position != 1 {
		t.Fatalf("unexpected video status %+v", videoB)
	}

	counts, err := client.QueueCounts()
	if err != nil {
		t.Fatalf("QueueCounts: %v", err)
	}
	if counts.Counts["translating"] != 1 || counts.Counts["pending"] != 1 {
		t.Fatalf("unexpected counts %v", counts.Counts)
	}

	pending, err := client.QueueList([]string{"pending"})
	if err != nil {
		t.Fatalf("QueueList pending: %v", err)
	}
	if len(pending.Items) != 1 || pending.Items[0].VideoURL != urlB {
		t.Fatalf("unexpected pending items %+v", pending.Items)
	}
	if _, err := client.QueueList([]string{"bogus"}); err == nil {
		t.Fatal("expected unknown status to be rejected")
	}

	described, err := client.QueueDescribe(addA.Job.ID)
	if err != nil || described.Job.VideoURL != urlA {
		t.Fatalf("QueueDescribe: %+v %v", described, err)
	}
	if _, err := client.QueueDescribe("missing"); err == nil {
		t.Fatal("expected describe of unknown job to fail")
	}

	paused, err := client.QueuePause(urlA)
	if err != nil {
		t.Fatalf("QueuePause: %v", err)
	}
	if paused.Job.Status != "paused" {
		t.Fatalf("expected paused, got %s", paused.Job.Status)
	}
	removed, err := client.QueueRemove(urlB, false)
	if err != nil || removed.Jobs != 1 {
		t.Fatalf("QueueRemove: %+v %v", removed, err)
	}
	if _, err := client.QueueResume(urlA); err != nil {
		t.Fatalf("QueueResume: %v", err)
	}
	close(provider.release)

	deadline := time.Now().Add(5 * time.Second)
	for {
		result, err := client.Result(urlA, nil)
		if err == nil {
			if !strings.Contains(result.Track, "hello") || len(result.Batches) != 1 {
				t.Fatalf("unexpected result %+v", result)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("result never stored: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	keysResp, err := client.KeysSet([]string{"first-key-0001", "second-key-0002"})
	if err != nil || keysResp.Count != 2 {
		t.Fatalf("KeysSet: %+v %v", keysResp, err)
	}
	listed, err := client.KeysList()
	if err != nil {
		t.Fatalf("KeysList: %v", err)
	}
	if len(listed.Keys) != 2 || !strings.HasSuffix(listed.Keys[1], "0002") || strings.Contains(listed.Keys[1], "second") {
		t.Fatalf("expected masked keys, got %v", listed.Keys)
	}

	settings, err := client.SettingsGet()
	if err != nil {
		t.Fatalf("SettingsGet: %v", err)
	}
	settings.Settings.BatchOffset = 999
	if _, err := client.SettingsSet(settings.Settings); err == nil {
		t.Fatal("expected out-of-range settings to be rejected")
	}

	notify, err := client.TestNotification()
	if err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if notify.Sent {
		t.Fatal("expected notification to be skipped without a topic")
	}
}
