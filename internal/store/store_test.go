package store_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"subtrans/internal/planner"
	"subtrans/internal/queue"
	"subtrans/internal/services"
	"subtrans/internal/store"
	"subtrans/internal/testsupport"
)

func TestSaveAndLoadJobsKeepsOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	jobs := []queue.Job{
		{ID: "b", VideoURL: "https://example.com/b.mp4", Status: queue.StatusTranslating, Settings: queue.DefaultBatchSettings(),
			Plan:          []planner.Window{{Index: 0, WindowStart: 0, WindowEnd: 900}},
			BatchStatuses: []queue.BatchStatus{queue.BatchProcessing}, BatchOutputs: []string{""}, TotalBatches: 1},
		{ID: "a", VideoURL: "https://example.com/a.mp4", Status: queue.StatusPending, Range: &planner.Range{Start: 60, End: 120}},
	}
	if err := st.SaveJobs(ctx, jobs); err != nil {
		t.Fatalf("SaveJobs: %v", err)
	}
	loaded, err := st.LoadJobs(ctx)
	if err != nil {
		t.Fatalf("LoadJobs: %v", err)
	}
	if len(loaded) != 2 || loaded[0].ID != "b" || loaded[1].ID != "a" {
		t.Fatalf("unexpected order %+v", loaded)
	}
	if loaded[0].BatchStatuses[0] != queue.BatchProcessing || len(loaded[0].Plan) != 1 {
		t.Fatalf("batch state not round-tripped: %+v", loaded[0])
	}
	if loaded[1].Range == nil || loaded[1].Range.End != 120 {
		t.Fatalf("range not round-tripped: %+v", loaded[1].Range)
	}

	if err := st.SaveJobs(ctx, jobs[1:]); err != nil {
		t.Fatalf("SaveJobs: %v", err)
	}
	loaded, err = st.LoadJobs(ctx)
	if err != nil {
		t.Fatalf("LoadJobs: %v", err)
	}
	if len(loaded) != 1 || loaded[0].ID != "a" {
		t.Fatalf("snapshot should replace previous rows, got %+v", loaded)
	}
}

func TestLoadJobsSkipsUndecodableRows(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := st.SaveJobs(ctx, []queue.Job{{ID: "ok", VideoURL: "https://example.com/ok.mp4", Status: queue.StatusPending}}); err != nil {
		t.Fatalf("SaveJobs: %v", err)
	}
	db, err := sql.Open("sqlite", st.Path())
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec("INSERT INTO jobs (id, position, video_url, status, payload, updated_at) VALUES ('bad', 5, 'x', 'pending', '{', 'now')"); err != nil {
		t.Fatalf("insert bad row: %v", err)
	}

	loaded, err := st.LoadJobs(ctx)
	if err != nil {
		t.Fatalf("LoadJobs: %v", err)
	}
	if len(loaded) != 1 || loaded[0].ID != "ok" {
		t.Fatalf("expected only the readable job, got %+v", loaded)
	}
}

func TestResultsUpsertAndLookup(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	url := "https://example.com/v.mp4"

	if _, err := st.LoadResult(ctx, queue.ResultKey(url, nil)); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	first := queue.Result{VideoURL: url, Track: "first", UpdatedAt: time.Now().UTC()}
	if err := st.SaveResult(ctx, first); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	first.Track = "second"
	if err := st.SaveResult(ctx, first); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	ranged := queue.Result{VideoURL: url, Range: &planner.Range{Start: 0, End: 300}, Track: "ranged"}
	if err := st.SaveResult(ctx, ranged); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	got, err := st.LoadResult(ctx, queue.ResultKey(url, nil))
	if err != nil {
		t.Fatalf("LoadResult: %v", err)
	}
	if got.Track != "second" {
		t.Fatalf("expected upserted track, got %q", got.Track)
	}
	all, err := st.ResultsForVideo(ctx, url)
	if err != nil {
		t.Fatalf("ResultsForVideo: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 results for video, got %d", len(all))
	}
	removed, err := st.DeleteResults(ctx, url)
	if err != nil || removed != 2 {
		t.Fatalf("DeleteResults = %d, %v", removed, err)
	}
}

func TestBatchSettingsPersistence(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	defaults := queue.DefaultBatchSettings()

	got, err := st.BatchSettings(ctx, defaults)
	if err != nil || got != defaults {
		t.Fatalf("expected defaults before save, got %+v, %v", got, err)
	}

	custom := defaults
	custom.MaxConcurrentBatches = 4
	custom.PresubConfigID = "quick"
	if err := st.SaveBatchSettings(ctx, custom); err != nil {
		t.Fatalf("SaveBatchSettings: %v", err)
	}
	got, err = st.BatchSettings(ctx, defaults)
	if err != nil || got != custom {
		t.Fatalf("expected saved settings, got %+v, %v", got, err)
	}

	invalid := defaults
	invalid.MaxVideoDuration = 10
	if err := st.SaveBatchSettings(ctx, invalid); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAPIKeysReplaceAndClean(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	cleaned, err := st.SetAPIKeys(ctx, []string{" k1 ", "", "k2", "k1"})
	if err != nil {
		t.Fatalf("SetAPIKeys: %v", err)
	}
	if len(cleaned) != 2 || cleaned[0] != "k1" || cleaned[1] != "k2" {
		t.Fatalf("unexpected cleaned keys %v", cleaned)
	}
	keys, err := st.APIKeys(ctx)
	if err != nil {
		t.Fatalf("APIKeys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "k1" {
		t.Fatalf("unexpected keys %v", keys)
	}
	if _, err := st.SetAPIKeys(ctx, nil); err != nil {
		t.Fatalf("SetAPIKeys(nil): %v", err)
	}
	if keys, _ := st.APIKeys(ctx); len(keys) != 0 {
		t.Fatalf("expected empty pool, got %v", keys)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st, err := store.Open(cfg, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	path := st.Path()
	_ = st.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	if _, err := store.Open(cfg, nil); !errors.Is(err, store.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}

func TestStoreBacksQueueRestore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	q := queue.New(st, nil)
	if _, _, err := q.Enqueue(ctx, queue.Request{VideoURL: "https://example.com/one.mp4"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, _, err := q.Enqueue(ctx, queue.Request{VideoURL: "https://example.com/two.mp4"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	q.Close()

	restored := queue.New(st, nil)
	if err := restored.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer restored.Close()
	active, ok := restored.Active()
	if !ok || active.VideoURL != "https://example.com/one.mp4" {
		t.Fatalf("expected first job to resume, got %+v", active)
	}
	if status := restored.VideoStatus("https://example.com/two.mp4"); status.Position != 1 {
		t.Fatalf("expected second job pending at position 1, got %+v", status)
	}
}
