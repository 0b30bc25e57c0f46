package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"subtrans/internal/config"
	"subtrans/internal/keys"
	"subtrans/internal/logging"
	"subtrans/internal/notifications"
	"subtrans/internal/planner"
	"subtrans/internal/queue"
	"subtrans/internal/services"
	"subtrans/internal/store"
	"subtrans/internal/workflow"
)

// Daemon coordinates the translation queue and enforces single-instance
// execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	queue    *queue.Queue
	runner   *workflow.Runner
	keys     *keys.Pool
	notifier notifications.Service

	lockPath string
	lock     *flock.Flock

	running  atomic.Bool
	attached atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running         bool
	Active          *queue.Job
	Counts          queue.Counts
	Keys            int
	KeyAvailable    bool
	AttachedClients int
	DatabasePath    string
	LockFilePath    string
}

// Option customizes daemon construction.
type Option func(*options)

type options struct {
	prober   workflow.DurationProber
	notifier notifications.Service
}

// WithProber measures videos that were enqueued without a duration.
func WithProber(prober workflow.DurationProber) Option {
	return func(o *options) { o.prober = prober }
}

// WithNotifier replaces the ntfy service built from the configuration.
func WithNotifier(notifier notifications.Service) Option {
	return func(o *options) { o.notifier = notifier }
}

// New wires the key pool, runner, and queue around st. provider performs
// the per-batch translation calls.
func New(cfg *config.Config, st *store.Store, provider workflow.Provider, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || st == nil || provider == nil {
		return nil, errors.New("daemon requires config, store, and provider")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    st,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	d.notifier = o.notifier
	if d.notifier == nil {
		d.notifier = notifications.NewService(cfg, notifications.WithAttachedClients(d.AttachedClients))
	}
	d.keys = keys.NewPool(nil, logger)
	d.runner = workflow.NewRunner(cfg, workflow.Dependencies{
		Provider: provider,
		Keys:     d.keys,
		Results:  st,
		Notifier: d.notifier,
		Prober:   o.prober,
	}, logger)
	d.queue = queue.New(st, logger)
	d.queue.SetRunner(d.runner)
	return d, nil
}

// Start acquires the daemon lock, loads the key pool, and restores the queue.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another subtrans daemon instance is already running")
	}

	if err := d.loadKeys(ctx); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.queue.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start queue: %w", err)
	}

	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()
	d.running.Store(true)
	d.logger.Info("subtrans daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("keys", d.keys.Size()),
	)
	return nil
}

// loadKeys fills the pool from the store, falling back to the configured keys
// when none were ever saved.
func (d *Daemon) loadKeys(ctx context.Context) error {
	stored, err := d.store.APIKeys(ctx)
	if err != nil {
		return fmt.Errorf("load api keys: %w", err)
	}
	if len(stored) == 0 {
		stored = d.cfg.Provider.APIKeys
	}
	d.keys.Initialize(stored)
	if d.keys.Size() == 0 {
		logging.WarnWithContext(d.logger, "no provider keys configured", "keys_missing",
			logging.String(logging.FieldErrorHint, "run subtrans keys set or set provider.api_keys"),
			logging.String(logging.FieldImpact, "translation jobs will fail until a key is added"),
		)
	}
	return nil
}

// Stop halts the active execution and releases the daemon lock. The active
// job stays translating in the snapshot and resumes on the next start.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.mu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	d.runner.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("subtrans daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	d.queue.Close()
	return d.store.Close()
}

// EnqueueRequest describes a video to translate.
type EnqueueRequest struct {
	VideoURL        string
	Range           *planner.Range
	Origin          queue.Origin
	DurationSeconds float64
	MimeType        string
}

// Enqueue adds a job using the persisted batch settings.
func (d *Daemon) Enqueue(ctx context.Context, req EnqueueRequest) (queue.Job, bool, error) {
	settings, err := d.Settings(ctx)
	if err != nil {
		return queue.Job{}, false, err
	}
	job, created, err := d.queue.Enqueue(ctx, queue.Request{
		VideoURL:        req.VideoURL,
		Range:           req.Range,
		Origin:          req.Origin,
		Settings:        &settings,
		DurationSeconds: req.DurationSeconds,
		MimeType:        req.MimeType,
	})
	if err != nil {
		return queue.Job{}, false, err
	}
	return job, created, nil
}

// Retranslate schedules a redo of one batch of a finished translation.
func (d *Daemon) Retranslate(ctx context.Context, url string, rng *planner.Range, index int) (queue.Job, bool, error) {
	record, err := d.store.LoadResult(ctx, queue.ResultKey(strings.TrimSpace(url), rng))
	if err != nil {
		return queue.Job{}, false, err
	}
	if index < 0 || index >= len(record.Plan) {
		return queue.Job{}, false, services.Wrap(services.ErrValidation, "daemon", "retranslate",
			fmt.Sprintf("batch %d out of range (video has %d batches)", index, len(record.Plan)), nil)
	}
	settings, err := d.Settings(ctx)
	if err != nil {
		return queue.Job{}, false, err
	}
	return d.queue.Enqueue(ctx, queue.Request{
		VideoURL:              record.VideoURL,
		Range:                 record.Range,
		Origin:                queue.OriginDirect,
		Settings:              &settings,
		MimeType:              record.MimeType,
		RetranslateBatchIndex: &index,
	})
}

// Pause suspends the active job for url.
func (d *Daemon) Pause(ctx context.Context, url string) (queue.Job, error) {
	return d.queue.Pause(ctx, url)
}

// Resume schedules the paused job for url ahead of other pending jobs.
func (d *Daemon) Resume(ctx context.Context, url string) (queue.Job, error) {
	return d.queue.Resume(ctx, url)
}

// Retry re-queues the failed job for url.
func (d *Daemon) Retry(ctx context.Context, url string) (queue.Job, error) {
	return d.queue.Retry(ctx, url)
}

// RemoveSummary reports what Remove deleted.
type RemoveSummary struct {
	Jobs    int
	Results int64
}

// Remove evicts every job for url. With purge set the stored results for the
// video are deleted too.
func (d *Daemon) Remove(ctx context.Context, url string, purge bool) (RemoveSummary, error) {
	var summary RemoveSummary
	removed, err := d.queue.Remove(ctx, url)
	summary.Jobs = removed
	if err != nil && !(purge && errors.Is(err, services.ErrNotFound)) {
		return summary, err
	}
	if purge {
		deleted, derr := d.store.DeleteResults(ctx, strings.TrimSpace(url))
		if derr != nil {
			return summary, derr
		}
		summary.Results = deleted
		if removed == 0 && deleted == 0 {
			return summary, err
		}
	}
	return summary, nil
}

// Items lists jobs, optionally filtered by status.
func (d *Daemon) Items(statuses ...queue.Status) []queue.Job {
	return d.queue.Items(statuses...)
}

// Counts returns the number of jobs per status.
func (d *Daemon) Counts() queue.Counts {
	return d.queue.Counts()
}

// VideoStatus reports where url sits in the queue.
func (d *Daemon) VideoStatus(url string) queue.VideoQueueStatus {
	return d.queue.VideoStatus(url)
}

// Active returns the translating job.
func (d *Daemon) Active() (queue.Job, bool) {
	return d.queue.Active()
}

// Job returns the job with id.
func (d *Daemon) Job(id string) (queue.Job, bool) {
	return d.queue.Get(id)
}

// Result returns the stored translation of url over rng.
func (d *Daemon) Result(ctx context.Context, url string, rng *planner.Range) (queue.Result, error) {
	return d.store.LoadResult(ctx, queue.ResultKey(strings.TrimSpace(url), rng))
}

// Results returns every stored translation of url.
func (d *Daemon) Results(ctx context.Context, url string) ([]queue.Result, error) {
	return d.store.ResultsForVideo(ctx, strings.TrimSpace(url))
}

// Subscribe receives queue-shape events.
func (d *Daemon) Subscribe() (<-chan queue.Event, func()) {
	return d.queue.Subscribe()
}

// SubscribeJob receives every event for one job.
func (d *Daemon) SubscribeJob(id string) (<-chan queue.Event, func(), error) {
	return d.queue.SubscribeJob(id)
}

// SetKeys persists keys and reloads the live pool. Executions already holding
// a key keep it.
func (d *Daemon) SetKeys(ctx context.Context, values []string) (int, error) {
	cleaned, err := d.store.SetAPIKeys(ctx, values)
	if err != nil {
		return 0, err
	}
	d.keys.Initialize(cleaned)
	d.logger.Info("provider keys updated", logging.Int("keys", len(cleaned)))
	return len(cleaned), nil
}

// Keys returns the pool contents with every key masked.
func (d *Daemon) Keys(ctx context.Context) ([]string, error) {
	stored, err := d.store.APIKeys(ctx)
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		stored = d.cfg.Provider.APIKeys
	}
	masked := make([]string, 0, len(stored))
	for _, key := range stored {
		masked = append(masked, MaskKey(key))
	}
	return masked, nil
}

// MaskKey hides all but the last four characters of key.
func MaskKey(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

// Settings returns the batch settings applied to new jobs.
func (d *Daemon) Settings(ctx context.Context) (queue.BatchSettings, error) {
	return d.store.BatchSettings(ctx, queue.BatchSettingsFromConfig(d.cfg.Batch))
}

// SetSettings validates and persists the batch settings for new jobs. Jobs
// already planned keep their own copy.
func (d *Daemon) SetSettings(ctx context.Context, settings queue.BatchSettings) (queue.BatchSettings, error) {
	if err := d.store.SaveBatchSettings(ctx, settings); err != nil {
		return queue.BatchSettings{}, err
	}
	return settings, nil
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// AttachClient records a connected UI client. The returned func detaches it.
func (d *Daemon) AttachClient() func() {
	d.attached.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() { d.attached.Add(-1) })
	}
}

// AttachedClients returns the number of connected UI clients.
func (d *Daemon) AttachedClients() int {
	return int(d.attached.Load())
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	status := Status{
		Running:         d.running.Load(),
		Counts:          d.queue.Counts(),
		Keys:            d.keys.Size(),
		KeyAvailable:    d.keys.HasAvailableKey(),
		AttachedClients: d.AttachedClients(),
		DatabasePath:    d.store.Path(),
		LockFilePath:    d.lockPath,
	}
	if job, ok := d.queue.Active(); ok {
		status.Active = &job
	}
	return status
}
