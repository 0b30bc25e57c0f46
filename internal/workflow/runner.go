package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"subtrans/internal/config"
	"subtrans/internal/logging"
	"subtrans/internal/media/ffprobe"
	"subtrans/internal/notifications"
	"subtrans/internal/queue"
	"subtrans/internal/services/gemini"
)

// Provider generates subtitle text for one window of a video.
type Provider interface {
	Generate(ctx context.Context, req gemini.Request) (gemini.Response, error)
}

// KeySource hands out provider credentials in rotation.
type KeySource interface {
	Acquire() (string, bool)
	ReportFailure(key string)
	HasAvailableKey() bool
	Size() int
}

// ResultStore keeps the finished track of each video.
type ResultStore interface {
	SaveResult(ctx context.Context, result queue.Result) error
	LoadResult(ctx context.Context, key string) (queue.Result, error)
}

// DurationProber measures a video when the request did not say how long it
// is.
type DurationProber interface {
	Probe(ctx context.Context, target string) (ffprobe.Info, error)
}

// Dependencies are the collaborators a Runner drives. Provider and Keys are
// required; the rest may be nil.
type Dependencies struct {
	Provider Provider
	Keys     KeySource
	Results  ResultStore
	Notifier notifications.Service
	Prober   DurationProber
}

// Runner executes queue jobs. It implements queue.Runner.
type Runner struct {
	cfg      *config.Config
	provider Provider
	keys     KeySource
	results  ResultStore
	notifier notifications.Service
	prober   DurationProber
	limiter  *rate.Limiter
	timeout  time.Duration
	logger   *slog.Logger

	mu         sync.Mutex
	executions map[string]*execution
	wg         sync.WaitGroup
}

// NewRunner constructs a runner from provider settings in cfg.
func NewRunner(cfg *config.Config, deps Dependencies, logger *slog.Logger) *Runner {
	if cfg == nil {
		defaults := config.Default()
		cfg = &defaults
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	r := &Runner{
		cfg:        cfg,
		provider:   deps.Provider,
		keys:       deps.Keys,
		results:    deps.Results,
		notifier:   notifier,
		prober:     deps.Prober,
		timeout:    time.Duration(cfg.Provider.TimeoutSeconds) * time.Second,
		logger:     logging.NewComponentLogger(logger, "runner"),
		executions: make(map[string]*execution),
	}
	if r.timeout <= 0 {
		r.timeout = 10 * time.Minute
	}
	if rpm := cfg.Provider.RequestsPerMinute; rpm > 0 {
		// Tokens per second = RPM / 60.
		r.limiter = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1)
	}
	return r
}

// Start launches an execution for job and returns immediately. An existing
// execution for the same job is abandoned first.
func (r *Runner) Start(ctx context.Context, job queue.Job, sink queue.Sink) {
	if ctx == nil {
		ctx = context.Background()
	}
	execCtx, cancel := context.WithCancel(ctx)
	e := &execution{
		runner: r,
		id:     job.ID,
		job:    job,
		sink:   sink,
		parent: ctx,
		ctx:    execCtx,
		cancel: cancel,
		logger: r.logger.With(
			logging.String(logging.FieldJobID, job.ID),
			logging.String(logging.FieldVideoURL, job.VideoURL),
		),
	}

	r.mu.Lock()
	if previous, ok := r.executions[job.ID]; ok {
		previous.cancel()
	}
	r.executions[job.ID] = e
	r.wg.Add(1)
	r.mu.Unlock()

	go e.run()
}

// Stop abandons the execution for jobID. Provider calls already in flight
// finish in the background and their results are discarded.
func (r *Runner) Stop(jobID string) {
	r.mu.Lock()
	e, ok := r.executions[jobID]
	if ok {
		delete(r.executions, jobID)
	}
	r.mu.Unlock()
	if ok {
		e.cancel()
		e.logger.Info("execution stopped")
	}
}

// Running reports how many executions are live.
func (r *Runner) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.executions)
}

// Wait blocks until every execution and pending notification has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) finished(e *execution) {
	r.mu.Lock()
	if current, ok := r.executions[e.id]; ok && current == e {
		delete(r.executions, e.id)
	}
	r.mu.Unlock()
	e.cancel()
	r.wg.Done()
}

func (r *Runner) wait(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	return r.limiter.Wait(ctx)
}

func (r *Runner) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.notifier.Publish(ctx, event, payload); err != nil {
			logging.WarnWithContext(r.logger, "notification failed", "notification_failed",
				logging.String("event", string(event)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
				logging.String(logging.FieldImpact, "user was not notified"),
			)
		}
	}()
}
