package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"subtrans/internal/logging"
	"subtrans/internal/notifications"
	"subtrans/internal/planner"
	"subtrans/internal/queue"
	"subtrans/internal/services"
	"subtrans/internal/subtitle"
)

// execution is one run of one job. A single goroutine owns it; workers only
// talk back through the results channel.
type execution struct {
	runner *Runner
	id     string
	job    queue.Job
	sink   queue.Sink
	// parent outlives Stop so in-flight provider calls are not aborted.
	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

type batchResult struct {
	index    int
	text     string
	err      error
	attempts int
	elapsed  time.Duration
}

func (e *execution) run() {
	defer e.runner.finished(e)

	if e.job.IsRetranslate() {
		e.retranslate()
		return
	}
	if !e.job.IsPlanned() && !e.plan() {
		return
	}
	e.dispatch()
}

func (e *execution) stopped() bool {
	return e.ctx.Err() != nil
}

// apply writes through the sink and reports whether the execution should
// keep going.
func (e *execution) apply(mutate func(*queue.Job)) bool {
	if e.stopped() {
		return false
	}
	job, ok := e.sink.Apply(e.id, func(j *queue.Job) {
		if e.stopped() {
			return
		}
		mutate(j)
	})
	if !ok {
		e.cancel()
		return false
	}
	e.job = job
	if job.Status != queue.StatusTranslating {
		e.cancel()
		return false
	}
	return true
}

func (e *execution) fail(err error) {
	if e.stopped() {
		return
	}
	kind, hint := services.ErrorDetails(err)
	logging.ErrorWithContext(e.logger, "translation job failed", "job_failed",
		logging.Error(err),
		logging.String("error_kind", kind),
		logging.String(logging.FieldErrorHint, hint),
	)
	job, ok := e.sink.Apply(e.id, func(j *queue.Job) {
		j.SetFailed(err.Error())
	})
	e.cancel()
	if ok {
		e.runner.notify(e.parent, notifications.EventJobFailed, notifications.Payload{
			"origin":   string(job.Origin),
			"videoURL": job.VideoURL,
			"error":    err.Error(),
		})
	}
}

func (e *execution) plan() bool {
	duration := e.job.DurationSeconds
	mimeType := e.job.MimeType
	if duration <= 0 && e.job.Range == nil {
		if e.runner.prober == nil {
			e.fail(services.Wrap(services.ErrValidation, "runner", "plan", "video duration unknown and probing is unavailable", nil))
			return false
		}
		info, err := e.runner.prober.Probe(e.parent, e.job.VideoURL)
		if err != nil {
			e.fail(services.Wrap(services.ErrValidation, "runner", "plan", "probe video duration", err))
			return false
		}
		duration = info.DurationSeconds
		if mimeType == "" {
			mimeType = info.MimeType
		}
		e.logger.Info("video probed",
			logging.Float64("duration_seconds", duration),
			logging.String("mime_type", info.MimeType),
		)
	}

	windows := planner.Plan(duration, e.job.Range, e.job.Settings.PlannerSettings())
	if len(windows) == 0 {
		e.fail(services.Wrap(services.ErrValidation, "runner", "plan", "nothing to translate in the requested span", nil))
		return false
	}
	e.logger.Info("batches planned",
		logging.Int("batches", len(windows)),
		logging.Float64("duration_seconds", duration),
	)
	return e.apply(func(j *queue.Job) {
		j.Plan = windows
		j.TotalBatches = len(windows)
		j.CompletedBatches = 0
		j.BatchStatuses = make([]queue.BatchStatus, len(windows))
		for i := range j.BatchStatuses {
			j.BatchStatuses[i] = queue.BatchPending
		}
		j.BatchOutputs = make([]string, len(windows))
		j.PartialResult = ""
		j.DurationSeconds = duration
		j.MimeType = mimeType
	})
}

// dispatch runs every pending batch with at most MaxConcurrentBatches in
// flight and folds results in completion order.
func (e *execution) dispatch() {
	pending := e.job.PendingBatches()
	limit := max(1, e.job.Settings.MaxConcurrentBatches)
	results := make(chan batchResult, len(e.job.Plan))

	var g errgroup.Group
	g.SetLimit(limit)

	inflight, next := 0, 0
	for {
		for next < len(pending) && inflight < limit {
			index := pending[next]
			if !e.apply(func(j *queue.Job) { j.BatchStatuses[index] = queue.BatchProcessing }) {
				return
			}
			window := e.job.Plan[index]
			task := func() error {
				results <- e.translate(index, window)
				return nil
			}
			// A worker that already delivered its result may still hold its
			// slot for a moment.
			if !g.TryGo(task) {
				g.Go(task)
			}
			next++
			inflight++
		}
		if inflight == 0 {
			break
		}
		select {
		case <-e.ctx.Done():
			return
		case res := <-results:
			inflight--
			if !e.fold(res) {
				return
			}
		}
	}
	e.finish()
}

func (e *execution) fold(res batchResult) bool {
	batchLogger := e.logger.With(logging.Int(logging.FieldBatchIndex, res.index))
	if res.err != nil {
		if errors.Is(res.err, services.ErrNoCredential) {
			e.fail(res.err)
			return false
		}
		kind, hint := services.ErrorDetails(res.err)
		logging.WarnWithContext(batchLogger, "batch failed", "batch_failed",
			logging.Error(res.err),
			logging.String("error_kind", kind),
			logging.Int("attempts", res.attempts),
			logging.String(logging.FieldErrorHint, hint),
			logging.String(logging.FieldImpact, "window stays untranslated until retranslated"),
		)
		return e.apply(func(j *queue.Job) { j.BatchStatuses[res.index] = queue.BatchError })
	}

	repaired := subtitle.Repair(res.text)
	statuses := append([]queue.BatchStatus(nil), e.job.BatchStatuses...)
	outputs := padOutputs(e.job.BatchOutputs, len(e.job.Plan))
	statuses[res.index] = queue.BatchCompleted
	outputs[res.index] = repaired
	partial := subtitle.Merge(completedParts(e.job.Plan, statuses, outputs))

	if !e.apply(func(j *queue.Job) {
		j.BatchOutputs = padOutputs(j.BatchOutputs, len(j.Plan))
		j.BatchStatuses[res.index] = queue.BatchCompleted
		j.BatchOutputs[res.index] = repaired
		j.CompletedBatches++
		j.PartialResult = partial
	}) {
		return false
	}
	batchLogger.Info("batch completed",
		logging.Int("completed", e.job.CompletedBatches),
		logging.Int("total", e.job.TotalBatches),
		logging.Int("attempts", res.attempts),
		logging.Duration("elapsed", res.elapsed),
	)
	e.runner.notify(e.parent, notifications.EventBatchCompleted, notifications.Payload{
		"origin":     string(e.job.Origin),
		"videoURL":   e.job.VideoURL,
		"batchIndex": res.index,
		"completed":  e.job.CompletedBatches,
		"total":      e.job.TotalBatches,
	})
	return true
}

// finish merges every completed window into the final track. Failed windows
// stay visible in the batch statuses; a job with no completed window fails.
func (e *execution) finish() {
	parts := completedParts(e.job.Plan, e.job.BatchStatuses, e.job.BatchOutputs)
	if len(parts) == 0 {
		e.fail(services.Wrap(services.ErrTransient, "runner", "finish", "every batch failed", nil))
		return
	}
	track := subtitle.Merge(parts)
	failed := 0
	for _, status := range e.job.BatchStatuses {
		if status == queue.BatchError {
			failed++
		}
	}

	record := queue.Result{
		VideoURL:      e.job.VideoURL,
		Range:         e.job.Range,
		Track:         track,
		Plan:          e.job.Plan,
		BatchStatuses: e.job.BatchStatuses,
		BatchOutputs:  padOutputs(e.job.BatchOutputs, len(e.job.Plan)),
		MimeType:      e.job.MimeType,
		UpdatedAt:     time.Now().UTC(),
	}
	e.saveResult(record)

	if e.stopped() {
		return
	}
	job, ok := e.sink.Apply(e.id, func(j *queue.Job) {
		j.PartialResult = track
		j.Result = &track
		j.Status = queue.StatusCompleted
	})
	e.cancel()
	if !ok {
		return
	}
	e.logger.Info("translation completed",
		logging.Int("batches", job.TotalBatches),
		logging.Int("failed_batches", failed),
	)
	e.runner.notify(e.parent, notifications.EventJobCompleted, notifications.Payload{
		"origin":   string(job.Origin),
		"videoURL": job.VideoURL,
		"failed":   failed,
	})
}

func (e *execution) saveResult(record queue.Result) bool {
	if e.runner.results == nil {
		return true
	}
	if err := e.runner.results.SaveResult(e.parent, record); err != nil {
		logging.WarnWithContext(e.logger, "result record not saved", "result_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check database permissions and disk space"),
			logging.String(logging.FieldImpact, "result cannot be exported or retranslated after eviction"),
		)
		return false
	}
	return true
}

// translate calls the provider for one window. Credential rejections rotate
// to the next key, at most once per key in the pool.
func (e *execution) translate(index int, window planner.Window) batchResult {
	started := time.Now()
	r := e.runner
	req := e.request(window)
	ctx := services.WithBatchIndex(services.WithJobID(e.parent, e.id), index)

	attempts := 1
	if r.keys != nil {
		attempts = max(1, r.keys.Size())
	}
	var lastErr error
	tried := 0
	for attempt := 1; attempt <= attempts; attempt++ {
		tried = attempt
		var key string
		ok := false
		if r.keys != nil {
			key, ok = r.keys.Acquire()
		}
		if !ok {
			return batchResult{
				index:    index,
				err:      services.Wrap(services.ErrNoCredential, "runner", "acquire key", "key pool is empty or cooling down", lastErr),
				attempts: attempt,
				elapsed:  time.Since(started),
			}
		}
		if err := r.wait(ctx); err != nil {
			return batchResult{index: index, err: fmt.Errorf("rate limiter: %w", err), attempts: attempt, elapsed: time.Since(started)}
		}

		req.APIKey = key
		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		resp, err := r.provider.Generate(callCtx, req)
		cancel()
		if err == nil {
			return batchResult{index: index, text: resp.Text, attempts: attempt, elapsed: time.Since(started)}
		}
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, services.ErrTimeout) {
			err = services.Wrap(services.ErrTimeout, "runner", "generate", "provider call timed out", err)
		}

		r.keys.ReportFailure(key)
		lastErr = err
		if !services.IsCredentialFailure(err) || !r.keys.HasAvailableKey() {
			break
		}
		e.logger.Debug("rotating provider key",
			logging.Int(logging.FieldBatchIndex, index),
			logging.Int("attempt", attempt),
			logging.Error(err),
		)
	}
	return batchResult{index: index, err: lastErr, attempts: tried, elapsed: time.Since(started)}
}

func completedParts(plan []planner.Window, statuses []queue.BatchStatus, outputs []string) []subtitle.Part {
	var parts []subtitle.Part
	for i, status := range statuses {
		if status != queue.BatchCompleted || i >= len(plan) || i >= len(outputs) {
			continue
		}
		parts = append(parts, subtitle.Part{Text: outputs[i], OffsetSeconds: plan[i].WindowStart})
	}
	return parts
}

func padOutputs(outputs []string, n int) []string {
	out := make([]string, max(n, len(outputs)))
	copy(out, outputs)
	return out
}
