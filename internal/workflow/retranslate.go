package workflow

import (
	"fmt"
	"time"

	"subtrans/internal/logging"
	"subtrans/internal/notifications"
	"subtrans/internal/planner"
	"subtrans/internal/queue"
	"subtrans/internal/services"
	"subtrans/internal/subtitle"
)

// retranslate redoes one window of a stored result. The job tracks that
// single window; the stored record keeps every other window as it was.
func (e *execution) retranslate() {
	index := *e.job.RetranslateBatchIndex
	if e.runner.results == nil {
		e.fail(services.Wrap(services.ErrConfiguration, "runner", "retranslate", "no result store configured", nil))
		return
	}
	record, err := e.runner.results.LoadResult(e.parent, queue.ResultKey(e.job.VideoURL, e.job.Range))
	if err != nil {
		e.fail(fmt.Errorf("load stored result: %w", err))
		return
	}
	if index < 0 || index >= len(record.Plan) {
		e.fail(services.Wrap(services.ErrValidation, "runner", "retranslate",
			fmt.Sprintf("batch %d outside stored plan of %d", index, len(record.Plan)), nil))
		return
	}
	window := record.Plan[index]

	if !e.apply(func(j *queue.Job) {
		j.Plan = []planner.Window{window}
		j.TotalBatches = 1
		j.CompletedBatches = 0
		j.BatchStatuses = []queue.BatchStatus{queue.BatchProcessing}
		j.BatchOutputs = []string{""}
		if j.MimeType == "" {
			j.MimeType = record.MimeType
		}
	}) {
		return
	}

	done := make(chan batchResult, 1)
	go func() { done <- e.translate(index, window) }()
	var res batchResult
	select {
	case <-e.ctx.Done():
		return
	case res = <-done:
	}
	if res.err != nil {
		e.fail(res.err)
		return
	}

	fragment := subtitle.Repair(res.text)
	track := subtitle.Splice(record.Track, subtitle.Part{Text: fragment, OffsetSeconds: window.WindowStart},
		window.WindowStart, window.WindowEnd)
	record.Track = track
	record.BatchStatuses = padStatuses(record.BatchStatuses, len(record.Plan))
	record.BatchOutputs = padOutputs(record.BatchOutputs, len(record.Plan))
	record.BatchStatuses[index] = queue.BatchCompleted
	record.BatchOutputs[index] = fragment
	record.UpdatedAt = time.Now().UTC()
	if !e.saveResult(record) {
		e.fail(services.Wrap(services.ErrTransient, "runner", "retranslate", "stored result was not updated", nil))
		return
	}

	if e.stopped() {
		return
	}
	job, ok := e.sink.Apply(e.id, func(j *queue.Job) {
		j.BatchStatuses[0] = queue.BatchCompleted
		j.BatchOutputs[0] = fragment
		j.CompletedBatches = 1
		j.PartialResult = track
		j.Result = &track
		j.Status = queue.StatusCompleted
	})
	e.cancel()
	if !ok {
		return
	}
	e.logger.Info("batch retranslated",
		logging.Int(logging.FieldBatchIndex, index),
		logging.Duration("elapsed", res.elapsed),
	)
	e.runner.notify(e.parent, notifications.EventJobCompleted, notifications.Payload{
		"origin":   string(job.Origin),
		"videoURL": job.VideoURL,
	})
}

func padStatuses(statuses []queue.BatchStatus, n int) []queue.BatchStatus {
	out := make([]queue.BatchStatus, max(n, len(statuses)))
	copy(out, statuses)
	for i := range out {
		if out[i] == "" {
			out[i] = queue.BatchPending
		}
	}
	return out
}
