package api

import (
	"time"

	"subtrans/internal/daemon"
	"subtrans/internal/planner"
	"subtrans/internal/queue"
)

// FromJob converts a queue job to its API representation.
func FromJob(job queue.Job) Job {
	dto := Job{
		ID:                    job.ID,
		VideoURL:              job.VideoURL,
		Range:                 FromRange(job.Range),
		Origin:                string(job.Origin),
		Status:                string(job.Status),
		Progress:              progressFor(job),
		Settings:              FromSettings(job.Settings),
		PartialResult:         job.PartialResult,
		Result:                job.Result,
		RetranslateBatchIndex: job.RetranslateBatchIndex,
		DurationSeconds:       job.DurationSeconds,
		MimeType:              job.MimeType,
		ErrorMessage:          job.ErrorMessage,
		CreatedAt:             formatTime(job.CreatedAt),
		UpdatedAt:             formatTime(job.UpdatedAt),
	}
	return dto
}

// FromJobs converts a slice of queue jobs into API DTOs.
func FromJobs(jobs []queue.Job) []Job {
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job))
	}
	return out
}

func progressFor(job queue.Job) JobProgress {
	progress := JobProgress{
		TotalBatches:     job.TotalBatches,
		CompletedBatches: job.CompletedBatches,
	}
	if len(job.BatchStatuses) > 0 {
		progress.BatchStatuses = make([]string, len(job.BatchStatuses))
		for i, status := range job.BatchStatuses {
			progress.BatchStatuses[i] = string(status)
			if status == queue.BatchError {
				progress.FailedBatches++
			}
		}
	}
	if job.TotalBatches > 0 {
		progress.Percent = float64(job.CompletedBatches) / float64(job.TotalBatches) * 100
	}
	if job.Status == queue.StatusCompleted {
		progress.Percent = 100
	}
	return progress
}

// FromEvent converts a queue event.
func FromEvent(evt queue.Event) Event {
	return Event{
		Type:           string(evt.Type),
		Job:            FromJob(evt.Job),
		PreviousStatus: string(evt.PreviousStatus),
		Timestamp:      formatTime(evt.Timestamp),
	}
}

// FromResult converts a stored result. Batch outputs are dropped; the
// merged track carries them.
func FromResult(result queue.Result) Result {
	dto := Result{
		VideoURL:  result.VideoURL,
		Range:     FromRange(result.Range),
		Track:     result.Track,
		Batches:   make([]Window, 0, len(result.Plan)),
		MimeType:  result.MimeType,
		UpdatedAt: formatTime(result.UpdatedAt),
	}
	for i, window := range result.Plan {
		status := queue.BatchPending
		if i < len(result.BatchStatuses) {
			status = result.BatchStatuses[i]
		}
		dto.Batches = append(dto.Batches, Window{
			Index:         window.Index,
			WindowStart:   window.WindowStart,
			WindowEnd:     window.WindowEnd,
			ContextOffset: window.ContextOffset,
			Presub:        window.Presub,
			Status:        string(status),
		})
	}
	return dto
}

// FromStatus converts daemon status. pid is the daemon process id.
func FromStatus(status daemon.Status, pid int) DaemonStatus {
	dto := DaemonStatus{
		Running:         status.Running,
		PID:             pid,
		Counts:          FromCounts(status.Counts),
		Keys:            status.Keys,
		KeyAvailable:    status.KeyAvailable,
		AttachedClients: status.AttachedClients,
		DatabasePath:    status.DatabasePath,
		LockFilePath:    status.LockFilePath,
	}
	if status.Active != nil {
		active := FromJob(*status.Active)
		dto.Active = &active
	}
	return dto
}

// FromCounts converts per-status counts to a string-keyed map.
func FromCounts(counts queue.Counts) map[string]int {
	out := make(map[string]int, len(counts))
	for status, n := range counts {
		out[string(status)] = n
	}
	return out
}

// FromVideoStatus converts a queue position report.
func FromVideoStatus(status queue.VideoQueueStatus) VideoStatus {
	return VideoStatus{
		InQueue:  status.InQueue,
		Status:   string(status.Status),
		Position: status.Position,
	}
}

// FromSettings converts batch settings.
func FromSettings(s queue.BatchSettings) BatchSettings {
	return BatchSettings{
		MaxVideoDuration:     s.MaxVideoDuration,
		MaxConcurrentBatches: s.MaxConcurrentBatches,
		BatchOffset:          s.BatchOffset,
		PresubDuration:       s.PresubDuration,
		PresubConfigID:       s.PresubConfigID,
	}
}

// ToSettings converts API batch settings back to the queue model.
func ToSettings(s BatchSettings) queue.BatchSettings {
	return queue.BatchSettings{
		MaxVideoDuration:     s.MaxVideoDuration,
		MaxConcurrentBatches: s.MaxConcurrentBatches,
		BatchOffset:          s.BatchOffset,
		PresubDuration:       s.PresubDuration,
		PresubConfigID:       s.PresubConfigID,
	}
}

// FromRange converts an optional planner range.
func FromRange(rng *planner.Range) *Range {
	if rng == nil {
		return nil
	}
	return &Range{Start: rng.Start, End: rng.End}
}

// ToRange converts an optional API range.
func ToRange(rng *Range) *planner.Range {
	if rng == nil {
		return nil
	}
	return &planner.Range{Start: rng.Start, End: rng.End}
}

// ToEnqueueRequest converts an enqueue body for the daemon.
func ToEnqueueRequest(req EnqueueRequest) daemon.EnqueueRequest {
	origin := queue.OriginQueue
	if queue.Origin(req.Origin) == queue.OriginDirect {
		origin = queue.OriginDirect
	}
	return daemon.EnqueueRequest{
		VideoURL:        req.VideoURL,
		Range:           ToRange(req.Range),
		Origin:          origin,
		DurationSeconds: req.DurationSeconds,
		MimeType:        req.MimeType,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
