package queue

import (
	"fmt"
	"strings"
	"time"

	"subtrans/internal/config"
	"subtrans/internal/planner"
)

// Status represents the lifecycle of a translation job.
type Status string

const (
	StatusPending     Status = "pending"
	StatusTranslating Status = "translating"
	StatusPaused      Status = "paused"
	StatusCompleted   Status = "completed"
	StatusError       Status = "error"
)

var allStatuses = []Status{
	StatusPending,
	StatusTranslating,
	StatusPaused,
	StatusCompleted,
	StatusError,
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// BatchStatus tracks one planned window of a job.
type BatchStatus string

const (
	BatchPending    BatchStatus = "pending"
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
	BatchError      BatchStatus = "error"
)

// Origin records how a job entered the system. Notification gating differs
// between jobs queued for later and jobs started for the video being watched.
type Origin string

const (
	OriginQueue  Origin = "queue"
	OriginDirect Origin = "direct"
)

// BatchSettings controls how a job is split and dispatched. A copy is stored
// on each job and never changes once planning starts.
type BatchSettings struct {
	MaxVideoDuration     int    `json:"max_video_duration"`
	MaxConcurrentBatches int    `json:"max_concurrent_batches"`
	BatchOffset          int    `json:"batch_offset"`
	PresubDuration       int    `json:"presub_duration"`
	PresubConfigID       string `json:"presub_config_id,omitempty"`
}

// DefaultBatchSettings returns the built-in batch settings.
func DefaultBatchSettings() BatchSettings {
	return BatchSettingsFromConfig(config.Default().Batch)
}

// BatchSettingsFromConfig copies the configured batch defaults.
func BatchSettingsFromConfig(b config.Batch) BatchSettings {
	return BatchSettings{
		MaxVideoDuration:     b.MaxVideoDuration,
		MaxConcurrentBatches: b.MaxConcurrentBatches,
		BatchOffset:          b.BatchOffset,
		PresubDuration:       b.PresubDuration,
		PresubConfigID:       b.PresubConfigID,
	}
}

// Validate checks the settings against their allowed ranges.
func (s BatchSettings) Validate() error {
	return config.ValidateBatch(config.Batch{
		MaxVideoDuration:     s.MaxVideoDuration,
		MaxConcurrentBatches: s.MaxConcurrentBatches,
		BatchOffset:          s.BatchOffset,
		PresubDuration:       s.PresubDuration,
		PresubConfigID:       s.PresubConfigID,
	})
}

// PlannerSettings converts the settings for batch planning.
func (s BatchSettings) PlannerSettings() planner.Settings {
	return planner.Settings{
		MaxVideoDuration: float64(s.MaxVideoDuration),
		BatchOffset:      float64(s.BatchOffset),
		PresubDuration:   float64(s.PresubDuration),
		Presub:           s.PresubConfigID != "",
	}
}

// Job is one translation request for a video or a range of it.
type Job struct {
	ID                    string           `json:"id"`
	VideoURL              string           `json:"video_url"`
	Range                 *planner.Range   `json:"range,omitempty"`
	Origin                Origin           `json:"origin"`
	Status                Status           `json:"status"`
	Settings              BatchSettings    `json:"settings"`
	Plan                  []planner.Window `json:"plan,omitempty"`
	TotalBatches          int              `json:"total_batches"`
	CompletedBatches      int              `json:"completed_batches"`
	BatchStatuses         []BatchStatus    `json:"batch_statuses,omitempty"`
	BatchOutputs          []string         `json:"batch_outputs,omitempty"`
	PartialResult         string           `json:"partial_result,omitempty"`
	Result                *string          `json:"result,omitempty"`
	RetranslateBatchIndex *int             `json:"retranslate_batch_index,omitempty"`
	IsBeingRemoved        bool             `json:"is_being_removed,omitempty"`
	DurationSeconds       float64          `json:"duration_seconds,omitempty"`
	MimeType              string           `json:"mime_type,omitempty"`
	ErrorMessage          string           `json:"error_message,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// Key identifies equivalent jobs: the same video, range, and retranslated
// batch.
func (j Job) Key() string {
	return jobKey(j.VideoURL, j.Range, j.RetranslateBatchIndex)
}

func jobKey(url string, rng *planner.Range, retranslate *int) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(url))
	if rng != nil {
		fmt.Fprintf(&b, "#%.3f-%.3f", rng.Start, rng.End)
	}
	if retranslate != nil {
		fmt.Fprintf(&b, "#batch-%d", *retranslate)
	}
	return b.String()
}

// IsRetranslate reports whether the job redoes a single batch of a stored
// result.
func (j Job) IsRetranslate() bool {
	return j.RetranslateBatchIndex != nil
}

// IsPlanned reports whether batches have been planned for the job.
func (j Job) IsPlanned() bool {
	return len(j.Plan) > 0 && len(j.BatchStatuses) == len(j.Plan)
}

// PendingBatches returns the indexes still waiting for dispatch, in order.
func (j Job) PendingBatches() []int {
	var out []int
	for i, status := range j.BatchStatuses {
		if status == BatchPending {
			out = append(out, i)
		}
	}
	return out
}

// BatchesSettled reports whether every batch finished, successfully or not.
func (j Job) BatchesSettled() bool {
	if len(j.BatchStatuses) == 0 {
		return false
	}
	for _, status := range j.BatchStatuses {
		if status != BatchCompleted && status != BatchError {
			return false
		}
	}
	return true
}

// SetFailed marks the job as errored with message. Batches that were in
// flight go back to pending so a retry resumes them.
func (j *Job) SetFailed(message string) {
	j.Status = StatusError
	j.ErrorMessage = message
	j.resetProcessing()
}

func (j *Job) resetProcessing() {
	for i, status := range j.BatchStatuses {
		if status == BatchProcessing {
			j.BatchStatuses[i] = BatchPending
		}
	}
}

// Clone returns a deep copy safe to hand to other goroutines.
func (j Job) Clone() Job {
	out := j
	if j.Range != nil {
		rng := *j.Range
		out.Range = &rng
	}
	if j.Result != nil {
		result := *j.Result
		out.Result = &result
	}
	if j.RetranslateBatchIndex != nil {
		idx := *j.RetranslateBatchIndex
		out.RetranslateBatchIndex = &idx
	}
	out.Plan = append([]planner.Window(nil), j.Plan...)
	out.BatchStatuses = append([]BatchStatus(nil), j.BatchStatuses...)
	out.BatchOutputs = append([]string(nil), j.BatchOutputs...)
	return out
}

// Request describes a job to enqueue.
type Request struct {
	VideoURL              string
	Range                 *planner.Range
	Origin                Origin
	Settings              *BatchSettings
	DurationSeconds       float64
	MimeType              string
	RetranslateBatchIndex *int
}

// VideoQueueStatus summarizes where a video sits in the queue. Position is
// the 1-based rank among pending jobs and zero otherwise.
type VideoQueueStatus struct {
	InQueue  bool   `json:"in_queue"`
	Status   Status `json:"status,omitempty"`
	Position int    `json:"position,omitempty"`
}

// Counts maps each status to the number of jobs holding it.
type Counts map[Status]int

// EventType names a queue or job event.
type EventType string

const (
	EventJobAdded      EventType = "job_added"
	EventJobRemoved    EventType = "job_removed"
	EventStatusChanged EventType = "status_changed"
	EventProgress      EventType = "progress"
)

// Event is published on every queue-shape change and every job update.
type Event struct {
	Type           EventType `json:"type"`
	Job            Job       `json:"job"`
	PreviousStatus Status    `json:"previous_status,omitempty"`
	Timestamp      time.Time `json:"ts"`
}

// Terminal reports whether the event ends the job's execution.
func (e Event) Terminal() bool {
	if e.Type != EventStatusChanged {
		return false
	}
	return e.Job.Status == StatusCompleted || e.Job.Status == StatusError
}

// Result is the stored subtitle track for a video or range, together with the
// plan that produced it so single batches can be retranslated later.
type Result struct {
	VideoURL      string           `json:"video_url"`
	Range         *planner.Range   `json:"range,omitempty"`
	Track         string           `json:"track"`
	Plan          []planner.Window `json:"plan"`
	BatchStatuses []BatchStatus    `json:"batch_statuses"`
	BatchOutputs  []string         `json:"batch_outputs"`
	MimeType      string           `json:"mime_type,omitempty"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Key identifies the stored result. Jobs for the same video and range share
// it, including retranslations of single batches.
func (r Result) Key() string {
	return ResultKey(r.VideoURL, r.Range)
}

// ResultKey builds the result key for url and an optional range.
func ResultKey(url string, rng *planner.Range) string {
	return jobKey(url, rng, nil)
}
