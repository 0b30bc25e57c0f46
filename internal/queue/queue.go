package queue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"subtrans/internal/events"
	"subtrans/internal/logging"
	"subtrans/internal/services"
)

// Persister stores the queue snapshot.
type Persister interface {
	SaveJobs(ctx context.Context, jobs []Job) error
	LoadJobs(ctx context.Context) ([]Job, error)
}

// Sink is the Runner's write path into the queue.
type Sink interface {
	// Apply runs mutate against the job when it is still translating and
	// returns the updated snapshot. It returns false when the write was
	// discarded.
	Apply(jobID string, mutate func(*Job)) (Job, bool)
}

// Runner executes the active job. Start must not block; Stop abandons an
// execution without waiting for in-flight provider calls.
type Runner interface {
	Start(ctx context.Context, job Job, sink Sink)
	Stop(jobID string)
}

// Queue holds every job and enforces a single active job.
type Queue struct {
	mu        sync.Mutex
	jobs      []*Job
	activeID  string
	runner    Runner
	persister Persister
	logger    *slog.Logger
	ctx       context.Context
	hub       *events.Hub[Event]
	jobHubs   map[string]*events.Hub[Event]
	now       func() time.Time
}

// New constructs an empty queue. persister may be nil for an in-memory queue.
func New(persister Persister, logger *slog.Logger) *Queue {
	return &Queue{
		persister: persister,
		logger:    logging.NewComponentLogger(logger, "queue"),
		ctx:       context.Background(),
		hub:       events.NewHub[Event](),
		jobHubs:   make(map[string]*events.Hub[Event]),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetRunner attaches the executor for the active job. It must be called
// before Start.
func (q *Queue) SetRunner(runner Runner) {
	q.mu.Lock()
	q.runner = runner
	q.mu.Unlock()
}

// Start restores the persisted snapshot and promotes the first pending job.
// ctx bounds every execution the queue launches.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	q.ctx = ctx
	q.mu.Unlock()
	return q.Restore(ctx)
}

// Restore reloads jobs from the persister. A job that was translating when the
// snapshot was written goes back to the head of the pending jobs with its in
// flight batches reset, so it resumes first.
func (q *Queue) Restore(ctx context.Context) error {
	if q.persister == nil {
		return nil
	}
	loaded, err := q.persister.LoadJobs(ctx)
	if err != nil {
		return fmt.Errorf("load queue snapshot: %w", err)
	}

	q.mu.Lock()
	var resumed, rest []*Job
	for i := range loaded {
		job := loaded[i].Clone()
		switch job.Status {
		case StatusCompleted:
			continue
		case StatusTranslating:
			job.Status = StatusPending
			job.resetProcessing()
			resumed = append(resumed, &job)
		default:
			job.IsBeingRemoved = false
			rest = append(rest, &job)
		}
	}
	q.jobs = append(resumed, rest...)
	q.activeID = ""
	if err := q.persistLocked(ctx); err != nil {
		q.logger.Warn("queue snapshot rewrite failed after restore",
			logging.Error(err),
			logging.String(logging.FieldEventType, "queue_persist_failed"),
			logging.String(logging.FieldErrorHint, "check database permissions"),
			logging.String(logging.FieldImpact, "restored state may be lost on restart"),
		)
	}
	next := q.promoteLocked()
	q.mu.Unlock()

	q.logger.Info("queue restored",
		logging.Int("jobs", len(resumed)+len(rest)),
		logging.Int("resumed", len(resumed)),
	)
	q.startRunner(next)
	return nil
}

// Enqueue appends a pending job. When an equivalent job is already present it
// is returned unchanged with created set to false.
func (q *Queue) Enqueue(ctx context.Context, req Request) (Job, bool, error) {
	url := strings.TrimSpace(req.VideoURL)
	if url == "" {
		return Job{}, false, services.Wrap(services.ErrValidation, "queue", "enqueue", "video url is required", nil)
	}
	if req.Range != nil && !req.Range.Valid() {
		return Job{}, false, services.Wrap(services.ErrValidation, "queue", "enqueue",
			fmt.Sprintf("invalid range %.3f-%.3f", req.Range.Start, req.Range.End), nil)
	}
	settings := DefaultBatchSettings()
	if req.Settings != nil {
		settings = *req.Settings
	}
	if err := settings.Validate(); err != nil {
		return Job{}, false, services.Wrap(services.ErrValidation, "queue", "enqueue", "batch settings", err)
	}
	origin := req.Origin
	if origin == "" {
		origin = OriginQueue
	}

	q.mu.Lock()
	key := jobKey(url, req.Range, req.RetranslateBatchIndex)
	for _, existing := range q.jobs {
		if existing.Key() == key && !existing.IsBeingRemoved {
			snapshot := existing.Clone()
			q.mu.Unlock()
			return snapshot, false, nil
		}
	}

	now := q.now()
	job := &Job{
		ID:              uuid.NewString(),
		VideoURL:        url,
		Origin:          origin,
		Status:          StatusPending,
		Settings:        settings,
		DurationSeconds: req.DurationSeconds,
		MimeType:        strings.TrimSpace(req.MimeType),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.Range != nil {
		rng := *req.Range
		job.Range = &rng
	}
	if req.RetranslateBatchIndex != nil {
		idx := *req.RetranslateBatchIndex
		job.RetranslateBatchIndex = &idx
	}

	q.jobs = append(q.jobs, job)
	if err := q.persistLocked(ctx); err != nil {
		q.jobs = q.jobs[:len(q.jobs)-1]
		q.mu.Unlock()
		return Job{}, false, fmt.Errorf("persist queue: %w", err)
	}
	q.publishLocked(EventJobAdded, job, "")
	next := q.promoteLocked()
	snapshot := job.Clone()
	q.mu.Unlock()

	q.logger.Info("job enqueued",
		logging.String(logging.FieldJobID, snapshot.ID),
		logging.String(logging.FieldVideoURL, snapshot.VideoURL),
		logging.String("origin", string(snapshot.Origin)),
	)
	q.startRunner(next)
	return snapshot, true, nil
}

// Pause suspends the active job for url. Its in-flight batches go back to
// pending and the next pending job is promoted.
func (q *Queue) Pause(ctx context.Context, url string) (Job, error) {
	q.mu.Lock()
	job := q.findByURLLocked(url, StatusTranslating)
	if job == nil {
		q.mu.Unlock()
		return Job{}, services.Wrap(services.ErrNotFound, "queue", "pause", "no active job for "+url, nil)
	}
	previous := job.Status
	job.Status = StatusPaused
	job.resetProcessing()
	job.UpdatedAt = q.now()
	q.activeID = ""
	stopped := job.ID
	err := q.persistLocked(ctx)
	q.publishLocked(EventStatusChanged, job, previous)
	next := q.promoteLocked()
	snapshot := job.Clone()
	q.mu.Unlock()

	q.stopRunner(stopped)
	q.startRunner(next)
	if err != nil {
		return snapshot, fmt.Errorf("persist queue: %w", err)
	}
	return snapshot, nil
}

// Resume moves the paused job for url to the head of the pending jobs. It
// starts immediately when no other job is active.
func (q *Queue) Resume(ctx context.Context, url string) (Job, error) {
	q.mu.Lock()
	job := q.findByURLLocked(url, StatusPaused)
	if job == nil {
		q.mu.Unlock()
		return Job{}, services.Wrap(services.ErrNotFound, "queue", "resume", "no paused job for "+url, nil)
	}
	previous := job.Status
	job.Status = StatusPending
	job.UpdatedAt = q.now()
	q.moveToFrontLocked(job)
	err := q.persistLocked(ctx)
	q.publishLocked(EventStatusChanged, job, previous)
	next := q.promoteLocked()
	snapshot := job.Clone()
	q.mu.Unlock()

	q.startRunner(next)
	if err != nil {
		return snapshot, fmt.Errorf("persist queue: %w", err)
	}
	return snapshot, nil
}

// Retry sends the errored job for url back to the end of the pending jobs.
// Failed batches are scheduled again.
func (q *Queue) Retry(ctx context.Context, url string) (Job, error) {
	q.mu.Lock()
	job := q.findByURLLocked(url, StatusError)
	if job == nil {
		q.mu.Unlock()
		return Job{}, services.Wrap(services.ErrNotFound, "queue", "retry", "no failed job for "+url, nil)
	}
	previous := job.Status
	job.Status = StatusPending
	job.ErrorMessage = ""
	job.resetProcessing()
	for i, status := range job.BatchStatuses {
		if status == BatchError {
			job.BatchStatuses[i] = BatchPending
		}
	}
	job.UpdatedAt = q.now()
	q.removeLocked(job.ID)
	q.jobs = append(q.jobs, job)
	err := q.persistLocked(ctx)
	q.publishLocked(EventStatusChanged, job, previous)
	next := q.promoteLocked()
	snapshot := job.Clone()
	q.mu.Unlock()

	q.startRunner(next)
	if err != nil {
		return snapshot, fmt.Errorf("persist queue: %w", err)
	}
	return snapshot, nil
}

// Remove evicts every job for url. The jobs are flagged as being removed
// before eviction so late results from an in-flight execution are dropped.
func (q *Queue) Remove(ctx context.Context, url string) (int, error) {
	url = strings.TrimSpace(url)
	q.mu.Lock()
	var victims []*Job
	for _, job := range q.jobs {
		if job.VideoURL == url {
			job.IsBeingRemoved = true
			victims = append(victims, job)
		}
	}
	if len(victims) == 0 {
		q.mu.Unlock()
		return 0, services.Wrap(services.ErrNotFound, "queue", "remove", "no job for "+url, nil)
	}
	var stopped []string
	for _, job := range victims {
		if job.ID == q.activeID {
			q.activeID = ""
			stopped = append(stopped, job.ID)
		}
		q.removeLocked(job.ID)
		q.publishLocked(EventJobRemoved, job, job.Status)
		q.closeJobHubLocked(job.ID)
	}
	err := q.persistLocked(ctx)
	next := q.promoteLocked()
	q.mu.Unlock()

	for _, id := range stopped {
		q.stopRunner(id)
	}
	q.startRunner(next)
	if err != nil {
		return len(victims), fmt.Errorf("persist queue: %w", err)
	}
	return len(victims), nil
}

// Apply implements Sink. The mutation is discarded when the job is gone, is
// being removed, or is no longer translating. A persistence failure turns the
// job into an error.
func (q *Queue) Apply(jobID string, mutate func(*Job)) (Job, bool) {
	q.mu.Lock()
	job := q.findByIDLocked(jobID)
	if job == nil || job.IsBeingRemoved || job.Status != StatusTranslating {
		q.mu.Unlock()
		return Job{}, false
	}

	working := job.Clone()
	mutate(&working)
	working.ID = job.ID
	working.UpdatedAt = q.now()
	*job = working

	if err := q.persistLocked(q.ctx); err != nil {
		job.SetFailed("persist queue: " + err.Error())
		q.logger.Error("queue persistence failed; job stopped",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err),
			logging.String(logging.FieldEventType, "queue_persist_failed"),
			logging.String(logging.FieldErrorHint, "check database permissions and disk space"),
		)
	}

	var next *Job
	if job.Status == StatusTranslating {
		q.publishLocked(EventProgress, job, StatusTranslating)
	} else {
		q.publishLocked(EventStatusChanged, job, StatusTranslating)
		if q.activeID == job.ID {
			q.activeID = ""
		}
		if job.Status == StatusCompleted {
			q.removeLocked(job.ID)
			q.closeJobHubLocked(job.ID)
			if err := q.persistLocked(q.ctx); err != nil {
				q.logger.Warn("queue snapshot write failed after completion",
					logging.String(logging.FieldJobID, job.ID),
					logging.Error(err),
					logging.String(logging.FieldEventType, "queue_persist_failed"),
					logging.String(logging.FieldErrorHint, "check database permissions"),
					logging.String(logging.FieldImpact, "completed job may reappear after restart"),
				)
			}
		}
		next = q.promoteLocked()
	}
	snapshot := job.Clone()
	q.mu.Unlock()

	q.startRunner(next)
	return snapshot, true
}

// Subscribe receives queue-shape events: additions, removals, and status
// changes.
func (q *Queue) Subscribe() (<-chan Event, func()) {
	return q.hub.Subscribe(0)
}

// SubscribeJob receives every event for one job, including progress. The
// channel closes when the job leaves the queue.
func (q *Queue) SubscribeJob(jobID string) (<-chan Event, func(), error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.findByIDLocked(jobID) == nil {
		return nil, nil, services.Wrap(services.ErrNotFound, "queue", "subscribe", "no job "+jobID, nil)
	}
	hub, ok := q.jobHubs[jobID]
	if !ok {
		hub = events.NewHub[Event]()
		q.jobHubs[jobID] = hub
	}
	ch, cancel := hub.Subscribe(0)
	return ch, cancel, nil
}

// VideoStatus reports whether url is queued and where.
func (q *Queue) VideoStatus(url string) VideoQueueStatus {
	url = strings.TrimSpace(url)
	q.mu.Lock()
	defer q.mu.Unlock()
	position := 0
	for _, job := range q.jobs {
		if job.Status == StatusPending {
			position++
		}
		if job.VideoURL != url || job.IsRetranslate() {
			continue
		}
		status := VideoQueueStatus{InQueue: true, Status: job.Status}
		if job.Status == StatusPending {
			status.Position = position
		}
		return status
	}
	return VideoQueueStatus{}
}

// Counts returns the number of jobs per status.
func (q *Queue) Counts() Counts {
	q.mu.Lock()
	defer q.mu.Unlock()
	counts := make(Counts, len(allStatuses))
	for _, status := range allStatuses {
		counts[status] = 0
	}
	for _, job := range q.jobs {
		counts[job.Status]++
	}
	return counts
}

// Items returns jobs in queue order, filtered to statuses when any are given.
func (q *Queue) Items(statuses ...Status) []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	filter := make(map[Status]struct{}, len(statuses))
	for _, status := range statuses {
		filter[status] = struct{}{}
	}
	out := make([]Job, 0, len(q.jobs))
	for _, job := range q.jobs {
		if len(filter) > 0 {
			if _, ok := filter[job.Status]; !ok {
				continue
			}
		}
		out = append(out, job.Clone())
	}
	return out
}

// Active returns the translating job, if any.
func (q *Queue) Active() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if job := q.findByIDLocked(q.activeID); job != nil {
		return job.Clone(), true
	}
	return Job{}, false
}

// Get returns the job with id.
func (q *Queue) Get(id string) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if job := q.findByIDLocked(id); job != nil {
		return job.Clone(), true
	}
	return Job{}, false
}

// Close detaches every subscriber.
func (q *Queue) Close() {
	q.mu.Lock()
	for id := range q.jobHubs {
		q.closeJobHubLocked(id)
	}
	q.mu.Unlock()
	q.hub.Close()
}

func (q *Queue) promoteLocked() *Job {
	if q.activeID != "" {
		return nil
	}
	for _, job := range q.jobs {
		if job.Status != StatusPending || job.IsBeingRemoved {
			continue
		}
		job.Status = StatusTranslating
		job.ErrorMessage = ""
		job.UpdatedAt = q.now()
		q.activeID = job.ID
		if err := q.persistLocked(q.ctx); err != nil {
			q.logger.Warn("queue snapshot write failed after promotion",
				logging.String(logging.FieldJobID, job.ID),
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_persist_failed"),
				logging.String(logging.FieldErrorHint, "check database permissions"),
				logging.String(logging.FieldImpact, "job will restart from pending after a crash"),
			)
		}
		q.publishLocked(EventStatusChanged, job, StatusPending)
		return job
	}
	return nil
}

func (q *Queue) startRunner(job *Job) {
	if job == nil {
		return
	}
	q.mu.Lock()
	runner := q.runner
	ctx := q.ctx
	snapshot := job.Clone()
	q.mu.Unlock()
	if runner == nil {
		return
	}
	q.logger.Info("job started",
		logging.String(logging.FieldJobID, snapshot.ID),
		logging.String(logging.FieldVideoURL, snapshot.VideoURL),
	)
	runner.Start(ctx, snapshot, q)
}

func (q *Queue) stopRunner(jobID string) {
	q.mu.Lock()
	runner := q.runner
	q.mu.Unlock()
	if runner != nil {
		runner.Stop(jobID)
	}
}

func (q *Queue) persistLocked(ctx context.Context) error {
	if q.persister == nil {
		return nil
	}
	snapshot := make([]Job, 0, len(q.jobs))
	for _, job := range q.jobs {
		snapshot = append(snapshot, job.Clone())
	}
	return q.persister.SaveJobs(ctx, snapshot)
}

func (q *Queue) publishLocked(kind EventType, job *Job, previous Status) {
	evt := Event{Type: kind, Job: job.Clone(), PreviousStatus: previous, Timestamp: q.now()}
	if kind != EventProgress {
		q.hub.Publish(evt)
	}
	if hub, ok := q.jobHubs[job.ID]; ok {
		hub.Publish(evt)
	}
}

func (q *Queue) closeJobHubLocked(jobID string) {
	if hub, ok := q.jobHubs[jobID]; ok {
		hub.Close()
		delete(q.jobHubs, jobID)
	}
}

func (q *Queue) findByIDLocked(id string) *Job {
	if id == "" {
		return nil
	}
	for _, job := range q.jobs {
		if job.ID == id {
			return job
		}
	}
	return nil
}

func (q *Queue) findByURLLocked(url string, status Status) *Job {
	url = strings.TrimSpace(url)
	for _, job := range q.jobs {
		if job.VideoURL == url && job.Status == status && !job.IsBeingRemoved {
			return job
		}
	}
	return nil
}

func (q *Queue) removeLocked(id string) {
	for i, job := range q.jobs {
		if job.ID == id {
			q.jobs = append(q.jobs[:i], q.jobs[i+1:]...)
			return
		}
	}
}

func (q *Queue) moveToFrontLocked(job *Job) {
	q.removeLocked(job.ID)
	q.jobs = append([]*Job{job}, q.jobs...)
}
