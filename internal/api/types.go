package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Range is an optional time span within a video, in seconds.
type Range struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Job describes a translation job in a transport-friendly format.
type Job struct {
	ID                    string        `json:"id"`
	VideoURL              string        `json:"videoUrl"`
	Range                 *Range        `json:"range,omitempty"`
	Origin                string        `json:"origin"`
	Status                string        `json:"status"`
	Progress              JobProgress   `json:"progress"`
	Settings              BatchSettings `json:"settings"`
	PartialResult         string        `json:"partialResult,omitempty"`
	Result                *string       `json:"result,omitempty"`
	RetranslateBatchIndex *int          `json:"retranslateBatchIndex,omitempty"`
	DurationSeconds       float64       `json:"durationSeconds,omitempty"`
	MimeType              string        `json:"mimeType,omitempty"`
	ErrorMessage          string        `json:"errorMessage,omitempty"`
	CreatedAt             string        `json:"createdAt,omitempty"`
	UpdatedAt             string        `json:"updatedAt,omitempty"`
}

// JobProgress captures batch progress for a job.
type JobProgress struct {
	TotalBatches     int      `json:"totalBatches"`
	CompletedBatches int      `json:"completedBatches"`
	FailedBatches    int      `json:"failedBatches"`
	Percent          float64  `json:"percent"`
	BatchStatuses    []string `json:"batchStatuses,omitempty"`
}

// BatchSettings mirrors queue.BatchSettings.
type BatchSettings struct {
	MaxVideoDuration     int    `json:"maxVideoDuration"`
	MaxConcurrentBatches int    `json:"maxConcurrentBatches"`
	BatchOffset          int    `json:"batchOffset"`
	PresubDuration       int    `json:"presubDuration"`
	PresubConfigID       string `json:"presubConfigId,omitempty"`
}

// Window is one planned batch.
type Window struct {
	Index         int     `json:"index"`
	WindowStart   float64 `json:"windowStart"`
	WindowEnd     float64 `json:"windowEnd"`
	ContextOffset float64 `json:"contextOffset"`
	Presub        bool    `json:"presub,omitempty"`
	Status        string  `json:"status"`
}

// Result is a stored translation.
type Result struct {
	VideoURL  string   `json:"videoUrl"`
	Range     *Range   `json:"range,omitempty"`
	Track     string   `json:"track"`
	Batches   []Window `json:"batches"`
	MimeType  string   `json:"mimeType,omitempty"`
	UpdatedAt string   `json:"updatedAt,omitempty"`
}

// VideoStatus reports where a video sits in the queue.
type VideoStatus struct {
	InQueue  bool   `json:"inQueue"`
	Status   string `json:"status,omitempty"`
	Position int    `json:"position,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running         bool           `json:"running"`
	PID             int            `json:"pid"`
	Active          *Job           `json:"active,omitempty"`
	Counts          map[string]int `json:"counts"`
	Keys            int            `json:"keys"`
	KeyAvailable    bool           `json:"keyAvailable"`
	AttachedClients int            `json:"attachedClients"`
	DatabasePath    string         `json:"databasePath"`
	LockFilePath    string         `json:"lockFilePath"`
}

// Event is a queue or job event.
type Event struct {
	Type           string `json:"type"`
	Job            Job    `json:"job"`
	PreviousStatus string `json:"previousStatus,omitempty"`
	Timestamp      string `json:"ts"`
}

// EnqueueRequest is the body of an enqueue call.
type EnqueueRequest struct {
	VideoURL        string  `json:"videoUrl"`
	Range           *Range  `json:"range,omitempty"`
	Origin          string  `json:"origin,omitempty"`
	DurationSeconds float64 `json:"durationSeconds,omitempty"`
	MimeType        string  `json:"mimeType,omitempty"`
}

// EnqueueResponse reports the job and whether it was newly created.
type EnqueueResponse struct {
	Job     Job  `json:"job"`
	Created bool `json:"created"`
}

// RetranslateRequest asks for one batch of a stored result to be redone.
type RetranslateRequest struct {
	VideoURL   string `json:"videoUrl"`
	Range      *Range `json:"range,omitempty"`
	BatchIndex int    `json:"batchIndex"`
}

// RemoveResponse reports what a remove call deleted.
type RemoveResponse struct {
	Jobs    int   `json:"jobs"`
	Results int64 `json:"results"`
}

// QueueStatsResponse provides a normalized queue stats payload.
type QueueStatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// QueueListResponse wraps a collection of jobs for API responses.
type QueueListResponse struct {
	Items []Job `json:"items"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// KeysRequest replaces the provider key pool.
type KeysRequest struct {
	Keys []string `json:"keys"`
}

// KeysResponse lists masked provider keys.
type KeysResponse struct {
	Keys []string `json:"keys"`
}
