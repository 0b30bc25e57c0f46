package broker

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"subtrans/internal/daemon"
	"subtrans/internal/planner"
	"subtrans/internal/queue"
	"subtrans/internal/services"
)

// Command is an enqueue request received from the command queue.
type Command struct {
	VideoURL   string   `json:"video_url"`
	RangeStart *float64 `json:"range_start,omitempty"`
	RangeEnd   *float64 `json:"range_end,omitempty"`
	Duration   float64  `json:"duration,omitempty"`
	Origin     string   `json:"origin,omitempty"`
	MimeType   string   `json:"mime_type,omitempty"`
}

// JobEvent is published when a job reaches a terminal state.
type JobEvent struct {
	Type       string   `json:"type"`
	JobID      string   `json:"job_id"`
	VideoURL   string   `json:"video_url"`
	RangeStart *float64 `json:"range_start,omitempty"`
	RangeEnd   *float64 `json:"range_end,omitempty"`
	Status     string   `json:"status"`
	Batches    int      `json:"batches"`
	Failed     int      `json:"failed_batches"`
	Result     string   `json:"result,omitempty"`
	Error      string   `json:"error,omitempty"`
	Timestamp  string   `json:"ts"`
}

// DecodeCommand parses and validates a command body.
func DecodeCommand(body []byte) (daemon.EnqueueRequest, error) {
	var cmd Command
	if err := json.Unmarshal(body, &cmd); err != nil {
		return daemon.EnqueueRequest{}, services.Wrap(services.ErrValidation, "broker", "decode command", "invalid JSON", err)
	}
	url := strings.TrimSpace(cmd.VideoURL)
	if url == "" {
		return daemon.EnqueueRequest{}, services.Wrap(services.ErrValidation, "broker", "decode command", "video_url is required", nil)
	}
	if cmd.Duration < 0 {
		return daemon.EnqueueRequest{}, services.Wrap(services.ErrValidation, "broker", "decode command",
			fmt.Sprintf("invalid duration %v", cmd.Duration), nil)
	}

	req := daemon.EnqueueRequest{
		VideoURL:        url,
		Origin:          queue.OriginQueue,
		DurationSeconds: cmd.Duration,
		MimeType:        strings.TrimSpace(cmd.MimeType),
	}
	switch strings.ToLower(strings.TrimSpace(cmd.Origin)) {
	case "", string(queue.OriginQueue):
	case string(queue.OriginDirect):
		req.Origin = queue.OriginDirect
	default:
		return daemon.EnqueueRequest{}, services.Wrap(services.ErrValidation, "broker", "decode command",
			fmt.Sprintf("unknown origin %q", cmd.Origin), nil)
	}

	if (cmd.RangeStart == nil) != (cmd.RangeEnd == nil) {
		return daemon.EnqueueRequest{}, services.Wrap(services.ErrValidation, "broker", "decode command",
			"range_start and range_end must be given together", nil)
	}
	if cmd.RangeStart != nil {
		rng := planner.Range{Start: *cmd.RangeStart, End: *cmd.RangeEnd}
		if !rng.Valid() {
			return daemon.EnqueueRequest{}, services.Wrap(services.ErrValidation, "broker", "decode command",
				fmt.Sprintf("invalid range %v-%v", rng.Start, rng.End), nil)
		}
		req.Range = &rng
	}
	return req, nil
}

// EncodeEvent renders evt for the events queue. Only terminal events are
// published; ok is false for everything else.
func EncodeEvent(evt queue.Event) (body []byte, ok bool, err error) {
	if !evt.Terminal() {
		return nil, false, nil
	}
	job := evt.Job
	out := JobEvent{
		Type:      "job_" + string(job.Status),
		JobID:     job.ID,
		VideoURL:  job.VideoURL,
		Status:    string(job.Status),
		Batches:   job.TotalBatches,
		Error:     job.ErrorMessage,
		Timestamp: evt.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if job.Range != nil {
		start, end := job.Range.Start, job.Range.End
		out.RangeStart = &start
		out.RangeEnd = &end
	}
	for _, status := range job.BatchStatuses {
		if status == queue.BatchError {
			out.Failed++
		}
	}
	if job.Result != nil {
		out.Result = *job.Result
	}
	body, err = json.Marshal(out)
	if err != nil {
		return nil, false, fmt.Errorf("encode job event: %w", err)
	}
	return body, true, nil
}
