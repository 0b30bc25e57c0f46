package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"subtrans/internal/api"
	"subtrans/internal/logging"
	"subtrans/internal/queue"
)

// handleEvents streams queue events as server-sent events. With ?job=<id>
// the stream carries every event of that job, progress included, and ends
// when the job leaves the queue. The stream opens with a snapshot event
// listing the current jobs.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	var (
		events      <-chan queue.Event
		unsubscribe func()
	)
	if jobID := strings.TrimSpace(r.URL.Query().Get("job")); jobID != "" {
		ch, cancel, err := s.daemon.SubscribeJob(jobID)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		events, unsubscribe = ch, cancel
	} else {
		events, unsubscribe = s.daemon.Subscribe()
	}
	defer unsubscribe()

	detach := s.daemon.AttachClient()
	defer detach()

	// The server write timeout would otherwise cut the stream.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	logger := logging.WithContext(r.Context(), s.logger)
	logger.Debug("event stream attached", logging.Int("attached_clients", s.daemon.AttachedClients()))
	defer logger.Debug("event stream detached")

	snapshot := api.QueueListResponse{Items: api.FromJobs(s.daemon.Items())}
	if err := writeEvent(w, "snapshot", snapshot); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		return
	}

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		case evt, ok := <-events:
			if !ok {
				_ = writeEvent(w, "end", map[string]string{})
				_ = rc.Flush()
				return
			}
			if err := writeEvent(w, string(evt.Type), api.FromEvent(evt)); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
