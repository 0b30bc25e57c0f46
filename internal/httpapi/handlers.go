package httpapi

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"subtrans/internal/api"
	"subtrans/internal/queue"
)

var errInvalidRange = errors.New("start and end must both be given as seconds")

type videoBody struct {
	VideoURL string `json:"videoUrl"`
	Purge    bool   `json:"purge,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, api.FromStatus(s.daemon.Status(), os.Getpid()))
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	var statuses []queue.Status
	for _, value := range r.URL.Query()["status"] {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		parsed, ok := queue.ParseStatus(trimmed)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown status "+strconv.Quote(trimmed))
			return
		}
		statuses = append(statuses, parsed)
	}
	writeJSON(w, http.StatusOK, api.QueueListResponse{Items: api.FromJobs(s.daemon.Items(statuses...))})
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req api.EnqueueRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	job, created, err := s.daemon.Enqueue(r.Context(), api.ToEnqueueRequest(req))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, api.EnqueueResponse{Job: api.FromJob(job), Created: created})
}

func (s *Server) handleCounts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, api.QueueStatsResponse{Counts: api.FromCounts(s.daemon.Counts())})
}

func (s *Server) handleActive(w http.ResponseWriter, _ *http.Request) {
	job, ok := s.daemon.Active()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, api.JobResponse{Job: api.FromJob(job)})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	var body videoBody
	if !decodeJSON(w, r, &body) {
		return
	}
	job, err := s.daemon.Pause(r.Context(), body.VideoURL)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.JobResponse{Job: api.FromJob(job)})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	var body videoBody
	if !decodeJSON(w, r, &body) {
		return
	}
	job, err := s.daemon.Resume(r.Context(), body.VideoURL)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.JobResponse{Job: api.FromJob(job)})
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	var body videoBody
	if !decodeJSON(w, r, &body) {
		return
	}
	job, err := s.daemon.Retry(r.Context(), body.VideoURL)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.JobResponse{Job: api.FromJob(job)})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	var body videoBody
	if !decodeJSON(w, r, &body) {
		return
	}
	summary, err := s.daemon.Remove(r.Context(), body.VideoURL, body.Purge)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.RemoveResponse{Jobs: summary.Jobs, Results: summary.Results})
}

func (s *Server) handleRetranslate(w http.ResponseWriter, r *http.Request) {
	var req api.RetranslateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	job, created, err := s.daemon.Retranslate(r.Context(), req.VideoURL, api.ToRange(req.Range), req.BatchIndex)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, api.EnqueueResponse{Job: api.FromJob(job), Created: created})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.daemon.Job(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, api.JobResponse{Job: api.FromJob(job)})
}

func (s *Server) handleVideoStatus(w http.ResponseWriter, r *http.Request) {
	url := strings.TrimSpace(r.URL.Query().Get("url"))
	if url == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	writeJSON(w, http.StatusOK, api.FromVideoStatus(s.daemon.VideoStatus(url)))
}

// handleResult serves the stored track as JSON, or as plain SRT when
// format=srt.
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	url := strings.TrimSpace(query.Get("url"))
	if url == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	rng, err := parseRange(query.Get("start"), query.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.daemon.Result(r.Context(), url, api.ToRange(rng))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if query.Get("format") == "srt" {
		w.Header().Set("Content-Type", "application/x-subrip; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(result.Track))
		return
	}
	writeJSON(w, http.StatusOK, api.FromResult(result))
}

func parseRange(start, end string) (*api.Range, error) {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if start == "" && end == "" {
		return nil, nil
	}
	if start == "" || end == "" {
		return nil, errInvalidRange
	}
	from, err := strconv.ParseFloat(start, 64)
	if err != nil {
		return nil, errInvalidRange
	}
	to, err := strconv.ParseFloat(end, 64)
	if err != nil {
		return nil, errInvalidRange
	}
	return &api.Range{Start: from, End: to}, nil
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.daemon.Settings(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromSettings(settings))
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var body api.BatchSettings
	if !decodeJSON(w, r, &body) {
		return
	}
	settings, err := s.daemon.SetSettings(r.Context(), api.ToSettings(body))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromSettings(settings))
}

func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := s.daemon.Keys(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.KeysResponse{Keys: keys})
}

func (s *Server) handleUpdateKeys(w http.ResponseWriter, r *http.Request) {
	var body api.KeysRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if _, err := s.daemon.SetKeys(r.Context(), body.Keys); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.handleKeys(w, r)
}

func (s *Server) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	sent, message, err := s.daemon.TestNotification(r.Context())
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]any{"sent": false, "message": message, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sent": sent, "message": message})
}
