package ipc

import "subtrans/internal/api"

// Job mirrors the HTTP API job DTO for internal IPC callers.
type Job = api.Job

// Range mirrors the HTTP API range DTO.
type Range = api.Range

// BatchSettings mirrors the HTTP API batch settings DTO.
type BatchSettings = api.BatchSettings

// Window mirrors the HTTP API batch window DTO.
type Window = api.Window

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon and queue status information.
type StatusResponse = api.DaemonStatus

// QueueAddRequest enqueues a video.
type QueueAddRequest = api.EnqueueRequest

// QueueAddResponse reports the job and whether it was newly created.
type QueueAddResponse = api.EnqueueResponse

// QueueListRequest filters queue listing by status.
type QueueListRequest struct {
	Statuses []string `json:"statuses"`
}

// QueueListResponse contains queue entries.
type QueueListResponse struct {
	Items []Job `json:"items"`
}

// QueueDescribeRequest fetches a single job by id.
type QueueDescribeRequest struct {
	ID string `json:"id"`
}

// QueueDescribeResponse contains the job.
type QueueDescribeResponse struct {
	Job Job `json:"job"`
}

// VideoRequest addresses every job for one video.
type VideoRequest struct {
	VideoURL string `json:"video_url"`
}

// JobResponse carries the job a control call acted on.
type JobResponse struct {
	Job Job `json:"job"`
}

// VideoStatusResponse reports where a video sits in the queue.
type VideoStatusResponse = api.VideoStatus

// QueueRemoveRequest evicts every job for a video.
type QueueRemoveRequest struct {
	VideoURL string `json:"video_url"`
	Purge    bool   `json:"purge"`
}

// QueueRemoveResponse reports what was removed.
type QueueRemoveResponse = api.RemoveResponse

// QueueRetranslateRequest redoes one batch of a stored result.
type QueueRetranslateRequest = api.RetranslateRequest

// QueueCountsRequest fetches per-status counts.
type QueueCountsRequest struct{}

// QueueCountsResponse contains per-status counts.
type QueueCountsResponse = api.QueueStatsResponse

// ResultRequest fetches the stored translation of a video or range.
type ResultRequest struct {
	VideoURL string `json:"video_url"`
	Range    *Range `json:"range,omitempty"`
}

// ResultResponse contains the stored translation.
type ResultResponse = api.Result

// KeysSetRequest replaces the provider key pool.
type KeysSetRequest = api.KeysRequest

// KeysSetResponse reports how many keys are now in the pool.
type KeysSetResponse struct {
	Count int `json:"count"`
}

// KeysListRequest lists the provider keys.
type KeysListRequest struct{}

// KeysListResponse contains masked provider keys.
type KeysListResponse = api.KeysResponse

// SettingsGetRequest fetches the batch settings for new jobs.
type SettingsGetRequest struct{}

// SettingsResponse contains batch settings.
type SettingsResponse struct {
	Settings BatchSettings `json:"settings"`
}

// SettingsSetRequest replaces the batch settings for new jobs.
type SettingsSetRequest struct {
	Settings BatchSettings `json:"settings"`
}

// TestNotificationRequest triggers a test notification.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification result.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
