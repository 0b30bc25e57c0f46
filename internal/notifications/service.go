package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"subtrans/internal/config"
)

const userAgent = "Subtrans-Go/0.1.0"

// Event names a notification type.
type Event string

const (
	EventBatchCompleted Event = "batch_completed"
	EventJobCompleted   Event = "job_completed"
	EventJobFailed      Event = "job_failed"
	EventTest           Event = "test"
)

// Payload carries event fields. Recognized keys: origin, videoURL,
// batchIndex, completed, total, error.
type Payload map[string]any

// Service defines the notification surface exposed to the runner.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// Option adjusts an ntfy service.
type Option func(*ntfyService)

// WithHTTPClient overrides the HTTP client used for delivery.
func WithHTTPClient(client *http.Client) Option {
	return func(n *ntfyService) {
		if client != nil {
			n.client = client
		}
	}
}

// WithAttachedClients supplies the number of UI clients currently attached.
// Notifications are only delivered while it returns zero.
func WithAttachedClients(count func() int) Option {
	return func(n *ntfyService) {
		n.attached = count
	}
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config, opts ...Option) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	svc := &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		settings: cfg.Notifications,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	settings config.Notifications
	attached func() int
}

func (n *ntfyService) Publish(ctx context.Context, event Event, fields Payload) error {
	if n == nil {
		return nil
	}
	if !n.allowed(event, fields) {
		return nil
	}
	data, ok := n.render(event, fields)
	if !ok {
		return nil
	}
	return n.send(ctx, data)
}

// allowed applies the per-event, per-origin, and attached-UI gates. Test
// notifications bypass all of them.
func (n *ntfyService) allowed(event Event, fields Payload) bool {
	if event == EventTest {
		return true
	}
	switch event {
	case EventBatchCompleted:
		if !n.settings.BatchCompleted {
			return false
		}
	case EventJobCompleted:
		if !n.settings.JobCompleted {
			return false
		}
	case EventJobFailed:
		if !n.settings.JobFailed {
			return false
		}
	}
	switch fields.str("origin") {
	case "direct":
		if !n.settings.DirectJobs {
			return false
		}
	default:
		if !n.settings.QueueJobs {
			return false
		}
	}
	if !n.settings.Always && n.attached != nil && n.attached() > 0 {
		return false
	}
	return true
}

func (n *ntfyService) render(event Event, fields Payload) (payload, bool) {
	video := fields.str("videoURL")
	switch event {
	case EventBatchCompleted:
		return payload{
			title:    "Subtrans - Batch Complete",
			message:  fmt.Sprintf("Batch %d/%d translated: %s", fields.integer("completed"), fields.integer("total"), video),
			tags:     []string{"subtrans", "batch"},
			priority: "low",
		}, true
	case EventJobCompleted:
		message := fmt.Sprintf("Subtitles ready: %s", video)
		if failed := fields.integer("failed"); failed > 0 {
			message += fmt.Sprintf("\n%d batch(es) failed; retranslate them individually", failed)
		}
		return payload{
			title:   "Subtrans - Translation Complete",
			message: message,
			tags:    []string{"subtrans", "completed"},
		}, true
	case EventJobFailed:
		var builder strings.Builder
		builder.WriteString("Translation failed")
		if video != "" {
			builder.WriteString(": ")
			builder.WriteString(video)
		}
		if errText := fields.str("error"); errText != "" {
			builder.WriteString("\nError: ")
			builder.WriteString(errText)
		}
		return payload{
			title:    "Subtrans - Error",
			message:  builder.String(),
			tags:     []string{"subtrans", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return payload{
			title:    "Subtrans - Test",
			message:  "Notification system test",
			tags:     []string{"subtrans", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (p Payload) str(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return ""
	}
}

func (p Payload) integer(key string) int {
	if p == nil {
		return 0
	}
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
