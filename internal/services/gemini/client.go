package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"subtrans/internal/services"
)

const (
	defaultBaseURL        = "https://generativelanguage.googleapis.com/v1beta"
	defaultHTTPTimeout    = 10 * time.Minute
	defaultRetryMaxDelay  = 10 * time.Second
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryAttempts  = 3
)

// Config captures the endpoint settings shared by every request.
type Config struct {
	BaseURL        string
	TimeoutSeconds int
}

// Request is one generateContent call.
type Request struct {
	APIKey       string
	Model        string
	Temperature  float64
	SystemPrompt string
	Prompt       string
	VideoURI     string
	MimeType     string
	// StartOffset and EndOffset clip the video in seconds when EndOffset is
	// positive.
	StartOffset float64
	EndOffset   float64
}

// Response carries the concatenated text of the first candidate.
type Response struct {
	Text         string
	FinishReason string
}

// Client wraps the Gemini generateContent endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the default retry count.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a Gemini client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	return client
}

type httpStatusError struct {
	StatusCode int
	Status     string
	Message    string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("http %d %s: %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

func (e *httpStatusError) credential() bool {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return true
	}
	return e.Status == "RESOURCE_EXHAUSTED" || e.Status == "PERMISSION_DENIED" || e.Status == "UNAUTHENTICATED"
}

type emptyContentError struct {
	FinishReason string
	BlockReason  string
	Snippet      string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf("empty content (finish_reason=%q, block_reason=%q, response_snippet=%s)",
		e.FinishReason, e.BlockReason, e.Snippet)
}

// Generate issues a generateContent request and returns the model text. The
// error is wrapped with a services marker: ErrCredential, ErrTimeout,
// ErrValidation, or ErrTransient.
func (c *Client) Generate(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.APIKey) == "" {
		return Response{}, services.Wrap(services.ErrNoCredential, "gemini", "generate", "api key required", nil)
	}
	if strings.TrimSpace(req.Model) == "" {
		return Response{}, services.Wrap(services.ErrConfiguration, "gemini", "generate", "model required", nil)
	}
	if strings.TrimSpace(req.VideoURI) == "" {
		return Response{}, services.Wrap(services.ErrValidation, "gemini", "generate", "video uri required", nil)
	}

	payload := buildPayload(req)
	attempts := c.retryAttempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := c.sendOnce(ctx, req.APIKey, req.Model, payload)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			break
		}
		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			lastErr = sleepErr
			break
		}
	}
	return Response{}, classify(lastErr, attempts)
}

func classify(err error, attempts int) error {
	var statusErr *httpStatusError
	switch {
	case errors.As(err, &statusErr) && statusErr.credential():
		return services.Wrap(services.ErrCredential, "gemini", "generate", "key rejected", err)
	case errors.As(err, &statusErr) && statusErr.StatusCode >= 400 && statusErr.StatusCode < 500 && statusErr.StatusCode != http.StatusRequestTimeout:
		return services.Wrap(services.ErrValidation, "gemini", "generate", "request rejected", err)
	case isTimeout(err):
		return services.Wrap(services.ErrTimeout, "gemini", "generate", "request timed out", err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return services.Wrap(services.ErrTransient, "gemini", "generate",
			fmt.Sprintf("failed after %d attempts", attempts), err)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var statusErr *httpStatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusRequestTimeout
}

type part struct {
	Text          string         `json:"text,omitempty"`
	FileData      *fileData      `json:"file_data,omitempty"`
	VideoMetadata *videoMetadata `json:"video_metadata,omitempty"`
}

type fileData struct {
	FileURI  string `json:"file_uri"`
	MimeType string `json:"mime_type,omitempty"`
}

type videoMetadata struct {
	StartOffset string `json:"start_offset,omitempty"`
	EndOffset   string `json:"end_offset,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
}

type generateRequest struct {
	SystemInstruction *content         `json:"system_instruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type apiErrorBody struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// FormatOffset renders seconds the way video_metadata expects, e.g. "840s".
func FormatOffset(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	return strconv.FormatFloat(seconds, 'f', -1, 64) + "s"
}

func buildPayload(req Request) generateRequest {
	video := part{FileData: &fileData{FileURI: strings.TrimSpace(req.VideoURI), MimeType: strings.TrimSpace(req.MimeType)}}
	if req.EndOffset > 0 {
		video.VideoMetadata = &videoMetadata{
			StartOffset: FormatOffset(req.StartOffset),
			EndOffset:   FormatOffset(req.EndOffset),
		}
	}
	parts := []part{video}
	if prompt := strings.TrimSpace(req.Prompt); prompt != "" {
		parts = append(parts, part{Text: prompt})
	}
	payload := generateRequest{
		Contents:         []content{{Role: "user", Parts: parts}},
		GenerationConfig: generationConfig{Temperature: req.Temperature},
	}
	if system := strings.TrimSpace(req.SystemPrompt); system != "" {
		payload.SystemInstruction = &content{Parts: []part{{Text: system}}}
	}
	return payload
}

func (c *Client) endpoint(model string) string {
	return c.cfg.BaseURL + "/models/" + url.PathEscape(strings.TrimSpace(model)) + ":generateContent"
}

// HealthCheck fetches the model metadata to confirm the endpoint is
// reachable and apiKey is accepted. It never retries.
func (c *Client) HealthCheck(ctx context.Context, apiKey, model string) error {
	target := c.cfg.BaseURL + "/models/" + url.PathEscape(strings.TrimSpace(model))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("x-goog-api-key", strings.TrimSpace(apiKey))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "gemini", "health check", "provider unreachable", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= http.StatusMultipleChoices {
		statusErr := &httpStatusError{StatusCode: resp.StatusCode, Message: summarizePayloadSnippet(string(body))}
		var apiErr apiErrorBody
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != nil {
			statusErr.Status = apiErr.Error.Status
			statusErr.Message = strings.TrimSpace(apiErr.Error.Message)
		}
		if statusErr.credential() {
			return services.Wrap(services.ErrCredential, "gemini", "health check", "key rejected", statusErr)
		}
		return services.Wrap(services.ErrTransient, "gemini", "health check", "provider error", statusErr)
	}
	return nil
}

func (c *Client) sendOnce(ctx context.Context, apiKey, model string, payload generateRequest) (Response, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(model), bytes.NewReader(encoded))
	if err != nil {
		return Response{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", strings.TrimSpace(apiKey))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("http error (timeout=%s): %w", c.timeoutDuration(), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		statusErr := &httpStatusError{StatusCode: resp.StatusCode, Message: summarizePayloadSnippet(string(body))}
		var apiErr apiErrorBody
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != nil {
			statusErr.Status = apiErr.Error.Status
			statusErr.Message = strings.TrimSpace(apiErr.Error.Message)
		}
		statusErr.RetryAfter, _ = parseRetryAfter(resp.Header.Get("Retry-After"))
		return Response{}, statusErr
	}

	var decoded generateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return extractText(decoded, body)
}

func extractText(decoded generateResponse, body []byte) (Response, error) {
	var finishReason string
	for _, candidate := range decoded.Candidates {
		if finishReason == "" {
			finishReason = candidate.FinishReason
		}
		var b strings.Builder
		for _, p := range candidate.Content.Parts {
			b.WriteString(p.Text)
		}
		if text := strings.TrimSpace(b.String()); text != "" {
			return Response{Text: text, FinishReason: candidate.FinishReason}, nil
		}
	}
	empty := &emptyContentError{FinishReason: finishReason, Snippet: summarizePayloadSnippet(string(body))}
	if decoded.PromptFeedback != nil {
		empty.BlockReason = decoded.PromptFeedback.BlockReason
	}
	return Response{}, empty
}

func (c *Client) timeoutDuration() time.Duration {
	if c.httpClient == nil || c.httpClient.Timeout <= 0 {
		return defaultHTTPTimeout
	}
	return c.httpClient.Timeout
}

func (c *Client) retryAttempts() int {
	if c.retryMaxAttempts <= 0 {
		return 1
	}
	return c.retryMaxAttempts
}

func (c *Client) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || err == nil || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var empty *emptyContentError
	if errors.As(err, &empty) {
		// A blocked prompt will be blocked again.
		if empty.BlockReason != "" {
			return 0, false
		}
		return c.backoffDelay(attempt), true
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		if statusErr.credential() {
			return 0, false
		}
		if statusErr.StatusCode == http.StatusRequestTimeout || statusErr.StatusCode >= http.StatusInternalServerError {
			if statusErr.RetryAfter > 0 {
				return c.capDelay(statusErr.RetryAfter), true
			}
			return c.backoffDelay(attempt), true
		}
		return 0, false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.backoffDelay(attempt), true
	}
	return 0, false
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	base := c.retryBaseDelay
	if base <= 0 {
		return 0
	}
	maxDelay := c.retryMaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultRetryMaxDelay
	}
	// attempt 1 -> base, attempt 2 -> base*2, attempt 3 -> base*4, ...
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			delay = maxDelay
			break
		}
		delay *= 2
	}
	return c.capDelay(delay)
}

func (c *Client) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	maxDelay := c.retryMaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultRetryMaxDelay
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}

func summarizePayloadSnippet(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "<empty>"
	}
	clean := strings.Join(strings.Fields(trimmed), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
