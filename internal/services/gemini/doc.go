// Package gemini calls the Gemini generateContent REST API with a video
// reference and returns the model's text.
//
// # Request Shape
//
// Each call sends a system instruction, one user turn holding a file_data part
// for the video (with optional video_metadata start and end offsets), and a
// text prompt. The API key travels in the x-goog-api-key header so a
// different key can be used on every call.
//
// # Retry Behaviour
//
// The client retries HTTP 408, 5xx responses, empty candidates, and network
// timeouts with exponential backoff (base 1s, max 10s, 3 attempts by default).
// Credential problems (HTTP 401, 403, 429, or a RESOURCE_EXHAUSTED status) are
// never retried here: they are returned wrapped in services.ErrCredential so
// the caller can rotate to another key.
package gemini
