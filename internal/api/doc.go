// Package api defines wire-format types and converters for the IPC and HTTP
// API layer. It translates internal queue models into transport-friendly DTOs
// that the CLI, the web UI, and broker consumers can render without coupling
// to internal types.
//
// # Key Types
//
// Job: transport representation of a translation job with batch progress.
//
// DaemonStatus: daemon running state, queue counts, and key availability.
//
// Result: the stored SRT track for a video and the batch plan behind it.
//
// Event: a queue or job event as streamed to UI clients.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript/TypeScript consumers. Internal
// enums (queue.Status, queue.BatchStatus) are exposed as lowercase strings.
// Timestamps use RFC3339 with milliseconds. Raw batch outputs are omitted
// from job payloads; they are only served with results.
package api
