// Package services defines shared utilities consumed by the runner, the queue,
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, batch indices, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified (credential rotation, timeouts, validation) without string
//     matching.
//
// Provider clients live in subpackages (see services/gemini).
package services
