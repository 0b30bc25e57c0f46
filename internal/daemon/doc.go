// Package daemon coordinates the long-running subtrans process.
//
// It wires the SQLite store, the provider key pool, the translation runner,
// and the job queue into a single lifecycle with flock-based locking to
// prevent multiple instances. The IPC server, HTTP API, and broker consumer
// all drive the queue through the Daemon rather than touching it directly.
//
// The daemon also counts attached UI clients. Notifications are only sent
// while no client is attached, so a user watching the UI is not pinged for
// progress they can already see.
package daemon
