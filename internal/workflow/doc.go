// Package workflow runs the active translation job.
//
// The queue hands its translating job to the Runner, which plans batch
// windows, dispatches them to the provider with bounded concurrency, rotates
// provider keys on credential failures, and folds each result into the
// partial subtitle track. Every write goes back through queue.Sink so pause
// and removal win over late results. When all batches settle the merged track
// is stored as the video's result record.
//
// Retranslate jobs redo one window of a stored result and splice the new
// fragment into the stored track.
package workflow
