// Package queue owns the set of translation jobs and their lifecycle.
//
// The Queue admits jobs in FIFO order, keeps at most one job translating at a
// time, and promotes the next pending job whenever the active one leaves the
// translating state. Every change is persisted through a Persister and
// published to subscribers: queue-shape changes on Subscribe, per-job
// progress on SubscribeJob.
//
// The Runner that executes the active job never writes job state directly.
// It funnels every mutation through Apply, which discards writes for jobs
// that were removed, paused, or otherwise left the translating state. That
// guard is what makes pause and remove safe while provider calls are still in
// flight.
package queue
