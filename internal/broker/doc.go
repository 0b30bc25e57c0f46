// Package broker connects the daemon to RabbitMQ.
//
// The bridge consumes enqueue commands from broker.command_queue and feeds
// them to the daemon, then publishes every terminal job event (completed or
// error) to broker.events_queue. Commands are JSON:
//
//	{"video_url": "...", "range_start": 60, "range_end": 660,
//	 "duration": 3600, "origin": "queue"}
//
// Malformed commands are rejected without requeueing. The bridge reconnects
// with backoff until its context is cancelled.
package broker
