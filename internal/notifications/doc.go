// Package notifications delivers translation milestones to ntfy.
//
// The runner publishes batch completion, job completion, and job failure.
// Delivery is gated per event and per job origin, and is suppressed while a
// UI client is attached to the event stream unless notifications.always is
// set. With no topic configured the service is a no-op.
package notifications
