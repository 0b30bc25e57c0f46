// Package events provides the in-process fan-out used for queue and job
// notifications. Publishers never block: a subscriber whose buffer is full
// misses the event and the hub counts the drop.
package events
