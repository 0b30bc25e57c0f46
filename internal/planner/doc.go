// Package planner splits a video, or a sub-range of it, into the ordered
// time windows that become translation batches.
//
// Each window covers a consecutive slice of content. Every window after the
// first also carries a leading context overlap so the provider sees the end of
// the previous slice; the overlap is never part of the reported content range.
package planner
