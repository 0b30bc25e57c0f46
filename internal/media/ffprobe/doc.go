// Package ffprobe reads container metadata for a video URL or path.
//
// The translation runner needs the total duration to plan batches when the
// caller did not supply one, and a MIME type for the provider request. Probe
// runs ffprobe once and returns both.
package ffprobe
