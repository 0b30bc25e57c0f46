package planner

import "math"

// Range bounds the part of a video to translate, in seconds.
type Range struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Valid reports whether the range covers a positive span.
func (r Range) Valid() bool {
	return r.Start >= 0 && r.End > r.Start
}

// Settings carries the batch settings the planner needs.
type Settings struct {
	MaxVideoDuration float64
	BatchOffset      float64
	PresubDuration   float64
	// Presub shortens the first window to PresubDuration.
	Presub bool
}

// Window is one planned batch. WindowStart and WindowEnd bound the content
// the batch is responsible for; ContextOffset seconds before WindowStart are
// sent to the provider as extra context.
type Window struct {
	Index         int     `json:"index"`
	WindowStart   float64 `json:"window_start"`
	WindowEnd     float64 `json:"window_end"`
	ContextOffset float64 `json:"context_offset"`
	Presub        bool    `json:"presub,omitempty"`
}

// ContextStart is where the provider request begins.
func (w Window) ContextStart() float64 {
	return w.WindowStart - w.ContextOffset
}

// Duration is the content length of the window.
func (w Window) Duration() float64 {
	return w.WindowEnd - w.WindowStart
}

// Plan computes the batch windows for a video of totalDuration seconds, or for
// rng when it is non-nil. An empty span or a non-positive window length
// yields no windows.
func Plan(totalDuration float64, rng *Range, settings Settings) []Window {
	spanStart, spanEnd := 0.0, totalDuration
	if rng != nil {
		spanStart, spanEnd = rng.Start, rng.End
		if totalDuration > 0 {
			spanEnd = math.Min(spanEnd, totalDuration)
		}
	}
	spanStart = math.Max(spanStart, 0)
	if spanEnd <= spanStart || settings.MaxVideoDuration <= 0 {
		return nil
	}

	var windows []Window
	for cursor := spanStart; cursor < spanEnd; {
		index := len(windows)
		length := settings.MaxVideoDuration
		presub := index == 0 && settings.Presub && settings.PresubDuration > 0 && settings.PresubDuration < length
		if presub {
			length = settings.PresubDuration
		}
		end := math.Min(cursor+length, spanEnd)

		context := 0.0
		if index > 0 {
			context = math.Min(math.Max(settings.BatchOffset, 0), cursor-spanStart)
		}
		windows = append(windows, Window{
			Index:         index,
			WindowStart:   cursor,
			WindowEnd:     end,
			ContextOffset: context,
			Presub:        presub,
		})
		cursor = end
	}
	return windows
}
