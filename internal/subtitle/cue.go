package subtitle

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Cue is one subtitle entry with times in seconds.
type Cue struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

var canonicalTimestamp = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2}),(\d{3})$`)

// validTimestamp reports whether token matches HH:MM:SS,mmm with MM and SS
// below 60. Two-digit hours and three-digit milliseconds bound the rest.
func validTimestamp(token string) bool {
	_, ok := parseTimestamp(token)
	return ok
}

func parseTimestamp(token string) (float64, bool) {
	m := canonicalTimestamp.FindStringSubmatch(token)
	if m == nil {
		return 0, false
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	seconds, _ := strconv.Atoi(m[3])
	millis, _ := strconv.Atoi(m[4])
	if minutes > 59 || seconds > 59 {
		return 0, false
	}
	return float64(hours*3600+minutes*60+seconds) + float64(millis)/1000, true
}

// FormatTimestamp renders seconds as HH:MM:SS,mmm with milliseconds rounded.
// Negative values clamp to zero.
func FormatTimestamp(seconds float64) string {
	total := int64(math.Round(seconds * 1000))
	if total < 0 {
		total = 0
	}
	hours := total / 3_600_000
	total %= 3_600_000
	minutes := total / 60_000
	total %= 60_000
	secs := total / 1000
	millis := total % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}

// Format serializes cues as numbered SRT blocks, one blank line after each.
// An empty slice yields an empty string.
func Format(cues []Cue) string {
	var b strings.Builder
	for i, cue := range cues {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteByte('\n')
		b.WriteString(FormatTimestamp(cue.Start))
		b.WriteString(" --> ")
		b.WriteString(FormatTimestamp(cue.End))
		b.WriteByte('\n')
		b.WriteString(cue.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}

func shiftCues(cues []Cue, offset float64) []Cue {
	out := make([]Cue, len(cues))
	for i, cue := range cues {
		out[i] = Cue{Start: cue.Start + offset, End: cue.End + offset, Text: cue.Text}
	}
	return out
}
