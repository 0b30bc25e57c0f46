package subtitle

import (
	"regexp"
	"strings"
)

var (
	indexLine = regexp.MustCompile(`^\s*\d+\s*$`)
	cueTiming = regexp.MustCompile(`^\s*(\d{2}:\d{2}:\d{2},\d{3})\s*-->\s*(\d{2}:\d{2}:\d{2},\d{3})`)
)

// ParseCues repairs text and extracts every well-formed numbered block.
// Blocks with an unusable timing line or no text are skipped; parsing never
// aborts. An end time earlier than its start is clamped to the start.
func ParseCues(text string) []Cue {
	lines := strings.Split(Repair(text), "\n")
	var cues []Cue
	for i := 0; i < len(lines); {
		if !blockStartsAt(lines, i) {
			i++
			continue
		}
		timing := cueTiming.FindStringSubmatch(lines[i+1])
		start, okStart := parseTimestamp(timing[1])
		end, okEnd := parseTimestamp(timing[2])

		j := i + 2
		var body []string
		for j < len(lines) && strings.TrimSpace(lines[j]) != "" && !blockStartsAt(lines, j) {
			body = append(body, strings.TrimRight(lines[j], " \t"))
			j++
		}
		i = j

		textValue := strings.TrimSpace(strings.Join(body, "\n"))
		if !okStart || !okEnd || textValue == "" {
			continue
		}
		if end < start {
			end = start
		}
		cues = append(cues, Cue{Start: start, End: end, Text: textValue})
	}
	return cues
}

// blockStartsAt reports whether lines[i] is an index line followed by a
// timing line.
func blockStartsAt(lines []string, i int) bool {
	if i+1 >= len(lines) {
		return false
	}
	return indexLine.MatchString(lines[i]) && cueTiming.MatchString(lines[i+1])
}
