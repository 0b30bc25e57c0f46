package subtitle

import (
	"math"
	"sort"
	"strings"
)

// Mode says whether a fragment's timestamps start at zero or already sit on
// the video timeline.
type Mode string

const (
	Relative Mode = "relative"
	Absolute Mode = "absolute"
)

const (
	// modeTolerance is how close the first cue must be to zero or to the
	// expected offset to count as relative or absolute.
	modeTolerance = 30.0
	// dedupWindow is the start-time tolerance for collapsing duplicate cues.
	dedupWindow = 0.5
	// AbsoluteOffset marks a part whose cues are already absolute, such as a
	// track restored from storage.
	AbsoluteOffset = -1
)

// Part is one fragment handed to Merge together with its window offset.
type Part struct {
	Text          string  `json:"text"`
	OffsetSeconds float64 `json:"offset_seconds"`
}

// ClassifyTimestampMode decides how a fragment's timestamps relate to the
// window it was requested for. Starts near zero win over starts near the
// offset; anything else is treated as relative.
func ClassifyTimestampMode(cues []Cue, expectedOffset float64) Mode {
	if len(cues) == 0 {
		return Relative
	}
	first := cues[0].Start
	if math.Abs(first) <= modeTolerance {
		return Relative
	}
	if math.Abs(first-expectedOffset) <= modeTolerance {
		return Absolute
	}
	return Relative
}

// ShiftByOffset moves a relative fragment onto the video timeline and
// re-serializes it. Absolute fragments and non-positive offsets are returned
// unchanged.
func ShiftByOffset(text string, offset float64) string {
	if offset <= 0 {
		return text
	}
	cues := ParseCues(text)
	if ClassifyTimestampMode(cues, offset) == Absolute {
		return text
	}
	return Format(shiftCues(cues, offset))
}

// Merge pools the cues of every part onto one timeline, sorts them, drops
// duplicates, and serializes the result. The output does not depend on the
// order of parts.
func Merge(parts []Part) string {
	var pooled []Cue
	for _, part := range parts {
		pooled = append(pooled, partCues(part)...)
	}
	return Format(dedupe(pooled))
}

// Splice replaces the cues of track that start inside [from, to) with the
// cues of fragment.
func Splice(track string, fragment Part, from, to float64) string {
	var kept []Cue
	for _, cue := range ParseCues(track) {
		if cue.Start >= from && cue.Start < to {
			continue
		}
		kept = append(kept, cue)
	}
	return Format(dedupe(append(kept, partCues(fragment)...)))
}

func partCues(part Part) []Cue {
	cues := ParseCues(part.Text)
	if part.OffsetSeconds == AbsoluteOffset || part.OffsetSeconds <= 0 {
		return cues
	}
	if ClassifyTimestampMode(cues, part.OffsetSeconds) == Absolute {
		return cues
	}
	return shiftCues(cues, part.OffsetSeconds)
}

// dedupe sorts cues by start and removes any cue whose trimmed text matches
// an already kept cue starting less than dedupWindow earlier.
func dedupe(cues []Cue) []Cue {
	sort.SliceStable(cues, func(i, j int) bool {
		a, b := cues[i], cues[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.End != b.End {
			return a.End < b.End
		}
		return a.Text < b.Text
	})

	kept := make([]Cue, 0, len(cues))
	for _, cue := range cues {
		text := strings.TrimSpace(cue.Text)
		duplicate := false
		for j := len(kept) - 1; j >= 0 && cue.Start-kept[j].Start < dedupWindow; j-- {
			if strings.TrimSpace(kept[j].Text) == text {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, cue)
		}
	}
	return kept
}
