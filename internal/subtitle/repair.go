package subtitle

import (
	"regexp"
	"strings"
)

// structuralRule rewrites whole-document layout problems before any timestamp
// token is examined.
type structuralRule struct {
	name    string
	pattern *regexp.Regexp
	replace string
}

// arrow matches the cue arrow plus the variants models substitute for it.
const arrow = `(?:-->|->|—>|–>|=>)`

// structuralRules run in order until the text stops changing. Each one is a
// heuristic for a layout mistake seen in model output; each leaves
// well-formed SRT untouched.
var structuralRules = []structuralRule{
	// Windows and old-Mac line endings.
	{name: "line-endings", pattern: regexp.MustCompile(`\r\n?`), replace: "\n"},
	// Markdown fences wrapped around the whole answer.
	{name: "code-fence", pattern: regexp.MustCompile("(?m)^[ \t]*```[A-Za-z]*[ \t]*$\n?"), replace: ""},
	// "12 00:00:05,000 --> ..." keeps the index on the timestamp line.
	{name: "index-space-timestamp", pattern: regexp.MustCompile(`(?m)^[ \t]*(\d+)[ \t]+(\d+[:.,][0-9:.,]*[ \t]*` + arrow + `)`), replace: "${1}\n${2}"},
	// "1200:00:05,000 --> ..." glues index 12 to the hour field. A valid
	// hour has two digits, so three or more leading digits mean a glued index.
	{name: "index-glued-timestamp", pattern: regexp.MustCompile(`(?m)^[ \t]*(\d+?)(\d{2}:\d{2}:\d{2}[,.:]\d{1,3}[ \t]*` + arrow + `)`), replace: "${1}\n${2}"},
	// A text line followed directly by the next index and timestamp.
	{name: "missing-block-separator", pattern: regexp.MustCompile(`(?m)^([^\n]*\S[^\n]*)\n(\d+)[ \t]*\n([ \t]*[0-9:.,]+[ \t]*` + arrow + `)`), replace: "${1}\n\n${2}\n${3}"},
}

const maxStructuralPasses = 8

// timestampRule rewrites one malformed timestamp token. Its output is only
// accepted when it passes the canonical validator.
type timestampRule struct {
	name    string
	pattern *regexp.Regexp
	rewrite func(m []string) string
}

// timestampRules are tried in order; the first rewrite that validates wins.
var timestampRules = []timestampRule{
	// HH:MM:SS.mmm, HH:MM:SS:mmm, or short fields such as 1:2:3,5.
	// Fractions are decimal, so ",5" means 500ms.
	{
		name:    "full-with-separator",
		pattern: regexp.MustCompile(`^(\d{1,2}):(\d{1,2}):(\d{1,2})[.,:](\d{1,3})$`),
		rewrite: func(m []string) string { return join(m[1], m[2], m[3], m[4]) },
	},
	// MM:SS,mmm with the hour field missing.
	{
		name:    "missing-hours",
		pattern: regexp.MustCompile(`^(\d{1,2}):(\d{1,2})[.,](\d{1,3})$`),
		rewrite: func(m []string) string { return join("0", m[1], m[2], m[3]) },
	},
	// Two colons with a three-digit last group: read as minutes, seconds,
	// milliseconds rather than HH:MM:mmm. Unverified: the source format this
	// targets is unknown, and the mapping is kept as-is on purpose.
	{
		name:    "three-group-milliseconds",
		pattern: regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{3})$`),
		rewrite: func(m []string) string { return "00:" + m[1] + ":" + m[2] + "," + m[3] },
	},
	// HH:MM:SS without milliseconds.
	{
		name:    "missing-milliseconds",
		pattern: regexp.MustCompile(`^(\d{1,2}):(\d{1,2}):(\d{1,2})$`),
		rewrite: func(m []string) string { return join(m[1], m[2], m[3], "0") },
	},
	// More than three fractional digits; extra precision is dropped.
	{
		name:    "long-fraction",
		pattern: regexp.MustCompile(`^(\d{1,2}):(\d{1,2}):(\d{1,2})[.,:](\d{3})\d+$`),
		rewrite: func(m []string) string { return join(m[1], m[2], m[3], m[4]) },
	},
	// MM:SS with neither hours nor milliseconds.
	{
		name:    "minutes-seconds",
		pattern: regexp.MustCompile(`^(\d{1,2}):(\d{2})$`),
		rewrite: func(m []string) string { return join("0", m[1], m[2], "0") },
	},
	// SS,mmm alone.
	{
		name:    "seconds-only",
		pattern: regexp.MustCompile(`^(\d{1,2})[.,](\d{1,3})$`),
		rewrite: func(m []string) string { return join("0", "0", m[1], m[2]) },
	},
}

var timestampLine = regexp.MustCompile(`^([ \t]*)([0-9:.,]+)[ \t]*(` + arrow + `)[ \t]*([0-9:.,]+)(.*)$`)

// Repair fixes layout and timestamp problems in provider output. It never
// fails: tokens no rule can fix pass through unchanged. Repair is idempotent
// and leaves valid timestamp lines byte-for-byte untouched.
func Repair(raw string) string {
	text := applyStructural(raw)
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = repairTimestampLine(line)
	}
	return strings.Join(lines, "\n")
}

func applyStructural(text string) string {
	for range maxStructuralPasses {
		next := text
		for _, rule := range structuralRules {
			next = rule.pattern.ReplaceAllString(next, rule.replace)
		}
		if next == text {
			break
		}
		text = next
	}
	return text
}

func repairTimestampLine(line string) string {
	m := timestampLine.FindStringSubmatch(line)
	if m == nil {
		return line
	}
	start, startChanged := repairToken(m[2])
	end, endChanged := repairToken(m[4])
	if !startChanged && !endChanged && m[3] == "-->" {
		return line
	}
	return m[1] + start + " --> " + end + m[5]
}

// repairToken returns the canonical form of token and whether it changed.
func repairToken(token string) (string, bool) {
	if validTimestamp(token) {
		return token, false
	}
	for _, rule := range timestampRules {
		m := rule.pattern.FindStringSubmatch(token)
		if m == nil {
			continue
		}
		candidate := rule.rewrite(m)
		if validTimestamp(candidate) {
			return candidate, candidate != token
		}
	}
	return token, false
}

func join(hours, minutes, seconds, fraction string) string {
	return pad2(hours) + ":" + pad2(minutes) + ":" + pad2(seconds) + "," + padFraction(fraction)
}

func pad2(value string) string {
	if len(value) >= 2 {
		return value
	}
	return strings.Repeat("0", 2-len(value)) + value
}

func padFraction(value string) string {
	if len(value) >= 3 {
		return value[:3]
	}
	return value + strings.Repeat("0", 3-len(value))
}
