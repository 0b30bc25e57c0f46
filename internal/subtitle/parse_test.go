package subtitle_test

import (
	"reflect"
	"testing"

	"subtrans/internal/subtitle"
)

func TestParseCuesExample(t *testing.T) {
	got := subtitle.ParseCues("1\n00:00:01,000 --> 00:00:02,500\nHello\n\n2\n00:00:03,000 --> 00:00:04,000\nWorld\n\n")
	want := []subtitle.Cue{
		{Start: 1, End: 2.5, Text: "Hello"},
		{Start: 3, End: 4, Text: "World"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseCues() = %+v, want %+v", got, want)
	}
}

func TestParseCuesSkipsMalformedBlocks(t *testing.T) {
	input := "Here are your subtitles:\n\n" +
		"1\n00:00:01,000 --> 00:00:02,000\nFirst\nsecond line  \n\n" +
		"2\nnot a timestamp\nLost\n\n" +
		"3\n00:00:05,000 --> 00:00:06,000\n\n" +
		"4\n00:00:08,000 --> 00:00:07,000\nBackwards\n\n" +
		"5\n00:99:00,000 --> 00:00:09,000\nBad minutes\n\n" +
		"6\n00:00:10,000 --> 00:00:11,000\nLast\n"
	got := subtitle.ParseCues(input)
	want := []subtitle.Cue{
		{Start: 1, End: 2, Text: "First\nsecond line"},
		{Start: 8, End: 8, Text: "Backwards"},
		{Start: 10, End: 11, Text: "Last"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseCues() = %+v, want %+v", got, want)
	}
}

func TestParseCuesRepairsBeforeScanning(t *testing.T) {
	got := subtitle.ParseCues("```srt\n1 00:01,500 -> 00:02\nOne\n200:00:03,000 --> 00:00:04\nTwo\n```")
	want := []subtitle.Cue{
		{Start: 1.5, End: 2, Text: "One"},
		{Start: 3, End: 4, Text: "Two"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseCues() = %+v, want %+v", got, want)
	}
}

func TestFormatExactBytes(t *testing.T) {
	cues := []subtitle.Cue{
		{Start: 1, End: 2.5, Text: "Hello"},
		{Start: 3661.5, End: 3662.0004, Text: "Two\nlines"},
	}
	want := "1\n00:00:01,000 --> 00:00:02,500\nHello\n\n" +
		"2\n01:01:01,500 --> 01:01:02,000\nTwo\nlines\n\n"
	if got := subtitle.Format(cues); got != want {
		t.Fatalf("Format() = %q, want %q", got, want)
	}
	if got := subtitle.Format(nil); got != "" {
		t.Fatalf("Format(nil) = %q, want empty", got)
	}
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00,000"},
		{-3, "00:00:00,000"},
		{59.9996, "00:01:00,000"},
		{600.25, "00:10:00,250"},
		{359999.999, "99:59:59,999"},
	}
	for _, tt := range tests {
		if got := subtitle.FormatTimestamp(tt.seconds); got != tt.want {
			t.Fatalf("FormatTimestamp(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}
