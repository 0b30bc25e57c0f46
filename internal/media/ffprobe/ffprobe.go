package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"subtrans/internal/services"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Duration  string `json:"duration"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	Duration   string `json:"duration"`
	FormatName string `json:"format_name"`
}

// Info is what the runner needs from a probe.
type Info struct {
	DurationSeconds float64
	MimeType        string
	HasVideo        bool
}

// Inspect executes ffprobe against target and decodes the JSON response.
func Inspect(ctx context.Context, binary string, target string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return Result{}, services.Wrap(services.ErrValidation, "ffprobe", "inspect", "empty target", nil)
	}
	if _, err := exec.LookPath(binary); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "ffprobe", "inspect", binary+" not found", err)
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", target)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{}, services.Wrap(services.ErrExternalTool, "ffprobe", "inspect",
				strings.TrimSpace(string(exitErr.Stderr)), err)
		}
		return Result{}, services.Wrap(services.ErrExternalTool, "ffprobe", "inspect", "run", err)
	}

	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// Probe inspects target and summarizes duration and MIME type. A missing or
// unparsable duration is a validation error because batches cannot be planned
// without it.
func Probe(ctx context.Context, binary string, target string) (Info, error) {
	result, err := Inspect(ctx, binary, target)
	if err != nil {
		return Info{}, err
	}
	duration := result.DurationSeconds()
	if math.IsNaN(duration) || duration <= 0 {
		return Info{}, services.Wrap(services.ErrValidation, "ffprobe", "probe",
			fmt.Sprintf("no usable duration for %s", target), nil)
	}
	return Info{
		DurationSeconds: duration,
		MimeType:        result.MimeType(),
		HasVideo:        result.VideoStreamCount() > 0,
	}, nil
}

// VideoStreamCount returns the number of video streams discovered.
func (r Result) VideoStreamCount() int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			count++
		}
	}
	return count
}

// DurationSeconds returns the container duration, falling back to the longest
// stream. It is 0 when nothing reports a duration and NaN when the value is
// garbage.
func (r Result) DurationSeconds() float64 {
	if d := parseFloat(r.Format.Duration); d != 0 {
		return d
	}
	longest := 0.0
	for _, stream := range r.Streams {
		if d := parseFloat(stream.Duration); !math.IsNaN(d) && d > longest {
			longest = d
		}
	}
	return longest
}

// MimeType maps the container format to a video MIME type. Unknown formats
// yield "".
func (r Result) MimeType() string {
	for _, name := range strings.Split(strings.ToLower(r.Format.FormatName), ",") {
		switch strings.TrimSpace(name) {
		case "mp4", "mov", "m4a", "3gp", "3g2", "mj2":
			return "video/mp4"
		case "webm", "matroska":
			return "video/webm"
		case "mpegts", "hls":
			return "video/mp2t"
		case "avi":
			return "video/x-msvideo"
		case "flv":
			return "video/x-flv"
		case "mpeg":
			return "video/mpeg"
		}
	}
	return ""
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}

// Prober runs Probe with a fixed binary.
type Prober struct {
	Binary string
}

// Probe inspects target with the configured binary.
func (p Prober) Probe(ctx context.Context, target string) (Info, error) {
	return Probe(ctx, p.Binary, target)
}
