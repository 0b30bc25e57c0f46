package workflow

import (
	"fmt"
	"strings"

	"subtrans/internal/language"
	"subtrans/internal/planner"
	"subtrans/internal/services/gemini"
	"subtrans/internal/subtitle"
)

const defaultSystemPrompt = `You are a professional subtitle translator.
Watch the supplied video segment, transcribe every line of spoken dialogue, and translate it into {language}.
Answer with SubRip (SRT) subtitles only: numbered cues, "HH:MM:SS,mmm --> HH:MM:SS,mmm" timing lines, and the translated text.
Do not add commentary, notes, or code fences.`

// systemPrompt renders the configured prompt, or the built-in one, for the
// target language. "{language}" is replaced with the English language name.
func systemPrompt(override, target string) string {
	prompt := strings.TrimSpace(override)
	if prompt == "" {
		prompt = defaultSystemPrompt
	}
	return strings.ReplaceAll(prompt, "{language}", language.DisplayName(target))
}

// batchPrompt tells the provider which part of the clip it owns. Cues are
// timed from the window start so the assembler can shift them by it.
func batchPrompt(window planner.Window) string {
	var b strings.Builder
	start := subtitle.FormatTimestamp(window.WindowStart)
	end := subtitle.FormatTimestamp(window.WindowEnd)
	if window.ContextOffset > 0 {
		fmt.Fprintf(&b, "The clip begins %.0f seconds before %s. That lead-in is context from the previous section: do not subtitle it.\n",
			window.ContextOffset, start)
	}
	fmt.Fprintf(&b, "Subtitle the dialogue between %s and %s of the video.\n", start, end)
	fmt.Fprintf(&b, "Time every cue relative to %s, so speech at %s is 00:00:00,000.", start, start)
	return b.String()
}

// request builds the provider call for window. Presub windows use the
// configured presub profile when one exists.
func (e *execution) request(window planner.Window) gemini.Request {
	cfg := e.runner.cfg
	model := cfg.Provider.Model
	temperature := cfg.Provider.Temperature
	if window.Presub {
		if profile, ok := cfg.Profile(e.job.Settings.PresubConfigID); ok {
			model = profile.Model
			temperature = profile.Temperature
		}
	}
	mimeType := e.job.MimeType
	if mimeType == "" {
		mimeType = cfg.Provider.MimeType
	}
	return gemini.Request{
		Model:        model,
		Temperature:  temperature,
		SystemPrompt: systemPrompt(cfg.Provider.SystemPrompt, cfg.Provider.TargetLanguage),
		Prompt:       batchPrompt(window),
		VideoURI:     e.job.VideoURL,
		MimeType:     mimeType,
		StartOffset:  window.ContextStart(),
		EndOffset:    window.WindowEnd,
	}
}
