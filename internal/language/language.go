package language

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// aliases maps ISO 639-2 codes and English words that the BCP 47 parser does
// not accept on its own.
var aliases = map[string]string{
	"eng": "en", "english": "en",
	"spa": "es", "spanish": "es",
	"fra": "fr", "fre": "fr", "french": "fr",
	"deu": "de", "ger": "de", "german": "de",
	"ita": "it", "italian": "it",
	"por": "pt", "portuguese": "pt",
	"jpn": "ja", "japanese": "ja",
	"kor": "ko", "korean": "ko",
	"zho": "zh", "chi": "zh", "chinese": "zh",
	"rus": "ru", "russian": "ru",
	"ara": "ar", "arabic": "ar",
	"hin": "hi", "hindi": "hi",
	"nld": "nl", "dut": "nl", "dutch": "nl",
	"pol": "pl", "polish": "pl",
	"swe": "sv", "swedish": "sv",
	"dan": "da", "danish": "da",
	"nor": "no", "norwegian": "no",
	"fin": "fi", "finnish": "fi",
	"vie": "vi", "vietnamese": "vi",
	"tha": "th", "thai": "th",
	"ind": "id", "indonesian": "id",
	"tur": "tr", "turkish": "tr",
	"ukr": "uk", "ukrainian": "uk",
}

var namer = display.Tags(language.English)

// Parse resolves code into a BCP 47 tag.
func Parse(code string) (language.Tag, error) {
	trimmed := strings.ToLower(strings.TrimSpace(code))
	if trimmed == "" {
		return language.Und, fmt.Errorf("language: empty code")
	}
	trimmed = strings.ReplaceAll(trimmed, "_", "-")
	if mapped, ok := aliases[trimmed]; ok {
		trimmed = mapped
	}
	tag, err := language.Parse(trimmed)
	if err != nil {
		return language.Und, fmt.Errorf("language: parse %q: %w", code, err)
	}
	if tag == language.Und {
		return language.Und, fmt.Errorf("language: %q is undetermined", code)
	}
	return tag, nil
}

// Normalize returns the canonical tag string for code, such as "en" or
// "pt-BR".
func Normalize(code string) (string, error) {
	tag, err := Parse(code)
	if err != nil {
		return "", err
	}
	return tag.String(), nil
}

// DisplayName returns the English name for code. Unrecognized input is
// returned upper-cased so prompts still name something.
func DisplayName(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Unknown"
	}
	tag, err := Parse(code)
	if err != nil {
		return strings.ToUpper(strings.TrimSpace(code))
	}
	if name := namer.Name(tag); name != "" {
		return name
	}
	return tag.String()
}

// Base returns the two-letter base language for code, or "" when code cannot
// be parsed.
func Base(code string) string {
	tag, err := Parse(code)
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	return base.String()
}
