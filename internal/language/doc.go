// Package language normalizes the translation target language.
//
// Users configure the target as an ISO 639-1 code, an ISO 639-2 code, a BCP 47
// tag such as "pt-BR", or a plain English word such as "german". Normalize
// turns any of these into a canonical BCP 47 tag, and DisplayName renders the
// English name used in provider prompts.
package language
