package voice

import "strings"

// DefaultLanguage is used when a request names no language.
const DefaultLanguage = "en"

// Language is a synthesis language supported by XTTS-v2.
type Language struct {
	Code string
	Name string
}

var languages = []Language{
	{Code: "en", Name: "English"},
	{Code: "es", Name: "Spanish (Español)"},
	{Code: "fr", Name: "French (Français)"},
	{Code: "de", Name: "German (Deutsch)"},
	{Code: "it", Name: "Italian (Italiano)"},
	{Code: "pt", Name: "Portuguese (Português)"},
	{Code: "pl", Name: "Polish (Polski)"},
	{Code: "tr", Name: "Turkish (Türkçe)"},
	{Code: "ru", Name: "Russian (Русский)"},
	{Code: "nl", Name: "Dutch (Nederlands)"},
	{Code: "cs", Name: "Czech (Čeština)"},
	{Code: "ar", Name: "Arabic (العربية)"},
	{Code: "zh-cn", Name: "Chinese (中文)"},
	{Code: "ja", Name: "Japanese (日本語)"},
	{Code: "hu", Name: "Hungarian (Magyar)"},
	{Code: "ko", Name: "Korean (한국어)"},
}

// SupportedLanguages returns the supported language codes in display order.
func SupportedLanguages() []string {
	codes := make([]string, len(languages))
	for i, l := range languages {
		codes[i] = l.Code
	}
	return codes
}

// Languages returns the supported languages with their display names.
func Languages() []Language {
	out := make([]Language, len(languages))
	copy(out, languages)
	return out
}

// LanguageName returns the display name for code, or code itself when the
// language is unknown.
func LanguageName(code string) string {
	for _, l := range languages {
		if l.Code == code {
			return l.Name
		}
	}
	return code
}

// IsSupportedLanguage reports whether code names a supported language.
func IsSupportedLanguage(code string) bool {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, l := range languages {
		if l.Code == code {
			return true
		}
	}
	return false
}
