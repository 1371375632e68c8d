package scanner

import (
	"strings"
)

const (
	LanguageC   = "c"
	LanguageCPP = "cpp"
)

// languageMap maps file extensions to the languages a CFG can be built for.
var languageMap = map[string]string{
	// C
	".c": LanguageC,
	".h": LanguageC,

	// C++
	".cpp": LanguageCPP,
	".hpp": LanguageCPP,
	".cc":  LanguageCPP,
	".hh":  LanguageCPP,
	".cxx": LanguageCPP,
	".hxx": LanguageCPP,
	".c++": LanguageCPP,
	".h++": LanguageCPP,
	".ipp": LanguageCPP,
	".inl": LanguageCPP,
}

// DetectLanguage returns the programming language for a given file extension.
// Returns empty string if the extension is not recognized.
func DetectLanguage(ext string) string {
	// Normalize extension to lowercase
	ext = strings.ToLower(ext)

	if lang, ok := languageMap[ext]; ok {
		return lang
	}

	return ""
}

// SupportedLanguages returns the languages DetectLanguage can report.
func SupportedLanguages() []string {
	return []string{LanguageC, LanguageCPP}
}
