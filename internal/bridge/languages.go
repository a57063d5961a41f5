package bridge

import "strings"

// EnglishCode is the provider's code for English.
const EnglishCode = "en-IN"

// AutoCode asks the provider to detect the source language itself.
const AutoCode = "auto"

// shortToBCP47 maps bare ISO 639-1 codes to the provider's regional
// BCP-47 codes.
var shortToBCP47 = map[string]string{
	"en": "en-IN",
	"hi": "hi-IN",
	"bn": "bn-IN",
	"ta": "ta-IN",
	"te": "te-IN",
	"mr": "mr-IN",
	"gu": "gu-IN",
	"kn": "kn-IN",
	"ml": "ml-IN",
	"pa": "pa-IN",
}

// NormalizeLanguage coerces a language code into the provider's BCP-47 form.
// Bare codes gain the regional suffix; unknown or empty input falls back to
// Hindi, the deployment's dominant language. "auto" passes through for
// translate calls.
func NormalizeLanguage(code string) string {
	if code == AutoCode {
		return AutoCode
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return "hi-IN"
	}
	if full, ok := shortToBCP47[strings.ToLower(code)]; ok {
		return full
	}
	if strings.Contains(code, "-") {
		return code
	}
	return "hi-IN"
}

// IsEnglish reports whether code denotes English in any regional form.
func IsEnglish(code string) bool {
	return strings.HasPrefix(strings.ToLower(code), "en")
}
