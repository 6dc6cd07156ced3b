package model

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// Language is a translation target supported by the service.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
	// FLORES-200 code expected by IndicTrans2 models.
	FloresCode string `json:"-"`
}

// English is the source language of every caption.
var English = Language{Code: "en", Name: "English", FloresCode: "eng_Latn"}

var supportedLanguages = map[string]Language{
	"hi": {Code: "hi", Name: "Hindi", FloresCode: "hin_Deva"},
	"bn": {Code: "bn", Name: "Bengali", FloresCode: "ben_Beng"},
	"te": {Code: "te", Name: "Telugu", FloresCode: "tel_Telu"},
	"ta": {Code: "ta", Name: "Tamil", FloresCode: "tam_Taml"},
	"mr": {Code: "mr", Name: "Marathi", FloresCode: "mar_Deva"},
}

// LookupLanguage resolves a user supplied language code against the supported set.
// Region and script subtags are ignored, so "hi-IN" resolves to Hindi.
func LookupLanguage(code string) (Language, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Language{}, false
	}
	if l, ok := supportedLanguages[strings.ToLower(code)]; ok {
		return l, true
	}
	tag, err := language.Parse(code)
	if err != nil {
		return Language{}, false
	}
	base, _ := tag.Base()
	l, ok := supportedLanguages[base.String()]
	return l, ok
}

// SupportedLanguages returns the supported targets ordered by code.
func SupportedLanguages() []Language {
	out := make([]Language, 0, len(supportedLanguages))
	for _, l := range supportedLanguages {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
